// Copyright 2026 Bjørn Erik Pedersen
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"fmt"
	"strings"
)

// NotARepositoryError is returned when a directory is not inside a git work tree.
type NotARepositoryError struct {
	Path string
	Err  error
}

func (e *NotARepositoryError) Error() string {
	return fmt.Sprintf("not a git repository (or any of the parent directories): %s", e.Path)
}

func (e *NotARepositoryError) Unwrap() error {
	return e.Err
}

// PathOutsideRootError is returned when a path does not descend from the
// repository root it was resolved against.
type PathOutsideRootError struct {
	Root string
	Path string
}

func (e *PathOutsideRootError) Error() string {
	return fmt.Sprintf("path %q is not inside %q", e.Path, e.Root)
}

// ExternalCommandError is returned when a git command exits with an error.
type ExternalCommandError struct {
	Dir    string
	Args   []string
	Output string
	Err    error
}

func (e *ExternalCommandError) Error() string {
	return fmt.Sprintf("git %s: %v: %s", strings.Join(e.Args, " "), e.Err, strings.TrimSpace(e.Output))
}

func (e *ExternalCommandError) Unwrap() error {
	return e.Err
}

// UnknownFormatError is returned for unsupported archive formats.
type UnknownFormatError struct {
	Format string
}

func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown format: %q", e.Format)
}
