// Copyright 2026 Bjørn Erik Pedersen
// SPDX-License-Identifier: Apache-2.0

package lib

type Config struct {
	Root            string // directory inside the main repository
	Output          string // archive file to create
	Prefix          string // prepended to every archive path, normalized to end with "/"
	Format          string // zip, tar, gz, tgz or bz2; derived from Output when empty
	Verbose         bool
	NoExclude       bool // ignore export-ignore attributes
	ForceSubmodules bool // git submodule init/update before listing sub-repositories
	Extra           []string
	DryRun          bool
	Jobs            int // sibling sub-repositories enumerated concurrently; <= 1 means sequential
}

// File is one entry to add to an archive.
type File struct {
	// Source is the absolute path on disk.
	Source string
	// Name is the slash separated path relative to the main repository root,
	// without the archive prefix.
	Name string
}
