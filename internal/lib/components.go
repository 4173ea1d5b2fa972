// Copyright 2026 Bjørn Erik Pedersen
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"os"
	"path/filepath"
	"strings"
)

// selfComponent is the first element of every Components, representing the
// repository root itself.
const selfComponent = "."

// Components is a directory expressed as its names below a repository root,
// always starting with the root itself, e.g. [. src pkg] for root/src/pkg.
type Components []string

// Key returns a map key for c. The empty Components has the key "".
func (c Components) Key() string {
	return strings.Join(c, "/")
}

func (c Components) Depth() int {
	return len(c) - 1
}

// Componentize splits target into its directory names below root.
// Directories are compared by file identity, so root and target may be
// spelled differently (symlinks, relative segments).
func Componentize(root, target string) (Components, error) {
	rootInfo, err := os.Stat(root)
	if err != nil {
		return nil, err
	}

	var names []string
	current := filepath.Clean(target)
	for !sameFile(rootInfo, current) {
		parent, name := filepath.Split(current)
		parent = filepath.Clean(parent)
		if parent == current {
			return nil, &PathOutsideRootError{Root: root, Path: target}
		}
		if name != "" {
			names = append(names, name)
		}
		current = parent
	}

	c := make(Components, 0, len(names)+1)
	c = append(c, selfComponent)
	for i := len(names) - 1; i >= 0; i-- {
		c = append(c, names[i])
	}
	return c, nil
}

func sameFile(root os.FileInfo, path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		// A tracked file's directory may be gone from the work tree.
		return false
	}
	return os.SameFile(root, fi)
}
