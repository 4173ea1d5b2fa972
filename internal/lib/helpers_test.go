// Copyright 2026 Bjørn Erik Pedersen
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeVCS serves scripted git answers keyed by absolute directory.
type fakeVCS struct {
	mu sync.Mutex

	tracked        map[string][]string
	subs           map[string][]string
	attributesFile map[string]string
	notRepo        map[string]bool
	errs           map[string]error

	updated []string
}

func newFakeVCS() *fakeVCS {
	return &fakeVCS{
		tracked:        make(map[string][]string),
		subs:           make(map[string][]string),
		attributesFile: make(map[string]string),
		notRepo:        make(map[string]bool),
		errs:           make(map[string]error),
	}
}

func (f *fakeVCS) Toplevel(dir string) (string, error) {
	if f.notRepo[dir] {
		return "", &NotARepositoryError{Path: dir}
	}
	return dir, nil
}

func (f *fakeVCS) TrackedFiles(dir string) ([]string, error) {
	if err := f.errs[dir]; err != nil {
		return nil, err
	}
	// Callers may modify the returned slice.
	return append([]string(nil), f.tracked[dir]...), nil
}

func (f *fakeVCS) SubRepositories(dir string) ([]string, error) {
	return f.subs[dir], nil
}

func (f *fakeVCS) AttributesFile(dir string) (string, error) {
	return f.attributesFile[dir], nil
}

func (f *fakeVCS) UpdateSubmodules(dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, dir)
	return nil
}

// writeFiles creates files below root, relative paths with forward slashes.
func writeFiles(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		filename := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(filename), 0o755))
		require.NoError(t, os.WriteFile(filename, []byte(content), 0o644))
	}
}

// newRepo writes files into a new temporary directory and registers them
// as tracked.
func newRepo(t testing.TB, vcs *fakeVCS, files map[string]string, tracked ...string) string {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, files)
	vcs.tracked[root] = tracked
	return root
}

func fileNames(files []File) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names
}

func collectFiles(t testing.TB, w *Walker, root string) []File {
	t.Helper()
	var files []File
	for f, err := range w.Files(root) {
		require.NoError(t, err)
		files = append(files, f)
	}
	return files
}
