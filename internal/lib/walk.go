// Copyright 2026 Bjørn Erik Pedersen
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"context"
	"io"
	"iter"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Walker lists the files of a repository and its submodules that belong in
// an export archive.
type Walker struct {
	vcs             VCS
	exclude         bool
	forceSubmodules bool
	jobs            int
	globs           *globCache
	logger          *log.Logger
}

func NewWalker(vcs VCS, cfg Config, logger *log.Logger) *Walker {
	jobs := cfg.Jobs
	if jobs < 1 {
		jobs = 1
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Walker{
		vcs:             vcs,
		exclude:         !cfg.NoExclude,
		forceSubmodules: cfg.ForceSubmodules,
		jobs:            jobs,
		globs:           newGlobCache(),
		logger:          logger,
	}
}

// Files returns the files of the repository rooted at root, followed by the
// files of each submodule in the order git reports them, recursively.
// Every iteration reads the repository state anew. Iteration stops at the
// first error.
func (w *Walker) Files(root string) iter.Seq2[File, error] {
	return func(yield func(File, error) bool) {
		w.walk(root, "", yield)
	}
}

func (w *Walker) walk(root, prefix string, yield func(File, error) bool) bool {
	more, err := w.level(root, prefix, func(f File) bool {
		return yield(f, nil)
	})
	if err != nil {
		yield(File{}, err)
		return false
	}
	if !more {
		return false
	}

	subs, err := w.subRepositories(root, prefix)
	if err != nil {
		yield(File{}, err)
		return false
	}
	for _, sub := range subs {
		if !w.walk(sub.root, sub.prefix, yield) {
			return false
		}
	}
	return true
}

// Collect returns the same files as Files, in the same order, enumerating
// sibling submodules concurrently.
func (w *Walker) Collect(ctx context.Context, root string) ([]File, error) {
	return w.collect(ctx, root, "")
}

func (w *Walker) collect(ctx context.Context, root, prefix string) ([]File, error) {
	var files []File
	if _, err := w.level(root, prefix, func(f File) bool {
		files = append(files, f)
		return true
	}); err != nil {
		return nil, err
	}

	subs, err := w.subRepositories(root, prefix)
	if err != nil {
		return nil, err
	}

	results := make([][]File, len(subs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.jobs)
	for i, sub := range subs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := w.collect(ctx, sub.root, sub.prefix)
			results[i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		files = append(files, r...)
	}
	return files, nil
}

// level passes the archivable files of the repository at root, without its
// submodules, to fn until fn returns false.
func (w *Walker) level(root, prefix string, fn func(File) bool) (bool, error) {
	tracked, err := w.vcs.TrackedFiles(root)
	if err != nil {
		return false, err
	}
	for i, p := range tracked {
		tracked[i] = unquotePath(p)
	}

	var idx *RuleIndex
	if w.exclude {
		idx, err = BuildRuleIndex(w.vcs, root, tracked, w.globs, w.logger)
		if err != nil {
			return false, err
		}
	}

	for _, p := range tracked {
		if isControlFile(path.Base(p)) {
			continue
		}
		src := filepath.Join(root, filepath.FromSlash(p))
		if fi, err := os.Lstat(src); err == nil && fi.IsDir() {
			// A submodule; it is walked on its own.
			continue
		}
		excluded, err := idx.IsExcluded(p)
		if err != nil {
			return false, err
		}
		if excluded {
			continue
		}
		if !fn(File{Source: src, Name: path.Join(prefix, p)}) {
			return false, nil
		}
	}
	return true, nil
}

type subRepository struct {
	root   string
	prefix string
}

func (w *Walker) subRepositories(root, prefix string) ([]subRepository, error) {
	if w.forceSubmodules {
		if err := w.vcs.UpdateSubmodules(root); err != nil {
			return nil, err
		}
	}

	dirs, err := w.vcs.SubRepositories(root)
	if err != nil {
		return nil, err
	}

	subs := make([]subRepository, 0, len(dirs))
	for _, dir := range dirs {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		if _, err := w.vcs.Toplevel(dir); err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(root, dir)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, &PathOutsideRootError{Root: root, Path: dir}
		}
		subs = append(subs, subRepository{
			root:   dir,
			prefix: path.Join(prefix, filepath.ToSlash(rel)),
		})
	}
	return subs, nil
}

func isControlFile(name string) bool {
	switch name {
	case ".git", ".gitattributes", ".gitignore", ".gitmodules":
		return true
	}
	return false
}
