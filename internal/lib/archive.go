// Copyright 2026 Bjørn Erik Pedersen
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

var archiveExtRe = regexp.MustCompile(`(\.zip|\.tar|\.tgz|\.gz|\.bz2|\.tar\.gz|\.tar\.bz2)$`)

// ArchivePrefix returns prefix with a trailing slash. An empty prefix is
// derived from the output file name so the archive does not extract into
// the current directory.
func ArchivePrefix(prefix, output string) string {
	if prefix == "" {
		prefix = archiveExtRe.ReplaceAllString(filepath.Base(output), "")
		if prefix == "" || prefix == "." || prefix == string(filepath.Separator) {
			prefix = "Archive"
		}
	}
	prefix = filepath.ToSlash(prefix)
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}

// FormatFromFilename returns the lower cased extension of filename without the dot.
func FormatFromFilename(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// Sink receives the files of an archive.
type Sink interface {
	// Add adds the file or symlink at source under name.
	Add(source, name string) error
	Close() error
}

// NewSink creates the archive file filename in the given format.
func NewSink(format, filename string) (Sink, error) {
	switch format {
	case "zip", "tar", "gz", "tgz", "bz2":
	default:
		return nil, &UnknownFormatError{Format: format}
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	switch format {
	case "zip":
		return &zipSink{f: f, w: zip.NewWriter(f)}, nil
	case "tar":
		return &tarSink{f: f, w: tar.NewWriter(f)}, nil
	case "gz", "tgz":
		gw := gzip.NewWriter(f)
		return &tarSink{f: f, c: gw, w: tar.NewWriter(gw)}, nil
	default:
		bw, err := bzip2.NewWriter(f, nil)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &tarSink{f: f, c: bw, w: tar.NewWriter(bw)}, nil
	}
}

type zipSink struct {
	f *os.File
	w *zip.Writer
}

func (s *zipSink) Add(source, name string) error {
	// Symlinks are followed.
	fi, err := os.Stat(source)
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(fi)
	if err != nil {
		return err
	}
	header.Name = name
	if fi.IsDir() {
		header.Name = strings.TrimSuffix(name, "/") + "/"
		_, err := s.w.CreateHeader(header)
		return err
	}
	header.Method = zip.Deflate

	w, err := s.w.CreateHeader(header)
	if err != nil {
		return err
	}
	return copyFile(w, source)
}

func (s *zipSink) Close() error {
	return errors.Join(s.w.Close(), s.f.Close())
}

type tarSink struct {
	f *os.File
	c io.WriteCloser // compressor, may be nil
	w *tar.Writer
}

func (s *tarSink) Add(source, name string) error {
	fi, err := os.Lstat(source)
	if err != nil {
		return err
	}
	var link string
	if fi.Mode()&fs.ModeSymlink != 0 {
		if link, err = os.Readlink(source); err != nil {
			return err
		}
	}
	header, err := tar.FileInfoHeader(fi, link)
	if err != nil {
		return err
	}
	header.Name = name
	if fi.IsDir() {
		header.Name = strings.TrimSuffix(name, "/") + "/"
	}
	if err := s.w.WriteHeader(header); err != nil {
		return err
	}
	if !fi.Mode().IsRegular() {
		return nil
	}
	return copyFile(s.w, source)
}

func (s *tarSink) Close() error {
	err := s.w.Close()
	if s.c != nil {
		err = errors.Join(err, s.c.Close())
	}
	return errors.Join(err, s.f.Close())
}

// drySink prints what would have been archived.
type drySink struct {
	out io.Writer
}

func (s drySink) Add(source, name string) error {
	_, err := fmt.Fprintf(s.out, "%s => %s\n", source, name)
	return err
}

func (s drySink) Close() error {
	return nil
}

func copyFile(w io.Writer, filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

type Archiver struct {
	Cfg    Config
	vcs    VCS
	logger *log.Logger
	out    io.Writer
}

// Create writes the archive described by cfg using git.
func Create(cfg Config) error {
	level := log.InfoLevel
	if cfg.Verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{Level: level, Prefix: "gitarchiveall"})
	return NewArchiver(Git{}, cfg, logger, os.Stdout).Run(context.Background())
}

// NewArchiver creates an Archiver. Dry runs are printed to out.
func NewArchiver(vcs VCS, cfg Config, logger *log.Logger, out io.Writer) *Archiver {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Archiver{Cfg: cfg, vcs: vcs, logger: logger, out: out}
}

func (a *Archiver) Run(ctx context.Context) (err error) {
	cfg := a.Cfg

	dir, err := filepath.Abs(cfg.Root)
	if err != nil {
		return err
	}
	root, err := a.vcs.Toplevel(dir)
	if err != nil {
		return err
	}

	format := cfg.Format
	if format == "" {
		format = FormatFromFilename(cfg.Output)
	}
	format = strings.ToLower(format)
	prefix := ArchivePrefix(cfg.Prefix, cfg.Output)

	var sink Sink
	if cfg.DryRun {
		switch format {
		case "zip", "tar", "gz", "tgz", "bz2":
		default:
			return &UnknownFormatError{Format: format}
		}
		sink = drySink{out: a.out}
	} else {
		if fi, err := os.Stat(cfg.Output); err == nil && fi.IsDir() {
			return fmt.Errorf("output %q is a directory", cfg.Output)
		}
		if sink, err = NewSink(format, cfg.Output); err != nil {
			return err
		}
	}

	defer func() {
		closeErr := sink.Close()
		if err == nil {
			err = closeErr
		}
		if err != nil && !cfg.DryRun {
			os.Remove(cfg.Output)
		}
	}()

	add := func(source, name string) error {
		dst := path.Join(prefix, name)
		a.logger.Debug("compressing", "src", source, "dst", dst)
		if err := sink.Add(source, dst); err != nil {
			return fmt.Errorf("add %s: %w", source, err)
		}
		return nil
	}

	for _, extra := range cfg.Extra {
		if err := a.addExtra(extra, add); err != nil {
			return err
		}
	}

	walker := NewWalker(a.vcs, cfg, a.logger)
	if cfg.Jobs > 1 {
		files, err := walker.Collect(ctx, root)
		if err != nil {
			return err
		}
		for _, f := range files {
			if err := add(f.Source, f.Name); err != nil {
				return err
			}
		}
		return nil
	}

	for f, err := range walker.Files(root) {
		if err != nil {
			return err
		}
		if err := add(f.Source, f.Name); err != nil {
			return err
		}
	}
	return nil
}

// addExtra adds the file or directory tree extra, named as given on the
// command line.
func (a *Archiver) addExtra(extra string, add func(source, name string) error) error {
	if a.Cfg.DryRun {
		return add(extra, filepath.ToSlash(extra))
	}
	return filepath.WalkDir(extra, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		return add(p, filepath.ToSlash(p))
	})
}
