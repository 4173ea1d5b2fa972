// Copyright 2026 Bjørn Erik Pedersen
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"bytes"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
)

// VCS is the version control collaborator used by the Walker.
// All paths passed in are absolute directories.
type VCS interface {
	// Toplevel returns the absolute root of the work tree containing dir.
	Toplevel(dir string) (string, error)
	// TrackedFiles lists the files in the index of the repository at dir,
	// relative to dir, as printed by git.
	TrackedFiles(dir string) ([]string, error)
	// SubRepositories lists the absolute paths of the checked out
	// submodules directly below dir.
	SubRepositories(dir string) ([]string, error)
	// AttributesFile returns the value of core.attributesfile, or "" if unset.
	AttributesFile(dir string) (string, error)
	// UpdateSubmodules initializes and updates the submodules of dir.
	UpdateSubmodules(dir string) error
}

// Git implements VCS by running the git binary.
type Git struct{}

func (Git) Toplevel(dir string) (string, error) {
	return Repo{Path: dir}.Toplevel()
}

func (Git) TrackedFiles(dir string) ([]string, error) {
	return Repo{Path: dir}.TrackedFiles()
}

func (Git) SubRepositories(dir string) ([]string, error) {
	return Repo{Path: dir}.Submodules()
}

func (Git) AttributesFile(dir string) (string, error) {
	return Repo{Path: dir}.AttributesFile()
}

func (Git) UpdateSubmodules(dir string) error {
	r := Repo{Path: dir}
	if _, err := r.run("submodule", "init"); err != nil {
		return err
	}
	_, err := r.run("submodule", "update")
	return err
}

type Repo struct {
	Path string
}

func (r Repo) Toplevel() (string, error) {
	out, err := r.run("rev-parse", "--show-toplevel")
	if err != nil {
		return "", &NotARepositoryError{Path: r.Path, Err: err}
	}
	top := strings.TrimSpace(out)
	if top == "" {
		// Inside the .git directory or a bare repository.
		return "", &NotARepositoryError{Path: r.Path}
	}
	return filepath.Abs(filepath.FromSlash(top))
}

func (r Repo) TrackedFiles() ([]string, error) {
	// Quote non-ASCII names so the output does not depend on user config.
	out, err := r.run("-c", "core.quotepath=true", "ls-files", "--cached", "--full-name", "--no-empty-directory")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

func (r Repo) Submodules() ([]string, error) {
	out, err := r.run("submodule", "--quiet", "foreach", "pwd")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

func (r Repo) AttributesFile() (string, error) {
	out, err := r.run("config", "--path", "--get", "core.attributesfile")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			// Key not set.
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (r Repo) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.Path
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &ExternalCommandError{Dir: r.Path, Args: args, Output: stderr.String(), Err: err}
	}
	return stdout.String(), nil
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// unquotePath undoes the C style quoting git applies to paths with
// unusual characters, e.g. "caf\303\251.txt". Bytes outside escapes are
// kept as is.
func unquotePath(s string) string {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	s = s[1 : len(s)-1]
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b = append(b, c)
			continue
		}
		i++
		switch e := s[i]; e {
		case 'a':
			b = append(b, '\a')
		case 'b':
			b = append(b, '\b')
		case 't':
			b = append(b, '\t')
		case 'n':
			b = append(b, '\n')
		case 'v':
			b = append(b, '\v')
		case 'f':
			b = append(b, '\f')
		case 'r':
			b = append(b, '\r')
		case '0', '1', '2', '3':
			if i+2 < len(s) && isOctal(s[i+1]) && isOctal(s[i+2]) {
				b = append(b, (e-'0')<<6|(s[i+1]-'0')<<3|(s[i+2]-'0'))
				i += 2
				continue
			}
			b = append(b, '\\', e)
		case '"', '\\':
			b = append(b, e)
		default:
			b = append(b, '\\', e)
		}
	}
	return string(b)
}

func isOctal(c byte) bool {
	return c >= '0' && c <= '7'
}
