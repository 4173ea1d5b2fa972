// Copyright 2026 Bjørn Erik Pedersen
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"bufio"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

const (
	attributesFilename = ".gitattributes"
	exportIgnore       = "export-ignore"
)

// RuleIndex holds the export-ignore patterns of one repository, keyed by the
// Components of the directory that declared them.
// A nil *RuleIndex excludes nothing.
type RuleIndex struct {
	root   string
	rules  map[string][]string
	globs  *globCache
	logger *log.Logger

	// Components of directories already resolved, keyed by slash separated
	// directory relative to root.
	dirs map[string]Components
}

// Patterns returns the patterns declared directly in the directory c.
func (idx *RuleIndex) Patterns(c Components) ([]string, bool) {
	if idx == nil {
		return nil, false
	}
	p, ok := idx.rules[c.Key()]
	return p, ok
}

// BuildRuleIndex collects the export-ignore patterns for the repository at
// root from, in order: core.attributesfile, every tracked .gitattributes and
// the repository local info/attributes file.
// The tracked paths must be unquoted and relative to root.
func BuildRuleIndex(vcs VCS, root string, tracked []string, globs *globCache, logger *log.Logger) (*RuleIndex, error) {
	if globs == nil {
		globs = newGlobCache()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	idx := &RuleIndex{
		root:   root,
		rules:  make(map[string][]string),
		globs:  globs,
		logger: logger,
		dirs:   make(map[string]Components),
	}

	// The global attributes apply below the root's own rules.
	idx.rules[Components{}.Key()] = nil
	global, err := vcs.AttributesFile(root)
	if err != nil {
		logger.Debug("no global attributes", "root", root, "err", err)
	} else if global != "" {
		if !filepath.IsAbs(global) {
			global = filepath.Join(root, global)
		}
		idx.rules[Components{}.Key()] = readAttributesFile(global)
	}

	for _, p := range tracked {
		if path.Base(p) != attributesFilename {
			continue
		}
		dir := filepath.Join(root, filepath.FromSlash(path.Dir(p)))
		c, err := Componentize(root, dir)
		if err != nil {
			return nil, err
		}
		idx.rules[c.Key()] = readAttributesFile(filepath.Join(root, filepath.FromSlash(p)))
	}

	self := Components{selfComponent}.Key()
	local := readAttributesFile(filepath.Join(gitDir(root), "info", "attributes"))
	if existing, ok := idx.rules[self]; ok {
		idx.rules[self] = append(existing, local...)
	} else {
		idx.rules[self] = local
	}

	return idx, nil
}

// maxAttributesLine is the longest line ParseAttributes accepts.
var maxAttributesLine = 4 << 20

// ParseAttributes returns the patterns of all lines in r carrying the
// export-ignore attribute. On a read error the patterns found so far are
// returned along with it.
func ParseAttributes(r io.Reader) ([]string, error) {
	var patterns []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(64*1024, maxAttributesLine)), maxAttributesLine)
	for scanner.Scan() {
		tokens := strings.Fields(scanner.Text())
		if len(tokens) < 2 || strings.HasPrefix(tokens[0], "#") {
			continue
		}
		for _, attr := range tokens[1:] {
			if attr == exportIgnore {
				patterns = append(patterns, tokens[0])
				break
			}
		}
	}
	return patterns, scanner.Err()
}

// readAttributesFile is ParseAttributes for a file on disk. Missing files
// have no patterns; a file that cannot be read to the end keeps the
// patterns before the failure.
func readAttributesFile(filename string) []string {
	f, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer f.Close()
	patterns, _ := ParseAttributes(f)
	return patterns
}

// gitDir resolves the git directory of the work tree at root, following
// the "gitdir:" indirection used by submodules and worktrees.
func gitDir(root string) string {
	dotGit := filepath.Join(root, ".git")
	fi, err := os.Stat(dotGit)
	if err != nil || fi.IsDir() {
		return dotGit
	}
	b, err := os.ReadFile(dotGit)
	if err != nil {
		return dotGit
	}
	dir, ok := strings.CutPrefix(strings.TrimSpace(string(b)), "gitdir:")
	if !ok {
		return dotGit
	}
	dir = filepath.FromSlash(strings.TrimSpace(dir))
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	return dir
}
