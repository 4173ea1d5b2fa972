// Copyright 2026 Bjørn Erik Pedersen
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildIndex(t *testing.T, files map[string]string, tracked ...string) *RuleIndex {
	t.Helper()
	vcs := newFakeVCS()
	root := newRepo(t, vcs, files, tracked...)
	idx, err := BuildRuleIndex(vcs, root, tracked, nil, nil)
	require.NoError(t, err)
	return idx
}

func requireExcluded(t *testing.T, idx *RuleIndex, file string, want bool) {
	t.Helper()
	got, err := idx.IsExcluded(file)
	require.NoError(t, err)
	require.Equal(t, want, got, file)
}

func TestIsExcludedNilIndex(t *testing.T) {
	var idx *RuleIndex
	requireExcluded(t, idx, "a.secret", false)
}

func TestIsExcludedDefaultInclude(t *testing.T) {
	idx := buildIndex(t, map[string]string{
		".gitattributes": "*.secret export-ignore\n",
		"src/a.go":       "",
	}, ".gitattributes", "src/a.go")

	requireExcluded(t, idx, "a.txt", false)
	requireExcluded(t, idx, "src/a.go", false)
	requireExcluded(t, idx, "src/deep/er/file.md", false)
}

func TestIsExcludedRoot(t *testing.T) {
	idx := buildIndex(t, map[string]string{
		".gitattributes": "*.secret export-ignore\n",
	}, ".gitattributes", "a.txt", "b.secret")

	requireExcluded(t, idx, "a.txt", false)
	requireExcluded(t, idx, "b.secret", true)
}

func TestIsExcludedAncestorPatternAppliesBelow(t *testing.T) {
	idx := buildIndex(t, map[string]string{
		".gitattributes": "*.tmp export-ignore\n",
		"a/b/c/x.tmp":    "",
	}, ".gitattributes", "a/b/c/x.tmp")

	requireExcluded(t, idx, "a/b/c/x.tmp", true)
	requireExcluded(t, idx, "a/b/c/x.txt", false)
}

// A deeper .gitattributes without a matching pattern does not shadow the
// patterns of its ancestors: the lookup moves on to the next directory up.
func TestIsExcludedNonMatchingDeeperEntryFallsThrough(t *testing.T) {
	idx := buildIndex(t, map[string]string{
		".gitattributes":     "*.tmp export-ignore\n",
		"src/.gitattributes": "*.bak export-ignore\n",
		"src/debug.tmp":      "",
	}, ".gitattributes", "src/.gitattributes", "src/debug.tmp")

	p, ok := idx.Patterns(Components{".", "src"})
	require.True(t, ok)
	require.Equal(t, []string{"*.bak"}, p)

	requireExcluded(t, idx, "src/debug.tmp", true)
	requireExcluded(t, idx, "src/old.bak", true)
	requireExcluded(t, idx, "src/main.go", false)
	// The src patterns do not apply to siblings or parents.
	requireExcluded(t, idx, "old.bak", false)
	requireExcluded(t, idx, "other/old.bak", false)
}

func TestIsExcludedDeeperPatternOnly(t *testing.T) {
	idx := buildIndex(t, map[string]string{
		"src/.gitattributes": "*.log export-ignore\n",
		"src/sub/a.log":      "",
	}, "src/.gitattributes", "src/sub/a.log")

	requireExcluded(t, idx, "src/a.log", true)
	requireExcluded(t, idx, "src/sub/a.log", true)
	requireExcluded(t, idx, "a.log", false)
}

func TestIsExcludedFullPath(t *testing.T) {
	idx := buildIndex(t, map[string]string{
		".gitattributes": "docs/* export-ignore\nsrc/gen?.go export-ignore\n",
	}, ".gitattributes")

	// As in fnmatch, "*" matches across slashes.
	requireExcluded(t, idx, "docs/a.md", true)
	requireExcluded(t, idx, "docs/a/b.md", true)
	requireExcluded(t, idx, "src/gen1.go", true)
	requireExcluded(t, idx, "src/gen12.go", false)
	requireExcluded(t, idx, "mydocs/a.md", false)
}

func TestIsExcludedGlobalAttributes(t *testing.T) {
	vcs := newFakeVCS()
	global := filepath.Join(t.TempDir(), "attributes")
	writeFiles(t, filepath.Dir(global), map[string]string{"attributes": "*.psd export-ignore\n"})
	root := newRepo(t, vcs, map[string]string{
		".gitattributes": "*.txt text\n",
		"art/x.psd":      "",
	}, ".gitattributes", "art/x.psd")
	vcs.attributesFile[root] = global

	idx, err := BuildRuleIndex(vcs, root, vcs.tracked[root], nil, nil)
	require.NoError(t, err)
	requireExcluded(t, idx, "art/x.psd", true)
	requireExcluded(t, idx, "logo.psd", true)
	requireExcluded(t, idx, "a.txt", false)
}

func TestIsExcludedLocalAttributes(t *testing.T) {
	idx := buildIndex(t, map[string]string{
		".gitattributes":       "*.a export-ignore\n",
		".git/info/attributes": "*.b export-ignore\n",
	}, ".gitattributes")

	requireExcluded(t, idx, "x.a", true)
	requireExcluded(t, idx, "x.b", true)
	requireExcluded(t, idx, "x.c", false)
}

func TestCompilePattern(t *testing.T) {
	for _, test := range []struct {
		pattern string
		name    string
		want    bool
	}{
		{"*.txt", "a.txt", true},
		{"*.txt", "dir/a.txt", true},
		{"?.txt", "a.txt", true},
		{"?.txt", "ab.txt", false},
		{"[ab].txt", "b.txt", true},
		{"[ab].txt", "c.txt", false},
		{"[!ab].txt", "c.txt", true},
		{"[a-c]*", "banana", true},
		{"{a,b}.txt", "a.txt", false},
		{"{a,b}.txt", "{a,b}.txt", true},
		{"[oops", "[oops", true},
		{"[oops", "o", false},
		{"Makefile", "Makefile", true},
		{"Makefile", "makefile", false},
		{"[]a].txt", "].txt", true},
		{"[]a].txt", "a.txt", true},
		{"[]a].txt", "b.txt", false},
		{"[a-].txt", "-.txt", true},
		{"[a-].txt", "a.txt", true},
		{"[-a].txt", "-.txt", true},
		{"[-].txt", "-.txt", true},
		{"[!]].txt", "a.txt", true},
		{"[!]].txt", "].txt", false},
		{"[!a-c0].x", "d.x", true},
		{"[!a-c0].x", "b.x", false},
		{"[!a-c0].x", "0.x", false},
		{"[!-].x", "-.x", false},
		{"[!-].x", "/.x", true},
		{"[a-z0-9].go", "5.go", true},
		{"[a-z0-9].go", "q.go", true},
		{"[a-z0-9].go", "Q.go", false},
		{"[_a-c].go", "_.go", true},
		{"[!_a-c].go", "_.go", false},
		{"[{,}].go", ",.go", true},
		{"[{,}].go", "}.go", true},
		{"[\\].go", "\\.go", true},
		{"[z-a]x", "ax", false},
		{"[z-a]x", "zx", false},
		{"a[b*", "a[bcd", true},
		{"a[b*", "abcd", false},
		{"[!]", "[!]", true},
		{"x[", "x[", true},
	} {
		require.Equal(t, test.want, compilePattern(test.pattern).Match(test.name), "%s ~ %s", test.pattern, test.name)
	}
}

func TestGlobCache(t *testing.T) {
	c := newGlobCache()
	g1 := c.get("*.go")
	g2 := c.get("*.go")
	require.Equal(t, g1, g2)
	require.Equal(t, 1, c.cache.Len())
}
