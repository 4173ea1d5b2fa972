// Copyright 2026 Bjørn Erik Pedersen
// SPDX-License-Identifier: Apache-2.0

package lib

import (
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/gobwas/glob"
	lru "github.com/hashicorp/golang-lru/v2"
)

// IsExcluded reports whether file, a slash separated path relative to the
// index root, is export-ignored.
//
// The patterns of the file's directory are tried first, then those of each
// parent directory up to the root, and finally the global attributes. The
// first pattern matching either the file's base name or its full path
// excludes the file; directories without a matching pattern are passed over.
func (idx *RuleIndex) IsExcluded(file string) (bool, error) {
	if idx == nil || len(idx.rules) == 0 {
		return false, nil
	}

	c, err := idx.components(path.Dir(file))
	if err != nil {
		return false, err
	}

	base := path.Base(file)
	for i := len(c); i >= 0; i-- {
		patterns, ok := idx.rules[c[:i].Key()]
		if !ok {
			continue
		}
		for _, p := range patterns {
			g := idx.globs.get(p)
			if g.Match(base) || g.Match(file) {
				idx.logger.Debug("exclude pattern matched", "pattern", p, "path", file)
				return true, nil
			}
		}
	}

	return false, nil
}

func (idx *RuleIndex) components(dir string) (Components, error) {
	if c, ok := idx.dirs[dir]; ok {
		return c, nil
	}
	c, err := Componentize(idx.root, filepath.Join(idx.root, filepath.FromSlash(dir)))
	if err != nil {
		return nil, err
	}
	idx.dirs[dir] = c
	return c, nil
}

const globCacheSize = 512

// globCache holds compiled patterns. It is safe for concurrent use.
type globCache struct {
	cache *lru.Cache[string, glob.Glob]
}

func newGlobCache() *globCache {
	c, err := lru.New[string, glob.Glob](globCacheSize)
	if err != nil {
		panic(err)
	}
	return &globCache{cache: c}
}

func (c *globCache) get(pattern string) glob.Glob {
	if g, ok := c.cache.Get(pattern); ok {
		return g
	}
	g := compilePattern(pattern)
	c.cache.Add(pattern, g)
	return g
}

// compilePattern compiles a shell glob with fnmatch semantics: "*" also
// matches "/", braces and backslashes have no special meaning, and a "["
// without a closing "]" is a literal.
func compilePattern(pattern string) glob.Glob {
	translated, ok := translatePattern(pattern)
	if !ok {
		return never{}
	}
	g, err := glob.Compile(translated)
	if err != nil {
		return glob.MustCompile(glob.QuoteMeta(pattern))
	}
	return g
}

// never is a Glob for patterns with a character class that is empty.
type never struct{}

func (never) Match(string) bool { return false }

// translatePattern rewrites an fnmatch pattern into gobwas/glob syntax.
// It reports false if the pattern can never match.
func translatePattern(pattern string) (string, bool) {
	p := []rune(pattern)
	var sb strings.Builder
	for i := 0; i < len(p); i++ {
		switch c := p[i]; c {
		case '*', '?':
			sb.WriteRune(c)
		case '[':
			end := classEnd(p, i)
			if end < 0 {
				writeLiteral(&sb, c)
				continue
			}
			ranges, negate := parseClass(p[i+1 : end])
			if negate {
				ranges = complementRanges(ranges)
			}
			if len(ranges) == 0 {
				return "", false
			}
			writeClass(&sb, ranges)
			i = end
		default:
			writeLiteral(&sb, c)
		}
	}
	return sb.String(), true
}

// classEnd returns the index of the "]" closing the class opened at
// p[start], or -1. A "]" directly after "[" or "[!" is a member.
func classEnd(p []rune, start int) int {
	j := start + 1
	if j < len(p) && p[j] == '!' {
		j++
	}
	if j < len(p) && p[j] == ']' {
		j++
	}
	for ; j < len(p); j++ {
		if p[j] == ']' {
			return j
		}
	}
	return -1
}

type runeRange struct {
	lo, hi rune
}

// parseClass returns the sorted, merged ranges of a class body.
// Reversed ranges such as "z-a" are empty.
func parseClass(body []rune) ([]runeRange, bool) {
	var negate bool
	if len(body) > 0 && body[0] == '!' {
		negate = true
		body = body[1:]
	}
	var ranges []runeRange
	for k := 0; k < len(body); k++ {
		if k+2 < len(body) && body[k+1] == '-' {
			if body[k] <= body[k+2] {
				ranges = append(ranges, runeRange{body[k], body[k+2]})
			}
			k += 2
			continue
		}
		ranges = append(ranges, runeRange{body[k], body[k]})
	}
	return mergeRanges(ranges), negate
}

func mergeRanges(ranges []runeRange) []runeRange {
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].lo < ranges[j].lo })
	var merged []runeRange
	for _, r := range ranges {
		if n := len(merged); n > 0 && r.lo <= merged[n-1].hi+1 {
			merged[n-1].hi = max(merged[n-1].hi, r.hi)
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

func complementRanges(ranges []runeRange) []runeRange {
	var out []runeRange
	// glob reads NUL as end of input; it never occurs in a path.
	next := rune(1)
	for _, r := range ranges {
		if r.lo > next {
			out = append(out, runeRange{next, r.lo - 1})
		}
		next = r.hi + 1
	}
	if next <= unicode.MaxRune {
		out = append(out, runeRange{next, unicode.MaxRune})
	}
	return out
}

// classSpecial are runes that never end a range written as "[lo-hi]";
// they are written as escaped list members instead.
const classSpecial = `!-[]\{},`

// writeClass writes ranges as one glob class, or as an alternation of
// classes since glob supports either a single range or a list per class.
func writeClass(sb *strings.Builder, ranges []runeRange) {
	var singles []rune
	var spans []runeRange
	for _, r := range ranges {
		for r.lo <= r.hi && strings.ContainsRune(classSpecial, r.lo) {
			singles = append(singles, r.lo)
			r.lo++
		}
		for r.lo <= r.hi && strings.ContainsRune(classSpecial, r.hi) {
			singles = append(singles, r.hi)
			r.hi--
		}
		switch {
		case r.lo == r.hi:
			singles = append(singles, r.lo)
		case r.lo < r.hi:
			spans = append(spans, r)
		}
	}

	var alts []string
	for _, r := range spans {
		alts = append(alts, "["+string(r.lo)+"-"+string(r.hi)+"]")
	}
	if len(singles) > 0 {
		alts = append(alts, singlesClass(singles))
	}
	if len(alts) == 1 {
		sb.WriteString(alts[0])
		return
	}
	sb.WriteString("{" + strings.Join(alts, ",") + "}")
}

// singlesClass writes a list class. A leading escaped "-" would be read
// as the start of a range, so "-" goes last or, alone, as "[---]".
func singlesClass(singles []rune) string {
	var dash bool
	var sb strings.Builder
	sb.WriteByte('[')
	for _, r := range singles {
		if r == '-' {
			dash = true
			continue
		}
		sb.WriteByte('\\')
		sb.WriteRune(r)
	}
	if dash {
		if sb.Len() == 1 {
			return "[---]"
		}
		sb.WriteString(`\-`)
	}
	sb.WriteByte(']')
	return sb.String()
}

func writeLiteral(sb *strings.Builder, r rune) {
	switch r {
	case '{', '}', '[', ']', '\\', ',':
		sb.WriteByte('\\')
	}
	sb.WriteRune(r)
}
