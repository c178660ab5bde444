package paths

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultExcludes are merged into every pattern list unless the caller
// passes a single empty string to suppress them.
var DefaultExcludes = []string{".git"}

// IgnoreFileName is the per-project ignore file read from the pack root.
const IgnoreFileName = ".gitignore"

// Matcher decides whether a root-relative path is excluded from packing.
// Patterns are tried in order; the first match excludes the entry.
type Matcher struct {
	patterns []string
}

func NewMatcher(patterns []string) *Matcher {
	return &Matcher{patterns: patterns}
}

// Match reports whether relPath is excluded. The path is normalized to
// forward slashes before any comparison, regardless of host platform.
func (m *Matcher) Match(relPath string) bool {
	rel := Normalize(relPath)
	base := path.Base(rel)
	for _, pat := range m.patterns {
		if matchPattern(pat, rel, base) {
			return true
		}
	}
	return false
}

// Normalize converts path separators to forward slashes.
func Normalize(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// A pattern is classified by its asterisk placement, in this order:
//
//	*.X    basename ends with ".X"
//	*mid*  path contains "mid" (length > 2)
//	pre*   path starts with "pre"
//	*suf   path ends with "suf"
//	other  exact path equality
func matchPattern(pattern, rel, base string) bool {
	switch {
	case strings.HasPrefix(pattern, "*."):
		return strings.HasSuffix(base, pattern[1:])
	case len(pattern) > 2 &&
		strings.HasPrefix(pattern, "*") &&
		strings.HasSuffix(pattern, "*"):
		return strings.Contains(rel, pattern[1:len(pattern)-1])
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(rel, pattern[:len(pattern)-1])
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(rel, pattern[1:])
	default:
		return rel == pattern
	}
}

// CompilePatterns assembles the pattern list for one pack run from the
// root ignore file, the default excludes, and userPatterns, in that
// order. A userPatterns of exactly one empty string suppresses the
// defaults and keeps only the ignore-file rules. A missing or unreadable
// ignore file contributes nothing; it is never an error.
func CompilePatterns(root string, userPatterns []string) []string {
	fileLines := readIgnoreFile(filepath.Join(root, IgnoreFileName))

	if len(userPatterns) == 1 && userPatterns[0] == "" {
		return fileLines
	}

	patterns := append([]string{}, fileLines...)
	patterns = append(patterns, DefaultExcludes...)
	patterns = append(patterns, userPatterns...)
	return patterns
}

func readIgnoreFile(p string) []string {
	f, err := os.Open(p)
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
