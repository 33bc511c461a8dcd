// Package filter provides reusable glob/search file filtering logic, shared
// by the directory-enqueue path.
package filter

import (
	"path/filepath"
	"strings"
)

// Config holds filter configuration.
type Config struct {
	// Include patterns (glob-style). Empty means include all.
	// Example: []string{"*.dat", "*.txt"}
	Include []string

	// Exclude patterns (glob-style). Takes precedence over Include.
	// Example: []string{"debug*", "temp*"}
	Exclude []string

	// Search terms (case-insensitive substring match).
	// A name must match ALL search terms to be included.
	Search []string

	// PathInclude patterns match against the full relative path.
	// Supports standard glob patterns plus ** for multi-directory matching.
	// Example: []string{"run_1/*.dat", "run_*/output/*"}
	PathInclude []string
}

// Matches reports whether a file's name and relative path pass the filter.
// relPath may equal name when there is no meaningful directory component.
func (c Config) Matches(name, relPath string) bool {
	if len(c.Include) == 0 && len(c.Exclude) == 0 && len(c.Search) == 0 && len(c.PathInclude) == 0 {
		return true
	}

	if len(c.PathInclude) > 0 && !matchesPathFilter(relPath, c.PathInclude) {
		return false
	}
	return matchesFilter(name, c)
}

// ApplyToPaths filters entries, given a function that maps an entry to its
// (name, relative path) pair.
func ApplyToPaths[T any](entries []T, relPathOf func(T) (name, relPath string), config Config) []T {
	if len(config.Include) == 0 && len(config.Exclude) == 0 && len(config.Search) == 0 && len(config.PathInclude) == 0 {
		return entries
	}

	filtered := make([]T, 0, len(entries))
	for _, entry := range entries {
		name, relPath := relPathOf(entry)
		if config.Matches(name, relPath) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// matchesFilter checks if a filename matches the filter configuration.
func matchesFilter(filename string, config Config) bool {
	for _, pattern := range config.Exclude {
		if matched, _ := filepath.Match(pattern, filename); matched {
			return false
		}
		if matched, _ := filepath.Match(pattern, filepath.Base(filename)); matched {
			return false
		}
	}

	if len(config.Include) > 0 {
		included := false
		for _, pattern := range config.Include {
			if matched, _ := filepath.Match(pattern, filename); matched {
				included = true
				break
			}
			if matched, _ := filepath.Match(pattern, filepath.Base(filename)); matched {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}

	if len(config.Search) > 0 {
		lowerFilename := strings.ToLower(filename)
		for _, term := range config.Search {
			if !strings.Contains(lowerFilename, strings.ToLower(term)) {
				return false
			}
		}
	}

	return true
}

// matchesPathFilter checks if a file path matches any of the path patterns.
// Supports glob patterns including ** for multi-directory matching.
func matchesPathFilter(filePath string, patterns []string) bool {
	filePath = filepath.ToSlash(filePath)

	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		if matchPathPattern(filePath, pattern) {
			return true
		}
	}
	return false
}

// matchPathPattern matches a single path against a pattern.
// Supports standard glob patterns plus ** for recursive directory matching.
func matchPathPattern(path, pattern string) bool {
	if strings.Contains(pattern, "**") {
		return matchDoubleStarPattern(path, pattern)
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	return matched
}

// matchDoubleStarPattern handles ** glob patterns for multi-directory matching.
// Examples:
//   - "**/foo.txt" matches "foo.txt", "a/foo.txt", "a/b/c/foo.txt"
//   - "run_1/**" matches "run_1/anything", "run_1/a/b/c/file.txt"
//   - "run_*/*.dat" matches "run_1/file.dat", "run_5/other.dat"
func matchDoubleStarPattern(path, pattern string) bool {
	if strings.HasPrefix(pattern, "**/") {
		suffix := pattern[3:]
		if matchPathPattern(path, suffix) {
			return true
		}
		parts := strings.Split(path, "/")
		for i := range parts {
			subPath := strings.Join(parts[i:], "/")
			if matchPathPattern(subPath, suffix) {
				return true
			}
		}
		return false
	}

	if strings.HasSuffix(pattern, "/**") {
		prefix := pattern[:len(pattern)-3]
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
		parts := strings.Split(path, "/")
		for i := 1; i <= len(parts); i++ {
			subPath := strings.Join(parts[:i], "/")
			if matched, _ := filepath.Match(prefix, subPath); matched {
				return true
			}
		}
		return false
	}

	if doubleStar := strings.Index(pattern, "/**/"); doubleStar != -1 {
		prefix := pattern[:doubleStar]
		suffix := pattern[doubleStar+4:]

		parts := strings.Split(path, "/")
		for i := 1; i < len(parts); i++ {
			prefixPath := strings.Join(parts[:i], "/")
			if matched, _ := filepath.Match(prefix, prefixPath); matched {
				for j := i; j <= len(parts); j++ {
					suffixPath := strings.Join(parts[j:], "/")
					if matchPathPattern(suffixPath, suffix) {
						return true
					}
				}
			}
		}
		return false
	}

	if pattern == "**" {
		return true
	}

	replaced := strings.ReplaceAll(pattern, "**", "*")
	matched, _ := filepath.Match(replaced, path)
	return matched
}

// ParsePatternList parses a comma-separated list of patterns into a slice.
// Example: "*.dat,*.txt" -> []string{"*.dat", "*.txt"}
func ParsePatternList(patternStr string) []string {
	if patternStr == "" {
		return nil
	}
	parts := strings.Split(patternStr, ",")
	patterns := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	return patterns
}
