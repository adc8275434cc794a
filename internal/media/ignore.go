package media

import (
	"fmt"

	"github.com/gobwas/glob"
)

// IgnoreSet matches filenames against user-configured glob patterns.
type IgnoreSet struct {
	globs []glob.Glob
}

func NewIgnoreSet(patterns []string) (IgnoreSet, error) {
	set := IgnoreSet{}
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		compiled, err := glob.Compile(pattern)
		if err != nil {
			return IgnoreSet{}, fmt.Errorf("compile ignore pattern %q: %w", pattern, err)
		}
		set.globs = append(set.globs, compiled)
	}
	return set, nil
}

// Match tests the base name of a path against every pattern.
func (set IgnoreSet) Match(path string) bool {
	if len(set.globs) == 0 {
		return false
	}
	base := baseName(path)
	for _, compiled := range set.globs {
		if compiled.Match(base) {
			return true
		}
	}
	return false
}

func (set IgnoreSet) Empty() bool {
	return len(set.globs) == 0
}

func baseName(path string) string {
	for index := len(path) - 1; index >= 0; index-- {
		if path[index] == '/' || path[index] == '\\' {
			return path[index+1:]
		}
	}
	return path
}
