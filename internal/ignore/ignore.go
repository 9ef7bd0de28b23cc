// Package ignore decides which entries are left out of synchronization.
package ignore

import (
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// List matches paths relative to a synchronized root against gitignore-style patterns.
// A nil *List matches nothing.
type List struct {
	patterns []string
	ignore   *gitignore.GitIgnore
}

func New(patterns ...string) *List {
	cleaned := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	return &List{patterns: cleaned, ignore: gitignore.CompileIgnoreLines(cleaned...)}
}

// ShouldIgnore reports whether the entry at relPath is excluded.
// Directory patterns ("build/") only match when isDir is set.
func (l *List) ShouldIgnore(relPath string, isDir bool) bool {
	if l == nil {
		return false
	}
	p := filepath.ToSlash(relPath)
	if isDir {
		p += "/"
	}
	return l.ignore.MatchesPath(p)
}

func (l *List) Patterns() []string {
	if l == nil {
		return nil
	}
	return l.patterns
}
