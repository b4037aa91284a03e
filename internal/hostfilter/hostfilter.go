// Package hostfilter decides which meeting hosts are archived.
package hostfilter

import (
	"path"
	"strings"
)

// Filter matches host emails against exact or "*"-wildcard patterns,
// ignoring case. A Filter with no patterns allows nothing.
type Filter struct {
	patterns []string
}

// New compiles the allow-list. Blank patterns are dropped.
func New(patterns []string) *Filter {
	f := &Filter{}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		f.patterns = append(f.patterns, p)
	}
	return f
}

// Allowed reports whether email matches any pattern.
func (f *Filter) Allowed(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, p := range f.patterns {
		if p == email {
			return true
		}
		if ok, err := path.Match(p, email); err == nil && ok {
			return true
		}
	}
	return false
}

// Patterns returns the normalized allow-list.
func (f *Filter) Patterns() []string {
	return append([]string(nil), f.patterns...)
}
