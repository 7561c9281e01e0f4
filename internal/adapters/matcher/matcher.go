// Package matcher implements the query predicates applied to candidate paths.
package matcher

import (
	"path/filepath"
	"strings"

	"github.com/sahilm/fuzzy"
	"go.trai.ch/locus/internal/core/domain"
	"go.trai.ch/locus/internal/core/ports"
	"go.trai.ch/zerr"
)

var (
	_ ports.Matcher = Fuzzy{}
	_ ports.Matcher = Substring{}
)

// New returns the matcher registered under name.
func New(name string) (ports.Matcher, error) {
	switch name {
	case domain.MatcherFuzzy, "":
		return Fuzzy{}, nil
	case domain.MatcherSubstring:
		return Substring{}, nil
	default:
		return nil, zerr.With(domain.ErrUnknownMatcher, "matcher", name)
	}
}

// Fuzzy matches when the query is a subsequence of the final path component.
type Fuzzy struct{}

// Match implements ports.Matcher.
func (Fuzzy) Match(query, candidatePath string) bool {
	if query == "" {
		return true
	}
	return len(fuzzy.Find(query, []string{base(candidatePath)})) > 0
}

// Substring matches when the final path component contains the query, ignoring case.
type Substring struct{}

// Match implements ports.Matcher.
func (Substring) Match(query, candidatePath string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(base(candidatePath)), strings.ToLower(query))
}

func base(path string) string {
	return filepath.Base(filepath.Clean(path))
}
