package domain

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"
)

const (
	// MatcherFuzzy selects subsequence matching on the final path component.
	MatcherFuzzy = "fuzzy"
	// MatcherSubstring selects case-insensitive substring matching on the final path component.
	MatcherSubstring = "substring"
)

// DefaultBundleSuffixes is used when a configuration does not list bundle suffixes.
var DefaultBundleSuffixes = []string{".app"}

// Config holds the static query-time settings of one engine.
// It is loaded once before any query and never modified afterwards.
type Config struct {
	// SourcePath is the file the configuration was read from, if any.
	SourcePath string
	// IgnorePaths are pruned by exact path membership.
	IgnorePaths []string
	// CachedRoots are walked once and snapshotted into the cache.
	CachedRoots []string
	// UpdatedRoots are walked fresh on every query.
	UpdatedRoots []string
	// BundleSuffixes mark directories that are indexed as one unit.
	BundleSuffixes []string
	// Matcher names the query predicate.
	Matcher string
	// CachePath is the location of the cache blob.
	CachePath string
}

// Validate reports whether the configuration can drive an engine.
func (c *Config) Validate() error {
	if len(c.CachedRoots) == 0 && len(c.UpdatedRoots) == 0 {
		return zerr.With(ErrNoRootsConfigured, "config", c.SourcePath)
	}
	switch c.Matcher {
	case MatcherFuzzy, MatcherSubstring:
	default:
		return zerr.With(ErrUnknownMatcher, "matcher", c.Matcher)
	}
	if c.CachePath == "" && len(c.CachedRoots) > 0 {
		return zerr.With(zerr.Wrap(ErrConfigInvalid, "cache path is empty"), "config", c.SourcePath)
	}
	return nil
}

// Fingerprint identifies everything that shapes the cached snapshot.
// Two configurations with the same fingerprint may share a cache blob.
func (c *Config) Fingerprint() string {
	return digest(
		section{"cached", c.CachedRoots},
		section{"ignore", c.IgnorePaths},
		section{"bundles", c.BundleSuffixes},
	)
}

// InstanceKey identifies the whole configuration, including its updated roots
// and matcher. A daemon serves exactly one instance key.
func (c *Config) InstanceKey() string {
	return digest(
		section{"source", []string{c.SourcePath}},
		section{"cached", c.CachedRoots},
		section{"updated", c.UpdatedRoots},
		section{"ignore", c.IgnorePaths},
		section{"bundles", c.BundleSuffixes},
		section{"matcher", []string{c.Matcher}},
		section{"cache", []string{c.CachePath}},
	)
}

type section struct {
	name   string
	values []string
}

func digest(sections ...section) string {
	d := xxhash.New()
	for _, s := range sections {
		_, _ = d.WriteString(s.name)
		_, _ = d.Write([]byte{0})
		for _, v := range s.values {
			_, _ = d.WriteString(v)
			_, _ = d.Write([]byte{0})
		}
		_, _ = d.Write([]byte{1})
	}
	return strconv.FormatUint(d.Sum64(), 16)
}
