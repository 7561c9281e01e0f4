package fs

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
	"go.trai.ch/locus/internal/core/domain"
)

// Kind identifies a checker variant.
type Kind uint8

const (
	// KindHidden matches dotfiles and dot-directories.
	KindHidden Kind = iota + 1
	// KindIgnore matches configured ignore paths exactly.
	KindIgnore
	// KindSymlink matches symbolic links.
	KindSymlink
	// KindBundle matches terminal units: files and bundle directories.
	KindBundle
)

func (k Kind) String() string {
	switch k {
	case KindHidden:
		return "hidden"
	case KindIgnore:
		return "ignore"
	case KindSymlink:
		return "symlink"
	case KindBundle:
		return "bundle"
	default:
		return "unknown"
	}
}

// Checker is a boolean predicate over a path. The set of variants is closed.
// IsLegit never lists a directory.
type Checker struct {
	kind     Kind
	fs       afero.Fs
	ignored  map[string]struct{}
	suffixes []string
}

// Hidden returns a checker that is true iff the final path component's stem
// starts with a dot.
func Hidden() Checker {
	return Checker{kind: KindHidden}
}

// Ignore returns a checker that is true iff the cleaned path is one of paths.
func Ignore(paths []string) Checker {
	ignored := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		ignored[filepath.Clean(p)] = struct{}{}
	}
	return Checker{kind: KindIgnore, ignored: ignored}
}

// Symlink returns a checker that is true iff the path is a symbolic link on fsys.
func Symlink(fsys afero.Fs) Checker {
	return Checker{kind: KindSymlink, fs: fsys}
}

// Bundle returns the condition checker: true iff the path is not a directory,
// or is a directory whose extension is one of suffixes.
func Bundle(fsys afero.Fs, suffixes []string) Checker {
	return Checker{kind: KindBundle, fs: fsys, suffixes: slices.Clone(suffixes)}
}

// Kind returns the checker variant.
func (c Checker) Kind() Kind {
	return c.kind
}

// IsLegit applies the checker to path.
func (c Checker) IsLegit(path string) bool {
	switch c.kind {
	case KindHidden:
		return isHidden(path)
	case KindIgnore:
		_, ok := c.ignored[filepath.Clean(path)]
		return ok
	case KindSymlink:
		info, ok := lstat(c.fs, path)
		return ok && info.Mode()&os.ModeSymlink != 0
	case KindBundle:
		info, ok := lstat(c.fs, path)
		if !ok {
			return false
		}
		if !info.IsDir() {
			return true
		}
		return slices.Contains(c.suffixes, filepath.Ext(filepath.Clean(path)))
	default:
		return false
	}
}

// isHidden reports whether the stem of the final component starts with a dot.
// A stem is a prefix of the name, so this holds exactly when the name starts
// with a dot. "." and ".." have no stem.
func isHidden(path string) bool {
	name := filepath.Base(path)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return false
	}
	return strings.HasPrefix(name, ".")
}

// lstat prefers Lstat so links are reported as links, not as their targets.
func lstat(fsys afero.Fs, path string) (os.FileInfo, bool) {
	if l, ok := fsys.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err == nil
	}
	info, err := fsys.Stat(path)
	return info, err == nil
}

// Decision is the outcome of testing one path against a chain.
type Decision uint8

const (
	// Descend marks an intermediate directory whose children must be listed.
	Descend Decision = iota
	// Emit marks a terminal unit that becomes a result.
	Emit
	// Prune drops the path and everything below it.
	Prune
)

// Chain is one condition checker plus an ordered list of terminate checkers.
// It is immutable and safe for concurrent use.
type Chain struct {
	condition Checker
	terminate []Checker
}

// NewChain builds a chain from its parts.
func NewChain(condition Checker, terminate ...Checker) *Chain {
	return &Chain{condition: condition, terminate: slices.Clone(terminate)}
}

// NewChainFromConfig builds the standard chain for cfg: Hidden, Ignore and
// Symlink terminate, Bundle is the condition.
func NewChainFromConfig(fsys afero.Fs, cfg *domain.Config) *Chain {
	return NewChain(
		Bundle(fsys, cfg.BundleSuffixes),
		Hidden(),
		Ignore(cfg.IgnorePaths),
		Symlink(fsys),
	)
}

// Decide evaluates every terminate checker first, then the condition checker.
func (c *Chain) Decide(path string) Decision {
	for _, t := range c.terminate {
		if t.IsLegit(path) {
			return Prune
		}
	}
	if c.condition.IsLegit(path) {
		return Emit
	}
	return Descend
}
