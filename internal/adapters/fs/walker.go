// Package fs provides file system adapters for checking and walking paths.
package fs

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"go.trai.ch/locus/internal/core/domain"
	"go.trai.ch/locus/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Walker = (*Walker)(nil)

// Walker expands a root breadth-first over an explicit queue.
type Walker struct {
	fs    afero.Fs
	chain *Chain
}

// NewWalker creates a new Walker reading through fsys and deciding with chain.
func NewWalker(fsys afero.Fs, chain *Chain) *Walker {
	return &Walker{fs: fsys, chain: chain}
}

// Walk returns every path below root that the chain emits, in breadth-first
// order with siblings sorted by name.
//
// The root itself is tested first: it may be pruned or be a leaf. A directory
// that cannot be listed contributes nothing and is reported as a diagnostic;
// the walk continues with the remaining queue. Only cancellation of ctx stops
// the walk early.
func (w *Walker) Walk(ctx context.Context, root string) (domain.WalkResult, error) {
	var result domain.WalkResult

	root = filepath.Clean(root)
	switch w.chain.Decide(root) {
	case Prune:
		return result, nil
	case Emit:
		result.Paths = append(result.Paths, root)
		return result, nil
	case Descend:
	}

	queue := []string{root}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return result, zerr.With(zerr.Wrap(err, domain.ErrWalkFailed.Error()), "root", root)
		}

		dir := queue[0]
		queue[0] = ""
		queue = queue[1:]

		entries, err := afero.ReadDir(w.fs, dir)
		if err != nil {
			result.Diagnostics = append(result.Diagnostics,
				zerr.With(fmt.Errorf("%w: %w", domain.ErrDirReadFailed, err), "path", dir))
			continue
		}

		for _, entry := range entries {
			child := filepath.Join(dir, entry.Name())
			switch w.chain.Decide(child) {
			case Emit:
				result.Paths = append(result.Paths, child)
			case Descend:
				queue = append(queue, child)
			case Prune:
			}
		}
	}

	return result, nil
}
