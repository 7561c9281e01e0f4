package fs

import (
	"context"

	"github.com/grindlemire/graft"
	"github.com/spf13/afero"
)

// NodeID is the unique identifier for the filesystem Graft node.
const NodeID graft.ID = "adapter.fs"

func init() {
	graft.Register(graft.Node[afero.Fs]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (afero.Fs, error) {
			return afero.NewOsFs(), nil
		},
	})
}
