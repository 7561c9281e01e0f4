package cache

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/locus/internal/core/ports"
)

// NodeID is the unique identifier for the cache factory Graft node.
const NodeID graft.ID = "adapter.cache"

func init() {
	graft.Register(graft.Node[ports.CacheFactory]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.CacheFactory, error) {
			return NewFactory(), nil
		},
	})
}
