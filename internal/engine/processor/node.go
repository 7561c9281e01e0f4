package processor

import (
	"context"

	"github.com/grindlemire/graft"
	"github.com/spf13/afero"
	"go.trai.ch/locus/internal/adapters/cache"     //nolint:depguard // Wired in engine wiring
	"go.trai.ch/locus/internal/adapters/fs"        //nolint:depguard // Wired in engine wiring
	"go.trai.ch/locus/internal/adapters/metrics"   //nolint:depguard // Wired in engine wiring
	"go.trai.ch/locus/internal/adapters/telemetry" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/locus/internal/core/ports"
)

// NodeID is the unique identifier for the processor factory Graft node.
const NodeID graft.ID = "engine.processor"

func init() {
	graft.Register(graft.Node[*Factory]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			fs.NodeID,
			cache.NodeID,
			telemetry.TracerNodeID,
			metrics.NodeID,
		},
		Run: func(ctx context.Context) (*Factory, error) {
			fsys, err := graft.Dep[afero.Fs](ctx)
			if err != nil {
				return nil, err
			}

			caches, err := graft.Dep[ports.CacheFactory](ctx)
			if err != nil {
				return nil, err
			}

			tracer, err := graft.Dep[ports.Tracer](ctx)
			if err != nil {
				return nil, err
			}

			recorder, err := graft.Dep[*metrics.Recorder](ctx)
			if err != nil {
				return nil, err
			}

			return NewFactory(fsys, caches, tracer, recorder), nil
		},
	})
}
