package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/locus/internal/adapters/config"  //nolint:depguard // Wired in app layer
	"go.trai.ch/locus/internal/adapters/daemon"  //nolint:depguard // Wired in app layer
	"go.trai.ch/locus/internal/adapters/logger"  //nolint:depguard // Wired in app layer
	"go.trai.ch/locus/internal/adapters/metrics" //nolint:depguard // Wired in app layer
	"go.trai.ch/locus/internal/core/domain"
	"go.trai.ch/locus/internal/core/ports"
	"go.trai.ch/locus/internal/engine/processor"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			processor.NodeID,
			daemon.NodeID,
			logger.NodeID,
			metrics.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			app, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return NewComponents(app, log), nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}

	factory, err := graft.Dep[*processor.Factory](ctx)
	if err != nil {
		return nil, err
	}

	connector, err := graft.Dep[ports.DaemonConnector](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	recorder, err := graft.Dep[*metrics.Recorder](ctx)
	if err != nil {
		return nil, err
	}

	engines := EngineFactoryFunc(func(cfg *domain.Config) (Engine, error) {
		p, err := factory.New(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	return New(loader, engines, connector, log, recorder.Handler()), nil
}
