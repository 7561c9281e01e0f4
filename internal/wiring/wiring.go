// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/locus/internal/adapters/cache"
	_ "go.trai.ch/locus/internal/adapters/config"
	_ "go.trai.ch/locus/internal/adapters/daemon"
	_ "go.trai.ch/locus/internal/adapters/fs"
	_ "go.trai.ch/locus/internal/adapters/logger"
	_ "go.trai.ch/locus/internal/adapters/metrics"
	_ "go.trai.ch/locus/internal/adapters/telemetry"
	// Register app and engine nodes.
	_ "go.trai.ch/locus/internal/app"
	_ "go.trai.ch/locus/internal/engine/processor"
)
