package ports

import "go.trai.ch/locus/internal/core/domain"

// ConfigLoader defines the interface for loading the engine configuration.
//
//go:generate go run go.uber.org/mock/mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads the configuration at path. An empty path asks the loader to
	// discover the configuration file itself.
	Load(path string) (*domain.Config, error)
}
