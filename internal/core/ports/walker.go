// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"go.trai.ch/locus/internal/core/domain"
)

// Walker defines the interface for expanding one root into its legit paths.
//
//go:generate go run go.uber.org/mock/mockgen -source=walker.go -destination=mocks/mock_walker.go -package=mocks
type Walker interface {
	// Walk returns every path below root that the checker chain emits.
	// Unreadable subtrees are reported in the result's diagnostics, not as an error.
	Walk(ctx context.Context, root string) (domain.WalkResult, error)
}
