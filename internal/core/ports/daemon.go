package ports

import (
	"context"
	"time"

	"go.trai.ch/locus/internal/core/domain"
)

//go:generate go run go.uber.org/mock/mockgen -source=daemon.go -destination=mocks/mock_daemon.go -package=mocks

// DaemonStatus represents the current state of the daemon.
type DaemonStatus struct {
	Running       bool
	PID           int
	Uptime        time.Duration
	LastActivity  time.Time
	IdleRemaining time.Duration
	QueriesServed int64
}

// QueryResult is a query answer as seen by a client.
type QueryResult struct {
	// Payload is the framed record stream.
	Payload []byte
	// Diagnostics describes subtrees the walk could not read.
	Diagnostics []string
}

// DaemonClient defines the interface for communicating with the daemon.
type DaemonClient interface {
	// Ping checks if the daemon is alive and resets the inactivity timer.
	Ping(ctx context.Context) error

	// Query runs a query inside the daemon.
	Query(ctx context.Context, request string) (*QueryResult, error)

	// Invalidate empties the daemon's cache snapshot.
	Invalidate(ctx context.Context) error

	// Status returns the current daemon status.
	Status(ctx context.Context) (*DaemonStatus, error)

	// Shutdown requests a graceful daemon shutdown.
	Shutdown(ctx context.Context) error

	// Close releases client resources.
	Close() error
}

// DaemonConnector manages the daemon serving one configuration.
type DaemonConnector interface {
	// Connect returns a client to the daemon, spawning it if necessary.
	Connect(ctx context.Context, cfg *domain.Config) (DaemonClient, error)

	// Dial returns a client to an already running daemon.
	Dial(ctx context.Context, cfg *domain.Config) (DaemonClient, error)

	// IsRunning checks if the daemon for cfg is running and responsive.
	IsRunning(ctx context.Context, cfg *domain.Config) bool

	// SocketPath returns the unix socket the daemon for cfg listens on.
	SocketPath(cfg *domain.Config) string
}
