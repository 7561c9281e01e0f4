package ports

// Metrics receives engine counters.
//
//go:generate go run go.uber.org/mock/mockgen -source=metrics.go -destination=mocks/mock_metrics.go -package=mocks
type Metrics interface {
	// QueryServed counts one query call.
	QueryServed()
	// WalkStarted counts one root walk.
	WalkStarted()
	// CacheHit counts a query served from a populated snapshot.
	CacheHit()
	// CacheMiss counts a query that had to rebuild the snapshot.
	CacheMiss()
	// WalkDiagnostics counts subtrees skipped because they could not be read.
	WalkDiagnostics(n int)
}
