package ports

// Matcher decides whether a candidate path answers a query.
//
//go:generate go run go.uber.org/mock/mockgen -source=matcher.go -destination=mocks/mock_matcher.go -package=mocks
type Matcher interface {
	// Match must be a pure function of its arguments.
	Match(query, candidatePath string) bool
}
