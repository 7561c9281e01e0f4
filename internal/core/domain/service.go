package domain

// Service is one discovered, matchable unit on disk.
// Two services are equal when their paths are equal.
type Service struct {
	Path string
}

// NewService wraps a legit path.
func NewService(path string) Service {
	return Service{Path: path}
}

// String returns the service path.
func (s Service) String() string {
	return s.Path
}

// NewServices wraps every path in paths.
func NewServices(paths []string) []Service {
	services := make([]Service, len(paths))
	for i, p := range paths {
		services[i] = NewService(p)
	}
	return services
}

// WalkResult is the outcome of walking one root.
type WalkResult struct {
	// Paths holds every emitted path in walk order.
	Paths []string
	// Diagnostics holds one error per subtree that could not be read.
	// They never abort the walk.
	Diagnostics []error
}

// Merge appends other to r.
func (r *WalkResult) Merge(other WalkResult) {
	r.Paths = append(r.Paths, other.Paths...)
	r.Diagnostics = append(r.Diagnostics, other.Diagnostics...)
}
