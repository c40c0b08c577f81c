package health

import "context"

// IndexChecker reports whether the retrieval indexes are installed.
type IndexChecker interface {
	Ready() bool
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// CachePinger checks the optional embedding cache store.
type CachePinger interface {
	Ping(ctx context.Context) error
}
