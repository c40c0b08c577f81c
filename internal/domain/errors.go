package domain

import "errors"

var (
	// ErrNotFound signals an unknown record id in an internal lookup. Given
	// index/store consistency this should not occur; treat as a fault.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidQuery signals an empty or whitespace-only query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrIngestion signals malformed source content. Fatal at startup.
	ErrIngestion = errors.New("ingestion failed")
	// ErrEmbeddingUnavailable signals that the embedding function cannot be
	// reached. Callers degrade to the lexical path, never fail the pipeline.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrLanguageService signals a failed or malformed language-capability
	// call. Callers fall back to rule-based behavior.
	ErrLanguageService = errors.New("language service error")
	// ErrIndexNotReady signals a query before the index snapshot is built.
	ErrIndexNotReady = errors.New("index not ready")
	// ErrSnapshotStale signals a persisted snapshot that no longer matches
	// the source content fingerprint.
	ErrSnapshotStale = errors.New("snapshot stale")
)
