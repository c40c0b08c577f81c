package snapshot

import (
	"sync"
	"sync/atomic"

	"github.com/plantops/manualsearch/internal/domain"
	"github.com/plantops/manualsearch/internal/index/lexical"
	"github.com/plantops/manualsearch/internal/index/semantic"
)

// Indexes is one immutable pair of query-time indices. Semantic may be nil
// when the embedding provider was unavailable at build time (lexical-only
// degraded mode).
type Indexes struct {
	Semantic *semantic.Index
	Lexical  *lexical.Index
}

// Holder publishes the active Indexes to query handlers. A rebuild installs
// a new pair atomically; readers never observe partial state. BuildOnce
// guards against concurrent first-request builds: exactly one caller runs
// the build, the rest wait on it and reuse the result.
type Holder struct {
	active atomic.Pointer[Indexes]

	mu    sync.Mutex
	built bool
}

// Active returns the current index pair, or domain.ErrIndexNotReady before
// the first build completes.
func (h *Holder) Active() (*Indexes, error) {
	idx := h.active.Load()
	if idx == nil {
		return nil, domain.ErrIndexNotReady
	}
	return idx, nil
}

// Ready reports whether an index pair has been installed.
func (h *Holder) Ready() bool {
	return h.active.Load() != nil
}

// Install atomically swaps in a new index pair.
func (h *Holder) Install(idx *Indexes) {
	h.active.Store(idx)
	h.mu.Lock()
	h.built = true
	h.mu.Unlock()
}

// BuildOnce runs build and installs its result, at most once per process.
// Concurrent callers block until the in-flight build finishes; later callers
// return immediately. A failed build may be retried by the next caller.
func (h *Holder) BuildOnce(build func() (*Indexes, error)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.built {
		return nil
	}
	idx, err := build()
	if err != nil {
		return err
	}
	h.active.Store(idx)
	h.built = true
	return nil
}
