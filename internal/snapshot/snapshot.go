// Package snapshot persists the built index state to disk so restarts skip
// re-embedding an unchanged corpus. A snapshot is keyed by the content
// store's fingerprint and the embedding model; a mismatch on either means
// the snapshot is stale and the index must be rebuilt.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"

	"github.com/plantops/manualsearch/internal/domain"
	"github.com/plantops/manualsearch/internal/index/lexical"
)

// format version, bumped on any layout change.
const formatVersion = 1

// Snapshot is the serialized index state: semantic vectors plus lexical
// term statistics, with the provenance needed to detect staleness.
type Snapshot struct {
	Fingerprint uint64
	Model       string
	Dimensions  int
	Vectors     [][]float32
	Lexical     lexical.Stats
}

var (
	vectorSer    = ord.NewSliceSer[float32](raw.Float32)
	vectorsSer   = ord.NewSliceSer[[]float32](vectorSer)
	docLenSer    = ord.NewSliceSer[int](varint.Int)
	termFreqSer  = ord.NewMapSer[string, uint32](ord.String, varint.Uint32)
	termFreqsSer = ord.NewSliceSer[map[string]uint32](termFreqSer)
)

// Marshal encodes the snapshot.
func Marshal(s *Snapshot) []byte {
	size := varint.PositiveInt.Size(formatVersion) +
		raw.Uint64.Size(s.Fingerprint) +
		ord.String.Size(s.Model) +
		varint.Int.Size(s.Dimensions) +
		vectorsSer.Size(s.Vectors) +
		docLenSer.Size(s.Lexical.DocLengths) +
		termFreqsSer.Size(s.Lexical.TermFreqs)

	bs := make([]byte, size)
	n := varint.PositiveInt.Marshal(formatVersion, bs)
	n += raw.Uint64.Marshal(s.Fingerprint, bs[n:])
	n += ord.String.Marshal(s.Model, bs[n:])
	n += varint.Int.Marshal(s.Dimensions, bs[n:])
	n += vectorsSer.Marshal(s.Vectors, bs[n:])
	n += docLenSer.Marshal(s.Lexical.DocLengths, bs[n:])
	termFreqsSer.Marshal(s.Lexical.TermFreqs, bs[n:])
	return bs
}

// Unmarshal decodes a snapshot, rejecting unknown format versions.
func Unmarshal(bs []byte) (*Snapshot, error) {
	version, n, err := varint.PositiveInt.Unmarshal(bs)
	if err != nil {
		return nil, fmt.Errorf("snapshot version: %w", err)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("unsupported snapshot format version %d", version)
	}

	var s Snapshot
	var m int

	if s.Fingerprint, m, err = raw.Uint64.Unmarshal(bs[n:]); err != nil {
		return nil, fmt.Errorf("snapshot fingerprint: %w", err)
	}
	n += m
	if s.Model, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, fmt.Errorf("snapshot model: %w", err)
	}
	n += m
	if s.Dimensions, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return nil, fmt.Errorf("snapshot dimensions: %w", err)
	}
	n += m
	if s.Vectors, m, err = vectorsSer.Unmarshal(bs[n:]); err != nil {
		return nil, fmt.Errorf("snapshot vectors: %w", err)
	}
	n += m
	if s.Lexical.DocLengths, m, err = docLenSer.Unmarshal(bs[n:]); err != nil {
		return nil, fmt.Errorf("snapshot doc lengths: %w", err)
	}
	n += m
	if s.Lexical.TermFreqs, _, err = termFreqsSer.Unmarshal(bs[n:]); err != nil {
		return nil, fmt.Errorf("snapshot term freqs: %w", err)
	}

	return &s, nil
}

// Save writes the snapshot atomically (temp file + rename).
func Save(path string, s *Snapshot) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(Marshal(s)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("install snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot and verifies it against the expected fingerprint,
// embedding model and record count. A mismatch returns domain.ErrSnapshotStale;
// a missing file returns os.ErrNotExist (both mean: rebuild). The record count
// check rejects lexical-only snapshots (no vectors) when the server expects a
// semantic index.
func Load(path string, fingerprint uint64, model string, records int) (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	s, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if s.Fingerprint != fingerprint {
		return nil, fmt.Errorf("%w: content fingerprint changed", domain.ErrSnapshotStale)
	}
	if s.Model != model {
		return nil, fmt.Errorf("%w: embedding model changed from %q to %q",
			domain.ErrSnapshotStale, s.Model, model)
	}
	if len(s.Vectors) != records {
		return nil, fmt.Errorf("%w: snapshot has %d vectors for %d records",
			domain.ErrSnapshotStale, len(s.Vectors), records)
	}
	return s, nil
}

// IsRebuildReason reports whether a Load failure calls for a rebuild rather
// than an abort (missing file, stale content, garbage data).
func IsRebuildReason(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, domain.ErrSnapshotStale)
}
