// Package store holds the immutable in-memory content collection built once
// at startup from ingested records. It is read-only after construction and
// safe for concurrent readers without locking.
package store

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/plantops/manualsearch/internal/domain"
)

// Store owns every ContentRecord for the process lifetime.
type Store struct {
	records     []domain.ContentRecord
	byID        map[string]int
	fingerprint uint64
}

// New validates the ingested records and builds the store. A single
// malformed record aborts construction with domain.ErrIngestion: bad source
// content is fatal at startup, never a runtime state.
func New(records []domain.ContentRecord) (*Store, error) {
	s := &Store{
		records: make([]domain.ContentRecord, 0, len(records)),
		byID:    make(map[string]int, len(records)),
	}

	h := xxhash.New()
	var pageBuf [8]byte

	for i := range records {
		r := records[i]
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrIngestion, err)
		}
		if _, dup := s.byID[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate record id %q", domain.ErrIngestion, r.ID)
		}
		s.byID[r.ID] = len(s.records)
		s.records = append(s.records, r)

		_, _ = h.WriteString(r.ID)
		_, _ = h.WriteString(r.Title)
		_, _ = h.WriteString(r.Body)
		binary.LittleEndian.PutUint64(pageBuf[:], uint64(r.Citation.PageNo))
		_, _ = h.Write(pageBuf[:])
	}
	s.fingerprint = h.Sum64()

	return s, nil
}

// All returns every record in stable insertion order. The returned slice is
// shared; callers must not mutate it.
func (s *Store) All() []domain.ContentRecord {
	return s.records
}

// Get returns the record with the given id, or domain.ErrNotFound.
func (s *Store) Get(id string) (*domain.ContentRecord, error) {
	idx, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return &s.records[idx], nil
}

// At returns the record at the given insertion ordinal, or domain.ErrNotFound.
func (s *Store) At(ordinal int) (*domain.ContentRecord, error) {
	if ordinal < 0 || ordinal >= len(s.records) {
		return nil, fmt.Errorf("%w: ordinal %d out of range", domain.ErrNotFound, ordinal)
	}
	return &s.records[ordinal], nil
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// CountByType returns how many records carry the given content type.
func (s *Store) CountByType(t domain.ContentType) int {
	n := 0
	for i := range s.records {
		if s.records[i].Type == t {
			n++
		}
	}
	return n
}

// Fingerprint is a content hash over ids, titles, bodies and pages in
// insertion order. Index snapshots are keyed by it: a snapshot built from a
// different corpus is stale regardless of age.
func (s *Store) Fingerprint() uint64 {
	return s.fingerprint
}
