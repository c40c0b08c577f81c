package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/plantops/manualsearch/internal/domain"
	"github.com/plantops/manualsearch/internal/index/lexical"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Fingerprint: 0xdeadbeefcafe,
		Model:       "text-embedding-3-small",
		Dimensions:  3,
		Vectors:     [][]float32{{1, 0, 0}, {0, 0.6, 0.8}},
		Lexical: lexical.Stats{
			DocLengths: []int{5, 7},
			TermFreqs: []map[string]uint32{
				{"valve": 2, "sizing": 1},
				{"flow": 1, "characteristics": 2},
			},
		},
	}
}

func TestMarshalUnmarshal_Roundtrip(t *testing.T) {
	original := testSnapshot()

	decoded, err := Unmarshal(Marshal(original))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(decoded, original) {
		t.Errorf("decoded = %+v, want %+v", decoded, original)
	}
}

func TestUnmarshal_Garbage(t *testing.T) {
	if _, err := Unmarshal([]byte{0xff, 0x01, 0x02}); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.snapshot")
	original := testSnapshot()

	if err := Save(path, original); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path, original.Fingerprint, original.Model, len(original.Vectors))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(loaded, original) {
		t.Errorf("loaded = %+v, want %+v", loaded, original)
	}
}

func TestLoad_StaleFingerprint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.snapshot")
	s := testSnapshot()
	if err := Save(path, s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	_, err := Load(path, s.Fingerprint+1, s.Model, len(s.Vectors))
	if !errors.Is(err, domain.ErrSnapshotStale) {
		t.Errorf("err = %v, want ErrSnapshotStale", err)
	}
	if !IsRebuildReason(err) {
		t.Error("stale fingerprint must be a rebuild reason")
	}
}

func TestLoad_ModelChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.snapshot")
	s := testSnapshot()
	if err := Save(path, s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	_, err := Load(path, s.Fingerprint, "some-other-model", len(s.Vectors))
	if !errors.Is(err, domain.ErrSnapshotStale) {
		t.Errorf("err = %v, want ErrSnapshotStale", err)
	}
}

func TestLoad_VectorCountMismatch(t *testing.T) {
	// A lexical-only snapshot (no vectors) must not satisfy a server that
	// expects a semantic index over the same corpus.
	path := filepath.Join(t.TempDir(), "index.snapshot")
	s := testSnapshot()
	s.Vectors = nil
	if err := Save(path, s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	_, err := Load(path, s.Fingerprint, s.Model, 2)
	if !errors.Is(err, domain.ErrSnapshotStale) {
		t.Errorf("err = %v, want ErrSnapshotStale", err)
	}
	if !IsRebuildReason(err) {
		t.Error("vector count mismatch must be a rebuild reason")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.snapshot"), 1, "m", 0)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
	if !IsRebuildReason(err) {
		t.Error("missing file must be a rebuild reason")
	}
}

func TestHolder_NotReady(t *testing.T) {
	h := &Holder{}

	if h.Ready() {
		t.Error("Ready = true before install")
	}
	if _, err := h.Active(); !errors.Is(err, domain.ErrIndexNotReady) {
		t.Errorf("err = %v, want ErrIndexNotReady", err)
	}
}

func TestHolder_Install(t *testing.T) {
	h := &Holder{}
	idx := &Indexes{Lexical: lexical.New([]string{"doc"})}
	h.Install(idx)

	if !h.Ready() {
		t.Fatal("Ready = false after install")
	}
	got, err := h.Active()
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if got != idx {
		t.Error("Active returned a different index pair")
	}
}

func TestHolder_BuildOnce(t *testing.T) {
	h := &Holder{}
	builds := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.BuildOnce(func() (*Indexes, error) {
				builds++
				return &Indexes{Lexical: lexical.New([]string{"doc"})}, nil
			})
		}()
	}
	wg.Wait()

	if builds != 1 {
		t.Errorf("builds = %d, want 1", builds)
	}
	if !h.Ready() {
		t.Error("Ready = false after BuildOnce")
	}
}

func TestHolder_BuildOnceRetriesAfterFailure(t *testing.T) {
	h := &Holder{}

	err := h.BuildOnce(func() (*Indexes, error) {
		return nil, errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected build error")
	}
	if h.Ready() {
		t.Fatal("Ready = true after failed build")
	}

	err = h.BuildOnce(func() (*Indexes, error) {
		return &Indexes{Lexical: lexical.New([]string{"doc"})}, nil
	})
	if err != nil {
		t.Fatalf("retry BuildOnce: %v", err)
	}
	if !h.Ready() {
		t.Error("Ready = false after successful retry")
	}
}
