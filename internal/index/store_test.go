package index

import (
	"testing"
	"time"

	"finrag-backend/models"
)

func buildTestIndex(t *testing.T, store *Store, sources []string, vectors [][]float32) {
	t.Helper()

	chunks := make([]models.Chunk, len(vectors))
	for i := range vectors {
		chunks[i] = models.Chunk{
			ChunkID: sources[i],
			Source:  sources[i],
			Order:   i,
			Text:    "text for " + sources[i],
		}
	}
	m := Manifest{
		BuiltAt:    time.Now().UTC(),
		Files:      sources,
		TotalPages: len(sources),
		Chunks:     chunks,
	}
	if err := store.Build(m, vectors); err != nil {
		t.Fatalf("build failed: %v", err)
	}
}

func TestExistsBeforeAndAfterBuild(t *testing.T) {
	store := NewStore(t.TempDir())

	if store.Exists() {
		t.Fatal("empty store should not report an index")
	}

	buildTestIndex(t, store, []string{"a.pdf"}, [][]float32{{1, 0}})

	if !store.Exists() {
		t.Fatal("store should report an index after build")
	}
}

func TestSearchReturnsAscendingDistances(t *testing.T) {
	store := NewStore(t.TempDir())
	buildTestIndex(t, store,
		[]string{"far.pdf", "near.pdf", "mid.pdf"},
		[][]float32{{10, 0}, {1, 0}, {5, 0}})

	snap, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	results, err := snap.Search([]float32{0, 0}, 3)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Chunk.Source != "near.pdf" {
		t.Errorf("closest result should be near.pdf, got %s", results[0].Chunk.Source)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Errorf("distances not ascending at %d: %f < %f", i, results[i].Distance, results[i-1].Distance)
		}
	}
}

func TestSearchCapsKAtIndexSize(t *testing.T) {
	store := NewStore(t.TempDir())
	buildTestIndex(t, store, []string{"only.pdf"}, [][]float32{{1, 1}})

	snap, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	results, err := snap.Search([]float32{0, 0}, 8)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestSearchRejectsWrongDimension(t *testing.T) {
	store := NewStore(t.TempDir())
	buildTestIndex(t, store, []string{"a.pdf"}, [][]float32{{1, 0, 0}})

	snap, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if _, err := snap.Search([]float32{1, 0}, 1); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestBuildReplacesPreviousIndex(t *testing.T) {
	store := NewStore(t.TempDir())
	buildTestIndex(t, store, []string{"old.pdf"}, [][]float32{{1, 0}})
	buildTestIndex(t, store, []string{"new1.pdf", "new2.pdf"}, [][]float32{{0, 1}, {1, 1}})

	snap, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if snap.Size() != 2 {
		t.Fatalf("expected 2 chunks after rebuild, got %d", snap.Size())
	}
	for _, chunk := range snap.Chunks {
		if chunk.Source == "old.pdf" {
			t.Error("old index content survived a rebuild")
		}
	}
}

func TestLoadedSnapshotSurvivesRebuild(t *testing.T) {
	store := NewStore(t.TempDir())
	buildTestIndex(t, store, []string{"first.pdf"}, [][]float32{{1, 0}})

	snap, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	buildTestIndex(t, store, []string{"second.pdf"}, [][]float32{{0, 1}})

	// The old snapshot was loaded into memory and keeps answering.
	results, err := snap.Search([]float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("search on old snapshot failed: %v", err)
	}
	if results[0].Chunk.Source != "first.pdf" {
		t.Errorf("old snapshot should still serve first.pdf, got %s", results[0].Chunk.Source)
	}
}

func TestBuildValidatesInputs(t *testing.T) {
	store := NewStore(t.TempDir())

	err := store.Build(Manifest{Chunks: []models.Chunk{{ChunkID: "a"}}}, nil)
	if err == nil {
		t.Error("expected error on chunk/vector count mismatch")
	}

	err = store.Build(Manifest{}, nil)
	if err == nil {
		t.Error("expected error on empty index")
	}

	err = store.Build(
		Manifest{Chunks: []models.Chunk{{ChunkID: "a"}, {ChunkID: "b"}}},
		[][]float32{{1, 0}, {1, 0, 0}})
	if err == nil {
		t.Error("expected error on ragged vector dimensions")
	}
}

func TestVectorRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	vectors := [][]float32{{0.25, -1.5, 3.75}, {1e-7, 42.0, -0.125}}
	buildTestIndex(t, store, []string{"a.pdf", "b.pdf"}, vectors)

	snap, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if snap.Dimensions != 3 {
		t.Fatalf("expected 3 dimensions, got %d", snap.Dimensions)
	}

	// An exact-match query must come back at distance 0.
	results, err := snap.Search(vectors[1], 1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if results[0].Distance != 0 {
		t.Errorf("exact match should have distance 0, got %f", results[0].Distance)
	}
	if results[0].Chunk.Source != "b.pdf" {
		t.Errorf("expected b.pdf, got %s", results[0].Chunk.Source)
	}
}
