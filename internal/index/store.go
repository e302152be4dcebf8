// Package index implements the persistent vector index: one on-disk
// directory holding versioned snapshots of (embedding, chunk) pairs, with a
// CURRENT pointer file swapped atomically so readers always observe either
// the fully-old or the fully-new index.
package index

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"finrag-backend/models"

	"github.com/google/uuid"
)

const (
	manifestName = "manifest.json"
	vectorsName  = "vectors.bin"
	currentName  = "CURRENT"
	versionPfx   = "v-"
)

// Manifest describes one index snapshot: the chunk set plus batch metadata.
// Vectors live in a sibling binary file, ordered like Chunks.
type Manifest struct {
	BuiltAt    time.Time      `json:"built_at"`
	Files      []string       `json:"files"`
	TotalPages int            `json:"total_pages"`
	Dimensions int            `json:"dimensions"`
	Chunks     []models.Chunk `json:"chunks"`
}

// Store manages the index directory. The indexing pipeline is the sole
// writer (full replace per batch); query handlers are read-only consumers.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the index directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Exists reports whether a complete index snapshot is present on disk.
// Its result is the sole signal of "system has knowledge".
func (s *Store) Exists() bool {
	version, err := s.currentVersion()
	if err != nil {
		return false
	}
	_, err = os.Stat(filepath.Join(s.dir, version, manifestName))
	return err == nil
}

// Build writes a fresh snapshot and atomically makes it current, then prunes
// the previous snapshot. Readers holding the old snapshot are unaffected;
// new loads see only the new one.
func (s *Store) Build(m Manifest, vectors [][]float32) error {
	if len(vectors) != len(m.Chunks) {
		return fmt.Errorf("chunk/vector count mismatch: %d chunks, %d vectors", len(m.Chunks), len(vectors))
	}
	if len(vectors) == 0 {
		return fmt.Errorf("refusing to build an empty index")
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector %d dimension mismatch: got %d, expected %d", i, len(v), dim)
		}
	}
	m.Dimensions = dim

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	version := versionPfx + uuid.NewString()[:8]
	verDir := filepath.Join(s.dir, version)
	if err := os.MkdirAll(verDir, 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	if err := writeManifest(filepath.Join(verDir, manifestName), &m); err != nil {
		os.RemoveAll(verDir)
		return err
	}
	if err := writeVectors(filepath.Join(verDir, vectorsName), dim, vectors); err != nil {
		os.RemoveAll(verDir)
		return err
	}

	prev, _ := s.currentVersion()
	if err := s.swapCurrent(version); err != nil {
		os.RemoveAll(verDir)
		return err
	}
	if prev != "" && prev != version {
		os.RemoveAll(filepath.Join(s.dir, prev))
	}
	return nil
}

// Load opens the current snapshot. Callers get an immutable in-memory copy;
// a concurrent rebuild does not affect it.
func (s *Store) Load() (*Snapshot, error) {
	version, err := s.currentVersion()
	if err != nil {
		return nil, fmt.Errorf("no index available: %w", err)
	}
	verDir := filepath.Join(s.dir, version)

	data, err := os.ReadFile(filepath.Join(verDir, manifestName))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	vectors, err := readVectors(filepath.Join(verDir, vectorsName), m.Dimensions)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(m.Chunks) {
		return nil, fmt.Errorf("corrupt snapshot: %d chunks, %d vectors", len(m.Chunks), len(vectors))
	}
	return &Snapshot{Manifest: m, vectors: vectors}, nil
}

// Prune removes snapshot directories that are not current and older than
// maxAge. These are leftovers from builds that crashed before the swap.
func (s *Store) Prune(maxAge time.Duration) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	current, _ := s.currentVersion()
	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), versionPfx) || e.Name() == current {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		os.RemoveAll(filepath.Join(s.dir, e.Name()))
	}
	return nil
}

func (s *Store) currentVersion() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, currentName))
	if err != nil {
		return "", err
	}
	version := strings.TrimSpace(string(data))
	if version == "" {
		return "", fmt.Errorf("empty CURRENT pointer")
	}
	return version, nil
}

// swapCurrent replaces the CURRENT pointer via write-temp-then-rename.
func (s *Store) swapCurrent(version string) error {
	tmp := filepath.Join(s.dir, currentName+".tmp-"+uuid.NewString()[:8])
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create pointer temp: %w", err)
	}
	if _, err := f.WriteString(version + "\n"); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write pointer: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync pointer: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, currentName)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("swap pointer: %w", err)
	}
	return nil
}

func writeManifest(path string, m *Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return f.Sync()
}

// writeVectors persists embeddings as little-endian binary:
// dimension (4), count (4), then count*dimension float32 values in
// manifest chunk order.
func writeVectors(path string, dim int, vectors [][]float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vectors file: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(dim)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(vectors))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	buf := make([]byte, dim*4)
	for _, vec := range vectors {
		for i, v := range vec {
			binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(v))
		}
		if _, err := f.Write(buf); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return f.Sync()
}

func readVectors(path string, wantDim int) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vectors file: %w", err)
	}
	defer f.Close()
	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read dimensions: %w", err)
	}
	if wantDim != 0 && int(dim) != wantDim {
		return nil, fmt.Errorf("dimension mismatch: file has %d, manifest says %d", dim, wantDim)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	vectors := make([][]float32, 0, n)
	buf := make([]byte, int(dim)*4)
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4 : (j+1)*4]))
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

// Snapshot is an immutable, fully-loaded index version.
type Snapshot struct {
	Manifest
	vectors [][]float32
}

// Size returns the number of indexed chunks.
func (sn *Snapshot) Size() int {
	return len(sn.vectors)
}

// Search returns the k nearest chunks by squared L2 distance, ascending.
// Lower distance means higher similarity.
func (sn *Snapshot) Search(query []float32, k int) ([]models.RetrievalResult, error) {
	if len(query) != sn.Dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), sn.Dimensions)
	}
	if k <= 0 || len(sn.vectors) == 0 {
		return nil, nil
	}
	results := make([]models.RetrievalResult, len(sn.vectors))
	for i, vec := range sn.vectors {
		var dist float64
		for j := 0; j < sn.Dimensions; j++ {
			d := float64(query[j] - vec[j])
			dist += d * d
		}
		results[i] = models.RetrievalResult{Chunk: sn.Chunks[i], Distance: dist}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}
