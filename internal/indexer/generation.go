package indexer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	currentFile  = "CURRENT"
	manifestFile = "manifest.json"
	genPrefix    = "gen-"
)

// Manifest describes one committed generation directory.
type Manifest struct {
	Generation     uint64    `json:"generation"`
	CreatedAt      time.Time `json:"createdAt"`
	Documents      int       `json:"documents"`
	Chunks         int       `json:"chunks"`
	ChunkSize      int       `json:"chunkSize"`
	ChunkOverlap   int       `json:"chunkOverlap"`
	DenseAvailable bool      `json:"denseAvailable"`
	EmbeddingModel string    `json:"embeddingModel,omitempty"`
	Dimensions     int       `json:"dimensions,omitempty"`
}

// GenerationDir returns the directory name of generation n.
func GenerationDir(dataDir string, n uint64) string {
	return filepath.Join(dataDir, fmt.Sprintf("%s%06d", genPrefix, n))
}

// readCurrent returns the generation named by dataDir/CURRENT, or 0 when
// nothing has been committed yet.
func readCurrent(dataDir string) (uint64, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, currentFile))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading CURRENT: %w", err)
	}
	return parseGeneration(strings.TrimSpace(string(data)))
}

// writeCurrent points CURRENT at generation n by writing a temp file and
// renaming it over the old pointer.
func writeCurrent(dataDir string, n uint64) error {
	path := filepath.Join(dataDir, currentFile)
	tmp := path + ".tmp"
	name := filepath.Base(GenerationDir(dataDir, n))
	if err := os.WriteFile(tmp, []byte(name+"\n"), 0644); err != nil {
		return fmt.Errorf("writing CURRENT: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming CURRENT: %w", err)
	}
	return nil
}

func parseGeneration(name string) (uint64, error) {
	if !strings.HasPrefix(name, genPrefix) {
		return 0, fmt.Errorf("invalid generation name %q", name)
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(name, genPrefix), 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid generation name %q", name)
	}
	return n, nil
}

// listGenerations returns the committed generation numbers under dataDir in
// ascending order. Temp directories are ignored.
func listGenerations(dataDir string) ([]uint64, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading data directory: %w", err)
	}
	var gens []uint64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if n, err := parseGeneration(e.Name()); err == nil {
			gens = append(gens, n)
		}
	}
	sort.Slice(gens, func(i, j int) bool { return gens[i] < gens[j] })
	return gens, nil
}

func writeManifest(dir string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), data, 0644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

func readManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return m, fmt.Errorf("reading manifest: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parsing manifest: %w", err)
	}
	return m, nil
}
