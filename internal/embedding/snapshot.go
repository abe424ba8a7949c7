package embedding

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Snapshot holds precomputed knowledge point embeddings so the semantic
// matcher can start without calling the embedding backend at all.
type Snapshot struct {
	Model      string               `json:"model"`
	Dimensions int                  `json:"dimensions"`
	Vectors    map[string][]float32 `json:"vectors"`
}

// SaveSnapshot writes a zstd-compressed JSON snapshot to path.
func SaveSnapshot(path string, snap *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	defer dst.Close()

	encoder, err := zstd.NewWriter(dst)
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}

	if err := json.NewEncoder(encoder).Encode(snap); err != nil {
		encoder.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return fmt.Errorf("close zstd encoder: %w", err)
	}

	return nil
}

// LoadSnapshot reads a zstd-compressed JSON snapshot from path.
func LoadSnapshot(path string) (*Snapshot, error) {
	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot file: %w", err)
	}
	defer src.Close()

	decoder, err := zstd.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer decoder.Close()

	var snap Snapshot
	if err := json.NewDecoder(decoder.IOReadCloser()).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	if snap.Vectors == nil {
		snap.Vectors = make(map[string][]float32)
	}

	return &snap, nil
}
