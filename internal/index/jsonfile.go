// Package index persists transcript metadata records.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"transcripthost/internal/domain"
)

// JSONFile keeps records as a pretty-printed JSON array, the metadata.json
// layout earlier deployments of the transcript host wrote. The mutex only
// serializes writers inside this process.
type JSONFile struct {
	path string
	mu   sync.Mutex
}

func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

func (j *JSONFile) Path() string { return j.path }

func (j *JSONFile) Append(_ context.Context, rec domain.TranscriptRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	records, err := j.load()
	if err != nil {
		return err
	}
	records = append(records, rec)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}
	tmp := filepath.Join(filepath.Dir(j.path), "."+filepath.Base(j.path)+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := os.Rename(tmp, j.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace metadata: %w", err)
	}
	return nil
}

func (j *JSONFile) List(_ context.Context) ([]domain.TranscriptRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.load()
}

func (j *JSONFile) Get(ctx context.Context, id string) (*domain.TranscriptRecord, error) {
	records, err := j.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == id {
			return &records[i], nil
		}
	}
	return nil, fmt.Errorf("%w: transcript %s", domain.ErrNotFound, id)
}

func (j *JSONFile) Close() error { return nil }

func (j *JSONFile) load() ([]domain.TranscriptRecord, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var records []domain.TranscriptRecord
	if len(data) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse metadata %s: %w", j.path, err)
	}
	return records, nil
}
