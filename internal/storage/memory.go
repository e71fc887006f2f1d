package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"transcripthost/internal/domain"
)

// MemoryConfig configures a Memory store.
type MemoryConfig struct {
	MaxSizeBytes int64
}

// Memory is an in-process BlobStore, used by tests and dry runs.
type Memory struct {
	mu           sync.RWMutex
	files        map[string]memoryFile
	maxSizeBytes int64
}

type memoryFile struct {
	data        []byte
	contentType string
	modTime     time.Time
}

func NewMemory(cfg MemoryConfig) *Memory {
	if cfg.MaxSizeBytes <= 0 {
		cfg.MaxSizeBytes = DefaultMaxSizeBytes
	}
	return &Memory{files: make(map[string]memoryFile), maxSizeBytes: cfg.MaxSizeBytes}
}

func (m *Memory) Put(ctx context.Context, name, contentType string, r io.Reader) (domain.StoredFile, error) {
	name, err := cleanName(name)
	if err != nil {
		return domain.StoredFile{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.StoredFile{}, err
	}
	data, err := io.ReadAll(io.LimitReader(r, m.maxSizeBytes+1))
	if err != nil {
		return domain.StoredFile{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > m.maxSizeBytes {
		return domain.StoredFile{}, fmt.Errorf("%w: more than %d bytes", domain.ErrFileTooLarge, m.maxSizeBytes)
	}
	if contentType == "" {
		contentType = contentTypeOf(name)
	}
	f := memoryFile{data: data, contentType: contentType, modTime: time.Now()}

	m.mu.Lock()
	m.files[name] = f
	m.mu.Unlock()

	return f.stored(name), nil
}

type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

func (m *Memory) Open(_ context.Context, name string) (io.ReadSeekCloser, domain.StoredFile, error) {
	m.mu.RLock()
	f, ok := m.files[name]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.StoredFile{}, fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}
	return readSeekNopCloser{bytes.NewReader(f.data)}, f.stored(name), nil
}

func (m *Memory) List(_ context.Context) ([]domain.StoredFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	files := make([]domain.StoredFile, 0, len(m.files))
	for name, f := range m.files {
		if name == MetadataFile {
			continue
		}
		files = append(files, f.stored(name))
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (m *Memory) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[name]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}
	delete(m.files, name)
	return nil
}

func (f memoryFile) stored(name string) domain.StoredFile {
	return domain.StoredFile{
		Name:        name,
		ContentType: f.contentType,
		Size:        int64(len(f.data)),
		ModTime:     f.modTime,
	}
}
