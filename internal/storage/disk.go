package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"transcripthost/internal/domain"
)

// DiskConfig configures a Disk store.
type DiskConfig struct {
	Dir          string
	MaxSizeBytes int64 // <= 0 selects DefaultMaxSizeBytes
	Logger       *slog.Logger
}

// Disk stores blobs as plain files in a single directory.
type Disk struct {
	dir          string
	maxSizeBytes int64
	logger       *slog.Logger
}

// NewDisk creates the directory if needed.
func NewDisk(cfg DiskConfig) (*Disk, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("%w: storage directory", domain.ErrConfigurationMissing)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if cfg.MaxSizeBytes <= 0 {
		cfg.MaxSizeBytes = DefaultMaxSizeBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Disk{dir: cfg.Dir, maxSizeBytes: cfg.MaxSizeBytes, logger: cfg.Logger}, nil
}

func (d *Disk) Dir() string { return d.dir }

// Put writes r to a temporary file and renames it into place, so readers never
// observe a partial blob.
func (d *Disk) Put(ctx context.Context, name, contentType string, r io.Reader) (domain.StoredFile, error) {
	name, err := cleanName(name)
	if err != nil {
		return domain.StoredFile{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.StoredFile{}, err
	}

	tmp, err := os.CreateTemp(d.dir, ".upload-*")
	if err != nil {
		return domain.StoredFile{}, fmt.Errorf("create file: %w", err)
	}
	tmpPath := tmp.Name()

	written, err := io.Copy(tmp, io.LimitReader(r, d.maxSizeBytes+1))
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return domain.StoredFile{}, fmt.Errorf("write file: %w", err)
	}
	if written > d.maxSizeBytes {
		os.Remove(tmpPath)
		return domain.StoredFile{}, fmt.Errorf("%w: more than %d bytes", domain.ErrFileTooLarge, d.maxSizeBytes)
	}

	dst := filepath.Join(d.dir, name)
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return domain.StoredFile{}, fmt.Errorf("store file: %w", err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		return domain.StoredFile{}, fmt.Errorf("stat file: %w", err)
	}

	if contentType == "" {
		contentType = contentTypeOf(name)
	}
	d.logger.Info("file stored", "filename", name, "size", written, "mime_type", contentType)

	return domain.StoredFile{
		Name:        name,
		ContentType: contentType,
		Size:        written,
		ModTime:     info.ModTime(),
	}, nil
}

func (d *Disk) Open(_ context.Context, name string) (io.ReadSeekCloser, domain.StoredFile, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, domain.StoredFile{}, err
	}
	f, err := os.Open(filepath.Join(d.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.StoredFile{}, fmt.Errorf("%w: %s", domain.ErrNotFound, name)
		}
		return nil, domain.StoredFile{}, fmt.Errorf("open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, domain.StoredFile{}, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, domain.StoredFile{}, fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}
	return f, domain.StoredFile{
		Name:        name,
		ContentType: contentTypeOf(name),
		Size:        info.Size(),
		ModTime:     info.ModTime(),
	}, nil
}

// List returns stored files sorted by name. A missing directory is an empty store.
func (d *Disk) List(_ context.Context) ([]domain.StoredFile, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read storage dir: %w", err)
	}

	var files []domain.StoredFile
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || e.Name() == MetadataFile {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		files = append(files, domain.StoredFile{
			Name:        e.Name(),
			ContentType: contentTypeOf(e.Name()),
			Size:        info.Size(),
			ModTime:     info.ModTime(),
		})
	}
	return files, nil
}

func (d *Disk) Delete(_ context.Context, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(d.dir, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, name)
		}
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}
