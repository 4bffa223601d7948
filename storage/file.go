package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ruteri/nft-marketplace-backend/interfaces"
)

// FileBackend implements a storage backend using the local file system.
// Each blob is a file named by its CID.
type FileBackend struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileBackend creates a new file storage backend using the specified base directory.
func NewFileBackend(baseDir string, log *slog.Logger) (*FileBackend, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FileBackend{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// Get reads the blob stored under ref.
// Returns ErrContentNotFound if the file doesn't exist.
func (b *FileBackend) Get(ctx context.Context, ref interfaces.ContentReference) ([]byte, error) {
	key, err := objectKey(ref)
	if err != nil {
		return nil, err
	}
	filePath := filepath.Join(b.baseDir, key)

	data, err := os.ReadFile(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, interfaces.ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	b.log.Debug("Fetched content from file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return data, nil
}

// Upload writes data under its CID. Existing files are left untouched since
// equal names imply equal content.
func (b *FileBackend) Upload(ctx context.Context, data []byte) (interfaces.ContentReference, error) {
	ref, err := ComputeReference(data)
	if err != nil {
		return "", err
	}
	if err := b.StoreAs(ctx, ref, data); err != nil {
		return "", err
	}
	return ref, nil
}

// StoreAs stores data under ref as computed by another backend.
func (b *FileBackend) StoreAs(ctx context.Context, ref interfaces.ContentReference, data []byte) error {
	key, err := objectKey(ref)
	if err != nil {
		return err
	}
	filePath := filepath.Join(b.baseDir, key)

	if _, err := os.Stat(filePath); err == nil {
		return nil
	}

	// Write through a temporary file so readers never observe a partial blob.
	tmp, err := os.CreateTemp(b.baseDir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	b.log.Debug("Stored content in file",
		slog.String("path", filePath),
		slog.String("cid", ref.String()))
	return nil
}

// Available checks if the file backend is accessible by verifying the base directory exists.
func (b *FileBackend) Available(ctx context.Context) bool {
	_, err := os.Stat(b.baseDir)
	if err != nil {
		b.log.Debug("File backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *FileBackend) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

// LocationURI returns the URI that identifies this storage backend.
func (b *FileBackend) LocationURI() string {
	return b.locationURI
}
