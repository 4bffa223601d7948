package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/nft-marketplace-backend/interfaces"
)

// MemoryBackend keeps blobs in process memory. Used for tests and for
// running the read API against a throwaway store.
type MemoryBackend struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	name  string
	log   *slog.Logger
}

func NewMemoryBackend(name string, log *slog.Logger) *MemoryBackend {
	if log == nil {
		log = slog.Default()
	}
	if name == "" {
		name = "default"
	}
	return &MemoryBackend{
		blobs: make(map[string][]byte),
		name:  name,
		log:   log,
	}
}

func (b *MemoryBackend) Upload(ctx context.Context, data []byte) (interfaces.ContentReference, error) {
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
func (b *MemoryBackend) StoreAs(ctx context.Context, ref interfaces.ContentReference, data []byte) error {
	key, err := objectKey(ref)
	if err != nil {
		return err
	}

	stored := make([]byte, len(data))
	copy(stored, data)

	b.mu.Lock()
	b.blobs[key] = stored
	b.mu.Unlock()

	b.log.Debug("Stored content in memory",
		slog.String("cid", key),
		slog.Int("size", len(data)))
	return nil
}

func (b *MemoryBackend) Get(ctx context.Context, ref interfaces.ContentReference) ([]byte, error) {
	key, err := objectKey(ref)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	data, ok := b.blobs[key]
	b.mu.RUnlock()
	if !ok {
		return nil, interfaces.ErrContentNotFound
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (b *MemoryBackend) Available(ctx context.Context) bool {
	return true
}

func (b *MemoryBackend) Name() string {
	return fmt.Sprintf("memory-%s", b.name)
}

func (b *MemoryBackend) LocationURI() string {
	return fmt.Sprintf("memory://%s", b.name)
}

// Len returns the number of stored blobs.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.blobs)
}
