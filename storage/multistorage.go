package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/nft-marketplace-backend/interfaces"
)

// KeyedStore is implemented by backends that can keep bytes under a
// reference computed by another backend.
type KeyedStore interface {
	StoreAs(ctx context.Context, ref interfaces.ContentReference, data []byte) error
}

var (
	_ KeyedStore = (*S3Backend)(nil)
	_ KeyedStore = (*FileBackend)(nil)
	_ KeyedStore = (*MemoryBackend)(nil)
)

// MultiStorageBackend implements interfaces.ContentStore over several
// backends: uploads go to every available backend, reads fall back in order.
type MultiStorageBackend struct {
	backends []interfaces.ContentStore
	log      *slog.Logger
}

var _ interfaces.ContentStore = (*MultiStorageBackend)(nil)

// NewMultiStorageBackend creates a new multi-storage backend with fallback.
func NewMultiStorageBackend(backends []interfaces.ContentStore, logger *slog.Logger) *MultiStorageBackend {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiStorageBackend{
		backends: backends,
		log:      logger,
	}
}

// Get returns the content from the first available backend that has it.
// ErrContentNotFound is returned only if every consulted backend reported
// the content missing.
func (m *MultiStorageBackend) Get(ctx context.Context, ref interfaces.ContentReference) ([]byte, error) {
	start := time.Now()
	var errs []error
	consulted := 0

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable",
				slog.String("backend_name", backend.Name()),
				slog.String("cid", ref.String()))
			continue
		}
		consulted++

		data, err := backend.Get(ctx, ref)
		if err == nil {
			m.log.Debug("Fetched content",
				slog.String("backend_name", backend.Name()),
				slog.String("cid", ref.String()),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Debug("Failed to fetch from backend",
			slog.String("backend_name", backend.Name()),
			slog.String("cid", ref.String()),
			"err", err)
	}

	if consulted == 0 {
		return nil, fmt.Errorf("fetch %s: %w", ref, interfaces.ErrBackendUnavailable)
	}

	m.log.Warn("All backends failed to fetch content",
		slog.String("cid", ref.String()),
		slog.Int("failed_backends", len(errs)),
		slog.Duration("duration", time.Since(start)))

	joined := errors.Join(errs...)
	if allNotFound(errs) {
		return nil, fmt.Errorf("fetch %s: %w", ref, interfaces.ErrContentNotFound)
	}
	return nil, fmt.Errorf("all backends failed to fetch %s: %w", ref, joined)
}

// Upload saves data to all available backends and returns the reference
// reported by the first backend that succeeded. Backends that computed a
// different reference also get a copy under the returned one when they
// implement KeyedStore, so they can serve it as a fallback.
func (m *MultiStorageBackend) Upload(ctx context.Context, data []byte) (interfaces.ContentReference, error) {
	start := time.Now()
	var result interfaces.ContentReference
	var errs []error
	var diverged []interfaces.ContentStore

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}

		ref, err := backend.Upload(ctx, data)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Warn("Failed to store to backend",
				slog.String("backend_name", backend.Name()),
				"err", err)
			continue
		}

		if result == "" {
			result = ref
			m.log.Info("Stored content",
				slog.String("backend_name", backend.Name()),
				slog.String("cid", ref.String()),
				slog.Int("size", len(data)),
				slog.Duration("duration", time.Since(start)))
		} else if result != ref {
			// Multi-chunk IPFS uploads are DAG-encoded and get a different CID.
			m.log.Warn("Inconsistent references from backends",
				slog.String("backend_name", backend.Name()),
				slog.String("expected_cid", result.String()),
				slog.String("actual_cid", ref.String()))
			diverged = append(diverged, backend)
		}
	}

	if result == "" {
		if len(errs) == 0 {
			return "", fmt.Errorf("upload: %w", interfaces.ErrBackendUnavailable)
		}
		m.log.Error("All backends failed to store data",
			slog.Int("failed_backends", len(errs)),
			slog.Duration("duration", time.Since(start)))
		return "", fmt.Errorf("all backends failed to store data: %w", errors.Join(errs...))
	}

	for _, backend := range diverged {
		keyed, ok := backend.(KeyedStore)
		if !ok {
			continue
		}
		if err := keyed.StoreAs(ctx, result, data); err != nil {
			m.log.Warn("Failed to mirror content under winning reference",
				slog.String("backend_name", backend.Name()),
				slog.String("cid", result.String()),
				"err", err)
		}
	}

	return result, nil
}

// Available checks if any backend is available.
func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns the name of this backend.
func (m *MultiStorageBackend) Name() string {
	return "multi-storage"
}

// LocationURI returns the combined URIs of the wrapped backends.
func (m *MultiStorageBackend) LocationURI() string {
	locations := make([]string, 0, len(m.backends))
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}
	return "multi:[" + strings.Join(locations, ",") + "]"
}

func allNotFound(errs []error) bool {
	for _, err := range errs {
		if !errors.Is(err, interfaces.ErrContentNotFound) {
			return false
		}
	}
	return len(errs) > 0
}
