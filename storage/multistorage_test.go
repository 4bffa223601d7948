package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/nft-marketplace-backend/interfaces"
)

// MockStorageBackend implements interfaces.ContentStore for testing
type MockStorageBackend struct {
	mock.Mock
	name string
}

func (m *MockStorageBackend) Get(ctx context.Context, ref interfaces.ContentReference) ([]byte, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStorageBackend) Upload(ctx context.Context, data []byte) (interfaces.ContentReference, error) {
	args := m.Called(ctx, data)
	return args.Get(0).(interfaces.ContentReference), args.Error(1)
}

func (m *MockStorageBackend) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockStorageBackend) Name() string {
	return m.name
}

func (m *MockStorageBackend) LocationURI() string {
	return "mock:"
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMultiStorageBackend_Available(t *testing.T) {
	tests := []struct {
		name     string
		backends []bool
		expected bool
	}{
		{
			name:     "all backends available",
			backends: []bool{true, true, true},
			expected: true,
		},
		{
			name:     "some backends available",
			backends: []bool{false, true, false},
			expected: true,
		},
		{
			name:     "no backends available",
			backends: []bool{false, false, false},
			expected: false,
		},
		{
			name:     "no backends",
			backends: []bool{},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var backends []interfaces.ContentStore
			for i, available := range tt.backends {
				mockStorage := &MockStorageBackend{name: fmt.Sprintf("mock-A%x", i)}
				mockStorage.On("Available", mock.Anything).Return(available).Maybe()
				backends = append(backends, mockStorage)
			}

			multi := NewMultiStorageBackend(backends, discardLogger())
			assert.Equal(t, tt.expected, multi.Available(context.Background()))

			for _, backend := range backends {
				backend.(*MockStorageBackend).AssertExpectations(t)
			}
		})
	}
}

func TestMultiStorageBackend_Get(t *testing.T) {
	testData := []byte("test data")
	testRef, err := ComputeReference(testData)
	require.NoError(t, err)
	testErr := errors.New("test error")

	tests := []struct {
		name        string
		setupMocks  func() []interfaces.ContentStore
		expectData  []byte
		expectErr   bool
		expectErrIs error
	}{
		{
			name: "first backend successful",
			setupMocks: func() []interfaces.ContentStore {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Get", mock.Anything, testRef).Return(testData, nil)

				// not consulted
				mock2 := &MockStorageBackend{name: "mock-B"}

				return []interfaces.ContentStore{mock1, mock2}
			},
			expectData: testData,
		},
		{
			name: "first backend fails, second succeeds",
			setupMocks: func() []interfaces.ContentStore {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Get", mock.Anything, testRef).Return(nil, testErr)

				mock2 := &MockStorageBackend{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Get", mock.Anything, testRef).Return(testData, nil)

				return []interfaces.ContentStore{mock1, mock2}
			},
			expectData: testData,
		},
		{
			name: "all backends fail",
			setupMocks: func() []interfaces.ContentStore {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Get", mock.Anything, testRef).Return(nil, testErr)

				mock2 := &MockStorageBackend{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Get", mock.Anything, testRef).Return(nil, interfaces.ErrContentNotFound)

				return []interfaces.ContentStore{mock1, mock2}
			},
			expectErr:   true,
			expectErrIs: testErr,
		},
		{
			name: "missing everywhere",
			setupMocks: func() []interfaces.ContentStore {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Get", mock.Anything, testRef).Return(nil, interfaces.ErrContentNotFound)

				return []interfaces.ContentStore{mock1}
			},
			expectErr:   true,
			expectErrIs: interfaces.ErrContentNotFound,
		},
		{
			name: "unavailable backends are skipped",
			setupMocks: func() []interfaces.ContentStore {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(false)

				mock2 := &MockStorageBackend{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Get", mock.Anything, testRef).Return(testData, nil)

				return []interfaces.ContentStore{mock1, mock2}
			},
			expectData: testData,
		},
		{
			name: "nothing available",
			setupMocks: func() []interfaces.ContentStore {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(false)

				return []interfaces.ContentStore{mock1}
			},
			expectErr:   true,
			expectErrIs: interfaces.ErrBackendUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backends := tt.setupMocks()
			multi := NewMultiStorageBackend(backends, discardLogger())

			data, err := multi.Get(context.Background(), testRef)

			if tt.expectErr {
				assert.Error(t, err)
				if tt.expectErrIs != nil {
					assert.ErrorIs(t, err, tt.expectErrIs)
				}
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectData, data)

			for _, backend := range backends {
				backend.(*MockStorageBackend).AssertExpectations(t)
			}
		})
	}
}

func TestMultiStorageBackend_Upload(t *testing.T) {
	testData := []byte("test data")
	testRef, err := ComputeReference(testData)
	require.NoError(t, err)
	testErr := errors.New("test error")

	tests := []struct {
		name       string
		setupMocks func() []interfaces.ContentStore
		expectRef  interfaces.ContentReference
		expectErr  bool
	}{
		{
			name: "all backends successful",
			setupMocks: func() []interfaces.ContentStore {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Upload", mock.Anything, testData).Return(testRef, nil)

				mock2 := &MockStorageBackend{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Upload", mock.Anything, testData).Return(testRef, nil)

				return []interfaces.ContentStore{mock1, mock2}
			},
			expectRef: testRef,
		},
		{
			name: "some backends fail",
			setupMocks: func() []interfaces.ContentStore {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Upload", mock.Anything, testData).Return(interfaces.ContentReference(""), testErr)

				mock2 := &MockStorageBackend{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Upload", mock.Anything, testData).Return(testRef, nil)

				return []interfaces.ContentStore{mock1, mock2}
			},
			expectRef: testRef,
		},
		{
			name: "all backends fail",
			setupMocks: func() []interfaces.ContentStore {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Upload", mock.Anything, testData).Return(interfaces.ContentReference(""), testErr)

				mock2 := &MockStorageBackend{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Upload", mock.Anything, testData).Return(interfaces.ContentReference(""), testErr)

				return []interfaces.ContentStore{mock1, mock2}
			},
			expectErr: true,
		},
		{
			name: "unavailable backends are skipped",
			setupMocks: func() []interfaces.ContentStore {
				mock1 := &MockStorageBackend{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(false)

				mock2 := &MockStorageBackend{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Upload", mock.Anything, testData).Return(testRef, nil)

				return []interfaces.ContentStore{mock1, mock2}
			},
			expectRef: testRef,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backends := tt.setupMocks()
			multi := NewMultiStorageBackend(backends, discardLogger())

			ref, err := multi.Upload(context.Background(), testData)

			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectRef, ref)

			for _, backend := range backends {
				backend.(*MockStorageBackend).AssertExpectations(t)
			}
		})
	}
}

func TestMultiStorageBackend_UploadMirrorsDivergentReference(t *testing.T) {
	ctx := context.Background()
	data := []byte("large image bytes chunked by the first backend")

	chunked, err := ComputeReference([]byte("dag root"))
	require.NoError(t, err)
	raw, err := ComputeReference(data)
	require.NoError(t, err)

	first := &MockStorageBackend{name: "ipfs"}
	first.On("Available", mock.Anything).Return(true)
	first.On("Upload", mock.Anything, data).Return(chunked, nil)
	mirror := NewMemoryBackend("mirror", discardLogger())

	multi := NewMultiStorageBackend([]interfaces.ContentStore{first, mirror}, discardLogger())
	ref, err := multi.Upload(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, chunked, ref)

	stored, err := mirror.Get(ctx, chunked)
	require.NoError(t, err)
	assert.Equal(t, data, stored)
	stored, err = mirror.Get(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, data, stored)

	first.On("Get", mock.Anything, chunked).Return(nil, interfaces.ErrBackendUnavailable)
	fetched, err := multi.Get(ctx, chunked)
	require.NoError(t, err)
	assert.Equal(t, data, fetched)
	first.AssertExpectations(t)
}
