package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/pricing"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMaterialRepository struct {
	mock.Mock
}

func (m *mockMaterialRepository) FindByID(ctx context.Context, id uuid.UUID) (*pricing.Material, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricing.Material), args.Error(1)
}

func (m *mockMaterialRepository) FindActive(ctx context.Context) ([]pricing.Material, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]pricing.Material), args.Error(1)
}

func (m *mockMaterialRepository) Save(ctx context.Context, material *pricing.Material) error {
	return m.Called(ctx, material).Error(0)
}

type memoryKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: make(map[string][]byte)}
}

func (kv *memoryKV) Get(ctx context.Context, key string) ([]byte, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.getErr != nil {
		return nil, kv.getErr
	}
	v, ok := kv.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (kv *memoryKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data[key] = value
	return nil
}

func (kv *memoryKV) Del(ctx context.Context, keys ...string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	for _, k := range keys {
		delete(kv.data, k)
	}
	return nil
}

func testMaterial(t *testing.T) *pricing.Material {
	t.Helper()
	m, err := pricing.NewMaterial("PLA Black", pricing.MaterialTypePLA, decimal.RequireFromString("0.02"), decimal.RequireFromString("1.24"))
	require.NoError(t, err)
	return m
}

func TestCachedMaterialRepository_FindByID(t *testing.T) {
	ctx := context.Background()
	repo := new(mockMaterialRepository)
	material := testMaterial(t)
	repo.On("FindByID", mock.Anything, material.ID).Return(material, nil).Once()

	cached := NewCachedMaterialRepository(repo, newMemoryKV(), time.Minute, nil)

	first, err := cached.FindByID(ctx, material.ID)
	require.NoError(t, err)
	second, err := cached.FindByID(ctx, material.ID)
	require.NoError(t, err)

	assert.Equal(t, material.Name, second.Name)
	assert.True(t, first.PricePerGram.Equal(second.PricePerGram))
	repo.AssertNumberOfCalls(t, "FindByID", 1)
}

func TestCachedMaterialRepository_MissesAreNotCached(t *testing.T) {
	ctx := context.Background()
	repo := new(mockMaterialRepository)
	id := uuid.New()
	repo.On("FindByID", mock.Anything, id).Return(nil, shared.ErrMaterialNotFound)

	cached := NewCachedMaterialRepository(repo, newMemoryKV(), time.Minute, nil)

	_, err := cached.FindByID(ctx, id)
	assert.ErrorIs(t, err, shared.ErrMaterialNotFound)
	_, err = cached.FindByID(ctx, id)
	assert.ErrorIs(t, err, shared.ErrMaterialNotFound)
	repo.AssertNumberOfCalls(t, "FindByID", 2)
}

func TestCachedMaterialRepository_SaveEvicts(t *testing.T) {
	ctx := context.Background()
	repo := new(mockMaterialRepository)
	material := testMaterial(t)
	repo.On("FindActive", mock.Anything).Return([]pricing.Material{*material}, nil).Twice()
	repo.On("Save", mock.Anything, material).Return(nil)

	cached := NewCachedMaterialRepository(repo, newMemoryKV(), time.Minute, nil)

	list, err := cached.FindActive(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	_, err = cached.FindActive(ctx)
	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "FindActive", 1)

	require.NoError(t, cached.Save(ctx, material))
	_, err = cached.FindActive(ctx)
	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "FindActive", 2)
}

func TestCachedMaterialRepository_CacheErrorFallsThrough(t *testing.T) {
	ctx := context.Background()
	repo := new(mockMaterialRepository)
	material := testMaterial(t)
	repo.On("FindByID", mock.Anything, material.ID).Return(material, nil)

	kv := newMemoryKV()
	kv.getErr = errors.New("connection refused")
	cached := NewCachedMaterialRepository(repo, kv, time.Minute, nil)

	got, err := cached.FindByID(ctx, material.ID)
	require.NoError(t, err)
	assert.Equal(t, material.ID, got.ID)
}
