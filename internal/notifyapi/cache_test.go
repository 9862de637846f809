package notifyapi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	data   map[string]string
	getErr error
	setErr error
	ttls   map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *fakeStore) Get(_ context.Context, key string) *redis.StringCmd {
	if s.getErr != nil {
		return redis.NewStringResult("", s.getErr)
	}
	v, ok := s.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (s *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	if s.setErr != nil {
		return redis.NewStatusResult("", s.setErr)
	}
	s.data[key] = value.(string)
	s.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, serviceID, templateID string) (string, error) {
	args := m.Called(ctx, serviceID, templateID)
	return args.String(0), args.Error(1)
}

func TestCachedResolverCachesHits(t *testing.T) {
	next := new(mockResolver)
	next.On("Resolve", mock.Anything, "svc-1", "tpl-1").Return("Hello", nil).Once()
	store := newFakeStore()
	r := newCachedResolver(next, store, time.Minute, "tpl:", zap.NewNop())

	for i := 0; i < 3; i++ {
		content, err := r.Resolve(context.Background(), "svc-1", "tpl-1")
		require.NoError(t, err)
		assert.Equal(t, "Hello", content)
	}
	next.AssertNumberOfCalls(t, "Resolve", 1)
	assert.Equal(t, time.Minute, store.ttls["tpl:svc-1:tpl-1"])
}

func TestCachedResolverDoesNotCacheErrors(t *testing.T) {
	next := new(mockResolver)
	next.On("Resolve", mock.Anything, "svc-1", "tpl-1").Return("", &HTTPError{StatusCode: 503}).Once()
	next.On("Resolve", mock.Anything, "svc-1", "tpl-1").Return("Hello", nil).Once()
	store := newFakeStore()
	r := newCachedResolver(next, store, time.Minute, "", zap.NewNop())

	_, err := r.Resolve(context.Background(), "svc-1", "tpl-1")
	require.Error(t, err)
	assert.Empty(t, store.data)

	content, err := r.Resolve(context.Background(), "svc-1", "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, "Hello", content)
}

func TestCachedResolverFallsThroughOnCacheErrors(t *testing.T) {
	next := new(mockResolver)
	next.On("Resolve", mock.Anything, "svc-1", "tpl-1").Return("Hello", nil).Twice()
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	store.setErr = errors.New("connection refused")
	r := newCachedResolver(next, store, time.Minute, "", zap.NewNop())

	for i := 0; i < 2; i++ {
		content, err := r.Resolve(context.Background(), "svc-1", "tpl-1")
		require.NoError(t, err)
		assert.Equal(t, "Hello", content)
	}
	next.AssertExpectations(t)
}
