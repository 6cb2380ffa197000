package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/AVHub/internal/domain"
	"github.com/John-Robertt/AVHub/internal/infra/kv"
)

func TestKey_ParamOrderNeverMatters(t *testing.T) {
	a := Key("TubeWP", ResourceSearch, Params{"q": "a b", "page": "2"})
	b := Key("tubewp", ResourceSearch, Params{"page": "2", "q": "a b"})
	assert.Equal(t, a, b)
	assert.Equal(t, "avhub:tubewp:search?page=2&q=a+b", a)
	assert.Equal(t, "avhub:tubewp:categories", Key("tubewp", ResourceCategories, nil))
}

func TestCache_RoundTripAndForcedExpiry(t *testing.T) {
	ctx := context.Background()
	mem, err := kv.NewMemory(16)
	require.NoError(t, err)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mem.SetClock(func() time.Time { return now })

	c := New(mem, nil, nil)
	data := []domain.Video{{ID: "1", Title: "t", Provider: "tubewp"}}
	Set(ctx, c, "tubewp", ResourceVideos, data, time.Minute, Params{"page": "1"})

	got := Get[[]domain.Video](ctx, c, "tubewp", ResourceVideos, Params{"page": "1"})
	require.True(t, got.IsPresent())
	assert.Equal(t, data, got.MustGet())

	now = now.Add(time.Minute)
	assert.True(t, Get[[]domain.Video](ctx, c, "tubewp", ResourceVideos, Params{"page": "1"}).IsAbsent())
}

func TestCache_DefaultTTLAndOverrides(t *testing.T) {
	c := New(nil, map[string]time.Duration{ResourceSearch: time.Minute, ResourceVideos: 0}, nil)
	assert.Equal(t, time.Minute, c.TTL(ResourceSearch))
	assert.Equal(t, 30*time.Minute, c.TTL(ResourceVideos))
	assert.Equal(t, time.Hour, c.TTL(ResourceCategories))
	assert.Equal(t, 6*time.Hour, c.TTL(ResourceThumbnails))
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("down")
}
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}

func TestCache_StoreErrorsAreMisses(t *testing.T) {
	ctx := context.Background()
	c := New(failingStore{}, nil, nil)
	Set(ctx, c, "p", ResourceVideos, []int{1}, 0, nil)
	assert.True(t, Get[[]int](ctx, c, "p", ResourceVideos, nil).IsAbsent())

	var nilCache *Cache
	assert.True(t, Get[[]int](ctx, nilCache, "p", ResourceVideos, nil).IsAbsent())
}
