package kv

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemory_RoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(8)
	require.NoError(t, err)
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m.SetClock(clk.now)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	got, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(got))

	has, err := Has(ctx, m, "k")
	require.NoError(t, err)
	assert.True(t, has)

	clk.advance(time.Minute)
	_, ok, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "到期后必须读回为不存在")
}

func TestMemory_ZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(0)
	require.NoError(t, err)
	clk := &fakeClock{t: time.Now()}
	m.SetClock(clk.now)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))
	clk.advance(24 * 365 * time.Hour)
	_, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)
}

func TestMemory_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(2)
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), 0))
	_, _, _ = m.Get(ctx, "a")
	require.NoError(t, m.Set(ctx, "c", []byte("3"), 0))

	_, ok, _ := m.Get(ctx, "b")
	assert.False(t, ok)
	assert.Equal(t, 2, m.Len())
}

func TestFile_RoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	f := NewFile("/cache/avhub-cache.json", fs)
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	f.SetClock(clk.now)

	require.NoError(t, f.Set(ctx, "a", []byte(`{"x":1}`), time.Hour))
	require.NoError(t, f.Set(ctx, "b", []byte(`2`), 0))

	got, ok, err := f.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"x":1}`, string(got))

	exists, err := afero.Exists(fs, "/cache/avhub-cache.json")
	require.NoError(t, err)
	assert.True(t, exists, "file 后端必须落盘")

	clk.advance(2 * time.Hour)
	_, ok, err = f.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = f.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedis_RoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	r, err := NewRedis("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	require.NoError(t, r.Set(ctx, "k", []byte("v"), time.Minute))
	got, ok, err := r.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(got))

	mr.FastForward(2 * time.Minute)
	_, ok, err = r.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpen(t *testing.T) {
	s, c, err := Open(Options{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
	assert.NoError(t, c.Close())

	_, _, err = Open(Options{Backend: "file"})
	assert.Error(t, err)

	_, _, err = Open(Options{Backend: "redis"})
	assert.Error(t, err)

	_, _, err = Open(Options{Backend: "nope"})
	assert.Error(t, err)
}
