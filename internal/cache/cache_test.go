package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saksham338101/menu-scanner1/internal/extract"
	"github.com/Saksham338101/menu-scanner1/internal/menu"
)

func TestMemory_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(time.Minute, 0)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "a", []byte("1")))
	got, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	now = now.Add(time.Minute)
	_, err = m.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss)
	assert.Zero(t, m.Len())
}

func TestMemory_Eviction(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0, 2)
	require.NoError(t, m.Set(ctx, "a", []byte("1")))
	require.NoError(t, m.Set(ctx, "b", []byte("2")))
	require.NoError(t, m.Set(ctx, "a", []byte("3")))
	require.NoError(t, m.Set(ctx, "c", []byte("4")))

	_, err := m.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrMiss)
	got, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), got)
	assert.Equal(t, 2, m.Len())
}

type countingExtractor struct {
	calls int
	res   *extract.Result
	err   error
}

func (c *countingExtractor) Extract(context.Context, extract.Image) (*extract.Result, error) {
	c.calls++
	return c.res, c.err
}

func TestCachedExtractor(t *testing.T) {
	ctx := context.Background()
	gen := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	next := &countingExtractor{res: &extract.Result{
		Items:       []menu.Item{{Name: "Pad Thai", Tags: []string{}}},
		GeneratedAt: gen,
		Rounds:      2,
	}}
	c := NewExtractor(next, NewMemory(time.Hour, 4), nil)
	img := extract.Image{Data: []byte("menu photo")}

	first, err := c.Extract(ctx, img)
	require.NoError(t, err)
	second, err := c.Extract(ctx, img)
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, first.Items[0].Name, second.Items[0].Name)
	assert.True(t, gen.Equal(second.GeneratedAt))
	assert.Equal(t, 2, second.Rounds)

	_, err = c.Extract(ctx, extract.Image{Data: []byte("another photo")})
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedExtractor_SkipsPartialAndErrors(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(time.Hour, 4)
	img := extract.Image{Data: []byte("menu photo")}

	partial := &countingExtractor{res: &extract.Result{Items: []menu.Item{{Name: "Soup"}}, Partial: true}}
	_, err := NewExtractor(partial, mem, nil).Extract(ctx, img)
	require.NoError(t, err)
	assert.Zero(t, mem.Len())

	failing := &countingExtractor{err: extract.ErrNoDishes}
	_, err = NewExtractor(failing, mem, nil).Extract(ctx, img)
	assert.ErrorIs(t, err, extract.ErrNoDishes)
	assert.Zero(t, mem.Len())
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, error) { return nil, errors.New("down") }
func (brokenCache) Set(context.Context, string, []byte) error    { return errors.New("down") }

func TestCachedExtractor_CacheFailureFallsThrough(t *testing.T) {
	next := &countingExtractor{res: &extract.Result{Items: []menu.Item{{Name: "Soup"}}}}
	res, err := NewExtractor(next, brokenCache{}, nil).Extract(context.Background(), extract.Image{Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, "Soup", res.Items[0].Name)
}

func TestImageKey(t *testing.T) {
	assert.Equal(t, ImageKey([]byte("a")), ImageKey([]byte("a")))
	assert.NotEqual(t, ImageKey([]byte("a")), ImageKey([]byte("b")))
	assert.Len(t, ImageKey(nil), len("extract:")+64)
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("MENUSCAN_TEST_REDIS")
	if addr == "" {
		t.Skip("MENUSCAN_TEST_REDIS not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	r := NewRedis(client, time.Minute)
	key := ImageKey([]byte(t.Name()))
	t.Cleanup(func() { client.Del(context.Background(), r.prefix+key) })

	_, err := r.Get(ctx, key)
	assert.ErrorIs(t, err, ErrMiss)
	require.NoError(t, r.Set(ctx, key, []byte("cached")))
	got, err := r.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("cached"), got)
}

func TestRedis_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	r := NewRedis(client, time.Minute)
	_, err := r.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}
