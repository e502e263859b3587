package kvstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestFileStore(t *testing.T, clock *fakeClock) *FileStore {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	fs.now = clock.Now
	t.Cleanup(func() { _ = fs.Close() })
	return fs
}

// backends returns every local backend with a controllable clock.
func backends(t *testing.T) map[string]struct {
	store Store
	clock *fakeClock
} {
	memClock := newFakeClock()
	fileClock := newFakeClock()
	return map[string]struct {
		store Store
		clock *fakeClock
	}{
		"memory": {store: NewMemory(WithClock(memClock.Now)), clock: memClock},
		"file":   {store: newTestFileStore(t, fileClock), clock: fileClock},
	}
}

func TestStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.store.Get(ctx, "aem_status:1")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, b.store.Set(ctx, "aem_status:1", []byte(`{"a":1}`), time.Hour))
			got, err := b.store.Get(ctx, "aem_status:1")
			require.NoError(t, err)
			assert.Equal(t, `{"a":1}`, string(got))

			require.NoError(t, b.store.Set(ctx, "aem_status:1", []byte(`{"a":2}`), time.Hour))
			got, err = b.store.Get(ctx, "aem_status:1")
			require.NoError(t, err)
			assert.Equal(t, `{"a":2}`, string(got), "last writer wins")

			require.NoError(t, b.store.Delete(ctx, "aem_status:1"))
			require.NoError(t, b.store.Delete(ctx, "aem_status:1"), "deleting twice is fine")
			_, err = b.store.Get(ctx, "aem_status:1")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.store.Set(ctx, "short", []byte("x"), time.Minute))
			require.NoError(t, b.store.Set(ctx, "forever", []byte("y"), 0))

			b.clock.Advance(59 * time.Second)
			_, err := b.store.Get(ctx, "short")
			require.NoError(t, err)

			b.clock.Advance(time.Second)
			_, err = b.store.Get(ctx, "short")
			require.ErrorIs(t, err, ErrNotFound)

			b.clock.Advance(24 * time.Hour)
			got, err := b.store.Get(ctx, "forever")
			require.NoError(t, err)
			assert.Equal(t, "y", string(got))
		})
	}
}

func TestStore_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.store.Set(ctx, "aem_gen:a", []byte("1"), 0))
			require.NoError(t, b.store.Set(ctx, "aem_gen:b", []byte("2"), 0))
			require.NoError(t, b.store.Set(ctx, "aem_status:c", []byte("3"), 0))

			pd, ok := b.store.(PrefixDeleter)
			require.True(t, ok)
			n, err := pd.DeletePrefix(ctx, "aem_gen:")
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			_, err = b.store.Get(ctx, "aem_gen:a")
			require.ErrorIs(t, err, ErrNotFound)
			_, err = b.store.Get(ctx, "aem_status:c")
			require.NoError(t, err)
		})
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	value := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", value, 0))
	value[0] = 'z'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
	got[1] = 'z'

	again, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestMemory_Sweep(t *testing.T) {
	clock := newFakeClock()
	m := NewMemory(WithClock(clock.Now))
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), time.Hour))

	clock.Advance(time.Minute)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())
}

func TestMemory_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory().Get(ctx, "k")
	require.ErrorIs(t, err, context.Canceled)
}

func TestFileStore_CompressesOnDisk(t *testing.T) {
	fs := newTestFileStore(t, newFakeClock())
	ctx := context.Background()
	payload := []byte(`{"artifact":"` + strings.Repeat("a", 512) + `"}`)
	require.NoError(t, fs.Set(ctx, "aem_result:1", payload, time.Hour))

	entries, err := os.ReadDir(fs.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, fileExt, filepath.Ext(entries[0].Name()))

	raw, err := os.ReadFile(filepath.Join(fs.Dir(), entries[0].Name()))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(raw), 4)
	assert.Equal(t, []byte{0x28, 0xb5, 0x2f, 0xfd}, raw[:4], "zstd frame magic")
	assert.Less(t, len(raw), len(payload))
}

func TestFileStore_CorruptEntryIsAnError(t *testing.T) {
	fs := newTestFileStore(t, newFakeClock())
	ctx := context.Background()
	require.NoError(t, os.WriteFile(fs.path("broken"), []byte("not zstd"), 0644))

	_, err := fs.Get(ctx, "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestNewFileStore_RequiresDir(t *testing.T) {
	_, err := NewFileStore("")
	require.Error(t, err)
}

func TestMetadataTime(t *testing.T) {
	ts := "2026-01-02T03:04:05Z"
	got, ok := metadataTime(map[string]*string{"Expiresat": &ts})
	require.True(t, ok)
	assert.Equal(t, 2026, got.Year())

	_, ok = metadataTime(map[string]*string{"other": &ts})
	assert.False(t, ok)
}

func TestBlobName(t *testing.T) {
	assert.Equal(t, "aem_status/123", blobName("aem_status:123"))
}
