package settings

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	assert.False(t, Defaults().IsFindCloseEnabled)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(Defaults())

	var changes []Change
	cancel := store.Watch(func(c Change) { changes = append(changes, c) })
	assert.Equal(t, 1, store.Watchers())

	require.NoError(t, store.Save(ctx, Settings{IsFindCloseEnabled: true}))
	require.NoError(t, store.Save(ctx, Settings{IsFindCloseEnabled: true}))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsFindCloseEnabled)

	require.Len(t, changes, 1, "saving the same value does not notify")
	assert.True(t, changes[0].EnabledChanged())
	assert.True(t, changes[0].New.IsFindCloseEnabled)

	cancel()
	assert.Equal(t, 0, store.Watchers())
	require.NoError(t, store.Save(ctx, Defaults()))
	assert.Len(t, changes, 1)
}

func TestWatchersRunInRegistrationOrder(t *testing.T) {
	store := NewMemoryStore(Defaults())
	var order []int
	for i := range 5 {
		store.Watch(func(Change) { order = append(order, i) })
	}
	require.NoError(t, store.Save(context.Background(), Settings{IsFindCloseEnabled: true}))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestFileStoreMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "settings.yaml"), nil)
	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Defaults(), got)
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "conf", "settings.yaml")
	store := NewFileStore(path, nil)

	require.NoError(t, store.Save(ctx, Settings{IsFindCloseEnabled: true}))
	_, err := os.Stat(path)
	require.NoError(t, err)

	got, err := NewFileStore(path, nil).Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsFindCloseEnabled)

	require.NoError(t, store.Save(ctx, Settings{IsFindCloseEnabled: false}))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, got.IsFindCloseEnabled)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("settings: [unclosed"), 0o644))

	got, err := NewFileStore(path, nil).Load(context.Background())
	assert.Error(t, err)
	assert.Equal(t, Defaults(), got, "defaults are returned with the error")
}

func TestFileStoreWatchesExternalEdits(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	writer := NewFileStore(path, nil)
	require.NoError(t, writer.Save(ctx, Defaults()))

	reader := NewFileStore(path, nil)
	_, err := reader.Load(ctx)
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []Change
	reader.Watch(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, c)
	})

	require.NoError(t, writer.Save(ctx, Settings{IsFindCloseEnabled: true}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1].New.IsFindCloseEnabled
	}, 5*time.Second, 20*time.Millisecond)
}
