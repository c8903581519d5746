package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfigStore(t *testing.T) (*ConfigStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	return store, dir
}

func TestNewConfigStore_Success(t *testing.T) {
	store, dir := newTestConfigStore(t)
	assert.Equal(t, filepath.Join(dir, FileName), store.Path())
}

func TestNewConfigStore_NestedDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "deep")

	store, err := NewConfigStore(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(nested, FileName), store.Path())

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestNewConfigStore_MkdirAllError(t *testing.T) {
	store, err := NewConfigStore("/dev/null/cannot/create")
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewConfigStore_CorruptedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("not toml {{[["), 0o600))

	store, err := NewConfigStore(dir)
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestConfigStore_DottedKeysAreNestedOnDisk(t *testing.T) {
	store, dir := newTestConfigStore(t)

	require.NoError(t, store.Set("sync.priority", "PULL_PUSH"))
	require.NoError(t, store.Set("middle_store.bucket", "exchange"))
	require.NoError(t, store.Set("sync.max_records_per_upload", int64(50)))

	content, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(content), "[sync]")
	assert.Contains(t, string(content), "[middle_store]")

	cfg, err := Load(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Equal(t, "PULL_PUSH", cfg.Sync.Priority)
	assert.Equal(t, 50, cfg.Sync.MaxRecordsPerUpload)
	assert.Equal(t, "exchange", cfg.MiddleStore.Bucket)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, _ := newTestConfigStore(t)

	require.NoError(t, store.Set("sync.push_destination", "outbound"))
	require.NoError(t, store.Set("polling.max_attempts", int64(30)))
	require.NoError(t, store.Set("sync.resilient", true))
	require.NoError(t, store.Set("tags", []string{"a", "b"}))

	assert.Equal(t, "outbound", store.GetString("sync.push_destination"))
	assert.Equal(t, 30, store.GetInt("polling.max_attempts"))
	assert.True(t, store.GetBool("sync.resilient"))
	assert.Equal(t, []string{"a", "b"}, store.GetStringSlice("tags"))

	// Wrong types and missing keys fall back to zero values.
	assert.Empty(t, store.GetString("polling.max_attempts"))
	assert.Zero(t, store.GetInt("sync.push_destination"))
	assert.False(t, store.GetBool("missing"))
	assert.Nil(t, store.GetStringSlice("missing"))
}

func TestConfigStore_SaveReload(t *testing.T) {
	store, dir := newTestConfigStore(t)

	values := map[string]any{
		"sync.priority":              "PUSH",
		"polling.max_attempts":       int64(42),
		"middle_store.skip_cleanup":  true,
		"polling.backoff_multiplier": 1.5,
		"tags":                       []string{"x", "y"},
	}
	for key, value := range values {
		require.NoError(t, store.Set(key, value))
	}

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "PUSH", reloaded.GetString("sync.priority"))
	assert.Equal(t, 42, reloaded.GetInt("polling.max_attempts"))
	assert.True(t, reloaded.GetBool("middle_store.skip_cleanup"))
	assert.Equal(t, []string{"x", "y"}, reloaded.GetStringSlice("tags"))

	backoff, ok := reloaded.Get("polling.backoff_multiplier")
	require.True(t, ok)
	assert.InDelta(t, 1.5, backoff, 0.0001)
}

func TestConfigStore_LoadMissingFile(t *testing.T) {
	store, _ := newTestConfigStore(t)
	require.NoError(t, store.Set("sync.priority", "PUSH"))
	require.NoError(t, os.Remove(store.Path()))

	require.NoError(t, store.Load())
	_, ok := store.Get("sync.priority")
	assert.False(t, ok)
}

func TestConfigStore_CommentOnlyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("# nothing\n"), 0o600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	_, ok := store.Get("sync.priority")
	assert.False(t, ok)
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, _ := newTestConfigStore(t)
	require.NoError(t, store.Set("sync.priority", "PUSH"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestConfigStore_WriteError(t *testing.T) {
	store, _ := newTestConfigStore(t)
	require.NoError(t, store.Set("a", "b"))
	require.NoError(t, os.Remove(store.Path()))
	require.NoError(t, os.Mkdir(store.Path(), 0o700))

	assert.Error(t, store.Set("c", "d"))
}

func TestConfigStore_UnmarshallableValue(t *testing.T) {
	store, _ := newTestConfigStore(t)
	assert.Error(t, store.Set("channel", make(chan int)))
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, _ := newTestConfigStore(t)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("scheduler.enabled", n%2 == 0)
			_ = store.GetBool("scheduler.enabled")
		}(i)
	}
	wg.Wait()

	_, ok := store.Get("scheduler.enabled")
	assert.True(t, ok)
}

func TestUnflattenMap(t *testing.T) {
	nested := unflattenMap(map[string]any{
		"sync.priority":  "PUSH",
		"sync.resilient": true,
		"top":            int64(1),
	})
	assert.Equal(t, map[string]any{
		"sync": map[string]any{"priority": "PUSH", "resilient": true},
		"top":  int64(1),
	}, nested)
	assert.Equal(t, map[string]any{
		"sync.priority": "PUSH", "sync.resilient": true, "top": int64(1),
	}, flattenMap(nested, ""))
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, int64(50), ParseValue("50"))
	assert.Equal(t, 1.5, ParseValue("1.5"))
	assert.Equal(t, true, ParseValue("true"))
	assert.Equal(t, "PULL_PUSH", ParseValue("PULL_PUSH"))
}
