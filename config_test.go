package articlestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, "articulos_db.txt", c.DatabasePath)
	assert.Equal(t, "articulos", c.BodiesDir)
	assert.Equal(t, 200, c.TableCapacity)
	assert.False(t, c.SyncWrites)
	assert.NotNil(t, c.Logger)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database_path: /data/db.txt\ntable_capacity: -3\nsync_writes: true\n"), 0644))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/db.txt", c.DatabasePath)
	assert.Equal(t, DefaultBodiesDir, c.BodiesDir)
	assert.Equal(t, DefaultTableCapacity, c.TableCapacity)
	assert.True(t, c.SyncWrites)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("table_capacity: [1, 2"), 0644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestOpenWithLoadedConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.yaml")
	yaml := "database_path: " + filepath.Join(dir, "db.txt") + "\n" +
		"bodies_dir: " + filepath.Join(dir, "bodies") + "\n" +
		"table_capacity: 7\n" +
		"sync_writes: true\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	c, err := LoadConfig(path)
	require.NoError(t, err)

	s, err := Open(FromConfig(c))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	assert.Equal(t, 7, s.Stats().Capacity)
	addText(t, s, "T", "A", 2000, "synced body")
	_, err = os.Stat(filepath.Join(dir, "bodies", DigestString([]byte("synced body"))+".txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "db.txt"))
	assert.NoError(t, err)
}
