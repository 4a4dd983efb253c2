package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the KeyValueStore contract against any backend.
func exerciseStore(t *testing.T, s KeyValueStore) {
	t.Helper()

	_, ok, err := s.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok, "missing key should report ok=false")

	require.NoError(t, s.Set("edge_sessions", `[{"user_id":1}]`))
	value, ok, err := s.Get("edge_sessions")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"user_id":1}]`, value)

	// Overwrite replaces the previous value
	require.NoError(t, s.Set("edge_sessions", "[]"))
	value, _, err = s.Get("edge_sessions")
	require.NoError(t, err)
	assert.Equal(t, "[]", value)

	require.NoError(t, s.Set("edge_current_user", "7"))
	require.NoError(t, s.Remove("edge_current_user"))
	_, ok, err = s.Get("edge_current_user")
	require.NoError(t, err)
	assert.False(t, ok, "removed key should be gone")

	// Removing twice is not an error
	require.NoError(t, s.Remove("edge_current_user"))

	// Other keys are untouched by Remove
	_, ok, err = s.Get("edge_sessions")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exerciseStore(t, s)
	assert.Equal(t, 1, s.Keys())

	require.NoError(t, s.Close())
	_, _, err := s.Get("edge_sessions")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Set("k", "v"), ErrClosed)
	assert.ErrorIs(t, s.Remove("k"), ErrClosed)
}

func TestSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Close())

	// Values survive reopening the file
	reopened, err := NewSQLite(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	value, ok, err := reopened.Get("edge_sessions")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", value)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	s := NewRedisStore(client, "switchboard:")
	defer s.Close()

	exerciseStore(t, s)

	// Keys are written under the prefix with no TTL
	assert.True(t, mr.Exists("switchboard:edge_sessions"))
	assert.Zero(t, mr.TTL("switchboard:edge_sessions"))
}

func TestRedisStoreFromConfig(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := NewRedisFromConfig(RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set("edge_current_user", "3"))
	assert.True(t, mr.Exists("switchboard:edge_current_user"), "default prefix should be applied")
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisFromConfig(RedisConfig{Addr: addr})
	assert.Error(t, err)
}

// TestMySQLStore needs a real server, e.g.
// SWITCHBOARD_TEST_MYSQL_DSN="root:root@tcp(localhost:3306)/switchboard".
func TestMySQLStore(t *testing.T) {
	dsn := os.Getenv("SWITCHBOARD_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("SWITCHBOARD_TEST_MYSQL_DSN not set")
	}

	owner := "test-" + t.Name()
	s, err := NewMySQLFromDSN(dsn, owner)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, s.Remove("edge_sessions"))
		assert.NoError(t, s.Remove("edge_current_user"))
		s.Close()
	})

	exerciseStore(t, s)

	// Another owner sharing the table sees nothing
	other, err := NewMySQLFromDSN(dsn, owner+"-other")
	require.NoError(t, err)
	defer other.Close()

	_, ok, err := other.Get("edge_sessions")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMySQLStoreUnavailable(t *testing.T) {
	_, err := NewMySQLFromDSN("user:pass@tcp(127.0.0.1:1)/switchboard?timeout=500ms", "default")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql: failed to connect")
}
