package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karolbroda.com/lyricast/internal/lyrics"
)

func syncedEntry() *LyricEntry {
	return &LyricEntry{
		TrackName:  "Song",
		ArtistName: "Band",
		Duration:   200,
		Lyrics:     lyrics.Synced([]lyrics.TimedLine{{OffsetMs: 100, Text: "hello"}}),
	}
}

func TestSetGetRoundTripThroughDisk(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, c.Set("Band", "Song", syncedEntry()))

	fresh, err := New(dir)
	require.NoError(t, err)

	entry, err := fresh.Get("band", "SONG")
	require.NoError(t, err)
	assert.Equal(t, lyrics.KindSynced, entry.Lyrics.Kind)
	assert.Equal(t, "hello", entry.Lyrics.Lines[0].Text)
	assert.Greater(t, entry.ExpiresAt, time.Now().Unix())
}

func TestSetRejectsSentinels(t *testing.T) {
	c := NewMemory()

	err := c.Set("Band", "Song", &LyricEntry{Lyrics: lyrics.NotFound("nope")})
	assert.Error(t, err)

	_, err = c.Get("Band", "Song")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestExpiredEntryIsRemoved(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)
	c.ttl = -time.Hour

	require.NoError(t, c.Set("Band", "Song", syncedEntry()))

	_, err = c.Get("Band", "Song")
	assert.ErrorIs(t, err, ErrCacheExpired)

	count, _, err := c.Stats()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCorruptFileIsReported(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)

	path := c.getFilePath(generateKey("Band", "Song"))
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	_, err = c.Get("Band", "Song")
	assert.ErrorIs(t, err, ErrCacheCorrupt)
}

func TestDeleteClearPrune(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, c.Set("Band", "One", syncedEntry()))
	require.NoError(t, c.Set("Band", "Two", syncedEntry()))

	entries, err := c.ListAll()
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	require.NoError(t, c.Delete("Band", "One"))
	_, err = c.Get("Band", "One")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.bin"), []byte("x"), 0o644))
	pruned, err := c.Prune()
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	require.NoError(t, c.Clear())
	count, _, err := c.Stats()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemoryListAll(t *testing.T) {
	c := NewMemory()
	require.NoError(t, c.Set("Band", "Song", syncedEntry()))

	entries, err := c.ListAll()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPruneDropsEntriesPastTTL(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, c.Set("Band", "Song", syncedEntry()))

	c.now = func() time.Time { return time.Now().Add(DefaultTTL + time.Hour) }

	pruned, err := c.Prune()
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	count, _, err := c.Stats()
	require.NoError(t, err)
	assert.Zero(t, count)
}
