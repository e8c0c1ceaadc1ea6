package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceOffsetDefaultsAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lyricast", "offsets.yaml")
	offsets, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultSourceOffsetMs, offsets.SourceOffset("org.mpris.MediaPlayer2.spotify"))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []SourceID{"org.mpris.MediaPlayer2.spotify"}, reloaded.Sources())
	assert.Equal(t, DefaultSourceOffsetMs, reloaded.SourceOffset("org.mpris.MediaPlayer2.spotify"))
}

func TestTotalCombinesManualAndSource(t *testing.T) {
	offsets := NewMemory()
	require.NoError(t, offsets.SetManual(300))
	require.NoError(t, offsets.SetSourceOffset("vlc", 50))

	assert.Equal(t, int64(350), offsets.Total("vlc"))
	assert.Equal(t, int64(100), offsets.Total("unseen"))
}

func TestAdjustManualRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offsets.yaml")
	offsets, err := Load(path)
	require.NoError(t, err)

	value, err := offsets.AdjustManual(100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), value)

	value, err = offsets.AdjustManual(-500)
	require.NoError(t, err)
	assert.Equal(t, int64(-400), value)

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(-400), reloaded.Manual())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	offsets, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.NoError(t, err)
	assert.Zero(t, offsets.Manual())
	assert.Empty(t, offsets.Sources())
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offsets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("manual_offset_ms: [oops"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offsets.yaml")
	content := "manual_offset_ms: -150\nsource_offsets_ms:\n  org.mpris.MediaPlayer2.spotify: 250\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	offsets, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(-150), offsets.Manual())
	assert.Equal(t, int64(100), offsets.Total("org.mpris.MediaPlayer2.spotify"))
}
