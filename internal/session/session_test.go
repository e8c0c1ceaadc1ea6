package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karolbroda.com/lyricast/internal/cursor"
	"karolbroda.com/lyricast/internal/lyrics"
	"karolbroda.com/lyricast/internal/nowplaying"
	"karolbroda.com/lyricast/internal/prefs"
	"karolbroda.com/lyricast/internal/track"
)

type fakeFetcher struct {
	mu      sync.Mutex
	fetched []track.Track
	refetch int
	cancels int
}

func (f *fakeFetcher) Fetch(t track.Track) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, t)
}

func (f *fakeFetcher) Refetch() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refetch++
}

func (f *fakeFetcher) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
}

func (f *fakeFetcher) counts() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched), f.refetch, f.cancels
}

type fakePositions struct {
	pos   atomic.Int64
	polls atomic.Int32
}

func (f *fakePositions) Position() (int64, error) {
	f.polls.Add(1)
	return f.pos.Load(), nil
}

type fixture struct {
	session   *Session
	store     *nowplaying.Store
	fetcher   *fakeFetcher
	offsets   *prefs.Offsets
	positions *fakePositions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := nowplaying.NewStore()
	offsets := prefs.NewMemory()
	require.NoError(t, offsets.SetSourceOffset("test", 0))

	cur := cursor.New(store, offsets, nil, nil)
	cur.SetSource("test")

	f := &fixture{
		store:     store,
		fetcher:   &fakeFetcher{},
		offsets:   offsets,
		positions: &fakePositions{},
	}

	s, err := New(Options{
		Store:        store,
		Fetcher:      f.fetcher,
		Cursor:       cur,
		Offsets:      offsets,
		Positions:    f.positions,
		PollInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	f.session = s
	return f
}

func (f *fixture) attach(t *testing.T, title string, lines ...lyrics.TimedLine) {
	t.Helper()
	require.NoError(t, f.store.AttachLyrics(track.New(title, "Band", 0), lyrics.Synced(lines)))
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestTrackMetadataUpdatesStoreAndFetches(t *testing.T) {
	f := newFixture(t)

	f.session.OnTrackMetadata("Song", "Band", 180_000)

	snap := f.store.Snapshot()
	require.NotNil(t, snap.Track)
	assert.Equal(t, "Song", snap.Track.Title)
	assert.Equal(t, int64(180_000), snap.Track.DurationMs)

	fetched, _, _ := f.fetcher.counts()
	assert.Equal(t, 1, fetched)
}

func TestRepeatedMetadataDoesNotRefetchResolvedTrack(t *testing.T) {
	f := newFixture(t)

	f.session.OnTrackMetadata("Song", "Band", 0)
	f.session.OnTrackMetadata("Song", "Band", 0)
	fetched, _, _ := f.fetcher.counts()
	assert.Equal(t, 2, fetched, "nothing attached yet")

	require.NoError(t, f.store.AttachLyrics(track.New("Song", "Band", 0), lyrics.NotFound(lyrics.NoSyncedLyricsMessage)))
	f.session.OnTrackMetadata("Song", "Band", 200_000)

	fetched, _, _ = f.fetcher.counts()
	assert.Equal(t, 2, fetched)
	assert.Equal(t, int64(200_000), f.store.Snapshot().Track.DurationMs)
}

func TestEmptyMetadataClears(t *testing.T) {
	f := newFixture(t)
	f.session.OnTrackMetadata("Song", "Band", 0)

	f.session.OnTrackMetadata("", "Band", 0)

	assert.Nil(t, f.store.Snapshot().Track)
	assert.Equal(t, nowplaying.StatusWaiting, f.store.Snapshot().DisplayText())
	_, _, cancels := f.fetcher.counts()
	assert.Equal(t, 1, cancels)
}

func TestPositionTickSelectsLine(t *testing.T) {
	f := newFixture(t)
	f.session.OnTrackMetadata("Song", "Band", 0)
	f.attach(t, "Song",
		lyrics.TimedLine{OffsetMs: 0, Text: "A"},
		lyrics.TimedLine{OffsetMs: 1000, Text: "B"},
	)

	f.session.OnPositionTick(1500)

	snap := f.store.Snapshot()
	assert.Equal(t, int64(1500), snap.PositionMs)
	assert.Equal(t, "B", snap.DisplayText())
}

func TestManualOffsetRecomputes(t *testing.T) {
	f := newFixture(t)
	f.session.OnTrackMetadata("Song", "Band", 0)
	f.attach(t, "Song",
		lyrics.TimedLine{OffsetMs: 0, Text: "A"},
		lyrics.TimedLine{OffsetMs: 1000, Text: "B"},
	)
	f.session.OnPositionTick(900)
	require.Equal(t, "A", f.store.Snapshot().DisplayText())

	value, err := f.session.AdjustManualOffset(500)
	require.NoError(t, err)
	assert.Equal(t, int64(500), value)
	assert.Equal(t, "B", f.store.Snapshot().DisplayText())

	require.NoError(t, f.session.ResetManualOffset())
	assert.Zero(t, f.session.ManualOffset())
	assert.Equal(t, "A", f.store.Snapshot().DisplayText())
}

func TestTrackerRunsOnlyWhilePlaying(t *testing.T) {
	f := newFixture(t)
	f.session.OnTrackMetadata("Song", "Band", 0)
	f.positions.pos.Store(4200)

	assert.False(t, f.session.Tracking())

	f.session.OnPlaybackState(true)
	assert.True(t, f.session.Tracking())
	assert.Eventually(t, func() bool {
		return f.store.Snapshot().PositionMs == 4200
	}, time.Second, 5*time.Millisecond)

	_, refetch, _ := f.fetcher.counts()
	assert.Equal(t, 1, refetch, "play start retries acquisition")

	f.session.OnPlaybackState(false)
	assert.False(t, f.session.Tracking())
	assert.False(t, f.store.Snapshot().Playing)

	polls := f.positions.polls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, polls, f.positions.polls.Load(), "no polling while paused")
}

func TestSessionEndedClearsAndCancels(t *testing.T) {
	f := newFixture(t)
	f.session.OnTrackMetadata("Song", "Band", 0)
	f.session.OnPlaybackState(true)

	f.session.OnSessionEnded()

	assert.False(t, f.session.Tracking())
	assert.Nil(t, f.store.Snapshot().Track)
	_, _, cancels := f.fetcher.counts()
	assert.Equal(t, 1, cancels)
}

func TestCloseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.session.OnPlaybackState(true)

	f.session.Close()
	f.session.Close()

	assert.False(t, f.session.Tracking())
	f.session.OnPlaybackState(true)
	assert.False(t, f.session.Tracking(), "closed session never restarts tracking")
}

func TestAttachWhilePausedSelectsLine(t *testing.T) {
	f := newFixture(t)
	f.session.OnTrackMetadata("Song", "Band", 0)
	f.session.OnPositionTick(60_000)
	f.session.OnPlaybackState(false)

	f.attach(t, "Song",
		lyrics.TimedLine{OffsetMs: 0, Text: "A"},
		lyrics.TimedLine{OffsetMs: 50_000, Text: "B"},
		lyrics.TimedLine{OffsetMs: 90_000, Text: "C"},
	)

	assert.Eventually(t, func() bool {
		snap := f.store.Snapshot()
		return snap.ActiveIndex == 1 && snap.DisplayText() == "B"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(60_000), f.store.Snapshot().PositionMs)
}

func TestEmptyMetadataKeepsPlayState(t *testing.T) {
	f := newFixture(t)
	f.session.OnTrackMetadata("One", "Band", 0)
	f.session.OnPlaybackState(true)

	f.session.OnTrackMetadata("", "", 0)
	assert.True(t, f.store.Snapshot().Playing)
	assert.True(t, f.session.Tracking())

	f.session.OnTrackMetadata("Two", "Band", 0)

	snap := f.store.Snapshot()
	assert.True(t, snap.Playing)
	assert.Equal(t, nowplaying.StatusSearching, snap.DisplayText())
}
