package fetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karolbroda.com/lyricast/internal/cache"
	"karolbroda.com/lyricast/internal/lyrics"
	"karolbroda.com/lyricast/internal/nowplaying"
	"karolbroda.com/lyricast/internal/track"
)

type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]lyrics.Candidate
	errs    map[string]error
	gates   map[string]chan struct{}
	queries []string
	calls   atomic.Int32
}

func newFakeSearcher() *fakeSearcher {
	return &fakeSearcher{
		results: make(map[string][]lyrics.Candidate),
		errs:    make(map[string]error),
		gates:   make(map[string]chan struct{}),
	}
}

func (f *fakeSearcher) Search(ctx context.Context, title string, artist string) ([]lyrics.Candidate, error) {
	f.calls.Add(1)

	f.mu.Lock()
	f.queries = append(f.queries, title)
	gate := f.gates[title]
	results := f.results[title]
	err := f.errs[title]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}

	return results, err
}

func (f *fakeSearcher) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type exactSearcher struct {
	*fakeSearcher
	hit      lyrics.Candidate
	getCalls atomic.Int32
}

func (e *exactSearcher) Get(ctx context.Context, title string, artist string, durationSecs int64) (lyrics.Candidate, error) {
	e.getCalls.Add(1)
	if e.hit.SyncedLyrics == "" && e.hit.PlainLyrics == "" {
		return lyrics.Candidate{}, lyrics.ErrNotFound
	}
	return e.hit, nil
}

type fakeBatch struct {
	calls atomic.Int32
}

func (f *fakeBatch) Batch(ctx context.Context, set lyrics.LyricSet, title string, artist string) (lyrics.LyricSet, error) {
	f.calls.Add(1)
	lines := make([]lyrics.TimedLine, len(set.Lines))
	for i, line := range set.Lines {
		lines[i] = lyrics.TimedLine{OffsetMs: line.OffsetMs, Text: "romaji " + line.Text}
	}
	return set.WithLines(lines), nil
}

func synced(name string, durationSec float64, text string) lyrics.Candidate {
	return lyrics.Candidate{
		TrackName:    name,
		ArtistName:   "Band",
		DurationSec:  durationSec,
		SyncedLyrics: "[00:01.00]" + text,
	}
}

func newCoordinator(t *testing.T, store *nowplaying.Store, opts Options) *Coordinator {
	t.Helper()
	c, err := New(store, opts)
	require.NoError(t, err)
	t.Cleanup(c.Wait)
	return c
}

func TestFetchResolvesSyncedLyrics(t *testing.T) {
	store := nowplaying.NewStore()
	searcher := newFakeSearcher()
	searcher.results["Song"] = []lyrics.Candidate{synced("Song", 200, "hello")}

	song := track.New("Song", "Band", 200_000)
	store.UpdateTrack(song)

	c := newCoordinator(t, store, Options{Searcher: searcher})
	c.Fetch(song)
	c.Wait()

	snap := store.Snapshot()
	require.NotNil(t, snap.Lyrics)
	assert.Equal(t, lyrics.KindSynced, snap.Lyrics.Kind)
	assert.Equal(t, "hello", snap.Lyrics.Lines[0].Text)
	assert.Equal(t, StateResolved, c.LastOutcome())
	assert.Equal(t, StateIdle, c.State())
}

func TestFetchNoCandidatesIsNotFound(t *testing.T) {
	store := nowplaying.NewStore()
	song := track.New("Nothing", "Band", 0)
	store.UpdateTrack(song)

	c := newCoordinator(t, store, Options{Searcher: newFakeSearcher()})
	c.Fetch(song)
	c.Wait()

	snap := store.Snapshot()
	require.NotNil(t, snap.Lyrics)
	assert.Equal(t, lyrics.KindNotFound, snap.Lyrics.Kind)
	assert.Equal(t, lyrics.NoSyncedLyricsMessage, snap.DisplayText())
}

func TestFetchSearchFailurePublishesError(t *testing.T) {
	store := nowplaying.NewStore()
	searcher := newFakeSearcher()
	searcher.errs["Song"] = lyrics.ErrNetwork

	song := track.New("Song", "Band", 0)
	store.UpdateTrack(song)

	c := newCoordinator(t, store, Options{Searcher: searcher})
	c.Fetch(song)
	c.Wait()

	snap := store.Snapshot()
	require.NotNil(t, snap.Lyrics)
	assert.Equal(t, lyrics.KindError, snap.Lyrics.Kind)
	assert.NotEmpty(t, snap.Lyrics.Reason)
	assert.Equal(t, StateFailed, c.LastOutcome())
}

func TestLaterTrackWinsOverSlowEarlierFetch(t *testing.T) {
	store := nowplaying.NewStore()
	searcher := newFakeSearcher()
	gate := make(chan struct{})
	searcher.gates["X"] = gate
	searcher.results["X"] = []lyrics.Candidate{synced("X", 0, "from x")}
	searcher.results["Y"] = []lyrics.Candidate{synced("Y", 0, "from y")}

	x := track.New("X", "Band", 0)
	y := track.New("Y", "Band", 0)

	c := newCoordinator(t, store, Options{Searcher: searcher})

	store.UpdateTrack(x)
	c.Fetch(x)

	store.UpdateTrack(y)
	c.Fetch(y)

	close(gate)
	c.Wait()

	snap := store.Snapshot()
	require.NotNil(t, snap.Track)
	assert.Equal(t, "Y", snap.Track.Title)
	require.NotNil(t, snap.Lyrics)
	assert.Equal(t, "from y", snap.Lyrics.Lines[0].Text)
	assert.Equal(t, StateResolved, c.LastOutcome())
}

func TestFetchIsIdempotentForSameTrack(t *testing.T) {
	store := nowplaying.NewStore()
	searcher := newFakeSearcher()
	gate := make(chan struct{})
	searcher.gates["Song"] = gate
	searcher.results["Song"] = []lyrics.Candidate{synced("Song", 0, "line")}

	song := track.New("Song", "Band", 0)
	store.UpdateTrack(song)

	c := newCoordinator(t, store, Options{Searcher: searcher})
	c.Fetch(song)
	c.Fetch(song)
	close(gate)
	c.Wait()

	assert.Equal(t, int32(1), searcher.calls.Load())

	c.Fetch(song)
	c.Wait()
	assert.Equal(t, int32(1), searcher.calls.Load(), "resolved lyrics are not fetched again")
}

func TestCancelDiscardsResult(t *testing.T) {
	store := nowplaying.NewStore()
	searcher := newFakeSearcher()
	gate := make(chan struct{})
	searcher.gates["Song"] = gate
	searcher.results["Song"] = []lyrics.Candidate{synced("Song", 0, "line")}

	song := track.New("Song", "Band", 0)
	store.UpdateTrack(song)

	c := newCoordinator(t, store, Options{Searcher: searcher})
	c.Fetch(song)
	assert.Equal(t, StateFetching, c.State())

	c.Cancel()
	close(gate)
	c.Wait()

	assert.Nil(t, store.Snapshot().Lyrics)
	assert.Equal(t, StateCancelled, c.LastOutcome())
}

func TestFetchSkipsInvalidTrack(t *testing.T) {
	store := nowplaying.NewStore()
	searcher := newFakeSearcher()

	c := newCoordinator(t, store, Options{Searcher: searcher})
	c.Fetch(track.New("", "Band", 0))
	c.Wait()

	assert.Zero(t, searcher.calls.Load())
	assert.Equal(t, StateIdle, c.State())
}

func TestFetchSearchesTitleVariants(t *testing.T) {
	store := nowplaying.NewStore()
	searcher := newFakeSearcher()
	searcher.results["夜に駆ける"] = []lyrics.Candidate{synced("夜に駆ける", 0, "夜")}

	song := track.New("Yoru ni Kakeru - 夜に駆ける", "YOASOBI", 0)
	store.UpdateTrack(song)

	batch := &fakeBatch{}
	c := newCoordinator(t, store, Options{Searcher: searcher, Translator: batch})
	c.Fetch(song)
	c.Wait()

	assert.Equal(t, []string{"Yoru ni Kakeru - 夜に駆ける", "Yoru ni Kakeru", "夜に駆ける"}, searcher.Queries())

	snap := store.Snapshot()
	require.NotNil(t, snap.Lyrics)
	assert.Equal(t, "romaji 夜", snap.Lyrics.Lines[0].Text)
	assert.Equal(t, int32(1), batch.calls.Load())
}

func TestFetchSkipsConversionForRomanizedCandidate(t *testing.T) {
	store := nowplaying.NewStore()
	searcher := newFakeSearcher()
	romanized := synced("夜に駆ける (Romanized)", 0, "yoru ni kakeru")
	searcher.results["夜に駆ける"] = []lyrics.Candidate{romanized}

	song := track.New("夜に駆ける", "YOASOBI", 0)
	store.UpdateTrack(song)

	batch := &fakeBatch{}
	c := newCoordinator(t, store, Options{Searcher: searcher, Translator: batch})
	c.Fetch(song)
	c.Wait()

	assert.Zero(t, batch.calls.Load())
	require.NotNil(t, store.Snapshot().Lyrics)
	assert.Equal(t, "yoru ni kakeru", store.Snapshot().Lyrics.Lines[0].Text)
}

func TestExactMatchShortCircuitsSearch(t *testing.T) {
	store := nowplaying.NewStore()
	searcher := &exactSearcher{
		fakeSearcher: newFakeSearcher(),
		hit:          synced("Song", 180, "exact"),
	}

	song := track.New("Song", "Band", 180_000)
	store.UpdateTrack(song)

	c := newCoordinator(t, store, Options{Searcher: searcher})
	c.Fetch(song)
	c.Wait()

	assert.Equal(t, int32(1), searcher.getCalls.Load())
	assert.Zero(t, searcher.calls.Load())
	assert.Equal(t, "exact", store.Snapshot().Lyrics.Lines[0].Text)
}

func TestExactMatchMissFallsBackToSearch(t *testing.T) {
	store := nowplaying.NewStore()
	searcher := &exactSearcher{fakeSearcher: newFakeSearcher()}
	searcher.results["Song"] = []lyrics.Candidate{synced("Song", 0, "searched")}

	song := track.New("Song", "Band", 0)
	store.UpdateTrack(song)

	c := newCoordinator(t, store, Options{Searcher: searcher})
	c.Fetch(song)
	c.Wait()

	assert.Equal(t, int32(1), searcher.calls.Load())
	assert.Equal(t, "searched", store.Snapshot().Lyrics.Lines[0].Text)
}

func TestCacheRoundTrip(t *testing.T) {
	lyricCache := cache.NewMemory()
	searcher := newFakeSearcher()
	searcher.results["Song"] = []lyrics.Candidate{synced("Song", 0, "cached")}
	song := track.New("Song", "Band", 0)

	first := nowplaying.NewStore()
	first.UpdateTrack(song)
	c := newCoordinator(t, first, Options{Searcher: searcher, Cache: lyricCache})
	c.Fetch(song)
	c.Wait()
	require.Equal(t, int32(1), searcher.calls.Load())

	entry, err := lyricCache.Get("Band", "Song")
	require.NoError(t, err)
	assert.Equal(t, "cached", entry.Lyrics.Lines[0].Text)

	second := nowplaying.NewStore()
	second.UpdateTrack(song)
	c2 := newCoordinator(t, second, Options{Searcher: searcher, Cache: lyricCache})
	c2.Fetch(song)
	c2.Wait()

	assert.Equal(t, int32(1), searcher.calls.Load(), "second run served from cache")
	assert.Equal(t, "cached", second.Snapshot().Lyrics.Lines[0].Text)

	third := nowplaying.NewStore()
	third.UpdateTrack(song)
	c3 := newCoordinator(t, third, Options{Searcher: searcher, Cache: lyricCache, SkipCacheReads: true})
	c3.Fetch(song)
	c3.Wait()

	assert.Equal(t, int32(2), searcher.calls.Load())
}

func TestPartialSearchFailureStillResolves(t *testing.T) {
	store := nowplaying.NewStore()
	searcher := newFakeSearcher()
	searcher.errs["Title - Sub"] = errors.New("boom")
	searcher.results["Title"] = []lyrics.Candidate{synced("Title", 0, "ok")}

	song := track.New("Title - Sub", "Band", 0)
	store.UpdateTrack(song)

	c := newCoordinator(t, store, Options{Searcher: searcher})
	c.Fetch(song)

	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not finish")
	}

	require.NotNil(t, store.Snapshot().Lyrics)
	assert.Equal(t, lyrics.KindSynced, store.Snapshot().Lyrics.Kind)
}

func TestSearchMissesOnEveryVariantIsNotFound(t *testing.T) {
	store := nowplaying.NewStore()
	searcher := newFakeSearcher()
	searcher.errs["Song"] = lyrics.ErrNotFound

	song := track.New("Song", "Band", 0)
	store.UpdateTrack(song)

	c := newCoordinator(t, store, Options{Searcher: searcher})
	c.Fetch(song)
	c.Wait()

	snap := store.Snapshot()
	require.NotNil(t, snap.Lyrics)
	assert.Equal(t, lyrics.KindNotFound, snap.Lyrics.Kind)
	assert.Equal(t, lyrics.NoSyncedLyricsMessage, snap.DisplayText())
	assert.NotEqual(t, StateFailed, c.LastOutcome())
}
