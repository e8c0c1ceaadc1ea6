package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"karolbroda.com/lyricast/internal/cache"
	"karolbroda.com/lyricast/internal/logging"
	"karolbroda.com/lyricast/internal/lyrics"
	"karolbroda.com/lyricast/internal/nowplaying"
	"karolbroda.com/lyricast/internal/track"
)

type State int

const (
	StateIdle State = iota
	StateFetching
	StateResolved
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateResolved:
		return "resolved"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// BatchTranslator converts a whole synced set; it must return ctx.Err() when cancelled.
type BatchTranslator interface {
	Batch(ctx context.Context, set lyrics.LyricSet, title string, artist string) (lyrics.LyricSet, error)
}

// Cache persists resolved lyric sets between runs.
type Cache interface {
	Get(artist string, title string) (*cache.LyricEntry, error)
	Set(artist string, title string, entry *cache.LyricEntry) error
}

type Options struct {
	Searcher   lyrics.Searcher
	Reconciler *lyrics.Reconciler
	// Translator is optional; without it script lyrics are published unconverted.
	Translator BatchTranslator
	// Cache is optional.
	Cache Cache
	// SkipCacheReads still writes resolved sets but never serves them.
	SkipCacheReads bool
	Logger         *log.Logger
}

// Coordinator runs at most one acquisition pipeline at a time. Starting a fetch
// for a new track cancels the previous run; a run only publishes while its
// generation is still current.
type Coordinator struct {
	store      *nowplaying.Store
	searcher   lyrics.Searcher
	reconciler *lyrics.Reconciler
	translator BatchTranslator
	cache      Cache
	skipReads  bool
	log        *log.Logger

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	inFlight   *track.Track
	state      State
	last       State
	wg         sync.WaitGroup
}

func New(store *nowplaying.Store, opts Options) (*Coordinator, error) {
	if store == nil {
		return nil, errors.New("nil now playing store")
	}
	if opts.Searcher == nil {
		return nil, errors.New("nil lyrics searcher")
	}

	reconciler := opts.Reconciler
	if reconciler == nil {
		reconciler = lyrics.NewReconciler(nil)
	}

	return &Coordinator{
		store:      store,
		searcher:   opts.Searcher,
		reconciler: reconciler,
		translator: opts.Translator,
		cache:      opts.Cache,
		skipReads:  opts.SkipCacheReads,
		log:        logging.OrDiscard(opts.Logger),
	}, nil
}

// State is Fetching while a run is active and Idle otherwise.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastOutcome is the terminal state of the most recent finished run.
func (c *Coordinator) LastOutcome() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Fetch starts an acquisition run for t unless the store already holds lyrics
// with content for it or a run for the same track is in flight.
func (c *Coordinator) Fetch(t track.Track) {
	if !t.IsValid() {
		return
	}

	snap := c.store.Snapshot()
	if snap.Track != nil && snap.Track.SameIdentity(t) && snap.Lyrics != nil && snap.Lyrics.HasContent() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight != nil && c.inFlight.SameIdentity(t) {
		return
	}

	c.cancelLocked()

	c.generation++
	gen := c.generation
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	running := t
	c.inFlight = &running
	c.state = StateFetching

	c.wg.Add(1)
	go c.run(ctx, gen, t)
}

// Refetch re-runs acquisition for the store's current track when it lacks lyrics content.
func (c *Coordinator) Refetch() {
	snap := c.store.Snapshot()
	if snap.Track == nil {
		return
	}
	c.Fetch(*snap.Track)
}

// Cancel abandons any in-flight run without publishing.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
	c.generation++
}

// Wait blocks until every started run has returned.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) cancelLocked() {
	if c.inFlight != nil {
		c.last = StateCancelled
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.inFlight = nil
	c.state = StateIdle
}

func (c *Coordinator) run(ctx context.Context, gen uint64, t track.Track) {
	defer c.wg.Done()

	set, err := c.acquire(ctx, t)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || ctx.Err() != nil {
		c.log.Debug("discarding cancelled fetch", "track", t.String())
		c.finishLocked(gen, StateCancelled)
		return
	}

	outcome := StateResolved
	if err != nil {
		c.log.Warn("lyrics fetch failed", "track", t.String(), "err", err)
		set = lyrics.Failed(fmt.Sprintf("Lyrics unavailable: %v", err))
		outcome = StateFailed
	}

	// published under c.mu so a superseded run can never overwrite a newer one
	if err := c.store.AttachLyrics(t, set); err != nil {
		c.log.Debug("track changed before lyrics arrived", "track", t.String())
		outcome = StateCancelled
	} else {
		c.log.Info("lyrics resolved", "track", t.String(), "kind", set.Kind.String(), "lines", len(set.Lines))
	}

	c.finishLocked(gen, outcome)
}

func (c *Coordinator) finishLocked(gen uint64, outcome State) {
	if gen != c.generation {
		return
	}
	c.last = outcome
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.inFlight = nil
	c.state = StateIdle
}
