package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"karolbroda.com/lyricast/internal/cursor"
	"karolbroda.com/lyricast/internal/logging"
	"karolbroda.com/lyricast/internal/nowplaying"
	"karolbroda.com/lyricast/internal/prefs"
	"karolbroda.com/lyricast/internal/track"
)

const DefaultPollInterval = 100 * time.Millisecond

// Fetcher is the acquisition side of a session.
type Fetcher interface {
	Fetch(t track.Track)
	Refetch()
	Cancel()
}

// Cursor maps positions onto the active line.
type Cursor interface {
	OnPositionUpdate(ctx context.Context, positionMs int64) (cursor.Change, bool)
	Refresh(ctx context.Context) (cursor.Change, bool)
	SetSource(src prefs.SourceID)
	Reset()
}

// PositionSource is polled for the playback position, in milliseconds, while playing.
type PositionSource interface {
	Position() (int64, error)
}

type Options struct {
	Store   *nowplaying.Store
	Fetcher Fetcher
	Cursor  Cursor
	Offsets *prefs.Offsets
	// Positions is optional; without it positions only arrive through OnPositionTick.
	Positions    PositionSource
	PollInterval time.Duration
	Logger       *log.Logger
}

// Session is the process root joining the platform listener, the fetch
// coordinator, the cursor and the store. Its On* methods are the only inputs
// the core accepts from the platform layer.
type Session struct {
	store     *nowplaying.Store
	fetcher   Fetcher
	cursor    Cursor
	offsets   *prefs.Offsets
	positions PositionSource
	interval  time.Duration
	log       *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	unsubscribe func()
	followDone  chan struct{}

	mu          sync.Mutex
	stopTracker context.CancelFunc
	trackerDone chan struct{}
	closed      bool
}

func New(opts Options) (*Session, error) {
	if opts.Store == nil {
		return nil, errors.New("nil now playing store")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("nil fetcher")
	}
	if opts.Cursor == nil {
		return nil, errors.New("nil cursor")
	}

	offsets := opts.Offsets
	if offsets == nil {
		offsets = prefs.NewMemory()
	}

	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		store:     opts.Store,
		fetcher:   opts.Fetcher,
		cursor:    opts.Cursor,
		offsets:   offsets,
		positions: opts.Positions,
		interval:  interval,
		log:       logging.OrDiscard(opts.Logger),
		ctx:       ctx,
		cancel:    cancel,
	}

	snaps, unsubscribe := s.store.Subscribe()
	s.unsubscribe = unsubscribe
	s.followDone = make(chan struct{})
	go s.followLyrics(snaps, s.followDone)

	return s, nil
}

func (s *Session) Store() *nowplaying.Store { return s.store }

// OnTrackMetadata handles new metadata. Empty title or artist clears the state.
func (s *Session) OnTrackMetadata(title string, artist string, durationMs int64) {
	t := track.New(title, artist, durationMs)
	if !t.IsValid() {
		s.log.Debug("metadata without title or artist, clearing")
		s.fetcher.Cancel()
		s.store.ClearTrack()
		s.cursor.Reset()
		return
	}

	if s.store.UpdateTrack(t) {
		s.log.Info("track changed", "track", t.String())
		s.cursor.Reset()
		s.fetcher.Fetch(t)
		return
	}

	// repeated metadata for the same song only fetches when nothing was ever attached
	if s.store.Snapshot().Lyrics == nil {
		s.fetcher.Fetch(t)
	}
}

// OnPlaybackState starts the position tracker while playing and stops it otherwise.
// Starting playback also retries acquisition when lyrics are still missing.
func (s *Session) OnPlaybackState(playing bool) {
	s.store.SetPlaying(playing)

	if !playing {
		s.haltTracker()
		return
	}

	s.startTracker()
	s.fetcher.Refetch()
}

func (s *Session) OnPositionTick(positionMs int64) {
	if positionMs < 0 {
		positionMs = 0
	}

	s.store.UpdatePosition(positionMs)
	if change, ok := s.cursor.OnPositionUpdate(s.ctx, positionMs); ok {
		s.log.Debug("active line changed", "index", change.Index, "adjusted_ms", change.AdjustedMs)
	}
}

// OnSessionEnded forgets everything about the player that went away.
func (s *Session) OnSessionEnded() {
	s.log.Info("media session ended")
	s.haltTracker()
	s.fetcher.Cancel()
	s.store.Clear()
	s.cursor.Reset()
}

// SetSource names the player whose positions are being reported.
func (s *Session) SetSource(src prefs.SourceID) {
	s.cursor.SetSource(src)
	s.recompute()
}

// AdjustManualOffset shifts the manual calibration and returns the new value.
func (s *Session) AdjustManualOffset(deltaMs int64) (int64, error) {
	value, err := s.offsets.AdjustManual(deltaMs)
	s.recompute()
	return value, err
}

func (s *Session) ResetManualOffset() error {
	err := s.offsets.SetManual(0)
	s.recompute()
	return err
}

func (s *Session) ManualOffset() int64 {
	return s.offsets.Manual()
}

func (s *Session) Refetch() {
	s.fetcher.Refetch()
}

// Close stops the tracker and abandons any fetch. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.haltTracker()
	s.fetcher.Cancel()
	s.unsubscribe()
	<-s.followDone
	s.cancel()
}

func (s *Session) recompute() {
	s.cursor.Refresh(s.ctx)
}

// followLyrics re-selects the active line whenever a lyric set is attached,
// including while paused when no position ticks arrive.
func (s *Session) followLyrics(snaps <-chan nowplaying.Snapshot, done chan struct{}) {
	defer close(done)

	var seen uint64
	for snap := range snaps {
		if snap.Lyrics == nil || snap.Generation == seen {
			continue
		}
		seen = snap.Generation
		s.recompute()
	}
}

func (s *Session) startTracker() {
	if s.positions == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.stopTracker != nil {
		return
	}

	ctx, stop := context.WithCancel(s.ctx)
	done := make(chan struct{})
	s.stopTracker = stop
	s.trackerDone = done

	go s.track(ctx, done)
}

func (s *Session) haltTracker() {
	s.mu.Lock()
	stop := s.stopTracker
	done := s.trackerDone
	s.stopTracker = nil
	s.trackerDone = nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	stop()
	<-done
}

// Tracking reports whether the position tracker is running.
func (s *Session) Tracking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopTracker != nil
}

func (s *Session) track(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pos, err := s.positions.Position()
			if err != nil {
				s.log.Debug("position poll failed", "err", err)
				continue
			}
			if ctx.Err() != nil {
				return
			}
			s.OnPositionTick(pos)
		}
	}
}
