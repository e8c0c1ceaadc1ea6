package nowplaying

import (
	"errors"
	"sync"

	"karolbroda.com/lyricast/internal/lyrics"
	"karolbroda.com/lyricast/internal/track"
)

// ErrStale marks a result whose track or line was superseded before it arrived.
var ErrStale = errors.New("result refers to stale context")

const (
	StatusWaiting   = "Waiting for music..."
	StatusSearching = "Searching for lyrics..."
	StatusPaused    = "Paused"
)

// Snapshot is an immutable view of the store. Lyrics line slices are shared and must not be modified.
type Snapshot struct {
	Track      *track.Track
	Lyrics     *lyrics.LyricSet
	PositionMs int64
	Playing    bool

	// ActiveIndex is -1 when no synced line is active.
	ActiveIndex int
	// ActiveLine is the display text of the active line, possibly transliterated.
	ActiveLine string

	// Generation changes whenever the track or its lyrics are replaced.
	Generation uint64

	activeRaw string
}

// DisplayText is the one string a presentation layer shows for this snapshot.
func (s Snapshot) DisplayText() string {
	if s.Track == nil {
		return StatusWaiting
	}

	if s.Lyrics == nil {
		if s.Playing {
			return StatusSearching
		}
		return StatusPaused
	}

	if !s.Lyrics.IsSynced() {
		return s.Lyrics.FullText()
	}

	return s.ActiveLine
}

// Store is the observable state container joining track, lyrics, position and
// play state. All mutations are serialized; subscribers receive the latest snapshot.
type Store struct {
	mu     sync.Mutex
	state  Snapshot
	subs   map[int]chan Snapshot
	nextID int
}

func NewStore() *Store {
	return &Store{
		state: Snapshot{ActiveIndex: -1},
		subs:  make(map[int]chan Snapshot),
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe returns a channel that always holds the most recent snapshot and a
// function that removes the subscription. Slow readers skip intermediate states.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	ch := make(chan Snapshot, 1)
	ch <- s.state
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}

	return ch, cancel
}

// UpdateTrack applies new metadata. It reports true when the identity changed, in
// which case lyrics, position and the active line are reset. Same identity with a
// different duration only refreshes the duration.
func (s *Store) UpdateTrack(t track.Track) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.state.Track
	if current != nil && current.SameIdentity(t) {
		if current.DurationMs != t.DurationMs {
			updated := *current
			updated.DurationMs = t.DurationMs
			s.state.Track = &updated
			s.publishLocked()
		}
		return false
	}

	next := t
	s.state.Track = &next
	s.state.Lyrics = nil
	s.state.PositionMs = 0
	s.clearActiveLocked()
	s.state.Generation++
	s.publishLocked()
	return true
}

// AttachLyrics publishes a lyric set for t. It returns ErrStale when t is no longer current.
func (s *Store) AttachLyrics(t track.Track, set lyrics.LyricSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Track == nil || !s.state.Track.SameIdentity(t) {
		return ErrStale
	}

	attached := set
	s.state.Lyrics = &attached
	s.clearActiveLocked()
	s.state.Generation++
	s.publishLocked()
	return nil
}

func (s *Store) UpdatePosition(positionMs int64) {
	if positionMs < 0 {
		positionMs = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.PositionMs == positionMs {
		return
	}
	s.state.PositionMs = positionMs
	s.publishLocked()
}

func (s *Store) SetPlaying(playing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Playing == playing {
		return
	}
	s.state.Playing = playing
	s.publishLocked()
}

// SetActiveLine records the cursor's selection for the given lyrics generation.
// index -1 clears the active line.
func (s *Store) SetActiveLine(generation uint64, index int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Generation != generation {
		return ErrStale
	}

	if index < 0 {
		if s.state.ActiveIndex == -1 {
			return nil
		}
		s.clearActiveLocked()
		s.publishLocked()
		return nil
	}

	s.state.ActiveIndex = index
	s.state.activeRaw = text
	s.state.ActiveLine = text
	s.publishLocked()
	return nil
}

// ApplyTranslation overwrites the display text of the active line, but only if
// the line it was computed for is still the active one.
func (s *Store) ApplyTranslation(generation uint64, original string, translated string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Generation != generation || s.state.ActiveIndex < 0 || s.state.activeRaw != original {
		return ErrStale
	}

	if s.state.ActiveLine == translated {
		return nil
	}
	s.state.ActiveLine = translated
	s.publishLocked()
	return nil
}

// Clear forgets the current track and play state, e.g. when the media session ends.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Playing = false
	s.clearTrackLocked()
}

// ClearTrack forgets the current track but keeps the play state; players do not
// resend an unchanged playback status when the next track starts.
func (s *Store) ClearTrack() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearTrackLocked()
}

func (s *Store) clearTrackLocked() {
	s.state.Track = nil
	s.state.Lyrics = nil
	s.state.PositionMs = 0
	s.clearActiveLocked()
	s.state.Generation++
	s.publishLocked()
}

func (s *Store) clearActiveLocked() {
	s.state.ActiveIndex = -1
	s.state.ActiveLine = ""
	s.state.activeRaw = ""
}

func (s *Store) publishLocked() {
	snap := s.state
	for _, ch := range s.subs {
		// drop the stale pending value so the channel holds the latest snapshot
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
