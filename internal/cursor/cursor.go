package cursor

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"

	"karolbroda.com/lyricast/internal/logging"
	"karolbroda.com/lyricast/internal/lyrics"
	"karolbroda.com/lyricast/internal/nowplaying"
	"karolbroda.com/lyricast/internal/prefs"
)

// Offsets supplies the calibration added to a reported position.
type Offsets interface {
	Total(src prefs.SourceID) int64
}

// LineTranslator converts a single active line. Line must never fail; it returns
// the input unchanged when conversion is not possible.
type LineTranslator interface {
	NeedsConversion(text string) bool
	Line(ctx context.Context, text string, title string, artist string) string
}

// Change is emitted when the displayed line text changes. Index is -1 when the
// position precedes every line.
type Change struct {
	Index      int
	Text       string
	AdjustedMs int64
}

// Cursor maps playback positions onto the store's synced lyrics.
type Cursor struct {
	store      *nowplaying.Store
	offsets    Offsets
	translator LineTranslator
	log        *log.Logger

	// step serializes compute-and-publish so concurrent updates cannot interleave
	step sync.Mutex

	mu         sync.Mutex
	source     prefs.SourceID
	generation uint64
	tracking   bool
	lastText   string
	wg         sync.WaitGroup
}

// New builds a cursor. translator may be nil.
func New(store *nowplaying.Store, offsets Offsets, translator LineTranslator, logger *log.Logger) *Cursor {
	return &Cursor{
		store:      store,
		offsets:    offsets,
		translator: translator,
		log:        logging.OrDiscard(logger),
	}
}

func (c *Cursor) SetSource(src prefs.SourceID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.source = src
}

func (c *Cursor) Source() prefs.SourceID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

// Reset forgets the last announced line so the next update re-selects it, e.g.
// after an offset change.
func (c *Cursor) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracking = false
	c.lastText = ""
}

// OnPositionUpdate recomputes the active line for positionMs. It reports a Change
// only when the line text differs from the previously announced one; translation
// of the new line runs in the background under ctx.
func (c *Cursor) OnPositionUpdate(ctx context.Context, positionMs int64) (Change, bool) {
	c.step.Lock()
	defer c.step.Unlock()

	return c.update(ctx, c.store.Snapshot(), positionMs)
}

// Refresh re-selects the active line from the store's current lyrics and position,
// announcing it even when the text is unchanged.
func (c *Cursor) Refresh(ctx context.Context) (Change, bool) {
	c.step.Lock()
	defer c.step.Unlock()

	c.Reset()
	snap := c.store.Snapshot()
	return c.update(ctx, snap, snap.PositionMs)
}

func (c *Cursor) update(ctx context.Context, snap nowplaying.Snapshot, positionMs int64) (Change, bool) {
	if snap.Track == nil || snap.Lyrics == nil || !snap.Lyrics.IsSynced() {
		c.Reset()
		return Change{}, false
	}

	c.mu.Lock()
	src := c.source
	c.mu.Unlock()

	adjusted := positionMs + c.offsets.Total(src)
	index := lyrics.ActiveIndex(snap.Lyrics.Lines, adjusted)

	text := ""
	if index >= 0 {
		text = snap.Lyrics.Lines[index].Text
	}

	c.mu.Lock()
	if c.tracking && c.generation == snap.Generation && c.lastText == text {
		c.mu.Unlock()
		return Change{}, false
	}
	c.tracking = true
	c.generation = snap.Generation
	c.lastText = text
	c.mu.Unlock()

	err := c.store.SetActiveLine(snap.Generation, index, text)
	if err != nil {
		// lyrics were replaced between the snapshot and now; the next tick retries
		c.Reset()
		return Change{}, false
	}

	if index >= 0 {
		c.translate(ctx, snap.Generation, text, snap.Track.Title, snap.Track.Artist)
	}

	return Change{Index: index, Text: text, AdjustedMs: adjusted}, true
}

func (c *Cursor) translate(ctx context.Context, generation uint64, text string, title string, artist string) {
	if c.translator == nil || !c.translator.NeedsConversion(text) {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		converted := c.translator.Line(ctx, text, title, artist)
		if converted == text {
			return
		}

		err := c.store.ApplyTranslation(generation, text, converted)
		if err != nil && !errors.Is(err, nowplaying.ErrStale) {
			c.log.Warn("failed to apply line conversion", "err", err)
		}
	}()
}

// Wait blocks until background conversions have finished.
func (c *Cursor) Wait() {
	c.wg.Wait()
}
