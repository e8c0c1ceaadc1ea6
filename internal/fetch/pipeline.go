package fetch

import (
	"context"
	"errors"
	"fmt"

	"karolbroda.com/lyricast/internal/cache"
	"karolbroda.com/lyricast/internal/lyrics"
	"karolbroda.com/lyricast/internal/track"
)

// acquire runs cache lookup, search, reconciliation, parsing and transliteration,
// checking ctx between stages. A cancelled run returns ctx.Err().
func (c *Coordinator) acquire(ctx context.Context, t track.Track) (lyrics.LyricSet, error) {
	if set, ok := c.fromCache(t); ok {
		c.log.Debug("lyrics served from cache", "track", t.String())
		return set, nil
	}

	needsTranslit := c.reconciler.NeedsTransliteration(t.Title, t.Artist)

	best, found, err := c.exactMatch(ctx, t, needsTranslit)
	if err != nil {
		return lyrics.LyricSet{}, err
	}

	if !found {
		candidates, err := c.search(ctx, t)
		if err != nil {
			return lyrics.LyricSet{}, err
		}
		if err := ctx.Err(); err != nil {
			return lyrics.LyricSet{}, err
		}

		best, found = c.reconciler.SelectBestMatch(candidates, t.DurationMs)
		c.log.Debug("reconciled search results", "track", t.String(), "candidates", len(candidates), "found", found)
	}

	if !found {
		return lyrics.NotFound(lyrics.NoSyncedLyricsMessage), nil
	}

	set := best.ToLyricSet()
	if set.Kind == lyrics.KindError {
		return lyrics.LyricSet{}, fmt.Errorf("%w: %s", lyrics.ErrParse, set.Reason)
	}

	if err := ctx.Err(); err != nil {
		return lyrics.LyricSet{}, err
	}

	if needsTranslit && set.IsSynced() && c.translator != nil && !c.reconciler.IsRomanized(best) {
		c.log.Debug("converting lyrics", "track", t.String(), "lines", len(set.Lines))
		set, err = c.translator.Batch(ctx, set, t.Title, t.Artist)
		if err != nil {
			return lyrics.LyricSet{}, err
		}
	}

	if err := ctx.Err(); err != nil {
		return lyrics.LyricSet{}, err
	}

	c.storeInCache(t, best, set)
	return set, nil
}

func (c *Coordinator) fromCache(t track.Track) (lyrics.LyricSet, bool) {
	if c.cache == nil || c.skipReads {
		return lyrics.LyricSet{}, false
	}

	entry, err := c.cache.Get(t.Artist, t.Title)
	if err != nil || entry == nil || !entry.Lyrics.HasContent() {
		return lyrics.LyricSet{}, false
	}

	return entry.Lyrics, true
}

func (c *Coordinator) storeInCache(t track.Track, best lyrics.Candidate, set lyrics.LyricSet) {
	if c.cache == nil || !set.HasContent() {
		return
	}

	err := c.cache.Set(t.Artist, t.Title, &cache.LyricEntry{
		TrackName:  t.Title,
		ArtistName: t.Artist,
		AlbumName:  best.AlbumName,
		Duration:   best.DurationSec,
		Lyrics:     set,
	})
	if err != nil {
		c.log.Warn("failed to cache lyrics", "track", t.String(), "err", err)
	}
}

// exactMatch tries the cheaper exact lookup for tracks that need no transliteration.
// Only a synced hit short-circuits the search.
func (c *Coordinator) exactMatch(ctx context.Context, t track.Track, needsTranslit bool) (lyrics.Candidate, bool, error) {
	matcher, ok := c.searcher.(lyrics.ExactMatcher)
	if !ok || needsTranslit {
		return lyrics.Candidate{}, false, nil
	}

	candidate, err := matcher.Get(ctx, t.Title, t.Artist, t.DurationMs/1000)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return lyrics.Candidate{}, false, ctxErr
	}
	if err != nil {
		if !errors.Is(err, lyrics.ErrNotFound) {
			c.log.Debug("exact lookup failed, falling back to search", "track", t.String(), "err", err)
		}
		return lyrics.Candidate{}, false, nil
	}

	if candidate.SyncedLyrics == "" {
		return lyrics.Candidate{}, false, nil
	}

	return candidate, true, nil
}

// search queries every title variant and unions the results. It fails only when
// every query failed.
func (c *Coordinator) search(ctx context.Context, t track.Track) ([]lyrics.Candidate, error) {
	var (
		all     []lyrics.Candidate
		lastErr error
		failed  int
	)

	variants := c.reconciler.QueryVariants(t.Title)
	for _, title := range variants {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		results, err := c.searcher.Search(ctx, title, t.Artist)
		if errors.Is(err, lyrics.ErrNotFound) {
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			c.log.Warn("lyrics search failed", "query", title, "artist", t.Artist, "err", err)
			lastErr = err
			failed++
			continue
		}

		all = append(all, results...)
	}

	if failed == len(variants) && lastErr != nil {
		return nil, fmt.Errorf("search for %s failed: %w", t.String(), lastErr)
	}

	return all, nil
}
