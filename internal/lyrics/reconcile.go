package lyrics

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Candidate is one raw search hit. A zero DurationSec means the service declared none.
type Candidate struct {
	ID           int     `json:"id"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	DurationSec  float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

func (c Candidate) HasLyrics() bool {
	return c.SyncedLyrics != "" || c.PlainLyrics != ""
}

func (c Candidate) lyricText() string {
	if c.SyncedLyrics != "" {
		return c.SyncedLyrics
	}
	return c.PlainLyrics
}

// ToLyricSet prefers synced text and falls back to the plain block.
func (c Candidate) ToLyricSet() LyricSet {
	if c.SyncedLyrics != "" {
		return Parse(c.SyncedLyrics)
	}
	return Plain(c.PlainLyrics)
}

const romanizedSampleRunes = 500

var titleSeparators = []string{" - ", " / ", " ("}

// Reconciler ranks search hits for a track written in, or transliterated from, a target script.
type Reconciler struct {
	script *Script
}

func NewReconciler(script *Script) *Reconciler {
	if script == nil {
		script = Japanese
	}
	return &Reconciler{script: script}
}

func (r *Reconciler) Script() *Script { return r.script }

func (r *Reconciler) NeedsTransliteration(title string, artist string) bool {
	return r.script.Contains(title) || r.script.Contains(artist)
}

// IsRomanized reports whether a hit is already expressed in Latin script, either by a
// marker keyword in its track or album name or by a script-free lyric sample.
func (r *Reconciler) IsRomanized(c Candidate) bool {
	if hasRomanizedMarker(c.AlbumName) || hasRomanizedMarker(c.TrackName) {
		return true
	}

	text := StripTags(c.lyricText())
	if strings.TrimSpace(text) == "" {
		return false
	}

	return !r.script.Contains(truncateRunes(text, romanizedSampleRunes))
}

// Dedupe drops exact duplicates and hits without any lyric text, keeping first-seen order.
func Dedupe(candidates []Candidate) []Candidate {
	seen := make(map[Candidate]struct{}, len(candidates))
	result := make([]Candidate, 0, len(candidates))

	for _, c := range candidates {
		if !c.HasLyrics() {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		result = append(result, c)
	}

	return result
}

// Filter keeps romanized hits when any exist and otherwise returns the full set.
func (r *Reconciler) Filter(candidates []Candidate) []Candidate {
	var romanized []Candidate
	for _, c := range candidates {
		if r.IsRomanized(c) {
			romanized = append(romanized, c)
		}
	}

	if len(romanized) > 0 {
		return romanized
	}
	return candidates
}

// SelectBestMatch dedupes, filters, then ranks by distance between declared and
// target duration. Ties and a non-positive target resolve to input order.
func (r *Reconciler) SelectBestMatch(candidates []Candidate, targetDurationMs int64) (Candidate, bool) {
	filtered := r.Filter(Dedupe(candidates))
	if len(filtered) == 0 {
		return Candidate{}, false
	}

	if targetDurationMs <= 0 {
		return filtered[0], true
	}

	best := 0
	bestDelta := math.Inf(1)
	for i, c := range filtered {
		delta := durationDelta(c, targetDurationMs)
		if delta < bestDelta {
			best = i
			bestDelta = delta
		}
	}

	return filtered[best], true
}

func durationDelta(c Candidate, targetDurationMs int64) float64 {
	if c.DurationSec <= 0 {
		return math.Inf(1)
	}
	return math.Abs(c.DurationSec*1000 - float64(targetDurationMs))
}

// LatinPart returns the first separator-delimited part of title that is free of the target script.
func (r *Reconciler) LatinPart(title string) (string, bool) {
	return r.findPart(title, func(part string) (string, bool) {
		cleaned := strings.TrimSuffix(strings.TrimSuffix(part, ")"), "]")
		return cleaned, cleaned != "" && !r.script.Contains(cleaned)
	})
}

// ScriptPart returns the first separator-delimited part of title containing the target script.
func (r *Reconciler) ScriptPart(title string) (string, bool) {
	return r.findPart(title, func(part string) (string, bool) {
		return part, part != "" && r.script.Contains(part)
	})
}

func (r *Reconciler) findPart(title string, accept func(string) (string, bool)) (string, bool) {
	for _, separator := range titleSeparators {
		if !strings.Contains(title, separator) {
			continue
		}
		for _, part := range strings.Split(title, separator) {
			if cleaned, ok := accept(strings.TrimSpace(part)); ok {
				return cleaned, true
			}
		}
	}
	return "", false
}

// QueryVariants lists the titles to search for: the literal title first, then the
// Latin and script parts when they differ from it. No title appears twice.
func (r *Reconciler) QueryVariants(title string) []string {
	variants := []string{title}

	if latin, ok := r.LatinPart(title); ok {
		variants = appendUnique(variants, latin)
	}
	if scripted, ok := r.ScriptPart(title); ok {
		variants = appendUnique(variants, scripted)
	}

	return variants
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
