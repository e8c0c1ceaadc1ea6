package lyrics

import "strings"

// Kind is the shape of a LyricSet. Exactly one shape holds at a time.
type Kind uint8

const (
	KindNotFound Kind = iota
	KindSynced
	KindPlain
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindSynced:
		return "synced"
	case KindPlain:
		return "plain"
	case KindError:
		return "error"
	default:
		return "not found"
	}
}

const NoSyncedLyricsMessage = "No synced lyrics found"

type TimedLine struct {
	OffsetMs int64
	Text     string
}

// LyricSet is the payload attached to a track: a non-empty ordered line sequence,
// a plain text block, or a not-found/error sentinel carrying a reason.
// Fields are exported for gob encoding; build values with the constructors.
type LyricSet struct {
	Kind   Kind
	Lines  []TimedLine
	Text   string
	Reason string
}

func Synced(lines []TimedLine) LyricSet {
	if len(lines) == 0 {
		return NotFound(NoSyncedLyricsMessage)
	}
	return LyricSet{Kind: KindSynced, Lines: lines}
}

func Plain(text string) LyricSet {
	if strings.TrimSpace(text) == "" {
		return NotFound(NoSyncedLyricsMessage)
	}
	return LyricSet{Kind: KindPlain, Text: text}
}

func NotFound(reason string) LyricSet {
	return LyricSet{Kind: KindNotFound, Reason: reason}
}

func Failed(reason string) LyricSet {
	return LyricSet{Kind: KindError, Reason: reason}
}

func (s LyricSet) IsSynced() bool { return s.Kind == KindSynced }

// HasContent reports whether the set carries lyrics rather than a sentinel.
func (s LyricSet) HasContent() bool {
	switch s.Kind {
	case KindSynced:
		return len(s.Lines) > 0
	case KindPlain:
		return s.Text != ""
	default:
		return false
	}
}

// FullText is what a presentation layer shows when there is no line cursor.
func (s LyricSet) FullText() string {
	switch s.Kind {
	case KindPlain:
		return s.Text
	case KindNotFound, KindError:
		return s.Reason
	default:
		return ""
	}
}

// WithLines returns a synced copy carrying replacement lines; offsets are kept by the caller.
func (s LyricSet) WithLines(lines []TimedLine) LyricSet {
	if s.Kind != KindSynced {
		return s
	}
	return Synced(lines)
}

// ActiveIndex returns the index of the last line whose offset is at or before
// positionMs, or -1 when the position precedes every line.
func ActiveIndex(lines []TimedLine, positionMs int64) int {
	index := -1

	for i, line := range lines {
		if line.OffsetMs <= positionMs {
			index = i
			continue
		}
		break
	}

	return index
}
