package track

// Track is the identity of the currently playing song. Identity is (Title, Artist);
// DurationMs may be refreshed in place without changing identity.
type Track struct {
	Title      string
	Artist     string
	DurationMs int64
}

func New(title string, artist string, durationMs int64) Track {
	if durationMs < 0 {
		durationMs = 0
	}
	return Track{Title: title, Artist: artist, DurationMs: durationMs}
}

func (t Track) IsValid() bool {
	return t.Title != "" && t.Artist != ""
}

func (t Track) SameIdentity(other Track) bool {
	return t.Title == other.Title && t.Artist == other.Artist
}

func (t Track) String() string {
	return t.Artist + " - " + t.Title
}
