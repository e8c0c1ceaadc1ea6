package lyrics

import (
	"regexp"
	"strings"
)

// Script is a character-range test for text that needs transliteration.
type Script struct {
	Name    string
	pattern *regexp.Regexp
}

// Japanese covers hiragana, katakana and the common CJK ideograph block.
var Japanese = NewScript("japanese", `[\x{3040}-\x{309F}\x{30A0}-\x{30FF}\x{4E00}-\x{9FAF}]`)

func NewScript(name string, charClass string) *Script {
	return &Script{Name: name, pattern: regexp.MustCompile(charClass)}
}

func (s *Script) Contains(text string) bool {
	if s == nil || text == "" {
		return false
	}
	return s.pattern.MatchString(text)
}

var romanizedMarkers = []string{"romanized", "romaji"}

func hasRomanizedMarker(s string) bool {
	lower := strings.ToLower(s)
	for _, marker := range romanizedMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
