package lyrics

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var (
	timeTagPattern = regexp.MustCompile(`\[(\d{2}):(\d{2})\.(\d{2,3})\]`)
	anyTagPattern  = regexp.MustCompile(`\[[^\]]*\]`)
)

// Parse turns time-tagged lyric text into a LyricSet. A physical line may carry
// several tags; each becomes its own TimedLine with the same text. Untagged
// lines are ignored. Without any tagged line the raw text becomes a plain set.
func Parse(raw string) LyricSet {
	if strings.TrimSpace(raw) == "" {
		return NotFound(NoSyncedLyricsMessage)
	}

	lines, err := parseTimedLines(raw)
	if err != nil {
		return Failed(fmt.Sprintf("Error parsing lyrics: %v", err))
	}

	if len(lines) == 0 {
		return Plain(raw)
	}

	return Synced(lines)
}

func parseTimedLines(raw string) ([]TimedLine, error) {
	physical := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	result := make([]TimedLine, 0, len(physical))

	for _, line := range physical {
		text := strings.TrimSpace(timeTagPattern.ReplaceAllString(line, ""))
		if text == "" {
			continue
		}

		for _, match := range timeTagPattern.FindAllStringSubmatch(line, -1) {
			offset, err := tagToMillis(match[1], match[2], match[3])
			if err != nil {
				return nil, fmt.Errorf("tag %q: %w", match[0], err)
			}
			result = append(result, TimedLine{OffsetMs: offset, Text: text})
		}
	}

	slices.SortStableFunc(result, func(a, b TimedLine) int {
		switch {
		case a.OffsetMs < b.OffsetMs:
			return -1
		case a.OffsetMs > b.OffsetMs:
			return 1
		default:
			return 0
		}
	})

	return result, nil
}

func tagToMillis(minutesPart string, secondsPart string, fractionPart string) (int64, error) {
	minutes, err := strconv.ParseInt(minutesPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: minutes: %v", ErrParse, err)
	}
	seconds, err := strconv.ParseInt(secondsPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: seconds: %v", ErrParse, err)
	}

	for len(fractionPart) < 3 {
		fractionPart += "0"
	}
	millis, err := strconv.ParseInt(fractionPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: fraction: %v", ErrParse, err)
	}

	return (minutes*60+seconds)*1000 + millis, nil
}

// StripTags removes every bracketed tag, leaving only lyric text.
func StripTags(raw string) string {
	return strings.TrimSpace(anyTagPattern.ReplaceAllString(raw, ""))
}
