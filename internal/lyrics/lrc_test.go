package lyrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSortsByOffset(t *testing.T) {
	set := Parse("[00:01.50]Hello\n[00:00.20]World")

	require.Equal(t, KindSynced, set.Kind)
	assert.Equal(t, []TimedLine{
		{OffsetMs: 200, Text: "World"},
		{OffsetMs: 1500, Text: "Hello"},
	}, set.Lines)
}

func TestParseRepeatedTags(t *testing.T) {
	set := Parse("[00:10.00][01:02.345]Chorus\n[00:05.10]Verse")

	require.Equal(t, KindSynced, set.Kind)
	assert.Equal(t, []TimedLine{
		{OffsetMs: 5100, Text: "Verse"},
		{OffsetMs: 10000, Text: "Chorus"},
		{OffsetMs: 62345, Text: "Chorus"},
	}, set.Lines)
}

func TestParseTiesKeepEncounterOrder(t *testing.T) {
	set := Parse("[00:03.00]first\n[00:01.00]early\n[00:03.00]second")

	require.Len(t, set.Lines, 3)
	assert.Equal(t, "early", set.Lines[0].Text)
	assert.Equal(t, "first", set.Lines[1].Text)
	assert.Equal(t, "second", set.Lines[2].Text)
}

func TestParseSkipsUntaggedAndEmptyLines(t *testing.T) {
	raw := "[ar:Someone]\nno tag here\n[00:01.00]\n[00:02.00]  text  \n\n"
	set := Parse(raw)

	require.Equal(t, KindSynced, set.Kind)
	assert.Equal(t, []TimedLine{{OffsetMs: 2000, Text: "text"}}, set.Lines)
}

func TestParseWithoutTagsIsPlain(t *testing.T) {
	raw := "just some words\nand more"
	set := Parse(raw)

	assert.Equal(t, KindPlain, set.Kind)
	assert.Equal(t, raw, set.Text)
	assert.Empty(t, set.Lines)
}

func TestParseBlankIsNotFound(t *testing.T) {
	set := Parse("  \n ")
	assert.Equal(t, KindNotFound, set.Kind)
	assert.False(t, set.HasContent())
}

func TestParseLineCountMatchesTagCount(t *testing.T) {
	raw := "[00:01.00][00:02.00][00:03.00]a\n[00:04.00]b\n[00:05.00]\nplain\n[00:06.000][00:00.10]c"
	set := Parse(raw)

	require.Len(t, set.Lines, 6)
	for i := 1; i < len(set.Lines); i++ {
		assert.LessOrEqual(t, set.Lines[i-1].OffsetMs, set.Lines[i].OffsetMs)
	}
}

func TestTagToMillisPadsFraction(t *testing.T) {
	ms, err := tagToMillis("00", "01", "5")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), ms)

	ms, err = tagToMillis("02", "00", "05")
	require.NoError(t, err)
	assert.Equal(t, int64(120050), ms)
}

func TestActiveIndex(t *testing.T) {
	lines := []TimedLine{{0, "A"}, {1000, "B"}, {2000, "C"}}

	tests := []struct {
		name     string
		position int64
		want     int
	}{
		{"before first line", -50, -1},
		{"at first line", 0, 0},
		{"between lines", 1500, 1},
		{"after last line", 2500, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ActiveIndex(lines, tt.position))
		})
	}

	assert.Equal(t, -1, ActiveIndex(nil, 100))
}
