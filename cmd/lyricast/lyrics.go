package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"karolbroda.com/lyricast/internal/lyrics"
	"karolbroda.com/lyricast/internal/track"
)

var (
	lyricsDurationSecs int64
)

var lyricsCmd = &cobra.Command{
	Use:   "lyrics",
	Short: "lyrics search and management",
	Long:  `search lrclib, run the full acquisition pipeline for a song, or preview its lyrics in the terminal.`,
}

var lyricsSearchCmd = &cobra.Command{
	Use:   "search <artist> <title>",
	Short: "list lrclib candidates for a song",
	Long:  `query lrclib with every title variant and show the candidates and the one that would be chosen.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		artist := args[0]
		title := args[1]

		a, err := newApp(loadConfig(cmd), false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()

		var candidates []lyrics.Candidate
		for _, query := range a.reconciler.QueryVariants(title) {
			fmt.Fprintf(out, "searching for: %s - %s\n", artist, query)
			results, err := a.lrclib.Search(ctx, query, artist)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "  search failed: %v\n", err)
				continue
			}
			candidates = append(candidates, results...)
		}

		candidates = lyrics.Dedupe(candidates)
		if len(candidates) == 0 {
			return fmt.Errorf("no candidates found")
		}

		best, _ := a.reconciler.SelectBestMatch(candidates, lyricsDurationSecs*1000)

		fmt.Fprintln(out)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\tID\tARTIST\tTITLE\tDURATION\tSYNCED\tROMANIZED")
		for _, c := range candidates {
			marker := ""
			if c == best {
				marker = "*"
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%v\t%v\n",
				marker, c.ID, c.ArtistName, c.TrackName, formatSeconds(c.DurationSec),
				c.SyncedLyrics != "", a.reconciler.IsRomanized(c))
		}
		w.Flush()

		fmt.Fprintf(out, "\ntotal: %d candidates, * marks the selected one\n", len(candidates))
		return nil
	},
}

var lyricsFetchCmd = &cobra.Command{
	Use:   "fetch <artist> <title>",
	Short: "run the acquisition pipeline and cache the result",
	Long:  `search, reconcile, parse and transliterate lyrics exactly as the viewer would, then save them to the cache.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		set, err := acquire(cmd, args[0], args[1])
		if err != nil {
			return err
		}

		switch set.Kind {
		case lyrics.KindSynced:
			fmt.Fprintf(out, "cached %d synced lines\n", len(set.Lines))
		case lyrics.KindPlain:
			fmt.Fprintln(out, "only plain lyrics available (no timing)")
		default:
			return fmt.Errorf("%s", set.Reason)
		}
		return nil
	},
}

var lyricsPreviewCmd = &cobra.Command{
	Use:   "preview <artist> <title>",
	Short: "preview lyrics in terminal",
	Long:  `display lyrics in the terminal with timestamps (if available).`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		artist := args[0]
		title := args[1]

		set, err := acquire(cmd, artist, title)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "\n%s - %s\n", artist, title)
		fmt.Fprintln(out, strings.Repeat("─", 60))

		switch set.Kind {
		case lyrics.KindSynced:
			fmt.Fprintf(out, "\nsynced lyrics (%d lines):\n\n", len(set.Lines))
			for _, line := range set.Lines {
				fmt.Fprintf(out, "[%s] %s\n", formatTimestamp(line.OffsetMs), line.Text)
			}
		case lyrics.KindPlain:
			fmt.Fprint(out, "\nplain lyrics (no timestamps):\n\n")
			fmt.Fprintln(out, set.Text)
		default:
			fmt.Fprintf(out, "\n%s\n", set.Reason)
		}

		return nil
	},
}

// acquire runs one coordinator fetch to completion and returns what it published.
func acquire(cmd *cobra.Command, artist string, title string) (lyrics.LyricSet, error) {
	a, err := newApp(loadConfig(cmd), false)
	if err != nil {
		return lyrics.LyricSet{}, err
	}
	defer a.Close()

	t := track.New(title, artist, lyricsDurationSecs*1000)
	if !t.IsValid() {
		return lyrics.LyricSet{}, fmt.Errorf("artist and title are required")
	}

	a.store.UpdateTrack(t)
	a.coordinator.Fetch(t)
	a.coordinator.Wait()

	snap := a.store.Snapshot()
	if snap.Lyrics == nil {
		return lyrics.LyricSet{}, fmt.Errorf("fetch did not complete (%s)", a.coordinator.LastOutcome())
	}

	return *snap.Lyrics, nil
}

func init() {
	rootCmd.AddCommand(lyricsCmd)

	lyricsCmd.AddCommand(lyricsSearchCmd)
	lyricsCmd.AddCommand(lyricsFetchCmd)
	lyricsCmd.AddCommand(lyricsPreviewCmd)

	lyricsCmd.PersistentFlags().Int64Var(&lyricsDurationSecs, "duration", 0, "track duration in seconds, used to rank candidates")
}

func formatTimestamp(ms int64) string {
	seconds := float64(ms) / 1000
	minutes := int(seconds) / 60
	secs := seconds - float64(minutes*60)
	return fmt.Sprintf("%d:%05.2f", minutes, secs)
}

func formatSeconds(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0fs", seconds)
}
