package main

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"karolbroda.com/lyricast/internal/cache"
)

const maxSuggestions = 5

var (
	cacheSortBy  string
	cacheConfirm bool
)

var errNotCached = errors.New("song not found in cache")

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "manage the lyrics cache",
	Long:  `inspect and maintain the on-disk store of resolved lyrics, keyed by the artist and title the player reports.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "show cache statistics",
	RunE: withCache(func(cmd *cobra.Command, c *cache.DiskCache, _ []string) error {
		count, sizeBytes, err := c.Stats()
		if err != nil {
			return fmt.Errorf("failed to read cache stats: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "location: %s\n", c.Dir())
		fmt.Fprintf(out, "entries:  %d\n", count)
		fmt.Fprintf(out, "size:     %s\n", formatBytes(sizeBytes))
		return nil
	}),
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "list cached songs",
	RunE: withCache(func(cmd *cobra.Command, c *cache.DiskCache, _ []string) error {
		entries, err := c.ListAll()
		if err != nil {
			return fmt.Errorf("failed to list cache: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "cache is empty")
			return nil
		}

		sortCacheEntries(entries, cacheSortBy)

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ARTIST\tTITLE\tLYRICS\tCACHED")
		for _, entry := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				entry.ArtistName, entry.TrackName, describeLyrics(entry), formatUnix(entry.CreatedAt, time.DateOnly))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Fprintf(out, "\n%d songs\n", len(entries))
		return nil
	}),
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <artist> <title>",
	Short: "show the cached entry for a song",
	Args:  cobra.ExactArgs(2),
	RunE: withCache(func(cmd *cobra.Command, c *cache.DiskCache, args []string) error {
		entry, err := lookupCached(cmd, c, args[0], args[1])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "artist:   %s\n", entry.ArtistName)
		fmt.Fprintf(out, "title:    %s\n", entry.TrackName)
		if entry.AlbumName != "" {
			fmt.Fprintf(out, "album:    %s\n", entry.AlbumName)
		}
		fmt.Fprintf(out, "duration: %s\n", formatSeconds(entry.Duration))
		fmt.Fprintf(out, "lyrics:   %s\n", describeLyrics(entry))
		fmt.Fprintf(out, "cached:   %s\n", formatUnix(entry.CreatedAt, time.DateTime))
		fmt.Fprintf(out, "expires:  %s\n", formatUnix(entry.ExpiresAt, time.DateTime))
		return nil
	}),
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "remove every cached entry",
	RunE: withCache(func(cmd *cobra.Command, c *cache.DiskCache, _ []string) error {
		out := cmd.OutOrStdout()
		if !cacheConfirm && !confirmed(cmd.InOrStdin(), out, "clear the whole lyrics cache?") {
			fmt.Fprintln(out, "cancelled")
			return nil
		}

		if err := c.Clear(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Fprintln(out, "cache cleared")
		return nil
	}),
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "remove expired or unreadable entries",
	RunE: withCache(func(cmd *cobra.Command, c *cache.DiskCache, _ []string) error {
		pruned, err := c.Prune()
		if err != nil {
			return fmt.Errorf("failed to prune cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", pruned)
		return nil
	}),
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <artist> <title>",
	Short: "remove one song from the cache",
	Args:  cobra.ExactArgs(2),
	RunE: withCache(func(cmd *cobra.Command, c *cache.DiskCache, args []string) error {
		artist, title := args[0], args[1]
		if _, err := lookupCached(cmd, c, artist, title); err != nil {
			return err
		}

		if err := c.Delete(artist, title); err != nil {
			return fmt.Errorf("failed to delete from cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %q by %q\n", title, artist)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cacheListCmd, cacheShowCmd, cacheClearCmd, cachePruneCmd, cacheDeleteCmd)

	cacheListCmd.Flags().StringVar(&cacheSortBy, "sort", "date", "sort by: date, artist, title")
	cacheClearCmd.Flags().BoolVarP(&cacheConfirm, "yes", "y", false, "skip the confirmation prompt")
}

type cacheRunFunc func(cmd *cobra.Command, c *cache.DiskCache, args []string) error

// withCache opens the configured cache before running fn.
func withCache(fn cacheRunFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)
		c, err := cache.New(cfg.CacheDir)
		if err != nil {
			return fmt.Errorf("failed to open cache at %s: %w", cfg.CacheDir, err)
		}
		return fn(cmd, c, args)
	}
}

// lookupCached returns the entry or an error, printing near matches to stderr on a miss.
func lookupCached(cmd *cobra.Command, c *cache.DiskCache, artist string, title string) (*cache.LyricEntry, error) {
	entry, err := c.Get(artist, title)
	if err == nil {
		return entry, nil
	}

	suggestions := findSimilarCachedSongs(c, artist, title)
	if len(suggestions) > 0 {
		errOut := cmd.ErrOrStderr()
		fmt.Fprintln(errOut, "did you mean:")
		for _, s := range suggestions {
			fmt.Fprintf(errOut, "  %s - %s\n", s.ArtistName, s.TrackName)
		}
	}

	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, errNotCached
	}
	return nil, fmt.Errorf("%w: %v", errNotCached, err)
}

func confirmed(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)

	answer, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func describeLyrics(entry *cache.LyricEntry) string {
	if entry.Lyrics.IsSynced() {
		return fmt.Sprintf("%d synced lines", len(entry.Lyrics.Lines))
	}
	return entry.Lyrics.Kind.String()
}

func formatUnix(sec int64, layout string) string {
	if sec == 0 {
		return "-"
	}
	return time.Unix(sec, 0).Format(layout)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	value := float64(n)
	suffix := 0
	for value >= unit*unit && suffix < len("KMGTP")-1 {
		value /= unit
		suffix++
	}
	return fmt.Sprintf("%.1f %cB", value/unit, "KMGTP"[suffix])
}

func sortCacheEntries(entries []*cache.LyricEntry, sortBy string) {
	var less func(a, b *cache.LyricEntry) int

	switch sortBy {
	case "artist":
		less = func(a, b *cache.LyricEntry) int {
			return strings.Compare(strings.ToLower(a.ArtistName), strings.ToLower(b.ArtistName))
		}
	case "title":
		less = func(a, b *cache.LyricEntry) int {
			return strings.Compare(strings.ToLower(a.TrackName), strings.ToLower(b.TrackName))
		}
	case "date":
		less = func(a, b *cache.LyricEntry) int { return cmp.Compare(b.CreatedAt, a.CreatedAt) }
	default:
		return
	}

	slices.SortStableFunc(entries, less)
}

// findSimilarCachedSongs ranks entries whose artist and title overlap the query,
// preferring an exact artist match.
func findSimilarCachedSongs(c *cache.DiskCache, artist string, title string) []*cache.LyricEntry {
	all, err := c.ListAll()
	if err != nil {
		return nil
	}

	artist = strings.ToLower(artist)
	title = strings.ToLower(title)
	overlaps := func(a, b string) bool { return strings.Contains(a, b) || strings.Contains(b, a) }

	type scored struct {
		entry *cache.LyricEntry
		exact bool
	}
	var matches []scored

	for _, entry := range all {
		entryArtist := strings.ToLower(entry.ArtistName)
		if !overlaps(strings.ToLower(entry.TrackName), title) || !overlaps(entryArtist, artist) {
			continue
		}
		matches = append(matches, scored{entry: entry, exact: entryArtist == artist})
	}

	slices.SortStableFunc(matches, func(a, b scored) int {
		switch {
		case a.exact == b.exact:
			return 0
		case a.exact:
			return -1
		default:
			return 1
		}
	})

	result := make([]*cache.LyricEntry, 0, min(len(matches), maxSuggestions))
	for _, m := range matches[:min(len(matches), maxSuggestions)] {
		result = append(result, m.entry)
	}
	return result
}
