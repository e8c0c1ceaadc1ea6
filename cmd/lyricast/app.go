package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"karolbroda.com/lyricast/internal/cache"
	"karolbroda.com/lyricast/internal/config"
	"karolbroda.com/lyricast/internal/cursor"
	"karolbroda.com/lyricast/internal/fetch"
	"karolbroda.com/lyricast/internal/logging"
	"karolbroda.com/lyricast/internal/lyrics"
	"karolbroda.com/lyricast/internal/nowplaying"
	"karolbroda.com/lyricast/internal/prefs"
	"karolbroda.com/lyricast/internal/session"
	"karolbroda.com/lyricast/internal/translit"
)

// loadConfig reads the environment, then applies any flags that were set.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg := config.Load()

	if mprisService != "" {
		cfg.MprisService = mprisService
	}
	if lrclibURL != "" {
		cfg.LrclibURL = lrclibURL
	}
	if translitURL != "" {
		cfg.TranslitURL = translitURL
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	flags := cmd.Flags()
	if flags.Changed("hide-header") {
		cfg.HideHeader = hideHeader
	}
	if flags.Changed("no-translit") {
		cfg.Translit = !noTranslit
	}
	if flags.Changed("translit-batch") {
		cfg.TranslitBatch = translitBatch
	}
	if flags.Changed("no-cache") {
		cfg.NoCache = noCache
	}

	return cfg
}

// app holds the wired acquisition pipeline shared by the viewer and the lyrics commands.
type app struct {
	cfg         *config.Config
	log         *log.Logger
	logFile     io.Closer
	offsets     *prefs.Offsets
	cache       *cache.DiskCache
	lrclib      *lyrics.Client
	reconciler  *lyrics.Reconciler
	translator  *translit.Translator
	store       *nowplaying.Store
	coordinator *fetch.Coordinator
	cursor      *cursor.Cursor
}

// newApp wires every component. When logToFile is set, logs go to the state dir
// because the TUI owns the terminal.
func newApp(cfg *config.Config, logToFile bool) (*app, error) {
	a := &app{cfg: cfg}

	if logToFile {
		f, err := logging.OpenFile(cfg.LogPath)
		if err != nil {
			return nil, err
		}
		a.logFile = f
		a.log = logging.New(f, cfg.LogLevel)
	} else {
		a.log = logging.New(os.Stderr, cfg.LogLevel)
	}

	offsets, err := prefs.Load(cfg.OffsetsPath)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.offsets = offsets

	diskCache, err := cache.New(cfg.CacheDir)
	if err != nil {
		a.log.Warn("lyrics cache unavailable, using memory only", "dir", cfg.CacheDir, "err", err)
		diskCache = cache.NewMemory()
	}
	a.cache = diskCache

	// without a search client nothing can be acquired, so this is the one fatal setup error
	client, err := lyrics.NewClient(cfg.LrclibURL, config.HTTPTimeout())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create lyrics client: %w", err)
	}
	a.lrclib = client
	a.reconciler = lyrics.NewReconciler(lyrics.Japanese)

	if cfg.Translit {
		conv, err := translit.NewClient(cfg.TranslitURL, config.HTTPTimeout())
		if err != nil {
			a.log.Warn("transliteration disabled", "url", cfg.TranslitURL, "err", err)
		} else {
			a.translator = translit.New(conv, translit.Options{
				Script:           a.reconciler.Script(),
				Logger:           a.log.WithPrefix("translit"),
				UseBatchEndpoint: cfg.TranslitBatch,
			})
		}
	}

	a.store = nowplaying.NewStore()

	opts := fetch.Options{
		Searcher:       a.lrclib,
		Reconciler:     a.reconciler,
		Cache:          a.cache,
		SkipCacheReads: cfg.NoCache,
		Logger:         a.log.WithPrefix("fetch"),
	}
	var lineTranslator cursor.LineTranslator
	if a.translator != nil {
		opts.Translator = a.translator
		lineTranslator = a.translator
	}

	a.coordinator, err = fetch.New(a.store, opts)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.cursor = cursor.New(a.store, a.offsets, lineTranslator, a.log.WithPrefix("cursor"))

	return a, nil
}

func (a *app) newSession(positions session.PositionSource) (*session.Session, error) {
	return session.New(session.Options{
		Store:        a.store,
		Fetcher:      a.coordinator,
		Cursor:       a.cursor,
		Offsets:      a.offsets,
		Positions:    positions,
		PollInterval: config.PollInterval,
		Logger:       a.log.WithPrefix("session"),
	})
}

func (a *app) Close() {
	if a.coordinator != nil {
		a.coordinator.Cancel()
		a.coordinator.Wait()
	}
	if a.cursor != nil {
		a.cursor.Wait()
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
