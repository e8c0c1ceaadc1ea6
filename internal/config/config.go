package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

const (
	AppName             = "lyricast"
	DefaultMprisService = "org.mpris.MediaPlayer2.spotify"
	DefaultLrclibURL    = "https://lrclib.net/api"
	DefaultTranslitURL  = "http://127.0.0.1:8000"
	HTTPTimeoutSeconds  = 10
	PollInterval        = 100 * time.Millisecond
	DefaultLogLevel     = "info"

	offsetsFileName = "offsets.yaml"
	logFileName     = "lyricast.log"
	lyricsDirectory = "lyrics"
)

type Config struct {
	MprisService  string
	LrclibURL     string
	TranslitURL   string
	Translit      bool
	TranslitBatch bool
	HideHeader    bool
	NoCache       bool
	LogLevel      string
	OffsetsPath   string
	CacheDir      string
	LogPath       string
}

// Load reads the environment. Flags in cmd/lyricast override the result.
func Load() *Config {
	return &Config{
		MprisService:  getEnvOrDefault("LYRICAST_MPRIS_SERVICE", DefaultMprisService),
		LrclibURL:     getEnvOrDefault("LYRICAST_LRCLIB_URL", DefaultLrclibURL),
		TranslitURL:   getEnvOrDefault("LYRICAST_TRANSLIT_URL", DefaultTranslitURL),
		Translit:      parseBool(getEnvOrDefault("LYRICAST_TRANSLIT", "true")),
		TranslitBatch: parseBool(getEnvOrDefault("LYRICAST_TRANSLIT_BATCH", "false")),
		HideHeader:    parseBool(getEnvOrDefault("LYRICAST_HIDE_HEADER", "false")),
		NoCache:       parseBool(getEnvOrDefault("LYRICAST_NO_CACHE", "false")),
		LogLevel:      getEnvOrDefault("LYRICAST_LOG_LEVEL", DefaultLogLevel),
		OffsetsPath:   filepath.Join(xdg.ConfigHome, AppName, offsetsFileName),
		CacheDir:      filepath.Join(xdg.CacheHome, AppName, lyricsDirectory),
		LogPath:       filepath.Join(xdg.StateHome, AppName, logFileName),
	}
}

func HTTPTimeout() time.Duration {
	return HTTPTimeoutSeconds * time.Second
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func getEnvOrDefault(key string, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
