package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// global flags
	mprisService  string
	hideHeader    bool
	lrclibURL     string
	translitURL   string
	noTranslit    bool
	translitBatch bool
	noCache       bool
	logLevel      string
)

var rootCmd = &cobra.Command{
	Use:   "lyricast",
	Short: "synchronized lyrics for the song your player is playing",
	Long: `lyricast follows an mpris music player and shows the current line of
time-synced lyrics from lrclib, converting japanese lyrics to romaji through a
transliteration service when needed.

when run without a subcommand, it starts the interactive TUI viewer.`,
	Version: "0.1.0",
	RunE: func(cmd *cobra.Command, args []string) error {
		// default behavior: run the TUI viewer
		return runViewer(cmd, args)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&mprisService, "mpris-service", "m", "", "mpris service name (e.g., org.mpris.MediaPlayer2.spotify)")
	rootCmd.PersistentFlags().BoolVarP(&hideHeader, "hide-header", "H", false, "hide header section")
	rootCmd.PersistentFlags().StringVar(&lrclibURL, "lrclib-url", "", "custom lrclib api url")
	rootCmd.PersistentFlags().StringVar(&translitURL, "translit-url", "", "transliteration service url")
	rootCmd.PersistentFlags().BoolVar(&noTranslit, "no-translit", false, "never call the transliteration service")
	rootCmd.PersistentFlags().BoolVar(&translitBatch, "translit-batch", false, "convert whole lyric sets through the batch endpoint")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "disable cache reads (always fetch fresh)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
