package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"karolbroda.com/lyricast/internal/player"
)

var playerCmd = &cobra.Command{
	Use:   "player",
	Short: "mpris player utilities",
	Long:  `find the mpris players on the session bus and read what they are playing.`,
}

var playerListCmd = &cobra.Command{
	Use:   "list",
	Short: "list running mpris players",
	RunE: withBus(func(cmd *cobra.Command, bus *dbus.Conn) error {
		services, err := player.ListPlayers(bus)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(services) == 0 {
			fmt.Fprintln(out, "no mpris players on the session bus")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SERVICE\tIDENTITY")
		for _, service := range services {
			identity := player.Identity(bus, service)
			if identity == "" {
				identity = "-"
			}
			fmt.Fprintf(w, "%s\t%s\n", service, identity)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Fprintln(out, "\npass one to --mpris-service to follow it")
		return nil
	}),
}

var playerCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "show the track the configured player reports",
	RunE: withBus(func(cmd *cobra.Command, bus *dbus.Conn) error {
		cfg := loadConfig(cmd)

		svc, err := player.NewService(bus, cfg.MprisService, discardSink{}, nil)
		if err != nil {
			return fmt.Errorf("failed to connect to player: %w", err)
		}

		snap, err := svc.Current()
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", cfg.MprisService, err)
		}

		printSnapshot(cmd.OutOrStdout(), snap)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(playerCmd)
	playerCmd.AddCommand(playerListCmd, playerCurrentCmd)
}

func withBus(fn func(cmd *cobra.Command, bus *dbus.Conn) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		bus, err := dbus.ConnectSessionBus()
		if err != nil {
			return fmt.Errorf("failed to connect to session bus: %w", err)
		}
		defer bus.Close()

		return fn(cmd, bus)
	}
}

func printSnapshot(out io.Writer, snap player.Snapshot) {
	if snap.Identity != "" {
		fmt.Fprintf(out, "player:   %s\n", snap.Identity)
	}
	if !snap.Track.IsValid() {
		fmt.Fprintln(out, "nothing playing")
		return
	}

	fmt.Fprintf(out, "title:    %s\n", snap.Track.Title)
	fmt.Fprintf(out, "artist:   %s\n", snap.Track.Artist)
	if snap.Album != "" {
		fmt.Fprintf(out, "album:    %s\n", snap.Album)
	}
	if snap.Track.DurationMs > 0 {
		fmt.Fprintf(out, "duration: %s\n", formatDuration(snap.Track.DurationMs))
	}

	state := "paused"
	if snap.Playing {
		state = "playing"
	}
	fmt.Fprintf(out, "state:    %s\n", state)
	fmt.Fprintf(out, "position: %s\n", formatDuration(snap.PositionMs))
}

// discardSink lets the one-shot commands read a player without a session.
type discardSink struct{}

func (discardSink) OnTrackMetadata(string, string, int64) {}
func (discardSink) OnPlaybackState(bool)                  {}
func (discardSink) OnPositionTick(int64)                  {}
func (discardSink) OnSessionEnded()                       {}

func formatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	seconds := ms / 1000
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
