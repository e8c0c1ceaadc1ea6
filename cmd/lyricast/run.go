package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"karolbroda.com/lyricast/internal/player"
	"karolbroda.com/lyricast/internal/prefs"
	"karolbroda.com/lyricast/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start the interactive lyrics viewer",
	Long:  `follow the configured mpris player and show the current lyric line as it plays.`,
	RunE:  runViewer,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runViewer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	cfg := loadConfig(cmd)

	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	bus, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer bus.Close()

	sess, err := a.newSession(player.NewPositionReader(bus, cfg.MprisService))
	if err != nil {
		return err
	}
	defer sess.Close()

	sess.SetSource(prefs.SourceID(cfg.MprisService))

	playerService, err := player.NewService(bus, cfg.MprisService, sess, a.log.WithPrefix("player"))
	if err != nil {
		return fmt.Errorf("failed to create player service: %w", err)
	}

	if err := playerService.Start(); err != nil {
		a.log.Warn("could not subscribe to player signals", "err", err)
	}
	defer playerService.Stop()

	snapshots, unsubscribe := a.store.Subscribe()
	defer unsubscribe()

	model := ui.NewModel(ui.ModelConfig{
		Snapshots:  snapshots,
		Controller: sess,
		HideHeader: cfg.HideHeader,
		Source:     cfg.MprisService,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	a.log.Info("viewer started", "player", cfg.MprisService)

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error running bubble tea: %w", err)
	}

	return nil
}
