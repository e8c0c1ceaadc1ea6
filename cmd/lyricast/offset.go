package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"karolbroda.com/lyricast/internal/prefs"
)

var offsetCmd = &cobra.Command{
	Use:   "offset",
	Short: "inspect and calibrate lyric timing",
	Long: `the offset added to every reported position is the manual offset plus an
offset for the player. a player gets -200ms the first time it is seen.`,
}

var offsetShowCmd = &cobra.Command{
	Use:   "show",
	Short: "show stored offsets",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		offsets, err := openOffsets(cmd)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "file:   %s\n", offsets.Path())
		fmt.Fprintf(out, "manual: %+dms\n", offsets.Manual())

		sources := offsets.Sources()
		if len(sources) == 0 {
			fmt.Fprintln(out, "no players calibrated yet")
			return nil
		}

		fmt.Fprintln(out, "players:")
		for _, src := range sources {
			fmt.Fprintf(out, "  %s: %+dms (total %+dms)\n", src, offsets.SourceOffset(src), offsets.Total(src))
		}
		return nil
	},
}

var offsetSetCmd = &cobra.Command{
	Use:   "set <ms>",
	Short: "set the manual offset in milliseconds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		ms, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid offset %q: %w", args[0], err)
		}

		offsets, err := openOffsets(cmd)
		if err != nil {
			return err
		}

		err = offsets.SetManual(ms)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "manual offset set to %+dms\n", ms)
		return nil
	},
}

var offsetSourceCmd = &cobra.Command{
	Use:   "source <mpris-service> <ms>",
	Short: "set the offset for one player",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		ms, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid offset %q: %w", args[1], err)
		}

		offsets, err := openOffsets(cmd)
		if err != nil {
			return err
		}

		err = offsets.SetSourceOffset(prefs.SourceID(args[0]), ms)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "offset for %s set to %+dms\n", args[0], ms)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(offsetCmd)

	offsetCmd.AddCommand(offsetShowCmd)
	offsetCmd.AddCommand(offsetSetCmd)
	offsetCmd.AddCommand(offsetSourceCmd)
}

func openOffsets(cmd *cobra.Command) (*prefs.Offsets, error) {
	return prefs.Load(loadConfig(cmd).OffsetsPath)
}
