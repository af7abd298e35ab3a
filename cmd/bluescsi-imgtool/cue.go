package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/BlueSCSI/BlueSCSI-v2-sub004/cue"
)

func newCueCmd() *cobra.Command {
	cueCmd := &cobra.Command{
		Use:   "cue",
		Short: "Cue sheet operations",
	}
	cueCmd.AddCommand(newCueValidateCmd())
	return cueCmd
}

func newCueValidateCmd() *cobra.Command {
	var binSize int64

	validate := &cobra.Command{
		Use:   "validate <path>",
		Short: "Parse a .cue sheet and report its track layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("imgtool: reading %s: %w", args[0], err)
			}

			sheet := cue.Parse(string(text), binSize)
			for _, t := range sheet.Tracks {
				fmt.Printf("track %02d  %-10s  start=%d  data=%d  offset=%d",
					t.Number, t.Mode, t.TrackStartLBA, t.DataStartLBA, t.FileOffset)
				if t.Warning != "" {
					fmt.Printf("  (%s)", t.Warning)
				}
				fmt.Println()
			}
			return nil
		},
	}
	validate.Flags().Int64Var(&binSize, "bin-size", 0, "size in bytes of the backing .bin file, passed to the cue parser (the printed track layout does not depend on it)")
	return validate
}
