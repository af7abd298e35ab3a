package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/BlueSCSI/BlueSCSI-v2-sub004/image"
)

func newRomCmd() *cobra.Command {
	romCmd := &cobra.Command{
		Use:   "rom",
		Short: "ROMDrive-backed image operations",
	}
	romCmd.AddCommand(newRomInspectCmd())
	return romCmd
}

func newRomInspectCmd() *cobra.Command {
	var base int64

	inspect := &cobra.Command{
		Use:   "inspect <path>",
		Short: "Validate a ROMDrive header and print its fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("imgtool: opening %s: %w", args[0], err)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("imgtool: stat %s: %w", args[0], err)
			}

			rom, err := image.OpenRom(f, base, info.Size())
			if err != nil {
				return err
			}

			h := rom.Header()
			fmt.Printf("scsi id:    %d\n", h.SCSIID)
			fmt.Printf("image size: %d bytes\n", h.ImageSize)
			fmt.Printf("block size: %d bytes\n", h.BlockSize)
			fmt.Printf("drive type: %d\n", h.DriveType)
			return nil
		},
	}
	inspect.Flags().Int64Var(&base, "base", 0, "byte offset of the ROMDrive header within the file")
	return inspect
}
