// Command bluescsi-imgtool is a hosted-OS diagnostic wrapper around
// this module's cue/image/cdrom packages — a thin CLI for inspecting
// disc images offline, not part of the firmware image itself (§6).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bluescsi-imgtool",
		Short: "Inspect BlueSCSI-class disc images offline",
	}
	root.AddCommand(newCueCmd())
	root.AddCommand(newRomCmd())
	root.AddCommand(newTOCCmd())
	root.AddCommand(newConfigCmd())
	return root
}
