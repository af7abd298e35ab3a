package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/BlueSCSI/BlueSCSI-v2-sub004/config"
)

func newConfigCmd() *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration file operations",
	}
	cfgCmd.AddCommand(newConfigValidateCmd())
	return cfgCmd
}

func newConfigValidateCmd() *cobra.Command {
	validate := &cobra.Command{
		Use:   "validate <path>",
		Short: "Parse a TOML configuration file and report its targets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("imgtool: opening %s: %w", args[0], err)
			}
			defer f.Close()

			file, err := config.Decode(f)
			if err != nil {
				return err
			}

			fmt.Printf("Global: MaxSyncSpeed=%d SelectionDelay=%d EnableParity=%v EnableSCSI2=%v Quirks=%q\n",
				file.Global.MaxSyncSpeed, file.Global.SelectionDelay, file.Global.EnableParity,
				file.Global.EnableSCSI2, file.Global.Quirks)

			for _, t := range file.Targets {
				fmt.Printf("Target %d: Type=%s BlockSize=%d Vendor=%q Product=%q ImgDir=%s\n",
					t.ID, t.Type, t.BlockSize, t.Vendor, t.Product, t.ImgDir)
			}
			return nil
		},
	}
	return validate
}
