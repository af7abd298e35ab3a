package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BlueSCSI/BlueSCSI-v2-sub004/cdrom"
	"github.com/BlueSCSI/BlueSCSI-v2-sub004/cue"
	"github.com/BlueSCSI/BlueSCSI-v2-sub004/image"
)

// fileStore adapts *os.File to image.Store's read-only surface, just
// enough for this tool to synthesize a TOC without ever writing.
type fileStore struct {
	f    *os.File
	size int64
}

func (s *fileStore) Size() int64                            { return s.size }
func (s *fileStore) IsWritable() bool                       { return false }
func (s *fileStore) Seek(pos int64) error                   { _, err := s.f.Seek(pos, 0); return err }
func (s *fileStore) Read(buf []byte) (int, error)            { return s.f.Read(buf) }
func (s *fileStore) Write([]byte) (int, error)               { return 0, image.ErrReadOnly }
func (s *fileStore) ContiguousRange() (uint32, uint32, bool) { return 0, 0, false }

func newTOCCmd() *cobra.Command {
	var binPath string

	tocCmd := &cobra.Command{
		Use:   "toc <cue-path>",
		Short: "Print the READ TOC format 0 track list a cue sheet produces",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cuePath := args[0]
			if binPath == "" {
				binPath = strings.TrimSuffix(cuePath, ".cue") + ".bin"
			}

			text, err := os.ReadFile(cuePath)
			if err != nil {
				return fmt.Errorf("imgtool: reading %s: %w", cuePath, err)
			}

			bin, err := os.Open(binPath)
			if err != nil {
				return fmt.Errorf("imgtool: opening %s: %w", binPath, err)
			}
			defer bin.Close()

			info, err := bin.Stat()
			if err != nil {
				return err
			}

			sheet := cue.Parse(string(text), info.Size())
			disc := cdrom.NewDisc(sheet, &fileStore{f: bin, size: info.Size()}, 512)

			data, err := disc.TOC(false, 1, -1)
			if err != nil {
				return err
			}

			fmt.Printf("first track=%d last track=%d lead-out LBA=%d\n", data[2], data[3], disc.LeadOutLBA())
			for _, t := range sheet.Tracks {
				fmt.Printf("  track %02d  %-10s  lba=%d\n", t.Number, t.Mode, t.DataStartLBA)
			}
			return nil
		},
	}
	tocCmd.Flags().StringVar(&binPath, "bin", "", "path to the backing .bin file (defaults to the .cue path with its extension swapped)")
	return tocCmd
}
