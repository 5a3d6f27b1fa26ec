package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Skryldev/imagesizer"
	"github.com/Skryldev/imagesizer/internal/tui"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the image formats this build reads and writes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sizer, err := imagesizer.New(imagesizer.DefaultConfig())
		if err != nil {
			return err
		}
		defer imagesizer.Shutdown()

		dec, enc := sizer.Formats()
		fmt.Fprintln(os.Stdout, tui.RenderSummary([]tui.SummaryRow{
			{Label: "Reads", Value: joinFormats(dec)},
			{Label: "Writes", Value: joinFormats(enc)},
			{Label: "Skipped", Value: "gif"},
		}))
		return nil
	},
}

func joinFormats[T ~string](fs []T) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}
