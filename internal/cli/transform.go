package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Skryldev/imagesizer"
	"github.com/Skryldev/imagesizer/config"
	"github.com/Skryldev/imagesizer/core"
	"github.com/Skryldev/imagesizer/hooks"
	"github.com/Skryldev/imagesizer/internal/tui"
)

var (
	transformCrop          string
	transformSmartCrop     bool
	transformMB            float64
	transformWidth         int
	transformHeight        int
	transformOp            string
	transformQuality       int
	transformOutputDir     string
	transformSkipSatisfied bool
	transformWorkers       int
	transformPlain         bool
)

var transformCmd = &cobra.Command{
	Use:   "transform [flags] <file>...",
	Short: "Crop and resize images towards a size target",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
		}
		if cmd.Flags().Changed("workers") {
			cfg.WorkerCount = transformWorkers
		}

		reqs, err := buildRequests(cmd, args)
		if err != nil {
			return err
		}

		logger, closer := newLogger(cfg, !transformPlain)
		defer closer.Close()

		sizer, err := imagesizer.New(cfg)
		if err != nil {
			return err
		}
		defer imagesizer.Shutdown()
		sizer.SetLogger(logger)
		sizer.AddHook(hooks.NewLoggingHook(logger))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		updates := make(chan core.ProgressUpdate, 64)
		uiDone := make(chan struct{})
		if transformPlain {
			go func() {
				for u := range updates {
					if u.Done {
						fmt.Fprintf(os.Stderr, "done %s\n", u.Path)
					}
				}
				close(uiDone)
			}()
		} else {
			program := tea.NewProgram(tui.NewModel(updates, len(reqs)))
			go func() {
				_, _ = program.Run()
				// The view owns the terminal, so ctrl+c arrives as a key press
				// and ends the program early; cancel the batch and keep
				// draining so workers never block.
				cancel()
				for range updates {
				}
				close(uiDone)
			}()
		}

		results, errs := sizer.Batch(ctx, reqs, updates)
		close(updates)
		<-uiDone

		rows := make([]tui.ResultRow, len(reqs))
		failed := 0
		for i, req := range reqs {
			rows[i] = tui.NewResultRow(req.SourcePath, results[i], errs[i])
			if errs[i] != nil {
				failed++
			}
		}
		fmt.Fprintln(os.Stdout, tui.RenderResults(rows))

		processed, _ := sizer.Stats()
		fmt.Fprintln(os.Stdout, tui.RenderSummary([]tui.SummaryRow{
			{Label: "Files", Value: fmt.Sprintf("%d", len(reqs))},
			{Label: "Succeeded", Value: fmt.Sprintf("%d", processed)},
			{Label: "Failed", Value: fmt.Sprintf("%d", failed)},
		}))
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(reqs))
		}
		return nil
	},
}

// buildRequests turns the flags into one request per file, rejecting bad
// values before any file is touched.
func buildRequests(cmd *cobra.Command, files []string) ([]core.Request, error) {
	crop, err := parseCrop(transformCrop, transformSmartCrop)
	if err != nil {
		return nil, err
	}
	op, err := parseOperation(transformOp)
	if err != nil {
		return nil, err
	}

	target := core.NoTarget
	flags := cmd.Flags()
	switch {
	case flags.Changed("mb"):
		if transformMB <= 0 {
			return nil, fmt.Errorf("--mb must be positive")
		}
		target = core.ByFileSize(transformMB)
	case flags.Changed("width"):
		if transformWidth <= 0 {
			return nil, fmt.Errorf("--width must be positive")
		}
		target = core.ByWidth(transformWidth)
	case flags.Changed("height"):
		if transformHeight <= 0 {
			return nil, fmt.Errorf("--height must be positive")
		}
		target = core.ByHeight(transformHeight)
	}

	var skip *bool
	if flags.Changed("skip-satisfied") {
		skip = &transformSkipSatisfied
	}

	reqs := make([]core.Request, len(files))
	for i, f := range files {
		reqs[i] = core.Request{
			SourcePath:             f,
			OutputDir:              transformOutputDir,
			Target:                 target,
			Operation:              op,
			Crop:                   crop,
			Quality:                transformQuality,
			SkipIfAlreadySatisfied: skip,
		}
	}
	return reqs, nil
}

func init() {
	f := transformCmd.Flags()
	f.StringVar(&transformCrop, "crop", "none", "crop before resizing: none, square, 16:9, 4:3 or W:H")
	f.BoolVar(&transformSmartCrop, "smart-crop", false, "place the crop window on the most interesting region")
	f.Float64Var(&transformMB, "mb", 0, "target file size in megabytes")
	f.IntVar(&transformWidth, "width", 0, "target width in pixels")
	f.IntVar(&transformHeight, "height", 0, "target height in pixels")
	f.StringVar(&transformOp, "op", "auto", "direction: auto, compress or upscale")
	f.IntVarP(&transformQuality, "quality", "q", 0, "starting encoder quality 1-100 (default from config)")
	f.StringVarP(&transformOutputDir, "output", "o", "", "destination folder (default: next to each source)")
	f.BoolVar(&transformSkipSatisfied, "skip-satisfied", false, "leave files that already meet the target alone")
	f.IntVar(&transformWorkers, "workers", 0, "files processed in parallel (default from config)")
	f.BoolVar(&transformPlain, "plain", false, "print plain progress lines instead of the progress view")
	transformCmd.MarkFlagsMutuallyExclusive("mb", "width", "height")

	rootCmd.AddCommand(transformCmd)
}
