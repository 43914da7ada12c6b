package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"folio/internal/archive"
	"folio/internal/assets"
	"folio/internal/checkpoint"
	"folio/internal/derivatives"
	"folio/internal/filetree"
	"folio/internal/ingest"
	"folio/internal/integrity"
	"folio/internal/notifications"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var intoProject string
	var resume bool

	cmd := &cobra.Command{
		Use:   "ingest <directory>",
		Short: "Import a directory of scanned files into the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			source := filepath.Clean(args[0])
			handles, err := filetree.CollectDir(source)
			if err != nil {
				return fmt.Errorf("scan %s: %w", source, err)
			}

			registry, err := integrity.Open(cfg)
			if err != nil {
				return err
			}
			defer registry.Close()

			points, err := checkpoint.Open(cfg)
			if err != nil {
				return err
			}
			defer points.Close()

			pool := derivatives.NewPool(cfg, logger)
			defer pool.Abort()

			store := assets.NewFSStore(cfg.Paths.ArchiveDir)

			opts := ingest.Options{
				SourceName: filepath.Base(source),
				Resume:     resume,
				LockPath:   filepath.Join(cfg.Paths.ArchiveDir, "ingest.lock"),
			}
			if intoProject != "" {
				root, err := assets.LoadProjectFile(intoProject)
				if err != nil {
					return fmt.Errorf("load existing project: %w", err)
				}
				if root == nil {
					return fmt.Errorf("no project found at %s", intoProject)
				}
				opts.ExistingRoot = root
			}

			stderr := cmd.ErrOrStderr()
			if f, ok := stderr.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
				opts.OnProgress = ingest.LegacyProgress(func(message string, percent float64) {
					fmt.Fprintf(stderr, "\r\033[K%s %5.1f%%", message, percent)
				})
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			notifier := notifications.NewService(cfg)
			_ = notifier.NotifyIngestStarted(runCtx, opts.SourceName, len(handles))
			started := time.Now()

			orchestrator := ingest.New(cfg, logger, registry, pool, store, points)
			result, runErr := orchestrator.Run(runCtx, handles, opts)
			notifyOutcome(notifier, opts.SourceName, result, runErr, time.Since(started))
			if opts.OnProgress != nil {
				fmt.Fprintln(stderr)
			}
			if result != nil {
				printReport(cmd, result)
			}
			if runErr != nil {
				if runCtx.Err() != nil && result != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Interrupted. Resume with: folio ingest --resume %s\n", source)
				}
				return runErr
			}

			// Queued full-size renders outlive the ingest itself. Wait for
			// them instead of discarding the work on exit.
			if opts.OnProgress != nil {
				fmt.Fprint(stderr, "finishing derivatives...")
			}
			pool.Close()
			if opts.OnProgress != nil {
				fmt.Fprintln(stderr, " done")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&intoProject, "into", "", "Merge into this project file instead of starting fresh")
	cmd.Flags().BoolVar(&resume, "resume", false, "Resume the interrupted ingest for this source")

	return cmd
}

func notifyOutcome(notifier notifications.Service, source string, result *ingest.Result, runErr error, elapsed time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if runErr != nil {
		_ = notifier.NotifyIngestFailed(ctx, source, runErr)
		return
	}
	processed, duplicates := 0, 0
	if result != nil {
		processed = result.Report.FilesProcessed
		duplicates = result.Report.DuplicatesSkipped
	}
	_ = notifier.NotifyIngestCompleted(ctx, source, processed, duplicates, elapsed)
}

func printReport(cmd *cobra.Command, result *ingest.Result) {
	out := cmd.OutOrStdout()

	rows := []table.Row{
		{"Collections", result.Report.CollectionsCreated},
		{"Manifests", result.Report.ManifestsCreated},
		{"Canvases", result.Report.CanvasesCreated},
		{"Files processed", result.Report.FilesProcessed},
		{"Duplicates flagged", result.Report.DuplicatesSkipped},
		{"Warnings", len(result.Report.Warnings)},
	}
	fmt.Fprintln(out, renderTable(table.Row{"Metric", "Count"}, rows, 2))

	for _, warning := range result.Report.Warnings {
		fmt.Fprintf(out, "warning: %s\n", warning)
	}
	if result.Root != nil {
		fmt.Fprintf(out, "Root %s %q holds %d canvases.\n",
			result.Root.Kind, result.Root.Label, result.Root.Count(archive.KindCanvas))
	}
}
