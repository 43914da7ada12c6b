package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"folio/internal/checkpoint"
)

func newCheckpointsCommand(ctx *commandContext) *cobra.Command {
	checkpointsCmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "Inspect and clean up ingest checkpoints",
	}

	checkpointsCmd.AddCommand(newCheckpointsListCommand(ctx))
	checkpointsCmd.AddCommand(newCheckpointsClearCommand(ctx))

	return checkpointsCmd
}

func newCheckpointsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded ingest checkpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := checkpoint.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			points, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(points) == 0 {
				fmt.Fprintln(out, "No checkpoints recorded.")
				return nil
			}

			rows := make([]table.Row, 0, len(points))
			for _, cp := range points {
				rows = append(rows, table.Row{
					cp.ID,
					cp.SourceName,
					string(cp.Status),
					fmt.Sprintf("%d/%d", cp.ProcessedFiles, cp.TotalFiles),
					fmt.Sprintf("%.1f%%", cp.Progress),
					cp.UpdatedAt.Format(time.RFC3339),
				})
			}
			fmt.Fprintln(out, renderTable(table.Row{"ID", "Source", "Status", "Files", "Progress", "Updated"}, rows, 4, 5))
			return nil
		},
	}
}

func newCheckpointsClearCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear [checkpoint-id]",
		Short: "Remove a checkpoint, or prune per retention policy",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := checkpoint.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			switch {
			case len(args) == 1:
				if err := store.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed checkpoint %s\n", args[0])
			case all:
				points, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, cp := range points {
					if err := store.Delete(cmd.Context(), cp.ID); err != nil {
						return err
					}
				}
				fmt.Fprintf(out, "Removed %d checkpoints\n", len(points))
			default:
				retention := time.Duration(cfg.Checkpoints.RetentionDays) * 24 * time.Hour
				pruned, err := store.Prune(cmd.Context(), retention, cfg.Checkpoints.MaxCount)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Pruned %d checkpoints\n", pruned)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Remove every checkpoint")

	return cmd
}
