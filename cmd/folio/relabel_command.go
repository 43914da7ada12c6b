package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"folio/internal/assets"
	"folio/internal/vault"
)

func newRelabelCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relabel <entity-id> <label>",
		Short: "Change an entity's display label",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			store := assets.NewFSStore(cfg.Paths.ArchiveDir)
			root, err := store.LoadProject()
			if err != nil {
				return fmt.Errorf("load project: %w", err)
			}

			v := vault.New(cfg.Vault.HistoryLimit, logger)
			if err := v.Load(root); err != nil {
				return fmt.Errorf("load entities: %w", err)
			}
			if !v.Dispatch(vault.UpdateField{ID: args[0], Field: "label", Value: args[1]}) {
				return fmt.Errorf("no entity with id %s", args[0])
			}

			updated, err := v.ExportRoot()
			if err != nil {
				return err
			}
			if err := store.SaveProject(cmd.Context(), updated); err != nil {
				return fmt.Errorf("save project: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Relabeled %s to %q\n", args[0], args[1])
			return nil
		},
	}
	return cmd
}
