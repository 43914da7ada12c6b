package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"folio/internal/archive"
	"folio/internal/assets"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var flat bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display the archive project structure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store := assets.NewFSStore(cfg.Paths.ArchiveDir)
			root, err := store.LoadProject()
			if err != nil {
				return fmt.Errorf("load project: %w", err)
			}

			out := cmd.OutOrStdout()
			if flat {
				root.Walk(func(e *archive.Entity) bool {
					fmt.Fprintf(out, "%s  %-10s  %s\n", e.ID, e.Kind, e.Label)
					return true
				})
				return nil
			}
			printEntity(cmd, root, 0)
			fmt.Fprintf(out, "\n%d collections, %d manifests, %d canvases\n",
				root.Count(archive.KindCollection),
				root.Count(archive.KindManifest),
				root.Count(archive.KindCanvas))
			return nil
		},
	}

	cmd.Flags().BoolVar(&flat, "flat", false, "List entities one per line with ids")

	return cmd
}

func printEntity(cmd *cobra.Command, e *archive.Entity, depth int) {
	out := cmd.OutOrStdout()
	indent := strings.Repeat("  ", depth)
	switch e.Kind {
	case archive.KindAnnotation:
		fmt.Fprintf(out, "%s- asset %s (%s)\n", indent, e.AssetID, e.Format)
	case archive.KindCanvas:
		fmt.Fprintf(out, "%s%s [%s %dx%d]\n", indent, e.Label, e.Kind, e.Width, e.Height)
	default:
		fmt.Fprintf(out, "%s%s [%s]\n", indent, e.Label, e.Kind)
	}
	for _, child := range e.Items {
		printEntity(cmd, child, depth+1)
	}
}
