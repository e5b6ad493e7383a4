package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbenr/protovis/pkg/history"
)

// newExportCmd creates the export command, which serializes the configured
// store's snapshot history to a JSON file.
func newExportCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export the recorded snapshot history to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			logger := loggerFromContext(ctx)

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			store, err := cfg.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			h, err := history.Load(ctx, store, cfg.HistoryLimit)
			if err != nil {
				return err
			}
			if err := history.ExportJSON(h, args[0]); err != nil {
				return err
			}
			logger.Infof("Exported %d snapshots to %s", h.Len(), args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file")
	return cmd
}

// newImportCmd creates the import command, the inverse of export: it reads
// a serialized history file and appends its snapshots to the store. The
// file is validated as a whole first, so a malformed one changes nothing.
func newImportCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a snapshot history file into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			logger := loggerFromContext(ctx)

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			h, err := history.ImportJSON(args[0], cfg.HistoryLimit)
			if err != nil {
				return err
			}

			store, err := cfg.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			for _, snap := range h.Snapshots() {
				if err := store.Append(ctx, snap); err != nil {
					return fmt.Errorf("append snapshot %s: %w", snap.ID, err)
				}
			}
			logger.Infof("Imported %d snapshots from %s", h.Len(), args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file")
	return cmd
}
