package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tbenr/protovis/pkg/httputil"
)

// newCacheCmd creates the cache management command for the assembled-graph
// cache.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the assembled-graph cache",
	}

	cmd.AddCommand(newCacheClearCmd())
	cmd.AddCommand(newCachePathCmd())

	return cmd
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear all cached graphs",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			logger := loggerFromContext(c.Context())

			cache, err := httputil.NewCache("", 0)
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			dir := cache.Dir()

			entries, err := os.ReadDir(dir)
			if os.IsNotExist(err) {
				logger.Info("Cache is empty")
				return nil
			}
			if err != nil {
				return err
			}

			count := 0
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
					count++
				}
			}

			logger.Infof("Cleared %d cached entries from %s", count, dir)
			return nil
		},
	}
}

func newCachePathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cache, err := httputil.NewCache("", 0)
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			fmt.Println(cache.Dir())
			return nil
		},
	}
}
