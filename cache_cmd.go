package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/ghdrive/internal/blobcache"
	"github.com/tonimelisma/ghdrive/internal/config"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or shrink the local blob cache",
	}

	cmd.AddCommand(newCacheStatsCmd())
	cmd.AddCommand(newCachePruneCmd())

	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show how many blobs are cached and their size",
		Args:  cobra.NoArgs,
		RunE:  runCacheStats,
	}
}

func newCachePruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Evict least recently used blobs",
		Long: `Evict least recently used blobs until the cache fits in --max-size
(default cache.max_cache_size). --max-size 0 empties the cache.`,
		Args: cobra.NoArgs,
		RunE: runCachePrune,
	}

	cmd.Flags().String("max-size", "", "target size, e.g. 100MiB")

	return cmd
}

// cacheStatsOutput is the JSON schema for `cache stats --json`.
type cacheStatsOutput struct {
	Path  string `json:"path"`
	Blobs int    `json:"blobs"`
	Bytes int64  `json:"bytes"`
}

func openCacheForCommand(ctx context.Context, cc *CLIContext) (*blobcache.Store, string, error) {
	path := config.BlobCachePath(cc.Cfg)
	if path == "" {
		return nil, "", errors.New("cannot determine blob cache path; set cache.blob_cache_dir")
	}

	_, maxCache, _ := cc.Cfg.Sizes()

	store, err := blobcache.Open(ctx, path, maxCache, cc.Logger)
	if err != nil {
		return nil, path, err
	}

	return store, path, nil
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	store, path, err := openCacheForCommand(ctx, cc)
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := store.Stats(ctx)
	if err != nil {
		return err
	}

	out := cacheStatsOutput{Path: path, Blobs: st.Blobs, Bytes: st.Bytes}

	if cc.Flags.JSON {
		return printJSON(os.Stdout, out)
	}

	printCacheStats(os.Stdout, out)

	return nil
}

func printCacheStats(w io.Writer, out cacheStatsOutput) {
	fmt.Fprintf(w, "Path:  %s\n", out.Path)
	fmt.Fprintf(w, "Blobs: %d\n", out.Blobs)
	fmt.Fprintf(w, "Size:  %s\n", formatSize(out.Bytes))
}

func runCachePrune(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	_, limit, _ := cc.Cfg.Sizes()

	if raw, _ := cmd.Flags().GetString("max-size"); raw != "" {
		n, err := config.ParseSize(raw)
		if err != nil {
			return fmt.Errorf("invalid --max-size: %w", err)
		}

		limit = n
	}

	store, _, err := openCacheForCommand(ctx, cc)
	if err != nil {
		return err
	}
	defer store.Close()

	removed, err := store.Prune(ctx, limit)
	if err != nil {
		return err
	}

	cc.Statusf("Evicted %d blobs; cache limit %s.\n", removed, formatSize(limit))

	return nil
}
