package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/zeusync/chaoscache/internal/core/cache"
	"github.com/zeusync/chaoscache/internal/core/storage"
)

// NewInspectCmd creates the inspect subcommand.
func NewInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <asset|store-dir>",
		Short: "Summarise a cache asset, a collection asset or a cache store directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caches, err := loadAsset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printCaches(cmd.OutOrStdout(), caches)
		},
	}
}

// loadAsset reads a store directory or a collection asset, falling back to
// a single cache.
func loadAsset(ctx context.Context, path string) ([]*cache.Cache, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		dir, err := storage.NewDir(path)
		if err != nil {
			return nil, err
		}
		col, err := storage.LoadCollection(ctx, dir, path)
		if err != nil {
			return nil, err
		}
		return col.Caches(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code("ASSET_READ_FAILED").With("path", path).Wrap(err)
	}
	col, err := cache.LoadCollection(bytes.NewReader(data))
	if err == nil {
		return col.Caches(), nil
	}
	if !errors.Is(err, cache.ErrCorruptAsset) {
		return nil, oops.With("path", path).Wrap(err)
	}
	c, err := cache.Load(bytes.NewReader(data))
	if err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	return []*cache.Cache{c}, nil
}

func printCaches(w io.Writer, caches []*cache.Cache) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADAPTER\tFRAMES\tDURATION\tPARTICLES\tEVENT TRACKS")
	for _, c := range caches {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.3fs\t%d\t%v\n",
			c.Name(), c.AdapterGUID(), c.FrameCount(), c.Duration(), c.NumTracks(), c.EventTrackNames())
	}
	return tw.Flush()
}
