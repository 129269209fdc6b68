package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/lusa-tutor/lusa/internal/cache"
	"github.com/spf13/cobra"
)

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the voice cache",
		Args:  cobra.NoArgs,
	}

	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show voice cache usage",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			c, err := openClipCache()
			if err != nil {
				return err
			}
			defer c.Close() //nolint:errcheck

			st := c.Stats()
			fmt.Println(heading("Voice cache"), faint(cfg.Cache.Dir))
			printTier("memory", st.Memory)
			if st.OnDisk {
				printTier("disk", st.Disk)
			}
			return nil
		},
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached voice clip",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			c, err := openClipCache()
			if err != nil {
				return err
			}
			defer c.Close() //nolint:errcheck

			before := c.Stats()
			if err := c.Clear(); err != nil {
				return err
			}
			fmt.Printf("Removed %s of cached voice.\n", humanize.IBytes(uint64(before.Memory.Size+before.Disk.Size))) //nolint:gosec
			return nil
		},
	}
)

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove voice clips older than the cache TTL",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		c, err := openClipCache()
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		n := c.Prune()
		fmt.Printf("Removed %s older than %s.\n", humanize.Comma(int64(n))+" clips", cfg.Cache.TTL)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cachePruneCmd)
}

func openClipCache() (*cache.Store, error) {
	cc := cfg.CacheConfig()
	cc.PruneInterval = 0
	c, err := cache.Open(cc)
	if err != nil {
		return nil, fmt.Errorf("unable to open voice cache: %w", err)
	}
	return c, nil
}

func printTier(name string, st cache.Stats) {
	fmt.Printf("  %-7s %s / %s, %s clips", name,
		humanize.IBytes(uint64(st.Size)), humanize.IBytes(uint64(st.Capacity)), //nolint:gosec
		humanize.Comma(st.Items))
	if st.Hits+st.Misses > 0 {
		fmt.Printf(", %.0f%% hits", st.HitRate*100)
	}
	fmt.Println()
}
