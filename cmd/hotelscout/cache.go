package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/Veraticus/hotel-scout/internal/cli"
	"github.com/Veraticus/hotel-scout/internal/model"
	"github.com/Veraticus/hotel-scout/internal/service"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the provider response cache",
	}
	cmd.AddCommand(cachePurgeCmd())
	cmd.AddCommand(cacheWarmCmd())
	return cmd
}

func cachePurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete expired cache entries, or all of them with --all",
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, _ := cmd.Flags().GetBool("all")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := initStorage(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var removed int64
			if all {
				removed, err = store.PurgeAll(cmd.Context())
			} else {
				removed, err = store.PurgeExpired(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("failed to purge cache: %w", err)
			}
			fmt.Fprintln(os.Stdout, cli.FormatSuccess(fmt.Sprintf("Removed %d cache entries", removed)))
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "delete every entry, not only expired ones")
	return cmd
}

func cacheWarmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warm CITY...",
		Short: "Pre-fetch city lookups and hotel lists",
		Long: `Look up each city and fetch its hotel list for every --radius so the
first searches of the day are served from the cache.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCacheWarm,
	}
	cmd.Flags().IntSlice("radius", []int{5, 10, 25}, "search radii in km to fetch")
	cmd.Flags().Int("workers", 4, "cities fetched in parallel")
	return cmd
}

func runCacheWarm(cmd *cobra.Command, cities []string) error {
	radii, _ := cmd.Flags().GetIntSlice("radius")
	workers, _ := cmd.Flags().GetInt("workers")
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := initStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	provider, err := newProvider(cfg, store)
	if err != nil {
		return err
	}
	defer func() { _ = provider.Close() }()

	bar := progressbar.NewOptions(len(cities)*(len(radii)+1),
		progressbar.OptionSetDescription("Warming cache"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	var failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, name := range cities {
		g.Go(func() error {
			if err := warmCity(gctx, provider, name, radii, bar); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				slog.Warn("Failed to warm city", "city", name, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	_ = bar.Finish()

	warmed := len(cities) - int(failed.Load())
	fmt.Fprintln(os.Stdout, cli.FormatSuccess(fmt.Sprintf("Warmed %d of %d cities", warmed, len(cities))))
	return nil
}

// warmProvider is the part of the provider that warming exercises.
type warmProvider interface {
	service.CityFinder
	HotelsInCity(ctx context.Context, cityCode string, radiusKm int) ([]model.Hotel, error)
}

// warmCity advances bar by one step for the lookup and one per radius, even on failure.
func warmCity(ctx context.Context, provider warmProvider, name string, radii []int, bar *progressbar.ProgressBar) error {
	cities, err := provider.FindCities(ctx, name)
	_ = bar.Add(1)
	if err == nil && len(cities) == 0 {
		err = fmt.Errorf("no city matches %q", name)
	}
	if err != nil {
		_ = bar.Add(len(radii))
		return err
	}

	code := cities[0].Code
	for i, r := range radii {
		_, err := provider.HotelsInCity(ctx, code, r)
		_ = bar.Add(1)
		if err != nil {
			_ = bar.Add(len(radii) - i - 1)
			return fmt.Errorf("hotels within %d km of %s: %w", r, code, err)
		}
	}
	return nil
}
