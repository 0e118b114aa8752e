package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/hotel-scout/internal/amadeus"
	"github.com/Veraticus/hotel-scout/internal/config"
	"github.com/Veraticus/hotel-scout/internal/photos"
	"github.com/Veraticus/hotel-scout/internal/service"
	"github.com/Veraticus/hotel-scout/internal/storage"
)

// initStorage opens the configured database and applies pending migrations.
func initStorage(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// newProvider builds the Amadeus client with responses cached in cacheStore.
func newProvider(cfg *config.Config, cacheStore service.CacheStore) (*amadeus.Client, error) {
	if err := cfg.RequireAmadeus(); err != nil {
		return nil, err
	}
	return amadeus.NewClient(amadeus.Config{
		Cache:            cacheStore,
		Logger:           slog.Default(),
		ClientID:         cfg.Amadeus.ClientID,
		ClientSecret:     cfg.Amadeus.ClientSecret,
		BaseURL:          cfg.Amadeus.BaseURL,
		Retry:            cfg.RetryPolicy("amadeus"),
		Timeout:          cfg.Amadeus.Timeout,
		LongTTL:          cfg.Cache.LongTTL,
		OffersTTL:        cfg.Cache.OffersTTL,
		PurgeProbability: cfg.Cache.PurgeProbability,
		RateLimit:        cfg.Amadeus.RateLimit,
	})
}

// newEnricher builds the photo pipeline: image search, its response cache, and
// persistence of found photos into stored searches.
func newEnricher(cfg *config.Config, cacheStore service.CacheStore, photoStore service.PhotoStore) (*photos.Enricher, error) {
	searcher, err := photos.NewImageSearcher(photos.Config{
		Logger:          slog.Default(),
		BaseURL:         cfg.Photos.BaseURL,
		MaxImages:       cfg.Photos.MaxImages,
		MinWidth:        cfg.Photos.MinWidth,
		MinHeight:       cfg.Photos.MinHeight,
		LivenessTimeout: cfg.Photos.LivenessTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create image searcher: %w", err)
	}
	cached := photos.NewCachedSearcher(searcher, cacheStore, cfg.Cache.PhotosTTL, cfg.Cache.PurgeProbability, slog.Default())
	return photos.NewEnricher(cached, photoStore, slog.Default()), nil
}
