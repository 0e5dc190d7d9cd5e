package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danielzillmann-hue/transformation-agent/internal/blob"
	"github.com/danielzillmann-hue/transformation-agent/internal/common"
	"github.com/danielzillmann-hue/transformation-agent/internal/config"
	"github.com/danielzillmann-hue/transformation-agent/internal/model"
	"github.com/danielzillmann-hue/transformation-agent/internal/storage"
	"github.com/danielzillmann-hue/transformation-agent/internal/typemap"
	"github.com/spf13/viper"
)

const defaultDatabasePath = "$HOME/.local/share/migrate/runs.db"

// loadRunConfig builds the run configuration together with its profile.
func loadRunConfig() (*config.Config, *config.Profile, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, common.NewUserError("invalid configuration", err)
	}

	profile, err := config.LoadProfile(cfg.ProfilesDir, cfg.SourceSystem)
	if err != nil {
		return nil, nil, common.NewUserError("failed to load source-system profile", err)
	}
	slog.Debug("Loaded profile", "name", profile.Name, "source", profile.Source)
	return cfg, profile, nil
}

func newFetcher() *blob.Fetcher {
	return blob.NewFetcher(blob.OptionsFromEnv(), slog.Default())
}

// loadRecords reads an analysis document from a path or object-store URI.
func loadRecords(ctx context.Context, fetcher *blob.Fetcher, uri string) ([]model.AnalysisRecord, error) {
	data, err := fetcher.Fetch(ctx, config.ExpandPath(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis %s: %w", uri, err)
	}
	records, err := model.DecodeAnalysisRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", uri, err)
	}
	return records, nil
}

// loadCategorization reads the domain votes. An empty uri yields no votes, so
// every table lands in the profile's default domain.
func loadCategorization(ctx context.Context, fetcher *blob.Fetcher, uri string) (model.Categorization, error) {
	if uri == "" {
		return model.Categorization{}, nil
	}
	data, err := fetcher.Fetch(ctx, config.ExpandPath(uri))
	if err != nil {
		return model.Categorization{}, fmt.Errorf("failed to read categorization %s: %w", uri, err)
	}
	return model.DecodeCategorization(data)
}

func loadOverrides(ctx context.Context, fetcher *blob.Fetcher, uri string) map[string]string {
	if uri == "" {
		return nil
	}
	return typemap.LoadOverrides(ctx, fetcher, uri, slog.Default())
}

// openHistory opens and migrates the run history database.
func openHistory(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = defaultDatabasePath
	}
	dbPath = config.ExpandPath(dbPath)

	db, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func closeHistory(db *storage.SQLiteStorage) {
	if err := db.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
	}
}
