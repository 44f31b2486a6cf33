package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/Veraticus/spice-ingest/internal/common"
	"github.com/Veraticus/spice-ingest/internal/config"
	"github.com/Veraticus/spice-ingest/internal/registry"
	"github.com/Veraticus/spice-ingest/internal/service"
	"github.com/Veraticus/spice-ingest/internal/storage"
	"github.com/Veraticus/spice-ingest/internal/suggest"
)

// loadSettings decodes the active viper configuration.
func loadSettings() (*config.Settings, error) {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, common.NewUserError("Invalid configuration", err)
	}
	return settings, nil
}

// buildRegistry validates the configured formats.
func buildRegistry(settings *config.Settings) (*registry.Registry, error) {
	if len(settings.Formats) == 0 {
		return nil, common.NewUserError("No file formats configured", common.ErrMissingConfig)
	}
	reg, err := registry.New(settings.Formats)
	if err != nil {
		return nil, common.NewUserError("Invalid file formats", err)
	}
	return reg, nil
}

// openStorage opens and migrates the database.
func openStorage(ctx context.Context, path string) (*storage.SQLiteStorage, error) {
	if err := config.EnsureDatabaseDir(path); err != nil {
		return nil, err
	}
	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// buildSuggester assembles configured rules first, then learned vendors. It
// returns a cleanup function for the cache. lookup may be nil.
func buildSuggester(s config.SuggestionSettings, lookup service.VendorLookup) (service.Suggester, func(), error) {
	var chain suggest.Chain

	if len(s.Rules) > 0 {
		rules, err := suggest.NewRules(s.Rules)
		if err != nil {
			return nil, nil, common.NewUserError("Invalid suggestion rules", err)
		}
		chain = append(chain, rules)
	}
	if s.Vendors && lookup != nil {
		chain = append(chain, suggest.NewVendor(lookup))
	}

	if len(chain) == 0 {
		return suggest.Null{}, func() {}, nil
	}
	if s.CacheTTL <= 0 {
		return chain, func() {}, nil
	}
	cache := suggest.NewCache(chain, s.CacheTTL)
	return cache, cache.Close, nil
}
