package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/clarify-app/settle/internal/catalog"
	"github.com/clarify-app/settle/internal/config"
	"github.com/clarify-app/settle/internal/match"
	"github.com/clarify-app/settle/internal/reconcile"
	"github.com/clarify-app/settle/internal/service"
	"github.com/clarify-app/settle/internal/storage"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// newMatcher builds the account matcher over the built-in catalog.
func newMatcher() *match.Matcher {
	return match.NewMatcher(catalog.DefaultCatalog())
}

// newResolver builds a discrepancy resolver honoring the configured
// lookback window.
func newResolver(store service.Storage) *reconcile.Resolver {
	resolver := reconcile.NewResolver(store)
	if months := viper.GetInt("reconcile.period_months"); months > 0 {
		resolver = resolver.WithPeriodMonths(months)
	}
	return resolver
}

// optionalString turns an empty flag value into nil.
func optionalString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
