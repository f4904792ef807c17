package cmd

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/cardwright/internal/catalog"
	"github.com/solatis/cardwright/internal/core/config"
	"github.com/solatis/cardwright/internal/core/db"
	"github.com/solatis/cardwright/internal/metrics"
	"github.com/solatis/cardwright/internal/store"
)

// openDatabase opens --db-url and refuses to continue with pending migrations.
func openDatabase(ctx context.Context) (*sqlx.DB, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("--db-url required")
	}
	database, err := db.Open(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			database.Close()
			return nil, fmt.Errorf("migration %s not applied - run 'cardwright migrate up' first", s.ID)
		}
	}
	return database, nil
}

// openStore wires the SQL store and a loader tuned by cfg.
func openStore(database *sqlx.DB, cfg *config.ServerConfig, m *metrics.Metrics) (*store.SQLStore, *catalog.Loader, error) {
	queries, err := db.LoadQueries(database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	sqlStore := store.NewSQLStore(queries)

	opts := []catalog.LoaderOption{
		catalog.WithTimeout(cfg.ResolverTimeout),
		catalog.WithFactorConcurrency(cfg.MaxFactorFetches),
	}
	if m != nil {
		opts = append(opts, catalog.WithObserver(m))
	}
	return sqlStore, catalog.NewLoader(sqlStore, opts...), nil
}
