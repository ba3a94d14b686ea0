package warehouse

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vyaparbazaar/featurex/pkg/db/clickhouse"
)

// DB is the feature warehouse. One database holds the raw landing tables, the
// staged projections, the aggregate facts, the feature tables and the
// pipeline state tables. It implements every store interface in pkg/db.
type DB struct {
	clickhouse.Client
	Name string
}

// New connects to ClickHouse and returns the warehouse handle. Callers run
// InitializeDB before the first read or write.
func New(ctx context.Context, logger *zap.Logger, dbName string) (*DB, error) {
	name := clickhouse.SanitizeName(dbName)

	client, err := clickhouse.New(ctx, logger.With(zap.String("db", name)), name)
	if err != nil {
		return nil, err
	}
	return &DB{Client: client, Name: name}, nil
}

// InitializeDB creates the database and every table if they do not exist.
func (db *DB) InitializeDB(ctx context.Context) error {
	if err := db.CreateDbIfNotExists(ctx, db.Name); err != nil {
		return fmt.Errorf("create database %s: %w", db.Name, err)
	}
	if err := db.SwitchToTargetDatabase(ctx); err != nil {
		return fmt.Errorf("switch to database %s: %w", db.Name, err)
	}

	for _, ddl := range tableDDL {
		query := fmt.Sprintf(ddl.create, db.Name, ddl.table)
		if err := db.Exec(ctx, query); err != nil {
			return fmt.Errorf("create %s: %w", ddl.table, err)
		}
	}

	db.Logger.Info("Warehouse tables ready", zap.Int("tables", len(tableDDL)))
	return nil
}

func (db *DB) Close() error {
	return db.Client.Close()
}
