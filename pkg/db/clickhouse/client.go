package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/vyaparbazaar/featurex/pkg/retry"
	"github.com/vyaparbazaar/featurex/pkg/utils"
)

// Client wraps the native ClickHouse connection with the handful of helpers
// the warehouse stores need.
type Client struct {
	Logger         *zap.Logger
	Db             driver.Conn
	TargetDatabase string
}

const (
	MergeTree          = "MergeTree"
	ReplacingMergeTree = "ReplacingMergeTree"
)

// New opens a connection to ClickHouse using CLICKHOUSE_ADDR and retries the
// initial ping with backoff. The connection starts against the default
// database; InitializeDB creates and switches to the target one.
func New(ctx context.Context, logger *zap.Logger, dbName string) (client Client, e error) {
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	client.Logger = logger

	dsn := utils.Env("CLICKHOUSE_ADDR", "clickhouse://localhost:9000?sslmode=disable")
	username, password := extractCredentials(dsn)
	replicas := extractReplicas(dsn)

	options := &clickhouse.Options{
		Addr:             replicas,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder, // read-after-write on the same replica
		Auth: clickhouse.Auth{
			Database: "default",
			Username: username,
			Password: password,
		},
		DialTimeout:     30 * time.Second,
		MaxOpenConns:    utils.EnvInt("CLICKHOUSE_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    utils.EnvInt("CLICKHOUSE_MAX_IDLE_CONNS", 10),
		ConnMaxLifetime: utils.EnvDuration("CLICKHOUSE_CONN_MAX_LIFETIME", time.Hour),
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		Settings: clickhouse.Settings{
			"prefer_column_name_to_alias": 1,
		},
	}

	err := retry.WithBackoff(connCtx, retry.DefaultPolicy(), logger, "clickhouse_connection", func() error {
		conn, err := clickhouse.Open(options)
		if err != nil {
			return fmt.Errorf("failed to open clickhouse connection: %w", err)
		}
		if err := conn.Ping(connCtx); err != nil {
			return fmt.Errorf("failed to ping clickhouse: %w", err)
		}
		client.Db = conn
		client.TargetDatabase = dbName
		client.Logger.Info("ClickHouse connection ready",
			zap.String("database", dbName),
			zap.Strings("replicas", replicas),
		)
		return nil
	})
	if err != nil {
		return Client{}, err
	}
	return client, nil
}

// CreateDbIfNotExists ensures the target database exists.
func (c *Client) CreateDbIfNotExists(ctx context.Context, dbName string) error {
	query := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s ENGINE = Atomic", dbName)
	c.Logger.Info("Creating database", zap.String("database", dbName))
	return c.Exec(ctx, query)
}

// SwitchToTargetDatabase reconnects against TargetDatabase after it has been
// created.
func (c *Client) SwitchToTargetDatabase(ctx context.Context) error {
	if c.TargetDatabase == "" {
		return errors.New("TargetDatabase is not set")
	}

	dsn := utils.Env("CLICKHOUSE_ADDR", "clickhouse://localhost:9000")
	options, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return fmt.Errorf("failed to parse CLICKHOUSE_ADDR DSN: %w", err)
	}

	if err := c.Db.Close(); err != nil {
		c.Logger.Warn("Failed to close connection during database switch", zap.Error(err))
	}

	options.Auth.Database = c.TargetDatabase
	options.DialTimeout = 30 * time.Second
	if options.Compression == nil {
		options.Compression = &clickhouse.Compression{Method: clickhouse.CompressionLZ4}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return fmt.Errorf("failed to open connection to database %s: %w", c.TargetDatabase, err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping database %s: %w", c.TargetDatabase, err)
	}

	c.Db = conn
	c.Logger.Info("Switched to target database", zap.String("database", c.TargetDatabase))
	return nil
}

func (c *Client) Exec(ctx context.Context, query string, args ...interface{}) error {
	return c.Db.Exec(ctx, query, args...)
}

func (c *Client) QueryRow(ctx context.Context, query string, args ...interface{}) driver.Row {
	return c.Db.QueryRow(ctx, query, args...)
}

func (c *Client) Query(ctx context.Context, query string, args ...interface{}) (driver.Rows, error) {
	return c.Db.Query(ctx, query, args...)
}

func (c *Client) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return c.Db.Select(ctx, dest, query, args...)
}

func (c *Client) PrepareBatch(ctx context.Context, query string) (driver.Batch, error) {
	return c.Db.PrepareBatch(ctx, query)
}

func (c *Client) Close() error {
	return c.Db.Close()
}

// SelectWithFinal enforces the FINAL modifier so reads from
// ReplacingMergeTree tables always see the deduplicated latest version.
func (c *Client) SelectWithFinal(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if !strings.Contains(query, "FINAL") {
		return fmt.Errorf("SelectWithFinal called but query doesn't contain FINAL keyword")
	}
	return c.Db.Select(ctx, dest, query, args...)
}

// IsNoRows reports whether the error is the driver's empty-result error.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// SanitizeName sanitizes a database name to be compatible with ClickHouse.
func SanitizeName(id string) string {
	s := strings.ToLower(id)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, ".", "_")
	return s
}

// extractReplicas parses comma-separated replica addresses from the DSN.
func extractReplicas(dsn string) []string {
	cleaned := strings.TrimPrefix(dsn, "clickhouse://")
	cleaned = strings.TrimPrefix(cleaned, "tcp://")

	hostPart := cleaned
	if idx := strings.Index(cleaned, "@"); idx != -1 {
		hostPart = cleaned[idx+1:]
	}
	if idx := strings.IndexAny(hostPart, "/?"); idx != -1 {
		hostPart = hostPart[:idx]
	}

	replicas := strings.Split(hostPart, ",")
	result := make([]string, 0, len(replicas))
	for _, r := range replicas {
		r = strings.TrimSpace(r)
		if r != "" {
			result = append(result, r)
		}
	}
	if len(result) == 0 {
		return []string{"localhost:9000"}
	}
	return result
}

// extractCredentials extracts username and password from the DSN.
func extractCredentials(dsn string) (string, string) {
	dsn = strings.TrimPrefix(dsn, "clickhouse://")
	dsn = strings.TrimPrefix(dsn, "tcp://")

	atIdx := strings.Index(dsn, "@")
	if atIdx == -1 {
		return "default", ""
	}
	credentials := dsn[:atIdx]
	colonIdx := strings.Index(credentials, ":")
	if colonIdx == -1 {
		return credentials, ""
	}
	return credentials[:colonIdx], credentials[colonIdx+1:]
}
