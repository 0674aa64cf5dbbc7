package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultPostgresTable = "license_chaser_nodes"

// PostgresOption configures a PostgresRegistry.
type PostgresOption func(*PostgresRegistry)

// WithTableName sets the PostgreSQL table name. Default: "license_chaser_nodes".
func WithTableName(name string) PostgresOption {
	return func(r *PostgresRegistry) {
		r.tableName = name
	}
}

// PostgresRegistry implements Registry using PostgreSQL.
type PostgresRegistry struct {
	pool      *pgxpool.Pool
	tableName string
}

// NewPostgresRegistry creates a new PostgreSQL-backed registry.
// It auto-creates the table and indexes on initialization.
func NewPostgresRegistry(ctx context.Context, pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresRegistry, error) {
	r := &PostgresRegistry{
		pool:      pool,
		tableName: defaultPostgresTable,
	}
	for _, opt := range opts {
		opt(r)
	}
	if !validIdentifier.MatchString(r.tableName) {
		return nil, fmt.Errorf("invalid table name %q: must match [a-zA-Z_][a-zA-Z0-9_]*", r.tableName)
	}
	if err := r.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}
	return r, nil
}

func (r *PostgresRegistry) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			fingerprint     TEXT PRIMARY KEY,
			hostname        TEXT NOT NULL DEFAULT '',
			os              TEXT NOT NULL DEFAULT '',
			product         TEXT NOT NULL,
			major_version   INTEGER NOT NULL DEFAULT 0,
			subscription_id TEXT NOT NULL DEFAULT '',
			registered_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_seen_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_%s_product_last_seen
			ON %s (product, last_seen_at);
	`, r.tableName, r.tableName, r.tableName)
	_, err := r.pool.Exec(ctx, query)
	return err
}

func (r *PostgresRegistry) Register(ctx context.Context, node Node) (*Node, error) {
	now := time.Now()
	query := fmt.Sprintf(`
		INSERT INTO %s (fingerprint, hostname, os, product, major_version, subscription_id, registered_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (fingerprint) DO UPDATE SET
			hostname = EXCLUDED.hostname,
			os = EXCLUDED.os,
			product = EXCLUDED.product,
			major_version = EXCLUDED.major_version,
			subscription_id = EXCLUDED.subscription_id,
			last_seen_at = EXCLUDED.last_seen_at
		RETURNING registered_at, last_seen_at
	`, r.tableName)

	err := r.pool.QueryRow(ctx, query,
		node.Fingerprint, node.Hostname, node.OS, node.Product, node.MajorVersion, node.SubscriptionID, now,
	).Scan(&node.RegisteredAt, &node.LastSeenAt)
	if err != nil {
		return nil, fmt.Errorf("register node: %w", err)
	}
	return &node, nil
}

func (r *PostgresRegistry) Deregister(ctx context.Context, fingerprint string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE fingerprint = $1`, r.tableName)
	if _, err := r.pool.Exec(ctx, query, fingerprint); err != nil {
		return fmt.Errorf("deregister node: %w", err)
	}
	return nil
}

func (r *PostgresRegistry) Count(ctx context.Context, product string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE product = $1`, r.tableName)
	var count int
	if err := r.pool.QueryRow(ctx, query, product).Scan(&count); err != nil {
		return 0, fmt.Errorf("count nodes: %w", err)
	}
	return count, nil
}

func (r *PostgresRegistry) List(ctx context.Context, product string) ([]Node, error) {
	query := fmt.Sprintf(`
		SELECT fingerprint, hostname, os, product, major_version, subscription_id, registered_at, last_seen_at
		FROM %s WHERE ($1 = '' OR product = $1) ORDER BY registered_at
	`, r.tableName)

	rows, err := r.pool.Query(ctx, query, product)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.Fingerprint, &n.Hostname, &n.OS, &n.Product,
			&n.MajorVersion, &n.SubscriptionID, &n.RegisteredAt, &n.LastSeenAt); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func (r *PostgresRegistry) Ping(ctx context.Context, fingerprint string) error {
	query := fmt.Sprintf(`UPDATE %s SET last_seen_at = $2 WHERE fingerprint = $1`, r.tableName)
	tag, err := r.pool.Exec(ctx, query, fingerprint, time.Now())
	if err != nil {
		return fmt.Errorf("ping node: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNodeNotFound
	}
	return nil
}

func (r *PostgresRegistry) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	query := fmt.Sprintf(`DELETE FROM %s WHERE last_seen_at < $1`, r.tableName)
	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune nodes: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PostgresRegistry) Close(_ context.Context) error {
	return nil // caller manages the pgxpool.Pool lifecycle
}
