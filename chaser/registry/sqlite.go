package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRegistry implements Registry using a local SQLite database.
// It is meant for machines sharing a network drive or for a single host
// running several chasers. Timestamps are stored as unix nanoseconds.
type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLiteRegistry opens or creates the database at dbPath.
// Unlike the other backends it owns the connection; Close closes it.
func NewSQLiteRegistry(dbPath string) (*SQLiteRegistry, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	r := &SQLiteRegistry{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLiteRegistry) migrate() error {
	_, err := r.db.Exec(`
	CREATE TABLE IF NOT EXISTS nodes (
		fingerprint     TEXT PRIMARY KEY,
		hostname        TEXT NOT NULL DEFAULT '',
		os              TEXT NOT NULL DEFAULT '',
		product         TEXT NOT NULL,
		major_version   INTEGER NOT NULL DEFAULT 0,
		subscription_id TEXT NOT NULL DEFAULT '',
		registered_at   INTEGER NOT NULL,
		last_seen_at    INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_nodes_product_last_seen ON nodes(product, last_seen_at);
	`)
	return err
}

func (r *SQLiteRegistry) Register(ctx context.Context, node Node) (*Node, error) {
	now := time.Now().UnixNano()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO nodes (fingerprint, hostname, os, product, major_version, subscription_id, registered_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (fingerprint) DO UPDATE SET
			hostname = excluded.hostname,
			os = excluded.os,
			product = excluded.product,
			major_version = excluded.major_version,
			subscription_id = excluded.subscription_id,
			last_seen_at = excluded.last_seen_at
	`, node.Fingerprint, node.Hostname, node.OS, node.Product, node.MajorVersion, node.SubscriptionID, now, now)
	if err != nil {
		return nil, fmt.Errorf("register node: %w", err)
	}

	var registered, lastSeen int64
	err = r.db.QueryRowContext(ctx,
		`SELECT registered_at, last_seen_at FROM nodes WHERE fingerprint = ?`, node.Fingerprint,
	).Scan(&registered, &lastSeen)
	if err != nil {
		return nil, fmt.Errorf("register node: %w", err)
	}
	node.RegisteredAt = time.Unix(0, registered)
	node.LastSeenAt = time.Unix(0, lastSeen)
	return &node, nil
}

func (r *SQLiteRegistry) Deregister(ctx context.Context, fingerprint string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM nodes WHERE fingerprint = ?`, fingerprint); err != nil {
		return fmt.Errorf("deregister node: %w", err)
	}
	return nil
}

func (r *SQLiteRegistry) Count(ctx context.Context, product string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes WHERE product = ?`, product).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count nodes: %w", err)
	}
	return count, nil
}

func (r *SQLiteRegistry) List(ctx context.Context, product string) ([]Node, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT fingerprint, hostname, os, product, major_version, subscription_id, registered_at, last_seen_at
		FROM nodes WHERE (? = '' OR product = ?) ORDER BY registered_at
	`, product, product)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var n Node
		var registered, lastSeen int64
		if err := rows.Scan(&n.Fingerprint, &n.Hostname, &n.OS, &n.Product,
			&n.MajorVersion, &n.SubscriptionID, &registered, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		n.RegisteredAt = time.Unix(0, registered)
		n.LastSeenAt = time.Unix(0, lastSeen)
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func (r *SQLiteRegistry) Ping(ctx context.Context, fingerprint string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE nodes SET last_seen_at = ? WHERE fingerprint = ?`, time.Now().UnixNano(), fingerprint)
	if err != nil {
		return fmt.Errorf("ping node: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNodeNotFound
	}
	return nil
}

func (r *SQLiteRegistry) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan).UnixNano()
	res, err := r.db.ExecContext(ctx, `DELETE FROM nodes WHERE last_seen_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune nodes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune nodes: %w", err)
	}
	return int(n), nil
}

func (r *SQLiteRegistry) Close(_ context.Context) error {
	return r.db.Close()
}
