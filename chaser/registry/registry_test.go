package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Set these to run the shared suite against live servers.
const (
	postgresDSNEnv = "LICENSE_CHASER_TEST_POSTGRES_DSN"
	mongoURIEnv    = "LICENSE_CHASER_TEST_MONGO_URI"
)

func uniqueName() string {
	return fmt.Sprintf("nodes_test_%d", time.Now().UnixNano())
}

func newSQLite(t *testing.T) Registry {
	t.Helper()
	r, err := NewSQLiteRegistry(filepath.Join(t.TempDir(), "nodes", "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close(context.Background()) })
	return r
}

func newPostgres(t *testing.T) Registry {
	t.Helper()
	dsn := os.Getenv(postgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", postgresDSNEnv)
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	table := uniqueName()
	r, err := NewPostgresRegistry(ctx, pool, WithTableName(table))
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Exec(ctx, "DROP TABLE IF EXISTS "+table)
		pool.Close()
	})
	return r
}

func newMongo(t *testing.T) Registry {
	t.Helper()
	uri := os.Getenv(mongoURIEnv)
	if uri == "" {
		t.Skipf("%s not set", mongoURIEnv)
	}
	ctx := context.Background()
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	require.NoError(t, err)
	db := client.Database("license_chaser_test")
	coll := uniqueName()
	r, err := NewMongoRegistry(ctx, db, WithCollectionName(coll))
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Collection(coll).Drop(ctx)
		client.Disconnect(ctx)
	})
	return r
}

func TestSQLiteRegistry(t *testing.T)   { testRegistry(t, newSQLite) }
func TestPostgresRegistry(t *testing.T) { testRegistry(t, newPostgres) }
func TestMongoRegistry(t *testing.T)    { testRegistry(t, newMongo) }

// testRegistry runs the behavior every backend must share.
func testRegistry(t *testing.T, open func(t *testing.T) Registry) {
	t.Run("RegisterAndList", func(t *testing.T) {
		ctx := context.Background()
		r := open(t)

		node, err := r.Register(ctx, Node{
			Fingerprint:    "fp-1",
			Hostname:       "ws-01",
			OS:             "linux",
			Product:        "core",
			MajorVersion:   20,
			SubscriptionID: "sub-1",
		})
		require.NoError(t, err)
		assert.False(t, node.RegisteredAt.IsZero())
		assert.True(t, node.RegisteredAt.Equal(node.LastSeenAt))

		time.Sleep(5 * time.Millisecond)
		_, err = r.Register(ctx, Node{Fingerprint: "fp-2", Hostname: "ws-02", Product: "fx", MajorVersion: 20})
		require.NoError(t, err)

		core, err := r.List(ctx, "core")
		require.NoError(t, err)
		require.Len(t, core, 1)
		assert.Equal(t, "ws-01", core[0].Hostname)
		assert.Equal(t, "linux", core[0].OS)
		assert.Equal(t, 20, core[0].MajorVersion)
		assert.Equal(t, "sub-1", core[0].SubscriptionID)

		all, err := r.List(ctx, "")
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "fp-1", all[0].Fingerprint, "oldest registration first")

		count, err := r.Count(ctx, "fx")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		none, err := r.List(ctx, "karma")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("UpsertKeepsRegisteredAt", func(t *testing.T) {
		ctx := context.Background()
		r := open(t)

		first, err := r.Register(ctx, Node{Fingerprint: "fp-1", Product: "core", SubscriptionID: "sub-1"})
		require.NoError(t, err)

		time.Sleep(10 * time.Millisecond)
		second, err := r.Register(ctx, Node{Fingerprint: "fp-1", Product: "fx", SubscriptionID: "sub-2"})
		require.NoError(t, err)

		assert.True(t, first.RegisteredAt.Equal(second.RegisteredAt))
		assert.True(t, second.LastSeenAt.After(first.LastSeenAt))

		all, err := r.List(ctx, "")
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "fx", all[0].Product)
		assert.Equal(t, "sub-2", all[0].SubscriptionID)
	})

	t.Run("Deregister", func(t *testing.T) {
		ctx := context.Background()
		r := open(t)

		_, err := r.Register(ctx, Node{Fingerprint: "fp-1", Product: "core"})
		require.NoError(t, err)
		require.NoError(t, r.Deregister(ctx, "fp-1"))

		count, err := r.Count(ctx, "core")
		require.NoError(t, err)
		assert.Zero(t, count)

		// Removing an unknown node is not an error.
		assert.NoError(t, r.Deregister(ctx, "missing"))
	})

	t.Run("PingAndPrune", func(t *testing.T) {
		ctx := context.Background()
		r := open(t)

		_, err := r.Register(ctx, Node{Fingerprint: "stale", Product: "core"})
		require.NoError(t, err)
		_, err = r.Register(ctx, Node{Fingerprint: "fresh", Product: "core"})
		require.NoError(t, err)

		time.Sleep(100 * time.Millisecond)
		require.NoError(t, r.Ping(ctx, "fresh"))

		removed, err := r.Prune(ctx, 50*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		nodes, err := r.List(ctx, "core")
		require.NoError(t, err)
		require.Len(t, nodes, 1)
		assert.Equal(t, "fresh", nodes[0].Fingerprint)

		assert.ErrorIs(t, r.Ping(ctx, "stale"), ErrNodeNotFound)
	})
}

func TestNewPostgresRegistry_InvalidTableName(t *testing.T) {
	_, err := NewPostgresRegistry(context.Background(), nil, WithTableName("nodes; DROP TABLE x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")
}

func TestNewMongoRegistry_InvalidCollectionName(t *testing.T) {
	_, err := NewMongoRegistry(context.Background(), nil, WithCollectionName("1nodes"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid collection name")
}
