// Package cli implements the license-chaser commands.
package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/CloudNativeWorks/license-chaser/chaser/registry"
	"github.com/CloudNativeWorks/license-chaser/internal/config"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "license-chaser",
		Short: "Wait for a free license seat, then launch",
		Long: "Polls a license server until a seat for the selected product and major version\n" +
			"is available, then starts the configured executable.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "Config file (default: <user config dir>/license-chaser/chaser.json)")
	root.PersistentFlags().String("log-level", "", "Override the log level: debug, info, warn or error")

	root.AddCommand(newRunCmd(), newCheckCmd(), newNodesCmd(), newConfigCmd())
	return root
}

func configPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p, nil
	}
	return config.DefaultPath()
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	p, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(p)
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	return cfg, nil
}

// ownedRegistry closes the connection the registry was built on.
type ownedRegistry struct {
	registry.Registry
	release func(context.Context) error
}

func (r *ownedRegistry) Close(ctx context.Context) error {
	if err := r.Registry.Close(ctx); err != nil {
		return err
	}
	return r.release(ctx)
}

// openRegistry connects the configured node registry. It returns nil when
// the registry is disabled.
func openRegistry(ctx context.Context, cfg *config.Config) (registry.Registry, error) {
	rc := cfg.Registry
	switch rc.Driver {
	case "", config.DriverNone:
		return nil, nil

	case config.DriverSQLite:
		reg, err := registry.NewSQLiteRegistry(rc.DSN)
		if err != nil {
			return nil, err
		}
		return reg, nil

	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, rc.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		var opts []registry.PostgresOption
		if rc.Name != "" {
			opts = append(opts, registry.WithTableName(rc.Name))
		}
		reg, err := registry.NewPostgresRegistry(ctx, pool, opts...)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return &ownedRegistry{Registry: reg, release: func(context.Context) error {
			pool.Close()
			return nil
		}}, nil

	case config.DriverMongo:
		client, err := mongo.Connect(options.Client().ApplyURI(rc.DSN))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		var opts []registry.MongoOption
		if rc.Name != "" {
			opts = append(opts, registry.WithCollectionName(rc.Name))
		}
		reg, err := registry.NewMongoRegistry(ctx, client.Database(rc.Database), opts...)
		if err != nil {
			client.Disconnect(context.WithoutCancel(ctx))
			return nil, err
		}
		return &ownedRegistry{Registry: reg, release: client.Disconnect}, nil

	default:
		return nil, fmt.Errorf("unknown registry driver %q", rc.Driver)
	}
}
