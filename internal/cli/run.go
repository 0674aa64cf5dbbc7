package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CloudNativeWorks/license-chaser/chaser"
	"github.com/CloudNativeWorks/license-chaser/internal/config"
	"github.com/CloudNativeWorks/license-chaser/internal/launcher"
	"github.com/CloudNativeWorks/license-chaser/internal/logging"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll until a seat is free, then launch",
		Long: "Polls the license server until a seat for the selected product is available.\n" +
			"Edits to product, major_version and auto_launch in the config file apply\n" +
			"from the next request on.",
		Args: cobra.NoArgs,
		RunE: runRun,
	}

	cmd.Flags().String("url", "", "License server URL")
	cmd.Flags().StringP("product", "p", "", "Product: core, fx, karma, render or engine")
	cmd.Flags().IntP("major", "m", -1, "Major version to wait for")
	cmd.Flags().Bool("no-launch", false, "Only report availability, never launch")
	cmd.Flags().Duration("interval", 0, "Pause between requests")

	return cmd
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if url, _ := cmd.Flags().GetString("url"); url != "" {
		cfg.ServerURL = url
	}
	if product, _ := cmd.Flags().GetString("product"); product != "" {
		cfg.Product = product
	}
	if major, _ := cmd.Flags().GetInt("major"); major >= 0 {
		cfg.MajorVersion = major
	}
	if noLaunch, _ := cmd.Flags().GetBool("no-launch"); noLaunch {
		cfg.AutoLaunch = false
	}
	if interval, _ := cmd.Flags().GetDuration("interval"); interval > 0 {
		cfg.Interval = interval
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	criterion, err := cfg.Criterion()
	if err != nil {
		return err
	}
	exes, err := cfg.ExecutablesByKind()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []chaser.Option{
		chaser.WithLogger(logger),
		chaser.WithInterval(cfg.Interval),
		chaser.WithCriterion(criterion),
		chaser.WithAutoLaunch(cfg.AutoLaunch),
		chaser.WithClientOptions(chaser.WithTimeout(cfg.Timeout)),
	}
	reg, err := openRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	if reg != nil {
		defer reg.Close(context.WithoutCancel(ctx))
		opts = append(opts, chaser.WithRegistry(reg))
	}

	c := chaser.New(cfg.ServerURL, opts...)
	l := launcher.New(exes, logger)
	watchConfig(ctx, cmd, c, l, logger)

	events, err := c.Start(ctx)
	if err != nil {
		return err
	}
	// Runs before the deferred reg.Close so the node is withdrawn first.
	defer c.Stop()

	out := cmd.OutOrStdout()
	for ev := range events {
		switch ev.Kind {
		case chaser.EventStarted:
			fmt.Fprintf(out, "chasing %s at %s\n", c.Criterion(), cfg.ServerURL)
		case chaser.EventResponded:
			fmt.Fprintf(out, "[%d] %d available\n", ev.Cycle, ev.Count)
		case chaser.EventErrored:
			fmt.Fprintf(out, "[%d] error: %v\n", ev.Cycle, ev.Err)
		case chaser.EventLaunchRequested:
			pid, err := l.Launch(ev.Product)
			if err != nil {
				return fmt.Errorf("launch %s: %w", ev.Product, err)
			}
			fmt.Fprintf(out, "launched %s (pid %d)\n", ev.Product, pid)
		}
	}
	return nil
}

// watchConfig applies selection and executable changes from the config
// file.
// Nothing is watched when no config file exists.
func watchConfig(ctx context.Context, cmd *cobra.Command, c *chaser.Chaser, l *launcher.Launcher, logger *zap.Logger) {
	path, err := configPath(cmd)
	if err != nil {
		return
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return
	}
	err = config.Watch(ctx, path, logger, func(cfg *config.Config) {
		if cr, err := cfg.Criterion(); err == nil {
			c.SetCriterion(cr)
		}
		if exes, err := cfg.ExecutablesByKind(); err == nil {
			l.SetExecutables(exes)
		}
		c.SetAutoLaunch(cfg.AutoLaunch)
	})
	if err != nil {
		logger.Warn("config watch disabled", zap.Error(err))
	}
}
