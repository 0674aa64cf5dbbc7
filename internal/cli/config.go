package cli

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"sort"

	"github.com/spf13/cobra"

	"github.com/CloudNativeWorks/license-chaser/chaser"
	"github.com/CloudNativeWorks/license-chaser/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the settings file",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a settings file",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit,
	}
	initCmd.Flags().String("url", "", "License server URL")
	initCmd.Flags().StringP("product", "p", "core", "Product: core, fx, karma, render or engine")
	initCmd.Flags().IntP("major", "m", 20, "Major version to wait for")
	initCmd.Flags().StringToString("exe", nil, "Executable per product, e.g. core=/opt/hfs20.5/bin/houdinicore")
	initCmd.Flags().Bool("force", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the settings file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := configPath(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd, pathCmd)
	return cmd
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	cfg := config.Default()
	cfg.ServerURL, _ = cmd.Flags().GetString("url")
	cfg.Product, _ = cmd.Flags().GetString("product")
	cfg.MajorVersion, _ = cmd.Flags().GetInt("major")
	exes, _ := cmd.Flags().GetStringToString("exe")
	for name, exe := range exes {
		kind, err := chaser.ParseProductKind(name)
		if err != nil {
			return err
		}
		cfg.Executables[kind.String()] = exe
	}
	if len(cfg.Executables) == 0 {
		cfg.AutoLaunch = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	settings := cfg.Settings()
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := cmd.OutOrStdout()
	for _, k := range keys {
		if exes, ok := settings[k].(map[string]any); ok {
			names := make([]string, 0, len(exes))
			for n := range exes {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				fmt.Fprintf(out, "%s.%s = %v\n", k, n, exes[n])
			}
			continue
		}
		v := settings[k]
		if k == "registry.dsn" {
			v = redactDSN(cfg.Registry.DSN)
		}
		fmt.Fprintf(out, "%s = %v\n", k, v)
	}
	return nil
}

var dsnPassword = regexp.MustCompile(`(?i)(password\s*=\s*)('[^']*'|\S+)`)

// redactDSN masks the password in a URL or keyword/value connection string.
func redactDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			dsn = u.Redacted()
		}
	}
	return dsnPassword.ReplaceAllString(dsn, "${1}xxxxx")
}
