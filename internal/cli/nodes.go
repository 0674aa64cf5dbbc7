package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/CloudNativeWorks/license-chaser/chaser"
)

func newNodesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List machines currently chasing licenses",
		Args:  cobra.NoArgs,
		RunE:  runNodes,
	}

	cmd.Flags().StringP("product", "p", "", "Only show nodes chasing this product")
	cmd.Flags().Bool("prune", false, "Remove nodes not seen within registry.stale_after first")
	cmd.Flags().StringP("format", "f", "text", "Output format: json or text")

	return cmd
}

func runNodes(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	if format != "json" && format != "text" {
		return fmt.Errorf("unknown format %q", format)
	}
	product, _ := cmd.Flags().GetString("product")
	if product != "" {
		kind, err := chaser.ParseProductKind(product)
		if err != nil {
			return err
		}
		product = kind.String()
	}

	ctx := cmd.Context()
	reg, err := openRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	if reg == nil {
		return errors.New("no node registry configured (registry.driver is none)")
	}
	defer reg.Close(ctx)

	out := cmd.OutOrStdout()
	if prune, _ := cmd.Flags().GetBool("prune"); prune {
		n, err := reg.Prune(ctx, cfg.Registry.StaleAfter)
		if err != nil {
			return err
		}
		if format == "text" {
			fmt.Fprintf(out, "pruned %d stale nodes\n", n)
		}
	}

	nodes, err := reg.List(ctx, product)
	if err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(nodes)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HOSTNAME\tOS\tPRODUCT\tMAJOR\tLAST SEEN")
	for _, n := range nodes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", n.Hostname, n.OS, n.Product, n.MajorVersion, n.LastSeenAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}
