package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/CloudNativeWorks/license-chaser/chaser"
)

type checkTotal struct {
	Product     string `json:"product"`
	Major       uint8  `json:"major"`
	Available   int    `json:"available"`
	TotalTokens int    `json:"total_tokens"`
	Records     int    `json:"records"`
}

type checkResult struct {
	Server    string       `json:"server"`
	Criterion string       `json:"criterion"`
	Available int          `json:"available"`
	Totals    []checkTotal `json:"totals"`
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Query the license server once and print availability",
		Args:  cobra.NoArgs,
		RunE:  runCheck,
	}

	cmd.Flags().String("url", "", "License server URL")
	cmd.Flags().StringP("format", "f", "text", "Output format: json or text")

	return cmd
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if url, _ := cmd.Flags().GetString("url"); url != "" {
		cfg.ServerURL = url
	}
	format, _ := cmd.Flags().GetString("format")
	if format != "json" && format != "text" {
		return fmt.Errorf("unknown format %q", format)
	}
	if cfg.ServerURL == "" {
		return chaser.ErrMissingServerURL
	}
	criterion, err := cfg.Criterion()
	if err != nil {
		return err
	}

	client := chaser.NewClient(cfg.ServerURL, chaser.WithTimeout(cfg.Timeout))
	env, err := client.ListLicenses(cmd.Context())
	if err != nil {
		return err
	}

	res := checkResult{
		Server:    cfg.ServerURL,
		Criterion: criterion.String(),
		Available: chaser.Aggregate(env, criterion),
		Totals:    []checkTotal{},
	}
	for _, t := range chaser.Totals(env) {
		res.Totals = append(res.Totals, checkTotal{
			Product:     t.Product.String(),
			Major:       t.MajorVersion,
			Available:   t.Available,
			TotalTokens: t.TotalTokens,
			Records:     t.Records,
		})
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintf(out, "%s: %d available\n\n", res.Criterion, res.Available)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tMAJOR\tAVAILABLE\tTOTAL\tRECORDS")
	for _, t := range res.Totals {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", t.Product, t.Major, t.Available, t.TotalTokens, t.Records)
	}
	return tw.Flush()
}
