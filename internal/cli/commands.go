package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ChuLiYu/card-recovery/internal/hashmatch"
	"github.com/ChuLiYu/card-recovery/internal/luhn"
	"github.com/ChuLiYu/card-recovery/internal/stats"
)

func buildValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <number>...",
		Short: "Check card numbers with the Luhn algorithm",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, number := range args {
				fmt.Fprintln(cmd.OutOrStdout(), luhn.Verdict(number))
			}
			return nil
		},
	}
	return cmd
}

func buildDigestCommand() *cobra.Command {
	var algorithm string

	cmd := &cobra.Command{
		Use:   "digest <text>",
		Short: "Print the hex digest of text",
		Long:  "Print the lowercase hex digest of text, e.g. to prepare a hash input file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := hashmatch.Digest(algorithm, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sum)
			return nil
		},
	}

	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", "sha1",
		"digest algorithm: "+strings.Join(hashmatch.Names(), ", "))
	return cmd
}

func buildStatsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show recorded search durations by worker count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFor(cmd, opts)
			if err != nil {
				return err
			}

			sink := stats.NewCSVSink(cfg.Outputs.Stats)
			byWorkers, err := sink.Load()
			if err != nil {
				return fmt.Errorf("failed to load stats: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(byWorkers) == 0 {
				fmt.Fprintf(out, "No stats recorded in %s\n", sink.Path())
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "WORKERS\tSECONDS\t")
			for _, n := range stats.SortedWorkerCounts(byWorkers) {
				fmt.Fprintf(tw, "%d\t%.3f\t\n", n, byWorkers[n])
			}
			return tw.Flush()
		},
	}
	return cmd
}

func buildStatusCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show effective configuration status",
		Long:  "Display the configuration a recover run would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFor(cmd, opts)
			if err != nil {
				return err
			}
			showStatus(cmd, opts.configFile, cfg)
			return nil
		},
	}
	return cmd
}

func showStatus(cmd *cobra.Command, configFile string, cfg *Config) {
	w := cmd.OutOrStdout()

	workers := "all cores"
	if cfg.Search.Workers > 0 {
		workers = fmt.Sprintf("%d", cfg.Search.Workers)
	}

	fmt.Fprintln(w, "\n╔═══════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║           Card Recovery Status                            ║")
	fmt.Fprintln(w, "╚═══════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "📋 Configuration:")
	fmt.Fprintf(w, "  └─ Config File:     %s\n", configFile)
	fmt.Fprintf(w, "  └─ Algorithm:       %s\n", cfg.Search.Algorithm)
	fmt.Fprintf(w, "  └─ Infix Width:     %d\n", cfg.Search.InfixWidth)
	fmt.Fprintf(w, "  └─ Card Length:     %d\n", cfg.Search.CardLength)
	fmt.Fprintf(w, "  └─ Workers:         %s\n", workers)
	fmt.Fprintf(w, "  └─ Mode:            %s\n", cfg.Search.Mode)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "💾 Files:")
	fmt.Fprintf(w, "  ├─ Hash:            %s\n", cfg.Inputs.Hash)
	fmt.Fprintf(w, "  ├─ BIN:             %s\n", cfg.Inputs.BIN)
	fmt.Fprintf(w, "  ├─ Last Digits:     %s\n", cfg.Inputs.LastDigits)
	fmt.Fprintf(w, "  ├─ Card Number:     %s\n", cfg.Outputs.CardNumber)
	fmt.Fprintf(w, "  ├─ Result:          %s\n", cfg.Outputs.Result)
	fmt.Fprintf(w, "  └─ Stats:           %s\n", cfg.Outputs.Stats)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "📡 Metrics:")
	if cfg.Metrics.Enabled {
		fmt.Fprintf(w, "  └─ Status: ✅ Enabled on http://localhost:%d/metrics\n", cfg.Metrics.Port)
	} else {
		fmt.Fprintln(w, "  └─ Status: ⚠️  Disabled")
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Supported algorithms: %s\n", strings.Join(hashmatch.Names(), ", "))
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
}
