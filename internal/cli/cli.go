// ============================================================================
// Card Recovery CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Provides the command line interface based on Cobra framework
//
// Command Structure:
//   card-recovery                  # Root command
//   ├── --config, -c               # Specify config file
//   ├── --log-level                # debug | info | warn | error
//   ├── recover                    # Brute-force the missing digits
//   ├── validate <number>...       # Luhn verdict per number
//   ├── digest <text>              # Hash text with a supported algorithm
//   ├── stats                      # Stored (workers, seconds) measurements
//   ├── status                     # Effective configuration
//   ├── --version                  # Display version information
//   └── --help                     # Display help information
//
// Configuration Management:
//   Uses YAML format config file (default: configs/default.yaml)
//   Configuration items include:
//   - search: algorithm, infix width, card length, workers, mode
//   - inputs: hash / BIN / last digits text files
//   - outputs: recovered number, Luhn verdict, stats CSV
//   - metrics: Prometheus monitoring configuration
//   A missing default config file falls back to built-in defaults; a missing
//   file named with --config is an error.
//
// recover Command:
//   1. Load config, apply flag overrides
//   2. Read hash, BIN and last digits (surrounding whitespace trimmed)
//   3. Start Metrics HTTP server (if enabled)
//   4. Run the search with a throttled progress line on stderr
//   5. Save number + Luhn verdict, append a stats row
//
//   Examples:
//     ./card-recovery recover
//     ./card-recovery recover --workers 8 --algorithm sha256
//     ./card-recovery recover -c custom-config.yaml --mode early-exit
//
// Signal Handling:
//   SIGINT (Ctrl+C) / SIGTERM cancel the running search. Workers stop at the
//   next candidate boundary and nothing is written.
//
// Error Handling:
//   - Invalid input (bad digest, non-digit BIN): "invalid input: ..."
//   - Worker crash: "search aborted: ..."
//   - No match is not an error: prints "no match in the given space"
//
// ============================================================================

package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

var log = slog.Default()

// rootOptions 保存所有子命令共享的全域旗標
type rootOptions struct {
	configFile string
	logLevel   string
}

// BuildCLI 建立 card-recovery 根命令
func BuildCLI() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "card-recovery",
		Short: "Recover a card number from its digest and partial digits",
		Long: `card-recovery brute-forces the missing middle digits of a card number:
- prefix (BIN) + zero-padded infix + known last digits
- parallel search with a deterministic lowest-index winner
- configurable hash algorithm (sha1 by default)
- Luhn validation of the recovered number`,
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(cmd.ErrOrStderr(), opts.logLevel)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "configs/default.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.AddCommand(buildRecoverCommand(opts))
	rootCmd.AddCommand(buildValidateCommand())
	rootCmd.AddCommand(buildDigestCommand())
	rootCmd.AddCommand(buildStatsCommand(opts))
	rootCmd.AddCommand(buildStatusCommand(opts))

	return rootCmd
}

// setupLogging installs a text handler on w as the process-wide slog default.
func setupLogging(w io.Writer, level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	log = logger
	return nil
}

// configFor loads the config named by --config for cmd.
func configFor(cmd *cobra.Command, opts *rootOptions) (*Config, error) {
	explicit := false
	if f := cmd.Flag("config"); f != nil {
		explicit = f.Changed
	}
	cfg, err := loadConfigOrDefault(opts.configFile, explicit)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
