package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/ChuLiYu/card-recovery/internal/luhn"
	"github.com/ChuLiYu/card-recovery/internal/metrics"
	"github.com/ChuLiYu/card-recovery/internal/search"
	"github.com/ChuLiYu/card-recovery/internal/stats"
	"github.com/ChuLiYu/card-recovery/internal/store"
	"github.com/ChuLiYu/card-recovery/pkg/types"
)

// progressInterval throttles redraws of the terminal progress line.
const progressInterval = 100 * time.Millisecond

type recoverFlags struct {
	workers    string
	algorithm  string
	mode       string
	hash       string
	bin        string
	lastDigits string
	infixWidth int
	quiet      bool
}

func buildRecoverCommand(opts *rootOptions) *cobra.Command {
	f := &recoverFlags{}

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Recover the card number matching the stored digest",
		Long: `Read the target digest, BIN and last digits from the configured input files,
search every zero-padded infix and save the match with its Luhn verdict.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecover(cmd, opts, f)
		},
	}

	cmd.Flags().StringVarP(&f.workers, "workers", "w", "", "worker count, non-positive or non-numeric uses all cores")
	cmd.Flags().StringVarP(&f.algorithm, "algorithm", "a", "", "digest algorithm (default from config, sha1)")
	cmd.Flags().StringVar(&f.mode, "mode", "", "search mode: exhaustive or early-exit")
	cmd.Flags().StringVar(&f.hash, "hash", "", "file holding the target digest")
	cmd.Flags().StringVar(&f.bin, "bin", "", "file holding the BIN prefix")
	cmd.Flags().StringVar(&f.lastDigits, "last-digits", "", "file holding the known last digits")
	cmd.Flags().IntVar(&f.infixWidth, "infix-width", 0, "number of unknown middle digits")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "do not draw the progress line")

	return cmd
}

// applyOverrides copies explicitly set flags over the config file values.
func applyOverrides(cmd *cobra.Command, cfg *Config, f *recoverFlags) {
	changed := cmd.Flags().Changed
	if changed("workers") {
		cfg.Search.Workers = parseWorkers(f.workers)
	}
	if changed("algorithm") {
		cfg.Search.Algorithm = f.algorithm
	}
	if changed("mode") {
		cfg.Search.Mode = f.mode
	}
	if changed("hash") {
		cfg.Inputs.Hash = f.hash
	}
	if changed("bin") {
		cfg.Inputs.BIN = f.bin
	}
	if changed("last-digits") {
		cfg.Inputs.LastDigits = f.lastDigits
	}
	if changed("infix-width") {
		cfg.Search.InfixWidth = f.infixWidth
	}
}

// readSpec loads the three input files and builds the search spec.
func readSpec(cfg *Config, loader store.Loader) (types.SearchSpec, error) {
	digest, err := loader.Load(cfg.Inputs.Hash)
	if err != nil {
		return types.SearchSpec{}, fmt.Errorf("failed to read hash: %w", err)
	}
	bin, err := loader.Load(cfg.Inputs.BIN)
	if err != nil {
		return types.SearchSpec{}, fmt.Errorf("failed to read BIN: %w", err)
	}
	last, err := loader.Load(cfg.Inputs.LastDigits)
	if err != nil {
		return types.SearchSpec{}, fmt.Errorf("failed to read last digits: %w", err)
	}

	return types.SearchSpec{
		TargetDigest: digest,
		Prefix:       bin,
		Suffix:       last,
		InfixWidth:   cfg.Search.InfixWidth,
		WorkerCount:  cfg.Search.Workers,
		Algorithm:    cfg.Search.Algorithm,
		CardLength:   cfg.Search.CardLength,
		Mode:         types.SearchMode(cfg.Search.Mode),
	}, nil
}

func runRecover(cmd *cobra.Command, opts *rootOptions, f *recoverFlags) error {
	cfg, err := configFor(cmd, opts)
	if err != nil {
		return err
	}
	applyOverrides(cmd, cfg, f)

	fileStore := store.NewFileStore()
	spec, err := readSpec(cfg, fileStore)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	engineCfg := search.Config{
		ReportEvery: cfg.Search.ReportEvery,
		Metrics:     metrics.NewCollector(reg),
		Logger:      log,
	}
	if cfg.Outputs.Stats != "" {
		engineCfg.Stats = stats.NewCSVSink(cfg.Outputs.Stats)
	}
	engine := search.NewEngine(engineCfg)

	// Start Metrics
	if cfg.Metrics.Enabled {
		go func() {
			log.Info("Starting metrics server", "port", cfg.Metrics.Port)
			if err := metrics.StartServer(cfg.Metrics.Port, reg); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Metrics server error", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var onProgress search.ProgressFunc
	var line *progressLine
	if !f.quiet {
		line = newProgressLine(cmd.ErrOrStderr(), progressInterval)
		onProgress = line.update
	}

	out := search.Outputs{CardNumber: cfg.Outputs.CardNumber, Result: cfg.Outputs.Result}
	res, err := engine.Recover(ctx, spec, fileStore, out, onProgress)
	if line != nil {
		line.finish()
	}

	return report(cmd.OutOrStdout(), res, out, err)
}

// report prints the outcome and maps search errors to user-facing ones.
func report(w io.Writer, res types.SearchResult, out search.Outputs, err error) error {
	switch {
	case errors.Is(err, search.ErrInvalidSpec):
		return fmt.Errorf("invalid input: %w", err)
	case search.IsWorkerFailure(err):
		return fmt.Errorf("search aborted: %w", err)
	case errors.Is(err, search.ErrCancelled):
		fmt.Fprintf(w, "search cancelled after %d of %d candidates\n", res.Processed, res.Total)
		return err
	}

	if !res.Found() {
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "no match in the given space")
		return nil
	}

	fmt.Fprintf(w, "Card number: %s\n", res.Number)
	fmt.Fprintln(w, luhn.Verdict(res.Number))
	fmt.Fprintf(w, "Searched %d candidates with %d workers in %s\n",
		res.Processed, res.WorkerCount, res.Elapsed.Round(time.Millisecond))
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	if out.CardNumber != "" {
		fmt.Fprintf(w, "Saved to %s\n", out.CardNumber)
	}
	return nil
}

// progressLine redraws a single "\r" line at most once per interval. The
// engine never calls update concurrently, and finish runs after the search
// has returned.
type progressLine struct {
	w       io.Writer
	every   rate.Sometimes
	last    types.ProgressEvent
	printed bool
}

func newProgressLine(w io.Writer, interval time.Duration) *progressLine {
	return &progressLine{w: w, every: rate.Sometimes{Interval: interval}}
}

func (p *progressLine) update(ev types.ProgressEvent) {
	p.last = ev
	p.every.Do(func() { p.draw(ev) })
}

func (p *progressLine) draw(ev types.ProgressEvent) {
	pct := 0.0
	if ev.Total > 0 {
		pct = float64(ev.Processed) / float64(ev.Total) * 100
	}
	fmt.Fprintf(p.w, "\rProgress: %6.2f%% (%d/%d)", pct, ev.Processed, ev.Total)
	p.printed = true
}

// finish draws the final count and ends the line.
func (p *progressLine) finish() {
	if !p.printed {
		return
	}
	p.draw(p.last)
	fmt.Fprintln(p.w)
}
