package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"pypitypes/internal/config"
	"pypitypes/internal/dataset"
	"pypitypes/internal/flags"
	"pypitypes/internal/logging"
	"pypitypes/internal/output"
	"pypitypes/internal/pypi"
	"pypitypes/internal/resolver"
)

var cfg = config.New()

var checkCmd = &cobra.Command{
	Use:   "check [package...]",
	Short: "Resolve the type-hint status of packages and append rows to the dataset",
	Long: `Resolve, for each package, whether its latest release ships inline type
information (a py.typed marker covering its code) and whether a stub-only
types-<package> distribution exists on the index.

Package names come from positional arguments, or from the CSV named by
--input (column --column) when no arguments are given. Names already present
in the dataset are skipped unless --recheck is set, so interrupted runs
resume where they stopped.

Each resolved package appends one row to the --out CSV:
	package,has_py_typed,has_types_package
has_types_package is left empty when the stub lookup was indeterminate; an
empty field is an unknown, never a confirmed absence.

Exit codes:
	0 = all packages resolved
	2 = partial failure (some packages could not be resolved)
	3 = fatal error (run did not start)

Examples:
	pypitypes check requests flask numpy

	# Refresh the dataset, 20 packages at a time
	pypitypes check --input top-pypi-packages.csv --concurrency 20

	# Ignore pre-releases when picking the latest release
	pypitypes check --release-policy stable django`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg.Input.Packages = append(cfg.Input.Packages, args...)

		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(3)
		}

		log, closeLog, err := logging.Setup(cfg.Runtime.Verbose, cfg.Runtime.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(3)
		}
		defer closeLog()

		os.Exit(runCheck(log, cfg))
	},
}

func runCheck(log zerolog.Logger, cfg *config.Config) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Resolve.Timeout)
	defer cancel()

	packages, skipped, err := loadPackages(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}
	if skipped > 0 {
		log.Info().Int("skipped", skipped).Msg("skipping packages already in dataset")
	}
	if len(packages) == 0 {
		log.Info().Msg("nothing to do")
		return 0
	}

	client, err := pypi.NewClient(
		pypi.WithBaseURL(cfg.Resolve.IndexURL),
		pypi.WithReleasePolicy(pypi.ReleasePolicy(cfg.Resolve.ReleasePolicy)),
		pypi.WithLogger(log),
		userAgentOption(cfg),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}

	csvSink, err := output.NewCSVSink(cfg.Output.Out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}
	outMgr := output.NewManager(csvSink)

	var console *output.ConsoleSink
	if !cfg.Output.NoConsole {
		console = output.NewConsoleSink(os.Stdout)
		_ = outMgr.AddSink(console)
	}

	var bar *progressbar.ProgressBar
	if !cfg.Output.NoProgress {
		bar = progressbar.NewOptions(len(packages),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("checking"),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionShowCount(),
		)
	}

	total := len(packages)
	res, err := resolver.New(client,
		resolver.WithConcurrency(cfg.Resolve.Concurrency),
		resolver.WithRetryPolicy(resolver.RetryPolicy{
			MaxAttempts: cfg.Resolve.Retries,
			BaseDelay:   cfg.Resolve.RetryBase,
			MaxDelay:    resolver.DefaultRetryPolicy.MaxDelay,
		}),
		resolver.WithLogger(log),
		resolver.WithOnResult(func(i int, out resolver.Outcome) {
			if werr := outMgr.Write(output.Result{Index: i, Total: total, Outcome: out}); werr != nil {
				log.Error().Err(werr).Msg("write result")
			}
			if bar != nil {
				_ = bar.Add(1)
			}
		}),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}

	outcomes := res.ResolveMany(ctx, packages)

	if bar != nil {
		_ = bar.Finish()
	}
	if err := outMgr.Close(); err != nil {
		log.Error().Err(err).Msg("close outputs")
	}

	failed := 0
	for _, out := range outcomes {
		if out.Err != nil {
			failed++
		}
	}
	if console != nil {
		console.Summary()
	}
	log.Info().Int("resolved", len(outcomes)-failed).Int("failed", failed).Int("skipped", skipped).Msg("finished")

	if failed > 0 {
		return 2
	}
	return 0
}

// loadPackages assembles the work list: explicit names, or the --input CSV
// column, minus whatever the dataset already contains (unless --recheck).
func loadPackages(cfg *config.Config) (packages []string, skipped int, err error) {
	names := cfg.Input.Packages
	if len(names) == 0 {
		names, err = dataset.ReadColumnFile(cfg.Input.File, cfg.Input.Column)
		if err != nil {
			return nil, 0, fmt.Errorf("read %s: %w", cfg.Input.File, err)
		}
	}
	if cfg.Input.MaxPackages > 0 && len(names) > cfg.Input.MaxPackages {
		names = names[:cfg.Input.MaxPackages]
	}

	if cfg.Input.Recheck {
		return names, 0, nil
	}
	processed, err := dataset.ReadColumnSet(cfg.Output.Out, dataset.ResultColumn)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", cfg.Output.Out, err)
	}
	for _, name := range names {
		if _, ok := processed[pypi.NormalizeName(name)]; ok {
			skipped++
			continue
		}
		packages = append(packages, name)
	}
	return packages, skipped, nil
}

func userAgentOption(cfg *config.Config) pypi.Option {
	if cfg.Resolve.UserAgent == "" {
		return nil
	}
	return pypi.WithUserAgent(cfg.Resolve.UserAgent)
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&cfg.Input.File, flags.FlagInput, cfg.Input.File, "CSV file to read package names from when no arguments are given")
	checkCmd.Flags().StringVar(&cfg.Input.Column, flags.FlagColumn, cfg.Input.Column, "CSV column holding package names")
	checkCmd.Flags().IntVar(&cfg.Input.MaxPackages, flags.FlagMaxPackages, 0, "Maximum number of packages to check (0 = unlimited)")
	checkCmd.Flags().BoolVar(&cfg.Input.Recheck, flags.FlagRecheck, false, "Re-resolve packages already present in the dataset")

	checkCmd.Flags().StringVar(&cfg.Output.Out, flags.FlagOut, cfg.Output.Out, "Dataset CSV to append rows to")
	checkCmd.Flags().BoolVar(&cfg.Output.NoConsole, flags.FlagNoConsole, false, "Suppress per-package console lines")
	checkCmd.Flags().BoolVar(&cfg.Output.NoProgress, flags.FlagNoProgress, false, "Suppress the progress bar")

	checkCmd.Flags().StringVar(&cfg.Resolve.IndexURL, flags.FlagIndexURL, cfg.Resolve.IndexURL, "Package index base URL")
	checkCmd.Flags().StringVar(&cfg.Resolve.UserAgent, flags.FlagUserAgent, "", "User-Agent header sent to the index")
	checkCmd.Flags().StringVar(&cfg.Resolve.ReleasePolicy, flags.FlagReleasePolicy, cfg.Resolve.ReleasePolicy, "Latest-release policy: index|stable")
	checkCmd.Flags().IntVar(&cfg.Resolve.Concurrency, flags.FlagConcurrency, cfg.Resolve.Concurrency, "Concurrent package resolutions")
	checkCmd.Flags().DurationVar(&cfg.Resolve.Timeout, flags.FlagTimeout, cfg.Resolve.Timeout, "Overall run timeout")
	checkCmd.Flags().IntVar(&cfg.Resolve.Retries, flags.FlagRetries, cfg.Resolve.Retries, "Attempts per index call, including the first")
	checkCmd.Flags().DurationVar(&cfg.Resolve.RetryBase, flags.FlagRetryBase, cfg.Resolve.RetryBase, "Backoff before the first retry (doubles per retry)")
}
