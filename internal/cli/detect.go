package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pypitypes/internal/config"
	"pypitypes/internal/dataset"
	"pypitypes/internal/flags"
	"pypitypes/internal/logging"
	"pypitypes/internal/report"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Find packages missing from the dataset and file a tracking issue",
	Long: `Compare the upstream top-packages list against the local dataset and file
(or update) a GitHub issue listing the packages not yet covered.

Intended to run in CI on a schedule; GitHub Actions' default GITHUB_TOKEN is
enough to file the issue on the dataset repository. The token is resolved
from GITHUB_TOKEN (a .env file is honored) or the gh CLI.

Examples:
	# See what would be reported
	pypitypes detect --dry-run

	# File or update the tracking issue
	pypitypes detect --repo owner/dataset-repo`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := cfg.ValidateDetect(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(3)
		}

		log, closeLog, err := logging.Setup(cfg.Runtime.Verbose, cfg.Runtime.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(3)
		}
		defer closeLog()

		os.Exit(runDetect(log, cfg))
	},
}

func runDetect(log zerolog.Logger, cfg *config.Config) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	missing, err := missingPackages(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}
	if len(missing) == 0 {
		log.Info().Msg("dataset covers every upstream package")
		return 0
	}
	log.Info().Int("missing", len(missing)).Msg("upstream packages missing from dataset")

	if cfg.Detect.DryRun {
		for _, pkg := range missing {
			fmt.Println(pkg)
		}
		return 0
	}

	token, err := report.ResolveAuthToken(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve GitHub auth token: %v\n", err)
		return 3
	}
	if token == "" {
		fmt.Fprintln(os.Stderr, "Error: GitHub auth token is required (set GITHUB_TOKEN or run 'gh auth login')")
		return 3
	}

	reporter, err := report.NewIssueReporter(token, cfg.Detect.Repo, report.WithLogger(log))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}
	if err := reporter.FileMissing(ctx, missing); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}
	return 0
}

// missingPackages diffs the upstream list against the local dataset, minus
// projects known to be absent from the index. Sorted for stable output.
func missingPackages(ctx context.Context, cfg *config.Config) ([]string, error) {
	upstream, err := dataset.FetchColumn(ctx, http.DefaultClient, cfg.Detect.TopURL, dataset.TopPackagesColumn)
	if err != nil {
		return nil, fmt.Errorf("fetch upstream list: %w", err)
	}
	local, err := dataset.ReadColumnSet(cfg.Output.Out, dataset.ResultColumn)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", cfg.Output.Out, err)
	}
	ignore := make(map[string]struct{}, len(cfg.Detect.Ignore))
	for _, pkg := range cfg.Detect.Ignore {
		ignore[pkg] = struct{}{}
	}

	seen := make(map[string]struct{}, len(upstream))
	var missing []string
	for _, pkg := range upstream {
		if _, dup := seen[pkg]; dup {
			continue
		}
		seen[pkg] = struct{}{}
		if _, ok := local[pkg]; ok {
			continue
		}
		if _, ok := ignore[pkg]; ok {
			continue
		}
		missing = append(missing, pkg)
	}
	sort.Strings(missing)
	return missing, nil
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().StringVar(&cfg.Detect.TopURL, flags.FlagTopURL, cfg.Detect.TopURL, "Upstream top-packages CSV URL")
	detectCmd.Flags().StringVar(&cfg.Detect.Repo, flags.FlagRepo, "", "GitHub repository to file the issue on (OWNER/REPO)")
	detectCmd.Flags().BoolVar(&cfg.Detect.DryRun, flags.FlagDryRun, false, "Print missing packages instead of filing an issue")
	detectCmd.Flags().StringSliceVar(&cfg.Detect.Ignore, flags.FlagIgnore, cfg.Detect.Ignore, "Projects known to be absent from the index (repeatable; comma-separated accepted)")
	detectCmd.Flags().StringVar(&cfg.Output.Out, flags.FlagOut, cfg.Output.Out, "Local dataset CSV to diff against")
}
