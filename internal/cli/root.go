package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"pypitypes/internal/flags"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "pypitypes",
	Short: "Track the type-hint status of popular PyPI packages",
	Long: `pypitypes maintains a dataset describing the type-hint status of the most
popular packages on PyPI: whether each package ships inline type information
(a py.typed marker covering its code) and whether a stub-only types-<package>
distribution exists for it.

pypitypes is read-only against the index: it downloads metadata and artifact
listings and never mutates index state.

Examples:
	# Check a few packages explicitly
	pypitypes check requests flask numpy

	# Refresh the dataset from the top-packages list
	pypitypes check --input top-pypi-packages.csv --out pypi-packages-typing.csv

	# File an issue for packages missing from the dataset
	pypitypes detect --repo owner/dataset-repo

	# Print build info
	pypitypes version`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&cfg.Runtime.Verbose, flags.FlagVerbose, false, "Enable debug logging (prints every index request)")
	rootCmd.PersistentFlags().StringVar(&cfg.Runtime.LogFile, flags.FlagLogFile, "", "Duplicate structured log lines to this file")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	// A .env next to the binary may hold GITHUB_TOKEN for the detect command.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
