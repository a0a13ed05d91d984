package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	Input   Input
	Resolve Resolve
	Output  Output
	Detect  Detect
	Runtime Runtime
}

type Input struct {
	// Packages is an explicit list of package names to check (see positional
	// args). Values may be given repeatedly and/or comma-separated. When set,
	// --input is ignored.
	Packages []string

	// File is a CSV file to read package names from (see --input).
	File string

	// Column is the CSV column holding package names (see --column).
	Column string

	// MaxPackages limits how many packages to check (see --max-packages).
	// 0 means unlimited.
	MaxPackages int

	// Recheck re-resolves packages already present in the output dataset
	// instead of skipping them (see --recheck).
	Recheck bool
}

type Resolve struct {
	// IndexURL is the package index base URL (see --index-url).
	IndexURL string

	// UserAgent identifies this tool to the index (see --user-agent).
	// The index asks bulk consumers to set a contactable User-Agent.
	UserAgent string

	// ReleasePolicy selects the "latest release" interpretation (see
	// --release-policy). Allowed values: index, stable.
	ReleasePolicy string

	// Concurrency controls how many packages are resolved at once (see
	// --concurrency). Must be >= 1.
	Concurrency int

	// Timeout is the overall deadline for the whole check run (see --timeout).
	// Must be > 0.
	Timeout time.Duration

	// Retries is the attempt count per index call, including the first (see
	// --retries). Must be >= 1.
	Retries int

	// RetryBase is the backoff before the first retry; it doubles per retry
	// (see --retry-base). Must be >= 0.
	RetryBase time.Duration
}

type Output struct {
	// Out is the dataset CSV path rows are appended to (see --out).
	Out string

	// NoConsole suppresses per-package console lines (see --no-console).
	NoConsole bool

	// NoProgress suppresses the progress bar (see --no-progress).
	NoProgress bool
}

type Detect struct {
	// TopURL is the upstream top-packages CSV to diff against (see --top-url).
	TopURL string

	// Repo is the GitHub repository to file the missing-packages issue on,
	// as OWNER/REPO (see --repo).
	Repo string

	// DryRun prints the missing packages instead of filing an issue (see
	// --dry-run).
	DryRun bool

	// Ignore lists projects known to be absent from the index, excluded from
	// the diff (see --ignore).
	Ignore []string
}

type Runtime struct {
	// Verbose enables debug-level logging, including per-request index
	// diagnostics.
	Verbose bool

	// LogFile duplicates structured log lines to this path (see --log-file).
	LogFile string
}

func New() *Config {
	return &Config{
		Input: Input{
			File:   "top-pypi-packages.csv",
			Column: "project",
		},
		Resolve: Resolve{
			IndexURL:      "https://pypi.org",
			ReleasePolicy: "index",
			Concurrency:   10,
			Timeout:       2 * time.Hour,
			Retries:       3,
			RetryBase:     500 * time.Millisecond,
		},
		Output: Output{
			Out: "pypi-packages-typing.csv",
		},
		Detect: Detect{
			TopURL: "https://raw.githubusercontent.com/hugovk/top-pypi-packages/main/top-pypi-packages.csv",
			Ignore: []string{"aaaaaaaaa", "pyairports"},
		},
	}
}

func (c *Config) Validate() error {
	c.Input.Packages = splitCommaList(c.Input.Packages)
	c.Detect.Ignore = splitCommaList(c.Detect.Ignore)

	if len(c.Input.Packages) == 0 && c.Input.File == "" {
		return errors.New("provide package names as arguments or a CSV via --input")
	}
	if c.Input.Column == "" {
		return errors.New("--column must not be empty")
	}
	if c.Input.MaxPackages < 0 {
		return errors.New("--max-packages must be >= 0")
	}

	u, err := url.Parse(c.Resolve.IndexURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid --index-url: %s", c.Resolve.IndexURL)
	}
	c.Resolve.IndexURL = strings.TrimSuffix(c.Resolve.IndexURL, "/")

	c.Resolve.ReleasePolicy = strings.ToLower(strings.TrimSpace(c.Resolve.ReleasePolicy))
	if c.Resolve.ReleasePolicy == "" {
		c.Resolve.ReleasePolicy = "index"
	}
	if c.Resolve.ReleasePolicy != "index" && c.Resolve.ReleasePolicy != "stable" {
		return fmt.Errorf("unsupported --release-policy: %s (must be one of: index, stable)", c.Resolve.ReleasePolicy)
	}

	if c.Resolve.Concurrency <= 0 {
		return errors.New("--concurrency must be >= 1")
	}
	if c.Resolve.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}
	if c.Resolve.Retries < 1 {
		return errors.New("--retries must be >= 1")
	}
	if c.Resolve.RetryBase < 0 {
		return errors.New("--retry-base must be >= 0")
	}

	if c.Output.Out == "" {
		return errors.New("--out must not be empty")
	}
	return nil
}

// ValidateDetect checks the fields the detect command uses.
func (c *Config) ValidateDetect() error {
	c.Detect.Ignore = splitCommaList(c.Detect.Ignore)

	if c.Detect.TopURL == "" {
		return errors.New("--top-url must not be empty")
	}
	if u, err := url.Parse(c.Detect.TopURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid --top-url: %s", c.Detect.TopURL)
	}
	if c.Output.Out == "" {
		return errors.New("--out must not be empty")
	}
	if !c.Detect.DryRun {
		if c.Detect.Repo == "" {
			return errors.New("--repo is required (or use --dry-run)")
		}
		if owner, repo, ok := strings.Cut(c.Detect.Repo, "/"); !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
			return fmt.Errorf("invalid --repo: %s (must be OWNER/REPO)", c.Detect.Repo)
		}
	}
	return nil
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
