// Package flags centralizes CLI flag names so commands and implicit-default
// logic refer to the same strings.
package flags

const (
	// check
	FlagInput         = "input"
	FlagColumn        = "column"
	FlagMaxPackages   = "max-packages"
	FlagRecheck       = "recheck"
	FlagOut           = "out"
	FlagConcurrency   = "concurrency"
	FlagTimeout       = "timeout"
	FlagRetries       = "retries"
	FlagRetryBase     = "retry-base"
	FlagReleasePolicy = "release-policy"
	FlagIndexURL      = "index-url"
	FlagUserAgent     = "user-agent"
	FlagNoConsole     = "no-console"
	FlagNoProgress    = "no-progress"

	// detect
	FlagTopURL = "top-url"
	FlagRepo   = "repo"
	FlagDryRun = "dry-run"
	FlagIgnore = "ignore"

	// global
	FlagVerbose = "verbose"
	FlagLogFile = "log-file"
)
