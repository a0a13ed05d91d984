package report

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ResolveAuthToken resolves a GitHub access token for filing issues.
//
// Precedence:
//  1. provided (if non-empty)
//  2. GITHUB_TOKEN env var (GitHub Actions provides this automatically)
//  3. GitHub CLI: `gh auth token`
//
// It never prints the token. An empty result with a nil error means no token
// is available.
func ResolveAuthToken(ctx context.Context, provided string) (string, error) {
	if tok := strings.TrimSpace(provided); tok != "" {
		return tok, nil
	}
	if env := strings.TrimSpace(os.Getenv("GITHUB_TOKEN")); env != "" {
		return env, nil
	}
	return tokenFromGitHubCLI(ctx)
}

func tokenFromGitHubCLI(ctx context.Context) (string, error) {
	if _, err := exec.LookPath("gh"); err != nil {
		return "", nil
	}

	// Bounded so a broken gh credential helper doesn't hang the run.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	out, err := exec.CommandContext(ctx, "gh", "auth", "token").Output()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// gh present but not logged in: treat as "no token".
		return "", nil
	}
	tok := strings.TrimSpace(string(out))
	if strings.ContainsAny(tok, " \t\n\r") {
		return "", nil
	}
	return tok, nil
}
