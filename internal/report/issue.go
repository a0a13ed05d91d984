// Package report files a GitHub issue when the upstream popularity list
// contains packages the published dataset has not covered yet, so the dataset
// maintainers get a single rolling reminder instead of silent drift.
package report

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/google/go-github/v81/github"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	// IssueTitle is the rolling issue's fixed title; an open issue with this
	// title is updated in place rather than duplicated.
	IssueTitle = "🚀 New PyPI projects missing from local dataset"

	// IssueLabel marks the rolling issue so title collisions with unrelated
	// issues are ignored.
	IssueLabel = "new package"

	// maxDisplayed bounds how many package names the issue body lists.
	maxDisplayed = 20
)

// IssueReporter creates or updates the missing-packages issue on the dataset
// repository.
type IssueReporter struct {
	client *github.Client
	owner  string
	repo   string
	log    zerolog.Logger
}

type reporterOptions struct {
	httpClient *http.Client
	baseURL    string
	logger     zerolog.Logger
}

// ReporterOption configures an IssueReporter.
type ReporterOption func(*reporterOptions)

// WithHTTPClient replaces the underlying HTTP client (tests inject an
// httptest client here).
func WithHTTPClient(hc *http.Client) ReporterOption {
	return func(o *reporterOptions) { o.httpClient = hc }
}

// WithAPIBaseURL points the reporter at a different GitHub API endpoint.
func WithAPIBaseURL(base string) ReporterOption {
	return func(o *reporterOptions) { o.baseURL = base }
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) ReporterOption {
	return func(o *reporterOptions) { o.logger = log }
}

// NewIssueReporter builds a reporter for the repository given as OWNER/REPO.
func NewIssueReporter(token, ownerRepo string, opts ...ReporterOption) (*IssueReporter, error) {
	owner, repo, ok := strings.Cut(ownerRepo, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("repository must be OWNER/REPO, got %q", ownerRepo)
	}

	o := &reporterOptions{logger: zerolog.Nop()}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}

	hc := o.httpClient
	if token != "" {
		base := http.DefaultTransport
		if hc != nil && hc.Transport != nil {
			base = hc.Transport
		}
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = &http.Client{Transport: &oauth2.Transport{Source: ts, Base: base}}
	}

	client := github.NewClient(hc)
	if o.baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(o.baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid API base URL %q: %w", o.baseURL, err)
		}
		client.BaseURL = u
	}

	return &IssueReporter{client: client, owner: owner, repo: repo, log: o.logger}, nil
}

// FileMissing creates the rolling issue for the given packages, or rewrites
// the body of the existing open one. A nil/empty package set is a no-op.
func (r *IssueReporter) FileMissing(ctx context.Context, packages []string) error {
	if len(packages) == 0 {
		return nil
	}
	body := BuildIssueBody(packages)

	existing, err := r.findOpenIssue(ctx)
	if err != nil {
		return err
	}

	if existing != nil {
		_, _, err := r.client.Issues.Edit(ctx, r.owner, r.repo, existing.GetNumber(), &github.IssueRequest{
			Body: github.Ptr(body),
		})
		if err != nil {
			return fmt.Errorf("update issue #%d: %w", existing.GetNumber(), err)
		}
		r.log.Info().Int("issue", existing.GetNumber()).Int("packages", len(packages)).Msg("updated missing-packages issue")
		return nil
	}

	created, _, err := r.client.Issues.Create(ctx, r.owner, r.repo, &github.IssueRequest{
		Title:  github.Ptr(IssueTitle),
		Body:   github.Ptr(body),
		Labels: &[]string{IssueLabel, "enhancement"},
	})
	if err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	r.log.Info().Int("issue", created.GetNumber()).Int("packages", len(packages)).Msg("created missing-packages issue")
	return nil
}

func (r *IssueReporter) findOpenIssue(ctx context.Context) (*github.Issue, error) {
	opts := &github.IssueListByRepoOptions{
		State:       "open",
		Labels:      []string{IssueLabel},
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		issues, resp, err := r.client.Issues.ListByRepo(ctx, r.owner, r.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("list open issues: %w", err)
		}
		for _, issue := range issues {
			if issue.GetTitle() == IssueTitle {
				return issue, nil
			}
		}
		if resp.NextPage == 0 {
			return nil, nil
		}
		opts.ListOptions.Page = resp.NextPage
	}
}

// BuildIssueBody renders the issue body: a sorted list capped at maxDisplayed
// names with a "... and N more." trailer.
func BuildIssueBody(packages []string) string {
	sorted := append([]string(nil), packages...)
	sort.Strings(sorted)

	count := len(sorted)
	displayed := sorted
	if len(displayed) > maxDisplayed {
		displayed = displayed[:maxDisplayed]
	}

	plural := "s were"
	if count == 1 {
		plural = " was"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d new package%s found in "+
		"[top-pypi-packages](https://github.com/hugovk/top-pypi-packages/blob/main/top-pypi-packages.csv) "+
		"that are missing from our dataset.\n\n", count, plural)
	for _, pkg := range displayed {
		fmt.Fprintf(&b, "- %s\n", pkg)
	}
	if hidden := count - len(displayed); hidden > 0 {
		fmt.Fprintf(&b, "\n... and %d more.", hidden)
	}
	return b.String()
}
