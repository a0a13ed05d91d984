// Package pypi is the package-index collaborator: release metadata lookup,
// artifact file-listing retrieval and project-existence checks against the
// PyPI JSON API. It is strictly read-only.
package pypi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"pypitypes/internal/artifact"
)

const (
	// DefaultBaseURL is the production index.
	DefaultBaseURL = "https://pypi.org"

	defaultUserAgent = "pypitypes/0.1 (+https://github.com/pypitypes/pypitypes)"
)

// maxArtifactBytes caps how much of an artifact body is buffered when a full
// download is unavoidable. The largest wheels on the index today are well
// under this.
const maxArtifactBytes = 1 << 30 // 1 GiB

// Client queries the package index. It deduplicates concurrent identical
// lookups and memoizes metadata for the lifetime of the client, so checking
// both a package and its types- counterpart costs one request each per run.
type Client struct {
	base      string
	hc        *http.Client
	userAgent string
	policy    ReleasePolicy
	throttle  *Throttle
	log       zerolog.Logger

	group    singleflight.Group
	projects sync.Map // normalized name -> *projectDoc
	exists   sync.Map // normalized name -> bool
}

type options struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	policy     ReleasePolicy
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient replaces the underlying HTTP client (tests inject an
// httptest client here).
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithBaseURL points the client at a different index host.
func WithBaseURL(base string) Option {
	return func(o *options) { o.baseURL = base }
}

// WithUserAgent sets the User-Agent header sent on every request. The index
// asks bulk consumers to identify themselves.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithReleasePolicy selects how "latest release" is interpreted.
func WithReleasePolicy(p ReleasePolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithLogger attaches a logger for request-level diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.logger = log }
}

func NewClient(opts ...Option) (*Client, error) {
	o := &options{
		baseURL:   DefaultBaseURL,
		userAgent: defaultUserAgent,
		policy:    ReleasePolicyIndex,
		logger:    zerolog.Nop(),
	}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}
	if _, err := url.Parse(o.baseURL); err != nil {
		return nil, fmt.Errorf("pypi client: invalid base URL %q: %w", o.baseURL, err)
	}
	if !o.policy.valid() {
		return nil, fmt.Errorf("pypi client: unknown release policy %q", o.policy)
	}
	hc := o.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Client{
		base:      o.baseURL,
		hc:        hc,
		userAgent: o.userAgent,
		policy:    o.policy,
		throttle:  NewThrottle(),
		log:       o.logger,
	}, nil
}

// LatestRelease resolves the representative distribution file of pkg's latest
// release under the client's release policy.
//
// Returns ErrNotFound when the project does not exist and ErrNoArtifact when
// it exists but has nothing downloadable.
func (c *Client) LatestRelease(ctx context.Context, pkg string) (*Release, error) {
	name := NormalizeName(pkg)
	doc, err := c.projectDocFor(ctx, name)
	if err != nil {
		return nil, err
	}
	version, err := selectVersion(doc, c.policy)
	if err != nil {
		return nil, err
	}
	file, ok := selectFile(doc.Releases[version])
	if !ok {
		return nil, ErrNoArtifact
	}
	return &Release{Project: name, Version: version, File: file}, nil
}

// ProjectExists checks whether a project is published under exactly the given
// name. A definitive 404 yields (false, nil); transport or server failures
// yield an error so callers can distinguish "absent" from "unknown".
func (c *Client) ProjectExists(ctx context.Context, pkg string) (bool, error) {
	name := NormalizeName(pkg)
	if v, ok := c.exists.Load(name); ok {
		return v.(bool), nil
	}

	op := "check " + name
	v, err, _ := c.group.Do("exists:"+name, func() (any, error) {
		resp, err := c.get(ctx, c.base+"/pypi/"+url.PathEscape(name)+"/json", "")
		if err != nil {
			return false, classifyHTTPError(op, 0, err)
		}
		defer drainClose(resp.Body)
		switch resp.StatusCode {
		case http.StatusOK:
			return true, nil
		case http.StatusNotFound:
			return false, nil
		default:
			return false, classifyHTTPError(op, resp.StatusCode, nil)
		}
	})
	if err != nil {
		return false, err
	}
	c.exists.Store(name, v.(bool))
	return v.(bool), nil
}

// ArtifactEntries fetches the file listing of a release's distribution file.
//
// Wheels are zip archives hosted by a server that honors byte ranges, so
// their central directory is read remotely without downloading the artifact.
// Anything else (and any wheel whose remote listing fails) is downloaded in
// full and enumerated locally.
func (c *Client) ArtifactEntries(ctx context.Context, rel *Release) ([]artifact.Entry, error) {
	if rel == nil {
		return nil, fmt.Errorf("ArtifactEntries: nil release")
	}
	file := rel.File
	if file.URL == "" {
		return nil, ErrNoArtifact
	}

	if file.PackageType == "bdist_wheel" {
		entries, err := c.listRemoteZip(ctx, file)
		if err == nil {
			return entries, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Debug().Str("file", file.Filename).Err(err).
			Msg("remote wheel listing failed, downloading artifact")
	}

	op := "download " + file.Filename
	resp, err := c.get(ctx, file.URL, "")
	if err != nil {
		return nil, classifyHTTPError(op, 0, err)
	}
	defer drainClose(resp.Body)
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		// Metadata advertised a file the host no longer has: confirmed absence
		// of a usable artifact, not an indeterminate failure.
		return nil, ErrNoArtifact
	default:
		return nil, classifyHTTPError(op, resp.StatusCode, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes+1))
	if err != nil {
		return nil, &TransientError{Op: op, Err: err}
	}
	if int64(len(body)) > maxArtifactBytes {
		return nil, &MalformedResponseError{Op: op, Err: fmt.Errorf("artifact exceeds %d byte limit", int64(maxArtifactBytes))}
	}

	entries, err := artifact.ListBody(file.Filename, body)
	if err != nil {
		return nil, &MalformedResponseError{Op: op, Err: err}
	}
	return entries, nil
}

// Throttle exposes the client's shared cooldown gate, mainly for tests.
func (c *Client) Throttle() *Throttle {
	return c.throttle
}

func (c *Client) projectDocFor(ctx context.Context, name string) (*projectDoc, error) {
	if v, ok := c.projects.Load(name); ok {
		return v.(*projectDoc), nil
	}
	v, err, _ := c.group.Do("project:"+name, func() (any, error) {
		return c.fetchProjectDoc(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	doc := v.(*projectDoc)
	c.projects.Store(name, doc)
	return doc, nil
}

func (c *Client) fetchProjectDoc(ctx context.Context, name string) (*projectDoc, error) {
	op := "get project " + name
	resp, err := c.get(ctx, c.base+"/pypi/"+url.PathEscape(name)+"/json", "")
	if err != nil {
		return nil, classifyHTTPError(op, 0, err)
	}
	defer drainClose(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(op, resp.StatusCode, nil)
	}

	var doc projectDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, &MalformedResponseError{Op: op, Err: err}
	}
	return &doc, nil
}

// get issues one request with the client's User-Agent, waiting out any active
// cooldown first and recording any new one the response asks for.
func (c *Client) get(ctx context.Context, rawurl, rangeHeader string) (*http.Response, error) {
	if err := c.throttle.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		c.log.Debug().Str("url", rawurl).Dur("elapsed", time.Since(start)).Err(err).Msg("index request failed")
		return nil, err
	}
	c.throttle.UpdateFromResponse(resp)
	c.log.Debug().Str("url", rawurl).Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).Msg("index request")
	return resp, nil
}

// drainClose discards any unread body so the connection can be reused.
func drainClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<20))
	_ = body.Close()
}
