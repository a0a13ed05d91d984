// Package resolver determines the type-hint status of PyPI packages: whether
// a package's latest release bundles inline type information (a py.typed
// marker covering its code) and whether a stub-only types- counterpart exists
// on the index.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"pypitypes/internal/artifact"
	"pypitypes/internal/pypi"
)

// Index is the read-only package-index collaborator. *pypi.Client implements
// it; tests substitute fakes.
type Index interface {
	// LatestRelease resolves a project's latest release and its representative
	// distribution file. Returns pypi.ErrNotFound for unknown projects and
	// pypi.ErrNoArtifact for projects with nothing downloadable.
	LatestRelease(ctx context.Context, pkg string) (*pypi.Release, error)

	// ArtifactEntries lists the files inside a release's distribution file.
	ArtifactEntries(ctx context.Context, rel *pypi.Release) ([]artifact.Entry, error)

	// ProjectExists checks for a project published under exactly the given
	// name. A definitive 404 is (false, nil); indeterminate failures are
	// errors.
	ProjectExists(ctx context.Context, pkg string) (bool, error)
}

// Resolver answers the two typing questions for single packages and batches.
// It holds no mutable state across calls; a Resolver is safe for concurrent
// use.
type Resolver struct {
	index       Index
	retry       RetryPolicy
	sleep       SleepFunc
	concurrency int
	onResult    func(index int, out Outcome)
	log         zerolog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithConcurrency bounds how many packages ResolveMany works on at once.
func WithConcurrency(n int) Option {
	return func(r *Resolver) { r.concurrency = n }
}

// WithRetryPolicy replaces the default bounded-backoff policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(r *Resolver) { r.retry = p }
}

// WithSleep injects the backoff sleep, so tests can observe delays without
// waiting them out.
func WithSleep(fn SleepFunc) Option {
	return func(r *Resolver) { r.sleep = fn }
}

// WithOnResult registers a callback invoked once per package as ResolveMany
// completes it, in completion order. It may be called from multiple
// goroutines at once.
func WithOnResult(fn func(index int, out Outcome)) Option {
	return func(r *Resolver) { r.onResult = fn }
}

// WithLogger attaches a logger for per-package diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

func New(index Index, opts ...Option) (*Resolver, error) {
	if index == nil {
		return nil, errors.New("resolver: index is nil")
	}
	r := &Resolver{
		index:       index,
		retry:       DefaultRetryPolicy,
		sleep:       sleepContext,
		concurrency: 10,
		log:         zerolog.Nop(),
	}
	for _, apply := range opts {
		if apply != nil {
			apply(r)
		}
	}
	if r.retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("resolver: retry attempts must be >= 1, got %d", r.retry.MaxAttempts)
	}
	if r.concurrency < 1 {
		return nil, fmt.Errorf("resolver: concurrency must be >= 1, got %d", r.concurrency)
	}
	if r.sleep == nil {
		return nil, errors.New("resolver: sleep func is nil")
	}
	return r, nil
}

// Resolve answers both typing questions for one package.
//
// The inline-typing question fails hard: if the index leaves artifact
// existence undetermined after retries, Resolve returns a *ResolutionError
// rather than defaulting to false. A confirmed missing project or artifact
// resolves cleanly to HasPyTyped=false. The stub question degrades soft: an
// indeterminate lookup yields HasTypesPackage=Unknown, never a silent false.
func (r *Resolver) Resolve(ctx context.Context, pkg string) (Record, error) {
	name := pypi.NormalizeName(pkg)
	if name == "" || strings.Trim(name, "-") == "" {
		return Record{}, resolutionError(pkg, errors.New("empty package name"))
	}

	rec := Record{Package: name}

	hasPyTyped, err := r.resolveInlineTyping(ctx, name)
	if err != nil {
		return Record{Package: name}, resolutionError(name, err)
	}
	rec.HasPyTyped = hasPyTyped

	rec.HasTypesPackage = r.resolveStubPackage(ctx, name)

	r.log.Info().Str("package", name).
		Bool("has_py_typed", rec.HasPyTyped).
		Stringer("has_types_package", rec.HasTypesPackage).
		Msg("resolved")
	return rec, nil
}

func (r *Resolver) resolveInlineTyping(ctx context.Context, name string) (bool, error) {
	var rel *pypi.Release
	err := r.withRetry(ctx, "latest release "+name, func() error {
		var err error
		rel, err = r.index.LatestRelease(ctx, name)
		return err
	})
	switch {
	case errors.Is(err, pypi.ErrNotFound), errors.Is(err, pypi.ErrNoArtifact):
		// Nothing published means nothing to carry a marker. This is a
		// definitive no, not an unknown.
		return false, nil
	case err != nil:
		return false, err
	}

	var entries []artifact.Entry
	err = r.withRetry(ctx, "list artifact "+rel.File.Filename, func() error {
		var err error
		entries, err = r.index.ArtifactEntries(ctx, rel)
		return err
	})
	switch {
	case errors.Is(err, pypi.ErrNoArtifact):
		return false, nil
	case err != nil:
		return false, err
	}

	return artifact.HasInlineTyping(entries), nil
}

func (r *Resolver) resolveStubPackage(ctx context.Context, name string) TriState {
	stub := pypi.StubName(name)
	var exists bool
	err := r.withRetry(ctx, "check stub "+stub, func() error {
		var err error
		exists, err = r.index.ProjectExists(ctx, stub)
		return err
	})
	if err != nil {
		r.log.Warn().Str("package", name).Str("stub", stub).Err(err).
			Msg("stub lookup indeterminate")
		return Unknown
	}
	return triFromBool(exists)
}
