package resolver

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pypitypes/internal/artifact"
	"pypitypes/internal/pypi"
)

func TestResolveMany_PreservesInputOrder(t *testing.T) {
	// Later inputs finish first; output order must still match input order.
	idx := &fakeIndex{
		latest: func(_ context.Context, pkg string) (*pypi.Release, error) {
			switch pkg {
			case "aaa":
				time.Sleep(30 * time.Millisecond)
			case "bbb":
				time.Sleep(15 * time.Millisecond)
			}
			return wheelRelease(pkg), nil
		},
		entries: func(_ context.Context, rel *pypi.Release) ([]artifact.Entry, error) {
			return []artifact.Entry{
				{Path: rel.Project + "/py.typed", Size: 0},
				{Path: rel.Project + "/mod.py", Size: 5},
			}, nil
		},
		exists: func(context.Context, string) (bool, error) { return false, nil },
	}
	r := newTestResolver(t, idx, WithConcurrency(3))

	in := []string{"aaa", "bbb", "ccc"}
	out := r.ResolveMany(context.Background(), in)

	require.Len(t, out, len(in))
	for i, name := range in {
		require.NoError(t, out[i].Err)
		assert.Equal(t, name, out[i].Record.Package)
	}
}

func TestResolveMany_IsolatesFailures(t *testing.T) {
	idx := &fakeIndex{
		latest: func(_ context.Context, pkg string) (*pypi.Release, error) {
			if pkg == "broken" {
				return nil, &pypi.TransientError{Op: "get project", Status: 500}
			}
			return wheelRelease(pkg), nil
		},
		entries: func(context.Context, *pypi.Release) ([]artifact.Entry, error) {
			return []artifact.Entry{{Path: "x/py.typed", Size: 0}, {Path: "x/a.py", Size: 1}}, nil
		},
		exists: func(context.Context, string) (bool, error) { return true, nil },
	}
	r := newTestResolver(t, idx, WithRetryPolicy(RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond}))

	out := r.ResolveMany(context.Background(), []string{"good-one", "broken", "good-two"})
	require.Len(t, out, 3)

	require.NoError(t, out[0].Err)
	require.NoError(t, out[2].Err)

	var re *ResolutionError
	require.ErrorAs(t, out[1].Err, &re)
	assert.Equal(t, "broken", re.Package)
}

func TestResolveMany_RespectsConcurrencyBound(t *testing.T) {
	const limit = 3
	var active, peak atomic.Int32

	idx := &fakeIndex{
		latest: func(_ context.Context, pkg string) (*pypi.Release, error) {
			cur := active.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			active.Add(-1)
			return nil, pypi.ErrNotFound
		},
		exists: func(context.Context, string) (bool, error) { return false, nil },
	}
	r := newTestResolver(t, idx, WithConcurrency(limit))

	names := make([]string, 20)
	for i := range names {
		names[i] = "pkg-" + string(rune('a'+i))
	}
	out := r.ResolveMany(context.Background(), names)

	require.Len(t, out, len(names))
	assert.LessOrEqual(t, peak.Load(), int32(limit))
}

func TestResolveMany_CancellationStopsDispatch(t *testing.T) {
	started := make(chan struct{}, 64)
	release := make(chan struct{})
	idx := &fakeIndex{
		latest: func(ctx context.Context, pkg string) (*pypi.Release, error) {
			started <- struct{}{}
			<-release
			return nil, pypi.ErrNotFound
		},
		exists: func(context.Context, string) (bool, error) { return false, nil },
	}
	r := newTestResolver(t, idx, WithConcurrency(2))

	ctx, cancel := context.WithCancel(context.Background())
	names := []string{"a", "b", "c", "d", "e", "f"}

	var out []Outcome
	done := make(chan struct{})
	go func() {
		out = r.ResolveMany(ctx, names)
		close(done)
	}()

	// Wait until the first two workers are in flight, then cancel and let
	// them finish.
	<-started
	<-started
	cancel()
	close(release)
	<-done

	require.Len(t, out, len(names))
	// The two in-flight packages completed; everything undispatched carries
	// the context error.
	canceled := 0
	for _, o := range out {
		if o.Err != nil {
			assert.ErrorIs(t, o.Err, context.Canceled)
			canceled++
		}
	}
	assert.GreaterOrEqual(t, canceled, len(names)-3, "undispatched packages must carry the context error")
}

func TestResolveMany_EmptyInput(t *testing.T) {
	r := newTestResolver(t, &fakeIndex{})
	out := r.ResolveMany(context.Background(), nil)
	assert.Empty(t, out)
}

func TestResolveMany_OnResultCallback(t *testing.T) {
	idx := &fakeIndex{
		latest: func(context.Context, string) (*pypi.Release, error) { return nil, pypi.ErrNotFound },
		exists: func(context.Context, string) (bool, error) { return false, nil },
	}

	var mu sync.Mutex
	seen := map[int]string{}
	r := newTestResolver(t, idx,
		WithConcurrency(4),
		WithOnResult(func(i int, out Outcome) {
			mu.Lock()
			seen[i] = out.Record.Package
			mu.Unlock()
		}),
	)

	names := []string{"one", "two", "three"}
	r.ResolveMany(context.Background(), names)

	require.Len(t, seen, len(names))
	for i, name := range names {
		assert.Equal(t, name, seen[i])
	}
}
