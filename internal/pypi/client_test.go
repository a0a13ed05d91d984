package pypi

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func makeTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0644,
			Size:     int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// projectJSON renders a minimal index document for one project with one
// release file.
func projectJSON(name, version, fileURL, filename, packagetype string, size int) string {
	return fmt.Sprintf(`{
		"info": {"name": %q, "version": %q},
		"releases": {%q: [{"filename": %q, "url": %q, "packagetype": %q, "size": %d}]}
	}`, name, version, version, filename, fileURL, packagetype, size)
}

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithBaseURL(srv.URL), WithHTTPClient(srv.Client())}, opts...)
	c, err := NewClient(opts...)
	require.NoError(t, err)
	return c, srv
}

func TestLatestRelease_PicksWheelAndNormalizesName(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pypi/typing-extensions/json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"info": {"name": "typing_extensions", "version": "4.12.0"},
			"releases": {"4.12.0": [
				{"filename": "typing_extensions-4.12.0.tar.gz", "url": "https://files.example/s.tar.gz", "packagetype": "sdist", "size": 10},
				{"filename": "typing_extensions-4.12.0-py3-none-any.whl", "url": "https://files.example/w.whl", "packagetype": "bdist_wheel", "size": 20}
			]}
		}`)
	})
	c, _ := newTestClient(t, mux)

	rel, err := c.LatestRelease(context.Background(), "Typing_Extensions")
	require.NoError(t, err)
	assert.Equal(t, "typing-extensions", rel.Project)
	assert.Equal(t, "4.12.0", rel.Version)
	assert.Equal(t, "bdist_wheel", rel.File.PackageType)
}

func TestLatestRelease_NotFound(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())
	_, err := c.LatestRelease(context.Background(), "no-such-package")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLatestRelease_ServerErrorIsTransient(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	_, err := c.LatestRelease(context.Background(), "demo")
	assert.True(t, IsTransient(err), "5xx should classify as transient, got %v", err)
}

func TestLatestRelease_MalformedJSON(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"info": {`)
	}))
	_, err := c.LatestRelease(context.Background(), "demo")
	assert.True(t, IsMalformed(err), "truncated JSON should classify as malformed, got %v", err)
	assert.False(t, IsTransient(err))
}

func TestLatestRelease_CachesMetadata(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/pypi/demo/json", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, projectJSON("demo", "1.0", "https://files.example/d.tar.gz", "demo-1.0.tar.gz", "sdist", 10))
	})
	c, _ := newTestClient(t, mux)

	for i := 0; i < 3; i++ {
		_, err := c.LatestRelease(context.Background(), "demo")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load(), "metadata should be fetched once per run")
}

func TestProjectExists(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/pypi/types-requests/json", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"info": {"name": "types-requests", "version": "2.31.0"}}`)
	})
	mux.HandleFunc("/pypi/types-nothing/json", http.NotFound)
	mux.HandleFunc("/pypi/types-flaky/json", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})
	c, _ := newTestClient(t, mux)
	ctx := context.Background()

	exists, err := c.ProjectExists(ctx, "types-requests")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = c.ProjectExists(ctx, "types-nothing")
	require.NoError(t, err)
	assert.False(t, exists, "definitive 404 must be a confirmed absence")

	_, err = c.ProjectExists(ctx, "types-flaky")
	require.Error(t, err, "a 503 must not be conflated with absence")
	assert.True(t, IsTransient(err))

	// Second lookup served from cache.
	_, err = c.ProjectExists(ctx, "types-requests")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestArtifactEntries_RemoteWheelListing(t *testing.T) {
	wheel := makeZip(t, map[string]string{
		"demo/__init__.py": "x = 1\n",
		"demo/py.typed":    "",
	})

	var fullDownloads atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/files/demo.whl", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") == "" {
			fullDownloads.Add(1)
		}
		http.ServeContent(w, r, "demo.whl", time.Time{}, bytes.NewReader(wheel))
	})
	c, srv := newTestClient(t, mux)

	rel := &Release{
		Project: "demo",
		Version: "1.0",
		File: ReleaseFile{
			Filename:    "demo-1.0-py3-none-any.whl",
			URL:         srv.URL + "/files/demo.whl",
			PackageType: "bdist_wheel",
			Size:        int64(len(wheel)),
		},
	}
	entries, err := c.ArtifactEntries(context.Background(), rel)
	require.NoError(t, err)

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	assert.ElementsMatch(t, []string{"demo/__init__.py", "demo/py.typed"}, paths)
	assert.Equal(t, int32(0), fullDownloads.Load(), "wheel listing should use range requests only")
}

func TestArtifactEntries_FallsBackWhenRangeUnsupported(t *testing.T) {
	wheel := makeZip(t, map[string]string{"demo/mod.py": "pass\n"})

	mux := http.NewServeMux()
	mux.HandleFunc("/files/demo.whl", func(w http.ResponseWriter, r *http.Request) {
		// Ignore Range entirely; always answer 200 with the full body.
		_, _ = w.Write(wheel)
	})
	c, srv := newTestClient(t, mux)

	rel := &Release{
		Project: "demo",
		File: ReleaseFile{
			Filename:    "demo-1.0-py3-none-any.whl",
			URL:         srv.URL + "/files/demo.whl",
			PackageType: "bdist_wheel",
			Size:        int64(len(wheel)),
		},
	}
	entries, err := c.ArtifactEntries(context.Background(), rel)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "demo/mod.py", entries[0].Path)
}

func TestArtifactEntries_SdistDownload(t *testing.T) {
	sdist := makeTarGz(t, map[string]string{
		"demo-1.0/demo/__init__.py": "x = 1\n",
		"demo-1.0/setup.py":         "...",
	})
	mux := http.NewServeMux()
	mux.HandleFunc("/files/demo.tar.gz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(sdist)
	})
	c, srv := newTestClient(t, mux)

	rel := &Release{
		Project: "demo",
		File: ReleaseFile{
			Filename:    "demo-1.0.tar.gz",
			URL:         srv.URL + "/files/demo.tar.gz",
			PackageType: "sdist",
			Size:        int64(len(sdist)),
		},
	}
	entries, err := c.ArtifactEntries(context.Background(), rel)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestArtifactEntries_GoneArtifactIsNoArtifact(t *testing.T) {
	c, srv := newTestClient(t, http.NotFoundHandler())
	rel := &Release{
		Project: "demo",
		File: ReleaseFile{
			Filename:    "demo-1.0.tar.gz",
			URL:         srv.URL + "/files/demo.tar.gz",
			PackageType: "sdist",
		},
	}
	_, err := c.ArtifactEntries(context.Background(), rel)
	assert.ErrorIs(t, err, ErrNoArtifact)
}

func TestClient_RecordsRetryAfterCooldown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pypi/demo/json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})
	c, _ := newTestClient(t, mux)

	_, err := c.LatestRelease(context.Background(), "demo")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.False(t, c.Throttle().CooldownUntil().IsZero(), "Retry-After should arm the throttle")
}

func TestNewClient_RejectsBadPolicy(t *testing.T) {
	_, err := NewClient(WithReleasePolicy("newest-ish"))
	require.Error(t, err)
}

func TestClassifyHTTPError_ContextCancellation(t *testing.T) {
	err := classifyHTTPError("op", 0, fmt.Errorf("request: %w", context.Canceled))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, IsTransient(err), "cancellation must not be retried")
}
