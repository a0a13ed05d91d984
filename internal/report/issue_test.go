package report

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIssueBody(t *testing.T) {
	body := BuildIssueBody([]string{"zeta", "alpha"})
	assert.True(t, strings.HasPrefix(body, "2 new packages were found"), body)
	assert.Contains(t, body, "- alpha\n- zeta\n")
	assert.NotContains(t, body, "more.")
}

func TestBuildIssueBody_Singular(t *testing.T) {
	body := BuildIssueBody([]string{"only-one"})
	assert.True(t, strings.HasPrefix(body, "1 new package was found"), body)
}

func TestBuildIssueBody_TruncatesLongLists(t *testing.T) {
	packages := make([]string, 25)
	for i := range packages {
		packages[i] = fmt.Sprintf("pkg-%02d", i)
	}
	body := BuildIssueBody(packages)
	assert.Equal(t, 20, strings.Count(body, "\n- "), "body should list at most 20 packages")
	assert.Contains(t, body, "... and 5 more.")
}

func newTestReporter(t *testing.T, mux *http.ServeMux) *IssueReporter {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	r, err := NewIssueReporter("", "acme/dataset",
		WithHTTPClient(srv.Client()),
		WithAPIBaseURL(srv.URL),
	)
	require.NoError(t, err)
	return r
}

func TestFileMissing_CreatesIssueWhenNoneOpen(t *testing.T) {
	var created map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/dataset/issues", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[]")
	})
	mux.HandleFunc("POST /repos/acme/dataset/issues", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"number": 7}`)
	})
	rep := newTestReporter(t, mux)

	require.NoError(t, rep.FileMissing(context.Background(), []string{"newpkg"}))
	require.NotNil(t, created, "expected issue creation")
	assert.Equal(t, IssueTitle, created["title"])
	assert.Contains(t, created["body"], "newpkg")
	assert.ElementsMatch(t, []any{IssueLabel, "enhancement"}, created["labels"])
}

func TestFileMissing_UpdatesExistingIssue(t *testing.T) {
	var patched map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/dataset/issues", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[{"number": 5, "title": %q}]`, IssueTitle)
	})
	mux.HandleFunc("PATCH /repos/acme/dataset/issues/5", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&patched))
		fmt.Fprint(w, `{"number": 5}`)
	})
	mux.HandleFunc("POST /repos/acme/dataset/issues", func(w http.ResponseWriter, r *http.Request) {
		t.Error("should update the open issue, not create a new one")
	})
	rep := newTestReporter(t, mux)

	require.NoError(t, rep.FileMissing(context.Background(), []string{"newpkg", "otherpkg"}))
	require.NotNil(t, patched, "expected issue update")
	assert.Contains(t, patched["body"], "otherpkg")
}

func TestFileMissing_IgnoresUnrelatedOpenIssues(t *testing.T) {
	createCalled := false
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/dataset/issues", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"number": 3, "title": "something else"}]`)
	})
	mux.HandleFunc("POST /repos/acme/dataset/issues", func(w http.ResponseWriter, r *http.Request) {
		createCalled = true
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"number": 8}`)
	})
	rep := newTestReporter(t, mux)

	require.NoError(t, rep.FileMissing(context.Background(), []string{"newpkg"}))
	assert.True(t, createCalled)
}

func TestFileMissing_EmptySetIsNoOp(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request: %s %s", r.Method, r.URL)
	})
	rep := newTestReporter(t, mux)
	require.NoError(t, rep.FileMissing(context.Background(), nil))
}

func TestNewIssueReporter_RejectsMalformedRepo(t *testing.T) {
	for _, repo := range []string{"", "owner", "owner/", "/repo", "a/b/c"} {
		_, err := NewIssueReporter("", repo)
		assert.Error(t, err, "repo %q", repo)
	}
}
