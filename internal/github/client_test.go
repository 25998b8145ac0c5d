package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/rohankatakam/gitcinema/internal/errors"
	"github.com/rohankatakam/gitcinema/internal/models"
	"github.com/rohankatakam/gitcinema/internal/telemetry"
)

var demo = models.RepositoryID{Owner: "octo", Name: "demo"}

func newTestClient(t *testing.T, mux *http.ServeMux) (*Client, *telemetry.Metrics) {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	metrics := telemetry.NewMetrics()

	c, err := NewClient("test-token", 0, server.Client(), logger,
		WithBaseURL(server.URL), WithMetrics(metrics))
	require.NoError(t, err)
	return c, metrics
}

func contentJSON(path, text string) string {
	return fmt.Sprintf(`{"type":"file","encoding":"base64","path":%q,"content":%q}`,
		path, base64.StdEncoding.EncodeToString([]byte(text)))
}

func commitJSON(sha, name, date, message string) string {
	return fmt.Sprintf(`{"sha":%q,"commit":{"author":{"name":%q,"date":%q},"message":%q}}`,
		sha, name, date, message)
}

func TestListCommitsPaginatesUpToLimit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/commits", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		w.Header().Set("Content-Type", "application/json")
		if page <= 1 {
			w.Header().Set("Link", `<https://api.github.com/repos/octo/demo/commits?page=2>; rel="next"`)
			fmt.Fprintf(w, "[%s,%s]",
				commitJSON("c3", "Ada", "2024-03-03T10:00:00Z", "feat: add parser"),
				commitJSON("c2", "Linus", "2024-03-02T10:00:00Z", "fix: bug"))
			return
		}
		fmt.Fprintf(w, "[%s,%s]",
			commitJSON("c1", "", "2024-03-01T10:00:00Z", "initial commit"),
			commitJSON("c0", "Ada", "2024-02-28T10:00:00Z", "unused"))
	})

	client, metrics := newTestClient(t, mux)

	commits, err := client.ListCommits(context.Background(), demo, 3)
	require.NoError(t, err)
	require.Len(t, commits, 3)

	assert.Equal(t, "c3", commits[0].SHA)
	assert.Equal(t, "Ada", commits[0].Author)
	assert.Equal(t, time.Date(2024, 3, 3, 10, 0, 0, 0, time.UTC), commits[0].AuthoredAt)
	assert.Equal(t, "feat: add parser", commits[0].Message)
	assert.Empty(t, commits[0].Sentiment, "classification happens in the pipeline")
	assert.Equal(t, "c1", commits[2].SHA)
	assert.Equal(t, "", commits[2].Author)

	expected := `
# HELP gitcinema_remote_requests_total Hosting API requests by operation and outcome.
# TYPE gitcinema_remote_requests_total counter
gitcinema_remote_requests_total{operation="list_commits",outcome="ok"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(metrics.Registry, strings.NewReader(expected), "gitcinema_remote_requests_total"))
}

func TestListCommitsRejectsNonPositiveLimit(t *testing.T) {
	client, _ := newTestClient(t, http.NewServeMux())
	_, err := client.ListCommits(context.Background(), demo, 0)
	require.Error(t, err)
}

func TestGetTree(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/git/trees/abc123", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("recursive"))
		fmt.Fprint(w, `{"sha":"abc123","truncated":false,"tree":[
			{"path":"README.md","type":"blob","size":12},
			{"path":"src","type":"tree"},
			{"path":"src/main.go","type":"blob","size":240},
			{"path":"vendor/lib","type":"commit"}
		]}`)
	})

	client, _ := newTestClient(t, mux)
	entries, err := client.GetTree(context.Background(), demo, "abc123")
	require.NoError(t, err)

	assert.Equal(t, []models.TreeEntry{
		{Path: "README.md", Kind: models.TreeEntryBlob, Size: 12},
		{Path: "src", Kind: models.TreeEntryTree},
		{Path: "src/main.go", Kind: models.TreeEntryBlob, Size: 240},
	}, entries)
}

func TestGetFileContentAndReadme(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/contents/src/main.go", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, contentJSON("src/main.go", "package main\n"))
	})
	mux.HandleFunc("/repos/octo/demo/readme", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, contentJSON("README.md", "# demo\n"))
	})

	client, _ := newTestClient(t, mux)
	ctx := context.Background()

	content, err := client.GetFileContent(ctx, demo, "src/main.go")
	require.NoError(t, err)
	assert.Equal(t, "package main\n", content)

	readme, err := client.GetReadme(ctx, demo)
	require.NoError(t, err)
	assert.Equal(t, "# demo\n", readme)
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "missing readme is not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"message":"Not Found"}`)
			},
			want: apperrors.ErrNotFound,
		},
		{
			name: "exhausted quota is rate limit",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-RateLimit-Limit", "60")
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprint(w, `{"message":"API rate limit exceeded for 127.0.0.1."}`)
			},
			want: apperrors.ErrRateLimit,
		},
		{
			name: "too many requests is rate limit",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprint(w, `{"message":"slow down"}`)
			},
			want: apperrors.ErrRateLimit,
		},
		{
			name: "bad credentials is upstream",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"message":"Bad credentials"}`)
			},
			want: apperrors.ErrUpstream,
		},
		{
			name: "malformed body is upstream",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{not json`)
			},
			want: apperrors.ErrUpstream,
		},
		{
			name: "binary content is upstream",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, contentJSON("README.md", string([]byte{0xff, 0xfe, 0xfd})))
			},
			want: apperrors.ErrUpstream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/repos/octo/demo/readme", tt.handler)
			client, _ := newTestClient(t, mux)

			_, err := client.GetReadme(context.Background(), demo)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestGetFileContentDirectoryIsNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo/contents/src", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"type":"file","path":"src/main.go"}]`)
	})

	client, _ := newTestClient(t, mux)
	_, err := client.GetFileContent(context.Background(), demo, "src")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
