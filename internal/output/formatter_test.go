package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	apperrors "github.com/rohankatakam/gitcinema/internal/errors"
	"github.com/rohankatakam/gitcinema/internal/insights"
	"github.com/rohankatakam/gitcinema/internal/models"
)

var repo = models.RepositoryID{Owner: "acme", Name: "shop"}

func sampleRecord() *models.AnalysisRecord {
	return &models.AnalysisRecord{
		RepositoryID: repo,
		SourceURL:    "https://github.com/acme/shop",
		TotalCommits: 1234,
		Contributors: []models.ContributorCount{{Name: "alice", Count: 1000}, {Name: "bob", Count: 234}},
		FilePaths:    []string{"package.json", "src/index.ts"},
		CoreFiles: []models.StoredFile{
			{RepositoryID: repo, Path: "package.json", Language: "JSON", Size: 2048},
		},
		PackageManifest: json.RawMessage(`{"name":"shop"}`),
		Metrics:         models.Metrics{RefactorCount: 2, BugFixCount: 5},
		AnalyzedAt:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input string
		want  Mode
	}{
		{"", ModeTable},
		{"table", ModeTable},
		{"JSON", ModeJSON},
		{" yaml ", ModeYAML},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.input)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseMode("xml")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestNewFormatter(t *testing.T) {
	assert.IsType(t, &JSONFormatter{}, NewFormatter(ModeJSON, false))
	assert.IsType(t, &YAMLFormatter{}, NewFormatter(ModeYAML, false))
	assert.Equal(t, &TableFormatter{Color: true}, NewFormatter(ModeTable, true))
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format(&buf, sampleRecord()))

	var decoded models.AnalysisRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, repo, decoded.RepositoryID)
	assert.Contains(t, buf.String(), `"repository_id": "acme/shop"`)
}

func TestYAMLFormatter_UsesJSONFieldNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&YAMLFormatter{}).Format(&buf, sampleRecord()))

	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "acme/shop", doc["repository_id"])
	assert.Equal(t, 1234, doc["total_commits"])
	assert.Equal(t, map[string]interface{}{"name": "shop"}, doc["package_manifest"])
	assert.NotContains(t, doc, "narrative")
}

func TestTableFormatter_Analysis(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&TableFormatter{}).Format(&buf, sampleRecord()))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "acme/shop\n"))
	assert.Contains(t, out, "Commits: 1,234")
	assert.Contains(t, out, "Files: 2")
	assert.Contains(t, out, "Refactors: 2  Bug fixes: 5")
	assert.Contains(t, out, "CONTRIBUTOR")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "2.0 kB")
	assert.NotContains(t, out, "\x1b[")
}

func TestTableFormatter_Bundle(t *testing.T) {
	bundle := &models.ContextBundle{
		RepositoryID:  repo,
		Keywords:      []string{"login", "auth"},
		FileTree:      []string{"a", "b"},
		TreeTruncated: true,
		RelevantFiles: []models.ContextFile{
			{Path: "src/auth/login.ts", Language: "TypeScript", Score: 15, Content: "abc", Truncated: true},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, (&TableFormatter{}).Format(&buf, bundle))

	out := buf.String()
	assert.Contains(t, out, "Keywords: login, auth")
	assert.Contains(t, out, "Tree: 2 paths (truncated)")
	assert.Contains(t, out, "src/auth/login.ts")
	assert.Contains(t, out, "15")
	assert.Contains(t, out, "3 B+")

	buf.Reset()
	require.NoError(t, (&TableFormatter{}).Format(&buf, &models.ContextBundle{RepositoryID: repo}))
	assert.Contains(t, buf.String(), "No relevant files found")
}

func TestTableFormatter_File(t *testing.T) {
	file := &models.StoredFile{
		RepositoryID: repo,
		Path:         "main.go",
		Language:     "Go",
		Content:      "package main",
		Size:         12,
		FetchedAt:    time.Now(),
	}

	var buf bytes.Buffer
	require.NoError(t, (&TableFormatter{}).Format(&buf, file))
	assert.Contains(t, buf.String(), "main.go (Go, 12 B")
	assert.True(t, strings.HasSuffix(buf.String(), "package main\n"))
}

func TestTableFormatter_Timeline(t *testing.T) {
	result := models.TimelineResult{
		Window:      "30d",
		WindowLabel: "Last 30 Days",
		Granularity: models.GranularityCommit,
		IsFallback:  true,
		Points: []models.TimelinePoint{
			{BucketLabel: "Jun 01 10:00", SentimentScore: 0.8, CommitCount: 1, PreviewMessage: "feat: add login\n\nlong body"},
			{BucketLabel: "Jun 02 10:00", SentimentScore: -0.5, CommitCount: 1, PreviewMessage: strings.Repeat("x", 80)},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, (&TableFormatter{}).Format(&buf, result))

	out := buf.String()
	assert.Contains(t, out, "Last 30 Days by commit")
	assert.Contains(t, out, "showing the most recent commits")
	assert.Contains(t, out, "+0.80")
	assert.Contains(t, out, "-0.50")
	assert.Contains(t, out, "feat: add login")
	assert.NotContains(t, out, "long body")
	assert.Contains(t, out, strings.Repeat("x", previewWidth-1)+"…")

	buf.Reset()
	require.NoError(t, (&TableFormatter{}).Format(&buf, &models.TimelineResult{WindowLabel: "All Time"}))
	assert.Contains(t, buf.String(), "No commits")
}

func TestTableFormatter_Report(t *testing.T) {
	report := insights.NewReport(sampleRecord())

	var buf bytes.Buffer
	require.NoError(t, (&TableFormatter{}).Format(&buf, report))

	out := buf.String()
	assert.Contains(t, out, "Project: Node.js / JavaScript (None), entry point N/A")
	assert.Contains(t, out, "Mature Project")
	assert.Contains(t, out, "Small Team")
}

func TestTableFormatter_Color(t *testing.T) {
	report := insights.NewReport(sampleRecord())

	var buf bytes.Buffer
	require.NoError(t, (&TableFormatter{Color: true}).Format(&buf, report))
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestTableFormatter_UnknownType(t *testing.T) {
	err := (&TableFormatter{}).Format(&bytes.Buffer{}, 42)
	assert.Error(t, err)
}
