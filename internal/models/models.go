package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RepositoryID names a hosted repository by owner and name
type RepositoryID struct {
	Owner string
	Name  string
}

// ParseRepositoryID parses the "owner/name" form produced by String
func ParseRepositoryID(s string) (RepositoryID, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return RepositoryID{}, fmt.Errorf("invalid repository id %q: want owner/name", s)
	}
	return RepositoryID{Owner: owner, Name: name}, nil
}

func (id RepositoryID) String() string {
	return id.Owner + "/" + id.Name
}

// IsZero reports whether the identifier is unset
func (id RepositoryID) IsZero() bool {
	return id.Owner == "" && id.Name == ""
}

// MarshalText encodes the identifier as owner/name
func (id RepositoryID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText decodes an owner/name identifier
func (id *RepositoryID) UnmarshalText(text []byte) error {
	parsed, err := ParseRepositoryID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Sentiment is the categorical label attached to a commit message
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Commit is one commit as seen by the analysis; Sentiment is derived
type Commit struct {
	SHA        string    `json:"sha"`
	Author     string    `json:"author"`
	AuthoredAt time.Time `json:"authored_at"`
	Message    string    `json:"message"`
	Sentiment  Sentiment `json:"sentiment"`
}

// TreeEntryKind distinguishes files from directories in a tree listing
type TreeEntryKind string

const (
	TreeEntryBlob TreeEntryKind = "blob"
	TreeEntryTree TreeEntryKind = "tree"
)

// TreeEntry is one entry of a flat recursive tree listing
type TreeEntry struct {
	Path string        `json:"path"`
	Kind TreeEntryKind `json:"kind"`
	Size int64         `json:"size"`
}

// StoredFile is a persisted copy of one file's full content
type StoredFile struct {
	RepositoryID RepositoryID `json:"repository_id"`
	Path         string       `json:"path"`
	Content      string       `json:"content"`
	Language     string       `json:"language"`
	Size         int64        `json:"size"`
	ContentHash  string       `json:"content_hash"`
	FetchedAt    time.Time    `json:"fetched_at"`
}

// ContributorCount is the number of commits attributed to one author name
type ContributorCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Metrics holds the scalar repository metrics.
// ChurnRate has no diff-statistics source yet and is always zero.
type Metrics struct {
	ChurnRate     float64 `json:"churn_rate"`
	RefactorCount int     `json:"refactor_count"`
	BugFixCount   int     `json:"bug_fix_count"`
}

// AnalysisRecord is the cached, derived summary of one repository
type AnalysisRecord struct {
	RepositoryID    RepositoryID       `json:"repository_id"`
	SourceURL       string             `json:"source_url"`
	TotalCommits    int                `json:"total_commits"`
	Contributors    []ContributorCount `json:"contributors"`
	Commits         []Commit           `json:"commits"`
	FilePaths       []string           `json:"file_paths"`
	Readme          string             `json:"readme"`
	PackageManifest json.RawMessage    `json:"package_manifest,omitempty"`
	CoreFiles       []StoredFile       `json:"core_files"`
	Metrics         Metrics            `json:"metrics"`
	AnalyzedAt      time.Time          `json:"analyzed_at"`

	// Narrative is owned by the presentation layer and never interpreted here
	Narrative json.RawMessage `json:"narrative,omitempty"`
}

// ContextFile is a file returned in a context bundle, possibly truncated
type ContextFile struct {
	Path      string `json:"path"`
	Language  string `json:"language"`
	Score     int    `json:"score,omitempty"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated,omitempty"`
}

// ContextBundle is the retrieval result handed to the question-answering collaborator
type ContextBundle struct {
	RepositoryID    RepositoryID    `json:"repository_id"`
	Keywords        []string        `json:"keywords"`
	FileTree        []string        `json:"file_tree"`
	TreeTruncated   bool            `json:"tree_truncated,omitempty"`
	Readme          string          `json:"readme"`
	PackageManifest json.RawMessage `json:"package_manifest,omitempty"`
	CoreFiles       []ContextFile   `json:"core_files"`
	RelevantFiles   []ContextFile   `json:"relevant_files"`
}

// TimelinePoint is one plotted point of the sentiment timeline
type TimelinePoint struct {
	BucketLabel    string    `json:"bucket_label"`
	Date           time.Time `json:"date"`
	SentimentScore float64   `json:"sentiment_score"`
	CommitCount    int       `json:"commit_count"`
	PreviewMessage string    `json:"preview_message"`
}

// Granularity is the bucketing unit chosen for a timeline
type Granularity string

const (
	GranularityCommit Granularity = "commit"
	GranularityDay    Granularity = "day"
	GranularityWeek   Granularity = "week"
)

// TimelineResult is the output of the timeline aggregator
type TimelineResult struct {
	Points      []TimelinePoint `json:"points"`
	IsFallback  bool            `json:"is_fallback"`
	Window      string          `json:"window"`
	WindowLabel string          `json:"window_label"`
	Granularity Granularity     `json:"granularity,omitempty"`
}
