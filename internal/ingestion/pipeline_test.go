package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/rohankatakam/gitcinema/internal/errors"
	"github.com/rohankatakam/gitcinema/internal/models"
	"github.com/rohankatakam/gitcinema/internal/storage"
	"github.com/rohankatakam/gitcinema/internal/telemetry"
)

var reactRepo = models.RepositoryID{Owner: "facebook", Name: "react"}

// fakeSource serves a fixed repository and counts every call
type fakeSource struct {
	mu      sync.Mutex
	commits []models.Commit
	tree    []models.TreeEntry
	files   map[string]string
	readme  string

	commitsErr error
	treeErr    error
	readmeErr  error

	calls     atomic.Int32
	listCalls atomic.Int32
	treeSHA   string
	fetched   map[string]int
	blockCh   chan struct{}
}

func (s *fakeSource) ListCommits(ctx context.Context, repo models.RepositoryID, limit int) ([]models.Commit, error) {
	s.calls.Add(1)
	s.listCalls.Add(1)
	if s.blockCh != nil {
		<-s.blockCh
	}
	if s.commitsErr != nil {
		return nil, s.commitsErr
	}
	out := make([]models.Commit, len(s.commits))
	copy(out, s.commits)
	return out, nil
}

func (s *fakeSource) GetTree(ctx context.Context, repo models.RepositoryID, commitSHA string) ([]models.TreeEntry, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.treeSHA = commitSHA
	s.mu.Unlock()
	if s.treeErr != nil {
		return nil, s.treeErr
	}
	return s.tree, nil
}

func (s *fakeSource) GetFileContent(ctx context.Context, repo models.RepositoryID, path string) (string, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetched == nil {
		s.fetched = make(map[string]int)
	}
	s.fetched[path]++
	content, ok := s.files[path]
	if !ok {
		return "", apperrors.NotFoundf("missing %s", path)
	}
	return content, nil
}

func (s *fakeSource) GetReadme(ctx context.Context, repo models.RepositoryID) (string, error) {
	s.calls.Add(1)
	if s.readmeErr != nil {
		return "", s.readmeErr
	}
	return s.readme, nil
}

func newFakeSource() *fakeSource {
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	return &fakeSource{
		// deliberately not in date order
		commits: []models.Commit{
			{SHA: "c2", Author: "alice", AuthoredAt: base.Add(-48 * time.Hour), Message: "fix: critical bug"},
			{SHA: "c3", Author: "bob", AuthoredAt: base, Message: "feat: add great refactor"},
			{SHA: "c1", Author: "", AuthoredAt: base.Add(-72 * time.Hour), Message: "initial commit"},
			{SHA: "c0", Author: "alice", AuthoredAt: base.Add(-96 * time.Hour), Message: "Refactor build"},
		},
		tree: []models.TreeEntry{
			{Path: "README.md", Kind: models.TreeEntryBlob, Size: 10},
			{Path: "package.json", Kind: models.TreeEntryBlob, Size: 20},
			{Path: "src", Kind: models.TreeEntryTree},
			{Path: "src/index.ts", Kind: models.TreeEntryBlob, Size: 30},
			{Path: "src/auth/login.ts", Kind: models.TreeEntryBlob, Size: 40},
			{Path: "Dockerfile", Kind: models.TreeEntryBlob, Size: 5},
		},
		files: map[string]string{
			"README.md":    "# React",
			"package.json": "{\n  \"name\": \"react\",\n  \"dependencies\": {\"react\": \"18\"}\n}",
			"src/index.ts": "export * from './auth/login'",
			// Dockerfile deliberately missing: a per-file failure
		},
		readme: "# React",
	}
}

func newTestPipeline(t *testing.T, source Source) (*Pipeline, storage.Store) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := storage.NewSQLiteStore(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	p := NewPipeline(source, store, logger, telemetry.NewMetrics(), Options{CommitLimit: 100, MaxCoreFiles: 10, FetchConcurrency: 3})
	p.now = func() time.Time { return time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC) }
	return p, store
}

func TestAnalyze_BuildsRecord(t *testing.T) {
	source := newFakeSource()
	p, _ := newTestPipeline(t, source)

	record, err := p.Analyze(context.Background(), "https://github.com/facebook/react.git")
	require.NoError(t, err)

	assert.Equal(t, reactRepo, record.RepositoryID)
	assert.Equal(t, "https://github.com/facebook/react.git", record.SourceURL)
	assert.Equal(t, 4, record.TotalCommits)

	// newest first, tree taken at the newest commit
	assert.Equal(t, "c3", record.Commits[0].SHA)
	assert.Equal(t, "c0", record.Commits[3].SHA)
	assert.Equal(t, "c3", source.treeSHA)

	assert.Equal(t, models.SentimentPositive, record.Commits[0].Sentiment)
	assert.Equal(t, models.SentimentNegative, record.Commits[1].Sentiment)
	assert.Equal(t, models.SentimentNeutral, record.Commits[2].Sentiment)
	assert.Equal(t, "Unknown", record.Commits[2].Author)

	assert.Equal(t, []models.ContributorCount{
		{Name: "alice", Count: 2},
		{Name: "Unknown", Count: 1},
		{Name: "bob", Count: 1},
	}, record.Contributors)

	assert.Equal(t, models.Metrics{ChurnRate: 0, RefactorCount: 2, BugFixCount: 1}, record.Metrics)

	// directories are not file paths
	assert.Equal(t, []string{"README.md", "package.json", "src/index.ts", "src/auth/login.ts", "Dockerfile"}, record.FilePaths)
	assert.Equal(t, "# React", record.Readme)

	var core []string
	for _, f := range record.CoreFiles {
		core = append(core, f.Path)
	}
	assert.Equal(t, []string{"README.md", "package.json", "src/index.ts"}, core)
	assert.JSONEq(t, `{"name":"react","dependencies":{"react":"18"}}`, string(record.PackageManifest))
}

func TestAnalyze_SecondCallIsServedFromStore(t *testing.T) {
	source := newFakeSource()
	p, _ := newTestPipeline(t, source)
	ctx := context.Background()

	first, err := p.Analyze(ctx, "https://github.com/facebook/react")
	require.NoError(t, err)
	callsAfterFirst := source.calls.Load()
	require.NotZero(t, callsAfterFirst)

	second, err := p.Analyze(ctx, "git@github.com:Facebook/React.git")
	require.NoError(t, err)

	assert.Equal(t, callsAfterFirst, source.calls.Load(), "no remote calls on a cache hit")
	assert.Equal(t, first, second)
}

func TestAnalyze_ConcurrentCallsShareOneIngestion(t *testing.T) {
	source := newFakeSource()
	source.blockCh = make(chan struct{})
	p, _ := newTestPipeline(t, source)
	ctx := context.Background()

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*models.AnalysisRecord, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.Analyze(ctx, "https://github.com/facebook/react")
		}(i)
	}

	// give every caller a chance to join the flight
	time.Sleep(50 * time.Millisecond)
	close(source.blockCh)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	source.mu.Lock()
	defer source.mu.Unlock()
	assert.Equal(t, 1, source.fetched["package.json"])
}

func TestAnalyze_CancelledCallerDoesNotAbortSharedIngestion(t *testing.T) {
	source := newFakeSource()
	source.blockCh = make(chan struct{})
	p, store := newTestPipeline(t, source)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()

	errA := make(chan error, 1)
	go func() {
		_, err := p.Analyze(ctxA, "https://github.com/facebook/react")
		errA <- err
	}()
	// A owns the flight once the commit listing is underway
	require.Eventually(t, func() bool { return source.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		record *models.AnalysisRecord
		err    error
	}
	resB := make(chan result, 1)
	go func() {
		record, err := p.Analyze(context.Background(), "https://github.com/facebook/react")
		resB <- result{record, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting on the shared ingestion")
	}

	close(source.blockCh)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, reactRepo, b.record.RepositoryID)
	assert.Equal(t, int32(1), source.listCalls.Load())

	stored, err := store.GetAnalysis(context.Background(), reactRepo)
	require.NoError(t, err)
	assert.Equal(t, b.record.TotalCommits, stored.TotalCommits)
}

func TestAnalyze_InvalidURL(t *testing.T) {
	source := newFakeSource()
	p, _ := newTestPipeline(t, source)

	_, err := p.Analyze(context.Background(), "https://gitlab.com/foo/bar")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidURL)
	assert.Zero(t, source.calls.Load())
}

func TestAnalyze_MandatoryFailuresLeaveNoRecord(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*fakeSource)
		wantErr error
	}{
		{
			name:    "commit listing rate limited",
			mutate:  func(s *fakeSource) { s.commitsErr = apperrors.RateLimit(errors.New("403"), "slow down") },
			wantErr: apperrors.ErrRateLimit,
		},
		{
			name:    "tree upstream failure",
			mutate:  func(s *fakeSource) { s.treeErr = apperrors.Upstreamf("bad gateway") },
			wantErr: apperrors.ErrUpstream,
		},
		{
			name:    "repository not found",
			mutate:  func(s *fakeSource) { s.commitsErr = apperrors.NotFound(errors.New("404"), "no repo") },
			wantErr: apperrors.ErrNotFound,
		},
		{
			name:    "empty repository",
			mutate:  func(s *fakeSource) { s.commits = nil },
			wantErr: apperrors.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := newFakeSource()
			tt.mutate(source)
			p, store := newTestPipeline(t, source)

			_, err := p.Analyze(context.Background(), "https://github.com/facebook/react")
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrAnalysisFailed)
			assert.ErrorIs(t, err, tt.wantErr)

			_, err = store.GetAnalysis(context.Background(), reactRepo)
			assert.ErrorIs(t, err, storage.ErrNotFound)
		})
	}
}

func TestAnalyze_MissingReadmeTolerated(t *testing.T) {
	for _, readmeErr := range []error{
		apperrors.NotFound(errors.New("404"), "no readme"),
		apperrors.Upstreamf("invalid utf-8"),
	} {
		source := newFakeSource()
		source.readmeErr = readmeErr
		p, _ := newTestPipeline(t, source)

		record, err := p.Analyze(context.Background(), "https://github.com/facebook/react")
		require.NoError(t, err)
		assert.Empty(t, record.Readme)
	}
}

func TestAnalyze_InvalidPackageJSONIsNotAManifest(t *testing.T) {
	source := newFakeSource()
	source.files["package.json"] = "{ not json"
	p, _ := newTestPipeline(t, source)

	record, err := p.Analyze(context.Background(), "https://github.com/facebook/react")
	require.NoError(t, err)
	assert.Nil(t, record.PackageManifest)
}

func TestAnalyze_RecordRoundTripsThroughStore(t *testing.T) {
	source := newFakeSource()
	p, store := newTestPipeline(t, source)
	ctx := context.Background()

	record, err := p.Analyze(ctx, "https://github.com/facebook/react")
	require.NoError(t, err)

	stored, err := store.GetAnalysis(ctx, reactRepo)
	require.NoError(t, err)
	assert.Equal(t, record, stored)

	// core files are also individually addressable
	file, err := store.GetFile(ctx, reactRepo, "src/index.ts")
	require.NoError(t, err)
	assert.Equal(t, "export * from './auth/login'", file.Content)
}

func TestAttachNarrative(t *testing.T) {
	source := newFakeSource()
	p, _ := newTestPipeline(t, source)
	ctx := context.Background()

	err := p.AttachNarrative(ctx, reactRepo, []byte(`{"title":"x"}`))
	assert.ErrorIs(t, err, apperrors.ErrNotAnalyzed)

	first, err := p.Analyze(ctx, "https://github.com/facebook/react")
	require.NoError(t, err)

	require.NoError(t, p.AttachNarrative(ctx, reactRepo, []byte("{\n  \"title\": \"Origins\"\n}")))

	second, err := p.Analyze(ctx, "https://github.com/facebook/react")
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`{"title":"Origins"}`), second.Narrative)

	// equal modulo the narrative
	second.Narrative = nil
	assert.Equal(t, first, second)

	err = p.AttachNarrative(ctx, reactRepo, []byte("not json"))
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	// a rejected blob leaves the previous narrative in place
	third, err := p.Analyze(ctx, "https://github.com/facebook/react")
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`{"title":"Origins"}`), third.Narrative)

	// any JSON shape is accepted as is
	require.NoError(t, p.AttachNarrative(ctx, reactRepo, []byte(`[1,"two",{"three":null}]`)))
	fourth, err := p.Analyze(ctx, "https://github.com/facebook/react")
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`[1,"two",{"three":null}]`), fourth.Narrative)
}
