package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	apperrors "github.com/rohankatakam/gitcinema/internal/errors"
	"github.com/rohankatakam/gitcinema/internal/models"
	"github.com/rohankatakam/gitcinema/internal/telemetry"
)

// maxPerPage is the largest page size the commits endpoint accepts
const maxPerPage = 100

// Client wraps the GitHub API client with rate limiting.
// It performs no caching and no retries.
type Client struct {
	client      *github.Client
	rateLimiter *rate.Limiter
	logger      *logrus.Logger
	metrics     *telemetry.Metrics
}

// Option configures a Client
type Option func(*Client) error

// WithBaseURL points the client at a GitHub Enterprise or test server
func WithBaseURL(baseURL string) Option {
	return func(c *Client) error {
		if baseURL == "" {
			return nil
		}
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return fmt.Errorf("parse base url: %w", err)
		}
		c.client.BaseURL = u
		return nil
	}
}

// WithMetrics records every request outcome
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) error {
		c.metrics = m
		return nil
	}
}

// NewClient creates a new GitHub client with rate limiting.
// rateLimit is in requests per second; zero or less disables throttling.
func NewClient(token string, rateLimit int, httpClient *http.Client, logger *logrus.Logger, opts ...Option) (*Client, error) {
	gh := github.NewClient(httpClient)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}

	limit := rate.Inf
	if rateLimit > 0 {
		limit = rate.Limit(rateLimit)
	}

	c := &Client{
		client:      gh,
		rateLimiter: rate.NewLimiter(limit, 1),
		logger:      logger,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ListCommits retrieves up to limit of the most recent commits, newest first
func (c *Client) ListCommits(ctx context.Context, repo models.RepositoryID, limit int) ([]models.Commit, error) {
	const op = "list_commits"
	if limit <= 0 {
		return nil, apperrors.ValidationErrorf("commit limit must be positive, got %d", limit)
	}

	opts := &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: min(limit, maxPerPage)},
	}

	commits := make([]models.Commit, 0, limit)
	for len(commits) < limit {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		page, resp, err := c.client.Repositories.ListCommits(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			return nil, c.fail(op, err, "list commits of "+repo.String())
		}
		c.ok(op)

		for _, rc := range page {
			if len(commits) == limit {
				break
			}
			author := rc.GetCommit().GetAuthor()
			commits = append(commits, models.Commit{
				SHA:        rc.GetSHA(),
				Author:     author.GetName(),
				AuthoredAt: author.GetDate().Time.UTC(),
				Message:    rc.GetCommit().GetMessage(),
			})
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return commits, nil
}

// GetTree returns the flat recursive listing of the tree at a commit
func (c *Client) GetTree(ctx context.Context, repo models.RepositoryID, commitSHA string) ([]models.TreeEntry, error) {
	const op = "get_tree"
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	tree, _, err := c.client.Git.GetTree(ctx, repo.Owner, repo.Name, commitSHA, true)
	if err != nil {
		return nil, c.fail(op, err, "fetch tree of "+repo.String())
	}
	c.ok(op)

	if tree.GetTruncated() {
		c.logger.WithFields(logrus.Fields{
			"repo":    repo.String(),
			"commit":  commitSHA,
			"entries": len(tree.Entries),
		}).Warn("Tree listing truncated by the API")
	}

	entries := make([]models.TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		var kind models.TreeEntryKind
		switch e.GetType() {
		case "blob":
			kind = models.TreeEntryBlob
		case "tree":
			kind = models.TreeEntryTree
		default:
			// submodule commits have no content in this repository
			continue
		}
		entries = append(entries, models.TreeEntry{
			Path: e.GetPath(),
			Kind: kind,
			Size: int64(e.GetSize()),
		})
	}
	return entries, nil
}

// GetFileContent fetches one file and decodes it to text
func (c *Client) GetFileContent(ctx context.Context, repo models.RepositoryID, path string) (string, error) {
	const op = "get_content"
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	file, _, _, err := c.client.Repositories.GetContents(ctx, repo.Owner, repo.Name, path, nil)
	if err != nil {
		return "", c.fail(op, err, fmt.Sprintf("fetch %s in %s", path, repo))
	}
	c.ok(op)

	if file == nil {
		return "", apperrors.NotFound(fmt.Errorf("%s is a directory", path), "fetch "+path)
	}
	return decode(file, path)
}

// GetReadme fetches the repository README. A missing README is a NotFound error.
func (c *Client) GetReadme(ctx context.Context, repo models.RepositoryID) (string, error) {
	const op = "get_readme"
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	readme, _, err := c.client.Repositories.GetReadme(ctx, repo.Owner, repo.Name, nil)
	if err != nil {
		return "", c.fail(op, err, "fetch readme of "+repo.String())
	}
	c.ok(op)

	return decode(readme, "README")
}

func decode(content *github.RepositoryContent, path string) (string, error) {
	text, err := content.GetContent()
	if err != nil {
		return "", apperrors.Upstream(err, "decode "+path)
	}
	if !utf8.ValidString(text) {
		return "", apperrors.Upstreamf("%s is not valid UTF-8 text", path)
	}
	return text, nil
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return apperrors.Upstream(err, "rate limiter")
	}
	return nil
}

func (c *Client) ok(op string) {
	c.metrics.RemoteRequest(op, telemetry.OutcomeOK)
}

// fail maps a go-github error onto the remote failure taxonomy
func (c *Client) fail(op string, err error, message string) error {
	var (
		rateErr  *github.RateLimitError
		abuseErr *github.AbuseRateLimitError
	)

	var mapped *apperrors.Error
	outcome := telemetry.OutcomeError
	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr), statusOf(err) == http.StatusTooManyRequests:
		mapped = apperrors.RateLimit(err, message)
		outcome = telemetry.OutcomeRateLimit
	case statusOf(err) == http.StatusNotFound:
		mapped = apperrors.NotFound(err, message)
		outcome = telemetry.OutcomeNotFound
	default:
		mapped = apperrors.Upstream(err, message)
	}

	c.metrics.RemoteRequest(op, outcome)
	c.logger.WithFields(logrus.Fields{
		"operation": op,
		"outcome":   outcome,
	}).WithError(err).Debug("GitHub request failed")
	return mapped
}

func statusOf(err error) int {
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return respErr.Response.StatusCode
	}
	return 0
}
