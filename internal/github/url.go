package github

import (
	"regexp"
	"strings"

	apperrors "github.com/rohankatakam/gitcinema/internal/errors"
	"github.com/rohankatakam/gitcinema/internal/models"
)

// Accepts https/http/git/ssh URLs, scp-style git@github.com:owner/repo and
// bare github.com/owner/repo, with optional .git suffix and trailing path.
var repoURLPattern = regexp.MustCompile(
	`(?i)^(?:(?:https?|git|ssh)://)?(?:[^@/\s]+@)?(?:www\.)?github\.com[/:]([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+?)(?:\.git)?/?(?:[/?#].*)?$`,
)

// ParseRepoURL derives the repository identifier from a hosting-service URL
func ParseRepoURL(rawURL string) (models.RepositoryID, error) {
	trimmed := strings.TrimSpace(rawURL)
	m := repoURLPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return models.RepositoryID{}, apperrors.InvalidURLf("not a GitHub repository URL: %q", rawURL)
	}

	// GitHub resolves owner and name case-insensitively; fold so that every
	// spelling of one repository maps to the same cache key.
	owner, name := strings.ToLower(m[1]), strings.ToLower(m[2])
	if isDotSegment(owner) || isDotSegment(name) {
		return models.RepositoryID{}, apperrors.InvalidURLf("not a GitHub repository URL: %q", rawURL)
	}

	return models.RepositoryID{Owner: owner, Name: name}, nil
}

func isDotSegment(s string) bool {
	return strings.Trim(s, ".") == ""
}
