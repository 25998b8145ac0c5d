package main

import (
	"errors"

	apperrors "github.com/rohankatakam/gitcinema/internal/errors"
)

// hintFor suggests the next step for errors a user can act on
func hintFor(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrNotAnalyzed):
		return "Run 'gitcinema analyze https://github.com/<owner>/<name>' first."
	case errors.Is(err, apperrors.ErrRateLimit):
		return "GitHub rate limit reached. Set GITHUB_TOKEN to raise the limit, or retry later."
	case errors.Is(err, apperrors.ErrInvalidURL):
		return "Expected a URL such as https://github.com/owner/name."
	case errors.Is(err, apperrors.ErrConfig):
		return "Check .gitcinema/config.yaml and GITCINEMA_* environment variables."
	case errors.Is(err, apperrors.ErrStorage):
		return "The local store could not be used. Check storage settings and file permissions."
	default:
		return ""
	}
}
