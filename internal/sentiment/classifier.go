// Package sentiment labels commit messages by weighted keyword membership.
package sentiment

import (
	"strings"

	"github.com/rohankatakam/gitcinema/internal/models"
)

var (
	positiveKeywords = []string{"feat", "fix", "improve", "add", "awesome", "great", "clean", "refactor", "optimize"}
	negativeKeywords = []string{"bug", "error", "fail", "break", "revert", "issue", "hotfix", "critical", "broken"}
)

// Score returns the raw keyword score of a message: +1 for every whitespace
// token containing a positive keyword, -1 for every token containing a
// negative one. A token may count both ways.
func Score(message string) int {
	score := 0
	for _, token := range strings.Fields(strings.ToLower(message)) {
		if containsAny(token, positiveKeywords) {
			score++
		}
		if containsAny(token, negativeKeywords) {
			score--
		}
	}
	return score
}

// Classify maps a commit message to positive, negative or neutral
func Classify(message string) models.Sentiment {
	switch score := Score(message); {
	case score > 0:
		return models.SentimentPositive
	case score < 0:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

func containsAny(token string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(token, kw) {
			return true
		}
	}
	return false
}
