// Package timeline turns a commit list into a smoothed sentiment series for
// charting, bucketing adaptively by commit volume.
package timeline

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	apperrors "github.com/rohankatakam/gitcinema/internal/errors"
	"github.com/rohankatakam/gitcinema/internal/models"
)

const (
	perCommitBelow = 20  // fewer commits than this: one point per commit
	weeklyAbove    = 200 // more commits than this: weekly buckets

	positiveScore = 0.8
	negativeScore = -0.8
	neutralScore  = 0.0

	flatEpsilon     = 0.01
	jitterAmplitude = 0.15 // offsets fall in [-0.075, 0.075)

	commitLabelLayout = "Jan 02 15:04"
	bucketLabelLayout = "Jan 02"
)

// Window is a requested time range; Days == 0 means all history
type Window struct {
	Name string
	Days int
}

// Label is the human-readable name of the window
func (w Window) Label() string {
	if w.Days == 0 {
		return "All Time"
	}
	return fmt.Sprintf("Last %d Days", w.Days)
}

// Windows lists the supported windows
var Windows = []Window{
	{Name: "7d", Days: 7},
	{Name: "30d", Days: 30},
	{Name: "90d", Days: 90},
	{Name: "all", Days: 0},
}

// ParseWindow resolves 7d, 30d, 90d or all
func ParseWindow(name string) (Window, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, w := range Windows {
		if w.Name == n {
			return w, nil
		}
	}
	return Window{}, apperrors.ValidationErrorf("unknown timeline window %q (want 7d, 30d, 90d or all)", name)
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithClock sets the reference "now" used for window filtering
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithFallbackCommits sets how many recent commits stand in for an empty window
func WithFallbackCommits(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.fallback = n
		}
	}
}

// WithJitterSeed seeds the flat-line jitter
func WithJitterSeed(seed uint64) Option {
	return func(a *Aggregator) { a.seed = seed }
}

// Aggregator builds sentiment timelines. It holds no mutable state and may
// be shared.
type Aggregator struct {
	now      func() time.Time
	fallback int
	seed     uint64
}

// NewAggregator creates an aggregator
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{now: time.Now, fallback: 50, seed: 1}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Build produces the timeline of commits for the named window
func (a *Aggregator) Build(commits []models.Commit, window string) (models.TimelineResult, error) {
	w, err := ParseWindow(window)
	if err != nil {
		return models.TimelineResult{}, err
	}
	return a.BuildWindow(commits, w), nil
}

// BuildWindow produces the timeline of commits for w. Points are in
// chronological order; IsFallback is set when the window held no commits and
// the most recent ones were used instead.
func (a *Aggregator) BuildWindow(commits []models.Commit, w Window) models.TimelineResult {
	result := models.TimelineResult{
		Points:      []models.TimelinePoint{},
		Window:      w.Name,
		WindowLabel: w.Label(),
	}

	// Input order is unspecified: newest first for selection
	sorted := make([]models.Commit, len(commits))
	copy(sorted, commits)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AuthoredAt.After(sorted[j].AuthoredAt)
	})

	selected := sorted
	if w.Days > 0 {
		cutoff := a.now().Add(-time.Duration(w.Days) * 24 * time.Hour)
		selected = make([]models.Commit, 0, len(sorted))
		for _, c := range sorted {
			if c.AuthoredAt.After(cutoff) {
				selected = append(selected, c)
			}
		}
	}

	if len(selected) == 0 && len(sorted) > 0 {
		selected = sorted[:min(a.fallback, len(sorted))]
		result.IsFallback = true
	}
	if len(selected) == 0 {
		return result
	}

	// Oldest first from here on
	chrono := make([]models.Commit, len(selected))
	for i, c := range selected {
		chrono[len(selected)-1-i] = c
	}

	var points []models.TimelinePoint
	switch {
	case len(chrono) < perCommitBelow:
		result.Granularity = models.GranularityCommit
		points = perCommit(chrono)
	case len(chrono) > weeklyAbove:
		result.Granularity = models.GranularityWeek
		points = bucketed(chrono, startOfWeek)
	default:
		result.Granularity = models.GranularityDay
		points = bucketed(chrono, startOfDay)
	}

	a.jitterIfFlat(points)
	result.Points = smooth(points)
	return result
}

// Score maps a sentiment label to its plotted value
func Score(s models.Sentiment) float64 {
	switch s {
	case models.SentimentPositive:
		return positiveScore
	case models.SentimentNegative:
		return negativeScore
	default:
		return neutralScore
	}
}

func perCommit(commits []models.Commit) []models.TimelinePoint {
	points := make([]models.TimelinePoint, 0, len(commits))
	for _, c := range commits {
		at := c.AuthoredAt.UTC()
		points = append(points, models.TimelinePoint{
			BucketLabel:    at.Format(commitLabelLayout),
			Date:           at,
			SentimentScore: Score(c.Sentiment),
			CommitCount:    1,
			PreviewMessage: c.Message,
		})
	}
	return points
}

// bucketed averages scores per bucket; commits must be chronological so the
// preview is the bucket's earliest message
func bucketed(commits []models.Commit, bucketStart func(time.Time) time.Time) []models.TimelinePoint {
	type bucket struct {
		start   time.Time
		total   float64
		count   int
		preview string
	}

	var order []time.Time
	buckets := make(map[time.Time]*bucket)
	for _, c := range commits {
		start := bucketStart(c.AuthoredAt)
		b, ok := buckets[start]
		if !ok {
			b = &bucket{start: start, preview: c.Message}
			buckets[start] = b
			order = append(order, start)
		}
		b.total += Score(c.Sentiment)
		b.count++
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	points := make([]models.TimelinePoint, 0, len(order))
	for _, start := range order {
		b := buckets[start]
		points = append(points, models.TimelinePoint{
			BucketLabel:    b.start.Format(bucketLabelLayout),
			Date:           b.start,
			SentimentScore: b.total / float64(b.count),
			CommitCount:    b.count,
			PreviewMessage: b.preview,
		})
	}
	return points
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// startOfWeek returns the Sunday that starts t's week
func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// jitterIfFlat nudges every point by a bounded offset when all scores sit
// within flatEpsilon of the first, so the chart is not a flat line
func (a *Aggregator) jitterIfFlat(points []models.TimelinePoint) {
	if len(points) < 2 {
		return
	}
	first := points[0].SentimentScore
	for _, p := range points[1:] {
		if math.Abs(p.SentimentScore-first) >= flatEpsilon {
			return
		}
	}

	rng := rand.New(rand.NewPCG(a.seed, a.seed))
	for i := range points {
		offset := (rng.Float64() - 0.5) * jitterAmplitude
		points[i].SentimentScore = clamp(points[i].SentimentScore + offset)
	}
}

// smooth applies a 3-point moving average; the ends repeat themselves as
// their missing neighbour
func smooth(points []models.TimelinePoint) []models.TimelinePoint {
	out := make([]models.TimelinePoint, len(points))
	for i, p := range points {
		prev, next := p.SentimentScore, p.SentimentScore
		if i > 0 {
			prev = points[i-1].SentimentScore
		}
		if i < len(points)-1 {
			next = points[i+1].SentimentScore
		}
		p.SentimentScore = (prev + p.SentimentScore + next) / 3
		out[i] = p
	}
	return out
}

func clamp(v float64) float64 {
	return max(-1, min(1, v))
}
