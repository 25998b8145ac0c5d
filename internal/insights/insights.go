// Package insights turns the scalar metrics of an analysis record into
// short qualitative assessments and guesses the project type from its files.
package insights

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/rohankatakam/gitcinema/internal/models"
)

// MetricKind names an assessed metric
type MetricKind string

const (
	MetricCommits      MetricKind = "commits"
	MetricContributors MetricKind = "contributors"
	MetricChurn        MetricKind = "churn"
	MetricRefactors    MetricKind = "refactors"
)

// Tone is the colour family a presentation layer should use for an insight
type Tone string

const (
	ToneBlue   Tone = "blue"
	ToneGreen  Tone = "green"
	TonePurple Tone = "purple"
	ToneYellow Tone = "yellow"
	ToneOrange Tone = "orange"
	ToneRed    Tone = "red"
	ToneGray   Tone = "gray"
)

// Insight is the assessment of one metric value
type Insight struct {
	Metric      MetricKind `json:"metric"`
	Value       float64    `json:"value"`
	Status      string     `json:"status"`
	Explanation string     `json:"explanation"`
	Tone        Tone       `json:"tone"`
}

// Assess classifies value for the given metric
func Assess(kind MetricKind, value float64) Insight {
	in := Insight{Metric: kind, Value: value}
	switch kind {
	case MetricCommits:
		switch {
		case value < 20:
			in.Status, in.Explanation, in.Tone = "Early Stage Project", "Project is in early development phase.", ToneBlue
		case value <= 100:
			in.Status, in.Explanation, in.Tone = "Active Development", "Repository shows steady development activity.", ToneGreen
		default:
			in.Status, in.Explanation, in.Tone = "Mature Project", "Project has significant development history.", TonePurple
		}

	case MetricContributors:
		switch {
		case value == 1:
			in.Status, in.Explanation, in.Tone = "Solo Project", "Maintained by a single developer.", ToneBlue
		case value <= 5:
			in.Status, in.Explanation, in.Tone = "Small Team", "Collaborative development with a small team.", ToneGreen
		default:
			in.Status, in.Explanation, in.Tone = "Active Community", "Project has strong collaborative activity.", TonePurple
		}

	case MetricChurn:
		switch {
		case value < 10:
			in.Status, in.Explanation, in.Tone = "Stable Codebase", "Minimal code changes. System is stable.", ToneGreen
		case value <= 25:
			in.Status, in.Explanation, in.Tone = "Moderate Changes", "Codebase is evolving but stable.", ToneYellow
		case value <= 40:
			in.Status, in.Explanation, in.Tone = "High Activity", "Frequent modifications detected.", ToneOrange
		default:
			in.Status, in.Explanation, in.Tone = "High Volatility", "Heavy rewrites may indicate instability.", ToneRed
		}

	case MetricRefactors:
		switch {
		case value == 0:
			in.Status, in.Explanation, in.Tone = "No Structural Improvements", "No major architecture improvements detected.", ToneGray
		case value <= 3:
			in.Status, in.Explanation, in.Tone = "Improving Architecture", "Some structural refinements detected.", ToneGreen
		default:
			in.Status, in.Explanation, in.Tone = "Active Optimization", "System is actively being optimized.", ToneBlue
		}

	default:
		in.Status, in.Explanation, in.Tone = "Unknown", "No data available.", ToneGray
	}
	return in
}

// ForRecord assesses every metric of a record, in a fixed order
func ForRecord(record *models.AnalysisRecord) []Insight {
	return []Insight{
		Assess(MetricCommits, float64(record.TotalCommits)),
		Assess(MetricContributors, float64(len(record.Contributors))),
		Assess(MetricChurn, record.Metrics.ChurnRate),
		Assess(MetricRefactors, float64(record.Metrics.RefactorCount)),
	}
}

// Project is a best-effort guess of what kind of project a repository holds
type Project struct {
	Type       string `json:"type"`
	Framework  string `json:"framework"`
	EntryPoint string `json:"entry_point"`
}

type packageJSON struct {
	Main            string            `json:"main"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// DetectProject inspects root file names, the package manifest and the
// README. The first matching rule wins.
func DetectProject(record *models.AnalysisRecord) Project {
	files := record.FilePaths
	has := func(name string) bool { return slices.Contains(files, name) }
	readme := strings.ToLower(record.Readme)

	project := Project{Type: "Unknown", Framework: "None", EntryPoint: "N/A"}

	switch {
	case has("package.json"):
		project.Type = "Node.js / JavaScript"

		var pkg packageJSON
		if len(record.PackageManifest) > 0 {
			// An unreadable manifest still identifies a Node project
			_ = json.Unmarshal(record.PackageManifest, &pkg)
		}
		switch {
		case pkg.Dependencies["react"] != "" || pkg.DevDependencies["react"] != "":
			project.Framework = "React"
			project.EntryPoint = "src/index.js"
			for _, f := range files {
				if strings.Contains(f, "src/main.tsx") || strings.Contains(f, "src/index.tsx") || strings.Contains(f, "src/App.tsx") {
					project.EntryPoint = f
					break
				}
			}
		case pkg.Dependencies["next"] != "":
			project.Framework = "Next.js"
			project.EntryPoint = "app/page.tsx"
		case pkg.Dependencies["express"] != "":
			project.Framework = "Express"
			project.EntryPoint = "server.js"
			if pkg.Main != "" {
				project.EntryPoint = pkg.Main
			}
		}

	case has("index.html"):
		project.Type, project.Framework, project.EntryPoint = "Static Website", "HTML/CSS", "index.html"

	case has("requirements.txt") || slices.ContainsFunc(files, func(f string) bool { return strings.HasSuffix(f, ".py") }):
		project.Type = "Python"
		if strings.Contains(readme, "flask") {
			project.Framework = "Flask"
		}
		if strings.Contains(readme, "django") {
			project.Framework = "Django"
		}
		project.EntryPoint = "main.py"
		for _, f := range files {
			if f == "app.py" || f == "main.py" || f == "manage.py" {
				project.EntryPoint = f
				break
			}
		}

	case has("go.mod"):
		project.Type, project.Framework, project.EntryPoint = "Go", "None", "main.go"
		for _, f := range files {
			if f == "main.go" || (strings.HasPrefix(f, "cmd/") && strings.HasSuffix(f, "/main.go")) {
				project.EntryPoint = f
				break
			}
		}

	case has("Dockerfile"):
		project.Type, project.Framework, project.EntryPoint = "Containerized App", "Docker", "Dockerfile"
	}

	return project
}

// Report bundles the project guess and metric insights of one record
type Report struct {
	RepositoryID models.RepositoryID `json:"repository_id"`
	Project      Project             `json:"project"`
	Insights     []Insight           `json:"insights"`
}

// NewReport builds the report of record
func NewReport(record *models.AnalysisRecord) Report {
	return Report{
		RepositoryID: record.RepositoryID,
		Project:      DetectProject(record),
		Insights:     ForRecord(record),
	}
}
