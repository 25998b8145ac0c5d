package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/rohankatakam/gitcinema/internal/insights"
	"github.com/rohankatakam/gitcinema/internal/models"
)

const previewWidth = 60

// TableFormatter renders results as headers plus borderless tables
type TableFormatter struct {
	Color bool
}

func (f *TableFormatter) Format(w io.Writer, v interface{}) error {
	switch r := v.(type) {
	case *models.AnalysisRecord:
		f.analysis(w, r)
	case *models.ContextBundle:
		f.bundle(w, r)
	case *models.StoredFile:
		f.file(w, r)
	case models.TimelineResult:
		f.timeline(w, &r)
	case *models.TimelineResult:
		f.timeline(w, r)
	case insights.Report:
		f.report(w, &r)
	case *insights.Report:
		f.report(w, r)
	case string:
		fmt.Fprintln(w, r)
	default:
		return fmt.Errorf("no table layout for %T", v)
	}
	return nil
}

func (f *TableFormatter) analysis(w io.Writer, r *models.AnalysisRecord) {
	fmt.Fprintf(w, "%s\n", f.paint(color.Bold, r.RepositoryID.String()))
	fmt.Fprintf(w, "Source: %s\n", r.SourceURL)
	fmt.Fprintf(w, "Analyzed: %s\n", humanize.Time(r.AnalyzedAt))
	fmt.Fprintf(w, "Commits: %s\n", humanize.Comma(int64(r.TotalCommits)))
	fmt.Fprintf(w, "Files: %s\n", humanize.Comma(int64(len(r.FilePaths))))
	fmt.Fprintf(w, "Refactors: %d  Bug fixes: %d  Churn: %.1f%%\n",
		r.Metrics.RefactorCount, r.Metrics.BugFixCount, r.Metrics.ChurnRate)
	if r.Narrative != nil {
		fmt.Fprintf(w, "Narrative: attached\n")
	}
	fmt.Fprintln(w)

	table := newTable(w, "#", "Contributor", "Commits")
	for i, c := range r.Contributors {
		table.Append([]string{strconv.Itoa(i + 1), c.Name, strconv.Itoa(c.Count)})
	}
	table.Render()

	if len(r.CoreFiles) > 0 {
		fmt.Fprintln(w)
		table = newTable(w, "Core file", "Language", "Size")
		for _, file := range r.CoreFiles {
			table.Append([]string{file.Path, file.Language, humanize.Bytes(uint64(file.Size))})
		}
		table.Render()
	}
}

func (f *TableFormatter) bundle(w io.Writer, b *models.ContextBundle) {
	fmt.Fprintf(w, "%s\n", f.paint(color.Bold, b.RepositoryID.String()))
	fmt.Fprintf(w, "Keywords: %s\n", strings.Join(b.Keywords, ", "))
	tree := strconv.Itoa(len(b.FileTree)) + " paths"
	if b.TreeTruncated {
		tree += " (truncated)"
	}
	fmt.Fprintf(w, "Tree: %s\n\n", tree)

	if len(b.RelevantFiles) == 0 {
		fmt.Fprintln(w, f.paint(color.FgYellow, "No relevant files found"))
		return
	}

	table := newTable(w, "#", "Path", "Language", "Score", "Size")
	for i, file := range b.RelevantFiles {
		size := humanize.Bytes(uint64(len(file.Content)))
		if file.Truncated {
			size += "+"
		}
		table.Append([]string{strconv.Itoa(i + 1), file.Path, file.Language, strconv.Itoa(file.Score), size})
	}
	table.Render()
}

func (f *TableFormatter) file(w io.Writer, file *models.StoredFile) {
	fmt.Fprintf(w, "%s (%s, %s, fetched %s)\n",
		f.paint(color.Bold, file.Path), file.Language, humanize.Bytes(uint64(file.Size)), humanize.Time(file.FetchedAt))
	fmt.Fprintln(w, strings.Repeat("─", 50))
	fmt.Fprint(w, file.Content)
	if !strings.HasSuffix(file.Content, "\n") {
		fmt.Fprintln(w)
	}
}

func (f *TableFormatter) timeline(w io.Writer, t *models.TimelineResult) {
	header := t.WindowLabel
	if t.Granularity != "" {
		header += " by " + string(t.Granularity)
	}
	fmt.Fprintln(w, f.paint(color.Bold, header))
	if t.IsFallback {
		fmt.Fprintln(w, f.paint(color.FgYellow, "No commits in this window; showing the most recent commits instead"))
	}
	if len(t.Points) == 0 {
		fmt.Fprintln(w, "No commits")
		return
	}

	table := newTable(w, "When", "Sentiment", "Commits", "Message")
	for _, p := range t.Points {
		table.Append([]string{
			p.BucketLabel,
			f.score(p.SentimentScore),
			strconv.Itoa(p.CommitCount),
			preview(p.PreviewMessage),
		})
	}
	table.Render()
}

func (f *TableFormatter) report(w io.Writer, r *insights.Report) {
	fmt.Fprintf(w, "%s\n", f.paint(color.Bold, r.RepositoryID.String()))
	fmt.Fprintf(w, "Project: %s (%s), entry point %s\n\n", r.Project.Type, r.Project.Framework, r.Project.EntryPoint)

	table := newTable(w, "Metric", "Value", "Status", "Explanation")
	for _, in := range r.Insights {
		table.Append([]string{
			string(in.Metric),
			strconv.FormatFloat(in.Value, 'f', -1, 64),
			f.paint(toneColor(in.Tone), in.Status),
			in.Explanation,
		})
	}
	table.Render()
}

func (f *TableFormatter) score(v float64) string {
	s := fmt.Sprintf("%+.2f", v)
	switch {
	case v > 0.2:
		return f.paint(color.FgGreen, s)
	case v < -0.2:
		return f.paint(color.FgRed, s)
	default:
		return s
	}
}

func (f *TableFormatter) paint(attr color.Attribute, s string) string {
	if !f.Color {
		return s
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(s)
}

func toneColor(t insights.Tone) color.Attribute {
	switch t {
	case insights.ToneBlue:
		return color.FgBlue
	case insights.ToneGreen:
		return color.FgGreen
	case insights.TonePurple:
		return color.FgMagenta
	case insights.ToneYellow:
		return color.FgYellow
	case insights.ToneOrange:
		return color.FgHiYellow
	case insights.ToneRed:
		return color.FgRed
	default:
		return color.FgHiBlack
	}
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// preview returns the first line of msg, shortened to previewWidth runes
func preview(msg string) string {
	line, _, _ := strings.Cut(msg, "\n")
	runes := []rune(strings.TrimSpace(line))
	if len(runes) <= previewWidth {
		return string(runes)
	}
	return string(runes[:previewWidth-1]) + "…"
}
