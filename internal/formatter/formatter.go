// package formatter renders tasks and notifications as tables, CSV or Markdown for the CLI.
package formatter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/recap/internal/models"
	"github.com/desertthunder/recap/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Format selects how a listing is rendered.
type Format string

const (
	FormatTable    Format = "table"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

const barWidth = 20

// ParseFormat validates a user supplied format name. The empty string selects [FormatTable].
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatCSV, FormatMarkdown:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (want table, csv or markdown)", shared.ErrInvalidFlag, s)
	}
}

// ProgressBar draws progress (0-100) as a fixed width text bar.
func ProgressBar(progress, width int) string {
	if width <= 0 {
		width = barWidth
	}
	progress = models.ClampProgress(progress)
	filled := progress * width / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// Ago renders t relative to now. A zero time renders as "-".
func Ago(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// WriteLiveTasks renders live task statuses.
func WriteLiveTasks(w io.Writer, tasks []models.TaskLiveStatus, format Format, now time.Time) error {
	tw := newTable(format)
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Progress", "Stage", "Updated"})
	for _, t := range tasks {
		detail := t.Stage
		if t.Status == models.StatusFailed && t.Error != "" {
			detail = t.Error
		}
		tw.AppendRow(table.Row{t.ID, t.Title, t.Status, progressCell(t.Progress, format), detail, Ago(t.UpdatedAt, now)})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft}})
	return render(w, tw, format)
}

// WriteTaskSummaries renders tasks as returned by the REST API.
func WriteTaskSummaries(w io.Writer, tasks []models.TaskSummary, format Format, now time.Time) error {
	live := make([]models.TaskLiveStatus, 0, len(tasks))
	for _, t := range tasks {
		st := models.TaskLiveStatus{ID: t.ID, Title: t.Title, Status: t.Status, UpdatedAt: t.UpdatedAt}
		p := t.Patch()
		if p.Progress != nil {
			st.Progress = *p.Progress
		}
		if p.Stage != nil {
			st.Stage = *p.Stage
		}
		if p.Error != nil {
			st.Error = *p.Error
		}
		live = append(live, st)
	}
	return WriteLiveTasks(w, live, format, now)
}

// WriteTaskDetail renders one task as a two column key/value table.
func WriteTaskDetail(w io.Writer, t models.TaskSummary, now time.Time) error {
	tw := newTable(FormatTable)
	tw.AppendRows([]table.Row{
		{"ID", t.ID},
		{"Title", t.Title},
		{"Status", t.Status},
		{"Progress", fmt.Sprintf("%s %.0f%%", ProgressBar(int(t.Progress), barWidth), t.Progress)},
		{"Stage", t.Stage},
		{"Source", t.SourceURL},
		{"Created", Ago(t.CreatedAt, now)},
		{"Updated", Ago(t.UpdatedAt, now)},
	})
	if t.Error != "" {
		tw.AppendRow(table.Row{"Error", t.Error})
	}
	return render(w, tw, FormatTable)
}

// WriteNotifications renders a feed page.
func WriteNotifications(w io.Writer, items []models.Notification, format Format, now time.Time) error {
	tw := newTable(format)
	tw.AppendHeader(table.Row{"", "ID", "Title", "Message", "Received"})
	for _, n := range items {
		marker := "*"
		if n.Read {
			marker = ""
		}
		tw.AppendRow(table.Row{marker, n.ID, n.Title, n.Message, Ago(n.CreatedAt, now)})
	}
	return render(w, tw, format)
}

// WriteFile renders with fn into the file at path.
func WriteFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(shared.ExpandHome(path))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func progressCell(progress int, format Format) string {
	if format == FormatTable {
		return fmt.Sprintf("%s %3d%%", ProgressBar(progress, barWidth), progress)
	}
	return fmt.Sprintf("%d", progress)
}

func newTable(format Format) table.Writer {
	tw := table.NewWriter()
	if format == FormatTable {
		tw.SetStyle(table.StyleRounded)
	}
	return tw
}

func render(w io.Writer, tw table.Writer, format Format) error {
	var out string
	switch format {
	case FormatCSV:
		out = tw.RenderCSV()
	case FormatMarkdown:
		out = tw.RenderMarkdown()
	default:
		out = tw.Render()
	}
	if _, err := io.WriteString(w, out+"\n"); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
