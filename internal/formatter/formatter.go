// package formatter renders sync run summaries, run history and cache statistics as text, Markdown or CSV
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/radiosync/internal/models"
	"github.com/desertthunder/radiosync/internal/shared"
	"github.com/desertthunder/radiosync/internal/tasks"
)

// Format names an output format accepted by --format.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
)

// ParseFormat validates a --format value. The empty string selects [FormatText].
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatMarkdown, FormatCSV:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (want text, markdown or csv)", shared.ErrInvalidFlag, s)
	}
}

// summaryRow is one line of a run summary.
type summaryRow struct {
	Source     string
	Playlist   string
	Extracted  int
	Unresolved int
	Existing   int
	Appended   int
	Pending    int
	Error      string
	Duration   time.Duration
}

func rowsOf(result *tasks.RunResult) []summaryRow {
	sources := result.Sources
	if result.Aggregate != nil {
		sources = append(sources[:len(sources):len(sources)], result.Aggregate)
	}

	rows := make([]summaryRow, 0, len(sources))
	for _, s := range sources {
		row := summaryRow{
			Source:     s.Source.URL,
			Playlist:   s.Source.PlaylistID,
			Extracted:  len(s.Extracted),
			Unresolved: s.Unresolved(),
			Existing:   s.Existing,
			Appended:   len(s.Appended),
			Pending:    len(s.Pending),
		}
		if s.Source.URL == tasks.AggregateSourceURL {
			row.Extracted = len(s.Resolved)
		}
		if s.Err != nil {
			row.Error = s.Err.Error()
		}
		if !s.StartedAt.IsZero() && s.FinishedAt.After(s.StartedAt) {
			row.Duration = s.FinishedAt.Sub(s.StartedAt)
		}
		rows = append(rows, row)
	}
	return rows
}

// SummaryToText renders a run summary for the terminal.
func SummaryToText(result *tasks.RunResult) ([]byte, error) {
	var buf bytes.Buffer

	dryRun := isDryRun(result)
	title := "Sync summary"
	if dryRun {
		title += " (dry run)"
	}
	buf.WriteString(styles.title.Render(title) + "\n\n")

	for _, row := range rowsOf(result) {
		buf.WriteString(fmt.Sprintf("%s %s -> %s\n", styles.status(row.Error, row.Appended, row.Pending), row.Source, row.Playlist))
		if row.Error != "" {
			buf.WriteString(fmt.Sprintf("    %s\n", styles.err.Render(row.Error)))
			continue
		}

		line := fmt.Sprintf("    extracted %d, unresolved %d, in playlist %d, added %d", row.Extracted, row.Unresolved, row.Existing, row.Appended)
		if dryRun {
			line = fmt.Sprintf("    extracted %d, unresolved %d, in playlist %d, would add %d", row.Extracted, row.Unresolved, row.Existing, row.Pending)
		}
		buf.WriteString(line + "\n")
	}

	buf.WriteString("\n")
	totals := fmt.Sprintf("%d sources, %d tracks added, %d failed", len(result.Sources), result.TotalAppended(), result.Failed())
	if result.Failed() > 0 {
		buf.WriteString(styles.warn.Render(totals) + "\n")
	} else {
		buf.WriteString(styles.muted.Render(totals) + "\n")
	}

	return buf.Bytes(), nil
}

// SummaryToMarkdown renders a run summary as a Markdown table.
func SummaryToMarkdown(result *tasks.RunResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Sync summary\n\n")
	if isDryRun(result) {
		buf.WriteString("**Mode**: dry run\n")
	}
	buf.WriteString(fmt.Sprintf("**Sources**: %d\n", len(result.Sources)))
	buf.WriteString(fmt.Sprintf("**Added**: %d\n", result.TotalAppended()))
	buf.WriteString(fmt.Sprintf("**Failed**: %d\n\n", result.Failed()))

	buf.WriteString("| Source | Playlist | Extracted | Unresolved | Existing | Added | Pending | Error |\n")
	buf.WriteString("|---|---|---|---|---|---|---|---|\n")
	for _, row := range rowsOf(result) {
		buf.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %d | %d | %d | %s |\n",
			escapeCell(row.Source), escapeCell(row.Playlist), row.Extracted, row.Unresolved,
			row.Existing, row.Appended, row.Pending, escapeCell(row.Error)))
	}

	return buf.Bytes(), nil
}

// SummaryToCSV converts a run summary to CSV with columns: Source, Playlist, Extracted, Unresolved, Existing,
// Appended, Pending, Error, Duration
func SummaryToCSV(result *tasks.RunResult) ([]byte, error) {
	headers := []string{"Source", "Playlist", "Extracted", "Unresolved", "Existing", "Appended", "Pending", "Error", "Duration"}

	records := [][]string{}
	for _, row := range rowsOf(result) {
		records = append(records, []string{
			row.Source,
			row.Playlist,
			strconv.Itoa(row.Extracted),
			strconv.Itoa(row.Unresolved),
			strconv.Itoa(row.Existing),
			strconv.Itoa(row.Appended),
			strconv.Itoa(row.Pending),
			row.Error,
			row.Duration.Round(time.Millisecond).String(),
		})
	}
	return writeCSV(headers, records)
}

// FormatSummary renders result in format.
func FormatSummary(result *tasks.RunResult, format Format) ([]byte, error) {
	switch format {
	case FormatMarkdown:
		return SummaryToMarkdown(result)
	case FormatCSV:
		return SummaryToCSV(result)
	case FormatText, "":
		return SummaryToText(result)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}
}

// HistoryToText renders recorded runs, newest first, one per line.
func HistoryToText(runs []models.SyncRun) ([]byte, error) {
	var buf bytes.Buffer

	if len(runs) == 0 {
		buf.WriteString(styles.muted.Render("No runs recorded") + "\n")
		return buf.Bytes(), nil
	}

	buf.WriteString(styles.title.Render("Recent runs") + "\n\n")
	for _, run := range runs {
		status := styles.status(run.Error, run.Appended, 0)
		buf.WriteString(fmt.Sprintf("%s %s %s -> %s (extracted %d, added %d)\n",
			run.StartedAt.Local().Format(time.DateTime), status, run.SourceURL, run.PlaylistID, run.Extracted, run.Appended))
		if !run.Succeeded() {
			buf.WriteString(fmt.Sprintf("    %s\n", run.Error))
		}
	}
	return buf.Bytes(), nil
}

// HistoryToCSV converts recorded runs to CSV with columns: ID, Source, Playlist, Extracted, Appended, Error,
// StartedAt, FinishedAt
func HistoryToCSV(runs []models.SyncRun) ([]byte, error) {
	headers := []string{"ID", "Source", "Playlist", "Extracted", "Appended", "Error", "StartedAt", "FinishedAt"}

	records := make([][]string, 0, len(runs))
	for _, run := range runs {
		records = append(records, []string{
			run.ID,
			run.SourceURL,
			run.PlaylistID,
			strconv.Itoa(run.Extracted),
			strconv.Itoa(run.Appended),
			run.Error,
			run.StartedAt.UTC().Format(time.RFC3339),
			run.FinishedAt.UTC().Format(time.RFC3339),
		})
	}
	return writeCSV(headers, records)
}

// FormatHistory renders runs in format. Markdown falls back to text.
func FormatHistory(runs []models.SyncRun, format Format) ([]byte, error) {
	if format == FormatCSV {
		return HistoryToCSV(runs)
	}
	return HistoryToText(runs)
}

// StatsToText renders cache statistics.
func StatsToText(stats *models.CacheStats) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(styles.title.Render("Cache") + "\n\n")
	buf.WriteString(fmt.Sprintf("Track entries:  %d\n", stats.Entries))
	buf.WriteString(fmt.Sprintf("Distinct names: %d\n", stats.DistinctKeys))
	buf.WriteString(fmt.Sprintf("Unresolved:     %d\n", stats.Negative))
	buf.WriteString(fmt.Sprintf("Playlist pages: %d\n", stats.Pages))

	if dupes := stats.Entries - stats.DistinctKeys; dupes > 0 {
		buf.WriteString("\n" + styles.warn.Render(fmt.Sprintf("%d superseded rows, run 'radiosync cache compact'", dupes)) + "\n")
	}
	return buf.Bytes(), nil
}

// Write renders with render and copies the output to w.
func Write(w io.Writer, render func() ([]byte, error)) error {
	data, err := render()
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func writeCSV(headers []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

func isDryRun(result *tasks.RunResult) bool {
	for _, s := range result.Sources {
		if s.DryRun {
			return true
		}
	}
	return false
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}
