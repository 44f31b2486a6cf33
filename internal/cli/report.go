package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/spice-ingest/internal/ingest"
	"github.com/Veraticus/spice-ingest/internal/model"
)

// maxListed caps how many individual failures a summary lists.
const maxListed = 10

// RenderReport renders the end-of-run summary. run may be nil when nothing
// was persisted.
func RenderReport(r *ingest.Report, run *model.Run) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %d files, %d records in %s\n",
		SuccessStyle.Render(SuccessIcon), r.Files, r.Records, r.Duration.Round(time.Millisecond))
	if run != nil {
		fmt.Fprintf(&b, "%s %d new, %d duplicates (run %s)\n",
			InfoStyle.Render(FolderIcon), run.Records, run.Duplicates, SubtleStyle.Render(run.ID))
	}

	if len(r.SkippedFiles) > 0 {
		b.WriteString("\n" + WarningStyle.Render(fmt.Sprintf("Skipped files: %d", len(r.SkippedFiles))) + "\n")
		b.WriteString(renderCounts(r.SkippedByReason()))
		for i, f := range r.SkippedFiles {
			if i == maxListed {
				b.WriteString(SubtleStyle.Render(fmt.Sprintf("  … and %d more", len(r.SkippedFiles)-maxListed)) + "\n")
				break
			}
			fmt.Fprintf(&b, "  %s %s\n", ErrorStyle.Render(ErrorIcon), f.Path)
		}
	}

	if len(r.DroppedRows) > 0 {
		b.WriteString("\n" + WarningStyle.Render(fmt.Sprintf("Dropped rows: %d", len(r.DroppedRows))) + "\n")
		b.WriteString(renderCounts(r.DroppedByReason()))
		for i, row := range r.DroppedRows {
			if i == maxListed {
				b.WriteString(SubtleStyle.Render(fmt.Sprintf("  … and %d more", len(r.DroppedRows)-maxListed)) + "\n")
				break
			}
			fmt.Fprintf(&b, "  %s %s:%d %v\n", ErrorStyle.Render(ErrorIcon), row.Path, row.Line, row.Err)
		}
	}

	title := "Ingest complete"
	if !r.Clean() {
		title = "Ingest complete with problems"
	}
	return RenderBox(SpiceIcon+" "+title, strings.TrimRight(b.String(), "\n"))
}

// renderCounts renders reason counts as a two-column table, largest first.
func renderCounts(counts map[string]int) string {
	reasons := make([]string, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool {
		if counts[reasons[i]] != counts[reasons[j]] {
			return counts[reasons[i]] > counts[reasons[j]]
		}
		return reasons[i] < reasons[j]
	})

	rows := make([]string, 0, len(reasons)+1)
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
		TableHeaderStyle.Width(28).Render("reason"),
		TableHeaderStyle.Render("count")))
	for _, reason := range reasons {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
			TableCellStyle.Width(28).Render(reason),
			TableCellStyle.Render(fmt.Sprint(counts[reason]))))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...) + "\n"
}
