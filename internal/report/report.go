// Package report renders run summaries as terminal tables.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/martinsuchenak/fmcsweep/internal/model"
	"github.com/martinsuchenak/fmcsweep/internal/reclaim"
	"github.com/martinsuchenak/fmcsweep/internal/restore"
	"github.com/martinsuchenak/fmcsweep/internal/storage"
)

var (
	mutedColor = lipgloss.Color("240")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			MarginTop(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(mutedColor).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	noteStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)
)

// Column is a table column
type Column struct {
	Label string
	Width int
}

// Table renders rows under a title. Cells wider than their column are cut.
func Table(title string, columns []Column, rows [][]string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	header := make([]string, 0, len(columns))
	for _, col := range columns {
		header = append(header, headerStyle.Width(col.Width).Render(col.Label))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, header...))
	b.WriteString("\n")

	for _, row := range rows {
		cells := make([]string, 0, len(columns))
		for i, col := range columns {
			val := ""
			if i < len(row) {
				val = truncate(row[i], col.Width-2)
			}
			cells = append(cells, cellStyle.Width(col.Width).Render(val))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if width <= 3 || len(runes) <= width {
		return s
	}
	return string(runes[:width-3]) + "..."
}

// Cleanup summarises a cleanup run
func Cleanup(r reclaim.Report) string {
	columns := []Column{
		{"Category", 12}, {"Total", 8}, {"Unused before", 15}, {"Unused after", 14},
		{"Deleted", 9}, {"Passes", 8}, {"Errors", 8},
	}
	var rows [][]string
	var notes []string
	for _, res := range r.Results {
		status := strconv.Itoa(res.Deleted)
		if res.Declined {
			status = "declined"
		}
		rows = append(rows, []string{
			res.Category.Label() + "s",
			strconv.Itoa(res.Total),
			strconv.Itoa(res.Before),
			strconv.Itoa(res.After),
			status,
			strconv.Itoa(res.Passes),
			strconv.Itoa(len(res.Errors)),
		})
		for _, o := range res.Skipped {
			notes = append(notes, fmt.Sprintf("%s %s was kept because its backup failed", res.Category.Label(), o.Name))
		}
		for _, o := range res.Stuck {
			notes = append(notes, fmt.Sprintf("%s %s is reported unused but could not be deleted", res.Category.Label(), o.Name))
		}
		for _, path := range res.Backups {
			notes = append(notes, "backup: "+path)
		}
	}
	if r.Stopped {
		notes = append(notes, "cleanup stopped before every category was processed")
	}
	return Table("Cleanup summary", columns, rows) + renderNotes(notes)
}

// Restore summarises a restore run
func Restore(r restore.Report) string {
	columns := []Column{
		{"Category", 12}, {"Attempted", 11}, {"Created", 9}, {"Failed", 8}, {"Unresolved", 12}, {"Source", 48},
	}
	var rows [][]string
	var notes []string
	for _, res := range r.Results {
		source := res.Source
		if res.Skipped {
			source = "skipped, " + res.Reason
			if res.Reason != "missing" {
				notes = append(notes, fmt.Sprintf("%s backup %s not restored: %s", res.Category.Label(), res.Source, res.Reason))
			}
		}
		rows = append(rows, []string{
			res.Category.Label() + "s",
			strconv.Itoa(res.Attempted),
			strconv.Itoa(res.Created),
			strconv.Itoa(len(res.Failed)),
			strconv.Itoa(len(res.Unresolved)),
			source,
		})
		for _, miss := range res.Unresolved {
			notes = append(notes, fmt.Sprintf("group %s lost member %s", miss.Group, miss.Member))
		}
	}
	return Table("Restore summary", columns, rows) + renderNotes(notes)
}

// Count is the size of one category
type Count struct {
	Category model.Category
	Total    int
	Unused   int
}

// Inventory renders per category counts. Unused is shown as "-" when it was
// not collected.
func Inventory(counts []Count, withUnused bool) string {
	columns := []Column{{"Category", 12}, {"Total", 8}, {"Unused", 8}}
	var rows [][]string
	for _, c := range counts {
		unused := "-"
		if withUnused {
			unused = strconv.Itoa(c.Unused)
		}
		rows = append(rows, []string{c.Category.Label() + "s", strconv.Itoa(c.Total), unused})
	}
	return Table("Controller inventory", columns, rows)
}

// History renders journal runs
func History(runs []storage.Run) string {
	if len(runs) == 0 {
		return noteStyle.Render("No runs recorded") + "\n"
	}
	columns := []Column{
		{"Run", 38}, {"Kind", 9}, {"Started", 21}, {"Status", 13}, {"Succeeded", 11}, {"Failed", 8}, {"Operator", 14},
	}
	var rows [][]string
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.Kind,
			r.StartedAt.Local().Format(time.DateTime),
			r.Status,
			strconv.Itoa(r.Succeeded),
			strconv.Itoa(r.Failed),
			r.Operator,
		})
	}
	return Table("Recent runs", columns, rows)
}

// Outcomes renders the journal entries of one run
func Outcomes(outcomes []model.Outcome) string {
	if len(outcomes) == 0 {
		return noteStyle.Render("No outcomes recorded") + "\n"
	}
	columns := []Column{{"Category", 15}, {"Action", 8}, {"Name", 30}, {"Pass", 6}, {"Result", 50}}
	var rows [][]string
	for _, o := range outcomes {
		result := "ok"
		if !o.Succeeded {
			result = o.Message
		}
		pass := ""
		if o.Pass > 0 {
			pass = strconv.Itoa(o.Pass)
		}
		rows = append(rows, []string{string(o.Category), o.Action, o.Name, pass, result})
	}
	return Table("Run outcomes", columns, rows)
}

func renderNotes(notes []string) string {
	if len(notes) == 0 {
		return ""
	}
	var b strings.Builder
	for _, n := range notes {
		b.WriteString(noteStyle.Render(n))
		b.WriteString("\n")
	}
	return b.String()
}
