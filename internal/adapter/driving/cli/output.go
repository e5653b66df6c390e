package cli

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/AustralianBioCommons/gen3metadata/internal/application"
	"github.com/AustralianBioCommons/gen3metadata/internal/domain/model"
)

type writeFunc func(w io.Writer, s *application.Session, key string) error

var writers = map[string]writeFunc{
	"json": func(w io.Writer, s *application.Session, key string) error {
		ds, ok := s.Dataset(key)
		if !ok {
			return fmt.Errorf("%w: %s", model.ErrDatasetNotFound, key)
		}
		return writeJSON(w, ds.Raw)
	},
	"csv":   tableWriter(writeCSV),
	"table": tableWriter(writeTable),
}

func tableWriter(fn func(io.Writer, *model.Table) error) writeFunc {
	return func(w io.Writer, s *application.Session, key string) error {
		t, err := s.Table(key)
		if err != nil {
			return err
		}
		return fn(w, t)
	}
}

// writeJSON re-indents the body as received, keeping its key order.
func writeJSON(w io.Writer, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

func writeCSV(w io.Writer, t *model.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := cw.Write(rowText(row, len(t.Columns))); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("99"))
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

func styledTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func writeTable(w io.Writer, t *model.Table) error {
	tbl := styledTable(t.Columns...)

	for _, row := range t.Rows {
		tbl.Row(rowText(row, len(t.Columns))...)
	}

	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}

func rowText(row []any, width int) []string {
	out := make([]string, width)
	for i := range out {
		if i < len(row) {
			out[i] = model.FormatCell(row[i])
		}
	}
	return out
}

func writeExports(w io.Writer, records []model.ExportRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "no exports recorded")
		return err
	}

	tbl := styledTable("id", "key", "table", "rows", "exported_at")

	for _, rec := range records {
		tbl.Row(
			rec.ID,
			rec.Key.String(),
			rec.TableName,
			strconv.Itoa(rec.RowCount),
			rec.ExportedAt.Format(time.RFC3339),
		)
	}

	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}
