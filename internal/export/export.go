package export

import (
	"io"
	"time"

	"rankledger/internal/models"
	"rankledger/internal/util"

	"github.com/jedib0t/go-pretty/v6/table"
)

var header = table.Row{"Rank", "Name", "Score", "Location", "Country", "City", "Region", "Period", "Created", "Updated"}

func newWriter(rows []models.StoredEntity) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(header)
	for _, r := range rows {
		score := ""
		if r.Score.Valid {
			score = r.Score.Decimal.String()
		}
		updated := ""
		if r.UpdatedAt != nil {
			updated = r.UpdatedAt.UTC().Format(time.RFC3339)
		}
		t.AppendRow(table.Row{
			r.Rank, r.Name, score, r.Location, r.Country, r.City, r.Region,
			r.Period.String(), r.CreatedAt.UTC().Format(time.RFC3339), updated,
		})
	}
	return t
}

// Table renders rows as a boxed table to w.
func Table(w io.Writer, rows []models.StoredEntity) {
	t := newWriter(rows)
	t.SetOutputMirror(w)
	t.Render()
}

func CSV(w io.Writer, rows []models.StoredEntity) {
	t := newWriter(rows)
	t.SetOutputMirror(w)
	t.RenderCSV()
}

// WriteCSVFile replaces path with the CSV rendering of rows.
func WriteCSVFile(path string, rows []models.StoredEntity) error {
	out := newWriter(rows).RenderCSV()
	return util.WriteFileAtomic(path, []byte(out+"\n"))
}
