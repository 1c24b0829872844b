package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rankledger/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func sampleRows() []models.StoredEntity {
	period := models.PeriodOf(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	return []models.StoredEntity{
		{
			Entity: models.Entity{
				Rank: 1, Name: "Alpha University", Score: decimal.NewNullDecimal(decimal.RequireFromString("99.5")),
				Location: "Cambridge, United Kingdom", Country: "United Kingdom", City: "Cambridge", Period: period,
			},
			CreatedAt: time.Date(2025, 3, 2, 7, 0, 0, 0, time.UTC),
		},
		{
			Entity:    models.Entity{Rank: 2, Name: "Beta Institute", Period: period},
			CreatedAt: time.Date(2025, 3, 2, 7, 0, 0, 0, time.UTC),
		},
	}
}

func TestCSVQuotesLocationsAndLeavesAbsentScoreEmpty(t *testing.T) {
	var buf bytes.Buffer
	CSV(&buf, sampleRows())
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "rank,name,score,location,country,city,region,period,created,updated", strings.ToLower(lines[0]))
	require.True(t, strings.HasPrefix(lines[1], "1,Alpha University,99.5,"), lines[1])
	require.Contains(t, lines[1], `"Cambridge, United Kingdom"`)
	require.Contains(t, lines[1], "2025-03-02T07:00:00Z")
	require.True(t, strings.HasPrefix(lines[2], "2,Beta Institute,,"), lines[2])
}

func TestTableRendersRows(t *testing.T) {
	var buf bytes.Buffer
	Table(&buf, sampleRows())
	out := buf.String()
	require.Contains(t, out, "Alpha University")
	require.Contains(t, out, "99.5")
	require.Contains(t, out, "╭")
}

func TestWriteCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exports", "2025-03.csv")
	require.NoError(t, WriteCSVFile(path, sampleRows()))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(string(b), "\n"))
	require.Contains(t, string(b), "Beta Institute")
}
