package historical

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParsePriceCSV_Long(t *testing.T) {
	in := "Date,Ticker,Close,Adjusted_Close,Volume\n" +
		"2024-01-03,spy,101,100.5,1000\n" +
		"2024-01-02,SPY,100,,\n" +
		"2024-01-02,AGG,50,,\n"

	out, err := ParsePriceCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, out, 2)

	spy := out["SPY"]
	require.Len(t, spy, 2)
	assert.Equal(t, "2024-01-02", spy[0].Date)
	assert.Nil(t, spy[0].AdjustedClose)
	assert.Equal(t, "2024-01-03", spy[1].Date)
	require.NotNil(t, spy[1].AdjustedClose)
	assert.InDelta(t, 100.5, *spy[1].AdjustedClose, 1e-12)
	require.NotNil(t, spy[1].Volume)
	assert.Equal(t, int64(1000), *spy[1].Volume)
}

func TestParsePriceCSV_Wide(t *testing.T) {
	in := "date,SPY,agg\n" +
		"2024-01-02T00:00:00,100,50\n" +
		"2024-01-03,101,\n"

	out, err := ParsePriceCSV(strings.NewReader(in))
	require.NoError(t, err)

	require.Len(t, out["SPY"], 2)
	require.Len(t, out["AGG"], 1)
	assert.Equal(t, "2024-01-02", out["AGG"][0].Date)
	assert.InDelta(t, 50.0, out["AGG"][0].Close, 1e-12)
}

func TestParsePriceCSV_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"no date":      "ticker,close\nSPY,1\n",
		"bad date":     "date,SPY\n01/02/2024,100\n",
		"bad price":    "date,SPY\n2024-01-02,abc\n",
		"zero price":   "date,ticker,close\n2024-01-02,SPY,0\n",
		"short record": "date,SPY,AGG\n2024-01-02,100\n",
		"header only":  "date,SPY\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePriceCSV(strings.NewReader(in))
			assert.ErrorIs(t, err, ErrInvalidCSV)
		})
	}
}

func TestImporter_ImportAll(t *testing.T) {
	h := newTestHistoryDB(t)
	ctx := context.Background()
	dir := t.TempDir()

	writeFile(t, dir, "a.csv", "date,ticker,close\n2024-01-02,SPY,100\n2024-01-03,SPY,101\n")
	writeFile(t, dir, "b.csv", "date,AGG\n2024-01-02,50\n")
	writeFile(t, dir, "broken.csv", "nonsense\n")
	writeFile(t, dir, "notes.txt", "ignored")

	im := NewImporter(h, dir, zerolog.Nop())
	summary, err := im.ImportAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Files)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 3, summary.Rows)
	assert.Equal(t, []string{"broken.csv"}, summary.Failed)

	spy, err := h.GetDailyPrices(ctx, "SPY", time.Time{})
	require.NoError(t, err)
	assert.Len(t, spy, 2)

	// Unchanged files are skipped on the next pass.
	summary, err = im.ImportAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 0, summary.Rows)
}

func TestImporter_ReimportsChangedFile(t *testing.T) {
	h := newTestHistoryDB(t)
	ctx := context.Background()
	dir := t.TempDir()
	im := NewImporter(h, dir, zerolog.Nop())

	path := writeFile(t, dir, "spy.csv", "date,SPY\n2024-01-02,100\n")
	rows, skipped, err := im.ImportFile(ctx, path)
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.Equal(t, 1, rows)

	writeFile(t, dir, "spy.csv", "date,SPY\n2024-01-02,105\n2024-01-03,106\n")
	rows, skipped, err = im.ImportFile(ctx, path)
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.Equal(t, 2, rows)

	spy, err := h.GetDailyPrices(ctx, "SPY", time.Time{})
	require.NoError(t, err)
	require.Len(t, spy, 2)
	assert.InDelta(t, 105.0, spy[0].Close, 1e-12)
}

func TestImporter_NoDirectory(t *testing.T) {
	im := NewImporter(newTestHistoryDB(t), "", zerolog.Nop())
	summary, err := im.ImportAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Files)
}
