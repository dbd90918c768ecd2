package historical

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrInvalidCSV is returned for files that are neither long nor wide price CSVs.
var ErrInvalidCSV = errors.New("invalid price csv")

// ImportSummary reports what one import pass did
type ImportSummary struct {
	Files   int      `json:"files"`
	Skipped int      `json:"skipped"`
	Rows    int      `json:"rows"`
	Failed  []string `json:"failed,omitempty"`
}

// Importer loads CSV price files from a drop directory into the history database.
//
// Two layouts are accepted:
//
//	date,ticker,close[,adjusted_close][,volume]   (long)
//	date,SPY,AGG,...                              (wide, one close column per ticker)
//
// A file is imported again only when its content changes.
type Importer struct {
	history *HistoryDB
	dir     string
	log     zerolog.Logger
}

// NewImporter creates an importer reading from dir
func NewImporter(history *HistoryDB, dir string, log zerolog.Logger) *Importer {
	return &Importer{
		history: history,
		dir:     dir,
		log:     log.With().Str("component", "price_importer").Logger(),
	}
}

// Dir returns the drop directory
func (im *Importer) Dir() string {
	return im.dir
}

// ImportAll imports every *.csv file in the drop directory. A file that fails
// is logged and recorded in the summary; the others still run.
func (im *Importer) ImportAll(ctx context.Context) (*ImportSummary, error) {
	summary := &ImportSummary{}
	if im.dir == "" {
		return summary, nil
	}

	files, err := filepath.Glob(filepath.Join(im.dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("failed to list import directory: %w", err)
	}
	sort.Strings(files)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		rows, skipped, err := im.ImportFile(ctx, path)
		if err != nil {
			im.log.Error().Err(err).Str("file", path).Msg("Failed to import price file")
			summary.Failed = append(summary.Failed, filepath.Base(path))
			continue
		}
		summary.Files++
		if skipped {
			summary.Skipped++
		}
		summary.Rows += rows
	}

	if summary.Files > summary.Skipped || len(summary.Failed) > 0 {
		im.log.Info().
			Int("files", summary.Files).
			Int("skipped", summary.Skipped).
			Int("rows", summary.Rows).
			Int("failed", len(summary.Failed)).
			Msg("Price import finished")
	}
	return summary, nil
}

// ImportFile imports one CSV file. It reports skipped=true when the same
// content was imported before.
func (im *Importer) ImportFile(ctx context.Context, path string) (rows int, skipped bool, err error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	name := filepath.Base(path)
	sum := sha256.Sum256(content)
	checksum := hex.EncodeToString(sum[:])

	done, err := im.history.IsImported(ctx, name, checksum)
	if err != nil {
		return 0, false, err
	}
	if done {
		return 0, true, nil
	}

	byTicker, err := ParsePriceCSV(strings.NewReader(string(content)))
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", name, err)
	}

	tickers := make([]string, 0, len(byTicker))
	for ticker := range byTicker {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	source := "csv:" + name
	for _, ticker := range tickers {
		prices := byTicker[ticker]
		if err := im.history.UpsertPrices(ctx, ticker, source, prices); err != nil {
			return rows, false, err
		}
		rows += len(prices)
	}

	if err := im.history.RecordImport(ctx, name, checksum, rows); err != nil {
		return rows, false, err
	}

	im.log.Info().
		Str("file", name).
		Int("tickers", len(tickers)).
		Int("rows", rows).
		Msg("Imported price file")
	return rows, false, nil
}

// ParsePriceCSV reads a long or wide price CSV into per-ticker series sorted
// by date. Blank cells in wide files are skipped.
func ParsePriceCSV(r io.Reader) (map[string][]DailyPrice, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidCSV)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	dateCol, ok := cols["date"]
	if !ok {
		return nil, fmt.Errorf("%w: missing date column", ErrInvalidCSV)
	}

	out := make(map[string][]DailyPrice)
	line := 1
	_, hasTicker := cols["ticker"]
	_, hasClose := cols["close"]
	long := hasTicker && hasClose

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidCSV, line, err)
		}
		if len(record) != len(header) {
			return nil, fmt.Errorf("%w: line %d has %d fields, expected %d", ErrInvalidCSV, line, len(record), len(header))
		}

		date, err := normalizeDate(record[dateCol])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidCSV, line, err)
		}

		if long {
			p, ticker, err := parseLongRecord(record, cols, date)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidCSV, line, err)
			}
			out[ticker] = append(out[ticker], p)
			continue
		}

		for i, h := range header {
			if i == dateCol {
				continue
			}
			cell := strings.TrimSpace(record[i])
			if cell == "" {
				continue
			}
			price, err := parsePrice(cell)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %s: %v", ErrInvalidCSV, line, h, err)
			}
			ticker := strings.ToUpper(strings.TrimSpace(h))
			out[ticker] = append(out[ticker], DailyPrice{Date: date, Close: price})
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no prices", ErrInvalidCSV)
	}
	for ticker := range out {
		sort.SliceStable(out[ticker], func(i, j int) bool {
			return out[ticker][i].Date < out[ticker][j].Date
		})
	}
	return out, nil
}

func parseLongRecord(record []string, cols map[string]int, date string) (DailyPrice, string, error) {
	ticker := strings.ToUpper(strings.TrimSpace(record[cols["ticker"]]))
	if ticker == "" {
		return DailyPrice{}, "", fmt.Errorf("empty ticker")
	}
	price, err := parsePrice(record[cols["close"]])
	if err != nil {
		return DailyPrice{}, "", err
	}
	p := DailyPrice{Date: date, Close: price}

	if i, ok := cols["adjusted_close"]; ok && strings.TrimSpace(record[i]) != "" {
		adj, err := parsePrice(record[i])
		if err != nil {
			return DailyPrice{}, "", err
		}
		p.AdjustedClose = &adj
	}
	if i, ok := cols["volume"]; ok && strings.TrimSpace(record[i]) != "" {
		v, err := strconv.ParseInt(strings.TrimSpace(record[i]), 10, 64)
		if err != nil {
			return DailyPrice{}, "", fmt.Errorf("invalid volume %q", record[i])
		}
		p.Volume = &v
	}
	return p, ticker, nil
}

func parsePrice(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	if v <= 0 {
		return 0, fmt.Errorf("non-positive price %v", v)
	}
	return v, nil
}

// normalizeDate accepts YYYY-MM-DD with an optional time part.
func normalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q", s)
	}
	return t.Format(DateLayout), nil
}
