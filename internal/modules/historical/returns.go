package historical

import (
	"fmt"
	"time"

	"github.com/aristath/allocator/pkg/formulas"
)

// PeriodReturn is the fractional return of one period, labelled by the
// last trading date in that period.
type PeriodReturn struct {
	Date   string  `json:"date"`
	Return float64 `json:"return"`
}

// ToReturns converts an ascending price series into period returns.
//
// Daily returns are simple percentage changes between consecutive prices.
// Weekly (ISO week) and monthly returns compound the daily returns falling in
// each period: Π(1+r) − 1. The first price only serves as a base.
func ToReturns(prices []DailyPrice, freq formulas.Frequency) ([]PeriodReturn, error) {
	dates := make([]string, len(prices))
	closes := make([]float64, len(prices))
	for i, p := range prices {
		dates[i] = p.Date
		closes[i] = p.Price()
	}

	labels, values, err := periodReturns(dates, closes, freq)
	if err != nil {
		return nil, err
	}

	out := make([]PeriodReturn, len(values))
	for i := range values {
		out[i] = PeriodReturn{Date: labels[i], Return: values[i]}
	}
	return out, nil
}

// periodReturns works on parallel date/price slices so aligned tickers share
// one grouping.
func periodReturns(dates []string, closes []float64, freq formulas.Frequency) ([]string, []float64, error) {
	if _, err := formulas.AnnualizationFactor(freq); err != nil {
		return nil, nil, err
	}
	if len(dates) < 2 {
		return []string{}, []float64{}, nil
	}

	labels := make([]string, 0, len(dates)-1)
	values := make([]float64, 0, len(dates)-1)
	prevKey := ""

	for i := 1; i < len(dates); i++ {
		if closes[i-1] <= 0 {
			return nil, nil, fmt.Errorf("non-positive price on %s", dates[i-1])
		}
		r := closes[i]/closes[i-1] - 1

		if freq == formulas.Daily {
			labels = append(labels, dates[i])
			values = append(values, r)
			continue
		}

		key, err := periodKey(dates[i], freq)
		if err != nil {
			return nil, nil, err
		}
		if key != prevKey {
			labels = append(labels, dates[i])
			values = append(values, r)
			prevKey = key
			continue
		}
		last := len(values) - 1
		values[last] = (1+values[last])*(1+r) - 1
		labels[last] = dates[i]
	}

	return labels, values, nil
}

func periodKey(date string, freq formulas.Frequency) (string, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	switch freq {
	case formulas.Weekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week), nil
	case formulas.Monthly:
		return t.Format("2006-01"), nil
	}
	return date, nil
}
