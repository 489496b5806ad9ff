package model

import (
	"math"
	"strings"
	"time"
)

// dateLayouts covers the spellings shop-floor extracts have been seen to use.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"2006/01/02",
	"01-02-2006",
	"02-Jan-06",
	"Jan 2, 2006",
	"January 2, 2006",
}

// Excel stores dates as day counts from the 1900 epoch. Serial 1 is
// 1900-01-01, which places the epoch at 1899-12-30 (the off-by-two is the
// historical Lotus leap-year bug).
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// ParseDate extracts the date component from a cell. Unparseable values
// report ok=false and never poison an aggregation.
func ParseDate(c Cell) (time.Time, bool) {
	switch c.Kind {
	case CellDate:
		return c.Date, true
	case CellNumber:
		return fromExcelSerial(c.Number)
	case CellText:
		s := strings.TrimSpace(c.Text)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				y, m, d := t.Date()
				return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
			}
		}
		return time.Time{}, false
	}
	return time.Time{}, false
}

// fromExcelSerial converts an Excel date serial. Values outside the window
// 1930..2100 are treated as plain numbers, not dates.
func fromExcelSerial(f float64) (time.Time, bool) {
	if f < 11000 || f > 73414 || math.IsNaN(f) {
		return time.Time{}, false
	}
	days := int(math.Floor(f))
	t := excelEpoch.AddDate(0, 0, days)
	return t, true
}
