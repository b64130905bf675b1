package util

import (
    "strconv"
    "time"
)

// dateLayouts are tried in order by ParseDate.
var dateLayouts = []string{
    "2006-01-02",
    time.RFC3339,
    time.RFC3339Nano,
    "2006-01-02 15:04:05",
    "02-01-2006",
    "2006/01/02",
}

// ParseDate tries the common CSV/ISO layouts and unix seconds. Returns (t, true) if any worked.
// Results are always in UTC.
func ParseDate(s string) (time.Time, bool) {
    if s == "" {
        return time.Time{}, false
    }
    for _, layout := range dateLayouts {
        if t, err := time.Parse(layout, s); err == nil {
            return t.UTC(), true
        }
    }
    if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
        return time.Unix(ts, 0).UTC(), true
    }
    return time.Time{}, false
}

// ParseDateDefault parses a date or returns def if empty/invalid.
func ParseDateDefault(s string, def time.Time) time.Time {
    if t, ok := ParseDate(s); ok {
        return t
    }
    return def
}

// MonthEnd returns the last calendar day of t's month at midnight UTC.
func MonthEnd(t time.Time) time.Time {
    t = t.UTC()
    first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
    return first.AddDate(0, 1, -1)
}

// NextMonthEnds returns n consecutive month-end dates strictly after t.
func NextMonthEnds(t time.Time, n int) []time.Time {
    if n <= 0 {
        return nil
    }
    out := make([]time.Time, 0, n)
    cur := MonthEnd(t)
    if !cur.After(t.UTC()) {
        first := time.Date(cur.Year(), cur.Month(), 1, 0, 0, 0, 0, time.UTC)
        cur = MonthEnd(first.AddDate(0, 1, 0))
    }
    for len(out) < n {
        out = append(out, cur)
        first := time.Date(cur.Year(), cur.Month(), 1, 0, 0, 0, 0, time.UTC)
        cur = MonthEnd(first.AddDate(0, 1, 0))
    }
    return out
}

// DaysBetween returns the fractional number of days from a to b.
func DaysBetween(a, b time.Time) float64 {
    return b.Sub(a).Hours() / 24
}
