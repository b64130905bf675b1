package util

import (
    "strconv"
    "testing"
    "time"
)

func TestParseDateISO(t *testing.T) {
    got, ok := ParseDate("2023-03-31")
    if !ok {
        t.Fatalf("expected ok")
    }
    want := time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC)
    if !got.Equal(want) {
        t.Fatalf("unexpected time %v", got)
    }
}

func TestParseDateRFC3339(t *testing.T) {
    s := "2024-10-10T10:10:10Z"
    got, ok := ParseDate(s)
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.Format(time.RFC3339) != s {
        t.Fatalf("unexpected time %v", got)
    }
}

func TestParseDateUnix(t *testing.T) {
    ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
    got, ok := ParseDate(strconv.FormatInt(ts, 10))
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.Unix() != ts {
        t.Fatalf("unexpected unix %v", got.Unix())
    }
}

func TestParseDateDefault(t *testing.T) {
    def := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
    if got := ParseDateDefault("not-a-date", def); !got.Equal(def) {
        t.Fatalf("expected default, got %v", got)
    }
}

func TestMonthEnd(t *testing.T) {
    got := MonthEnd(time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC))
    want := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
    if !got.Equal(want) {
        t.Fatalf("MonthEnd = %v, want %v", got, want)
    }
}

func TestNextMonthEnds(t *testing.T) {
    // last observation already on a month end: the next one starts in the following month
    got := NextMonthEnds(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), 3)
    want := []time.Time{
        time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
        time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
        time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
    }
    if len(got) != len(want) {
        t.Fatalf("len = %d, want %d", len(got), len(want))
    }
    for i := range want {
        if !got[i].Equal(want[i]) {
            t.Fatalf("point %d = %v, want %v", i, got[i], want[i])
        }
    }

    mid := NextMonthEnds(time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC), 1)
    if !mid[0].Equal(time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)) {
        t.Fatalf("mid-month start = %v", mid[0])
    }
    if NextMonthEnds(time.Now(), 0) != nil {
        t.Fatalf("expected nil for n=0")
    }
}
