package query

import (
	"time"

	"github.com/liamw1/oxibooru/common"
)

// ParseDate resolves a date value (spec.md §4.D: "today, yesterday,
// YYYY, YYYY-MM, YYYY-MM-DD") into the half-open [start, end) instant
// range it denotes, relative to now's location.
func ParseDate(s string, now time.Time) (start, end time.Time, err error) {
	loc := now.Location()
	switch s {
	case "today":
		start = truncateDay(now)
		return start, start.AddDate(0, 0, 1), nil
	case "yesterday":
		start = truncateDay(now).AddDate(0, 0, -1)
		return start, start.AddDate(0, 0, 1), nil
	}

	for _, layout := range []struct {
		format string
		step   func(time.Time) time.Time
	}{
		{"2006-01-02", func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }},
		{"2006-01", func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }},
		{"2006", func(t time.Time) time.Time { return t.AddDate(1, 0, 0) }},
	} {
		if t, e := time.ParseInLocation(layout.format, s, loc); e == nil {
			return t, layout.step(t), nil
		}
	}

	return time.Time{}, time.Time{}, common.NewErrorf(common.KindMalformedInput,
		"malformed date %q", s)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
