package client

import (
	"fmt"
	"time"
)

const (
	monthLayout = "2006-01"
	dateLayout  = "2006-01-02"
)

// MonthBoundary is one calendar month within a report range. Start and
// End are the first and last day formatted as "YYYY-MM-DD"; Period is
// the "YYYY-MM" label.
type MonthBoundary struct {
	Start  string
	End    string
	Period string
}

// monthBoundaries decomposes [startMonth, endMonth] inclusive into
// ordered per-month boundaries. Both arguments are "YYYY-MM". A
// malformed month or an inverted range is a caller error.
func monthBoundaries(startMonth, endMonth string) ([]MonthBoundary, error) {
	start, err := time.Parse(monthLayout, startMonth)
	if err != nil {
		return nil, fmt.Errorf("invalid month format: expected YYYY-MM, got %q", startMonth)
	}
	end, err := time.Parse(monthLayout, endMonth)
	if err != nil {
		return nil, fmt.Errorf("invalid month format: expected YYYY-MM, got %q", endMonth)
	}
	if start.After(end) {
		return nil, fmt.Errorf("start month %q is after end month %q", startMonth, endMonth)
	}

	var boundaries []MonthBoundary
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 1, 0) {
		lastDay := cur.AddDate(0, 1, -1)
		boundaries = append(boundaries, MonthBoundary{
			Start:  cur.Format(dateLayout),
			End:    lastDay.Format(dateLayout),
			Period: cur.Format(monthLayout),
		})
	}
	return boundaries, nil
}
