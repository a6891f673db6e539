package analytics

import (
	"fmt"
	"time"
)

// TimeSeriesPoint is one calendar bucket in a time series.
type TimeSeriesPoint struct {
	Date          string  `json:"date"`
	TotalTime     int     `json:"totalTime"`
	SessionCount  int     `json:"sessionCount"`
	AvgFocus      float64 `json:"avgFocus"`
	AvgDifficulty float64 `json:"avgDifficulty"`
}

// TimeSeriesReport is the bucketed time-series response.
type TimeSeriesReport struct {
	Period    string            `json:"period"`
	DateRange DateRange         `json:"dateRange"`
	Data      []TimeSeriesPoint `json:"data"`
}

// bucketKey maps an instant to its calendar bucket label. The same
// function generates the zero-filled range and assigns sessions, so
// the two can never disagree at year boundaries.
func bucketKey(t time.Time, period string) string {
	switch period {
	case PeriodWeekly:
		// ISO-8601 week; the year is the ISO year, which differs
		// from the calendar year around January 1.
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case PeriodMonthly:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

// TimeSeries buckets sessions into every calendar unit between start
// and end inclusive. Buckets with no sessions are zero-filled: the
// output always has one entry per unit in range, in ascending
// chronological order.
func TimeSeries(
	sessions []Session, period string, start, end time.Time,
) (TimeSeriesReport, error) {
	switch period {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
	default:
		return TimeSeriesReport{},
			fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	if start.After(end) {
		return TimeSeriesReport{}, ErrInvalidRange
	}

	loc := start.Location()
	y, m, d := start.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, loc)
	ey, em, ed := end.Date()
	dayEnd := time.Date(ey, em, ed, 0, 0, 0, 0, loc)

	// Walk the range day-by-day and open a bucket whenever the key
	// changes. One loop serves all three periods.
	index := make(map[string]int)
	var points []TimeSeriesPoint
	for day := dayStart; !day.After(dayEnd); day = day.AddDate(0, 0, 1) {
		key := bucketKey(day, period)
		if _, ok := index[key]; ok {
			continue
		}
		index[key] = len(points)
		points = append(points, TimeSeriesPoint{Date: key})
	}

	// The range covers the end date in full, so it closes at midnight
	// of the following day, exclusive.
	rangeEnd := dayEnd.AddDate(0, 0, 1)

	focusSums := make([]int, len(points))
	difficultySums := make([]int, len(points))
	for _, s := range sessions {
		st := s.StartTime.In(loc)
		if st.Before(dayStart) || !st.Before(rangeEnd) {
			continue
		}
		i, ok := index[bucketKey(st, period)]
		if !ok {
			continue
		}
		points[i].TotalTime += s.Duration
		points[i].SessionCount++
		focusSums[i] += s.FocusRating
		difficultySums[i] += s.DifficultyRating
	}

	for i := range points {
		points[i].AvgFocus = safeAvg(focusSums[i], points[i].SessionCount)
		points[i].AvgDifficulty = safeAvg(
			difficultySums[i], points[i].SessionCount,
		)
	}

	return TimeSeriesReport{
		Period: period,
		DateRange: DateRange{
			Start: dayStart.Format("2006-01-02"),
			End:   dayEnd.Format("2006-01-02"),
		},
		Data: points,
	}, nil
}
