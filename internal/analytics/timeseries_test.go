package analytics

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTimeSeries_DailyZeroFill(t *testing.T) {
	start := at(t, "2025-06-16T00:00:00Z")
	end := at(t, "2025-06-18T00:00:00Z")
	sessions := []Session{
		sess(t, "2025-06-16T10:00:00Z", 50, func(s *Session) {
			s.FocusRating = 8
			s.DifficultyRating = 6
		}),
	}

	report, err := TimeSeries(sessions, PeriodDaily, start, end)
	if err != nil {
		t.Fatalf("TimeSeries: %v", err)
	}

	want := []TimeSeriesPoint{
		{Date: "2025-06-16", TotalTime: 50, SessionCount: 1,
			AvgFocus: 8, AvgDifficulty: 6},
		{Date: "2025-06-17"},
		{Date: "2025-06-18"},
	}
	if diff := cmp.Diff(want, report.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
	if report.DateRange.Start != "2025-06-16" ||
		report.DateRange.End != "2025-06-18" {
		t.Errorf("dateRange = %+v", report.DateRange)
	}
}

func TestTimeSeries_WeeklyYearBoundary(t *testing.T) {
	// 2024-12-30 through 2025-01-05 is a single ISO week, 2025-W01.
	start := at(t, "2024-12-30T00:00:00Z")
	end := at(t, "2025-01-05T00:00:00Z")
	sessions := []Session{
		sess(t, "2024-12-31T10:00:00Z", 40),
		sess(t, "2025-01-02T10:00:00Z", 20),
	}

	report, err := TimeSeries(sessions, PeriodWeekly, start, end)
	if err != nil {
		t.Fatalf("TimeSeries: %v", err)
	}
	if len(report.Data) != 1 {
		t.Fatalf("got %d buckets, want 1", len(report.Data))
	}
	p := report.Data[0]
	if p.Date != "2025-W01" {
		t.Errorf("bucket = %q, want 2025-W01", p.Date)
	}
	if p.TotalTime != 60 || p.SessionCount != 2 {
		t.Errorf("bucket totals = %d min / %d sessions, want 60/2",
			p.TotalTime, p.SessionCount)
	}
}

func TestTimeSeries_MonthlyBucketCount(t *testing.T) {
	start := at(t, "2025-01-15T00:00:00Z")
	end := at(t, "2025-03-10T00:00:00Z")

	report, err := TimeSeries(nil, PeriodMonthly, start, end)
	if err != nil {
		t.Fatalf("TimeSeries: %v", err)
	}
	var dates []string
	for _, p := range report.Data {
		dates = append(dates, p.Date)
	}
	want := []string{"2025-01", "2025-02", "2025-03"}
	if diff := cmp.Diff(want, dates); diff != "" {
		t.Errorf("buckets mismatch (-want +got):\n%s", diff)
	}
}

func TestTimeSeries_SessionOutsideRangeIgnored(t *testing.T) {
	start := at(t, "2025-06-10T00:00:00Z")
	end := at(t, "2025-06-12T00:00:00Z")
	sessions := []Session{
		sess(t, "2025-06-01T10:00:00Z", 50),
		sess(t, "2025-06-11T10:00:00Z", 30),
	}

	report, err := TimeSeries(sessions, PeriodDaily, start, end)
	if err != nil {
		t.Fatalf("TimeSeries: %v", err)
	}
	var total int
	for _, p := range report.Data {
		total += p.TotalTime
	}
	if total != 30 {
		t.Errorf("total = %d, want 30", total)
	}
}

func TestTimeSeries_EndBoundaryExclusive(t *testing.T) {
	// The end date is covered through 23:59:59; midnight of the next
	// day is out of range even when that instant's week or month
	// bucket key matches the end day's.
	start := at(t, "2025-06-09T00:00:00Z")
	end := at(t, "2025-06-11T00:00:00Z")
	sessions := []Session{
		sess(t, "2025-06-11T23:30:00Z", 30), // last half hour in range
		sess(t, "2025-06-12T00:00:00Z", 60), // same ISO week, out of range
	}

	for _, period := range []string{PeriodDaily, PeriodWeekly, PeriodMonthly} {
		report, err := TimeSeries(sessions, period, start, end)
		if err != nil {
			t.Fatalf("TimeSeries(%s): %v", period, err)
		}
		var total, count int
		for _, p := range report.Data {
			total += p.TotalTime
			count += p.SessionCount
		}
		if total != 30 || count != 1 {
			t.Errorf("%s: totals = %d min / %d sessions, want 30/1",
				period, total, count)
		}
	}
}

func TestTimeSeries_Errors(t *testing.T) {
	start := at(t, "2025-06-10T00:00:00Z")
	end := at(t, "2025-06-12T00:00:00Z")

	if _, err := TimeSeries(nil, "hourly", start, end); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("period error = %v, want ErrInvalidPeriod", err)
	}
	if _, err := TimeSeries(nil, PeriodDaily, end, start); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("range error = %v, want ErrInvalidRange", err)
	}
}

func TestBucketKey_Stability(t *testing.T) {
	// Generation and matching share one key function, so a session
	// must land in a generated bucket at every period.
	instant := at(t, "2024-12-31T10:00:00Z")
	for _, period := range []string{
		PeriodDaily, PeriodWeekly, PeriodMonthly,
	} {
		report, err := TimeSeries(
			[]Session{sess(t, "2024-12-31T10:00:00Z", 15)},
			period, instant.AddDate(0, 0, -3), instant.AddDate(0, 0, 3),
		)
		if err != nil {
			t.Fatalf("TimeSeries(%s): %v", period, err)
		}
		var count int
		for _, p := range report.Data {
			count += p.SessionCount
		}
		if count != 1 {
			t.Errorf("%s: session landed in %d buckets, want 1",
				period, count)
		}
	}
}
