// Package analytics computes dashboard summaries, time-series
// buckets, per-subject rollups, and behavioral pattern statistics
// from study-session records.
//
// Every function is a pure transform over in-memory slices: the
// caller fetches the records (already scoped to one user and, where
// applicable, a date window) and the engine returns structured
// reports. Empty input is never an error; every metric degrades to
// zero or an empty list.
package analytics

import (
	"errors"
	"math"
	"time"
)

// Periods accepted by TimeSeries.
const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
)

// ErrInvalidPeriod is returned for a period outside
// {daily, weekly, monthly}.
var ErrInvalidPeriod = errors.New("invalid period")

// ErrInvalidRange is returned when a date range ends before it starts.
var ErrInvalidRange = errors.New("start must not be after end")

// ErrInvalidWindow is returned for a non-positive day window.
var ErrInvalidWindow = errors.New("window days must be positive")

// StudyMethods is the fixed set of valid study methods.
var StudyMethods = []string{
	"reading", "practice_problems", "notes", "video",
	"discussion", "research", "review", "other",
}

// Locations is the fixed set of valid study locations.
var Locations = []string{
	"library", "home", "cafe", "classroom", "outdoor", "other",
}

// Session is one timed study event, pre-validated and scoped to a
// single user by the caller.
type Session struct {
	ID               string
	SubjectID        string
	StartTime        time.Time
	EndTime          time.Time
	Duration         int // minutes
	StudyMethod      string
	Location         string
	FocusRating      int // 1-10
	DifficultyRating int // 1-10
	TotalBreakTime   int // minutes
	BreakCount       int
}

// Subject carries the subject metadata echoed in reports.
type Subject struct {
	ID         string
	Name       string
	Color      string
	WeeklyGoal int // minutes
}

// Goals holds the user's configured study-time goals in minutes.
type Goals struct {
	DailyStudyTime  int `json:"dailyStudyTime"`
	WeeklyStudyTime int `json:"weeklyStudyTime"`
}

// DateRange labels the window a report covers (YYYY-MM-DD, inclusive).
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// round2 rounds to 2 decimal places, the output precision for all
// averages and percentages.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// safeAvg returns sum/count rounded to 2 decimals, or 0 for an
// empty count. Averages never emit NaN or Infinity.
func safeAvg(sum, count int) float64 {
	if count == 0 {
		return 0
	}
	return round2(float64(sum) / float64(count))
}

// safePct returns part/total as a 2-decimal percentage, or 0 when
// total is 0.
func safePct(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

// windowRange returns the [now-days, now] bounds and their date
// labels in now's location.
func windowRange(now time.Time, days int) (time.Time, DateRange) {
	start := now.AddDate(0, 0, -days)
	return start, DateRange{
		Start: start.Format("2006-01-02"),
		End:   now.Format("2006-01-02"),
	}
}

// inWindow reports whether a session starts within [start, now].
func inWindow(s Session, start, now time.Time) bool {
	return !s.StartTime.Before(start) && !s.StartTime.After(now)
}
