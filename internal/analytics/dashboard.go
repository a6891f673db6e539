package analytics

import "time"

// OverallStats aggregates the full session history.
type OverallStats struct {
	TotalStudyTime          int     `json:"totalStudyTime"`
	TotalSessions           int     `json:"totalSessions"`
	AverageFocusRating      float64 `json:"averageFocusRating"`
	AverageDifficultyRating float64 `json:"averageDifficultyRating"`
}

// PeriodStats aggregates one calendar partition. GoalProgress is
// present only on partitions that have a configured goal (today,
// thisWeek); it is an unclamped percentage, 0 when the goal is 0.
type PeriodStats struct {
	StudyTime    int      `json:"studyTime"`
	Sessions     int      `json:"sessions"`
	GoalProgress *float64 `json:"goalProgress,omitempty"`
}

// DashboardPeriods holds the calendar partitions of the dashboard.
type DashboardPeriods struct {
	Today     PeriodStats `json:"today"`
	ThisWeek  PeriodStats `json:"thisWeek"`
	ThisMonth PeriodStats `json:"thisMonth"`
	ThisYear  PeriodStats `json:"thisYear"`
}

// Dashboard is the dashboard summary report.
type Dashboard struct {
	Overall OverallStats     `json:"overall"`
	Periods DashboardPeriods `json:"periods"`
	Goals   Goals            `json:"goals"`
}

// DashboardSummary partitions sessions into all-time, today,
// this-week (Sunday 00:00 start), this-month, and this-year by
// session start time in now's location, and reports totals, counts,
// and goal progress per partition.
func DashboardSummary(
	sessions []Session, goals Goals, now time.Time,
) Dashboard {
	loc := now.Location()
	y, m, d := now.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, loc)
	weekStart := dayStart.AddDate(0, 0, -int(now.Weekday()))
	monthStart := time.Date(y, m, 1, 0, 0, 0, 0, loc)
	yearStart := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)

	var dash Dashboard
	var focusSum, difficultySum int

	accumulate := func(p *PeriodStats, s Session) {
		p.StudyTime += s.Duration
		p.Sessions++
	}

	for _, s := range sessions {
		st := s.StartTime.In(loc)

		dash.Overall.TotalStudyTime += s.Duration
		dash.Overall.TotalSessions++
		focusSum += s.FocusRating
		difficultySum += s.DifficultyRating

		// A session dated past now counts toward the overall totals
		// only, never a calendar partition.
		if st.After(now) {
			continue
		}
		if !st.Before(dayStart) {
			accumulate(&dash.Periods.Today, s)
		}
		if !st.Before(weekStart) {
			accumulate(&dash.Periods.ThisWeek, s)
		}
		if !st.Before(monthStart) {
			accumulate(&dash.Periods.ThisMonth, s)
		}
		if !st.Before(yearStart) {
			accumulate(&dash.Periods.ThisYear, s)
		}
	}

	dash.Overall.AverageFocusRating =
		safeAvg(focusSum, dash.Overall.TotalSessions)
	dash.Overall.AverageDifficultyRating =
		safeAvg(difficultySum, dash.Overall.TotalSessions)

	todayProgress := goalProgress(
		dash.Periods.Today.StudyTime, goals.DailyStudyTime,
	)
	dash.Periods.Today.GoalProgress = &todayProgress
	weekProgress := goalProgress(
		dash.Periods.ThisWeek.StudyTime, goals.WeeklyStudyTime,
	)
	dash.Periods.ThisWeek.GoalProgress = &weekProgress

	dash.Goals = goals
	return dash
}

// goalProgress returns studied/goal as an unclamped percentage.
// Values above 100 are valid signal; a zero or absent goal yields 0.
func goalProgress(studied, goal int) float64 {
	if goal <= 0 {
		return 0
	}
	return round2(float64(studied) / float64(goal) * 100)
}
