package analytics

import (
	"sort"
	"time"
)

// SubjectRef is the subject metadata echoed in a breakdown entry.
type SubjectRef struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Color      string `json:"color"`
	WeeklyGoal int    `json:"weeklyGoal"`
}

// SubjectBreakdown is the per-subject rollup for the window.
type SubjectBreakdown struct {
	Subject            SubjectRef `json:"subject"`
	TotalTime          int        `json:"totalTime"`
	SessionCount       int        `json:"sessionCount"`
	AvgFocus           float64    `json:"avgFocus"`
	AvgDifficulty      float64    `json:"avgDifficulty"`
	PreferredMethods   []string   `json:"preferredMethods"`
	PreferredLocations []string   `json:"preferredLocations"`
	TimePercentage     float64    `json:"timePercentage"`
	SessionPercentage  float64    `json:"sessionPercentage"`
}

// SubjectSummary totals the window across all subjects.
type SubjectSummary struct {
	TotalStudyTime int `json:"totalStudyTime"`
	TotalSessions  int `json:"totalSessions"`
	SubjectCount   int `json:"subjectCount"`
}

// SubjectReport is the subject-analytics response.
type SubjectReport struct {
	DateRange DateRange          `json:"dateRange"`
	Summary   SubjectSummary     `json:"summary"`
	Subjects  []SubjectBreakdown `json:"subjects"`
}

// subjectAccum collects per-subject sums before percentages are
// computed against the cross-subject totals.
type subjectAccum struct {
	breakdown     SubjectBreakdown
	focusSum      int
	difficultySum int
	methods       *frequencyCounter
	locations     *frequencyCounter
}

// SubjectAnalytics rolls sessions in [now-windowDays, now] up by
// subject: totals, averages, top-3 preferred methods and locations,
// and time/session percentages relative to the window total. Sorted
// descending by total time; equal totals keep first-encountered
// order. Sessions whose subject is absent from subjects are skipped.
func SubjectAnalytics(
	sessions []Session, subjects []Subject,
	windowDays int, now time.Time,
) (SubjectReport, error) {
	if windowDays <= 0 {
		return SubjectReport{}, ErrInvalidWindow
	}

	windowStart, dateRange := windowRange(now, windowDays)

	refs := make(map[string]SubjectRef, len(subjects))
	for _, sub := range subjects {
		refs[sub.ID] = SubjectRef{
			ID:         sub.ID,
			Name:       sub.Name,
			Color:      sub.Color,
			WeeklyGoal: sub.WeeklyGoal,
		}
	}

	accums := make(map[string]*subjectAccum)
	var order []string
	report := SubjectReport{DateRange: dateRange}

	for _, s := range sessions {
		if !inWindow(s, windowStart, now) {
			continue
		}
		ref, ok := refs[s.SubjectID]
		if !ok {
			continue
		}

		acc, ok := accums[s.SubjectID]
		if !ok {
			acc = &subjectAccum{
				breakdown: SubjectBreakdown{Subject: ref},
				methods:   newFrequencyCounter(),
				locations: newFrequencyCounter(),
			}
			accums[s.SubjectID] = acc
			order = append(order, s.SubjectID)
		}

		acc.breakdown.TotalTime += s.Duration
		acc.breakdown.SessionCount++
		acc.focusSum += s.FocusRating
		acc.difficultySum += s.DifficultyRating
		acc.methods.add(s.StudyMethod)
		acc.locations.add(s.Location)

		report.Summary.TotalStudyTime += s.Duration
		report.Summary.TotalSessions++
	}

	report.Summary.SubjectCount = len(accums)
	report.Subjects = make([]SubjectBreakdown, 0, len(accums))
	for _, id := range order {
		acc := accums[id]
		b := acc.breakdown
		b.AvgFocus = safeAvg(acc.focusSum, b.SessionCount)
		b.AvgDifficulty = safeAvg(acc.difficultySum, b.SessionCount)
		b.PreferredMethods = acc.methods.top(3)
		b.PreferredLocations = acc.locations.top(3)
		b.TimePercentage = safePct(
			b.TotalTime, report.Summary.TotalStudyTime,
		)
		b.SessionPercentage = safePct(
			b.SessionCount, report.Summary.TotalSessions,
		)
		report.Subjects = append(report.Subjects, b)
	}

	sort.SliceStable(report.Subjects, func(i, j int) bool {
		return report.Subjects[i].TotalTime > report.Subjects[j].TotalTime
	})

	return report, nil
}

// frequencyCounter counts values preserving first-encountered order,
// so frequency ties resolve to the value seen first.
type frequencyCounter struct {
	counts map[string]int
	order  []string
}

func newFrequencyCounter() *frequencyCounter {
	return &frequencyCounter{counts: make(map[string]int)}
}

func (c *frequencyCounter) add(v string) {
	if _, ok := c.counts[v]; !ok {
		c.order = append(c.order, v)
	}
	c.counts[v]++
}

// top returns the n most frequent values, descending by count,
// first-encountered order on ties.
func (c *frequencyCounter) top(n int) []string {
	ranked := append([]string(nil), c.order...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return c.counts[ranked[i]] > c.counts[ranked[j]]
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
