package analytics

import (
	"sort"
	"time"
)

// HourBucket is one hour-of-day slot, 0-23.
type HourBucket struct {
	Hour         int     `json:"hour"`
	SessionCount int     `json:"sessionCount"`
	TotalTime    int     `json:"totalTime"`
	AvgFocus     float64 `json:"avgFocus"`
}

// DayBucket is one day-of-week slot, Sunday=1 through Saturday=7.
type DayBucket struct {
	Day          int     `json:"day"`
	SessionCount int     `json:"sessionCount"`
	TotalTime    int     `json:"totalTime"`
	AvgFocus     float64 `json:"avgFocus"`
}

// FocusDifficultyCell is one (focus, difficulty) pair. The grid is
// sparse: only pairs with sessions appear.
type FocusDifficultyCell struct {
	FocusRating      int     `json:"focusRating"`
	DifficultyRating int     `json:"difficultyRating"`
	Count            int     `json:"count"`
	AvgDuration      float64 `json:"avgDuration"`
}

// MethodEffectiveness aggregates sessions per study method.
type MethodEffectiveness struct {
	Method        string  `json:"method"`
	SessionCount  int     `json:"sessionCount"`
	TotalTime     int     `json:"totalTime"`
	AvgFocus      float64 `json:"avgFocus"`
	AvgDifficulty float64 `json:"avgDifficulty"`
}

// LocationEffectiveness aggregates sessions per location.
type LocationEffectiveness struct {
	Location      string  `json:"location"`
	SessionCount  int     `json:"sessionCount"`
	TotalTime     int     `json:"totalTime"`
	AvgFocus      float64 `json:"avgFocus"`
	AvgDifficulty float64 `json:"avgDifficulty"`
}

// Patterns groups the five behavioral breakdowns.
type Patterns struct {
	HourlyDistribution       []HourBucket            `json:"hourlyDistribution"`
	DailyDistribution        []DayBucket             `json:"dailyDistribution"`
	FocusVsDifficulty        []FocusDifficultyCell   `json:"focusVsDifficulty"`
	StudyMethodEffectiveness []MethodEffectiveness   `json:"studyMethodEffectiveness"`
	LocationEffectiveness    []LocationEffectiveness `json:"locationEffectiveness"`
}

// PatternReport is the pattern-analysis response.
type PatternReport struct {
	DateRange DateRange `json:"dateRange"`
	Patterns  Patterns  `json:"patterns"`
}

// effectivenessAccum is the shared accumulator for the method and
// location breakdowns.
type effectivenessAccum struct {
	sessionCount  int
	totalTime     int
	focusSum      int
	difficultySum int
}

// PatternAnalysis computes hour-of-day and day-of-week distributions
// (zero-filled), the sparse focus-vs-difficulty grid, and
// effectiveness per study method and location, over sessions in
// [now-windowDays, now]. Times bucket in now's location.
func PatternAnalysis(
	sessions []Session, windowDays int, now time.Time,
) (PatternReport, error) {
	if windowDays <= 0 {
		return PatternReport{}, ErrInvalidWindow
	}

	windowStart, dateRange := windowRange(now, windowDays)
	loc := now.Location()

	hours := make([]HourBucket, 24)
	hourFocus := make([]int, 24)
	for h := range hours {
		hours[h].Hour = h
	}
	days := make([]DayBucket, 7)
	dayFocus := make([]int, 7)
	for d := range days {
		days[d].Day = d + 1
	}

	type pair struct{ focus, difficulty int }
	grid := make(map[pair]*FocusDifficultyCell)
	gridDuration := make(map[pair]int)
	methods := make(map[string]*effectivenessAccum)
	locations := make(map[string]*effectivenessAccum)

	for _, s := range sessions {
		if !inWindow(s, windowStart, now) {
			continue
		}
		st := s.StartTime.In(loc)

		h := st.Hour()
		hours[h].SessionCount++
		hours[h].TotalTime += s.Duration
		hourFocus[h] += s.FocusRating

		d := int(st.Weekday()) // Sunday=0
		days[d].SessionCount++
		days[d].TotalTime += s.Duration
		dayFocus[d] += s.FocusRating

		p := pair{s.FocusRating, s.DifficultyRating}
		cell, ok := grid[p]
		if !ok {
			cell = &FocusDifficultyCell{
				FocusRating:      p.focus,
				DifficultyRating: p.difficulty,
			}
			grid[p] = cell
		}
		cell.Count++
		gridDuration[p] += s.Duration

		accumulate(methods, s.StudyMethod, s)
		accumulate(locations, s.Location, s)
	}

	for h := range hours {
		hours[h].AvgFocus = safeAvg(hourFocus[h], hours[h].SessionCount)
	}
	for d := range days {
		days[d].AvgFocus = safeAvg(dayFocus[d], days[d].SessionCount)
	}

	cells := make([]FocusDifficultyCell, 0, len(grid))
	for p, cell := range grid {
		cell.AvgDuration = safeAvg(gridDuration[p], cell.Count)
		cells = append(cells, *cell)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].FocusRating != cells[j].FocusRating {
			return cells[i].FocusRating < cells[j].FocusRating
		}
		return cells[i].DifficultyRating < cells[j].DifficultyRating
	})

	methodList := make([]MethodEffectiveness, 0, len(methods))
	for method, acc := range methods {
		methodList = append(methodList, MethodEffectiveness{
			Method:        method,
			SessionCount:  acc.sessionCount,
			TotalTime:     acc.totalTime,
			AvgFocus:      safeAvg(acc.focusSum, acc.sessionCount),
			AvgDifficulty: safeAvg(acc.difficultySum, acc.sessionCount),
		})
	}
	sort.Slice(methodList, func(i, j int) bool {
		if methodList[i].AvgFocus != methodList[j].AvgFocus {
			return methodList[i].AvgFocus > methodList[j].AvgFocus
		}
		return methodList[i].Method < methodList[j].Method
	})

	locationList := make([]LocationEffectiveness, 0, len(locations))
	for location, acc := range locations {
		locationList = append(locationList, LocationEffectiveness{
			Location:      location,
			SessionCount:  acc.sessionCount,
			TotalTime:     acc.totalTime,
			AvgFocus:      safeAvg(acc.focusSum, acc.sessionCount),
			AvgDifficulty: safeAvg(acc.difficultySum, acc.sessionCount),
		})
	}
	sort.Slice(locationList, func(i, j int) bool {
		if locationList[i].AvgFocus != locationList[j].AvgFocus {
			return locationList[i].AvgFocus > locationList[j].AvgFocus
		}
		return locationList[i].Location < locationList[j].Location
	})

	return PatternReport{
		DateRange: dateRange,
		Patterns: Patterns{
			HourlyDistribution:       hours,
			DailyDistribution:        days,
			FocusVsDifficulty:        cells,
			StudyMethodEffectiveness: methodList,
			LocationEffectiveness:    locationList,
		},
	}, nil
}

// accumulate adds one session to the keyed effectiveness bucket.
func accumulate(
	accums map[string]*effectivenessAccum, key string, s Session,
) {
	acc, ok := accums[key]
	if !ok {
		acc = &effectivenessAccum{}
		accums[key] = acc
	}
	acc.sessionCount++
	acc.totalTime += s.Duration
	acc.focusSum += s.FocusRating
	acc.difficultySum += s.DifficultyRating
}
