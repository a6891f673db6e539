package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/asifchowdhury1/studysync/internal/analytics"
	"github.com/asifchowdhury1/studysync/internal/db"
)

const defaultAnalyticsWindowDays = 30

// parseTimezone resolves the optional ?timezone= IANA name, falling
// back to UTC. Returns nil after writing a 400 for an unknown zone.
func parseTimezone(w http.ResponseWriter, r *http.Request) *time.Location {
	name := r.URL.Query().Get("timezone")
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		writeError(w, http.StatusBadRequest,
			"timezone must be an IANA zone name like America/New_York")
		return nil
	}
	return loc
}

// toAnalyticsSessions converts stored rows to engine input. Rows
// whose timestamps fail to parse are skipped; the write path only
// stores RFC 3339, so a skip indicates manual database edits.
func toAnalyticsSessions(rows []db.Session) []analytics.Session {
	sessions := make([]analytics.Session, 0, len(rows))
	for _, row := range rows {
		start, err := time.Parse(time.RFC3339, row.StartedAt)
		if err != nil {
			log.Printf("skipping session %s: bad started_at: %v", row.ID, err)
			continue
		}
		end, err := time.Parse(time.RFC3339, row.EndedAt)
		if err != nil {
			log.Printf("skipping session %s: bad ended_at: %v", row.ID, err)
			continue
		}
		sessions = append(sessions, analytics.Session{
			ID:               row.ID,
			SubjectID:        row.SubjectID,
			StartTime:        start,
			EndTime:          end,
			Duration:         row.DurationMin,
			StudyMethod:      row.StudyMethod,
			Location:         row.Location,
			FocusRating:      row.FocusRating,
			DifficultyRating: row.DifficultyRating,
			TotalBreakTime:   row.TotalBreakTime,
			BreakCount:       row.BreakCount,
		})
	}
	return sessions
}

// windowDays parses the optional ?days= parameter.
func windowDays(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return defaultAnalyticsWindowDays, true
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 {
		writeError(w, http.StatusBadRequest,
			"days must be a positive integer")
		return 0, false
	}
	return days, true
}

// windowSessions loads the user's sessions that can fall inside an
// N-day window ending now.
func (s *Server) windowSessions(
	r *http.Request, days int, now time.Time,
) ([]analytics.Session, error) {
	from := now.AddDate(0, 0, -days).UTC().Format(time.RFC3339)
	rows, err := s.db.SessionsInRange(r.Context(), userID(r), from, "")
	if err != nil {
		return nil, err
	}
	return toAnalyticsSessions(rows), nil
}

func (s *Server) handleDashboard(
	w http.ResponseWriter, r *http.Request,
) {
	loc := parseTimezone(w, r)
	if loc == nil {
		return
	}

	user, err := s.db.GetUser(r.Context(), userID(r))
	if err != nil {
		s.analyticsError(w, "dashboard", err)
		return
	}
	rows, err := s.db.SessionsInRange(r.Context(), userID(r), "", "")
	if err != nil {
		s.analyticsError(w, "dashboard", err)
		return
	}

	dash := analytics.DashboardSummary(
		toAnalyticsSessions(rows),
		analytics.Goals{
			DailyStudyTime:  user.DailyGoal,
			WeeklyStudyTime: user.WeeklyGoal,
		},
		s.now().In(loc),
	)
	writeJSON(w, http.StatusOK, dash)
}

func (s *Server) handleTimeSeries(
	w http.ResponseWriter, r *http.Request,
) {
	loc := parseTimezone(w, r)
	if loc == nil {
		return
	}

	period := r.URL.Query().Get("period")
	if period == "" {
		period = analytics.PeriodDaily
	}

	now := s.now().In(loc)
	start := now.AddDate(0, 0, -defaultAnalyticsWindowDays)
	end := now
	for _, bound := range []struct {
		name string
		dst  *time.Time
	}{
		{"from", &start},
		{"to", &end},
	} {
		raw := r.URL.Query().Get(bound.name)
		if raw == "" {
			continue
		}
		t, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest,
				bound.name+" must be a date like 2025-01-31")
			return
		}
		*bound.dst = t
	}

	rows, err := s.db.SessionsInRange(
		r.Context(), userID(r),
		start.AddDate(0, 0, -1).UTC().Format(time.RFC3339),
		end.AddDate(0, 0, 2).UTC().Format(time.RFC3339),
	)
	if err != nil {
		s.analyticsError(w, "time series", err)
		return
	}

	report, err := analytics.TimeSeries(
		toAnalyticsSessions(rows), period, start, end,
	)
	if err != nil {
		if errors.Is(err, analytics.ErrInvalidPeriod) ||
			errors.Is(err, analytics.ErrInvalidRange) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.analyticsError(w, "time series", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSubjectAnalytics(
	w http.ResponseWriter, r *http.Request,
) {
	loc := parseTimezone(w, r)
	if loc == nil {
		return
	}
	days, ok := windowDays(w, r)
	if !ok {
		return
	}

	now := s.now().In(loc)
	sessions, err := s.windowSessions(r, days, now)
	if err != nil {
		s.analyticsError(w, "subject analytics", err)
		return
	}

	rows, err := s.db.ListSubjects(r.Context(), userID(r))
	if err != nil {
		s.analyticsError(w, "subject analytics", err)
		return
	}
	subjects := make([]analytics.Subject, 0, len(rows))
	for _, row := range rows {
		subjects = append(subjects, analytics.Subject{
			ID:         row.ID,
			Name:       row.Name,
			Color:      row.Color,
			WeeklyGoal: row.WeeklyGoal,
		})
	}

	report, err := analytics.SubjectAnalytics(sessions, subjects, days, now)
	if err != nil {
		s.analyticsError(w, "subject analytics", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handlePatterns(
	w http.ResponseWriter, r *http.Request,
) {
	loc := parseTimezone(w, r)
	if loc == nil {
		return
	}
	days, ok := windowDays(w, r)
	if !ok {
		return
	}

	now := s.now().In(loc)
	sessions, err := s.windowSessions(r, days, now)
	if err != nil {
		s.analyticsError(w, "patterns", err)
		return
	}

	report, err := analytics.PatternAnalysis(sessions, days, now)
	if err != nil {
		s.analyticsError(w, "patterns", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) analyticsError(
	w http.ResponseWriter, op string, err error,
) {
	if handleContextError(w, err) {
		return
	}
	log.Printf("%s error: %v", op, err)
	writeError(w, http.StatusInternalServerError,
		"internal server error")
}
