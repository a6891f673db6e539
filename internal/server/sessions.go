package server

import (
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/asifchowdhury1/studysync/internal/analytics"
	"github.com/asifchowdhury1/studysync/internal/db"
)

const maxSessionNotesLen = 2000

// sessionRequest is the create/update request body. Duration is
// never accepted from the client; it is derived from the interval.
type sessionRequest struct {
	SubjectID        string `json:"subjectId"`
	StartTime        string `json:"startTime"`
	EndTime          string `json:"endTime"`
	StudyMethod      string `json:"studyMethod"`
	Location         string `json:"location"`
	FocusRating      int    `json:"focusRating"`
	DifficultyRating int    `json:"difficultyRating"`
	Notes            string `json:"notes"`
	TotalBreakTime   int    `json:"totalBreakTime"`
	BreakCount       int    `json:"breakCount"`
}

// toSession validates the request and converts it to a storable
// session with a derived duration. The returned message is empty on
// success.
func (req *sessionRequest) toSession(userID string) (db.Session, string) {
	if req.SubjectID == "" {
		return db.Session{}, "subjectId is required"
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		return db.Session{}, "startTime must be an RFC 3339 timestamp"
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		return db.Session{}, "endTime must be an RFC 3339 timestamp"
	}
	if !end.After(start) {
		return db.Session{}, "endTime must be after startTime"
	}

	if !slices.Contains(analytics.StudyMethods, req.StudyMethod) {
		return db.Session{}, fmt.Sprintf(
			"studyMethod must be one of %v", analytics.StudyMethods,
		)
	}
	if !slices.Contains(analytics.Locations, req.Location) {
		return db.Session{}, fmt.Sprintf(
			"location must be one of %v", analytics.Locations,
		)
	}
	if req.FocusRating < 1 || req.FocusRating > 10 {
		return db.Session{}, "focusRating must be between 1 and 10"
	}
	if req.DifficultyRating < 1 || req.DifficultyRating > 10 {
		return db.Session{}, "difficultyRating must be between 1 and 10"
	}
	if len(req.Notes) > maxSessionNotesLen {
		return db.Session{}, "notes must be at most 2000 characters"
	}
	if req.TotalBreakTime < 0 {
		return db.Session{}, "totalBreakTime must not be negative"
	}
	if req.BreakCount < 0 {
		return db.Session{}, "breakCount must not be negative"
	}

	duration := int(math.Round(end.Sub(start).Minutes()))
	if duration < 1 {
		duration = 1
	}

	return db.Session{
		UserID:           userID,
		SubjectID:        req.SubjectID,
		StartedAt:        start.UTC().Format(time.RFC3339),
		EndedAt:          end.UTC().Format(time.RFC3339),
		DurationMin:      duration,
		StudyMethod:      req.StudyMethod,
		Location:         req.Location,
		FocusRating:      req.FocusRating,
		DifficultyRating: req.DifficultyRating,
		Notes:            req.Notes,
		TotalBreakTime:   req.TotalBreakTime,
		BreakCount:       req.BreakCount,
	}, ""
}

func (s *Server) handleListSessions(
	w http.ResponseWriter, r *http.Request,
) {
	q := r.URL.Query()
	filter := db.SessionFilter{
		SubjectID: q.Get("subjectId"),
		Cursor:    q.Get("cursor"),
	}

	for _, bound := range []struct {
		name string
		dst  *string
	}{
		{"from", &filter.From},
		{"to", &filter.To},
	} {
		raw := q.Get(bound.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest,
				bound.name+" must be an RFC 3339 timestamp")
			return
		}
		*bound.dst = t.UTC().Format(time.RFC3339)
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest,
				"limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	page, err := s.db.ListSessions(r.Context(), userID(r), filter)
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		if errors.Is(err, db.ErrInvalidCursor) {
			writeError(w, http.StatusBadRequest, "invalid cursor")
			return
		}
		log.Printf("sessions error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
		return
	}
	if page.Sessions == nil {
		page.Sessions = []db.Session{}
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreateSession(
	w http.ResponseWriter, r *http.Request,
) {
	var req sessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, msg := req.toSession(userID(r))
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	created, err := s.db.CreateSession(session)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "subject not found")
			return
		}
		log.Printf("create session error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetSession(
	w http.ResponseWriter, r *http.Request,
) {
	session, err := s.db.GetSession(
		r.Context(), userID(r), r.PathValue("id"),
	)
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		log.Printf("get session error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleUpdateSession(
	w http.ResponseWriter, r *http.Request,
) {
	var req sessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, msg := req.toSession(userID(r))
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	session.ID = r.PathValue("id")

	updated, err := s.db.UpdateSession(r.Context(), session)
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		log.Printf("update session error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteSession(
	w http.ResponseWriter, r *http.Request,
) {
	err := s.db.DeleteSession(userID(r), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		log.Printf("delete session error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
