package server

import (
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/asifchowdhury1/studysync/internal/db"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

const (
	maxSubjectNameLen        = 100
	maxSubjectDescriptionLen = 500

	defaultSubjectColor = "#4F46E5"
)

// subjectRequest is the create/update request body. Color and
// weeklyGoal are optional on create.
type subjectRequest struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	WeeklyGoal  int    `json:"weeklyGoal"`
	Description string `json:"description"`
}

// validate normalizes the request in place and returns a
// client-facing message when the payload is unacceptable.
func (req *subjectRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	switch {
	case req.Name == "":
		return "name is required"
	case len(req.Name) > maxSubjectNameLen:
		return "name must be at most 100 characters"
	case req.Color != "" && !colorPattern.MatchString(req.Color):
		return "color must be a hex value like #4F46E5"
	case req.WeeklyGoal < 0:
		return "weeklyGoal must not be negative"
	case len(req.Description) > maxSubjectDescriptionLen:
		return "description must be at most 500 characters"
	}
	return ""
}

func (s *Server) handleListSubjects(
	w http.ResponseWriter, r *http.Request,
) {
	subjects, err := s.db.ListSubjects(r.Context(), userID(r))
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		log.Printf("subjects error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
		return
	}
	if subjects == nil {
		subjects = []db.Subject{}
	}
	writeJSON(w, http.StatusOK,
		map[string][]db.Subject{"subjects": subjects})
}

func (s *Server) handleCreateSubject(
	w http.ResponseWriter, r *http.Request,
) {
	var req subjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if req.Color == "" {
		req.Color = defaultSubjectColor
	}

	subject, err := s.db.CreateSubject(db.Subject{
		UserID:      userID(r),
		Name:        req.Name,
		Color:       req.Color,
		WeeklyGoal:  req.WeeklyGoal,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, db.ErrSubjectExists) {
			writeError(w, http.StatusConflict,
				"subject name already in use")
			return
		}
		log.Printf("create subject error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, subject)
}

func (s *Server) handleGetSubject(
	w http.ResponseWriter, r *http.Request,
) {
	subject, err := s.db.GetSubject(
		r.Context(), userID(r), r.PathValue("id"),
	)
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "subject not found")
			return
		}
		log.Printf("get subject error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
		return
	}
	writeJSON(w, http.StatusOK, subject)
}

func (s *Server) handleUpdateSubject(
	w http.ResponseWriter, r *http.Request,
) {
	var req subjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if req.Color == "" {
		// Color is required on update so a round-tripped subject
		// body stays valid.
		writeError(w, http.StatusBadRequest, "color is required")
		return
	}

	subject, err := s.db.UpdateSubject(r.Context(), db.Subject{
		ID:          r.PathValue("id"),
		UserID:      userID(r),
		Name:        req.Name,
		Color:       req.Color,
		WeeklyGoal:  req.WeeklyGoal,
		Description: req.Description,
	})
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "subject not found")
			return
		}
		if errors.Is(err, db.ErrSubjectExists) {
			writeError(w, http.StatusConflict,
				"subject name already in use")
			return
		}
		log.Printf("update subject error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
		return
	}
	writeJSON(w, http.StatusOK, subject)
}

func (s *Server) handleDeleteSubject(
	w http.ResponseWriter, r *http.Request,
) {
	force := r.URL.Query().Get("force") == "true"
	err := s.db.DeleteSubject(userID(r), r.PathValue("id"), force)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "subject not found")
			return
		}
		if errors.Is(err, db.ErrSubjectHasSessions) {
			writeError(w, http.StatusConflict,
				"subject has sessions; retry with force=true to delete them")
			return
		}
		log.Printf("delete subject error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
