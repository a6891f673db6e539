package db

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidCursor is returned when a cursor cannot be decoded or
// verified.
var ErrInvalidCursor = errors.New("invalid cursor")

const (
	// DefaultSessionLimit is the default page size.
	DefaultSessionLimit = 100
	// MaxSessionLimit is the maximum page size.
	MaxSessionLimit = 500
)

// sessionCols is the column list for session queries. Keep in sync
// with scanSessionRow.
const sessionCols = `id, user_id, subject_id, started_at, ended_at,
	duration_min, study_method, location, focus_rating,
	difficulty_rating, notes, total_break_time, break_count,
	created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows,
// allowing a single scan helper for both.
type rowScanner interface {
	Scan(dest ...any) error
}

// Session is a stored study session. Times are RFC3339 UTC strings;
// DurationMin is derived from them at write time and is always >= 1.
type Session struct {
	ID               string `json:"id"`
	UserID           string `json:"-"`
	SubjectID        string `json:"subjectId"`
	StartedAt        string `json:"startTime"`
	EndedAt          string `json:"endTime"`
	DurationMin      int    `json:"duration"`
	StudyMethod      string `json:"studyMethod"`
	Location         string `json:"location"`
	FocusRating      int    `json:"focusRating"`
	DifficultyRating int    `json:"difficultyRating"`
	Notes            string `json:"notes"`
	TotalBreakTime   int    `json:"totalBreakTime"`
	BreakCount       int    `json:"breakCount"`
	CreatedAt        string `json:"createdAt"`
	UpdatedAt        string `json:"updatedAt"`
}

func scanSessionRow(rs rowScanner) (Session, error) {
	var s Session
	err := rs.Scan(
		&s.ID, &s.UserID, &s.SubjectID, &s.StartedAt, &s.EndedAt,
		&s.DurationMin, &s.StudyMethod, &s.Location, &s.FocusRating,
		&s.DifficultyRating, &s.Notes, &s.TotalBreakTime,
		&s.BreakCount, &s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

// SessionCursor is the opaque pagination token.
type SessionCursor struct {
	StartedAt string `json:"s"`
	ID        string `json:"i"`
}

// EncodeCursor returns a signed base64-encoded cursor string.
func (db *DB) EncodeCursor(startedAt, id string) string {
	data, _ := json.Marshal(SessionCursor{StartedAt: startedAt, ID: id})

	db.cursorMu.RLock()
	mac := hmac.New(sha256.New, db.cursorSecret)
	db.cursorMu.RUnlock()

	mac.Write(data)
	sig := mac.Sum(nil)

	return base64.RawURLEncoding.EncodeToString(data) + "." +
		base64.RawURLEncoding.EncodeToString(sig)
}

// DecodeCursor parses and verifies a cursor string.
func (db *DB) DecodeCursor(s string) (SessionCursor, error) {
	payload, sigStr, ok := strings.Cut(s, ".")
	if !ok {
		return SessionCursor{},
			fmt.Errorf("%w: invalid format", ErrInvalidCursor)
	}

	data, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return SessionCursor{},
			fmt.Errorf("%w: invalid payload: %v", ErrInvalidCursor, err)
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigStr)
	if err != nil {
		return SessionCursor{}, fmt.Errorf(
			"%w: invalid signature encoding: %v", ErrInvalidCursor, err,
		)
	}

	db.cursorMu.RLock()
	mac := hmac.New(sha256.New, db.cursorSecret)
	db.cursorMu.RUnlock()

	mac.Write(data)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return SessionCursor{},
			fmt.Errorf("%w: signature mismatch", ErrInvalidCursor)
	}

	var c SessionCursor
	if err := json.Unmarshal(data, &c); err != nil {
		return SessionCursor{},
			fmt.Errorf("%w: invalid json: %v", ErrInvalidCursor, err)
	}
	return c, nil
}

// SessionFilter specifies how to query a user's sessions.
type SessionFilter struct {
	SubjectID string
	From      string // started_at >= From (RFC3339, inclusive)
	To        string // started_at <= To (RFC3339, inclusive)
	Cursor    string // opaque cursor from previous page
	Limit     int
}

// SessionPage is a page of session results, newest first.
type SessionPage struct {
	Sessions   []Session `json:"sessions"`
	NextCursor string    `json:"nextCursor,omitempty"`
	Total      int       `json:"total"`
}

// buildSessionFilter returns a WHERE clause and args for the
// non-cursor predicates in SessionFilter.
func buildSessionFilter(
	userID string, f SessionFilter,
) (string, []any) {
	preds := []string{"user_id = ?"}
	args := []any{userID}

	if f.SubjectID != "" {
		preds = append(preds, "subject_id = ?")
		args = append(args, f.SubjectID)
	}
	if f.From != "" {
		preds = append(preds, "started_at >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		preds = append(preds, "started_at <= ?")
		args = append(args, f.To)
	}
	return strings.Join(preds, " AND "), args
}

// ListSessions returns a cursor-paginated page of the user's
// sessions, newest first.
func (db *DB) ListSessions(
	ctx context.Context, userID string, f SessionFilter,
) (SessionPage, error) {
	if f.Limit <= 0 || f.Limit > MaxSessionLimit {
		f.Limit = DefaultSessionLimit
	}

	where, args := buildSessionFilter(userID, f)

	var total int
	if err := db.reader.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sessions WHERE "+where, args...,
	).Scan(&total); err != nil {
		return SessionPage{}, fmt.Errorf("counting sessions: %w", err)
	}

	cursorWhere := where
	cursorArgs := append([]any{}, args...)
	if f.Cursor != "" {
		cur, err := db.DecodeCursor(f.Cursor)
		if err != nil {
			return SessionPage{}, err
		}
		cursorWhere += " AND (started_at, id) < (?, ?)"
		cursorArgs = append(cursorArgs, cur.StartedAt, cur.ID)
	}

	query := "SELECT " + sessionCols +
		" FROM sessions WHERE " + cursorWhere + `
		ORDER BY started_at DESC, id DESC
		LIMIT ?`
	cursorArgs = append(cursorArgs, f.Limit+1)

	rows, err := db.reader.QueryContext(ctx, query, cursorArgs...)
	if err != nil {
		return SessionPage{}, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	sessions, err := scanSessionRows(rows)
	if err != nil {
		return SessionPage{}, err
	}

	page := SessionPage{Sessions: sessions, Total: total}
	if len(sessions) > f.Limit {
		page.Sessions = sessions[:f.Limit]
		last := page.Sessions[f.Limit-1]
		page.NextCursor = db.EncodeCursor(last.StartedAt, last.ID)
	}
	return page, nil
}

// SessionsInRange returns all of the user's sessions with
// started_at in [from, to], ascending. Empty bounds are open.
// This is the analytics read path: no pagination, no cursor.
func (db *DB) SessionsInRange(
	ctx context.Context, userID, from, to string,
) ([]Session, error) {
	where, args := buildSessionFilter(
		userID, SessionFilter{From: from, To: to},
	)
	rows, err := db.reader.QueryContext(ctx,
		"SELECT "+sessionCols+" FROM sessions WHERE "+where+
			" ORDER BY started_at, id",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying session range: %w", err)
	}
	defer rows.Close()
	return scanSessionRows(rows)
}

// GetSession returns one of the user's sessions by ID.
func (db *DB) GetSession(
	ctx context.Context, userID, id string,
) (Session, error) {
	row := db.reader.QueryRowContext(ctx,
		"SELECT "+sessionCols+
			" FROM sessions WHERE id = ? AND user_id = ?",
		id, userID,
	)
	s, err := scanSessionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("getting session %s: %w", id, err)
	}
	return s, nil
}

// CreateSession inserts a session and bumps the owning subject's
// counters in the same transaction. The subject must belong to the
// same user.
func (db *DB) CreateSession(s Session) (Session, error) {
	s.ID = uuid.NewString()
	s.CreatedAt = nowUTC()
	s.UpdatedAt = s.CreatedAt

	err := db.Update(func(tx *sql.Tx) error {
		if err := subjectOwned(tx, s.UserID, s.SubjectID); err != nil {
			return err
		}
		if _, err := tx.Exec(`
			INSERT INTO sessions (
				id, user_id, subject_id, started_at, ended_at,
				duration_min, study_method, location,
				focus_rating, difficulty_rating, notes,
				total_break_time, break_count,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, s.UserID, s.SubjectID, s.StartedAt, s.EndedAt,
			s.DurationMin, s.StudyMethod, s.Location,
			s.FocusRating, s.DifficultyRating, s.Notes,
			s.TotalBreakTime, s.BreakCount,
			s.CreatedAt, s.UpdatedAt,
		); err != nil {
			return err
		}
		return adjustSubjectCounters(tx, s.SubjectID, s.DurationMin, 1)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("creating session: %w", err)
	}
	return s, nil
}

// UpdateSession rewrites a session's mutable fields and reconciles
// subject counters, including moves between subjects, in one
// transaction.
func (db *DB) UpdateSession(
	ctx context.Context, s Session,
) (Session, error) {
	err := db.Update(func(tx *sql.Tx) error {
		var oldSubject string
		var oldDuration int
		err := tx.QueryRow(`
			SELECT subject_id, duration_min FROM sessions
			WHERE id = ? AND user_id = ?`,
			s.ID, s.UserID,
		).Scan(&oldSubject, &oldDuration)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if s.SubjectID != oldSubject {
			if err := subjectOwned(tx, s.UserID, s.SubjectID); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(`
			UPDATE sessions
			SET subject_id = ?, started_at = ?, ended_at = ?,
				duration_min = ?, study_method = ?, location = ?,
				focus_rating = ?, difficulty_rating = ?, notes = ?,
				total_break_time = ?, break_count = ?, updated_at = ?
			WHERE id = ?`,
			s.SubjectID, s.StartedAt, s.EndedAt,
			s.DurationMin, s.StudyMethod, s.Location,
			s.FocusRating, s.DifficultyRating, s.Notes,
			s.TotalBreakTime, s.BreakCount, nowUTC(), s.ID,
		); err != nil {
			return err
		}

		if s.SubjectID == oldSubject {
			return adjustSubjectCounters(
				tx, s.SubjectID, s.DurationMin-oldDuration, 0,
			)
		}
		if err := adjustSubjectCounters(
			tx, oldSubject, -oldDuration, -1,
		); err != nil {
			return err
		}
		return adjustSubjectCounters(tx, s.SubjectID, s.DurationMin, 1)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("updating session %s: %w", s.ID, err)
	}
	return db.GetSession(ctx, s.UserID, s.ID)
}

// DeleteSession removes a session and decrements the owning
// subject's counters in the same transaction.
func (db *DB) DeleteSession(userID, id string) error {
	err := db.Update(func(tx *sql.Tx) error {
		var subjectID string
		var duration int
		err := tx.QueryRow(`
			SELECT subject_id, duration_min FROM sessions
			WHERE id = ? AND user_id = ?`,
			id, userID,
		).Scan(&subjectID, &duration)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			"DELETE FROM sessions WHERE id = ?", id,
		); err != nil {
			return err
		}
		return adjustSubjectCounters(tx, subjectID, -duration, -1)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	return nil
}

// subjectOwned verifies the subject exists and belongs to the user.
func subjectOwned(tx *sql.Tx, userID, subjectID string) error {
	var owner string
	err := tx.QueryRow(
		"SELECT user_id FROM subjects WHERE id = ?", subjectID,
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != userID) {
		return ErrNotFound
	}
	return err
}

// adjustSubjectCounters applies a delta to a subject's aggregates.
// Decrements clamp at zero so the counters can never go negative.
func adjustSubjectCounters(
	tx *sql.Tx, subjectID string, timeDelta, sessionDelta int,
) error {
	_, err := tx.Exec(`
		UPDATE subjects
		SET total_study_time = MAX(0, total_study_time + ?),
			total_sessions = MAX(0, total_sessions + ?),
			updated_at = ?
		WHERE id = ?`,
		timeDelta, sessionDelta, nowUTC(), subjectID,
	)
	return err
}

func scanSessionRows(rows *sql.Rows) ([]Session, error) {
	var sessions []Session
	for rows.Next() {
		s, err := scanSessionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
