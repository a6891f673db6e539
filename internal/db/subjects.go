package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrSubjectExists is returned when a user already has a subject
// with the same name (case-insensitive).
var ErrSubjectExists = errors.New("subject name already in use")

// ErrSubjectHasSessions is returned when deleting a subject that
// still has sessions without the force flag.
var ErrSubjectHasSessions = errors.New("subject has sessions")

// Subject is a stored subject with its denormalized aggregates.
// TotalStudyTime and TotalSessions always equal the sum and count
// of the subject's stored sessions; they are adjusted inside the
// same transaction as every session write.
type Subject struct {
	ID             string `json:"id"`
	UserID         string `json:"-"`
	Name           string `json:"name"`
	Color          string `json:"color"`
	WeeklyGoal     int    `json:"weeklyGoal"`
	TotalStudyTime int    `json:"totalStudyTime"`
	TotalSessions  int    `json:"totalSessions"`
	Description    string `json:"description"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

const subjectCols = `id, user_id, name, color, weekly_goal,
	total_study_time, total_sessions, description,
	created_at, updated_at`

func scanSubjectRow(rs rowScanner) (Subject, error) {
	var s Subject
	err := rs.Scan(
		&s.ID, &s.UserID, &s.Name, &s.Color, &s.WeeklyGoal,
		&s.TotalStudyTime, &s.TotalSessions, &s.Description,
		&s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

// CreateSubject inserts a subject for the user.
func (db *DB) CreateSubject(s Subject) (Subject, error) {
	s.ID = uuid.NewString()
	s.TotalStudyTime = 0
	s.TotalSessions = 0
	s.CreatedAt = nowUTC()
	s.UpdatedAt = s.CreatedAt

	err := db.Update(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO subjects (
				id, user_id, name, color, weekly_goal,
				total_study_time, total_sessions, description,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, 0, 0, ?, ?, ?)`,
			s.ID, s.UserID, s.Name, s.Color, s.WeeklyGoal,
			s.Description, s.CreatedAt, s.UpdatedAt,
		)
		if isUniqueViolation(err) {
			return ErrSubjectExists
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ErrSubjectExists) {
			return Subject{}, err
		}
		return Subject{}, fmt.Errorf("creating subject: %w", err)
	}
	return s, nil
}

// ListSubjects returns the user's subjects ordered by name.
func (db *DB) ListSubjects(
	ctx context.Context, userID string,
) ([]Subject, error) {
	rows, err := db.reader.QueryContext(ctx,
		"SELECT "+subjectCols+
			" FROM subjects WHERE user_id = ? ORDER BY name",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying subjects: %w", err)
	}
	defer rows.Close()

	var subjects []Subject
	for rows.Next() {
		s, err := scanSubjectRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning subject: %w", err)
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}

// GetSubject returns one of the user's subjects by ID.
func (db *DB) GetSubject(
	ctx context.Context, userID, id string,
) (Subject, error) {
	row := db.reader.QueryRowContext(ctx,
		"SELECT "+subjectCols+
			" FROM subjects WHERE id = ? AND user_id = ?",
		id, userID,
	)
	s, err := scanSubjectRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Subject{}, ErrNotFound
	}
	if err != nil {
		return Subject{}, fmt.Errorf("getting subject %s: %w", id, err)
	}
	return s, nil
}

// UpdateSubject applies name/color/goal/description changes. The
// aggregate counters are never writable through this path.
func (db *DB) UpdateSubject(
	ctx context.Context, s Subject,
) (Subject, error) {
	err := db.Update(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE subjects
			SET name = ?, color = ?, weekly_goal = ?,
				description = ?, updated_at = ?
			WHERE id = ? AND user_id = ?`,
			s.Name, s.Color, s.WeeklyGoal,
			s.Description, nowUTC(), s.ID, s.UserID,
		)
		if isUniqueViolation(err) {
			return ErrSubjectExists
		}
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrSubjectExists) {
			return Subject{}, err
		}
		return Subject{}, fmt.Errorf("updating subject %s: %w", s.ID, err)
	}
	return db.GetSubject(ctx, s.UserID, s.ID)
}

// DeleteSubject removes a subject. A subject that still has
// sessions is refused unless force is set, in which case the
// sessions are removed in the same transaction.
func (db *DB) DeleteSubject(userID, id string, force bool) error {
	err := db.Update(func(tx *sql.Tx) error {
		var owner string
		err := tx.QueryRow(
			"SELECT user_id FROM subjects WHERE id = ?", id,
		).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != userID) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var sessions int
		if err := tx.QueryRow(
			"SELECT COUNT(*) FROM sessions WHERE subject_id = ?", id,
		).Scan(&sessions); err != nil {
			return err
		}
		if sessions > 0 {
			if !force {
				return ErrSubjectHasSessions
			}
			if _, err := tx.Exec(
				"DELETE FROM sessions WHERE subject_id = ?", id,
			); err != nil {
				return err
			}
		}

		_, err = tx.Exec("DELETE FROM subjects WHERE id = ?", id)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) ||
			errors.Is(err, ErrSubjectHasSessions) {
			return err
		}
		return fmt.Errorf("deleting subject %s: %w", id, err)
	}
	return nil
}
