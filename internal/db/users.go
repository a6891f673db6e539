package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrEmailTaken is returned when registering an email that already
// has an account (case-insensitive).
var ErrEmailTaken = errors.New("email already registered")

// User is a stored account. PasswordHash never serializes.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Name         string `json:"name"`
	DailyGoal    int    `json:"dailyGoal"`
	WeeklyGoal   int    `json:"weeklyGoal"`
	Preferences  string `json:"preferences"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

const userCols = `id, email, password_hash, name,
	daily_goal, weekly_goal, preferences, created_at, updated_at`

func scanUserRow(rs rowScanner) (User, error) {
	var u User
	err := rs.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name,
		&u.DailyGoal, &u.WeeklyGoal, &u.Preferences,
		&u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

// CreateUser inserts a new account and returns it with generated
// ID and timestamps.
func (db *DB) CreateUser(
	email, passwordHash, name string,
) (User, error) {
	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Preferences:  "{}",
		CreatedAt:    nowUTC(),
	}
	u.UpdatedAt = u.CreatedAt

	err := db.Update(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO users (
				id, email, password_hash, name,
				daily_goal, weekly_goal, preferences,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			u.ID, u.Email, u.PasswordHash, u.Name,
			u.DailyGoal, u.WeeklyGoal, u.Preferences,
			u.CreatedAt, u.UpdatedAt,
		)
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return User{}, err
		}
		return User{}, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns the account for an email address,
// case-insensitively. ErrNotFound when no account exists.
func (db *DB) GetUserByEmail(
	ctx context.Context, email string,
) (User, error) {
	row := db.reader.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE email = ?", email,
	)
	u, err := scanUserRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// GetUser returns the account by ID. ErrNotFound when absent.
func (db *DB) GetUser(ctx context.Context, id string) (User, error) {
	row := db.reader.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id = ?", id,
	)
	u, err := scanUserRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("getting user %s: %w", id, err)
	}
	return u, nil
}

// ProfileUpdate carries the mutable profile fields. Nil fields are
// left unchanged.
type ProfileUpdate struct {
	Name        *string
	DailyGoal   *int
	WeeklyGoal  *int
	Preferences *string
}

// UpdateProfile applies a partial profile update and returns the
// resulting user.
func (db *DB) UpdateProfile(
	ctx context.Context, id string, p ProfileUpdate,
) (User, error) {
	err := db.Update(func(tx *sql.Tx) error {
		sets := []string{"updated_at = ?"}
		args := []any{nowUTC()}
		if p.Name != nil {
			sets = append(sets, "name = ?")
			args = append(args, *p.Name)
		}
		if p.DailyGoal != nil {
			sets = append(sets, "daily_goal = ?")
			args = append(args, *p.DailyGoal)
		}
		if p.WeeklyGoal != nil {
			sets = append(sets, "weekly_goal = ?")
			args = append(args, *p.WeeklyGoal)
		}
		if p.Preferences != nil {
			sets = append(sets, "preferences = ?")
			args = append(args, *p.Preferences)
		}
		args = append(args, id)

		res, err := tx.Exec(
			"UPDATE users SET "+strings.Join(sets, ", ")+
				" WHERE id = ?",
			args...,
		)
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
		if errors.Is(err, ErrNotFound) {
			return User{}, err
		}
		return User{}, fmt.Errorf("updating profile %s: %w", id, err)
	}
	return db.GetUser(ctx, id)
}

// isUniqueViolation reports whether err is a SQLite UNIQUE
// constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil &&
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}
