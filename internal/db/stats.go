package db

import (
	"context"
	"fmt"
)

// Stats holds instance-wide counters for the stats endpoint.
type Stats struct {
	UserCount    int `json:"userCount"`
	SubjectCount int `json:"subjectCount"`
	SessionCount int `json:"sessionCount"`
	TotalMinutes int `json:"totalMinutes"`
}

// GetStats returns counts across all users.
func (db *DB) GetStats(ctx context.Context) (Stats, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM subjects),
			(SELECT COUNT(*) FROM sessions),
			(SELECT COALESCE(SUM(duration_min), 0) FROM sessions)`

	var s Stats
	err := db.reader.QueryRowContext(ctx, query).Scan(
		&s.UserCount,
		&s.SubjectCount,
		&s.SessionCount,
		&s.TotalMinutes,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("fetching stats: %w", err)
	}
	return s, nil
}
