// internal/scores/store.go
//
// Persisted results of finished games and the leaderboard built from them.
// A result is written when a player finishes a session; signed-in players
// also get their games_played / best_score counters bumped in the same tx.

package scores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	timeLayout   = "2006-01-02T15:04:05.000000Z"
	DefaultLimit = 20
	MaxLimit     = 100
)

var ErrEmptyGame = errors.New("result has no rounds")

// Result is one finished game.
type Result struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId,omitempty"`
	SessionID  string    `json:"sessionId"`
	Rounds     int       `json:"rounds"`
	ScoreTotal int       `json:"scoreTotal"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Row is a leaderboard line.
type Row struct {
	Rank       int       `json:"rank"`
	UserID     string    `json:"userId,omitempty"`
	Username   string    `json:"username,omitempty"`
	Rounds     int       `json:"rounds"`
	ScoreTotal int       `json:"scoreTotal"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Record inserts r, filling ID and CreatedAt when unset, and returns the stored row.
func (s *Store) Record(ctx context.Context, r Result) (Result, error) {
	if r.Rounds <= 0 {
		return Result{}, ErrEmptyGame
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.CreatedAt = r.CreatedAt.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO results (id, user_id, session_id, rounds, score_total, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, nullable(r.UserID), r.SessionID, r.Rounds, r.ScoreTotal, r.CreatedAt.Format(timeLayout),
	); err != nil {
		return Result{}, fmt.Errorf("insert result: %w", err)
	}
	if r.UserID != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET games_played = games_played + 1, best_score = MAX(best_score, ?) WHERE id=?`,
			r.ScoreTotal, r.UserID,
		); err != nil {
			return Result{}, fmt.Errorf("bump user stats: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Result{}, err
	}
	return r, nil
}

// Leaderboard returns the best games: highest total, then fewest rounds, then earliest.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT COALESCE(r.user_id, ''), COALESCE(u.username, ''), r.rounds, r.score_total, r.created_at
        FROM results r
        LEFT JOIN users u ON u.id = r.user_id
        ORDER BY r.score_total DESC, r.rounds ASC, r.created_at ASC
        LIMIT ?`, clampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		var row Row
		var created string
		if err := rows.Scan(&row.UserID, &row.Username, &row.Rounds, &row.ScoreTotal, &created); err != nil {
			return nil, err
		}
		row.CreatedAt = parseTime(created)
		row.Rank = len(out) + 1
		out = append(out, row)
	}
	return out, rows.Err()
}

// ForUser lists a user's results, newest first.
func (s *Store) ForUser(ctx context.Context, userID string, limit int) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, user_id, session_id, rounds, score_total, created_at
        FROM results
        WHERE user_id=?
        ORDER BY created_at DESC
        LIMIT ?`, userID, clampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Result{}
	for rows.Next() {
		var r Result
		var created string
		if err := rows.Scan(&r.ID, &r.UserID, &r.SessionID, &r.Rounds, &r.ScoreTotal, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// parseTime returns the zero time for malformed values.
func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
