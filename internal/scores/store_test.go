package scores

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/robalobadob/bullseye/assets"
	"github.com/robalobadob/bullseye/internal/db"
)

func newTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "scores.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if _, err := db.Migrate(conn, assets.Migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(conn), conn
}

func addUser(t *testing.T, conn *sql.DB, id, name string) {
	t.Helper()
	if _, err := conn.Exec(`INSERT INTO users (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
		id, name, "x", time.Now().UTC().Format(time.RFC3339)); err != nil {
		t.Fatalf("insert user: %v", err)
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	ctx := context.Background()
	st, conn := newTestStore(t)
	addUser(t, conn, "u1", "alice")

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	results := []Result{
		{SessionID: "a", Rounds: 5, ScoreTotal: 420, CreatedAt: base},
		{SessionID: "b", Rounds: 3, ScoreTotal: 420, CreatedAt: base.Add(time.Minute), UserID: "u1"},
		{SessionID: "c", Rounds: 4, ScoreTotal: 390, CreatedAt: base.Add(-time.Hour)},
		{SessionID: "d", Rounds: 3, ScoreTotal: 420, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range results {
		if _, err := st.Record(ctx, r); err != nil {
			t.Fatalf("record %s: %v", r.SessionID, err)
		}
	}

	rows, err := st.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	// 420/3 rounds (earliest first), 420/5 rounds, then 390.
	wantTotals := []int{420, 420, 420, 390}
	wantRounds := []int{3, 3, 5, 4}
	for i, r := range rows {
		if r.Rank != i+1 || r.ScoreTotal != wantTotals[i] || r.Rounds != wantRounds[i] {
			t.Errorf("row %d: unexpected %+v", i, r)
		}
	}
	if rows[0].Username != "alice" || !rows[0].CreatedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("expected alice's game first with its timestamp, got %+v", rows[0])
	}

	top, err := st.Leaderboard(ctx, 2)
	if err != nil || len(top) != 2 {
		t.Errorf("expected limit to apply, got %d rows (err %v)", len(top), err)
	}
}

func TestRecordBumpsUserStats(t *testing.T) {
	ctx := context.Background()
	st, conn := newTestStore(t)
	addUser(t, conn, "u1", "bob")

	for _, total := range []int{150, 310, 200} {
		if _, err := st.Record(ctx, Result{UserID: "u1", SessionID: "s", Rounds: 3, ScoreTotal: total}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	var played, best int
	if err := conn.QueryRow(`SELECT games_played, best_score FROM users WHERE id='u1'`).Scan(&played, &best); err != nil {
		t.Fatal(err)
	}
	if played != 3 || best != 310 {
		t.Errorf("expected 3 games with best 310, got %d/%d", played, best)
	}

	mine, err := st.ForUser(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("for user: %v", err)
	}
	if len(mine) != 3 || mine[0].ID == "" {
		t.Errorf("expected 3 results with ids, got %+v", mine)
	}
}

func TestRecordRejectsEmptyGame(t *testing.T) {
	st, _ := newTestStore(t)
	if _, err := st.Record(context.Background(), Result{SessionID: "s"}); !errors.Is(err, ErrEmptyGame) {
		t.Errorf("expected ErrEmptyGame, got %v", err)
	}
}

func TestClampLimit(t *testing.T) {
	for in, want := range map[int]int{-1: DefaultLimit, 0: DefaultLimit, 7: 7, 1000: MaxLimit} {
		if got := clampLimit(in); got != want {
			t.Errorf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
