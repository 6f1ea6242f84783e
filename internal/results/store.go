// internal/results/store.go
//
// SQLite-backed ledger of quiz games.
// Rows are written when a game starts and once more when it finishes; the
// in-progress GameState itself is never stored here.
//
//   - games:         one row per game (owner, mode, outcome, final amount).
//   - users:         per-account counters bumped on finish (same transaction).
//   - daily_results: one row per player per UTC date for the daily challenge.

package results

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// Owner identifies who played a game. Exactly one field is set.
type Owner struct {
	UserID string
	AnonID string
}

// column returns the owner column and value for WHERE/INSERT clauses.
func (o Owner) column() (string, string) {
	if o.UserID != "" {
		return "user_id", o.UserID
	}
	return "anonymous_id", o.AnonID
}

// Finish describes the terminal state of a game.
type Finish struct {
	GameID        string
	Status        string // "won" | "lost"
	FinalAmount   int
	Cleared       int
	LifelinesUsed int
	FinishedAt    time.Time
}

// GameRow is a ledger row as returned to clients.
type GameRow struct {
	ID            string `json:"id"`
	Mode          string `json:"mode"`
	Status        string `json:"status"`
	FinalAmount   int    `json:"finalAmount"`
	Cleared       int    `json:"questionsCleared"`
	LifelinesUsed int    `json:"lifelinesUsed"`
	StartedAt     string `json:"startedAt"`
	FinishedAt    string `json:"finishedAt,omitempty"`
}

// DailyResult is one player's finished daily challenge.
// PlayerID is the owner key (user ID or guest cookie) and is never serialized;
// Name is the public handle.
type DailyResult struct {
	PlayerID    string `json:"-"`
	Name        string `json:"name"`
	Date        string `json:"date"`
	FinalAmount int    `json:"finalAmount"`
	Cleared     int    `json:"questionsCleared"`
	ElapsedMs   int    `json:"elapsedMs"`
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// StartGame inserts the owner row for a new game.
func (s *Store) StartGame(ctx context.Context, id string, owner Owner, mode string, started time.Time) error {
	col, val := owner.column()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO games (id, `+col+`, mode, started_at, status) VALUES (?,?,?,?, 'playing')`,
		id, val, mode, started.UTC().Format(time.RFC3339))
	return err
}

// FinishGame stores the outcome and, for accounts, bumps games played, wins
// and best amount in the same transaction.
func (s *Store) FinishGame(ctx context.Context, owner Owner, f Finish) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	col, val := owner.column()
	res, err := tx.ExecContext(ctx,
		`UPDATE games SET status=?, final_amount=?, questions_cleared=?, lifelines_used=?, finished_at=?
		 WHERE id=? AND `+col+`=? AND finished_at IS NULL`,
		f.Status, f.FinalAmount, f.Cleared, f.LifelinesUsed, f.FinishedAt.UTC().Format(time.RFC3339),
		f.GameID, val)
	if err != nil {
		return fmt.Errorf("update game: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("game %s: no open row for owner", f.GameID)
	}

	if owner.UserID != "" {
		won := 0
		if f.Status == "won" {
			won = 1
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET games_played = games_played + 1, wins = wins + ?,
			        best_amount = MAX(best_amount, ?) WHERE id=?`,
			won, f.FinalAmount, owner.UserID); err != nil {
			return fmt.Errorf("bump stats: %w", err)
		}
	}
	return tx.Commit()
}

// RecentGames lists a user's games, newest first.
func (s *Store) RecentGames(ctx context.Context, userID string, limit int) ([]GameRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, status, final_amount, questions_cleared, lifelines_used, started_at, COALESCE(finished_at,'')
		 FROM games WHERE user_id=? ORDER BY started_at DESC, rowid DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []GameRow{}
	for rows.Next() {
		var g GameRow
		if err := rows.Scan(&g.ID, &g.Mode, &g.Status, &g.FinalAmount, &g.Cleared, &g.LifelinesUsed, &g.StartedAt, &g.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ClaimAnonymous transfers guest games and daily results to a user account
// after login/signup. A daily row for a date the user already has stays with
// the guest.
func (s *Store) ClaimAnonymous(ctx context.Context, anonID, userID, username string) error {
	if anonID == "" || userID == "" {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE games SET user_id=?, anonymous_id=NULL WHERE anonymous_id=?`, userID, anonID); err != nil {
		return fmt.Errorf("claim games: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE OR IGNORE daily_results SET player_id=?, display_name=? WHERE player_id=?`,
		userID, username, anonID); err != nil {
		return fmt.Errorf("claim daily results: %w", err)
	}
	return tx.Commit()
}

// GuestAlias derives a public leaderboard name from an anonymous ID.
// The ID is a credential, so only a short hash of it is shown.
func GuestAlias(anonID string) string {
	sum := sha256.Sum256([]byte(anonID))
	return "guest-" + hex.EncodeToString(sum[:4])
}

// AlreadyPlayedDaily reports whether playerID has a daily result for date.
func (s *Store) AlreadyPlayedDaily(ctx context.Context, playerID, date string) (bool, error) {
	var cnt int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM daily_results WHERE player_id=? AND date=?`, playerID, date,
	).Scan(&cnt)
	return cnt > 0, err
}

// InsertDaily records a daily result. A second row for the same player and date is ignored.
func (s *Store) InsertDaily(ctx context.Context, r DailyResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO daily_results (player_id, display_name, date, final_amount, questions_cleared, elapsed_ms)
		 VALUES (?,?,?,?,?,?)`, r.PlayerID, r.Name, r.Date, r.FinalAmount, r.Cleared, r.ElapsedMs)
	return err
}

// DailyLeaderboard returns the best results for date: highest amount, then
// most questions cleared, then fastest. A negative limit returns every row.
func (s *Store) DailyLeaderboard(ctx context.Context, date string, limit int) ([]DailyResult, error) {
	switch {
	case limit == 0:
		limit = 20
	case limit < 0:
		limit = -1 // all rows
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT player_id, display_name, date, final_amount, questions_cleared, elapsed_ms
		 FROM daily_results WHERE date=?
		 ORDER BY final_amount DESC, questions_cleared DESC, elapsed_ms ASC, created_at ASC
		 LIMIT ?`, date, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []DailyResult{}
	for rows.Next() {
		var r DailyResult
		if err := rows.Scan(&r.PlayerID, &r.Name, &r.Date, &r.FinalAmount, &r.Cleared, &r.ElapsedMs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
