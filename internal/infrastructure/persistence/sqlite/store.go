// Package sqlite implements a single-file store for local development on
// the pure-Go modernc SQLite driver. Writers are serialized by immediate
// transactions, which covers the per-user ordering the engine needs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/pixelcoders/roadmap-progress/internal/domain/gamification"
	"github.com/pixelcoders/roadmap-progress/internal/domain/progress"
	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
	"github.com/pixelcoders/roadmap-progress/internal/domain/store"
)

// Store provides SQLite-backed persistence.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", translateError(err))
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return translateError(s.db.PingContext(ctx))
}

func (s *Store) Progress() progress.Repository { return progressRepo{q: s.db} }

func (s *Store) GameStates() gamification.GameStateRepository { return stateRepo{q: s.db} }

func (s *Store) Unlocks() gamification.UnlockRepository { return unlockRepo{q: s.db} }

// WithinUserTx runs fn inside BEGIN IMMEDIATE. A writer that cannot get
// the lock within busy_timeout surfaces as ErrConflict.
func (s *Store) WithinUserTx(ctx context.Context, _ string, fn store.TxFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", translateError(err))
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, txUnit{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", translateError(err))
	}
	return nil
}

type txUnit struct {
	tx *sql.Tx
}

func (u txUnit) Progress() progress.Repository { return progressRepo{q: u.tx} }

func (u txUnit) GameStates() gamification.GameStateRepository { return stateRepo{q: u.tx} }

func (u txUnit) Unlocks() gamification.UnlockRepository { return unlockRepo{q: u.tx} }

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

type progressRepo struct {
	q queryer
}

const progressColumns = `progress_id, user_id, roadmap_id, completed_nodes, started_at, last_updated`

func (r progressRepo) Get(ctx context.Context, userID, roadmapID string) (*progress.Record, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM user_progress WHERE user_id = ? AND roadmap_id = ?`,
		userID, roadmapID,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", translateError(err))
	}
	return rec, nil
}

func (r progressRepo) ListByUser(ctx context.Context, userID string) ([]*progress.Record, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+progressColumns+` FROM user_progress WHERE user_id = ? ORDER BY roadmap_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", translateError(err))
	}
	defer rows.Close()

	var records []*progress.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress: %w", translateError(err))
	}
	return records, nil
}

// AppendNode mirrors the Postgres upsert, using a JSON array for the set.
func (r progressRepo) AppendNode(ctx context.Context, p progress.AppendParams) (bool, error) {
	at := p.At.UTC().UnixMilli()
	res, err := r.q.ExecContext(ctx, `
INSERT INTO user_progress (`+progressColumns+`)
VALUES (?1, ?2, ?3, json_array(?4), ?5, ?5)
ON CONFLICT (user_id, roadmap_id) DO UPDATE
SET completed_nodes = json_insert(user_progress.completed_nodes, '$[#]', ?4),
    last_updated = excluded.last_updated
WHERE NOT EXISTS (SELECT 1 FROM json_each(user_progress.completed_nodes) WHERE value = ?4)
`, p.ProgressID, p.UserID, p.RoadmapID, p.NodeID, at)
	if err != nil {
		return false, fmt.Errorf("append node: %w", translateError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append node: %w", err)
	}
	return n == 1, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*progress.Record, error) {
	var (
		p                     progress.RestoreParams
		nodesJSON             string
		startedAt, lastUpdate int64
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.RoadmapID, &nodesJSON, &startedAt, &lastUpdate); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(nodesJSON), &p.CompletedNodes); err != nil {
		return nil, fmt.Errorf("decode completed nodes: %w", err)
	}
	p.StartedAt = fromMillis(startedAt)
	p.LastUpdated = fromMillis(lastUpdate)
	return progress.Restore(p), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GAME STATE
// ══════════════════════════════════════════════════════════════════════════════

type stateRepo struct {
	q queryer
}

func (r stateRepo) Get(ctx context.Context, userID string) (*gamification.GameState, error) {
	var (
		st                   gamification.GameState
		xp                   int
		lastActive           sql.NullInt64
		createdAt, updatedAt int64
	)
	err := r.q.QueryRowContext(ctx, `
SELECT user_id, xp, current_streak, longest_streak, last_active_at, created_at, updated_at
FROM user_game_state WHERE user_id = ?`, userID,
	).Scan(&st.UserID, &xp, &st.CurrentStreak, &st.LongestStreak, &lastActive, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrGameStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game state: %w", translateError(err))
	}
	st.XP = shared.XP(xp)
	if lastActive.Valid {
		st.LastActiveAt = fromMillis(lastActive.Int64)
	}
	st.CreatedAt = fromMillis(createdAt)
	st.UpdatedAt = fromMillis(updatedAt)
	return &st, nil
}

func (r stateRepo) Save(ctx context.Context, st *gamification.GameState) error {
	var lastActive sql.NullInt64
	if !st.LastActiveAt.IsZero() {
		lastActive = sql.NullInt64{Int64: st.LastActiveAt.UTC().UnixMilli(), Valid: true}
	}
	_, err := r.q.ExecContext(ctx, `
INSERT INTO user_game_state (user_id, xp, current_streak, longest_streak, last_active_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    xp = excluded.xp,
    current_streak = excluded.current_streak,
    longest_streak = excluded.longest_streak,
    last_active_at = excluded.last_active_at,
    updated_at = excluded.updated_at`,
		st.UserID, st.XP.Int(), st.CurrentStreak, st.LongestStreak, lastActive,
		st.CreatedAt.UTC().UnixMilli(), st.UpdatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save game state: %w", translateError(err))
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UNLOCKS
// ══════════════════════════════════════════════════════════════════════════════

type unlockRepo struct {
	q queryer
}

func (r unlockRepo) Insert(ctx context.Context, u gamification.Unlock) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
INSERT INTO user_achievements (unlock_id, user_id, achievement_id, earned_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (user_id, achievement_id) DO NOTHING`,
		u.ID, u.UserID, u.AchievementID, u.EarnedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("insert unlock: %w", translateError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert unlock: %w", err)
	}
	return n == 1, nil
}

func (r unlockRepo) ListByUser(ctx context.Context, userID string) ([]gamification.Unlock, error) {
	rows, err := r.q.QueryContext(ctx, `
SELECT unlock_id, user_id, achievement_id, earned_at
FROM user_achievements
WHERE user_id = ?
ORDER BY earned_at, achievement_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list unlocks: %w", translateError(err))
	}
	defer rows.Close()

	var unlocks []gamification.Unlock
	for rows.Next() {
		var (
			u        gamification.Unlock
			earnedAt int64
		)
		if err := rows.Scan(&u.ID, &u.UserID, &u.AchievementID, &earnedAt); err != nil {
			return nil, fmt.Errorf("scan unlock: %w", err)
		}
		u.EarnedAt = fromMillis(earnedAt)
		unlocks = append(unlocks, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unlocks: %w", translateError(err))
	}
	return unlocks, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// translateError maps busy/locked to ErrConflict and a closed handle to
// ErrUnavailable.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return shared.WrapError("sqlite", "Exec", shared.ErrConflict, "database is busy", err)
		case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_IOERR:
			return shared.WrapError("sqlite", "Exec", shared.ErrUnavailable, "database file unavailable", err)
		}
		return err
	}
	if errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "database is closed") {
		return shared.WrapError("sqlite", "Conn", shared.ErrUnavailable, "connection closed", err)
	}
	return err
}
