package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pixelcoders/roadmap-progress/internal/domain/gamification"
	"github.com/pixelcoders/roadmap-progress/internal/domain/progress"
	"github.com/pixelcoders/roadmap-progress/internal/domain/store"
)

// Store implements store.Store on a pgx pool.
type Store struct {
	conn     *Connection
	progress *ProgressRepository
	states   *GameStateRepository
	unlocks  *UnlockRepository
}

var _ store.Store = (*Store)(nil)

// NewStore wraps an open connection.
func NewStore(conn *Connection) *Store {
	return &Store{
		conn:     conn,
		progress: NewProgressRepository(conn),
		states:   NewGameStateRepository(conn),
		unlocks:  NewUnlockRepository(conn),
	}
}

// Progress returns the autocommit progress repository.
func (s *Store) Progress() progress.Repository { return s.progress }

// GameStates returns the autocommit game state repository.
func (s *Store) GameStates() gamification.GameStateRepository { return s.states }

// Unlocks returns the autocommit unlock repository.
func (s *Store) Unlocks() gamification.UnlockRepository { return s.unlocks }

// WithinUserTx runs fn in a read-committed transaction that first takes a
// transaction-scoped advisory lock on the user id. The lock is released by
// commit or rollback, so every completion for one user is serialized
// across all service instances.
func (s *Store) WithinUserTx(ctx context.Context, userID string, fn store.TxFunc) error {
	err := s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, userID); err != nil {
			return fmt.Errorf("failed to lock user: %w", translateError(err))
		}
		return fn(ctx, txUnit{tx: tx})
	})
	return translateError(err)
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.conn.Close()
	return nil
}

// txUnit binds repositories to one transaction.
type txUnit struct {
	tx pgx.Tx
}

func (u txUnit) Progress() progress.Repository { return NewProgressRepository(u.tx) }

func (u txUnit) GameStates() gamification.GameStateRepository { return NewGameStateRepository(u.tx) }

func (u txUnit) Unlocks() gamification.UnlockRepository { return NewUnlockRepository(u.tx) }
