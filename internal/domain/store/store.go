// Package store defines the transactional boundary around the three
// independent tables: progress records, game states and unlocks.
package store

import (
	"context"

	"github.com/pixelcoders/roadmap-progress/internal/domain/gamification"
	"github.com/pixelcoders/roadmap-progress/internal/domain/progress"
)

// UnitOfWork exposes repositories bound to one transaction (or, on Store
// itself, to autocommit reads).
type UnitOfWork interface {
	Progress() progress.Repository
	GameStates() gamification.GameStateRepository
	Unlocks() gamification.UnlockRepository
}

// TxFunc runs inside a user-scoped transaction.
type TxFunc func(ctx context.Context, uow UnitOfWork) error

// Transactor runs work atomically for one user.
type Transactor interface {
	// WithinUserTx runs fn in a transaction that is serialized against
	// every other WithinUserTx call for the same user. If fn returns an
	// error nothing is committed. Contention surfaces as ErrConflict and
	// may be retried by the caller.
	WithinUserTx(ctx context.Context, userID string, fn TxFunc) error
}

// Store is a complete persistence backend.
type Store interface {
	UnitOfWork
	Transactor

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
