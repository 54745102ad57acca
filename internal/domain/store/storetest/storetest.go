// Package storetest holds the behaviour every store.Store backend must share.
// Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelcoders/roadmap-progress/internal/domain/gamification"
	"github.com/pixelcoders/roadmap-progress/internal/domain/progress"
	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
	"github.com/pixelcoders/roadmap-progress/internal/domain/store"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) store.Store

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// Run executes the shared suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("ProgressAppend", func(t *testing.T) { testProgressAppend(t, newStore(t)) })
	t.Run("GameStateRoundTrip", func(t *testing.T) { testGameState(t, newStore(t)) })
	t.Run("UnlockInsertOnce", func(t *testing.T) { testUnlocks(t, newStore(t)) })
	t.Run("TxRollback", func(t *testing.T) { testTxRollback(t, newStore(t)) })
	t.Run("TxReadYourWrites", func(t *testing.T) { testTxReadYourWrites(t, newStore(t)) })
	t.Run("TxSerializesUser", func(t *testing.T) { testTxSerializes(t, newStore(t)) })
}

func appendParams(user, roadmap, node string, at time.Time) progress.AppendParams {
	return progress.AppendParams{
		ProgressID: "progress_" + user + "_" + roadmap,
		UserID:     user,
		RoadmapID:  roadmap,
		NodeID:     node,
		At:         at,
	}
}

func testProgressAppend(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.Progress()

	_, err := repo.Get(ctx, "u1", "frontend_dev")
	assert.ErrorIs(t, err, shared.ErrProgressNotFound)

	ok, err := repo.AppendNode(ctx, appendParams("u1", "frontend_dev", "html", t0))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AppendNode(ctx, appendParams("u1", "frontend_dev", "css", t0.Add(time.Minute)))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AppendNode(ctx, appendParams("u1", "frontend_dev", "html", t0.Add(time.Hour)))
	require.NoError(t, err)
	assert.False(t, ok, "second append of the same node is a no-op")

	rec, err := repo.Get(ctx, "u1", "frontend_dev")
	require.NoError(t, err)
	assert.Equal(t, "progress_u1_frontend_dev", rec.ID)
	assert.Equal(t, []string{"html", "css"}, rec.CompletedNodes())
	assert.True(t, rec.StartedAt.Equal(t0))
	assert.True(t, rec.LastUpdated.Equal(t0.Add(time.Minute)))

	_, err = repo.AppendNode(ctx, appendParams("u1", "backend_dev", "python", t0))
	require.NoError(t, err)
	_, err = repo.AppendNode(ctx, appendParams("u2", "backend_dev", "python", t0))
	require.NoError(t, err)

	list, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "backend_dev", list[0].RoadmapID)
	assert.Equal(t, "frontend_dev", list[1].RoadmapID)

	list, err = repo.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testGameState(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.GameStates()

	_, err := repo.Get(ctx, "u1")
	assert.ErrorIs(t, err, shared.ErrGameStateNotFound)

	st := gamification.NewGameState("u1", t0)
	st.XP = 130
	st.CurrentStreak = 2
	st.LongestStreak = 5
	st.LastActiveAt = t0.Add(time.Hour)
	require.NoError(t, repo.Save(ctx, st))

	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, shared.XP(130), got.XP)
	assert.Equal(t, shared.Level(2), got.Level())
	assert.Equal(t, 2, got.CurrentStreak)
	assert.Equal(t, 5, got.LongestStreak)
	assert.True(t, got.LastActiveAt.Equal(t0.Add(time.Hour)))

	got.XP = 200
	require.NoError(t, repo.Save(ctx, got))
	got, err = repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, shared.XP(200), got.XP)
}

func testUnlocks(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.Unlocks()

	ok, err := repo.Insert(ctx, gamification.Unlock{ID: "ua_1", UserID: "u1", AchievementID: "roadmap_master", EarnedAt: t0.Add(time.Minute)})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Insert(ctx, gamification.Unlock{ID: "ua_2", UserID: "u1", AchievementID: "roadmap_master", EarnedAt: t0.Add(time.Hour)})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Insert(ctx, gamification.Unlock{ID: "ua_3", UserID: "u1", AchievementID: "first_step", EarnedAt: t0})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Insert(ctx, gamification.Unlock{ID: "ua_4", UserID: "u2", AchievementID: "first_step", EarnedAt: t0})
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first_step", list[0].AchievementID)
	assert.Equal(t, "roadmap_master", list[1].AchievementID)
	assert.Equal(t, "ua_1", list[1].ID)
}

func testTxRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinUserTx(ctx, "u1", func(ctx context.Context, uow store.UnitOfWork) error {
		if _, err := uow.Progress().AppendNode(ctx, appendParams("u1", "frontend_dev", "html", t0)); err != nil {
			return err
		}
		if err := uow.GameStates().Save(ctx, gamification.NewGameState("u1", t0)); err != nil {
			return err
		}
		if _, err := uow.Unlocks().Insert(ctx, gamification.Unlock{ID: "ua_1", UserID: "u1", AchievementID: "first_step", EarnedAt: t0}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Progress().Get(ctx, "u1", "frontend_dev")
	assert.ErrorIs(t, err, shared.ErrProgressNotFound)
	_, err = s.GameStates().Get(ctx, "u1")
	assert.ErrorIs(t, err, shared.ErrGameStateNotFound)
	unlocks, err := s.Unlocks().ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, unlocks)
}

func testTxReadYourWrites(t *testing.T, s store.Store) {
	ctx := context.Background()

	err := s.WithinUserTx(ctx, "u1", func(ctx context.Context, uow store.UnitOfWork) error {
		if _, err := uow.Progress().AppendNode(ctx, appendParams("u1", "frontend_dev", "html", t0)); err != nil {
			return err
		}
		rec, err := uow.Progress().Get(ctx, "u1", "frontend_dev")
		if err != nil {
			return err
		}
		assert.True(t, rec.Has("html"))

		ok, err := uow.Unlocks().Insert(ctx, gamification.Unlock{ID: "ua_1", UserID: "u1", AchievementID: "first_step", EarnedAt: t0})
		if err != nil {
			return err
		}
		assert.True(t, ok)
		ok, err = uow.Unlocks().Insert(ctx, gamification.Unlock{ID: "ua_2", UserID: "u1", AchievementID: "first_step", EarnedAt: t0})
		if err != nil {
			return err
		}
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)

	rec, err := s.Progress().Get(ctx, "u1", "frontend_dev")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Count())
}

func testTxSerializes(t *testing.T, s store.Store) {
	ctx := context.Background()
	const workers = 8

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithinUserTx(ctx, "u1", func(ctx context.Context, uow store.UnitOfWork) error {
				_, err := gamification.NewLedger(uow.GameStates()).ApplyXP(ctx, "u1", 10, t0)
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	st, err := s.GameStates().Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, shared.XP(workers*10), st.XP, "no lost updates")
}
