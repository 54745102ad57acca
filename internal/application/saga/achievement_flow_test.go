package saga

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelcoders/roadmap-progress/internal/domain/gamification"
	"github.com/pixelcoders/roadmap-progress/internal/domain/progress"
	"github.com/pixelcoders/roadmap-progress/internal/domain/roadmap"
	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
	"github.com/pixelcoders/roadmap-progress/internal/domain/store"
	"github.com/pixelcoders/roadmap-progress/internal/infrastructure/persistence/memory"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type seqIDs struct{ n int }

func (s *seqIDs) UnlockID() string {
	s.n++
	return fmt.Sprintf("ua_%012d", s.n)
}

func testCatalog(t *testing.T) roadmap.Catalog {
	t.Helper()
	g, err := roadmap.NewGraph(roadmap.NewGraphParams{
		ID:    "frontend_dev",
		Title: "Frontend",
		Nodes: []roadmap.Node{{ID: "html"}, {ID: "css"}},
	})
	require.NoError(t, err)
	c, err := roadmap.NewStaticCatalog(g)
	require.NoError(t, err)
	return c
}

// chainRegistry: each achievement's reward qualifies the next one.
func chainRegistry(t *testing.T) *gamification.Registry {
	t.Helper()
	r, err := gamification.NewRegistry(
		gamification.Definition{ID: "first", XPReward: 100, Predicate: func(s gamification.Snapshot) bool { return s.TotalCompleted() >= 1 }},
		gamification.Definition{ID: "level_two", XPReward: 100, Predicate: func(s gamification.Snapshot) bool { return s.State.Level() >= 2 }},
		gamification.Definition{ID: "level_three", XPReward: 5, Predicate: func(s gamification.Snapshot) bool { return s.State.Level() >= 3 }},
		gamification.Definition{ID: "external", XPReward: 999},
	)
	require.NoError(t, err)
	return r
}

func run(t *testing.T, s store.Store, flow *AchievementFlow) *AchievementFlowResult {
	t.Helper()
	var res *AchievementFlowResult
	err := s.WithinUserTx(context.Background(), "u1", func(ctx context.Context, uow store.UnitOfWork) error {
		var err error
		res, err = flow.Execute(ctx, uow, "u1", now)
		return err
	})
	require.NoError(t, err)
	return res
}

func TestAchievementFlow_CascadeStopsAfterSecondRound(t *testing.T) {
	s := memory.New()
	_, err := s.Progress().AppendNode(context.Background(), progress.AppendParams{
		ProgressID: "progress_1", UserID: "u1", RoadmapID: "frontend_dev", NodeID: "html", At: now,
	})
	require.NoError(t, err)

	flow := NewAchievementFlow(testCatalog(t), gamification.NewEvaluator(chainRegistry(t)), &seqIDs{}, nil)

	res := run(t, s, flow)
	require.Len(t, res.Granted, 2)
	assert.Equal(t, "first", res.Granted[0].Definition.ID)
	assert.Equal(t, 1, res.Granted[0].Round)
	assert.Equal(t, "level_two", res.Granted[1].Definition.ID)
	assert.Equal(t, 2, res.Granted[1].Round)
	assert.Equal(t, 200, res.BonusXP)
	assert.Equal(t, shared.XP(200), res.State.XP)
	assert.Equal(t, shared.Level(3), res.State.Level())

	// The next evaluation picks up what the capped cascade left behind.
	res = run(t, s, flow)
	require.Len(t, res.Granted, 1)
	assert.Equal(t, "level_three", res.Granted[0].Definition.ID)

	res = run(t, s, flow)
	assert.False(t, res.HasNewAchievements())
	assert.Equal(t, shared.XP(205), res.State.XP)

	unlocks, err := s.Unlocks().ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, unlocks, 3)
}

func TestAchievementFlow_NothingQualifies(t *testing.T) {
	s := memory.New()
	flow := NewAchievementFlow(testCatalog(t), gamification.NewEvaluator(chainRegistry(t)), &seqIDs{}, nil)

	res := run(t, s, flow)
	assert.False(t, res.HasNewAchievements())
	assert.Equal(t, shared.XP(0), res.State.XP)
}

func TestAchievementFlow_IgnoresUnknownRoadmaps(t *testing.T) {
	s := memory.New()
	_, err := s.Progress().AppendNode(context.Background(), progress.AppendParams{
		ProgressID: "progress_1", UserID: "u1", RoadmapID: "retired", NodeID: "x", At: now,
	})
	require.NoError(t, err)

	flow := NewAchievementFlow(testCatalog(t), gamification.NewEvaluator(chainRegistry(t)), &seqIDs{}, nil)
	res := run(t, s, flow)
	assert.False(t, res.HasNewAchievements())
}

func TestAchievementFlowError(t *testing.T) {
	base := shared.ErrStoreUnavailable
	err := wrapStep(StepGrant, base)
	assert.ErrorIs(t, err, shared.ErrUnavailable)
	assert.Contains(t, err.Error(), "grant_achievement")
	assert.Same(t, err, wrapStep(StepAwardXP, err))
}
