package gamification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
)

// mapStateRepo implements GameStateRepository for ledger tests.
type mapStateRepo struct {
	states  map[string]GameState
	saveErr error
}

func newMapStateRepo() *mapStateRepo {
	return &mapStateRepo{states: map[string]GameState{}}
}

func (m *mapStateRepo) Get(_ context.Context, userID string) (*GameState, error) {
	st, ok := m.states[userID]
	if !ok {
		return nil, shared.ErrGameStateNotFound
	}
	return &st, nil
}

func (m *mapStateRepo) Save(_ context.Context, st *GameState) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.states[st.UserID] = *st
	return nil
}

func TestLevelCurve(t *testing.T) {
	cases := map[int]int{0: 1, 1: 1, 99: 1, 100: 2, 199: 2, 250: 3, 1000: 11}
	for xp, level := range cases {
		assert.Equal(t, shared.Level(level), shared.XP(xp).Level(), "xp=%d", xp)
	}
}

func TestGameState_ApplyXP(t *testing.T) {
	now := time.Now()
	st := NewGameState("u1", now)
	assert.Equal(t, shared.Level(1), st.Level())

	res, err := st.ApplyXP(90, now)
	require.NoError(t, err)
	assert.False(t, res.LeveledUp)
	assert.Equal(t, shared.XP(90), res.XP)

	res, err = st.ApplyXP(10, now)
	require.NoError(t, err)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, shared.Level(1), res.PreviousLevel)
	assert.Equal(t, shared.Level(2), res.Level)

	res, err = st.ApplyXP(0, now)
	require.NoError(t, err)
	assert.False(t, res.LeveledUp)

	_, err = st.ApplyXP(-5, now)
	assert.ErrorIs(t, err, shared.ErrNegativeXPDelta)
	assert.Equal(t, shared.XP(100), st.XP)
}

func TestGameState_RecordActivity(t *testing.T) {
	day := func(d, h int) time.Time { return time.Date(2025, 3, d, h, 0, 0, 0, time.UTC) }
	st := NewGameState("u1", day(1, 0))

	c := st.RecordActivity(day(1, 9), time.UTC)
	assert.Equal(t, 1, c.Current)
	assert.True(t, c.Extended)

	c = st.RecordActivity(day(1, 20), time.UTC)
	assert.Equal(t, 1, c.Current)
	assert.False(t, c.Extended)

	for d := 2; d <= 4; d++ {
		c = st.RecordActivity(day(d, 12), time.UTC)
	}
	assert.Equal(t, 4, c.Current)
	assert.Equal(t, 4, st.LongestStreak)

	c = st.RecordActivity(day(7, 12), time.UTC)
	assert.True(t, c.Broken)
	assert.Equal(t, 1, st.CurrentStreak)
	assert.Equal(t, 4, st.LongestStreak)
	assert.Equal(t, day(7, 12), st.LastActiveAt)
}

func TestLedger(t *testing.T) {
	ctx := context.Background()
	repo := newMapStateRepo()
	l := NewLedger(repo)
	now := time.Now()

	res, err := l.ApplyXP(ctx, "u1", 150, now)
	require.NoError(t, err)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, 150, repo.states["u1"].XP.Int())

	_, err = l.ApplyXP(ctx, "u1", -1, now)
	assert.ErrorIs(t, err, shared.ErrNegativeXPDelta)

	change, err := l.RecordActivity(ctx, "u1", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 1, change.Current)
	assert.Equal(t, 150, repo.states["u1"].XP.Int(), "activity must not touch XP")

	repo.saveErr = errors.New("disk full")
	_, err = l.ApplyXP(ctx, "u1", 10, now)
	assert.Error(t, err)
	assert.Equal(t, 150, repo.states["u1"].XP.Int())
}

func TestEvaluator_Default(t *testing.T) {
	reg := MustDefaultRegistry()
	ev := NewEvaluator(reg)

	snap := Snapshot{
		Roadmaps: []RoadmapProgress{{RoadmapID: "frontend_dev", Completed: 1, Total: 8}},
		State:    GameState{XP: 10, LastActiveAt: time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)},
	}
	got := ids(ev.Evaluate(snap, nil))
	assert.Equal(t, []string{AchievementFirstStep, AchievementRoadmapRookie}, got)

	unlocked := map[string]struct{}{AchievementFirstStep: {}}
	got = ids(ev.Evaluate(snap, unlocked))
	assert.Equal(t, []string{AchievementRoadmapRookie}, got)

	snap.Roadmaps[0].Completed = 8
	snap.State.XP = 420
	snap.State.CurrentStreak = 7
	snap.State.LastActiveAt = time.Date(2025, 3, 1, 2, 30, 0, 0, time.UTC)
	got = ids(ev.Evaluate(snap, nil))
	assert.Equal(t, []string{
		AchievementFirstStep, AchievementRoadmapRookie, AchievementNodeCollector,
		AchievementRoadmapMaster, AchievementLevelFive, AchievementWeekWarrior, AchievementNightOwl,
	}, got)
}

func TestEvaluator_TimeOfDayUsesLocation(t *testing.T) {
	ev := NewEvaluator(MustDefaultRegistry())
	snap := Snapshot{
		State:    GameState{LastActiveAt: time.Date(2025, 3, 1, 0, 30, 0, 0, time.UTC)},
		Location: time.FixedZone("UTC+5", 5*60*60),
	}
	assert.Equal(t, []string{AchievementEarlyBird}, ids(ev.Evaluate(snap, nil)))
}

func TestEvaluator_SkipsExternal(t *testing.T) {
	reg, err := NewRegistry(Definition{ID: "forum"}, Definition{ID: "always", Predicate: func(Snapshot) bool { return true }})
	require.NoError(t, err)
	assert.Equal(t, []string{"always"}, ids(NewEvaluator(reg).Evaluate(Snapshot{}, nil)))
}

func TestRegistry(t *testing.T) {
	_, err := NewRegistry(Definition{ID: "a"}, Definition{ID: "a"})
	assert.ErrorIs(t, err, shared.ErrAchievementDuplicate)

	_, err = NewRegistry(Definition{ID: "neg", XPReward: -1})
	assert.True(t, shared.IsValidation(err))

	_, err = NewRegistry(Definition{})
	assert.Error(t, err)

	reg := MustDefaultRegistry()
	assert.Len(t, reg.All(), 10)
	d, ok := reg.Get(AchievementRoadmapMaster)
	require.True(t, ok)
	assert.Equal(t, 100, d.XPReward)
	assert.False(t, d.External())

	d, ok = reg.Get(AchievementProblemSolver)
	require.True(t, ok)
	assert.True(t, d.External())
}

func TestJoinUnlocks(t *testing.T) {
	reg := MustDefaultRegistry()
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	views := JoinUnlocks([]Unlock{
		{ID: "ua_1", UserID: "u1", AchievementID: AchievementFirstStep, EarnedAt: at},
		{ID: "ua_2", UserID: "u1", AchievementID: "retired", EarnedAt: at},
	}, reg)
	require.Len(t, views, 1)
	assert.Equal(t, "First Step", views[0].Name)
	assert.Equal(t, at, views[0].EarnedAt)

	set := UnlockedSet([]Unlock{{AchievementID: "x"}, {AchievementID: "y"}})
	assert.Len(t, set, 2)
}

func TestViewOf(t *testing.T) {
	st := &GameState{UserID: "u1", XP: 250, CurrentStreak: 2, LongestStreak: 3}
	v := ViewOf(st)
	assert.Equal(t, 3, v.Level)
	assert.Equal(t, 50, v.XPIntoLevel)
	assert.Equal(t, 50, v.XPToNextLevel)
	assert.Nil(t, v.LastActiveAt)
}

func ids(defs []Definition) []string {
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.ID)
	}
	return out
}
