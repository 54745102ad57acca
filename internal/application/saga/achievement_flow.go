// Package saga contains multi-step processes that run inside a single
// user transaction.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pixelcoders/roadmap-progress/internal/domain/gamification"
	"github.com/pixelcoders/roadmap-progress/internal/domain/progress"
	"github.com/pixelcoders/roadmap-progress/internal/domain/roadmap"
	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
	"github.com/pixelcoders/roadmap-progress/internal/domain/store"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT FLOW
// Load Progress → Load Unlocks → Evaluate → Grant (insert-if-absent) →
// Award XP → Evaluate once more → Grant → Award XP
//
// Every step reads and writes through the caller's unit of work, so the
// flow commits or rolls back together with the completion that
// triggered it.
// ══════════════════════════════════════════════════════════════════════════════

// evaluationRounds caps the cascade: rewards from the first round can
// qualify further achievements, rewards from the second cannot.
const evaluationRounds = 2

// IDGenerator produces unlock ids.
type IDGenerator interface {
	UnlockID() string
}

// AchievementFlowStep names a step of the flow for error reporting.
type AchievementFlowStep string

const (
	StepLoadProgress AchievementFlowStep = "load_progress"
	StepLoadUnlocks  AchievementFlowStep = "load_unlocks"
	StepLoadState    AchievementFlowStep = "load_state"
	StepGrant        AchievementFlowStep = "grant_achievement"
	StepAwardXP      AchievementFlowStep = "award_xp"
)

// GrantedAchievement is one unlock produced by the flow.
type GrantedAchievement struct {
	Definition gamification.Definition
	Unlock     gamification.Unlock
	Round      int
	Ledger     gamification.LedgerResult
}

// AchievementFlowResult contains the result of achievement processing.
type AchievementFlowResult struct {
	// Granted lists new unlocks in grant order.
	Granted []GrantedAchievement

	// BonusXP is the sum of rewards of Granted.
	BonusXP int

	// State is the game state after every reward.
	State *gamification.GameState
}

// HasNewAchievements returns true if any achievements were unlocked.
func (r *AchievementFlowResult) HasNewAchievements() bool {
	return len(r.Granted) > 0
}

// AchievementFlow evaluates and grants achievements for one user.
type AchievementFlow struct {
	catalog   roadmap.Catalog
	evaluator *gamification.Evaluator
	ids       IDGenerator
	location  *time.Location
}

// NewAchievementFlow creates the flow. A nil location means UTC.
func NewAchievementFlow(catalog roadmap.Catalog, evaluator *gamification.Evaluator, ids IDGenerator, location *time.Location) *AchievementFlow {
	if location == nil {
		location = time.UTC
	}
	return &AchievementFlow{
		catalog:   catalog,
		evaluator: evaluator,
		ids:       ids,
		location:  location,
	}
}

// Registry returns the definitions the flow evaluates.
func (f *AchievementFlow) Registry() *gamification.Registry {
	return f.evaluator.Registry()
}

// Execute runs the flow inside uow. Each achievement is inserted before
// its reward is applied; an insert that reports the pair as already
// present grants nothing, so an achievement is returned at most once.
func (f *AchievementFlow) Execute(ctx context.Context, uow store.UnitOfWork, userID string, now time.Time) (*AchievementFlowResult, error) {
	roadmaps, err := f.loadRoadmaps(ctx, uow.Progress(), userID)
	if err != nil {
		return nil, wrapStep(StepLoadProgress, err)
	}

	unlocks, err := uow.Unlocks().ListByUser(ctx, userID)
	if err != nil {
		return nil, wrapStep(StepLoadUnlocks, err)
	}
	unlocked := gamification.UnlockedSet(unlocks)

	ledger := gamification.NewLedger(uow.GameStates())
	result := &AchievementFlowResult{}

	for round := 1; round <= evaluationRounds; round++ {
		state, err := ledger.Load(ctx, userID, now)
		if err != nil {
			return nil, wrapStep(StepLoadState, err)
		}
		result.State = state

		qualified := f.evaluator.Evaluate(gamification.Snapshot{
			Roadmaps: roadmaps,
			State:    *state,
			Location: f.location,
		}, unlocked)
		if len(qualified) == 0 {
			break
		}

		for _, def := range qualified {
			granted, ok, err := f.grant(ctx, uow, ledger, userID, def, round, now)
			if err != nil {
				return nil, err
			}
			unlocked[def.ID] = struct{}{}
			if !ok {
				continue
			}
			result.Granted = append(result.Granted, granted)
			result.BonusXP += def.XPReward
		}
	}

	if result.HasNewAchievements() {
		state, err := ledger.Load(ctx, userID, now)
		if err != nil {
			return nil, wrapStep(StepLoadState, err)
		}
		result.State = state
	}

	return result, nil
}

func (f *AchievementFlow) grant(
	ctx context.Context,
	uow store.UnitOfWork,
	ledger *gamification.Ledger,
	userID string,
	def gamification.Definition,
	round int,
	now time.Time,
) (GrantedAchievement, bool, error) {
	unlock := gamification.Unlock{
		ID:            f.ids.UnlockID(),
		UserID:        userID,
		AchievementID: def.ID,
		EarnedAt:      now,
	}
	inserted, err := uow.Unlocks().Insert(ctx, unlock)
	if err != nil {
		return GrantedAchievement{}, false, wrapStep(StepGrant, err)
	}
	if !inserted {
		return GrantedAchievement{}, false, nil
	}

	res, err := ledger.ApplyXP(ctx, userID, def.XPReward, now)
	if err != nil {
		return GrantedAchievement{}, false, wrapStep(StepAwardXP, err)
	}

	return GrantedAchievement{
		Definition: def,
		Unlock:     unlock,
		Round:      round,
		Ledger:     res,
	}, true, nil
}

// loadRoadmaps reduces the user's records to counts. Records of roadmaps
// no longer in the catalog are ignored.
func (f *AchievementFlow) loadRoadmaps(ctx context.Context, repo progress.Repository, userID string) ([]gamification.RoadmapProgress, error) {
	records, err := repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]gamification.RoadmapProgress, 0, len(records))
	for _, rec := range records {
		g, err := f.catalog.Get(ctx, rec.RoadmapID)
		if err != nil {
			if shared.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		out = append(out, gamification.RoadmapProgress{
			RoadmapID: rec.RoadmapID,
			Completed: rec.CompletedIn(g),
			Total:     g.TotalNodes(),
		})
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// AchievementFlowError reports the step that failed.
type AchievementFlowError struct {
	Step AchievementFlowStep
	Err  error
}

func (e *AchievementFlowError) Error() string {
	return fmt.Sprintf("achievement_flow: step %s: %v", e.Step, e.Err)
}

func (e *AchievementFlowError) Unwrap() error {
	return e.Err
}

func wrapStep(step AchievementFlowStep, err error) error {
	var flowErr *AchievementFlowError
	if errors.As(err, &flowErr) {
		return err
	}
	return &AchievementFlowError{Step: step, Err: err}
}
