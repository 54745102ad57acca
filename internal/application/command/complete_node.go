// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pixelcoders/roadmap-progress/internal/application/saga"
	"github.com/pixelcoders/roadmap-progress/internal/domain/gamification"
	"github.com/pixelcoders/roadmap-progress/internal/domain/progress"
	"github.com/pixelcoders/roadmap-progress/internal/domain/roadmap"
	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
	"github.com/pixelcoders/roadmap-progress/internal/domain/store"
	"github.com/pixelcoders/roadmap-progress/pkg/keylock"
	"github.com/pixelcoders/roadmap-progress/pkg/logger"
	"github.com/pixelcoders/roadmap-progress/pkg/retry"
	"github.com/pixelcoders/roadmap-progress/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE NODE COMMAND
// Marks a roadmap node complete for a user. The progress write, the node
// reward, the streak update and every achievement grant commit in one
// store transaction, or none of them do.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteNodeCommand contains the data to complete a node.
type CompleteNodeCommand struct {
	// UserID is the identity resolved by the authentication collaborator.
	UserID string

	// RoadmapID must resolve in the catalog.
	RoadmapID string

	// NodeID must be a node of the roadmap.
	NodeID string

	// CorrelationID for tracing (usually the request id).
	CorrelationID string
}

// Validate checks identifier syntax. Catalog membership is checked by the
// handler.
func (c CompleteNodeCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	if _, err := shared.NewRoadmapID(c.RoadmapID); err != nil {
		return fmt.Errorf("roadmap %q: %w", c.RoadmapID, shared.ErrRoadmapNotFound)
	}
	if _, err := shared.NewNodeID(c.NodeID); err != nil {
		return fmt.Errorf("node %q: %w", c.NodeID, shared.ErrNodeNotInRoadmap)
	}
	return nil
}

// CompleteNodeResult contains the outcome of a completion.
type CompleteNodeResult struct {
	// Progress is the record after the call.
	Progress progress.View

	// Changed is false when the node was already completed.
	Changed bool

	// XPGained is the node reward plus every achievement reward granted by
	// this call.
	XPGained int

	// LeveledUp compares the level before and after the whole call.
	LeveledUp bool

	// GameState is the user's ledger after the call.
	GameState gamification.View

	// Unlocked lists achievements granted by this call.
	Unlocked []gamification.UnlockView

	// Events contains the domain events of the committed transaction.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// COLLABORATORS
// ══════════════════════════════════════════════════════════════════════════════

// IDGenerator produces record and unlock ids.
type IDGenerator interface {
	ProgressID() string
	UnlockID() string
}

// Flags gates optional behaviour per user.
type Flags interface {
	PrerequisitesEnforced(userID string) bool
	StreaksEnabled(userID string) bool
	EventsEnabled() bool
}

// CacheInvalidator drops cached reads of a user.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// defaultFlags is used when no Flags are configured.
type defaultFlags struct{}

func (defaultFlags) PrerequisitesEnforced(string) bool { return false }
func (defaultFlags) StreaksEnabled(string) bool        { return true }
func (defaultFlags) EventsEnabled() bool               { return true }

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CompleteNodeHandlerConfig contains configuration for the handler.
type CompleteNodeHandlerConfig struct {
	// NodeXPReward is granted for every first-time completion.
	NodeXPReward int

	// Location defines calendar days for streaks.
	Location *time.Location

	// MaxAttempts bounds retries of a transaction that hit contention.
	MaxAttempts int

	// InvalidateTimeout bounds the post-commit cache invalidation.
	InvalidateTimeout time.Duration
}

// DefaultCompleteNodeHandlerConfig returns default configuration.
func DefaultCompleteNodeHandlerConfig() CompleteNodeHandlerConfig {
	return CompleteNodeHandlerConfig{
		NodeXPReward:      10,
		Location:          time.UTC,
		MaxAttempts:       5,
		InvalidateTimeout: 2 * time.Second,
	}
}

// CompleteNodeHandler handles the CompleteNodeCommand.
type CompleteNodeHandler struct {
	catalog   roadmap.Catalog
	store     store.Store
	flow      *saga.AchievementFlow
	ids       IDGenerator
	clock     timeutil.Clock
	locks     *keylock.Locker
	retrier   *retry.Retrier
	publisher shared.EventPublisher
	cache     CacheInvalidator
	flags     Flags
	log       *logger.Logger
	config    CompleteNodeHandlerConfig
}

// CompleteNodeDeps groups the handler's required collaborators.
type CompleteNodeDeps struct {
	Catalog roadmap.Catalog
	Store   store.Store
	Flow    *saga.AchievementFlow
	IDs     IDGenerator
	Clock   timeutil.Clock

	// Optional
	Publisher shared.EventPublisher
	Cache     CacheInvalidator
	Flags     Flags
	Logger    *logger.Logger
}

// NewCompleteNodeHandler creates a new CompleteNodeHandler.
func NewCompleteNodeHandler(deps CompleteNodeDeps, config CompleteNodeHandlerConfig) *CompleteNodeHandler {
	defaults := DefaultCompleteNodeHandlerConfig()
	if config.NodeXPReward < 0 {
		config.NodeXPReward = defaults.NodeXPReward
	}
	if config.Location == nil {
		config.Location = defaults.Location
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.InvalidateTimeout <= 0 {
		config.InvalidateTimeout = defaults.InvalidateTimeout
	}
	if deps.Clock == nil {
		deps.Clock = timeutil.SystemClock{}
	}
	if deps.Flags == nil {
		deps.Flags = defaultFlags{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}

	h := &CompleteNodeHandler{
		catalog:   deps.Catalog,
		store:     deps.Store,
		flow:      deps.Flow,
		ids:       deps.IDs,
		clock:     deps.Clock,
		locks:     keylock.New(),
		publisher: deps.Publisher,
		cache:     deps.Cache,
		flags:     deps.Flags,
		log:       deps.Logger.With(logger.Component("complete-node")),
		config:    config,
	}
	h.retrier = retry.ConflictRetrier(config.MaxAttempts, shared.IsConflict, func(attempt int, err error, delay time.Duration) {
		h.log.Debug("retrying after store contention",
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Err(err),
		)
	})
	return h
}

// txOutcome is filled inside the transaction. It is reset on every attempt.
type txOutcome struct {
	record    *progress.Record
	changed   bool
	before    *gamification.GameState
	after     *gamification.GameState
	nodeXP    gamification.LedgerResult
	streak    gamification.StreakChange
	streakSet bool
	flow      *saga.AchievementFlowResult
}

// Handle executes the complete node command.
//
// Errors: ErrNotFound (unknown roadmap), ErrInvalidNode (node not in the
// roadmap, or prerequisites not met when gating is on), ErrUnavailable
// (store unreachable, or contention outlasted every retry).
func (h *CompleteNodeHandler) Handle(ctx context.Context, cmd CompleteNodeCommand) (*CompleteNodeResult, error) {
	start := time.Now()
	log := h.log.With(
		logger.UserID(cmd.UserID),
		logger.RoadmapID(cmd.RoadmapID),
		logger.NodeID(cmd.NodeID),
	)
	if cmd.CorrelationID != "" {
		log = log.WithRequestID(cmd.CorrelationID)
	}

	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	graph, err := h.catalog.Get(ctx, cmd.RoadmapID)
	if err != nil {
		return nil, err
	}
	if !graph.HasNode(cmd.NodeID) {
		return nil, fmt.Errorf("roadmap %q node %q: %w", cmd.RoadmapID, cmd.NodeID, shared.ErrNodeNotInRoadmap)
	}

	now := h.clock.Now()
	out, err := h.commit(ctx, graph, cmd, now)
	if err != nil {
		if shared.IsConflict(err) {
			err = shared.WrapError("progress", "CompleteNode", shared.ErrUnavailable,
				"store contention outlasted retries", err)
		}
		if shared.IsUnavailable(err) {
			log.Error("complete node failed", logger.Err(err), logger.Latency(time.Since(start)))
		}
		return nil, err
	}

	result := h.buildResult(graph, cmd, now, out)

	// The transaction is committed; a canceled request must not undo the
	// follow-up work.
	if result.Changed {
		h.afterCommit(context.WithoutCancel(ctx), cmd.UserID, result.Events, log)
	}

	log.Info("node completion handled",
		logger.Bool("changed", result.Changed),
		logger.XPAmount(result.XPGained),
		logger.UserLevel(result.GameState.Level),
		logger.Int("unlocked", len(result.Unlocked)),
		logger.Latency(time.Since(start)),
	)
	return result, nil
}

// commit runs the transaction under the user's lock. The lock is released
// when the transaction returns, so nothing after commit holds it.
func (h *CompleteNodeHandler) commit(ctx context.Context, graph *roadmap.Graph, cmd CompleteNodeCommand, now time.Time) (*txOutcome, error) {
	unlock, err := h.locks.Lock(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out txOutcome
	err = h.retrier.Do(ctx, func(ctx context.Context) error {
		out = txOutcome{}
		return h.store.WithinUserTx(ctx, cmd.UserID, func(ctx context.Context, uow store.UnitOfWork) error {
			return h.apply(ctx, uow, graph, cmd, now, &out)
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// apply is the transactional body.
func (h *CompleteNodeHandler) apply(
	ctx context.Context,
	uow store.UnitOfWork,
	graph *roadmap.Graph,
	cmd CompleteNodeCommand,
	now time.Time,
	out *txOutcome,
) error {
	ledger := gamification.NewLedger(uow.GameStates())

	before, err := ledger.Load(ctx, cmd.UserID, now)
	if err != nil {
		return err
	}
	out.before = before
	out.after = before

	rec, err := uow.Progress().Get(ctx, cmd.UserID, cmd.RoadmapID)
	switch {
	case shared.IsNotFound(err):
		rec = progress.NewRecord(cmd.UserID, cmd.RoadmapID)
	case err != nil:
		return err
	}
	out.record = rec

	if rec.Has(cmd.NodeID) {
		return nil
	}

	if h.flags.PrerequisitesEnforced(cmd.UserID) && !graph.PrerequisitesMet(cmd.NodeID, rec.CompletedSet()) {
		return fmt.Errorf("roadmap %q node %q: %w", cmd.RoadmapID, cmd.NodeID, shared.ErrPrerequisitesNotMet)
	}

	progressID := rec.ID
	if progressID == "" {
		progressID = h.ids.ProgressID()
	}
	added, err := uow.Progress().AppendNode(ctx, progress.AppendParams{
		ProgressID: progressID,
		UserID:     cmd.UserID,
		RoadmapID:  cmd.RoadmapID,
		NodeID:     cmd.NodeID,
		At:         now,
	})
	if err != nil {
		return err
	}
	if !added {
		return nil
	}
	if out.record, err = uow.Progress().Get(ctx, cmd.UserID, cmd.RoadmapID); err != nil {
		return err
	}
	out.changed = true

	out.nodeXP, err = ledger.ApplyXP(ctx, cmd.UserID, h.config.NodeXPReward, now)
	if err != nil {
		return err
	}

	if h.flags.StreaksEnabled(cmd.UserID) {
		out.streak, err = ledger.RecordActivity(ctx, cmd.UserID, now, h.config.Location)
		if err != nil {
			return err
		}
		out.streakSet = true
	}

	out.flow, err = h.flow.Execute(ctx, uow, cmd.UserID, now)
	if err != nil {
		return err
	}
	out.after = out.flow.State
	return nil
}

func (h *CompleteNodeHandler) buildResult(graph *roadmap.Graph, cmd CompleteNodeCommand, now time.Time, out *txOutcome) *CompleteNodeResult {
	result := &CompleteNodeResult{
		Progress:  progress.ViewOf(out.record, graph),
		Changed:   out.changed,
		GameState: gamification.ViewOf(out.after),
		Unlocked:  []gamification.UnlockView{},
	}
	if !out.changed {
		return result
	}

	result.XPGained = h.config.NodeXPReward
	result.LeveledUp = out.after.Level() > out.before.Level()

	correlate := func(b shared.BaseEvent) shared.BaseEvent { return b.WithCorrelationID(cmd.CorrelationID) }

	nodeEv := shared.NewNodeCompletedEvent(cmd.UserID, cmd.RoadmapID, cmd.NodeID, result.Progress.Percentage, now)
	nodeEv.BaseEvent = correlate(nodeEv.BaseEvent)
	xpEv := shared.NewXPGainedEvent(cmd.UserID, h.config.NodeXPReward, out.nodeXP.XP.Int(),
		fmt.Sprintf("node:%s/%s", cmd.RoadmapID, cmd.NodeID), now)
	xpEv.BaseEvent = correlate(xpEv.BaseEvent)
	result.Events = append(result.Events, nodeEv, xpEv)

	if result.Progress.Status == progress.StatusComplete {
		ev := shared.NewRoadmapCompletedEvent(cmd.UserID, cmd.RoadmapID, now)
		ev.BaseEvent = correlate(ev.BaseEvent)
		result.Events = append(result.Events, ev)
	}

	if out.streakSet && (out.streak.Extended || out.streak.Broken) {
		ev := shared.NewStreakUpdatedEvent(cmd.UserID, out.streak.Current, out.streak.Broken, now)
		ev.BaseEvent = correlate(ev.BaseEvent)
		result.Events = append(result.Events, ev)
	}

	unlocks := make([]gamification.Unlock, 0, len(out.flow.Granted))
	for _, g := range out.flow.Granted {
		result.XPGained += g.Definition.XPReward
		unlocks = append(unlocks, g.Unlock)

		unlockEv := shared.NewAchievementUnlockedEvent(cmd.UserID, g.Definition.ID, g.Definition.Name,
			g.Definition.Icon, g.Definition.XPReward, now)
		unlockEv.BaseEvent = correlate(unlockEv.BaseEvent)
		bonusEv := shared.NewXPGainedEvent(cmd.UserID, g.Definition.XPReward, g.Ledger.XP.Int(),
			"achievement:"+g.Definition.ID, now)
		bonusEv.BaseEvent = correlate(bonusEv.BaseEvent)
		result.Events = append(result.Events, unlockEv, bonusEv)
	}
	result.Unlocked = gamification.JoinUnlocks(unlocks, h.flow.Registry())

	if result.LeveledUp {
		ev := shared.NewLevelUpEvent(cmd.UserID, out.before.Level().Int(), out.after.Level().Int(), out.after.XP.Int(), now)
		ev.BaseEvent = correlate(ev.BaseEvent)
		result.Events = append(result.Events, ev)
	}

	return result
}

// afterCommit invalidates cached reads and publishes events. Failures are
// logged only; the completion itself has already succeeded.
func (h *CompleteNodeHandler) afterCommit(ctx context.Context, userID string, events []shared.Event, log *logger.Logger) {
	if h.cache != nil {
		invCtx, cancel := context.WithTimeout(ctx, h.config.InvalidateTimeout)
		err := h.cache.Invalidate(invCtx, userID)
		cancel()
		if err != nil {
			log.Warn("cache invalidation failed", logger.Err(err))
		}
	}

	if h.publisher == nil || !h.flags.EventsEnabled() {
		return
	}
	var errs []error
	for _, ev := range events {
		if err := h.publisher.Publish(ev); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ev.EventType(), err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		log.Warn("event publishing failed", logger.Err(err))
	}
}
