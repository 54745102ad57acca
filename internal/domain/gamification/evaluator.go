package gamification

// Evaluator decides which achievements newly qualify.
type Evaluator struct {
	registry *Registry
}

// NewEvaluator creates an evaluator over the registry.
func NewEvaluator(registry *Registry) *Evaluator {
	return &Evaluator{registry: registry}
}

// Registry returns the definitions the evaluator checks.
func (e *Evaluator) Registry() *Registry {
	return e.registry
}

// Evaluate returns, in registration order, every definition that is not
// in unlocked and whose predicate holds for snap. It has no side effects;
// recording the unlock is the caller's job.
func (e *Evaluator) Evaluate(snap Snapshot, unlocked map[string]struct{}) []Definition {
	var out []Definition
	for _, d := range e.registry.defs {
		if d.External() {
			continue
		}
		if _, done := unlocked[d.ID]; done {
			continue
		}
		if d.Predicate(snap) {
			out = append(out, d)
		}
	}
	return out
}
