/*
goal.go - Goal evaluation

PURPOSE:
  Compares a day's total usage against a category's goal and produces a
  verdict plus the time delta feeding the reward/punishment calculator.

POLICIES:
  AtMost:  met when usage <= goal. Delta is time saved when met, time
           exceeded when not.
  AtLeast: met when usage >= goal. Delta is excess when met, shortfall
           when not.

  Either way the delta is non-negative and means "how far from the goal
  line, on the side you landed on".

MISSING CONFIG:
  Evaluating without a goal config is not an error and not a failure: the
  outcome is tagged NoConfig with met=false, delta=0. Callers must treat
  this as "no data" - in particular, no completion record is created until
  a config exists.

  Pure function, no side effects; inputs are validated non-negative
  upstream, so errors are impossible by construction.

SEE ALSO:
  - quantity.go: Converts the delta into reward/punishment quantities
  - engine.go: RunGoalEvaluationAndRecord wiring
*/
package engine

// EvalStatus tags how an evaluation was produced.
type EvalStatus string

const (
	// EvalEvaluated means a goal config existed and the verdict is real.
	EvalEvaluated EvalStatus = "evaluated"

	// EvalNoConfig means no goal config exists for the category. The
	// zero verdict is a sentinel, not "punishment owed".
	EvalNoConfig EvalStatus = "no_config"

	// EvalNoData means the day has no daily summary row for the category.
	// Never produced by Evaluate itself; the engine tags outcomes with it
	// when there is nothing to evaluate.
	EvalNoData EvalStatus = "no_data"
)

// Evaluation is the outcome of comparing usage against a goal.
type Evaluation struct {
	Status       EvalStatus
	Met          bool
	DeltaSeconds int64
}

// Evaluate compares total usage seconds against the goal. A nil goal
// yields the NoConfig sentinel outcome.
func Evaluate(totalSeconds int64, goal *GoalConfig) Evaluation {
	if goal == nil {
		return Evaluation{Status: EvalNoConfig}
	}

	goalSeconds := goal.GoalSeconds()
	ev := Evaluation{Status: EvalEvaluated}

	switch goal.Condition {
	case ConditionAtLeast:
		ev.Met = totalSeconds >= goalSeconds
		if ev.Met {
			ev.DeltaSeconds = totalSeconds - goalSeconds
		} else {
			ev.DeltaSeconds = goalSeconds - totalSeconds
		}
	default: // ConditionAtMost
		ev.Met = totalSeconds <= goalSeconds
		if ev.Met {
			ev.DeltaSeconds = goalSeconds - totalSeconds
		} else {
			ev.DeltaSeconds = totalSeconds - goalSeconds
		}
	}

	return ev
}
