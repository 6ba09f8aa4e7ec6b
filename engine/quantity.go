/*
quantity.go - Reward/punishment unit conversion

PURPOSE:
  Converts a time delta (saved/exceeded/short) into a discrete reward or
  punishment quantity using a category's unit configuration, e.g.
  "30 push-ups per started hour over the goal".

CEILING RULE:
  Units are counted with ceiling division: any non-zero remainder still
  counts a full unit. Exceeding the goal by one hour and one second owes
  two hours' worth of punishment. Any overage counts.

  Separate calls serve reward (fed the met-branch delta) and punishment
  (fed the not-met-branch delta); a single day never produces both.

SEE ALSO:
  - goal.go: Produces the delta
  - types.go: UnitSpec and TimeUnit definitions
*/
package engine

// ComputeQuantity converts a time delta into a quantity of the unit's
// label. Zero or negative deltas owe nothing.
func ComputeQuantity(deltaSeconds int64, unit UnitSpec) int64 {
	if deltaSeconds <= 0 {
		return 0
	}

	unitSeconds := unit.TimeUnit.Seconds()

	// Ceiling division: a started unit is a full unit.
	units := (deltaSeconds + unitSeconds - 1) / unitSeconds

	return units * unit.QuantityPerUnit
}
