// Package aggregate folds processed activities into session and user
// statistics documents. Each fold is one optimistic read-modify-write
// against a single key; the two folds never share a transaction.
package aggregate

import (
	"time"
)

// DefaultQuantum is the duration credited for every activity, whatever the
// real gap between events.
const DefaultQuantum = time.Minute

// Outcome reports which path a fold committed through.
type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	OutcomeUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	default:
		return "unknown"
	}
}
