package leads

import (
	"fmt"
	"time"
)

// Action is a lifecycle step requested by the routed provider.
type Action string

const (
	ActionClaim         Action = "claim"
	ActionContact       Action = "contact"
	ActionUpdateOutcome Action = "update_outcome"
	ActionComplete      Action = "complete"
)

// Transition is one provider action applied to a lead.
type Transition struct {
	Action  Action
	Outcome Outcome
	// Notes is the raw inbound message. Actions that write notes overwrite
	// the previous value.
	Notes string
	At    time.Time
}

// Validate checks the action/outcome pairing.
func (t Transition) Validate() error {
	switch t.Action {
	case ActionClaim, ActionContact:
		return nil
	case ActionUpdateOutcome:
		if !t.Outcome.Valid() {
			return fmt.Errorf("%w: outcome %q", ErrUnknownAction, t.Outcome)
		}
		return nil
	case ActionComplete:
		if t.Outcome != "" && !t.Outcome.Valid() {
			return fmt.Errorf("%w: outcome %q", ErrUnknownAction, t.Outcome)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, t.Action)
	}
}

// applyTo mutates l in memory with the same rules the SQL update enforces:
// timestamps are set once, status only moves forward and claim-bearing
// actions count an attempt.
func (t Transition) applyTo(l *Lead) {
	at := t.At
	claim := func() {
		if l.Status.rank() < StatusClaimed.rank() {
			l.Status = StatusClaimed
		}
		if l.ClaimedAt == nil {
			l.ClaimedAt = &at
		}
	}

	switch t.Action {
	case ActionClaim:
		claim()
		l.CallAttempts++
		l.ProviderNotes = t.Notes
	case ActionContact:
		if l.FirstContactAt == nil {
			l.FirstContactAt = &at
		}
		l.CallAttempts++
		l.ProviderNotes = t.Notes
	case ActionUpdateOutcome:
		outcome := t.Outcome
		l.Outcome = &outcome
		l.OutcomeNotes = t.Notes
		claim()
	case ActionComplete:
		if l.CompletedAt == nil {
			l.CompletedAt = &at
		}
		l.Status = StatusDelivered
		if t.Outcome != "" {
			outcome := t.Outcome
			l.Outcome = &outcome
		}
		l.ProviderNotes = t.Notes
	}
	l.UpdatedAt = at
}
