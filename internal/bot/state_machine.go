package bot

import (
	"fmt"

	"tradeengine/internal/models"
)

// validTransitions enumerates the Position status graph. Status is
// monotonic: once set, a position can only move forward along one of
// these edges, never backward, and never out of a terminal state
// (CLOSED, REJECTED, ERROR have no outgoing edges).
var validTransitions = map[models.PositionStatus][]models.PositionStatus{
	models.StatusOpen:              {models.StatusExitConditionsMet, models.StatusExiting, models.StatusError, models.StatusRejected},
	models.StatusExitConditionsMet: {models.StatusExiting, models.StatusError},
	models.StatusExiting:           {models.StatusClosed, models.StatusError},
}

// ErrInvalidTransition is returned when a caller attempts to move a
// position to a status that is not reachable from its current one.
type ErrInvalidTransition struct {
	From models.PositionStatus
	To   models.PositionStatus
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("position: invalid transition %s -> %s", e.From, e.To)
}

// CanTransition reports whether moving from one status directly to
// another is legal.
func CanTransition(from, to models.PositionStatus) bool {
	if from == to {
		return false
	}
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionStatus validates and applies a status change to pos,
// enforcing the monotonic state machine (invariant: status never
// regresses and a terminal status never changes again).
func TransitionStatus(pos *models.Position, to models.PositionStatus) error {
	if !CanTransition(pos.Status, to) {
		return &ErrInvalidTransition{From: pos.Status, To: to}
	}
	pos.Status = to
	return nil
}

// IsTerminal reports whether status has no further transitions.
func IsTerminal(status models.PositionStatus) bool {
	_, ok := validTransitions[status]
	return !ok
}
