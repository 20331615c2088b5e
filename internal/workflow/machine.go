package workflow

import (
	dErrors "etatcivil/pkg/domain-errors"
)

// transitions is the intended adjacency table. Only strict machines enforce it.
var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusRejected},
	StatusInProgress: {StatusCompleted, StatusRejected},
}

// Machine validates status changes. The permissive machine only checks enum
// membership, so PENDING -> COMPLETED is allowed; the strict machine applies
// the adjacency table and freezes terminal states.
type Machine struct {
	strict bool
}

func NewMachine(strict bool) Machine {
	return Machine{strict: strict}
}

func (m Machine) Strict() bool {
	return m.strict
}

// Check returns invalid_status when moving from -> to is not allowed.
func (m Machine) Check(from, to Status) error {
	if !transitionTargets[to] {
		return &dErrors.Error{Code: dErrors.CodeInvalidStatus, Message: "Statut invalide", Field: "status"}
	}
	if from == StatusDeleted {
		return dErrors.New(dErrors.CodeInvalidStatus, "La demande a été supprimée")
	}
	if !m.strict {
		return nil
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeInvalidStatus, "Transition de statut non autorisée: "+from.String()+" -> "+to.String())
}

// Allowed lists the targets reachable from s under the strict table.
func Allowed(s Status) []Status {
	return append([]Status(nil), transitions[s]...)
}
