// Package lifecycle holds the two independently writable status machines of
// a placed order: the seller-owned status of each line item and the
// admin-set aggregate status.
//
// Neither machine drives the other. A seller update never recomputes the
// aggregate and an admin update never cascades to lines; Derive offers a
// read-only view of how far they have drifted.
package lifecycle

import (
	"fmt"

	"go-marketplace/apperr"
	"go-marketplace/models"
)

var rank = map[models.Status]int{
	models.StatusPending:   0,
	models.StatusConfirmed: 1,
	models.StatusShipped:   2,
	models.StatusDelivered: 3,
}

// Terminal reports whether no forward transition leaves s.
func Terminal(s models.Status) bool {
	return s == models.StatusDelivered || s == models.StatusCancelled
}

// Policy decides which transitions are accepted.
type Policy struct {
	// AllowBackward accepts moves against fulfilment order, e.g. Shipped to
	// Confirmed, and reopening terminal states.
	AllowBackward bool
}

// Check validates a move from one status to another. Setting the current
// status again is accepted as a no-op. Forward moves may skip states;
// Cancelled is reachable from any non-terminal state.
func (p Policy) Check(from, to models.Status) error {
	if _, ok := rank[to]; !ok && to != models.StatusCancelled {
		return apperr.Validation("status", fmt.Sprintf("invalid status %q", to))
	}
	if from == to {
		return nil
	}
	if p.AllowBackward {
		return nil
	}
	if Terminal(from) {
		return apperr.Conflictf("status is already %s", from)
	}
	if to == models.StatusCancelled {
		return nil
	}
	if rank[to] < rank[from] {
		return apperr.Conflictf("cannot move status back from %s to %s", from, to)
	}
	return nil
}
