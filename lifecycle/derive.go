package lifecycle

import "go-marketplace/models"

// Derived is a read-only summary of line statuses next to the stored
// aggregate. Nothing here is written back.
type Derived struct {
	// WorstCase is the least advanced status among live lines; Cancelled
	// only when every line is cancelled.
	WorstCase models.Status `json:"worstCase"`
	// AllEqual is true when every line shares one status, held in Common.
	AllEqual bool                  `json:"allEqual"`
	Common   models.Status         `json:"common,omitempty"`
	Counts   map[models.Status]int `json:"counts"`
	// Diverged is true when the stored aggregate differs from WorstCase.
	Diverged bool `json:"diverged"`
}

// Derive summarises the line statuses of order.
func Derive(order models.Order) Derived {
	d := Derived{Counts: make(map[models.Status]int)}
	if len(order.Products) == 0 {
		d.WorstCase = order.OrderStatus
		return d
	}

	worst := -1
	first := order.Products[0].ProductStatus
	d.AllEqual = true
	for _, li := range order.Products {
		d.Counts[li.ProductStatus]++
		if li.ProductStatus != first {
			d.AllEqual = false
		}
		if r, ok := rank[li.ProductStatus]; ok && (worst < 0 || r < worst) {
			worst = r
			d.WorstCase = li.ProductStatus
		}
	}
	if worst < 0 {
		d.WorstCase = models.StatusCancelled
	}
	if d.AllEqual {
		d.Common = first
	}
	d.Diverged = order.OrderStatus != d.WorstCase
	return d
}
