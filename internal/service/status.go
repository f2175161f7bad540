package service

import (
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
)

// ProjectTableStatus derives the floor status of a table from its draft and
// its active orders. draft may be nil.
//
// Precedence: ready-to-serve > unsent > pending > active > free. A table
// whose orders were all served but not yet billed shows as active.
func ProjectTableStatus(draft *database.Draft, orders []database.KitchenOrder) string {
	var inProgress, readyToServe bool
	for _, o := range orders {
		switch o.Status {
		case enum.OrderStatusReadyToServe:
			readyToServe = true
		case enum.OrderStatusInProgress:
			inProgress = true
		}
	}

	var hasItems, hasUnsent bool
	if draft != nil {
		for _, seat := range draft.Seats {
			for _, item := range seat.Items {
				hasItems = true
				if !item.Submitted {
					hasUnsent = true
				}
			}
		}
	}

	switch {
	case readyToServe:
		return enum.TableStatusReadyToServe
	case hasUnsent:
		return enum.TableStatusUnsent
	case inProgress:
		return enum.TableStatusPending
	case hasItems:
		return enum.TableStatusActive
	default:
		return enum.TableStatusFree
	}
}
