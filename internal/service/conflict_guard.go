package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/barbershop-booking/internal/model"
	"github.com/iliyamo/barbershop-booking/internal/repository"
)

// ConflictGuard rejects a write whose (date, time) is already taken.  It
// compares exact slots only; service duration and working hours are not
// considered.  It takes no locks: the unique key on (date, time) settles
// races, and the write path maps that violation to the same error.
type ConflictGuard struct{}

// Check returns ErrSlotAlreadyBooked when another appointment holds slot.
// excludeID is the appointment being edited, or 0 on create.
func (ConflictGuard) Check(ctx context.Context, tx repository.BookingTx, slot model.Slot, excludeID uint64) error {
	taken, err := tx.SlotTaken(ctx, slot, excludeID)
	if err != nil {
		return fmt.Errorf("check slot: %w", err)
	}
	if taken {
		return ErrSlotAlreadyBooked
	}
	return nil
}
