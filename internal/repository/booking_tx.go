package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/barbershop-booking/internal/model"
)

// BookingTx is the set of writes a booking performs inside one
// transaction.  IncrementPromoUses is only reachable from here, which keeps
// usage accounting tied to a committed appointment.
type BookingTx interface {
	// SlotTaken reports whether another appointment (id != excludeID)
	// occupies slot.  Pass excludeID 0 when creating.
	SlotTaken(ctx context.Context, slot model.Slot, excludeID uint64) (bool, error)
	InsertAppointment(ctx context.Context, a *model.Appointment) error
	UpdateAppointment(ctx context.Context, a *model.Appointment) error
	IncrementPromoUses(ctx context.Context, promoID uint64) error
}

type bookingTx struct {
	tx *sql.Tx
}

func (b *bookingTx) SlotTaken(ctx context.Context, slot model.Slot, excludeID uint64) (bool, error) {
	var id uint64
	err := b.tx.QueryRowContext(ctx,
		`SELECT id FROM appointments WHERE date = ? AND time = ? AND id <> ? LIMIT 1`,
		slot.DateString(), slot.Time, excludeID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *bookingTx) InsertAppointment(ctx context.Context, a *model.Appointment) error {
	res, err := b.tx.ExecContext(ctx, `INSERT INTO appointments
        (date, time, name_enc, email_enc, phone_enc, name_hash, email_hash, phone_hash,
         description, promo_code_allowed, service_id, promo_code_id)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Date.Format(model.DateLayout), a.Time, a.NameCipher, a.EmailCipher, a.PhoneCipher,
		a.NameHash, a.EmailHash, a.PhoneHash, a.Description, a.PromoCodeAllowed,
		a.ServiceID, nullableID(a.PromoCodeID))
	if err != nil {
		return translateAppointmentErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	// Query back the timestamps filled in by the database
	return b.tx.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM appointments WHERE id = ?`, a.ID).
		Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (b *bookingTx) UpdateAppointment(ctx context.Context, a *model.Appointment) error {
	res, err := b.tx.ExecContext(ctx, `UPDATE appointments SET
        date = ?, time = ?, name_enc = ?, email_enc = ?, phone_enc = ?,
        name_hash = ?, email_hash = ?, phone_hash = ?, description = ?,
        promo_code_allowed = ?, service_id = ?, promo_code_id = ?
        WHERE id = ?`,
		a.Date.Format(model.DateLayout), a.Time, a.NameCipher, a.EmailCipher, a.PhoneCipher,
		a.NameHash, a.EmailHash, a.PhoneHash, a.Description, a.PromoCodeAllowed,
		a.ServiceID, nullableID(a.PromoCodeID), a.ID)
	if err != nil {
		return translateAppointmentErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL reports 0 for an identical row too, so confirm it exists
		var id uint64
		err := b.tx.QueryRowContext(ctx, `SELECT id FROM appointments WHERE id = ?`, a.ID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
	}
	return b.tx.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM appointments WHERE id = ?`, a.ID).
		Scan(&a.CreatedAt, &a.UpdatedAt)
}

// IncrementPromoUses bumps current_uses in the database itself, so
// concurrent bookings with the same code are all counted.
func (b *bookingTx) IncrementPromoUses(ctx context.Context, promoID uint64) error {
	res, err := b.tx.ExecContext(ctx,
		`UPDATE promo_codes SET current_uses = current_uses + 1 WHERE id = ?`, promoID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// translateAppointmentErr maps the slot unique key violation to
// ErrSlotTaken.  The slot key is the only unique key on appointments
// besides the primary key.
func translateAppointmentErr(err error) error {
	if isDuplicateKey(err) {
		return ErrSlotTaken
	}
	return err
}

func nullableID(id *uint64) any {
	if id == nil {
		return nil
	}
	return *id
}
