package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/barbershop-booking/internal/model"
)

// AppointmentRepo reads and writes the appointments table.  Writes that
// take part in a booking go through WithinTx so that the slot check, the
// row and the promo usage increment share one transaction.
type AppointmentRepo struct {
	db *sql.DB
}

// NewAppointmentRepo returns an AppointmentRepo bound to db.
func NewAppointmentRepo(db *sql.DB) *AppointmentRepo { return &AppointmentRepo{db: db} }

const appointmentColumns = `id, date, time, name_enc, email_enc, phone_enc, name_hash, email_hash, phone_hash,
    description, promo_code_allowed, service_id, promo_code_id, created_at, updated_at`

// AppointmentFilter narrows List.  Zero values mean no restriction.
type AppointmentFilter struct {
	Date   *time.Time
	Limit  int
	Offset int
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(s rowScanner) (model.Appointment, error) {
	var (
		a       model.Appointment
		promoID sql.NullInt64
	)
	err := s.Scan(&a.ID, &a.Date, &a.Time, &a.NameCipher, &a.EmailCipher, &a.PhoneCipher,
		&a.NameHash, &a.EmailHash, &a.PhoneHash, &a.Description, &a.PromoCodeAllowed,
		&a.ServiceID, &promoID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return a, err
	}
	if promoID.Valid {
		id := uint64(promoID.Int64)
		a.PromoCodeID = &id
	}
	return a, nil
}

// GetByID returns a single appointment or ErrNotFound.
func (r *AppointmentRepo) GetByID(ctx context.Context, id uint64) (*model.Appointment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id)
	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns appointments newest slot first.
func (r *AppointmentRepo) List(ctx context.Context, f AppointmentFilter) ([]model.Appointment, error) {
	q := `SELECT ` + appointmentColumns + ` FROM appointments`
	var args []any
	if f.Date != nil {
		q += ` WHERE date = ?`
		args = append(args, f.Date.Format(model.DateLayout))
	}
	q += ` ORDER BY date DESC, time DESC`
	if f.Limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}
	return r.query(ctx, q, args...)
}

// ListByDate returns the appointments of one day in time order.
func (r *AppointmentRepo) ListByDate(ctx context.Context, day time.Time) ([]model.Appointment, error) {
	return r.query(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE date = ? ORDER BY time ASC`,
		day.Format(model.DateLayout))
}

// SearchByHash matches a search hash against the name, email and phone
// hash columns.  Nothing is decrypted to search.
func (r *AppointmentRepo) SearchByHash(ctx context.Context, hash string) ([]model.Appointment, error) {
	if hash == "" {
		return nil, nil
	}
	return r.query(ctx, `SELECT `+appointmentColumns+` FROM appointments
        WHERE name_hash = ? OR email_hash = ? OR phone_hash = ?
        ORDER BY date DESC, time DESC`, hash, hash, hash)
}

// BookedTimes lists the taken times (HH:MM:SS) of a day.
func (r *AppointmentRepo) BookedTimes(ctx context.Context, day time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT time FROM appointments WHERE date = ? ORDER BY time ASC`,
		day.Format(model.DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Delete removes one appointment.  It reports whether a row was removed.
func (r *AppointmentRepo) Delete(ctx context.Context, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *AppointmentRepo) query(ctx context.Context, q string, args ...any) ([]model.Appointment, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// WithinTx runs fn inside a transaction.  The transaction is committed
// when fn returns nil and rolled back otherwise.
func (r *AppointmentRepo) WithinTx(ctx context.Context, fn func(BookingTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&bookingTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return translateAppointmentErr(err)
	}
	committed = true
	return nil
}
