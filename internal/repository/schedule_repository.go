package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/barbershop-booking/internal/model"
)

// ScheduleRepo manages weekdays and their working-hour intervals.
type ScheduleRepo struct {
	db *sql.DB
}

func NewScheduleRepo(db *sql.DB) *ScheduleRepo { return &ScheduleRepo{db: db} }

// ListWeekdays returns every weekday in insertion order.  When enabledOnly
// is set, disabled days are skipped.
func (r *ScheduleRepo) ListWeekdays(ctx context.Context, enabledOnly bool) ([]model.Weekday, error) {
	q := `SELECT id, day, status FROM weekdays`
	if enabledOnly {
		q += ` WHERE status = TRUE`
	}
	q += ` ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Weekday
	for rows.Next() {
		var w model.Weekday
		if err := rows.Scan(&w.ID, &w.Day, &w.Enabled); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *ScheduleRepo) CreateWeekday(ctx context.Context, w *model.Weekday) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO weekdays (day, status) VALUES (?, ?)`, w.Day, w.Enabled)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	w.ID = uint64(id)
	return nil
}

func (r *ScheduleRepo) UpdateWeekday(ctx context.Context, w *model.Weekday) error {
	res, err := r.db.ExecContext(ctx, `UPDATE weekdays SET day = ?, status = ? WHERE id = ?`, w.Day, w.Enabled, w.ID)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	return r.ensureExists(ctx, res, `SELECT id FROM weekdays WHERE id = ?`, w.ID)
}

// DeleteWeekday removes a weekday together with its working hours.
func (r *ScheduleRepo) DeleteWeekday(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM weekdays WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListHours returns working-hour intervals, optionally for one weekday
// (weekdayID 0 means all).
func (r *ScheduleRepo) ListHours(ctx context.Context, weekdayID uint64) ([]model.WorkingHours, error) {
	q := `SELECT id, weekday_id, start_time, end_time FROM working_hours`
	var args []any
	if weekdayID != 0 {
		q += ` WHERE weekday_id = ?`
		args = append(args, weekdayID)
	}
	q += ` ORDER BY weekday_id ASC, start_time ASC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.WorkingHours
	for rows.Next() {
		var h model.WorkingHours
		if err := rows.Scan(&h.ID, &h.WeekdayID, &h.StartTime, &h.EndTime); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *ScheduleRepo) CreateHours(ctx context.Context, h *model.WorkingHours) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO working_hours (weekday_id, start_time, end_time) VALUES (?, ?, ?)`,
		h.WeekdayID, h.StartTime, h.EndTime)
	if err != nil {
		if isMissingParent(err) {
			return ErrMissingParent
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)
	return nil
}

func (r *ScheduleRepo) UpdateHours(ctx context.Context, h *model.WorkingHours) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE working_hours SET weekday_id = ?, start_time = ?, end_time = ? WHERE id = ?`,
		h.WeekdayID, h.StartTime, h.EndTime, h.ID)
	if err != nil {
		if isMissingParent(err) {
			return ErrMissingParent
		}
		return err
	}
	return r.ensureExists(ctx, res, `SELECT id FROM working_hours WHERE id = ?`, h.ID)
}

func (r *ScheduleRepo) DeleteHours(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM working_hours WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ensureExists turns a zero-row update into ErrNotFound unless the row is
// present and simply unchanged.
func (r *ScheduleRepo) ensureExists(ctx context.Context, res sql.Result, q string, id uint64) error {
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var found uint64
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&found); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	return nil
}
