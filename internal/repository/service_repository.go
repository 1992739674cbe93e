package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/barbershop-booking/internal/model"
)

// ServiceRepo provides CRUD for the services catalog.
type ServiceRepo struct {
	db *sql.DB
}

func NewServiceRepo(db *sql.DB) *ServiceRepo { return &ServiceRepo{db: db} }

const serviceColumns = `id, name, duration_minutes, price, description, image_url, created_at, updated_at`

func scanService(s rowScanner) (model.Service, error) {
	var (
		svc model.Service
		img sql.NullString
	)
	err := s.Scan(&svc.ID, &svc.Name, &svc.DurationMinutes, &svc.Price, &svc.Description,
		&img, &svc.CreatedAt, &svc.UpdatedAt)
	if img.Valid {
		v := img.String
		svc.ImageURL = &v
	}
	return svc, err
}

// GetByID returns one service or ErrNotFound.
func (r *ServiceRepo) GetByID(ctx context.Context, id uint64) (*model.Service, error) {
	svc, err := scanService(r.db.QueryRowContext(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

// List returns all services ordered by name.
func (r *ServiceRepo) List(ctx context.Context) ([]model.Service, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+serviceColumns+` FROM services ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

// Create inserts svc and fills in its id and timestamps.  A blank
// description is replaced by the default text.
func (r *ServiceRepo) Create(ctx context.Context, svc *model.Service) error {
	if strings.TrimSpace(svc.Description) == "" {
		svc.Description = model.DefaultServiceDescription
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO services (name, duration_minutes, price, description, image_url) VALUES (?, ?, ?, ?, ?)`,
		svc.Name, svc.DurationMinutes, svc.Price, svc.Description, svc.ImageURL)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*svc = *created
	return nil
}

// Update overwrites the editable columns of svc.
func (r *ServiceRepo) Update(ctx context.Context, svc *model.Service) error {
	if strings.TrimSpace(svc.Description) == "" {
		svc.Description = model.DefaultServiceDescription
	}
	if _, err := r.db.ExecContext(ctx,
		`UPDATE services SET name = ?, duration_minutes = ?, price = ?, description = ?, image_url = ? WHERE id = ?`,
		svc.Name, svc.DurationMinutes, svc.Price, svc.Description, svc.ImageURL, svc.ID); err != nil {
		return err
	}
	updated, err := r.GetByID(ctx, svc.ID)
	if err != nil {
		return err
	}
	*svc = *updated
	return nil
}

// Delete removes a service.  Its appointments are removed by the
// foreign key cascade.
func (r *ServiceRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM services WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
