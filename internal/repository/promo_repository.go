package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/barbershop-booking/internal/model"
)

// PromoRepo provides CRUD for promo codes.  Usage counting is not exposed
// here; see BookingTx.IncrementPromoUses.
type PromoRepo struct {
	db *sql.DB
}

func NewPromoRepo(db *sql.DB) *PromoRepo { return &PromoRepo{db: db} }

const promoColumns = `id, code, discount_percentage, valid_from, valid_to, active, current_uses, created_at, updated_at`

func scanPromo(s rowScanner) (model.PromoCode, error) {
	var p model.PromoCode
	err := s.Scan(&p.ID, &p.Code, &p.DiscountPercentage, &p.ValidFrom, &p.ValidTo,
		&p.Active, &p.CurrentUses, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// FindByCode matches code ignoring case but not accents; the column's
// utf8mb4_0900_as_ci collation does the comparison.  It returns (nil, nil)
// when no code matches.
func (r *PromoRepo) FindByCode(ctx context.Context, code string) (*model.PromoCode, error) {
	p, err := scanPromo(r.db.QueryRowContext(ctx,
		`SELECT `+promoColumns+` FROM promo_codes WHERE code = ? LIMIT 1`,
		strings.TrimSpace(code)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID returns one promo code or ErrNotFound.
func (r *PromoRepo) GetByID(ctx context.Context, id uint64) (*model.PromoCode, error) {
	p, err := scanPromo(r.db.QueryRowContext(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PromoRepo) List(ctx context.Context) ([]model.PromoCode, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+promoColumns+` FROM promo_codes ORDER BY valid_to DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.PromoCode
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create inserts p.  A code that already exists (ignoring case) yields
// ErrDuplicate.
func (r *PromoRepo) Create(ctx context.Context, p *model.PromoCode) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO promo_codes (code, discount_percentage, valid_from, valid_to, active) VALUES (?, ?, ?, ?, ?)`,
		strings.TrimSpace(p.Code), p.DiscountPercentage, p.ValidFrom, p.ValidTo, p.Active)
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
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*p = *created
	return nil
}

// Update changes the campaign fields.  current_uses is left alone.
func (r *PromoRepo) Update(ctx context.Context, p *model.PromoCode) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE promo_codes SET code = ?, discount_percentage = ?, valid_from = ?, valid_to = ?, active = ? WHERE id = ?`,
		strings.TrimSpace(p.Code), p.DiscountPercentage, p.ValidFrom, p.ValidTo, p.Active, p.ID)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	updated, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *updated
	return nil
}

// Delete removes a promo code; appointments keep existing with a null
// reference.
func (r *PromoRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM promo_codes WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
