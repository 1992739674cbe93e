// Package promo decides whether a promotional code may be applied to a
// booking and computes the discounted price it yields.
package promo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/barbershop-booking/internal/model"
)

// Error is a promo rejection.  Code is a stable machine value returned to
// API clients; Message is the user-facing text.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return "promo code " + e.Code }

var (
	ErrCodeNotFound    = &Error{Code: "not_found", Message: "El código promocional no existe."}
	ErrCodeInactive    = &Error{Code: "inactive", Message: "El código promocional no está activo."}
	ErrCodeNotYetValid = &Error{Code: "not_yet_valid", Message: "El código promocional aún no es válido."}
	ErrCodeExpired     = &Error{Code: "expired", Message: "El código promocional ha expirado."}
)

// Finder looks a code up case-insensitively.  It returns (nil, nil) when
// no code matches.
type Finder interface {
	FindByCode(ctx context.Context, code string) (*model.PromoCode, error)
}

// Validator runs the promo state checks against a Finder.
type Validator struct {
	Codes Finder
	Now   func() time.Time
}

func NewValidator(codes Finder) *Validator {
	return &Validator{Codes: codes, Now: time.Now}
}

// Validate resolves raw to an applicable promo code.  A blank raw value is
// not an error: it returns (nil, nil) meaning no promo is applied.  Lookup
// failures are returned as-is; rejections are one of the Err* values.
func (v *Validator) Validate(ctx context.Context, raw string) (*model.PromoCode, error) {
	code := strings.TrimSpace(raw)
	if code == "" {
		return nil, nil
	}
	p, err := v.Codes.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := Check(p, v.now()); err != nil {
		return nil, err
	}
	return p, nil
}

// Check applies the validity rules in order: existence, active flag,
// start of window, end of window.
func Check(p *model.PromoCode, now time.Time) error {
	switch {
	case p == nil:
		return ErrCodeNotFound
	case !p.Active:
		return ErrCodeInactive
	case now.Before(p.ValidFrom):
		return ErrCodeNotYetValid
	case now.After(p.ValidTo):
		return ErrCodeExpired
	}
	return nil
}

func (v *Validator) now() time.Time {
	if v.Now == nil {
		return time.Now()
	}
	return v.Now()
}

// AsError unwraps err into a promo rejection, if it is one.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
