package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PromoCode is a discount campaign.  Code is unique and compared
// case-insensitively.  CurrentUses only ever grows: it is incremented once
// for each appointment created with the code.
type PromoCode struct {
	ID                 uint64          // promo_codes.id
	Code               string          // promo_codes.code
	DiscountPercentage decimal.Decimal // promo_codes.discount_percentage (whole percent, 0-100)
	ValidFrom          time.Time       // promo_codes.valid_from
	ValidTo            time.Time       // promo_codes.valid_to
	Active             bool            // promo_codes.active
	CurrentUses        uint64          // promo_codes.current_uses
	CreatedAt          time.Time       // promo_codes.created_at
	UpdatedAt          time.Time       // promo_codes.updated_at
}

// IsValid reports whether the code may be applied at now: it must be
// active and now must fall inside [ValidFrom, ValidTo].
func (p *PromoCode) IsValid(now time.Time) bool {
	if p == nil || !p.Active {
		return false
	}
	return !now.Before(p.ValidFrom) && !now.After(p.ValidTo)
}
