package promo

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/barbershop-booking/internal/model"
)

var hundred = decimal.NewFromInt(100)

// PriceInfo is the price breakdown shown to clients and used in emails.
// The JSON names are shared with the web front end.
type PriceInfo struct {
	Original        decimal.Decimal `json:"precio_original"`
	DiscountPercent decimal.Decimal `json:"descuento_porcentaje"`
	DiscountAmount  decimal.Decimal `json:"descuento_monto"`
	Final           decimal.Decimal `json:"precio_final"`
	HasDiscount     bool            `json:"tiene_descuento"`
}

// Price computes the final price of original under code at now.  The code
// is re-checked for validity here; a nil or invalid code leaves the price
// unchanged.  Money values are rounded half-up to two places.
func Price(original decimal.Decimal, code *model.PromoCode, now time.Time) PriceInfo {
	original = original.Round(2)
	info := PriceInfo{
		Original:        original,
		DiscountPercent: decimal.Zero,
		DiscountAmount:  decimal.Zero,
		Final:           original,
	}
	if !code.IsValid(now) {
		return info
	}
	pct := code.DiscountPercentage
	discount := pct.Div(hundred).Mul(original)
	info.DiscountPercent = pct
	info.Final = original.Sub(discount).Round(2)
	info.DiscountAmount = original.Sub(info.Final)
	info.HasDiscount = true
	return info
}
