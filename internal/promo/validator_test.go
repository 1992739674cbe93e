package promo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/barbershop-booking/internal/model"
)

type mapFinder map[string]*model.PromoCode

func (m mapFinder) FindByCode(_ context.Context, code string) (*model.PromoCode, error) {
	return m[strings.ToUpper(code)], nil
}

type failingFinder struct{}

func (failingFinder) FindByCode(context.Context, string) (*model.PromoCode, error) {
	return nil, errors.New("db down")
}

var (
	now  = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	from = now.AddDate(0, -1, 0)
	to   = now.AddDate(0, 1, 0)
)

func codes() mapFinder {
	return mapFinder{
		"SUMMER10": {ID: 1, Code: "SUMMER10", DiscountPercentage: decimal.NewFromInt(10), Active: true, ValidFrom: from, ValidTo: to},
		"OFF":      {ID: 2, Code: "OFF", DiscountPercentage: decimal.NewFromInt(20), Active: false, ValidFrom: from, ValidTo: to},
		"LATER":    {ID: 3, Code: "LATER", DiscountPercentage: decimal.NewFromInt(5), Active: true, ValidFrom: now.Add(time.Hour), ValidTo: to},
		"OLD":      {ID: 4, Code: "OLD", DiscountPercentage: decimal.NewFromInt(5), Active: true, ValidFrom: from, ValidTo: now.Add(-time.Second)},
	}
}

func TestValidateStates(t *testing.T) {
	v := &Validator{Codes: codes(), Now: func() time.Time { return now }}
	tests := []struct {
		name   string
		raw    string
		wantID uint64
		want   error
	}{
		{"blank", "", 0, nil},
		{"whitespace", "   ", 0, nil},
		{"valid", "SUMMER10", 1, nil},
		{"valid-case-insensitive", " summer10 ", 1, nil},
		{"unknown", "NOPE", 0, ErrCodeNotFound},
		{"inactive", "off", 0, ErrCodeInactive},
		{"not-yet-valid", "LATER", 0, ErrCodeNotYetValid},
		{"expired", "OLD", 0, ErrCodeExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := v.Validate(context.Background(), tt.raw)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if tt.wantID == 0 && p != nil {
				t.Fatalf("expected no code, got %+v", p)
			}
			if tt.wantID != 0 && (p == nil || p.ID != tt.wantID) {
				t.Fatalf("code = %+v, want id %d", p, tt.wantID)
			}
		})
	}
}

func TestValidatePropagatesLookupError(t *testing.T) {
	v := NewValidator(failingFinder{})
	_, err := v.Validate(context.Background(), "X")
	if err == nil {
		t.Fatal("expected lookup error")
	}
	if _, ok := AsError(err); ok {
		t.Fatal("lookup failure must not look like a promo rejection")
	}
}

func TestErrorCodes(t *testing.T) {
	pe, ok := AsError(ErrCodeExpired)
	if !ok || pe.Code != "expired" || pe.Message == "" {
		t.Fatalf("AsError = %+v, %v", pe, ok)
	}
}

func TestPrice(t *testing.T) {
	c := codes()
	tests := []struct {
		name     string
		original string
		code     *model.PromoCode
		final    string
		discount string
		has      bool
	}{
		{"no-code", "100.00", nil, "100", "0", false},
		{"ten-percent", "100.00", c["SUMMER10"], "90", "10", true},
		{"half-up", "0.05", c["SUMMER10"], "0.05", "0", true},      // 0.045 -> 0.05
		{"round-half-up", "150.25", c["SUMMER10"], "135.23", "15.02", true}, // 135.225
		{"inactive-unchanged", "100.00", c["OFF"], "100", "0", false},
		{"expired-unchanged", "80.00", c["OLD"], "80", "0", false},
		{"not-yet-valid-unchanged", "80.00", c["LATER"], "80", "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Price(decimal.RequireFromString(tt.original), tt.code, now)
			if !got.Final.Equal(decimal.RequireFromString(tt.final)) {
				t.Fatalf("final = %s, want %s", got.Final, tt.final)
			}
			if !got.DiscountAmount.Equal(decimal.RequireFromString(tt.discount)) {
				t.Fatalf("discount = %s, want %s", got.DiscountAmount, tt.discount)
			}
			if got.HasDiscount != tt.has {
				t.Fatalf("has discount = %v, want %v", got.HasDiscount, tt.has)
			}
		})
	}
}
