package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultServiceDescription is stored when a service is created without one.
const DefaultServiceDescription = "Sin descripción"

// Service is an offering clients can book (a haircut, a beard trim…).
// Price is DECIMAL(6,2) in the database and is carried as a decimal to
// keep discount arithmetic exact.
//
// Fields:
//  ID              – primary key identifier.
//  Name            – display name.
//  DurationMinutes – informational length; not used for overlap checks.
//  Price           – list price.
//  Description     – free text.
//  ImageURL        – optional picture location.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Service struct {
	ID              uint64          // services.id
	Name            string          // services.name
	DurationMinutes int             // services.duration_minutes
	Price           decimal.Decimal // services.price
	Description     string          // services.description
	ImageURL        *string         // services.image_url (nullable)
	CreatedAt       time.Time       // services.created_at
	UpdatedAt       time.Time       // services.updated_at
}
