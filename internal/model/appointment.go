package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// FieldCodec is the part of the confidential field codec an Appointment
// needs to read and write its personal fields.  *fieldcrypt.Codec
// satisfies it.
type FieldCodec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
	Hash(plaintext string) string
}

// Appointment is a client's booking of one service at one slot.  It is
// stored in the `appointments` table.  Name, email and phone are never held
// in plaintext: each is kept as ciphertext plus a search hash, and both are
// written together by the Set* methods below.
//
// Fields:
//  ID               – primary key identifier.
//  Date, Time       – the booked slot; (date, time) is unique.
//  NameCipher …     – ciphertext of the confidential fields.
//  NameHash …       – SHA-256 search hashes of the normalized plaintext.
//  Description      – free text supplied by the client.
//  PromoCodeAllowed – true when a valid promo code was applied.
//  ServiceID        – booked service (cascade delete).
//  PromoCodeID      – applied promo code (set null on delete).
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Appointment struct {
	ID               uint64    // appointments.id
	Date             time.Time // appointments.date
	Time             string    // appointments.time (HH:MM:SS)
	NameCipher       string    // appointments.name_enc
	EmailCipher      string    // appointments.email_enc
	PhoneCipher      string    // appointments.phone_enc
	NameHash         string    // appointments.name_hash
	EmailHash        string    // appointments.email_hash
	PhoneHash        string    // appointments.phone_hash
	Description      string    // appointments.description
	PromoCodeAllowed bool      // appointments.promo_code_allowed
	ServiceID        uint64    // appointments.service_id
	PromoCodeID      *uint64   // appointments.promo_code_id (nullable)
	CreatedAt        time.Time // appointments.created_at
	UpdatedAt        time.Time // appointments.updated_at
}

// SetName encrypts and hashes name.  On error the appointment is left
// unchanged, so ciphertext and hash never disagree.
func (a *Appointment) SetName(c FieldCodec, name string) error {
	ct, err := c.Encrypt(name)
	if err != nil {
		return fmt.Errorf("encrypt name: %w", err)
	}
	a.NameCipher, a.NameHash = ct, c.Hash(name)
	return nil
}

// SetEmail encrypts and hashes email.
func (a *Appointment) SetEmail(c FieldCodec, email string) error {
	ct, err := c.Encrypt(email)
	if err != nil {
		return fmt.Errorf("encrypt email: %w", err)
	}
	a.EmailCipher, a.EmailHash = ct, c.Hash(email)
	return nil
}

// SetPhone encrypts and hashes phone.
func (a *Appointment) SetPhone(c FieldCodec, phone string) error {
	ct, err := c.Encrypt(phone)
	if err != nil {
		return fmt.Errorf("encrypt phone: %w", err)
	}
	a.PhoneCipher, a.PhoneHash = ct, c.Hash(phone)
	return nil
}

func (a *Appointment) Name(c FieldCodec) (string, error)  { return c.Decrypt(a.NameCipher) }
func (a *Appointment) Email(c FieldCodec) (string, error) { return c.Decrypt(a.EmailCipher) }
func (a *Appointment) Phone(c FieldCodec) (string, error) { return c.Decrypt(a.PhoneCipher) }

// Slot returns the (date, time) pair the appointment occupies.
func (a *Appointment) Slot() Slot { return Slot{Date: a.Date, Time: a.Time} }

// Slot identifies a bookable moment.  Two appointments collide only when
// both Date and Time are equal; durations are not considered.
type Slot struct {
	Date time.Time // midnight UTC of the calendar day
	Time string    // HH:MM:SS
}

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

var ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")
var ErrInvalidTime = errors.New("invalid time, expected HH:MM or HH:MM:SS")

// ParseSlot validates a date (YYYY-MM-DD) and a time (HH:MM or HH:MM:SS)
// and returns the normalized slot.
func ParseSlot(date, clock string) (Slot, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return Slot{}, ErrInvalidDate
	}
	t, err := ParseClock(clock)
	if err != nil {
		return Slot{}, err
	}
	return Slot{Date: d, Time: t}, nil
}

// ParseClock normalizes HH:MM or HH:MM:SS to HH:MM:SS.
func ParseClock(clock string) (string, error) {
	clock = strings.TrimSpace(clock)
	for _, layout := range []string{TimeLayout, "15:04"} {
		if t, err := time.Parse(layout, clock); err == nil {
			return t.Format(TimeLayout), nil
		}
	}
	return "", ErrInvalidTime
}

// DateString formats the slot date as YYYY-MM-DD.
func (s Slot) DateString() string { return s.Date.Format(DateLayout) }

// Key is a stable string form of the slot, used for equality maps.
func (s Slot) Key() string { return s.DateString() + " " + s.Time }
