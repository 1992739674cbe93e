package service

import (
	"errors"
	"fmt"
)

// ErrSlotAlreadyBooked is returned when the requested (date, time) is held
// by another appointment, whether caught by the pre-check or by the
// database unique key.
var ErrSlotAlreadyBooked = errors.New("slot already booked")

// SlotAlreadyBookedMessage is the client-facing text for ErrSlotAlreadyBooked.
const SlotAlreadyBookedMessage = "Ya existe una cita agendada para esa fecha y hora. Por favor elige otro horario."

// ErrBookingConflict wraps transaction failures that could not be
// classified more precisely.
var ErrBookingConflict = errors.New("booking could not be saved")

// BookingConflictMessage is the client-facing text for ErrBookingConflict.
const BookingConflictMessage = "No se pudo guardar la cita. Inténtalo de nuevo."

// ErrAppointmentNotFound is returned for unknown appointment ids.
var ErrAppointmentNotFound = errors.New("appointment not found")

// ValidationError reports a bad request field.
type ValidationError struct {
	Field   string
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Code)
}

func invalid(field, code, msg string) *ValidationError {
	return &ValidationError{Field: field, Code: code, Message: msg}
}
