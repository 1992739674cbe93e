// Package service implements the appointment write pipeline and the read
// paths around it.
//
// A booking runs in a fixed order: input checks, promo validation, slot
// check, then a single transaction that stores the encrypted appointment
// and bumps the promo usage counter.  Emails and lifecycle events happen
// after commit and cannot fail the booking.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/barbershop-booking/internal/model"
	"github.com/iliyamo/barbershop-booking/internal/notify"
	"github.com/iliyamo/barbershop-booking/internal/promo"
	"github.com/iliyamo/barbershop-booking/internal/queue"
	"github.com/iliyamo/barbershop-booking/internal/repository"
)

// AppointmentStore is the persistence the pipeline needs.
// *repository.AppointmentRepo satisfies it.
type AppointmentStore interface {
	WithinTx(ctx context.Context, fn func(repository.BookingTx) error) error
	GetByID(ctx context.Context, id uint64) (*model.Appointment, error)
	List(ctx context.Context, f repository.AppointmentFilter) ([]model.Appointment, error)
	ListByDate(ctx context.Context, day time.Time) ([]model.Appointment, error)
	SearchByHash(ctx context.Context, hash string) ([]model.Appointment, error)
	BookedTimes(ctx context.Context, day time.Time) ([]string, error)
	Delete(ctx context.Context, id uint64) (bool, error)
}

// ServiceCatalog resolves booked services.
type ServiceCatalog interface {
	GetByID(ctx context.Context, id uint64) (*model.Service, error)
}

// PromoStore resolves promo codes by text (for validation) and by id (for
// pricing stored appointments).
type PromoStore interface {
	promo.Finder
	GetByID(ctx context.Context, id uint64) (*model.PromoCode, error)
}

// Notifier sends the best-effort booking emails.
type Notifier interface {
	SendConfirmation(ctx context.Context, n notify.Notice) bool
	SendAdminNotice(ctx context.Context, n notify.Notice) bool
	SendCancellation(ctx context.Context, n notify.Notice) bool
}

// EventPublisher publishes lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AppointmentEvent) error
}

// AppointmentRequest is a create or update as submitted by a client or
// staff member.  All strings are raw input.
type AppointmentRequest struct {
	Date        string
	Time        string
	Name        string
	Email       string
	Phone       string
	Description string
	PromoCode   string
	ServiceID   uint64

	// RemovePromo drops the promo code on update.  A blank PromoCode on
	// update keeps the code already attached.
	RemovePromo bool
}

const (
	maxNameLen  = 100
	maxEmailLen = 254
	maxPhoneLen = 15

	notifyTimeout  = 30 * time.Second
	publishTimeout = 10 * time.Second
)

// BookingService runs the appointment pipeline.
type BookingService struct {
	Appointments AppointmentStore
	Services     ServiceCatalog
	Promos       PromoStore
	Codec        model.FieldCodec
	Validator    *promo.Validator
	Guard        ConflictGuard
	Notifier     Notifier
	Events       EventPublisher // optional
	Log          *slog.Logger
	Now          func() time.Time

	tracer  trace.Tracer
	pending sync.WaitGroup
}

func NewBookingService(appts AppointmentStore, services ServiceCatalog, promos PromoStore,
	codec model.FieldCodec, notifier Notifier, log *slog.Logger) *BookingService {
	if log == nil {
		log = slog.Default()
	}
	s := &BookingService{
		Appointments: appts,
		Services:     services,
		Promos:       promos,
		Codec:        codec,
		Notifier:     notifier,
		Log:          log,
		Now:          time.Now,
		tracer:       otel.Tracer("github.com/iliyamo/barbershop-booking/internal/service"),
	}
	s.Validator = &promo.Validator{Codes: promos, Now: func() time.Time { return s.now() }}
	return s
}

func (s *BookingService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Wait blocks until background event publishing has finished.
func (s *BookingService) Wait() { s.pending.Wait() }

// CreateAppointment validates and stores a new appointment, then sends the
// confirmation and admin emails.
func (s *BookingService) CreateAppointment(ctx context.Context, req AppointmentRequest) (*AppointmentView, error) {
	ctx, span := s.tracer.Start(ctx, "booking.create")
	defer span.End()

	in, err := s.checkRequest(ctx, req)
	if err != nil {
		return nil, s.fail(span, err)
	}
	code, err := s.Validator.Validate(ctx, req.PromoCode)
	if err != nil {
		return nil, s.fail(span, err)
	}

	a := &model.Appointment{
		Date:        in.slot.Date,
		Time:        in.slot.Time,
		Description: in.description,
		ServiceID:   in.service.ID,
	}
	applyPromo(a, code)

	err = s.Appointments.WithinTx(ctx, func(tx repository.BookingTx) error {
		if err := s.Guard.Check(ctx, tx, in.slot, 0); err != nil {
			return err
		}
		if err := s.setPersonal(a, in); err != nil {
			return err
		}
		if err := tx.InsertAppointment(ctx, a); err != nil {
			return err
		}
		if code != nil {
			return tx.IncrementPromoUses(ctx, code.ID)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(span, s.classifyWriteErr(ctx, err))
	}
	span.SetAttributes(attribute.Int64("appointment.id", int64(a.ID)))
	s.Log.InfoContext(ctx, "appointment created", "appointment_id", a.ID, "service_id", a.ServiceID,
		"date", in.slot.DateString(), "time", in.slot.Time, "promo_applied", code != nil)

	n := s.noticeFromInput(a, in, code)
	s.notifyCreated(ctx, n)
	s.publish(ctx, queue.EventCreated, a, code)
	return s.viewFromInput(a, in, code), nil
}

// UpdateAppointment re-runs validation, promo and slot checks for an
// existing appointment, ignoring its own slot.  Promo usage is counted
// at creation only and is not touched here; see promoForUpdate for how
// the attached code is carried over.
func (s *BookingService) UpdateAppointment(ctx context.Context, id uint64, req AppointmentRequest) (*AppointmentView, error) {
	ctx, span := s.tracer.Start(ctx, "booking.update", trace.WithAttributes(attribute.Int64("appointment.id", int64(id))))
	defer span.End()

	existing, err := s.Appointments.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, s.fail(span, ErrAppointmentNotFound)
	}
	if err != nil {
		return nil, s.fail(span, err)
	}
	in, err := s.checkRequest(ctx, req)
	if err != nil {
		return nil, s.fail(span, err)
	}
	code, err := s.promoForUpdate(ctx, existing, req)
	if err != nil {
		return nil, s.fail(span, err)
	}

	a := *existing
	a.Date, a.Time = in.slot.Date, in.slot.Time
	a.Description = in.description
	a.ServiceID = in.service.ID
	applyPromo(&a, code)

	err = s.Appointments.WithinTx(ctx, func(tx repository.BookingTx) error {
		if err := s.Guard.Check(ctx, tx, in.slot, id); err != nil {
			return err
		}
		if err := s.setPersonal(&a, in); err != nil {
			return err
		}
		return tx.UpdateAppointment(ctx, &a)
	})
	if err != nil {
		return nil, s.fail(span, s.classifyWriteErr(ctx, err))
	}
	s.Log.InfoContext(ctx, "appointment updated", "appointment_id", a.ID,
		"date", in.slot.DateString(), "time", in.slot.Time)
	s.publish(ctx, queue.EventUpdated, &a, code)
	return s.viewFromInput(&a, in, code), nil
}

// DeleteAppointment sends a cancellation email and removes the
// appointment.  The removal happens whether or not the email was sent.
func (s *BookingService) DeleteAppointment(ctx context.Context, id uint64) error {
	ctx, span := s.tracer.Start(ctx, "booking.delete", trace.WithAttributes(attribute.Int64("appointment.id", int64(id))))
	defer span.End()

	a, err := s.Appointments.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return s.fail(span, ErrAppointmentNotFound)
	}
	if err != nil {
		return s.fail(span, err)
	}

	v := s.view(ctx, a)
	if slices.Contains(v.UnreadableFields, "email") || v.Email == "" {
		s.Log.WarnContext(ctx, "cancellation email skipped: no readable address", "appointment_id", id)
	} else {
		nctx, cancel := s.detached(ctx)
		if !s.Notifier.SendCancellation(nctx, v.notice()) {
			s.Log.WarnContext(ctx, "cancellation email failed", "appointment_id", id)
		}
		cancel()
	}

	removed, err := s.Appointments.Delete(ctx, id)
	if err != nil {
		return s.fail(span, err)
	}
	if !removed {
		return s.fail(span, ErrAppointmentNotFound)
	}
	s.Log.InfoContext(ctx, "appointment deleted", "appointment_id", id)
	s.publish(ctx, queue.EventCancelled, a, nil)
	return nil
}

// DeleteAppointments deletes each id in turn, as DeleteAppointment does,
// and returns how many were removed.  Unknown ids are skipped; other
// failures are joined into the returned error without stopping the run.
func (s *BookingService) DeleteAppointments(ctx context.Context, ids []uint64) (int, error) {
	var (
		removed int
		errs    []error
	)
	for _, id := range ids {
		err := s.DeleteAppointment(ctx, id)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, ErrAppointmentNotFound):
		default:
			errs = append(errs, fmt.Errorf("appointment %d: %w", id, err))
		}
	}
	return removed, errors.Join(errs...)
}

// GetAppointment returns one decrypted appointment.
func (s *BookingService) GetAppointment(ctx context.Context, id uint64) (*AppointmentView, error) {
	a, err := s.Appointments.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.view(ctx, a), nil
}

// ListAppointments returns decrypted appointments, newest slot first.
func (s *BookingService) ListAppointments(ctx context.Context, f repository.AppointmentFilter) ([]AppointmentView, error) {
	list, err := s.Appointments.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, list), nil
}

// SearchAppointments finds appointments whose name, email or phone equals
// term after normalization.  The lookup runs on the hash columns.
func (s *BookingService) SearchAppointments(ctx context.Context, term string) ([]AppointmentView, error) {
	h := s.Codec.Hash(term)
	if h == "" {
		return []AppointmentView{}, nil
	}
	list, err := s.Appointments.SearchByHash(ctx, h)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, list), nil
}

// BookedTimes lists the taken times of date (YYYY-MM-DD) without any
// personal data, for the public calendar.
func (s *BookingService) BookedTimes(ctx context.Context, date string) ([]string, error) {
	day, err := time.Parse(model.DateLayout, strings.TrimSpace(date))
	if err != nil {
		return nil, invalid("date", "invalid", "Fecha inválida, usa el formato AAAA-MM-DD.")
	}
	times, err := s.Appointments.BookedTimes(ctx, day)
	if err != nil {
		return nil, err
	}
	if times == nil {
		times = []string{}
	}
	return times, nil
}

// DailyNotices returns the notices for every appointment on day, in time
// order, for the digest.  Appointments without a readable email are kept
// so the admin still sees them.
func (s *BookingService) DailyNotices(ctx context.Context, day time.Time) ([]notify.Notice, error) {
	list, err := s.Appointments.ListByDate(ctx, day)
	if err != nil {
		return nil, err
	}
	out := make([]notify.Notice, 0, len(list))
	for _, v := range s.views(ctx, list) {
		out = append(out, v.notice())
	}
	return out, nil
}

// checkedInput is a request that passed field validation.
type checkedInput struct {
	slot        model.Slot
	name        string
	email       string
	phone       string
	description string
	service     *model.Service
}

func (s *BookingService) checkRequest(ctx context.Context, req AppointmentRequest) (checkedInput, error) {
	var in checkedInput
	if strings.TrimSpace(req.Date) == "" {
		return in, invalid("date", "required", "La fecha es obligatoria.")
	}
	if strings.TrimSpace(req.Time) == "" {
		return in, invalid("time", "required", "La hora es obligatoria.")
	}
	slot, err := model.ParseSlot(req.Date, req.Time)
	switch {
	case errors.Is(err, model.ErrInvalidDate):
		return in, invalid("date", "invalid", "Fecha inválida, usa el formato AAAA-MM-DD.")
	case errors.Is(err, model.ErrInvalidTime):
		return in, invalid("time", "invalid", "Hora inválida, usa el formato HH:MM.")
	case err != nil:
		return in, err
	}
	in.slot = slot

	in.name = strings.TrimSpace(req.Name)
	switch {
	case in.name == "":
		return in, invalid("name", "required", "El nombre es obligatorio.")
	case utf8.RuneCountInString(in.name) > maxNameLen:
		return in, invalid("name", "max_length", fmt.Sprintf("El nombre no puede tener más de %d caracteres.", maxNameLen))
	}

	in.email = strings.TrimSpace(req.Email)
	if in.email == "" {
		return in, invalid("email", "required", "El correo electrónico es obligatorio.")
	}
	if addr, err := mail.ParseAddress(in.email); err != nil || addr.Address != in.email || len(in.email) > maxEmailLen {
		return in, invalid("email", "invalid", "Introduce un correo electrónico válido.")
	}

	in.phone = strings.TrimSpace(req.Phone)
	switch {
	case in.phone == "":
		return in, invalid("phone", "required", "El teléfono es obligatorio.")
	case utf8.RuneCountInString(in.phone) > maxPhoneLen:
		return in, invalid("phone", "max_length", fmt.Sprintf("El teléfono no puede tener más de %d caracteres.", maxPhoneLen))
	}

	in.description = strings.TrimSpace(req.Description)

	if req.ServiceID == 0 {
		return in, invalid("service", "required", "El servicio es obligatorio.")
	}
	svc, err := s.Services.GetByID(ctx, req.ServiceID)
	if errors.Is(err, repository.ErrNotFound) {
		return in, invalid("service", "not_found", "El servicio seleccionado no existe.")
	}
	if err != nil {
		return in, err
	}
	in.service = svc
	return in, nil
}

func (s *BookingService) setPersonal(a *model.Appointment, in checkedInput) error {
	if err := a.SetName(s.Codec, in.name); err != nil {
		return err
	}
	if err := a.SetEmail(s.Codec, in.email); err != nil {
		return err
	}
	return a.SetPhone(s.Codec, in.phone)
}

// promoForUpdate keeps the code already attached to existing when the
// request leaves the promo blank or repeats that code, even if it has
// since expired.  Only a different code is validated again.
func (s *BookingService) promoForUpdate(ctx context.Context, existing *model.Appointment, req AppointmentRequest) (*model.PromoCode, error) {
	if req.RemovePromo {
		return nil, nil
	}
	text := strings.TrimSpace(req.PromoCode)
	if existing.PromoCodeID != nil {
		cur, err := s.Promos.GetByID(ctx, *existing.PromoCodeID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			// deleted since booking; treat as no code
		case err != nil:
			return nil, err
		case text == "" || strings.EqualFold(text, cur.Code):
			return cur, nil
		}
	}
	return s.Validator.Validate(ctx, text)
}

func applyPromo(a *model.Appointment, code *model.PromoCode) {
	if code == nil {
		a.PromoCodeID, a.PromoCodeAllowed = nil, false
		return
	}
	id := code.ID
	a.PromoCodeID, a.PromoCodeAllowed = &id, true
}

// classifyWriteErr maps transaction failures onto the errors clients see.
// A unique-key violation is the same outcome as a failed pre-check.
func (s *BookingService) classifyWriteErr(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrSlotAlreadyBooked):
		return ErrSlotAlreadyBooked
	case errors.Is(err, repository.ErrSlotTaken):
		s.Log.InfoContext(ctx, "slot taken by concurrent booking")
		return ErrSlotAlreadyBooked
	case errors.Is(err, repository.ErrNotFound):
		return ErrAppointmentNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	s.Log.ErrorContext(ctx, "booking transaction failed", "err", err)
	return fmt.Errorf("%w: %v", ErrBookingConflict, err)
}

func (s *BookingService) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (s *BookingService) notifyCreated(ctx context.Context, n notify.Notice) {
	nctx, cancel := s.detached(ctx)
	defer cancel()
	if !s.Notifier.SendConfirmation(nctx, n) {
		s.Log.WarnContext(ctx, "confirmation email failed", "appointment_id", n.AppointmentID)
	}
	if !s.Notifier.SendAdminNotice(nctx, n) {
		s.Log.WarnContext(ctx, "admin notice failed", "appointment_id", n.AppointmentID)
	}
}

// detached keeps request values (trace, request id) but not the request's
// cancellation, so a client hanging up does not abort an email mid-send.
func (s *BookingService) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
}

func (s *BookingService) publish(ctx context.Context, kind string, a *model.Appointment, code *model.PromoCode) {
	if s.Events == nil {
		return
	}
	ev := queue.AppointmentEvent{
		EventID:       uuid.NewString(),
		Type:          kind,
		AppointmentID: a.ID,
		ServiceID:     a.ServiceID,
		Date:          a.Date.Format(model.DateLayout),
		Time:          a.Time,
		OccurredAt:    s.now().UTC().Format(time.RFC3339),
	}
	if code != nil {
		ev.PromoCode = code.Code
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer cancel()
		if err := s.Events.Publish(pctx, ev); err != nil {
			s.Log.Warn("appointment event publish failed", "event", kind, "appointment_id", ev.AppointmentID, "err", err)
		}
	}()
}
