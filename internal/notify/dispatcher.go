// Package notify turns appointment events into emails: confirmation to the
// client, a notice to the shop admin, cancellation, and the daily digest
// with client reminders.
//
// Every Send* method is best effort.  Failures are logged and reported as
// false; they never reach the caller as errors, so a booking can never fail
// because an email did not go out.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/barbershop-booking/internal/mailer"
	"github.com/iliyamo/barbershop-booking/internal/promo"
)

// Notice carries the decrypted appointment data an email needs.  It is
// built after commit and never persisted.
type Notice struct {
	AppointmentID   uint64
	ClientName      string
	ClientEmail     string
	ClientPhone     string
	Date            time.Time
	Time            string // HH:MM:SS
	ServiceName     string
	DurationMinutes int
	Description     string
	PromoCode       string
	Price           promo.PriceInfo
}

// EmailDispatcher renders notices and hands them to a mailer.Sender.
type EmailDispatcher struct {
	Mail       mailer.Sender
	AdminEmail string
	Log        *slog.Logger
}

func NewEmailDispatcher(mail mailer.Sender, adminEmail string, log *slog.Logger) *EmailDispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &EmailDispatcher{Mail: mail, AdminEmail: strings.TrimSpace(adminEmail), Log: log}
}

// view is the template data for a single appointment.
type view struct {
	ClientName  string
	ClientEmail string
	ClientPhone string
	Service     string
	Duration    int
	Date        string // dd/mm/yyyy
	Time        string // HH:MM
	Description string
	PromoCode   string
	Price       promo.PriceInfo
}

func toView(n Notice) view {
	return view{
		ClientName:  n.ClientName,
		ClientEmail: n.ClientEmail,
		ClientPhone: n.ClientPhone,
		Service:     n.ServiceName,
		Duration:    n.DurationMinutes,
		Date:        n.Date.Format("02/01/2006"),
		Time:        shortTime(n.Time),
		Description: n.Description,
		PromoCode:   n.PromoCode,
		Price:       n.Price,
	}
}

func shortTime(t string) string {
	if len(t) >= 5 {
		return t[:5]
	}
	return t
}

// SendConfirmation emails the client that the booking was made.
func (d *EmailDispatcher) SendConfirmation(ctx context.Context, n Notice) bool {
	return d.send(ctx, "confirmation", n.AppointmentID, n.ClientEmail, n.ClientName,
		"Confirmación de cita - "+n.ServiceName, toView(n))
}

// SendAdminNotice emails the shop admin about a new booking.
func (d *EmailDispatcher) SendAdminNotice(ctx context.Context, n Notice) bool {
	return d.send(ctx, "admin_notice", n.AppointmentID, d.AdminEmail, "",
		"Nueva cita agendada - "+n.ServiceName, toView(n))
}

// SendCancellation emails the client that the appointment was removed.
func (d *EmailDispatcher) SendCancellation(ctx context.Context, n Notice) bool {
	return d.send(ctx, "cancellation", n.AppointmentID, n.ClientEmail, n.ClientName,
		"Cancelación de cita - "+n.ServiceName, toView(n))
}

// SendDailyDigest sends the admin a summary of day's appointments and each
// client a reminder.  It returns how many emails were sent.  The error
// reports failures, joined, for the caller's exit status; one failed
// email does not stop the others.
func (d *EmailDispatcher) SendDailyDigest(ctx context.Context, day time.Time, notices []Notice) (int, error) {
	if len(notices) == 0 {
		d.Log.InfoContext(ctx, "digest: no appointments", "date", day.Format("2006-01-02"))
		return 0, nil
	}
	var (
		sent int
		errs []error
	)
	items := make([]view, 0, len(notices))
	for _, n := range notices {
		items = append(items, toView(n))
	}
	date := day.Format("02/01/2006")
	digest := struct {
		Date  string
		Items []view
	}{date, items}
	if d.send(ctx, "digest", 0, d.AdminEmail, "", "Citas del día - "+date, digest) {
		sent++
	} else {
		errs = append(errs, errors.New("digest to admin failed"))
	}
	for _, n := range notices {
		if d.send(ctx, "reminder", n.AppointmentID, n.ClientEmail, n.ClientName,
			"Recordatorio de tu cita con "+n.ServiceName, toView(n)) {
			sent++
		} else {
			errs = append(errs, fmt.Errorf("reminder for appointment %d failed", n.AppointmentID))
		}
	}
	return sent, errors.Join(errs...)
}

func (d *EmailDispatcher) send(ctx context.Context, kind string, apptID uint64, to, toName, subject string, data any) bool {
	log := d.Log.With("notification", kind, "appointment_id", apptID)
	if strings.TrimSpace(to) == "" {
		log.WarnContext(ctx, "notification skipped: no recipient")
		return false
	}
	text, html, err := render(kind, data)
	if err != nil {
		log.ErrorContext(ctx, "notification render failed", "err", err)
		return false
	}
	if err := d.Mail.Send(ctx, mailer.Message{To: to, ToName: toName, Subject: subject, Text: text, HTML: html}); err != nil {
		log.WarnContext(ctx, "notification send failed", "err", err)
		return false
	}
	log.InfoContext(ctx, "notification sent")
	return true
}
