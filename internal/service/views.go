package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/barbershop-booking/internal/model"
	"github.com/iliyamo/barbershop-booking/internal/notify"
	"github.com/iliyamo/barbershop-booking/internal/promo"
	"github.com/iliyamo/barbershop-booking/internal/repository"
)

// AppointmentView is the decrypted representation returned to callers.
// Fields that cannot be decrypted are left empty and listed in
// UnreadableFields; ciphertext is never returned.
type AppointmentView struct {
	ID               uint64           `json:"id"`
	Date             string           `json:"date"`
	Time             string           `json:"time"`
	Name             string           `json:"name"`
	Email            string           `json:"email"`
	Phone            string           `json:"phone"`
	Description      string           `json:"description"`
	PromoCodeAllowed bool             `json:"promo_code_allowed"`
	ServiceID        uint64           `json:"service"`
	ServiceName      string           `json:"service_name,omitempty"`
	PromoCodeID      *uint64          `json:"promo_code"`
	PromoCode        string           `json:"promo_code_text,omitempty"`
	Price            *promo.PriceInfo `json:"price,omitempty"`
	UnreadableFields []string         `json:"unreadable_fields,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`

	date     time.Time
	duration int
}

func (v *AppointmentView) notice() notify.Notice {
	n := notify.Notice{
		AppointmentID:   v.ID,
		ClientName:      v.Name,
		ClientEmail:     v.Email,
		ClientPhone:     v.Phone,
		Date:            v.date,
		Time:            v.Time,
		ServiceName:     v.ServiceName,
		DurationMinutes: v.duration,
		Description:     v.Description,
		PromoCode:       v.PromoCode,
	}
	if v.Price != nil {
		n.Price = *v.Price
	}
	return n
}

func baseView(a *model.Appointment) *AppointmentView {
	return &AppointmentView{
		ID:               a.ID,
		Date:             a.Date.Format(model.DateLayout),
		Time:             a.Time,
		Description:      a.Description,
		PromoCodeAllowed: a.PromoCodeAllowed,
		ServiceID:        a.ServiceID,
		PromoCodeID:      a.PromoCodeID,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
		date:             a.Date,
	}
}

func (s *BookingService) withCatalog(v *AppointmentView, svc *model.Service, code *model.PromoCode) {
	if code != nil {
		v.PromoCode = code.Code
	}
	if svc == nil {
		return
	}
	v.ServiceName = svc.Name
	v.duration = svc.DurationMinutes
	price := promo.Price(svc.Price, code, s.now())
	v.Price = &price
}

// viewFromInput builds the view of a just-written appointment from the
// plaintext already in hand.
func (s *BookingService) viewFromInput(a *model.Appointment, in checkedInput, code *model.PromoCode) *AppointmentView {
	v := baseView(a)
	v.Name, v.Email, v.Phone = in.name, in.email, in.phone
	s.withCatalog(v, in.service, code)
	return v
}

func (s *BookingService) noticeFromInput(a *model.Appointment, in checkedInput, code *model.PromoCode) notify.Notice {
	return s.viewFromInput(a, in, code).notice()
}

// view decrypts a stored appointment and prices it against the current
// state of its service and promo code.
func (s *BookingService) view(ctx context.Context, a *model.Appointment) *AppointmentView {
	return s.viewCached(ctx, a, map[uint64]*model.Service{}, map[uint64]*model.PromoCode{})
}

func (s *BookingService) views(ctx context.Context, list []model.Appointment) []AppointmentView {
	services := map[uint64]*model.Service{}
	codes := map[uint64]*model.PromoCode{}
	out := make([]AppointmentView, 0, len(list))
	for i := range list {
		out = append(out, *s.viewCached(ctx, &list[i], services, codes))
	}
	return out
}

func (s *BookingService) viewCached(ctx context.Context, a *model.Appointment,
	services map[uint64]*model.Service, codes map[uint64]*model.PromoCode) *AppointmentView {
	v := baseView(a)
	s.decryptInto(ctx, a, v)

	svc, ok := services[a.ServiceID]
	if !ok {
		var err error
		svc, err = s.Services.GetByID(ctx, a.ServiceID)
		if err != nil {
			s.Log.WarnContext(ctx, "service lookup failed", "appointment_id", a.ID, "service_id", a.ServiceID, "err", err)
			svc = nil
		}
		services[a.ServiceID] = svc
	}

	var code *model.PromoCode
	if a.PromoCodeID != nil {
		id := *a.PromoCodeID
		if c, ok := codes[id]; ok {
			code = c
		} else {
			c, err := s.Promos.GetByID(ctx, id)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				s.Log.WarnContext(ctx, "promo lookup failed", "appointment_id", a.ID, "promo_code_id", id, "err", err)
			}
			if err != nil {
				c = nil
			}
			codes[id] = c
			code = c
		}
	}
	s.withCatalog(v, svc, code)
	return v
}

func (s *BookingService) decryptInto(ctx context.Context, a *model.Appointment, v *AppointmentView) {
	fields := []struct {
		name string
		get  func(model.FieldCodec) (string, error)
		dst  *string
	}{
		{"name", a.Name, &v.Name},
		{"email", a.Email, &v.Email},
		{"phone", a.Phone, &v.Phone},
	}
	for _, f := range fields {
		plain, err := f.get(s.Codec)
		if err != nil {
			s.Log.WarnContext(ctx, "field decryption failed", "appointment_id", a.ID, "field", f.name, "err", err)
			v.UnreadableFields = append(v.UnreadableFields, f.name)
			continue
		}
		*f.dst = plain
	}
}
