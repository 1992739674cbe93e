package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/barbershop-booking/internal/fieldcrypt"
	"github.com/iliyamo/barbershop-booking/internal/model"
	"github.com/iliyamo/barbershop-booking/internal/notify"
	"github.com/iliyamo/barbershop-booking/internal/queue"
	"github.com/iliyamo/barbershop-booking/internal/repository"
)

// memStore mimics the appointments table: inserts are visible at once and
// the (date, time) pair is unique, like the MySQL index.  A failed
// transaction undoes its own writes.
type memStore struct {
	mu      sync.Mutex
	nextID  uint64
	rows    map[uint64]model.Appointment
	promos  *memPromos
	barrier *sync.WaitGroup // when set, SlotTaken waits for all bookers
}

func newMemStore(p *memPromos) *memStore {
	return &memStore{rows: map[uint64]model.Appointment{}, promos: p}
}

func (m *memStore) WithinTx(ctx context.Context, fn func(repository.BookingTx) error) error {
	tx := &memTx{m: m, updated: map[uint64]model.Appointment{}}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uint64) (*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (m *memStore) sorted(keep func(model.Appointment) bool) []model.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Appointment
	for _, a := range m.rows {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot().Key() < out[j].Slot().Key() })
	return out
}

func (m *memStore) List(_ context.Context, f repository.AppointmentFilter) ([]model.Appointment, error) {
	return m.sorted(func(a model.Appointment) bool {
		return f.Date == nil || a.Date.Equal(*f.Date)
	}), nil
}

func (m *memStore) ListByDate(_ context.Context, day time.Time) ([]model.Appointment, error) {
	return m.sorted(func(a model.Appointment) bool { return a.Date.Equal(day) }), nil
}

func (m *memStore) SearchByHash(_ context.Context, h string) ([]model.Appointment, error) {
	return m.sorted(func(a model.Appointment) bool {
		return a.NameHash == h || a.EmailHash == h || a.PhoneHash == h
	}), nil
}

func (m *memStore) BookedTimes(_ context.Context, day time.Time) ([]string, error) {
	var out []string
	for _, a := range m.sorted(func(a model.Appointment) bool { return a.Date.Equal(day) }) {
		out = append(out, a.Time)
	}
	return out, nil
}

func (m *memStore) Delete(_ context.Context, id uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *memStore) slotOwnerLocked(slot model.Slot, excludeID uint64) bool {
	for id, a := range m.rows {
		if id != excludeID && a.Slot().Key() == slot.Key() {
			return true
		}
	}
	return false
}

type memTx struct {
	m           *memStore
	inserted    []uint64
	updated     map[uint64]model.Appointment
	incremented []uint64
}

func (t *memTx) SlotTaken(_ context.Context, slot model.Slot, excludeID uint64) (bool, error) {
	t.m.mu.Lock()
	taken := t.m.slotOwnerLocked(slot, excludeID)
	t.m.mu.Unlock()
	if b := t.m.barrier; b != nil {
		b.Done()
		b.Wait()
	}
	return taken, nil
}

func (t *memTx) InsertAppointment(_ context.Context, a *model.Appointment) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.m.slotOwnerLocked(a.Slot(), 0) {
		return repository.ErrSlotTaken
	}
	t.m.nextID++
	a.ID = t.m.nextID
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	t.m.rows[a.ID] = *a
	t.inserted = append(t.inserted, a.ID)
	return nil
}

func (t *memTx) UpdateAppointment(_ context.Context, a *model.Appointment) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	prev, ok := t.m.rows[a.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if t.m.slotOwnerLocked(a.Slot(), a.ID) {
		return repository.ErrSlotTaken
	}
	if _, seen := t.updated[a.ID]; !seen {
		t.updated[a.ID] = prev
	}
	t.m.rows[a.ID] = *a
	return nil
}

func (t *memTx) IncrementPromoUses(_ context.Context, id uint64) error {
	if err := t.m.promos.add(id, 1); err != nil {
		return err
	}
	t.incremented = append(t.incremented, id)
	return nil
}

func (t *memTx) rollback() {
	t.m.mu.Lock()
	for _, id := range t.inserted {
		delete(t.m.rows, id)
	}
	for id, prev := range t.updated {
		t.m.rows[id] = prev
	}
	t.m.mu.Unlock()
	for _, id := range t.incremented {
		_ = t.m.promos.add(id, -1)
	}
}

type memPromos struct {
	mu            sync.Mutex
	byID          map[uint64]*model.PromoCode
	failIncrement bool
}

func (p *memPromos) FindByCode(_ context.Context, code string) (*model.PromoCode, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.byID {
		if strings.EqualFold(c.Code, strings.TrimSpace(code)) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (p *memPromos) GetByID(_ context.Context, id uint64) (*model.PromoCode, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (p *memPromos) add(id uint64, delta int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.byID[id]
	if !ok || p.failIncrement {
		return repository.ErrConflict
	}
	c.CurrentUses = uint64(int(c.CurrentUses) + delta)
	return nil
}

func (p *memPromos) uses(id uint64) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.byID[id].CurrentUses
}

type memServices map[uint64]*model.Service

func (m memServices) GetByID(_ context.Context, id uint64) (*model.Service, error) {
	s, ok := m[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

type fakeNotifier struct {
	mu            sync.Mutex
	fail          bool
	confirmations []notify.Notice
	adminNotices  []notify.Notice
	cancellations []notify.Notice
}

func (f *fakeNotifier) SendConfirmation(_ context.Context, n notify.Notice) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmations = append(f.confirmations, n)
	return !f.fail
}

func (f *fakeNotifier) SendAdminNotice(_ context.Context, n notify.Notice) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adminNotices = append(f.adminNotices, n)
	return !f.fail
}

func (f *fakeNotifier) SendCancellation(_ context.Context, n notify.Notice) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancellations = append(f.cancellations, n)
	return !f.fail
}

type fakeEvents struct {
	mu     sync.Mutex
	events []queue.AppointmentEvent
	err    error
}

func (f *fakeEvents) Publish(_ context.Context, ev queue.AppointmentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

var errUnexpected = errors.New("unexpected")

// fixture wires a BookingService over the in-memory fakes.
type fixture struct {
	svc      *BookingService
	store    *memStore
	promos   *memPromos
	notifier *fakeNotifier
	events   *fakeEvents
	codec    *fieldcrypt.Codec
	now      time.Time
}

const (
	serviceCut   = 1
	promoSummer  = 10
	promoExpired = 11
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	codec, err := fieldcrypt.New(bytes.Repeat([]byte{0x42}, fieldcrypt.KeySize))
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
	promos := &memPromos{byID: map[uint64]*model.PromoCode{
		promoSummer: {ID: promoSummer, Code: "SUMMER10", DiscountPercentage: decimal.NewFromInt(10),
			Active: true, ValidFrom: now.AddDate(0, -1, 0), ValidTo: now.AddDate(0, 2, 0)},
		promoExpired: {ID: promoExpired, Code: "SPRING5", DiscountPercentage: decimal.NewFromInt(5),
			Active: true, ValidFrom: now.AddDate(0, -3, 0), ValidTo: now.AddDate(0, 0, -1)},
	}}
	services := memServices{
		serviceCut: {ID: serviceCut, Name: "Corte clásico", DurationMinutes: 30, Price: decimal.RequireFromString("100.00")},
	}
	store := newMemStore(promos)
	notifier := &fakeNotifier{}
	events := &fakeEvents{}
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	svc := NewBookingService(store, services, promos, codec, notifier, log)
	svc.Events = events
	svc.Now = func() time.Time { return now }
	return &fixture{svc: svc, store: store, promos: promos, notifier: notifier, events: events, codec: codec, now: now}
}

func request(date, clock string) AppointmentRequest {
	return AppointmentRequest{
		Date:        date,
		Time:        clock,
		Name:        "Ana López",
		Email:       "ana@example.com",
		Phone:       "5512345678",
		Description: "Degradado",
		ServiceID:   serviceCut,
	}
}
