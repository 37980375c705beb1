package handlers

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/repository"
)

// memStore is an in-memory stand-in for the Mongo repositories.
type memStore struct {
	mu           sync.Mutex
	users        map[primitive.ObjectID]models.User
	doctors      map[primitive.ObjectID]models.Doctor
	appointments map[primitive.ObjectID]models.Appointment
	tickets      map[primitive.ObjectID]models.SupportTicket
}

func newMemStore() *memStore {
	return &memStore{
		users:        map[primitive.ObjectID]models.User{},
		doctors:      map[primitive.ObjectID]models.Doctor{},
		appointments: map[primitive.ObjectID]models.Appointment{},
		tickets:      map[primitive.ObjectID]models.SupportTicket{},
	}
}

type memUsers struct{ *memStore }

func (r memUsers) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	r.users[u.ID] = *u
	return nil
}

func (r memUsers) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == strings.ToLower(strings.TrimSpace(email)) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memUsers) UpdateProfile(_ context.Context, id primitive.ObjectID, fullName, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if fullName != "" {
		u.FullName = fullName
	}
	if phone != "" {
		u.Phone = phone
	}
	r.users[id] = u
	return nil
}

func (r memUsers) List(_ context.Context, role string) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.User{}
	for _, u := range r.users {
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r memUsers) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

type memDoctors struct{ *memStore }

func (r memDoctors) Create(_ context.Context, d *models.Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	r.doctors[d.ID] = *d
	return nil
}

func (r memDoctors) GetByID(_ context.Context, id primitive.ObjectID) (*models.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (r memDoctors) GetByUserID(_ context.Context, userID primitive.ObjectID) (*models.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.doctors {
		if d.UserID == userID {
			return &d, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memDoctors) List(_ context.Context, activeOnly bool) ([]models.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Doctor{}
	for _, d := range r.doctors {
		if !activeOnly || d.Active {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r memDoctors) UpdateSchedule(_ context.Context, id primitive.ObjectID, s models.DoctorSchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return repository.ErrNotFound
	}
	d.Schedule = s
	r.doctors[id] = d
	return nil
}

func (r memDoctors) UpdateProfile(_ context.Context, id primitive.ObjectID, upd repository.DoctorProfileUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return repository.ErrNotFound
	}
	if upd.Bio != nil {
		d.Bio = *upd.Bio
	}
	if upd.PhotoURL != nil {
		d.PhotoURL = *upd.PhotoURL
	}
	r.doctors[id] = d
	return nil
}

type memAppointments struct{ *memStore }

func (r memAppointments) Create(_ context.Context, a *models.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	r.appointments[a.ID] = *a
	return nil
}

func (r memAppointments) GetByID(_ context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r memAppointments) ListByDoctorAndDate(_ context.Context, doctorID primitive.ObjectID, date string) ([]models.Appointment, error) {
	return r.List(context.Background(), repository.AppointmentFilter{DoctorID: doctorID, From: date, To: date})
}

func (r memAppointments) List(_ context.Context, f repository.AppointmentFilter) ([]models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Appointment{}
	for _, a := range r.appointments {
		switch {
		case !f.PatientID.IsZero() && a.PatientID != f.PatientID:
		case !f.DoctorID.IsZero() && a.DoctorID != f.DoctorID:
		case f.Status != "" && a.Status != f.Status:
		case f.From != "" && a.Date < f.From:
		case f.To != "" && a.Date > f.To:
		default:
			out = append(out, a)
		}
	}
	return out, nil
}

func (r memAppointments) UpdateStatus(_ context.Context, id primitive.ObjectID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Status = status
	r.appointments[id] = a
	return nil
}

func (r memAppointments) ListDueReminders(ctx context.Context, date string) ([]models.Appointment, error) {
	all, _ := r.List(ctx, repository.AppointmentFilter{From: date, To: date})
	out := []models.Appointment{}
	for _, a := range all {
		if a.ReminderSentAt == nil && a.Occupies() && a.Status != models.StatusCompleted {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r memAppointments) MarkReminderSent(_ context.Context, id primitive.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.appointments[id]
	a.ReminderSentAt = &at
	r.appointments[id] = a
	return nil
}

type memTickets struct{ *memStore }

func (r memTickets) Create(_ context.Context, t *models.SupportTicket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	r.tickets[t.ID] = *t
	return nil
}

func (r memTickets) List(_ context.Context, status string) ([]models.SupportTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.SupportTicket{}
	for _, t := range r.tickets {
		if status == "" || t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r memTickets) Resolve(_ context.Context, id primitive.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok || t.Status != models.TicketOpen {
		return repository.ErrNotFound
	}
	t.Status = models.TicketResolved
	t.ResolvedAt = &at
	r.tickets[id] = t
	return nil
}
