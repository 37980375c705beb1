package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/harentsoaR/clinic-api/internal/availability"
	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/repository"
)

type bookingFixture struct {
	svc          *BookingService
	users        *memUsers
	doctors      *memDoctors
	appointments *memAppointments
	sender       *recordingSender
	notifier     *NotificationService

	patient      *models.User
	doctorUser   *models.User
	doctor       *models.Doctor
	otherDoctor  *models.Doctor
	admin        *models.User
	patientActor Actor
	doctorActor  Actor
	adminActor   Actor
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	f := &bookingFixture{
		users:        newMemUsers(),
		doctors:      newMemDoctors(),
		appointments: newMemAppointments(),
		sender:       &recordingSender{},
	}
	f.notifier = NewNotificationService(f.sender, "Test Clinic", "", zap.NewNop())
	calc := availability.NewCalculator(fixedClock(fixedNow), time.UTC)
	f.svc = NewBookingService(calc, &directory{memDoctors: f.doctors}, f.doctors, f.users, f.appointments, f.notifier, zap.NewNop())

	f.patient = f.users.add("Pat Ient", "pat@example.com", models.RolePatient)
	f.doctorUser = f.users.add("Dr. Rabe", "rabe@example.com", models.RoleDoctor)
	f.admin = f.users.add("Admin", "admin@example.com", models.RoleAdmin)

	f.doctor = &models.Doctor{UserID: f.doctorUser.ID, FullName: "Dr. Rabe", Email: "rabe@example.com", Schedule: models.DefaultSchedule(), Active: true}
	require.NoError(t, f.doctors.Create(context.Background(), f.doctor))
	f.otherDoctor = &models.Doctor{UserID: primitive.NewObjectID(), FullName: "Dr. Other", Schedule: models.DefaultSchedule(), Active: true}
	require.NoError(t, f.doctors.Create(context.Background(), f.otherDoctor))

	f.patientActor = Actor{UserID: f.patient.ID, Role: models.RolePatient, Email: f.patient.Email}
	f.doctorActor = Actor{UserID: f.doctorUser.ID, Role: models.RoleDoctor}
	f.adminActor = Actor{UserID: f.admin.ID, Role: models.RoleAdmin}
	return f
}

func (f *bookingFixture) book(t *testing.T, date, slot string) *models.Appointment {
	t.Helper()
	apt, err := f.svc.Book(context.Background(), f.patientActor, BookingRequest{
		DoctorID: f.doctor.ID.Hex(),
		Date:     date,
		Time:     slot,
	})
	require.NoError(t, err)
	return apt
}

func TestAvailabilityExcludesBookedSlots(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	require.NoError(t, f.appointments.Create(ctx, &models.Appointment{DoctorID: f.doctor.ID, Date: "2026-10-21", Time: "09:00", Status: models.StatusPending}))
	require.NoError(t, f.appointments.Create(ctx, &models.Appointment{DoctorID: f.doctor.ID, Date: "2026-10-21", Time: "09:30", Status: models.StatusCancelled}))
	require.NoError(t, f.appointments.Create(ctx, &models.Appointment{DoctorID: f.otherDoctor.ID, Date: "2026-10-21", Time: "10:00", Status: models.StatusConfirmed}))

	slots, err := f.svc.Availability(ctx, f.doctor.ID, "2026-10-21")
	require.NoError(t, err)
	assert.Len(t, slots, 15)
	assert.NotContains(t, slots, "09:00")
	assert.Contains(t, slots, "09:30")
	assert.Contains(t, slots, "10:00")
}

func TestAvailabilityErrors(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	_, err := f.svc.Availability(ctx, primitive.NewObjectID(), "2026-10-21")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Availability(ctx, f.doctor.ID, "21/10/2026")
	var inputErr *availability.InputError
	assert.ErrorAs(t, err, &inputErr)

	f.doctors.doctors[f.doctor.ID].Schedule.SlotDuration = 0
	_, err = f.svc.Availability(ctx, f.doctor.ID, "2026-10-21")
	var cfgErr *availability.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	f.doctors.doctors[f.doctor.ID].Active = false
	_, err = f.svc.Availability(ctx, f.doctor.ID, "2026-10-21")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAvailabilityWeekend(t *testing.T) {
	f := newBookingFixture(t)

	slots, err := f.svc.Availability(context.Background(), f.doctor.ID, "2026-10-18")
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestBook(t *testing.T) {
	f := newBookingFixture(t)

	apt, err := f.svc.Book(context.Background(), f.patientActor, BookingRequest{
		DoctorID: f.doctor.ID.Hex(),
		Date:     "2026-10-21",
		Time:     "9:30",
		Reason:   "  checkup ",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, apt.Status)
	assert.Equal(t, "09:30", apt.Time)
	assert.Equal(t, "checkup", apt.Reason)
	assert.Equal(t, f.patient.ID, apt.PatientID)
	assert.Equal(t, "Dr. Rabe", apt.DoctorName)

	f.notifier.Wait()
	assert.Equal(t, []string{"pat@example.com", "rabe@example.com"}, f.sender.recipients())

	slots, err := f.svc.Availability(context.Background(), f.doctor.ID, "2026-10-21")
	require.NoError(t, err)
	assert.NotContains(t, slots, "09:30")
}

func TestBookRejections(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	f.book(t, "2026-10-21", "10:00")

	tests := []struct {
		name  string
		actor Actor
		req   BookingRequest
		check func(t *testing.T, err error)
	}{
		{
			name:  "slot taken",
			actor: f.patientActor,
			req:   BookingRequest{DoctorID: f.doctor.ID.Hex(), Date: "2026-10-21", Time: "10:00"},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrSlotUnavailable) },
		},
		{
			name:  "off grid",
			actor: f.patientActor,
			req:   BookingRequest{DoctorID: f.doctor.ID.Hex(), Date: "2026-10-21", Time: "10:15"},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrSlotUnavailable) },
		},
		{
			name:  "non working day",
			actor: f.patientActor,
			req:   BookingRequest{DoctorID: f.doctor.ID.Hex(), Date: "2026-10-18", Time: "10:00"},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrSlotUnavailable) },
		},
		{
			name:  "in the past",
			actor: f.patientActor,
			req:   BookingRequest{DoctorID: f.doctor.ID.Hex(), Date: "2026-10-16", Time: "10:00"},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrSlotUnavailable) },
		},
		{
			name:  "malformed time",
			actor: f.patientActor,
			req:   BookingRequest{DoctorID: f.doctor.ID.Hex(), Date: "2026-10-21", Time: "ten"},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInvalidInput) },
		},
		{
			name:  "malformed date",
			actor: f.patientActor,
			req:   BookingRequest{DoctorID: f.doctor.ID.Hex(), Date: "tomorrow", Time: "10:00"},
			check: func(t *testing.T, err error) {
				var inputErr *availability.InputError
				assert.ErrorAs(t, err, &inputErr)
			},
		},
		{
			name:  "unknown doctor",
			actor: f.patientActor,
			req:   BookingRequest{DoctorID: "nope", Date: "2026-10-21", Time: "10:00"},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrNotFound) },
		},
		{
			name:  "doctors cannot book",
			actor: f.doctorActor,
			req:   BookingRequest{DoctorID: f.doctor.ID.Hex(), Date: "2026-10-21", Time: "11:00"},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrForbidden) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Book(ctx, tt.actor, tt.req)
			tt.check(t, err)
		})
	}
}

func TestStatusTransitions(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	apt := f.book(t, "2026-10-21", "09:00")

	_, err := f.svc.Confirm(ctx, f.patientActor, apt.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Complete(ctx, f.doctorActor, apt.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	confirmed, err := f.svc.Confirm(ctx, f.doctorActor, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)

	cancelled, err := f.svc.Cancel(ctx, f.patientActor, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	_, err = f.svc.Cancel(ctx, f.adminActor, apt.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// A cancelled appointment frees its slot.
	again := f.book(t, "2026-10-21", "09:00")
	assert.NotEqual(t, apt.ID, again.ID)
}

func TestStatusTransitionOwnership(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	apt := f.book(t, "2026-10-21", "09:00")

	strangerDoctor := Actor{UserID: f.otherDoctor.UserID, Role: models.RoleDoctor}
	_, err := f.svc.Confirm(ctx, strangerDoctor, apt.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	otherPatient := Actor{UserID: primitive.NewObjectID(), Role: models.RolePatient}
	_, err = f.svc.Cancel(ctx, otherPatient, apt.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	confirmed, err := f.svc.Confirm(ctx, f.adminActor, apt.ID)
	require.NoError(t, err)
	completed, err := f.svc.Complete(ctx, f.doctorActor, confirmed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)

	_, err = f.svc.Confirm(ctx, f.adminActor, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetAndListScoping(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	apt := f.book(t, "2026-10-21", "09:00")
	require.NoError(t, f.appointments.Create(ctx, &models.Appointment{
		PatientID: primitive.NewObjectID(), DoctorID: f.otherDoctor.ID, Date: "2026-10-22", Time: "09:00", Status: models.StatusPending,
	}))

	got, err := f.svc.Get(ctx, f.patientActor, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, apt.ID, got.ID)

	_, err = f.svc.Get(ctx, Actor{UserID: primitive.NewObjectID(), Role: models.RolePatient}, apt.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	mine, err := f.svc.List(ctx, f.patientActor, repository.AppointmentFilter{})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	agenda, err := f.svc.List(ctx, f.doctorActor, repository.AppointmentFilter{DoctorID: f.otherDoctor.ID})
	require.NoError(t, err)
	require.Len(t, agenda, 1)
	assert.Equal(t, f.doctor.ID, agenda[0].DoctorID)

	all, err := f.svc.List(ctx, f.adminActor, repository.AppointmentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	noProfile, err := f.svc.List(ctx, Actor{UserID: primitive.NewObjectID(), Role: models.RoleDoctor}, repository.AppointmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, noProfile)
}

func TestBookStorageFailure(t *testing.T) {
	f := newBookingFixture(t)
	f.appointments.fail = errors.New("mongo down")

	_, err := f.svc.Book(context.Background(), f.patientActor, BookingRequest{
		DoctorID: f.doctor.ID.Hex(), Date: "2026-10-21", Time: "09:00",
	})
	require.Error(t, err)
	f.notifier.Wait()
	assert.Empty(t, f.sender.recipients())
}
