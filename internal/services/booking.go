package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/harentsoaR/clinic-api/internal/availability"
	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/repository"
)

// BookingRequest is what a patient submits to book a slot.
type BookingRequest struct {
	DoctorID string `json:"doctorId" binding:"required"`
	Date     string `json:"date" binding:"required"`
	Time     string `json:"time" binding:"required"`
	Reason   string `json:"reason"`
}

// BookingService lists free slots and moves appointments through their lifecycle.
type BookingService struct {
	calc         *availability.Calculator
	doctors      DoctorDirectory
	doctorRepo   repository.DoctorRepository
	users        repository.UserRepository
	appointments repository.AppointmentRepository
	notifier     *NotificationService
	logger       *zap.Logger
}

func NewBookingService(
	calc *availability.Calculator,
	doctors DoctorDirectory,
	doctorRepo repository.DoctorRepository,
	users repository.UserRepository,
	appointments repository.AppointmentRepository,
	notifier *NotificationService,
	logger *zap.Logger,
) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		calc:         calc,
		doctors:      doctors,
		doctorRepo:   doctorRepo,
		users:        users,
		appointments: appointments,
		notifier:     notifier,
		logger:       logger,
	}
}

// Availability returns the free slots of an active doctor on date ("YYYY-MM-DD").
func (s *BookingService) Availability(ctx context.Context, doctorID primitive.ObjectID, date string) ([]string, error) {
	doctor, err := s.activeDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	day, err := s.calc.ParseDate(date)
	if err != nil {
		return nil, err
	}
	return s.slots(ctx, doctor, day)
}

func (s *BookingService) slots(ctx context.Context, doctor *models.Doctor, day time.Time) ([]string, error) {
	existing, err := s.appointments.ListByDoctorAndDate(ctx, doctor.ID, day.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	return s.calc.Slots(doctor.ID, doctor.Schedule, day, existing)
}

func (s *BookingService) activeDoctor(ctx context.Context, id primitive.ObjectID) (*models.Doctor, error) {
	doctor, err := s.doctors.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doctor.Active {
		return nil, ErrNotFound
	}
	return doctor, nil
}

// Book creates a pending appointment for the calling patient.
//
// The slot is re-checked against fresh availability right before the insert.
// Two concurrent requests for the same slot can still both pass the check;
// there is no unique index or lock guarding the reservation.
func (s *BookingService) Book(ctx context.Context, actor Actor, req BookingRequest) (*models.Appointment, error) {
	if !actor.IsPatient() {
		return nil, ErrForbidden
	}
	doctorID, err := repository.ParseID(req.DoctorID)
	if err != nil {
		return nil, err
	}
	doctor, err := s.activeDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	day, err := s.calc.ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	slot, err := parseSlot(req.Time)
	if err != nil {
		return nil, err
	}
	if day.Before(s.calc.Today()) {
		return nil, fmt.Errorf("%w: %s is in the past", ErrSlotUnavailable, req.Date)
	}

	existing, err := s.appointments.ListByDoctorAndDate(ctx, doctor.ID, day.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	free, err := s.calc.IsAvailable(doctor.ID, doctor.Schedule, day, existing, slot)
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, ErrSlotUnavailable
	}

	patient, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}

	apt := &models.Appointment{
		PatientID:    patient.ID,
		PatientName:  patient.FullName,
		PatientEmail: patient.Email,
		DoctorID:     doctor.ID,
		DoctorName:   doctor.FullName,
		Date:         day.Format(models.DateLayout),
		Time:         slot,
		Reason:       strings.TrimSpace(req.Reason),
		Status:       models.StatusPending,
	}
	if err := s.appointments.Create(ctx, apt); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.logger.Info("appointment booked",
		zap.String("appointmentId", apt.ID.Hex()),
		zap.String("doctorId", doctor.ID.Hex()),
		zap.String("date", apt.Date),
		zap.String("time", apt.Time))
	s.notifier.AppointmentBooked(apt, doctor.Email)
	return apt, nil
}

func (s *BookingService) Confirm(ctx context.Context, actor Actor, id primitive.ObjectID) (*models.Appointment, error) {
	return s.transition(ctx, actor, id, models.StatusConfirmed)
}

func (s *BookingService) Cancel(ctx context.Context, actor Actor, id primitive.ObjectID) (*models.Appointment, error) {
	return s.transition(ctx, actor, id, models.StatusCancelled)
}

func (s *BookingService) Complete(ctx context.Context, actor Actor, id primitive.ObjectID) (*models.Appointment, error) {
	return s.transition(ctx, actor, id, models.StatusCompleted)
}

func (s *BookingService) transition(ctx context.Context, actor Actor, id primitive.ObjectID, to string) (*models.Appointment, error) {
	apt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case actor.IsAdmin():
	case actor.IsDoctor():
		if err := s.ownsAsDoctor(ctx, actor, apt); err != nil {
			return nil, err
		}
	case actor.IsPatient():
		// Patients may only withdraw their own requests.
		if to != models.StatusCancelled || apt.PatientID != actor.UserID {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}

	if !models.CanTransition(apt.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, apt.Status, to)
	}
	if err := s.appointments.UpdateStatus(ctx, apt.ID, to); err != nil {
		return nil, err
	}
	from := apt.Status
	apt.Status = to
	apt.UpdatedAt = time.Now().UTC()

	s.logger.Info("appointment status changed",
		zap.String("appointmentId", apt.ID.Hex()),
		zap.String("from", from),
		zap.String("to", to),
		zap.String("by", actor.UserID.Hex()))

	switch to {
	case models.StatusConfirmed:
		s.notifier.AppointmentConfirmed(apt)
	case models.StatusCancelled:
		s.notifier.AppointmentCancelled(apt)
	}
	return apt, nil
}

func (s *BookingService) ownsAsDoctor(ctx context.Context, actor Actor, apt *models.Appointment) error {
	own, err := s.doctorRepo.GetByUserID(ctx, actor.UserID)
	if errors.Is(err, ErrNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return err
	}
	if own.ID != apt.DoctorID {
		return ErrForbidden
	}
	return nil
}

// Get returns an appointment visible to the actor.
func (s *BookingService) Get(ctx context.Context, actor Actor, id primitive.ObjectID) (*models.Appointment, error) {
	apt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.IsAdmin():
	case actor.IsDoctor():
		if err := s.ownsAsDoctor(ctx, actor, apt); err != nil {
			return nil, err
		}
	case apt.PatientID != actor.UserID:
		return nil, ErrForbidden
	}
	return apt, nil
}

// List returns appointments scoped to the actor: patients see their own,
// doctors their agenda, admins everything matching filter.
func (s *BookingService) List(ctx context.Context, actor Actor, filter repository.AppointmentFilter) ([]models.Appointment, error) {
	switch {
	case actor.IsAdmin():
	case actor.IsDoctor():
		own, err := s.doctorRepo.GetByUserID(ctx, actor.UserID)
		if errors.Is(err, ErrNotFound) {
			return []models.Appointment{}, nil
		}
		if err != nil {
			return nil, err
		}
		filter.DoctorID = own.ID
	case actor.IsPatient():
		filter.PatientID = actor.UserID
	default:
		return nil, ErrForbidden
	}
	return s.appointments.List(ctx, filter)
}

// parseSlot accepts "H:mm" or "HH:mm" and returns the canonical "HH:mm".
func parseSlot(value string) (string, error) {
	t, err := time.Parse(models.TimeLayout, strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("%w: time %q, expected HH:mm", ErrInvalidInput, value)
	}
	return t.Format(models.TimeLayout), nil
}
