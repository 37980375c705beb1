package services

import (
	"context"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/harentsoaR/clinic-api/internal/availability"
	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/repository"
)

// DoctorDirectory is the cached read side of the doctor collection.
type DoctorDirectory interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.Doctor, error)
	List(ctx context.Context, activeOnly bool) ([]models.Doctor, error)
	Invalidate(ctx context.Context, id primitive.ObjectID)
}

// DoctorService manages doctor profiles and weekly schedules.
type DoctorService struct {
	directory DoctorDirectory
	doctors   repository.DoctorRepository
	storage   FileStorage
	logger    *zap.Logger
}

func NewDoctorService(directory DoctorDirectory, doctors repository.DoctorRepository, storage FileStorage, logger *zap.Logger) *DoctorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DoctorService{directory: directory, doctors: doctors, storage: storage, logger: logger}
}

func (s *DoctorService) List(ctx context.Context) ([]models.Doctor, error) {
	return s.directory.List(ctx, true)
}

// Get returns an active doctor. Inactive doctors are reported as not found.
func (s *DoctorService) Get(ctx context.Context, id primitive.ObjectID) (*models.Doctor, error) {
	d, err := s.directory.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.Active {
		return nil, ErrNotFound
	}
	return d, nil
}

// authorize allows admins and the doctor owning the profile.
func (s *DoctorService) authorize(ctx context.Context, actor Actor, doctorID primitive.ObjectID) error {
	if actor.IsAdmin() {
		return nil
	}
	if !actor.IsDoctor() {
		return ErrForbidden
	}
	own, err := s.doctors.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return ErrForbidden
	}
	if own.ID != doctorID {
		return ErrForbidden
	}
	return nil
}

// UpdateSchedule replaces a doctor's weekly template after validating it.
func (s *DoctorService) UpdateSchedule(ctx context.Context, actor Actor, doctorID primitive.ObjectID, schedule models.DoctorSchedule) (*models.Doctor, error) {
	if err := s.authorize(ctx, actor, doctorID); err != nil {
		return nil, err
	}
	if err := availability.ValidateSchedule(schedule); err != nil {
		return nil, err
	}
	if err := s.doctors.UpdateSchedule(ctx, doctorID, schedule); err != nil {
		return nil, err
	}
	s.directory.Invalidate(ctx, doctorID)
	s.logger.Info("doctor schedule updated", zap.String("doctorId", doctorID.Hex()), zap.String("by", actor.UserID.Hex()))
	return s.directory.Get(ctx, doctorID)
}

// UpdateProfile changes the descriptive fields of a doctor. Only admins may
// toggle Active.
func (s *DoctorService) UpdateProfile(ctx context.Context, actor Actor, doctorID primitive.ObjectID, upd repository.DoctorProfileUpdate) (*models.Doctor, error) {
	if err := s.authorize(ctx, actor, doctorID); err != nil {
		return nil, err
	}
	if upd.Active != nil && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if err := s.doctors.UpdateProfile(ctx, doctorID, upd); err != nil {
		return nil, err
	}
	s.directory.Invalidate(ctx, doctorID)
	return s.directory.Get(ctx, doctorID)
}

// UploadPhoto stores a profile picture and points the doctor at it.
func (s *DoctorService) UploadPhoto(ctx context.Context, actor Actor, doctorID primitive.ObjectID, filename string, file io.Reader) (*models.Doctor, error) {
	if err := s.authorize(ctx, actor, doctorID); err != nil {
		return nil, err
	}
	if s.storage == nil {
		return nil, fmt.Errorf("%w: file storage is not configured", ErrInvalidInput)
	}
	stored, err := s.storage.Upload(ctx, "doctors", filename, file)
	if err != nil {
		return nil, fmt.Errorf("upload doctor photo: %w", err)
	}
	return s.UpdateProfile(ctx, actor, doctorID, repository.DoctorProfileUpdate{PhotoURL: &stored.URL})
}
