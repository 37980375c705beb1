package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/repository"
	"github.com/harentsoaR/clinic-api/internal/utils"
)

// IdentityProvider mirrors staff accounts into an external auth system.
type IdentityProvider interface {
	CreateIdentity(ctx context.Context, email, password, displayName, role string) (string, error)
	DeleteIdentity(ctx context.Context, uid string) error
}

// FirebaseIdentityProvider creates Firebase Auth users carrying a role claim.
type FirebaseIdentityProvider struct {
	client *auth.Client
}

func NewFirebaseIdentityProvider(client *auth.Client) *FirebaseIdentityProvider {
	return &FirebaseIdentityProvider{client: client}
}

func (p *FirebaseIdentityProvider) CreateIdentity(ctx context.Context, email, password, displayName, role string) (string, error) {
	params := (&auth.UserToCreate{}).
		Email(email).
		Password(password).
		DisplayName(displayName)
	rec, err := p.client.CreateUser(ctx, params)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return "", fmt.Errorf("%w: firebase user %s already exists", ErrDuplicate, email)
		}
		return "", fmt.Errorf("firebase create user: %w", err)
	}
	if err := p.client.SetCustomUserClaims(ctx, rec.UID, map[string]interface{}{"role": role}); err != nil {
		_ = p.client.DeleteUser(ctx, rec.UID)
		return "", fmt.Errorf("firebase set role claim: %w", err)
	}
	return rec.UID, nil
}

func (p *FirebaseIdentityProvider) DeleteIdentity(ctx context.Context, uid string) error {
	return p.client.DeleteUser(ctx, uid)
}

type ProvisionRequest struct {
	FullName  string `json:"fullName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Role      string `json:"role" binding:"required"`
	Phone     string `json:"phone"`
	Specialty string `json:"specialty"`
	Bio       string `json:"bio"`
}

type ProvisionResult struct {
	User              *models.User   `json:"user"`
	Doctor            *models.Doctor `json:"doctor,omitempty"`
	TemporaryPassword string         `json:"temporaryPassword"`
}

// ProvisioningService lets admins create staff accounts. Doctors get a
// profile with the default weekly schedule.
type ProvisioningService struct {
	users    repository.UserRepository
	doctors  repository.DoctorRepository
	identity IdentityProvider
	notifier *NotificationService
	logger   *zap.Logger
}

// NewProvisioningService accepts a nil identity provider when Firebase is not configured.
func NewProvisioningService(users repository.UserRepository, doctors repository.DoctorRepository, identity IdentityProvider, notifier *NotificationService, logger *zap.Logger) *ProvisioningService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProvisioningService{users: users, doctors: doctors, identity: identity, notifier: notifier, logger: logger}
}

func (s *ProvisioningService) Provision(ctx context.Context, actor Actor, req ProvisionRequest) (*ProvisionResult, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if !models.ValidRole(req.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, req.Role)
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: user %s already exists", ErrDuplicate, email)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	temp := temporaryPassword()
	hashed, err := utils.HashPassword(temp)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		FullName:  strings.TrimSpace(req.FullName),
		Email:     email,
		Password:  hashed,
		Role:      req.Role,
		Phone:     strings.TrimSpace(req.Phone),
		CreatedAt: time.Now().UTC(),
	}

	if s.identity != nil {
		uid, err := s.identity.CreateIdentity(ctx, email, temp, user.FullName, user.Role)
		if err != nil {
			return nil, err
		}
		user.FirebaseUID = uid
	}

	if err := s.users.Create(ctx, user); err != nil {
		s.rollbackIdentity(ctx, user.FirebaseUID)
		return nil, err
	}

	res := &ProvisionResult{User: user, TemporaryPassword: temp}
	if user.Role == models.RoleDoctor {
		doctor := &models.Doctor{
			UserID:    user.ID,
			FullName:  user.FullName,
			Email:     user.Email,
			Specialty: strings.TrimSpace(req.Specialty),
			Bio:       strings.TrimSpace(req.Bio),
			Schedule:  models.DefaultSchedule(),
			Active:    true,
		}
		if err := s.doctors.Create(ctx, doctor); err != nil {
			if derr := s.users.Delete(ctx, user.ID); derr != nil {
				s.logger.Error("rollback of provisioned user failed", zap.String("userId", user.ID.Hex()), zap.Error(derr))
			}
			s.rollbackIdentity(ctx, user.FirebaseUID)
			return nil, fmt.Errorf("create doctor profile: %w", err)
		}
		res.Doctor = doctor
	}

	s.logger.Info("user provisioned",
		zap.String("userId", user.ID.Hex()),
		zap.String("role", user.Role),
		zap.String("by", actor.UserID.Hex()))
	s.notifier.Welcome(user, temp)
	return res, nil
}

func (s *ProvisioningService) rollbackIdentity(ctx context.Context, uid string) {
	if s.identity == nil || uid == "" {
		return
	}
	if err := s.identity.DeleteIdentity(ctx, uid); err != nil {
		s.logger.Error("rollback of firebase user failed", zap.String("uid", uid), zap.Error(err))
	}
}

func temporaryPassword() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
