package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/repository"
	"github.com/harentsoaR/clinic-api/internal/utils"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type RegisterRequest struct {
	FullName string `json:"fullName" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Phone    string `json:"phone"`
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	GenerateJWT(userID, role, email string) (string, error)
}

// AccountService handles self-service patient accounts and logins.
type AccountService struct {
	users    repository.UserRepository
	tokens   TokenIssuer
	notifier *NotificationService
	logger   *zap.Logger
}

func NewAccountService(users repository.UserRepository, tokens TokenIssuer, notifier *NotificationService, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{users: users, tokens: tokens, notifier: notifier, logger: logger}
}

// Register creates a patient account. Doctors and admins are provisioned by an admin.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{
		FullName:  strings.TrimSpace(req.FullName),
		Email:     req.Email,
		Password:  hashed,
		Role:      models.RolePatient,
		Phone:     strings.TrimSpace(req.Phone),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("patient registered", zap.String("userId", user.ID.Hex()))
	s.notifier.Welcome(user, "")
	return user, nil
}

// Login checks the credentials and returns a signed token with the user.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.tokens.GenerateJWT(user.ID.Hex(), user.Role, user.Email)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}
	user.Password = ""
	return token, user, nil
}

func (s *AccountService) Profile(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *AccountService) UpdateProfile(ctx context.Context, id primitive.ObjectID, fullName, phone string) (*models.User, error) {
	fullName, phone = strings.TrimSpace(fullName), strings.TrimSpace(phone)
	if fullName == "" && phone == "" {
		return nil, fmt.Errorf("%w: no update fields provided", ErrInvalidInput)
	}
	if err := s.users.UpdateProfile(ctx, id, fullName, phone); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, id)
}

func (s *AccountService) ListUsers(ctx context.Context, role string) ([]models.User, error) {
	if role != "" && !models.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	return s.users.List(ctx, role)
}
