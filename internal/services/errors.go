package services

import (
	"errors"

	"github.com/harentsoaR/clinic-api/internal/repository"
)

var (
	ErrNotFound          = repository.ErrNotFound
	ErrDuplicate         = repository.ErrDuplicate
	ErrForbidden         = errors.New("forbidden")
	ErrSlotUnavailable   = errors.New("requested slot is not available")
	ErrInvalidTransition = errors.New("invalid appointment status transition")
	ErrInvalidInput      = errors.New("invalid input")
)
