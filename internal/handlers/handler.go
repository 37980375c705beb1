package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/harentsoaR/clinic-api/internal/metrics"
	"github.com/harentsoaR/clinic-api/internal/services"
)

// Services bundles the application services the HTTP layer calls into.
type Services struct {
	Accounts     *services.AccountService
	Doctors      *services.DoctorService
	Booking      *services.BookingService
	Provisioning *services.ProvisioningService
	Support      *services.SupportService
	Export       *services.ExportService
	Reminders    *services.ReminderService
}

type Handler struct {
	Services
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	// Ping reports whether the database is reachable. Optional.
	Ping func(ctx context.Context) error
}

func NewHandler(svc Services, m *metrics.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Services: svc,
		Metrics:  m,
		Logger:   logger,
	}
}
