package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/harentsoaR/clinic-api/internal/availability"
	"github.com/harentsoaR/clinic-api/internal/metrics"
	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/repository"
)

// ReminderSender delivers one reminder and reports whether it went out.
type ReminderSender interface {
	AppointmentReminder(ctx context.Context, apt *models.Appointment) error
}

// ReminderResult summarizes one reminder run.
type ReminderResult struct {
	Date   string `json:"date"`
	Due    int    `json:"due"`
	Sent   int    `json:"sent"`
	Failed int    `json:"failed"`
}

// ReminderService emails patients ahead of their appointments.
type ReminderService struct {
	appointments repository.AppointmentRepository
	sender       ReminderSender
	clock        availability.Clock
	location     *time.Location
	leadDays     int
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

func NewReminderService(
	appointments repository.AppointmentRepository,
	sender ReminderSender,
	clock availability.Clock,
	location *time.Location,
	leadDays int,
	logger *zap.Logger,
) *ReminderService {
	if clock == nil {
		clock = availability.SystemClock{}
	}
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderService{
		appointments: appointments,
		sender:       sender,
		clock:        clock,
		location:     location,
		leadDays:     leadDays,
		logger:       logger,
	}
}

// WithMetrics records reminder results in m.
func (s *ReminderService) WithMetrics(m *metrics.Metrics) *ReminderService {
	s.metrics = m
	return s
}

// TargetDate is the clinic-local day whose appointments get reminded now.
func (s *ReminderService) TargetDate() string {
	now := s.clock.Now().In(s.location)
	return now.AddDate(0, 0, s.leadDays).Format(models.DateLayout)
}

// SendDue reminds every pending or confirmed appointment on TargetDate that
// was not reminded yet. Each appointment is marked after a successful send,
// so reruns on the same day do not email twice.
func (s *ReminderService) SendDue(ctx context.Context) (ReminderResult, error) {
	res := ReminderResult{Date: s.TargetDate()}
	due, err := s.appointments.ListDueReminders(ctx, res.Date)
	if err != nil {
		return res, fmt.Errorf("list due reminders: %w", err)
	}
	res.Due = len(due)

	for i := range due {
		apt := &due[i]
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := s.sender.AppointmentReminder(ctx, apt); err != nil {
			res.Failed++
			s.logger.Warn("reminder not sent", zap.String("appointmentId", apt.ID.Hex()), zap.Error(err))
			continue
		}
		if err := s.appointments.MarkReminderSent(ctx, apt.ID, s.clock.Now()); err != nil {
			res.Failed++
			s.logger.Error("reminder sent but not recorded", zap.String("appointmentId", apt.ID.Hex()), zap.Error(err))
			continue
		}
		res.Sent++
	}

	s.metrics.ObserveReminders(res.Sent, res.Failed)
	s.logger.Info("reminder run finished",
		zap.String("date", res.Date),
		zap.Int("due", res.Due),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed))
	return res, nil
}

// ReminderScheduler runs SendDue on a cron schedule in the clinic time zone.
type ReminderScheduler struct {
	cron     *cron.Cron
	reminder *ReminderService
	timeout  time.Duration
	logger   *zap.Logger
}

func NewReminderScheduler(reminder *ReminderService, location *time.Location, logger *zap.Logger) *ReminderScheduler {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderScheduler{
		cron:     cron.New(cron.WithLocation(location), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		reminder: reminder,
		timeout:  10 * time.Minute,
		logger:   logger,
	}
}

// Start registers the job with a standard five-field cron spec and starts the scheduler.
func (s *ReminderScheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	s.cron.Start()
	s.logger.Info("reminder scheduler started", zap.String("schedule", spec))
	return nil
}

// Stop halts the scheduler and waits for a running job until ctx is done.
func (s *ReminderScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("reminder job still running at shutdown")
	}
}

func (s *ReminderScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.reminder.SendDue(ctx); err != nil {
		s.logger.Error("scheduled reminder run failed", zap.Error(err))
	}
}
