package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/repository"
)

// Attachment is an optional file sent with a ticket.
type Attachment struct {
	Filename string
	Reader   io.Reader
}

type TicketRequest struct {
	Kind    string `form:"kind" json:"kind"`
	Subject string `form:"subject" json:"subject" binding:"required"`
	Message string `form:"message" json:"message" binding:"required"`
}

// SupportService files help requests and bug reports.
type SupportService struct {
	tickets  repository.TicketRepository
	storage  FileStorage
	notifier *NotificationService
	now      func() time.Time
	logger   *zap.Logger
}

func NewSupportService(tickets repository.TicketRepository, storage FileStorage, notifier *NotificationService, logger *zap.Logger) *SupportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SupportService{tickets: tickets, storage: storage, notifier: notifier, now: time.Now, logger: logger}
}

// File stores a ticket, uploading the attachment first when one is given.
func (s *SupportService) File(ctx context.Context, actor Actor, req TicketRequest, att *Attachment) (*models.SupportTicket, error) {
	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	switch kind {
	case "":
		kind = models.TicketKindSupport
	case models.TicketKindSupport, models.TicketKindBug:
	default:
		return nil, fmt.Errorf("%w: unknown ticket kind %q", ErrInvalidInput, req.Kind)
	}

	ticket := &models.SupportTicket{
		UserID:    actor.UserID,
		Email:     actor.Email,
		Kind:      kind,
		Subject:   strings.TrimSpace(req.Subject),
		Message:   strings.TrimSpace(req.Message),
		Status:    models.TicketOpen,
		CreatedAt: s.now().UTC(),
	}

	var stored *StoredFile
	if att != nil {
		if s.storage == nil {
			return nil, fmt.Errorf("%w: attachments are not accepted", ErrInvalidInput)
		}
		f, err := s.storage.Upload(ctx, "support", att.Filename, att.Reader)
		if err != nil {
			return nil, fmt.Errorf("upload attachment: %w", err)
		}
		stored = &f
		ticket.AttachmentURL = f.URL
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		if stored != nil {
			if derr := s.storage.Delete(ctx, stored.PublicID); derr != nil {
				s.logger.Warn("orphaned attachment", zap.String("publicId", stored.PublicID), zap.Error(derr))
			}
		}
		return nil, err
	}

	s.logger.Info("support ticket filed", zap.String("ticketId", ticket.ID.Hex()), zap.String("kind", ticket.Kind))
	s.notifier.SupportTicketFiled(ticket)
	return ticket, nil
}

func (s *SupportService) List(ctx context.Context, status string) ([]models.SupportTicket, error) {
	switch status {
	case "", models.TicketOpen, models.TicketResolved:
	default:
		return nil, fmt.Errorf("%w: unknown ticket status %q", ErrInvalidInput, status)
	}
	return s.tickets.List(ctx, status)
}

func (s *SupportService) Resolve(ctx context.Context, id primitive.ObjectID) error {
	return s.tickets.Resolve(ctx, id, s.now())
}
