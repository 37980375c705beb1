package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/harentsoaR/clinic-api/internal/models"
)

const sendTimeout = 15 * time.Second

var emailLayout = template.Must(template.New("layout").Parse(`<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif;color:#222">
<h2>{{.Clinic}}</h2>
<p>Hello {{.Name}},</p>
<p>{{.Lead}}</p>
{{if .Date}}<table cellpadding="4">
<tr><td><b>Date</b></td><td>{{.Date}}</td></tr>
<tr><td><b>Time</b></td><td>{{.Time}}</td></tr>
{{if .With}}<tr><td><b>With</b></td><td>{{.With}}</td></tr>{{end}}
{{if .Reason}}<tr><td><b>Reason</b></td><td>{{.Reason}}</td></tr>{{end}}
</table>{{end}}
{{if .Extra}}<p>{{.Extra}}</p>{{end}}
<p style="color:#888;font-size:12px">This is an automated message from {{.Clinic}}.</p>
</body></html>`))

type emailView struct {
	Clinic string
	Name   string
	Lead   string
	Date   string
	Time   string
	With   string
	Reason string
	Extra  string
}

// NotificationService renders and sends the clinic's transactional emails.
// Sends run in the background; delivery failures are logged and never
// surface to the caller.
type NotificationService struct {
	sender       EmailSender
	clinicName   string
	supportEmail string
	logger       *zap.Logger
	wg           sync.WaitGroup
}

func NewNotificationService(sender EmailSender, clinicName, supportEmail string, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = NewStubEmailSender(logger)
	}
	return &NotificationService{
		sender:       sender,
		clinicName:   clinicName,
		supportEmail: supportEmail,
		logger:       logger,
	}
}

// Wait blocks until every queued email has been attempted.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

func (s *NotificationService) AppointmentBooked(apt *models.Appointment, doctorEmail string) {
	s.dispatch(apt.PatientEmail, apt.PatientName,
		"Appointment request received",
		emailView{
			Lead:   "We received your appointment request. You will get another email once the doctor confirms it.",
			Date:   apt.Date,
			Time:   apt.Time,
			With:   apt.DoctorName,
			Reason: apt.Reason,
		})
	if doctorEmail != "" {
		s.dispatch(doctorEmail, apt.DoctorName,
			"New appointment request",
			emailView{
				Lead:   fmt.Sprintf("%s requested an appointment with you.", apt.PatientName),
				Date:   apt.Date,
				Time:   apt.Time,
				Reason: apt.Reason,
			})
	}
}

func (s *NotificationService) AppointmentConfirmed(apt *models.Appointment) {
	s.dispatch(apt.PatientEmail, apt.PatientName,
		"Appointment confirmed",
		emailView{
			Lead: "Your appointment is confirmed.",
			Date: apt.Date,
			Time: apt.Time,
			With: apt.DoctorName,
		})
}

func (s *NotificationService) AppointmentCancelled(apt *models.Appointment) {
	s.dispatch(apt.PatientEmail, apt.PatientName,
		"Appointment cancelled",
		emailView{
			Lead:  "Your appointment has been cancelled.",
			Date:  apt.Date,
			Time:  apt.Time,
			With:  apt.DoctorName,
			Extra: "You can book a new slot at any time.",
		})
}

// AppointmentReminder is synchronous so the reminder job only marks delivered reminders.
func (s *NotificationService) AppointmentReminder(ctx context.Context, apt *models.Appointment) error {
	msg, err := s.render(apt.PatientEmail, apt.PatientName, "Appointment reminder", emailView{
		Lead: "This is a reminder of your upcoming appointment.",
		Date: apt.Date,
		Time: apt.Time,
		With: apt.DoctorName,
	})
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, msg)
}

func (s *NotificationService) Welcome(user *models.User, tempPassword string) {
	extra := ""
	if tempPassword != "" {
		extra = fmt.Sprintf("Your temporary password is %s. Please change it after your first login.", tempPassword)
	}
	s.dispatch(user.Email, user.FullName,
		fmt.Sprintf("Welcome to %s", s.clinicName),
		emailView{
			Lead:  fmt.Sprintf("An account with the %s role has been created for you.", user.Role),
			Extra: extra,
		})
}

func (s *NotificationService) SupportTicketFiled(t *models.SupportTicket) {
	if s.supportEmail == "" {
		s.logger.Warn("support ticket email skipped: SUPPORT_EMAIL not set", zap.String("ticketId", t.ID.Hex()))
		return
	}
	extra := t.Message
	if t.AttachmentURL != "" {
		extra += " Attachment: " + t.AttachmentURL
	}
	s.dispatch(s.supportEmail, "Support",
		fmt.Sprintf("[%s] %s", t.Kind, t.Subject),
		emailView{
			Lead:  fmt.Sprintf("New %s ticket from %s.", t.Kind, t.Email),
			Extra: extra,
		})
}

func (s *NotificationService) render(to, name, subject string, view emailView) (EmailMessage, error) {
	view.Clinic = s.clinicName
	view.Name = name
	var html bytes.Buffer
	if err := emailLayout.Execute(&html, view); err != nil {
		return EmailMessage{}, fmt.Errorf("render %q email: %w", subject, err)
	}
	return EmailMessage{
		To:      to,
		ToName:  name,
		Subject: fmt.Sprintf("%s: %s", s.clinicName, subject),
		Body:    plainBody(view),
		HTML:    html.String(),
	}, nil
}

func plainBody(v emailView) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Hello %s,\n\n%s\n", v.Name, v.Lead)
	if v.Date != "" {
		fmt.Fprintf(&b, "\nDate: %s\nTime: %s\n", v.Date, v.Time)
		if v.With != "" {
			fmt.Fprintf(&b, "With: %s\n", v.With)
		}
		if v.Reason != "" {
			fmt.Fprintf(&b, "Reason: %s\n", v.Reason)
		}
	}
	if v.Extra != "" {
		fmt.Fprintf(&b, "\n%s\n", v.Extra)
	}
	fmt.Fprintf(&b, "\n%s\n", v.Clinic)
	return b.String()
}

// dispatch sends in a goroutine so it doesn't block the API response.
func (s *NotificationService) dispatch(to, name, subject string, view emailView) {
	if to == "" {
		s.logger.Debug("email skipped: no recipient", zap.String("subject", subject))
		return
	}
	msg, err := s.render(to, name, subject, view)
	if err != nil {
		s.logger.Error("email render failed", zap.Error(err))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := s.sender.Send(ctx, msg); err != nil {
			s.logger.Error("email send failed", zap.String("to", msg.To), zap.String("subject", msg.Subject), zap.Error(err))
		}
	}()
}
