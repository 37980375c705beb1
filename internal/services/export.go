package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/harentsoaR/clinic-api/internal/availability"
	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/repository"
)

// maxExportDays bounds a single export request.
const maxExportDays = 366

var exportHeader = []string{
	"id", "date", "time", "status", "doctor", "patient", "patient_email", "reason", "created_at",
}

// ExportService writes appointment reports for admins.
type ExportService struct {
	appointments repository.AppointmentRepository
	location     *time.Location
}

func NewExportService(appointments repository.AppointmentRepository, location *time.Location) *ExportService {
	if location == nil {
		location = time.UTC
	}
	return &ExportService{appointments: appointments, location: location}
}

// WriteCSV writes the appointments dated within [from, to] to w.
func (s *ExportService) WriteCSV(ctx context.Context, w io.Writer, from, to string) (int, error) {
	start, err := availability.ParseDate(from, s.location)
	if err != nil {
		return 0, err
	}
	end, err := availability.ParseDate(to, s.location)
	if err != nil {
		return 0, err
	}
	if end.Before(start) {
		return 0, fmt.Errorf("%w: 'to' is before 'from'", ErrInvalidInput)
	}
	if end.Sub(start) > maxExportDays*24*time.Hour {
		return 0, fmt.Errorf("%w: range exceeds %d days", ErrInvalidInput, maxExportDays)
	}

	list, err := s.appointments.List(ctx, repository.AppointmentFilter{
		From: start.Format(models.DateLayout),
		To:   end.Format(models.DateLayout),
	})
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return 0, err
	}
	for _, a := range list {
		if err := cw.Write([]string{
			a.ID.Hex(),
			a.Date,
			a.Time,
			a.Status,
			safeCell(a.DoctorName),
			safeCell(a.PatientName),
			safeCell(a.PatientEmail),
			safeCell(a.Reason),
			a.CreatedAt.In(s.location).Format(time.RFC3339),
		}); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	return len(list), cw.Error()
}

// safeCell keeps spreadsheet apps from evaluating user-entered text as a formula.
func safeCell(value string) string {
	if value != "" && strings.ContainsRune("=+-@\t\r", rune(value[0])) {
		return "'" + value
	}
	return value
}
