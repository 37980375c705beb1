package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/repository"
	"github.com/harentsoaR/clinic-api/internal/services"
)

// CreateAppointment books a slot for the calling patient.
func (h *Handler) CreateAppointment(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req services.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body", err)
		return
	}

	apt, err := h.Booking.Book(c.Request.Context(), actor, req)
	if err != nil {
		h.Metrics.ObserveBooking(bookingOutcome(err))
		h.respondError(c, err)
		return
	}
	h.Metrics.ObserveBooking("created")
	c.JSON(http.StatusCreated, apt)
}

func bookingOutcome(err error) string {
	switch {
	case errors.Is(err, services.ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, services.ErrForbidden):
		return "forbidden"
	case errors.Is(err, services.ErrNotFound):
		return "not_found"
	}
	return "error"
}

// GetAppointments lists appointments visible to the caller.
// Filters: ?status=&from=YYYY-MM-DD&to=YYYY-MM-DD&doctorId= (doctorId is honored for admins only).
func (h *Handler) GetAppointments(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	filter := repository.AppointmentFilter{
		Status: c.Query("status"),
		From:   c.Query("from"),
		To:     c.Query("to"),
	}
	switch filter.Status {
	case "", models.StatusPending, models.StatusConfirmed, models.StatusCancelled, models.StatusCompleted:
	default:
		h.badRequest(c, "Unknown status filter", nil)
		return
	}
	if doctorID := c.Query("doctorId"); doctorID != "" {
		id, err := primitive.ObjectIDFromHex(doctorID)
		if err != nil {
			h.badRequest(c, "Invalid doctorId", err)
			return
		}
		filter.DoctorID = id
	}

	appointments, err := h.Booking.List(c.Request.Context(), actor, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointments)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	apt, err := h.Booking.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apt)
}

type transitionFunc func(ctx context.Context, actor services.Actor, id primitive.ObjectID) (*models.Appointment, error)

func (h *Handler) changeStatus(c *gin.Context, status string, change transitionFunc) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	apt, err := change(c.Request.Context(), actor, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Metrics.ObserveStatusChange(status)
	c.JSON(http.StatusOK, apt)
}

func (h *Handler) ConfirmAppointment(c *gin.Context) {
	h.changeStatus(c, models.StatusConfirmed, h.Booking.Confirm)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	h.changeStatus(c, models.StatusCancelled, h.Booking.Cancel)
}

func (h *Handler) CompleteAppointment(c *gin.Context) {
	h.changeStatus(c, models.StatusCompleted, h.Booking.Complete)
}
