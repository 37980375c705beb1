package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harentsoaR/clinic-api/internal/services"
)

// ProvisionUser creates a doctor, admin or patient account on behalf of an admin.
func (h *Handler) ProvisionUser(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req services.ProvisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body", err)
		return
	}

	res, err := h.Provisioning.Provision(c.Request.Context(), actor, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.Accounts.ListUsers(c.Request.Context(), c.Query("role"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) ListSupportTickets(c *gin.Context) {
	tickets, err := h.Support.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tickets)
}

func (h *Handler) ResolveSupportTicket(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.Support.Resolve(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Ticket resolved"})
}

// ExportAppointments streams a CSV report: GET /api/admin/appointments/export.csv?from=&to=
func (h *Handler) ExportAppointments(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")

	// Buffer so a failure can still be answered with a JSON error.
	var buf bytes.Buffer
	n, err := h.Export.WriteCSV(c.Request.Context(), &buf, from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Logger.Info("appointments exported", zap.Int("rows", n), zap.String("from", from), zap.String("to", to))

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="appointments_%s_%s.csv"`, from, to))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// RunReminders triggers the reminder job on demand: POST /cron/reminders
func (h *Handler) RunReminders(c *gin.Context) {
	res, err := h.Reminders.SendDue(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Health(c *gin.Context) {
	if h.Ping != nil {
		if err := h.Ping(c.Request.Context()); err != nil {
			h.Logger.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
