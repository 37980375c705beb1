package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/repository"
)

const maxPhotoSize = 5 << 20

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.Doctors.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doctors)
}

func (h *Handler) GetDoctor(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	doctor, err := h.Doctors.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doctor)
}

// GetAvailability lists the free slots of a doctor: GET /api/doctors/:id/availability?date=YYYY-MM-DD
func (h *Handler) GetAvailability(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	date := c.Query("date")
	slots, err := h.Booking.Availability(c.Request.Context(), id, date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Metrics.ObserveSlots(len(slots))
	c.JSON(http.StatusOK, gin.H{
		"doctorId": id.Hex(),
		"date":     date,
		"slots":    slots,
	})
}

func (h *Handler) UpdateSchedule(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var schedule models.DoctorSchedule
	if err := c.ShouldBindJSON(&schedule); err != nil {
		h.badRequest(c, "Invalid request body", err)
		return
	}

	doctor, err := h.Doctors.UpdateSchedule(c.Request.Context(), actor, id, schedule)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doctor)
}

func (h *Handler) UpdateDoctorProfile(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var upd repository.DoctorProfileUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		h.badRequest(c, "Invalid request body", err)
		return
	}

	doctor, err := h.Doctors.UpdateProfile(c.Request.Context(), actor, id, upd)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doctor)
}

// UploadDoctorPhoto accepts a multipart "photo" file.
func (h *Handler) UploadDoctorPhoto(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	header, err := c.FormFile("photo")
	if err != nil {
		h.badRequest(c, "A photo file is required", err)
		return
	}
	if header.Size > maxPhotoSize {
		h.badRequest(c, "Photo is too large (max 5MB)", nil)
		return
	}
	file, err := header.Open()
	if err != nil {
		h.badRequest(c, "Could not read photo", err)
		return
	}
	defer file.Close()

	doctor, err := h.Doctors.UploadPhoto(c.Request.Context(), actor, id, header.Filename, file)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doctor)
}
