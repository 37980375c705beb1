package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/clinic-api/internal/services"
)

const maxAttachmentSize = 10 << 20

// CreateSupportTicket accepts JSON or a multipart form with an optional "attachment" file.
func (h *Handler) CreateSupportTicket(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req services.TicketRequest
	if err := c.ShouldBind(&req); err != nil {
		h.badRequest(c, "Invalid request body", err)
		return
	}

	var att *services.Attachment
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("attachment")
		switch {
		case err == http.ErrMissingFile:
		case err != nil:
			h.badRequest(c, "Could not read attachment", err)
			return
		case header.Size > maxAttachmentSize:
			h.badRequest(c, "Attachment is too large (max 10MB)", nil)
			return
		default:
			file, err := header.Open()
			if err != nil {
				h.badRequest(c, "Could not read attachment", err)
				return
			}
			defer file.Close()
			att = &services.Attachment{Filename: header.Filename, Reader: file}
		}
	}

	ticket, err := h.Support.File(c.Request.Context(), actor, req, att)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}
