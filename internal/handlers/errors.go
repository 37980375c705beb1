package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-api/internal/availability"
	"github.com/harentsoaR/clinic-api/internal/middleware"
	"github.com/harentsoaR/clinic-api/internal/services"
	"github.com/harentsoaR/clinic-api/internal/utils"
)

// respondError maps service errors to HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	var (
		inputErr  *availability.InputError
		configErr *availability.ConfigurationError
	)
	switch {
	case errors.As(err, &inputErr), errors.Is(err, services.ErrInvalidInput):
		utils.JSONError(c, h.Logger, http.StatusBadRequest, "Invalid request", err)
	case errors.As(err, &configErr):
		utils.JSONError(c, h.Logger, http.StatusUnprocessableEntity, "Invalid schedule", err)
	case errors.Is(err, services.ErrInvalidCredentials):
		utils.JSONError(c, h.Logger, http.StatusUnauthorized, "Invalid credentials", nil)
	case errors.Is(err, services.ErrForbidden):
		utils.JSONError(c, h.Logger, http.StatusForbidden, "You are not allowed to perform this action", nil)
	case errors.Is(err, services.ErrNotFound):
		utils.JSONError(c, h.Logger, http.StatusNotFound, "Not found", nil)
	case errors.Is(err, services.ErrDuplicate):
		utils.JSONError(c, h.Logger, http.StatusConflict, "An account with this email already exists", nil)
	case errors.Is(err, services.ErrSlotUnavailable):
		utils.JSONError(c, h.Logger, http.StatusConflict, "The requested slot is no longer available", err)
	case errors.Is(err, services.ErrInvalidTransition):
		utils.JSONError(c, h.Logger, http.StatusConflict, "Invalid status change", err)
	default:
		utils.JSONError(c, h.Logger, http.StatusInternalServerError, "Internal server error", err)
	}
}

func (h *Handler) badRequest(c *gin.Context, message string, err error) {
	utils.JSONError(c, h.Logger, http.StatusBadRequest, message, err)
}

// actor reads the authenticated caller. It answers 401 itself when absent.
func (h *Handler) actor(c *gin.Context) (services.Actor, bool) {
	userID, role, email, ok := middleware.CurrentUser(c)
	if !ok {
		utils.JSONError(c, h.Logger, http.StatusUnauthorized, "User not authenticated", nil)
		return services.Actor{}, false
	}
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		utils.JSONError(c, h.Logger, http.StatusUnauthorized, "Invalid user ID format", nil)
		return services.Actor{}, false
	}
	return services.Actor{UserID: id, Role: role, Email: email}, true
}

// pathID parses the :id route parameter. It answers 404 itself when malformed.
func (h *Handler) pathID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.JSONError(c, h.Logger, http.StatusNotFound, "Not found", nil)
		return primitive.NilObjectID, false
	}
	return id, true
}
