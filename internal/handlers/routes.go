package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harentsoaR/clinic-api/internal/middleware"
	"github.com/harentsoaR/clinic-api/internal/models"
)

// RouteConfig carries the middleware the routes depend on.
type RouteConfig struct {
	Tokens     middleware.TokenValidator
	CronSecret string
}

// RegisterRoutes mounts the whole API on r.
func RegisterRoutes(r *gin.Engine, h *Handler, cfg RouteConfig) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/register", h.RegisterUser)
		authRoutes.POST("/login", h.Login)
	}

	cronRoutes := r.Group("/cron", middleware.CronSecret(cfg.CronSecret))
	{
		cronRoutes.POST("/reminders", h.RunReminders)
	}

	api := r.Group("/api")
	{
		// Public directory and availability.
		api.GET("/doctors", h.ListDoctors)
		api.GET("/doctors/:id", h.GetDoctor)
		api.GET("/doctors/:id/availability", h.GetAvailability)
	}

	apiRoutes := api.Group("", middleware.AuthMiddleware(cfg.Tokens))
	{
		apiRoutes.GET("/me", h.GetCurrentUser)
		apiRoutes.PUT("/me", h.UpdateCurrentUser)

		apiRoutes.POST("/appointments", h.CreateAppointment)
		apiRoutes.GET("/appointments", h.GetAppointments)
		apiRoutes.GET("/appointments/:id", h.GetAppointment)
		apiRoutes.PATCH("/appointments/:id/confirm", h.ConfirmAppointment)
		apiRoutes.PATCH("/appointments/:id/cancel", h.CancelAppointment)
		apiRoutes.PATCH("/appointments/:id/complete", h.CompleteAppointment)

		staff := apiRoutes.Group("", middleware.RequireRole(models.RoleDoctor, models.RoleAdmin))
		staff.PUT("/doctors/:id/schedule", h.UpdateSchedule)
		staff.PUT("/doctors/:id/profile", h.UpdateDoctorProfile)
		staff.POST("/doctors/:id/photo", h.UploadDoctorPhoto)

		apiRoutes.POST("/support", h.CreateSupportTicket)
	}

	admin := apiRoutes.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	{
		admin.POST("/users", h.ProvisionUser)
		admin.GET("/users", h.ListUsers)
		admin.GET("/support", h.ListSupportTickets)
		admin.PATCH("/support/:id/resolve", h.ResolveSupportTicket)
		admin.GET("/appointments/export.csv", h.ExportAppointments)
	}
}
