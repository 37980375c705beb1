package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/harentsoaR/clinic-api/internal/availability"
	"github.com/harentsoaR/clinic-api/internal/cache"
	"github.com/harentsoaR/clinic-api/internal/config"
	"github.com/harentsoaR/clinic-api/internal/handlers"
	"github.com/harentsoaR/clinic-api/internal/metrics"
	"github.com/harentsoaR/clinic-api/internal/middleware"
	"github.com/harentsoaR/clinic-api/internal/repository"
	"github.com/harentsoaR/clinic-api/internal/services"
	"github.com/harentsoaR/clinic-api/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("invalid clinic timezone", zap.Error(err))
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// --- Database Connection ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		logger.Fatal("MongoDB is unreachable", zap.Error(err))
	}
	db := client.Database(cfg.MongoDatabase)
	store := repository.NewStore(db)
	if err := store.EnsureIndexes(ctx); err != nil {
		logger.Fatal("failed to create indexes", zap.Error(err))
	}
	logger.Info("connected to MongoDB", zap.String("database", cfg.MongoDatabase))

	// --- Doctor directory cache ---
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis is unreachable, doctor cache degrades to MongoDB", zap.Error(err))
		}
	} else {
		logger.Info("REDIS_ADDR not set, doctor cache disabled")
	}
	directory := cache.NewDoctorDirectory(store.Doctors, rdb, cfg.DoctorCacheTTL, logger)

	// --- External providers ---
	var sender services.EmailSender
	if sg := services.NewSendGridSender(services.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.EmailFrom,
		FromName:  cfg.EmailFromName,
	}, logger); sg != nil {
		sender = sg
	} else {
		logger.Warn("SENDGRID_API_KEY not set, emails are only logged")
		sender = services.NewStubEmailSender(logger)
	}
	notifier := services.NewNotificationService(sender, cfg.ClinicName, cfg.SupportEmail, logger)

	var identity services.IdentityProvider
	if cfg.FirebaseCredentialsFile != "" {
		app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.FirebaseCredentialsFile))
		if err != nil {
			logger.Fatal("failed to initialize Firebase", zap.Error(err))
		}
		authClient, err := app.Auth(ctx)
		if err != nil {
			logger.Fatal("failed to get Firebase Auth client", zap.Error(err))
		}
		identity = services.NewFirebaseIdentityProvider(authClient)
	} else {
		logger.Warn("FIREBASE_CREDENTIALS_FILE not set, provisioned users get no Firebase account")
	}

	var storage services.FileStorage
	if cld, err := services.NewCloudinaryStorage(services.CloudinaryConfig{
		URL:       cfg.CloudinaryURL,
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
	}); err != nil {
		logger.Warn("file uploads disabled", zap.Error(err))
	} else {
		storage = cld
	}

	// --- Initialize Services ---
	m := metrics.New(nil)
	jwt := utils.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	calc := availability.NewCalculator(availability.SystemClock{}, loc)
	reminders := services.NewReminderService(store.Appointments, notifier, availability.SystemClock{}, loc, cfg.ReminderLeadDays, logger).
		WithMetrics(m)

	h := handlers.NewHandler(handlers.Services{
		Accounts:     services.NewAccountService(store.Users, jwt, notifier, logger),
		Doctors:      services.NewDoctorService(directory, store.Doctors, storage, logger),
		Booking:      services.NewBookingService(calc, directory, store.Doctors, store.Users, store.Appointments, notifier, logger),
		Provisioning: services.NewProvisioningService(store.Users, store.Doctors, identity, notifier, logger),
		Support:      services.NewSupportService(store.Tickets, storage, notifier, logger),
		Export:       services.NewExportService(store.Appointments, loc),
		Reminders:    reminders,
	}, m, logger)
	h.Ping = func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) }

	// --- Gin Router ---
	r := gin.New()
	r.Use(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.RequestLogger(logger),
		m.Middleware(),
		cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins(),
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Disposition"},
			AllowCredentials: true,
		}),
		middleware.NewRateLimiter(cfg.MaxRequestsPerMin, logger).Middleware(),
	)
	handlers.RegisterRoutes(r, h, handlers.RouteConfig{Tokens: jwt, CronSecret: cfg.CronSecret})

	// --- Reminder job ---
	scheduler := services.NewReminderScheduler(reminders, loc, logger)
	if cfg.ReminderSchedule != "" {
		if err := scheduler.Start(cfg.ReminderSchedule); err != nil {
			logger.Fatal("invalid REMINDER_SCHEDULE", zap.String("schedule", cfg.ReminderSchedule), zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	scheduler.Stop(shutdownCtx)
	notifier.Wait()
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := client.Disconnect(shutdownCtx); err != nil {
		logger.Error("MongoDB disconnect", zap.Error(err))
	}
}
