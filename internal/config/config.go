package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	APIPort           string        `mapstructure:"API_PORT"`
	Env               string        `mapstructure:"ENV"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	MongoURI          string        `mapstructure:"MONGO_URI"`
	MongoDatabase     string        `mapstructure:"MONGO_DATABASE"`
	JWTSecret         string        `mapstructure:"JWT_SECRET"`
	JWTTTL            time.Duration `mapstructure:"JWT_TTL"`
	CORSOrigins       string        `mapstructure:"CORS_ORIGINS"`
	MaxRequestsPerMin int           `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Clinic.
	ClinicName     string `mapstructure:"CLINIC_NAME"`
	ClinicTimezone string `mapstructure:"CLINIC_TIMEZONE"`

	// Redis doctor cache.
	RedisAddr      string        `mapstructure:"REDIS_ADDR"`
	RedisPassword  string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB        int           `mapstructure:"REDIS_DB"`
	DoctorCacheTTL time.Duration `mapstructure:"DOCTOR_CACHE_TTL"`

	// Email.
	SendGridAPIKey string `mapstructure:"SENDGRID_API_KEY"`
	EmailFrom      string `mapstructure:"EMAIL_FROM"`
	EmailFromName  string `mapstructure:"EMAIL_FROM_NAME"`
	SupportEmail   string `mapstructure:"SUPPORT_EMAIL"`

	// Reminders.
	CronSecret       string `mapstructure:"CRON_SECRET"`
	ReminderSchedule string `mapstructure:"REMINDER_SCHEDULE"`
	ReminderLeadDays int    `mapstructure:"REMINDER_LEAD_DAYS"`

	// Firebase Auth (user provisioning).
	FirebaseCredentialsFile string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`

	// Cloudinary (attachments, doctor photos).
	CloudinaryURL       string `mapstructure:"CLOUDINARY_URL"`
	CloudinaryCloudName string `mapstructure:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `mapstructure:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `mapstructure:"CLOUDINARY_API_SECRET"`
}

var keys = []string{
	"API_PORT", "ENV", "LOG_LEVEL", "MONGO_URI", "MONGO_DATABASE", "JWT_SECRET", "JWT_TTL",
	"CORS_ORIGINS", "MAX_REQUESTS_PER_MIN", "CLINIC_NAME", "CLINIC_TIMEZONE",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "DOCTOR_CACHE_TTL",
	"SENDGRID_API_KEY", "EMAIL_FROM", "EMAIL_FROM_NAME", "SUPPORT_EMAIL",
	"CRON_SECRET", "REMINDER_SCHEDULE", "REMINDER_LEAD_DAYS",
	"FIREBASE_CREDENTIALS_FILE",
	"CLOUDINARY_URL", "CLOUDINARY_CLOUD_NAME", "CLOUDINARY_API_KEY", "CLOUDINARY_API_SECRET",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("API_PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "clinic")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	v.SetDefault("CLINIC_NAME", "Clinic")
	v.SetDefault("CLINIC_TIMEZONE", "UTC")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("DOCTOR_CACHE_TTL", "60s")
	v.SetDefault("EMAIL_FROM_NAME", "Clinic")
	v.SetDefault("REMINDER_SCHEDULE", "0 8 * * *")
	v.SetDefault("REMINDER_LEAD_DAYS", 1)
}

// Load reads .env (when present), an optional config.yaml and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables.")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	setDefaults(v)
	// AutomaticEnv only resolves keys viper already knows about when unmarshalling.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if c.MongoURI == "" {
		return errors.New("config: MONGO_URI is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.DoctorCacheTTL < 0 {
		return errors.New("config: DOCTOR_CACHE_TTL must not be negative")
	}
	if c.ReminderLeadDays < 0 {
		return errors.New("config: REMINDER_LEAD_DAYS must not be negative")
	}
	return nil
}

// Location resolves CLINIC_TIMEZONE.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return nil, fmt.Errorf("config: invalid CLINIC_TIMEZONE %q: %w", c.ClinicTimezone, err)
	}
	return loc, nil
}

// AllowedOrigins splits CORS_ORIGINS.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
