// Package cache keeps short-lived copies of hot Mongo documents in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/repository"
)

const doctorKeyPrefix = "doctor:"

func doctorKey(id primitive.ObjectID) string {
	return doctorKeyPrefix + id.Hex()
}

// DoctorDirectory is a read-through cache in front of DoctorRepository.
// A nil Redis client disables caching. Redis failures fall back to Mongo.
type DoctorDirectory struct {
	repo   repository.DoctorRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDoctorDirectory(repo repository.DoctorRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *DoctorDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DoctorDirectory{repo: repo, client: client, ttl: ttl, logger: logger}
}

// Get returns the doctor, serving from Redis when a fresh copy is present.
func (d *DoctorDirectory) Get(ctx context.Context, id primitive.ObjectID) (*models.Doctor, error) {
	if doc, ok := d.lookup(ctx, id); ok {
		return doc, nil
	}

	doc, err := d.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.store(ctx, doc)
	return doc, nil
}

// List is not cached; the directory page is cheap and must reflect new doctors at once.
func (d *DoctorDirectory) List(ctx context.Context, activeOnly bool) ([]models.Doctor, error) {
	return d.repo.List(ctx, activeOnly)
}

// Invalidate drops the cached copy of a doctor after a write.
func (d *DoctorDirectory) Invalidate(ctx context.Context, id primitive.ObjectID) {
	if d.client == nil {
		return
	}
	if err := d.client.Del(ctx, doctorKey(id)).Err(); err != nil {
		d.logger.Warn("doctor cache invalidate failed", zap.String("doctorId", id.Hex()), zap.Error(err))
	}
}

func (d *DoctorDirectory) lookup(ctx context.Context, id primitive.ObjectID) (*models.Doctor, bool) {
	if d.client == nil {
		return nil, false
	}
	data, err := d.client.Get(ctx, doctorKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		d.logger.Warn("doctor cache read failed", zap.String("doctorId", id.Hex()), zap.Error(err))
		return nil, false
	}
	var doc models.Doctor
	if err := json.Unmarshal(data, &doc); err != nil {
		d.logger.Warn("doctor cache entry corrupt", zap.String("doctorId", id.Hex()), zap.Error(err))
		return nil, false
	}
	return &doc, true
}

func (d *DoctorDirectory) store(ctx context.Context, doc *models.Doctor) {
	if d.client == nil || d.ttl <= 0 {
		return
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return
	}
	if err := d.client.Set(ctx, doctorKey(doc.ID), data, d.ttl).Err(); err != nil {
		d.logger.Warn("doctor cache write failed", zap.String("doctorId", doc.ID.Hex()), zap.Error(err))
	}
}
