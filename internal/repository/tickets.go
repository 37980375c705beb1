package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harentsoaR/clinic-api/internal/models"
)

type TicketRepository interface {
	Create(ctx context.Context, t *models.SupportTicket) error
	List(ctx context.Context, status string) ([]models.SupportTicket, error)
	Resolve(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

type mongoTicketRepo struct {
	coll *mongo.Collection
}

func NewTicketRepository(db *mongo.Database) TicketRepository {
	return &mongoTicketRepo{coll: db.Collection(ticketsCollection)}
}

func (r *mongoTicketRepo) Create(ctx context.Context, t *models.SupportTicket) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = models.TicketOpen
	}
	_, err := r.coll.InsertOne(ctx, t)
	return translate(err)
}

func (r *mongoTicketRepo) List(ctx context.Context, status string) ([]models.SupportTicket, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	tickets := make([]models.SupportTicket, 0)
	if err := cursor.All(ctx, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

// Resolve closes an open ticket. Resolving an already resolved ticket reports ErrNotFound.
func (r *mongoTicketRepo) Resolve(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.TicketOpen},
		bson.M{"$set": bson.M{"status": models.TicketResolved, "resolvedAt": at.UTC()}},
	)
	if err != nil {
		return fmt.Errorf("resolve ticket: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoTicketRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*opTimeout)
	defer cancel()

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
		Options: options.Index().SetName("status_created_idx"),
	})
	if err != nil {
		return fmt.Errorf("failed to create ticket indexes: %w", err)
	}
	return nil
}
