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

// DoctorProfileUpdate lists the profile fields a doctor or admin may change.
// Nil fields are left untouched.
type DoctorProfileUpdate struct {
	FullName  *string `json:"fullName,omitempty"`
	Specialty *string `json:"specialty,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	PhotoURL  *string `json:"photoUrl,omitempty"`
	Active    *bool   `json:"active,omitempty"`
}

type DoctorRepository interface {
	Create(ctx context.Context, d *models.Doctor) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Doctor, error)
	GetByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Doctor, error)
	List(ctx context.Context, activeOnly bool) ([]models.Doctor, error)
	UpdateSchedule(ctx context.Context, id primitive.ObjectID, schedule models.DoctorSchedule) error
	UpdateProfile(ctx context.Context, id primitive.ObjectID, upd DoctorProfileUpdate) error
}

type mongoDoctorRepo struct {
	coll *mongo.Collection
}

func NewDoctorRepository(db *mongo.Database) DoctorRepository {
	return &mongoDoctorRepo{coll: db.Collection(doctorsCollection)}
}

func (r *mongoDoctorRepo) Create(ctx context.Context, d *models.Doctor) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	_, err := r.coll.InsertOne(ctx, d)
	return translate(err)
}

func (r *mongoDoctorRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Doctor, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoDoctorRepo) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Doctor, error) {
	return r.findOne(ctx, bson.M{"userId": userID})
}

func (r *mongoDoctorRepo) findOne(ctx context.Context, filter bson.M) (*models.Doctor, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var d models.Doctor
	if err := r.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (r *mongoDoctorRepo) List(ctx context.Context, activeOnly bool) ([]models.Doctor, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "fullName", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	doctors := make([]models.Doctor, 0)
	if err := cursor.All(ctx, &doctors); err != nil {
		return nil, err
	}
	return doctors, nil
}

func (r *mongoDoctorRepo) UpdateSchedule(ctx context.Context, id primitive.ObjectID, schedule models.DoctorSchedule) error {
	return r.set(ctx, id, bson.M{"schedule": schedule})
}

func (r *mongoDoctorRepo) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd DoctorProfileUpdate) error {
	set := bson.M{}
	if upd.FullName != nil {
		set["fullName"] = *upd.FullName
	}
	if upd.Specialty != nil {
		set["specialty"] = *upd.Specialty
	}
	if upd.Bio != nil {
		set["bio"] = *upd.Bio
	}
	if upd.PhotoURL != nil {
		set["photoUrl"] = *upd.PhotoURL
	}
	if upd.Active != nil {
		set["active"] = *upd.Active
	}
	if len(set) == 0 {
		return nil
	}
	return r.set(ctx, id, set)
}

func (r *mongoDoctorRepo) set(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	fields["updatedAt"] = time.Now().UTC()
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("update doctor: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoDoctorRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*opTimeout)
	defer cancel()

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_user"),
		},
		{
			Keys:    bson.D{{Key: "active", Value: 1}, {Key: "fullName", Value: 1}},
			Options: options.Index().SetName("active_name_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create doctor indexes: %w", err)
	}
	return nil
}
