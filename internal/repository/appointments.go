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

// AppointmentFilter narrows List. Zero values are ignored; From and To are
// inclusive "YYYY-MM-DD" bounds.
type AppointmentFilter struct {
	PatientID primitive.ObjectID
	DoctorID  primitive.ObjectID
	Status    string
	From      string
	To        string
}

func (f AppointmentFilter) query() bson.M {
	q := bson.M{}
	if !f.PatientID.IsZero() {
		q["patientId"] = f.PatientID
	}
	if !f.DoctorID.IsZero() {
		q["doctorId"] = f.DoctorID
	}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.From != "" || f.To != "" {
		date := bson.M{}
		if f.From != "" {
			date["$gte"] = f.From
		}
		if f.To != "" {
			date["$lte"] = f.To
		}
		q["date"] = date
	}
	return q
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *models.Appointment) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error)
	// ListByDoctorAndDate returns every appointment of the doctor on date, cancelled included.
	ListByDoctorAndDate(ctx context.Context, doctorID primitive.ObjectID, date string) ([]models.Appointment, error)
	List(ctx context.Context, filter AppointmentFilter) ([]models.Appointment, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) error
	// ListDueReminders returns pending and confirmed appointments on date that
	// have not been reminded yet.
	ListDueReminders(ctx context.Context, date string) ([]models.Appointment, error)
	MarkReminderSent(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

type mongoAppointmentRepo struct {
	coll *mongo.Collection
}

func NewAppointmentRepository(db *mongo.Database) AppointmentRepository {
	return &mongoAppointmentRepo{coll: db.Collection(appointmentsCollection)}
}

func (r *mongoAppointmentRepo) Create(ctx context.Context, a *models.Appointment) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	_, err := r.coll.InsertOne(ctx, a)
	return translate(err)
}

func (r *mongoAppointmentRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var a models.Appointment
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (r *mongoAppointmentRepo) ListByDoctorAndDate(ctx context.Context, doctorID primitive.ObjectID, date string) ([]models.Appointment, error) {
	return r.find(ctx, bson.M{"doctorId": doctorID, "date": date})
}

func (r *mongoAppointmentRepo) List(ctx context.Context, filter AppointmentFilter) ([]models.Appointment, error) {
	return r.find(ctx, filter.query())
}

func (r *mongoAppointmentRepo) ListDueReminders(ctx context.Context, date string) ([]models.Appointment, error) {
	return r.find(ctx, bson.M{
		"date":           date,
		"status":         bson.M{"$in": []string{models.StatusPending, models.StatusConfirmed}},
		"reminderSentAt": bson.M{"$exists": false},
	})
}

func (r *mongoAppointmentRepo) find(ctx context.Context, filter bson.M) ([]models.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find appointments: %w", err)
	}
	defer cursor.Close(ctx)

	appointments := make([]models.Appointment, 0)
	if err := cursor.All(ctx, &appointments); err != nil {
		return nil, fmt.Errorf("decode appointments: %w", err)
	}
	return appointments, nil
}

func (r *mongoAppointmentRepo) UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	return r.set(ctx, id, bson.M{"status": status, "updatedAt": time.Now().UTC()})
}

func (r *mongoAppointmentRepo) MarkReminderSent(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	return r.set(ctx, id, bson.M{"reminderSentAt": at.UTC()})
}

func (r *mongoAppointmentRepo) set(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureIndexes deliberately leaves (doctorId, date, time) non-unique: cancelled
// appointments keep their slot value while the slot becomes bookable again.
func (r *mongoAppointmentRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*opTimeout)
	defer cancel()

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "doctorId", Value: 1}, {Key: "date", Value: 1}, {Key: "time", Value: 1}},
			Options: options.Index().SetName("doctor_date_idx"),
		},
		{
			Keys:    bson.D{{Key: "patientId", Value: 1}, {Key: "date", Value: -1}},
			Options: options.Index().SetName("patient_date_idx"),
		},
		{
			Keys:    bson.D{{Key: "date", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("date_status_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create appointment indexes: %w", err)
	}
	return nil
}
