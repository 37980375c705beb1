// Package repository persists clinic records in MongoDB.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotFound is returned when a lookup matches no document.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique index rejects a write.
var ErrDuplicate = errors.New("duplicate record")

const opTimeout = 5 * time.Second

const (
	usersCollection        = "users"
	doctorsCollection      = "doctors"
	appointmentsCollection = "appointments"
	ticketsCollection      = "support_tickets"
)

// Store bundles the repositories of one database.
type Store struct {
	Users        UserRepository
	Doctors      DoctorRepository
	Appointments AppointmentRepository
	Tickets      TicketRepository
}

func NewStore(db *mongo.Database) *Store {
	return &Store{
		Users:        NewUserRepository(db),
		Doctors:      NewDoctorRepository(db),
		Appointments: NewAppointmentRepository(db),
		Tickets:      NewTicketRepository(db),
	}
}

type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

// EnsureIndexes creates the indexes of every repository that declares some.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for _, r := range []any{s.Users, s.Doctors, s.Appointments, s.Tickets} {
		if ix, ok := r.(indexer); ok {
			if err := ix.EnsureIndexes(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// ParseID converts a hex string into an ObjectID, mapping bad input to ErrNotFound.
func ParseID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: invalid id %q", ErrNotFound, hex)
	}
	return id, nil
}
