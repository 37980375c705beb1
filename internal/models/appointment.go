package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Appointment statuses. A cancelled appointment never occupies a slot.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// DateLayout is the storage format of Appointment.Date.
const DateLayout = "2006-01-02"

// TimeLayout is the storage format of Appointment.Time and schedule hours.
const TimeLayout = "15:04"

type Appointment struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PatientID      primitive.ObjectID `bson:"patientId" json:"patientId"`
	PatientName    string             `bson:"patientName" json:"patientName"`
	PatientEmail   string             `bson:"patientEmail" json:"patientEmail"`
	DoctorID       primitive.ObjectID `bson:"doctorId" json:"doctorId"`
	DoctorName     string             `bson:"doctorName" json:"doctorName"`
	Date           string             `bson:"date" json:"date"`
	Time           string             `bson:"time" json:"time"`
	Reason         string             `bson:"reason,omitempty" json:"reason,omitempty"`
	Notes          string             `bson:"notes,omitempty" json:"notes,omitempty"`
	Status         string             `bson:"status" json:"status"`
	ReminderSentAt *time.Time         `bson:"reminderSentAt,omitempty" json:"reminderSentAt,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Occupies reports whether the appointment blocks its slot.
func (a Appointment) Occupies() bool {
	return a.Status != StatusCancelled
}

// transitions lists the statuses reachable from each status.
var transitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether an appointment may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
