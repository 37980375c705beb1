package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DoctorSchedule is the recurring weekly template a doctor accepts bookings on.
// StartHour and EndHour are "HH:mm" wall-clock values; WorkDays uses
// 0 = Sunday .. 6 = Saturday; SlotDuration is in minutes.
type DoctorSchedule struct {
	StartHour    string `bson:"startHour" json:"startHour"`
	EndHour      string `bson:"endHour" json:"endHour"`
	WorkDays     []int  `bson:"workDays" json:"workDays"`
	SlotDuration int    `bson:"slotDuration" json:"slotDuration"`
}

// DefaultSchedule is assigned to newly provisioned doctors.
func DefaultSchedule() DoctorSchedule {
	return DoctorSchedule{
		StartHour:    "09:00",
		EndHour:      "17:00",
		WorkDays:     []int{1, 2, 3, 4, 5},
		SlotDuration: 30,
	}
}

type Doctor struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	FullName  string             `bson:"fullName" json:"fullName"`
	Email     string             `bson:"email" json:"email"`
	Specialty string             `bson:"specialty" json:"specialty"`
	Bio       string             `bson:"bio,omitempty" json:"bio,omitempty"`
	PhotoURL  string             `bson:"photoUrl,omitempty" json:"photoUrl,omitempty"`
	Schedule  DoctorSchedule     `bson:"schedule" json:"schedule"`
	Active    bool               `bson:"active" json:"active"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
