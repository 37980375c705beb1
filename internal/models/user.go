package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles carried in the JWT and stored on the user document.
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

type User struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName    string             `bson:"fullName" json:"fullName"`
	Email       string             `bson:"email" json:"email"`
	Password    string             `bson:"password" json:"-"` // bcrypt hash, never serialized
	Role        string             `bson:"role" json:"role"`
	Phone       string             `bson:"phone" json:"phone"`
	FirebaseUID string             `bson:"firebaseUid,omitempty" json:"firebaseUid,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}
