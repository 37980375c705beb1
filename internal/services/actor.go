package services

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-api/internal/models"
)

// Actor is the authenticated caller a service operation runs on behalf of.
type Actor struct {
	UserID primitive.ObjectID
	Role   string
	Email  string
}

func (a Actor) IsAdmin() bool   { return a.Role == models.RoleAdmin }
func (a Actor) IsDoctor() bool  { return a.Role == models.RoleDoctor }
func (a Actor) IsPatient() bool { return a.Role == models.RolePatient }
