package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	TicketKindSupport = "support"
	TicketKindBug     = "bug"

	TicketOpen     = "open"
	TicketResolved = "resolved"
)

// SupportTicket is a help request or bug report filed from the app.
type SupportTicket struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID `bson:"userId,omitempty" json:"userId,omitempty"`
	Email         string             `bson:"email" json:"email"`
	Kind          string             `bson:"kind" json:"kind"`
	Subject       string             `bson:"subject" json:"subject"`
	Message       string             `bson:"message" json:"message"`
	AttachmentURL string             `bson:"attachmentUrl,omitempty" json:"attachmentUrl,omitempty"`
	Status        string             `bson:"status" json:"status"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	ResolvedAt    *time.Time         `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
}
