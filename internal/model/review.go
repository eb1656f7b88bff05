package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Review is a document in the `reviews` collection. It parent-references
// exactly one tour and one user; a unique compound index on (tour, user)
// allows at most one review per pair. The owning tour's rating aggregates
// are recomputed whenever a review is created, updated or deleted.
type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Review    string             `bson:"review" json:"review" validate:"required,min=12"`
	Rating    float64            `bson:"rating" json:"rating" validate:"required,gte=1,lte=5"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	TourID    primitive.ObjectID `bson:"tour" json:"tour" validate:"required"`
	UserID    primitive.ObjectID `bson:"user" json:"user" validate:"required"`

	// Author is populated with the reviewer's public fields on reads.
	Author *Summary `bson:"-" json:"author,omitempty"`
}
