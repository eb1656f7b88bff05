package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Difficulty levels a tour may declare.
const (
	DifficultyEasy      = "easy"
	DifficultyMedium    = "medium"
	DifficultyDifficult = "difficult"
)

// Location is an embedded GeoJSON point with presentation metadata. Day is
// only meaningful for waypoint locations and marks which day of the tour
// visits the point.
type Location struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"` // [lng, lat]
	Address     string    `bson:"address,omitempty" json:"address,omitempty"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Day         int       `bson:"day,omitempty" json:"day,omitempty"`
}

// Tour is a document in the `tours` collection. Rating aggregates are
// recomputed from reviews and are never client-writable; the update
// endpoints whitelist their mutable fields instead. Secret tours are
// excluded from every list query.
type Tour struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id,omitempty"`
	Name            string               `bson:"name" json:"name" validate:"required,min=10,max=40"`
	Slug            string               `bson:"slug,omitempty" json:"slug,omitempty"`
	Duration        float64              `bson:"duration" json:"duration" validate:"required,gt=0"`
	MaxGroupSize    int                  `bson:"maxGroupSize" json:"maxGroupSize" validate:"required,gt=0"`
	Difficulty      string               `bson:"difficulty" json:"difficulty" validate:"required,oneof=easy medium difficult"`
	RatingsAverage  float64              `bson:"ratingsAverage" json:"ratingsAverage"`
	RatingsQuantity int                  `bson:"ratingsQuantity" json:"ratingsQuantity"`
	Price           float64              `bson:"price" json:"price" validate:"required,gt=0"`
	PriceDiscount   float64              `bson:"priceDiscount,omitempty" json:"priceDiscount,omitempty" validate:"omitempty,ltfield=Price"`
	Summary         string               `bson:"summary" json:"summary" validate:"required"`
	Description     string               `bson:"description,omitempty" json:"description,omitempty"`
	ImageCover      string               `bson:"imageCover" json:"imageCover" validate:"required"`
	Images          []string             `bson:"images,omitempty" json:"images,omitempty"`
	CreatedAt       time.Time            `bson:"createdAt" json:"createdAt,omitempty"`
	StartDates      []time.Time          `bson:"startDates,omitempty" json:"startDates,omitempty"`
	SecretTour      bool                 `bson:"secretTour" json:"-"`
	StartLocation   *Location            `bson:"startLocation,omitempty" json:"startLocation,omitempty"`
	Locations       []Location           `bson:"locations,omitempty" json:"locations,omitempty"`
	GuideIDs        []primitive.ObjectID `bson:"guides,omitempty" json:"guides,omitempty"`

	// Populated on reads, never persisted.
	Guides  []Summary `bson:"-" json:"guideProfiles,omitempty"`
	Reviews []Review  `bson:"-" json:"reviews,omitempty"`

	// Derived, never persisted.
	DurationWeeks float64 `bson:"-" json:"durationWeeks,omitempty"`
}

// Derive computes output-only fields after a document is read.
func (t *Tour) Derive() {
	if t.Duration > 0 {
		t.DurationWeeks = t.Duration / 7
	}
}

// AttachGuides sets the populated guide profiles and drops the raw
// references from the response; a populated read replaces the id array
// instead of emitting both forms.
func (t *Tour) AttachGuides(guides []Summary) {
	t.Guides = guides
	t.GuideIDs = nil
}
