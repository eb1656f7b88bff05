package repository

import (
	"context"
	"fmt"
	"math"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/roamly/tour-booking/internal/model"
)

// Rating defaults applied when a tour has no reviews left.
const (
	defaultRatingsAverage  = 4.5
	defaultRatingsQuantity = 0
)

// ReviewRepo persists reviews and keeps the owning tour's rating aggregates
// in sync. It holds the tours collection as well because every review
// mutation ends with a recompute written back to the tour document.
type ReviewRepo struct {
	Coll  *mongo.Collection
	Tours *mongo.Collection
}

func NewReviewRepo(db *mongo.Database) *ReviewRepo {
	return &ReviewRepo{Coll: db.Collection("reviews"), Tours: db.Collection("tours")}
}

// SyncTourRatings recomputes ratingsQuantity and ratingsAverage for a tour
// from its current reviews and writes them back. With no reviews left the
// aggregates reset to their defaults. The average is rounded to one
// decimal before storing.
func (r *ReviewRepo) SyncTourRatings(ctx context.Context, tourID primitive.ObjectID) error {
	pipeline := []bson.M{
		{"$match": bson.M{"tour": tourID}},
		{"$group": bson.M{
			"_id":       "$tour",
			"nRating":   bson.M{"$sum": 1},
			"avgRating": bson.M{"$avg": "$rating"},
		}},
	}
	cur, err := r.Coll.Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("rating aggregate: %w", err)
	}
	defer cur.Close(ctx)

	var stats []ratingStats
	if err := cur.All(ctx, &stats); err != nil {
		return err
	}
	quantity, average := reduceRatings(stats)

	_, err = r.Tours.UpdateOne(ctx, bson.M{"_id": tourID}, bson.M{
		"$set": bson.M{"ratingsQuantity": quantity, "ratingsAverage": average},
	})
	return err
}

// ratingStats is the single $group bucket of the rating pipeline.
type ratingStats struct {
	NRating   int     `bson:"nRating"`
	AvgRating float64 `bson:"avgRating"`
}

// reduceRatings turns the pipeline output into the values stored on the
// tour: count and average rounded to one decimal, or the defaults when the
// tour has no reviews left.
func reduceRatings(stats []ratingStats) (quantity int, average float64) {
	if len(stats) == 0 {
		return defaultRatingsQuantity, defaultRatingsAverage
	}
	return stats[0].NRating, math.Round(stats[0].AvgRating*10) / 10
}

// PopulateAuthors attaches each review's author summary (name and photo).
// One batched lookup covers the whole page of reviews.
func (r *ReviewRepo) PopulateAuthors(ctx context.Context, users *UserRepo, reviews []model.Review) error {
	if len(reviews) == 0 {
		return nil
	}
	seen := make(map[primitive.ObjectID]bool, len(reviews))
	ids := make([]primitive.ObjectID, 0, len(reviews))
	for _, rv := range reviews {
		if !seen[rv.UserID] {
			seen[rv.UserID] = true
			ids = append(ids, rv.UserID)
		}
	}
	summaries, err := users.SummariesByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[primitive.ObjectID]model.Summary, len(summaries))
	for _, s := range summaries {
		s.Role = "" // author display needs name and photo only
		byID[s.ID] = s
	}
	for i := range reviews {
		if s, ok := byID[reviews[i].UserID]; ok {
			author := s
			reviews[i].Author = &author
		}
	}
	return nil
}

// ByTour returns all reviews referencing a tour, used when populating a
// single tour response.
func (r *ReviewRepo) ByTour(ctx context.Context, tourID primitive.ObjectID) ([]model.Review, error) {
	cur, err := r.Coll.Find(ctx, bson.M{"tour": tourID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []model.Review
	return out, cur.All(ctx, &out)
}

// EnsureIndexes declares the compound unique index guaranteeing at most one
// review per (tour, user) pair.
func (r *ReviewRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.Coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tour", Value: 1}, {Key: "user", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
