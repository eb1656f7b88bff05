package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/roamly/tour-booking/internal/model"
)

// SecretFilter hides secret tours from every list query. It is a fixed base
// filter on the collection rather than a hook buried in the model layer.
var SecretFilter = bson.M{"secretTour": bson.M{"$ne": true}}

// TourRepo persists tours and runs the tour aggregation pipelines.
type TourRepo struct{ Coll *mongo.Collection }

func NewTourRepo(db *mongo.Database) *TourRepo {
	return &TourRepo{Coll: db.Collection("tours")}
}

// DifficultyStats is one $group bucket of the tour-stats pipeline.
type DifficultyStats struct {
	Difficulty string  `bson:"_id" json:"difficulty"`
	NumTours   int     `bson:"numTours" json:"numTours"`
	NumRatings int     `bson:"numRatings" json:"numRatings"`
	AvgRating  float64 `bson:"avgRating" json:"avgRating"`
	AvgPrice   float64 `bson:"avgPrice" json:"avgPrice"`
	MinPrice   float64 `bson:"minPrice" json:"minPrice"`
	MaxPrice   float64 `bson:"maxPrice" json:"maxPrice"`
}

// MonthlyPlanEntry is one month's bucket of the monthly-plan pipeline.
type MonthlyPlanEntry struct {
	Month         int      `bson:"month" json:"month"`
	NumTourStarts int      `bson:"numTourStarts" json:"numTourStarts"`
	Tours         []string `bson:"tours" json:"tours"`
}

// TourDistance annotates a tour name with its distance from a query point.
type TourDistance struct {
	ID       interface{} `bson:"_id" json:"id"`
	Name     string      `bson:"name" json:"name"`
	Distance float64     `bson:"distance" json:"distance"`
}

// Stats groups well-rated tours by difficulty with count, rating and price
// aggregates, cheapest group first.
func (r *TourRepo) Stats(ctx context.Context) ([]DifficultyStats, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"ratingsAverage": bson.M{"$gte": 4.5}}},
		{"$group": bson.M{
			"_id":        "$difficulty",
			"numTours":   bson.M{"$sum": 1},
			"numRatings": bson.M{"$sum": "$ratingsQuantity"},
			"avgRating":  bson.M{"$avg": "$ratingsAverage"},
			"avgPrice":   bson.M{"$avg": "$price"},
			"minPrice":   bson.M{"$min": "$price"},
			"maxPrice":   bson.M{"$max": "$price"},
		}},
		{"$sort": bson.M{"avgPrice": 1}},
	}
	cur, err := r.Coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []DifficultyStats
	return out, cur.All(ctx, &out)
}

// MonthlyPlan unwinds start dates within the given year and groups tour
// starts per month, busiest month first.
func (r *TourRepo) MonthlyPlan(ctx context.Context, year int) ([]MonthlyPlanEntry, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC)
	pipeline := []bson.M{
		{"$unwind": "$startDates"},
		{"$match": bson.M{"startDates": bson.M{"$gte": from, "$lte": to}}},
		{"$group": bson.M{
			"_id":           bson.M{"$month": "$startDates"},
			"numTourStarts": bson.M{"$sum": 1},
			"tours":         bson.M{"$push": "$name"},
		}},
		{"$addFields": bson.M{"month": "$_id"}},
		{"$project": bson.M{"_id": 0}},
		{"$sort": bson.M{"numTourStarts": -1}},
	}
	cur, err := r.Coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []MonthlyPlanEntry
	return out, cur.All(ctx, &out)
}

// Within returns tours whose start location lies inside a sphere of the
// given radius (in radians) around the center point.
func (r *TourRepo) Within(ctx context.Context, lng, lat, radiusRad float64) ([]model.Tour, error) {
	filter := bson.M{
		"startLocation": bson.M{"$geoWithin": bson.M{
			"$centerSphere": []interface{}{[]float64{lng, lat}, radiusRad},
		}},
	}
	for k, v := range SecretFilter {
		filter[k] = v
	}
	cur, err := r.Coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []model.Tour
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Derive()
	}
	return out, nil
}

// Distances annotates every tour with its distance from the given point.
// $geoNear must be the first pipeline stage and relies on the 2dsphere
// index on startLocation.
func (r *TourRepo) Distances(ctx context.Context, lng, lat, multiplier float64) ([]TourDistance, error) {
	pipeline := []bson.M{
		{"$geoNear": bson.M{
			"near":               bson.M{"type": "Point", "coordinates": []float64{lng, lat}},
			"distanceField":      "distance",
			"distanceMultiplier": multiplier,
		}},
		{"$project": bson.M{"distance": 1, "name": 1}},
	}
	cur, err := r.Coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []TourDistance
	return out, cur.All(ctx, &out)
}

// EnsureIndexes declares the tour indexes: unique name, slug, the
// price/rating compound used by common sorts, and the geospatial index
// required by $geoNear and $geoWithin.
func (r *TourRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.Coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "slug", Value: 1}}},
		{Keys: bson.D{{Key: "price", Value: 1}, {Key: "ratingsAverage", Value: -1}}},
		{Keys: bson.D{{Key: "startLocation", Value: "2dsphere"}}},
	})
	if err != nil {
		return fmt.Errorf("tour indexes: %w", err)
	}
	return nil
}
