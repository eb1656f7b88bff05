package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/labstack/echo/v4"

	"github.com/roamly/tour-booking/internal/apperror"
	"github.com/roamly/tour-booking/internal/model"
	"github.com/roamly/tour-booking/internal/repository"
)

// Earth radii used to convert a distance to radians for $centerSphere.
const (
	earthRadiusMi = 3963.2
	earthRadiusKm = 6378.1
)

// Meter multipliers used by $geoNear to report distances in the requested unit.
const (
	metersToMi = 0.000621371
	metersToKm = 0.001
)

// TourHandler exposes tour CRUD through the generic factory plus the
// tour-specific aggregation and geospatial endpoints.
type TourHandler struct {
	Tours   *repository.TourRepo
	Users   *repository.UserRepo
	Reviews *repository.ReviewRepo

	desc   *Descriptor[model.Tour]
	getAll echo.HandlerFunc
}

func NewTourHandler(tours *repository.TourRepo, users *repository.UserRepo, reviews *repository.ReviewRepo) *TourHandler {
	if tours == nil || users == nil || reviews == nil {
		panic("nil repository passed to NewTourHandler")
	}
	h := &TourHandler{Tours: tours, Users: users, Reviews: reviews}
	h.desc = &Descriptor[model.Tour]{
		Coll:       tours.Coll,
		BaseFilter: repository.SecretFilter,
		Hidden:     []string{"createdAt"},
		UpdateFields: AllowFields[model.Tour](
			"name", "duration", "maxGroupSize", "difficulty", "price",
			"priceDiscount", "summary", "description", "imageCover", "images",
			"startDates", "startLocation", "locations", "guides",
		),
		PreCreate: []TransformStage[model.Tour]{
			{Name: "defaults", Apply: tourDefaults},
		},
		PreSave: []TransformStage[model.Tour]{
			{Name: "slug", Apply: tourSlug},
			{Name: "geojson", Apply: tourGeoJSON},
		},
		Populate: h.populateTour,
	}
	h.getAll = GetAll(h.desc)
	return h
}

// CRUD handlers from the factory.

func (h *TourHandler) GetAllTours(c echo.Context) error { return h.getAll(c) }
func (h *TourHandler) GetTour(c echo.Context) error     { return GetOne(h.desc)(c) }
func (h *TourHandler) CreateTour(c echo.Context) error  { return CreateOne(h.desc)(c) }
func (h *TourHandler) UpdateTour(c echo.Context) error  { return UpdateOne(h.desc)(c) }
func (h *TourHandler) DeleteTour(c echo.Context) error  { return DeleteOne(h.desc)(c) }

// TopTours pre-seeds the query with the five best-rated cheap tours and
// delegates to the regular list handler.
func (h *TourHandler) TopTours(c echo.Context) error {
	q := c.Request().URL.Query()
	q.Set("limit", "5")
	q.Set("sort", "-ratingsAverage,price")
	q.Set("fields", "name,price,ratingsAverage,summary,difficulty")
	c.Request().URL.RawQuery = q.Encode()
	return h.getAll(c)
}

// TourStats responds with rating and price aggregates grouped by difficulty.
func (h *TourHandler) TourStats(c echo.Context) error {
	stats, err := h.Tours.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, echo.Map{"stats": stats})
}

// MonthlyPlan responds with tour starts per month for the given year.
func (h *TourHandler) MonthlyPlan(c echo.Context) error {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		return apperror.BadRequest("invalid year: " + c.Param("year"))
	}
	plan, err := h.Tours.MonthlyPlan(c.Request().Context(), year)
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, echo.Map{"plan": plan})
}

// ToursWithin lists tours whose start location lies within the given
// distance of a center point: /tours-within/:distance/center/:latlng/unit/:unit.
func (h *TourHandler) ToursWithin(c echo.Context) error {
	lat, lng, err := parseLatLng(c.Param("latlng"))
	if err != nil {
		return err
	}
	distance, err := strconv.ParseFloat(c.Param("distance"), 64)
	if err != nil || distance < 0 {
		return apperror.BadRequest("invalid distance: " + c.Param("distance"))
	}
	radius := distance / earthRadiusKm
	if c.Param("unit") == "mi" {
		radius = distance / earthRadiusMi
	}

	tours, err := h.Tours.Within(c.Request().Context(), lng, lat, radius)
	if err != nil {
		return err
	}
	return respondList(c, tours, len(tours))
}

// Distances annotates every tour with its distance from a center point:
// /distances/:latlng/unit/:unit.
func (h *TourHandler) Distances(c echo.Context) error {
	lat, lng, err := parseLatLng(c.Param("latlng"))
	if err != nil {
		return err
	}
	multiplier := metersToKm
	if c.Param("unit") == "mi" {
		multiplier = metersToMi
	}

	distances, err := h.Tours.Distances(c.Request().Context(), lng, lat, multiplier)
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, echo.Map{"data": distances})
}

// populateTour attaches guide profiles and the tour's reviews on read-one.
func (h *TourHandler) populateTour(ctx context.Context, t *model.Tour) error {
	guides, err := h.Users.SummariesByIDs(ctx, t.GuideIDs)
	if err != nil {
		return err
	}
	t.AttachGuides(guides)

	reviews, err := h.Reviews.ByTour(ctx, t.ID)
	if err != nil {
		return err
	}
	if err := h.Reviews.PopulateAuthors(ctx, h.Users, reviews); err != nil {
		return err
	}
	t.Reviews = reviews
	return nil
}

// tourDefaults fills server-owned fields on insert. Rating aggregates
// always start at their defaults; they are derived from reviews, never
// accepted from the client.
func tourDefaults(_ echo.Context, t *model.Tour) error {
	t.CreatedAt = time.Now().UTC()
	t.RatingsAverage = 4.5
	t.RatingsQuantity = 0
	t.SecretTour = false
	return nil
}

// tourSlug derives the URL slug from the name on every save.
func tourSlug(_ echo.Context, t *model.Tour) error {
	t.Slug = slug.Make(t.Name)
	return nil
}

// tourGeoJSON defaults the GeoJSON type of embedded locations to Point.
func tourGeoJSON(_ echo.Context, t *model.Tour) error {
	if t.StartLocation != nil && t.StartLocation.Type == "" {
		t.StartLocation.Type = "Point"
	}
	for i := range t.Locations {
		if t.Locations[i].Type == "" {
			t.Locations[i].Type = "Point"
		}
	}
	return nil
}

// parseLatLng splits a "lat,lng" path segment.
func parseLatLng(raw string) (lat, lng float64, err error) {
	parts := strings.SplitN(raw, ",", 2)
	if len(parts) != 2 {
		return 0, 0, apperror.BadRequest("please provide latitude and longitude in the format lat,lng")
	}
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, lngErr := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if latErr != nil || lngErr != nil {
		return 0, 0, apperror.BadRequest("please provide latitude and longitude in the format lat,lng")
	}
	return lat, lng, nil
}
