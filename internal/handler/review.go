package handler

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/roamly/tour-booking/internal/apperror"
	"github.com/roamly/tour-booking/internal/middleware"
	"github.com/roamly/tour-booking/internal/model"
	"github.com/roamly/tour-booking/internal/repository"
)

// ReviewHandler exposes review CRUD. Reviews ride the generic factory with
// nested-route support: under /tours/:tourId/reviews the tour reference is
// injected from the path and the author from the authenticated user. Every
// write or delete re-syncs the owning tour's rating aggregates.
type ReviewHandler struct {
	Reviews *repository.ReviewRepo
	Users   *repository.UserRepo

	desc *Descriptor[model.Review]
}

func NewReviewHandler(reviews *repository.ReviewRepo, users *repository.UserRepo) *ReviewHandler {
	if reviews == nil || users == nil {
		panic("nil repository passed to NewReviewHandler")
	}
	h := &ReviewHandler{Reviews: reviews, Users: users}
	h.desc = &Descriptor[model.Review]{
		Coll:         reviews.Coll,
		ParentParam:  "tourId",
		ParentField:  "tour",
		UpdateFields: AllowFields[model.Review]("review", "rating"),
		PreCreate: []TransformStage[model.Review]{
			{Name: "defaults", Apply: reviewDefaults},
			{Name: "references", Apply: reviewReferences},
		},
		PostWrite:    h.syncRatings,
		PostDelete:   h.syncRatings,
		Populate:     h.populateOne,
		PopulateMany: h.populateMany,
	}
	return h
}

func (h *ReviewHandler) GetAllReviews(c echo.Context) error { return GetAll(h.desc)(c) }
func (h *ReviewHandler) GetReview(c echo.Context) error     { return GetOne(h.desc)(c) }
func (h *ReviewHandler) CreateReview(c echo.Context) error  { return CreateOne(h.desc)(c) }
func (h *ReviewHandler) UpdateReview(c echo.Context) error  { return UpdateOne(h.desc)(c) }
func (h *ReviewHandler) DeleteReview(c echo.Context) error  { return DeleteOne(h.desc)(c) }

func (h *ReviewHandler) syncRatings(ctx context.Context, r *model.Review) error {
	return h.Reviews.SyncTourRatings(ctx, r.TourID)
}

func (h *ReviewHandler) populateOne(ctx context.Context, r *model.Review) error {
	reviews := []model.Review{*r}
	if err := h.Reviews.PopulateAuthors(ctx, h.Users, reviews); err != nil {
		return err
	}
	r.Author = reviews[0].Author
	return nil
}

func (h *ReviewHandler) populateMany(ctx context.Context, reviews []model.Review) error {
	return h.Reviews.PopulateAuthors(ctx, h.Users, reviews)
}

func reviewDefaults(_ echo.Context, r *model.Review) error {
	r.CreatedAt = time.Now().UTC()
	return nil
}

// reviewReferences fills the tour reference from the nested route and the
// author from the authenticated user when the body leaves them out.
func reviewReferences(c echo.Context, r *model.Review) error {
	if r.TourID.IsZero() {
		raw := c.Param("tourId")
		if raw == "" {
			return apperror.BadRequest("review must belong to a tour")
		}
		tourID, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return apperror.BadRequest("invalid id: " + raw)
		}
		r.TourID = tourID
	}
	if r.UserID.IsZero() {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			return apperror.Unauthorized("you are not logged in, please log in to get access")
		}
		r.UserID = user.ID
	}
	return nil
}
