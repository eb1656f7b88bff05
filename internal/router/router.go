package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/roamly/tour-booking/internal/config"
	"github.com/roamly/tour-booking/internal/handler"
	"github.com/roamly/tour-booking/internal/middleware"
	"github.com/roamly/tour-booking/internal/model"
	"github.com/roamly/tour-booking/internal/repository"
)

// Deps carries everything route registration needs. The user repository
// appears separately because the auth middleware loads users on every
// protected request.
type Deps struct {
	Cfg     config.Config
	Users   *repository.UserRepo
	Auth    *handler.AuthHandler
	Tours   *handler.TourHandler
	User    *handler.UserHandler
	Reviews *handler.ReviewHandler
}

// Role sets are declared once per route policy instead of being rebuilt in
// ad hoc closures at each call site.
var (
	tourEditors  = middleware.Roles(model.RoleAdmin, model.RoleLeadGuide)
	tourPlanners = middleware.Roles(model.RoleAdmin, model.RoleLeadGuide, model.RoleGuide)
	reviewers    = middleware.Roles(model.RoleUser)
	reviewOwners = middleware.Roles(model.RoleUser, model.RoleAdmin)
	admins       = middleware.Roles(model.RoleAdmin)
)

// Register wires every route of the API under /api/v1. Within one request
// the middleware chain is strictly sequential and short-circuits on the
// first failure: parse -> dispatch -> authenticate -> authorize -> handler.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)

	protect := middleware.Protect(d.Cfg.JWTSecret, d.Users)

	v1 := e.Group("/api/v1")

	// ----- tours -----
	tours := v1.Group("/tours")
	tours.GET("", d.Tours.GetAllTours)
	tours.POST("", d.Tours.CreateTour, protect, middleware.RequireRoles(tourEditors))
	tours.GET("/top-5-cheap", d.Tours.TopTours)
	tours.GET("/tour-stats", d.Tours.TourStats)
	tours.GET("/monthly-plan/:year", d.Tours.MonthlyPlan, protect, middleware.RequireRoles(tourPlanners))
	tours.GET("/tours-within/:distance/center/:latlng/unit/:unit", d.Tours.ToursWithin)
	tours.GET("/distances/:latlng/unit/:unit", d.Tours.Distances)
	tours.GET("/:id", d.Tours.GetTour)
	tours.PATCH("/:id", d.Tours.UpdateTour, protect, middleware.RequireRoles(tourEditors))
	tours.DELETE("/:id", d.Tours.DeleteTour, protect, middleware.RequireRoles(tourEditors))

	// nested reviews under a tour
	tours.GET("/:tourId/reviews", d.Reviews.GetAllReviews, protect)
	tours.POST("/:tourId/reviews", d.Reviews.CreateReview, protect, middleware.RequireRoles(reviewers))

	// ----- users -----
	users := v1.Group("/users")
	users.POST("/signup", d.Auth.Signup)
	users.POST("/login", d.Auth.Login)
	users.GET("/logout", d.Auth.Logout)
	users.POST("/forgot-password", d.Auth.ForgotPassword)
	users.PATCH("/reset-password/:token", d.Auth.ResetPassword)

	me := users.Group("", protect)
	me.PATCH("/update-my-password", d.Auth.UpdatePassword)
	me.GET("/me", d.User.GetMe)
	me.PATCH("/update-me", d.User.UpdateMe)
	me.DELETE("/delete-me", d.User.DeleteMe)

	adminUsers := users.Group("", protect, middleware.RequireRoles(admins))
	adminUsers.GET("", d.User.GetAllUsers)
	adminUsers.POST("", d.User.CreateUser)
	adminUsers.GET("/:id", d.User.GetUser)
	adminUsers.PATCH("/:id", d.User.UpdateUser)
	adminUsers.DELETE("/:id", d.User.DeleteUser)

	// ----- reviews -----
	reviews := v1.Group("/reviews", protect)
	reviews.GET("", d.Reviews.GetAllReviews)
	reviews.POST("", d.Reviews.CreateReview, middleware.RequireRoles(reviewers))
	reviews.GET("/:id", d.Reviews.GetReview)
	reviews.PATCH("/:id", d.Reviews.UpdateReview, middleware.RequireRoles(reviewOwners))
	reviews.DELETE("/:id", d.Reviews.DeleteReview, middleware.RequireRoles(reviewOwners))
}
