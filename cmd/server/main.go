package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/roamly/tour-booking/internal/apperror"
	"github.com/roamly/tour-booking/internal/config"
	"github.com/roamly/tour-booking/internal/database"
	"github.com/roamly/tour-booking/internal/handler"
	"github.com/roamly/tour-booking/internal/mailer"
	"github.com/roamly/tour-booking/internal/repository"
	"github.com/roamly/tour-booking/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	client, err := database.Open(cfg.DSN())
	if err != nil {
		log.Fatalf("mongo connect: %v", err)
	}
	defer func() {
		if err := database.Close(client); err != nil {
			log.Printf("mongo disconnect: %v", err)
		}
	}()
	db := client.Database(cfg.MongoDB)

	tourRepo := repository.NewTourRepo(db)
	userRepo := repository.NewUserRepo(db)
	reviewRepo := repository.NewReviewRepo(db)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	for _, ensure := range []func(context.Context) error{
		tourRepo.EnsureIndexes, userRepo.EnsureIndexes, reviewRepo.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			log.Fatalf("ensure indexes: %v", err)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(cfg.IsProduction())
	e.Use(echomw.Recover())
	if !cfg.IsProduction() {
		e.Use(echomw.Logger())
	}

	router.Register(e, router.Deps{
		Cfg:     cfg,
		Users:   userRepo,
		Auth:    handler.NewAuthHandler(cfg, userRepo, mailer.New(cfg)),
		Tours:   handler.NewTourHandler(tourRepo, userRepo, reviewRepo),
		User:    handler.NewUserHandler(userRepo),
		Reviews: handler.NewReviewHandler(reviewRepo, userRepo),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
