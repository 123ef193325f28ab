package main

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/valetpark/valetpark/internal/auth"
	"github.com/valetpark/valetpark/internal/capacity"
	"github.com/valetpark/valetpark/internal/config"
	"github.com/valetpark/valetpark/internal/engine"
	"github.com/valetpark/valetpark/internal/handler"
	"github.com/valetpark/valetpark/internal/logger"
	"github.com/valetpark/valetpark/internal/model"
	"github.com/valetpark/valetpark/internal/queue"
	"github.com/valetpark/valetpark/internal/repository"
	"github.com/valetpark/valetpark/internal/router"
	"github.com/valetpark/valetpark/internal/store"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env, cfg.LogLevel)

	kv, err := store.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.WithError(err).Fatal("connect store")
	}
	defer func() { _ = kv.Close() }()

	reservations := repository.NewReservationRepo(kv)
	users := repository.NewUserRepo(kv)
	sessions := auth.NewManager(users, cfg.SessionSecret, cfg.BcryptCost, log)
	perms := auth.DefaultPermissions()
	limits := capacity.Limits{Regular: cfg.RegularCapacity, Overflow: cfg.OverflowCapacity}

	var notifier engine.Notifier
	if cfg.AMQPURL != "" {
		notifier = queue.NewPublisher(cfg.AMQPURL, log)
		go queue.StartConfirmationConsumer(cfg.AMQPURL, log)
	} else {
		log.Warn("AMQP_URL not set, confirmation dispatch disabled")
	}

	eng := engine.New(reservations, perms, limits, notifier, log)

	if err := seedAdmin(users, cfg, log); err != nil {
		log.WithError(err).Fatal("seed admin user")
	}

	e := echo.New()
	e.HideBanner = true
	router.Register(e, sessions, perms,
		handler.NewAuthHandler(sessions),
		handler.NewBookingHandler(eng),
		handler.NewAdminReservationHandler(eng),
		handler.NewUserHandler(users, sessions))

	addr := ":" + cfg.Port
	log.WithField("addr", addr).WithField("env", cfg.Env).Info("listening")
	if err := e.Start(addr); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

// seedAdmin creates the initial admin account when the user set is empty,
// so a fresh deployment can be logged into at all.
func seedAdmin(users *repository.UserRepo, cfg config.Config, log *logrus.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := users.Count(ctx)
	if err != nil || n > 0 {
		return err
	}
	if cfg.AdminPassword == "" {
		return nil
	}
	hash, err := auth.HashPassword(cfg.AdminPassword, cfg.BcryptCost)
	if err != nil {
		return err
	}
	u := model.User{
		Username:     cfg.AdminUsername,
		PasswordHash: hash,
		DisplayName:  "Administrator",
		Role:         model.RoleAdmin,
		IsActive:     true,
	}
	if err := users.Create(ctx, &u); err != nil {
		return err
	}
	log.Infof("seeded admin user %q", u.Username)
	return nil
}
