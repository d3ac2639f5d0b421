package server

import (
	"time"

	"backend-tripline/internal/auth"
	"backend-tripline/internal/chat"
	"backend-tripline/internal/config"
	"backend-tripline/internal/notify"
	"backend-tripline/internal/nudge"
	"backend-tripline/internal/schedule"
	"backend-tripline/internal/trip"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Notify *notify.Hub
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Notify: notify.NewHub(redisClient),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	chatSvc := chat.NewService(s.DB)
	store := nudge.NewStore(s.Redis, time.Duration(s.Cfg.NudgeRetentionHours)*time.Hour)
	correlator := nudge.NewCorrelator(s.DB, store, time.Duration(s.Cfg.CorrelationWindowMin)*time.Minute)
	nudgeSvc := nudge.NewService(store, chatSvc, s.Notify, correlator)

	tripSvc := trip.NewService(s.DB)
	scheduleSvc := schedule.NewService(s.DB, tripSvc, nudgeSvc, schedule.Tunables{
		MaxWindowDays:  s.Cfg.MaxWindowDays,
		WindowQuota:    s.Cfg.WindowQuota,
		MinOverlapDays: s.Cfg.MinOverlapDays,
	})

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB))

	trips := s.App.Group("/trips")
	trip.RegisterRoutes(trips, tripSvc, jwtMiddleware)
	schedule.RegisterRoutes(trips, scheduleSvc, jwtMiddleware)
	nudge.RegisterRoutes(trips, nudgeSvc, schedule.NudgeMetrics(scheduleSvc), jwtMiddleware)

	chat.RegisterRoutes(s.App.Group("/messages"), chatSvc)
	notify.RegisterRoutes(s.App.Group("/notify"), s.Notify)
}
