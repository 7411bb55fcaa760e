package handler

import (
	"time"

	"backend-loket/internal/config"
	"backend-loket/internal/http/middleware"
	"backend-loket/internal/models"
	"backend-loket/internal/queue"
	"backend-loket/internal/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	log "github.com/sirupsen/logrus"
)

// Server - dependency yang dibutuhkan router
type Server struct {
	Service *queue.Service
	Hub     *realtime.Hub // nil: tanpa /ws/queue
	Users   UserFinder
	Tokens  *config.TokenIssuer
	Hours   models.ServiceHours
	Logger  *log.Logger

	// kredensial mesin kiosk untuk /kiosk/entries, kosong = nonaktif
	KioskUser string
	KioskPass string

	Now func() time.Time
}

func NewApp(s Server) *fiber.App {
	if s.Now == nil {
		s.Now = time.Now
	}

	app := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		StrictRouting: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE",
	}))

	queueH := NewQueueHandler(s.Service, s.Hours, s.Logger)
	queueH.now = s.Now
	counterH := NewCounterHandler(s.Service, s.Logger)
	adminH := NewAdminHandler(s.Service, s.Logger)
	dashH := NewDashboardHandler(s.Service, s.Logger)
	authH := NewAuthHandler(s.Users, s.Tokens, s.Logger)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Antrian loket API jalan",
		})
	})

	app.Post("/san/login", authH.Login)
	app.Get("/api/config", GetConfig(s.Hours, s.Service.Location(), s.Now))
	if s.Hub != nil {
		app.Get("/ws/queue", RequireUpgrade, websocket.New(s.Hub.Serve))
	}
	if s.KioskUser != "" {
		app.Post("/kiosk/entries", middleware.BasicAuth(s.KioskUser, s.KioskPass), queueH.CreateEntry)
	}

	// Base API (semua wajib login)
	api := app.Group("/api", middleware.JWTAuth(s.Tokens))
	api.Post("/logout", authH.Logout)

	// Queue
	api.Post("/queue/entries", queueH.CreateEntry)
	api.Get("/queue/entries/:id", queueH.GetEntry)
	api.Get("/queue/entries/:id/position", queueH.GetPosition)
	api.Post("/queue/entries/:id/complete", queueH.Complete)
	api.Post("/queue/entries/:id/cancel", queueH.Cancel)
	api.Get("/queue/waiting", queueH.ListWaiting)

	// Counters
	api.Get("/counters", counterH.List)
	api.Post("/counters/:id/next", middleware.RoleAuth(models.RoleSuperUser, models.RoleCounter), counterH.CallNext)

	// Dashboard
	api.Get("/dashboard", dashH.Summary)
	api.Get("/events", dashH.Events)

	// ===== SUPER ADMIN ROUTES =====
	api.Post("/counters", middleware.RoleAuth(models.RoleSuperUser), counterH.Register)
	api.Put("/counters/:id/active", middleware.RoleAuth(models.RoleSuperUser), counterH.SetActive)
	api.Post("/admin/reset", middleware.RoleAuth(models.RoleSuperUser), adminH.Reset)
	api.Post("/admin/backfill-served-at", middleware.RoleAuth(models.RoleSuperUser), adminH.BackfillServedAt)

	return app
}
