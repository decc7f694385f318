// internal/infra/httpapi/server.go
package httpapi

import (
	"context"
	"errors"
	"time"

	"reminder_bot/internal/infra/scheduler"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type TimerInspector interface {
	Status() scheduler.TimerStatus
}

type Sweeper interface {
	LastReport() *scheduler.SweepReport
	Running() bool
	RunOnce(ctx context.Context) (scheduler.SweepReport, error)
}

// Server exposes health and scheduler state for operators.
type Server struct {
	app    *fiber.App
	addr   string
	db     Pinger
	timer  TimerInspector
	sweep  Sweeper
	logger *logrus.Entry
}

func NewServer(addr string, db Pinger, timer TimerInspector, sweep Sweeper, logger *logrus.Entry) *Server {
	s := &Server{
		app:    fiber.New(fiber.Config{DisableStartupMessage: true}),
		addr:   addr,
		db:     db,
		timer:  timer,
		sweep:  sweep,
		logger: logger.WithField("component", "http_api"),
	}

	s.app.Get("/healthz", s.Health)
	s.app.Get("/scheduler", s.SchedulerState)
	s.app.Post("/sweep", s.RunSweep)
	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.addr).Info("Starting status server")
	return s.app.Listen(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Stopping status server...")
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.logger.WithError(err).Warn("Health check failed: database unreachable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  "database unreachable",
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "healthy",
	})
}

func (s *Server) SchedulerState(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"timer": s.timer.Status(),
		"sweep": fiber.Map{
			"running":     s.sweep.Running(),
			"last_report": s.sweep.LastReport(),
		},
	})
}

// RunSweep triggers an immediate birthday sweep and returns its report.
func (s *Server) RunSweep(c *fiber.Ctx) error {
	report, err := s.sweep.RunOnce(c.UserContext())
	if err != nil {
		if errors.Is(err, scheduler.ErrSweepInProgress) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		s.logger.WithError(err).Error("Manual sweep failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "sweep failed"})
	}
	s.logger.WithField("run_id", report.RunID).Info("Manual sweep completed")
	return c.Status(fiber.StatusOK).JSON(report)
}
