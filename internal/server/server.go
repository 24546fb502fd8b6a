// Package server exposes the monitored collection over a small JSON API so
// other tools (status bars, dashboards) can read and drive it.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/kyleking/gh-actionstatus/internal/compose"
	aserr "github.com/kyleking/gh-actionstatus/internal/errors"
	"github.com/kyleking/gh-actionstatus/internal/model"
)

// Options configures the API.
type Options struct {
	AppName string
	Version string
	Compose compose.Options
	Logger  *slog.Logger
	// RefreshTimeout bounds a pass started with ?wait=true.
	RefreshTimeout time.Duration
}

// Server serves the status API for one model.
type Server struct {
	model  *model.Model
	opts   Options
	app    *fiber.App
	logger *slog.Logger

	// passCtx outlives requests so a pass started by POST /refresh keeps running.
	passCtx context.Context
	stop    context.CancelFunc
}

// ItemView is one repo in the status response.
type ItemView struct {
	Index    int      `json:"index"`
	ID       string   `json:"id"`
	Owner    string   `json:"owner"`
	Name     string   `json:"name"`
	Workflow string   `json:"workflow"`
	Branches []string `json:"branches"`
	State    string   `json:"state"`
	URL      string   `json:"url"`
}

// StatusView is the body of GET /api/v1/status.
type StatusView struct {
	Passing    bool       `json:"passing"`
	Failing    int        `json:"failing"`
	Refreshing bool       `json:"refreshing"`
	Summary    string     `json:"summary"`
	Items      []ItemView `json:"items"`
}

// New builds the fiber app and registers every route.
func New(m *model.Model, opts Options) *Server {
	if opts.AppName == "" {
		opts.AppName = "actionstatus"
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = 2 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		model:   m,
		opts:    opts,
		logger:  opts.Logger,
		passCtx: ctx,
		stop:    cancel,
	}

	s.app = fiber.New(fiber.Config{
		AppName:      opts.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: opts.RefreshTimeout + 30*time.Second,
	})

	s.app.Use(recover.New())
	s.app.Use(s.requestLogger())

	s.Register(s.app.Group("/api/v1"))

	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Register sets up the API routes on router.
func (s *Server) Register(router fiber.Router) {
	router.Get("/health", s.Health)
	router.Get("/status", s.Status)
	router.Post("/refresh", s.Refresh)
	router.Post("/refresh/cancel", s.CancelRefresh)
	router.Post("/items/:index/select", s.Select)
	router.Get("/repos/:id/workflow", s.Workflow)
}

// Listen serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Listen(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)

	go func() {
		errCh <- s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	s.logger.Info("serving status API", "addr", addr)

	select {
	case err := <-errCh:
		s.stop()

		if err != nil {
			return fmt.Errorf("failed to serve: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	s.stop()
	s.model.CancelRefresh()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}

	return nil
}

// Health reports liveness.
func (s *Server) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"app":     s.opts.AppName,
		"version": s.opts.Version,
	})
}

// Status returns the aggregate and per-repo state.
func (s *Server) Status(c fiber.Ctx) error {
	items := s.model.Items()
	views := make([]ItemView, len(items))

	for i, r := range items {
		branches := r.Branches
		if branches == nil {
			branches = []string{}
		}

		views[i] = ItemView{
			Index:    i,
			ID:       r.ID.String(),
			Owner:    r.Owner,
			Name:     r.Name,
			Workflow: r.Workflow,
			Branches: branches,
			State:    r.State.String(),
			URL:      r.WorkflowURL(),
		}
	}

	return c.JSON(StatusView{
		Passing:    s.model.Passing(),
		Failing:    s.model.FailingCount(),
		Refreshing: s.model.Refreshing(),
		Summary:    s.model.Summary(),
		Items:      views,
	})
}

// Refresh starts a pass. With ?wait=true it blocks until the pass ends and
// reports surfaced check errors as warnings.
func (s *Server) Refresh(c fiber.Ctx) error {
	pass := s.model.Refresh(s.passCtx)

	if c.Query("wait") != "true" {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"checks": pass.Checks()})
	}

	ctx, cancel := context.WithTimeout(c.Context(), s.opts.RefreshTimeout)
	defer cancel()

	err := pass.Wait(ctx)
	if ctx.Err() != nil {
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": "refresh still running"})
	}

	warnings := []string{}

	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			warnings = append(warnings, e.Error())
		}
	} else if err != nil {
		warnings = append(warnings, err.Error())
	}

	return c.JSON(fiber.Map{
		"checks":   pass.Checks(),
		"applied":  pass.Applied(),
		"passing":  s.model.Passing(),
		"warnings": warnings,
	})
}

// CancelRefresh abandons in-flight checks.
func (s *Server) CancelRefresh(c fiber.Ctx) error {
	s.model.CancelRefresh()
	return c.SendStatus(fiber.StatusNoContent)
}

// Select runs the select action for the item at :index.
func (s *Server) Select(c fiber.Ctx) error {
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "index must be an integer"})
	}

	snap := s.model.Snapshot()
	if index < 0 || index >= snap.ItemCount() {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": fmt.Sprintf("no item at index %d", index)})
	}

	snap.SelectItem(index)

	return c.SendStatus(fiber.StatusNoContent)
}

// Workflow renders the composed workflow for repo :id as YAML.
func (s *Server) Workflow(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid repo id"})
	}

	text, err := s.model.ComposeWorkflow(id, s.opts.Compose)
	if err != nil {
		if errors.Is(err, aserr.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}

		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	c.Set(fiber.HeaderContentType, "application/yaml; charset=utf-8")

	return c.SendString(text)
}

func (s *Server) requestLogger() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		s.logger.Debug("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration", time.Since(start),
		)

		return err
	}
}
