package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/payword/internal/broker"
	"github.com/congo-pay/payword/internal/config"
	"github.com/congo-pay/payword/internal/infra"
	"github.com/congo-pay/payword/internal/metrics"
	"github.com/congo-pay/payword/internal/protocol"
	"github.com/congo-pay/payword/internal/routes"
	"github.com/congo-pay/payword/internal/vendor"
)

// Server wraps the Fiber application of one party.
type Server struct {
	app *fiber.App
	cfg config.Config
}

func newApp(cfg config.Config) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		DisableStartupMessage: !cfg.IsDev(),
		ErrorHandler:          errorHandler,
	})
}

// errorHandler renders middleware and routing errors in the protocol envelope.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(protocol.Response{
		Status:  protocol.StatusRejected,
		Reason:  protocol.ReasonInternal,
		Message: err.Error(),
	})
}

// NewBroker builds the broker's HTTP server. stores may carry nil backends in
// development.
func NewBroker(cfg config.Config, stores *infra.Stores, party routes.BrokerParty, m *metrics.Metrics, logger *slog.Logger) (*Server, *broker.Service, error) {
	app := newApp(cfg)
	svc, err := routes.SetupBroker(app, routes.Deps{Cfg: cfg, DB: stores.DB, Cache: stores.Cache, Logger: logger, Metrics: m}, party)
	if err != nil {
		return nil, nil, err
	}
	return &Server{app: app, cfg: cfg}, svc, nil
}

// NewVendor builds a vendor's HTTP server.
func NewVendor(cfg config.Config, stores *infra.Stores, party routes.VendorParty, m *metrics.Metrics, logger *slog.Logger) (*Server, *vendor.Service, error) {
	app := newApp(cfg)
	svc, err := routes.SetupVendor(app, routes.Deps{Cfg: cfg, Cache: stores.Cache, Logger: logger, Metrics: m}, party)
	if err != nil {
		return nil, nil, err
	}
	return &Server{app: app, cfg: cfg}, svc, nil
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
