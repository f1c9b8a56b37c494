package routes

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/payword/internal/broker"
	"github.com/congo-pay/payword/internal/hashchain"
	"github.com/congo-pay/payword/internal/keys"
	"github.com/congo-pay/payword/internal/ledger"
	"github.com/congo-pay/payword/internal/middleware"
	"github.com/congo-pay/payword/internal/notification"
	"github.com/congo-pay/payword/internal/protocol"
	"github.com/congo-pay/payword/internal/redeem"
	"github.com/congo-pay/payword/internal/registry"
)

// BrokerParty is the broker's own identity and signing key.
type BrokerParty struct {
	Identity protocol.Identity
	Keys     *keys.KeyPair
}

// SetupBroker builds the broker over Postgres and Redis when present, or the
// in-memory stores in development, and wires its routes.
func SetupBroker(app *fiber.App, d Deps, p BrokerParty) (*broker.Service, error) {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	hasher, err := hashchain.NewHasher(d.Cfg.Payword.Hash)
	if err != nil {
		return nil, err
	}

	var backends broker.Backends
	if d.DB != nil {
		backends.Parties = registry.NewPostgresRepository(d.DB)
		backends.Ledger = ledger.NewPostgresLedger(d.DB)
	} else {
		backends.Parties = registry.NewMemoryRepository()
		backends.Ledger = ledger.NewInMemory()
	}
	if d.Cache != nil {
		backends.Redeemed = redeem.NewRedisStore(d.Cache, d.Cfg.Payword.RedeemClaimTTL)
	} else {
		backends.Redeemed = redeem.NewMemoryStore()
	}

	svc := broker.New(backends, broker.Options{
		Identity:       p.Identity,
		Keys:           p.Keys,
		Hasher:         hasher,
		CertValidity:   d.Cfg.Payword.CertValidity,
		OpeningBalance: d.Cfg.Payword.OpeningBalance,
		MaxChainLength: d.Cfg.Payword.MaxChainLength,
		Notifier:       notification.NewLoggerNotifier(d.Logger),
		Metrics:        d.Metrics,
		Logger:         d.Logger,
	})
	if err := svc.Start(context.Background()); err != nil {
		return nil, err
	}

	api := common(app, d)
	RegisterBrokerRoutes(api, svc, middleware.RegisterRateLimit(d.Cache, d.Cfg.Payword.RegisterRateLimit))
	return svc, nil
}

// RegisterBrokerRoutes wires the broker endpoints.
func RegisterBrokerRoutes(r fiber.Router, svc *broker.Service, registerLimit fiber.Handler) {
	h := broker.NewHandler(svc)
	reg := registry.NewHandler(svc.Registry())
	red := redeem.NewHandler(svc.Engine())

	r.Get("/identity", h.Identity)
	r.Post("/users", registerLimit, reg.RegisterUser)
	r.Post("/vendors", registerLimit, reg.RegisterVendor)
	r.Post("/redeem", red.Redeem)
	r.Get("/accounts/:number/balance", h.Balance)
}
