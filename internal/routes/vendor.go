package routes

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/payword/internal/certificate"
	"github.com/congo-pay/payword/internal/client"
	"github.com/congo-pay/payword/internal/commitment"
	"github.com/congo-pay/payword/internal/hashchain"
	"github.com/congo-pay/payword/internal/keys"
	"github.com/congo-pay/payword/internal/middleware"
	"github.com/congo-pay/payword/internal/notification"
	"github.com/congo-pay/payword/internal/payments"
	"github.com/congo-pay/payword/internal/protocol"
	"github.com/congo-pay/payword/internal/vendor"
)

// VendorParty is the vendor's identity and what it trusts about its broker.
type VendorParty struct {
	Identity protocol.Identity
	Broker   client.BrokerInfo
	Redeemer vendor.Redeemer
}

// SetupVendor builds the vendor and wires its routes. Vendor state lives in
// memory; only the broker settles money.
func SetupVendor(app *fiber.App, d Deps, p VendorParty) (*vendor.Service, error) {
	scheme, err := keys.Scheme(p.Broker.Scheme)
	if err != nil {
		return nil, err
	}
	if err := keys.ValidatePublic(scheme, p.Broker.PublicKey); err != nil {
		return nil, fmt.Errorf("broker public key: %w", err)
	}
	hasher, err := hashchain.NewHasher(p.Broker.Hash)
	if err != nil {
		return nil, err
	}

	commits := commitment.NewVerifier(certificate.NewVerifier(scheme, p.Broker.PublicKey))
	tracker := payments.NewTracker(p.Identity, commits, hasher, notification.NewLoggerNotifier(d.Logger), d.Metrics, d.Logger)
	tracker.SetMaxChainLength(d.Cfg.Payword.MaxChainLength)
	svc := vendor.New(p.Identity, tracker, p.Redeemer, d.Cfg.Payword.SessionIdle, d.Logger)

	api := common(app, d)
	RegisterVendorRoutes(api, svc, d.Cfg.Payword.AdminToken)
	return svc, nil
}

// RegisterVendorRoutes wires the vendor endpoints. The redeem trigger is an
// operator route and is only mounted when adminToken is set.
func RegisterVendorRoutes(r fiber.Router, svc *vendor.Service, adminToken string) {
	h := vendor.NewHandler(svc)
	pay := payments.NewHandler(svc.Tracker())

	r.Get("/identity", h.Identity)
	r.Post("/commit", pay.Commit)
	r.Post("/users/:identity/payments", pay.Pay)
	r.Post("/users/:identity/end", pay.End)
	if adminToken != "" {
		r.Post("/redeem", middleware.AdminToken(adminToken), h.Redeem)
	}
}
