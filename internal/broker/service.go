// Package broker composes the broker's registry, ledger and redeem engine into
// one service object. Every process builds its own; nothing here is global.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/congo-pay/payword/internal/certificate"
	"github.com/congo-pay/payword/internal/commitment"
	"github.com/congo-pay/payword/internal/hashchain"
	"github.com/congo-pay/payword/internal/keys"
	"github.com/congo-pay/payword/internal/ledger"
	"github.com/congo-pay/payword/internal/metrics"
	"github.com/congo-pay/payword/internal/notification"
	"github.com/congo-pay/payword/internal/protocol"
	"github.com/congo-pay/payword/internal/redeem"
	"github.com/congo-pay/payword/internal/registry"
)

// Info is what the broker publishes so parties can trust its certificates.
type Info struct {
	Identity  protocol.Identity
	PublicKey []byte
	Scheme    string
	Hash      string
}

// Backends are the stores a broker persists to.
type Backends struct {
	Parties  registry.Repository
	Ledger   ledger.Ledger
	Redeemed redeem.Store
}

// Options configures a broker.
type Options struct {
	Identity       protocol.Identity
	Keys           *keys.KeyPair
	Hasher         hashchain.Hasher
	CertValidity   time.Duration
	OpeningBalance int64
	MaxChainLength int
	Notifier       notification.Notifier
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

// Service is the broker.
type Service struct {
	info     Info
	registry *registry.Service
	engine   *redeem.Engine
	ledger   ledger.Ledger
	logger   *slog.Logger
}

// New wires a broker over the given backends.
func New(b Backends, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = notification.NewLoggerNotifier(opts.Logger)
	}
	scheme := opts.Keys.Scheme()
	issuer := certificate.NewIssuer(opts.Keys, opts.Identity, opts.CertValidity)
	commits := commitment.NewVerifier(certificate.NewVerifier(scheme, opts.Keys.PublicBytes()))

	reg := registry.NewService(b.Parties, b.Ledger, issuer, scheme, registry.Options{
		IdentityWidth:  len(opts.Identity),
		OpeningBalance: opts.OpeningBalance,
		Metrics:        opts.Metrics,
		Logger:         opts.Logger,
	})
	engine := redeem.NewEngine(commits, opts.Hasher, reg, b.Ledger, b.Redeemed, opts.Notifier, opts.Metrics, opts.Logger)
	engine.SetMaxChainLength(opts.MaxChainLength)

	return &Service{
		info: Info{
			Identity:  opts.Identity,
			PublicKey: opts.Keys.PublicBytes(),
			Scheme:    scheme.Name(),
			Hash:      opts.Hasher.Name(),
		},
		registry: reg,
		engine:   engine,
		ledger:   b.Ledger,
		logger:   opts.Logger,
	}
}

// Info returns the broker's published identity.
func (s *Service) Info() Info {
	return s.info
}

// Registry returns the party registry.
func (s *Service) Registry() *registry.Service {
	return s.registry
}

// Engine returns the redeem engine.
func (s *Service) Engine() *redeem.Engine {
	return s.engine
}

// Start prepares the ledger accounts the broker itself relies on.
func (s *Service) Start(ctx context.Context) error {
	if err := s.ledger.EnsureAccount(ctx, ledger.FundingAccountCode); err != nil {
		return fmt.Errorf("open funding account: %w", err)
	}
	s.logger.InfoContext(ctx, "broker ready",
		"identity", s.info.Identity.String(), "scheme", s.info.Scheme, "hash", s.info.Hash)
	return nil
}

// Balance returns the balance of a broker account.
func (s *Service) Balance(ctx context.Context, accountNumber int64) (int64, error) {
	balance, err := s.ledger.Balance(ctx, ledger.AccountCode(accountNumber))
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return 0, fmt.Errorf("%w: account %d", protocol.ErrUnknownIdentity, accountNumber)
	}
	return balance, err
}
