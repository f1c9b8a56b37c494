package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudflare/circl/sign"

	"github.com/congo-pay/payword/internal/certificate"
	"github.com/congo-pay/payword/internal/keys"
	"github.com/congo-pay/payword/internal/ledger"
	"github.com/congo-pay/payword/internal/metrics"
	"github.com/congo-pay/payword/internal/protocol"
)

// Service registers parties with the broker and certifies users.
type Service struct {
	repo           Repository
	ledger         ledger.Ledger
	issuer         *certificate.Issuer
	scheme         sign.Scheme
	identityWidth  int
	openingBalance int64
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// Options tunes a Service.
type Options struct {
	IdentityWidth int
	// OpeningBalance is deposited into an account when its first party registers.
	OpeningBalance int64
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

// NewService creates a registry service.
func NewService(repo Repository, led ledger.Ledger, issuer *certificate.Issuer, scheme sign.Scheme, opts Options) *Service {
	if opts.IdentityWidth <= 0 {
		opts.IdentityWidth = protocol.DefaultIdentityWidth
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		repo:           repo,
		ledger:         led,
		issuer:         issuer,
		scheme:         scheme,
		identityWidth:  opts.IdentityWidth,
		openingBalance: opts.OpeningBalance,
		metrics:        opts.Metrics,
		logger:         opts.Logger,
	}
}

// Register inserts a new party or replaces the public key of an existing one.
// Account number and credit limit of an existing identity are never changed by
// re-registration.
func (s *Service) Register(ctx context.Context, reg Registration) (Record, error) {
	rec, err := s.register(ctx, reg)
	s.metrics.Registration(string(reg.Kind), protocol.Reason(err))
	return rec, err
}

func (s *Service) register(ctx context.Context, reg Registration) (Record, error) {
	if len(reg.Identity) != s.identityWidth {
		return Record{}, fmt.Errorf("%w: identity is %d bytes, want %d", protocol.ErrMalformedMessage, len(reg.Identity), s.identityWidth)
	}
	if err := keys.ValidatePublic(s.scheme, reg.PublicKey); err != nil {
		return Record{}, err
	}

	rec, created, err := s.repo.Upsert(ctx, Record{
		Identity:      reg.Identity,
		Kind:          reg.Kind,
		PublicKey:     reg.PublicKey,
		AccountNumber: reg.AccountNumber,
		CreditLimit:   reg.CreditLimit,
	})
	if err != nil {
		return Record{}, err
	}

	code := ledger.AccountCode(rec.AccountNumber)
	if err := s.ledger.EnsureAccount(ctx, code); err != nil {
		return Record{}, fmt.Errorf("open account %d: %w", rec.AccountNumber, err)
	}
	if created && s.openingBalance > 0 {
		_, err := s.ledger.Deposit(ctx, code, "opening:"+code, s.openingBalance)
		if err != nil && !errors.Is(err, ledger.ErrDuplicateTransaction) {
			return Record{}, fmt.Errorf("fund account %d: %w", rec.AccountNumber, err)
		}
	}

	s.logger.InfoContext(ctx, "party registered",
		"identity", rec.Identity.String(), "kind", rec.Kind, "account", rec.AccountNumber, "created", created)
	return rec, nil
}

// Certify issues a certificate for a registered user.
func (s *Service) Certify(ctx context.Context, id protocol.Identity) (certificate.Certificate, error) {
	rec, err := s.repo.Find(ctx, id)
	if err != nil {
		return certificate.Certificate{}, err
	}
	if rec.Kind != KindUser {
		return certificate.Certificate{}, fmt.Errorf("%w: %s is registered as %s", protocol.ErrUnknownIdentity, id, rec.Kind)
	}
	cert, err := s.issuer.Issue(certificate.UserInfo{
		Identity:      rec.Identity,
		PublicKey:     rec.PublicKey,
		AccountNumber: rec.AccountNumber,
		CreditLimit:   rec.CreditLimit,
	})
	if err != nil {
		return certificate.Certificate{}, err
	}
	s.metrics.CertificateIssued()
	return cert, nil
}

// Lookup returns the record for a registered party.
func (s *Service) Lookup(ctx context.Context, id protocol.Identity) (Record, error) {
	return s.repo.Find(ctx, id)
}

// Vendor returns the record for a registered vendor.
func (s *Service) Vendor(ctx context.Context, id protocol.Identity) (Record, error) {
	rec, err := s.repo.Find(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if rec.Kind != KindVendor {
		return Record{}, fmt.Errorf("%w: %s is not a vendor", protocol.ErrUnknownIdentity, id)
	}
	return rec, nil
}
