// Package wallet is the user's side of PayWord: it holds the certificate,
// generates chains per vendor, and hands out payment links in order.
package wallet

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/congo-pay/payword/internal/certificate"
	"github.com/congo-pay/payword/internal/commitment"
	"github.com/congo-pay/payword/internal/hashchain"
	"github.com/congo-pay/payword/internal/keys"
	"github.com/congo-pay/payword/internal/payments"
	"github.com/congo-pay/payword/internal/protocol"
	"github.com/congo-pay/payword/internal/registry"
)

// ErrNotRegistered indicates the wallet has no certificate yet.
var ErrNotRegistered = errors.New("wallet has no certificate")

const certificateBlob = "certificate"

// Service holds one user's key, certificate and active episodes.
type Service struct {
	identity    protocol.Identity
	keys        *keys.KeyPair
	hasher      hashchain.Hasher
	chainLength int
	store       Store
	now         func() time.Time

	mu       sync.Mutex
	cert     *certificate.Certificate
	episodes map[string]*Episode
}

// NewService builds a wallet service instance.
func NewService(identity protocol.Identity, kp *keys.KeyPair, hasher hashchain.Hasher, chainLength int, store Store) *Service {
	return &Service{
		identity:    identity,
		keys:        kp,
		hasher:      hasher,
		chainLength: chainLength,
		store:       store,
		now:         time.Now,
		episodes:    make(map[string]*Episode),
	}
}

// Identity returns the wallet owner's identity.
func (s *Service) Identity() protocol.Identity {
	return s.identity
}

// Registration builds the REGISTER_USER payload for this wallet.
func (s *Service) Registration(accountNumber, creditLimit int64) registry.Registration {
	return registry.Registration{
		Kind:          registry.KindUser,
		Identity:      s.identity,
		PublicKey:     s.keys.PublicBytes(),
		AccountNumber: accountNumber,
		CreditLimit:   creditLimit,
	}
}

// SetCertificate stores a certificate issued for this wallet's identity and key.
func (s *Service) SetCertificate(cert certificate.Certificate) error {
	if !cert.UserIdentity.Equal(s.identity) {
		return fmt.Errorf("%w: certificate issued to %s", protocol.ErrUntrustedCertificate, cert.UserIdentity)
	}
	if !keys.SamePublic(cert.UserPublicKey, s.keys.PublicBytes()) {
		return fmt.Errorf("%w: certificate binds a different key", protocol.ErrUntrustedCertificate)
	}
	if err := s.store.PutBlob(certificateBlob, cert.Marshal()); err != nil {
		return fmt.Errorf("store certificate: %w", err)
	}
	s.mu.Lock()
	s.cert = &cert
	s.mu.Unlock()
	return nil
}

// Certificate returns the stored certificate, loading it on first use.
func (s *Service) Certificate() (certificate.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.certificateLocked()
}

func (s *Service) certificateLocked() (certificate.Certificate, error) {
	if s.cert != nil {
		return *s.cert, nil
	}
	raw, ok, err := s.store.Blob(certificateBlob)
	if err != nil {
		return certificate.Certificate{}, fmt.Errorf("load certificate: %w", err)
	}
	if !ok {
		return certificate.Certificate{}, ErrNotRegistered
	}
	cert, err := certificate.Parse(raw)
	if err != nil {
		return certificate.Certificate{}, err
	}
	s.cert = &cert
	return cert, nil
}

// Commit starts a fresh episode with vendor: one new chain per denomination,
// committed under the wallet's key. A previous episode for the vendor is dropped.
func (s *Service) Commit(vendor protocol.Identity) (commitment.Commitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cert, err := s.certificateLocked()
	if err != nil {
		return commitment.Commitment{}, err
	}
	if s.now().After(cert.Expiry) {
		return commitment.Commitment{}, fmt.Errorf("%w: at %s", protocol.ErrExpired, cert.Expiry.Format(time.RFC3339))
	}

	ep := &Episode{}
	var roots commitment.Roots
	for i := range ep.chains {
		chain, err := hashchain.Generate(s.hasher, s.chainLength, nil)
		if err != nil {
			return commitment.Commitment{}, err
		}
		ep.chains[i] = chain
		roots[i] = chain.Root()
	}
	c, err := commitment.Build(s.keys, vendor, cert, roots, s.now(), s.chainLength)
	if err != nil {
		return commitment.Commitment{}, err
	}
	ep.Commitment = c
	s.episodes[vendor.Key()] = ep
	return c, nil
}

// Pay returns the next unspent link of the d chain for vendor.
func (s *Service) Pay(vendor protocol.Identity, d protocol.Denomination) (payments.Link, error) {
	slot, err := d.Slot()
	if err != nil {
		return payments.Link{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.episodes[vendor.Key()]
	if !ok {
		return payments.Link{}, protocol.ErrNoCommitment
	}
	index := ep.next[slot]
	p, err := ep.chains[slot].At(int(index) + 1)
	if err != nil {
		return payments.Link{}, fmt.Errorf("%w: %d links of %d spent", protocol.ErrChainExhausted, index, d)
	}
	ep.next[slot]++
	return payments.Link{Payword: p, Index: index, Denomination: d}, nil
}

// Episode returns the active episode with vendor.
func (s *Service) Episode(vendor protocol.Identity) (*Episode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.episodes[vendor.Key()]
	return ep, ok
}

// End forgets the episode with vendor.
func (s *Service) End(vendor protocol.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.episodes, vendor.Key())
}
