package certificate

import (
	"fmt"
	"time"

	"github.com/congo-pay/payword/internal/keys"
	"github.com/congo-pay/payword/internal/protocol"
)

// Issuer signs certificates on behalf of the broker.
type Issuer struct {
	signer   keys.Signer
	identity protocol.Identity
	validity time.Duration
	now      func() time.Time
}

// NewIssuer builds an issuer. validity is added to the issuance time to form the expiry.
func NewIssuer(signer keys.Signer, identity protocol.Identity, validity time.Duration) *Issuer {
	return &Issuer{signer: signer, identity: identity, validity: validity, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Identity returns the broker identity embedded in issued certificates.
func (i *Issuer) Identity() protocol.Identity {
	return i.identity
}

// Issue signs a certificate for subject.
func (i *Issuer) Issue(subject UserInfo) (Certificate, error) {
	if len(subject.Identity) == 0 || len(subject.PublicKey) == 0 {
		return Certificate{}, fmt.Errorf("%w: certificate subject incomplete", protocol.ErrMalformedMessage)
	}
	c := Certificate{
		BrokerIdentity:  i.identity.Clone(),
		UserIdentity:    subject.Identity.Clone(),
		BrokerPublicKey: i.signer.PublicBytes(),
		UserPublicKey:   append([]byte(nil), subject.PublicKey...),
		Expiry:          time.UnixMilli(i.now().Add(i.validity).UnixMilli()).UTC(),
		AccountNumber:   subject.AccountNumber,
		CreditLimit:     subject.CreditLimit,
	}
	sig, err := i.signer.Sign(c.Payload())
	if err != nil {
		return Certificate{}, fmt.Errorf("sign certificate: %w", err)
	}
	c.Signature = sig
	return c, nil
}
