package certificate

import (
	"fmt"
	"time"

	"github.com/cloudflare/circl/sign"

	"github.com/congo-pay/payword/internal/keys"
	"github.com/congo-pay/payword/internal/protocol"
)

// Verifier checks certificates against the well-known broker key.
type Verifier struct {
	scheme    sign.Scheme
	brokerKey []byte
	now       func() time.Time
}

// NewVerifier trusts certificates signed by brokerKey under scheme.
func NewVerifier(scheme sign.Scheme, brokerKey []byte) *Verifier {
	return &Verifier{scheme: scheme, brokerKey: append([]byte(nil), brokerKey...), now: time.Now}
}

// WithClock replaces the time source, for tests.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// Scheme returns the signature scheme in use.
func (v *Verifier) Scheme() sign.Scheme {
	return v.scheme
}

// Verify checks the broker signature and expiry. The configured broker key is
// authoritative; a certificate naming a different broker key is untrusted even
// if it is self-consistent.
func (v *Verifier) Verify(c Certificate) error {
	if !keys.SamePublic(c.BrokerPublicKey, v.brokerKey) {
		return protocol.ErrUntrustedCertificate
	}
	if err := keys.Verify(v.scheme, v.brokerKey, c.Payload(), c.Signature); err != nil {
		return fmt.Errorf("certificate: %w", err)
	}
	if v.now().After(c.Expiry) {
		return fmt.Errorf("%w: at %s", protocol.ErrExpired, c.Expiry.Format(time.RFC3339))
	}
	return nil
}
