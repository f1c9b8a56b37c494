package commitment

import (
	"fmt"

	"github.com/congo-pay/payword/internal/certificate"
	"github.com/congo-pay/payword/internal/keys"
	"github.com/congo-pay/payword/internal/protocol"
)

// Verifier checks the broker-to-user-to-commitment trust chain.
type Verifier struct {
	certs *certificate.Verifier
}

func NewVerifier(certs *certificate.Verifier) *Verifier {
	return &Verifier{certs: certs}
}

// Verify checks the embedded certificate against the broker key, then the
// user's signature against the key that certificate vouches for. The holder
// is returned only when both layers pass.
func (v *Verifier) Verify(c Commitment) (certificate.UserInfo, error) {
	if err := v.certs.Verify(c.Certificate); err != nil {
		return certificate.UserInfo{}, fmt.Errorf("%w: %w", protocol.ErrUntrustedCertificate, err)
	}
	holder := c.Certificate.Holder()
	if err := keys.Verify(v.certs.Scheme(), holder.PublicKey, c.Payload(), c.Signature); err != nil {
		return certificate.UserInfo{}, fmt.Errorf("commitment from %s: %w", holder.Identity, err)
	}
	return holder, nil
}
