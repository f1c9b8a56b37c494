// Package certificate builds and verifies the broker-signed user certificates
// that anchor the PayWord trust chain.
package certificate

import (
	"fmt"
	"time"

	"github.com/congo-pay/payword/internal/protocol"
	"github.com/congo-pay/payword/internal/wire"
)

// UserInfo is the holder view of a certificate: who the user is, the key that
// signs their commitments, and the account the broker settles against.
type UserInfo struct {
	Identity      protocol.Identity
	PublicKey     []byte
	AccountNumber int64
	CreditLimit   int64
}

// Certificate binds a user identity and key to an account under the broker's signature.
type Certificate struct {
	BrokerIdentity  protocol.Identity
	UserIdentity    protocol.Identity
	BrokerPublicKey []byte
	UserPublicKey   []byte
	Expiry          time.Time
	AccountNumber   int64
	CreditLimit     int64
	Signature       []byte
}

// Holder returns the fields other components bind to after verification.
func (c Certificate) Holder() UserInfo {
	return UserInfo{
		Identity:      c.UserIdentity,
		PublicKey:     c.UserPublicKey,
		AccountNumber: c.AccountNumber,
		CreditLimit:   c.CreditLimit,
	}
}

// Payload returns the signed portion: every field except the signature.
func (c Certificate) Payload() []byte {
	return c.encodePayload().Bytes()
}

func (c Certificate) encodePayload() *wire.Encoder {
	size := 4*4 + len(c.BrokerIdentity) + len(c.UserIdentity) + len(c.BrokerPublicKey) + len(c.UserPublicKey) + 3*8
	return wire.NewEncoder(size+4+len(c.Signature)).
		PutBytes(c.BrokerIdentity).
		PutBytes(c.UserIdentity).
		PutBytes(c.BrokerPublicKey).
		PutBytes(c.UserPublicKey).
		PutInt64(c.Expiry.UnixMilli()).
		PutInt64(c.AccountNumber).
		PutInt64(c.CreditLimit)
}

// Marshal encodes the certificate including its signature.
func (c Certificate) Marshal() []byte {
	return c.encodePayload().PutBytes(c.Signature).Bytes()
}

// Parse decodes a certificate. Trailing bytes are rejected.
func Parse(b []byte) (Certificate, error) {
	d := wire.NewDecoder(b)
	c := Certificate{
		BrokerIdentity:  protocol.Identity(d.Bytes("broker identity")),
		UserIdentity:    protocol.Identity(d.Bytes("user identity")),
		BrokerPublicKey: d.Bytes("broker public key"),
		UserPublicKey:   d.Bytes("user public key"),
	}
	c.Expiry = time.UnixMilli(d.Int64("expiry")).UTC()
	c.AccountNumber = d.Int64("account number")
	c.CreditLimit = d.Int64("credit limit")
	c.Signature = d.Bytes("signature")
	if err := d.Finish(); err != nil {
		return Certificate{}, fmt.Errorf("parse certificate: %w", err)
	}
	return c, nil
}
