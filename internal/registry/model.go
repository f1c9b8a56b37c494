package registry

import (
	"fmt"
	"time"

	"github.com/congo-pay/payword/internal/protocol"
	"github.com/congo-pay/payword/internal/wire"
)

// Kind distinguishes the two registrable parties.
type Kind string

const (
	KindUser   Kind = "user"
	KindVendor Kind = "vendor"
)

// Registration is the REGISTER_USER / REGISTER_VENDOR payload. Vendors carry no credit limit.
type Registration struct {
	Kind          Kind
	Identity      protocol.Identity
	PublicKey     []byte
	AccountNumber int64
	CreditLimit   int64
}

// Marshal encodes the registration in its kind's layout.
func (r Registration) Marshal() []byte {
	e := wire.NewEncoder(4 + len(r.Identity) + 4 + len(r.PublicKey) + 16).
		PutBytes(r.Identity).
		PutBytes(r.PublicKey).
		PutInt64(r.AccountNumber)
	if r.Kind == KindUser {
		e.PutInt64(r.CreditLimit)
	}
	return e.Bytes()
}

// ParseRegistration decodes a registration of the given kind.
func ParseRegistration(kind Kind, b []byte) (Registration, error) {
	d := wire.NewDecoder(b)
	r := Registration{
		Kind:      kind,
		Identity:  protocol.Identity(d.Bytes("identity")),
		PublicKey: d.Bytes("public key"),
	}
	r.AccountNumber = d.Int64("account number")
	if kind == KindUser {
		r.CreditLimit = d.Int64("credit limit")
	}
	if err := d.Finish(); err != nil {
		return Registration{}, fmt.Errorf("parse %s registration: %w", kind, err)
	}
	if r.AccountNumber <= 0 || r.CreditLimit < 0 {
		return Registration{}, fmt.Errorf("%w: account %d credit %d", protocol.ErrMalformedMessage, r.AccountNumber, r.CreditLimit)
	}
	return r, nil
}

// Record is a registered party.
type Record struct {
	Identity      protocol.Identity
	Kind          Kind
	PublicKey     []byte
	AccountNumber int64
	CreditLimit   int64
	RegisteredAt  time.Time
	UpdatedAt     time.Time
}
