// Package commitment implements the user-signed promise that binds a vendor,
// the user's certificate, and the roots of one episode's hash chains.
package commitment

import (
	"fmt"
	"time"

	"github.com/congo-pay/payword/internal/certificate"
	"github.com/congo-pay/payword/internal/hashchain"
	"github.com/congo-pay/payword/internal/keys"
	"github.com/congo-pay/payword/internal/protocol"
	"github.com/congo-pay/payword/internal/wire"
)

// Roots holds one chain root per denomination, in protocol.Denominations order.
type Roots [len(protocol.Denominations)]hashchain.Payword

// Commitment is immutable once signed.
type Commitment struct {
	VendorIdentity protocol.Identity
	Certificate    certificate.Certificate
	Roots          Roots
	Timestamp      time.Time
	ChainLength    int32
	Signature      []byte

	// raw certificate bytes as received; signed payloads cover exactly these.
	certBytes []byte
}

// Build signs a new commitment with the user's key.
func Build(signer keys.Signer, vendor protocol.Identity, cert certificate.Certificate, roots Roots, timestamp time.Time, chainLength int) (Commitment, error) {
	n, err := wire.CheckedInt32(chainLength)
	if err != nil {
		return Commitment{}, err
	}
	if n < 2 {
		return Commitment{}, fmt.Errorf("%w: %d", hashchain.ErrChainLength, n)
	}
	c := Commitment{
		VendorIdentity: vendor.Clone(),
		Certificate:    cert,
		Roots:          roots,
		Timestamp:      time.UnixMilli(timestamp.UnixMilli()).UTC(),
		ChainLength:    n,
		certBytes:      cert.Marshal(),
	}
	sig, err := signer.Sign(c.Payload())
	if err != nil {
		return Commitment{}, fmt.Errorf("sign commitment: %w", err)
	}
	c.Signature = sig
	return c, nil
}

// DefaultMaxChainLength bounds the chains a vendor or broker accepts when no
// other limit is configured. Verifying a link costs up to this many hashes.
const DefaultMaxChainLength = 1_000_000

// CheckChainLength rejects a commitment to chains longer than limit paywords.
func (c Commitment) CheckChainLength(limit int) error {
	if limit > 0 && int(c.ChainLength) > limit {
		return fmt.Errorf("%w: chain length %d exceeds %d", protocol.ErrMalformedMessage, c.ChainLength, limit)
	}
	return nil
}

// Root returns the committed chain root for d.
func (c Commitment) Root(d protocol.Denomination) (hashchain.Payword, error) {
	slot, err := d.Slot()
	if err != nil {
		return hashchain.Payword{}, err
	}
	return c.Roots[slot], nil
}

// User is the certificate holder that signed the commitment.
func (c Commitment) User() protocol.Identity {
	return c.Certificate.UserIdentity
}

func (c Commitment) rawCertificate() []byte {
	if c.certBytes != nil {
		return c.certBytes
	}
	return c.Certificate.Marshal()
}

func (c Commitment) encodePayload() *wire.Encoder {
	cert := c.rawCertificate()
	e := wire.NewEncoder(4 + len(c.VendorIdentity) + 4 + len(cert) + len(c.Roots)*hashchain.Size + 8 + 4 + 4 + len(c.Signature))
	e.PutBytes(c.VendorIdentity).PutBytes(cert)
	for _, r := range c.Roots {
		e.PutFixed(r[:])
	}
	return e.PutInt64(c.Timestamp.UnixMilli()).PutInt32(c.ChainLength)
}

// Payload returns the bytes covered by the user's signature.
func (c Commitment) Payload() []byte {
	return c.encodePayload().Bytes()
}

// Marshal encodes the signed commitment.
func (c Commitment) Marshal() []byte {
	return c.encodePayload().PutBytes(c.Signature).Bytes()
}

// Parse decodes a commitment, including its embedded certificate.
func Parse(b []byte) (Commitment, error) {
	d := wire.NewDecoder(b)
	c := Commitment{VendorIdentity: protocol.Identity(d.Bytes("vendor identity"))}
	c.certBytes = d.Bytes("certificate")
	for i := range c.Roots {
		copy(c.Roots[i][:], d.Fixed(hashchain.Size, "chain root"))
	}
	c.Timestamp = time.UnixMilli(d.Int64("timestamp")).UTC()
	c.ChainLength = d.Int32("chain length")
	c.Signature = d.Bytes("signature")
	if err := d.Finish(); err != nil {
		return Commitment{}, fmt.Errorf("parse commitment: %w", err)
	}
	cert, err := certificate.Parse(c.certBytes)
	if err != nil {
		return Commitment{}, fmt.Errorf("parse commitment: %w", err)
	}
	if c.ChainLength < 2 {
		return Commitment{}, fmt.Errorf("%w: chain length %d", protocol.ErrMalformedMessage, c.ChainLength)
	}
	c.Certificate = cert
	return c, nil
}
