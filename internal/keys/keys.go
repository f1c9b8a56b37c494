// Package keys wraps the pluggable signature schemes used by brokers, users and
// vendors, and persists each party's key pair.
package keys

import (
	"bytes"
	"fmt"

	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/schemes"

	"github.com/congo-pay/payword/internal/protocol"
)

// DefaultScheme is used when no scheme is configured.
const DefaultScheme = "Ed25519"

// Signer signs protocol payloads. KeyPair implements it.
type Signer interface {
	Sign(message []byte) ([]byte, error)
	PublicBytes() []byte
}

// Scheme resolves a circl signature scheme by name.
func Scheme(name string) (sign.Scheme, error) {
	if name == "" {
		name = DefaultScheme
	}
	s := schemes.ByName(name)
	if s == nil {
		return nil, fmt.Errorf("unknown signature scheme %q", name)
	}
	return s, nil
}

// KeyPair holds one party's signing keys. The private half never leaves it.
type KeyPair struct {
	scheme  sign.Scheme
	public  sign.PublicKey
	private sign.PrivateKey
	encoded []byte
}

// Generate creates a fresh key pair.
func Generate(s sign.Scheme) (*KeyPair, error) {
	pub, priv, err := s.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate %s key: %w", s.Name(), err)
	}
	return newKeyPair(s, pub, priv)
}

// FromPrivate restores a key pair from its marshalled private key.
func FromPrivate(s sign.Scheme, raw []byte) (*KeyPair, error) {
	priv, err := s.UnmarshalBinaryPrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s private key: %w", s.Name(), err)
	}
	pub, ok := priv.Public().(sign.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%s private key has no public counterpart", s.Name())
	}
	return newKeyPair(s, pub, priv)
}

func newKeyPair(s sign.Scheme, pub sign.PublicKey, priv sign.PrivateKey) (*KeyPair, error) {
	encoded, err := pub.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	return &KeyPair{scheme: s, public: pub, private: priv, encoded: encoded}, nil
}

// Sign signs message with the private key.
func (k *KeyPair) Sign(message []byte) ([]byte, error) {
	return k.scheme.Sign(k.private, message, nil), nil
}

// PublicBytes returns the encoded public key as exported in registrations and certificates.
func (k *KeyPair) PublicBytes() []byte {
	return append([]byte(nil), k.encoded...)
}

// Scheme returns the scheme the pair belongs to.
func (k *KeyPair) Scheme() sign.Scheme {
	return k.scheme
}

func (k *KeyPair) marshalPrivate() ([]byte, error) {
	return k.private.MarshalBinary()
}

// ValidatePublic checks that raw decodes as a public key of scheme s.
func ValidatePublic(s sign.Scheme, raw []byte) error {
	if _, err := s.UnmarshalBinaryPublicKey(raw); err != nil {
		return fmt.Errorf("%w: public key: %v", protocol.ErrMalformedMessage, err)
	}
	return nil
}

// Verify checks sig over message under the encoded public key pub.
func Verify(s sign.Scheme, pub, message, sig []byte) error {
	pk, err := s.UnmarshalBinaryPublicKey(pub)
	if err != nil {
		return fmt.Errorf("%w: public key: %v", protocol.ErrInvalidSignature, err)
	}
	if len(sig) != s.SignatureSize() || !s.Verify(pk, message, sig, nil) {
		return protocol.ErrInvalidSignature
	}
	return nil
}

// SamePublic reports whether two encoded public keys are identical.
func SamePublic(a, b []byte) bool {
	return len(a) > 0 && bytes.Equal(a, b)
}
