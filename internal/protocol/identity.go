package protocol

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// DefaultIdentityWidth is the identity width used by the reference deployment.
const DefaultIdentityWidth = 128

// Identity is a fixed-width opaque party identifier.
type Identity []byte

// NewIdentity right-pads name with zero bytes to width.
func NewIdentity(name string, width int) (Identity, error) {
	if width <= 0 {
		return nil, fmt.Errorf("identity width must be positive")
	}
	if len(name) == 0 {
		return nil, fmt.Errorf("identity name is required")
	}
	if len(name) > width {
		return nil, fmt.Errorf("identity %q longer than %d bytes", name, width)
	}
	id := make(Identity, width)
	copy(id, name)
	return id, nil
}

// ParseIdentityHex decodes the hex form produced by Identity.Hex.
func ParseIdentityHex(s string) (Identity, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) == 0 {
		return nil, fmt.Errorf("%w: identity %q", ErrMalformedMessage, s)
	}
	return Identity(b), nil
}

// Equal reports whether both identities carry the same bytes.
func (id Identity) Equal(other Identity) bool {
	return bytes.Equal(id, other)
}

// Key returns a comparable map key.
func (id Identity) Key() string {
	return string(id)
}

// Hex returns the hex encoding, used in URLs and database keys.
func (id Identity) Hex() string {
	return hex.EncodeToString(id)
}

// String returns the printable name with zero padding trimmed.
func (id Identity) String() string {
	return string(bytes.TrimRight(id, "\x00"))
}

// Clone returns an independent copy.
func (id Identity) Clone() Identity {
	return append(Identity(nil), id...)
}
