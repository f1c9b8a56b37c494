// Package hashchain generates and verifies one-way payword chains.
//
// A chain of length N is built backward from a random seed: chain[N-1] is the
// hash of the seed and chain[i-1] = H(chain[i]). chain[0] is the root that a
// user commits to; the remaining elements are revealed in increasing index
// order as payment.
package hashchain

import (
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // payword width follows the reference deployment
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Size is the width in bytes of a payword.
const Size = 20

// SeedSize is the number of random bytes drawn when no seed is supplied.
const SeedSize = 128

const (
	HashSHA1       = "sha1"
	HashBlake2b160 = "blake2b-160"
)

// Payword is one element of a hash chain.
type Payword [Size]byte

// ParsePayword copies b into a Payword.
func ParsePayword(b []byte) (Payword, error) {
	var p Payword
	if len(b) != Size {
		return p, fmt.Errorf("payword must be %d bytes, got %d", Size, len(b))
	}
	copy(p[:], b)
	return p, nil
}

// Bytes returns a copy of the payword bytes.
func (p Payword) Bytes() []byte {
	return append([]byte(nil), p[:]...)
}

func (p Payword) String() string {
	return hex.EncodeToString(p[:])
}

// IsZero reports whether p is the zero value.
func (p Payword) IsZero() bool {
	return p == Payword{}
}

// Hasher is the one-way function applied along a chain.
type Hasher struct {
	name string
	sum  func([]byte) Payword
}

// NewHasher returns the hasher registered under name.
func NewHasher(name string) (Hasher, error) {
	switch name {
	case "", HashSHA1:
		return Hasher{name: HashSHA1, sum: sha1Sum}, nil
	case HashBlake2b160:
		return Hasher{name: HashBlake2b160, sum: blake2bSum}, nil
	default:
		return Hasher{}, fmt.Errorf("unknown hash function %q", name)
	}
}

// SHA1 returns the reference hasher.
func SHA1() Hasher {
	return Hasher{name: HashSHA1, sum: sha1Sum}
}

func sha1Sum(b []byte) Payword {
	return Payword(sha1.Sum(b)) //nolint:gosec
}

func blake2bSum(b []byte) Payword {
	h, err := blake2b.New(Size, nil)
	if err != nil {
		// Size is a valid blake2b digest length; New only fails on bad sizes or keys.
		panic(err)
	}
	h.Write(b)
	var p Payword
	copy(p[:], h.Sum(nil))
	return p
}

// Name returns the configured hash function name.
func (h Hasher) Name() string {
	return h.name
}

// Hash applies the one-way function once.
func (h Hasher) Hash(p Payword) Payword {
	return h.sum(p[:])
}

// Walk applies the one-way function n times.
func (h Hasher) Walk(p Payword, n int) Payword {
	for i := 0; i < n; i++ {
		p = h.sum(p[:])
	}
	return p
}

// VerifyLink reports whether child is the preimage of parent.
func (h Hasher) VerifyLink(parent, child Payword) bool {
	return h.Hash(child) == parent
}

// VerifyRedemption hashes revealed exactly steps times and compares the result
// to root. Cost is linear in steps, which is what bounds chain length.
func (h Hasher) VerifyRedemption(root, revealed Payword, steps int) bool {
	if steps < 0 {
		return false
	}
	return h.Walk(revealed, steps) == root
}

// ErrChainLength is returned for chains too short to carry a payment.
var ErrChainLength = errors.New("chain length must be at least 2")

// Chain is an ordered payword sequence, root first.
type Chain struct {
	hasher Hasher
	links  []Payword
}

// Generate builds a chain of length elements from seed. A nil seed draws
// SeedSize bytes from the system entropy source.
func Generate(h Hasher, length int, seed []byte) (*Chain, error) {
	if length < 2 {
		return nil, ErrChainLength
	}
	if seed == nil {
		seed = make([]byte, SeedSize)
		if _, err := rand.Read(seed); err != nil {
			return nil, fmt.Errorf("read seed: %w", err)
		}
	}

	links := make([]Payword, length)
	links[length-1] = h.sum(seed)
	for i := length - 1; i > 0; i-- {
		links[i-1] = h.Hash(links[i])
	}
	return &Chain{hasher: h, links: links}, nil
}

// Len returns the number of paywords including the root.
func (c *Chain) Len() int {
	return len(c.links)
}

// Root returns chain[0].
func (c *Chain) Root() Payword {
	return c.links[0]
}

// At returns chain[i].
func (c *Chain) At(i int) (Payword, error) {
	if i < 0 || i >= len(c.links) {
		return Payword{}, fmt.Errorf("chain index %d out of range [0,%d)", i, len(c.links))
	}
	return c.links[i], nil
}

// Hasher returns the function the chain was built with.
func (c *Chain) Hasher() Hasher {
	return c.hasher
}
