// Package paywordtest builds brokers, certificates, and committed chains for tests.
package paywordtest

import (
	"testing"
	"time"

	"github.com/cloudflare/circl/sign"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/payword/internal/certificate"
	"github.com/congo-pay/payword/internal/commitment"
	"github.com/congo-pay/payword/internal/hashchain"
	"github.com/congo-pay/payword/internal/keys"
	"github.com/congo-pay/payword/internal/payments"
	"github.com/congo-pay/payword/internal/protocol"
)

// IdentityWidth keeps test identities short.
const IdentityWidth = 32

// Broker is a signing broker with a trusted verifier.
type Broker struct {
	Scheme   sign.Scheme
	Keys     *keys.KeyPair
	Identity protocol.Identity
	Issuer   *certificate.Issuer
	Certs    *certificate.Verifier
	Commits  *commitment.Verifier
}

// NewBroker generates an Ed25519 broker whose certificates last a day.
func NewBroker(t testing.TB) *Broker {
	t.Helper()
	s, err := keys.Scheme(keys.DefaultScheme)
	require.NoError(t, err)
	kp, err := keys.Generate(s)
	require.NoError(t, err)
	id := Identity(t, "broker")
	certs := certificate.NewVerifier(s, kp.PublicBytes())
	return &Broker{
		Scheme:   s,
		Keys:     kp,
		Identity: id,
		Issuer:   certificate.NewIssuer(kp, id, 24*time.Hour),
		Certs:    certs,
		Commits:  commitment.NewVerifier(certs),
	}
}

// Identity pads name to IdentityWidth.
func Identity(t testing.TB, name string) protocol.Identity {
	t.Helper()
	id, err := protocol.NewIdentity(name, IdentityWidth)
	require.NoError(t, err)
	return id
}

// User is a certified user.
type User struct {
	Keys *keys.KeyPair
	Cert certificate.Certificate
}

// NewUser certifies a fresh key for name.
func (b *Broker) NewUser(t testing.TB, name string, account, credit int64) *User {
	t.Helper()
	kp, err := keys.Generate(b.Scheme)
	require.NoError(t, err)
	cert, err := b.Issuer.Issue(certificate.UserInfo{
		Identity:      Identity(t, name),
		PublicKey:     kp.PublicBytes(),
		AccountNumber: account,
		CreditLimit:   credit,
	})
	require.NoError(t, err)
	return &User{Keys: kp, Cert: cert}
}

// Episode is one signed commitment and the chains behind it.
type Episode struct {
	Commitment commitment.Commitment
	Chains     [len(protocol.Denominations)]*hashchain.Chain
}

// Commit generates sha1 chains of the given length and commits them to vendor.
func (u *User) Commit(t testing.TB, vendor protocol.Identity, length int) *Episode {
	t.Helper()
	var ep Episode
	var roots commitment.Roots
	for i := range ep.Chains {
		chain, err := hashchain.Generate(hashchain.SHA1(), length, nil)
		require.NoError(t, err)
		ep.Chains[i] = chain
		roots[i] = chain.Root()
	}
	c, err := commitment.Build(u.Keys, vendor, u.Cert, roots, time.Now(), length)
	require.NoError(t, err)
	ep.Commitment = c
	return &ep
}

// Link returns the payment link with the given index for d.
func (e *Episode) Link(t testing.TB, d protocol.Denomination, index int32) payments.Link {
	t.Helper()
	slot, err := d.Slot()
	require.NoError(t, err)
	p, err := e.Chains[slot].At(int(index) + 1)
	require.NoError(t, err)
	return payments.Link{Payword: p, Index: index, Denomination: d}
}

// Redeem builds a redeem request for the link with the given index.
func (e *Episode) Redeem(t testing.TB, d protocol.Denomination, index int32) payments.RedeemRequest {
	t.Helper()
	return payments.RedeemRequest{Commitment: e.Commitment, Link: e.Link(t, d, index)}
}
