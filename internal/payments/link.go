// Package payments holds the payment-link messages and the vendor-side state
// that accepts links against a user's commitment.
package payments

import (
	"fmt"

	"github.com/congo-pay/payword/internal/commitment"
	"github.com/congo-pay/payword/internal/hashchain"
	"github.com/congo-pay/payword/internal/protocol"
	"github.com/congo-pay/payword/internal/wire"
)

// Link is one revealed payword. Index k carries chain element k+1, so the link
// is worth k+1 units of its denomination.
type Link struct {
	Payword      hashchain.Payword
	Index        int32
	Denomination protocol.Denomination
}

// Value is the aggregate amount paid on the chain once this link is accepted.
func (l Link) Value() int64 {
	return (int64(l.Index) + 1) * int64(l.Denomination)
}

// Steps is the number of hashes that lead from the link back to the chain root.
func (l Link) Steps() int {
	return int(l.Index) + 1
}

func (l Link) Marshal() []byte {
	return wire.NewEncoder(hashchain.Size+8).
		PutFixed(l.Payword[:]).
		PutInt32(l.Index).
		PutInt32(int32(l.Denomination)).
		Bytes()
}

// ParseLink decodes a link and validates its denomination and index sign.
func ParseLink(b []byte) (Link, error) {
	d := wire.NewDecoder(b)
	var l Link
	copy(l.Payword[:], d.Fixed(hashchain.Size, "payword"))
	l.Index = d.Int32("index")
	raw := d.Int32("denomination")
	if err := d.Finish(); err != nil {
		return Link{}, fmt.Errorf("parse link: %w", err)
	}
	if l.Index < 0 {
		return Link{}, fmt.Errorf("%w: negative link index %d", protocol.ErrMalformedMessage, l.Index)
	}
	den, err := protocol.ParseDenomination(raw)
	if err != nil {
		return Link{}, fmt.Errorf("parse link: %w", err)
	}
	l.Denomination = den
	return l, nil
}

// RedeemRequest asks the broker to settle the highest accepted link of one chain.
type RedeemRequest struct {
	Commitment commitment.Commitment
	Link       Link
}

// Root is the committed chain root the request settles.
func (r RedeemRequest) Root() (hashchain.Payword, error) {
	return r.Commitment.Root(r.Link.Denomination)
}

func (r RedeemRequest) Marshal() []byte {
	c := r.Commitment.Marshal()
	l := r.Link.Marshal()
	return wire.NewEncoder(8 + len(c) + len(l)).PutBytes(c).PutBytes(l).Bytes()
}

func ParseRedeemRequest(b []byte) (RedeemRequest, error) {
	d := wire.NewDecoder(b)
	rawCommit := d.Bytes("commitment")
	rawLink := d.Bytes("payment link")
	if err := d.Finish(); err != nil {
		return RedeemRequest{}, fmt.Errorf("parse redeem request: %w", err)
	}
	c, err := commitment.Parse(rawCommit)
	if err != nil {
		return RedeemRequest{}, err
	}
	l, err := ParseLink(rawLink)
	if err != nil {
		return RedeemRequest{}, err
	}
	return RedeemRequest{Commitment: c, Link: l}, nil
}
