package client

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/payword/internal/commitment"
	"github.com/congo-pay/payword/internal/payments"
	"github.com/congo-pay/payword/internal/protocol"
)

// Vendor is a client for a vendor API.
type Vendor struct {
	conn       conn
	adminToken string
}

// NewVendor returns a client for the vendor at baseURL.
func NewVendor(baseURL string, timeout time.Duration) *Vendor {
	return &Vendor{conn: newConn(baseURL, timeout)}
}

// WithAdminToken sets the bearer token sent on operator calls such as Redeem.
func (v *Vendor) WithAdminToken(token string) *Vendor {
	v.adminToken = token
	return v
}

type vendorIdentityResponse struct {
	protocol.Response
	Identity string `json:"identity"`
}

// Identity fetches the identity commitments must be addressed to.
func (v *Vendor) Identity(ctx context.Context) (protocol.Identity, error) {
	var resp vendorIdentityResponse
	if err := v.conn.do(ctx, fiber.MethodGet, "/api/v1/identity", nil, nil, &resp); err != nil {
		return nil, err
	}
	return protocol.ParseIdentityHex(resp.Identity)
}

type commitResponse struct {
	protocol.Response
	Session string `json:"session"`
}

// Commit sends a signed commitment. It returns the session token the vendor
// expects on every payment and on End.
func (v *Vendor) Commit(ctx context.Context, c commitment.Commitment) (string, error) {
	var resp commitResponse
	if err := v.conn.do(ctx, fiber.MethodPost, "/api/v1/commit", c.Marshal(), nil, &resp); err != nil {
		return "", err
	}
	return resp.Session, nil
}

func sessionHeader(session string) map[string]string {
	return map[string]string{protocol.SessionHeader: session}
}

// Receipt acknowledges an accepted payment link.
type Receipt struct {
	Index        int32 `json:"index"`
	Denomination int32 `json:"denomination"`
	Value        int64 `json:"value"`
}

type paymentResponse struct {
	protocol.Response
	Receipt
}

// Pay sends the next payment link for user. A fraud verdict comes back as an
// error for which protocol.IsFraud holds.
func (v *Vendor) Pay(ctx context.Context, user protocol.Identity, session string, link payments.Link) (Receipt, error) {
	var resp paymentResponse
	path := "/api/v1/users/" + user.Hex() + "/payments"
	if err := v.conn.do(ctx, fiber.MethodPost, path, link.Marshal(), sessionHeader(session), &resp); err != nil {
		return Receipt{}, err
	}
	return resp.Receipt, nil
}

type endResponse struct {
	protocol.Response
	Queued int `json:"queued"`
}

// End closes the user's episode. It returns how many chains were queued for
// redemption.
func (v *Vendor) End(ctx context.Context, user protocol.Identity, session string) (int, error) {
	var resp endResponse
	path := "/api/v1/users/" + user.Hex() + "/end"
	if err := v.conn.do(ctx, fiber.MethodPost, path, []byte{}, sessionHeader(session), &resp); err != nil {
		return 0, err
	}
	return resp.Queued, nil
}

// RedeemSummary reports one vendor redeem pass.
type RedeemSummary struct {
	Settled  int   `json:"settled"`
	Amount   int64 `json:"amount"`
	Requeued int   `json:"requeued"`
	Dropped  int   `json:"dropped"`
}

type redeemSummaryResponse struct {
	protocol.Response
	RedeemSummary
}

// Redeem triggers an immediate redeem pass on the vendor. It needs the
// vendor's admin token.
func (v *Vendor) Redeem(ctx context.Context) (RedeemSummary, error) {
	var resp redeemSummaryResponse
	headers := map[string]string{fiber.HeaderAuthorization: "Bearer " + v.adminToken}
	if err := v.conn.do(ctx, fiber.MethodPost, "/api/v1/redeem", []byte{}, headers, &resp); err != nil {
		return RedeemSummary{}, err
	}
	return resp.RedeemSummary, nil
}
