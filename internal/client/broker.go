package client

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/payword/internal/certificate"
	"github.com/congo-pay/payword/internal/payments"
	"github.com/congo-pay/payword/internal/protocol"
	"github.com/congo-pay/payword/internal/registry"
)

const idempotencyKeyHeader = "Idempotency-Key"

// Broker is a client for the broker API.
type Broker struct {
	conn conn
}

// NewBroker returns a client for the broker at baseURL.
func NewBroker(baseURL string, timeout time.Duration) *Broker {
	return &Broker{conn: newConn(baseURL, timeout)}
}

// BrokerInfo is the broker's published identity.
type BrokerInfo struct {
	Identity  protocol.Identity
	PublicKey []byte
	Scheme    string
	Hash      string
}

type identityResponse struct {
	protocol.Response
	Identity  string `json:"identity"`
	PublicKey []byte `json:"public_key"`
	Scheme    string `json:"scheme"`
	Hash      string `json:"hash"`
}

// Identity fetches the broker identity and public key.
func (b *Broker) Identity(ctx context.Context) (BrokerInfo, error) {
	var resp identityResponse
	if err := b.conn.do(ctx, fiber.MethodGet, "/api/v1/identity", nil, nil, &resp); err != nil {
		return BrokerInfo{}, err
	}
	id, err := protocol.ParseIdentityHex(resp.Identity)
	if err != nil {
		return BrokerInfo{}, err
	}
	return BrokerInfo{Identity: id, PublicKey: resp.PublicKey, Scheme: resp.Scheme, Hash: resp.Hash}, nil
}

type registerResponse struct {
	protocol.Response
	Certificate []byte `json:"certificate"`
}

// RegisterUser registers a user and returns the certificate the broker issued.
func (b *Broker) RegisterUser(ctx context.Context, reg registry.Registration) (certificate.Certificate, error) {
	var resp registerResponse
	if err := b.conn.do(ctx, fiber.MethodPost, "/api/v1/users", reg.Marshal(), nil, &resp); err != nil {
		return certificate.Certificate{}, err
	}
	cert, err := certificate.Parse(resp.Certificate)
	if err != nil {
		return certificate.Certificate{}, fmt.Errorf("decode issued certificate: %w", err)
	}
	return cert, nil
}

// RegisterVendor registers a vendor.
func (b *Broker) RegisterVendor(ctx context.Context, reg registry.Registration) error {
	var resp registerResponse
	return b.conn.do(ctx, fiber.MethodPost, "/api/v1/vendors", reg.Marshal(), nil, &resp)
}

// Settlement is the broker's answer to a successful redeem.
type Settlement struct {
	Root          string `json:"root"`
	Amount        int64  `json:"amount"`
	TransactionID string `json:"transaction_id"`
}

type redeemResponse struct {
	protocol.Response
	Settlement
}

// Redeem asks the broker to settle one chain. Retries of the same request
// carry the same idempotency key.
func (b *Broker) Redeem(ctx context.Context, req payments.RedeemRequest) (Settlement, error) {
	root, err := req.Root()
	if err != nil {
		return Settlement{}, err
	}
	headers := map[string]string{
		idempotencyKeyHeader: fmt.Sprintf("redeem:%s:%d", root, req.Link.Index),
	}
	var resp redeemResponse
	if err := b.conn.do(ctx, fiber.MethodPost, "/api/v1/redeem", req.Marshal(), headers, &resp); err != nil {
		return Settlement{}, err
	}
	return resp.Settlement, nil
}

type balanceResponse struct {
	protocol.Response
	Balance int64 `json:"balance"`
}

// Balance returns the balance of a broker account.
func (b *Broker) Balance(ctx context.Context, accountNumber int64) (int64, error) {
	var resp balanceResponse
	path := fmt.Sprintf("/api/v1/accounts/%d/balance", accountNumber)
	if err := b.conn.do(ctx, fiber.MethodGet, path, nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}
