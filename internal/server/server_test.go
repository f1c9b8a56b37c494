package server_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/payword/internal/client"
	"github.com/congo-pay/payword/internal/config"
	"github.com/congo-pay/payword/internal/hashchain"
	"github.com/congo-pay/payword/internal/infra"
	"github.com/congo-pay/payword/internal/keys"
	"github.com/congo-pay/payword/internal/logging"
	"github.com/congo-pay/payword/internal/metrics"
	"github.com/congo-pay/payword/internal/payments"
	"github.com/congo-pay/payword/internal/protocol"
	"github.com/congo-pay/payword/internal/registry"
	"github.com/congo-pay/payword/internal/routes"
	"github.com/congo-pay/payword/internal/server"
	"github.com/congo-pay/payword/internal/wallet"
)

const (
	width       = 32
	chainLength = 16
	adminToken  = "ops-token"
)

func testConfig() config.Config {
	return config.Config{
		AppName:        "payword-test",
		AppEnv:         "test",
		IdempotencyTTL: time.Minute,
		ShutdownPeriod: time.Second,
		Payword: config.Payword{
			Hash:              hashchain.HashSHA1,
			CertValidity:      time.Hour,
			OpeningBalance:    100,
			RedeemClaimTTL:    time.Minute,
			RegisterRateLimit: 100,
			AdminToken:        adminToken,
		},
	}
}

func identity(t *testing.T, name string) protocol.Identity {
	t.Helper()
	id, err := protocol.NewIdentity(name, width)
	require.NoError(t, err)
	return id
}

func serve(t *testing.T, srv *server.Server) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return "http://" + ln.Addr().String()
}

type deployment struct {
	broker *client.Broker
	vendor *client.Vendor
	wallet *wallet.Service
	user   protocol.Identity
}

func deploy(t *testing.T) *deployment {
	t.Helper()
	ctx := context.Background()
	cfg := testConfig()
	stores := &infra.Stores{}

	scheme, err := keys.Scheme(keys.DefaultScheme)
	require.NoError(t, err)
	brokerKeys, err := keys.Generate(scheme)
	require.NoError(t, err)
	bsrv, _, err := server.NewBroker(cfg, stores, routes.BrokerParty{Identity: identity(t, "broker"), Keys: brokerKeys},
		metrics.New("broker"), logging.Discard())
	require.NoError(t, err)
	bc := client.NewBroker(serve(t, bsrv), 5*time.Second)

	info, err := bc.Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, brokerKeys.PublicBytes(), info.PublicKey)

	vendorID := identity(t, "vendor")
	vendorKeys, err := keys.Generate(scheme)
	require.NoError(t, err)
	require.NoError(t, bc.RegisterVendor(ctx, registry.Registration{
		Kind: registry.KindVendor, Identity: vendorID, PublicKey: vendorKeys.PublicBytes(), AccountNumber: 2,
	}))
	vsrv, _, err := server.NewVendor(cfg, stores, routes.VendorParty{Identity: vendorID, Broker: info, Redeemer: bc},
		metrics.New("vendor"), logging.Discard())
	require.NoError(t, err)
	vc := client.NewVendor(serve(t, vsrv), 5*time.Second).WithAdminToken(adminToken)

	user := identity(t, "alice")
	userKeys, err := keys.Generate(scheme)
	require.NoError(t, err)
	w := wallet.NewService(user, userKeys, hashchain.SHA1(), chainLength, wallet.NewMemoryStore())
	cert, err := bc.RegisterUser(ctx, w.Registration(1, 0))
	require.NoError(t, err)
	require.NoError(t, w.SetCertificate(cert))

	return &deployment{broker: bc, vendor: vc, wallet: w, user: user}
}

func TestPaymentEpisodeSettlesOnce(t *testing.T) {
	ctx := context.Background()
	d := deploy(t)

	vendorID, err := d.vendor.Identity(ctx)
	require.NoError(t, err)
	c, err := d.wallet.Commit(vendorID)
	require.NoError(t, err)
	session, err := d.vendor.Commit(ctx, c)
	require.NoError(t, err)

	var last payments.Link
	for i := 0; i < 3; i++ {
		link, err := d.wallet.Pay(vendorID, protocol.Five)
		require.NoError(t, err)
		receipt, err := d.vendor.Pay(ctx, d.user, session, link)
		require.NoError(t, err)
		assert.Equal(t, int64(5*(i+1)), receipt.Value)
		last = link
	}

	queued, err := d.vendor.End(ctx, d.user, session)
	require.NoError(t, err)
	assert.Equal(t, 1, queued)

	sum, err := d.vendor.Redeem(ctx)
	require.NoError(t, err)
	assert.Equal(t, client.RedeemSummary{Settled: 1, Amount: 15}, sum)

	userBalance, err := d.broker.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(85), userBalance)
	vendorBalance, err := d.broker.Balance(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(115), vendorBalance)

	_, err = d.broker.Redeem(ctx, payments.RedeemRequest{Commitment: c, Link: last})
	assert.ErrorIs(t, err, protocol.ErrAlreadyRedeemed)

	userBalance, err = d.broker.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(85), userBalance, "a replayed redeem must not move money")
}

func TestForgedLinkIsFraud(t *testing.T) {
	ctx := context.Background()
	d := deploy(t)

	vendorID, err := d.vendor.Identity(ctx)
	require.NoError(t, err)
	c, err := d.wallet.Commit(vendorID)
	require.NoError(t, err)
	session, err := d.vendor.Commit(ctx, c)
	require.NoError(t, err)

	forged := payments.Link{Payword: hashchain.Payword{1, 2, 3}, Index: 0, Denomination: protocol.One}
	_, err = d.vendor.Pay(ctx, d.user, session, forged)
	require.Error(t, err)
	assert.True(t, protocol.IsFraud(err))
	assert.ErrorIs(t, err, protocol.ErrBrokenChain)

	link, err := d.wallet.Pay(vendorID, protocol.One)
	require.NoError(t, err)
	_, err = d.vendor.Pay(ctx, d.user, session, link)
	assert.ErrorIs(t, err, protocol.ErrSessionTerminated)
}

func TestStrangerCannotDisturbSession(t *testing.T) {
	ctx := context.Background()
	d := deploy(t)

	vendorID, err := d.vendor.Identity(ctx)
	require.NoError(t, err)
	c, err := d.wallet.Commit(vendorID)
	require.NoError(t, err)
	session, err := d.vendor.Commit(ctx, c)
	require.NoError(t, err)

	forged := payments.Link{Payword: hashchain.Payword{9}, Index: 0, Denomination: protocol.One}
	_, err = d.vendor.Pay(ctx, d.user, "", forged)
	assert.ErrorIs(t, err, protocol.ErrUnknownSession)
	_, err = d.vendor.End(ctx, d.user, "")
	assert.ErrorIs(t, err, protocol.ErrUnknownSession)

	link, err := d.wallet.Pay(vendorID, protocol.One)
	require.NoError(t, err)
	receipt, err := d.vendor.Pay(ctx, d.user, session, link)
	require.NoError(t, err)
	assert.Equal(t, int64(1), receipt.Value)
}

func TestRedeemTriggerNeedsAdminToken(t *testing.T) {
	ctx := context.Background()
	d := deploy(t)

	_, err := d.vendor.WithAdminToken("guess").Redeem(ctx)
	require.Error(t, err)

	sum, err := d.vendor.WithAdminToken(adminToken).Redeem(ctx)
	require.NoError(t, err)
	assert.Equal(t, client.RedeemSummary{}, sum)
}

func TestErrorsCrossTheWire(t *testing.T) {
	ctx := context.Background()
	d := deploy(t)

	_, err := d.broker.Balance(ctx, 404)
	assert.ErrorIs(t, err, protocol.ErrUnknownIdentity)

	_, err = d.vendor.End(ctx, d.user, "")
	assert.ErrorIs(t, err, protocol.ErrNoCommitment)
}
