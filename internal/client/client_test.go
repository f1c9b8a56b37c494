package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/payword/internal/payments"
	"github.com/congo-pay/payword/internal/paywordtest"
	"github.com/congo-pay/payword/internal/protocol"
)

func serveStub(t *testing.T, app *fiber.App) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "http://" + ln.Addr().String()
}

func TestDoDecodesEnvelopes(t *testing.T) {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/api/v1/accounts/:number/balance", func(c *fiber.Ctx) error {
		if c.Params("number") == "1" {
			return c.JSON(fiber.Map{"status": "OK", "balance": 42})
		}
		return c.Status(fiber.StatusNotFound).JSON(protocol.Rejected(protocol.ErrUnknownIdentity))
	})
	app.Post("/api/v1/redeem", func(c *fiber.Ctx) error {
		if c.Get(idempotencyKeyHeader) == "" {
			return c.Status(fiber.StatusBadRequest).SendString("missing key")
		}
		return c.Status(fiber.StatusBadGateway).SendString("upstream down")
	})
	b := NewBroker(serveStub(t, app)+"/", time.Second)
	ctx := context.Background()

	balance, err := b.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(42), balance)

	_, err = b.Balance(ctx, 2)
	assert.ErrorIs(t, err, protocol.ErrUnknownIdentity)
	assert.False(t, payments.Retryable(err))

	broker := paywordtest.NewBroker(t)
	ep := broker.NewUser(t, "alice", 1, 0).Commit(t, paywordtest.Identity(t, "vendor"), 4)
	_, err = b.Redeem(ctx, ep.Redeem(t, protocol.One, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")
	assert.True(t, payments.Retryable(err), "non-protocol failures are transient")
}

func TestDoHonoursContext(t *testing.T) {
	b := NewBroker("http://127.0.0.1:1", time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Identity(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	ctx, cancel = context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)
	_, err = b.Identity(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTimeoutForUsesEarlierDeadline(t *testing.T) {
	c := newConn("http://example.invalid", time.Minute)
	assert.Equal(t, time.Minute, c.timeoutFor(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.LessOrEqual(t, c.timeoutFor(ctx), time.Second)
}

func TestVendorCarriesSessionAndAdminToken(t *testing.T) {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Post("/api/v1/commit", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "OK", "session": "tok-1"})
	})
	app.Post("/api/v1/users/:identity/end", func(c *fiber.Ctx) error {
		if c.Get(protocol.SessionHeader) != "tok-1" {
			return c.Status(fiber.StatusForbidden).JSON(protocol.Rejected(protocol.ErrUnknownSession))
		}
		return c.JSON(fiber.Map{"status": "OK", "queued": 2})
	})
	app.Post("/api/v1/redeem", func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) != "Bearer ops" {
			return c.Status(fiber.StatusUnauthorized).JSON(protocol.Rejected(errors.New("invalid token")))
		}
		return c.JSON(fiber.Map{"status": "OK", "settled": 1, "amount": 3})
	})
	url := serveStub(t, app)
	ctx := context.Background()

	broker := paywordtest.NewBroker(t)
	alice := broker.NewUser(t, "alice", 1, 0)
	ep := alice.Commit(t, paywordtest.Identity(t, "vendor"), 4)

	v := NewVendor(url, time.Second)
	session, err := v.Commit(ctx, ep.Commitment)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", session)

	_, err = v.End(ctx, alice.Cert.UserIdentity, "stale")
	assert.ErrorIs(t, err, protocol.ErrUnknownSession)
	queued, err := v.End(ctx, alice.Cert.UserIdentity, session)
	require.NoError(t, err)
	assert.Equal(t, 2, queued)

	_, err = v.Redeem(ctx)
	require.Error(t, err)
	sum, err := v.WithAdminToken("ops").Redeem(ctx)
	require.NoError(t, err)
	assert.Equal(t, RedeemSummary{Settled: 1, Amount: 3}, sum)
}
