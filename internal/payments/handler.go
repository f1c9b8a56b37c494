package payments

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/payword/internal/commitment"
	"github.com/congo-pay/payword/internal/protocol"
)

// Handler exposes the vendor's SEND_COMMIT, SEND_PAYMENT and END operations.
type Handler struct {
	tracker *Tracker
}

// NewHandler constructs a payment handler.
func NewHandler(tracker *Tracker) *Handler {
	return &Handler{tracker: tracker}
}

type commitResponse struct {
	protocol.Response
	Session       string `json:"session,omitempty"`
	Identity      string `json:"identity,omitempty"`
	AccountNumber int64  `json:"account_number,omitempty"`
	CreditLimit   int64  `json:"credit_limit,omitempty"`
}

// Commit accepts a user's signed commitment and hands back the session token
// later payments must carry.
func (h *Handler) Commit(c *fiber.Ctx) error {
	commit, err := commitment.Parse(c.Body())
	if err != nil {
		return reply(c, err, commitResponse{Response: protocol.ResponseFor(err)})
	}
	grant, err := h.tracker.Commit(c.UserContext(), commit)
	if err != nil {
		return reply(c, err, commitResponse{Response: protocol.ResponseFor(err)})
	}
	return reply(c, nil, commitResponse{
		Response:      protocol.ResponseFor(nil),
		Session:       grant.Token,
		Identity:      grant.Holder.Identity.Hex(),
		AccountNumber: grant.Holder.AccountNumber,
		CreditLimit:   grant.Holder.CreditLimit,
	})
}

type paymentResponse struct {
	protocol.Response
	Index        int32 `json:"index"`
	Denomination int32 `json:"denomination"`
	Value        int64 `json:"value"`
}

// Pay accepts the next payment link from the user named in the path.
func (h *Handler) Pay(c *fiber.Ctx) error {
	user, err := protocol.ParseIdentityHex(c.Params("identity"))
	if err != nil {
		return reply(c, err, paymentResponse{Response: protocol.ResponseFor(err)})
	}
	link, err := ParseLink(c.Body())
	if err != nil {
		return reply(c, err, paymentResponse{Response: protocol.ResponseFor(err)})
	}
	receipt, err := h.tracker.Accept(c.UserContext(), user, c.Get(protocol.SessionHeader), link)
	return reply(c, err, paymentResponse{
		Response:     protocol.ResponseFor(err),
		Index:        receipt.Index,
		Denomination: int32(receipt.Denomination),
		Value:        receipt.Value,
	})
}

type endResponse struct {
	protocol.Response
	Queued int `json:"queued"`
}

// End closes the user's episode and queues its chains for redemption.
func (h *Handler) End(c *fiber.Ctx) error {
	user, err := protocol.ParseIdentityHex(c.Params("identity"))
	if err != nil {
		return reply(c, err, endResponse{Response: protocol.ResponseFor(err)})
	}
	queued, err := h.tracker.Close(user, c.Get(protocol.SessionHeader))
	return reply(c, err, endResponse{Response: protocol.ResponseFor(err), Queued: queued})
}

func reply(c *fiber.Ctx, err error, body any) error {
	return c.Status(protocol.HTTPStatus(err)).JSON(body)
}
