package redeem

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/payword/internal/payments"
	"github.com/congo-pay/payword/internal/protocol"
)

// Handler exposes the broker's REDEEM operation.
type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

type redeemResponse struct {
	protocol.Response
	Root          string `json:"root,omitempty"`
	Amount        int64  `json:"amount,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// Redeem settles one redeem request. Failures are always REJECTED: the broker
// does not hold a session with the vendor that fraud could terminate.
func (h *Handler) Redeem(c *fiber.Ctx) error {
	req, err := payments.ParseRedeemRequest(c.Body())
	if err != nil {
		return c.Status(protocol.HTTPStatus(err)).JSON(redeemResponse{Response: protocol.Rejected(err)})
	}
	out, err := h.engine.Redeem(c.UserContext(), req)
	if err != nil {
		return c.Status(protocol.HTTPStatus(err)).JSON(redeemResponse{Response: protocol.Rejected(err)})
	}
	return c.JSON(redeemResponse{
		Response:      protocol.ResponseFor(nil),
		Root:          out.Root.String(),
		Amount:        out.Amount,
		TransactionID: out.TransactionID,
	})
}
