package broker

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/payword/internal/protocol"
)

// Handler exposes GET_IDENTITY and account balances.
type Handler struct {
	service *Service
}

// NewHandler constructs a broker handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// IdentityResponse is the GET_IDENTITY body.
type IdentityResponse struct {
	protocol.Response
	Identity  string `json:"identity"`
	Name      string `json:"name"`
	PublicKey []byte `json:"public_key"`
	Scheme    string `json:"scheme"`
	Hash      string `json:"hash"`
}

// Identity publishes the broker identity and public key.
func (h *Handler) Identity(c *fiber.Ctx) error {
	info := h.service.Info()
	return c.JSON(IdentityResponse{
		Response:  protocol.ResponseFor(nil),
		Identity:  info.Identity.Hex(),
		Name:      info.Identity.String(),
		PublicKey: info.PublicKey,
		Scheme:    info.Scheme,
		Hash:      info.Hash,
	})
}

// BalanceResponse is the account balance body.
type BalanceResponse struct {
	protocol.Response
	AccountNumber int64 `json:"account_number"`
	Balance       int64 `json:"balance"`
}

// Balance reports the balance of the account in the path.
func (h *Handler) Balance(c *fiber.Ctx) error {
	number, err := strconv.ParseInt(c.Params("number"), 10, 64)
	if err != nil {
		err = protocol.ErrMalformedMessage
		return c.Status(protocol.HTTPStatus(err)).JSON(BalanceResponse{Response: protocol.Rejected(err)})
	}
	balance, err := h.service.Balance(c.UserContext(), number)
	if err != nil {
		return c.Status(protocol.HTTPStatus(err)).JSON(BalanceResponse{Response: protocol.Rejected(err), AccountNumber: number})
	}
	return c.JSON(BalanceResponse{Response: protocol.ResponseFor(nil), AccountNumber: number, Balance: balance})
}
