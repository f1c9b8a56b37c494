package registry

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/payword/internal/protocol"
)

// Handler exposes REGISTER_USER and REGISTER_VENDOR.
type Handler struct {
	service *Service
}

// NewHandler constructs a registry handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerResponse struct {
	protocol.Response
	Identity      string `json:"identity,omitempty"`
	AccountNumber int64  `json:"account_number,omitempty"`
	CreditLimit   int64  `json:"credit_limit,omitempty"`
	Certificate   []byte `json:"certificate,omitempty"`
}

// RegisterUser registers a user and returns a freshly issued certificate.
func (h *Handler) RegisterUser(c *fiber.Ctx) error {
	reg, err := ParseRegistration(KindUser, c.Body())
	if err != nil {
		return fail(c, err)
	}
	rec, err := h.service.Register(c.UserContext(), reg)
	if err != nil {
		return fail(c, err)
	}
	cert, err := h.service.Certify(c.UserContext(), rec.Identity)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(registerResponse{
		Response:      protocol.ResponseFor(nil),
		Identity:      rec.Identity.Hex(),
		AccountNumber: rec.AccountNumber,
		CreditLimit:   rec.CreditLimit,
		Certificate:   cert.Marshal(),
	})
}

// RegisterVendor registers a vendor.
func (h *Handler) RegisterVendor(c *fiber.Ctx) error {
	reg, err := ParseRegistration(KindVendor, c.Body())
	if err != nil {
		return fail(c, err)
	}
	rec, err := h.service.Register(c.UserContext(), reg)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(registerResponse{
		Response:      protocol.ResponseFor(nil),
		Identity:      rec.Identity.Hex(),
		AccountNumber: rec.AccountNumber,
	})
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(protocol.HTTPStatus(err)).JSON(registerResponse{Response: protocol.Rejected(err)})
}
