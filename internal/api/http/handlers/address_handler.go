package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/thelewala-agent/internal/api/dto"
)

// AddressRegistrar saves the device's current location as an address.
type AddressRegistrar interface {
	RegisterCurrentAddress(ctx context.Context) (dto.RegisterAddressResponse, error)
}

// AddressHandler exposes address registration.
type AddressHandler struct {
	addresses AddressRegistrar
}

func NewAddressHandler(addresses AddressRegistrar) *AddressHandler {
	return &AddressHandler{addresses: addresses}
}

// Register POST /address.
func (h *AddressHandler) Register(c *fiber.Ctx) error {
	resp, err := h.addresses.RegisterCurrentAddress(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"data":    resp,
		"message": "Location saved successfully",
	})
}
