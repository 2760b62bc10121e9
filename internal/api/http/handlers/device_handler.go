package handlers

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/thelewala-agent/pkg/util/errorutil"
)

// DeviceLock gates credentials stored as accessible only while unlocked.
type DeviceLock interface {
	Lock()
	Unlock(passphrase string) error
	Locked() bool
}

type unlockRequest struct {
	Passphrase string `json:"passphrase"`
}

// DeviceHandler locks and unlocks the credential keyring.
type DeviceHandler struct {
	lock DeviceLock
}

func NewDeviceHandler(lock DeviceLock) *DeviceHandler {
	return &DeviceHandler{lock: lock}
}

// Status handles GET /device.
func (h *DeviceHandler) Status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": fiber.Map{"locked": h.lock.Locked()}})
}

// Lock handles POST /device/lock.
func (h *DeviceHandler) Lock(c *fiber.Ctx) error {
	h.lock.Lock()
	return c.JSON(fiber.Map{"data": fiber.Map{"locked": true}})
}

// Unlock handles POST /device/unlock.
func (h *DeviceHandler) Unlock(c *fiber.Ctx) error {
	var req unlockRequest
	if err := c.BodyParser(&req); err != nil || req.Passphrase == "" {
		return apperrors.NewInvalidInput("passphrase is required")
	}
	if err := h.lock.Unlock(req.Passphrase); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"locked": false}})
}
