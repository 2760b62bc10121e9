package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/thelewala-agent/internal/api/dto"
	"github.com/spec-kit/thelewala-agent/internal/domain"
	"github.com/spec-kit/thelewala-agent/internal/service"
	apperrors "github.com/spec-kit/thelewala-agent/pkg/util/errorutil"
)

// SubscriptionsHandler exposes the customer's subscription ledger.
type SubscriptionsHandler struct {
	ledger *service.SubscriptionService
}

// NewSubscriptionsHandler constructs handler.
func NewSubscriptionsHandler(ledger *service.SubscriptionService) *SubscriptionsHandler {
	return &SubscriptionsHandler{ledger: ledger}
}

// List GET /subscriptions.
func (h *SubscriptionsHandler) List(c *fiber.Ctx) error {
	records, err := h.ledger.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SubscriptionListResponse{Subscriptions: records, Count: len(records)}})
}

// Create POST /subscriptions.
func (h *SubscriptionsHandler) Create(c *fiber.Ctx) error {
	var req dto.SubscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload")
	}
	rec, added, err := h.ledger.Subscribe(c.UserContext(), domain.SubscriptionRecord{
		VendorID:      req.VendorID,
		Name:          req.Name,
		DistanceLabel: req.DistanceLabel,
		Description:   req.Description,
		ImageURL:      req.ImageURL,
	})
	if err != nil {
		return err
	}
	return subscribed(c, rec, added)
}

// SubscribeNearby POST /subscriptions/:vendorId subscribes to a vendor from
// the nearby directory.
func (h *SubscriptionsHandler) SubscribeNearby(c *fiber.Ctx) error {
	rec, added, err := h.ledger.SubscribeFromDirectory(c.UserContext(), c.Params("vendorId"))
	if err != nil {
		return err
	}
	return subscribed(c, rec, added)
}

// subscribed answers 201 for a new entry and 200 for a repeat.
func subscribed(c *fiber.Ctx, rec domain.SubscriptionRecord, added bool) error {
	if !added {
		return c.JSON(fiber.Map{"data": rec, "message": service.MsgAlreadySubscribed})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": rec})
}

// Delete DELETE /subscriptions/:vendorId.
func (h *SubscriptionsHandler) Delete(c *fiber.Ctx) error {
	if err := h.ledger.Unsubscribe(c.UserContext(), c.Params("vendorId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Clear DELETE /subscriptions.
func (h *SubscriptionsHandler) Clear(c *fiber.Ctx) error {
	if err := h.ledger.Clear(c.UserContext()); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
