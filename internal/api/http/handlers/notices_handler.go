package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/thelewala-agent/internal/observability"
	"github.com/spec-kit/thelewala-agent/internal/service"
)

// NoticesHandler serves pending notices and bridge metrics.
type NoticesHandler struct {
	notices *service.NotificationService
	metrics *observability.Metrics
}

func NewNoticesHandler(notices *service.NotificationService, metrics *observability.Metrics) *NoticesHandler {
	return &NoticesHandler{notices: notices, metrics: metrics}
}

// List GET /notices. With ?drain=true the returned notices are forgotten.
func (h *NoticesHandler) List(c *fiber.Ctx) error {
	var notices []service.Notice
	if c.QueryBool("drain") {
		notices = h.notices.Drain()
	} else {
		notices = h.notices.Notices()
	}
	if notices == nil {
		notices = []service.Notice{}
	}
	return c.JSON(fiber.Map{"data": notices})
}

// Metrics GET /metrics.
func (h *NoticesHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}
