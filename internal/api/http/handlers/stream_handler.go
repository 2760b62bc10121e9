package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/thelewala-agent/internal/api/dto"
	"github.com/spec-kit/thelewala-agent/internal/domain"
	"github.com/spec-kit/thelewala-agent/internal/service"
)

// PresenceController is the presence service as driven by the UI.
type PresenceController interface {
	Connect(ctx context.Context) error
	StartStreaming(ctx context.Context) error
	StopStreaming(ctx context.Context) error
	Refresh(ctx context.Context) ([]domain.ProximityRecord, error)
	Records() []domain.ProximityRecord
	Points() []domain.GeoPoint
	Status() service.PresenceStatus
}

// SubscriptionChecker marks directory rows the customer already follows.
type SubscriptionChecker interface {
	IsSubscribed(ctx context.Context, vendorID string) (bool, error)
}

// StreamHandler exposes presence streaming and the nearby directory.
type StreamHandler struct {
	presence PresenceController
	ledger   SubscriptionChecker
}

// NewStreamHandler constructs handler. ledger may be nil for vendors.
func NewStreamHandler(presence PresenceController, ledger SubscriptionChecker) *StreamHandler {
	return &StreamHandler{presence: presence, ledger: ledger}
}

// Connect handles POST /stream/connect.
func (h *StreamHandler) Connect(c *fiber.Ctx) error {
	if err := h.presence.Connect(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.status()})
}

// Start handles POST /stream/start.
func (h *StreamHandler) Start(c *fiber.Ctx) error {
	if err := h.presence.StartStreaming(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.status()})
}

// Stop handles POST /stream/stop.
func (h *StreamHandler) Stop(c *fiber.Ctx) error {
	_ = h.presence.StopStreaming(c.UserContext())
	return c.JSON(fiber.Map{"data": h.status()})
}

// Status handles GET /stream.
func (h *StreamHandler) Status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.status()})
}

// Refresh handles POST /stream/refresh.
func (h *StreamHandler) Refresh(c *fiber.Ctx) error {
	records, err := h.presence.Refresh(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.directory(c.UserContext(), records)})
}

// Directory handles GET /directory.
func (h *StreamHandler) Directory(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.directory(c.UserContext(), h.presence.Records())})
}

// Points handles GET /directory/points.
func (h *StreamHandler) Points(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dto.PointsResponse{Points: h.presence.Points()}})
}

func (h *StreamHandler) status() dto.StreamResponse {
	st := h.presence.Status()
	return dto.StreamResponse{Streaming: st.Streaming, ChannelState: st.ChannelState, ClientID: st.ClientID}
}

func (h *StreamHandler) directory(ctx context.Context, records []domain.ProximityRecord) dto.DirectoryResponse {
	rows := make([]dto.DirectoryRecord, 0, len(records))
	for _, rec := range records {
		row := dto.DirectoryRecord{ProximityRecord: rec, DistanceLabel: rec.DistanceLabel()}
		if h.ledger != nil {
			// a ledger read failure only loses the badge
			row.Subscribed, _ = h.ledger.IsSubscribed(ctx, rec.CounterpartyID)
		}
		rows = append(rows, row)
	}
	return dto.DirectoryResponse{Records: rows, Count: len(rows)}
}
