// Package location acquires device position fixes and watches for movement.
package location

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/thelewala-agent/internal/domain"
)

// Provider errors. Providers return these (optionally wrapped) so the source
// can report a typed reason.
var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrTimeout          = errors.New("location request timed out")
	ErrUnavailable      = errors.New("location unavailable")
)

// Provider reads the device's position once.
type Provider interface {
	CurrentPosition(ctx context.Context, highAccuracy bool) (domain.PositionSample, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, highAccuracy bool) (domain.PositionSample, error)

func (f ProviderFunc) CurrentPosition(ctx context.Context, highAccuracy bool) (domain.PositionSample, error) {
	return f(ctx, highAccuracy)
}

// StaticProvider reports a configured coordinate. Used for fixed stalls and kiosks.
type StaticProvider struct {
	Point    domain.GeoPoint
	Accuracy float64
	Now      func() time.Time
}

func (p StaticProvider) CurrentPosition(ctx context.Context, _ bool) (domain.PositionSample, error) {
	if err := ctx.Err(); err != nil {
		return domain.PositionSample{}, err
	}
	if p.Point.IsZero() {
		return domain.PositionSample{}, ErrUnavailable
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return domain.PositionSample{
		Longitude:  p.Point.Longitude,
		Latitude:   p.Point.Latitude,
		Accuracy:   p.Accuracy,
		CapturedAt: now(),
	}, nil
}
