package location

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spec-kit/thelewala-agent/internal/domain"
	apperrors "github.com/spec-kit/thelewala-agent/pkg/util/errorutil"
)

func reasonOf(err error) string {
	de := apperrors.ToDomainError(err)
	if de == nil || de.Details == nil {
		return ""
	}
	reason, _ := de.Details["reason"].(string)
	return reason
}

func TestSource_CurrentFixTypedErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		reason string
	}{
		{"denied", ErrPermissionDenied, ReasonPermissionDenied},
		{"timeout", ErrTimeout, ReasonTimeout},
		{"unavailable", ErrUnavailable, ReasonUnavailable},
		{"other", errors.New("gps off"), ReasonUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := NewSource(ProviderFunc(func(context.Context, bool) (domain.PositionSample, error) {
				return domain.PositionSample{}, tc.err
			}), nil)
			_, err := src.CurrentFix(context.Background(), FixOptions{})
			if !apperrors.HasCode(err, apperrors.CodeLocationUnavailable) || reasonOf(err) != tc.reason {
				t.Errorf("err = %v, reason = %q, want %q", err, reasonOf(err), tc.reason)
			}
		})
	}
}

func TestSource_CurrentFixDeadline(t *testing.T) {
	src := NewSource(ProviderFunc(func(ctx context.Context, _ bool) (domain.PositionSample, error) {
		<-ctx.Done()
		return domain.PositionSample{}, ctx.Err()
	}), nil)

	_, err := src.CurrentFix(context.Background(), FixOptions{Timeout: 20 * time.Millisecond})
	if reasonOf(err) != ReasonTimeout {
		t.Errorf("err = %v, want timeout", err)
	}
}

func TestSource_ZeroCoordinateIsUnavailable(t *testing.T) {
	src := NewSource(ProviderFunc(func(context.Context, bool) (domain.PositionSample, error) {
		return domain.PositionSample{CapturedAt: time.Now()}, nil
	}), nil)

	_, err := src.CurrentFix(context.Background(), FixOptions{})
	if reasonOf(err) != ReasonUnavailable {
		t.Errorf("err = %v, want unavailable", err)
	}
	if _, ok := src.LastKnown(); ok {
		t.Error("zero fix must not be cached")
	}
}

func TestSource_CachedFixReused(t *testing.T) {
	var calls int32
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	src := NewSource(ProviderFunc(func(context.Context, bool) (domain.PositionSample, error) {
		atomic.AddInt32(&calls, 1)
		return domain.PositionSample{Longitude: 77.59, Latitude: 12.97, CapturedAt: now}, nil
	}), nil)
	src.now = func() time.Time { return now }

	opts := FixOptions{MaxCachedAge: 10 * time.Second}
	if _, err := src.CurrentFix(context.Background(), opts); err != nil {
		t.Fatalf("CurrentFix: %v", err)
	}

	now = now.Add(5 * time.Second)
	if _, err := src.CurrentFix(context.Background(), opts); err != nil {
		t.Fatalf("CurrentFix: %v", err)
	}
	if calls != 1 {
		t.Errorf("provider calls = %d, want 1 (cached)", calls)
	}

	now = now.Add(10 * time.Second)
	_, _ = src.CurrentFix(context.Background(), opts)
	if calls != 2 {
		t.Errorf("provider calls = %d, want 2 (stale cache)", calls)
	}
}

func TestStaticProvider(t *testing.T) {
	p := StaticProvider{Point: domain.GeoPoint{Longitude: 77.59, Latitude: 12.97}, Accuracy: 5}
	sample, err := p.CurrentPosition(context.Background(), true)
	if err != nil || sample.Latitude != 12.97 || sample.CapturedAt.IsZero() {
		t.Errorf("sample = %+v, %v", sample, err)
	}

	if _, err := (StaticProvider{}).CurrentPosition(context.Background(), true); !errors.Is(err, ErrUnavailable) {
		t.Errorf("unconfigured provider err = %v", err)
	}
}

// scriptedProvider replays positions, repeating the last one.
type scriptedProvider struct {
	mu     sync.Mutex
	points []domain.GeoPoint
	i      int
}

func (p *scriptedProvider) CurrentPosition(context.Context, bool) (domain.PositionSample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pt := p.points[p.i]
	if p.i < len(p.points)-1 {
		p.i++
	}
	return domain.PositionSample{Longitude: pt.Longitude, Latitude: pt.Latitude, CapturedAt: time.Now()}, nil
}

func TestSource_WatchAppliesDistanceFilter(t *testing.T) {
	base := domain.GeoPoint{Longitude: 77.5946, Latitude: 12.9716}
	provider := &scriptedProvider{points: []domain.GeoPoint{
		base,
		{Longitude: base.Longitude, Latitude: base.Latitude + 0.00001}, // ~1 m
		{Longitude: base.Longitude, Latitude: base.Latitude + 0.001},   // ~111 m
	}}
	src := NewSource(provider, nil)

	samples := make(chan domain.PositionSample, 10)
	h := src.Watch(context.Background(), WatchOptions{DistanceFilter: 10, Interval: 5 * time.Millisecond},
		func(s domain.PositionSample) { samples <- s }, nil)

	first := <-samples
	if first.Latitude != base.Latitude {
		t.Errorf("first sample = %+v", first)
	}
	select {
	case second := <-samples:
		if second.Latitude != base.Latitude+0.001 {
			t.Errorf("second sample = %+v, small move should be filtered", second)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no sample after a large move")
	}

	h.Cancel()
	h.Cancel()
	select {
	case <-h.Done():
	default:
		t.Error("watch loop still running after Cancel")
	}
}

func TestSource_WatchStopsWithContext(t *testing.T) {
	src := NewSource(StaticProvider{Point: domain.GeoPoint{Longitude: 1, Latitude: 1}}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	var delivered int32
	h := src.Watch(ctx, WatchOptions{Interval: time.Millisecond}, func(domain.PositionSample) {
		atomic.AddInt32(&delivered, 1)
	}, nil)
	cancel()

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop with its context")
	}
	if atomic.LoadInt32(&delivered) > 1 {
		t.Errorf("static position delivered %d times, want at most 1", delivered)
	}
}
