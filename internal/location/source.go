package location

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/thelewala-agent/internal/domain"
	apperrors "github.com/spec-kit/thelewala-agent/pkg/util/errorutil"
)

// Defaults match the mobile client's geolocation options.
const (
	DefaultFixTimeout     = 15 * time.Second
	DefaultMaxCachedAge   = 10 * time.Second
	DefaultDistanceFilter = 10.0
	DefaultWatchInterval  = 5 * time.Second
)

// Failure reasons carried in LocationUnavailable details.
const (
	ReasonPermissionDenied = "permission_denied"
	ReasonTimeout          = "timeout"
	ReasonUnavailable      = "unavailable"
)

// FixOptions tunes a one-shot fix.
type FixOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaxCachedAge time.Duration
}

// WatchOptions tunes continuous watching.
type WatchOptions struct {
	HighAccuracy   bool
	DistanceFilter float64
	Interval       time.Duration
}

// Source wraps a Provider with caching and typed errors.
type Source struct {
	provider Provider
	logger   *zap.Logger
	now      func() time.Time

	mu   sync.Mutex
	last *domain.PositionSample
}

// NewSource builds a source over provider.
func NewSource(provider Provider, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{provider: provider, logger: logger.Named("location"), now: time.Now}
}

// CurrentFix returns a position sample. A cached sample younger than
// MaxCachedAge is reused. A (0,0) reading is reported as unavailable.
func (s *Source) CurrentFix(ctx context.Context, opts FixOptions) (domain.PositionSample, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultFixTimeout
	}

	if opts.MaxCachedAge > 0 {
		s.mu.Lock()
		cached := s.last
		s.mu.Unlock()
		if cached != nil && s.now().Sub(cached.CapturedAt) <= opts.MaxCachedAge {
			return *cached, nil
		}
	}

	fixCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	sample, err := s.provider.CurrentPosition(fixCtx, opts.HighAccuracy)
	if err != nil {
		return domain.PositionSample{}, s.classify(ctx, fixCtx, err)
	}
	if sample.Point().IsZero() {
		return domain.PositionSample{}, apperrors.NewLocationUnavailable(ReasonUnavailable, ErrUnavailable)
	}
	if sample.CapturedAt.IsZero() {
		sample.CapturedAt = s.now()
	}

	s.mu.Lock()
	s.last = &sample
	s.mu.Unlock()
	return sample, nil
}

// LastKnown returns the most recent successful sample.
func (s *Source) LastKnown() (domain.PositionSample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return domain.PositionSample{}, false
	}
	return *s.last, true
}

func (s *Source) classify(parent, fixCtx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return apperrors.NewLocationUnavailable(ReasonPermissionDenied, err)
	case errors.Is(err, ErrTimeout):
		return apperrors.NewLocationUnavailable(ReasonTimeout, err)
	case parent.Err() != nil:
		return parent.Err()
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(fixCtx.Err(), context.DeadlineExceeded):
		return apperrors.NewLocationUnavailable(ReasonTimeout, err)
	default:
		return apperrors.NewLocationUnavailable(ReasonUnavailable, err)
	}
}

// WatchHandle stops a running watch.
type WatchHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Cancel stops the watch and waits for its loop to exit. Safe to call more
// than once; only the first call releases the watch.
func (h *WatchHandle) Cancel() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		h.cancel()
		<-h.done
	})
}

// Done is closed when the watch loop has exited.
func (h *WatchHandle) Done() <-chan struct{} {
	return h.done
}

// Watch polls the provider until ctx ends or the handle is cancelled. The
// first sample is always delivered; later samples only once the position has
// moved at least DistanceFilter meters from the last delivered one.
func (s *Source) Watch(ctx context.Context, opts WatchOptions, onSample func(domain.PositionSample), onError func(error)) *WatchHandle {
	if opts.Interval <= 0 {
		opts.Interval = DefaultWatchInterval
	}
	if opts.DistanceFilter < 0 {
		opts.DistanceFilter = 0
	}

	watchCtx, cancel := context.WithCancel(ctx)
	h := &WatchHandle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		ticker := time.NewTicker(opts.Interval)
		defer ticker.Stop()

		var delivered *domain.GeoPoint
		poll := func() {
			sample, err := s.CurrentFix(watchCtx, FixOptions{HighAccuracy: opts.HighAccuracy, Timeout: opts.Interval})
			if watchCtx.Err() != nil {
				return
			}
			if err != nil {
				if onError != nil {
					onError(err)
				}
				return
			}
			point := sample.Point()
			if delivered != nil && domain.DistanceMeters(*delivered, point) < opts.DistanceFilter {
				return
			}
			delivered = &point
			onSample(sample)
		}

		poll()
		for {
			select {
			case <-watchCtx.Done():
				return
			case <-ticker.C:
				poll()
			}
		}
	}()

	return h
}
