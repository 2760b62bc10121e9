package service

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/thelewala-agent/internal/domain"
	"github.com/spec-kit/thelewala-agent/internal/events"
	"github.com/spec-kit/thelewala-agent/internal/location"
	"github.com/spec-kit/thelewala-agent/internal/proximity"
	"github.com/spec-kit/thelewala-agent/internal/realtime"
	apperrors "github.com/spec-kit/thelewala-agent/pkg/util/errorutil"
)

// PresenceChannel is the realtime channel as seen by the presence service.
type PresenceChannel interface {
	Open(ctx context.Context) error
	StartStreaming(ctx context.Context, sample domain.PositionSample) error
	Report(ctx context.Context, sample domain.PositionSample) error
	StopStreaming(ctx context.Context, last *domain.PositionSample) error
	Close(ctx context.Context)
	State() realtime.State
	ClientID() string
	OnNearby(fn func(json.RawMessage))
	OnClosed(fn func(error))
}

// PresenceOptions tunes the fixes taken by the presence service.
type PresenceOptions struct {
	Fix   location.FixOptions
	Watch location.WatchOptions
}

// PresenceStatus summarizes the presence state for the UI.
type PresenceStatus struct {
	Streaming    bool
	ChannelState string
	ClientID     string
}

type streamPhase int

const (
	phaseIdle streamPhase = iota
	phaseStarting
	phaseStreaming
)

// PresenceService ties the position source, the realtime channel and the
// proximity directory together for one signed-in actor.
type PresenceService struct {
	role      domain.ActorRole
	channel   PresenceChannel
	directory *proximity.Directory
	source    *location.Source
	opts      PresenceOptions
	events    events.Dispatcher
	logger    *zap.Logger

	mu    sync.Mutex
	phase streamPhase
	watch *location.WatchHandle
}

// NewPresenceService wires channel pushes into directory.
func NewPresenceService(role domain.ActorRole, channel PresenceChannel, directory *proximity.Directory, source *location.Source, opts PresenceOptions, dispatcher events.Dispatcher, logger *zap.Logger) *PresenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &PresenceService{
		role:      role,
		channel:   channel,
		directory: directory,
		source:    source,
		opts:      opts,
		events:    dispatcher,
		logger:    logger.Named("presence").With(zap.String("role", string(role))),
	}
	channel.OnNearby(directory.ApplyNearbyPayload)
	channel.OnClosed(p.handleChannelClosed)
	return p
}

// Connect opens the channel. A customer also starts accepting nearby pushes
// and reports its position once, so vendors arrive without a stream.
func (p *PresenceService) Connect(ctx context.Context) error {
	if err := p.channel.Open(ctx); err != nil {
		return err
	}
	if p.role != domain.RoleCustomer {
		return nil
	}
	p.directory.Activate()
	sample, err := p.source.CurrentFix(ctx, p.opts.Fix)
	if err != nil {
		p.logger.Warn("initial position unavailable", zap.Error(err))
		return nil
	}
	if err := p.channel.Report(ctx, sample); err != nil {
		p.logger.Warn("initial position report failed", zap.Error(err))
	}
	return nil
}

// StartStreaming broadcasts the local position until stopped. Calling it
// while already streaming is a no-op.
func (p *PresenceService) StartStreaming(ctx context.Context) error {
	p.mu.Lock()
	if p.phase != phaseIdle {
		p.mu.Unlock()
		return nil
	}
	p.phase = phaseStarting
	p.mu.Unlock()

	sample, err := p.start(ctx)
	if err != nil {
		p.mu.Lock()
		if p.phase == phaseStarting {
			p.phase = phaseIdle
		}
		p.mu.Unlock()
		return err
	}

	watch := p.source.Watch(context.Background(), p.opts.Watch, p.report, func(err error) {
		p.logger.Warn("position watch error", zap.Error(err))
	})

	p.mu.Lock()
	if p.phase != phaseStarting {
		// stopped while starting
		p.mu.Unlock()
		watch.Cancel()
		p.channel.Close(ctx)
		p.directory.Deactivate()
		return apperrors.NewChannelError("Streaming was stopped.", nil)
	}
	p.phase = phaseStreaming
	p.watch = watch
	p.mu.Unlock()

	p.logger.Info("streaming started")
	p.publish(ctx, events.EventStreamStarted, events.StreamPayload{Longitude: sample.Longitude, Latitude: sample.Latitude})
	return nil
}

func (p *PresenceService) start(ctx context.Context) (domain.PositionSample, error) {
	sample, err := p.source.CurrentFix(ctx, p.opts.Fix)
	if err != nil {
		return domain.PositionSample{}, err
	}
	if err := p.channel.Open(ctx); err != nil {
		return domain.PositionSample{}, err
	}

	p.directory.Activate()
	if p.role == domain.RoleVendor {
		if _, err := p.directory.Pull(ctx, sample.Point()); err != nil {
			p.logger.Warn("customer locations unavailable", zap.Error(err))
		}
	}

	if err := p.channel.StartStreaming(ctx, sample); err != nil {
		p.directory.Deactivate()
		return domain.PositionSample{}, err
	}
	return sample, nil
}

func (p *PresenceService) report(sample domain.PositionSample) {
	if err := p.channel.Report(context.Background(), sample); err != nil {
		p.logger.Debug("position report dropped", zap.Error(err))
	}
}

// StopStreaming cancels the watch, sends the stop message best-effort and
// empties the directory, in that order. It always succeeds.
func (p *PresenceService) StopStreaming(ctx context.Context) error {
	p.mu.Lock()
	wasStreaming := p.phase == phaseStreaming
	watch := p.watch
	p.watch = nil
	p.phase = phaseIdle
	p.mu.Unlock()

	watch.Cancel()

	if wasStreaming {
		var last *domain.PositionSample
		if sample, ok := p.source.LastKnown(); ok {
			last = &sample
		}
		if err := p.channel.StopStreaming(ctx, last); err != nil {
			p.logger.Warn("stop message failed", zap.Error(err))
		}
	} else {
		p.channel.Close(ctx)
	}

	p.directory.Deactivate()

	if wasStreaming {
		p.logger.Info("streaming stopped")
		p.publish(ctx, events.EventStreamStopped, events.StreamPayload{Reason: "user"})
	}
	return nil
}

// Refresh pulls customer locations on demand. Vendors only.
func (p *PresenceService) Refresh(ctx context.Context) ([]domain.ProximityRecord, error) {
	if p.role != domain.RoleVendor {
		return nil, apperrors.NewInvalidInput("Only vendors can refresh customer locations.")
	}
	if !p.directory.Active() {
		return nil, apperrors.NewInvalidInput("Start selling to see nearby customers.")
	}
	origin, ok := p.source.LastKnown()
	if !ok {
		var err error
		origin, err = p.source.CurrentFix(ctx, p.opts.Fix)
		if err != nil {
			return nil, err
		}
	}
	return p.directory.Pull(ctx, origin.Point())
}

// Shutdown stops streaming and closes the channel. Registered as the
// session's sign-out hook.
func (p *PresenceService) Shutdown(ctx context.Context) {
	_ = p.StopStreaming(ctx)
}

// Points is the map projection of the directory.
func (p *PresenceService) Points() []domain.GeoPoint {
	return p.directory.Project()
}

// Records lists nearby counterparties, nearest first.
func (p *PresenceService) Records() []domain.ProximityRecord {
	return p.directory.Records()
}

// Streaming reports whether a stream is running.
func (p *PresenceService) Streaming() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase == phaseStreaming
}

// Status reports streaming and channel state.
func (p *PresenceService) Status() PresenceStatus {
	return PresenceStatus{
		Streaming:    p.Streaming(),
		ChannelState: p.channel.State().String(),
		ClientID:     p.channel.ClientID(),
	}
}

// handleChannelClosed runs when the channel closes on its own, after
// reconnection gave up. The stream ends and the directory empties.
func (p *PresenceService) handleChannelClosed(cause error) {
	p.mu.Lock()
	wasStreaming := p.phase == phaseStreaming
	watch := p.watch
	p.watch = nil
	if p.phase == phaseStreaming {
		p.phase = phaseIdle
	}
	p.mu.Unlock()

	watch.Cancel()
	p.directory.Deactivate()

	if wasStreaming {
		p.logger.Warn("stream ended by transport", zap.Error(cause))
		p.publish(context.Background(), events.EventStreamStopped, events.StreamPayload{Reason: "transport"})
	}
}

func (p *PresenceService) publish(ctx context.Context, eventType events.EventType, payload events.StreamPayload) {
	if p.events == nil {
		return
	}
	_ = p.events.Publish(ctx, events.NewEvent(eventType, p.role, payload))
}
