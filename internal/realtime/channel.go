package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/spec-kit/thelewala-agent/internal/domain"
	"github.com/spec-kit/thelewala-agent/internal/events"
	"github.com/spec-kit/thelewala-agent/internal/observability"
	apperrors "github.com/spec-kit/thelewala-agent/pkg/util/errorutil"
)

// State is the channel's connection state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "idle"
	}
}

// StopCause records why the channel last left a live state. A user stop
// suppresses reconnection; a transport stop may trigger it.
type StopCause int

const (
	CauseNone StopCause = iota
	CauseUser
	CauseTransport
)

func (c StopCause) String() string {
	switch c {
	case CauseUser:
		return "user"
	case CauseTransport:
		return "transport"
	default:
		return ""
	}
}

// TokenSource returns the bearer token presented at connect time.
type TokenSource func(ctx context.Context) (string, error)

// Options configures a Channel.
type Options struct {
	URL                  string
	Role                 domain.ActorRole
	Tokens               TokenSource
	HandshakeTimeout     time.Duration
	WriteTimeout         time.Duration
	MaxReconnectAttempts int
	ReconnectInitial     time.Duration
	ReconnectMax         time.Duration
	Logger               *zap.Logger
	Metrics              *observability.Metrics
	Events               events.Dispatcher
}

// Channel is the one realtime connection of a signed-in session.
type Channel struct {
	opts   Options
	dialer *websocket.Dialer
	logger *zap.Logger

	writeMu sync.Mutex

	mu              sync.Mutex
	state           State
	cause           StopCause
	generation      uint64
	conn            *websocket.Conn
	readerDone      chan struct{}
	wantStream      bool
	pending         *domain.PositionSample
	lastSample      *domain.PositionSample
	clientID        string
	cancelReconnect context.CancelFunc
	onNearby        func(json.RawMessage)
	onClosed        func(error)
}

// NewChannel builds an idle channel.
func NewChannel(opts Options) *Channel {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = 5
	}
	if opts.ReconnectInitial <= 0 {
		opts.ReconnectInitial = 500 * time.Millisecond
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = 15 * time.Second
	}
	return &Channel{
		opts:   opts,
		dialer: &websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout, Proxy: http.ProxyFromEnvironment},
		logger: opts.Logger.Named("channel").With(zap.String("role", string(opts.Role))),
	}
}

// OnNearby registers the receiver of nearbyVendorsUpdate payloads.
func (c *Channel) OnNearby(fn func(json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onNearby = fn
}

// OnClosed registers a callback for closures the caller did not request.
func (c *Channel) OnClosed(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClosed = fn
}

// State returns the current state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cause returns why the channel last stopped.
func (c *Channel) Cause() StopCause {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cause
}

// ClientID is the id from the server's welcome frame, for diagnostics.
func (c *Channel) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// Open connects the channel. Opening a channel that is already connecting or
// connected is a no-op.
func (c *Channel) Open(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateConnecting, StateConnected, StateStreaming:
		c.mu.Unlock()
		return nil
	}
	from := c.state
	c.state = StateConnecting
	c.cause = CauseNone
	c.generation++
	gen := c.generation
	c.mu.Unlock()
	c.notifyState(ctx, from, StateConnecting, CauseNone, nil)

	conn, _, err := c.dial(ctx)
	if err != nil {
		c.mu.Lock()
		adopted := c.state == StateConnecting && c.generation == gen
		if adopted {
			c.state = StateClosed
			c.cause = CauseTransport
			c.wantStream = false
			c.pending = nil
		}
		c.mu.Unlock()
		if adopted {
			c.notifyState(ctx, StateConnecting, StateClosed, CauseTransport, err)
		}
		return err
	}

	if !c.adopt(ctx, conn, gen) {
		return apperrors.NewChannelError("Channel was closed while connecting.", nil)
	}
	return nil
}

// StartStreaming begins broadcasting the local position. A vendor announces
// startSelling first.
func (c *Channel) StartStreaming(ctx context.Context, sample domain.PositionSample) error {
	c.mu.Lock()
	switch c.state {
	case StateConnecting:
		c.wantStream = true
		c.pending = &sample
		c.mu.Unlock()
		return nil
	case StateConnected:
		c.wantStream = true
		c.state = StateStreaming
		c.lastSample = &sample
		c.mu.Unlock()
		c.notifyState(ctx, StateConnected, StateStreaming, CauseNone, nil)
		return c.sendStart(sample)
	case StateStreaming:
		c.lastSample = &sample
		c.mu.Unlock()
		return c.sendPosition(periodicEvent(c.opts.Role), sample)
	default:
		c.mu.Unlock()
		return apperrors.NewChannelError("Not connected to the realtime server.", nil)
	}
}

// Report sends a periodic position update. While connecting, only the latest
// sample is kept and sent once connected.
func (c *Channel) Report(_ context.Context, sample domain.PositionSample) error {
	c.mu.Lock()
	switch c.state {
	case StateConnecting:
		c.pending = &sample
		c.mu.Unlock()
		return nil
	case StateConnected, StateStreaming:
		c.lastSample = &sample
		c.mu.Unlock()
		return c.sendPosition(periodicEvent(c.opts.Role), sample)
	default:
		c.mu.Unlock()
		return apperrors.NewChannelError("Not connected to the realtime server.", nil)
	}
}

// StopStreaming announces stopSelling (vendors, best-effort) and closes the
// channel. No reconnection follows.
func (c *Channel) StopStreaming(ctx context.Context, last *domain.PositionSample) error {
	c.mu.Lock()
	c.wantStream = false
	if last == nil {
		last = c.lastSample
	}
	live := c.conn != nil
	c.mu.Unlock()

	var stopErr error
	if live && c.opts.Role == domain.RoleVendor {
		sample := domain.PositionSample{}
		if last != nil {
			sample = *last
		}
		if err := c.sendPosition(EventStopSelling, sample); err != nil {
			c.logger.Warn("stop message not delivered", zap.Error(err))
			stopErr = err
		}
	}

	c.Close(ctx)
	return stopErr
}

// Close is a user stop; no reconnection follows. The reader goroutine has
// exited by the time Close returns.
func (c *Channel) Close(ctx context.Context) {
	c.mu.Lock()
	from := c.state
	c.state = StateClosed
	c.cause = CauseUser
	c.generation++
	c.wantStream = false
	c.pending = nil
	conn := c.conn
	c.conn = nil
	done := c.readerDone
	cancelReconnect := c.cancelReconnect
	c.cancelReconnect = nil
	c.mu.Unlock()

	if cancelReconnect != nil {
		cancelReconnect()
	}
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(c.opts.WriteTimeout))
		c.writeMu.Unlock()
		_ = conn.Close()
		if done != nil {
			<-done
		}
	}
	if from != StateClosed && from != StateIdle {
		c.logger.Info("channel closed", zap.Stringer("from", from))
		c.notifyState(ctx, from, StateClosed, CauseUser, nil)
	}
}

// dial returns permanent=true when retrying cannot help.
func (c *Channel) dial(ctx context.Context) (*websocket.Conn, bool, error) {
	token, err := c.opts.Tokens(ctx)
	if err != nil || token == "" {
		return nil, true, apperrors.NewChannelError("Please sign in to continue.", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := c.dialer.DialContext(ctx, c.opts.URL, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, true, apperrors.NewChannelError("Realtime server rejected the session.", err)
		}
		return nil, false, apperrors.NewChannelError("Unable to reach the realtime server.", err)
	}
	return conn, false, nil
}

// adopt installs conn if the channel is still connecting for the attempt gen
// and flushes any buffered work. It reports false when conn was discarded.
func (c *Channel) adopt(ctx context.Context, conn *websocket.Conn, gen uint64) bool {
	c.mu.Lock()
	if c.state != StateConnecting || c.cause == CauseUser || c.generation != gen {
		c.mu.Unlock()
		_ = conn.Close()
		return false
	}
	done := make(chan struct{})
	c.conn = conn
	c.readerDone = done
	c.state = StateConnected
	c.cause = CauseNone
	pending := c.pending
	c.pending = nil
	if pending == nil {
		pending = c.lastSample
	}
	wantStream := c.wantStream
	c.mu.Unlock()

	go c.readLoop(conn, done)
	c.logger.Info("channel connected")
	c.notifyState(ctx, StateConnecting, StateConnected, CauseNone, nil)

	switch {
	case wantStream && pending != nil:
		if err := c.StartStreaming(ctx, *pending); err != nil {
			c.logger.Warn("unable to resume streaming", zap.Error(err))
		}
	case pending != nil:
		if err := c.Report(ctx, *pending); err != nil {
			c.logger.Warn("unable to flush buffered position", zap.Error(err))
		}
	}
	return true
}

func (c *Channel) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			c.handleDrop(conn, err)
			return
		}
		c.opts.Metrics.RecordFrame("in", frame.Event)
		c.dispatch(frame)
	}
}

func (c *Channel) dispatch(frame Frame) {
	switch frame.Event {
	case EventWelcome:
		var welcome WelcomePayload
		if err := json.Unmarshal(frame.Data, &welcome); err != nil {
			c.logger.Warn("malformed welcome frame", zap.Error(err))
			return
		}
		c.mu.Lock()
		c.clientID = welcome.ClientID
		c.mu.Unlock()
		c.logger.Info("server welcome", zap.String("message", welcome.Message), zap.String("client_id", welcome.ClientID))
	case EventNearbyVendorsUpdate:
		c.mu.Lock()
		fn := c.onNearby
		c.mu.Unlock()
		if fn != nil {
			fn(frame.Data)
		}
	default:
		c.logger.Debug("ignoring frame", zap.String("event", frame.Event))
	}
}

func (c *Channel) handleDrop(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn || c.cause == CauseUser {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	from := c.state

	if from == StateStreaming || c.wantStream {
		ctx, cancel := context.WithCancel(context.Background())
		c.state = StateConnecting
		c.cause = CauseTransport
		c.cancelReconnect = cancel
		c.generation++
		gen := c.generation
		c.mu.Unlock()

		c.logger.Warn("channel dropped while streaming; reconnecting", zap.Error(cause))
		c.notifyState(ctx, from, StateConnecting, CauseTransport, cause)
		go c.reconnect(ctx, gen)
		return
	}

	c.state = StateClosed
	c.cause = CauseTransport
	c.mu.Unlock()

	c.logger.Warn("channel dropped", zap.Error(cause))
	c.closedByTransport(context.Background(), from, cause)
}

func (c *Channel) reconnect(ctx context.Context, gen uint64) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.ReconnectInitial
	b.MaxInterval = c.opts.ReconnectMax

	attempt := 0
	conn, err := backoff.Retry(ctx, func() (*websocket.Conn, error) {
		attempt++
		c.opts.Metrics.RecordReconnect()
		conn, permanent, err := c.dial(ctx)
		if err != nil && permanent {
			return nil, backoff.Permanent(err)
		}
		return conn, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.opts.MaxReconnectAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Info("reconnect attempt failed", zap.Int("attempt", attempt), zap.Duration("retry_in", next), zap.Error(err))
		}),
	)

	if err != nil {
		c.mu.Lock()
		if c.state != StateConnecting || c.cause == CauseUser || c.generation != gen {
			c.mu.Unlock()
			return
		}
		c.state = StateClosed
		c.wantStream = false
		c.pending = nil
		c.cancelReconnect = nil
		c.mu.Unlock()

		c.logger.Warn("reconnect gave up", zap.Int("attempts", attempt), zap.Error(err))
		c.closedByTransport(context.Background(), StateConnecting, err)
		return
	}

	c.mu.Lock()
	if c.generation == gen {
		c.cancelReconnect = nil
	}
	c.mu.Unlock()
	c.adopt(ctx, conn, gen)
}

func (c *Channel) closedByTransport(ctx context.Context, from State, cause error) {
	c.notifyState(ctx, from, StateClosed, CauseTransport, cause)
	if c.opts.Events != nil {
		payload := events.ChannelStatePayload{From: from.String(), To: StateClosed.String(), Cause: CauseTransport.String()}
		if cause != nil {
			payload.Error = cause.Error()
		}
		_ = c.opts.Events.Publish(ctx, events.NewEvent(events.EventChannelClosed, c.opts.Role, payload))
	}

	c.mu.Lock()
	fn := c.onClosed
	c.mu.Unlock()
	if fn != nil {
		fn(cause)
	}
}

func (c *Channel) sendStart(sample domain.PositionSample) error {
	if c.opts.Role == domain.RoleVendor {
		if err := c.sendPosition(EventStartSelling, sample); err != nil {
			return err
		}
	}
	return c.sendPosition(periodicEvent(c.opts.Role), sample)
}

func (c *Channel) sendPosition(event string, sample domain.PositionSample) error {
	frame, err := positionFrame(event, sample)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.send(frame)
}

func (c *Channel) send(frame Frame) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return apperrors.NewChannelError("Not connected to the realtime server.", nil)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := conn.WriteJSON(frame); err != nil {
		return apperrors.NewChannelError("Unable to send to the realtime server.", err)
	}
	c.opts.Metrics.RecordFrame("out", frame.Event)
	return nil
}

func (c *Channel) notifyState(ctx context.Context, from, to State, cause StopCause, err error) {
	if c.opts.Events == nil {
		return
	}
	payload := events.ChannelStatePayload{From: from.String(), To: to.String(), Cause: cause.String()}
	if err != nil {
		payload.Error = err.Error()
	}
	_ = c.opts.Events.Publish(ctx, events.NewEvent(events.EventChannelStateChanged, c.opts.Role, payload))
}
