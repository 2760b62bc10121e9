package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/thelewala-agent/internal/config"
	"github.com/spec-kit/thelewala-agent/internal/domain"
	"github.com/spec-kit/thelewala-agent/internal/events"
)

// NoticeLevel grades a notice for display.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is one short user-facing message, shown by the UI as a toast.
type Notice struct {
	ID        string           `json:"id"`
	Event     events.EventType `json:"event"`
	Level     NoticeLevel      `json:"level"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
}

// NotificationService turns domain events into notices. It keeps the most
// recent ones in memory and optionally forwards each to a webhook.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	http       *http.Client

	mu      sync.Mutex
	notices []Notice
	wg      sync.WaitGroup
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 50
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger.Named("notices"),
		cfg:        cfg,
		http:       &http.Client{Timeout: 5 * time.Second},
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventSignInRequired, n.handleSignInRequired)
	n.dispatcher.Subscribe(events.EventSessionResumed, n.handleSessionResumed)
	n.dispatcher.Subscribe(events.EventSessionStarted, n.handleSessionStarted)
	n.dispatcher.Subscribe(events.EventSessionRefreshed, n.handleSessionRefreshed)
	n.dispatcher.Subscribe(events.EventSessionExpired, n.handleSessionExpired)
	n.dispatcher.Subscribe(events.EventSessionEnded, n.handleSessionEnded)
	n.dispatcher.Subscribe(events.EventAuthFailed, n.handleAuthFailed)
	n.dispatcher.Subscribe(events.EventChannelClosed, n.handleChannelClosed)
	n.dispatcher.Subscribe(events.EventStreamStarted, n.handleStreamStarted)
	n.dispatcher.Subscribe(events.EventStreamStopped, n.handleStreamStopped)
}

func (n *NotificationService) handleSignInRequired(ctx context.Context, event events.Event) error {
	n.add(ctx, event, NoticeInfo, "Please sign in to continue.")
	return nil
}

func (n *NotificationService) handleSessionResumed(ctx context.Context, event events.Event) error {
	n.add(ctx, event, NoticeInfo, "Welcome back!")
	return nil
}

func (n *NotificationService) handleSessionStarted(ctx context.Context, event events.Event) error {
	message := "Sign in successful! Welcome back."
	if p, ok := event.Payload.(events.SessionPayload); ok {
		switch p.Reason {
		case "signup":
			message = "Account created successfully! Welcome!"
		case "active", "cached":
			message = "Welcome back! Using saved session."
		}
	}
	n.add(ctx, event, NoticeInfo, message)
	return nil
}

func (n *NotificationService) handleSessionRefreshed(ctx context.Context, event events.Event) error {
	n.add(ctx, event, NoticeInfo, "Session refreshed successfully")
	return nil
}

func (n *NotificationService) handleSessionExpired(ctx context.Context, event events.Event) error {
	n.add(ctx, event, NoticeWarning, "Session expired. Please sign in again.")
	return nil
}

func (n *NotificationService) handleSessionEnded(ctx context.Context, event events.Event) error {
	n.add(ctx, event, NoticeInfo, "Signed out")
	return nil
}

func (n *NotificationService) handleAuthFailed(ctx context.Context, event events.Event) error {
	message := "Something went wrong. Please try again."
	if p, ok := event.Payload.(events.AuthFailedPayload); ok && p.Message != "" {
		message = p.Message
		if p.Operation == "refresh" {
			message = "Session expired: " + p.Message
		}
	}
	n.add(ctx, event, NoticeError, message)
	return nil
}

func (n *NotificationService) handleChannelClosed(ctx context.Context, event events.Event) error {
	n.add(ctx, event, NoticeWarning, "Lost connection to the server.")
	return nil
}

func (n *NotificationService) handleStreamStarted(ctx context.Context, event events.Event) error {
	message := "Sharing your location with nearby vendors."
	if event.Role == domain.RoleVendor {
		message = "You are now visible to nearby customers."
	}
	n.add(ctx, event, NoticeInfo, message)
	return nil
}

func (n *NotificationService) handleStreamStopped(ctx context.Context, event events.Event) error {
	if p, ok := event.Payload.(events.StreamPayload); ok && p.Reason == "transport" {
		n.add(ctx, event, NoticeWarning, "Stopped sharing your location: connection lost.")
		return nil
	}
	n.add(ctx, event, NoticeInfo, "Stopped sharing your location.")
	return nil
}

func (n *NotificationService) add(ctx context.Context, event events.Event, level NoticeLevel, message string) {
	notice := Notice{
		ID:        event.ID,
		Event:     event.Type,
		Level:     level,
		Message:   message,
		Timestamp: event.Timestamp,
	}

	n.mu.Lock()
	n.notices = append(n.notices, notice)
	if over := len(n.notices) - n.cfg.Capacity; over > 0 {
		n.notices = append([]Notice(nil), n.notices[over:]...)
	}
	n.mu.Unlock()

	n.logger.Debug("notice", zap.String("event_type", string(event.Type)), zap.String("message", message))
	n.sendWebhook(ctx, notice)
}

// Notices returns the retained notices, oldest first.
func (n *NotificationService) Notices() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.notices...)
}

// Drain returns the retained notices and forgets them.
func (n *NotificationService) Drain() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.notices
	n.notices = nil
	return out
}

// Wait blocks until in-flight webhook deliveries finish.
func (n *NotificationService) Wait() {
	n.wg.Wait()
}

func (n *NotificationService) sendWebhook(_ context.Context, notice Notice) {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return
	}
	body, err := json.Marshal(notice)
	if err != nil {
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			n.logger.Debug("webhook request invalid", zap.Error(err))
			return
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := n.http.Do(req)
		if err != nil {
			n.logger.Debug("webhook delivery failed", zap.String("url", url), zap.Error(err))
			return
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= 300 {
			n.logger.Debug("webhook rejected notice", zap.String("url", url), zap.Int("status", resp.StatusCode))
		}
	}()
}
