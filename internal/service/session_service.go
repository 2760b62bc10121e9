package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/thelewala-agent/internal/api/dto"
	"github.com/spec-kit/thelewala-agent/internal/auth"
	"github.com/spec-kit/thelewala-agent/internal/credstore"
	"github.com/spec-kit/thelewala-agent/internal/domain"
	"github.com/spec-kit/thelewala-agent/internal/events"
	apperrors "github.com/spec-kit/thelewala-agent/pkg/util/errorutil"
)

// AuthAPI is the subset of the discovery client used for session flows.
type AuthAPI interface {
	SignIn(ctx context.Context, role domain.ActorRole, req dto.SignInRequest) (*dto.TokenResponse, error)
	SignUpVendor(ctx context.Context, req dto.VendorSignUpRequest) (*dto.TokenResponse, error)
	SignUpCustomer(ctx context.Context, req dto.CustomerSignUpRequest) (*dto.TokenResponse, error)
	RefreshToken(ctx context.Context, role domain.ActorRole, token string) (*dto.TokenResponse, error)
}

// SessionDependencies wires the session manager.
type SessionDependencies struct {
	Store      credstore.Store
	API        AuthAPI
	Tokens     *auth.TokenInspector
	Events     events.Dispatcher
	Logger     *zap.Logger
	DefaultTTL time.Duration
	Now        func() time.Time
}

// storedSession is the persisted userAccessToken record.
type storedSession struct {
	AccessToken string `json:"accessToken"`
	Expiry      int64  `json:"expiry"`
}

type cacheStatus int

const (
	cacheAbsent cacheStatus = iota
	cacheValid
	cacheExpired
	cacheCorrupt
)

func (c cacheStatus) String() string {
	switch c {
	case cacheValid:
		return "valid"
	case cacheExpired:
		return "expired"
	case cacheCorrupt:
		return "corrupt"
	default:
		return "absent"
	}
}

// SessionManager owns the one session of a single actor role.
type SessionManager struct {
	role       domain.ActorRole
	store      credstore.Store
	api        AuthAPI
	tokens     *auth.TokenInspector
	events     events.Dispatcher
	logger     *zap.Logger
	defaultTTL time.Duration
	now        func() time.Time

	mu      sync.Mutex
	state   domain.AuthState
	session domain.Session
	hooks   []func(context.Context)
}

// NewSessionManager restores the persisted session, if still valid. It never
// calls the network.
func NewSessionManager(ctx context.Context, role domain.ActorRole, deps SessionDependencies) *SessionManager {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	tokens := deps.Tokens
	if tokens == nil {
		tokens = auth.NewTokenInspector()
	}
	dispatcher := deps.Events
	if dispatcher == nil {
		dispatcher = events.NewInMemoryDispatcher(logger)
	}
	ttl := deps.DefaultTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	m := &SessionManager{
		role:       role,
		store:      deps.Store,
		api:        deps.API,
		tokens:     tokens,
		events:     dispatcher,
		logger:     logger.Named("session").With(zap.String("role", string(role))),
		defaultTTL: ttl,
		now:        now,
		state:      domain.AuthStateUnknown,
	}

	session, status := m.readCached(ctx)
	m.mu.Lock()
	if status == cacheValid {
		m.state = domain.AuthStateAuthenticated
		m.session = session
	} else {
		m.state = domain.AuthStateUnauthenticated
	}
	m.mu.Unlock()

	if status == cacheValid {
		m.logger.Info("resumed saved session", zap.Time("expires_at", session.ExpiresAt()))
		m.emit(ctx, events.EventSessionResumed, events.SessionPayload{ExpiresAt: session.ExpiryEpochMillis})
	} else {
		m.logger.Info("sign in required", zap.Stringer("cache", status))
		m.emit(ctx, events.EventSignInRequired, events.SessionPayload{Reason: status.String()})
	}
	return m
}

// Role returns the actor role this manager serves.
func (m *SessionManager) Role() domain.ActorRole {
	return m.role
}

// State returns the current auth state.
func (m *SessionManager) State() domain.AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns the in-memory session and whether one is held.
func (m *SessionManager) Session() (domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, m.state == domain.AuthStateAuthenticated
}

// OnSignOut registers teardown run before credentials are removed, on SignOut
// and on expiry.
func (m *SessionManager) OnSignOut(hook func(context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook)
}

// SignIn authenticates with credentials, reusing a still-valid saved session.
func (m *SessionManager) SignIn(ctx context.Context, creds domain.Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	creds = creds.Normalize()

	if session, ok := m.Session(); ok && session.ValidAt(m.now()) {
		m.emit(ctx, events.EventSessionStarted, events.SessionPayload{Reason: "active", ExpiresAt: session.ExpiryEpochMillis})
		return nil
	}

	if session, status := m.readCached(ctx); status == cacheValid {
		m.apply(session)
		m.logger.Info("using saved session")
		m.emit(ctx, events.EventSessionStarted, events.SessionPayload{Reason: "cached", ExpiresAt: session.ExpiryEpochMillis})
		return nil
	}

	req := dto.SignInRequest{Email: creds.Email, Password: creds.Password}
	if m.role == domain.RoleCustomer {
		req.PhoneNumber = creds.PhoneNumber
	}
	resp, err := m.api.SignIn(ctx, m.role, req)
	if err != nil {
		return m.failed(ctx, "signin", err)
	}
	return m.establish(ctx, resp, events.EventSessionStarted, "signin")
}

// SignUpVendor registers a vendor account and signs it in.
func (m *SessionManager) SignUpVendor(ctx context.Context, in domain.VendorSignUp) error {
	if m.role != domain.RoleVendor {
		return apperrors.NewInvalidInput("Vendor sign-up is not available in customer mode.")
	}
	if err := in.Validate(); err != nil {
		return err
	}
	in = in.Normalize()

	resp, err := m.api.SignUpVendor(ctx, dto.VendorSignUpRequest{
		BusinessName:     in.BusinessName,
		ContactPerson:    in.ContactPerson,
		Email:            in.Email,
		PhoneNumber:      in.PhoneNumber,
		Password:         in.Password,
		ConfirmPassword:  in.ConfirmPassword,
		BusinessCategory: in.BusinessCategory,
		BusinessAddress:  in.BusinessAddress,
	})
	if err != nil {
		return m.failed(ctx, "signup", err)
	}
	return m.establish(ctx, resp, events.EventSessionStarted, "signup")
}

// SignUpCustomer registers a customer account and signs it in.
func (m *SessionManager) SignUpCustomer(ctx context.Context, in domain.CustomerSignUp) error {
	if m.role != domain.RoleCustomer {
		return apperrors.NewInvalidInput("Customer sign-up is not available in vendor mode.")
	}
	if err := in.Validate(); err != nil {
		return err
	}
	in = in.Normalize()

	resp, err := m.api.SignUpCustomer(ctx, dto.CustomerSignUpRequest{
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Email:       in.Email,
		PhoneNumber: in.PhoneNumber,
		Password:    in.Password,
	})
	if err != nil {
		return m.failed(ctx, "signup", err)
	}
	return m.establish(ctx, resp, events.EventSessionStarted, "signup")
}

// RefreshToken replaces the session with a fresh token. Any failure ends the
// session before the error is returned.
func (m *SessionManager) RefreshToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	current := m.session.BearerToken
	m.mu.Unlock()

	if current == "" {
		m.SignOut(ctx)
		return "", m.failed(ctx, "refresh", apperrors.NewAuthFailure("Please sign in to continue."))
	}

	resp, err := m.api.RefreshToken(ctx, m.role, current)
	if err != nil {
		m.SignOut(ctx)
		return "", m.failed(ctx, "refresh", err)
	}
	if err := m.establish(ctx, resp, events.EventSessionRefreshed, "refresh"); err != nil {
		m.SignOut(ctx)
		return "", err
	}

	session, _ := m.Session()
	return session.BearerToken, nil
}

// SignOut ends the session. Teardown hooks run before the stored credentials
// are removed. It is idempotent and never fails.
func (m *SessionManager) SignOut(ctx context.Context) {
	m.mu.Lock()
	wasAuthenticated := m.state == domain.AuthStateAuthenticated
	m.state = domain.AuthStateUnauthenticated
	m.session = domain.Session{}
	hooks := append([]func(context.Context){}, m.hooks...)
	m.mu.Unlock()

	for _, hook := range hooks {
		hook(ctx)
	}

	m.purge(ctx, credstore.KeyUserAccessToken)
	m.purge(ctx, credstore.KeyUserType)

	if wasAuthenticated {
		m.logger.Info("signed out")
		m.emit(ctx, events.EventSessionEnded, nil)
	}
}

// BearerToken returns the token for an authenticated call after checking
// expiry against the wall clock. An expired session is torn down the way
// SignOut does it, but the role tag is kept.
func (m *SessionManager) BearerToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.state != domain.AuthStateAuthenticated {
		m.mu.Unlock()
		return "", apperrors.NewAuthFailure("Please sign in to continue.")
	}
	if m.session.ValidAt(m.now()) {
		token := m.session.BearerToken
		m.mu.Unlock()
		return token, nil
	}
	expiredAt := m.session.ExpiryEpochMillis
	m.state = domain.AuthStateUnauthenticated
	m.session = domain.Session{}
	hooks := append([]func(context.Context){}, m.hooks...)
	m.mu.Unlock()

	for _, hook := range hooks {
		hook(ctx)
	}
	m.purge(ctx, credstore.KeyUserAccessToken)
	m.logger.Info("session expired", zap.Int64("expired_at", expiredAt))
	m.emit(ctx, events.EventSessionExpired, events.SessionPayload{ExpiresAt: expiredAt})
	return "", apperrors.NewDomainError(apperrors.CodeAuthFailure, "Your session has expired. Please sign in again.", http.StatusUnauthorized, nil)
}

// readCached is read, validate, then purge when invalid.
func (m *SessionManager) readCached(ctx context.Context) (domain.Session, cacheStatus) {
	raw, err := m.store.Get(ctx, credstore.KeyUserAccessToken)
	switch {
	case errors.Is(err, credstore.ErrNotFound):
		return domain.Session{}, cacheAbsent
	case apperrors.HasCode(err, apperrors.CodeStorageCorrupt):
		m.logger.Warn("saved session unreadable; removing", zap.Error(err))
		m.purge(ctx, credstore.KeyUserAccessToken)
		return domain.Session{}, cacheCorrupt
	case err != nil:
		m.logger.Warn("saved session unavailable", zap.Error(err))
		return domain.Session{}, cacheAbsent
	}

	var stored storedSession
	if err := json.Unmarshal([]byte(raw), &stored); err != nil || stored.AccessToken == "" || stored.Expiry <= 0 {
		m.logger.Warn("saved session malformed; removing")
		m.purge(ctx, credstore.KeyUserAccessToken)
		return domain.Session{}, cacheCorrupt
	}

	session := domain.Session{BearerToken: stored.AccessToken, ExpiryEpochMillis: stored.Expiry, Role: m.role}
	if !session.ValidAt(m.now()) {
		m.purge(ctx, credstore.KeyUserAccessToken)
		return domain.Session{}, cacheExpired
	}
	return session, cacheValid
}

func (m *SessionManager) establish(ctx context.Context, resp *dto.TokenResponse, eventType events.EventType, op string) error {
	if resp == nil || resp.AccessToken == "" {
		return m.failed(ctx, op, apperrors.NewDomainError(apperrors.CodeServerError, "Server error. Please try again later.", http.StatusBadGateway, nil))
	}

	session := domain.Session{
		BearerToken:       resp.AccessToken,
		ExpiryEpochMillis: m.resolveExpiry(resp),
		Role:              m.role,
	}

	record, err := json.Marshal(storedSession{AccessToken: session.BearerToken, Expiry: session.ExpiryEpochMillis})
	if err == nil {
		err = m.store.Set(ctx, credstore.KeyUserAccessToken, string(record), credstore.AccessibleWhenUnlocked)
	}
	if err != nil {
		m.logger.Warn("unable to persist session; continuing in memory", zap.Error(err))
	}
	if err := SaveActorRole(ctx, m.store, m.role); err != nil {
		m.logger.Warn("unable to persist role tag", zap.Error(err))
	}

	m.apply(session)
	m.logger.Info("session established", zap.String("operation", op), zap.Time("expires_at", session.ExpiresAt()))
	m.emit(ctx, eventType, events.SessionPayload{Reason: op, ExpiresAt: session.ExpiryEpochMillis})
	return nil
}

// resolveExpiry prefers the server's expiry, then the token's exp claim,
// then the configured default lifetime.
func (m *SessionManager) resolveExpiry(resp *dto.TokenResponse) int64 {
	if resp.Expiry > 0 {
		return resp.Expiry
	}
	if exp, ok := m.tokens.ExpiryOf(resp.AccessToken); ok {
		return exp.UnixMilli()
	}
	return m.now().Add(m.defaultTTL).UnixMilli()
}

func (m *SessionManager) apply(session domain.Session) {
	m.mu.Lock()
	m.state = domain.AuthStateAuthenticated
	m.session = session
	m.mu.Unlock()
}

func (m *SessionManager) failed(ctx context.Context, op string, err error) error {
	de := apperrors.ToDomainError(err)
	m.logger.Warn("session operation failed", zap.String("operation", op), zap.String("code", string(de.Code)), zap.Error(err))
	m.emit(ctx, events.EventAuthFailed, events.AuthFailedPayload{Operation: op, Code: string(de.Code), Message: de.Message})
	return err
}

func (m *SessionManager) purge(ctx context.Context, key string) {
	if err := m.store.Remove(ctx, key); err != nil {
		m.logger.Warn("unable to remove stored credential", zap.String("key", key), zap.Error(err))
	}
}

func (m *SessionManager) emit(ctx context.Context, eventType events.EventType, payload interface{}) {
	_ = m.events.Publish(ctx, events.NewEvent(eventType, m.role, payload))
}

// LoadActorRole reads the persisted userType tag.
func LoadActorRole(ctx context.Context, store credstore.Store) (domain.ActorRole, bool, error) {
	raw, err := store.Get(ctx, credstore.KeyUserType)
	if errors.Is(err, credstore.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	role, err := domain.ParseActorRole(raw)
	if err != nil {
		return "", false, nil
	}
	return role, true, nil
}

// SaveActorRole writes the userType tag.
func SaveActorRole(ctx context.Context, store credstore.Store, role domain.ActorRole) error {
	return store.Set(ctx, credstore.KeyUserType, string(role), credstore.AccessibleAlways)
}
