package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/thelewala-agent/internal/api/dto"
	"github.com/spec-kit/thelewala-agent/internal/domain"
	apperrors "github.com/spec-kit/thelewala-agent/pkg/util/errorutil"
)

// SessionController is the session manager as driven by the UI.
type SessionController interface {
	Role() domain.ActorRole
	State() domain.AuthState
	Session() (domain.Session, bool)
	SignIn(ctx context.Context, creds domain.Credentials) error
	SignUpVendor(ctx context.Context, in domain.VendorSignUp) error
	SignUpCustomer(ctx context.Context, in domain.CustomerSignUp) error
	RefreshToken(ctx context.Context) (string, error)
	SignOut(ctx context.Context)
}

// ProfileReader fetches the signed-in actor's profile.
type ProfileReader interface {
	Me(ctx context.Context) (map[string]any, error)
}

// SessionHandler exposes sign-in, sign-up and sign-out.
type SessionHandler struct {
	sessions SessionController
	profile  ProfileReader
}

// NewSessionHandler constructs handler.
func NewSessionHandler(sessions SessionController, profile ProfileReader) *SessionHandler {
	return &SessionHandler{sessions: sessions, profile: profile}
}

// Status handles GET /session.
func (h *SessionHandler) Status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.sessionResponse()})
}

// SignIn handles POST /session/signin.
func (h *SessionHandler) SignIn(c *fiber.Ctx) error {
	var req dto.SignInRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload")
	}
	creds := domain.Credentials{Email: req.Email, Password: req.Password, PhoneNumber: req.PhoneNumber}
	if err := h.sessions.SignIn(c.UserContext(), creds); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.sessionResponse()})
}

// SignUpVendor handles POST /session/signup/vendor.
func (h *SessionHandler) SignUpVendor(c *fiber.Ctx) error {
	var req dto.VendorSignUpRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload")
	}
	in := domain.VendorSignUp{
		BusinessName:     req.BusinessName,
		ContactPerson:    req.ContactPerson,
		Email:            req.Email,
		PhoneNumber:      req.PhoneNumber,
		Password:         req.Password,
		ConfirmPassword:  req.ConfirmPassword,
		BusinessCategory: req.BusinessCategory,
		BusinessAddress:  req.BusinessAddress,
	}
	if err := h.sessions.SignUpVendor(c.UserContext(), in); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": h.sessionResponse()})
}

// SignUpCustomer handles POST /session/signup/customer.
func (h *SessionHandler) SignUpCustomer(c *fiber.Ctx) error {
	var req dto.CustomerSignUpRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload")
	}
	in := domain.CustomerSignUp{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
	}
	if err := h.sessions.SignUpCustomer(c.UserContext(), in); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": h.sessionResponse()})
}

// Refresh handles POST /session/refresh.
func (h *SessionHandler) Refresh(c *fiber.Ctx) error {
	if _, err := h.sessions.RefreshToken(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.sessionResponse()})
}

// SignOut handles POST /session/signout. It always succeeds.
func (h *SessionHandler) SignOut(c *fiber.Ctx) error {
	h.sessions.SignOut(c.UserContext())
	return c.JSON(fiber.Map{"data": h.sessionResponse()})
}

// Profile handles GET /profile.
func (h *SessionHandler) Profile(c *fiber.Ctx) error {
	profile, err := h.profile.Me(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": profile})
}

func (h *SessionHandler) sessionResponse() dto.SessionResponse {
	resp := dto.SessionResponse{
		State: string(h.sessions.State()),
		Role:  string(h.sessions.Role()),
	}
	if session, ok := h.sessions.Session(); ok {
		resp.ExpiresAt = session.ExpiryEpochMillis
	}
	return resp
}
