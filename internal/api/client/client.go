// Package client talks to the counterparty discovery service REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/thelewala-agent/internal/api/dto"
	"github.com/spec-kit/thelewala-agent/internal/domain"
	"github.com/spec-kit/thelewala-agent/internal/observability"
	apperrors "github.com/spec-kit/thelewala-agent/pkg/util/errorutil"
)

const maxErrorBody = 64 << 10

// Client is a thin JSON client for the discovery service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
	metrics *observability.Metrics
}

// New builds a client. timeout bounds every request.
func New(baseURL string, timeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("discovery"),
		metrics: metrics,
	}
}

// SignIn exchanges credentials for an access token.
func (c *Client) SignIn(ctx context.Context, role domain.ActorRole, req dto.SignInRequest) (*dto.TokenResponse, error) {
	var out dto.TokenResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/auth/%s/signin", role), "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SignUpVendor registers a vendor account.
func (c *Client) SignUpVendor(ctx context.Context, req dto.VendorSignUpRequest) (*dto.TokenResponse, error) {
	var out dto.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/vendor/signup", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SignUpCustomer registers a customer account.
func (c *Client) SignUpCustomer(ctx context.Context, req dto.CustomerSignUpRequest) (*dto.TokenResponse, error) {
	var out dto.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/customer/signup", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshToken trades the current token for a new one.
func (c *Client) RefreshToken(ctx context.Context, role domain.ActorRole, token string) (*dto.TokenResponse, error) {
	var out dto.TokenResponse
	path := fmt.Sprintf("/auth/%s/refresh-token", role)
	if err := c.do(ctx, http.MethodPost, path, "", dto.RefreshTokenRequest{Token: token}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the signed-in actor's profile record.
func (c *Client) Me(ctx context.Context, role domain.ActorRole, bearer string) (map[string]any, error) {
	out := map[string]any{}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/user/%s/me", role), bearer, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveAddress stores a customer address.
func (c *Client) SaveAddress(ctx context.Context, bearer string, req dto.AddressRequest) error {
	return c.do(ctx, http.MethodPost, "/customer/address", bearer, req, nil)
}

// CustomerLocations lists the addresses of customers near the signed-in vendor.
func (c *Client) CustomerLocations(ctx context.Context, bearer string) (*dto.CustomerLocationsResponse, error) {
	var out dto.CustomerLocationsResponse
	if err := c.do(ctx, http.MethodGet, "/vendor/address/customer-locations", bearer, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordError(path, method, string(apperrors.CodeNetworkUnreachable))
		c.logger.Warn("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return apperrors.NewNetworkUnreachable(err)
	}
	defer resp.Body.Close()

	c.metrics.RecordRequest(path, method, resp.StatusCode, time.Since(start))
	c.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		mapped := apperrors.FromHTTPStatus(resp.StatusCode, serverMessage(resp.Body))
		c.metrics.RecordError(path, method, string(apperrors.ToDomainError(mapped).Code))
		return mapped
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.FromHTTPStatus(http.StatusBadGateway, "")
	}
	return nil
}

func serverMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var parsed dto.ErrorResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return ""
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	return parsed.Error
}
