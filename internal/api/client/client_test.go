package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/thelewala-agent/internal/api/dto"
	"github.com/spec-kit/thelewala-agent/internal/domain"
	"github.com/spec-kit/thelewala-agent/internal/observability"
	apperrors "github.com/spec-kit/thelewala-agent/pkg/util/errorutil"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *observability.Metrics) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	metrics := observability.NewMetrics()
	return New(srv.URL+"/", 2*time.Second, zap.NewNop(), metrics), metrics
}

func TestClient_SignIn(t *testing.T) {
	var got dto.SignInRequest
	c, metrics := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/customer/signin" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID")
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("sign-in should not carry a bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{"accessToken": "T1", "expiry": 1700000000000})
	})

	resp, err := c.SignIn(context.Background(), domain.RoleCustomer, dto.SignInRequest{Email: "a@b.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if resp.AccessToken != "T1" || resp.Expiry != 1700000000000 {
		t.Errorf("response = %+v", resp)
	}
	if got.Email != "a@b.com" || got.Password != "secret1" {
		t.Errorf("request body = %+v", got)
	}
	if n := metrics.Snapshot().Requests["/auth/customer/signin|POST|200"]; n != 1 {
		t.Errorf("request metric = %d, want 1", n)
	}
}

func TestClient_StatusMapping(t *testing.T) {
	cases := []struct {
		status int
		body   string
		code   apperrors.Code
		msg    string
	}{
		{http.StatusUnauthorized, `{"message":"nope"}`, apperrors.CodeAuthFailure, "Invalid credentials. Please check your email and password."},
		{http.StatusConflict, `{"message":"Email taken"}`, apperrors.CodeConflict, "Email taken"},
		{http.StatusBadRequest, `{"error":"bad phone"}`, apperrors.CodeRequestRejected, "bad phone"},
		{http.StatusTooManyRequests, ``, apperrors.CodeRateLimited, "Too many attempts. Please try again later."},
		{http.StatusInternalServerError, `oops`, apperrors.CodeServerError, "Server error. Please try again later."},
	}

	for _, tc := range cases {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		})
		_, err := c.RefreshToken(context.Background(), domain.RoleVendor, "T0")
		if !apperrors.HasCode(err, tc.code) {
			t.Errorf("status %d: err = %v, want %s", tc.status, err, tc.code)
			continue
		}
		if msg := apperrors.UserMessage(err); msg != tc.msg {
			t.Errorf("status %d: message = %q, want %q", tc.status, msg, tc.msg)
		}
	}
}

func TestClient_NetworkUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, time.Second, zap.NewNop(), nil)
	_, err := c.SignIn(context.Background(), domain.RoleVendor, dto.SignInRequest{Email: "a@b.com", Password: "secret1"})
	if !apperrors.HasCode(err, apperrors.CodeNetworkUnreachable) {
		t.Fatalf("err = %v, want NETWORK_UNREACHABLE", err)
	}
}

func TestClient_BearerEndpoints(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer T1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/vendor/address/customer-locations":
			_, _ = w.Write([]byte(`{"success":true,"data":{"vendorId":"v1","customers":[
				{"customerId":"c1","customerName":"Asha","addresses":[{"id":"a1","address":"MG Road","coordinate":[77.59,12.97]}]}
			],"totalCustomers":1,"totalAddresses":1}}`))
		case "/customer/address":
			var req dto.AddressRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Address != "MG Road" || req.Latitude != 12.97 {
				t.Errorf("address body = %+v", req)
			}
			w.WriteHeader(http.StatusCreated)
		case "/user/vendor/me":
			_, _ = w.Write([]byte(`{"businessName":"Chaat Cart"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	locations, err := c.CustomerLocations(ctx, "T1")
	if err != nil {
		t.Fatalf("CustomerLocations: %v", err)
	}
	if !locations.Success || len(locations.Data.Customers) != 1 || locations.Data.Customers[0].Addresses[0].Coordinate != [2]float64{77.59, 12.97} {
		t.Errorf("locations = %+v", locations)
	}

	if err := c.SaveAddress(ctx, "T1", dto.AddressRequest{Address: "MG Road", Latitude: 12.97, Longitude: 77.59}); err != nil {
		t.Errorf("SaveAddress: %v", err)
	}

	profile, err := c.Me(ctx, domain.RoleVendor, "T1")
	if err != nil || profile["businessName"] != "Chaat Cart" {
		t.Errorf("Me = %v, %v", profile, err)
	}

	if _, err := c.Me(ctx, domain.RoleVendor, "stale"); !apperrors.HasCode(err, apperrors.CodeAuthFailure) {
		t.Errorf("Me with stale token err = %v", err)
	}
}
