package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/thelewala-agent/internal/api/dto"
	"github.com/spec-kit/thelewala-agent/internal/domain"
	"github.com/spec-kit/thelewala-agent/internal/location"
	apperrors "github.com/spec-kit/thelewala-agent/pkg/util/errorutil"
)

type fakeAddressAPI struct {
	saved  []dto.AddressRequest
	bearer string
	err    error
}

func (f *fakeAddressAPI) SaveAddress(_ context.Context, bearer string, req dto.AddressRequest) error {
	f.bearer = bearer
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, req)
	return nil
}

type fakeGeocoder struct {
	text  string
	err   error
	calls int
}

func (f *fakeGeocoder) LocationText(context.Context, domain.GeoPoint) (string, error) {
	f.calls++
	return f.text, f.err
}

type staticBearer struct {
	token string
	err   error
}

func (s staticBearer) BearerToken(context.Context) (string, error) { return s.token, s.err }

func newAddressService(role domain.ActorRole, point domain.GeoPoint, api *fakeAddressAPI, geo *fakeGeocoder, bearer BearerSource) *AddressService {
	source := location.NewSource(location.StaticProvider{Point: point}, nil)
	return NewAddressService(role, api, geo, source, bearer, location.FixOptions{Timeout: time.Second}, nil)
}

func TestRegisterCurrentAddress(t *testing.T) {
	api := &fakeAddressAPI{}
	geo := &fakeGeocoder{text: "Bengaluru Karnataka India"}
	svc := newAddressService(domain.RoleCustomer, stallPoint, api, geo, staticBearer{token: "tok"})

	resp, err := svc.RegisterCurrentAddress(context.Background())
	if err != nil {
		t.Fatalf("RegisterCurrentAddress: %v", err)
	}
	if len(api.saved) != 1 || api.bearer != "tok" {
		t.Fatalf("expected one save with bearer, got %d saves, bearer %q", len(api.saved), api.bearer)
	}
	want := dto.AddressRequest{Address: "Bengaluru Karnataka India", Latitude: stallPoint.Latitude, Longitude: stallPoint.Longitude}
	if api.saved[0] != want {
		t.Fatalf("unexpected request %+v", api.saved[0])
	}
	if resp.Address != want.Address {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestRegisterCurrentAddressAbortsWithoutNetwork(t *testing.T) {
	t.Run("zero coordinate", func(t *testing.T) {
		api := &fakeAddressAPI{}
		geo := &fakeGeocoder{text: "x"}
		svc := newAddressService(domain.RoleCustomer, domain.GeoPoint{}, api, geo, staticBearer{token: "tok"})
		_, err := svc.RegisterCurrentAddress(context.Background())
		if !apperrors.HasCode(err, apperrors.CodeLocationUnavailable) {
			t.Fatalf("expected location unavailable, got %v", err)
		}
		if geo.calls != 0 || len(api.saved) != 0 {
			t.Fatalf("no network calls expected")
		}
	})

	t.Run("empty place text", func(t *testing.T) {
		api := &fakeAddressAPI{}
		geo := &fakeGeocoder{text: "  "}
		svc := newAddressService(domain.RoleCustomer, stallPoint, api, geo, staticBearer{token: "tok"})
		if _, err := svc.RegisterCurrentAddress(context.Background()); err == nil {
			t.Fatalf("expected error")
		}
		if len(api.saved) != 0 {
			t.Fatalf("address must not be saved")
		}
	})

	t.Run("signed out", func(t *testing.T) {
		api := &fakeAddressAPI{}
		geo := &fakeGeocoder{text: "x"}
		svc := newAddressService(domain.RoleCustomer, stallPoint, api, geo, staticBearer{err: apperrors.NewAuthFailure("Your session has expired. Please sign in again.")})
		if _, err := svc.RegisterCurrentAddress(context.Background()); !apperrors.HasCode(err, apperrors.CodeAuthFailure) {
			t.Fatalf("expected auth failure, got %v", err)
		}
		if geo.calls != 0 {
			t.Fatalf("geocoder must not be called while signed out")
		}
	})

	t.Run("vendor", func(t *testing.T) {
		svc := newAddressService(domain.RoleVendor, stallPoint, &fakeAddressAPI{}, &fakeGeocoder{}, staticBearer{token: "tok"})
		if _, err := svc.RegisterCurrentAddress(context.Background()); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
			t.Fatalf("expected invalid input, got %v", err)
		}
	})
}

func TestRegisterCurrentAddressServerError(t *testing.T) {
	api := &fakeAddressAPI{err: apperrors.FromHTTPStatus(500, "")}
	svc := newAddressService(domain.RoleCustomer, stallPoint, api, &fakeGeocoder{text: "Somewhere"}, staticBearer{token: "tok"})
	if _, err := svc.RegisterCurrentAddress(context.Background()); !apperrors.HasCode(err, apperrors.CodeServerError) {
		t.Fatalf("expected server error, got %v", err)
	}
}

type fakeProfileAPI struct {
	role   domain.ActorRole
	bearer string
}

func (f *fakeProfileAPI) Me(_ context.Context, role domain.ActorRole, bearer string) (map[string]any, error) {
	f.role, f.bearer = role, bearer
	return map[string]any{"email": "a@b.co"}, nil
}

func TestProfileMe(t *testing.T) {
	api := &fakeProfileAPI{}
	svc := NewProfileService(domain.RoleVendor, api, staticBearer{token: "tok"})
	profile, err := svc.Me(context.Background())
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if profile["email"] != "a@b.co" || api.role != domain.RoleVendor || api.bearer != "tok" {
		t.Fatalf("unexpected call %+v / %+v", profile, api)
	}

	failing := NewProfileService(domain.RoleVendor, api, staticBearer{err: errors.New("signed out")})
	if _, err := failing.Me(context.Background()); err == nil {
		t.Fatalf("expected error without a session")
	}
}
