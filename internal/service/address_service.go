package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/thelewala-agent/internal/api/dto"
	"github.com/spec-kit/thelewala-agent/internal/domain"
	"github.com/spec-kit/thelewala-agent/internal/location"
	apperrors "github.com/spec-kit/thelewala-agent/pkg/util/errorutil"
)

// AddressAPI stores customer addresses.
type AddressAPI interface {
	SaveAddress(ctx context.Context, bearer string, req dto.AddressRequest) error
}

// Geocoder turns a point into display text.
type Geocoder interface {
	LocationText(ctx context.Context, p domain.GeoPoint) (string, error)
}

// BearerSource hands out the current session's token.
type BearerSource interface {
	BearerToken(ctx context.Context) (string, error)
}

// AddressService registers the customer's current location as an address.
type AddressService struct {
	role     domain.ActorRole
	api      AddressAPI
	geocoder Geocoder
	source   *location.Source
	session  BearerSource
	fix      location.FixOptions
	logger   *zap.Logger
}

// NewAddressService builds the service.
func NewAddressService(role domain.ActorRole, api AddressAPI, geocoder Geocoder, source *location.Source, session BearerSource, fix location.FixOptions, logger *zap.Logger) *AddressService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AddressService{
		role:     role,
		api:      api,
		geocoder: geocoder,
		source:   source,
		session:  session,
		fix:      fix,
		logger:   logger.Named("address"),
	}
}

// RegisterCurrentAddress takes a fix, resolves its place text and saves it.
// Nothing is sent when the fix or the place text is missing.
func (s *AddressService) RegisterCurrentAddress(ctx context.Context) (dto.RegisterAddressResponse, error) {
	if s.role != domain.RoleCustomer {
		return dto.RegisterAddressResponse{}, apperrors.NewInvalidInput("Only customers can save addresses.")
	}
	token, err := s.session.BearerToken(ctx)
	if err != nil {
		return dto.RegisterAddressResponse{}, err
	}

	sample, err := s.source.CurrentFix(ctx, s.fix)
	if err != nil {
		return dto.RegisterAddressResponse{}, err
	}
	point := sample.Point()
	if point.IsZero() {
		return dto.RegisterAddressResponse{}, apperrors.NewLocationUnavailable(location.ReasonUnavailable, nil)
	}

	text, err := s.geocoder.LocationText(ctx, point)
	if err != nil {
		return dto.RegisterAddressResponse{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return dto.RegisterAddressResponse{}, apperrors.NewLocationUnavailable(location.ReasonUnavailable, nil)
	}

	req := dto.AddressRequest{Address: text, Latitude: point.Latitude, Longitude: point.Longitude}
	if err := s.api.SaveAddress(ctx, token, req); err != nil {
		s.logger.Warn("address save failed", zap.Error(err))
		return dto.RegisterAddressResponse{}, err
	}
	s.logger.Info("address saved", zap.String("address", text))
	return dto.RegisterAddressResponse{Address: text, Latitude: point.Latitude, Longitude: point.Longitude}, nil
}
