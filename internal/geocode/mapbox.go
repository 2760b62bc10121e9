// Package geocode turns coordinates into short human-readable place text.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/thelewala-agent/internal/domain"
	"github.com/spec-kit/thelewala-agent/internal/observability"
	apperrors "github.com/spec-kit/thelewala-agent/pkg/util/errorutil"
)

// NotFoundText is returned when the geocoder knows no place at a point.
const NotFoundText = "Location not found"

const placesPath = "/geocoding/v5/mapbox.places/"

type placesResponse struct {
	Features []struct {
		PlaceName string `json:"place_name"`
	} `json:"features"`
}

// Mapbox is a reverse geocoder backed by the Mapbox places API.
type Mapbox struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewMapbox builds a geocoder. An empty token disables lookups.
func NewMapbox(baseURL, token string, timeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Mapbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mapbox{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("geocode"),
		metrics: metrics,
	}
}

// LocationText returns the short display text for p, or NotFoundText when
// the geocoder has no feature there.
func (m *Mapbox) LocationText(ctx context.Context, p domain.GeoPoint) (string, error) {
	if m.token == "" {
		return "", apperrors.NewInvalidInput("Reverse geocoding is not configured.")
	}
	coords := strconv.FormatFloat(p.Longitude, 'f', -1, 64) + "," + strconv.FormatFloat(p.Latitude, 'f', -1, 64)
	endpoint := m.baseURL + placesPath + coords + ".json?access_token=" + url.QueryEscape(m.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := m.http.Do(req)
	if err != nil {
		m.metrics.RecordError(placesPath, http.MethodGet, string(apperrors.CodeNetworkUnreachable))
		return "", apperrors.NewNetworkUnreachable(err)
	}
	defer resp.Body.Close()
	m.metrics.RecordRequest(placesPath, http.MethodGet, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		m.logger.Warn("geocoder rejected request", zap.Int("status", resp.StatusCode))
		return "", apperrors.FromHTTPStatus(resp.StatusCode, "")
	}

	var body placesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", apperrors.FromHTTPStatus(http.StatusBadGateway, fmt.Sprintf("invalid geocoder response: %v", err))
	}
	if len(body.Features) == 0 {
		return NotFoundText, nil
	}
	return DisplayText(body.Features[0].PlaceName), nil
}

// DisplayText shortens a place name. Names of five or more words keep the
// third to fifth words, which skip the house number and street.
func DisplayText(placeName string) string {
	words := strings.Split(placeName, " ")
	if len(words) < 5 {
		return strings.TrimSpace(placeName)
	}
	return strings.TrimSpace(strings.Join(words[2:5], " "))
}
