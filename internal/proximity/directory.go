// Package proximity caches the nearby counterparties of the signed-in actor.
package proximity

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/thelewala-agent/internal/api/dto"
	"github.com/spec-kit/thelewala-agent/internal/domain"
	"github.com/spec-kit/thelewala-agent/internal/events"
)

// LocationsAPI fetches customer addresses for a vendor.
type LocationsAPI interface {
	CustomerLocations(ctx context.Context, bearer string) (*dto.CustomerLocationsResponse, error)
}

// TokenSource supplies the bearer token for pulls.
type TokenSource func(ctx context.Context) (string, error)

// Directory holds the current snapshot of nearby counterparties. While
// inactive, every update is dropped and the snapshot stays empty.
type Directory struct {
	role   domain.ActorRole
	api    LocationsAPI
	tokens TokenSource
	events events.Dispatcher
	logger *zap.Logger

	mu         sync.Mutex
	active     bool
	records    map[string]domain.ProximityRecord
	version    uint64
	projected  uint64
	projection []domain.GeoPoint
}

// NewDirectory builds an inactive directory. api and tokens may be nil when
// the role never pulls.
func NewDirectory(role domain.ActorRole, api LocationsAPI, tokens TokenSource, dispatcher events.Dispatcher, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{
		role:    role,
		api:     api,
		tokens:  tokens,
		events:  dispatcher,
		logger:  logger.Named("directory"),
		records: make(map[string]domain.ProximityRecord),
	}
}

// Activate starts accepting updates.
func (d *Directory) Activate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = true
}

// Deactivate clears the snapshot and drops updates until reactivated.
func (d *Directory) Deactivate() {
	d.mu.Lock()
	d.active = false
	changed := len(d.records) > 0
	d.replaceLocked(nil)
	d.mu.Unlock()

	if changed {
		d.publish(context.Background(), 0, "stop")
	}
}

// Active reports whether updates are accepted.
func (d *Directory) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// ApplyUpdate replaces the snapshot. Duplicate ids keep the last record.
// It reports false when the directory is inactive.
func (d *Directory) ApplyUpdate(records []domain.ProximityRecord) bool {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return false
	}
	d.replaceLocked(records)
	n := len(d.records)
	d.mu.Unlock()

	d.publish(context.Background(), n, "replace")
	return true
}

// Merge upserts records into the snapshot.
func (d *Directory) Merge(records []domain.ProximityRecord) bool {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return false
	}
	for _, rec := range records {
		if rec.CounterpartyID == "" {
			continue
		}
		d.records[rec.CounterpartyID] = rec
	}
	d.version++
	n := len(d.records)
	d.mu.Unlock()

	d.publish(context.Background(), n, "merge")
	return true
}

// ApplyNearbyPayload decodes a channel push and replaces the snapshot.
func (d *Directory) ApplyNearbyPayload(raw json.RawMessage) {
	records, skipped, err := DecodeNearbyVendors(raw)
	if err != nil {
		d.logger.Warn("discarding malformed nearby update", zap.Error(err))
		return
	}
	if skipped > 0 {
		d.logger.Debug("skipped malformed nearby records", zap.Int("skipped", skipped))
	}
	if !d.ApplyUpdate(records) {
		d.logger.Debug("directory inactive; nearby update dropped")
	}
}

// Pull fetches customer addresses on demand and replaces the snapshot.
// Distances are measured from origin. A failed pull empties the snapshot.
func (d *Directory) Pull(ctx context.Context, origin domain.GeoPoint) ([]domain.ProximityRecord, error) {
	records, err := d.fetch(ctx, origin)
	if err != nil {
		d.logger.Warn("pull failed; clearing directory", zap.Error(err))
		d.mu.Lock()
		cleared := d.active && len(d.records) > 0
		if d.active {
			d.replaceLocked(nil)
		}
		d.mu.Unlock()
		if cleared {
			d.publish(ctx, 0, "pull")
		}
		return nil, err
	}

	d.mu.Lock()
	applied := d.active
	if applied {
		d.replaceLocked(records)
	}
	d.mu.Unlock()
	if applied {
		d.publish(ctx, len(records), "pull")
	}
	return records, nil
}

func (d *Directory) fetch(ctx context.Context, origin domain.GeoPoint) ([]domain.ProximityRecord, error) {
	token, err := d.tokens(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := d.api.CustomerLocations(ctx, token)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return []domain.ProximityRecord{}, nil
	}

	var records []domain.ProximityRecord
	for _, customer := range resp.Data.Customers {
		for i, addr := range customer.Addresses {
			id := addr.ID
			if id == "" {
				id = strconv.Itoa(i)
			}
			point := domain.GeoPoint{Longitude: addr.Coordinate[0], Latitude: addr.Coordinate[1]}
			if point.IsZero() {
				// address saved without a coordinate
				continue
			}
			rec := domain.ProximityRecord{
				CounterpartyID: customer.CustomerID + "/" + id,
				DisplayName:    customer.CustomerName,
				ContactName:    customer.CustomerName,
				Coordinate:     point,
			}
			if !origin.IsZero() {
				rec.DistanceMeters = domain.DistanceMeters(origin, point)
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

// Project returns the map points of the snapshot, nearest first. The result
// is recomputed only when the snapshot has changed.
func (d *Directory) Project() []domain.GeoPoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.projection == nil || d.projected != d.version {
		sorted := d.sortedLocked()
		points := make([]domain.GeoPoint, 0, len(sorted))
		for _, rec := range sorted {
			points = append(points, rec.Coordinate)
		}
		d.projection = points
		d.projected = d.version
	}
	return append([]domain.GeoPoint(nil), d.projection...)
}

// Records returns the snapshot sorted by distance.
func (d *Directory) Records() []domain.ProximityRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sortedLocked()
}

// Lookup returns one record by id.
func (d *Directory) Lookup(id string) (domain.ProximityRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.records[id]
	return rec, ok
}

// Len returns the number of records.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.records)
}

func (d *Directory) replaceLocked(records []domain.ProximityRecord) {
	next := make(map[string]domain.ProximityRecord, len(records))
	for _, rec := range records {
		if rec.CounterpartyID == "" {
			continue
		}
		next[rec.CounterpartyID] = rec
	}
	d.records = next
	d.version++
}

func (d *Directory) sortedLocked() []domain.ProximityRecord {
	out := make([]domain.ProximityRecord, 0, len(d.records))
	for _, rec := range d.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceMeters != out[j].DistanceMeters {
			return out[i].DistanceMeters < out[j].DistanceMeters
		}
		return out[i].CounterpartyID < out[j].CounterpartyID
	})
	return out
}

func (d *Directory) publish(ctx context.Context, count int, source string) {
	if d.events == nil {
		return
	}
	_ = d.events.Publish(ctx, events.NewEvent(events.EventNearbyUpdated, d.role, events.NearbyUpdatedPayload{Count: count, Source: source}))
}
