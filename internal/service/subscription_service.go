package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/thelewala-agent/internal/domain"
	"github.com/spec-kit/thelewala-agent/internal/repository"
	apperrors "github.com/spec-kit/thelewala-agent/pkg/util/errorutil"
)

// MsgAlreadySubscribed accompanies a repeated subscribe, which is not an error.
const MsgAlreadySubscribed = "Already subscribed to this vendor"

// DirectoryLookup resolves a nearby vendor by id.
type DirectoryLookup interface {
	Lookup(id string) (domain.ProximityRecord, bool)
}

// SubscriptionService is the role-scoped subscription ledger. Sign-out does
// not clear it.
type SubscriptionService struct {
	role      domain.ActorRole
	repo      repository.SubscriptionRepository
	directory DirectoryLookup
	logger    *zap.Logger
	now       func() time.Time
}

// NewSubscriptionService builds the ledger. directory may be nil.
func NewSubscriptionService(role domain.ActorRole, repo repository.SubscriptionRepository, directory DirectoryLookup, logger *zap.Logger) *SubscriptionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubscriptionService{
		role:      role,
		repo:      repo,
		directory: directory,
		logger:    logger.Named("ledger"),
		now:       time.Now,
	}
}

// Subscribe adds rec unless the vendor is already present, in which case the
// existing entry is returned with added false. The local date is stamped once,
// at insertion.
func (s *SubscriptionService) Subscribe(ctx context.Context, rec domain.SubscriptionRecord) (domain.SubscriptionRecord, bool, error) {
	rec.VendorID = strings.TrimSpace(rec.VendorID)
	if rec.VendorID == "" {
		return domain.SubscriptionRecord{}, false, apperrors.NewInvalidInput("vendor id is required")
	}
	if rec.ImageURL == "" {
		rec.ImageURL = domain.DefaultVendorImageURL
	}
	rec.ID = ""
	rec.SubscribedAtLocalDate = s.now().Local().Format(domain.LocalDateLayout)
	rec.CreatedAt = s.now().UTC()

	added, err := s.repo.Insert(ctx, s.role, &rec)
	if err != nil {
		return domain.SubscriptionRecord{}, false, apperrors.NewStorageFailure("subscribe", err)
	}
	if !added {
		existing, err := s.find(ctx, rec.VendorID)
		if err != nil {
			return domain.SubscriptionRecord{}, false, err
		}
		s.logger.Debug("already subscribed", zap.String("vendor_id", rec.VendorID))
		return existing, false, nil
	}
	s.logger.Info("subscribed", zap.String("vendor_id", rec.VendorID))
	return rec, true, nil
}

// SubscribeFromDirectory subscribes to a vendor currently in the directory.
func (s *SubscriptionService) SubscribeFromDirectory(ctx context.Context, vendorID string) (domain.SubscriptionRecord, bool, error) {
	if s.directory == nil {
		return domain.SubscriptionRecord{}, false, apperrors.NewNotFound("vendor", map[string]any{"vendorId": vendorID})
	}
	rec, ok := s.directory.Lookup(vendorID)
	if !ok {
		return domain.SubscriptionRecord{}, false, apperrors.NewNotFound("vendor", map[string]any{"vendorId": vendorID})
	}
	return s.Subscribe(ctx, domain.SubscriptionFromProximity(rec))
}

func (s *SubscriptionService) find(ctx context.Context, vendorID string) (domain.SubscriptionRecord, error) {
	records, err := s.List(ctx)
	if err != nil {
		return domain.SubscriptionRecord{}, err
	}
	for _, rec := range records {
		if rec.VendorID == vendorID {
			return rec, nil
		}
	}
	return domain.SubscriptionRecord{}, apperrors.NewNotFound("subscription", map[string]any{"vendorId": vendorID})
}

// Unsubscribe removes a vendor. Absence is not an error.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, vendorID string) error {
	removed, err := s.repo.Delete(ctx, s.role, vendorID)
	if err != nil {
		return apperrors.NewStorageFailure("unsubscribe", err)
	}
	if removed {
		s.logger.Info("unsubscribed", zap.String("vendor_id", vendorID))
	}
	return nil
}

// Clear empties the ledger for this role.
func (s *SubscriptionService) Clear(ctx context.Context) error {
	n, err := s.repo.Clear(ctx, s.role)
	if err != nil {
		return apperrors.NewStorageFailure("clear", err)
	}
	s.logger.Info("ledger cleared", zap.Int64("removed", n))
	return nil
}

// List returns every entry in insertion order.
func (s *SubscriptionService) List(ctx context.Context) ([]domain.SubscriptionRecord, error) {
	records, err := s.repo.List(ctx, s.role)
	if err != nil {
		return nil, apperrors.NewStorageFailure("list", err)
	}
	return records, nil
}

// IsSubscribed reports whether vendorID is in the ledger.
func (s *SubscriptionService) IsSubscribed(ctx context.Context, vendorID string) (bool, error) {
	ok, err := s.repo.Exists(ctx, s.role, vendorID)
	if err != nil {
		return false, apperrors.NewStorageFailure("lookup", err)
	}
	return ok, nil
}
