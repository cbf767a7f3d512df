package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PullService reads products back from platforms into the canonical catalog
type PullService struct {
	products catalog.ProductRepository
	ledger   *Ledger
	registry *Registry
	retry    RetryPolicy
}

// NewPullService creates a PullService
func NewPullService(products catalog.ProductRepository, ledger *Ledger, registry *Registry, retry RetryPolicy) *PullService {
	return &PullService{
		products: products,
		ledger:   ledger,
		registry: registry,
		retry:    retry,
	}
}

// Pull refreshes a synced product from the platform and saves it
func (s *PullService) Pull(ctx context.Context, canonicalID uuid.UUID, platform integration.PlatformCode, storeID string) (*catalog.Product, error) {
	ctx = logger.WithSyncScope(ctx, logger.SyncScope{
		StoreID:     storeID,
		Platform:    platform.String(),
		CanonicalID: canonicalID.String(),
	})
	record := s.ledger.Resolve(ctx, canonicalID, platform)
	if record.Unavailable {
		return nil, integration.NewTransientError("ledger.resolve", integration.ErrLedgerUnavailable)
	}
	externalID, err := record.ExternalIDFor(platform)
	if err != nil {
		return nil, integration.NewValidationError("pull", err)
	}
	return s.pull(ctx, record.Key(), storeID, externalID)
}

// Import reads a platform product by its external id. A product already bound
// in the ledger is refreshed; otherwise a new canonical product is created and
// bound. A canonical id carried in the platform's side-channel metadata is
// reused when present.
func (s *PullService) Import(ctx context.Context, platform integration.PlatformCode, storeID, externalID string) (*catalog.Product, error) {
	if externalID == "" {
		return nil, integration.NewValidationError("import", errors.New("external id required"))
	}
	existing, err := s.ledger.FindByExternalID(ctx, platform, externalID)
	switch {
	case err == nil:
		return s.pull(ctx, existing.Key(), storeID, externalID)
	case !errors.Is(err, integration.ErrSyncRecordNotFound):
		return nil, integration.NewTransientError("ledger.find", fmt.Errorf("%w: %w", integration.ErrLedgerUnavailable, err))
	}

	product, err := s.fetch(ctx, platform, storeID, externalID)
	if err != nil {
		return nil, err
	}
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	key, err := integration.NewRecordKey(product.ID, platform)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, key, storeID, externalID, product)
}

func (s *PullService) pull(ctx context.Context, key integration.RecordKey, storeID, externalID string) (*catalog.Product, error) {
	product, err := s.fetch(ctx, key.Platform, storeID, externalID)
	if err != nil {
		return nil, err
	}
	if product.ID != uuid.Nil && product.ID != key.CanonicalID {
		// the platform product claims a different canonical identity
		return nil, integration.NewIdentityConflict(key, key.CanonicalID.String(), product.ID.String())
	}
	product.ID = key.CanonicalID
	return s.save(ctx, key, storeID, externalID, product)
}

func (s *PullService) fetch(ctx context.Context, platform integration.PlatformCode, storeID, externalID string) (*catalog.Product, error) {
	binding, err := s.registry.Get(platform)
	if err != nil {
		return nil, integration.NewValidationError("pull", err)
	}
	var record integration.PlatformRecord
	err = s.retry.Do(ctx, "get_product", func(ctx context.Context) error {
		var err error
		if binding.Multi != nil {
			record, err = binding.Multi.GetProduct(ctx, storeID, externalID)
		} else {
			record, err = binding.Single.GetProduct(ctx, storeID, externalID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return binding.Transformer.FromPlatform(record)
}

// save merges the pulled product over the stored one and binds it in the ledger
func (s *PullService) save(ctx context.Context, key integration.RecordKey, storeID, externalID string, pulled *catalog.Product) (*catalog.Product, error) {
	current, err := s.products.FindByID(ctx, key.CanonicalID)
	switch {
	case err == nil:
		pulled.CreatedAt = current.CreatedAt
		for platform, raw := range current.Extras {
			if pulled.Extra(platform) == nil {
				pulled.SetExtra(platform, raw)
			}
		}
	case errors.Is(err, catalog.ErrProductNotFound):
	default:
		return nil, err
	}
	pulled.Touch()
	if err := pulled.Validate(); err != nil {
		return nil, integration.NewValidationError("pull.validate", err)
	}

	if _, err := s.ledger.Commit(ctx, integration.SyncUpdate{
		Key:        key,
		StoreID:    storeID,
		ExternalID: externalID,
		Status:     integration.SyncStatusSynced,
	}); err != nil {
		return nil, err
	}
	if err := s.products.Save(ctx, pulled); err != nil {
		return nil, err
	}
	logger.L(ctx).Info("product pulled",
		zap.String("canonical_id", key.CanonicalID.String()),
		zap.String("external_id", externalID),
	)
	return pulled, nil
}
