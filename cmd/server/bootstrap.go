package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	syncapp "github.com/catalogsync/backend/internal/application/integration"
	"github.com/catalogsync/backend/internal/domain/convert"
	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/config"
	"github.com/catalogsync/backend/internal/infrastructure/ecommerce"
	"github.com/catalogsync/backend/internal/infrastructure/scheduler"
	"github.com/catalogsync/backend/internal/infrastructure/storage"
	"github.com/catalogsync/backend/internal/infrastructure/telemetry"
)

// platformDeps are the collaborators shared by every platform binding
type platformDeps struct {
	credentials *ecommerce.EnvCredentialStore
	taxonomy    *convert.Taxonomy
	proxy       integration.ImageProxy
	metrics     *telemetry.SyncMetrics
	userAgent   string
	log         *zap.Logger
}

// newTaxonomy builds the product type table, falling back to the built-in one
func newTaxonomy(cfg config.TaxonomyConfig) (*convert.Taxonomy, error) {
	entries := convert.DefaultTaxonomyEntries()
	if len(cfg.Entries) > 0 {
		entries = make([]convert.TaxonomyEntry, 0, len(cfg.Entries))
		for _, e := range cfg.Entries {
			entries = append(entries, convert.TaxonomyEntry{Name: e.Name, Category: e.Category, Keywords: e.Keywords})
		}
	}
	return convert.NewTaxonomy(entries, cfg.DefaultCategory)
}

// newImageProxy returns nil when rewriting is disabled
func newImageProxy(cfg config.ImageProxyConfig) integration.ImageProxy {
	if !cfg.Enabled || cfg.BaseURL == "" {
		return nil
	}
	return ecommerce.NewURLImageProxy(cfg.BaseURL)
}

// newContentStore selects the storefront document backend
func newContentStore(ctx context.Context, cfg *config.Config, sf *ecommerce.StorefrontConfig, opts ecommerce.ClientOptions, log *zap.Logger) (ecommerce.ContentStore, error) {
	switch cfg.Storage.Backend {
	case "s3":
		return storage.NewS3ContentStore(ctx, &cfg.Storage.S3, storage.WithLogger(log.Named("s3")))
	case "memory":
		log.Warn("storefront documents are kept in memory and lost on restart")
		return storage.NewMemoryContentStore(), nil
	case "contents_api", "":
		return ecommerce.NewContentsAPIStore(sf, opts)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// buildRegistry binds the three platforms. A platform is registered even
// without configured stores, so pushes fail per store rather than per platform.
func buildRegistry(ctx context.Context, cfg *config.Config, deps platformDeps) (*syncapp.Registry, error) {
	registry := syncapp.NewRegistry()
	opts := ecommerce.ClientOptions{Metrics: deps.metrics, UserAgent: deps.userAgent}

	woo := ecommerce.NewWooCommerceConfig()
	applyPlatformConfig(&woo.APIVersion, &woo.RequestsPerSecond, &woo.Burst, &woo.WeightUnit, &woo.WeightPrecision, cfg.Platforms.WooCommerce)
	wooClient, err := ecommerce.NewWooCommerceClient(woo, deps.credentials, opts)
	if err != nil {
		return nil, fmt.Errorf("woocommerce client: %w", err)
	}
	if err := registry.Register(syncapp.PlatformBinding{
		Transformer: ecommerce.NewWooCommerceTransformer(woo, deps.taxonomy, deps.proxy),
		Single:      wooClient,
	}); err != nil {
		return nil, err
	}

	shop := ecommerce.NewShopifyConfig()
	applyPlatformConfig(&shop.APIVersion, &shop.RequestsPerSecond, &shop.Burst, &shop.WeightUnit, &shop.WeightPrecision, cfg.Platforms.Shopify)
	shopClient, err := ecommerce.NewShopifyClient(shop, deps.credentials, opts)
	if err != nil {
		return nil, fmt.Errorf("shopify client: %w", err)
	}
	if err := registry.Register(syncapp.PlatformBinding{
		Transformer: ecommerce.NewShopifyTransformer(shop, deps.taxonomy, deps.proxy),
		Multi:       shopClient,
	}); err != nil {
		return nil, err
	}

	sf := ecommerce.NewStorefrontConfig()
	applyPlatformConfig(&sf.APIVersion, &sf.RequestsPerSecond, &sf.Burst, &sf.WeightUnit, &sf.WeightPrecision, cfg.Platforms.Storefront)
	if cfg.Storage.ContentDir != "" {
		sf.ContentDir = cfg.Storage.ContentDir
	}
	store, err := newContentStore(ctx, cfg, sf, opts, deps.log)
	if err != nil {
		return nil, fmt.Errorf("storefront content store: %w", err)
	}
	sfClient, err := ecommerce.NewStorefrontClient(sf, deps.credentials, store)
	if err != nil {
		return nil, fmt.Errorf("storefront client: %w", err)
	}
	if err := registry.Register(syncapp.PlatformBinding{
		Transformer: ecommerce.NewStorefrontTransformer(sf, deps.taxonomy),
		Single:      sfClient,
	}); err != nil {
		return nil, err
	}

	for _, code := range registry.Platforms() {
		deps.log.Info("platform registered",
			zap.String("platform", code.String()),
			zap.String("push_shape", string(code.PushShape())),
			zap.Strings("stores", deps.credentials.StoreIDs(code)),
		)
	}
	return registry, nil
}

// applyPlatformConfig overlays the non-zero file settings onto a client config
func applyPlatformConfig(apiVersion *string, rps *float64, burst *int, unit *convert.MassUnit, precision *int32, p config.PlatformConfig) {
	if p.APIVersion != "" {
		*apiVersion = p.APIVersion
	}
	if p.RequestsPerSecond > 0 {
		*rps = p.RequestsPerSecond
	}
	if p.Burst > 0 {
		*burst = p.Burst
	}
	if p.WeightUnit != "" {
		*unit = convert.MassUnit(p.WeightUnit)
	}
	if p.WeightPrecision > 0 {
		*precision = p.WeightPrecision
	}
}

// startResync runs the background re-push of failed records. The returned
// func stops the trigger before the workers.
func startResync(ctx context.Context, cfg config.ResyncConfig, bulk scheduler.BulkPusher, records scheduler.RecordLister, platforms []integration.PlatformCode, log *zap.Logger) (func(), error) {
	sched, err := scheduler.NewScheduler(scheduler.SchedulerConfig{
		MaxConcurrentJobs: cfg.Workers,
		JobTimeout:        cfg.JobTimeout,
		QueueSize:         scheduler.DefaultSchedulerConfig().QueueSize,
	}, scheduler.NewBulkExecutor(bulk, 0), log)
	if err != nil {
		return nil, err
	}
	trigger := scheduler.NewResyncTrigger(scheduler.ResyncConfig{
		Interval:   cfg.Interval,
		Platforms:  platforms,
		BatchSize:  cfg.BatchSize,
		MaxRecords: cfg.MaxRecords,
	}, sched, records, log)

	if err := sched.Start(ctx); err != nil {
		return nil, err
	}
	if err := trigger.Start(ctx); err != nil {
		_ = sched.Stop(ctx)
		return nil, err
	}
	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := trigger.Stop(stopCtx); err != nil {
			log.Warn("Resync trigger stop failed", zap.Error(err))
		}
		if err := sched.Stop(stopCtx); err != nil {
			log.Warn("Resync scheduler stop failed", zap.Error(err))
		}
	}, nil
}
