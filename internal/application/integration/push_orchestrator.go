package integration

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/catalogsync/backend/internal/infrastructure/logger"
	"github.com/catalogsync/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PushConfig tunes the orchestrator
type PushConfig struct {
	// Retry is applied to every platform call
	Retry RetryPolicy
	// MediaPollInterval is the wait between media status checks
	MediaPollInterval time.Duration
	// MediaPollAttempts bounds the number of status checks
	MediaPollAttempts int
	// LockTimeout bounds the wait for the per-key lock
	LockTimeout time.Duration
}

// DefaultPushConfig returns production defaults
func DefaultPushConfig() PushConfig {
	return PushConfig{
		Retry:             DefaultRetryPolicy(),
		MediaPollInterval: 2 * time.Second,
		MediaPollAttempts: 15,
		LockTimeout:       2 * time.Minute,
	}
}

// PushOutcome is the result of pushing one product to one platform
type PushOutcome struct {
	CanonicalID uuid.UUID
	Platform    integration.PlatformCode
	Operation   integration.Operation
	ExternalID  string
	Status      integration.SyncStatus
	// LastStep is the last completed pipeline step, None for single-call platforms
	LastStep integration.PushState
	// Partial is set when the push completed but some media never became ready
	Partial bool
	// FailedMedia lists the source URLs of media that failed
	FailedMedia []string
	Duration    time.Duration
}

// CategoryResolver is implemented by payloads that carry a taxonomy decision
type CategoryResolver interface {
	CategoryResolution() (input, category, rule string)
}

// PushOrchestrator pushes canonical products to platforms. Single-call
// platforms get one create or update; multi-step platforms run the
// checkpointed pipeline, resuming after the last completed step.
type PushOrchestrator struct {
	products catalog.ProductReader
	ledger   *Ledger
	registry *Registry
	locker   integration.KeyLocker
	metrics  *telemetry.SyncMetrics
	cfg      PushConfig
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewPushOrchestrator creates an orchestrator. metrics may be nil.
func NewPushOrchestrator(
	products catalog.ProductReader,
	ledger *Ledger,
	registry *Registry,
	locker integration.KeyLocker,
	metrics *telemetry.SyncMetrics,
	cfg PushConfig,
) *PushOrchestrator {
	if cfg.MediaPollAttempts <= 0 {
		cfg.MediaPollAttempts = 1
	}
	return &PushOrchestrator{
		products: products,
		ledger:   ledger,
		registry: registry,
		locker:   locker,
		metrics:  metrics,
		cfg:      cfg,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Push synchronizes one product to one platform store. Pushes of the same
// (product, platform) pair are serialized; different pairs run concurrently.
func (o *PushOrchestrator) Push(ctx context.Context, canonicalID uuid.UUID, platform integration.PlatformCode, storeID string) (PushOutcome, error) {
	started := time.Now()
	outcome := PushOutcome{CanonicalID: canonicalID, Platform: platform}

	key, err := integration.NewRecordKey(canonicalID, platform)
	if err != nil {
		return outcome, integration.NewValidationError("push", err)
	}
	binding, err := o.registry.Get(platform)
	if err != nil {
		return outcome, integration.NewValidationError("push", err)
	}

	ctx = logger.WithSyncScope(ctx, logger.SyncScope{
		StoreID:     storeID,
		Platform:    platform.String(),
		CanonicalID: canonicalID.String(),
	})
	ctx, span := telemetry.StartServiceSpan(ctx, "sync", "Push",
		telemetry.WithAttribute(telemetry.SpanAttrPlatform, platform.String()),
		telemetry.WithAttribute(telemetry.SpanAttrStoreID, storeID),
		telemetry.WithAttribute(telemetry.SpanAttrCanonicalID, canonicalID.String()),
	)
	defer span.End()

	outcome, err = o.push(ctx, key, binding, storeID)
	outcome.Duration = time.Since(started)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrExternalID, outcome.ExternalID,
		telemetry.SpanAttrStep, outcome.LastStep.String(),
	)

	if err != nil {
		telemetry.SetAttributes(span, telemetry.SpanAttrErrorKind, string(integration.RootKind(err)))
		telemetry.RecordError(span, err)
		logger.L(ctx).Warn("push failed",
			zap.String("operation", string(outcome.Operation)),
			zap.String("kind", string(integration.KindOf(err))),
			zap.String("last_step", outcome.LastStep.String()),
			zap.Error(err),
		)
	} else {
		telemetry.SetOK(span)
		logger.L(ctx).Info("push completed",
			zap.String("operation", string(outcome.Operation)),
			zap.String("external_id", outcome.ExternalID),
			zap.Bool("partial", outcome.Partial),
			zap.Duration("duration", outcome.Duration),
		)
	}
	o.metrics.RecordPush(ctx, platform.String(), string(outcome.Operation), pushResult(outcome, err), outcome.Duration)
	return outcome, err
}

func pushResult(outcome PushOutcome, err error) string {
	switch {
	case err != nil:
		return string(integration.KindOf(err))
	case outcome.Partial:
		return "partial"
	default:
		return "ok"
	}
}

func (o *PushOrchestrator) push(ctx context.Context, key integration.RecordKey, binding PlatformBinding, storeID string) (PushOutcome, error) {
	outcome := PushOutcome{CanonicalID: key.CanonicalID, Platform: key.Platform}

	lockCtx := ctx
	if o.cfg.LockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, o.cfg.LockTimeout)
		defer cancel()
	}
	unlock, err := o.locker.Lock(lockCtx, key.String())
	if err != nil {
		return outcome, integration.NewTransientError("push.lock", err)
	}
	defer unlock()

	product, err := o.products.FindByID(ctx, key.CanonicalID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) || errors.Is(err, shared.ErrNotFound) {
			return outcome, integration.NewValidationError("catalog.find", err)
		}
		return outcome, err
	}

	record := o.ledger.Resolve(ctx, key.CanonicalID, key.Platform)
	if record.Unavailable {
		// without the ledger a CREATE could duplicate the product
		return outcome, integration.NewTransientError("ledger.resolve", integration.ErrLedgerUnavailable)
	}
	outcome.Operation = record.Operation(key.Platform)
	outcome.ExternalID = record.ExternalID
	outcome.LastStep = record.Checkpoint.Step

	if err := product.Validate(); err != nil {
		verr := integration.NewValidationError("catalog.validate", err)
		o.commitFailure(ctx, key, storeID, nil, verr)
		return outcome, verr
	}

	sc := integration.SyncContext{StoreID: storeID, Operation: outcome.Operation, Record: record}
	payload, err := binding.Transformer.ToPlatform(product, sc)
	if err != nil {
		o.commitFailure(ctx, key, storeID, nil, err)
		return outcome, err
	}
	if cr, ok := payload.(CategoryResolver); ok {
		input, category, rule := cr.CategoryResolution()
		logger.L(ctx).Info("category resolved",
			zap.String("input", input),
			zap.String("category", category),
			zap.String("rule", rule),
		)
	}

	if _, err := o.ledger.Commit(ctx, integration.SyncUpdate{
		Key:     key,
		StoreID: storeID,
		Status:  integration.SyncStatusPending,
	}); err != nil {
		return outcome, err
	}

	if binding.Multi != nil {
		mp, ok := payload.(integration.MultiStepPayload)
		if !ok {
			err := fmt.Errorf("%w: %T is not a multi-step payload", integration.ErrUnexpectedPayload, payload)
			o.commitFailure(ctx, key, storeID, nil, err)
			return outcome, err
		}
		return o.pushMultiStep(ctx, binding.Multi, key, storeID, record, mp, outcome)
	}
	return o.pushSingleCall(ctx, binding.Single, key, storeID, record, payload, outcome)
}

// commitFailure records an error on the ledger; a ledger failure here is only logged
func (o *PushOrchestrator) commitFailure(ctx context.Context, key integration.RecordKey, storeID string, cp *integration.Checkpoint, cause error) {
	_, err := o.ledger.Commit(ctx, integration.SyncUpdate{
		Key:        key,
		StoreID:    storeID,
		Status:     integration.SyncStatusError,
		Checkpoint: cp,
		Err:        cause,
	})
	if err != nil {
		logger.L(ctx).Error("failed to record push failure",
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
	}
}

// ---------------------------------------------------------------------------
// Single-call platforms
// ---------------------------------------------------------------------------

func (o *PushOrchestrator) pushSingleCall(
	ctx context.Context,
	client integration.SingleCallClient,
	key integration.RecordKey,
	storeID string,
	record integration.SyncRecord,
	payload integration.PlatformPayload,
	outcome PushOutcome,
) (PushOutcome, error) {
	externalID := record.ExternalID
	var err error
	if outcome.Operation == integration.OperationUpdate {
		err = o.cfg.Retry.Do(ctx, "update_product", func(ctx context.Context) error {
			return client.UpdateProduct(ctx, storeID, externalID, payload)
		})
	} else {
		err = o.cfg.Retry.DoOnce(ctx, "create_product", func(ctx context.Context) error {
			id, err := client.CreateProduct(ctx, storeID, payload)
			if id != "" {
				externalID = id
			}
			return err
		})
		if err == nil && externalID == "" {
			err = integration.NewMalformedRecord(key.Platform, "create returned no product id")
		}
	}
	if err != nil && externalID != "" && record.ExternalID == "" {
		// the product exists even though the write did not complete
		if _, cerr := o.ledger.Commit(ctx, integration.SyncUpdate{
			Key:        key,
			StoreID:    storeID,
			ExternalID: externalID,
			Status:     integration.SyncStatusError,
			Err:        err,
		}); cerr != nil {
			logger.L(ctx).Error("failed to record partially created product",
				zap.String("external_id", externalID),
				zap.NamedError("cause", err),
				zap.Error(cerr),
			)
		}
		outcome.ExternalID = externalID
		outcome.Status = integration.SyncStatusError
		return outcome, err
	}
	if err != nil {
		o.commitFailure(ctx, key, storeID, nil, err)
		outcome.Status = integration.SyncStatusError
		return outcome, err
	}

	rec, err := o.ledger.Commit(ctx, integration.SyncUpdate{
		Key:        key,
		StoreID:    storeID,
		ExternalID: externalID,
		Status:     integration.SyncStatusSynced,
	})
	if err != nil {
		if integration.KindOf(err) != integration.KindIdentityConflict {
			logger.L(ctx).Error("product written but ledger commit failed",
				zap.String("external_id", externalID),
				zap.Error(err),
			)
		}
		return outcome, err
	}
	outcome.ExternalID = rec.ExternalID
	outcome.Status = rec.Status
	return outcome, nil
}

// ---------------------------------------------------------------------------
// Multi-step platforms
// ---------------------------------------------------------------------------

// pushRun is the mutable state of one multi-step push
type pushRun struct {
	client    integration.MultiStepClient
	key       integration.RecordKey
	storeID   string
	productID string
	payload   integration.MultiStepPayload
	cp        integration.Checkpoint
}

func (o *PushOrchestrator) pushMultiStep(
	ctx context.Context,
	client integration.MultiStepClient,
	key integration.RecordKey,
	storeID string,
	record integration.SyncRecord,
	payload integration.MultiStepPayload,
	outcome PushOutcome,
) (PushOutcome, error) {
	run := &pushRun{
		client:  client,
		key:     key,
		storeID: storeID,
		payload: payload,
		cp:      record.Checkpoint.Clone(),
	}
	if outcome.Operation == integration.OperationUpdate {
		run.productID = record.ExternalID
	}
	if run.productID == "" && run.cp.Step != integration.PushStateNone {
		logger.L(ctx).Warn("checkpoint without product id, restarting pipeline",
			zap.String("step", run.cp.Step.String()),
		)
		run.cp = integration.Checkpoint{}
	}
	if run.cp.Step == integration.PushStateFailed {
		run.cp.Step = integration.PushStateNone
	}

	if run.cp.Step == integration.PushStateActivated {
		return o.refreshActivated(ctx, run, outcome)
	}

	state := run.cp.Step
	if state != integration.PushStateNone {
		logger.L(ctx).Info("resuming push", zap.String("after_step", state.String()))
	}
	for {
		step, ok := integration.NextStep(state)
		if !ok {
			break
		}
		stepErr := o.runStep(ctx, run, step)
		o.metrics.RecordStep(ctx, key.Platform.String(), string(step), stepErr == nil)

		next := integration.NextPushState(state, integration.StepResult{Step: step, Err: stepErr})
		if next == integration.PushStateFailed {
			failure := integration.NewPartialStepFailure(step, stepErr)
			cp := run.cp.Clone()
			cp.Step = state
			o.commitStepFailure(ctx, run, cp, failure)
			outcome.ExternalID = run.productID
			outcome.LastStep = state
			outcome.Status = integration.SyncStatusError
			return outcome, failure
		}

		state = next
		run.cp.Step = state
		status := integration.SyncStatusPending
		if state == integration.PushStateActivated {
			status = integration.SyncStatusSynced
		}
		if err := o.commitStep(ctx, run, status); err != nil {
			if state == integration.PushStateCreated {
				// the next push cannot find this product and creates another
				logger.L(ctx).Error("product shell created but not recorded",
					zap.String("product_id", run.productID),
					zap.Error(err),
				)
			}
			outcome.ExternalID = run.productID
			outcome.LastStep = state
			return outcome, err
		}
		logger.L(ctx).Debug("push step completed", zap.String("step", step.String()))
	}

	outcome.ExternalID = run.productID
	outcome.LastStep = state
	outcome.Status = integration.SyncStatusSynced
	outcome.Partial = run.cp.Partial()
	outcome.FailedMedia = run.cp.FailedMedia
	return outcome, nil
}

// refreshActivated updates a product that already completed the pipeline
func (o *PushOrchestrator) refreshActivated(ctx context.Context, run *pushRun, outcome PushOutcome) (PushOutcome, error) {
	outcome.ExternalID = run.productID
	outcome.LastStep = integration.PushStateActivated

	// media goes first so the product update carries the current media ids
	steps := []struct {
		step integration.PushState
		fn   func() error
	}{
		{integration.PushStateMediaUploaded, func() error { return o.uploadMedia(ctx, run) }},
		{integration.PushStateActivated, func() error {
			if err := o.bindMedia(run); err != nil {
				return err
			}
			return o.cfg.Retry.Do(ctx, "update_product", func(ctx context.Context) error {
				return run.client.UpdateProduct(ctx, run.storeID, run.productID, run.payload)
			})
		}},
		{integration.PushStateVariantsCreated, func() error { return o.createVariants(ctx, run) }},
		{integration.PushStateVariantsUpdated, func() error { return o.updateVariants(ctx, run) }},
		{integration.PushStateInventorySet, func() error { return o.setInventory(ctx, run) }},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			failure := integration.NewPartialStepFailure(s.step, err)
			o.commitStepFailure(ctx, run, run.cp.Clone(), failure)
			outcome.Status = integration.SyncStatusError
			return outcome, failure
		}
	}
	if err := o.commitStep(ctx, run, integration.SyncStatusSynced); err != nil {
		return outcome, err
	}
	outcome.Status = integration.SyncStatusSynced
	outcome.Partial = run.cp.Partial()
	outcome.FailedMedia = run.cp.FailedMedia
	return outcome, nil
}

// commitStep persists the checkpoint; the pipeline does not advance past an
// unpersisted step
func (o *PushOrchestrator) commitStep(ctx context.Context, run *pushRun, status integration.SyncStatus) error {
	cp := run.cp.Clone()
	return o.cfg.Retry.Do(ctx, "ledger.commit", func(ctx context.Context) error {
		_, err := o.ledger.Commit(ctx, integration.SyncUpdate{
			Key:        run.key,
			StoreID:    run.storeID,
			ExternalID: run.productID,
			Status:     status,
			Checkpoint: &cp,
		})
		return err
	})
}

func (o *PushOrchestrator) commitStepFailure(ctx context.Context, run *pushRun, cp integration.Checkpoint, failure error) {
	_, err := o.ledger.Commit(ctx, integration.SyncUpdate{
		Key:        run.key,
		StoreID:    run.storeID,
		ExternalID: run.productID,
		Status:     integration.SyncStatusError,
		Checkpoint: &cp,
		Err:        failure,
	})
	if err != nil {
		logger.L(ctx).Error("failed to record step failure",
			zap.String("product_id", run.productID),
			zap.NamedError("cause", failure),
			zap.Error(err),
		)
	}
}

func (o *PushOrchestrator) runStep(ctx context.Context, run *pushRun, step integration.PushState) error {
	switch step {
	case integration.PushStateCreated:
		return o.createShell(ctx, run)
	case integration.PushStateMediaUploaded:
		return o.uploadMedia(ctx, run)
	case integration.PushStateVariantsCreated:
		return o.createVariants(ctx, run)
	case integration.PushStateVariantsUpdated:
		return o.updateVariants(ctx, run)
	case integration.PushStateInventorySet:
		return o.setInventory(ctx, run)
	case integration.PushStateMetadataSet:
		if err := o.bindMedia(run); err != nil {
			return err
		}
		return o.cfg.Retry.Do(ctx, "update_metadata", func(ctx context.Context) error {
			return run.client.UpdateMetadata(ctx, run.storeID, run.productID, run.payload)
		})
	case integration.PushStateActivated:
		return o.cfg.Retry.Do(ctx, "activate", func(ctx context.Context) error {
			return run.client.Activate(ctx, run.storeID, run.productID, run.payload)
		})
	default:
		return fmt.Errorf("%w: no executor for step %s", integration.ErrUnexpectedPayload, step)
	}
}

func (o *PushOrchestrator) createShell(ctx context.Context, run *pushRun) error {
	variants := run.payload.VariantInputs()
	if len(variants) == 0 {
		return integration.NewValidationError("create_shell", fmt.Errorf("%w: payload has no variants", integration.ErrUnexpectedPayload))
	}
	var shell integration.ShellResult
	err := o.cfg.Retry.DoOnce(ctx, "create_shell", func(ctx context.Context) error {
		var err error
		shell, err = run.client.CreateProductShell(ctx, run.storeID, run.payload)
		return err
	})
	if err != nil {
		return err
	}
	if shell.ProductID == "" {
		return integration.NewMalformedRecord(run.key.Platform, "shell create returned no product id")
	}
	run.productID = shell.ProductID
	if shell.DefaultVariant.VariantID != "" {
		run.cp.SetVariant(variants[0].Key, shell.DefaultVariant.VariantID, shell.DefaultVariant.InventoryItemID)
	}
	return nil
}

func (o *PushOrchestrator) bindMedia(run *pushRun) error {
	if err := run.payload.BindMedia(run.cp.MediaIDs); err != nil {
		return integration.NewValidationError("bind_media", err)
	}
	return nil
}

// uploadMedia uploads images not yet attached and polls until each settles.
// Uploaded ids are checkpointed before polling so a retry polls them again
// instead of uploading twice. Media that fails or never settles is reported
// and retried by the next push.
func (o *PushOrchestrator) uploadMedia(ctx context.Context, run *pushRun) error {
	run.cp.FailedMedia = nil

	waiting := make(map[string]string, len(run.cp.PendingMedia))
	for source, id := range run.cp.PendingMedia {
		waiting[id] = source
	}
	var upload []integration.MediaInput
	for _, m := range run.payload.Media() {
		if _, done := run.cp.MediaIDs[m.SourceURL]; done {
			continue
		}
		if _, uploaded := run.cp.PendingMedia[m.SourceURL]; uploaded {
			continue
		}
		upload = append(upload, m)
	}

	if len(upload) > 0 {
		var refs []integration.MediaRef
		err := o.cfg.Retry.DoOnce(ctx, "upload_media", func(ctx context.Context) error {
			var err error
			refs, err = run.client.UploadMedia(ctx, run.storeID, run.productID, upload)
			return err
		})
		if err != nil {
			return err
		}

		bySource := make(map[string]string, len(refs))
		for _, ref := range refs {
			if ref.MediaID != "" {
				bySource[ref.SourceURL] = ref.MediaID
			}
		}
		for _, m := range upload {
			if id, ok := bySource[m.SourceURL]; ok {
				waiting[id] = m.SourceURL
				run.cp.SetPendingMedia(m.SourceURL, id)
			} else {
				run.cp.FailedMedia = append(run.cp.FailedMedia, m.SourceURL)
			}
		}
		if len(bySource) > 0 {
			if err := o.commitStep(ctx, run, integration.SyncStatusPending); err != nil {
				return err
			}
		}
	}

	for attempt := 0; attempt < o.cfg.MediaPollAttempts && len(waiting) > 0; attempt++ {
		if attempt > 0 {
			if err := o.sleep(ctx, o.cfg.MediaPollInterval); err != nil {
				return integration.NewTransientError("poll_media", err)
			}
		}
		ids := make([]string, 0, len(waiting))
		for id := range waiting {
			ids = append(ids, id)
		}
		var statuses map[string]integration.MediaStatus
		err := o.cfg.Retry.Do(ctx, "media_status", func(ctx context.Context) error {
			var err error
			statuses, err = run.client.GetMediaStatus(ctx, run.storeID, run.productID, ids)
			return err
		})
		if err != nil {
			return err
		}
		for id, source := range waiting {
			switch statuses[id] {
			case integration.MediaStatusReady:
				run.cp.SetMedia(source, id)
				delete(waiting, id)
			case integration.MediaStatusFailed:
				run.cp.DropPendingMedia(source)
				run.cp.FailedMedia = append(run.cp.FailedMedia, source)
				delete(waiting, id)
			}
		}
	}

	// unsettled media stays pending and is polled again by the next push
	for _, source := range waiting {
		run.cp.FailedMedia = append(run.cp.FailedMedia, source)
	}
	if len(run.cp.FailedMedia) > 0 {
		slices.Sort(run.cp.FailedMedia)
		logger.L(ctx).Warn("media skipped",
			zap.Strings("failed_media", run.cp.FailedMedia),
		)
	}
	return nil
}

// createVariants creates every variant that has no platform id yet
func (o *PushOrchestrator) createVariants(ctx context.Context, run *pushRun) error {
	var missing []integration.VariantInput
	for _, v := range run.payload.VariantInputs() {
		if _, ok := run.cp.VariantIDs[v.Key]; !ok {
			missing = append(missing, v)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	var refs []integration.VariantRef
	err := o.cfg.Retry.DoOnce(ctx, "create_variants", func(ctx context.Context) error {
		var err error
		refs, err = run.client.CreateVariants(ctx, run.storeID, run.productID, missing)
		return err
	})
	if err != nil {
		return err
	}
	for _, ref := range refs {
		run.cp.SetVariant(ref.Key, ref.VariantID, ref.InventoryItemID)
	}
	for _, v := range missing {
		if _, ok := run.cp.VariantIDs[v.Key]; !ok {
			return integration.NewMalformedRecord(run.key.Platform, "variant %q was not created", v.Key)
		}
	}
	return nil
}

func (o *PushOrchestrator) updateVariants(ctx context.Context, run *pushRun) error {
	inputs := run.payload.VariantInputs()
	updates := make([]integration.VariantUpdate, 0, len(inputs))
	for _, v := range inputs {
		id, ok := run.cp.VariantIDs[v.Key]
		if !ok {
			return integration.NewMalformedRecord(run.key.Platform, "no variant id for %q", v.Key)
		}
		u := integration.VariantUpdate{
			VariantID:      id,
			Price:          v.Price,
			CompareAtPrice: v.CompareAtPrice,
			SKU:            v.SKU,
			Weight:         v.Weight,
			WeightUnit:     v.WeightUnit,
		}
		if v.ImageSourceURL != "" {
			u.MediaID = run.cp.MediaIDs[v.ImageSourceURL]
		}
		updates = append(updates, u)
	}
	return o.cfg.Retry.Do(ctx, "update_variants", func(ctx context.Context) error {
		return run.client.UpdateVariants(ctx, run.storeID, run.productID, updates)
	})
}

// setInventory writes absolute quantities, zero included
func (o *PushOrchestrator) setInventory(ctx context.Context, run *pushRun) error {
	inputs := run.payload.VariantInputs()
	quantities := make([]integration.InventoryQuantity, 0, len(inputs))
	for _, v := range inputs {
		itemID, ok := run.cp.InventoryItemIDs[v.Key]
		if !ok {
			return integration.NewMalformedRecord(run.key.Platform, "no inventory item for %q", v.Key)
		}
		quantities = append(quantities, integration.InventoryQuantity{
			InventoryItemID: itemID,
			Quantity:        v.Quantity,
		})
	}
	return o.cfg.Retry.Do(ctx, "set_inventory", func(ctx context.Context) error {
		return run.client.SetInventory(ctx, run.storeID, quantities, true)
	})
}
