package services

import (
	"context"
	"fmt"

	"catalog-service/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// VariantStore is the transaction-bound store the reconciler reads and writes through
type VariantStore interface {
	UPIDChecker
	GetProduct(ctx context.Context, tenantID string, productID uuid.UUID) (*models.Product, error)
	LockProduct(ctx context.Context, tenantID string, productID uuid.UUID) (*models.Product, error)
	FindAttributeValues(ctx context.Context, tenantID string, ids []uuid.UUID) ([]models.AttributeValue, error)
	ListVariants(ctx context.Context, tenantID string, productID uuid.UUID) ([]models.ProductVariant, error)
	ListVariantArtifacts(ctx context.Context, tenantID string, variantIDs []uuid.UUID) ([]models.StoredArtifact, error)
	DeleteVariants(ctx context.Context, tenantID string, ids []uuid.UUID) error
	InsertVariants(ctx context.Context, variants []models.ProductVariant) error
}

// ReconcileResult reports how the persisted variants changed
type ReconcileResult struct {
	Kept            []models.ProductVariant
	Inserted        []models.ProductVariant
	DeletedIDs      []uuid.UUID
	// Artifacts are stored objects of media owned by deleted variants, removed after commit
	Artifacts       []models.StoredArtifact
	CleanupFailures int
}

// Changed reports whether any row was inserted or deleted
func (r *ReconcileResult) Changed() bool {
	return len(r.Inserted) > 0 || len(r.DeletedIDs) > 0
}

// VariantReconciler brings a product's variant rows in line with a desired color x size matrix
type VariantReconciler struct {
	generator *UPIDGenerator
	logger    *logrus.Entry
}

func NewVariantReconciler(generator *UPIDGenerator, logger *logrus.Logger) *VariantReconciler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &VariantReconciler{
		generator: generator,
		logger:    logger.WithField("component", "variant-reconciler"),
	}
}

// Reconcile must run on a store bound to the caller's transaction. Rows whose (color, size)
// key survives keep their id and UPID; missing keys are inserted with fresh UPIDs and
// obsolete rows are deleted in one statement together with their media rows. Passing no
// colors and no sizes changes nothing but still requires the product to exist.
func (r *VariantReconciler) Reconcile(ctx context.Context, store VariantStore, tenantID string, productID uuid.UUID, colors, sizes []uuid.UUID) (*ReconcileResult, error) {
	result := &ReconcileResult{
		Kept:       []models.ProductVariant{},
		Inserted:   []models.ProductVariant{},
		DeletedIDs: []uuid.UUID{},
	}

	colors = dedupeIDs(colors)
	sizes = dedupeIDs(sizes)
	if len(colors) == 0 && len(sizes) == 0 {
		if _, err := store.GetProduct(ctx, tenantID, productID); err != nil {
			return nil, mapRepositoryError(err)
		}
		return result, nil
	}

	if _, err := store.LockProduct(ctx, tenantID, productID); err != nil {
		return nil, mapRepositoryError(err)
	}

	if err := r.validateDimensionValues(ctx, store, tenantID, colors, sizes); err != nil {
		return nil, err
	}

	desired := desiredKeys(colors, sizes)

	existing, err := store.ListVariants(ctx, tenantID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load variants: %w", mapRepositoryError(err))
	}

	plan := planVariants(existing, desired)
	result.Kept = plan.kept
	result.DeletedIDs = plan.deleted
	toInsert := plan.missing

	if len(result.DeletedIDs) > 0 {
		artifacts, err := store.ListVariantArtifacts(ctx, tenantID, result.DeletedIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to collect variant artifacts: %w", mapRepositoryError(err))
		}
		result.Artifacts = artifacts
		if err := store.DeleteVariants(ctx, tenantID, result.DeletedIDs); err != nil {
			return nil, fmt.Errorf("failed to delete variants: %w", mapRepositoryError(err))
		}
	}

	if len(toInsert) > 0 {
		codes, err := r.generator.GenerateUnique(ctx, store, len(toInsert))
		if err != nil {
			return nil, err
		}
		rows := make([]models.ProductVariant, len(toInsert))
		for i, key := range toInsert {
			rows[i] = models.ProductVariant{
				ID:           uuid.New(),
				TenantID:     tenantID,
				ProductID:    productID,
				ColorValueID: key.Color.Ptr(),
				SizeValueID:  key.Size.Ptr(),
				UPID:         codes[i],
			}
		}
		if err := store.InsertVariants(ctx, rows); err != nil {
			return nil, fmt.Errorf("failed to insert variants: %w", mapRepositoryError(err))
		}
		result.Inserted = rows
	}

	r.logger.WithFields(logrus.Fields{
		"tenant_id":  tenantID,
		"product_id": productID,
		"kept":       len(result.Kept),
		"inserted":   len(result.Inserted),
		"deleted":    len(result.DeletedIDs),
	}).Debug("Variant matrix reconciled")

	return result, nil
}

// validateDimensionValues checks every id is one of the tenant's values of the matching dimension
func (r *VariantReconciler) validateDimensionValues(ctx context.Context, store VariantStore, tenantID string, colors, sizes []uuid.UUID) error {
	ids := make([]uuid.UUID, 0, len(colors)+len(sizes))
	ids = append(ids, colors...)
	ids = append(ids, sizes...)

	values, err := store.FindAttributeValues(ctx, tenantID, ids)
	if err != nil {
		return fmt.Errorf("failed to load attribute values: %w", mapRepositoryError(err))
	}
	dimensions := make(map[uuid.UUID]models.Dimension, len(values))
	for _, v := range values {
		dimensions[v.ID] = v.Dimension
	}

	for _, id := range colors {
		if dimensions[id] != models.DimensionColor {
			return fmt.Errorf("%w: %s is not a color of this brand", ErrInvalidDimensionValue, id)
		}
	}
	for _, id := range sizes {
		if dimensions[id] != models.DimensionSize {
			return fmt.Errorf("%w: %s is not a size of this brand", ErrInvalidDimensionValue, id)
		}
	}
	return nil
}

type variantPlan struct {
	kept    []models.ProductVariant
	deleted []uuid.UUID
	missing []models.VariantKey
}

// planVariants diffs existing rows against the desired keys. Rows are matched by key only,
// so a surviving key keeps its row untouched.
func planVariants(existing []models.ProductVariant, desired []models.VariantKey) variantPlan {
	plan := variantPlan{
		kept:    []models.ProductVariant{},
		deleted: []uuid.UUID{},
		missing: make([]models.VariantKey, 0, len(desired)),
	}
	wanted := make(map[models.VariantKey]struct{}, len(desired))
	for _, key := range desired {
		wanted[key] = struct{}{}
	}
	present := make(map[models.VariantKey]struct{}, len(existing))
	for _, v := range existing {
		key := v.Key()
		if _, ok := wanted[key]; ok {
			plan.kept = append(plan.kept, v)
			present[key] = struct{}{}
			continue
		}
		plan.deleted = append(plan.deleted, v.ID)
	}
	for _, key := range desired {
		if _, ok := present[key]; !ok {
			plan.missing = append(plan.missing, key)
		}
	}
	return plan
}

// desiredKeys is the cartesian product of both axes; an empty axis contributes a single null
func desiredKeys(colors, sizes []uuid.UUID) []models.VariantKey {
	colorSlots := axisSlots(colors)
	sizeSlots := axisSlots(sizes)
	keys := make([]models.VariantKey, 0, len(colorSlots)*len(sizeSlots))
	for _, c := range colorSlots {
		for _, s := range sizeSlots {
			keys = append(keys, models.VariantKey{Color: c, Size: s})
		}
	}
	return keys
}

func axisSlots(values []uuid.UUID) []models.OptionalID {
	if len(values) == 0 {
		return []models.OptionalID{{}}
	}
	slots := make([]models.OptionalID, len(values))
	for i, v := range values {
		slots[i] = models.SomeID(v)
	}
	return slots
}

// dedupeIDs drops repeats, keeping first occurrences in order
func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
