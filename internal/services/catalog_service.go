package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EventPublisher receives committed catalog changes. Implementations publish asynchronously.
type EventPublisher interface {
	PublishProductCreated(ctx context.Context, product *models.Product, actorID string) error
	PublishProductUpdated(ctx context.Context, product *models.Product, changedFields []string, actorID string) error
	PublishBulkUpdated(ctx context.Context, tenantID string, productIDs []uuid.UUID, changedFields []string, actorID string) error
	PublishBulkDeleted(ctx context.Context, tenantID string, productIDs []uuid.UUID, actorID string) error
	PublishVariantsReconciled(ctx context.Context, tenantID string, productID uuid.UUID, inserted []models.ProductVariant, deletedIDs []uuid.UUID, actorID string) error
}

// CatalogService is the caller-facing API for selections, guarded bulk writes and
// variant matrix changes
type CatalogService struct {
	repo       repository.CatalogRepositoryInterface
	resolver   *SelectionResolver
	guard      *BulkGuard
	reconciler *VariantReconciler
	publisher  EventPublisher
	logger     *logrus.Entry
}

// NewCatalogService creates a new CatalogService. publisher may be nil.
func NewCatalogService(repo repository.CatalogRepositoryInterface, resolver *SelectionResolver, guard *BulkGuard, reconciler *VariantReconciler, publisher EventPublisher, logger *logrus.Logger) *CatalogService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CatalogService{
		repo:       repo,
		resolver:   resolver,
		guard:      guard,
		reconciler: reconciler,
		publisher:  publisher,
		logger:     logger.WithField("component", "catalog-service"),
	}
}

// ResolveCount returns how many products the selection currently denotes
func (s *CatalogService) ResolveCount(ctx context.Context, tenantID string, sel models.Selection) (int, error) {
	resolved, err := s.resolver.Resolve(ctx, s.repo, tenantID, sel)
	if err != nil {
		return 0, err
	}
	return resolved.Count, nil
}

// BulkUpdate applies patch to every selected product behind the bulk guard
func (s *CatalogService) BulkUpdate(ctx context.Context, tenantID string, sel models.Selection, patch models.ProductPatch, opts models.BulkOptions, actorID string) (*models.BulkResult, error) {
	outcome, err := s.guard.Execute(ctx, tenantID, sel, models.BulkUpdate{Patch: patch}, opts, actorID)
	if err != nil {
		return nil, err
	}
	if !outcome.Preview && len(outcome.ProductIDs) > 0 {
		s.repo.InvalidateProductCaches(ctx, tenantID, outcome.ProductIDs...)
		if s.publisher != nil {
			_ = s.publisher.PublishBulkUpdated(ctx, tenantID, outcome.ProductIDs, patchFields(patch), actorID)
		}
	}
	return &outcome.BulkResult, nil
}

// BulkDelete removes every selected product behind the bulk guard
func (s *CatalogService) BulkDelete(ctx context.Context, tenantID string, sel models.Selection, opts models.BulkOptions, actorID string) (*models.BulkResult, error) {
	outcome, err := s.guard.Execute(ctx, tenantID, sel, models.BulkDelete{}, opts, actorID)
	if err != nil {
		return nil, err
	}
	if !outcome.Preview && len(outcome.ProductIDs) > 0 {
		s.repo.InvalidateProductCaches(ctx, tenantID, outcome.ProductIDs...)
		if s.publisher != nil {
			_ = s.publisher.PublishBulkDeleted(ctx, tenantID, outcome.ProductIDs, actorID)
		}
	}
	return &outcome.BulkResult, nil
}

// ReconcileVariants sets a product's color x size matrix in its own transaction
func (s *CatalogService) ReconcileVariants(ctx context.Context, tenantID string, productID uuid.UUID, colors, sizes []uuid.UUID, actorID string) (*ReconcileResult, error) {
	if tenantID == "" {
		return nil, validationError("tenant id is required")
	}

	var result *ReconcileResult
	err := s.repo.WithTransaction(ctx, func(tx repository.CatalogRepositoryInterface) error {
		var err error
		result, err = s.reconciler.Reconcile(ctx, tx, tenantID, productID, colors, sizes)
		return err
	})
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	if result.Changed() {
		s.afterVariantsChanged(ctx, tenantID, productID, result, actorID)
	}
	return result, nil
}

// ListVariants returns the product's current variants
func (s *CatalogService) ListVariants(ctx context.Context, tenantID string, productID uuid.UUID) ([]models.ProductVariant, error) {
	if _, err := s.repo.GetProduct(ctx, tenantID, productID); err != nil {
		return nil, mapRepositoryError(err)
	}
	variants, err := s.repo.ListVariants(ctx, tenantID, productID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return variants, nil
}

// CreateProduct inserts a product and, when axes are given, its initial variant matrix,
// all in one transaction
func (s *CatalogService) CreateProduct(ctx context.Context, tenantID string, req models.CreateProductRequest, actorID string) (*models.Product, error) {
	if tenantID == "" {
		return nil, validationError("tenant id is required")
	}
	name := strings.TrimSpace(req.Name)
	sku := strings.TrimSpace(req.SKU)
	if name == "" {
		return nil, validationError("name is required")
	}
	if sku == "" {
		return nil, validationError("sku is required")
	}
	colors, err := parseValueIDs("colorValueIds", req.ColorValueIDs)
	if err != nil {
		return nil, err
	}
	sizes, err := parseValueIDs("sizeValueIds", req.SizeValueIDs)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:        name,
		SKU:         sku,
		CategoryID:  req.CategoryID,
		Brand:       req.Brand,
		Season:      req.Season,
		Description: req.Description,
		Price:       req.Price,
		Status:      models.ProductStatusDraft,
		Tags:        req.Tags,
	}
	if req.Slug != nil {
		product.Slug = strings.TrimSpace(*req.Slug)
	}
	if actorID != "" {
		product.CreatedBy = &actorID
		product.UpdatedBy = &actorID
	}

	var matrix *ReconcileResult
	err = s.repo.WithTransaction(ctx, func(tx repository.CatalogRepositoryInterface) error {
		exists, err := tx.SKUExists(ctx, tenantID, sku)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrDuplicateSKU, sku)
		}
		if product.Slug != "" {
			exists, err = tx.SlugExists(ctx, tenantID, product.Slug)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: %s", ErrDuplicateSlug, product.Slug)
			}
		}
		if err := tx.CreateProduct(ctx, tenantID, product); err != nil {
			return err
		}
		matrix, err = s.reconciler.Reconcile(ctx, tx, tenantID, product.ID, colors, sizes)
		return err
	})
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	product.Variants = matrix.Inserted
	s.repo.InvalidateProductCaches(ctx, tenantID, product.ID)
	if s.publisher != nil {
		_ = s.publisher.PublishProductCreated(ctx, product, actorID)
	}

	s.logger.WithFields(logrus.Fields{
		"tenant_id":  tenantID,
		"product_id": product.ID,
		"variants":   len(product.Variants),
	}).Info("Product created")

	return product, nil
}

// UpdateProduct patches a product's fields and, when either axis is present, reconciles
// its variant matrix in the same transaction
func (s *CatalogService) UpdateProduct(ctx context.Context, tenantID string, productID uuid.UUID, req models.UpdateProductRequest, actorID string) (*models.Product, error) {
	if tenantID == "" {
		return nil, validationError("tenant id is required")
	}
	cols, changed, err := updateColumns(req, actorID)
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 && !req.HasMatrix() {
		return nil, validationError("update must change at least one field")
	}

	var colors, sizes []uuid.UUID
	if req.ColorValueIDs != nil {
		if colors, err = parseValueIDs("colorValueIds", *req.ColorValueIDs); err != nil {
			return nil, err
		}
	}
	if req.SizeValueIDs != nil {
		if sizes, err = parseValueIDs("sizeValueIds", *req.SizeValueIDs); err != nil {
			return nil, err
		}
	}

	var (
		product *models.Product
		matrix  *ReconcileResult
	)
	err = s.repo.WithTransaction(ctx, func(tx repository.CatalogRepositoryInterface) error {
		if _, err := tx.LockProduct(ctx, tenantID, productID); err != nil {
			return err
		}
		if len(changed) > 0 {
			if err := tx.UpdateProductFields(ctx, tenantID, productID, cols); err != nil {
				return err
			}
		}
		if req.HasMatrix() {
			var err error
			matrix, err = s.reconciler.Reconcile(ctx, tx, tenantID, productID, colors, sizes)
			if err != nil {
				return err
			}
		}
		var err error
		product, err = tx.GetProduct(ctx, tenantID, productID)
		return err
	})
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	if matrix != nil && matrix.Changed() {
		changed = append(changed, "variants")
		s.afterVariantsChanged(ctx, tenantID, productID, matrix, actorID)
	} else {
		s.repo.InvalidateProductCaches(ctx, tenantID, productID)
	}
	if s.publisher != nil && len(changed) > 0 {
		_ = s.publisher.PublishProductUpdated(ctx, product, changed, actorID)
	}
	return product, nil
}

func (s *CatalogService) afterVariantsChanged(ctx context.Context, tenantID string, productID uuid.UUID, result *ReconcileResult, actorID string) {
	s.repo.InvalidateProductCaches(ctx, tenantID, productID)
	if s.guard != nil {
		result.CleanupFailures = s.guard.RemoveArtifacts(ctx, tenantID, result.Artifacts)
	}
	if s.publisher != nil {
		_ = s.publisher.PublishVariantsReconciled(ctx, tenantID, productID, result.Inserted, result.DeletedIDs, actorID)
	}
	s.logger.WithFields(logrus.Fields{
		"tenant_id":  tenantID,
		"product_id": productID,
		"kept":       len(result.Kept),
		"inserted":   len(result.Inserted),
		"deleted":    len(result.DeletedIDs),
		"artifacts":  len(result.Artifacts),
	}).Info("Variant matrix updated")
}

func updateColumns(req models.UpdateProductRequest, actorID string) (map[string]interface{}, []string, error) {
	cols := map[string]interface{}{}
	changed := make([]string, 0)

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, nil, validationError("name cannot be empty")
		}
		cols["name"] = name
		changed = append(changed, "name")
	}
	if req.Status != nil {
		if !req.Status.IsValid() {
			return nil, nil, validationError("unknown status %q", *req.Status)
		}
		cols["status"] = *req.Status
		changed = append(changed, "status")
	}
	optional := []struct {
		field  string
		column string
		value  *string
	}{
		{"categoryId", "category_id", req.CategoryID},
		{"brand", "brand", req.Brand},
		{"season", "season", req.Season},
		{"description", "description", req.Description},
		{"price", "price", req.Price},
	}
	for _, o := range optional {
		if o.value != nil {
			cols[o.column] = *o.value
			changed = append(changed, o.field)
		}
	}
	if req.Tags != nil {
		cols["tags"] = *req.Tags
		changed = append(changed, "tags")
	}

	if len(changed) > 0 {
		cols["updated_at"] = time.Now()
		if actorID != "" {
			cols["updated_by"] = actorID
		}
	}
	return cols, changed, nil
}

func patchFields(patch models.ProductPatch) []string {
	fields := make([]string, 0, 6)
	if patch.Status != nil {
		fields = append(fields, "status")
	}
	if patch.CategoryID != nil {
		fields = append(fields, "categoryId")
	}
	if patch.Brand != nil {
		fields = append(fields, "brand")
	}
	if patch.Season != nil {
		fields = append(fields, "season")
	}
	if patch.Price != nil {
		fields = append(fields, "price")
	}
	if patch.Tags != nil {
		fields = append(fields, "tags")
	}
	return fields
}

func parseValueIDs(field string, raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(strings.TrimSpace(s))
		if err != nil {
			return nil, validationError("%s contains an invalid id %q", field, s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// IsClientError reports whether err is caused by the request rather than the service
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidDimensionValue) ||
		errors.Is(err, models.ErrInvalidSelection) || errors.Is(err, ErrInvalidImportFile)
}
