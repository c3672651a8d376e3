package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"catalog-service/internal/models"
	"github.com/Tesseract-Nexus/go-shared/cache"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means the transaction lost a race (serialization failure,
	// deadlock or unique violation) and the whole operation may be retried.
	ErrConflict = errors.New("transaction conflict")
)

// Cache TTL constants
const (
	ProductCacheTTL  = 5 * time.Minute
	VariantsCacheTTL = 2 * time.Minute
)

const (
	idChunkSize       = 1000
	variantInsertSize = 200
)

// CatalogRepositoryInterface is the transactional data store behind the catalog services
type CatalogRepositoryInterface interface {
	WithTransaction(ctx context.Context, fn func(txRepo CatalogRepositoryInterface) error) error

	// Products
	GetProduct(ctx context.Context, tenantID string, productID uuid.UUID) (*models.Product, error)
	LockProduct(ctx context.Context, tenantID string, productID uuid.UUID) (*models.Product, error)
	CreateProduct(ctx context.Context, tenantID string, product *models.Product) error
	UpdateProductFields(ctx context.Context, tenantID string, productID uuid.UUID, cols map[string]interface{}) error
	SlugExists(ctx context.Context, tenantID, slug string) (bool, error)
	SKUExists(ctx context.Context, tenantID, sku string) (bool, error)

	// Selections and bulk writes
	FindOwnedProductIDs(ctx context.Context, tenantID string, ids []uuid.UUID) ([]uuid.UUID, error)
	FindProductIDsByFilter(ctx context.Context, tenantID string, filter models.ProductFilter, search *string) ([]uuid.UUID, error)
	UpdateProducts(ctx context.Context, tenantID string, ids []uuid.UUID, cols map[string]interface{}) (int64, error)
	DeleteProducts(ctx context.Context, tenantID string, ids []uuid.UUID) (int64, error)
	ListProductArtifacts(ctx context.Context, tenantID string, ids []uuid.UUID) ([]models.StoredArtifact, error)

	// Variants
	ListVariants(ctx context.Context, tenantID string, productID uuid.UUID) ([]models.ProductVariant, error)
	ListVariantArtifacts(ctx context.Context, tenantID string, variantIDs []uuid.UUID) ([]models.StoredArtifact, error)
	DeleteVariants(ctx context.Context, tenantID string, ids []uuid.UUID) error
	InsertVariants(ctx context.Context, variants []models.ProductVariant) error
	IsUPIDTaken(ctx context.Context, upid string) (bool, error)
	FetchTakenUPIDs(ctx context.Context, candidates []string) (map[string]struct{}, error)

	// Attribute values and import lookups
	FindAttributeValues(ctx context.Context, tenantID string, ids []uuid.UUID) ([]models.AttributeValue, error)
	ListAttributeValues(ctx context.Context, tenantID string, dimension models.Dimension) ([]models.AttributeValue, error)
	ExistingSKUs(ctx context.Context, tenantID string, skus []string) (map[string]struct{}, error)
	ExistingUPIDs(ctx context.Context, upids []string) (map[string]struct{}, error)

	InvalidateProductCaches(ctx context.Context, tenantID string, productIDs ...uuid.UUID)
}

// CatalogRepository is the gorm/postgres implementation. Repositories bound to a
// transaction carry no cache so reads inside a write always hit the database.
type CatalogRepository struct {
	db    *gorm.DB
	cache *cache.CacheLayer
}

func NewCatalogRepository(db *gorm.DB, redis *redis.Client) *CatalogRepository {
	repo := &CatalogRepository{db: db}

	if redis != nil {
		cacheConfig := cache.CacheConfig{
			L1Enabled:  true,
			L1MaxItems: 5000,
			L1TTL:      30 * time.Second,
			DefaultTTL: ProductCacheTTL,
			KeyPrefix:  "tesseract:catalog:",
		}
		repo.cache = cache.NewCacheLayerFromClient(redis, cacheConfig)
	}

	return repo
}

// WithTransaction runs fn against a repository bound to a single database transaction.
// Any error returned by fn rolls the transaction back.
func (r *CatalogRepository) WithTransaction(ctx context.Context, fn func(txRepo CatalogRepositoryInterface) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&CatalogRepository{db: tx})
	})
	return translateError(err)
}

// translateError maps driver errors onto the repository's sentinels
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23505":
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
		}
	}
	return err
}

func productCacheKey(tenantID string, productID uuid.UUID) string {
	return fmt.Sprintf("product:%s:%s", tenantID, productID.String())
}

func variantsCacheKey(tenantID string, productID uuid.UUID) string {
	return fmt.Sprintf("variants:%s:%s", tenantID, productID.String())
}

// InvalidateProductCaches drops cached product and variant reads after a committed write
func (r *CatalogRepository) InvalidateProductCaches(ctx context.Context, tenantID string, productIDs ...uuid.UUID) {
	if r.cache == nil || len(productIDs) == 0 {
		return
	}

	keys := make([]string, 0, len(productIDs)*2)
	for _, id := range productIDs {
		keys = append(keys, productCacheKey(tenantID, id), variantsCacheKey(tenantID, id))
	}
	_ = r.cache.Delete(ctx, keys...)
	_ = r.cache.DeletePattern(ctx, fmt.Sprintf("products:list:%s:*", tenantID))
}

// Product Operations

// GetProduct retrieves a product by ID with caching
func (r *CatalogRepository) GetProduct(ctx context.Context, tenantID string, productID uuid.UUID) (*models.Product, error) {
	load := func() (*models.Product, error) {
		var product models.Product
		err := r.db.WithContext(ctx).
			Where("tenant_id = ? AND id = ?", tenantID, productID).
			First(&product).Error
		if err != nil {
			return nil, translateError(err)
		}
		return &product, nil
	}

	if r.cache == nil {
		return load()
	}

	var product models.Product
	var loadErr error
	err := r.cache.GetOrSetJSON(ctx, productCacheKey(tenantID, productID), &product, ProductCacheTTL, func() (any, error) {
		p, err := load()
		loadErr = err
		return p, err
	})
	if loadErr != nil {
		return nil, loadErr
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// LockProduct reads a product with SELECT ... FOR UPDATE. Only meaningful inside WithTransaction.
func (r *CatalogRepository) LockProduct(ctx context.Context, tenantID string, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, productID).
		First(&product).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &product, nil
}

// CreateProduct inserts a product, deriving a slug from the name when none was given
func (r *CatalogRepository) CreateProduct(ctx context.Context, tenantID string, product *models.Product) error {
	product.TenantID = tenantID
	product.CreatedAt = time.Now()
	product.UpdatedAt = time.Now()

	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}

	if product.Slug == "" {
		product.Slug = fmt.Sprintf("%s-%s", generateSlug(product.Name), product.ID.String()[:8])
	}

	return translateError(r.db.WithContext(ctx).Create(product).Error)
}

// UpdateProductFields applies a column map to one product
func (r *CatalogRepository) UpdateProductFields(ctx context.Context, tenantID string, productID uuid.UUID, cols map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("tenant_id = ? AND id = ?", tenantID, productID).
		Updates(cols)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SlugExists checks if a slug is already used by the tenant
func (r *CatalogRepository) SlugExists(ctx context.Context, tenantID, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("tenant_id = ? AND slug = ?", tenantID, slug).
		Count(&count).Error
	return count > 0, translateError(err)
}

// SKUExists checks if a SKU already exists for a tenant
func (r *CatalogRepository) SKUExists(ctx context.Context, tenantID, sku string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("tenant_id = ? AND sku = ?", tenantID, sku).
		Count(&count).Error
	return count > 0, translateError(err)
}

// Selection Operations

// FindOwnedProductIDs returns the subset of ids that exist and belong to the tenant.
// SECURITY: foreign and unknown ids are dropped without error.
func (r *CatalogRepository) FindOwnedProductIDs(ctx context.Context, tenantID string, ids []uuid.UUID) ([]uuid.UUID, error) {
	owned := make([]uuid.UUID, 0, len(ids))
	for _, chunk := range chunkValues(ids, idChunkSize) {
		var found []uuid.UUID
		err := r.db.WithContext(ctx).Model(&models.Product{}).
			Where("tenant_id = ? AND id IN ?", tenantID, chunk).
			Pluck("id", &found).Error
		if err != nil {
			return nil, translateError(err)
		}
		owned = append(owned, found...)
	}
	return owned, nil
}

// FindProductIDsByFilter evaluates a filter and optional search text against the tenant's products
func (r *CatalogRepository) FindProductIDsByFilter(ctx context.Context, tenantID string, filter models.ProductFilter, search *string) ([]uuid.UUID, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("tenant_id = ?", tenantID)
	query = applyProductFilter(query, filter)
	query = applySearch(query, search)

	var ids []uuid.UUID
	if err := query.Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, translateError(err)
	}
	return ids, nil
}

// UpdateProducts applies the same column map to every listed product of the tenant
func (r *CatalogRepository) UpdateProducts(ctx context.Context, tenantID string, ids []uuid.UUID, cols map[string]interface{}) (int64, error) {
	var total int64
	for _, chunk := range chunkValues(ids, idChunkSize) {
		result := r.db.WithContext(ctx).Model(&models.Product{}).
			Where("tenant_id = ? AND id IN ?", tenantID, chunk).
			Updates(cols)
		if result.Error != nil {
			return 0, translateError(result.Error)
		}
		total += result.RowsAffected
	}
	return total, nil
}

// DeleteProducts hard deletes products with their media rows and variants
// SECURITY: Only deletes rows belonging to the specified tenant
func (r *CatalogRepository) DeleteProducts(ctx context.Context, tenantID string, ids []uuid.UUID) (int64, error) {
	var total int64
	db := r.db.WithContext(ctx)
	for _, chunk := range chunkValues(ids, idChunkSize) {
		if err := db.Where("tenant_id = ? AND product_id IN ?", tenantID, chunk).Delete(&models.ProductMedia{}).Error; err != nil {
			return 0, translateError(err)
		}
		if err := db.Where("tenant_id = ? AND product_id IN ?", tenantID, chunk).Delete(&models.ProductVariant{}).Error; err != nil {
			return 0, translateError(err)
		}
		result := db.Where("tenant_id = ? AND id IN ?", tenantID, chunk).Delete(&models.Product{})
		if result.Error != nil {
			return 0, translateError(result.Error)
		}
		total += result.RowsAffected
	}
	return total, nil
}

// ListProductArtifacts returns every stored object (original and thumbnail) owned by the
// products or their variants
func (r *CatalogRepository) ListProductArtifacts(ctx context.Context, tenantID string, ids []uuid.UUID) ([]models.StoredArtifact, error) {
	artifacts := make([]models.StoredArtifact, 0)
	for _, chunk := range chunkValues(ids, idChunkSize) {
		var media []models.ProductMedia
		err := r.db.WithContext(ctx).
			Select("bucket", "storage_path", "thumbnail_path").
			Where("tenant_id = ? AND product_id IN ?", tenantID, chunk).
			Find(&media).Error
		if err != nil {
			return nil, translateError(err)
		}
		artifacts = appendMediaArtifacts(artifacts, media)
	}
	return artifacts, nil
}

// ListVariantArtifacts returns the stored objects of media attached to the given variants
func (r *CatalogRepository) ListVariantArtifacts(ctx context.Context, tenantID string, variantIDs []uuid.UUID) ([]models.StoredArtifact, error) {
	artifacts := make([]models.StoredArtifact, 0)
	for _, chunk := range chunkValues(variantIDs, idChunkSize) {
		var media []models.ProductMedia
		err := r.db.WithContext(ctx).
			Select("bucket", "storage_path", "thumbnail_path").
			Where("tenant_id = ? AND variant_id IN ?", tenantID, chunk).
			Find(&media).Error
		if err != nil {
			return nil, translateError(err)
		}
		artifacts = appendMediaArtifacts(artifacts, media)
	}
	return artifacts, nil
}

func appendMediaArtifacts(artifacts []models.StoredArtifact, media []models.ProductMedia) []models.StoredArtifact {
	for _, m := range media {
		artifacts = append(artifacts, models.StoredArtifact{Bucket: m.Bucket, Path: m.StoragePath})
		if m.ThumbnailPath != nil && *m.ThumbnailPath != "" {
			artifacts = append(artifacts, models.StoredArtifact{Bucket: m.Bucket, Path: *m.ThumbnailPath})
		}
	}
	return artifacts
}

// Variant Operations

// ListVariants returns a product's variants in creation order, cached outside transactions
func (r *CatalogRepository) ListVariants(ctx context.Context, tenantID string, productID uuid.UUID) ([]models.ProductVariant, error) {
	load := func() ([]models.ProductVariant, error) {
		variants := make([]models.ProductVariant, 0)
		err := r.db.WithContext(ctx).
			Where("tenant_id = ? AND product_id = ?", tenantID, productID).
			Order("created_at ASC, id ASC").
			Find(&variants).Error
		return variants, translateError(err)
	}

	if r.cache == nil {
		return load()
	}

	var variants []models.ProductVariant
	var loadErr error
	err := r.cache.GetOrSetJSON(ctx, variantsCacheKey(tenantID, productID), &variants, VariantsCacheTTL, func() (any, error) {
		v, err := load()
		loadErr = err
		return v, err
	})
	if loadErr != nil {
		return nil, loadErr
	}
	if err != nil {
		return nil, err
	}
	return variants, nil
}

// DeleteVariants hard deletes variant rows and the media attached to them so the
// (color, size) combination can be re-added later
func (r *CatalogRepository) DeleteVariants(ctx context.Context, tenantID string, ids []uuid.UUID) error {
	db := r.db.WithContext(ctx)
	for _, chunk := range chunkValues(ids, idChunkSize) {
		if err := db.Where("tenant_id = ? AND variant_id IN ?", tenantID, chunk).Delete(&models.ProductMedia{}).Error; err != nil {
			return translateError(err)
		}
		if err := db.Where("tenant_id = ? AND id IN ?", tenantID, chunk).Delete(&models.ProductVariant{}).Error; err != nil {
			return translateError(err)
		}
	}
	return nil
}

// InsertVariants inserts variant rows in batches. A UPID collision fails the statement.
func (r *CatalogRepository) InsertVariants(ctx context.Context, variants []models.ProductVariant) error {
	if len(variants) == 0 {
		return nil
	}
	now := time.Now()
	for i := range variants {
		variants[i].CreatedAt = now
		variants[i].UpdatedAt = now
	}
	return translateError(r.db.WithContext(ctx).CreateInBatches(&variants, variantInsertSize).Error)
}

// IsUPIDTaken checks a single code against the whole catalog
func (r *CatalogRepository) IsUPIDTaken(ctx context.Context, upid string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProductVariant{}).
		Where("upid = ?", upid).
		Count(&count).Error
	return count > 0, translateError(err)
}

// FetchTakenUPIDs returns which candidates already exist, in one round trip
func (r *CatalogRepository) FetchTakenUPIDs(ctx context.Context, candidates []string) (map[string]struct{}, error) {
	taken := make(map[string]struct{})
	for _, chunk := range chunkValues(candidates, idChunkSize) {
		var found []string
		err := r.db.WithContext(ctx).Model(&models.ProductVariant{}).
			Where("upid IN ?", chunk).
			Pluck("upid", &found).Error
		if err != nil {
			return nil, translateError(err)
		}
		for _, code := range found {
			taken[code] = struct{}{}
		}
	}
	return taken, nil
}

// Attribute Value Operations

// FindAttributeValues loads the tenant's attribute values among ids
func (r *CatalogRepository) FindAttributeValues(ctx context.Context, tenantID string, ids []uuid.UUID) ([]models.AttributeValue, error) {
	values := make([]models.AttributeValue, 0, len(ids))
	for _, chunk := range chunkValues(ids, idChunkSize) {
		var found []models.AttributeValue
		err := r.db.WithContext(ctx).
			Where("tenant_id = ? AND id IN ?", tenantID, chunk).
			Find(&found).Error
		if err != nil {
			return nil, translateError(err)
		}
		values = append(values, found...)
	}
	return values, nil
}

// ListAttributeValues lists every value of one dimension for a tenant
func (r *CatalogRepository) ListAttributeValues(ctx context.Context, tenantID string, dimension models.Dimension) ([]models.AttributeValue, error) {
	values := make([]models.AttributeValue, 0)
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND dimension = ?", tenantID, dimension).
		Order("position ASC, name ASC").
		Find(&values).Error
	return values, translateError(err)
}

// ExistingSKUs returns which of the SKUs the tenant already uses
func (r *CatalogRepository) ExistingSKUs(ctx context.Context, tenantID string, skus []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	for _, chunk := range chunkValues(skus, idChunkSize) {
		var found []string
		err := r.db.WithContext(ctx).Model(&models.Product{}).
			Where("tenant_id = ? AND sku IN ?", tenantID, chunk).
			Pluck("sku", &found).Error
		if err != nil {
			return nil, translateError(err)
		}
		for _, sku := range found {
			existing[sku] = struct{}{}
		}
	}
	return existing, nil
}

// ExistingUPIDs returns which of the codes are already assigned anywhere in the catalog
func (r *CatalogRepository) ExistingUPIDs(ctx context.Context, upids []string) (map[string]struct{}, error) {
	return r.FetchTakenUPIDs(ctx, upids)
}

// applyProductFilter adds one WHERE clause per set predicate
func applyProductFilter(query *gorm.DB, filter models.ProductFilter) *gorm.DB {
	if len(filter.CategoryIDs) > 0 {
		query = query.Where("category_id IN ?", filter.CategoryIDs)
	}

	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}

	if len(filter.Brands) > 0 {
		query = query.Where("brand IN ?", filter.Brands)
	}

	if len(filter.Seasons) > 0 {
		query = query.Where("season IN ?", filter.Seasons)
	}

	// Tags filter: every tag must be present
	if len(filter.Tags) > 0 {
		tags, _ := json.Marshal(filter.Tags)
		query = query.Where("tags @> ?::jsonb", string(tags))
	}

	if filter.MinPrice != nil {
		query = query.Where("CAST(price AS DECIMAL) >= CAST(? AS DECIMAL)", *filter.MinPrice)
	}

	if filter.MaxPrice != nil {
		query = query.Where("CAST(price AS DECIMAL) <= CAST(? AS DECIMAL)", *filter.MaxPrice)
	}

	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}

	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	if filter.UpdatedAfter != nil {
		query = query.Where("updated_at > ?", *filter.UpdatedAfter)
	}

	return query
}

// applySearch matches the text case-insensitively as a substring of name, sku or brand
func applySearch(query *gorm.DB, search *string) *gorm.DB {
	if search == nil {
		return query
	}
	term := strings.TrimSpace(*search)
	if term == "" {
		return query
	}
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	return query.Where(
		"LOWER(name) LIKE ? OR LOWER(sku) LIKE ? OR LOWER(COALESCE(brand, '')) LIKE ?",
		pattern, pattern, pattern,
	)
}

func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}

// chunkValues splits values for IN lists that stay under postgres' bind parameter limit
func chunkValues[T any](values []T, size int) [][]T {
	chunks := make([][]T, 0, (len(values)+size-1)/size)
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[start:end])
	}
	return chunks
}

// generateSlug creates a URL-friendly slug from a name
func generateSlug(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "-")
	var result strings.Builder
	for _, r := range slug {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
