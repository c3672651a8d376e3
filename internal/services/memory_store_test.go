package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"
	"github.com/google/uuid"
)

// memoryState is the committed data of a memoryStore
type memoryState struct {
	products   map[uuid.UUID]models.Product
	variants   []models.ProductVariant
	attributes map[uuid.UUID]models.AttributeValue
	media      []models.ProductMedia
	// reserved holds UPIDs assigned outside the seeded variants
	reserved map[string]struct{}
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		products:   make(map[uuid.UUID]models.Product, len(s.products)),
		variants:   append([]models.ProductVariant(nil), s.variants...),
		attributes: make(map[uuid.UUID]models.AttributeValue, len(s.attributes)),
		media:      append([]models.ProductMedia(nil), s.media...),
		reserved:   make(map[string]struct{}, len(s.reserved)),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.attributes {
		c.attributes[k] = v
	}
	for k := range s.reserved {
		c.reserved[k] = struct{}{}
	}
	return c
}

// storeCalls counts the calls the tests make assertions on
type storeCalls struct {
	transactions   int
	fetchTaken     int
	isTaken        int
	lockProduct    int
	deleteVariants int
	insertVariants int
	updateProducts int
	deleteProducts int
	invalidated    []uuid.UUID
}

// memoryStore is an in-memory CatalogRepositoryInterface. Transactions run against a
// copy of the state that replaces the committed state only when fn succeeds.
type memoryStore struct {
	state *memoryState
	calls *storeCalls

	failUpdate error
	failInsert error
}

var _ repository.CatalogRepositoryInterface = (*memoryStore)(nil)

func newMemoryStore() *memoryStore {
	return &memoryStore{
		state: &memoryState{
			products:   make(map[uuid.UUID]models.Product),
			attributes: make(map[uuid.UUID]models.AttributeValue),
			reserved:   make(map[string]struct{}),
		},
		calls: &storeCalls{},
	}
}

func (m *memoryStore) WithTransaction(ctx context.Context, fn func(txRepo repository.CatalogRepositoryInterface) error) error {
	m.calls.transactions++
	tx := &memoryStore{
		state:      m.state.clone(),
		calls:      m.calls,
		failUpdate: m.failUpdate,
		failInsert: m.failInsert,
	}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

// seeding helpers

func (m *memoryStore) seedProduct(tenantID, name string, mutate ...func(p *models.Product)) uuid.UUID {
	p := models.Product{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      name,
		SKU:       "SKU-" + name,
		Slug:      strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		Status:    models.ProductStatusDraft,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	for _, fn := range mutate {
		fn(&p)
	}
	m.state.products[p.ID] = p
	return p.ID
}

func (m *memoryStore) seedProducts(tenantID string, n int, mutate ...func(p *models.Product)) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := 0; i < n; i++ {
		ids[i] = m.seedProduct(tenantID, fmt.Sprintf("Product %d", i), mutate...)
	}
	return ids
}

func (m *memoryStore) seedAttribute(tenantID string, dimension models.Dimension, name string) uuid.UUID {
	a := models.AttributeValue{ID: uuid.New(), TenantID: tenantID, Dimension: dimension, Name: name}
	m.state.attributes[a.ID] = a
	return a.ID
}

func (m *memoryStore) seedMedia(tenantID string, productID uuid.UUID, bucket, path string, thumbnail *string) {
	m.state.media = append(m.state.media, models.ProductMedia{
		ID:            uuid.New(),
		TenantID:      tenantID,
		ProductID:     productID,
		Bucket:        bucket,
		StoragePath:   path,
		ThumbnailPath: thumbnail,
	})
}

func (m *memoryStore) seedVariantMedia(tenantID string, productID, variantID uuid.UUID, bucket, path string) {
	m.state.media = append(m.state.media, models.ProductMedia{
		ID:          uuid.New(),
		TenantID:    tenantID,
		ProductID:   productID,
		VariantID:   &variantID,
		Bucket:      bucket,
		StoragePath: path,
	})
}

func (m *memoryStore) product(id uuid.UUID) (models.Product, bool) {
	p, ok := m.state.products[id]
	return p, ok
}

func (m *memoryStore) variantsOf(productID uuid.UUID) []models.ProductVariant {
	out := make([]models.ProductVariant, 0)
	for _, v := range m.state.variants {
		if v.ProductID == productID {
			out = append(out, v)
		}
	}
	return out
}

// Products

func (m *memoryStore) GetProduct(ctx context.Context, tenantID string, productID uuid.UUID) (*models.Product, error) {
	p, ok := m.state.products[productID]
	if !ok || p.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (m *memoryStore) LockProduct(ctx context.Context, tenantID string, productID uuid.UUID) (*models.Product, error) {
	m.calls.lockProduct++
	return m.GetProduct(ctx, tenantID, productID)
}

func (m *memoryStore) CreateProduct(ctx context.Context, tenantID string, product *models.Product) error {
	product.TenantID = tenantID
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if product.Slug == "" {
		product.Slug = strings.ToLower(product.Name) + "-" + product.ID.String()[:8]
	}
	product.CreatedAt = time.Now()
	product.UpdatedAt = product.CreatedAt
	m.state.products[product.ID] = *product
	return nil
}

func (m *memoryStore) UpdateProductFields(ctx context.Context, tenantID string, productID uuid.UUID, cols map[string]interface{}) error {
	p, ok := m.state.products[productID]
	if !ok || p.TenantID != tenantID {
		return repository.ErrNotFound
	}
	applyColumns(&p, cols)
	m.state.products[productID] = p
	return nil
}

func (m *memoryStore) SlugExists(ctx context.Context, tenantID, slug string) (bool, error) {
	for _, p := range m.state.products {
		if p.TenantID == tenantID && p.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) SKUExists(ctx context.Context, tenantID, sku string) (bool, error) {
	for _, p := range m.state.products {
		if p.TenantID == tenantID && p.SKU == sku {
			return true, nil
		}
	}
	return false, nil
}

// Selections and bulk writes

func (m *memoryStore) FindOwnedProductIDs(ctx context.Context, tenantID string, ids []uuid.UUID) ([]uuid.UUID, error) {
	owned := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.state.products[id]; ok && p.TenantID == tenantID {
			owned = append(owned, id)
		}
	}
	return owned, nil
}

func (m *memoryStore) FindProductIDsByFilter(ctx context.Context, tenantID string, filter models.ProductFilter, search *string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0)
	for id, p := range m.state.products {
		if p.TenantID == tenantID && matchesFilter(p, filter) && matchesSearch(p, search) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memoryStore) UpdateProducts(ctx context.Context, tenantID string, ids []uuid.UUID, cols map[string]interface{}) (int64, error) {
	m.calls.updateProducts++
	var affected int64
	for _, id := range ids {
		p, ok := m.state.products[id]
		if !ok || p.TenantID != tenantID {
			continue
		}
		applyColumns(&p, cols)
		m.state.products[id] = p
		affected++
	}
	if m.failUpdate != nil {
		return 0, m.failUpdate
	}
	return affected, nil
}

func (m *memoryStore) DeleteProducts(ctx context.Context, tenantID string, ids []uuid.UUID) (int64, error) {
	m.calls.deleteProducts++
	doomed := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if p, ok := m.state.products[id]; ok && p.TenantID == tenantID {
			doomed[id] = struct{}{}
			delete(m.state.products, id)
		}
	}
	variants := m.state.variants[:0:0]
	for _, v := range m.state.variants {
		if _, gone := doomed[v.ProductID]; !gone {
			variants = append(variants, v)
		}
	}
	m.state.variants = variants
	media := m.state.media[:0:0]
	for _, md := range m.state.media {
		if _, gone := doomed[md.ProductID]; !gone {
			media = append(media, md)
		}
	}
	m.state.media = media
	return int64(len(doomed)), nil
}

func (m *memoryStore) ListProductArtifacts(ctx context.Context, tenantID string, ids []uuid.UUID) ([]models.StoredArtifact, error) {
	wanted := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	artifacts := make([]models.StoredArtifact, 0)
	for _, md := range m.state.media {
		if _, ok := wanted[md.ProductID]; !ok || md.TenantID != tenantID {
			continue
		}
		artifacts = append(artifacts, models.StoredArtifact{Bucket: md.Bucket, Path: md.StoragePath})
		if md.ThumbnailPath != nil {
			artifacts = append(artifacts, models.StoredArtifact{Bucket: md.Bucket, Path: *md.ThumbnailPath})
		}
	}
	return artifacts, nil
}

// Variants

func (m *memoryStore) ListVariantArtifacts(ctx context.Context, tenantID string, variantIDs []uuid.UUID) ([]models.StoredArtifact, error) {
	wanted := make(map[uuid.UUID]struct{}, len(variantIDs))
	for _, id := range variantIDs {
		wanted[id] = struct{}{}
	}
	artifacts := make([]models.StoredArtifact, 0)
	for _, md := range m.state.media {
		if md.VariantID == nil || md.TenantID != tenantID {
			continue
		}
		if _, ok := wanted[*md.VariantID]; !ok {
			continue
		}
		artifacts = append(artifacts, models.StoredArtifact{Bucket: md.Bucket, Path: md.StoragePath})
		if md.ThumbnailPath != nil {
			artifacts = append(artifacts, models.StoredArtifact{Bucket: md.Bucket, Path: *md.ThumbnailPath})
		}
	}
	return artifacts, nil
}

func (m *memoryStore) ListVariants(ctx context.Context, tenantID string, productID uuid.UUID) ([]models.ProductVariant, error) {
	out := make([]models.ProductVariant, 0)
	for _, v := range m.state.variants {
		if v.TenantID == tenantID && v.ProductID == productID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memoryStore) DeleteVariants(ctx context.Context, tenantID string, ids []uuid.UUID) error {
	m.calls.deleteVariants++
	doomed := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		doomed[id] = struct{}{}
	}
	kept := m.state.variants[:0:0]
	for _, v := range m.state.variants {
		if _, gone := doomed[v.ID]; gone && v.TenantID == tenantID {
			continue
		}
		kept = append(kept, v)
	}
	m.state.variants = kept
	media := m.state.media[:0:0]
	for _, md := range m.state.media {
		if md.VariantID != nil && md.TenantID == tenantID {
			if _, gone := doomed[*md.VariantID]; gone {
				continue
			}
		}
		media = append(media, md)
	}
	m.state.media = media
	return nil
}

// InsertVariants enforces both unique indexes the way the database does
func (m *memoryStore) InsertVariants(ctx context.Context, variants []models.ProductVariant) error {
	m.calls.insertVariants++
	if m.failInsert != nil {
		return m.failInsert
	}
	for _, v := range variants {
		if m.upidTaken(v.UPID) {
			return fmt.Errorf("%w: duplicate upid %s", repository.ErrConflict, v.UPID)
		}
		for _, existing := range m.state.variants {
			if existing.ProductID == v.ProductID && existing.Key() == v.Key() {
				return fmt.Errorf("%w: duplicate variant key %s", repository.ErrConflict, v.Key())
			}
		}
		m.state.variants = append(m.state.variants, v)
	}
	return nil
}

func (m *memoryStore) upidTaken(code string) bool {
	if _, ok := m.state.reserved[code]; ok {
		return true
	}
	for _, v := range m.state.variants {
		if v.UPID == code {
			return true
		}
	}
	return false
}

func (m *memoryStore) IsUPIDTaken(ctx context.Context, upid string) (bool, error) {
	m.calls.isTaken++
	return m.upidTaken(upid), nil
}

func (m *memoryStore) FetchTakenUPIDs(ctx context.Context, candidates []string) (map[string]struct{}, error) {
	m.calls.fetchTaken++
	taken := make(map[string]struct{})
	for _, c := range candidates {
		if m.upidTaken(c) {
			taken[c] = struct{}{}
		}
	}
	return taken, nil
}

// Attribute values and import lookups

func (m *memoryStore) FindAttributeValues(ctx context.Context, tenantID string, ids []uuid.UUID) ([]models.AttributeValue, error) {
	out := make([]models.AttributeValue, 0, len(ids))
	for _, id := range ids {
		if a, ok := m.state.attributes[id]; ok && a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryStore) ListAttributeValues(ctx context.Context, tenantID string, dimension models.Dimension) ([]models.AttributeValue, error) {
	out := make([]models.AttributeValue, 0)
	for _, a := range m.state.attributes {
		if a.TenantID == tenantID && a.Dimension == dimension {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryStore) ExistingSKUs(ctx context.Context, tenantID string, skus []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	for _, sku := range skus {
		if ok, _ := m.SKUExists(ctx, tenantID, sku); ok {
			existing[sku] = struct{}{}
		}
	}
	return existing, nil
}

func (m *memoryStore) ExistingUPIDs(ctx context.Context, upids []string) (map[string]struct{}, error) {
	return m.FetchTakenUPIDs(ctx, upids)
}

func (m *memoryStore) InvalidateProductCaches(ctx context.Context, tenantID string, productIDs ...uuid.UUID) {
	m.calls.invalidated = append(m.calls.invalidated, productIDs...)
}

// filter evaluation

func matchesFilter(p models.Product, f models.ProductFilter) bool {
	if len(f.CategoryIDs) > 0 && (p.CategoryID == nil || !containsString(f.CategoryIDs, *p.CategoryID)) {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if s == p.Status {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Brands) > 0 && (p.Brand == nil || !containsString(f.Brands, *p.Brand)) {
		return false
	}
	if len(f.Seasons) > 0 && (p.Season == nil || !containsString(f.Seasons, *p.Season)) {
		return false
	}
	for _, tag := range f.Tags {
		if p.Tags == nil {
			return false
		}
		found := false
		for _, t := range *p.Tags {
			if t == tag {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		if p.Price == nil {
			return false
		}
		price, _ := strconv.ParseFloat(*p.Price, 64)
		if f.MinPrice != nil {
			lo, _ := strconv.ParseFloat(*f.MinPrice, 64)
			if price < lo {
				return false
			}
		}
		if f.MaxPrice != nil {
			hi, _ := strconv.ParseFloat(*f.MaxPrice, 64)
			if price > hi {
				return false
			}
		}
	}
	if f.CreatedFrom != nil && p.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && p.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	if f.UpdatedAfter != nil && !p.UpdatedAt.After(*f.UpdatedAfter) {
		return false
	}
	return true
}

func matchesSearch(p models.Product, search *string) bool {
	if search == nil || strings.TrimSpace(*search) == "" {
		return true
	}
	term := strings.ToLower(strings.TrimSpace(*search))
	brand := ""
	if p.Brand != nil {
		brand = *p.Brand
	}
	for _, field := range []string{p.Name, p.SKU, brand} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func applyColumns(p *models.Product, cols map[string]interface{}) {
	for col, value := range cols {
		switch col {
		case "name":
			p.Name = value.(string)
		case "status":
			p.Status = value.(models.ProductStatus)
		case "category_id":
			v := value.(string)
			p.CategoryID = &v
		case "brand":
			v := value.(string)
			p.Brand = &v
		case "season":
			v := value.(string)
			p.Season = &v
		case "description":
			v := value.(string)
			p.Description = &v
		case "price":
			v := value.(string)
			p.Price = &v
		case "tags":
			v := value.(models.JSONArray)
			p.Tags = &v
		case "updated_at":
			p.UpdatedAt = value.(time.Time)
		case "updated_by":
			v := value.(string)
			p.UpdatedBy = &v
		}
	}
}

func containsString(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func strPtr(s string) *string { return &s }
