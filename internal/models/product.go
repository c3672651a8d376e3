package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductStatus represents the status of a product
type ProductStatus string

const (
	ProductStatusDraft     ProductStatus = "DRAFT"
	ProductStatusActive    ProductStatus = "ACTIVE"
	ProductStatusInactive  ProductStatus = "INACTIVE"
	ProductStatusArchived  ProductStatus = "ARCHIVED"
	ProductStatusPublished ProductStatus = "PUBLISHED"
)

// IsValid reports whether s is one of the known product statuses
func (s ProductStatus) IsValid() bool {
	switch s {
	case ProductStatusDraft, ProductStatusActive, ProductStatusInactive, ProductStatusArchived, ProductStatusPublished:
		return true
	}
	return false
}

// Dimension names a variant axis
type Dimension string

const (
	DimensionColor Dimension = "color"
	DimensionSize  Dimension = "size"
)

// JSONArray type for PostgreSQL JSONB (array)
type JSONArray []interface{}

func (j JSONArray) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONArray, 0)
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Product represents a product entity owned by one brand (tenant)
type Product struct {
	ID          uuid.UUID        `json:"id" gorm:"type:uuid;primary_key"`
	TenantID    string           `json:"tenantId" gorm:"not null;index:idx_products_tenant_id;index:idx_products_tenant_status;index:idx_products_tenant_category;index:idx_products_tenant_sku,unique;index:idx_products_tenant_slug,unique"`
	CategoryID  *string          `json:"categoryId,omitempty" gorm:"index:idx_products_tenant_category"`
	Name        string           `json:"name" gorm:"not null"`
	Slug        string           `json:"slug" gorm:"not null;index:idx_products_tenant_slug,unique"`
	SKU         string           `json:"sku" gorm:"not null;index:idx_products_tenant_sku,unique"`
	Brand       *string          `json:"brand,omitempty" gorm:"index"`
	Season      *string          `json:"season,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *string          `json:"price,omitempty"`
	Status      ProductStatus    `json:"status" gorm:"not null;default:'DRAFT';index:idx_products_tenant_status"`
	Tags        *JSONArray       `json:"tags,omitempty" gorm:"type:jsonb"`
	Variants    []ProductVariant `json:"variants,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
	CreatedBy   *string          `json:"createdBy,omitempty"`
	UpdatedBy   *string          `json:"updatedBy,omitempty"`
}

// BeforeCreate assigns a primary key when the caller did not
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ProductVariant is one (color, size) combination of a product.
// The pair is unique per product; UPID is unique across the whole catalog.
type ProductVariant struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	TenantID      string     `json:"tenantId" gorm:"not null;index"`
	ProductID     uuid.UUID  `json:"productId" gorm:"type:uuid;not null;index;uniqueIndex:idx_variants_product_key"`
	ColorValueID  *uuid.UUID `json:"colorValueId,omitempty" gorm:"type:uuid;uniqueIndex:idx_variants_product_key"`
	SizeValueID   *uuid.UUID `json:"sizeValueId,omitempty" gorm:"type:uuid;uniqueIndex:idx_variants_product_key"`
	UPID          string     `json:"upid" gorm:"column:upid;not null;uniqueIndex:idx_variants_upid"`
	SKU           *string    `json:"sku,omitempty"`
	PriceOverride *string    `json:"priceOverride,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// BeforeCreate assigns a primary key when the caller did not
func (v *ProductVariant) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// Key returns the variant's (color, size) identity
func (v *ProductVariant) Key() VariantKey {
	return NewVariantKey(v.ColorValueID, v.SizeValueID)
}

// AttributeValue is a selectable value of one variant dimension (e.g. color "Navy")
type AttributeValue struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TenantID  string    `json:"tenantId" gorm:"not null;index:idx_attribute_values_tenant_dimension"`
	Dimension Dimension `json:"dimension" gorm:"not null;index:idx_attribute_values_tenant_dimension"`
	Name      string    `json:"name" gorm:"not null"`
	Code      *string   `json:"code,omitempty"`
	Position  int       `json:"position" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate assigns a primary key when the caller did not
func (a *AttributeValue) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// ProductMedia is a stored file owned by a product, or by one of its variants
// when VariantID is set. ThumbnailPath points at the derived, cached rendition.
type ProductMedia struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	TenantID      string     `json:"tenantId" gorm:"not null;index"`
	ProductID     uuid.UUID  `json:"productId" gorm:"type:uuid;not null;index"`
	VariantID     *uuid.UUID `json:"variantId,omitempty" gorm:"type:uuid;index"`
	Bucket        string     `json:"bucket" gorm:"not null"`
	StoragePath   string     `json:"storagePath" gorm:"not null"`
	ThumbnailPath *string    `json:"thumbnailPath,omitempty"`
	Position      int        `json:"position" gorm:"not null;default:0"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// BeforeCreate assigns a primary key when the caller did not
func (m *ProductMedia) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// StoredArtifact is an object-storage reference captured before its owning row is removed
type StoredArtifact struct {
	Bucket string
	Path   string
}

// TableName returns the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// TableName returns the table name for the ProductVariant model
func (ProductVariant) TableName() string {
	return "product_variants"
}

// TableName returns the table name for the AttributeValue model
func (AttributeValue) TableName() string {
	return "attribute_values"
}

// TableName returns the table name for the ProductMedia model
func (ProductMedia) TableName() string {
	return "product_media"
}
