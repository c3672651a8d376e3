package models

import (
	"time"
)

// BulkOperation is the mutation applied to every product of a resolved selection.
// It is either a BulkUpdate or a BulkDelete.
type BulkOperation interface {
	bulkKind() string
}

// BulkUpdate applies the same field patch to every selected product
type BulkUpdate struct {
	Patch ProductPatch
}

func (BulkUpdate) bulkKind() string { return "update" }

// BulkDelete removes every selected product together with its variants and media
type BulkDelete struct{}

func (BulkDelete) bulkKind() string { return "delete" }

// OperationKind returns "update" or "delete"
func OperationKind(op BulkOperation) string {
	return op.bulkKind()
}

// ProductPatch lists the product fields a bulk update may set.
// Nil fields are left untouched.
type ProductPatch struct {
	Status     *ProductStatus `json:"status,omitempty"`
	CategoryID *string        `json:"categoryId,omitempty"`
	Brand      *string        `json:"brand,omitempty"`
	Season     *string        `json:"season,omitempty"`
	Price      *string        `json:"price,omitempty"`
	Tags       *JSONArray     `json:"tags,omitempty"`
}

// IsEmpty reports whether the patch sets no field at all
func (p ProductPatch) IsEmpty() bool {
	return p.Status == nil && p.CategoryID == nil && p.Brand == nil &&
		p.Season == nil && p.Price == nil && p.Tags == nil
}

// Columns returns the column map applied by the update statement
func (p ProductPatch) Columns(updatedBy string) map[string]interface{} {
	cols := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if updatedBy != "" {
		cols["updated_by"] = updatedBy
	}
	if p.Status != nil {
		cols["status"] = *p.Status
	}
	if p.CategoryID != nil {
		cols["category_id"] = *p.CategoryID
	}
	if p.Brand != nil {
		cols["brand"] = *p.Brand
	}
	if p.Season != nil {
		cols["season"] = *p.Season
	}
	if p.Price != nil {
		cols["price"] = *p.Price
	}
	if p.Tags != nil {
		cols["tags"] = *p.Tags
	}
	return cols
}

// BulkOptions carries the caller's preview and acknowledgement choices
type BulkOptions struct {
	// Preview returns the affected count without writing
	Preview bool `json:"preview"`
	// AcknowledgedCount confirms a previously previewed count above the preview threshold
	AcknowledgedCount int `json:"acknowledgedCount,omitempty"`
}

// BulkResult reports the outcome of a guarded bulk operation
type BulkResult struct {
	Affected        int  `json:"affected"`
	Preview         bool `json:"preview,omitempty"`
	CleanupFailures int  `json:"cleanupFailures,omitempty"`
}

// SelectionCountRequest asks how many products a selection currently resolves to
type SelectionCountRequest struct {
	Selection SelectionRequest `json:"selection"`
}

// SelectionCountResponse is returned by the selection count endpoint
type SelectionCountResponse struct {
	Count int `json:"count"`
}

// BulkUpdateRequest is the request body for a guarded bulk update
type BulkUpdateRequest struct {
	Selection SelectionRequest `json:"selection"`
	Patch     ProductPatch     `json:"patch"`
	BulkOptions
}

// BulkDeleteRequest is the request body for a guarded bulk delete
type BulkDeleteRequest struct {
	Selection SelectionRequest `json:"selection"`
	BulkOptions
}

// VariantMatrixRequest sets the desired color and size axes of a product
type VariantMatrixRequest struct {
	ColorValueIDs []string `json:"colorValueIds"`
	SizeValueIDs  []string `json:"sizeValueIds"`
}

// VariantMatrixResponse reports what a reconciliation kept, added and removed
type VariantMatrixResponse struct {
	Kept       []ProductVariant `json:"kept"`
	Inserted   []ProductVariant `json:"inserted"`
	DeletedIDs []string         `json:"deletedIds"`
}
