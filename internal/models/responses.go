package models

type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     Error  `json:"error"`
	Timestamp string `json:"timestamp,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Field   string      `json:"field,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}

// CreateProductRequest creates a product and, optionally, its variant matrix
type CreateProductRequest struct {
	Name          string     `json:"name" binding:"required"`
	Slug          *string    `json:"slug,omitempty"`
	SKU           string     `json:"sku" binding:"required"`
	CategoryID    *string    `json:"categoryId,omitempty"`
	Brand         *string    `json:"brand,omitempty"`
	Season        *string    `json:"season,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Price         *string    `json:"price,omitempty"`
	Tags          *JSONArray `json:"tags,omitempty"`
	ColorValueIDs []string   `json:"colorValueIds,omitempty"`
	SizeValueIDs  []string   `json:"sizeValueIds,omitempty"`
}

// UpdateProductRequest patches a product. When either axis list is present
// the variant matrix is reconciled in the same transaction.
type UpdateProductRequest struct {
	Name          *string        `json:"name,omitempty"`
	CategoryID    *string        `json:"categoryId,omitempty"`
	Brand         *string        `json:"brand,omitempty"`
	Season        *string        `json:"season,omitempty"`
	Description   *string        `json:"description,omitempty"`
	Price         *string        `json:"price,omitempty"`
	Status        *ProductStatus `json:"status,omitempty"`
	Tags          *JSONArray     `json:"tags,omitempty"`
	ColorValueIDs *[]string      `json:"colorValueIds,omitempty"`
	SizeValueIDs  *[]string      `json:"sizeValueIds,omitempty"`
}

// HasMatrix reports whether the update carries a variant axis
func (r UpdateProductRequest) HasMatrix() bool {
	return r.ColorValueIDs != nil || r.SizeValueIDs != nil
}
