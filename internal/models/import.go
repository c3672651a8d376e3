package models

// ImportFormat represents the file format for import
type ImportFormat string

const (
	ImportFormatCSV  ImportFormat = "csv"
	ImportFormatXLSX ImportFormat = "xlsx"
)

// ImportTemplateColumn defines a column in the import template
type ImportTemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // string, number, list
	Example     string `json:"example"`
}

// ImportTemplate defines the structure of an import template
type ImportTemplate struct {
	Entity  string                 `json:"entity"`
	Version string                 `json:"version"`
	Columns []ImportTemplateColumn `json:"columns"`
}

// Row-level error codes
const (
	ImportCodeMissingName        = "MISSING_NAME"
	ImportCodeMissingIdentifier  = "MISSING_IDENTIFIER"
	ImportCodeNameTooLong        = "NAME_TOO_LONG"
	ImportCodeDescriptionTooLong = "DESCRIPTION_TOO_LONG"
	ImportCodeDuplicateUPID      = "DUPLICATE_UPID"
	ImportCodeDuplicateSKU       = "DUPLICATE_SKU"
	ImportCodeUPIDExists         = "UPID_EXISTS"
	ImportCodeSKUExists          = "SKU_EXISTS"
	ImportCodeUnmappedColor      = "UNMAPPED_COLOR"
	ImportCodeUnmappedSize       = "UNMAPPED_SIZE"
	ImportCodeMaterialPercentage = "INVALID_MATERIAL_PERCENTAGE"
)

// ImportRowError represents an error for a specific row
type ImportRowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ImportValidation is the dry-run report for a product import file
type ImportValidation struct {
	Format         ImportFormat     `json:"format"`
	TotalRows      int              `json:"totalRows"`
	ValidRows      int              `json:"validRows"`
	InvalidRows    int              `json:"invalidRows"`
	Errors         []ImportRowError `json:"errors,omitempty"`
	UnmappedColors []string         `json:"unmappedColors,omitempty"`
	UnmappedSizes  []string         `json:"unmappedSizes,omitempty"`
	DuplicateUPIDs []string         `json:"duplicateUpids,omitempty"`
	DuplicateSKUs  []string         `json:"duplicateSkus,omitempty"`
}

// Import file limits
const (
	ImportMaxNameLength        = 100
	ImportMaxDescriptionLength = 2000
	ImportMaxMaterials         = 3
)

// ProductImportColumns returns the column definitions for product import
func ProductImportColumns() []ImportTemplateColumn {
	return []ImportTemplateColumn{
		{Name: "product_name", Description: "Product name (max 100 characters)", Required: true, Type: "string", Example: "Organic Cotton T-Shirt"},
		{Name: "upid", Description: "Unique product identifier (use this OR sku)", Required: true, Type: "string", Example: "7K2M9QF4TX"},
		{Name: "sku", Description: "Stock keeping unit (use this OR upid)", Required: true, Type: "string", Example: "TSH-NAV-M"},
		{Name: "description", Description: "Product description (max 2000 characters)", Required: false, Type: "string", Example: ""},
		{Name: "category_name", Description: "Category name", Required: false, Type: "string", Example: "T-Shirts"},
		{Name: "season", Description: "Season code", Required: false, Type: "string", Example: "SS25"},
		{Name: "color_name", Description: "Color attribute value name", Required: false, Type: "string", Example: "Navy"},
		{Name: "size_name", Description: "Size attribute value name", Required: false, Type: "string", Example: "M"},
		{Name: "material_1_name", Description: "First material", Required: false, Type: "string", Example: "Organic Cotton"},
		{Name: "material_1_percentage", Description: "Share of the first material", Required: false, Type: "number", Example: "95"},
		{Name: "material_2_name", Description: "Second material", Required: false, Type: "string", Example: "Elastane"},
		{Name: "material_2_percentage", Description: "Share of the second material", Required: false, Type: "number", Example: "5"},
		{Name: "material_3_name", Description: "Third material", Required: false, Type: "string", Example: ""},
		{Name: "material_3_percentage", Description: "Share of the third material", Required: false, Type: "number", Example: ""},
		{Name: "care_codes", Description: "Comma-separated care codes", Required: false, Type: "list", Example: "WASH_30,NO_BLEACH"},
	}
}

// ProductImportTemplate returns the template definition for products
func ProductImportTemplate() ImportTemplate {
	return ImportTemplate{
		Entity:  "products",
		Version: "2.0",
		Columns: ProductImportColumns(),
	}
}
