package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"catalog-service/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const rowNumberKey = "_row"

var requiredImportHeaders = []string{"product_name", "upid", "sku"}

// ImportStore is the read side the import validator checks rows against
type ImportStore interface {
	ListAttributeValues(ctx context.Context, tenantID string, dimension models.Dimension) ([]models.AttributeValue, error)
	ExistingSKUs(ctx context.Context, tenantID string, skus []string) (map[string]struct{}, error)
	ExistingUPIDs(ctx context.Context, upids []string) (map[string]struct{}, error)
}

// ImportValidator checks a product import file without writing anything
type ImportValidator struct {
	store  ImportStore
	logger *logrus.Entry
}

func NewImportValidator(store ImportStore, logger *logrus.Logger) *ImportValidator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ImportValidator{
		store:  store,
		logger: logger.WithField("component", "import-validator"),
	}
}

// ValidateImport parses a .csv or .xlsx file and reports every row-level problem
func (v *ImportValidator) ValidateImport(ctx context.Context, tenantID, filename string, file io.Reader) (*models.ImportValidation, error) {
	if tenantID == "" {
		return nil, validationError("tenant id is required")
	}

	var (
		format models.ImportFormat
		rows   []map[string]string
		err    error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		format = models.ImportFormatCSV
		rows, err = parseCSV(file)
	case ".xlsx":
		format = models.ImportFormatXLSX
		rows, err = parseXLSX(file)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q, use .csv or .xlsx", ErrInvalidImportFile, filepath.Ext(filename))
	}
	if err != nil {
		return nil, err
	}

	colors, err := v.attributeNames(ctx, tenantID, models.DimensionColor)
	if err != nil {
		return nil, err
	}
	sizes, err := v.attributeNames(ctx, tenantID, models.DimensionSize)
	if err != nil {
		return nil, err
	}

	upids := make([]string, 0, len(rows))
	skus := make([]string, 0, len(rows))
	for _, row := range rows {
		if row["upid"] != "" {
			upids = append(upids, row["upid"])
		}
		if row["sku"] != "" {
			skus = append(skus, row["sku"])
		}
	}
	existingUPIDs, err := v.store.ExistingUPIDs(ctx, uniqueStrings(upids))
	if err != nil {
		return nil, fmt.Errorf("failed to look up existing upids: %w", mapRepositoryError(err))
	}
	existingSKUs, err := v.store.ExistingSKUs(ctx, tenantID, uniqueStrings(skus))
	if err != nil {
		return nil, fmt.Errorf("failed to look up existing skus: %w", mapRepositoryError(err))
	}

	report := &models.ImportValidation{
		Format:    format,
		TotalRows: len(rows),
		Errors:    []models.ImportRowError{},
	}
	seenUPIDs := make(map[string]struct{})
	seenSKUs := make(map[string]struct{})
	duplicateUPIDs := newOrderedSet()
	duplicateSKUs := newOrderedSet()
	unmappedColors := newOrderedSet()
	unmappedSizes := newOrderedSet()

	for _, row := range rows {
		rowNum, _ := strconv.Atoi(row[rowNumberKey])
		rowErrors := make([]models.ImportRowError, 0)
		fail := func(column, code, message string) {
			rowErrors = append(rowErrors, models.ImportRowError{Row: rowNum, Column: column, Code: code, Message: message})
		}

		name := row["product_name"]
		upid := row["upid"]
		sku := row["sku"]

		if name == "" {
			fail("product_name", models.ImportCodeMissingName, "product name is required")
		} else if utf8.RuneCountInString(name) > models.ImportMaxNameLength {
			fail("product_name", models.ImportCodeNameTooLong, fmt.Sprintf("product name exceeds %d characters", models.ImportMaxNameLength))
		}
		if upid == "" && sku == "" {
			fail("upid", models.ImportCodeMissingIdentifier, "either upid or sku is required")
		}
		if utf8.RuneCountInString(row["description"]) > models.ImportMaxDescriptionLength {
			fail("description", models.ImportCodeDescriptionTooLong, fmt.Sprintf("description exceeds %d characters", models.ImportMaxDescriptionLength))
		}

		if upid != "" {
			if _, dup := seenUPIDs[upid]; dup {
				duplicateUPIDs.add(upid)
				fail("upid", models.ImportCodeDuplicateUPID, fmt.Sprintf("upid %s appears more than once in the file", upid))
			}
			seenUPIDs[upid] = struct{}{}
			if _, exists := existingUPIDs[upid]; exists {
				fail("upid", models.ImportCodeUPIDExists, fmt.Sprintf("upid %s is already assigned", upid))
			}
		}
		if sku != "" {
			if _, dup := seenSKUs[sku]; dup {
				duplicateSKUs.add(sku)
				fail("sku", models.ImportCodeDuplicateSKU, fmt.Sprintf("sku %s appears more than once in the file", sku))
			}
			seenSKUs[sku] = struct{}{}
			if _, exists := existingSKUs[sku]; exists {
				fail("sku", models.ImportCodeSKUExists, fmt.Sprintf("sku %s already exists", sku))
			}
		}

		if color := row["color_name"]; color != "" {
			if _, ok := colors[strings.ToLower(color)]; !ok {
				unmappedColors.add(color)
				fail("color_name", models.ImportCodeUnmappedColor, fmt.Sprintf("color %q is not defined for this brand", color))
			}
		}
		if size := row["size_name"]; size != "" {
			if _, ok := sizes[strings.ToLower(size)]; !ok {
				unmappedSizes.add(size)
				fail("size_name", models.ImportCodeUnmappedSize, fmt.Sprintf("size %q is not defined for this brand", size))
			}
		}

		if msg := checkMaterials(row); msg != "" {
			fail("material_1_percentage", models.ImportCodeMaterialPercentage, msg)
		}

		if len(rowErrors) == 0 {
			report.ValidRows++
			continue
		}
		report.InvalidRows++
		report.Errors = append(report.Errors, rowErrors...)
	}

	report.DuplicateUPIDs = duplicateUPIDs.values
	report.DuplicateSKUs = duplicateSKUs.values
	report.UnmappedColors = unmappedColors.values
	report.UnmappedSizes = unmappedSizes.values

	v.logger.WithFields(logrus.Fields{
		"tenant_id":    tenantID,
		"format":       format,
		"total_rows":   report.TotalRows,
		"invalid_rows": report.InvalidRows,
	}).Info("Import file validated")

	return report, nil
}

// attributeNames indexes a dimension's values by lowercased name and code
func (v *ImportValidator) attributeNames(ctx context.Context, tenantID string, dimension models.Dimension) (map[string]struct{}, error) {
	values, err := v.store.ListAttributeValues(ctx, tenantID, dimension)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s values: %w", dimension, mapRepositoryError(err))
	}
	names := make(map[string]struct{}, len(values)*2)
	for _, value := range values {
		names[strings.ToLower(value.Name)] = struct{}{}
		if value.Code != nil && *value.Code != "" {
			names[strings.ToLower(*value.Code)] = struct{}{}
		}
	}
	return names, nil
}

// checkMaterials returns a message when the declared material shares do not add up to 100
func checkMaterials(row map[string]string) string {
	declared := false
	total := 0.0
	for i := 1; i <= models.ImportMaxMaterials; i++ {
		name := row[fmt.Sprintf("material_%d_name", i)]
		raw := row[fmt.Sprintf("material_%d_percentage", i)]
		if name == "" && raw == "" {
			continue
		}
		declared = true
		if name == "" {
			return fmt.Sprintf("material %d has a percentage but no name", i)
		}
		if raw == "" {
			return fmt.Sprintf("material %d (%s) has no percentage", i, name)
		}
		pct, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
		if err != nil || pct <= 0 || pct > 100 {
			return fmt.Sprintf("material %d percentage %q is not a number between 0 and 100", i, raw)
		}
		total += pct
	}
	if declared && math.Abs(total-100) > 0.01 {
		return fmt.Sprintf("material percentages add up to %g, expected 100", total)
	}
	return ""
}

// parseCSV parses a CSV file into rows
func parseCSV(file io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read CSV header: %v", ErrInvalidImportFile, err)
	}
	headers = normalizeHeaders(headers)
	if err := checkHeaders(headers); err != nil {
		return nil, err
	}

	var rows []map[string]string
	lineNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			return nil, fmt.Errorf("%w: error reading line %d: %v", ErrInvalidImportFile, lineNum, err)
		}
		if row := buildRow(headers, record, lineNum); row != nil {
			rows = append(rows, row)
		}
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: file must have a header row and at least one data row", ErrInvalidImportFile)
	}
	return rows, nil
}

// parseXLSX parses the Products sheet, or the first sheet, of an Excel file into rows
func parseXLSX(file io.Reader) ([]map[string]string, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open Excel file: %v", ErrInvalidImportFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: no sheets found in Excel file", ErrInvalidImportFile)
	}
	sheetName := sheets[0]
	for _, name := range sheets {
		if strings.EqualFold(name, "Products") {
			sheetName = name
			break
		}
	}

	excelRows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet: %v", ErrInvalidImportFile, err)
	}
	if len(excelRows) < 2 {
		return nil, fmt.Errorf("%w: file must have a header row and at least one data row", ErrInvalidImportFile)
	}

	headers := normalizeHeaders(excelRows[0])
	if err := checkHeaders(headers); err != nil {
		return nil, err
	}

	var rows []map[string]string
	for idx, record := range excelRows[1:] {
		if row := buildRow(headers, record, idx+2); row != nil {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: file must have a header row and at least one data row", ErrInvalidImportFile)
	}
	return rows, nil
}

func normalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimPrefix(h, "\ufeff")
		h = strings.TrimSpace(strings.ToLower(h))
		out[i] = strings.TrimSuffix(h, " *")
	}
	return out
}

func checkHeaders(headers []string) error {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[h] = struct{}{}
	}
	missing := make([]string, 0)
	for _, required := range requiredImportHeaders {
		if _, ok := present[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required columns: %s", ErrInvalidImportFile, strings.Join(missing, ", "))
	}
	return nil
}

// buildRow maps a record onto headers; blank records yield nil
func buildRow(headers, record []string, lineNum int) map[string]string {
	row := make(map[string]string, len(headers)+1)
	blank := true
	for i, value := range record {
		if i >= len(headers) {
			break
		}
		value = strings.TrimSpace(value)
		if value != "" {
			blank = false
		}
		row[headers[i]] = value
	}
	if blank {
		return nil
	}
	row[rowNumberKey] = strconv.Itoa(lineNum)
	return row
}

type orderedSet struct {
	seen   map[string]struct{}
	values []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.values = append(s.values, v)
}

func uniqueStrings(values []string) []string {
	set := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
