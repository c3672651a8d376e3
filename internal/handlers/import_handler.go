package handlers

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"

	"catalog-service/internal/middleware"
	"catalog-service/internal/models"
	"catalog-service/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// ImportValidatorInterface is what the import handler needs from services.ImportValidator
type ImportValidatorInterface interface {
	ValidateImport(ctx context.Context, tenantID, filename string, file io.Reader) (*models.ImportValidation, error)
}

var _ ImportValidatorInterface = (*services.ImportValidator)(nil)

type ImportHandler struct {
	validator ImportValidatorInterface
	logger    *logrus.Entry
}

func NewImportHandler(validator ImportValidatorInterface, logger *logrus.Logger) *ImportHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ImportHandler{
		validator: validator,
		logger:    logger.WithField("component", "import-handler"),
	}
}

// GetImportTemplate returns the import template definition or file
// @Summary Get import template
// @Tags Import
// @Produce json
// @Param format query string false "json, csv or xlsx" default(json)
// @Success 200 {object} models.ImportTemplate
// @Router /products/import/template [get]
func (h *ImportHandler) GetImportTemplate(c *gin.Context) {
	template := models.ProductImportTemplate()

	switch c.DefaultQuery("format", "json") {
	case "csv":
		h.generateCSVTemplate(c, template)
	case "xlsx":
		h.generateXLSXTemplate(c, template)
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"template": template,
		})
	}
}

// generateCSVTemplate downloads the header row as CSV
func (h *ImportHandler) generateCSVTemplate(c *gin.Context, template models.ImportTemplate) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.csv")

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	headers := make([]string, len(template.Columns))
	for i, col := range template.Columns {
		headers[i] = col.Name
	}
	if err := writer.Write(headers); err != nil {
		h.logger.WithError(err).Warn("Failed to write CSV template")
	}
}

// generateXLSXTemplate downloads a styled Excel template with an instructions sheet
func (h *ImportHandler) generateXLSXTemplate(c *gin.Context, template models.ImportTemplate) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Products"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, col := range template.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		headerText := col.Name
		style := headerStyle
		if col.Required {
			headerText = col.Name + " *"
			style = requiredStyle
		}
		f.SetCellValue(sheetName, cell, headerText)
		f.SetCellStyle(sheetName, cell, cell, style)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 20)
	}

	f.NewSheet("Instructions")
	instructions := []string{
		"Product Import Instructions",
		"",
		"Every row needs product_name and at least one of upid or sku.",
		"color_name and size_name must match a color or size already defined for your brand (name or code, any case).",
		fmt.Sprintf("Up to %d materials per row; when any are given the percentages must add up to 100.", models.ImportMaxMaterials),
		"Validate the file first: nothing is written until the report has no errors.",
	}
	for i, line := range instructions {
		f.SetCellValue("Instructions", fmt.Sprintf("A%d", i+1), line)
	}

	start := len(instructions) + 2
	for i, heading := range []string{"Column", "Description", "Required", "Type", "Example"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, start)
		f.SetCellValue("Instructions", cell, heading)
	}
	for i, col := range template.Columns {
		row := start + 1 + i
		required := "Optional"
		if col.Required {
			required = "Required"
		}
		f.SetCellValue("Instructions", fmt.Sprintf("A%d", row), col.Name)
		f.SetCellValue("Instructions", fmt.Sprintf("B%d", row), col.Description)
		f.SetCellValue("Instructions", fmt.Sprintf("C%d", row), required)
		f.SetCellValue("Instructions", fmt.Sprintf("D%d", row), col.Type)
		f.SetCellValue("Instructions", fmt.Sprintf("E%d", row), col.Example)
	}
	f.SetColWidth("Instructions", "A", "A", 25)
	f.SetColWidth("Instructions", "B", "B", 60)
	f.SetColWidth("Instructions", "C", "D", 15)
	f.SetColWidth("Instructions", "E", "E", 40)

	sheetIdx, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(sheetIdx)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.xlsx")

	if err := f.Write(c.Writer); err != nil {
		h.logger.WithError(err).Warn("Failed to write XLSX template")
	}
}

// ValidateImport checks an uploaded CSV or Excel file and reports row-level problems
// @Summary Validate import file
// @Description Parse a product import file and report every row-level error without writing anything
// @Tags Import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX file"
// @Success 200 {object} models.SuccessResponse{data=models.ImportValidation}
// @Failure 400 {object} models.ErrorResponse
// @Router /products/import/validate [post]
func (h *ImportHandler) ValidateImport(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "FILE_REQUIRED", "Please upload a CSV or Excel file", nil)
		return
	}
	defer file.Close()

	report, err := h.validator.ValidateImport(c.Request.Context(), middleware.GetTenantID(c), header.Filename, file)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: report})
}
