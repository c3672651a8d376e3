package handlers

import (
	"context"
	"net/http"

	"catalog-service/internal/middleware"
	"catalog-service/internal/models"
	"catalog-service/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CatalogServiceInterface is what the catalog handler needs from services.CatalogService
type CatalogServiceInterface interface {
	ResolveCount(ctx context.Context, tenantID string, sel models.Selection) (int, error)
	BulkUpdate(ctx context.Context, tenantID string, sel models.Selection, patch models.ProductPatch, opts models.BulkOptions, actorID string) (*models.BulkResult, error)
	BulkDelete(ctx context.Context, tenantID string, sel models.Selection, opts models.BulkOptions, actorID string) (*models.BulkResult, error)
	ReconcileVariants(ctx context.Context, tenantID string, productID uuid.UUID, colors, sizes []uuid.UUID, actorID string) (*services.ReconcileResult, error)
	ListVariants(ctx context.Context, tenantID string, productID uuid.UUID) ([]models.ProductVariant, error)
	CreateProduct(ctx context.Context, tenantID string, req models.CreateProductRequest, actorID string) (*models.Product, error)
	UpdateProduct(ctx context.Context, tenantID string, productID uuid.UUID, req models.UpdateProductRequest, actorID string) (*models.Product, error)
}

var _ CatalogServiceInterface = (*services.CatalogService)(nil)

type CatalogHandler struct {
	service CatalogServiceInterface
	logger  *logrus.Entry
}

func NewCatalogHandler(service CatalogServiceInterface, logger *logrus.Logger) *CatalogHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CatalogHandler{
		service: service,
		logger:  logger.WithField("component", "catalog-handler"),
	}
}

// CountSelection returns how many products a selection currently resolves to
// @Summary Count selection
// @Description Resolve an explicit or filter selection and return the number of products it denotes
// @Tags Bulk
// @Accept json
// @Produce json
// @Param request body models.SelectionCountRequest true "Selection"
// @Success 200 {object} models.SuccessResponse{data=models.SelectionCountResponse}
// @Failure 400 {object} models.ErrorResponse
// @Router /products/selection/count [post]
func (h *CatalogHandler) CountSelection(c *gin.Context) {
	var req models.SelectionCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	sel, err := req.Selection.ToSelection()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	count, err := h.service.ResolveCount(c.Request.Context(), middleware.GetTenantID(c), sel)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    models.SelectionCountResponse{Count: count},
	})
}

// BulkUpdate applies a patch to every selected product
// @Summary Bulk update products
// @Description Apply a field patch to a selection. Selections above the preview threshold need preview=true first and then acknowledgedCount.
// @Tags Bulk
// @Accept json
// @Produce json
// @Param request body models.BulkUpdateRequest true "Selection, patch and options"
// @Success 200 {object} models.SuccessResponse{data=models.BulkResult}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Router /products/bulk/update [post]
func (h *CatalogHandler) BulkUpdate(c *gin.Context) {
	var req models.BulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	sel, err := req.Selection.ToSelection()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.service.BulkUpdate(c.Request.Context(), middleware.GetTenantID(c), sel, req.Patch, req.BulkOptions, c.GetString("user_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: result})
}

// BulkDelete removes every selected product with its variants and media
// @Summary Bulk delete products
// @Description Delete a selection. Stored media is removed after commit on a best-effort basis.
// @Tags Bulk
// @Accept json
// @Produce json
// @Param request body models.BulkDeleteRequest true "Selection and options"
// @Success 200 {object} models.SuccessResponse{data=models.BulkResult}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Router /products/bulk/delete [post]
func (h *CatalogHandler) BulkDelete(c *gin.Context) {
	var req models.BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	sel, err := req.Selection.ToSelection()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.service.BulkDelete(c.Request.Context(), middleware.GetTenantID(c), sel, req.BulkOptions, c.GetString("user_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: result})
}

// SetVariantMatrix reconciles a product's variants with the given color and size axes
// @Summary Set variant matrix
// @Tags Variants
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param request body models.VariantMatrixRequest true "Color and size value ids"
// @Success 200 {object} models.SuccessResponse{data=models.VariantMatrixResponse}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /products/{id}/variants/matrix [put]
func (h *CatalogHandler) SetVariantMatrix(c *gin.Context) {
	productID, ok := h.productID(c)
	if !ok {
		return
	}

	var req models.VariantMatrixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	colors, ok := parseIDList(c, "colorValueIds", req.ColorValueIDs)
	if !ok {
		return
	}
	sizes, ok := parseIDList(c, "sizeValueIds", req.SizeValueIDs)
	if !ok {
		return
	}

	result, err := h.service.ReconcileVariants(c.Request.Context(), middleware.GetTenantID(c), productID, colors, sizes, c.GetString("user_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	deleted := make([]string, len(result.DeletedIDs))
	for i, id := range result.DeletedIDs {
		deleted[i] = id.String()
	}
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data: models.VariantMatrixResponse{
			Kept:       result.Kept,
			Inserted:   result.Inserted,
			DeletedIDs: deleted,
		},
	})
}

// GetVariants lists a product's variants
// @Summary Get product variants
// @Tags Variants
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} models.SuccessResponse{data=[]models.ProductVariant}
// @Failure 404 {object} models.ErrorResponse
// @Router /products/{id}/variants [get]
func (h *CatalogHandler) GetVariants(c *gin.Context) {
	productID, ok := h.productID(c)
	if !ok {
		return
	}

	variants, err := h.service.ListVariants(c.Request.Context(), middleware.GetTenantID(c), productID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: variants})
}

// CreateProduct creates a product and its initial variant matrix
// @Summary Create product
// @Tags Products
// @Accept json
// @Produce json
// @Param product body models.CreateProductRequest true "Product data"
// @Success 201 {object} models.SuccessResponse{data=models.Product}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /products [post]
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	product, err := h.service.CreateProduct(c.Request.Context(), middleware.GetTenantID(c), req, c.GetString("user_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, models.SuccessResponse{Success: true, Data: product})
}

// UpdateProduct patches a product and, when axes are given, its variant matrix
// @Summary Update product
// @Tags Products
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param product body models.UpdateProductRequest true "Fields to change"
// @Success 200 {object} models.SuccessResponse{data=models.Product}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /products/{id} [put]
func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	productID, ok := h.productID(c)
	if !ok {
		return
	}

	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	product, err := h.service.UpdateProduct(c.Request.Context(), middleware.GetTenantID(c), productID, req, c.GetString("user_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: product})
}

func (h *CatalogHandler) productID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID format", nil)
		return uuid.Nil, false
	}
	return id, true
}

func parseIDList(c *gin.Context, field string, raw []string) ([]uuid.UUID, bool) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "INVALID_ID",
					Message: "Invalid id format: " + s,
					Field:   field,
				},
			})
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}
