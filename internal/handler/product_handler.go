package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/filemgr/internal/dto"
	"github.com/noah-isme/filemgr/internal/models"
	"github.com/noah-isme/filemgr/pkg/response"
)

type catalogService interface {
	Ingest(ctx context.Context, req dto.IngestRequest) (*models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	GetProductByName(ctx context.Context, name string) (*models.Product, error)
	RemoveProduct(ctx context.Context, id string) error
	SetTransferStatus(ctx context.Context, id string, req dto.TransferStatusRequest) (*models.Product, error)
	GetMetadata(ctx context.Context, id string, elements []string) (*models.Metadata, error)
	GetReferences(ctx context.Context, id string) ([]models.Reference, error)
	PagedQuery(ctx context.Context, typeName, expr string, pageNum int) (*models.ProductPage, error)
	Count(ctx context.Context, typeName, expr string) (int, error)
	QueryIDs(ctx context.Context, typeName, expr string) ([]string, error)
}

// ProductHandler exposes product ingest, lookup and query endpoints.
type ProductHandler struct {
	service catalogService
}

// NewProductHandler builds a new handler.
func NewProductHandler(service catalogService) *ProductHandler {
	return &ProductHandler{service: service}
}

// Ingest godoc
// @Summary Ingest a product with references and metadata
// @Tags Products
// @Accept json
// @Produce json
// @Param payload body dto.IngestRequest true "Product"
// @Success 201 {object} response.Envelope
// @Router /products [post]
func (h *ProductHandler) Ingest(c *gin.Context) {
	var req dto.IngestRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	product, err := h.service.Ingest(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, product)
}

// Get godoc
// @Summary Get product by id
// @Tags Products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} response.Envelope
// @Router /products/{id} [get]
func (h *ProductHandler) Get(c *gin.Context) {
	product, err := h.service.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, product, nil)
}

// GetByName returns the latest product with the given name.
func (h *ProductHandler) GetByName(c *gin.Context) {
	product, err := h.service.GetProductByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, product, nil)
}

// Delete godoc
// @Summary Remove a product with its metadata and references
// @Tags Products
// @Param id path string true "Product ID"
// @Success 204
// @Router /products/{id} [delete]
func (h *ProductHandler) Delete(c *gin.Context) {
	if err := h.service.RemoveProduct(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SetTransferStatus updates the transfer status of a product.
func (h *ProductHandler) SetTransferStatus(c *gin.Context) {
	var req dto.TransferStatusRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	product, err := h.service.SetTransferStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, product, nil)
}

// Metadata godoc
// @Summary Product metadata, optionally reduced to some elements
// @Tags Products
// @Produce json
// @Param id path string true "Product ID"
// @Param elements query string false "Comma separated element names"
// @Success 200 {object} response.Envelope
// @Router /products/{id}/metadata [get]
func (h *ProductHandler) Metadata(c *gin.Context) {
	md, err := h.service.GetMetadata(c.Request.Context(), c.Param("id"), listParam(c, "elements"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, md, nil)
}

// References lists the files of a product.
func (h *ProductHandler) References(c *gin.Context) {
	refs, err := h.service.GetReferences(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, refs, nil)
}

// List godoc
// @Summary Page through the products of a type matching a query
// @Tags Query
// @Produce json
// @Param name path string true "Product type name"
// @Param q query string false "Query expression"
// @Param page query int false "Page number"
// @Success 200 {object} response.Envelope
// @Router /types/{name}/products [get]
func (h *ProductHandler) List(c *gin.Context) {
	pageNum, err := pageParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	page, err := h.service.PagedQuery(c.Request.Context(), c.Param("name"), c.Query("q"), pageNum)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page.Products, models.PaginationFromPage(page), map[string]interface{}{
		"first": page.IsFirstPage(),
		"last":  page.IsLastPage(),
	})
}

// Count returns the number of products of a type matching ?q=.
func (h *ProductHandler) Count(c *gin.Context) {
	typeName, expr := c.Param("name"), c.Query("q")
	count, err := h.service.Count(c.Request.Context(), typeName, expr)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.CountResponse{ProductType: typeName, Query: expr, Count: count}, nil)
}

// Query returns every matching product id, newest first.
func (h *ProductHandler) Query(c *gin.Context) {
	var req dto.QueryRequest
	if c.Request.ContentLength != 0 {
		if err := bindJSON(c, &req); err != nil {
			response.Error(c, err)
			return
		}
	}
	typeName := c.Param("name")
	ids, err := h.service.QueryIDs(c.Request.Context(), typeName, req.Query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.QueryResponse{ProductType: typeName, Query: req.Query, ProductIDs: ids}, nil)
}
