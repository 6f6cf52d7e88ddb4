package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/filemgr/internal/dto"
	"github.com/noah-isme/filemgr/internal/models"
	"github.com/noah-isme/filemgr/pkg/response"
)

type schemaService interface {
	CreateType(ctx context.Context, req dto.CreateProductTypeRequest) (*models.ProductType, error)
	ListTypes(ctx context.Context) ([]models.ProductType, error)
	GetType(ctx context.Context, name string) (*models.ProductType, error)
	SetParent(ctx context.Context, name string, req dto.SetParentRequest) (*models.ProductType, error)
	RemoveParent(ctx context.Context, name string) error
	TypeElements(ctx context.Context, name string, direct bool) ([]models.Element, error)
	MapElement(ctx context.Context, name string, req dto.MapElementRequest) (*models.Element, error)
	UnmapElement(ctx context.Context, name, elementID string) error
	CreateElement(ctx context.Context, req dto.ElementRequest) (*models.Element, error)
	UpdateElement(ctx context.Context, id string, req dto.ElementRequest) (*models.Element, error)
	RemoveElement(ctx context.Context, id string) error
	ListElements(ctx context.Context) ([]models.Element, error)
	GetElementByName(ctx context.Context, name string) (*models.Element, error)
}

// SchemaHandler exposes product type and element management.
type SchemaHandler struct {
	service schemaService
}

// NewSchemaHandler builds a new handler.
func NewSchemaHandler(service schemaService) *SchemaHandler {
	return &SchemaHandler{service: service}
}

// CreateType godoc
// @Summary Register a product type
// @Tags Schema
// @Accept json
// @Produce json
// @Param payload body dto.CreateProductTypeRequest true "Product type"
// @Success 201 {object} response.Envelope
// @Router /types [post]
func (h *SchemaHandler) CreateType(c *gin.Context) {
	var req dto.CreateProductTypeRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	typ, err := h.service.CreateType(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, typ)
}

func (h *SchemaHandler) ListTypes(c *gin.Context) {
	types, err := h.service.ListTypes(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, nil)
}

func (h *SchemaHandler) GetType(c *gin.Context) {
	typ, err := h.service.GetType(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, typ, nil)
}

// TypeElements godoc
// @Summary Elements of a product type
// @Tags Schema
// @Produce json
// @Param name path string true "Product type name"
// @Param direct query bool false "Skip inherited elements"
// @Success 200 {object} response.Envelope
// @Router /types/{name}/elements [get]
func (h *SchemaHandler) TypeElements(c *gin.Context) {
	elems, err := h.service.TypeElements(c.Request.Context(), c.Param("name"), boolParam(c, "direct"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, elems, nil)
}

func (h *SchemaHandler) MapElement(c *gin.Context) {
	var req dto.MapElementRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	elem, err := h.service.MapElement(c.Request.Context(), c.Param("name"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, elem)
}

func (h *SchemaHandler) UnmapElement(c *gin.Context) {
	if err := h.service.UnmapElement(c.Request.Context(), c.Param("name"), c.Param("elementId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *SchemaHandler) SetParent(c *gin.Context) {
	var req dto.SetParentRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	typ, err := h.service.SetParent(c.Request.Context(), c.Param("name"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, typ, nil)
}

func (h *SchemaHandler) RemoveParent(c *gin.Context) {
	if err := h.service.RemoveParent(c.Request.Context(), c.Param("name")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CreateElement godoc
// @Summary Add a metadata element
// @Tags Schema
// @Accept json
// @Produce json
// @Param payload body dto.ElementRequest true "Element"
// @Success 201 {object} response.Envelope
// @Router /elements [post]
func (h *SchemaHandler) CreateElement(c *gin.Context) {
	var req dto.ElementRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	elem, err := h.service.CreateElement(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, elem)
}

func (h *SchemaHandler) ListElements(c *gin.Context) {
	elems, err := h.service.ListElements(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, elems, nil)
}

func (h *SchemaHandler) GetElement(c *gin.Context) {
	elem, err := h.service.GetElementByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, elem, nil)
}

func (h *SchemaHandler) UpdateElement(c *gin.Context) {
	var req dto.ElementRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	elem, err := h.service.UpdateElement(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, elem, nil)
}

func (h *SchemaHandler) DeleteElement(c *gin.Context) {
	if err := h.service.RemoveElement(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
