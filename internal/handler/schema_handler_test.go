package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/filemgr/internal/dto"
	"github.com/noah-isme/filemgr/internal/models"
	appErrors "github.com/noah-isme/filemgr/pkg/errors"
)

type schemaServiceMock struct {
	types      []models.ProductType
	elements   []models.Element
	err        error
	created    dto.CreateProductTypeRequest
	mapped     dto.MapElementRequest
	unmapped   [2]string
	direct     bool
	removedID  string
	updatedID  string
	parentName string
}

func (m *schemaServiceMock) CreateType(ctx context.Context, req dto.CreateProductTypeRequest) (*models.ProductType, error) {
	m.created = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.ProductType{ID: "urn:" + req.Name, Name: req.Name, ParentID: req.Parent}, nil
}

func (m *schemaServiceMock) ListTypes(ctx context.Context) ([]models.ProductType, error) {
	return m.types, m.err
}

func (m *schemaServiceMock) GetType(ctx context.Context, name string) (*models.ProductType, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.ProductType{ID: "urn:" + name, Name: name}, nil
}

func (m *schemaServiceMock) SetParent(ctx context.Context, name string, req dto.SetParentRequest) (*models.ProductType, error) {
	m.parentName = req.Parent
	if m.err != nil {
		return nil, m.err
	}
	return &models.ProductType{Name: name, ParentID: "urn:" + req.Parent}, nil
}

func (m *schemaServiceMock) RemoveParent(ctx context.Context, name string) error {
	return m.err
}

func (m *schemaServiceMock) TypeElements(ctx context.Context, name string, direct bool) ([]models.Element, error) {
	m.direct = direct
	return m.elements, m.err
}

func (m *schemaServiceMock) MapElement(ctx context.Context, name string, req dto.MapElementRequest) (*models.Element, error) {
	m.mapped = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.Element{ID: req.ElementID, Name: req.ElementName}, nil
}

func (m *schemaServiceMock) UnmapElement(ctx context.Context, name, elementID string) error {
	m.unmapped = [2]string{name, elementID}
	return m.err
}

func (m *schemaServiceMock) CreateElement(ctx context.Context, req dto.ElementRequest) (*models.Element, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Element{ID: "e1", Name: req.Name}, nil
}

func (m *schemaServiceMock) UpdateElement(ctx context.Context, id string, req dto.ElementRequest) (*models.Element, error) {
	m.updatedID = id
	return &models.Element{ID: id, Name: req.Name}, m.err
}

func (m *schemaServiceMock) RemoveElement(ctx context.Context, id string) error {
	m.removedID = id
	return m.err
}

func (m *schemaServiceMock) ListElements(ctx context.Context) ([]models.Element, error) {
	return m.elements, m.err
}

func (m *schemaServiceMock) GetElementByName(ctx context.Context, name string) (*models.Element, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Element{ID: "e1", Name: name}, nil
}

func TestSchemaHandlerCreateType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &schemaServiceMock{}
	h := NewSchemaHandler(mock)

	c, w := newGinContext(http.MethodPost, "/types", []byte(`{"name":"Image","parent":"GenericFile","repositoryPath":"file:///data"}`))
	h.CreateType(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Image", mock.created.Name)
	assert.Equal(t, "GenericFile", mock.created.Parent)
	assert.Equal(t, "file:///data", mock.created.RepositoryPath)
	assert.JSONEq(t, `{"id":"urn:Image","name":"Image","parent_id":"GenericFile"}`, string(decodeEnvelope(t, w).Data))
}

func TestSchemaHandlerCreateTypeConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewSchemaHandler(&schemaServiceMock{err: appErrors.Clone(appErrors.ErrConflict, "product type Image already exists")})
	c, w := newGinContext(http.MethodPost, "/types", []byte(`{"name":"Image"}`))
	h.CreateType(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSchemaHandlerTypeElementsDirect(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &schemaServiceMock{elements: []models.Element{{ID: "e1", Name: "Band"}}}
	h := NewSchemaHandler(mock)

	c, w := newGinContext(http.MethodGet, "/types/Image/elements?direct=true", nil)
	c.Params = gin.Params{{Key: "name", Value: "Image"}}
	h.TypeElements(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mock.direct)
	assert.JSONEq(t, `[{"id":"e1","name":"Band"}]`, string(decodeEnvelope(t, w).Data))
}

func TestSchemaHandlerMapAndUnmapElement(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &schemaServiceMock{}
	h := NewSchemaHandler(mock)

	c, w := newGinContext(http.MethodPost, "/types/Image/elements", []byte(`{"elementName":"Band"}`))
	c.Params = gin.Params{{Key: "name", Value: "Image"}}
	h.MapElement(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Band", mock.mapped.ElementName)

	c, w = newGinContext(http.MethodDelete, "/types/Image/elements/e1", nil)
	c.Params = gin.Params{{Key: "name", Value: "Image"}, {Key: "elementId", Value: "e1"}}
	h.UnmapElement(c)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, [2]string{"Image", "e1"}, mock.unmapped)
}

func TestSchemaHandlerSetParent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &schemaServiceMock{}
	h := NewSchemaHandler(mock)

	c, w := newGinContext(http.MethodPut, "/types/Image/parent", []byte(`{"parent":"GenericFile"}`))
	c.Params = gin.Params{{Key: "name", Value: "Image"}}
	h.SetParent(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "GenericFile", mock.parentName)
}

func TestSchemaHandlerRemoveParentNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewSchemaHandler(&schemaServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "product type Image has no parent")})
	c, w := newGinContext(http.MethodDelete, "/types/Image/parent", nil)
	c.Params = gin.Params{{Key: "name", Value: "Image"}}
	h.RemoveParent(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSchemaHandlerElementLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &schemaServiceMock{}
	h := NewSchemaHandler(mock)

	c, w := newGinContext(http.MethodPost, "/elements", []byte(`{"name":"Filename","dcElement":"title"}`))
	h.CreateElement(c)
	require.Equal(t, http.StatusCreated, w.Code)

	c, w = newGinContext(http.MethodGet, "/elements/Filename", nil)
	c.Params = gin.Params{{Key: "name", Value: "Filename"}}
	h.GetElement(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"e1","name":"Filename"}`, string(decodeEnvelope(t, w).Data))

	c, w = newGinContext(http.MethodPut, "/elements/e1", []byte(`{"name":"FileName"}`))
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	h.UpdateElement(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "e1", mock.updatedID)

	c, w = newGinContext(http.MethodDelete, "/elements/e1", nil)
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	h.DeleteElement(c)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "e1", mock.removedID)
}
