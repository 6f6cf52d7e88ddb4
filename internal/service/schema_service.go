package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/filemgr/internal/catalog"
	"github.com/noah-isme/filemgr/internal/dto"
	"github.com/noah-isme/filemgr/internal/models"
	"github.com/noah-isme/filemgr/internal/validation"
	appErrors "github.com/noah-isme/filemgr/pkg/errors"
	"github.com/noah-isme/filemgr/pkg/logger"
)

type productTypeStore interface {
	productTypeReader
	Create(ctx context.Context, typ *models.ProductType) error
	List(ctx context.Context) ([]models.ProductType, error)
}

type tableProvisioner interface {
	EnsureTypeTables(ctx context.Context, typ *models.ProductType) error
}

type resultInvalidator interface {
	Invalidate(ctx context.Context, patterns ...string) error
}

// SchemaService manages product types and the elements they carry. Changes
// to element mappings, elements or parent links drop cached query results.
type SchemaService struct {
	types     productTypeStore
	layer     validation.Layer
	tables    tableProvisioner
	cache     resultInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSchemaService constructs the service. cache may be nil.
func NewSchemaService(types productTypeStore, layer validation.Layer, tables tableProvisioner, cache resultInvalidator, validate *validator.Validate, logger *zap.Logger) *SchemaService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &SchemaService{types: types, layer: layer, tables: tables, cache: cache, validator: validate, logger: logger}
	svc.validator.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return catalog.ValidateIdentifier(fl.Field().String()) == nil
	})
	return svc
}

// CreateType registers a product type, provisions its tables and links its
// parent when one is named.
func (s *SchemaService) CreateType(ctx context.Context, req dto.CreateProductTypeRequest) (*models.ProductType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid product type payload")
	}
	if _, err := s.types.GetByName(ctx, req.Name); err == nil {
		return nil, appErrors.Clonef(appErrors.ErrConflict, "product type %s already exists", req.Name)
	} else if !errors.Is(err, appErrors.ErrNotFound) {
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to check product type %s", req.Name)
	}

	var parent *models.ProductType
	if req.Parent != "" {
		p, err := s.GetType(ctx, req.Parent)
		if err != nil {
			return nil, err
		}
		parent = p
	}

	typ := &models.ProductType{
		ID:             req.ID,
		Name:           req.Name,
		Description:    req.Description,
		RepositoryPath: req.RepositoryPath,
		Versioner:      req.Versioner,
	}
	if err := s.types.Create(ctx, typ); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to create product type %s", req.Name)
	}
	if err := s.tables.EnsureTypeTables(ctx, typ); err != nil {
		return nil, err
	}
	if parent != nil {
		if err := s.layer.AddParentForProductType(ctx, typ, parent.ID); err != nil {
			return nil, err
		}
		typ.ParentID = parent.ID
	}
	logger.ForContext(ctx, s.logger).Sugar().Infow("product type created", "product_type", typ.Name, "id", typ.ID, "parent", typ.ParentID)
	return typ, nil
}

// ListTypes returns every product type ordered by name.
func (s *SchemaService) ListTypes(ctx context.Context) ([]models.ProductType, error) {
	types, err := s.types.List(ctx)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to list product types")
	}
	return types, nil
}

// GetType returns the product type called name with its parent id filled in.
func (s *SchemaService) GetType(ctx context.Context, name string) (*models.ProductType, error) {
	typ, err := s.types.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "product type %s not found", name)
		}
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to load product type %s", name)
	}
	parent, err := s.layer.GetParent(ctx, typ)
	if err != nil {
		return nil, err
	}
	typ.ParentID = parent
	return typ, nil
}

// SetParent makes req.Parent the super type of the type called name.
func (s *SchemaService) SetParent(ctx context.Context, name string, req dto.SetParentRequest) (*models.ProductType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid parent payload")
	}
	if req.Parent == name {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a product type cannot be its own parent")
	}
	typ, err := s.GetType(ctx, name)
	if err != nil {
		return nil, err
	}
	parent, err := s.GetType(ctx, req.Parent)
	if err != nil {
		return nil, err
	}
	if err := s.layer.AddParentForProductType(ctx, typ, parent.ID); err != nil {
		return nil, err
	}
	s.dropResults(ctx)
	typ.ParentID = parent.ID
	return typ, nil
}

// RemoveParent detaches the type called name from its parent.
func (s *SchemaService) RemoveParent(ctx context.Context, name string) error {
	typ, err := s.GetType(ctx, name)
	if err != nil {
		return err
	}
	if typ.ParentID == "" {
		return appErrors.Clonef(appErrors.ErrNotFound, "product type %s has no parent", name)
	}
	if err := s.layer.RemoveParentForProductType(ctx, typ, typ.ParentID); err != nil {
		return err
	}
	s.dropResults(ctx)
	return nil
}

// TypeElements lists the elements of a type, with inherited ones unless
// direct is set.
func (s *SchemaService) TypeElements(ctx context.Context, name string, direct bool) ([]models.Element, error) {
	typ, err := s.GetType(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.layer.GetElements(ctx, typ, direct)
}

// MapElement attaches an element, by id or name, to the type called name.
func (s *SchemaService) MapElement(ctx context.Context, name string, req dto.MapElementRequest) (*models.Element, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid element mapping")
	}
	typ, err := s.GetType(ctx, name)
	if err != nil {
		return nil, err
	}
	elem, err := s.resolveElement(ctx, req.ElementID, req.ElementName)
	if err != nil {
		return nil, err
	}
	if err := s.layer.AddElementToProductType(ctx, typ, elem); err != nil {
		return nil, err
	}
	s.dropResults(ctx)
	return elem, nil
}

// UnmapElement detaches element elementID from the type called name.
func (s *SchemaService) UnmapElement(ctx context.Context, name, elementID string) error {
	typ, err := s.GetType(ctx, name)
	if err != nil {
		return err
	}
	elem, err := s.layer.GetElementByID(ctx, elementID)
	if err != nil {
		return err
	}
	if err := s.layer.RemoveElementFromProductType(ctx, typ, elem); err != nil {
		return err
	}
	s.dropResults(ctx)
	return nil
}

// CreateElement adds an element to the schema.
func (s *SchemaService) CreateElement(ctx context.Context, req dto.ElementRequest) (*models.Element, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid element payload")
	}
	if existing, err := s.layer.GetElementByName(ctx, req.Name); err == nil && existing != nil {
		return nil, appErrors.Clonef(appErrors.ErrConflict, "element %s already exists", req.Name)
	} else if err != nil && !errors.Is(err, appErrors.ErrNotFound) {
		return nil, err
	}
	elem := &models.Element{ID: req.ID, Name: req.Name, DCElement: req.DCElement, Description: req.Description}
	if err := s.layer.AddElement(ctx, elem); err != nil {
		return nil, err
	}
	return elem, nil
}

// UpdateElement rewrites the element with id.
func (s *SchemaService) UpdateElement(ctx context.Context, id string, req dto.ElementRequest) (*models.Element, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid element payload")
	}
	elem := &models.Element{ID: id, Name: req.Name, DCElement: req.DCElement, Description: req.Description}
	if err := s.layer.ModifyElement(ctx, elem); err != nil {
		return nil, err
	}
	s.dropResults(ctx)
	return elem, nil
}

// RemoveElement deletes the element with id and its type mappings.
func (s *SchemaService) RemoveElement(ctx context.Context, id string) error {
	elem, err := s.layer.GetElementByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.layer.RemoveElement(ctx, elem); err != nil {
		return err
	}
	s.dropResults(ctx)
	return nil
}

// ListElements returns every element.
func (s *SchemaService) ListElements(ctx context.Context) ([]models.Element, error) {
	return s.layer.ListElements(ctx)
}

// GetElementByName returns the element called name.
func (s *SchemaService) GetElementByName(ctx context.Context, name string) (*models.Element, error) {
	return s.layer.GetElementByName(ctx, name)
}

func (s *SchemaService) resolveElement(ctx context.Context, id, name string) (*models.Element, error) {
	if id != "" {
		return s.layer.GetElementByID(ctx, id)
	}
	return s.layer.GetElementByName(ctx, name)
}

func (s *SchemaService) dropResults(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, AllResults()...); err != nil {
		logger.ForContext(ctx, s.logger).Sugar().Warnw("failed to drop cached query results", "error", err)
	}
}
