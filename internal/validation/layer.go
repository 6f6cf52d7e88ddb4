// Package validation maps product types to the metadata elements they may
// carry, including elements inherited from parent types.
package validation

import (
	"context"

	"github.com/noah-isme/filemgr/internal/models"
	appErrors "github.com/noah-isme/filemgr/pkg/errors"
)

// Layer is the element schema consulted by the catalog.
type Layer interface {
	AddElement(ctx context.Context, elem *models.Element) error
	ModifyElement(ctx context.Context, elem *models.Element) error
	RemoveElement(ctx context.Context, elem *models.Element) error
	AddElementToProductType(ctx context.Context, typ *models.ProductType, elem *models.Element) error
	RemoveElementFromProductType(ctx context.Context, typ *models.ProductType, elem *models.Element) error
	AddParentForProductType(ctx context.Context, typ *models.ProductType, parentID string) error
	RemoveParentForProductType(ctx context.Context, typ *models.ProductType, parentID string) error
	// GetParent returns "" when typ has no parent.
	GetParent(ctx context.Context, typ *models.ProductType) (string, error)
	// GetElements returns typ's elements; unless direct, elements of every
	// ancestor follow, nearest first, without de-duplication.
	GetElements(ctx context.Context, typ *models.ProductType, direct bool) ([]models.Element, error)
	ListElements(ctx context.Context) ([]models.Element, error)
	// GetElementByID and GetElementByName fail with an ErrNotFound-coded
	// error when nothing matches.
	GetElementByID(ctx context.Context, id string) (*models.Element, error)
	GetElementByName(ctx context.Context, name string) (*models.Element, error)
}

type hierarchy interface {
	directElements(ctx context.Context, typeID string) ([]models.Element, error)
	parentOf(ctx context.Context, typeID string) (string, error)
}

// collectElements walks typeID and its ancestors. A type seen twice means the
// parent chain loops and the walk fails instead of spinning.
func collectElements(ctx context.Context, h hierarchy, typeID string, direct bool) ([]models.Element, error) {
	elems, err := h.directElements(ctx, typeID)
	if err != nil {
		return nil, err
	}
	if direct {
		return elems, nil
	}

	visited := map[string]struct{}{typeID: {}}
	current := typeID
	for {
		parent, err := h.parentOf(ctx, current)
		if err != nil {
			return nil, err
		}
		if parent == "" {
			return elems, nil
		}
		if _, seen := visited[parent]; seen {
			return nil, appErrors.Clonef(appErrors.ErrValidationLayer, "cycle detected in product type hierarchy of %s at %s", typeID, parent)
		}
		visited[parent] = struct{}{}

		parentElems, err := h.directElements(ctx, parent)
		if err != nil {
			return nil, err
		}
		elems = append(elems, parentElems...)
		current = parent
	}
}

func requireType(typ *models.ProductType) error {
	if typ == nil || typ.ID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "product type id required")
	}
	return nil
}

func requireElement(elem *models.Element) error {
	if elem == nil || elem.ID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "element id required")
	}
	return nil
}

func elementNotFound(key, value string) error {
	return appErrors.Clonef(appErrors.ErrNotFound, "element with %s %q not found", key, value)
}
