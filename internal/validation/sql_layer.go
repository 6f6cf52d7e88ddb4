package validation

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/filemgr/internal/models"
	"github.com/noah-isme/filemgr/pkg/database"
	appErrors "github.com/noah-isme/filemgr/pkg/errors"
)

const elementColumns = "element_id, element_name, dc_element, element_description"

// SQLLayer stores the element schema in the elements,
// product_type_element_map and sub_to_super_map tables.
type SQLLayer struct {
	db     *sqlx.DB
	tx     *database.TxRunner
	logger *zap.Logger
}

// NewSQLLayer constructs a relational validation layer.
func NewSQLLayer(db *sqlx.DB, logger *zap.Logger) *SQLLayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLLayer{db: db, tx: database.NewTxRunner(db, logger), logger: logger}
}

// AddElement inserts elem, generating an id when empty.
func (l *SQLLayer) AddElement(ctx context.Context, elem *models.Element) error {
	if elem == nil || elem.Name == "" {
		return appErrors.Clone(appErrors.ErrValidation, "element name required")
	}
	if elem.ID == "" {
		elem.ID = uuid.NewString()
	}
	err := l.tx.WithTx(ctx, nil, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO elements (`+elementColumns+`) VALUES (?, ?, ?, ?)`),
			elem.ID, elem.Name, elem.DCElement, elem.Description)
		return err
	})
	if err != nil {
		return appErrors.WrapAs(appErrors.ErrValidationLayer, err, "add element %s", elem.Name)
	}
	l.logger.Sugar().Debugw("element added", "element_id", elem.ID, "element_name", elem.Name)
	return nil
}

// ModifyElement updates elem's name, DC tag and description.
func (l *SQLLayer) ModifyElement(ctx context.Context, elem *models.Element) error {
	if err := requireElement(elem); err != nil {
		return err
	}
	var affected int64
	err := l.tx.WithTx(ctx, nil, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE elements SET element_name = ?, dc_element = ?, element_description = ? WHERE element_id = ?`),
			elem.Name, elem.DCElement, elem.Description, elem.ID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return appErrors.WrapAs(appErrors.ErrValidationLayer, err, "modify element %s", elem.ID)
	}
	if affected == 0 {
		return elementNotFound("id", elem.ID)
	}
	return nil
}

// RemoveElement deletes elem and its product type mappings.
func (l *SQLLayer) RemoveElement(ctx context.Context, elem *models.Element) error {
	if err := requireElement(elem); err != nil {
		return err
	}
	err := l.tx.WithTx(ctx, nil, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM product_type_element_map WHERE element_id = ?`), elem.ID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM elements WHERE element_id = ?`), elem.ID)
		return err
	})
	if err != nil {
		return appErrors.WrapAs(appErrors.ErrValidationLayer, err, "remove element %s", elem.ID)
	}
	return nil
}

// AddElementToProductType maps elem onto typ.
func (l *SQLLayer) AddElementToProductType(ctx context.Context, typ *models.ProductType, elem *models.Element) error {
	if err := requireType(typ); err != nil {
		return err
	}
	if err := requireElement(elem); err != nil {
		return err
	}
	err := l.tx.WithTx(ctx, nil, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO product_type_element_map (product_type_id, element_id) VALUES (?, ?)`), typ.ID, elem.ID)
		return err
	})
	if err != nil {
		return appErrors.WrapAs(appErrors.ErrValidationLayer, err, "add element %s to product type %s", elem.ID, typ.ID)
	}
	return nil
}

// RemoveElementFromProductType unmaps elem from typ.
func (l *SQLLayer) RemoveElementFromProductType(ctx context.Context, typ *models.ProductType, elem *models.Element) error {
	if err := requireType(typ); err != nil {
		return err
	}
	if err := requireElement(elem); err != nil {
		return err
	}
	err := l.tx.WithTx(ctx, nil, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM product_type_element_map WHERE product_type_id = ? AND element_id = ?`), typ.ID, elem.ID)
		return err
	})
	if err != nil {
		return appErrors.WrapAs(appErrors.ErrValidationLayer, err, "remove element %s from product type %s", elem.ID, typ.ID)
	}
	return nil
}

// AddParentForProductType sets typ's single parent, replacing any previous one.
func (l *SQLLayer) AddParentForProductType(ctx context.Context, typ *models.ProductType, parentID string) error {
	if err := requireType(typ); err != nil {
		return err
	}
	if parentID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "parent product type id required")
	}
	err := l.tx.WithTx(ctx, nil, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM sub_to_super_map WHERE product_type_id = ?`), typ.ID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO sub_to_super_map (product_type_id, parent_id) VALUES (?, ?)`), typ.ID, parentID)
		return err
	})
	if err != nil {
		return appErrors.WrapAs(appErrors.ErrValidationLayer, err, "add parent %s for product type %s", parentID, typ.ID)
	}
	return nil
}

// RemoveParentForProductType drops the typ -> parentID edge.
func (l *SQLLayer) RemoveParentForProductType(ctx context.Context, typ *models.ProductType, parentID string) error {
	if err := requireType(typ); err != nil {
		return err
	}
	err := l.tx.WithTx(ctx, nil, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM sub_to_super_map WHERE product_type_id = ? AND parent_id = ?`), typ.ID, parentID)
		return err
	})
	if err != nil {
		return appErrors.WrapAs(appErrors.ErrValidationLayer, err, "remove parent %s for product type %s", parentID, typ.ID)
	}
	return nil
}

// GetParent returns typ's parent id or "".
func (l *SQLLayer) GetParent(ctx context.Context, typ *models.ProductType) (string, error) {
	if err := requireType(typ); err != nil {
		return "", err
	}
	parent, err := sqlHierarchy{q: l.db}.parentOf(ctx, typ.ID)
	if err != nil {
		return "", appErrors.WrapAs(appErrors.ErrValidationLayer, err, "get parent for product type %s", typ.ID)
	}
	return parent, nil
}

// GetElements resolves typ's elements in one read transaction.
func (l *SQLLayer) GetElements(ctx context.Context, typ *models.ProductType, direct bool) ([]models.Element, error) {
	if err := requireType(typ); err != nil {
		return nil, err
	}
	var elems []models.Element
	err := l.tx.ReadOnly(ctx, func(tx *sqlx.Tx) error {
		var err error
		elems, err = collectElements(ctx, sqlHierarchy{q: tx}, typ.ID, direct)
		return err
	})
	if err != nil {
		if errors.Is(err, appErrors.ErrValidationLayer) {
			return nil, err
		}
		return nil, appErrors.WrapAs(appErrors.ErrValidationLayer, err, "get elements for product type %s", typ.ID)
	}
	return elems, nil
}

// ListElements returns every known element by name.
func (l *SQLLayer) ListElements(ctx context.Context) ([]models.Element, error) {
	var elems []models.Element
	if err := l.db.SelectContext(ctx, &elems, `SELECT `+elementColumns+` FROM elements ORDER BY element_name`); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidationLayer, err, "list elements")
	}
	return elems, nil
}

// GetElementByID looks up an element by id.
func (l *SQLLayer) GetElementByID(ctx context.Context, id string) (*models.Element, error) {
	return l.getElement(ctx, "element_id", "id", id)
}

// GetElementByName looks up an element by name.
func (l *SQLLayer) GetElementByName(ctx context.Context, name string) (*models.Element, error) {
	return l.getElement(ctx, "element_name", "name", name)
}

func (l *SQLLayer) getElement(ctx context.Context, column, label, value string) (*models.Element, error) {
	var elem models.Element
	query := l.db.Rebind(`SELECT ` + elementColumns + ` FROM elements WHERE ` + column + ` = ?`)
	if err := l.db.GetContext(ctx, &elem, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, elementNotFound(label, value)
		}
		return nil, appErrors.WrapAs(appErrors.ErrValidationLayer, err, "get element by %s %s", label, value)
	}
	return &elem, nil
}

type sqlHierarchy struct {
	q sqlx.ExtContext
}

func (h sqlHierarchy) directElements(ctx context.Context, typeID string) ([]models.Element, error) {
	var elems []models.Element
	query := h.q.Rebind(`SELECT e.element_id, e.element_name, e.dc_element, e.element_description
FROM elements e INNER JOIN product_type_element_map m ON m.element_id = e.element_id
WHERE m.product_type_id = ? ORDER BY e.element_name`)
	if err := sqlx.SelectContext(ctx, h.q, &elems, query, typeID); err != nil {
		return nil, err
	}
	return elems, nil
}

func (h sqlHierarchy) parentOf(ctx context.Context, typeID string) (string, error) {
	var parent string
	query := h.q.Rebind(`SELECT parent_id FROM sub_to_super_map WHERE product_type_id = ?`)
	if err := sqlx.GetContext(ctx, h.q, &parent, query, typeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return parent, nil
}
