package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/filemgr/internal/models"
	appErrors "github.com/noah-isme/filemgr/pkg/errors"
)

const productColumns = "product_id, product_name, product_type_id, product_structure, product_transfer_status, product_datetime"

const referenceColumns = "product_orig_reference, product_datastore_reference, product_reference_filesize, product_reference_mimetype"

// AddProduct persists p's core attributes, assigning an id when empty.
// Metadata and references are added separately.
func (c *Catalog) AddProduct(ctx context.Context, p *models.Product) error {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "product name required")
	}
	if p.TypeID() == "" {
		return appErrors.Clonef(appErrors.ErrValidation, "product %s has no product type", p.Name)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Structure == "" {
		p.Structure = models.StructureFlat
	}
	if p.TransferStatus == "" {
		p.TransferStatus = models.TransferNone
	}
	if p.ReceivedAt.IsZero() {
		p.ReceivedAt = time.Now().UTC()
	}
	if !p.Structure.Valid() || !p.TransferStatus.Valid() {
		return appErrors.Clonef(appErrors.ErrValidation, "product %s has invalid structure or transfer status", p.Name)
	}

	err := c.tx.WithTx(ctx, nil, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?)`),
			p.ID, p.Name, p.Type.ID, string(p.Structure), string(p.TransferStatus), p.ReceivedAt)
		return err
	})
	if err != nil {
		return appErrors.WrapAs(appErrors.ErrCatalog, err, "add product %s", p.Name)
	}
	c.logger.Sugar().Debugw("product added", "product_id", p.ID, "product_name", p.Name, "product_type_id", p.Type.ID)
	return nil
}

// ModifyProduct updates p's name, type, structure and transfer status.
func (c *Catalog) ModifyProduct(ctx context.Context, p *models.Product) error {
	if p == nil || p.ID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "product id required")
	}
	return c.updateProduct(ctx, p.ID, "modify product",
		`UPDATE products SET product_name = ?, product_type_id = ?, product_structure = ?, product_transfer_status = ? WHERE product_id = ?`,
		p.Name, p.TypeID(), string(p.Structure), string(p.TransferStatus), p.ID)
}

// SetProductTransferStatus persists p.TransferStatus.
func (c *Catalog) SetProductTransferStatus(ctx context.Context, p *models.Product) error {
	if p == nil || p.ID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "product id required")
	}
	if !p.TransferStatus.Valid() {
		return appErrors.Clonef(appErrors.ErrValidation, "invalid transfer status %q", p.TransferStatus)
	}
	return c.updateProduct(ctx, p.ID, "set transfer status for product",
		`UPDATE products SET product_transfer_status = ? WHERE product_id = ?`,
		string(p.TransferStatus), p.ID)
}

func (c *Catalog) updateProduct(ctx context.Context, id, op, stmt string, args ...interface{}) error {
	var affected int64
	err := c.tx.WithTx(ctx, nil, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(stmt), args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return appErrors.WrapAs(appErrors.ErrCatalog, err, "%s %s", op, id)
	}
	if affected == 0 {
		return appErrors.Clonef(appErrors.ErrNotFound, "product %s not found", id)
	}
	return nil
}

// RemoveProduct deletes p together with its metadata and reference rows.
func (c *Catalog) RemoveProduct(ctx context.Context, p *models.Product) error {
	if p == nil || p.ID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "product id required")
	}
	typ, err := c.fullType(ctx, p.Type)
	if err != nil {
		return err
	}
	metadata, reference, err := c.tablesFor(typ)
	if err != nil {
		return err
	}
	err = c.tx.WithTx(ctx, nil, func(tx *sqlx.Tx) error {
		for _, table := range []string{metadata, reference, "products"} {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM `+table+` WHERE product_id = ?`), p.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return appErrors.WrapAs(appErrors.ErrCatalog, err, "remove product %s", p.ID)
	}
	c.logger.Sugar().Debugw("product removed", "product_id", p.ID)
	return nil
}

// AddProductReferences appends p.References after any stored ones.
func (c *Catalog) AddProductReferences(ctx context.Context, p *models.Product) error {
	if p == nil || p.ID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "product id required")
	}
	if len(p.References) == 0 {
		return nil
	}
	typ, err := c.fullType(ctx, p.Type)
	if err != nil {
		return err
	}
	_, reference, err := c.tablesFor(typ)
	if err != nil {
		return err
	}
	err = c.tx.WithTx(ctx, nil, func(tx *sqlx.Tx) error {
		var next int
		if err := tx.GetContext(ctx, &next, tx.Rebind(`SELECT COALESCE(MAX(reference_index) + 1, 0) FROM `+reference+` WHERE product_id = ?`), p.ID); err != nil {
			return err
		}
		stmt := tx.Rebind(`INSERT INTO ` + reference + ` (product_id, reference_index, ` + referenceColumns + `) VALUES (?, ?, ?, ?, ?, ?)`)
		for i, ref := range p.References {
			if _, err := tx.ExecContext(ctx, stmt, p.ID, next+i, ref.OrigReference, ref.DataStoreReference, ref.FileSize, ref.MimeType); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return appErrors.WrapAs(appErrors.ErrCatalog, err, "add references for product %s", p.ID)
	}
	return nil
}

// GetProductByID returns nil without error when no product has id.
func (c *Catalog) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	p, err := c.lookupProduct(ctx, c.db, "product_id", id)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrCatalog, err, "get product by id %s", id)
	}
	return p, nil
}

// GetProductByName returns the most recently received product called name,
// or nil when there is none.
func (c *Catalog) GetProductByName(ctx context.Context, name string) (*models.Product, error) {
	p, err := c.lookupProduct(ctx, c.db, "product_name", name)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrCatalog, err, "get product by name %s", name)
	}
	return p, nil
}

func (c *Catalog) lookupProduct(ctx context.Context, q sqlx.ExtContext, column, value string) (*models.Product, error) {
	p, typeID, err := readProduct(ctx, q, column, value)
	if err != nil || p == nil {
		return nil, err
	}
	p.Type = c.typeResolver(ctx)(typeID)
	return p, nil
}

// readProduct loads one products row through q without resolving its type,
// so it is safe to call with an open transaction.
func readProduct(ctx context.Context, q sqlx.ExtContext, column, value string) (*models.Product, string, error) {
	var row models.ProductRow
	stmt := q.Rebind(`SELECT ` + productColumns + ` FROM products WHERE ` + column + ` = ? ORDER BY product_datetime DESC LIMIT 1`)
	if err := sqlx.GetContext(ctx, q, &row, stmt, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", nil
		}
		return nil, "", err
	}
	return row.ToProduct(), row.TypeID, nil
}

// GetProductReferences returns p's references in insertion order.
func (c *Catalog) GetProductReferences(ctx context.Context, p *models.Product) ([]models.Reference, error) {
	if p == nil || p.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "product id required")
	}
	typ, err := c.fullType(ctx, p.Type)
	if err != nil {
		return nil, err
	}
	_, reference, err := c.tablesFor(typ)
	if err != nil {
		return nil, err
	}
	refs := make([]models.Reference, 0)
	stmt := c.db.Rebind(`SELECT ` + referenceColumns + ` FROM ` + reference + ` WHERE product_id = ? ORDER BY reference_index`)
	if err := c.db.SelectContext(ctx, &refs, stmt, p.ID); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrCatalog, err, "get references for product %s", p.ID)
	}
	return refs, nil
}

// GetProducts lists every product, newest first.
func (c *Catalog) GetProducts(ctx context.Context) ([]*models.Product, error) {
	return c.listProducts(ctx, "list products", `SELECT `+productColumns+` FROM products ORDER BY product_datetime DESC`)
}

// GetProductsByProductType lists products of typ, newest first.
func (c *Catalog) GetProductsByProductType(ctx context.Context, typ *models.ProductType) ([]*models.Product, error) {
	if typ == nil || typ.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "product type id required")
	}
	return c.listProducts(ctx, "list products of type "+typ.ID,
		`SELECT `+productColumns+` FROM products WHERE product_type_id = ? ORDER BY product_datetime DESC`, typ.ID)
}

// GetTopNProducts returns the n most recently received products, limited
// to typ when it is not nil.
func (c *Catalog) GetTopNProducts(ctx context.Context, n int, typ *models.ProductType) ([]*models.Product, error) {
	if n <= 0 {
		return []*models.Product{}, nil
	}
	if typ != nil && typ.ID != "" {
		return c.listProducts(ctx, "list top products of type "+typ.ID,
			`SELECT `+productColumns+` FROM products WHERE product_type_id = ? ORDER BY product_datetime DESC LIMIT ?`, typ.ID, n)
	}
	return c.listProducts(ctx, "list top products",
		`SELECT `+productColumns+` FROM products ORDER BY product_datetime DESC LIMIT ?`, n)
}

// GetNumProducts counts the products of typ.
func (c *Catalog) GetNumProducts(ctx context.Context, typ *models.ProductType) (int, error) {
	if typ == nil || typ.ID == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, "product type id required")
	}
	var n int
	if err := c.db.GetContext(ctx, &n, c.db.Rebind(`SELECT COUNT(*) FROM products WHERE product_type_id = ?`), typ.ID); err != nil {
		return 0, appErrors.WrapAs(appErrors.ErrCatalog, err, "count products of type %s", typ.ID)
	}
	return n, nil
}

func (c *Catalog) listProducts(ctx context.Context, op, stmt string, args ...interface{}) ([]*models.Product, error) {
	var rows []models.ProductRow
	if err := c.db.SelectContext(ctx, &rows, c.db.Rebind(stmt), args...); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrCatalog, err, "%s", op)
	}
	resolve := c.typeResolver(ctx)
	products := make([]*models.Product, 0, len(rows))
	for _, row := range rows {
		p := row.ToProduct()
		p.Type = resolve(row.TypeID)
		products = append(products, p)
	}
	return products, nil
}

// typeResolver memoises type lookups for one call. When the type is
// unknown, products carry a stub type holding only the id.
func (c *Catalog) typeResolver(ctx context.Context) func(id string) *models.ProductType {
	cache := make(map[string]*models.ProductType)
	return func(id string) *models.ProductType {
		if typ, ok := cache[id]; ok {
			return typ
		}
		typ := &models.ProductType{ID: id}
		if c.types != nil {
			found, err := c.types.GetByID(ctx, id)
			switch {
			case err == nil && found != nil:
				typ = found
			case err != nil && !errors.Is(err, appErrors.ErrNotFound):
				c.logger.Sugar().Warnw("product type lookup failed", "product_type_id", id, "error", err)
			}
		}
		cache[id] = typ
		return typ
	}
}

// fullType fills in the name of a type known only by id.
func (c *Catalog) fullType(ctx context.Context, typ *models.ProductType) (*models.ProductType, error) {
	if typ == nil || (typ.ID == "" && typ.Name == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "product type required")
	}
	if typ.Name != "" || c.types == nil {
		return typ, nil
	}
	found, err := c.types.GetByID(ctx, typ.ID)
	if err != nil {
		return nil, wrap(err, "resolve product type %s", typ.ID)
	}
	if found == nil {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "product type %s not found", typ.ID)
	}
	return found, nil
}
