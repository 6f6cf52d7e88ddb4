package catalog

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/filemgr/internal/models"
	appErrors "github.com/noah-isme/filemgr/pkg/errors"
)

type metadataRow struct {
	ElementID string `db:"element_id"`
	Value     string `db:"metadata_value"`
}

// AddMetadata stores every value of m against p. Keys are resolved against
// the elements p's type inherits; unknown keys are skipped with a warning
// unless the catalog is lenient.
func (c *Catalog) AddMetadata(ctx context.Context, m *models.Metadata, p *models.Product) error {
	if p == nil || p.ID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "product id required before adding metadata")
	}
	if m == nil || m.Len() == 0 {
		return nil
	}
	typ, err := c.fullType(ctx, p.Type)
	if err != nil {
		return err
	}
	table, _, err := c.tablesFor(typ)
	if err != nil {
		return err
	}
	byName, _, err := c.elementIndex(ctx, typ)
	if err != nil {
		return err
	}

	type pending struct {
		id     interface{}
		values []string
	}
	rows := make([]pending, 0, m.Len())
	for _, key := range m.Keys() {
		elementID, ok := byName[key]
		if !ok {
			if !c.opts.Lenient {
				c.logger.Sugar().Warnw("skipping metadata key not defined for product type",
					"product_id", p.ID, "product_type", typ.Name, "key", key)
				continue
			}
			elementID = key
		}
		id, err := c.values.ElementID(elementID)
		if err != nil {
			return appErrors.WrapAs(appErrors.ErrCatalog, err, "add metadata %s for product %s", key, p.ID)
		}
		rows = append(rows, pending{id: id, values: m.Values(key)})
	}
	if len(rows) == 0 {
		return nil
	}

	err = c.tx.WithTx(ctx, nil, func(tx *sqlx.Tx) error {
		if !c.opts.OrderedValues {
			stmt := tx.Rebind(`INSERT INTO ` + table + ` (product_id, element_id, metadata_value) VALUES (?, ?, ?)`)
			for _, r := range rows {
				for _, v := range r.values {
					if _, err := tx.ExecContext(ctx, stmt, p.ID, r.id, v); err != nil {
						return err
					}
				}
			}
			return nil
		}

		var ord int
		if err := tx.GetContext(ctx, &ord, tx.Rebind(`SELECT COALESCE(MAX(metadata_order) + 1, 0) FROM `+table+` WHERE product_id = ?`), p.ID); err != nil {
			return err
		}
		stmt := tx.Rebind(`INSERT INTO ` + table + ` (product_id, element_id, metadata_value, metadata_order) VALUES (?, ?, ?, ?)`)
		for _, r := range rows {
			for _, v := range r.values {
				if _, err := tx.ExecContext(ctx, stmt, p.ID, r.id, v, ord); err != nil {
					return err
				}
				ord++
			}
		}
		return nil
	})
	if err != nil {
		return appErrors.WrapAs(appErrors.ErrCatalog, err, "add metadata for product %s", p.ID)
	}
	return nil
}

// RemoveMetadata deletes all stored values of every element named in m,
// regardless of the values m carries.
func (c *Catalog) RemoveMetadata(ctx context.Context, m *models.Metadata, p *models.Product) error {
	if p == nil || p.ID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "product id required")
	}
	if m == nil || m.Len() == 0 {
		return nil
	}
	typ, err := c.fullType(ctx, p.Type)
	if err != nil {
		return err
	}
	table, _, err := c.tablesFor(typ)
	if err != nil {
		return err
	}
	byName, _, err := c.elementIndex(ctx, typ)
	if err != nil {
		return err
	}

	err = c.tx.WithTx(ctx, nil, func(tx *sqlx.Tx) error {
		stmt := tx.Rebind(`DELETE FROM ` + table + ` WHERE product_id = ? AND element_id = ?`)
		for _, key := range m.Keys() {
			elementID, ok := byName[key]
			if !ok {
				if !c.opts.Lenient {
					continue
				}
				elementID = key
			}
			id, err := c.values.ElementID(elementID)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, stmt, p.ID, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return appErrors.WrapAs(appErrors.ErrCatalog, err, "remove metadata for product %s", p.ID)
	}
	return nil
}

// GetMetadata reads every value stored for p.
func (c *Catalog) GetMetadata(ctx context.Context, p *models.Product) (*models.Metadata, error) {
	return c.readMetadata(ctx, p, nil)
}

// GetReducedMetadata reads only the named elements. Names without stored
// values produce no key.
func (c *Catalog) GetReducedMetadata(ctx context.Context, p *models.Product, elementNames []string) (*models.Metadata, error) {
	if elementNames == nil {
		elementNames = []string{}
	}
	return c.readMetadata(ctx, p, elementNames)
}

// readMetadata loads p's metadata; a non-nil names slice restricts it.
func (c *Catalog) readMetadata(ctx context.Context, p *models.Product, names []string) (*models.Metadata, error) {
	if p == nil || p.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "product id required")
	}
	typ, err := c.fullType(ctx, p.Type)
	if err != nil {
		return nil, err
	}
	table, _, err := c.tablesFor(typ)
	if err != nil {
		return nil, err
	}
	byName, byID, err := c.elementIndex(ctx, typ)
	if err != nil {
		return nil, err
	}

	stmt := `SELECT element_id, metadata_value FROM ` + table + ` WHERE product_id = ?`
	args := []interface{}{p.ID}
	if names != nil {
		ids := make([]interface{}, 0, len(names))
		for _, name := range names {
			elementID, ok := byName[name]
			if !ok {
				if !c.opts.Lenient {
					continue
				}
				elementID = name
			}
			id, err := c.values.ElementID(elementID)
			if err != nil {
				return nil, appErrors.WrapAs(appErrors.ErrCatalog, err, "get metadata %s for product %s", name, p.ID)
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			return models.NewMetadata(), nil
		}
		stmt, args, err = sqlx.In(stmt+` AND element_id IN (?)`, p.ID, ids)
		if err != nil {
			return nil, appErrors.WrapAs(appErrors.ErrCatalog, err, "build metadata query for product %s", p.ID)
		}
	}
	if c.opts.OrderedValues {
		stmt += ` ORDER BY metadata_order`
	}

	var rows []metadataRow
	if err := c.db.SelectContext(ctx, &rows, c.db.Rebind(stmt), args...); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrCatalog, err, "get metadata for product %s", p.ID)
	}

	m := models.NewMetadata()
	for _, r := range rows {
		key, ok := byID[r.ElementID]
		if !ok {
			key = r.ElementID
		}
		m.Add(key, r.Value)
	}
	return m, nil
}

// elementIndex maps the inherited elements of typ by name and by id. On
// duplicate names the nearest definition wins.
func (c *Catalog) elementIndex(ctx context.Context, typ *models.ProductType) (map[string]string, map[string]string, error) {
	elems, err := c.layer.GetElements(ctx, typ, false)
	if err != nil {
		return nil, nil, err
	}
	byName := make(map[string]string, len(elems))
	byID := make(map[string]string, len(elems))
	for _, e := range elems {
		if _, seen := byName[e.Name]; !seen {
			byName[e.Name] = e.ID
		}
		if _, seen := byID[e.ID]; !seen {
			byID[e.ID] = e.Name
		}
	}
	return byName, byID, nil
}
