package catalog

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/filemgr/internal/models"
	"github.com/noah-isme/filemgr/internal/query"
	appErrors "github.com/noah-isme/filemgr/pkg/errors"
	"github.com/noah-isme/filemgr/pkg/pagination"
)

// Query returns the ids of every product of typ matching q, highest id
// first.
func (c *Catalog) Query(ctx context.Context, q *query.Query, typ *models.ProductType) ([]string, error) {
	table, _, err := c.tablesFor(typ)
	if err != nil {
		return nil, err
	}
	compiled, err := compile(table, q, c.resolver(ctx))
	if err != nil {
		return nil, wrap(err, "compile query %s for product type %s", q, typ.Name)
	}
	ids := make([]string, 0)
	if err := c.db.SelectContext(ctx, &ids, c.db.Rebind(compiled.idsSQL()), compiled.args...); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrCatalog, err, "query %s for product type %s", q, typ.Name)
	}
	return ids, nil
}

// NumHits counts the products of typ matching q.
func (c *Catalog) NumHits(ctx context.Context, q *query.Query, typ *models.ProductType) (int, error) {
	table, _, err := c.tablesFor(typ)
	if err != nil {
		return 0, err
	}
	compiled, err := compile(table, q, c.resolver(ctx))
	if err != nil {
		return 0, wrap(err, "compile query %s for product type %s", q, typ.Name)
	}
	var n int
	if err := c.db.GetContext(ctx, &n, c.db.Rebind(compiled.countSQL()), compiled.args...); err != nil {
		return 0, appErrors.WrapAs(appErrors.ErrCatalog, err, "count hits of %s for product type %s", q, typ.Name)
	}
	return n, nil
}

// PagedQuery returns page pageNum of the products of typ matching q. When
// nothing matches the blank page is returned without running the data
// query. Count and data run in one read-only transaction but are not
// isolated from concurrent writers. The transaction holds the only
// connection the call uses; every product on the page takes typ.
func (c *Catalog) PagedQuery(ctx context.Context, q *query.Query, typ *models.ProductType, pageNum int) (*models.ProductPage, error) {
	table, _, err := c.tablesFor(typ)
	if err != nil {
		return nil, err
	}
	compiled, err := compile(table, q, c.resolver(ctx))
	if err != nil {
		return nil, wrap(err, "compile query %s for product type %s", q, typ.Name)
	}

	pageSize := c.opts.PageSize
	var page *models.ProductPage
	err = c.tx.ReadOnly(ctx, func(tx *sqlx.Tx) error {
		var hits int
		if err := tx.GetContext(ctx, &hits, tx.Rebind(compiled.countSQL()), compiled.args...); err != nil {
			return err
		}
		totalPages := pagination.TotalPages(hits, pageSize)
		if totalPages == 0 {
			page = models.BlankPage()
			return nil
		}

		offset := pagination.Offset(pageNum, pageSize, hits)
		args := append(append([]interface{}{}, compiled.args...), pageSize, offset)
		ids := make([]string, 0, pageSize)
		if err := tx.SelectContext(ctx, &ids, tx.Rebind(compiled.pageSQL()), args...); err != nil {
			return err
		}

		products := make([]*models.Product, 0, len(ids))
		for _, id := range ids {
			p, _, err := readProduct(ctx, tx, "product_id", id)
			if err != nil {
				return err
			}
			if p == nil {
				c.logger.Sugar().Warnw("metadata references missing product", "product_id", id, "product_type", typ.Name)
				continue
			}
			p.Type = typ
			products = append(products, p)
		}

		page = &models.ProductPage{
			PageNum:    pageNum,
			TotalPages: totalPages,
			PageSize:   pageSize,
			NumOfHits:  hits,
			Products:   products,
		}
		return nil
	})
	if err != nil {
		return nil, wrap(err, "paged query %s for product type %s page %d", q, typ.Name, pageNum)
	}
	return page, nil
}

// GetFirstPage returns page 1 of every product of typ.
func (c *Catalog) GetFirstPage(ctx context.Context, typ *models.ProductType) (*models.ProductPage, error) {
	return c.PagedQuery(ctx, query.New(), typ, 1)
}

// GetLastPage returns the final page of every product of typ.
func (c *Catalog) GetLastPage(ctx context.Context, typ *models.ProductType) (*models.ProductPage, error) {
	first, err := c.GetFirstPage(ctx, typ)
	if err != nil {
		return nil, err
	}
	if first.IsBlank() || first.IsLastPage() {
		return first, nil
	}
	return c.PagedQuery(ctx, query.New(), typ, first.TotalPages)
}

// GetNextPage returns the page after current. A nil current yields the first
// page and the last page is returned unchanged.
func (c *Catalog) GetNextPage(ctx context.Context, typ *models.ProductType, current *models.ProductPage) (*models.ProductPage, error) {
	if current == nil {
		return c.GetFirstPage(ctx, typ)
	}
	if current.IsLastPage() {
		return current, nil
	}
	return c.PagedQuery(ctx, query.New(), typ, current.PageNum+1)
}

// GetPrevPage returns the page before current. A nil current yields the
// first page and the first page is returned unchanged.
func (c *Catalog) GetPrevPage(ctx context.Context, typ *models.ProductType, current *models.ProductPage) (*models.ProductPage, error) {
	if current == nil {
		return c.GetFirstPage(ctx, typ)
	}
	if current.PageNum <= 1 {
		return current, nil
	}
	return c.PagedQuery(ctx, query.New(), typ, current.PageNum-1)
}
