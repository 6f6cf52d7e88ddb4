// Package catalog persists products, their references and metadata in a
// relational store and serves paged queries over per-type metadata tables.
package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/filemgr/internal/models"
	"github.com/noah-isme/filemgr/internal/validation"
	"github.com/noah-isme/filemgr/pkg/config"
	"github.com/noah-isme/filemgr/pkg/database"
	appErrors "github.com/noah-isme/filemgr/pkg/errors"
)

// DefaultPageSize applies when Options.PageSize is not positive.
const DefaultPageSize = 20

// Options tunes catalog behaviour.
type Options struct {
	PageSize int
	// OrderedValues records an ordinal per metadata value and reads values
	// back in that order.
	OrderedValues bool
	// Lenient stores metadata keys unknown to the validation layer under
	// the key itself instead of dropping them.
	Lenient bool
}

// TypeLookup resolves product type ids while hydrating products.
type TypeLookup interface {
	GetByID(ctx context.Context, id string) (*models.ProductType, error)
}

// storedTypes reads the product_types table created by Migrate. It is the
// lookup used when no WithTypeLookup option is given.
type storedTypes struct {
	db *sqlx.DB
}

func (s storedTypes) GetByID(ctx context.Context, id string) (*models.ProductType, error) {
	var typ models.ProductType
	stmt := s.db.Rebind(`SELECT product_type_id, product_type_name, product_type_description, product_type_repository_path, product_type_versioner FROM product_types WHERE product_type_id = ?`)
	if err := s.db.GetContext(ctx, &typ, stmt, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "product type %s not found", id)
		}
		return nil, err
	}
	return &typ, nil
}

// Catalog is the query and persistence engine. Variants differ only in
// their TableResolver, ValueEncoder and Options.
type Catalog struct {
	db     *sqlx.DB
	tx     *database.TxRunner
	layer  validation.Layer
	tables TableResolver
	values ValueEncoder
	types  TypeLookup
	opts   Options
	logger *zap.Logger
}

// Option customises a Catalog.
type Option func(*Catalog)

// WithTables overrides the table resolver.
func WithTables(r TableResolver) Option {
	return func(c *Catalog) { c.tables = r }
}

// WithValueEncoder overrides how element ids are bound.
func WithValueEncoder(e ValueEncoder) Option {
	return func(c *Catalog) { c.values = e }
}

// WithTypeLookup hydrates products with full product types.
func WithTypeLookup(l TypeLookup) Option {
	return func(c *Catalog) { c.types = l }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.logger = l
		}
	}
}

// New constructs a catalog using <Name>_metadata tables and string element
// ids unless overridden.
func New(db *sqlx.DB, layer validation.Layer, opts Options, options ...Option) *Catalog {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	c := &Catalog{
		db:     db,
		layer:  layer,
		tables: DefaultTables{},
		values: QuotedValues{},
		opts:   opts,
		logger: zap.NewNop(),
	}
	for _, opt := range options {
		opt(c)
	}
	if c.types == nil {
		c.types = storedTypes{db: db}
	}
	c.tx = database.NewTxRunner(db, c.logger)
	return c
}

// NewMapped constructs a catalog whose tables come from the type map in
// mapFile.
func NewMapped(db *sqlx.DB, layer validation.Layer, mapFile string, opts Options, options ...Option) (*Catalog, error) {
	tables, err := LoadMappedTables(mapFile)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrCatalog, err, "load type map %s", mapFile)
	}
	return New(db, layer, opts, append([]Option{WithTables(tables)}, options...)...), nil
}

// FromConfig builds the variant selected by cfg.
func FromConfig(db *sqlx.DB, layer validation.Layer, cfg config.CatalogConfig, options ...Option) (*Catalog, error) {
	opts := Options{PageSize: cfg.PageSize, OrderedValues: cfg.OrderedValues, Lenient: cfg.Lenient}
	options = append([]Option{WithValueEncoder(EncoderFor(cfg.QuoteFields))}, options...)
	if cfg.Variant == config.CatalogVariantMapped {
		return NewMapped(db, layer, cfg.TypeMapFile, opts, options...)
	}
	return New(db, layer, opts, options...), nil
}

// PageSize returns the configured page length.
func (c *Catalog) PageSize() int {
	return c.opts.PageSize
}

// Layer exposes the validation layer backing element resolution.
func (c *Catalog) Layer() validation.Layer {
	return c.layer
}

// tablesFor resolves both tables for typ.
func (c *Catalog) tablesFor(typ *models.ProductType) (metadata, reference string, err error) {
	if typ == nil {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "product type required")
	}
	if metadata, err = c.tables.MetadataTable(typ); err != nil {
		return "", "", appErrors.WrapAs(appErrors.ErrCatalog, err, "resolve metadata table for %s", typ.Name)
	}
	if reference, err = c.tables.ReferenceTable(typ); err != nil {
		return "", "", appErrors.WrapAs(appErrors.ErrCatalog, err, "resolve reference table for %s", typ.Name)
	}
	return metadata, reference, nil
}

// resolver maps criterion element names to bound element ids.
func (c *Catalog) resolver(ctx context.Context) elementResolver {
	return func(name string) (interface{}, error) {
		id := name
		elem, err := c.layer.GetElementByName(ctx, name)
		switch {
		case err == nil:
			id = elem.ID
		case c.opts.Lenient && errors.Is(err, appErrors.ErrNotFound):
		default:
			return nil, err
		}
		return c.values.ElementID(id)
	}
}

// wrap converts err into an ErrCatalog unless it already carries a
// catalog-relevant kind.
func wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	for _, kind := range []*appErrors.Error{appErrors.ErrNotFound, appErrors.ErrValidation, appErrors.ErrValidationLayer, appErrors.ErrCatalog} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return appErrors.WrapAs(appErrors.ErrCatalog, err, format, args...)
}
