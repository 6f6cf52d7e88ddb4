package catalog

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/filemgr/internal/models"
	appErrors "github.com/noah-isme/filemgr/pkg/errors"
)

// coreSchema is valid for both PostgreSQL and SQLite.
var coreSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
	product_id VARCHAR(64) PRIMARY KEY,
	product_name VARCHAR(255) NOT NULL,
	product_type_id VARCHAR(255) NOT NULL,
	product_structure VARCHAR(32) NOT NULL,
	product_transfer_status VARCHAR(32) NOT NULL,
	product_datetime TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_products_name ON products (product_name)`,
	`CREATE INDEX IF NOT EXISTS idx_products_type ON products (product_type_id)`,
	`CREATE TABLE IF NOT EXISTS product_types (
	product_type_id VARCHAR(255) PRIMARY KEY,
	product_type_name VARCHAR(255) NOT NULL UNIQUE,
	product_type_description TEXT NOT NULL DEFAULT '',
	product_type_repository_path TEXT NOT NULL DEFAULT '',
	product_type_versioner VARCHAR(255) NOT NULL DEFAULT ''
)`,
	`CREATE TABLE IF NOT EXISTS elements (
	element_id VARCHAR(255) PRIMARY KEY,
	element_name VARCHAR(255) NOT NULL UNIQUE,
	dc_element VARCHAR(255) NOT NULL DEFAULT '',
	element_description TEXT NOT NULL DEFAULT ''
)`,
	`CREATE TABLE IF NOT EXISTS product_type_element_map (
	product_type_id VARCHAR(255) NOT NULL,
	element_id VARCHAR(255) NOT NULL,
	PRIMARY KEY (product_type_id, element_id)
)`,
	`CREATE TABLE IF NOT EXISTS sub_to_super_map (
	product_type_id VARCHAR(255) PRIMARY KEY,
	parent_id VARCHAR(255) NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS export_jobs (
	id VARCHAR(64) PRIMARY KEY,
	params TEXT NOT NULL,
	status VARCHAR(32) NOT NULL,
	progress INTEGER NOT NULL DEFAULT 0,
	result_url TEXT,
	created_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	error_message TEXT
)`,
}

// Migrate creates the shared tables.
func (c *Catalog) Migrate(ctx context.Context) error {
	err := c.tx.WithTx(ctx, nil, func(tx *sqlx.Tx) error {
		for _, stmt := range coreSchema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return appErrors.WrapAs(appErrors.ErrCatalog, err, "migrate core schema")
	}
	return nil
}

// EnsureTypeTables creates the metadata and reference tables for typ.
func (c *Catalog) EnsureTypeTables(ctx context.Context, typ *models.ProductType) error {
	metadata, reference, err := c.tablesFor(typ)
	if err != nil {
		return err
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	product_id VARCHAR(64) NOT NULL,
	element_id VARCHAR(255) NOT NULL,
	metadata_value TEXT NOT NULL,
	metadata_order INTEGER NOT NULL DEFAULT 0
)`, metadata),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_product ON %s (product_id)`, metadata, metadata),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_element ON %s (element_id, metadata_value)`, metadata, metadata),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	product_id VARCHAR(64) NOT NULL,
	reference_index INTEGER NOT NULL,
	product_orig_reference TEXT NOT NULL,
	product_datastore_reference TEXT NOT NULL DEFAULT '',
	product_reference_filesize BIGINT NOT NULL DEFAULT 0,
	product_reference_mimetype VARCHAR(255) NOT NULL DEFAULT '',
	PRIMARY KEY (product_id, reference_index)
)`, reference),
	}
	err = c.tx.WithTx(ctx, nil, func(tx *sqlx.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return appErrors.WrapAs(appErrors.ErrCatalog, err, "create tables for product type %s", typ.Name)
	}
	return nil
}
