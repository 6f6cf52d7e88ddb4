package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/filemgr/internal/models"
	appErrors "github.com/noah-isme/filemgr/pkg/errors"
)

const productTypeColumns = "product_type_id, product_type_name, product_type_description, product_type_repository_path, product_type_versioner"

// ProductTypeRepository manages the product_types table.
type ProductTypeRepository struct {
	db *sqlx.DB
}

// NewProductTypeRepository constructs the repository.
func NewProductTypeRepository(db *sqlx.DB) *ProductTypeRepository {
	return &ProductTypeRepository{db: db}
}

// Create inserts typ, generating an id when empty.
func (r *ProductTypeRepository) Create(ctx context.Context, typ *models.ProductType) error {
	if typ.ID == "" {
		typ.ID = uuid.NewString()
	}
	const query = `INSERT INTO product_types (` + productTypeColumns + `)
VALUES (:product_type_id, :product_type_name, :product_type_description, :product_type_repository_path, :product_type_versioner)`
	if _, err := r.db.NamedExecContext(ctx, query, typ); err != nil {
		return fmt.Errorf("create product type: %w", err)
	}
	return nil
}

// Update rewrites the mutable attributes of typ.
func (r *ProductTypeRepository) Update(ctx context.Context, typ *models.ProductType) error {
	const query = `UPDATE product_types SET product_type_name = :product_type_name, product_type_description = :product_type_description,
product_type_repository_path = :product_type_repository_path, product_type_versioner = :product_type_versioner
WHERE product_type_id = :product_type_id`
	res, err := r.db.NamedExecContext(ctx, query, typ)
	if err != nil {
		return fmt.Errorf("update product type: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return appErrors.Clonef(appErrors.ErrNotFound, "product type %s not found", typ.ID)
	}
	return nil
}

// Delete removes the product type row.
func (r *ProductTypeRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM product_types WHERE product_type_id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete product type: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return appErrors.Clonef(appErrors.ErrNotFound, "product type %s not found", id)
	}
	return nil
}

// GetByID returns a product type or an ErrNotFound-coded error.
func (r *ProductTypeRepository) GetByID(ctx context.Context, id string) (*models.ProductType, error) {
	return r.get(ctx, "product_type_id", id)
}

// GetByName returns a product type or an ErrNotFound-coded error.
func (r *ProductTypeRepository) GetByName(ctx context.Context, name string) (*models.ProductType, error) {
	return r.get(ctx, "product_type_name", name)
}

func (r *ProductTypeRepository) get(ctx context.Context, column, value string) (*models.ProductType, error) {
	var typ models.ProductType
	query := r.db.Rebind(`SELECT ` + productTypeColumns + ` FROM product_types WHERE ` + column + ` = ?`)
	if err := r.db.GetContext(ctx, &typ, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "product type %s not found", value)
		}
		return nil, fmt.Errorf("get product type: %w", err)
	}
	return &typ, nil
}

// List returns all product types ordered by name.
func (r *ProductTypeRepository) List(ctx context.Context) ([]models.ProductType, error) {
	types := make([]models.ProductType, 0)
	if err := r.db.SelectContext(ctx, &types, `SELECT `+productTypeColumns+` FROM product_types ORDER BY product_type_name`); err != nil {
		return nil, fmt.Errorf("list product types: %w", err)
	}
	return types, nil
}
