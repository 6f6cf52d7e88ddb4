package catalog

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/filemgr/internal/models"
	"github.com/noah-isme/filemgr/internal/query"
	"github.com/noah-isme/filemgr/internal/validation"
	appErrors "github.com/noah-isme/filemgr/pkg/errors"
)

var genericFile = &models.ProductType{ID: "urn:oodt:GenericFile", Name: "GenericFile"}

var productCols = []string{"product_id", "product_name", "product_type_id", "product_structure", "product_transfer_status", "product_datetime"}

// newTestLayer seeds Filename and FileSize on GenericFile.
func newTestLayer(t *testing.T) validation.Layer {
	t.Helper()
	ctx := context.Background()
	layer, err := validation.NewXMLLayer(t.TempDir(), nil)
	require.NoError(t, err)
	for _, elem := range []*models.Element{
		{ID: "e1", Name: "Filename"},
		{ID: "e2", Name: "FileSize"},
	} {
		require.NoError(t, layer.AddElement(ctx, elem))
		require.NoError(t, layer.AddElementToProductType(ctx, genericFile, elem))
	}
	return layer
}

func newCatalogMock(t *testing.T, opts Options, options ...Option) (*Catalog, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	cat := New(sqlx.NewDb(db, "sqlmock"), newTestLayer(t), opts, options...)
	return cat, mock, func() { db.Close() }
}

func TestPagedQueryReturnsBlankPageWithoutDataQuery(t *testing.T) {
	cat, mock, cleanup := newCatalogMock(t, Options{PageSize: 20})
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT p.product_id) FROM GenericFile_metadata p")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectCommit()

	page, err := cat.PagedQuery(context.Background(), query.New(), genericFile, 1)
	require.NoError(t, err)
	assert.True(t, page.IsBlank())
	assert.Equal(t, 0, page.PageSize)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPagedQueryFetchesPageAndHydrates(t *testing.T) {
	cat, mock, cleanup := newCatalogMock(t, Options{PageSize: 20})
	defer cleanup()

	q := query.New(query.Term{Element: "Filename", Value: "a.txt", Exact: true})
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT p.product_id) FROM GenericFile_metadata p WHERE p.element_id = ? AND p.metadata_value = ?")).
		WithArgs("e1", "a.txt").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT p.product_id FROM GenericFile_metadata p WHERE p.element_id = ? AND p.metadata_value = ? ORDER BY p.product_id DESC LIMIT ? OFFSET ?")).
		WithArgs("e1", "a.txt", 20, 20).
		WillReturnRows(sqlmock.NewRows([]string{"product_id"}).AddRow("p-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT product_id, product_name, product_type_id, product_structure, product_transfer_status, product_datetime FROM products WHERE product_id = ?")).
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows(productCols).AddRow("p-1", "a.txt", genericFile.ID, "FLAT", "DONE", now))
	mock.ExpectCommit()

	page, err := cat.PagedQuery(context.Background(), q, genericFile, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, page.PageNum)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 21, page.NumOfHits)
	assert.True(t, page.IsLastPage())
	require.Len(t, page.Products, 1)
	assert.Equal(t, "GenericFile", page.Products[0].Type.Name)
	assert.Equal(t, models.TransferDone, page.Products[0].TransferStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPagedQueryRollsBackAndWrapsFailures(t *testing.T) {
	cat, mock, cleanup := newCatalogMock(t, Options{})
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT p.product_id)")).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := cat.PagedQuery(context.Background(), query.New(), genericFile, 1)
	require.ErrorIs(t, err, appErrors.ErrCatalog)
	assert.Contains(t, err.Error(), "GenericFile")
	assert.Contains(t, err.Error(), "page 1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryUnknownElementFailsUnlessLenient(t *testing.T) {
	cat, _, cleanup := newCatalogMock(t, Options{})
	defer cleanup()

	q := query.New(query.Term{Element: "Colour", Value: "red"})
	_, err := cat.Query(context.Background(), q, genericFile)
	require.ErrorIs(t, err, appErrors.ErrNotFound)

	lenient, mock, cleanupLenient := newCatalogMock(t, Options{Lenient: true})
	defer cleanupLenient()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT p.product_id FROM GenericFile_metadata p WHERE p.element_id = ?")).
		WithArgs("Colour", "%red%").
		WillReturnRows(sqlmock.NewRows([]string{"product_id"}).AddRow("p-2").AddRow("p-1"))

	ids, err := lenient.Query(context.Background(), q, genericFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"p-2", "p-1"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddProductAssignsDefaults(t *testing.T) {
	cat, mock, cleanup := newCatalogMock(t, Options{})
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products (product_id, product_name, product_type_id, product_structure, product_transfer_status, product_datetime) VALUES (?, ?, ?, ?, ?, ?)")).
		WithArgs(sqlmock.AnyArg(), "a.txt", genericFile.ID, "FLAT", "NONE", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	p := &models.Product{Name: "a.txt", Type: genericFile}
	require.NoError(t, cat.AddProduct(context.Background(), p))
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, models.StructureFlat, p.Structure)
	assert.False(t, p.ReceivedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddProductRequiresType(t *testing.T) {
	cat, _, cleanup := newCatalogMock(t, Options{})
	defer cleanup()

	err := cat.AddProduct(context.Background(), &models.Product{Name: "a.txt"})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestModifyProductNotFound(t *testing.T) {
	cat, mock, cleanup := newCatalogMock(t, Options{})
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET product_transfer_status = ? WHERE product_id = ?")).
		WithArgs("DONE", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := cat.SetProductTransferStatus(context.Background(), &models.Product{ID: "missing", TransferStatus: models.TransferDone})
	require.ErrorIs(t, err, appErrors.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveProductDeletesAllRows(t *testing.T) {
	cat, mock, cleanup := newCatalogMock(t, Options{})
	defer cleanup()

	mock.ExpectBegin()
	for _, table := range []string{"GenericFile_metadata", "GenericFile_reference", "products"} {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM " + table + " WHERE product_id = ?")).
			WithArgs("p-1").WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, cat.RemoveProduct(context.Background(), &models.Product{ID: "p-1", Type: genericFile}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveProductRollsBackOnFailure(t *testing.T) {
	cat, mock, cleanup := newCatalogMock(t, Options{})
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM GenericFile_metadata")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM GenericFile_reference")).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := cat.RemoveProduct(context.Background(), &models.Product{ID: "p-1", Type: genericFile})
	require.ErrorIs(t, err, appErrors.ErrCatalog)
	assert.Contains(t, err.Error(), "p-1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddMetadataOrderedSkipsUnknownKeys(t *testing.T) {
	cat, mock, cleanup := newCatalogMock(t, Options{OrderedValues: true})
	defer cleanup()

	m := models.NewMetadata()
	m.Add("FileSize", "10")
	m.Add("Colour", "red")
	m.Add("Filename", "a.txt", "b.txt")

	insert := regexp.QuoteMeta("INSERT INTO GenericFile_metadata (product_id, element_id, metadata_value, metadata_order) VALUES (?, ?, ?, ?)")
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(metadata_order) + 1, 0) FROM GenericFile_metadata WHERE product_id = ?")).
		WithArgs("p-1").WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(3))
	mock.ExpectExec(insert).WithArgs("p-1", "e2", "10", 3).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insert).WithArgs("p-1", "e1", "a.txt", 4).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insert).WithArgs("p-1", "e1", "b.txt", 5).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, cat.AddMetadata(context.Background(), m, &models.Product{ID: "p-1", Type: genericFile}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddMetadataRequiresProductID(t *testing.T) {
	cat, _, cleanup := newCatalogMock(t, Options{})
	defer cleanup()

	m := models.NewMetadata()
	m.Add("Filename", "a.txt")
	err := cat.AddMetadata(context.Background(), m, &models.Product{Type: genericFile})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestGetReducedMetadataFiltersElements(t *testing.T) {
	cat, mock, cleanup := newCatalogMock(t, Options{})
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT element_id, metadata_value FROM GenericFile_metadata WHERE product_id = ? AND element_id IN (?)")).
		WithArgs("p-1", "e1").
		WillReturnRows(sqlmock.NewRows([]string{"element_id", "metadata_value"}).AddRow("e1", "a.txt"))

	m, err := cat.GetReducedMetadata(context.Background(), &models.Product{ID: "p-1", Type: genericFile}, []string{"Filename", "Colour"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Filename"}, m.Keys())
	assert.Equal(t, []string{"a.txt"}, m.Values("Filename"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProductByIDMissingReturnsNil(t *testing.T) {
	cat, mock, cleanup := newCatalogMock(t, Options{})
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE product_id = ?")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(productCols))

	p, err := cat.GetProductByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, p)
	require.NoError(t, mock.ExpectationsWereMet())
}

type stubTypes map[string]*models.ProductType

func (s stubTypes) GetByID(ctx context.Context, id string) (*models.ProductType, error) {
	if typ, ok := s[id]; ok {
		return typ, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "product type not found")
}

func TestGetProductsHydratesTypes(t *testing.T) {
	cat, mock, cleanup := newCatalogMock(t, Options{}, WithTypeLookup(stubTypes{genericFile.ID: genericFile}))
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE product_type_id = ? ORDER BY product_datetime DESC LIMIT ?")).
		WithArgs(genericFile.ID, 2).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow("p-2", "b.txt", genericFile.ID, "FLAT", "NONE", now).
			AddRow("p-1", "a.txt", genericFile.ID, "FLAT", "NONE", now.Add(-time.Minute)))

	products, err := cat.GetTopNProducts(context.Background(), 2, genericFile)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Same(t, genericFile, products[0].Type)
	assert.Same(t, products[0].Type, products[1].Type)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMappedCatalogUsesMappedTables(t *testing.T) {
	cat, mock, cleanup := newCatalogMock(t, Options{}, WithTables(NewMappedTables(map[string]string{"genericfile": "gf"})))
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT p.product_id) FROM gf_metadata p")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := cat.NumHits(context.Background(), nil, genericFile)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
