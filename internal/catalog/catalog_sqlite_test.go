//go:build cgo

package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/filemgr/internal/models"
	"github.com/noah-isme/filemgr/internal/query"
	"github.com/noah-isme/filemgr/internal/validation"
	"github.com/noah-isme/filemgr/pkg/database"
	appErrors "github.com/noah-isme/filemgr/pkg/errors"
)

type sqliteFixture struct {
	db    *sqlx.DB
	layer *validation.SQLLayer
	cat   *Catalog
}

// newSQLiteFixture migrates a fresh database and maps Filename, Name and
// FileSize onto GenericFile.
func newSQLiteFixture(t *testing.T, opts Options) *sqliteFixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewSQLite(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	layer := validation.NewSQLLayer(db, nil)
	cat := New(db, layer, opts)
	require.NoError(t, cat.Migrate(ctx))
	require.NoError(t, cat.EnsureTypeTables(ctx, genericFile))

	for _, elem := range []*models.Element{
		{ID: "urn:oodt:Filename", Name: "Filename"},
		{ID: "urn:oodt:Name", Name: "Name"},
		{ID: "urn:oodt:FileSize", Name: "FileSize"},
	} {
		require.NoError(t, layer.AddElement(ctx, elem))
		require.NoError(t, layer.AddElementToProductType(ctx, genericFile, elem))
	}
	return &sqliteFixture{db: db, layer: layer, cat: cat}
}

func (f *sqliteFixture) ingest(t *testing.T, id, name string, m *models.Metadata) *models.Product {
	t.Helper()
	p := &models.Product{ID: id, Name: name, Type: genericFile}
	require.NoError(t, f.cat.AddProduct(context.Background(), p))
	require.NoError(t, f.cat.AddMetadata(context.Background(), m, p))
	return p
}

func metadataOf(pairs ...string) *models.Metadata {
	m := models.NewMetadata()
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Add(pairs[i], pairs[i+1])
	}
	return m
}

func TestSQLitePagingOverTwentyOneProducts(t *testing.T) {
	f := newSQLiteFixture(t, Options{PageSize: 20})
	ctx := context.Background()
	for i := 0; i < 21; i++ {
		f.ingest(t, "", "test.txt", metadataOf("Filename", "test.txt"))
	}

	first, err := f.cat.GetFirstPage(ctx, genericFile)
	require.NoError(t, err)
	assert.Len(t, first.Products, 20)
	assert.Equal(t, 2, first.TotalPages)
	assert.True(t, first.IsFirstPage())
	assert.False(t, first.IsLastPage())

	second, err := f.cat.GetNextPage(ctx, genericFile, first)
	require.NoError(t, err)
	assert.Len(t, second.Products, 1)
	assert.Equal(t, 2, second.TotalPages)
	assert.True(t, second.IsLastPage())

	seen := make(map[string]struct{})
	for _, id := range append(first.ProductIDs(), second.ProductIDs()...) {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 21)

	again, err := f.cat.GetNextPage(ctx, genericFile, second)
	require.NoError(t, err)
	assert.Same(t, second, again)

	prev, err := f.cat.GetPrevPage(ctx, genericFile, first)
	require.NoError(t, err)
	assert.Same(t, first, prev)

	fromNil, err := f.cat.GetNextPage(ctx, genericFile, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ProductIDs(), fromNil.ProductIDs())

	last, err := f.cat.GetLastPage(ctx, genericFile)
	require.NoError(t, err)
	assert.Equal(t, second.ProductIDs(), last.ProductIDs())

	n, err := f.cat.GetNumProducts(ctx, genericFile)
	require.NoError(t, err)
	assert.Equal(t, 21, n)
}

func TestSQLiteEmptyCatalogReturnsBlankPage(t *testing.T) {
	f := newSQLiteFixture(t, Options{PageSize: 20})

	page, err := f.cat.GetFirstPage(context.Background(), genericFile)
	require.NoError(t, err)
	assert.True(t, page.IsBlank())
	assert.True(t, page.IsLastPage())
}

func seedGolden(t *testing.T, f *sqliteFixture) {
	f.ingest(t, "23", "a.txt", metadataOf("Filename", "a.txt", "Name", "Y", "FileSize", "10"))
	f.ingest(t, "24", "b.txt", metadataOf("Filename", "b.txt", "Name", "X", "FileSize", "20"))
	f.ingest(t, "25", "b.txt", metadataOf("Filename", "b.txt", "Name", "Z", "FileSize", "30"))
}

func TestSQLiteBooleanQuery(t *testing.T) {
	f := newSQLiteFixture(t, Options{PageSize: 20})
	seedGolden(t, f)
	ctx := context.Background()

	q, err := query.Parse(`Filename == 'a.txt' OR (Filename == 'b.txt' AND Name != 'X')`)
	require.NoError(t, err)

	ids, err := f.cat.Query(ctx, q, genericFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"25", "23"}, ids)

	page, err := f.cat.PagedQuery(ctx, q, genericFile, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"25", "23"}, page.ProductIDs())
	assert.Equal(t, 2, page.NumOfHits)
}

func TestSQLiteCriteriaCombinations(t *testing.T) {
	f := newSQLiteFixture(t, Options{PageSize: 20})
	seedGolden(t, f)
	ctx := context.Background()

	cases := []struct {
		name string
		q    *query.Query
		want []string
	}{
		{"inclusive range", query.New(query.Range{Element: "FileSize", Start: "10", End: "20", Inclusive: true}), []string{"24", "23"}},
		{"exclusive range", query.New(query.Range{Element: "FileSize", Start: "10", End: "30"}), []string{"24"}},
		{"substring term", query.New(query.Term{Element: "Filename", Value: "b."}), []string{"25", "24"}},
		{"joined criteria", query.New(
			query.Term{Element: "Filename", Value: "b.txt", Exact: true},
			query.Term{Element: "Name", Value: "Z", Exact: true},
		), []string{"25"}},
		{"wildcards are literal", query.New(query.Term{Element: "Filename", Value: "%"}), []string{}},
		{"negation", query.New(query.NewNot(query.Term{Element: "Name", Value: "X", Exact: true})), []string{"25", "23"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ids, err := f.cat.Query(ctx, tc.q, genericFile)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids)

			hits, err := f.cat.NumHits(ctx, tc.q, genericFile)
			require.NoError(t, err)
			assert.Equal(t, len(tc.want), hits)
		})
	}
}

func TestSQLiteMetadataRoundTrip(t *testing.T) {
	for _, ordered := range []bool{false, true} {
		t.Run(fmt.Sprintf("ordered=%v", ordered), func(t *testing.T) {
			f := newSQLiteFixture(t, Options{OrderedValues: ordered})
			ctx := context.Background()

			m := models.NewMetadata()
			m.Add("Name", "second", "first")
			m.Add("Filename", "a.txt")
			p := f.ingest(t, "", "a.txt", m)

			got, err := f.cat.GetMetadata(ctx, p)
			require.NoError(t, err)
			assert.True(t, m.Equal(got, ordered), "got %v", got.Keys())

			more := metadataOf("Name", "third")
			require.NoError(t, f.cat.AddMetadata(ctx, more, p))
			got, err = f.cat.GetMetadata(ctx, p)
			require.NoError(t, err)
			if ordered {
				assert.Equal(t, []string{"second", "first", "third"}, got.Values("Name"))
			} else {
				assert.ElementsMatch(t, []string{"second", "first", "third"}, got.Values("Name"))
			}

			require.NoError(t, f.cat.RemoveMetadata(ctx, metadataOf("Name", "first"), p))
			got, err = f.cat.GetMetadata(ctx, p)
			require.NoError(t, err)
			assert.False(t, got.Has("Name"))
			assert.True(t, got.Has("Filename"))
		})
	}
}

func TestSQLiteRemoveProduct(t *testing.T) {
	f := newSQLiteFixture(t, Options{})
	ctx := context.Background()

	p := f.ingest(t, "", "gone.txt", metadataOf("Filename", "gone.txt"))
	p.References = []models.Reference{{OrigReference: "file:///in/gone.txt", DataStoreReference: "file:///archive/gone.txt", FileSize: 12}}
	require.NoError(t, f.cat.AddProductReferences(ctx, p))

	refs, err := f.cat.GetProductReferences(ctx, p)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, int64(12), refs[0].FileSize)

	require.NoError(t, f.cat.RemoveProduct(ctx, p))

	found, err := f.cat.GetProductByName(ctx, "gone.txt")
	require.NoError(t, err)
	assert.Nil(t, found)

	m, err := f.cat.GetMetadata(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
	refs, err = f.cat.GetProductReferences(ctx, p)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestSQLiteElementInheritance(t *testing.T) {
	f := newSQLiteFixture(t, Options{})
	ctx := context.Background()
	image := &models.ProductType{ID: "urn:oodt:ImageFile", Name: "ImageFile"}

	band := &models.Element{ID: "urn:oodt:Band", Name: "Band"}
	require.NoError(t, f.layer.AddElement(ctx, band))
	require.NoError(t, f.layer.AddElementToProductType(ctx, image, band))
	require.NoError(t, f.layer.AddParentForProductType(ctx, image, genericFile.ID))

	direct, err := f.layer.GetElements(ctx, image, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Band"}, models.ElementNames(direct))

	all, err := f.layer.GetElements(ctx, image, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Band", "FileSize", "Filename", "Name"}, models.ElementNames(all))

	require.NoError(t, f.cat.EnsureTypeTables(ctx, image))
	p := &models.Product{Name: "img.png", Type: image}
	require.NoError(t, f.cat.AddProduct(ctx, p))
	require.NoError(t, f.cat.AddMetadata(ctx, metadataOf("Filename", "img.png", "Band", "red"), p))

	got, err := f.cat.GetReducedMetadata(ctx, p, []string{"Band", "Name"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Band"}, got.Keys())
}

func TestSQLitePageBeyondLastRestartsAtFirstRows(t *testing.T) {
	f := newSQLiteFixture(t, Options{PageSize: 20})
	ctx := context.Background()
	for i := 0; i < 21; i++ {
		f.ingest(t, fmt.Sprintf("p%02d", i), "test.txt", metadataOf("Filename", "test.txt"))
	}

	first, err := f.cat.PagedQuery(ctx, query.New(), genericFile, 1)
	require.NoError(t, err)

	beyond, err := f.cat.PagedQuery(ctx, query.New(), genericFile, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, beyond.PageNum)
	assert.Equal(t, 2, beyond.TotalPages)
	assert.Equal(t, 21, beyond.NumOfHits)
	assert.Equal(t, first.ProductIDs(), beyond.ProductIDs())
}

func TestSQLiteSingleConnectionPool(t *testing.T) {
	f := newSQLiteFixture(t, Options{PageSize: 20})
	_, err := f.db.Exec(`INSERT INTO product_types (product_type_id, product_type_name) VALUES (?, ?)`, genericFile.ID, genericFile.Name)
	require.NoError(t, err)
	f.ingest(t, "p1", "a.txt", metadataOf("Filename", "a.txt"))
	f.db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	page, err := f.cat.GetFirstPage(ctx, genericFile)
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "GenericFile", page.Products[0].Type.Name)

	found, err := f.cat.GetProductByID(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "GenericFile", found.Type.Name)

	require.NoError(t, f.cat.RemoveProduct(ctx, found))
	gone, err := f.cat.GetProductByID(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestSQLiteUnknownStoredTypeKeepsID(t *testing.T) {
	f := newSQLiteFixture(t, Options{})
	ctx := context.Background()
	f.ingest(t, "p1", "a.txt", metadataOf("Filename", "a.txt"))

	found, err := f.cat.GetProductByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, genericFile.ID, found.Type.ID)
	assert.Empty(t, found.Type.Name)

	err = f.cat.RemoveProduct(ctx, found)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}
