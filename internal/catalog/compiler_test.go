package catalog

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/filemgr/internal/query"
)

func stubResolver(ids map[string]string) elementResolver {
	return func(name string) (interface{}, error) {
		id, ok := ids[name]
		if !ok {
			return nil, fmt.Errorf("unknown element %s", name)
		}
		return id, nil
	}
}

var testElements = map[string]string{"Filename": "e1", "FileSize": "e2", "Name": "e3"}

func TestCompileEmptyQueryScansMetadataTable(t *testing.T) {
	compiled, err := compile("GenericFile_metadata", query.New(), stubResolver(testElements))
	require.NoError(t, err)

	assert.Equal(t, "SELECT COUNT(DISTINCT p.product_id) FROM GenericFile_metadata p", compiled.countSQL())
	assert.Equal(t, "SELECT DISTINCT p.product_id FROM GenericFile_metadata p ORDER BY p.product_id DESC LIMIT ? OFFSET ?", compiled.pageSQL())
	assert.Empty(t, compiled.args)
}

func TestCompileJoinsLaterCriteria(t *testing.T) {
	q := query.New(
		query.Term{Element: "Filename", Value: "a_b"},
		query.Range{Element: "FileSize", Start: "10", End: "20", Inclusive: true},
		query.Range{Element: "FileSize", End: "99"},
	)
	compiled, err := compile("T", q, stubResolver(testElements))
	require.NoError(t, err)

	want := "FROM T p" +
		" INNER JOIN (SELECT product_id FROM T WHERE element_id = ? AND metadata_value >= ? AND metadata_value <= ?) p2 ON p2.product_id = p.product_id" +
		" INNER JOIN (SELECT product_id FROM T WHERE element_id = ? AND metadata_value < ?) p3 ON p3.product_id = p.product_id" +
		` WHERE p.element_id = ? AND p.metadata_value LIKE ? ESCAPE '\'`
	assert.Equal(t, want, compiled.body)
	assert.Equal(t, []interface{}{"e2", "10", "20", "e2", "99", "e1", `%a\_b%`}, compiled.args)
}

func TestCompileBooleanTree(t *testing.T) {
	q := query.New(query.NewOr(
		query.Term{Element: "Filename", Value: "a.txt", Exact: true},
		query.NewAnd(
			query.Term{Element: "Filename", Value: "b.txt", Exact: true},
			query.NewNot(query.Term{Element: "Name", Value: "X", Exact: true}),
		),
	))
	compiled, err := compile("T", q, stubResolver(testElements))
	require.NoError(t, err)

	leaf := "SELECT product_id FROM T WHERE element_id = ? AND metadata_value = ?"
	not := "SELECT product_id FROM (SELECT DISTINCT product_id FROM T WHERE product_id NOT IN (" + leaf + ")) b1"
	and := "SELECT product_id FROM (" + leaf + " INTERSECT " + not + ") b2"
	assert.Equal(t, "FROM T p WHERE p.product_id IN ("+leaf+" UNION "+and+")", compiled.body)
	assert.Equal(t, []interface{}{"e1", "a.txt", "e1", "b.txt", "e3", "X"}, compiled.args)
}

func TestCompileRejectsInvalidCriteria(t *testing.T) {
	_, err := compile("T", query.New(query.Boolean{Op: query.Not, Children: []query.Criterion{
		query.Term{Element: "Filename", Value: "a"},
		query.Term{Element: "Filename", Value: "b"},
	}}), stubResolver(testElements))
	require.Error(t, err)

	_, err = compile("T", query.New(query.Range{Element: "FileSize"}), stubResolver(testElements))
	require.Error(t, err)
}

func TestCompilePropagatesResolverErrors(t *testing.T) {
	boom := errors.New("element lookup failed")
	_, err := compile("T", query.New(query.Term{Element: "Filename", Value: "a"}), func(string) (interface{}, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, `%50\%\_off\\%`, likePattern(`50%_off\`))
	assert.Equal(t, "%%", likePattern(""))
}
