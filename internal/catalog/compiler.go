package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/filemgr/internal/query"
)

// elementResolver turns an element name into the bound element_id value.
type elementResolver func(name string) (interface{}, error)

// compiledQuery holds the FROM/JOIN/WHERE body shared by the count and data
// statements. Args are in placeholder order.
type compiledQuery struct {
	body string
	args []interface{}
}

// countSQL selects the number of distinct matching products.
func (c compiledQuery) countSQL() string {
	return "SELECT COUNT(DISTINCT p.product_id) " + c.body
}

// idsSQL selects matching product ids, newest id first.
func (c compiledQuery) idsSQL() string {
	return "SELECT DISTINCT p.product_id " + c.body + " ORDER BY p.product_id DESC"
}

// pageSQL is idsSQL bounded by LIMIT/OFFSET; callers append both as args.
func (c compiledQuery) pageSQL() string {
	return c.idsSQL() + " LIMIT ? OFFSET ?"
}

type compiler struct {
	table   string
	resolve elementResolver
	alias   int
}

// compile renders q against the metadata table. The first criterion
// filters p directly, every later criterion joins a product_id sub-select.
func compile(table string, q *query.Query, resolve elementResolver) (compiledQuery, error) {
	if err := q.Validate(); err != nil {
		return compiledQuery{}, err
	}
	c := &compiler{table: table, resolve: resolve}
	var sb strings.Builder
	sb.WriteString("FROM ")
	sb.WriteString(table)
	sb.WriteString(" p")
	if q.Empty() {
		return compiledQuery{body: sb.String()}, nil
	}

	var joinArgs []interface{}
	for i, crit := range q.Criteria[1:] {
		sub, args, err := c.subSelect(crit)
		if err != nil {
			return compiledQuery{}, err
		}
		alias := "p" + strconv.Itoa(i+2)
		fmt.Fprintf(&sb, " INNER JOIN (%s) %s ON %s.product_id = p.product_id", sub, alias, alias)
		joinArgs = append(joinArgs, args...)
	}

	where, whereArgs, err := c.predicate("p.", q.Criteria[0])
	if err != nil {
		return compiledQuery{}, err
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(where)
	return compiledQuery{body: sb.String(), args: append(joinArgs, whereArgs...)}, nil
}

// predicate renders crit as a condition on the row aliased by prefix.
func (c *compiler) predicate(prefix string, crit query.Criterion) (string, []interface{}, error) {
	switch v := crit.(type) {
	case query.Term:
		id, err := c.resolve(v.Element)
		if err != nil {
			return "", nil, err
		}
		if v.Exact {
			return prefix + "element_id = ? AND " + prefix + "metadata_value = ?", []interface{}{id, v.Value}, nil
		}
		return prefix + "element_id = ? AND " + prefix + `metadata_value LIKE ? ESCAPE '\'`, []interface{}{id, likePattern(v.Value)}, nil
	case query.Range:
		id, err := c.resolve(v.Element)
		if err != nil {
			return "", nil, err
		}
		cond := prefix + "element_id = ?"
		args := []interface{}{id}
		lower, upper := ">", "<"
		if v.Inclusive {
			lower, upper = ">=", "<="
		}
		if v.Start != "" {
			cond += " AND " + prefix + "metadata_value " + lower + " ?"
			args = append(args, v.Start)
		}
		if v.End != "" {
			cond += " AND " + prefix + "metadata_value " + upper + " ?"
			args = append(args, v.End)
		}
		return cond, args, nil
	case query.Boolean:
		sub, args, err := c.subSelect(v)
		if err != nil {
			return "", nil, err
		}
		return prefix + "product_id IN (" + sub + ")", args, nil
	default:
		return "", nil, fmt.Errorf("unsupported criterion %T", crit)
	}
}

// subSelect renders crit as a statement yielding matching product ids.
func (c *compiler) subSelect(crit query.Criterion) (string, []interface{}, error) {
	if err := crit.Validate(); err != nil {
		return "", nil, err
	}
	b, ok := crit.(query.Boolean)
	if !ok {
		cond, args, err := c.predicate("", crit)
		if err != nil {
			return "", nil, err
		}
		return "SELECT product_id FROM " + c.table + " WHERE " + cond, args, nil
	}

	if b.Op == query.Not {
		inner, args, err := c.subSelect(b.Children[0])
		if err != nil {
			return "", nil, err
		}
		return "SELECT DISTINCT product_id FROM " + c.table + " WHERE product_id NOT IN (" + inner + ")", args, nil
	}

	joiner := " INTERSECT "
	if b.Op == query.Or {
		joiner = " UNION "
	}
	parts := make([]string, 0, len(b.Children))
	var args []interface{}
	for _, child := range b.Children {
		sub, childArgs, err := c.subSelect(child)
		if err != nil {
			return "", nil, err
		}
		// Compound members cannot be parenthesized in SQLite, so nested
		// compounds become derived tables.
		if _, nested := child.(query.Boolean); nested {
			c.alias++
			sub = "SELECT product_id FROM (" + sub + ") b" + strconv.Itoa(c.alias)
		}
		parts = append(parts, sub)
		args = append(args, childArgs...)
	}
	return strings.Join(parts, joiner), args, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(value string) string {
	return "%" + likeEscaper.Replace(value) + "%"
}
