// Package query models catalog query criteria: term, range and boolean
// combinations over metadata element values.
package query

import (
	"fmt"
	"strings"
)

// Operator combines boolean criteria.
type Operator string

const (
	And Operator = "AND"
	Or  Operator = "OR"
	Not Operator = "NOT"
)

// Criterion is one node of a query tree. Implementations are Term, Range and
// Boolean.
type Criterion interface {
	fmt.Stringer
	Validate() error
	criterion()
}

// Term matches an element value. Exact terms compare for equality, others
// match by substring.
type Term struct {
	Element string `json:"element"`
	Value   string `json:"value"`
	Exact   bool   `json:"exact,omitempty"`
}

// Range bounds an element value. Either bound may be empty but not both.
type Range struct {
	Element   string `json:"element"`
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
	Inclusive bool   `json:"inclusive"`
}

// Boolean combines child criteria. NOT takes exactly one child.
type Boolean struct {
	Op       Operator    `json:"op"`
	Children []Criterion `json:"children"`
}

func (Term) criterion()    {}
func (Range) criterion()   {}
func (Boolean) criterion() {}

// Validate checks the term is complete.
func (t Term) Validate() error {
	if strings.TrimSpace(t.Element) == "" {
		return fmt.Errorf("term criterion requires an element")
	}
	return nil
}

// Validate checks at least one bound is present.
func (r Range) Validate() error {
	if strings.TrimSpace(r.Element) == "" {
		return fmt.Errorf("range criterion requires an element")
	}
	if r.Start == "" && r.End == "" {
		return fmt.Errorf("range criterion on %s requires a start or end value", r.Element)
	}
	return nil
}

// Validate checks operator arity and every child.
func (b Boolean) Validate() error {
	switch b.Op {
	case And, Or:
		if len(b.Children) == 0 {
			return fmt.Errorf("%s criterion requires at least one child", b.Op)
		}
	case Not:
		if len(b.Children) != 1 {
			return fmt.Errorf("NOT criterion requires exactly one child, got %d", len(b.Children))
		}
	default:
		return fmt.Errorf("unknown boolean operator %q", b.Op)
	}
	for _, child := range b.Children {
		if child == nil {
			return fmt.Errorf("%s criterion has a nil child", b.Op)
		}
		if err := child.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t Term) String() string {
	if t.Exact {
		return fmt.Sprintf("%s == '%s'", t.Element, t.Value)
	}
	return fmt.Sprintf("%s LIKE '%s'", t.Element, t.Value)
}

func (r Range) String() string {
	lo, hi := ">", "<"
	if r.Inclusive {
		lo, hi = ">=", "<="
	}
	switch {
	case r.Start != "" && r.End != "":
		return fmt.Sprintf("(%s %s '%s' AND %s %s '%s')", r.Element, lo, r.Start, r.Element, hi, r.End)
	case r.Start != "":
		return fmt.Sprintf("%s %s '%s'", r.Element, lo, r.Start)
	default:
		return fmt.Sprintf("%s %s '%s'", r.Element, hi, r.End)
	}
}

func (b Boolean) String() string {
	if b.Op == Not && len(b.Children) == 1 {
		return fmt.Sprintf("NOT (%s)", b.Children[0])
	}
	parts := make([]string, 0, len(b.Children))
	for _, c := range b.Children {
		parts = append(parts, c.String())
	}
	return "(" + strings.Join(parts, " "+string(b.Op)+" ") + ")"
}

// NewAnd builds an AND of children.
func NewAnd(children ...Criterion) Boolean {
	return Boolean{Op: And, Children: children}
}

// NewOr builds an OR of children.
func NewOr(children ...Criterion) Boolean {
	return Boolean{Op: Or, Children: children}
}

// NewNot negates child.
func NewNot(child Criterion) Boolean {
	return Boolean{Op: Not, Children: []Criterion{child}}
}

// Query is an ordered list of top-level criteria, implicitly ANDed.
type Query struct {
	Criteria []Criterion
}

// New builds a Query from criteria.
func New(criteria ...Criterion) *Query {
	return &Query{Criteria: criteria}
}

// Empty reports whether q selects everything.
func (q *Query) Empty() bool {
	return q == nil || len(q.Criteria) == 0
}

// Add appends a top-level criterion.
func (q *Query) Add(c Criterion) {
	q.Criteria = append(q.Criteria, c)
}

// Validate checks every criterion.
func (q *Query) Validate() error {
	if q == nil {
		return nil
	}
	for i, c := range q.Criteria {
		if c == nil {
			return fmt.Errorf("criterion %d is nil", i)
		}
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (q *Query) String() string {
	if q.Empty() {
		return "*"
	}
	parts := make([]string, 0, len(q.Criteria))
	for _, c := range q.Criteria {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, " AND ")
}

// Elements returns every element name referenced by q, in first-use order.
func (q *Query) Elements() []string {
	if q == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	var walk func(c Criterion)
	walk = func(c Criterion) {
		switch v := c.(type) {
		case Term:
			if _, ok := seen[v.Element]; !ok {
				seen[v.Element] = struct{}{}
				out = append(out, v.Element)
			}
		case Range:
			if _, ok := seen[v.Element]; !ok {
				seen[v.Element] = struct{}{}
				out = append(out, v.Element)
			}
		case Boolean:
			for _, child := range v.Children {
				walk(child)
			}
		}
	}
	for _, c := range q.Criteria {
		walk(c)
	}
	return out
}
