package docstore

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEqual        Op = "=="
	OpNotEqual     Op = "!="
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
	OpIn           Op = "in"
)

// Filter restricts a query to documents whose field satisfies Op against Value.
// Documents missing the field never match.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Order sorts query results by a field.
type Order struct {
	Field string
	Desc  bool
}

// Query selects documents from one collection.
type Query struct {
	Collection string
	Filters    []Filter
	Orders     []Order
	Limit      int
}

// NewQuery starts a query on a collection.
func NewQuery(collection string) Query {
	return Query{Collection: collection}
}

// Where returns a copy of q with an additional filter.
func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

// OrderBy returns a copy of q with an additional sort key.
func (q Query) OrderBy(field string, desc bool) Query {
	q.Orders = append(append([]Order(nil), q.Orders...), Order{Field: field, Desc: desc})
	return q
}

// WithLimit returns a copy of q limited to n results (0 means unlimited).
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// Validate checks the query is well formed.
func (q Query) Validate() error {
	if q.Collection == "" {
		return fmt.Errorf("invalid query: collection is empty")
	}
	for _, f := range q.Filters {
		if f.Field == "" {
			return fmt.Errorf("invalid query on %s: filter field is empty", q.Collection)
		}
		switch f.Op {
		case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		case OpIn:
			if reflect.ValueOf(f.Value).Kind() != reflect.Slice {
				return fmt.Errorf("invalid query on %s: %q filter on %s needs a slice", q.Collection, f.Op, f.Field)
			}
		default:
			return fmt.Errorf("invalid query on %s: unknown operator %q", q.Collection, f.Op)
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("invalid query on %s: negative limit", q.Collection)
	}
	return nil
}

// EqualityFilters returns the == filters, which backends may push down to an index.
func (q Query) EqualityFilters() []Filter {
	var out []Filter
	for _, f := range q.Filters {
		if f.Op == OpEqual {
			out = append(out, f)
		}
	}
	return out
}

// Matches reports whether data satisfies every filter of q.
func (q Query) Matches(data Data) bool {
	for _, f := range q.Filters {
		if !f.Matches(data) {
			return false
		}
	}
	return true
}

// Matches reports whether data satisfies f.
func (f Filter) Matches(data Data) bool {
	got, ok := GetPath(data, f.Field)
	if !ok {
		return false
	}
	want := normalizeValue(f.Value)

	switch f.Op {
	case OpEqual:
		return valuesEqual(got, want)
	case OpNotEqual:
		return !valuesEqual(got, want)
	case OpIn:
		items, ok := want.([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if valuesEqual(got, item) {
				return true
			}
		}
		return false
	}

	c, ok := compareValues(got, want)
	if !ok {
		return false
	}
	switch f.Op {
	case OpLess:
		return c < 0
	case OpLessEqual:
		return c <= 0
	case OpGreater:
		return c > 0
	case OpGreaterEqual:
		return c >= 0
	}
	return false
}

// Apply filters, sorts and limits docs according to q. The input slice is not modified.
func Apply(docs []Document, q Query) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if q.Matches(d.Data) {
			out = append(out, d)
		}
	}
	Sort(out, q.Orders)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// Sort orders docs by the given keys; documents are first ordered by id so that
// ties are stable across backends.
func Sort(docs []Document, orders []Order) {
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	if len(orders) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, o := range orders {
			a, aok := GetPath(docs[i].Data, o.Field)
			b, bok := GetPath(docs[j].Data, o.Field)
			var c int
			switch {
			case !aok && !bok:
				c = 0
			case !aok:
				c = -1
			case !bok:
				c = 1
			default:
				c, _ = compareValues(a, b)
			}
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func valuesEqual(a, b any) bool {
	if c, ok := compareValues(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders numbers, booleans and strings. Strings that both parse as
// RFC 3339 timestamps compare chronologically.
func compareValues(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		if ta, err := time.Parse(time.RFC3339Nano, av); err == nil {
			if tb, err := time.Parse(time.RFC3339Nano, bv); err == nil {
				return ta.Compare(tb), true
			}
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}
