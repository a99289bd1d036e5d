package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docs() []Document {
	return []Document{
		{ID: "a", Data: Data{"studentId": "s1", "status": "applied", "appliedDate": "2025-03-01T10:00:00Z", "score": 3.0}},
		{ID: "b", Data: Data{"studentId": "s1", "status": "offered", "appliedDate": "2025-03-05T10:00:00Z", "score": 9.0}},
		{ID: "c", Data: Data{"studentId": "s2", "status": "applied", "appliedDate": "2025-02-01T10:00:00Z"}},
		{ID: "d", Data: Data{"studentId": "s1", "status": "rejected", "appliedDate": "2025-03-05T09:00:00+05:30", "score": 5.0}},
	}
}

func ids(ds []Document) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.ID
	}
	return out
}

func TestApply_EqualityAndOrder(t *testing.T) {
	q := NewQuery("applications").
		Where("studentId", OpEqual, "s1").
		OrderBy("appliedDate", true)

	got := Apply(docs(), q)
	// d is 03:30Z on the 5th, so b (10:00Z) is newest
	assert.Equal(t, []string{"b", "d", "a"}, ids(got))
}

func TestApply_RangeIgnoresMissing(t *testing.T) {
	q := NewQuery("applications").Where("score", OpGreaterEqual, 4)
	assert.Equal(t, []string{"b", "d"}, ids(Apply(docs(), q)))

	q = NewQuery("applications").Where("score", OpNotEqual, 3)
	assert.Equal(t, []string{"b", "d"}, ids(Apply(docs(), q)))
}

func TestApply_In(t *testing.T) {
	q := NewQuery("applications").Where("status", OpIn, []string{"offered", "rejected"})
	assert.Equal(t, []string{"b", "d"}, ids(Apply(docs(), q)))
}

func TestApply_Limit(t *testing.T) {
	q := NewQuery("applications").OrderBy("appliedDate", false).WithLimit(2)
	assert.Equal(t, []string{"c", "a"}, ids(Apply(docs(), q)))
}

func TestApply_MissingSortKeyFirst(t *testing.T) {
	q := NewQuery("applications").OrderBy("score", false)
	assert.Equal(t, []string{"c", "a", "d", "b"}, ids(Apply(docs(), q)))
}

func TestQuery_Validate(t *testing.T) {
	require.NoError(t, NewQuery("x").Where("a", OpEqual, 1).Validate())
	assert.Error(t, Query{}.Validate())
	assert.Error(t, NewQuery("x").Where("", OpEqual, 1).Validate())
	assert.Error(t, NewQuery("x").Where("a", Op("~"), 1).Validate())
	assert.Error(t, NewQuery("x").Where("a", OpIn, "not-a-slice").Validate())
	assert.Error(t, NewQuery("x").WithLimit(-1).Validate())
}

func TestQuery_WhereDoesNotAlias(t *testing.T) {
	base := NewQuery("x").Where("a", OpEqual, 1)
	q1 := base.Where("b", OpEqual, 2)
	q2 := base.Where("c", OpEqual, 3)
	assert.Len(t, base.Filters, 1)
	assert.Equal(t, "b", q1.Filters[1].Field)
	assert.Equal(t, "c", q2.Filters[1].Field)
}

func TestPath_SetGetDelete(t *testing.T) {
	data := Data{}
	SetPath(data, "stats.offers", 2.0)
	v, ok := GetPath(data, "stats.offers")
	require.True(t, ok)
	assert.Equal(t, 2.0, v)

	DeletePath(data, "stats.offers")
	_, ok = GetPath(data, "stats.offers")
	assert.False(t, ok)

	DeletePath(data, "nope.deeper")
	_, ok = GetPath(data, "")
	assert.False(t, ok)
}
