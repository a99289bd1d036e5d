package docstore

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyWrite_Create(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	doc, err := ApplyWrite(nil, Create("students", "s1", Data{"name": "Asha", "cgpa": 8}), now)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "s1", doc.ID)
	assert.Equal(t, 8.0, doc.Data["cgpa"])
	assert.Equal(t, now, doc.CreateTime)

	_, err = ApplyWrite(doc, Create("students", "s1", Data{}), now)
	assert.True(t, errors.Is(err, ErrAlreadyExists))
}

func TestApplyWrite_SetKeepsCreateTime(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	later := created.Add(time.Hour)

	doc, err := ApplyWrite(nil, Set("jobs", "j1", Data{"title": "SDE"}), created)
	require.NoError(t, err)

	doc, err = ApplyWrite(doc, Set("jobs", "j1", Data{"title": "SRE"}), later)
	require.NoError(t, err)
	assert.Equal(t, created, doc.CreateTime)
	assert.Equal(t, later, doc.UpdateTime)
	assert.Equal(t, "SRE", doc.Data["title"])
}

func TestApplyWrite_UpdateAndIncrement(t *testing.T) {
	now := time.Now()
	base := &Document{Collection: "students", ID: "s1", Data: Data{
		"stats": map[string]any{"applied": 2.0},
		"phone": "123",
	}}

	w := Update("students", "s1", Data{"name": "Ravi", "phone": DeleteField}).
		Increment("stats.applied", 1).
		Increment("stats.offers", 1)
	doc, err := ApplyWrite(base, w, now)
	require.NoError(t, err)

	applied, _ := GetPath(doc.Data, "stats.applied")
	offers, _ := GetPath(doc.Data, "stats.offers")
	assert.Equal(t, 3.0, applied)
	assert.Equal(t, 1.0, offers)
	assert.Equal(t, "Ravi", doc.Data["name"])
	_, hasPhone := doc.Data["phone"]
	assert.False(t, hasPhone)

	// original untouched
	orig, _ := GetPath(base.Data, "stats.applied")
	assert.Equal(t, 2.0, orig)
	assert.Equal(t, "123", base.Data["phone"])
}

func TestApplyWrite_UpdateMissing(t *testing.T) {
	_, err := ApplyWrite(nil, Update("students", "nope", Data{"a": 1}), time.Now())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestApplyWrite_Delete(t *testing.T) {
	doc, err := ApplyWrite(&Document{ID: "x"}, Delete("c", "x"), time.Now())
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestWrite_Validate(t *testing.T) {
	tests := []struct {
		name    string
		write   Write
		wantErr bool
	}{
		{"ok", Set("c", "id", nil), false},
		{"no collection", Set("", "id", nil), true},
		{"no id", Set("c", "", nil), true},
		{"increment on set", Set("c", "id", nil).Increment("n", 1), true},
		{"increment on update", Update("c", "id", nil).Increment("n", 1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.write.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDocument_DataTo(t *testing.T) {
	doc := &Document{Collection: "jobs", ID: "j9", Data: Data{"jobTitle": "Analyst"}}
	var out struct {
		ID       string `json:"id"`
		JobTitle string `json:"jobTitle"`
	}
	require.NoError(t, doc.DataTo(&out))
	assert.Equal(t, "j9", out.ID)
	assert.Equal(t, "Analyst", out.JobTitle)
}

func TestToData_DropsID(t *testing.T) {
	data, err := ToData(struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}{ID: "x", Name: "n"})
	require.NoError(t, err)
	assert.Equal(t, Data{"name": "n"}, data)
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.Len(t, a, 20)
	assert.NotEqual(t, a, b)
}
