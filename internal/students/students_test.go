package students

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roshankumar101/Portal-sub001/internal/apperr"
	"github.com/roshankumar101/Portal-sub001/internal/docstore"
	"github.com/roshankumar101/Portal-sub001/internal/docstore/memstore"
	"github.com/roshankumar101/Portal-sub001/internal/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store := memstore.New()
	t.Cleanup(func() { _ = store.Close() })
	clock := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	return NewService(store, zaptest.NewLogger(t), WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
}

func ptr[T any](v T) *T { return &v }

func TestCreateAndGet(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, types.Student{
		ID:    "s1",
		Name:  "Asha",
		Email: "  Asha@Example.COM ",
		Stats: types.Stats{Applied: 9},
	})
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", created.Email)
	assert.Equal(t, types.Stats{}, created.Stats, "stats always start at zero")

	_, err = svc.Create(ctx, types.Student{ID: "s1", Name: "Again"})
	assert.True(t, apperr.IsConflict(err))

	missing, err := svc.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = svc.GetStats(ctx, "nope")
	assert.True(t, apperr.IsNotFound(err))

	stats, err := svc.GetStats(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, types.Stats{}, *stats)
}

func TestUpdateProfile_Normalizes(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, types.Student{ID: "s1", Name: "Asha", Email: "asha@example.com", Phone: "123"})
	require.NoError(t, err)

	updated, err := svc.UpdateProfile(ctx, "s1", types.ProfileUpdate{
		Email:     ptr(" NEW@Example.com"),
		LinkedIn:  ptr("linkedin.com/in/asha"),
		GitHub:    ptr("https://github.com/asha"),
		Portfolio: ptr("  "),
		CGPA:      ptr(8.4),
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.Equal(t, "https://linkedin.com/in/asha", updated.LinkedIn)
	assert.Equal(t, "https://github.com/asha", updated.GitHub)
	assert.Equal(t, "", updated.Portfolio)
	assert.InDelta(t, 8.4, updated.CGPA, 1e-9)
	assert.Equal(t, "Asha", updated.Name, "nil fields are untouched")
	assert.Equal(t, "123", updated.Phone)

	_, err = svc.UpdateProfile(ctx, "s1", types.ProfileUpdate{Email: ptr("not-an-email")})
	assert.True(t, apperr.IsValidation(err))

	_, err = svc.UpdateProfile(ctx, "s1", types.ProfileUpdate{CGPA: ptr(11.0)})
	assert.True(t, apperr.IsValidation(err))

	_, err = svc.UpdateProfile(ctx, "ghost", types.ProfileUpdate{Name: ptr("x")})
	assert.True(t, apperr.IsNotFound(err))
}

func TestUpdateProfile_MovesAccountEmail(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seedAccount := func(id, email string) {
		t.Helper()
		w, err := svc.CreateWrite(types.Student{ID: id, Name: id, Email: email})
		require.NoError(t, err)
		require.NoError(t, svc.store.Commit(ctx,
			w,
			docstore.Create(types.CollUsers, id, docstore.Data{"email": email, "role": "student"}),
			docstore.Create(types.CollUserEmails, types.EmailIndexID(email), docstore.Data{"userId": id, "email": email}),
		))
	}
	seedAccount("s1", "asha@example.com")
	seedAccount("s2", "ravi@example.com")

	updated, err := svc.UpdateProfile(ctx, "s1", types.ProfileUpdate{Email: ptr("  Asha.New@Example.com ")})
	require.NoError(t, err)
	assert.Equal(t, "asha.new@example.com", updated.Email)

	user, err := svc.store.Get(ctx, types.CollUsers, "s1")
	require.NoError(t, err)
	assert.Equal(t, "asha.new@example.com", user.Data["email"])

	index, err := svc.store.Get(ctx, types.CollUserEmails, types.EmailIndexID("asha.new@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "s1", index.Data["userId"])
	_, err = svc.store.Get(ctx, types.CollUserEmails, types.EmailIndexID("asha@example.com"))
	assert.ErrorIs(t, err, docstore.ErrNotFound, "the old address is released")

	_, err = svc.UpdateProfile(ctx, "s1", types.ProfileUpdate{Email: ptr("RAVI@example.com"), Bio: ptr("hi")})
	assert.True(t, apperr.IsConflict(err), "another account's address is refused")
	unchanged, err := svc.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "asha.new@example.com", unchanged.Email)
	assert.Empty(t, unchanged.Bio, "a refused change writes nothing")

	_, err = svc.UpdateProfile(ctx, "s1", types.ProfileUpdate{Email: ptr("   ")})
	assert.True(t, apperr.IsValidation(err))
}

func TestNormalizeURL(t *testing.T) {
	tests := map[string]string{
		"":                     "",
		"github.com/a":         "https://github.com/a",
		"http://x.dev":         "http://x.dev",
		"HTTPS://X.dev":        "HTTPS://X.dev",
		"//cdn.example.com/me": "https://cdn.example.com/me",
		"  site.io  ":          "https://site.io",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeURL(in), in)
	}
}

func TestList_Filters(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	for _, st := range []types.Student{
		{ID: "a", Name: "Chitra", Center: "Pune", School: "SOT", CGPA: 8.2},
		{ID: "b", Name: "Arun", Center: "Pune", School: "SOM", CGPA: 6.9},
		{ID: "c", Name: "Bela", Center: "Delhi", School: "SOT", CGPA: 9.0},
	} {
		_, err := svc.Create(ctx, st)
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, types.StudentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"Arun", "Bela", "Chitra"}, []string{all[0].Name, all[1].Name, all[2].Name})

	pune, err := svc.List(ctx, types.StudentFilter{Center: "Pune", MinCGPA: 7})
	require.NoError(t, err)
	require.Len(t, pune, 1)
	assert.Equal(t, "a", pune[0].ID)

	sot, err := svc.List(ctx, types.StudentFilter{School: "SOT"})
	require.NoError(t, err)
	assert.Len(t, sot, 2)
}

func TestSections(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, types.Student{ID: "s1", Name: "Asha"})
	require.NoError(t, err)

	edu, err := svc.AddEducation(ctx, "s1", types.Education{Institution: "IIT", StartYear: 2021, EndYear: 2025})
	require.NoError(t, err)
	assert.NotEmpty(t, edu.ID)
	assert.Equal(t, "s1", edu.StudentID)

	_, err = svc.AddEducation(ctx, "s1", types.Education{Institution: "X", StartYear: 2025, EndYear: 2021})
	assert.True(t, apperr.IsValidation(err))

	edu.Degree = "B.Tech"
	require.NoError(t, svc.UpdateEducation(ctx, "s1", *edu))

	go1, err := svc.AddSkill(ctx, "s1", types.Skill{Name: "Go", Level: "advanced"})
	require.NoError(t, err)
	_, err = svc.AddSkill(ctx, "s1", types.Skill{Name: "SQL"})
	require.NoError(t, err)
	_, err = svc.AddSkill(ctx, "s1", types.Skill{Name: "Rust", Level: "guru"})
	assert.True(t, apperr.IsValidation(err))

	proj, err := svc.AddProject(ctx, "s1", types.Project{Title: "Portal", URL: "github.com/asha/portal"})
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/asha/portal", proj.URL)
	proj.Title = "Placement Portal"
	require.NoError(t, svc.UpdateProject(ctx, "s1", *proj))

	ach, err := svc.AddAchievement(ctx, "s1", types.Achievement{Title: "Hackathon winner"})
	require.NoError(t, err)

	require.NoError(t, svc.RemoveSkill(ctx, "s1", go1.ID))
	assert.True(t, apperr.IsNotFound(svc.RemoveSkill(ctx, "s1", go1.ID)))

	st, err := svc.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, st.Education, 1)
	assert.Equal(t, "B.Tech", st.Education[0].Degree)
	require.Len(t, st.Skills, 1)
	assert.Equal(t, "SQL", st.Skills[0].Name)
	require.Len(t, st.Projects, 1)
	assert.Equal(t, "Placement Portal", st.Projects[0].Title)
	require.Len(t, st.Achievements, 1)
	assert.Equal(t, ach.ID, st.Achievements[0].ID)

	require.NoError(t, svc.RemoveAchievement(ctx, "s1", ach.ID))
	require.NoError(t, svc.RemoveProject(ctx, "s1", proj.ID))
	require.NoError(t, svc.RemoveEducation(ctx, "s1", edu.ID))
	st, err = svc.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, st.Achievements)
	assert.Empty(t, st.Projects)
	assert.Empty(t, st.Education)

	assert.True(t, apperr.IsNotFound(svc.UpdateProject(ctx, "s1", types.Project{ID: "gone", Title: "x"})))
	_, err = svc.AddSkill(ctx, "ghost", types.Skill{Name: "Go"})
	assert.True(t, apperr.IsNotFound(err))
}

func TestRecords(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	id1, err := svc.CreateRecord(ctx, RecordSkills, "s1", docstore.Data{"name": "Go", "id": "ignored"})
	require.NoError(t, err)
	assert.NotEqual(t, "ignored", id1)
	id2, err := svc.CreateRecord(ctx, RecordSkills, "s1", docstore.Data{"name": "SQL"})
	require.NoError(t, err)
	_, err = svc.CreateRecord(ctx, RecordSkills, "s2", docstore.Data{"name": "Java"})
	require.NoError(t, err)

	recs, err := svc.ListRecords(ctx, RecordSkills, "s1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, id2, recs[0]["id"])
	assert.Equal(t, "s1", recs[0]["studentId"])

	rec, err := svc.GetRecord(ctx, RecordSkills, id1)
	require.NoError(t, err)
	assert.Equal(t, "Go", rec["name"])

	require.NoError(t, svc.DeleteRecord(ctx, RecordSkills, id1))
	require.NoError(t, svc.DeleteRecord(ctx, RecordSkills, id1))
	rec, err = svc.GetRecord(ctx, RecordSkills, id1)
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = ParseRecordKind("hobbies")
	assert.True(t, apperr.IsValidation(err))
	kind, err := ParseRecordKind("education")
	require.NoError(t, err)
	assert.Equal(t, RecordEducation, kind)
}
