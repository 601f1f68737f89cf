// Package storetest is a conformance suite for repository.Store
// implementations. Each backend's tests call Run with a factory that returns
// a fresh, empty store.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/reportnavi/internal/apperror"
	"github.com/sakif/reportnavi/internal/model"
	"github.com/sakif/reportnavi/internal/repository"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) repository.Store

// Run executes every conformance check as a subtest.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s repository.Store)
	}{
		{"UpsertUserOverwrites", testUpsertUserOverwrites},
		{"GetUserNotFound", testGetUserNotFound},
		{"CreateUserConflictKeepsFirst", testCreateUserConflict},
		{"SetProfilePicKeepsBalance", testSetProfilePicKeepsBalance},
		{"SetProfilePicNotFound", testSetProfilePicNotFound},
		{"ListUsers", testListUsers},
		{"CreateAndGetReport", testCreateAndGetReport},
		{"CreateReportDuplicateID", testCreateReportDuplicateID},
		{"ListReportsNewestFirst", testListReportsNewestFirst},
		{"UpdateReportOnlyChangesPatchedFields", testUpdateReportIsolation},
		{"UpdateReportNotFound", testUpdateReportNotFound},
		{"UpdateReportEmptyPatch", testUpdateReportEmptyPatch},
		{"DeleteReport", testDeleteReport},
		{"ActivitiesFilteredAndOrdered", testActivitiesFilteredAndOrdered},
		{"ActivitiesOnlyGrow", testActivitiesOnlyGrow},
		{"AppendActivityDuplicateID", testAppendActivityDuplicateID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { s.Close() })
			tt.fn(t, s)
		})
	}
}

// base is truncated to microseconds so that every backend round-trips it
// exactly.
var base = time.Date(2025, 4, 10, 8, 30, 0, 0, time.UTC)

func sampleReport(id string, date time.Time) *model.Report {
	return &model.Report{
		ID:          id,
		User:        "alice",
		Category:    "Road",
		Title:       "Pothole on " + id,
		Description: "Large pothole near the crossing",
		Location:    "https://maps.example.com/?q=1,2",
		Date:        date,
		Status:      model.StatusPending,
		Files: []model.ReportFile{
			{Name: "hole.jpg", Type: "image/jpeg", URL: "data:image/jpeg;base64,AAAA"},
		},
		Thumbnail: "data:image/jpeg;base64,AAAA",
	}
}

func testUpsertUserOverwrites(t *testing.T, s repository.Store) {
	ctx := context.Background()

	u := model.NewUser("alice", model.RoleMember, "hash-1", base)
	require.NoError(t, s.UpsertUser(ctx, u))

	require.NoError(t, u.Credit(50))
	u.PasswordHash = "hash-2"
	require.NoError(t, s.UpsertUser(ctx, u))

	got, err := s.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 50, got.Points())
	assert.Equal(t, "hash-2", got.PasswordHash)
	assert.True(t, got.MemberSince.Equal(base))

	all, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "upsert must not duplicate the record")
}

func testGetUserNotFound(t *testing.T, s repository.Store) {
	_, err := s.GetUser(context.Background(), "nobody")
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)
}

func testCreateUserConflict(t *testing.T, s repository.Store) {
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, model.NewUser("alice", model.RoleMember, "hash-1", base)))

	err := s.CreateUser(ctx, model.NewUser("alice", model.RoleAdmin, "hash-2", base.Add(time.Hour)))
	assert.True(t, errors.Is(err, apperror.ErrConflict), "got %v", err)

	got, err := s.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", got.PasswordHash)
	assert.Equal(t, model.RoleMember, got.Role)
}

func testSetProfilePicKeepsBalance(t *testing.T, s repository.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, model.NewUser("alice", model.RoleMember, "hash", base)))

	// A credit lands after the caller last read the account.
	credited, err := s.GetUser(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, credited.Credit(50))
	require.NoError(t, s.UpsertUser(ctx, credited))

	pic := "https://example.com/alice.png"
	require.NoError(t, s.SetProfilePic(ctx, "alice", &pic))

	got, err := s.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 50, got.Points())
	require.NotNil(t, got.ProfilePic)
	assert.Equal(t, pic, *got.ProfilePic)
	assert.Equal(t, "hash", got.PasswordHash)

	require.NoError(t, s.SetProfilePic(ctx, "alice", nil))
	got, err = s.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got.ProfilePic)
	assert.Equal(t, 50, got.Points())
}

func testSetProfilePicNotFound(t *testing.T, s repository.Store) {
	pic := "x"
	err := s.SetProfilePic(context.Background(), "nobody", &pic)
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)
}

func testListUsers(t *testing.T, s repository.Store) {
	ctx := context.Background()

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	pic := "https://example.com/me.png"
	admin := model.NewUser("bob", model.RoleAdmin, "h", base)
	admin.ProfilePic = &pic
	require.NoError(t, s.UpsertUser(ctx, admin))
	require.NoError(t, s.UpsertUser(ctx, model.NewUser("alice", model.RoleMember, "h", base)))

	users, err = s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)

	byName := map[string]model.User{}
	for _, u := range users {
		byName[u.Username] = u
	}
	bob := byName["bob"]
	assert.True(t, bob.IsAdmin())
	require.NotNil(t, byName["bob"].ProfilePic)
	assert.Equal(t, pic, *byName["bob"].ProfilePic)
	assert.Nil(t, byName["alice"].ProfilePic)
}

func testCreateAndGetReport(t *testing.T, s repository.Store) {
	ctx := context.Background()
	want := sampleReport("r1", base)
	require.NoError(t, s.CreateReport(ctx, want))

	got, err := s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assertSameReport(t, want, got)

	_, err = s.GetReport(ctx, "missing")
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)
}

func testCreateReportDuplicateID(t *testing.T, s repository.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateReport(ctx, sampleReport("r1", base)))

	dup := sampleReport("r1", base.Add(time.Hour))
	dup.Title = "Different"
	err := s.CreateReport(ctx, dup)
	assert.True(t, errors.Is(err, apperror.ErrConflict), "got %v", err)

	got, err := s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Pothole on r1", got.Title, "duplicate create must not overwrite")
}

func testListReportsNewestFirst(t *testing.T, s repository.Store) {
	ctx := context.Background()

	reports, err := s.ListReports(ctx)
	require.NoError(t, err)
	assert.Empty(t, reports)

	require.NoError(t, s.CreateReport(ctx, sampleReport("r-old", base)))
	require.NoError(t, s.CreateReport(ctx, sampleReport("r-new", base.Add(2*time.Hour))))
	require.NoError(t, s.CreateReport(ctx, sampleReport("r-mid", base.Add(time.Hour))))

	reports, err = s.ListReports(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, []string{"r-new", "r-mid", "r-old"}, reportIDs(reports))
}

func testUpdateReportIsolation(t *testing.T, s repository.Store) {
	ctx := context.Background()
	before := sampleReport("r1", base)
	require.NoError(t, s.CreateReport(ctx, before))

	require.NoError(t, s.UpdateReport(ctx, "r1", repository.StatusPatch(model.StatusVerified)))

	after, err := s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusVerified, after.Status)

	after.Status = before.Status
	assertSameReport(t, before, after)
}

func testUpdateReportNotFound(t *testing.T, s repository.Store) {
	err := s.UpdateReport(context.Background(), "missing", repository.StatusPatch(model.StatusDeclined))
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)
}

func testUpdateReportEmptyPatch(t *testing.T, s repository.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateReport(ctx, sampleReport("r1", base)))

	err := s.UpdateReport(ctx, "r1", repository.ReportPatch{})
	assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)
}

func testDeleteReport(t *testing.T, s repository.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateReport(ctx, sampleReport("r1", base)))
	require.NoError(t, s.CreateReport(ctx, sampleReport("r2", base)))

	require.NoError(t, s.DeleteReport(ctx, "r1"))

	_, err := s.GetReport(ctx, "r1")
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)

	reports, err := s.ListReports(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r2"}, reportIDs(reports))

	err = s.DeleteReport(ctx, "r1")
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "second delete: got %v", err)
}

func testActivitiesFilteredAndOrdered(t *testing.T, s repository.Store) {
	ctx := context.Background()

	entries := []model.Activity{
		{ID: "a1", Username: "alice", Type: model.ActivitySubmit, TargetTitle: "One", Date: base},
		{ID: "a2", Username: "bob", Type: model.ActivitySubmit, TargetTitle: "Two", Date: base.Add(time.Minute)},
		{ID: "a3", Username: "alice", Type: model.ActivityVerify, TargetTitle: "One", PointsChange: 50, Date: base.Add(2 * time.Minute)},
		{ID: "a4", Username: "alice", Type: model.ActivityDelete, TargetTitle: "Three", Date: base.Add(time.Second)},
	}
	for i := range entries {
		require.NoError(t, s.AppendActivity(ctx, &entries[i]))
	}

	got, err := s.ListActivities(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 3)

	ids := make([]string, len(got))
	for i, a := range got {
		assert.Equal(t, "alice", a.Username)
		ids[i] = a.ID
	}
	assert.Equal(t, []string{"a3", "a4", "a1"}, ids)
	assert.Equal(t, 50, got[0].PointsChange)
	assert.Equal(t, model.ActivityVerify, got[0].Type)

	none, err := s.ListActivities(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testActivitiesOnlyGrow(t *testing.T, s repository.Store) {
	ctx := context.Background()

	prev := 0
	for i, id := range []string{"x1", "x2", "x3"} {
		a := &model.Activity{ID: id, Username: "alice", Type: model.ActivitySubmit, TargetTitle: id, Date: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.AppendActivity(ctx, a))

		got, err := s.ListActivities(ctx, "alice")
		require.NoError(t, err)
		assert.Greater(t, len(got), prev)
		prev = len(got)
	}
}

func testAppendActivityDuplicateID(t *testing.T, s repository.Store) {
	ctx := context.Background()
	a := &model.Activity{ID: "dup", Username: "alice", Type: model.ActivitySubmit, TargetTitle: "first", Date: base}
	require.NoError(t, s.AppendActivity(ctx, a))

	again := *a
	again.TargetTitle = "second"
	err := s.AppendActivity(ctx, &again)
	assert.True(t, errors.Is(err, apperror.ErrConflict), "got %v", err)

	got, err := s.ListActivities(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].TargetTitle)
}

func reportIDs(reports []model.Report) []string {
	ids := make([]string, len(reports))
	for i, r := range reports {
		ids[i] = r.ID
	}
	return ids
}

func assertSameReport(t *testing.T, want, got *model.Report) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.User, got.User)
	assert.Equal(t, want.Category, got.Category)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Description, got.Description)
	assert.Equal(t, want.Location, got.Location)
	assert.True(t, want.Date.Equal(got.Date), "date %v != %v", got.Date, want.Date)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.Files, got.Files)
	assert.Equal(t, want.Thumbnail, got.Thumbnail)
}
