package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/reportnavi/internal/apperror"
	"github.com/sakif/reportnavi/internal/ledger"
	"github.com/sakif/reportnavi/internal/metrics"
	"github.com/sakif/reportnavi/internal/model"
	"github.com/sakif/reportnavi/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestReportService(t *testing.T, store repository.Store) *ReportService {
	t.Helper()
	svc := NewReportService(store, ledger.New(store), metrics.New(), discardLogger())
	clock := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc
}

// seedUsers stores alice (member, the reporter) and bob (admin).
func seedUsers(t *testing.T, store repository.Store) {
	t.Helper()
	ctx := context.Background()
	joined := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpsertUser(ctx, model.NewUser("alice", model.RoleMember, "h", joined)))
	require.NoError(t, store.UpsertUser(ctx, model.NewUser("bob", model.RoleAdmin, "h", joined)))
}

func roadDraft() Draft {
	return Draft{
		Category:    "Road",
		Title:       "Pothole on Main St",
		Description: "Deep enough to damage a tyre",
		Location:    "Main St & 3rd",
		Files: []model.ReportFile{
			{Name: "hole.jpg", Type: "image/jpeg", URL: "data:image/jpeg;base64,AAAA"},
		},
	}
}

func submitAsAlice(t *testing.T, svc *ReportService) *model.Report {
	t.Helper()
	r, err := svc.Submit(context.Background(), "alice", roadDraft())
	require.NoError(t, err)
	return r
}

func pointsOf(t *testing.T, store repository.Store, username string) int {
	t.Helper()
	u, err := store.GetUser(context.Background(), username)
	require.NoError(t, err)
	return u.Points()
}

func activitiesOf(t *testing.T, store repository.Store, username string) []model.Activity {
	t.Helper()
	a, err := store.ListActivities(context.Background(), username)
	require.NoError(t, err)
	return a
}

// =========================================================================
// SUBMIT
// =========================================================================

func TestSubmit_StoresPendingReportAndLedgerEntry(t *testing.T) {
	store := newFakeStore()
	seedUsers(t, store)
	svc := newTestReportService(t, store)

	r := submitAsAlice(t, svc)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, model.StatusPending, r.Status)
	assert.Len(t, r.Files, 1)
	assert.Equal(t, "alice", r.User)
	assert.False(t, r.Date.IsZero())
	assert.Equal(t, "data:image/jpeg;base64,AAAA", r.Thumbnail)

	stored, err := store.GetReport(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)

	acts := activitiesOf(t, store, "alice")
	require.Len(t, acts, 1)
	assert.Equal(t, model.ActivitySubmit, acts[0].Type)
	assert.Equal(t, 0, acts[0].PointsChange)
	assert.Equal(t, "Pothole on Main St", acts[0].TargetTitle)
}

func TestSubmit_Thumbnail(t *testing.T) {
	video := model.ReportFile{Name: "clip.mp4", Type: "video/mp4", URL: "https://cdn.example.com/clip.mp4"}
	image := model.ReportFile{Name: "b.png", Type: "image/png", URL: "https://cdn.example.com/b.png"}

	tests := []struct {
		name  string
		files []model.ReportFile
		given string
		want  string
	}{
		{"video only uses placeholder", []model.ReportFile{video}, "", VideoThumbnail},
		{"first image wins", []model.ReportFile{video, image}, "", image.URL},
		{"explicit thumbnail kept", []model.ReportFile{image}, "https://cdn.example.com/t.png", "https://cdn.example.com/t.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestReportService(t, newFakeStore())
			d := roadDraft()
			d.Files = tt.files
			d.Thumbnail = tt.given

			r, err := svc.Submit(context.Background(), "alice", d)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Thumbnail)
		})
	}
}

func TestSubmit_ValidationWritesNothing(t *testing.T) {
	tests := []struct {
		name   string
		owner  string
		mutate func(d *Draft)
		field  string
	}{
		{"no owner", "", func(d *Draft) {}, "user"},
		{"empty category", "alice", func(d *Draft) { d.Category = "" }, "category"},
		{"blank category", "alice", func(d *Draft) { d.Category = "   " }, "category"},
		{"no attachments", "alice", func(d *Draft) { d.Files = nil }, "files"},
		{"attachment without content", "alice", func(d *Draft) { d.Files[0].URL = "" }, "files"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			svc := newTestReportService(t, store)
			d := roadDraft()
			tt.mutate(&d)

			_, err := svc.Submit(context.Background(), tt.owner, d)

			require.ErrorIs(t, err, apperror.ErrValidation)
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Field)
			assert.Zero(t, store.writes, "validation failure must not write")
		})
	}
}

func TestSubmit_DoesNotAliasDraftFiles(t *testing.T) {
	svc := newTestReportService(t, newFakeStore())
	d := roadDraft()

	r, err := svc.Submit(context.Background(), "alice", d)
	require.NoError(t, err)
	d.Files[0].Name = "changed"
	assert.Equal(t, "hole.jpg", r.Files[0].Name)
}

func TestSubmit_BackendError(t *testing.T) {
	store := newFakeStore()
	store.failOn["CreateReport"] = apperror.Backend("remote", "creating report", errors.New("connection refused"))
	svc := newTestReportService(t, store)

	_, err := svc.Submit(context.Background(), "alice", roadDraft())
	assert.ErrorIs(t, err, apperror.ErrBackend)
	assert.Empty(t, store.activities, "no ledger entry for a report that was never stored")
}

// =========================================================================
// TRANSITION
// =========================================================================

func TestTransition_VerifyAwardsOwner(t *testing.T) {
	store := newFakeStore()
	seedUsers(t, store)
	svc := newTestReportService(t, store)
	r := submitAsAlice(t, svc)

	updated, err := svc.Transition(context.Background(), r, "bob", model.StatusVerified)
	require.NoError(t, err)

	assert.Equal(t, model.StatusVerified, updated.Status)
	assert.Equal(t, model.StatusPending, r.Status, "caller's snapshot must not be modified")

	stored, err := store.GetReport(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusVerified, stored.Status)

	assert.Equal(t, VerifyAward, pointsOf(t, store, "alice"))
	assert.Equal(t, 0, pointsOf(t, store, "bob"))

	acts := activitiesOf(t, store, "alice")
	require.Len(t, acts, 2)
	assert.Equal(t, model.ActivityVerify, acts[0].Type)
	assert.Equal(t, VerifyAward, acts[0].PointsChange)
	assert.Equal(t, "alice", acts[0].Username)
	assert.Empty(t, activitiesOf(t, store, "bob"), "the verifier gets no ledger entry")
}

func TestTransition_OwnerIsRejected(t *testing.T) {
	for _, target := range []model.Status{model.StatusVerified, model.StatusDeclined, model.StatusResolved, model.StatusPending, "Archived"} {
		t.Run(string(target), func(t *testing.T) {
			store := newFakeStore()
			seedUsers(t, store)
			svc := newTestReportService(t, store)
			r := submitAsAlice(t, svc)
			writesBefore := store.writes

			_, err := svc.Transition(context.Background(), r, "alice", target)

			require.ErrorIs(t, err, apperror.ErrForbidden)
			assert.Equal(t, writesBefore, store.writes)
			stored, err := store.GetReport(context.Background(), r.ID)
			require.NoError(t, err)
			assert.Equal(t, model.StatusPending, stored.Status)
			assert.Equal(t, 0, pointsOf(t, store, "alice"))
		})
	}
}

func TestTransition_OwnerRejectedEvenWhenVerified(t *testing.T) {
	store := newFakeStore()
	seedUsers(t, store)
	svc := newTestReportService(t, store)
	r := submitAsAlice(t, svc)

	verified, err := svc.Transition(context.Background(), r, "bob", model.StatusVerified)
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), verified, "alice", model.StatusResolved)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestTransition_UnknownStatus(t *testing.T) {
	store := newFakeStore()
	seedUsers(t, store)
	svc := newTestReportService(t, store)
	r := submitAsAlice(t, svc)
	writesBefore := store.writes

	_, err := svc.Transition(context.Background(), r, "bob", "Archived")

	require.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, writesBefore, store.writes)
}

func TestTransition_StateGraph(t *testing.T) {
	all := []model.Status{model.StatusPending, model.StatusVerified, model.StatusResolved, model.StatusDeclined}

	for _, from := range all {
		for _, to := range all {
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				store := newFakeStore()
				seedUsers(t, store)
				svc := newTestReportService(t, store)
				r := &model.Report{ID: "r1", User: "alice", Category: "Road", Title: "T", Status: from, Date: time.Now()}
				require.NoError(t, store.CreateReport(context.Background(), r))

				_, err := svc.Transition(context.Background(), r, "bob", to)

				if from.CanTransitionTo(to) {
					assert.NoError(t, err)
					return
				}
				assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
				stored, _ := store.GetReport(context.Background(), "r1")
				assert.Equal(t, from, stored.Status)
			})
		}
	}
}

func TestTransition_ResolveThenDecline(t *testing.T) {
	store := newFakeStore()
	seedUsers(t, store)
	svc := newTestReportService(t, store)
	ctx := context.Background()

	verified, err := svc.Transition(ctx, submitAsAlice(t, svc), "bob", model.StatusVerified)
	require.NoError(t, err)

	resolved, err := svc.Transition(ctx, verified, "bob", model.StatusResolved)
	require.NoError(t, err)
	assert.Equal(t, model.StatusResolved, resolved.Status)

	acts := activitiesOf(t, store, "alice")
	require.NotEmpty(t, acts)
	assert.Equal(t, model.ActivityResolve, acts[0].Type)
	assert.Equal(t, 0, acts[0].PointsChange)
	assert.Equal(t, VerifyAward, pointsOf(t, store, "alice"), "resolve awards nothing")

	_, err = svc.Transition(ctx, resolved, "bob", model.StatusDeclined)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
}

func TestTransition_DeclineAwardsNothing(t *testing.T) {
	store := newFakeStore()
	seedUsers(t, store)
	svc := newTestReportService(t, store)

	_, err := svc.Transition(context.Background(), submitAsAlice(t, svc), "bob", model.StatusDeclined)
	require.NoError(t, err)

	assert.Equal(t, 0, pointsOf(t, store, "alice"))
	acts := activitiesOf(t, store, "alice")
	assert.Equal(t, model.ActivityDecline, acts[0].Type)
	assert.Equal(t, 0, acts[0].PointsChange)
}

func TestTransition_VerifyMissingOwnerWritesNothing(t *testing.T) {
	store := newFakeStore()
	svc := newTestReportService(t, store)
	r := submitAsAlice(t, svc) // alice has no account record
	writesBefore := store.writes

	_, err := svc.Transition(context.Background(), r, "bob", model.StatusVerified)

	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Equal(t, writesBefore, store.writes)
}

func TestTransition_EmptyActor(t *testing.T) {
	svc := newTestReportService(t, newFakeStore())
	_, err := svc.Transition(context.Background(), &model.Report{ID: "r", User: "alice", Status: model.StatusPending}, " ", model.StatusVerified)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

// Two verifiers holding the same Pending snapshot both succeed and the
// owner is credited twice.
func TestTransition_StaleSnapshotDoubleAward(t *testing.T) {
	store := newFakeStore()
	seedUsers(t, store)
	require.NoError(t, store.UpsertUser(context.Background(), model.NewUser("carol", model.RoleAdmin, "h", time.Now())))
	svc := newTestReportService(t, store)
	snapshot := submitAsAlice(t, svc)

	_, err := svc.Transition(context.Background(), snapshot, "bob", model.StatusVerified)
	require.NoError(t, err)
	_, err = svc.Transition(context.Background(), snapshot, "carol", model.StatusVerified)
	require.NoError(t, err)

	assert.Equal(t, 2*VerifyAward, pointsOf(t, store, "alice"))
	verifies := 0
	for _, a := range activitiesOf(t, store, "alice") {
		if a.Type == model.ActivityVerify {
			verifies++
		}
	}
	assert.Equal(t, 2, verifies)
}

// Without transactions a failure after the status write leaves the status
// and the credit in place.
func TestTransition_PartialFailureWithoutTx(t *testing.T) {
	store := newFakeStore()
	seedUsers(t, store)
	svc := newTestReportService(t, store)
	r := submitAsAlice(t, svc)
	store.failOn["AppendActivity"] = apperror.Backend("local", "appending activity", errors.New("quota exceeded"))

	_, err := svc.Transition(context.Background(), r, "bob", model.StatusVerified)

	require.ErrorIs(t, err, apperror.ErrBackend)
	stored, err := store.GetReport(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusVerified, stored.Status)
	assert.Equal(t, VerifyAward, pointsOf(t, store, "alice"))
	assert.Len(t, store.activities, 1, "only the submit entry")
}

func TestTransition_UsesTransactionWhenAvailable(t *testing.T) {
	store := &txStore{fakeStore: newFakeStore()}
	seedUsers(t, store)
	svc := newTestReportService(t, store)
	r := submitAsAlice(t, svc)
	store.failOn["AppendActivity"] = apperror.Backend("remote", "appending activity", errors.New("timeout"))

	_, err := svc.Transition(context.Background(), r, "bob", model.StatusVerified)

	require.ErrorIs(t, err, apperror.ErrBackend)
	assert.Equal(t, 1, store.txCount)
	stored, err := store.GetReport(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status, "status write rolled back")
	assert.Equal(t, 0, pointsOf(t, store, "alice"), "credit rolled back")
}

func TestTransition_MetricsRecorded(t *testing.T) {
	store := newFakeStore()
	seedUsers(t, store)
	m := metrics.New()
	svc := NewReportService(store, ledger.New(store), m, discardLogger())
	r := submitAsAlice(t, svc)

	_, _ = svc.Transition(context.Background(), r, "alice", model.StatusVerified)
	_, err := svc.Transition(context.Background(), r, "bob", model.StatusVerified)
	require.NoError(t, err)

	out, err := testutil.GatherAndCount(m.Registry(), "reportnavi_report_transitions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, out, "one series for forbidden, one for ok")
}

// =========================================================================
// REMOVE
// =========================================================================

func TestRemove_OwnerDeletesPending(t *testing.T) {
	store := newFakeStore()
	svc := newTestReportService(t, store)
	r := submitAsAlice(t, svc)

	require.NoError(t, svc.Remove(context.Background(), r, "alice"))

	_, err := store.GetReport(context.Background(), r.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	acts := activitiesOf(t, store, "alice")
	require.Len(t, acts, 2)
	assert.Equal(t, model.ActivityDelete, acts[0].Type)
	assert.Equal(t, r.Title, acts[0].TargetTitle)
}

func TestRemove_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		status  model.Status
		actor   string
		wantErr error
	}{
		{"non-owner", model.StatusPending, "bob", apperror.ErrForbidden},
		{"verified", model.StatusVerified, "alice", apperror.ErrInvalidState},
		{"resolved", model.StatusResolved, "alice", apperror.ErrInvalidState},
		{"declined", model.StatusDeclined, "alice", apperror.ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			svc := newTestReportService(t, store)
			r := &model.Report{ID: "r1", User: "alice", Category: "Road", Title: "T", Status: tt.status, Date: time.Now()}
			require.NoError(t, store.CreateReport(context.Background(), r))

			err := svc.Remove(context.Background(), r, tt.actor)

			assert.ErrorIs(t, err, tt.wantErr)
			_, err = store.GetReport(context.Background(), "r1")
			assert.NoError(t, err, "report must still be retrievable")
			assert.Empty(t, store.activities)
		})
	}
}

func TestRemove_LedgerWrittenBeforeDelete(t *testing.T) {
	store := newFakeStore()
	svc := newTestReportService(t, store)
	r := submitAsAlice(t, svc)
	store.failOn["DeleteReport"] = apperror.Backend("local", "deleting report", errors.New("locked"))

	err := svc.Remove(context.Background(), r, "alice")

	require.ErrorIs(t, err, apperror.ErrBackend)
	acts := activitiesOf(t, store, "alice")
	assert.Equal(t, model.ActivityDelete, acts[0].Type)
	_, err = store.GetReport(context.Background(), r.ID)
	assert.NoError(t, err)
}

// =========================================================================
// READS AND BY-ID HELPERS
// =========================================================================

func TestListByOwner(t *testing.T) {
	store := newFakeStore()
	svc := newTestReportService(t, store)
	ctx := context.Background()

	first := submitAsAlice(t, svc)
	_, err := svc.Submit(ctx, "bob", roadDraft())
	require.NoError(t, err)
	second := submitAsAlice(t, svc)

	mine, err := svc.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)
	assert.Equal(t, first.ID, mine[1].ID)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestTransitionByID_ReadsCurrentState(t *testing.T) {
	store := newFakeStore()
	seedUsers(t, store)
	svc := newTestReportService(t, store)
	ctx := context.Background()
	r := submitAsAlice(t, svc)

	_, err := svc.TransitionByID(ctx, r.ID, "bob", model.StatusVerified)
	require.NoError(t, err)

	// A fresh read sees Verified, so a second verify is refused.
	_, err = svc.TransitionByID(ctx, r.ID, "bob", model.StatusVerified)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
	assert.Equal(t, VerifyAward, pointsOf(t, store, "alice"))

	_, err = svc.TransitionByID(ctx, "missing", "bob", model.StatusVerified)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestRemoveByID(t *testing.T) {
	store := newFakeStore()
	svc := newTestReportService(t, store)
	r := submitAsAlice(t, svc)

	assert.ErrorIs(t, svc.RemoveByID(context.Background(), r.ID, "bob"), apperror.ErrForbidden)
	assert.NoError(t, svc.RemoveByID(context.Background(), r.ID, "alice"))
	assert.ErrorIs(t, svc.RemoveByID(context.Background(), r.ID, "alice"), apperror.ErrNotFound)
}

func TestLedgerOnlyGrows(t *testing.T) {
	store := newFakeStore()
	seedUsers(t, store)
	svc := newTestReportService(t, store)
	ctx := context.Background()

	sizes := []int{}
	record := func() { sizes = append(sizes, len(activitiesOf(t, store, "alice"))) }

	r := submitAsAlice(t, svc)
	record()
	v, err := svc.Transition(ctx, r, "bob", model.StatusVerified)
	require.NoError(t, err)
	record()
	_, err = svc.Transition(ctx, v, "bob", model.StatusResolved)
	require.NoError(t, err)
	record()
	other := submitAsAlice(t, svc)
	require.NoError(t, svc.Remove(ctx, other, "alice"))
	record()

	for i := 1; i < len(sizes); i++ {
		assert.Greater(t, sizes[i], sizes[i-1])
	}
}
