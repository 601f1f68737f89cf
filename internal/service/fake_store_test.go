package service

import (
	"context"
	"sync"

	"github.com/sakif/reportnavi/internal/apperror"
	"github.com/sakif/reportnavi/internal/model"
	"github.com/sakif/reportnavi/internal/repository"
)

// fakeStore is an in-memory repository.Store. Set failOn[op] to make the
// named operation return that error; ops are the method names.
//
// It does not implement repository.TxRunner, so the workflow runs its
// writes as a plain sequence against it.
type fakeStore struct {
	mu         sync.Mutex
	users      map[string]model.UserRecord
	reports    map[string]model.Report
	activities []model.Activity
	failOn     map[string]error
	writes     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[string]model.UserRecord),
		reports: make(map[string]model.Report),
		failOn:  make(map[string]error),
	}
}

func (f *fakeStore) fail(op string) error {
	return f.failOn[op]
}

func (f *fakeStore) ListUsers(ctx context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListUsers"); err != nil {
		return nil, err
	}
	out := make([]model.User, 0, len(f.users))
	for _, rec := range f.users {
		u, _ := model.RestoreUser(rec)
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeStore) GetUser(ctx context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetUser"); err != nil {
		return nil, err
	}
	rec, ok := f.users[username]
	if !ok {
		return nil, apperror.NotFound("user", username)
	}
	return model.RestoreUser(rec)
}

func (f *fakeStore) CreateUser(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateUser"); err != nil {
		return err
	}
	if _, taken := f.users[user.Username]; taken {
		return apperror.Conflict("user", user.Username)
	}
	f.writes++
	f.users[user.Username] = user.Record()
	return nil
}

func (f *fakeStore) SetProfilePic(ctx context.Context, username string, pic *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SetProfilePic"); err != nil {
		return err
	}
	rec, ok := f.users[username]
	if !ok {
		return apperror.NotFound("user", username)
	}
	f.writes++
	rec.ProfilePic = pic
	f.users[username] = rec
	return nil
}

func (f *fakeStore) UpsertUser(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("UpsertUser"); err != nil {
		return err
	}
	f.writes++
	f.users[user.Username] = user.Record()
	return nil
}

func (f *fakeStore) ListReports(ctx context.Context) ([]model.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListReports"); err != nil {
		return nil, err
	}
	out := make([]model.Report, 0, len(f.reports))
	for _, r := range f.reports {
		out = append(out, r.Clone())
	}
	model.SortReportsByRecency(out)
	return out, nil
}

func (f *fakeStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetReport"); err != nil {
		return nil, err
	}
	r, ok := f.reports[id]
	if !ok {
		return nil, apperror.NotFound("report", id)
	}
	c := r.Clone()
	return &c, nil
}

func (f *fakeStore) CreateReport(ctx context.Context, report *model.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateReport"); err != nil {
		return err
	}
	if _, ok := f.reports[report.ID]; ok {
		return apperror.Conflict("report", report.ID)
	}
	f.writes++
	f.reports[report.ID] = report.Clone()
	return nil
}

func (f *fakeStore) UpdateReport(ctx context.Context, id string, patch repository.ReportPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("UpdateReport"); err != nil {
		return err
	}
	r, ok := f.reports[id]
	if !ok {
		return apperror.NotFound("report", id)
	}
	f.writes++
	patch.Apply(&r)
	f.reports[id] = r
	return nil
}

func (f *fakeStore) DeleteReport(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("DeleteReport"); err != nil {
		return err
	}
	if _, ok := f.reports[id]; !ok {
		return apperror.NotFound("report", id)
	}
	f.writes++
	delete(f.reports, id)
	return nil
}

func (f *fakeStore) ListActivities(ctx context.Context, username string) ([]model.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListActivities"); err != nil {
		return nil, err
	}
	out := make([]model.Activity, 0)
	for _, a := range f.activities {
		if a.Username == username {
			out = append(out, a)
		}
	}
	model.SortActivitiesByRecency(out)
	return out, nil
}

func (f *fakeStore) AppendActivity(ctx context.Context, activity *model.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("AppendActivity"); err != nil {
		return err
	}
	f.writes++
	f.activities = append(f.activities, *activity)
	return nil
}

func (f *fakeStore) IsRemote() bool { return false }
func (f *fakeStore) Close() error   { return nil }

// snapshot and restore let txStore roll back.
func (f *fakeStore) snapshot() (map[string]model.UserRecord, map[string]model.Report, []model.Activity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make(map[string]model.UserRecord, len(f.users))
	for k, v := range f.users {
		users[k] = v
	}
	reports := make(map[string]model.Report, len(f.reports))
	for k, v := range f.reports {
		reports[k] = v.Clone()
	}
	return users, reports, append([]model.Activity(nil), f.activities...)
}

func (f *fakeStore) restore(users map[string]model.UserRecord, reports map[string]model.Report, activities []model.Activity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users, f.reports, f.activities = users, reports, activities
}

// txStore adds all-or-nothing RunInTx on top of fakeStore.
type txStore struct {
	*fakeStore
	txCount int
}

var _ repository.TxRunner = (*txStore)(nil)

func (s *txStore) RunInTx(ctx context.Context, fn func(tx repository.Store) error) error {
	s.txCount++
	users, reports, activities := s.snapshot()
	if err := fn(s.fakeStore); err != nil {
		s.restore(users, reports, activities)
		return err
	}
	return nil
}
