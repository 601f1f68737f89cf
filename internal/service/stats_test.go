package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/reportnavi/internal/apperror"
	"github.com/sakif/reportnavi/internal/model"
)

func TestDashboard(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	u := model.NewUser("alice", model.RoleMember, "h", time.Now())
	require.NoError(t, u.Credit(100))
	require.NoError(t, store.UpsertUser(ctx, u))

	seed := []struct {
		id     string
		owner  string
		status model.Status
	}{
		{"1", "alice", model.StatusPending},
		{"2", "alice", model.StatusVerified},
		{"3", "alice", model.StatusResolved},
		{"4", "bob", model.StatusDeclined},
		{"5", "bob", model.StatusPending},
	}
	for _, s := range seed {
		require.NoError(t, store.CreateReport(ctx, &model.Report{ID: s.id, User: s.owner, Status: s.status, Date: time.Now()}))
	}

	d, err := NewStatsService(store).Dashboard(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, Stats{Total: 5, Pending: 2, Verified: 2, Resolved: 1, Declined: 1}, d.All)
	assert.Equal(t, Stats{Total: 3, Pending: 1, Verified: 2, Resolved: 1}, d.Mine)
	assert.Equal(t, 100, d.Points)
}

func TestDashboard_UnknownUser(t *testing.T) {
	_, err := NewStatsService(newFakeStore()).Dashboard(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
