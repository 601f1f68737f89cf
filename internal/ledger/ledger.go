// Package ledger is the append-only activity log. Entries are written once
// and never changed or removed; the only reads are per-user histories.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/reportnavi/internal/apperror"
	"github.com/sakif/reportnavi/internal/model"
	"github.com/sakif/reportnavi/internal/repository"
)

// Entry is what a caller supplies. ID and Date are assigned by Record.
type Entry struct {
	Username     string
	Kind         model.ActivityKind
	TargetTitle  string
	PointsChange int
}

type Ledger struct {
	repo repository.ActivityRepository
	now  func() time.Time
}

func New(repo repository.ActivityRepository) *Ledger {
	return &Ledger{repo: repo, now: time.Now}
}

// WithRepository returns a ledger writing through repo, typically a store
// bound to a transaction.
func (l *Ledger) WithRepository(repo repository.ActivityRepository) *Ledger {
	return &Ledger{repo: repo, now: l.now}
}

func (e Entry) validate() error {
	if strings.TrimSpace(e.Username) == "" {
		return apperror.ValidationFailed("username", "activity username is required")
	}
	if !e.Kind.Valid() {
		return apperror.ValidationFailed("type", fmt.Sprintf("unknown activity type %q", e.Kind))
	}
	if e.PointsChange < 0 {
		return apperror.ValidationFailed("pointsChange", "points change cannot be negative")
	}
	if e.PointsChange != 0 && e.Kind != model.ActivityVerify {
		return apperror.ValidationFailed("pointsChange", fmt.Sprintf("%s entries carry no points", e.Kind))
	}
	return nil
}

// Record validates e, stamps it and appends it.
func (l *Ledger) Record(ctx context.Context, e Entry) (*model.Activity, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	a := &model.Activity{
		ID:           xid.New().String(),
		Username:     e.Username,
		Type:         e.Kind,
		TargetTitle:  e.TargetTitle,
		PointsChange: e.PointsChange,
		Date:         l.now().UTC(),
	}
	if err := l.repo.AppendActivity(ctx, a); err != nil {
		return nil, fmt.Errorf("recording %s activity: %w", e.Kind, err)
	}
	return a, nil
}

// History returns username's entries, most recent first.
func (l *Ledger) History(ctx context.Context, username string) ([]model.Activity, error) {
	entries, err := l.repo.ListActivities(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("reading activity history: %w", err)
	}
	model.SortActivitiesByRecency(entries)
	return entries, nil
}
