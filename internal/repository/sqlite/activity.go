package sqlite

import (
	"context"

	"github.com/sakif/reportnavi/internal/apperror"
	"github.com/sakif/reportnavi/internal/model"
)

// ListActivities scans the ledger, keeps the entries for username and sorts
// them newest first.
func (s *EmbeddedStore) ListActivities(ctx context.Context, username string) ([]model.Activity, error) {
	all, err := scanAll[model.Activity](ctx, s, activitiesCollection)
	if err != nil {
		return nil, apperror.Backend(backendName, "listing activities", err)
	}

	out := make([]model.Activity, 0, len(all))
	for _, a := range all {
		if a.Username == username {
			out = append(out, a)
		}
	}
	model.SortActivitiesByRecency(out)
	return out, nil
}

// AppendActivity adds a ledger entry. Entries are never overwritten: an ID
// that is already present is a conflict.
func (s *EmbeddedStore) AppendActivity(ctx context.Context, activity *model.Activity) error {
	if activity.ID == "" {
		return apperror.ValidationFailed("id", "activity ID is required")
	}
	inserted, err := s.insert(ctx, activitiesCollection, activity.ID, activity)
	if err != nil {
		return apperror.Backend(backendName, "appending activity", err)
	}
	if !inserted {
		return apperror.Conflict("activity", activity.ID)
	}
	return nil
}
