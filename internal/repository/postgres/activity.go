package postgres

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/sakif/reportnavi/internal/apperror"
	"github.com/sakif/reportnavi/internal/model"
)

func (s *RemoteStore) ListActivities(ctx context.Context, username string) ([]model.Activity, error) {
	var rows []activityRow
	err := s.db.WithContext(ctx).
		Where("username = ?", username).
		Order("date DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, apperror.Backend(backendName, "listing activities", err)
	}

	out := make([]model.Activity, len(rows))
	for i, row := range rows {
		out[i] = row.toModel()
	}
	return out, nil
}

func (s *RemoteStore) AppendActivity(ctx context.Context, activity *model.Activity) error {
	if activity.ID == "" {
		return apperror.ValidationFailed("id", "activity ID is required")
	}
	row := toActivityRow(activity)
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		return apperror.Backend(backendName, "appending activity", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.Conflict("activity", activity.ID)
	}
	return nil
}
