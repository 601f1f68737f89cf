package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sakif/reportnavi/internal/apperror"
	"github.com/sakif/reportnavi/internal/model"
)

func (s *RemoteStore) ListUsers(ctx context.Context) ([]model.User, error) {
	var rows []userRow
	if err := s.db.WithContext(ctx).Order("username ASC").Find(&rows).Error; err != nil {
		return nil, apperror.Backend(backendName, "listing users", err)
	}

	users := make([]model.User, 0, len(rows))
	for _, row := range rows {
		u, err := row.toModel()
		if err != nil {
			return nil, apperror.Backend(backendName, "decoding user "+row.Username, err)
		}
		users = append(users, *u)
	}
	return users, nil
}

func (s *RemoteStore) GetUser(ctx context.Context, username string) (*model.User, error) {
	var row userRow
	err := s.db.WithContext(ctx).First(&row, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("user", username)
	}
	if err != nil {
		return nil, apperror.Backend(backendName, "getting user "+username, err)
	}

	u, err := row.toModel()
	if err != nil {
		return nil, apperror.Backend(backendName, "decoding user "+username, err)
	}
	return u, nil
}

// CreateUser inserts with ON CONFLICT DO NOTHING; no affected row means the
// username was taken.
func (s *RemoteStore) CreateUser(ctx context.Context, user *model.User) error {
	if user.Username == "" {
		return apperror.ValidationFailed("username", "username is required")
	}
	row := toUserRow(user)
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		return apperror.Backend(backendName, "creating user "+user.Username, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.Conflict("user", user.Username)
	}
	return nil
}

// SetProfilePic updates the profile_pic column alone.
func (s *RemoteStore) SetProfilePic(ctx context.Context, username string, pic *string) error {
	result := s.db.WithContext(ctx).Model(&userRow{}).
		Where("username = ?", username).
		Update("profile_pic", pic)
	if result.Error != nil {
		return apperror.Backend(backendName, "updating profile picture for "+username, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("user", username)
	}
	return nil
}

// UpsertUser inserts the user, or overwrites every column of the row with the
// same username.
func (s *RemoteStore) UpsertUser(ctx context.Context, user *model.User) error {
	if user.Username == "" {
		return apperror.ValidationFailed("username", "username is required")
	}
	row := toUserRow(user)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return apperror.Backend(backendName, "saving user "+user.Username, err)
	}
	return nil
}
