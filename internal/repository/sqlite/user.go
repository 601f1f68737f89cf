package sqlite

import (
	"context"
	"sort"

	"github.com/sakif/reportnavi/internal/apperror"
	"github.com/sakif/reportnavi/internal/model"
)

// ListUsers returns every account ordered by username.
func (s *EmbeddedStore) ListUsers(ctx context.Context) ([]model.User, error) {
	records, err := scanAll[model.UserRecord](ctx, s, usersCollection)
	if err != nil {
		return nil, apperror.Backend(backendName, "listing users", err)
	}

	users := make([]model.User, 0, len(records))
	for _, rec := range records {
		u, err := model.RestoreUser(rec)
		if err != nil {
			return nil, apperror.Backend(backendName, "decoding user "+rec.Username, err)
		}
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// GetUser returns apperror.ErrNotFound if no account uses username.
func (s *EmbeddedStore) GetUser(ctx context.Context, username string) (*model.User, error) {
	var rec model.UserRecord
	found, err := s.get(ctx, usersCollection, username, &rec)
	if err != nil {
		return nil, apperror.Backend(backendName, "getting user "+username, err)
	}
	if !found {
		return nil, apperror.NotFound("user", username)
	}

	u, err := model.RestoreUser(rec)
	if err != nil {
		return nil, apperror.Backend(backendName, "decoding user "+username, err)
	}
	return u, nil
}

// CreateUser inserts a new account. A taken username is a conflict and the
// stored record is left alone.
func (s *EmbeddedStore) CreateUser(ctx context.Context, user *model.User) error {
	if user.Username == "" {
		return apperror.ValidationFailed("username", "username is required")
	}
	inserted, err := s.insert(ctx, usersCollection, user.Username, user.Record())
	if err != nil {
		return apperror.Backend(backendName, "creating user "+user.Username, err)
	}
	if !inserted {
		return apperror.Conflict("user", user.Username)
	}
	return nil
}

// SetProfilePic edits the stored document in place with one UPDATE, so a
// balance written since the caller's last read is kept.
func (s *EmbeddedStore) SetProfilePic(ctx context.Context, username string, pic *string) error {
	query := `UPDATE users SET value = json_remove(value, '$.profilePic') WHERE key = ?`
	args := []any{username}
	if pic != nil {
		query = `UPDATE users SET value = json_set(value, '$.profilePic', ?) WHERE key = ?`
		args = []any{*pic, username}
	}

	result, err := s.conn.ExecContext(ctx, query, args...)
	if isMissingCollection(err) {
		return apperror.NotFound("user", username)
	}
	if err != nil {
		return apperror.Backend(backendName, "updating profile picture for "+username, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apperror.Backend(backendName, "updating profile picture for "+username, err)
	}
	if n == 0 {
		return apperror.NotFound("user", username)
	}
	return nil
}

// UpsertUser stores the user under its username, overwriting any existing
// record for that username.
func (s *EmbeddedStore) UpsertUser(ctx context.Context, user *model.User) error {
	if user.Username == "" {
		return apperror.ValidationFailed("username", "username is required")
	}
	if err := s.put(ctx, usersCollection, user.Username, user.Record()); err != nil {
		return apperror.Backend(backendName, "saving user "+user.Username, err)
	}
	return nil
}
