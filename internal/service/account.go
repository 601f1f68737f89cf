package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sakif/reportnavi/internal/apperror"
	"github.com/sakif/reportnavi/internal/auth"
	"github.com/sakif/reportnavi/internal/model"
	"github.com/sakif/reportnavi/internal/repository"
)

const (
	MaxUsernameLength = 32
	MinPasswordLength = 6
	MaxAvatarLength   = 2 << 20 // data URLs for small images
	DefaultLeaderSize = 10
	MaxLeaderSize     = 100
)

// errBadCredentials is deliberately the same for an unknown username and a
// wrong password.
var errBadCredentials = apperror.ValidationFailed("credentials", "invalid username or password")

var errUsernameTaken = &apperror.AppError{Err: apperror.ErrConflict, Message: "username already exists", Field: "username"}

// AccountService handles registration, login and profile updates. It never
// changes a point balance; only ReportService does that.
type AccountService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	adminCode string
	logger    *slog.Logger
	now       func() time.Time
}

func NewAccountService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	adminCode string,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		adminCode: adminCode,
		logger:    logger,
		now:       time.Now,
	}
}

// AuthResult bundles the account with a freshly issued token so the handler
// can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a member account, or an admin account when adminCode
// matches the configured code. An empty configured code never matches.
func (s *AccountService) Register(ctx context.Context, username, password, adminCode string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if len(username) > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username", fmt.Sprintf("username must be %d characters or fewer", MaxUsernameLength))
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	_, err := s.users.GetUser(ctx, username)
	switch {
	case err == nil:
		return nil, errUsernameTaken
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/account: checking username: %w", err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	role := model.RoleMember
	if s.adminCode != "" && subtle.ConstantTimeCompare([]byte(adminCode), []byte(s.adminCode)) == 1 {
		role = model.RoleAdmin
	}

	// The lookup above is only a fast path: a concurrent registration can
	// pass it too, and CreateUser is what settles who gets the name.
	user := model.NewUser(username, role, hash, s.now().UTC())
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, errUsernameTaken
		}
		return nil, fmt.Errorf("service/account: saving %s: %w", username, err)
	}

	s.logger.Info("user registered", slog.String("username", username), slog.String("role", string(role)))
	return s.issue(user)
}

// Authenticate checks the password and issues a token.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errBadCredentials
	}

	user, err := s.users.GetUser(ctx, username)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("service/account: loading %s: %w", username, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("stored password hash is unreadable",
				slog.String("username", username),
				slog.String("error", err.Error()),
			)
		}
		return nil, errBadCredentials
	}

	s.logger.Info("user logged in", slog.String("username", username))
	return s.issue(user)
}

func (s *AccountService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.Username)
	if err != nil {
		return nil, fmt.Errorf("service/account: issuing token for %s: %w", user.Username, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *AccountService) Get(ctx context.Context, username string) (*model.User, error) {
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	user, err := s.users.GetUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service/account: fetching %s: %w", username, err)
	}
	return user, nil
}

// UpdateAvatar replaces the profile picture and returns the fresh account.
// An empty avatar clears it. The point balance is never written here.
func (s *AccountService) UpdateAvatar(ctx context.Context, username, avatar string) (*model.User, error) {
	avatar = strings.TrimSpace(avatar)
	if len(avatar) > MaxAvatarLength {
		return nil, apperror.ValidationFailed("profilePic", "profile picture is too large")
	}

	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	var pic *string
	if avatar != "" {
		pic = &avatar
	}
	if err := s.users.SetProfilePic(ctx, username, pic); err != nil {
		return nil, fmt.Errorf("service/account: saving avatar for %s: %w", username, err)
	}

	user, err := s.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	s.logger.Info("profile picture updated", slog.String("username", username))
	return user, nil
}

// Leaderboard returns up to limit users by points, highest first, ties by
// username.
func (s *AccountService) Leaderboard(ctx context.Context, limit int) ([]model.User, error) {
	if limit <= 0 {
		limit = DefaultLeaderSize
	}
	if limit > MaxLeaderSize {
		limit = MaxLeaderSize
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/account: listing users: %w", err)
	}
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].Points() != users[j].Points() {
			return users[i].Points() > users[j].Points()
		}
		return users[i].Username < users[j].Username
	})
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}
