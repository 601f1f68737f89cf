// Package repository defines the storage contract every backend implements.
//
// Two backends exist: a remote relational store (repository/postgres) and a
// local embedded key-value store (repository/sqlite). One of them is chosen
// when the process starts and injected as a Store; nothing above this
// package knows which one it got.
package repository

import (
	"context"

	"github.com/sakif/reportnavi/internal/model"
)

type UserRepository interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUser(ctx context.Context, username string) (*model.User, error)
	// CreateUser inserts a new account. It returns apperror.ErrConflict when
	// the username is already taken and never overwrites.
	CreateUser(ctx context.Context, user *model.User) error
	// UpsertUser inserts the user or overwrites the record with the same username.
	UpsertUser(ctx context.Context, user *model.User) error
	// SetProfilePic changes only the profile picture; nil clears it. Every
	// other field, the point balance included, is left as stored.
	SetProfilePic(ctx context.Context, username string, pic *string) error
}

type ReportRepository interface {
	// ListReports returns every report, newest first.
	ListReports(ctx context.Context) ([]model.Report, error)
	GetReport(ctx context.Context, id string) (*model.Report, error)
	CreateReport(ctx context.Context, report *model.Report) error
	// UpdateReport applies only the fields set in patch.
	UpdateReport(ctx context.Context, id string, patch ReportPatch) error
	DeleteReport(ctx context.Context, id string) error
}

// ActivityRepository is append-only: there is no update or delete.
type ActivityRepository interface {
	// ListActivities returns the entries whose subject is username, newest first.
	ListActivities(ctx context.Context, username string) ([]model.Activity, error)
	AppendActivity(ctx context.Context, activity *model.Activity) error
}

type Store interface {
	UserRepository
	ReportRepository
	ActivityRepository

	// IsRemote reports whether the remote backend is active. It exists for
	// diagnostic display; business logic must not branch on it.
	IsRemote() bool
	Close() error
}

// TxRunner is implemented by backends that can group several writes into one
// atomic unit. fn receives a Store bound to the transaction; returning an
// error rolls every write back.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx Store) error) error
}

// ReportPatch names the report fields to change. Nil fields stay untouched.
type ReportPatch struct {
	Status      *model.Status
	Category    *string
	Title       *string
	Description *string
	Location    *string
	Thumbnail   *string
}

func (p ReportPatch) IsEmpty() bool {
	return p.Status == nil && p.Category == nil && p.Title == nil &&
		p.Description == nil && p.Location == nil && p.Thumbnail == nil
}

// Apply copies the set fields onto r.
func (p ReportPatch) Apply(r *model.Report) {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Location != nil {
		r.Location = *p.Location
	}
	if p.Thumbnail != nil {
		r.Thumbnail = *p.Thumbnail
	}
}

// StatusPatch is the common single-field patch used by the workflow.
func StatusPatch(s model.Status) ReportPatch {
	return ReportPatch{Status: &s}
}
