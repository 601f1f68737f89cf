package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/sakif/reportnavi/internal/model"
	"github.com/sakif/reportnavi/internal/repository"
)

type userRow struct {
	Username     string    `gorm:"primaryKey;size:64"`
	Role         string    `gorm:"size:16;not null"`
	Points       int       `gorm:"not null;default:0"`
	MemberSince  time.Time `gorm:"not null"`
	ProfilePic   *string
	PasswordHash string `gorm:"not null"`
}

func (userRow) TableName() string { return "users" }

func toUserRow(u *model.User) userRow {
	rec := u.Record()
	return userRow{
		Username:     rec.Username,
		Role:         rec.Role,
		Points:       rec.Points,
		MemberSince:  rec.MemberSince.UTC(),
		ProfilePic:   rec.ProfilePic,
		PasswordHash: rec.PasswordHash,
	}
}

func (r userRow) toModel() (*model.User, error) {
	return model.RestoreUser(model.UserRecord{
		Username:     r.Username,
		Role:         r.Role,
		Points:       r.Points,
		MemberSince:  r.MemberSince.UTC(),
		ProfilePic:   r.ProfilePic,
		PasswordHash: r.PasswordHash,
	})
}

// reportRow stores attachments as one jsonb array. The owner column is not
// called "user" because that is a reserved word in postgres.
type reportRow struct {
	ID          string         `gorm:"primaryKey;size:32"`
	Owner       string         `gorm:"size:64;not null;index"`
	Category    string         `gorm:"size:64;not null"`
	Title       string         `gorm:"not null"`
	Description string         `gorm:"not null"`
	Location    string         `gorm:"not null"`
	Date        time.Time      `gorm:"not null;index"`
	Status      string         `gorm:"size:16;not null;index"`
	Files       datatypes.JSON `gorm:"type:jsonb;not null"`
	Thumbnail   string         `gorm:"not null"`
}

func (reportRow) TableName() string { return "reports" }

func toReportRow(r *model.Report) (reportRow, error) {
	files := r.Files
	if files == nil {
		files = []model.ReportFile{}
	}
	raw, err := json.Marshal(files)
	if err != nil {
		return reportRow{}, fmt.Errorf("encoding attachments: %w", err)
	}
	return reportRow{
		ID:          r.ID,
		Owner:       r.User,
		Category:    r.Category,
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		Date:        r.Date.UTC(),
		Status:      string(r.Status),
		Files:       datatypes.JSON(raw),
		Thumbnail:   r.Thumbnail,
	}, nil
}

func (r reportRow) toModel() (model.Report, error) {
	var files []model.ReportFile
	if len(r.Files) > 0 {
		if err := json.Unmarshal(r.Files, &files); err != nil {
			return model.Report{}, fmt.Errorf("decoding attachments of %s: %w", r.ID, err)
		}
	}
	return model.Report{
		ID:          r.ID,
		User:        r.Owner,
		Category:    r.Category,
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		Date:        r.Date.UTC(),
		Status:      model.Status(r.Status),
		Files:       files,
		Thumbnail:   r.Thumbnail,
	}, nil
}

type activityRow struct {
	ID           string    `gorm:"primaryKey;size:32"`
	Username     string    `gorm:"size:64;not null;index:idx_activities_username_date,priority:1"`
	Kind         string    `gorm:"column:type;size:16;not null"`
	TargetTitle  string    `gorm:"not null"`
	PointsChange int       `gorm:"not null;default:0"`
	Date         time.Time `gorm:"not null;index:idx_activities_username_date,priority:2"`
}

func (activityRow) TableName() string { return "activities" }

func toActivityRow(a *model.Activity) activityRow {
	return activityRow{
		ID:           a.ID,
		Username:     a.Username,
		Kind:         string(a.Type),
		TargetTitle:  a.TargetTitle,
		PointsChange: a.PointsChange,
		Date:         a.Date.UTC(),
	}
}

func (r activityRow) toModel() model.Activity {
	return model.Activity{
		ID:           r.ID,
		Username:     r.Username,
		Type:         model.ActivityKind(r.Kind),
		TargetTitle:  r.TargetTitle,
		PointsChange: r.PointsChange,
		Date:         r.Date.UTC(),
	}
}

// patchColumns turns a patch into the column map passed to Updates. Only
// the set fields appear.
func patchColumns(p repository.ReportPatch) map[string]any {
	cols := make(map[string]any)
	if p.Status != nil {
		cols["status"] = string(*p.Status)
	}
	if p.Category != nil {
		cols["category"] = *p.Category
	}
	if p.Title != nil {
		cols["title"] = *p.Title
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.Location != nil {
		cols["location"] = *p.Location
	}
	if p.Thumbnail != nil {
		cols["thumbnail"] = *p.Thumbnail
	}
	return cols
}
