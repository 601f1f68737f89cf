package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sakif/reportnavi/internal/apperror"
	"github.com/sakif/reportnavi/internal/model"
	"github.com/sakif/reportnavi/internal/repository"
)

func (s *RemoteStore) ListReports(ctx context.Context) ([]model.Report, error) {
	var rows []reportRow
	if err := s.db.WithContext(ctx).Order("date DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, apperror.Backend(backendName, "listing reports", err)
	}

	reports := make([]model.Report, 0, len(rows))
	for _, row := range rows {
		r, err := row.toModel()
		if err != nil {
			return nil, apperror.Backend(backendName, "listing reports", err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func (s *RemoteStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	var row reportRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("report", id)
	}
	if err != nil {
		return nil, apperror.Backend(backendName, "getting report "+id, err)
	}

	r, err := row.toModel()
	if err != nil {
		return nil, apperror.Backend(backendName, "getting report "+id, err)
	}
	return &r, nil
}

// CreateReport inserts with ON CONFLICT DO NOTHING; no affected row means the
// id was taken.
func (s *RemoteStore) CreateReport(ctx context.Context, report *model.Report) error {
	if report.ID == "" {
		return apperror.ValidationFailed("id", "report ID is required")
	}
	row, err := toReportRow(report)
	if err != nil {
		return apperror.Backend(backendName, "creating report "+report.ID, err)
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		return apperror.Backend(backendName, "creating report "+report.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.Conflict("report", report.ID)
	}
	return nil
}

// UpdateReport writes only the patched columns in a single UPDATE.
func (s *RemoteStore) UpdateReport(ctx context.Context, id string, patch repository.ReportPatch) error {
	if patch.IsEmpty() {
		return apperror.ValidationFailed("patch", "report update has no fields")
	}

	result := s.db.WithContext(ctx).Model(&reportRow{}).Where("id = ?", id).Updates(patchColumns(patch))
	if result.Error != nil {
		return apperror.Backend(backendName, "updating report "+id, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("report", id)
	}
	return nil
}

func (s *RemoteStore) DeleteReport(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&reportRow{})
	if result.Error != nil {
		return apperror.Backend(backendName, "deleting report "+id, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("report", id)
	}
	return nil
}
