package sqlite

import (
	"context"

	"github.com/sakif/reportnavi/internal/apperror"
	"github.com/sakif/reportnavi/internal/model"
	"github.com/sakif/reportnavi/internal/repository"
)

// ListReports reads the whole collection and sorts it newest first.
func (s *EmbeddedStore) ListReports(ctx context.Context) ([]model.Report, error) {
	reports, err := scanAll[model.Report](ctx, s, reportsCollection)
	if err != nil {
		return nil, apperror.Backend(backendName, "listing reports", err)
	}
	model.SortReportsByRecency(reports)
	return reports, nil
}

func (s *EmbeddedStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	var r model.Report
	found, err := s.get(ctx, reportsCollection, id, &r)
	if err != nil {
		return nil, apperror.Backend(backendName, "getting report "+id, err)
	}
	if !found {
		return nil, apperror.NotFound("report", id)
	}
	return &r, nil
}

// CreateReport stores a new report. An existing report with the same ID is
// left alone and apperror.ErrConflict is returned.
func (s *EmbeddedStore) CreateReport(ctx context.Context, report *model.Report) error {
	if report.ID == "" {
		return apperror.ValidationFailed("id", "report ID is required")
	}
	inserted, err := s.insert(ctx, reportsCollection, report.ID, report)
	if err != nil {
		return apperror.Backend(backendName, "creating report "+report.ID, err)
	}
	if !inserted {
		return apperror.Conflict("report", report.ID)
	}
	return nil
}

// UpdateReport reads the stored document, applies patch and writes it back.
// The read and the write are separate steps.
func (s *EmbeddedStore) UpdateReport(ctx context.Context, id string, patch repository.ReportPatch) error {
	if patch.IsEmpty() {
		return apperror.ValidationFailed("patch", "report update has no fields")
	}

	r, err := s.GetReport(ctx, id)
	if err != nil {
		return err
	}
	patch.Apply(r)

	if err := s.put(ctx, reportsCollection, id, r); err != nil {
		return apperror.Backend(backendName, "updating report "+id, err)
	}
	return nil
}

func (s *EmbeddedStore) DeleteReport(ctx context.Context, id string) error {
	removed, err := s.remove(ctx, reportsCollection, id)
	if err != nil {
		return apperror.Backend(backendName, "deleting report "+id, err)
	}
	if !removed {
		return apperror.NotFound("report", id)
	}
	return nil
}
