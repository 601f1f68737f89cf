// Package service holds the business rules. Handlers call services, services
// call a repository.Store; nothing here knows which backend is behind it.
//
//	Handler (HTTP) → Service (rules, ordering of writes) → Store (remote or local)
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/reportnavi/internal/apperror"
	"github.com/sakif/reportnavi/internal/ledger"
	"github.com/sakif/reportnavi/internal/metrics"
	"github.com/sakif/reportnavi/internal/model"
	"github.com/sakif/reportnavi/internal/repository"
)

// VerifyAward is credited to a report's owner when someone else verifies it.
const VerifyAward = 50

// VideoThumbnail is shown for reports whose attachments contain no image.
const VideoThumbnail = "https://images.unsplash.com/photo-1516280440614-37939bbacd81?q=80&w=500&auto=format&fit=crop"

const MaxTitleLength = 200

// Draft is what a user fills in before submitting. Thumbnail is optional;
// when empty it is derived from the attachments.
type Draft struct {
	Category    string
	Title       string
	Description string
	Location    string
	Files       []model.ReportFile
	Thumbnail   string
}

// ReportService is the workflow engine: it moves reports through their
// lifecycle, awards points and writes the activity ledger.
type ReportService struct {
	store   repository.Store
	ledger  *ledger.Ledger
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewReportService(store repository.Store, l *ledger.Ledger, m *metrics.Metrics, logger *slog.Logger) *ReportService {
	return &ReportService{
		store:   store,
		ledger:  l,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

func (d *Draft) normalize() {
	d.Category = strings.TrimSpace(d.Category)
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Location = strings.TrimSpace(d.Location)
	d.Thumbnail = strings.TrimSpace(d.Thumbnail)
}

func (d *Draft) validate() error {
	if d.Category == "" {
		return apperror.ValidationFailed("category", "category is required")
	}
	if len(d.Title) > MaxTitleLength {
		return apperror.ValidationFailed("title", fmt.Sprintf("title must be %d characters or fewer", MaxTitleLength))
	}
	if len(d.Files) == 0 {
		return apperror.ValidationFailed("files", "at least one photo or video is required")
	}
	for i, f := range d.Files {
		if strings.TrimSpace(f.URL) == "" {
			return apperror.ValidationFailed("files", fmt.Sprintf("attachment %d has no content", i+1))
		}
	}
	return nil
}

// thumbnailFor picks the first image attachment, falling back to the video
// placeholder.
func thumbnailFor(files []model.ReportFile) string {
	for _, f := range files {
		if f.IsImage() {
			return f.URL
		}
	}
	return VideoThumbnail
}

// Submit validates the draft, stores a Pending report owned by owner and
// records a submit entry. Nothing is written if validation fails.
func (s *ReportService) Submit(ctx context.Context, owner string, draft Draft) (report *model.Report, err error) {
	defer func() { s.metrics.ObserveSubmission(err) }()

	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, apperror.ValidationFailed("user", "a signed-in user is required to submit a report")
	}
	draft.normalize()
	if err := draft.validate(); err != nil {
		return nil, err
	}

	files := make([]model.ReportFile, len(draft.Files))
	copy(files, draft.Files)

	thumb := draft.Thumbnail
	if thumb == "" {
		thumb = thumbnailFor(files)
	}

	r := &model.Report{
		ID:          xid.New().String(),
		User:        owner,
		Category:    draft.Category,
		Title:       draft.Title,
		Description: draft.Description,
		Location:    draft.Location,
		Date:        s.now().UTC(),
		Status:      model.StatusPending,
		Files:       files,
		Thumbnail:   thumb,
	}

	if err := s.store.CreateReport(ctx, r); err != nil {
		return nil, fmt.Errorf("service/report: creating report: %w", err)
	}
	if _, err := s.ledger.Record(ctx, ledger.Entry{
		Username:    owner,
		Kind:        model.ActivitySubmit,
		TargetTitle: r.Title,
	}); err != nil {
		return nil, fmt.Errorf("service/report: report %s stored but ledger write failed: %w", r.ID, err)
	}

	s.logger.Info("report submitted",
		slog.String("reportID", r.ID),
		slog.String("user", owner),
		slog.String("category", r.Category),
		slog.Int("files", len(files)),
	)
	return r, nil
}

// Transition moves report to target on behalf of actor and returns the
// updated copy. report is the caller's snapshot and is not modified.
//
// Checks run before any write: the actor must not own the report, target
// must be a known status, and it must be reachable from the snapshot's
// status. Ownership is checked first, so an owner is refused whatever the
// target. For Verified the owner's account is loaded up front too.
//
// The writes (status, then the owner's balance for Verified, then the
// ledger entry) run in one transaction when the store supports it, and as
// an ordered sequence otherwise. In the second case a failure part-way
// leaves the earlier writes in place.
//
// The status check uses the snapshot, not a fresh read: two verifiers
// holding the same Pending snapshot both succeed and the owner is credited
// twice.
func (s *ReportService) Transition(ctx context.Context, report *model.Report, actor string, target model.Status) (updated *model.Report, err error) {
	defer func() { s.metrics.ObserveTransition(string(target), err) }()

	if report == nil {
		return nil, apperror.ValidationFailed("report", "report is required")
	}
	if strings.TrimSpace(actor) == "" {
		return nil, apperror.ValidationFailed("user", "a signed-in user is required")
	}
	if report.IsOwnedBy(actor) {
		return nil, apperror.Forbidden("you cannot change the status of your own report")
	}
	if !target.Valid() {
		return nil, apperror.ValidationFailed("status", "unknown status "+string(target))
	}
	if !report.Status.CanTransitionTo(target) {
		return nil, apperror.InvalidTransition(string(report.Status), string(target))
	}
	kind, _ := model.ActivityForStatus(target)

	var owner *model.User
	award := 0
	if target == model.StatusVerified {
		owner, err = s.store.GetUser(ctx, report.User)
		if err != nil {
			return nil, fmt.Errorf("service/report: loading owner %s: %w", report.User, err)
		}
		award = VerifyAward
	}

	apply := func(store repository.Store, l *ledger.Ledger) error {
		if err := store.UpdateReport(ctx, report.ID, repository.StatusPatch(target)); err != nil {
			return fmt.Errorf("updating status: %w", err)
		}
		if owner != nil {
			if err := owner.Credit(award); err != nil {
				return err
			}
			if err := store.UpsertUser(ctx, owner); err != nil {
				return fmt.Errorf("crediting %s: %w", owner.Username, err)
			}
		}
		if _, err := l.Record(ctx, ledger.Entry{
			Username:     report.User,
			Kind:         kind,
			TargetTitle:  report.Title,
			PointsChange: award,
		}); err != nil {
			return err
		}
		return nil
	}

	if tx, ok := s.store.(repository.TxRunner); ok {
		err = tx.RunInTx(ctx, func(txStore repository.Store) error {
			return apply(txStore, s.ledger.WithRepository(txStore))
		})
	} else {
		err = apply(s.store, s.ledger)
	}
	if err != nil {
		s.logger.Error("report transition failed",
			slog.String("reportID", report.ID),
			slog.String("target", string(target)),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/report: moving %s to %s: %w", report.ID, target, err)
	}

	s.metrics.AddPointsAwarded(award)
	s.logger.Info("report transitioned",
		slog.String("reportID", report.ID),
		slog.String("from", string(report.Status)),
		slog.String("to", string(target)),
		slog.String("actor", actor),
		slog.Int("award", award),
	)

	out := report.Clone()
	out.Status = target
	return &out, nil
}

// Remove deletes a Pending report on behalf of its owner. The delete entry
// is written to the ledger before the report itself is removed.
func (s *ReportService) Remove(ctx context.Context, report *model.Report, actor string) (err error) {
	defer func() { s.metrics.ObserveRemoval(err) }()

	if report == nil {
		return apperror.ValidationFailed("report", "report is required")
	}
	if !report.IsOwnedBy(actor) {
		return apperror.Forbidden("only the owner can delete a report")
	}
	if report.Status != model.StatusPending {
		return apperror.InvalidState(fmt.Sprintf("only pending reports can be deleted; this one is %s", report.Status))
	}

	if _, err := s.ledger.Record(ctx, ledger.Entry{
		Username:    actor,
		Kind:        model.ActivityDelete,
		TargetTitle: report.Title,
	}); err != nil {
		return fmt.Errorf("service/report: recording delete of %s: %w", report.ID, err)
	}
	if err := s.store.DeleteReport(ctx, report.ID); err != nil {
		return fmt.Errorf("service/report: deleting %s: %w", report.ID, err)
	}

	s.logger.Info("report deleted", slog.String("reportID", report.ID), slog.String("user", actor))
	return nil
}

// List returns every report, newest first.
func (s *ReportService) List(ctx context.Context) ([]model.Report, error) {
	reports, err := s.store.ListReports(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/report: listing: %w", err)
	}
	return reports, nil
}

// ListByOwner returns owner's reports, newest first.
func (s *ReportService) ListByOwner(ctx context.Context, owner string) ([]model.Report, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	mine := make([]model.Report, 0)
	for _, r := range all {
		if r.IsOwnedBy(owner) {
			mine = append(mine, r)
		}
	}
	return mine, nil
}

func (s *ReportService) Get(ctx context.Context, id string) (*model.Report, error) {
	r, err := s.store.GetReport(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/report: getting %s: %w", id, err)
	}
	return r, nil
}

// TransitionByID reads the current report and transitions it.
func (s *ReportService) TransitionByID(ctx context.Context, id, actor string, target model.Status) (*model.Report, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Transition(ctx, r, actor, target)
}

// RemoveByID reads the current report and removes it.
func (s *ReportService) RemoveByID(ctx context.Context, id, actor string) error {
	r, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.Remove(ctx, r, actor)
}
