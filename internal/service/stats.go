package service

import (
	"context"
	"fmt"

	"github.com/sakif/reportnavi/internal/apperror"
	"github.com/sakif/reportnavi/internal/model"
	"github.com/sakif/reportnavi/internal/repository"
)

// Stats are the dashboard counters. Verified counts every report that has
// passed verification, so resolved reports are included in it.
type Stats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Verified int `json:"verified"`
	Resolved int `json:"resolved"`
	Declined int `json:"declined"`
}

func (s *Stats) add(r model.Report) {
	s.Total++
	switch r.Status {
	case model.StatusPending:
		s.Pending++
	case model.StatusVerified:
		s.Verified++
	case model.StatusResolved:
		s.Verified++
		s.Resolved++
	case model.StatusDeclined:
		s.Declined++
	}
}

// Dashboard is what the signed-in user's dashboard shows.
type Dashboard struct {
	All    Stats `json:"all"`
	Mine   Stats `json:"mine"`
	Points int   `json:"points"`
}

type StatsService struct {
	store repository.Store
}

func NewStatsService(store repository.Store) *StatsService {
	return &StatsService{store: store}
}

func (s *StatsService) Dashboard(ctx context.Context, username string) (*Dashboard, error) {
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	user, err := s.store.GetUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service/stats: loading %s: %w", username, err)
	}
	reports, err := s.store.ListReports(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/stats: listing reports: %w", err)
	}

	d := &Dashboard{Points: user.Points()}
	for _, r := range reports {
		d.All.add(r)
		if r.IsOwnedBy(username) {
			d.Mine.add(r)
		}
	}
	return d, nil
}
