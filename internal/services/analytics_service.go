package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/yukikurage/content-pipeline/internal/analytics"
	"github.com/yukikurage/content-pipeline/internal/models"
	"github.com/yukikurage/content-pipeline/internal/repository"
	"github.com/yukikurage/content-pipeline/internal/workflow"
)

// DefaultAnalyticsDays is the window used when no range is given.
const DefaultAnalyticsDays = 30

var ErrInvalidDateRange = errors.New("date range start must not be after its end")

// AnalyticsService computes dashboard KPIs from a consistent snapshot
type AnalyticsService struct {
	snapshots repository.SnapshotRepository
	now       Clock
}

// NewAnalyticsService creates a new AnalyticsService
func NewAnalyticsService(snapshots repository.SnapshotRepository) *AnalyticsService {
	return &AnalyticsService{snapshots: snapshots, now: time.Now}
}

// SetClock replaces the time source used for default windows and idle times.
func (s *AnalyticsService) SetClock(c Clock) {
	s.now = c
}

// AnalyticsInput selects the report scope. Viewer limits the channels to the
// ones they can access; a nil Viewer is unrestricted.
type AnalyticsInput struct {
	ChannelIDs []string
	UserIDs    []string
	From       *time.Time
	To         *time.Time
	Viewer     *models.User
}

// GetAnalytics returns the KPI report for the requested channels, users and window
func (s *AnalyticsService) GetAnalytics(input AnalyticsInput) (*analytics.Report, error) {
	now := s.now()
	window := analytics.LastDays(now, DefaultAnalyticsDays)
	if input.To != nil {
		window.To = *input.To
		if input.From == nil {
			window.From = window.To.AddDate(0, 0, -DefaultAnalyticsDays)
		}
	}
	if input.From != nil {
		window.From = *input.From
	}
	if window.From.After(window.To) {
		return nil, ErrInvalidDateRange
	}

	channelIDs := uniqueStrings(input.ChannelIDs)
	ds, err := s.snapshots.Load(channelIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load analytics snapshot: %w", err)
	}

	if len(channelIDs) > 0 && len(ds.Channels) != len(channelIDs) {
		return nil, workflow.ErrChannelNotFound
	}

	if input.Viewer != nil && !input.Viewer.IsOwner() {
		visible := ds.Channels[:0]
		for i := range ds.Channels {
			if CanAccessChannel(&ds.Channels[i], input.Viewer) {
				visible = append(visible, ds.Channels[i])
			} else if len(channelIDs) > 0 {
				return nil, workflow.ErrForbidden
			}
		}
		ds.Channels = visible
	}

	report := analytics.Build(*ds, analytics.Query{
		UserIDs: uniqueStrings(input.UserIDs),
		Range:   window,
		Now:     now,
	})
	return &report, nil
}
