package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/spendwise/pkg/observability"
)

// DefaultRetentionDays is used when a purge does not name a period
const DefaultRetentionDays = 90

// Service is the activity trail: best-effort writes, caller-scoped reads and
// admin-only retention.
type Service struct {
	store         Store
	archiver      *Archiver
	logger        *observability.Logger
	metrics       *observability.Metrics
	retentionDays int
	now           func() time.Time
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithArchiver copies rows to object storage before each purge
func WithArchiver(a *Archiver) ServiceOption {
	return func(s *Service) {
		s.archiver = a
	}
}

// WithMetrics counts writes, purges and archives
func WithMetrics(m *observability.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRetentionDays sets the purge period used when none is given
func WithRetentionDays(days int) ServiceOption {
	return func(s *Service) {
		if days > 0 {
			s.retentionDays = days
		}
	}
}

// WithClock overrides the time source for purge cutoffs and statistics
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates an activity service
func NewService(store Store, logger *observability.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		store:         store,
		logger:        logger,
		retentionDays: DefaultRetentionDays,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record appends an activity. Failures are logged and counted, never returned.
func (s *Service) Record(ctx context.Context, rec Record) {
	if rec.UserID == 0 {
		s.logger.WithField("activity_type", string(rec.Type)).Warn("Dropping activity without a user")
		s.count("failure")
		return
	}
	if !rec.Type.Known() {
		s.logger.WithField("activity_type", string(rec.Type)).Debug("Recording activity of an unlisted type")
	}

	if err := s.store.Insert(ctx, rec); err != nil {
		s.logger.WithError(err).
			WithFields(map[string]interface{}{
				"user_id":       rec.UserID,
				"activity_type": string(rec.Type),
			}).
			Error("Failed to record activity")
		s.count("failure")
		return
	}
	s.count("success")
}

func (s *Service) count(status string) {
	if s.metrics != nil {
		s.metrics.ActivityRecordsTotal.WithLabelValues(status).Inc()
	}
}

// Search returns activities visible to caller
func (s *Service) Search(ctx context.Context, filter SearchFilter, caller Caller) (*Page, error) {
	return s.store.Search(ctx, filter, caller)
}

// MyActivities pages through the caller's own activities, newest first,
// regardless of role
func (s *Service) MyActivities(ctx context.Context, caller Caller, page, limit int) (*Page, error) {
	own := Caller{UserID: caller.UserID}
	return s.store.Search(ctx, SearchFilter{Page: page, Limit: limit}, own)
}

// StatsByType counts activities by type, scoped like Search
func (s *Service) StatsByType(ctx context.Context, filter SearchFilter, caller Caller) ([]TypeCount, error) {
	return s.store.CountByType(ctx, filter, caller)
}

// Statistics returns the full dashboard for admins and the caller's own
// type counts for everyone else
func (s *Service) Statistics(ctx context.Context, caller Caller) (*Statistics, error) {
	if !caller.Admin {
		types, err := s.store.CountByType(ctx, SearchFilter{}, caller)
		if err != nil {
			return nil, err
		}
		return &Statistics{Types: types}, nil
	}

	since := s.now().AddDate(0, 0, -statsWindowDays)
	return s.store.Statistics(ctx, since)
}

// Recent returns the newest activities across all users. Admin only.
func (s *Service) Recent(ctx context.Context, limit int, caller Caller) ([]*Entry, error) {
	if !caller.Admin {
		return nil, ErrForbidden
	}
	if limit < 1 || limit > maxPageLimit {
		limit = maxPageLimit
	}
	return s.store.Recent(ctx, limit)
}

// Export returns every activity matching filter, scoped like Search
func (s *Service) Export(ctx context.Context, filter SearchFilter, caller Caller) ([]*Entry, error) {
	return s.store.Export(ctx, filter, caller)
}

// Preview summarizes an export without loading the rows
func (s *Service) Preview(ctx context.Context, filter SearchFilter, caller Caller) (*Preview, error) {
	return s.store.Preview(ctx, filter, caller)
}

// PurgeOlderThan hard-deletes activities older than days. A non-positive
// days uses the configured retention period. Admin only.
func (s *Service) PurgeOlderThan(ctx context.Context, days int, caller Caller) (int64, error) {
	if !caller.Admin {
		return 0, ErrForbidden
	}
	return s.purge(ctx, days)
}

// purge archives (when configured) and then deletes. A failed archive
// leaves every row in place.
func (s *Service) purge(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = s.retentionDays
	}
	cutoff := s.now().AddDate(0, 0, -days)

	if s.archiver != nil {
		entries, err := s.store.OlderThan(ctx, cutoff)
		if err != nil {
			return 0, err
		}
		key, err := s.archiver.Archive(ctx, entries, cutoff)
		if err != nil {
			return 0, err
		}
		if key != "" {
			s.logger.WithFields(map[string]interface{}{
				"key":   key,
				"count": len(entries),
			}).Info("Archived activities before purge")
			if s.metrics != nil {
				s.metrics.ActivityArchived.Add(float64(len(entries)))
			}
		}
	}

	deleted, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge failed: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"days":    days,
		"cutoff":  cutoff.Format(time.RFC3339),
		"deleted": deleted,
	}).Info("Purged old activities")
	if s.metrics != nil {
		s.metrics.ActivityPurgedTotal.Add(float64(deleted))
	}
	return deleted, nil
}
