package store

import (
	"context"
	"fmt"
	"time"

	"office-queue-backend/internal/model"
)

// OpenSession creates an in-progress occupancy session and returns its ID.
func (s *gormStore) OpenSession(ctx context.Context, start time.Time, accessType string, userCode *string) (int64, error) {
	session := model.OccupancySession{
		StartTime:  start,
		AccessType: accessType,
		UserCode:   userCode,
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return 0, fmt.Errorf("failed to open occupancy session: %w", err)
	}
	return session.ID, nil
}

// CloseSession finalizes an occupancy session with its end time and
// computed duration.
func (s *gormStore) CloseSession(ctx context.Context, id int64, end time.Time, durationMinutes int) error {
	return s.db.WithContext(ctx).Model(&model.OccupancySession{}).
		Where("id = ?", id).
		Updates(map[string]any{"end_time": end, "duration_minutes": durationMinutes}).Error
}

// CloseDanglingSessions closes sessions left open by an unclean shutdown.
// Their duration is counted up to now; the caller records a recovery event.
func (s *gormStore) CloseDanglingSessions(ctx context.Context, now time.Time) (int64, error) {
	var open []model.OccupancySession
	if err := s.db.WithContext(ctx).Where("end_time IS NULL").Find(&open).Error; err != nil {
		return 0, fmt.Errorf("failed to find dangling sessions: %w", err)
	}
	for _, session := range open {
		duration := int(now.Sub(session.StartTime).Minutes())
		if err := s.CloseSession(ctx, session.ID, now, duration); err != nil {
			return 0, err
		}
	}
	return int64(len(open)), nil
}

// RecordEvent appends an entry to the audit log.
func (s *gormStore) RecordEvent(ctx context.Context, ev *model.SystemEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(ev).Error
}

// AverageOccupationMinutes averages session durations over a trailing
// window. The second return value reports whether any sessions existed.
func (s *gormStore) AverageOccupationMinutes(ctx context.Context, days int) (float64, bool, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	var result struct {
		Avg   *float64
		Count int64
	}
	err := s.db.WithContext(ctx).Model(&model.OccupancySession{}).
		Select("AVG(duration_minutes) as avg, COUNT(duration_minutes) as count").
		Where("start_time >= ? AND duration_minutes IS NOT NULL", cutoff).
		Scan(&result).Error
	if err != nil {
		return 0, false, fmt.Errorf("failed to compute average occupation: %w", err)
	}
	if result.Count == 0 || result.Avg == nil {
		return 0, false, nil
	}
	return *result.Avg, true, nil
}

// DailyStats aggregates sessions and no-show events for one calendar day.
func (s *gormStore) DailyStats(ctx context.Context, day time.Time) (*DailyStats, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	stats := &DailyStats{
		Date:        start.Format("2006-01-02"),
		AccessTypes: make(map[string]int),
	}

	var totals struct {
		Count   int64
		Avg     *float64
		Minutes *int64
	}
	err := s.db.WithContext(ctx).Model(&model.OccupancySession{}).
		Select("COUNT(*) as count, AVG(duration_minutes) as avg, SUM(duration_minutes) as minutes").
		Where("start_time >= ? AND start_time < ?", start, end).
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sessions: %w", err)
	}
	stats.TotalOccupations = totals.Count
	if totals.Avg != nil {
		stats.AvgDuration = *totals.Avg
	}
	if totals.Minutes != nil {
		stats.TotalMinutes = *totals.Minutes
	}

	var breakdown []struct {
		AccessType string
		Count      int
	}
	err = s.db.WithContext(ctx).Model(&model.OccupancySession{}).
		Select("access_type, COUNT(*) as count").
		Where("start_time >= ? AND start_time < ?", start, end).
		Group("access_type").
		Scan(&breakdown).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate access types: %w", err)
	}
	for _, row := range breakdown {
		stats.AccessTypes[row.AccessType] = row.Count
	}

	err = s.db.WithContext(ctx).Model(&model.SystemEvent{}).
		Where("timestamp >= ? AND timestamp < ? AND event_type = ?", start, end, model.EventReservationExpired).
		Count(&stats.NoShows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count no-shows: %w", err)
	}

	return stats, nil
}

// CleanupOldData drops finished queue entries and audit events older than
// the cutoff. Occupancy sessions are kept for statistics.
func (s *gormStore) CleanupOldData(ctx context.Context, before time.Time) error {
	if err := s.db.WithContext(ctx).
		Where("created_at < ? AND status IN ?", before,
			[]model.ReservationStatus{model.ReservationCompleted, model.ReservationNoShow}).
		Delete(&model.Reservation{}).Error; err != nil {
		return fmt.Errorf("failed to clean old reservations: %w", err)
	}
	if err := s.db.WithContext(ctx).
		Where("timestamp < ?", before).
		Delete(&model.SystemEvent{}).Error; err != nil {
		return fmt.Errorf("failed to clean old events: %w", err)
	}
	return nil
}
