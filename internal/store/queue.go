package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"office-queue-backend/internal/model"
)

// activeStatuses are the reservation statuses that hold a queue slot.
var activeStatuses = []model.ReservationStatus{
	model.ReservationWaiting,
	model.ReservationActive,
}

// Enqueue adds a user to the queue. The duplicate and queue-size guards run
// inside one transaction so concurrent bookings cannot oversubscribe.
func (s *gormStore) Enqueue(ctx context.Context, userCode string, maxQueueSize int) (*model.Reservation, int, error) {
	var reservation model.Reservation
	var position int

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var userCount int64
		if err := tx.Model(&model.User{}).Where("code = ?", userCode).Count(&userCount).Error; err != nil {
			return fmt.Errorf("failed to look up user %s: %w", userCode, err)
		}
		if userCount == 0 {
			return ErrUnknownUser
		}

		var dup int64
		if err := tx.Model(&model.Reservation{}).
			Where("user_code = ? AND status IN ?", userCode, activeStatuses).
			Count(&dup).Error; err != nil {
			return fmt.Errorf("failed to check existing reservations: %w", err)
		}
		if dup > 0 {
			return ErrDuplicateActiveReservation
		}

		var held int64
		if err := tx.Model(&model.Reservation{}).
			Where("status IN ?", activeStatuses).
			Count(&held).Error; err != nil {
			return fmt.Errorf("failed to count queue: %w", err)
		}
		if int(held) >= maxQueueSize {
			return ErrQueueFull
		}

		reservation = model.Reservation{
			UserCode: userCode,
			Status:   model.ReservationWaiting,
		}
		if err := tx.Create(&reservation).Error; err != nil {
			return fmt.Errorf("failed to create reservation: %w", err)
		}
		position = int(held) + 1
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return &reservation, position, nil
}

// PeekFront returns the oldest waiting reservation, or nil when the queue
// is empty.
func (s *gormStore) PeekFront(ctx context.Context) (*model.Reservation, error) {
	var reservation model.Reservation
	err := s.db.WithContext(ctx).
		Where("status = ?", model.ReservationWaiting).
		Order("created_at, id").
		First(&reservation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to peek queue: %w", err)
	}
	return &reservation, nil
}

// MarkActive transitions a waiting reservation to active.
func (s *gormStore) MarkActive(ctx context.Context, id int64, now time.Time) error {
	return s.db.WithContext(ctx).Model(&model.Reservation{}).
		Where("id = ? AND status = ?", id, model.ReservationWaiting).
		Updates(map[string]any{"status": model.ReservationActive, "start_time": now}).Error
}

// MarkCompleted transitions an active reservation to completed.
func (s *gormStore) MarkCompleted(ctx context.Context, id int64, now time.Time) error {
	return s.db.WithContext(ctx).Model(&model.Reservation{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": model.ReservationCompleted, "end_time": now}).Error
}

// MarkNoShow marks the user's held reservation (waiting or active) as a
// no-show.
func (s *gormStore) MarkNoShow(ctx context.Context, userCode string) error {
	return s.db.WithContext(ctx).Model(&model.Reservation{}).
		Where("user_code = ? AND status IN ?", userCode, activeStatuses).
		Update("status", model.ReservationNoShow).Error
}

// QueueSize counts reservations currently holding a slot.
func (s *gormStore) QueueSize(ctx context.Context) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Reservation{}).
		Where("status IN ?", activeStatuses).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return int(count), nil
}

// ListWaiting returns waiting reservations in queue order.
func (s *gormStore) ListWaiting(ctx context.Context) ([]model.Reservation, error) {
	var reservations []model.Reservation
	err := s.db.WithContext(ctx).
		Where("status = ?", model.ReservationWaiting).
		Order("created_at, id").
		Find(&reservations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	return reservations, nil
}

// ClearQueue removes every waiting reservation and reports how many were
// dropped. Active reservations are left for the engine to resolve.
func (s *gormStore) ClearQueue(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("status = ?", model.ReservationWaiting).
		Delete(&model.Reservation{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to clear queue: %w", res.Error)
	}
	return res.RowsAffected, nil
}
