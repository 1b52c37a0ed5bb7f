package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"office-queue-backend/internal/model"
)

func (s *gormStore) UserExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.User{}).Where("code = ?", code).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to look up user %s: %w", code, err)
	}
	return count > 0, nil
}

func (s *gormStore) GetUserName(ctx context.Context, code string) (string, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrUnknownUser
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch user %s: %w", code, err)
	}
	return user.Name, nil
}

func (s *gormStore) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.db.WithContext(ctx).Order("name").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *gormStore) CreateUser(ctx context.Context, code, name string) error {
	exists, err := s.UserExists(ctx, code)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("user %s already exists", code)
	}
	return s.db.WithContext(ctx).Create(&model.User{Code: code, Name: name}).Error
}

func (s *gormStore) UpdateUser(ctx context.Context, code, name string) error {
	res := s.db.WithContext(ctx).Model(&model.User{}).Where("code = ?", code).Update("name", name)
	if res.Error != nil {
		return fmt.Errorf("failed to update user %s: %w", code, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUnknownUser
	}
	return nil
}

func (s *gormStore) DeleteUser(ctx context.Context, code string) error {
	res := s.db.WithContext(ctx).Where("code = ?", code).Delete(&model.User{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete user %s: %w", code, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUnknownUser
	}
	return nil
}
