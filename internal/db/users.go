package db

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm/clause"

	"github.com/kidandcat/tracker/internal/errs"
)

func (s *Store) CreateUser(ctx context.Context, u *User) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where("email = ?", u.Email).Count(&n).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return errs.Conflict("email %s is already registered", u.Email)
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(u).Error; err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err, "user %d not found", id)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&u).Error
	if err != nil {
		return nil, notFound(err, "user %s not found", email)
	}
	return &u, nil
}
