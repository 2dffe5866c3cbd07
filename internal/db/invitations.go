package db

import (
	"context"
	"fmt"
	"time"
)

func (s *Store) CreateInvitation(ctx context.Context, inv *Invitation) error {
	if err := s.db.WithContext(ctx).Create(inv).Error; err != nil {
		return fmt.Errorf("insert invitation: %w", err)
	}
	return nil
}

func (s *Store) GetInvitationByToken(ctx context.Context, token string) (*Invitation, error) {
	var inv Invitation
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&inv).Error; err != nil {
		return nil, notFound(err, "invitation not found")
	}
	return &inv, nil
}

func (s *Store) MarkInvitationAccepted(ctx context.Context, id int64, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&Invitation{}).Where("id = ?", id).Update("accepted_at", at).Error
	if err != nil {
		return fmt.Errorf("accept invitation: %w", err)
	}
	return nil
}
