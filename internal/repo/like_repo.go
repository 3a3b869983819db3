// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Like model.
//
// Likes are pure set membership: a (match_id, user_id) row either exists or
// it does not. Both directions of the toggle are idempotent at this layer —
// inserting an existing pair and deleting a missing pair are no-ops — so the
// service above never has to serialize rapid repeated presses.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/slowjam/go-vinyl-backend/internal/domain"
)

// IsLiked reports whether userID has liked matchID.
func IsLiked(ctx context.Context, db *gorm.DB, matchID int64, userID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Like{}).
		Where("match_id = ? AND user_id = ?", matchID, userID).
		Count(&n).Error
	return n > 0, err
}

// SetLiked makes the like state for (matchID, userID) equal to liked.
//
// Adding an already present like succeeds without creating a second row (the
// unique index on the pair absorbs the race); removing an absent like is a
// no-op. The final state therefore depends only on the last call, never on
// how many times it ran.
func SetLiked(ctx context.Context, db *gorm.DB, matchID int64, userID string, liked bool) error {
	if !liked {
		return db.WithContext(ctx).
			Where("match_id = ? AND user_id = ?", matchID, userID).
			Delete(&domain.Like{}).Error
	}

	l := &domain.Like{
		MatchID:   matchID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	err := db.WithContext(ctx).Create(l).Error
	if err != nil && (errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err)) {
		// Lost a race against an identical like; the desired state holds.
		return nil
	}
	return err
}

// CountLikes returns the number of likes recorded for matchID.
func CountLikes(ctx context.Context, db *gorm.DB, matchID int64) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Like{}).
		Where("match_id = ?", matchID).
		Count(&n).Error
	return n, err
}
