// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Match model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a match is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - When an insert collides with an existing fingerprint, ErrDuplicate is
//     returned so the caller can treat the loss of the race as a cache hit.
//   - On other DB errors (connectivity issues, etc.), the raw gorm error is
//     propagated.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/slowjam/go-vinyl-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate is returned when an insert violates the unique fingerprint
// index, i.e. a concurrent request for the same source already produced a
// record. Callers must re-read the winning row instead of retrying.
var ErrDuplicate = errors.New("match already exists for fingerprint")

// CreateMatch inserts a new Match row for fingerprint with the given derived
// reference and owner. New matches start private and not forbidden.
//
// If a row for the fingerprint already exists, ErrDuplicate is returned.
// On other failures, the raw DB error is returned.
func CreateMatch(ctx context.Context, db *gorm.DB, fingerprint, derivedRef, ownerID string) (*domain.Match, error) {
	m := &domain.Match{
		Fingerprint: fingerprint,
		DerivedRef:  derivedRef,
		OwnerID:     ownerID,
		Private:     true,
		Forbidden:   false,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return m, nil
}

// GetMatchByFingerprint fetches the match for a source fingerprint, or
// ErrNotFound when no conversion has been recorded for it.
func GetMatchByFingerprint(ctx context.Context, db *gorm.DB, fingerprint string) (*domain.Match, error) {
	var m domain.Match
	err := db.WithContext(ctx).
		Where("fingerprint = ?", fingerprint).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMatchByID fetches a match by its store-assigned id, or ErrNotFound.
func GetMatchByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Match, error) {
	var m domain.Match
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SetMatchPrivate updates the visibility flag of a match. The write is a
// single UPDATE statement, so concurrent callers cannot interleave a stale
// read-modify-write. Returns ErrNotFound when the id does not exist.
func SetMatchPrivate(ctx context.Context, db *gorm.DB, id int64, private bool) error {
	res := db.WithContext(ctx).
		Model(&domain.Match{}).
		Where("id = ?", id).
		Update("private", private)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetMatchForbidden marks a match as forbidden. The flag is one-way: there is
// no corresponding clear operation anywhere in the repository, which keeps the
// moderation decision monotonic. Returns ErrNotFound when the id does not
// exist. Marking an already forbidden match is a no-op that still succeeds.
func SetMatchForbidden(ctx context.Context, db *gorm.DB, id int64) error {
	res := db.WithContext(ctx).
		Model(&domain.Match{}).
		Where("id = ?", id).
		Update("forbidden", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// isUniqueViolation attempts to detect unique-constraint violations across
// drivers that may not map to gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	// SQLite typically: "UNIQUE constraint failed"
	// Postgres typically: "duplicate key value violates unique constraint"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
