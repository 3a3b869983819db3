// Package services – MatchService
//
// This file implements the MatchService, the single authority over match
// records and like state. Every component that needs to read or mutate a
// record goes through this service; nothing touches the tables directly.
// It translates repository sentinels (gorm.ErrRecordNotFound, duplicate-key
// violations) into the service-level errors defined in errors.go so handlers
// and the orchestrator can branch on stable values.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/slowjam/go-vinyl-backend/internal/domain"
	"github.com/slowjam/go-vinyl-backend/internal/repo"
)

// MatchRepo defines the repository contract required by MatchService.
// Implementations are responsible for persistence of match and like rows.
type MatchRepo interface {
	// CreateMatch inserts a new match row; repo.ErrDuplicate on fingerprint collision.
	CreateMatch(ctx context.Context, db *gorm.DB, fingerprint, derivedRef, ownerID string) (*domain.Match, error)

	// GetMatchByFingerprint fetches the match for a source fingerprint.
	GetMatchByFingerprint(ctx context.Context, db *gorm.DB, fingerprint string) (*domain.Match, error)

	// GetMatchByID fetches a match by its store-assigned id.
	GetMatchByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Match, error)

	// SetMatchPrivate updates the visibility flag.
	SetMatchPrivate(ctx context.Context, db *gorm.DB, id int64, private bool) error

	// SetMatchForbidden marks a match forbidden (one-way).
	SetMatchForbidden(ctx context.Context, db *gorm.DB, id int64) error

	// IsLiked reports like membership for (matchID, userID).
	IsLiked(ctx context.Context, db *gorm.DB, matchID int64, userID string) (bool, error)

	// SetLiked makes like membership for (matchID, userID) equal to liked.
	SetLiked(ctx context.Context, db *gorm.DB, matchID int64, userID string, liked bool) error
}

// matchRepoFuncs adapts the repo package free functions to the MatchRepo
// interface. This keeps the service decoupled from the concrete repo package
// while reusing the existing functions.
type matchRepoFuncs struct{}

func (matchRepoFuncs) CreateMatch(ctx context.Context, db *gorm.DB, fingerprint, derivedRef, ownerID string) (*domain.Match, error) {
	return repo.CreateMatch(ctx, db, fingerprint, derivedRef, ownerID)
}

func (matchRepoFuncs) GetMatchByFingerprint(ctx context.Context, db *gorm.DB, fingerprint string) (*domain.Match, error) {
	return repo.GetMatchByFingerprint(ctx, db, fingerprint)
}

func (matchRepoFuncs) GetMatchByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Match, error) {
	return repo.GetMatchByID(ctx, db, id)
}

func (matchRepoFuncs) SetMatchPrivate(ctx context.Context, db *gorm.DB, id int64, private bool) error {
	return repo.SetMatchPrivate(ctx, db, id, private)
}

func (matchRepoFuncs) SetMatchForbidden(ctx context.Context, db *gorm.DB, id int64) error {
	return repo.SetMatchForbidden(ctx, db, id)
}

func (matchRepoFuncs) IsLiked(ctx context.Context, db *gorm.DB, matchID int64, userID string) (bool, error) {
	return repo.IsLiked(ctx, db, matchID, userID)
}

func (matchRepoFuncs) SetLiked(ctx context.Context, db *gorm.DB, matchID int64, userID string, liked bool) error {
	return repo.SetLiked(ctx, db, matchID, userID, liked)
}

// MatchService provides lookup and mutation of match records and like state.
// All mutations are single statements or transactions at the repo layer, so
// concurrent callers on the same record cannot lose updates.
type MatchService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the match repository used by this service.
	Repo MatchRepo
}

// NewMatchService constructs a MatchService backed by the repo package.
func NewMatchService(db *gorm.DB) *MatchService {
	return &MatchService{DB: db, Repo: matchRepoFuncs{}}
}

// Lookup returns the match recorded for fingerprint, or ErrMatchNotFound.
// No side effects.
func (s *MatchService) Lookup(ctx context.Context, fingerprint string) (*domain.Match, error) {
	m, err := s.Repo.GetMatchByFingerprint(ctx, s.DB, fingerprint)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return m, nil
}

// LookupByID returns the match with the given store id, or ErrMatchNotFound.
func (s *MatchService) LookupByID(ctx context.Context, id int64) (*domain.Match, error) {
	m, err := s.Repo.GetMatchByID(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return m, nil
}

// Insert records a freshly converted result for fingerprint. New records are
// private and not forbidden. If a record for the fingerprint already exists,
// ErrDuplicateMatch is returned and the caller must treat the existing row as
// a cache hit rather than retry the insert.
func (s *MatchService) Insert(ctx context.Context, fingerprint, derivedRef, ownerID string) (*domain.Match, error) {
	m, err := s.Repo.CreateMatch(ctx, s.DB, fingerprint, derivedRef, ownerID)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateMatch
		}
		return nil, err
	}
	return m, nil
}

// SetPrivate updates the visibility flag of the match with the given id.
func (s *MatchService) SetPrivate(ctx context.Context, id int64, private bool) error {
	err := s.Repo.SetMatchPrivate(ctx, s.DB, id, private)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrMatchNotFound
	}
	return err
}

// SetForbidden marks the match with the given id as forbidden. The flag is
// monotonic: there is no operation anywhere that clears it.
func (s *MatchService) SetForbidden(ctx context.Context, id int64) error {
	err := s.Repo.SetMatchForbidden(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrMatchNotFound
	}
	return err
}

// IsLiked reports whether userID has liked the match with the given id.
func (s *MatchService) IsLiked(ctx context.Context, matchID int64, userID string) (bool, error) {
	return s.Repo.IsLiked(ctx, s.DB, matchID, userID)
}

// SetLiked makes the like state for (matchID, userID) equal to liked.
// Both directions are idempotent.
func (s *MatchService) SetLiked(ctx context.Context, matchID int64, userID string, liked bool) error {
	return s.Repo.SetLiked(ctx, s.DB, matchID, userID, liked)
}

// ToggleLike flips the like state for (matchID, userID) and returns the new
// state. The match must exist; ErrMatchNotFound otherwise.
func (s *MatchService) ToggleLike(ctx context.Context, matchID int64, userID string) (bool, error) {
	if _, err := s.LookupByID(ctx, matchID); err != nil {
		return false, err
	}
	liked, err := s.Repo.IsLiked(ctx, s.DB, matchID, userID)
	if err != nil {
		return false, err
	}
	if err := s.Repo.SetLiked(ctx, s.DB, matchID, userID, !liked); err != nil {
		return false, err
	}
	return !liked, nil
}
