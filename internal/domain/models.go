// Package domain defines the persistence models for conversion matches and
// likes. These types are mapped with GORM and form the core data layer of the
// vinyl backend.
package domain

import (
	"time"
)

// Match represents one completed audio conversion, indexed by the fingerprint
// of the source media. A fingerprint appears at most once; repeated requests
// for the same source are served from this record without recomputation.
//
// Fields:
//   - ID: store-assigned integer primary key; short and stable, used by UI
//     callbacks that need a compact reference. Never reused (rows are never
//     deleted).
//   - Fingerprint: content identity of the source media (hash or
//     provider-assigned unique content id); unique key.
//   - DerivedRef: opaque reference to the converted output, reusable without
//     recomputation.
//   - OwnerID: identity of the user whose request produced the record.
//   - Private: visibility flag; true at creation.
//   - Forbidden: moderation flag; false at creation and monotonic (set by an
//     out-of-band moderation action, never cleared).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Match struct {
	ID          int64     `json:"id"          gorm:"primaryKey;autoIncrement"`
	Fingerprint string    `json:"fingerprint" gorm:"type:varchar(128);not null;uniqueIndex:ux_match_fingerprint"`
	DerivedRef  string    `json:"derived_ref" gorm:"type:text;not null"`
	OwnerID     string    `json:"owner_id"    gorm:"type:varchar(64);not null;index:idx_match_owner"`
	Private     bool      `json:"private"     gorm:"not null;default:true"`
	Forbidden   bool      `json:"forbidden"   gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Match.
func (Match) TableName() string { return "matches" }

// Like represents a user's like on a match. Presence of a row means "liked";
// the (match, user) pair is unique, so toggling is idempotent set membership.
//
// Fields:
//   - MatchID: foreign key to the liked match (unique per user).
//   - UserID: identity of the liking user (unique per match).
//   - CreatedAt: timestamp managed by GORM.
//   - Match: FK association, ensures cascade delete/update.
type Like struct {
	ID        int64     `json:"id"       gorm:"primaryKey;autoIncrement"`
	MatchID   int64     `json:"match_id" gorm:"not null;index;uniqueIndex:ux_like_match_user"`
	UserID    string    `json:"user_id"  gorm:"type:varchar(64);not null;index;uniqueIndex:ux_like_match_user"`
	CreatedAt time.Time `json:"created_at"`

	// Match is the liked record. Likes are cascade-deleted if the underlying
	// match is ever removed.
	Match Match `json:"-" gorm:"foreignKey:MatchID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Like.
func (Like) TableName() string { return "likes" }
