package models

import (
	"time"
)

const MediaTypeYoutube = "Youtube"

type User struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email     string    `json:"email" gorm:"type:varchar(191);uniqueIndex;not null"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QueueItem is a submitted video in a creator's queue. PlayedAt is set
// exactly when Played is true.
type QueueItem struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatorID   string     `json:"creator_id" gorm:"type:varchar(36);not null;index:idx_queue_creator_played,priority:1"`
	SubmitterID string     `json:"added_by" gorm:"type:varchar(36);not null"`
	Type        string     `json:"type" gorm:"type:varchar(32);not null"`
	URL         string     `json:"url" gorm:"not null"`
	ExtractedID string     `json:"extracted_id" gorm:"type:varchar(32);not null"`
	Title       string     `json:"title"`
	SmallImg    string     `json:"small_img"`
	BigImg      string     `json:"big_img"`
	Played      bool       `json:"played" gorm:"not null;default:false;index:idx_queue_creator_played,priority:2"`
	PlayedAt    *time.Time `json:"played_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Vote is an upvote. There is no downvote row: retracting deletes it.
type Vote struct {
	VoterID   string     `json:"voter_id" gorm:"primaryKey;type:varchar(36)"`
	ItemID    string     `json:"item_id" gorm:"primaryKey;type:varchar(36);index"`
	Item      *QueueItem `json:"-" gorm:"foreignKey:ItemID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `json:"created_at"`
}

// CurrentStream points at the item a creator is playing right now.
type CurrentStream struct {
	CreatorID string     `json:"creator_id" gorm:"primaryKey;type:varchar(36)"`
	ItemID    *string    `json:"stream_id" gorm:"type:varchar(36)"`
	Item      *QueueItem `json:"stream" gorm:"foreignKey:ItemID;constraint:OnDelete:SET NULL"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Thumbnail is one image variant returned by a metadata lookup.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type Metadata struct {
	Title      string      `json:"title"`
	Thumbnails []Thumbnail `json:"thumbnails"`
}
