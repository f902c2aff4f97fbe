package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stream-queue-system/pkg/models"
	"github.com/stream-queue-system/pkg/ranking"
)

const maxAdvanceAttempts = 3

// errAdvanceConflict means the chosen item was played by someone else
// between selection and update. The transaction is rolled back and retried.
var errAdvanceConflict = errors.New("queue item already played")

// Queue operations

func (db *DB) CountUpcoming(ctx context.Context, creatorID string) (int64, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&models.QueueItem{}).
		Where("creator_id = ? AND played = ?", creatorID, false).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (db *DB) CreateItem(ctx context.Context, item *models.QueueItem) error {
	return db.WithContext(ctx).Create(item).Error
}

// GetItem returns nil without error when the item does not exist.
func (db *DB) GetItem(ctx context.Context, itemID string) (*models.QueueItem, error) {
	var item models.QueueItem
	err := db.WithContext(ctx).First(&item, "id = ?", itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (db *DB) ListUpcoming(ctx context.Context, creatorID string) ([]models.QueueItem, error) {
	return listUpcoming(db.WithContext(ctx), creatorID)
}

func listUpcoming(tx *gorm.DB, creatorID string) ([]models.QueueItem, error) {
	var items []models.QueueItem
	if err := tx.Where("creator_id = ? AND played = ?", creatorID, false).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Vote operations

// CreateVote reports false when the voter already has a vote on the item.
// The composite primary key makes concurrent duplicates impossible.
func (db *DB) CreateVote(ctx context.Context, vote *models.Vote) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(vote)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// DeleteVote reports false when there was no vote to delete.
func (db *DB) DeleteVote(ctx context.Context, voterID, itemID string) (bool, error) {
	result := db.WithContext(ctx).
		Where("voter_id = ? AND item_id = ?", voterID, itemID).
		Delete(&models.Vote{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (db *DB) CountVotes(ctx context.Context, itemIDs []string) (map[string]int, error) {
	return countVotes(db.WithContext(ctx), itemIDs)
}

func countVotes(tx *gorm.DB, itemIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(itemIDs))
	if len(itemIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		ItemID string
		Total  int
	}
	if err := tx.Model(&models.Vote{}).
		Select("item_id, COUNT(*) AS total").
		Where("item_id IN ?", itemIDs).
		Group("item_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, r := range rows {
		counts[r.ItemID] = r.Total
	}
	return counts, nil
}

func (db *DB) VotedItems(ctx context.Context, voterID string, itemIDs []string) (map[string]bool, error) {
	voted := make(map[string]bool)
	if len(itemIDs) == 0 {
		return voted, nil
	}

	var ids []string
	if err := db.WithContext(ctx).Model(&models.Vote{}).
		Where("voter_id = ? AND item_id IN ?", voterID, itemIDs).
		Pluck("item_id", &ids).Error; err != nil {
		return nil, err
	}

	for _, id := range ids {
		voted[id] = true
	}
	return voted, nil
}

// Playback operations

// GetCurrentStream returns the creator's pointer with its item loaded, or nil
// if the creator never advanced.
func (db *DB) GetCurrentStream(ctx context.Context, creatorID string) (*models.CurrentStream, error) {
	var current models.CurrentStream
	err := db.WithContext(ctx).Preload("Item").
		First(&current, "creator_id = ?", creatorID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &current, nil
}

// Advance picks the creator's top ranked unplayed item, marks it played and
// points the creator's current stream at it, all in one transaction. It
// returns nil when nothing is left; the pointer then keeps its old value.
func (db *DB) Advance(ctx context.Context, creatorID string, playedAt time.Time) (*models.QueueItem, error) {
	var err error
	for attempt := 1; attempt <= maxAdvanceAttempts; attempt++ {
		var item *models.QueueItem
		item, err = db.advanceOnce(ctx, creatorID, playedAt)
		if !errors.Is(err, errAdvanceConflict) {
			return item, err
		}

		log.Warn().Str("creator_id", creatorID).Int("attempt", attempt).
			Msg("advance lost a race, retrying")
	}
	return nil, fmt.Errorf("advance gave up after %d attempts: %w", maxAdvanceAttempts, err)
}

func (db *DB) advanceOnce(ctx context.Context, creatorID string, playedAt time.Time) (*models.QueueItem, error) {
	var selected *models.QueueItem

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.CurrentStream{CreatorID: creatorID}).Error; err != nil {
			return fmt.Errorf("failed to ensure current stream: %w", err)
		}

		var current models.CurrentStream
		if err := lockForUpdate(tx).
			First(&current, "creator_id = ?", creatorID).Error; err != nil {
			return fmt.Errorf("failed to lock current stream: %w", err)
		}

		items, err := listUpcoming(tx, creatorID)
		if err != nil {
			return fmt.Errorf("failed to list queue: %w", err)
		}

		ids := make([]string, len(items))
		for i, item := range items {
			ids[i] = item.ID
		}
		counts, err := countVotes(tx, ids)
		if err != nil {
			return fmt.Errorf("failed to count votes: %w", err)
		}

		top := ranking.Top(items, counts)
		if top == nil {
			return nil
		}

		result := tx.Model(&models.QueueItem{}).
			Where("id = ? AND played = ?", top.ID, false).
			Updates(map[string]any{"played": true, "played_at": playedAt})
		if result.Error != nil {
			return fmt.Errorf("failed to mark played: %w", result.Error)
		}
		if result.RowsAffected != 1 {
			return errAdvanceConflict
		}

		if err := tx.Model(&models.CurrentStream{}).
			Where("creator_id = ?", creatorID).
			Update("item_id", top.ID).Error; err != nil {
			return fmt.Errorf("failed to move current stream: %w", err)
		}

		top.Played = true
		top.PlayedAt = &playedAt
		selected = top
		return nil
	})
	if err != nil {
		return nil, err
	}
	return selected, nil
}

func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == dialectSQLite {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
