package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/stream-queue-system/pkg/models"
)

func newItem(t *testing.T, db *DB, creatorID string) *models.QueueItem {
	t.Helper()
	item := &models.QueueItem{
		ID:          uuid.Must(uuid.NewV7()).String(),
		CreatorID:   creatorID,
		SubmitterID: uuid.NewString(),
		Type:        models.MediaTypeYoutube,
		URL:         "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		ExtractedID: "dQw4w9WgXcQ",
		Title:       "test",
	}
	require.NoError(t, db.CreateItem(context.Background(), item))
	return item
}

func vote(t *testing.T, db *DB, voterID, itemID string) {
	t.Helper()
	created, err := db.CreateVote(context.Background(), &models.Vote{VoterID: voterID, ItemID: itemID})
	require.NoError(t, err)
	require.True(t, created)
}

func TestDialectorFor(t *testing.T) {
	dialect, _, err := dialectorFor("mysql://user:pw@localhost:3306/queue")
	require.NoError(t, err)
	assert.Equal(t, dialectMySQL, dialect)

	dialect, _, err = dialectorFor("postgres://user:pw@localhost:5432/queue?sslmode=disable")
	require.NoError(t, err)
	assert.Equal(t, dialectPostgres, dialect)

	dialect, _, err = dialectorFor("sqlite://queue.db")
	require.NoError(t, err)
	assert.Equal(t, dialectSQLite, dialect)

	_, _, err = dialectorFor("redis://localhost")
	assert.Error(t, err)

	_, _, err = dialectorFor("queue.db")
	assert.Error(t, err)
}

func TestMySQLDSN(t *testing.T) {
	dsn, err := mysqlDSN("user:secret@db:3306/queue")
	require.NoError(t, err)
	assert.Equal(t, "user:secret@tcp(db:3306)/queue?charset=utf8mb4&loc=Local&parseTime=True", dsn)
}

func TestCountUpcomingIgnoresPlayedAndOtherCreators(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	creator := uuid.NewString()

	newItem(t, db, creator)
	newItem(t, db, creator)
	newItem(t, db, uuid.NewString())

	count, err := db.CountUpcoming(ctx, creator)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = db.Advance(ctx, creator, time.Now())
	require.NoError(t, err)

	count, err = db.CountUpcoming(ctx, creator)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGetItemMissing(t *testing.T) {
	db := newTestDB(t)

	item, err := db.GetItem(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestVoteLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	item := newItem(t, db, uuid.NewString())
	voter := uuid.NewString()

	vote(t, db, voter, item.ID)

	created, err := db.CreateVote(ctx, &models.Vote{VoterID: voter, ItemID: item.ID})
	require.NoError(t, err)
	assert.False(t, created, "second vote must be rejected")

	counts, err := db.CountVotes(ctx, []string{item.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, counts[item.ID])

	voted, err := db.VotedItems(ctx, voter, []string{item.ID})
	require.NoError(t, err)
	assert.True(t, voted[item.ID])

	deleted, err := db.DeleteVote(ctx, voter, item.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = db.DeleteVote(ctx, voter, item.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	counts, err = db.CountVotes(ctx, []string{item.ID})
	require.NoError(t, err)
	assert.Zero(t, counts[item.ID])
}

func TestConcurrentVotesForSamePairKeepOneRow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	item := newItem(t, db, uuid.NewString())
	voter := uuid.NewString()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := db.CreateVote(ctx, &models.Vote{VoterID: voter, ItemID: item.ID})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	counts, err := db.CountVotes(ctx, []string{item.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, counts[item.ID])
}

func TestVoteOnMissingItemFails(t *testing.T) {
	db := newTestDB(t)

	_, err := db.CreateVote(context.Background(), &models.Vote{VoterID: uuid.NewString(), ItemID: uuid.NewString()})
	assert.Error(t, err)
}

func TestAdvancePicksTopAndMovesPointer(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	creator := uuid.NewString()

	a := newItem(t, db, creator)
	b := newItem(t, db, creator)
	vote(t, db, uuid.NewString(), b.ID)

	now := time.Now().UTC().Truncate(time.Second)
	played, err := db.Advance(ctx, creator, now)
	require.NoError(t, err)
	require.NotNil(t, played)
	assert.Equal(t, b.ID, played.ID)
	assert.True(t, played.Played)
	require.NotNil(t, played.PlayedAt)

	stored, err := db.GetItem(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, stored.Played)
	require.NotNil(t, stored.PlayedAt)
	assert.True(t, now.Equal(stored.PlayedAt.UTC()))

	current, err := db.GetCurrentStream(ctx, creator)
	require.NoError(t, err)
	require.NotNil(t, current)
	require.NotNil(t, current.ItemID)
	assert.Equal(t, b.ID, *current.ItemID)
	require.NotNil(t, current.Item)
	assert.Equal(t, b.ID, current.Item.ID)

	played, err = db.Advance(ctx, creator, time.Now())
	require.NoError(t, err)
	require.NotNil(t, played)
	assert.Equal(t, a.ID, played.ID)
}

func TestAdvanceEmptyQueue(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	creator := uuid.NewString()

	played, err := db.Advance(ctx, creator, time.Now())
	require.NoError(t, err)
	assert.Nil(t, played)

	current, err := db.GetCurrentStream(ctx, creator)
	require.NoError(t, err)
	require.NotNil(t, current, "first advance creates the pointer")
	assert.Nil(t, current.ItemID)
}

func TestAdvanceKeepsPointerWhenDrained(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	creator := uuid.NewString()
	only := newItem(t, db, creator)

	_, err := db.Advance(ctx, creator, time.Now())
	require.NoError(t, err)

	played, err := db.Advance(ctx, creator, time.Now())
	require.NoError(t, err)
	assert.Nil(t, played)

	current, err := db.GetCurrentStream(ctx, creator)
	require.NoError(t, err)
	require.NotNil(t, current.ItemID)
	assert.Equal(t, only.ID, *current.ItemID)
}

func TestAdvanceRollsBackWhenPointerUpdateFails(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	creator := uuid.NewString()

	first := newItem(t, db, creator)
	played, err := db.Advance(ctx, creator, time.Now())
	require.NoError(t, err)
	require.Equal(t, first.ID, played.ID)

	second := newItem(t, db, creator)

	errPointer := errors.New("pointer update failed")
	require.NoError(t, db.Callback().Update().Before("gorm:update").
		Register("test:fail_current_stream", func(tx *gorm.DB) {
			if tx.Statement.Table == "current_streams" {
				_ = tx.AddError(errPointer)
			}
		}))

	played, err = db.Advance(ctx, creator, time.Now())
	assert.ErrorIs(t, err, errPointer)
	assert.Nil(t, played)

	stored, err := db.GetItem(ctx, second.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.Played)
	assert.Nil(t, stored.PlayedAt)

	current, err := db.GetCurrentStream(ctx, creator)
	require.NoError(t, err)
	require.NotNil(t, current.ItemID)
	assert.Equal(t, first.ID, *current.ItemID)

	count, err := db.CountUpcoming(ctx, creator)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestConcurrentAdvanceNeverDoublePlays(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	creator := uuid.NewString()

	const items, callers = 10, 6
	for i := 0; i < items; i++ {
		newItem(t, db, creator)
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		picked = make(map[string]int)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			item, err := db.Advance(ctx, creator, time.Now())
			if !assert.NoError(t, err) || !assert.NotNil(t, item) {
				return
			}
			mu.Lock()
			picked[item.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, picked, callers)
	for id, n := range picked {
		assert.Equal(t, 1, n, "item %s played more than once", id)
	}

	count, err := db.CountUpcoming(ctx, creator)
	require.NoError(t, err)
	assert.Equal(t, int64(items-callers), count)

	current, err := db.GetCurrentStream(ctx, creator)
	require.NoError(t, err)
	require.NotNil(t, current.ItemID)
	assert.Contains(t, picked, *current.ItemID)
}

func TestUpsertUserByEmail(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first, err := db.UpsertUserByEmail(ctx, "fan@example.com", "Fan")
	require.NoError(t, err)
	second, err := db.UpsertUserByEmail(ctx, "fan@example.com", "Other")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Fan", second.Name)

	found, err := db.GetUserByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "fan@example.com", found.Email)

	missing, err := db.GetUserByID(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
