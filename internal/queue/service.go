package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/stream-queue-system/internal/auth"
	"github.com/stream-queue-system/internal/youtube"
	"github.com/stream-queue-system/pkg/events"
	"github.com/stream-queue-system/pkg/models"
	"github.com/stream-queue-system/pkg/ranking"
)

const (
	DefaultMaxQueueLen     = 20
	DefaultMetadataTimeout = 5 * time.Second

	placeholderTitle = "Can't find video"
	placeholderImage = "https://tse3.mm.bing.net/th?id=OIP.g1m0K7yumfwkc_ub224a4AHaE7&pid=Api&P=0&h=180"
)

var (
	ErrUnauthenticated   = errors.New("authentication required")
	ErrInvalidCreator    = errors.New("invalid creator id")
	ErrInvalidLinkFormat = youtube.ErrInvalidLinkFormat
	ErrQueueFull         = errors.New("queue is full")
	ErrItemNotFound      = errors.New("stream not found")
	ErrAlreadyVoted      = errors.New("already upvoted")
	ErrNoExistingVote    = errors.New("no upvote to remove")
)

type Store interface {
	CountUpcoming(ctx context.Context, creatorID string) (int64, error)
	CreateItem(ctx context.Context, item *models.QueueItem) error
	GetItem(ctx context.Context, itemID string) (*models.QueueItem, error)
	ListUpcoming(ctx context.Context, creatorID string) ([]models.QueueItem, error)
	CreateVote(ctx context.Context, vote *models.Vote) (bool, error)
	DeleteVote(ctx context.Context, voterID, itemID string) (bool, error)
	CountVotes(ctx context.Context, itemIDs []string) (map[string]int, error)
	VotedItems(ctx context.Context, voterID string, itemIDs []string) (map[string]bool, error)
	GetCurrentStream(ctx context.Context, creatorID string) (*models.CurrentStream, error)
	Advance(ctx context.Context, creatorID string, playedAt time.Time) (*models.QueueItem, error)
}

type Resolver interface {
	Resolve(ctx context.Context, videoID string) (*models.Metadata, error)
}

type Config struct {
	MaxQueueLen     int
	MetadataTimeout time.Duration
}

type Service struct {
	store     Store
	resolver  Resolver
	publisher events.Publisher
	cfg       Config
	now       func() time.Time
}

// QueueView is what a viewer sees for one creator: the ranked upcoming items
// and the item currently playing.
type QueueView struct {
	Streams      []ranking.Entry       `json:"streams"`
	ActiveStream *models.CurrentStream `json:"active_stream"`
}

func NewService(store Store, resolver Resolver, publisher events.Publisher, cfg Config) *Service {
	if cfg.MaxQueueLen <= 0 {
		cfg.MaxQueueLen = DefaultMaxQueueLen
	}
	if cfg.MetadataTimeout <= 0 {
		cfg.MetadataTimeout = DefaultMetadataTimeout
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		store:     store,
		resolver:  resolver,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Submit adds a video to a creator's queue on behalf of the caller. Only
// unplayed items count toward MaxQueueLen, and a queue holding exactly
// MaxQueueLen of them is full.
func (s *Service) Submit(ctx context.Context, id auth.Identity, creatorID, rawURL string) (*ranking.Entry, error) {
	if !id.Authenticated() {
		return nil, ErrUnauthenticated
	}
	creatorID = strings.TrimSpace(creatorID)
	if _, err := uuid.Parse(creatorID); err != nil {
		return nil, ErrInvalidCreator
	}

	videoID, err := youtube.ExtractVideoID(rawURL)
	if err != nil {
		return nil, err
	}

	// Capacity is checked before the insert without a lock, so concurrent
	// submits can overshoot the limit by a few items.
	upcoming, err := s.store.CountUpcoming(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to count queue: %w", err)
	}
	if upcoming >= int64(s.cfg.MaxQueueLen) {
		return nil, ErrQueueFull
	}

	title, small, big := s.describe(ctx, videoID)

	item := &models.QueueItem{
		ID:          uuid.Must(uuid.NewV7()).String(),
		CreatorID:   creatorID,
		SubmitterID: id.UserID,
		Type:        models.MediaTypeYoutube,
		URL:         strings.TrimSpace(rawURL),
		ExtractedID: videoID,
		Title:       title,
		SmallImg:    small,
		BigImg:      big,
	}
	if err := s.store.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to add to queue: %w", err)
	}

	log.Info().Str("creator_id", creatorID).Str("stream_id", item.ID).Str("video_id", videoID).
		Msg("stream added")

	s.publish(ctx, events.Event{
		Type:      events.EventTypeStreamAdded,
		CreatorID: creatorID,
		StreamID:  item.ID,
		UserID:    id.UserID,
		Stream:    item,
	})

	return &ranking.Entry{QueueItem: *item}, nil
}

// describe resolves display metadata, falling back to placeholders when the
// lookup fails or returns nothing usable.
func (s *Service) describe(ctx context.Context, videoID string) (title, smallImg, bigImg string) {
	title, smallImg, bigImg = placeholderTitle, placeholderImage, placeholderImage
	if s.resolver == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.MetadataTimeout)
	defer cancel()

	meta, err := s.resolver.Resolve(ctx, videoID)
	if err != nil {
		log.Warn().Err(err).Str("video_id", videoID).Msg("metadata lookup failed, using placeholders")
		return
	}
	if meta == nil {
		return
	}

	if meta.Title != "" {
		title = meta.Title
	}
	if small, big, ok := pickImages(meta.Thumbnails); ok {
		smallImg, bigImg = small, big
	}
	return
}

// pickImages expects thumbnails ordered by width. The widest is the big
// image and the second widest the small one.
func pickImages(thumbs []models.Thumbnail) (small, big string, ok bool) {
	if len(thumbs) == 0 {
		return "", "", false
	}
	big = thumbs[len(thumbs)-1].URL
	small = big
	if len(thumbs) > 1 {
		small = thumbs[len(thumbs)-2].URL
	}
	return small, big, true
}

func (s *Service) Upvote(ctx context.Context, id auth.Identity, itemID string) error {
	if !id.Authenticated() {
		return ErrUnauthenticated
	}

	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return fmt.Errorf("failed to load stream: %w", err)
	}
	if item == nil {
		return ErrItemNotFound
	}

	created, err := s.store.CreateVote(ctx, &models.Vote{VoterID: id.UserID, ItemID: itemID})
	if err != nil {
		return fmt.Errorf("failed to store vote: %w", err)
	}
	if !created {
		return ErrAlreadyVoted
	}

	s.publishVote(ctx, events.EventTypeStreamUpvoted, id, item)
	return nil
}

// RetractUpvote removes the caller's upvote. It never touches other items.
func (s *Service) RetractUpvote(ctx context.Context, id auth.Identity, itemID string) error {
	if !id.Authenticated() {
		return ErrUnauthenticated
	}

	deleted, err := s.store.DeleteVote(ctx, id.UserID, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete vote: %w", err)
	}
	if !deleted {
		return ErrNoExistingVote
	}

	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		log.Warn().Err(err).Str("stream_id", itemID).Msg("failed to load stream for event")
		return nil
	}
	if item == nil {
		return nil
	}
	s.publishVote(ctx, events.EventTypeStreamDownvoted, id, item)
	return nil
}

func (s *Service) publishVote(ctx context.Context, eventType events.EventType, id auth.Identity, item *models.QueueItem) {
	counts, err := s.store.CountVotes(ctx, []string{item.ID})
	if err != nil {
		log.Warn().Err(err).Str("stream_id", item.ID).Msg("failed to count votes for event")
		return
	}

	s.publish(ctx, events.Event{
		Type:      eventType,
		CreatorID: item.CreatorID,
		StreamID:  item.ID,
		UserID:    id.UserID,
		Upvotes:   counts[item.ID],
	})
}

// Advance moves the caller's own queue to its next item. It returns nil when
// the queue is empty; the previous item then stays current.
func (s *Service) Advance(ctx context.Context, id auth.Identity) (*models.QueueItem, error) {
	if !id.Authenticated() {
		return nil, ErrUnauthenticated
	}

	item, err := s.store.Advance(ctx, id.UserID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to advance queue: %w", err)
	}

	event := events.Event{CreatorID: id.UserID, UserID: id.UserID}
	if item == nil {
		event.Type = events.EventTypeQueueDrained
		log.Debug().Str("creator_id", id.UserID).Msg("queue drained")
	} else {
		event.Type = events.EventTypeStreamStarted
		event.StreamID = item.ID
		event.Stream = item
		log.Info().Str("creator_id", id.UserID).Str("stream_id", item.ID).Msg("stream started")
	}
	s.publish(ctx, event)

	return item, nil
}

// Queue returns the ranked upcoming items for a creator, with the caller's
// own votes flagged.
func (s *Service) Queue(ctx context.Context, id auth.Identity, creatorID string) (*QueueView, error) {
	if !id.Authenticated() {
		return nil, ErrUnauthenticated
	}
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return nil, ErrInvalidCreator
	}

	items, err := s.store.ListUpcoming(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}

	counts, err := s.store.CountVotes(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}
	voted, err := s.store.VotedItems(ctx, id.UserID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load votes: %w", err)
	}

	current, err := s.store.GetCurrentStream(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load current stream: %w", err)
	}

	return &QueueView{
		Streams:      ranking.Rank(items, counts, voted),
		ActiveStream: current,
	}, nil
}

// MyQueue is the caller's own queue.
func (s *Service) MyQueue(ctx context.Context, id auth.Identity) (*QueueView, error) {
	return s.Queue(ctx, id, id.UserID)
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	event.Timestamp = s.now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("type", string(event.Type)).Str("creator_id", event.CreatorID).
			Msg("failed to publish event")
	}
}
