// Package ranking orders a creator's queue. Rank is never stored; it is
// derived from the vote rows each time the queue is read or advanced.
package ranking

import (
	"sort"

	"github.com/stream-queue-system/pkg/models"
)

// Entry is a queue item together with its aggregated vote state.
type Entry struct {
	models.QueueItem
	Upvotes     int  `json:"upvotes"`
	HaveUpvoted bool `json:"have_upvoted"`
}

// Less orders by upvotes descending, then by item id ascending. Item ids are
// time-ordered, so equal counts fall back to submission order.
func Less(a, b Entry) bool {
	if a.Upvotes != b.Upvotes {
		return a.Upvotes > b.Upvotes
	}
	return a.ID < b.ID
}

// Rank builds the ordered projection. counts maps item id to upvote count and
// voted holds the ids the requesting voter has upvoted; both may be nil.
func Rank(items []models.QueueItem, counts map[string]int, voted map[string]bool) []Entry {
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, Entry{
			QueueItem:   item,
			Upvotes:     counts[item.ID],
			HaveUpvoted: voted[item.ID],
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return Less(entries[i], entries[j])
	})
	return entries
}

// Top returns the highest ranked unplayed item, or nil.
func Top(items []models.QueueItem, counts map[string]int) *models.QueueItem {
	var best *Entry
	for _, item := range items {
		if item.Played {
			continue
		}
		e := Entry{QueueItem: item, Upvotes: counts[item.ID]}
		if best == nil || Less(e, *best) {
			best = &e
		}
	}
	if best == nil {
		return nil
	}
	top := best.QueueItem
	return &top
}
