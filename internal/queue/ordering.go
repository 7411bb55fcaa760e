package queue

import (
	"sort"

	"backend-loket/internal/models"

	"github.com/google/uuid"
)

// Less is the serve order among waiting entries: priority class first, then
// registration time, then token number.
func Less(a, b models.QueueEntry) bool {
	if a.IsPriority != b.IsPriority {
		return a.IsPriority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.TokenNumber < b.TokenNumber
}

// Order returns the waiting entries of in, sorted by serve order. in is not modified.
func Order(in []models.QueueEntry) []models.QueueEntry {
	out := make([]models.QueueEntry, 0, len(in))
	for _, e := range in {
		if e.Status == models.StatusWaiting {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}

// Head picks the next entry to serve.
func Head(in []models.QueueEntry) (models.QueueEntry, bool) {
	var (
		head  models.QueueEntry
		found bool
	)
	for _, e := range in {
		if e.Status != models.StatusWaiting {
			continue
		}
		if !found || Less(e, head) {
			head = e
			found = true
		}
	}
	return head, found
}

// Position is the 1-based rank of id among waiting entries, 0 if it is not waiting.
func Position(in []models.QueueEntry, id uuid.UUID) int {
	for i, e := range Order(in) {
		if e.ID == id {
			return i + 1
		}
	}
	return 0
}
