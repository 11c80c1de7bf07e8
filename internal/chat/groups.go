package chat

import (
	"time"

	"github.com/cocoja-ai/chatkit/internal/model"
)

// Sidebar group labels, in display order.
const (
	GroupToday     = "Today"
	GroupYesterday = "Yesterday"
	GroupLastWeek  = "Last 7 days"
	GroupOlder     = "Older"
)

// Grouped buckets the conversations by the local calendar day of their last
// update relative to now. Empty buckets are omitted. The view is a snapshot
// of copies, derived fresh on every call and never stored.
func (s *Store) Grouped(now time.Time) []model.Group {
	today := startOfDay(now)
	yesterday := today.AddDate(0, 0, -1)
	weekAgo := today.AddDate(0, 0, -7)

	buckets := map[string][]model.Conversation{}

	s.mu.Lock()
	for _, conv := range s.conversations {
		updated := conv.UpdatedAt.In(now.Location())
		day := startOfDay(updated)

		c := copyConversation(conv)
		switch {
		case day.Equal(today):
			buckets[GroupToday] = append(buckets[GroupToday], c)
		case day.Equal(yesterday):
			buckets[GroupYesterday] = append(buckets[GroupYesterday], c)
		case !updated.Before(weekAgo):
			buckets[GroupLastWeek] = append(buckets[GroupLastWeek], c)
		default:
			buckets[GroupOlder] = append(buckets[GroupOlder], c)
		}
	}
	s.mu.Unlock()

	var groups []model.Group
	for _, label := range []string{GroupToday, GroupYesterday, GroupLastWeek, GroupOlder} {
		if convs := buckets[label]; len(convs) > 0 {
			groups = append(groups, model.Group{Label: label, Conversations: convs})
		}
	}
	return groups
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
