package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cocoja-ai/chatkit/internal/model"
	"github.com/cocoja-ai/chatkit/internal/statestore"
	"github.com/cocoja-ai/chatkit/pkg/logger"
)

func newGroupingStore(t *testing.T, updated ...time.Time) *Store {
	t.Helper()
	state, err := statestore.Open(t.TempDir())
	require.NoError(t, err)
	s := NewStore(nil, state, logger.NewNop())
	for i, ts := range updated {
		s.conversations = append(s.conversations, &model.Conversation{
			ID:        model.RemoteID(int64(i + 1)),
			UpdatedAt: ts,
		})
	}
	return s
}

func TestGrouped_Buckets(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC)

	s := newGroupingStore(t,
		time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),  // midnight today -> Today
		time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),  // midnight yesterday -> Yesterday
		time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC), // within the week
		time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC),  // exactly seven days ago, still within
		time.Date(2026, 8, 22, 23, 59, 0, 0, time.UTC),
	)

	groups := s.Grouped(now)
	require.Len(t, groups, 4)
	require.Equal(t, GroupToday, groups[0].Label)
	require.Equal(t, GroupYesterday, groups[1].Label)
	require.Equal(t, GroupLastWeek, groups[2].Label)
	require.Equal(t, GroupOlder, groups[3].Label)
	require.Len(t, groups[2].Conversations, 2)
}

func TestGrouped_EmptyBucketsOmitted(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC)

	s := newGroupingStore(t,
		time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	)

	groups := s.Grouped(now)
	require.Len(t, groups, 2)
	require.Equal(t, GroupToday, groups[0].Label)
	require.Equal(t, GroupOlder, groups[1].Label)
}

func TestGrouped_ReturnsDetachedCopies(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC)

	s := newGroupingStore(t, now)
	s.conversations[0].Title = "original"
	s.conversations[0].Messages = []model.Message{
		{ID: "1", Role: model.RoleUser, Text: "hello"},
	}

	groups := s.Grouped(now)
	require.Len(t, groups, 1)
	snap := groups[0].Conversations[0]

	s.mu.Lock()
	s.conversations[0].Title = "renamed"
	s.conversations[0].Messages[0].Text = "rewritten"
	s.conversations[0].Messages = append(s.conversations[0].Messages, model.Message{
		ID: "2", Role: model.RoleAssistant, Text: "reply",
	})
	s.mu.Unlock()

	require.Equal(t, "original", snap.Title)
	require.Len(t, snap.Messages, 1)
	require.Equal(t, "hello", snap.Messages[0].Text)
}

func TestGrouped_Empty(t *testing.T) {
	t.Parallel()
	s := newGroupingStore(t)
	require.Empty(t, s.Grouped(time.Now()))
}
