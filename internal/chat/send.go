package chat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cocoja-ai/chatkit/internal/errs"
	"github.com/cocoja-ai/chatkit/internal/model"
	"github.com/cocoja-ai/chatkit/pkg/metrics"
)

// Send runs one chat turn. The user message appears in local state before any
// network round trip; the assistant reply (or a synthetic apology) is
// appended when the AI call settles. Cancellation via ctx propagates as-is
// and never produces the apology message.
func (s *Store) Send(ctx context.Context, text string, authenticated bool) error {
	if authenticated {
		return s.sendAuthenticated(ctx, text)
	}
	return s.sendGuest(ctx, text)
}

func (s *Store) sendAuthenticated(ctx context.Context, text string) error {
	if s.currentIDSnapshot().IsZero() {
		if _, err := s.NewConversation(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	conv := s.findLocked(s.currentID)
	if conv == nil {
		s.mu.Unlock()
		return errs.ErrNoConversation
	}
	id := conv.ID
	remote, _ := id.Remote()

	userMsg := model.Message{
		ID:        model.NewPlaceholderID(),
		Role:      model.RoleUser,
		Text:      text,
		Timestamp: time.Now(),
	}
	conv.Messages = append(conv.Messages, userMsg)
	conv.UpdatedAt = time.Now()

	firstMessage := len(conv.Messages) == 1
	var title string
	if firstMessage {
		title = deriveTitle(text)
		conv.Title = title
	}
	s.mu.Unlock()
	metrics.RecordMessage(string(model.RoleUser), "authenticated")

	// Neither the title write nor the user-message persist blocks the send;
	// both survive cancellation of the AI call and are waited on by Flush.
	if firstMessage && remote != 0 {
		s.persists.Add(1)
		go func() {
			defer s.persists.Done()
			if err := s.api.RenameConversation(context.WithoutCancel(ctx), remote, title); err != nil {
				s.log.Warn("title persist failed", zap.Int64("conversation", remote), zap.Error(err))
			}
		}()
	}
	s.persists.Add(1)
	go func() {
		defer s.persists.Done()
		s.persistUserMessage(context.WithoutCancel(ctx), id, userMsg.ID, text)
	}()

	s.setComposing(true)
	answer, err := s.api.Ask(ctx, text, remote)
	if err != nil {
		s.setComposing(false)
		if isCtxErr(err) {
			return err
		}
		metrics.SendFailuresTotal.Inc()
		s.appendAssistantInPlace(id, apologyText)
		return err
	}

	s.setComposing(false)
	s.appendAssistant(id, answer)
	metrics.RecordMessage(string(model.RoleAssistant), "authenticated")
	return nil
}

// persistUserMessage saves the optimistic user message and swaps its
// placeholder id for the server-assigned one, position unchanged.
func (s *Store) persistUserMessage(ctx context.Context, id model.ConversationID, placeholderID, text string) {
	remote, ok := id.Remote()
	if !ok {
		return
	}
	saved, err := s.api.AddMessage(ctx, remote, model.RoleUser, text)
	if err != nil {
		s.log.Warn("user message persist failed", zap.Int64("conversation", remote), zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.findLocked(id)
	if conv == nil {
		return
	}
	for i := range conv.Messages {
		if conv.Messages[i].ID == placeholderID {
			conv.Messages[i].ID = saved.ID
			return
		}
	}
}

// appendAssistant adds an assistant reply, bumps the conversation's
// last-modified time and moves it to the front of the list.
func (s *Store) appendAssistant(id model.ConversationID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.appendAssistantLocked(id, text)
	if conv == nil {
		return
	}
	conv.UpdatedAt = time.Now()

	for i, c := range s.conversations {
		if c.ID == id {
			if i > 0 {
				copy(s.conversations[1:i+1], s.conversations[:i])
				s.conversations[0] = conv
			}
			return
		}
	}
}

// appendAssistantInPlace adds an assistant message without touching the
// last-modified time or the list order. The apology after a failed send must
// not reshuffle the sidebar.
func (s *Store) appendAssistantInPlace(id model.ConversationID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendAssistantLocked(id, text)
}

func (s *Store) appendAssistantLocked(id model.ConversationID, text string) *model.Conversation {
	conv := s.findLocked(id)
	if conv == nil {
		return nil
	}
	conv.Messages = append(conv.Messages, model.Message{
		ID:        model.NewPlaceholderID(),
		Role:      model.RoleAssistant,
		Text:      text,
		Timestamp: time.Now(),
	})
	return conv
}

func (s *Store) sendGuest(ctx context.Context, text string) error {
	s.mu.Lock()
	s.guestMessages = append(s.guestMessages, model.Message{
		ID:        model.NewGuestID(),
		Role:      model.RoleUser,
		Text:      text,
		Timestamp: time.Now(),
	})
	s.guestPosts++
	s.mu.Unlock()
	metrics.RecordMessage(string(model.RoleUser), "guest")

	s.setComposing(true)
	answer, err := s.api.Ask(ctx, text, 0)
	s.setComposing(false)
	if err != nil {
		if isCtxErr(err) {
			return err
		}
		metrics.SendFailuresTotal.Inc()
		s.appendGuest(model.RoleAssistant, guestApologyText)
		return err
	}

	s.appendGuest(model.RoleAssistant, answer)
	metrics.RecordMessage(string(model.RoleAssistant), "guest")
	return nil
}

func (s *Store) appendGuest(role model.Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guestMessages = append(s.guestMessages, model.Message{
		ID:        model.NewGuestID(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	})
}

func (s *Store) setComposing(v bool) {
	s.mu.Lock()
	s.composing = v
	s.mu.Unlock()
}

func (s *Store) currentIDSnapshot() model.ConversationID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}
