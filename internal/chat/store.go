// Package chat is the single source of truth for conversation and message
// state. Server-backed conversations (authenticated users) and the in-memory
// guest buffer share one store; persistence behavior branches on whether the
// caller is authenticated.
package chat

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/cocoja-ai/chatkit/internal/api"
	"github.com/cocoja-ai/chatkit/internal/errs"
	"github.com/cocoja-ai/chatkit/internal/model"
	"github.com/cocoja-ai/chatkit/internal/statestore"
	"github.com/cocoja-ai/chatkit/pkg/logger"
)

const (
	// GuestPostLimit caps how many messages a guest may send. The store does
	// not reject over-cap sends itself; callers gate on CanPost first.
	GuestPostLimit = 5

	titleMaxRunes = 50

	apologyText      = "Sorry, something went wrong while talking to the server."
	guestApologyText = "You need to be signed in to use the assistant."
)

// Store holds all conversation state shown by the UI.
type Store struct {
	api   *api.Client
	state *statestore.Store
	log   *logger.Logger

	mu            sync.Mutex
	conversations []*model.Conversation
	currentID     model.ConversationID
	composing     bool
	loading       bool

	guestMessages []model.Message
	guestPosts    int

	// Background message/title writes in flight; see Flush.
	persists sync.WaitGroup
}

// NewStore builds a store and restores the persisted current-conversation
// selection, if any.
func NewStore(client *api.Client, state *statestore.Store, log *logger.Logger) *Store {
	s := &Store{
		api:   client,
		state: state,
		log:   log.WithComponent("chat"),
	}
	if v := state.Get(statestore.KeyCurrentConversation); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			s.currentID = model.RemoteID(n)
		}
	}
	return s
}

// Current returns a copy of the current conversation, if one is selected.
func (s *Store) Current() (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.findLocked(s.currentID)
	if conv == nil {
		return model.Conversation{}, false
	}
	return copyConversation(conv), true
}

// CurrentMessages returns the messages shown for the current selection: the
// current conversation's, or the guest buffer when none is selected.
func (s *Store) CurrentMessages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv := s.findLocked(s.currentID); conv != nil {
		return append([]model.Message(nil), conv.Messages...)
	}
	return append([]model.Message(nil), s.guestMessages...)
}

// Conversations returns copies of all conversations in list order.
func (s *Store) Conversations() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, copyConversation(conv))
	}
	return out
}

// Composing reports whether an assistant reply is in flight.
func (s *Store) Composing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.composing
}

// Loading reports whether the conversation list is being fetched.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// LoadConversations replaces local state with the server's conversation list.
// If nothing is selected afterwards and the list is non-empty, the first
// (most recently updated) conversation becomes current.
func (s *Store) LoadConversations(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	convs, err := s.api.ListConversations(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = s.conversations[:0]
	for i := range convs {
		c := convs[i]
		s.conversations = append(s.conversations, &c)
	}
	if s.findLocked(s.currentID) == nil {
		s.currentID = model.ConversationID{}
	}
	if s.currentID.IsZero() && len(s.conversations) > 0 {
		s.selectLocked(s.conversations[0].ID)
	}
	return nil
}

// LoadMessages fetches the full message history for one conversation.
func (s *Store) LoadMessages(ctx context.Context, id model.ConversationID) error {
	remote, ok := id.Remote()
	if !ok {
		return errs.ErrLocalConversation
	}
	full, err := s.api.GetConversation(ctx, remote)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv := s.findLocked(id); conv != nil {
		conv.Messages = full.Messages
	}
	return nil
}

// NewConversation creates a server-backed conversation, prepends it to the
// list and selects it.
func (s *Store) NewConversation(ctx context.Context) (model.Conversation, error) {
	conv, err := s.api.CreateConversation(ctx, "")
	if err != nil {
		return model.Conversation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = append([]*model.Conversation{&conv}, s.conversations...)
	s.selectLocked(conv.ID)
	return copyConversation(&conv), nil
}

// NewGuestConversation resets the in-memory guest buffer. Guest threads are
// not listed or switchable, so there is no identifier to track.
func (s *Store) NewGuestConversation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guestMessages = nil
	s.selectLocked(model.ConversationID{})
}

// SwitchTo changes the current selection and lazily loads messages the first
// time a server-backed conversation becomes current.
func (s *Store) SwitchTo(ctx context.Context, id model.ConversationID) error {
	s.mu.Lock()
	s.selectLocked(id)
	conv := s.findLocked(id)
	needLoad := conv != nil && len(conv.Messages) == 0
	s.mu.Unlock()

	if _, remote := id.Remote(); remote && needLoad {
		return s.LoadMessages(ctx, id)
	}
	return nil
}

// Delete removes a conversation. For server-backed ids the server delete must
// succeed first; local state never diverges from the server silently.
func (s *Store) Delete(ctx context.Context, id model.ConversationID) error {
	if remote, ok := id.Remote(); ok {
		if err := s.api.DeleteConversation(ctx, remote); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.conversations[:0]
	for _, conv := range s.conversations {
		if conv.ID != id {
			kept = append(kept, conv)
		}
	}
	s.conversations = kept
	if s.currentID == id {
		if len(s.conversations) > 0 {
			s.selectLocked(s.conversations[0].ID)
		} else {
			s.selectLocked(model.ConversationID{})
		}
	}
	return nil
}

// Rename updates a title. The local value is authoritative for display and
// changes immediately; the server write for remote ids is fire and forget.
func (s *Store) Rename(ctx context.Context, id model.ConversationID, title string) {
	s.mu.Lock()
	conv := s.findLocked(id)
	if conv == nil {
		s.mu.Unlock()
		return
	}
	conv.Title = title
	conv.UpdatedAt = time.Now()
	s.mu.Unlock()

	if remote, ok := id.Remote(); ok {
		s.persists.Add(1)
		go func() {
			defer s.persists.Done()
			if err := s.api.RenameConversation(context.WithoutCancel(ctx), remote, title); err != nil {
				s.log.Warn("title persist failed", zap.Int64("conversation", remote), zap.Error(err))
			}
		}()
	}
}

// Flush blocks until all queued background writes (user-message and title
// persists) have settled. Call before process exit so a fast shutdown cannot
// lose the server-side copy of an already-displayed message.
func (s *Store) Flush() {
	s.persists.Wait()
}

// CanPost reports whether a guest may still send. Callers check this before
// Send; the store does not enforce the cap inside Send.
func (s *Store) CanPost() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guestPosts < GuestPostLimit
}

// GuestPostCount returns the number of guest sends so far.
func (s *Store) GuestPostCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guestPosts
}

// InitForUser loads the authenticated user's conversations.
func (s *Store) InitForUser(ctx context.Context) error {
	return s.LoadConversations(ctx)
}

// ResetForGuest drops all state for a fresh guest session.
func (s *Store) ResetForGuest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = nil
	s.guestMessages = nil
	s.guestPosts = 0
	s.selectLocked(model.ConversationID{})
}

func (s *Store) findLocked(id model.ConversationID) *model.Conversation {
	if id.IsZero() {
		return nil
	}
	for _, conv := range s.conversations {
		if conv.ID == id {
			return conv
		}
	}
	return nil
}

func (s *Store) selectLocked(id model.ConversationID) {
	s.currentID = id
	if remote, ok := id.Remote(); ok {
		s.state.Set(statestore.KeyCurrentConversation, strconv.FormatInt(remote, 10))
		return
	}
	s.state.Delete(statestore.KeyCurrentConversation)
}

func copyConversation(conv *model.Conversation) model.Conversation {
	out := *conv
	out.Messages = append([]model.Message(nil), conv.Messages...)
	return out
}

func isCtxErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// deriveTitle truncates the first message to the title length, appending an
// ellipsis only when something was cut.
func deriveTitle(text string) string {
	if utf8.RuneCountInString(text) <= titleMaxRunes {
		return text
	}
	return string([]rune(text)[:titleMaxRunes]) + "…"
}
