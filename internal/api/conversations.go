package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cocoja-ai/chatkit/internal/model"
)

// Wire shapes for the backend's snake_case JSON.

type wireMessage struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type wireConversation struct {
	ID           int64         `json:"id"`
	Title        string        `json:"title"`
	Messages     []wireMessage `json:"messages"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	MessageCount int           `json:"message_count"`
	LastMessage  string        `json:"last_message"`
}

func toMessage(m wireMessage) model.Message {
	return model.Message{
		ID:        strconv.FormatInt(m.ID, 10),
		Role:      model.Role(m.Role),
		Text:      m.Content,
		Timestamp: m.CreatedAt,
	}
}

func toConversation(c wireConversation) model.Conversation {
	conv := model.Conversation{
		ID:           model.RemoteID(c.ID),
		Title:        c.Title,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		MessageCount: c.MessageCount,
		LastMessage:  c.LastMessage,
	}
	for _, m := range c.Messages {
		conv.Messages = append(conv.Messages, toMessage(m))
	}
	return conv
}

// ListConversations fetches the conversation summaries, most recent first.
func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	var wire []wireConversation
	if err := c.do(ctx, http.MethodGet, "/chat/conversations/", nil, &wire); err != nil {
		return nil, err
	}
	convs := make([]model.Conversation, 0, len(wire))
	for _, w := range wire {
		convs = append(convs, toConversation(w))
	}
	return convs, nil
}

// GetConversation fetches one conversation including its full message list.
func (c *Client) GetConversation(ctx context.Context, id int64) (model.Conversation, error) {
	var wire wireConversation
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/chat/conversations/%d/", id), nil, &wire); err != nil {
		return model.Conversation{}, err
	}
	return toConversation(wire), nil
}

type createConversationRequest struct {
	Title string `json:"title,omitempty"`
}

// CreateConversation creates a server-backed conversation.
func (c *Client) CreateConversation(ctx context.Context, title string) (model.Conversation, error) {
	var wire wireConversation
	if err := c.do(ctx, http.MethodPost, "/chat/conversations/", createConversationRequest{Title: title}, &wire); err != nil {
		return model.Conversation{}, err
	}
	return toConversation(wire), nil
}

type renameConversationRequest struct {
	Title string `json:"title"`
}

// RenameConversation persists a new title.
func (c *Client) RenameConversation(ctx context.Context, id int64, title string) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/chat/conversations/%d/", id), renameConversationRequest{Title: title}, nil)
}

// DeleteConversation removes a conversation server-side.
func (c *Client) DeleteConversation(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/chat/conversations/%d/", id), nil, nil)
}

type addMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AddMessage persists one message and returns the server's copy, carrying the
// assigned id.
func (c *Client) AddMessage(ctx context.Context, id int64, role model.Role, content string) (model.Message, error) {
	var wire wireMessage
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/chat/conversations/%d/add_message/", id), addMessageRequest{
		Role:    string(role),
		Content: content,
	}, &wire)
	if err != nil {
		return model.Message{}, err
	}
	return toMessage(wire), nil
}

// ListMessages fetches the message history of one conversation.
func (c *Client) ListMessages(ctx context.Context, id int64) ([]model.Message, error) {
	var wire []wireMessage
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/chat/conversations/%d/messages/", id), nil, &wire); err != nil {
		return nil, err
	}
	msgs := make([]model.Message, 0, len(wire))
	for _, m := range wire {
		msgs = append(msgs, toMessage(m))
	}
	return msgs, nil
}

type askRequest struct {
	Question       string `json:"question"`
	ConversationID int64  `json:"conversation_id,omitempty"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

// Ask requests an AI-generated reply, optionally scoped to a conversation
// (conversationID 0 means unscoped). The context may carry an external abort
// signal; cancellation is reported as such, never as a transport failure.
func (c *Client) Ask(ctx context.Context, question string, conversationID int64) (string, error) {
	var resp askResponse
	if err := c.do(ctx, http.MethodPost, "/chat/ask/", askRequest{
		Question:       question,
		ConversationID: conversationID,
	}, &resp); err != nil {
		return "", err
	}
	return resp.Answer, nil
}
