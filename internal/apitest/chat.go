package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

type conversationSummary struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	LastMessage  string    `json:"last_message"`
}

type conversationDetail struct {
	conversationSummary
	Messages []message `json:"messages"`
}

func summarize(c *conversation) conversationSummary {
	sum := conversationSummary{
		ID:           c.ID,
		Title:        c.Title,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		MessageCount: len(c.messages),
	}
	if n := len(c.messages); n > 0 {
		sum.LastMessage = c.messages[n-1].Content
	}
	return sum
}

func (s *Server) pathConv(w http.ResponseWriter, r *http.Request) (*conversation, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return nil, false
	}
	s.mu.Lock()
	conv, ok := s.convs[id]
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return nil, false
	}
	return conv, true
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]conversationSummary, 0, len(s.convs))
	for _, id := range s.convOrder {
		out = append(out, summarize(s.convs[id]))
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	now := time.Now().UTC()
	s.mu.Lock()
	s.nextConv++
	conv := &conversation{ID: s.nextConv, Title: req.Title, CreatedAt: now, UpdatedAt: now}
	s.convs[conv.ID] = conv
	s.convOrder = append(s.convOrder, conv.ID)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, conversationDetail{conversationSummary: summarize(conv), Messages: []message{}})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.pathConv(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	detail := conversationDetail{conversationSummary: summarize(conv), Messages: append([]message{}, conv.messages...)}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleRenameConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.pathConv(w, r)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.mu.Lock()
	conv.Title = req.Title
	conv.UpdatedAt = time.Now().UTC()
	sum := summarize(conv)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.pathConv(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.convs, conv.ID)
	for i, id := range s.convOrder {
		if id == conv.ID {
			s.convOrder = append(s.convOrder[:i], s.convOrder[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddMessage(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.pathConv(w, r)
	if !ok {
		return
	}
	var req struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Role == "" {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.mu.Lock()
	s.nextMsg++
	msg := message{ID: s.nextMsg, Role: req.Role, Content: req.Content, CreatedAt: time.Now().UTC()}
	conv.messages = append(conv.messages, msg)
	conv.UpdatedAt = msg.CreatedAt
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.pathConv(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	msgs := append([]message{}, conv.messages...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question       string `json:"question"`
		ConversationID int64  `json:"conversation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if s.AskStall > 0 {
		select {
		case <-time.After(s.AskStall):
		case <-r.Context().Done():
			return
		}
	}
	if s.FailAsk {
		writeDetail(w, http.StatusInternalServerError, "model unavailable")
		return
	}

	answer := s.Answer
	if answer == "" {
		answer = fmt.Sprintf("answer to: %s", req.Question)
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}
