package main

import (
	"encoding/json"
	"net/http"

	"github.com/kayesmahmud/Speaky/pkg/model"
)

type sendRequest struct {
	Content string `json:"content"`
	Type    string `json:"type"`
}

func (s *server) history(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.messages.History(r.Context(), userID(r), pathID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// send stores a message over REST. Partners see it on their next history
// fetch; realtime delivery goes through the gateway.
func (s *server) send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Type == "" {
		req.Type = string(model.TypeText)
	}
	msg, err := s.messages.Send(r.Context(), userID(r), pathID(r), req.Content, req.Type)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *server) markRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.messages.MarkRead(r.Context(), userID(r), pathID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"marked_read": n})
}

func (s *server) unread(w http.ResponseWriter, r *http.Request) {
	n, err := s.messages.UnreadCount(r.Context(), userID(r), pathID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread_count": n})
}

func (s *server) totalUnread(w http.ResponseWriter, r *http.Request) {
	n, err := s.messages.TotalUnread(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"total_unread_count": n})
}
