package main

import (
	"encoding/json"
	"net/http"

	"github.com/kayesmahmud/Speaky/pkg/correction"
)

func (s *server) createCorrection(w http.ResponseWriter, r *http.Request) {
	var req correction.Create
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MessageID <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	v, err := s.corrections.Create(r.Context(), userID(r), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *server) messageCorrections(w http.ResponseWriter, r *http.Request) {
	list, err := s.corrections.ForMessage(r.Context(), userID(r), pathID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *server) myCorrections(w http.ResponseWriter, r *http.Request) {
	list, err := s.corrections.Mine(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *server) deleteCorrection(w http.ResponseWriter, r *http.Request) {
	if err := s.corrections.Delete(r.Context(), userID(r), pathID(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
