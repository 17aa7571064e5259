package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/kayesmahmud/Speaky/pkg/access"
	"github.com/kayesmahmud/Speaky/pkg/auth"
	"github.com/kayesmahmud/Speaky/pkg/correction"
	"github.com/kayesmahmud/Speaky/pkg/messages"
	"github.com/kayesmahmud/Speaky/pkg/store"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type server struct {
	messages    *messages.Service
	corrections *correction.Service
	presence    presenceSource
	verifier    auth.Verifier
	log         *zap.Logger
}

// routes mounts the REST surface under /api. CORS wraps the router itself so
// preflight requests are answered before method matching.
func (s *server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.AuthMiddleware)
	api.HandleFunc("/connections/{id:[0-9]+}/messages", s.history).Methods(http.MethodGet)
	api.HandleFunc("/connections/{id:[0-9]+}/messages", s.send).Methods(http.MethodPost)
	api.HandleFunc("/connections/{id:[0-9]+}/messages/read", s.markRead).Methods(http.MethodPost)
	api.HandleFunc("/connections/{id:[0-9]+}/messages/unread", s.unread).Methods(http.MethodGet)
	api.HandleFunc("/messages/unread", s.totalUnread).Methods(http.MethodGet)
	api.HandleFunc("/corrections", s.createCorrection).Methods(http.MethodPost)
	api.HandleFunc("/corrections/my", s.myCorrections).Methods(http.MethodGet)
	api.HandleFunc("/corrections/message/{id:[0-9]+}", s.messageCorrections).Methods(http.MethodGet)
	api.HandleFunc("/corrections/{id:[0-9]+}", s.deleteCorrection).Methods(http.MethodDelete)
	api.HandleFunc("/users/{id:[0-9]+}/presence", s.userPresence).Methods(http.MethodGet)
	return CORSMiddleware(r)
}

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// AuthMiddleware puts the verified user id into the request context.
func (s *server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.verifier.Verify(auth.BearerToken(r))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), auth.UserKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func userID(r *http.Request) int64 {
	id, _ := r.Context().Value(auth.UserKey).(int64)
	return id
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps a service error onto a status code. Unexpected errors are logged
// and hidden from the caller.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, status, "Internal server error")
		return
	}
	writeError(w, status, reason(err))
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, access.ErrAccessDenied),
		errors.Is(err, correction.ErrForbidden),
		errors.Is(err, correction.ErrOwnMessage),
		errors.Is(err, correction.ErrNotAuthor):
		return http.StatusForbidden
	case errors.Is(err, correction.ErrInvalid), errors.Is(err, messages.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func reason(err error) string {
	switch errStatus(err) {
	case http.StatusNotFound:
		return "Not found"
	case http.StatusForbidden:
		switch {
		case errors.Is(err, correction.ErrOwnMessage):
			return "You cannot correct your own message"
		case errors.Is(err, correction.ErrNotAuthor):
			return "You can only delete your own corrections"
		}
		return "Access denied"
	default:
		return err.Error()
	}
}
