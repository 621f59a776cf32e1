// Package api serves the synchronizer's pull-based queries over HTTP so a
// headless client can be driven by any UI.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/pelusa-v/chatsync/internal/chat"
	"github.com/pelusa-v/chatsync/internal/logging"
)

type server struct {
	session *chat.Session
	ring    *logging.Ring
	log     zerolog.Logger
}

// NewHandler builds the router over session. ring may be nil, in which case
// /debug/log is empty.
func NewHandler(session *chat.Session, ring *logging.Ring, log zerolog.Logger) http.Handler {
	s := &server{session: session, ring: ring, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.session.Status())
	})
	r.Get("/rooms", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.session.Rooms())
	})
	r.Post("/rooms/{id}/select", s.selectRoom)
	r.Get("/messages", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.session.Messages())
	})
	r.Post("/messages", s.send)
	r.Post("/typing", s.typing)
	r.Put("/username", s.rename)
	r.Get("/debug/log", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if s.ring != nil {
			_, _ = w.Write(s.ring.Bytes())
		}
	})
	return r
}

func (s *server) selectRoom(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.session.SelectRoom(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *server) send(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if !decode(w, r, &req) {
		return
	}
	m, err := s.session.Send(req.Content)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *server) typing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.session.OnTyping(req.Content); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) rename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.session.ChangeUsername(req.Name); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.User())
}

func (s *server) fail(w http.ResponseWriter, err error) {
	code := http.StatusBadGateway
	switch {
	case errors.Is(err, chat.ErrUnknownRoom):
		code = http.StatusNotFound
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrMissingUsername):
		code = http.StatusBadRequest
	case errors.Is(err, chat.ErrNotConnected):
		code = http.StatusServiceUnavailable
	}
	if code == http.StatusBadGateway {
		s.log.Error().Err(err).Msg("[api] request failed")
	}
	writeJSON(w, code, map[string]any{"error": err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
