// Package server exposes the card catalog and renderer over HTTP.
package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"newscard/internal/card"
	"newscard/internal/image"
	"newscard/internal/services"
	"newscard/internal/storage"
)

const (
	// maxBody bounds a render request, uploads included.
	maxBody = 32 << 20

	apiKeyHeader = "X-Api-Key"
)

type ChannelStore interface {
	Channels() []card.Channel
	Channel(id string) (card.Channel, error)
}

type Server struct {
	cards       *services.CardService
	channels    ChannelStore
	premiumKeys []string
	logger      *log.Logger
}

// New builds the server. Callers presenting one of premiumKeys in the
// X-Api-Key header render on the premium plan, everyone else on the free one.
func New(cards *services.CardService, channels ChannelStore, premiumKeys []string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{cards: cards, channels: channels, premiumKeys: premiumKeys, logger: logger}
}

func (s *Server) planFor(r *http.Request) services.Plan {
	key := r.Header.Get(apiKeyHeader)
	if key == "" {
		return services.PlanFree
	}
	for _, k := range s.premiumKeys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return services.PlanPremium
		}
	}
	return services.PlanFree
}

// Router builds the HTTP routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: s.logger, NoColor: true}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Get("/channels", s.listChannels)
		r.Get("/channels/{id}/templates", s.channelTemplates)
		r.Get("/templates/{id}/form", s.templateForm)
		r.Post("/render", s.render)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.channels.Channels())
}

func (s *Server) channelTemplates(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.channels.Channel(id); err != nil {
		s.fail(w, err)
		return
	}
	templates := s.cards.TemplatesFor(id)
	if templates == nil {
		templates = []*card.Template{}
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) templateForm(w http.ResponseWriter, r *http.Request) {
	form, err := s.cards.Form(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// fail maps domain errors to status codes.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrTierNotAllowed):
		status = http.StatusForbidden
	case errors.Is(err, card.ErrInvalidTemplate), errors.Is(err, image.ErrSurface):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.logger.Printf("request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
