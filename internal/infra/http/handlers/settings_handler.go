package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/xavierca1/firm-backoffice/internal/catalog"
	"github.com/xavierca1/firm-backoffice/internal/entity"
)

type SettingsHandler struct {
	catalog *catalog.Catalog
	log     logrus.FieldLogger
}

func NewSettingsHandler(c *catalog.Catalog, log logrus.FieldLogger) *SettingsHandler {
	return &SettingsHandler{catalog: c, log: log}
}

func (h *SettingsHandler) settings(w http.ResponseWriter, r *http.Request) (*catalog.SettingsStore, bool) {
	kind := entity.QueueKind(chi.URLParam(r, "kind"))
	s, ok := h.catalog.Settings(kind)
	if !ok {
		notFound(w, "settings for "+string(kind))
	}
	return s, ok
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.settings(w, r)
	if !ok {
		return
	}
	current, err := s.Get(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

// Put replaces the whole settings row.
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	s, ok := h.settings(w, r)
	if !ok {
		return
	}

	var next entity.AutomationSettings
	if !decodeJSON(w, r, &next) {
		return
	}
	if next.Topics == nil {
		next.Topics = []string{}
	}
	if next.Languages == nil {
		next.Languages = []string{}
	}

	saved, err := s.Save(r.Context(), &next)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
