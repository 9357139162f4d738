package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/xavierca1/firm-backoffice/internal/catalog"
	"github.com/xavierca1/firm-backoffice/internal/entity"
	"github.com/xavierca1/firm-backoffice/internal/usecase"
)

var leadStatusColumns = []string{"status", "contacted_at", "resolved_at"}

var leadKinds = []entity.LeadKind{entity.LeadKindContact, entity.LeadKindCompanySetup, entity.LeadKindBeckhamLaw}

type LeadHandler struct {
	catalog *catalog.Catalog
	status  *usecase.ChangeLeadStatusUseCase
	log     logrus.FieldLogger
}

func NewLeadHandler(c *catalog.Catalog, status *usecase.ChangeLeadStatusUseCase, log logrus.FieldLogger) *LeadHandler {
	return &LeadHandler{catalog: c, status: status, log: log}
}

// Routes mounts the three lead tables under /{kind}. Status and its stamps are
// written only by POST /{id}/status so every change leaves a history row.
func (h *LeadHandler) Routes() chi.Router {
	r := chi.NewRouter()
	for _, kind := range leadKinds {
		leads, _ := h.catalog.Leads(kind)
		sub := NewResourceHandler(leads, h.log).Immutable(leadStatusColumns...).Routes()
		sub.Post("/{id}/status", h.ChangeStatus(kind))
		sub.Get("/{id}/history", h.History(kind))
		r.Mount("/"+string(kind), sub)
	}
	return r
}

func (h *LeadHandler) ChangeStatus(kind entity.LeadKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input usecase.ChangeLeadStatusInput
		if !decodeJSON(w, r, &input) {
			return
		}
		input.Kind = kind
		input.LeadID = chi.URLParam(r, "id")

		lead, err := h.status.Execute(r.Context(), input)
		if err != nil {
			writeError(w, r, h.log, err)
			return
		}
		writeJSON(w, http.StatusOK, lead)
	}
}

func (h *LeadHandler) History(kind entity.LeadKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := h.catalog.LeadHistory.List(r.Context(), entity.LeadHistoryFilter{
			LeadID:   chi.URLParam(r, "id"),
			LeadKind: kind,
		})
		if err != nil {
			writeError(w, r, h.log, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}
