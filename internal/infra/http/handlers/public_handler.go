package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/xavierca1/firm-backoffice/internal/usecase"
)

// PublicHandler serves the unauthenticated website forms.
type PublicHandler struct {
	contact       *usecase.SubmitContactUseCase
	whistleblower *usecase.WhistleblowerUseCase
	log           logrus.FieldLogger
}

func NewPublicHandler(contact *usecase.SubmitContactUseCase, wb *usecase.WhistleblowerUseCase, log logrus.FieldLogger) *PublicHandler {
	return &PublicHandler{contact: contact, whistleblower: wb, log: log}
}

func (h *PublicHandler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	var input usecase.ContactInput
	if !decodeJSON(w, r, &input) {
		return
	}

	out, err := h.contact.Execute(r.Context(), input)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *PublicHandler) SubmitWhistleblower(w http.ResponseWriter, r *http.Request) {
	var input usecase.WhistleblowerInput
	if !decodeJSON(w, r, &input) {
		return
	}

	receipt, err := h.whistleblower.Submit(r.Context(), input)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (h *PublicHandler) LookupWhistleblower(w http.ResponseWriter, r *http.Request) {
	status, err := h.whistleblower.Lookup(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
