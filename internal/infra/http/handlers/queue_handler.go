package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/xavierca1/firm-backoffice/internal/catalog"
	"github.com/xavierca1/firm-backoffice/internal/entity"
	"github.com/xavierca1/firm-backoffice/internal/usecase"
)

type QueueHandler struct {
	catalog *catalog.Catalog
	queues  map[entity.QueueKind]*usecase.GenerationQueue
	log     logrus.FieldLogger
}

func NewQueueHandler(c *catalog.Catalog, queues map[entity.QueueKind]*usecase.GenerationQueue, log logrus.FieldLogger) *QueueHandler {
	return &QueueHandler{catalog: c, queues: queues, log: log}
}

type SweepResponse struct {
	Queue    entity.QueueKind `json:"queue"`
	Affected int              `json:"affected"`
}

type ClaimRequest struct {
	Owner string `json:"owner"`
}

type LeaseRequest struct {
	Owner    string `json:"owner"`
	ResultID string `json:"result_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Routes mounts one subtree per queue. Items are read through the generic
// handler but only change state through the lease endpoints.
func (h *QueueHandler) Routes() chi.Router {
	r := chi.NewRouter()
	for kind, q := range h.queues {
		items, ok := h.catalog.Queue(kind)
		if !ok {
			continue
		}
		q := q
		sub := chi.NewRouter()
		sub.Get("/diagnostics", h.Diagnostics(q))
		sub.Post("/reset-stuck", h.ResetStuck(q))
		sub.Post("/retry-failed", h.RetryFailed(q))
		sub.Post("/claim", h.Claim(q))

		itemRoutes := NewResourceHandler(items, h.log).ReadOnly().Routes()
		itemRoutes.Post("/", h.Enqueue(q))
		itemRoutes.Post("/{id}/renew", h.Renew(q))
		itemRoutes.Post("/{id}/complete", h.Complete(q))
		itemRoutes.Post("/{id}/fail", h.Fail(q))
		sub.Mount("/items", itemRoutes)
		r.Mount("/"+string(kind), sub)
	}
	return r
}

func (h *QueueHandler) Diagnostics(q *usecase.GenerationQueue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := q.Diagnostics(r.Context())
		if err != nil {
			writeError(w, r, h.log, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func (h *QueueHandler) ResetStuck(q *usecase.GenerationQueue) http.HandlerFunc {
	return h.sweep(q, q.ResetStuck)
}

func (h *QueueHandler) RetryFailed(q *usecase.GenerationQueue) http.HandlerFunc {
	return h.sweep(q, q.RetryFailed)
}

func (h *QueueHandler) sweep(q *usecase.GenerationQueue, run func(ctx context.Context) (int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := run(r.Context())
		if err != nil {
			writeError(w, r, h.log, err)
			return
		}
		writeJSON(w, http.StatusOK, SweepResponse{Queue: q.Kind(), Affected: n})
	}
}

func (h *QueueHandler) Enqueue(q *usecase.GenerationQueue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input usecase.EnqueueInput
		if !decodeJSON(w, r, &input) {
			return
		}
		item, err := q.Enqueue(r.Context(), input)
		if err != nil {
			writeError(w, r, h.log, err)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	}
}

// Claim answers 204 when nothing is pending.
func (h *QueueHandler) Claim(q *usecase.GenerationQueue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ClaimRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		item, err := q.Claim(r.Context(), req.Owner)
		if errors.Is(err, usecase.ErrQueueEmpty) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err != nil {
			writeError(w, r, h.log, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func (h *QueueHandler) Renew(q *usecase.GenerationQueue) http.HandlerFunc {
	return h.leased(func(r *http.Request, req LeaseRequest) (*entity.QueueItem, error) {
		return q.Renew(r.Context(), chi.URLParam(r, "id"), req.Owner)
	})
}

func (h *QueueHandler) Complete(q *usecase.GenerationQueue) http.HandlerFunc {
	return h.leased(func(r *http.Request, req LeaseRequest) (*entity.QueueItem, error) {
		return q.Complete(r.Context(), chi.URLParam(r, "id"), req.Owner, req.ResultID)
	})
}

func (h *QueueHandler) Fail(q *usecase.GenerationQueue) http.HandlerFunc {
	return h.leased(func(r *http.Request, req LeaseRequest) (*entity.QueueItem, error) {
		return q.Fail(r.Context(), chi.URLParam(r, "id"), req.Owner, req.Error)
	})
}

func (h *QueueHandler) leased(op func(*http.Request, LeaseRequest) (*entity.QueueItem, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LeaseRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Owner == "" {
			writeError(w, r, h.log, usecase.ValidationErrors{{Field: "owner", Message: "is required"}})
			return
		}
		item, err := op(r, req)
		if err != nil {
			writeError(w, r, h.log, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}
