package handlers

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/xavierca1/firm-backoffice/internal/accessor"
	"github.com/xavierca1/firm-backoffice/internal/store"
	"github.com/xavierca1/firm-backoffice/internal/usecase"
)

// ResourceHandler exposes one accessor as list/get/create/patch/delete plus
// a grouped stats endpoint.
type ResourceHandler[T any, F accessor.Filter] struct {
	res       *accessor.Resource[T, F]
	log       logrus.FieldLogger
	readOnly  bool
	immutable []string
}

func NewResourceHandler[T any, F accessor.Filter](res *accessor.Resource[T, F], log logrus.FieldLogger) *ResourceHandler[T, F] {
	return &ResourceHandler[T, F]{res: res, log: log.WithField("table", res.Table().Name)}
}

// ReadOnly drops the write routes. Rows are then only changed through the
// dedicated business endpoints.
func (h *ResourceHandler[T, F]) ReadOnly() *ResourceHandler[T, F] {
	c := *h
	c.readOnly = true
	return &c
}

// Immutable rejects PATCH bodies that touch columns. They stay writable only
// through the business endpoints that own them.
func (h *ResourceHandler[T, F]) Immutable(columns ...string) *ResourceHandler[T, F] {
	c := *h
	c.immutable = append(slices.Clone(h.immutable), columns...)
	return &c
}

func (h *ResourceHandler[T, F]) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/stats", h.Stats)
	r.Get("/{id}", h.Get)
	if !h.readOnly {
		r.Post("/", h.Create)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	}
	return r
}

func (h *ResourceHandler[T, F]) List(w http.ResponseWriter, r *http.Request) {
	filter, err := decodeFilter[F](r.URL.Query())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	rows, err := h.res.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *ResourceHandler[T, F]) Get(w http.ResponseWriter, r *http.Request) {
	row, err := h.res.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (h *ResourceHandler[T, F]) Create(w http.ResponseWriter, r *http.Request) {
	var row T
	if !decodeJSON(w, r, &row) {
		return
	}

	created, err := h.res.Create(r.Context(), &row)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ResourceHandler[T, F]) Update(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if !decodeJSON(w, r, &body) {
		return
	}

	patch, err := usecase.ValidatePatch[T](body, h.immutable...)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	updated, err := h.res.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ResourceHandler[T, F]) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.res.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type StatsResponse struct {
	GroupBy string         `json:"group_by"`
	Sum     string         `json:"sum,omitempty"`
	Buckets []store.Bucket `json:"buckets"`
}

// Stats groups the filtered rows by ?group_by=, counting them or summing
// ?sum= per bucket. The reduction runs in the data store.
func (h *ResourceHandler[T, F]) Stats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	groupBy := q.Get("group_by")
	if groupBy == "" {
		writeError(w, r, h.log, usecase.ValidationErrors{{Field: "group_by", Message: "is required"}})
		return
	}

	filter, err := decodeFilter[F](q, "group_by", "sum")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	sum := q.Get("sum")
	var buckets []store.Bucket
	if sum != "" {
		buckets, err = h.res.SumBy(r.Context(), groupBy, sum, filter)
	} else {
		buckets, err = h.res.CountBy(r.Context(), groupBy, filter)
	}
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{GroupBy: groupBy, Sum: sum, Buckets: buckets})
}
