package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/xavierca1/firm-backoffice/internal/accessor"
	"github.com/xavierca1/firm-backoffice/internal/store"
	"github.com/xavierca1/firm-backoffice/internal/usecase"
)

const (
	CodeInvalidJSON = "INVALID_JSON"
	CodeNotFound    = "NOT_FOUND"
	CodeRemote      = "REMOTE_ERROR"
	CodeInternal    = "INTERNAL_ERROR"

	maxBodyBytes = 1 << 20
)

type ErrorResponse struct {
	Error   string                    `json:"error"`
	Message string                    `json:"message"`
	Fields  []usecase.ValidationError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message string, fields ...usecase.ValidationError) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message, Fields: fields})
}

// writeError maps every error a handler can see onto its status and code.
// Remote and unexpected failures are logged here and reported opaquely.
func writeError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	var (
		verrs  usecase.ValidationErrors
		rl     *usecase.RateLimitError
		de     *usecase.DomainError
		remote *store.RemoteError
	)

	switch {
	case errors.As(err, &verrs):
		writeErrorResponse(w, http.StatusBadRequest, usecase.CodeValidation, "request is invalid", verrs...)
	case errors.As(err, &rl):
		if rl.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
		}
		writeErrorResponse(w, http.StatusTooManyRequests, usecase.CodeRateLimited, "too many requests, try again later")
	case errors.Is(err, store.ErrNotFound):
		writeErrorResponse(w, http.StatusNotFound, CodeNotFound, "resource not found")
	case errors.Is(err, accessor.ErrNotGroupable):
		writeErrorResponse(w, http.StatusBadRequest, usecase.CodeValidation, "request is invalid",
			usecase.ValidationError{Field: "group_by", Message: "is not a groupable column"})
	case errors.As(err, &de):
		status := http.StatusUnprocessableEntity
		if de.Code == usecase.CodeLeaseLost {
			status = http.StatusConflict
		}
		writeErrorResponse(w, status, de.Code, de.Message)
	case errors.As(err, &remote):
		log.WithError(err).WithField("path", r.URL.Path).Error("data store request failed")
		writeErrorResponse(w, http.StatusInternalServerError, CodeRemote, "the data store could not complete the request")
	default:
		log.WithError(err).WithField("path", r.URL.Path).Error("unexpected error")
		writeErrorResponse(w, http.StatusInternalServerError, CodeInternal, "unexpected error")
	}
}

// decodeJSON reads a bounded body into dst and reports malformed input itself.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, CodeInvalidJSON, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

func notFound(w http.ResponseWriter, what string) {
	writeErrorResponse(w, http.StatusNotFound, CodeNotFound, what+" not found")
}
