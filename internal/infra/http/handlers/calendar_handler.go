package handlers

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xavierca1/firm-backoffice/internal/usecase"
)

const defaultCalendarSpan = 30 * 24 * time.Hour

type CalendarHandler struct {
	calendar *usecase.EditorialCalendarUseCase
	now      func() time.Time
	log      logrus.FieldLogger
}

func NewCalendarHandler(calendar *usecase.EditorialCalendarUseCase, log logrus.FieldLogger) *CalendarHandler {
	return &CalendarHandler{calendar: calendar, now: time.Now, log: log}
}

// Get serves ?from=&to=. Without from the range starts today; without to it
// spans 30 days. A plain date for to includes that whole day.
func (h *CalendarHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var errs usecase.ValidationErrors

	from := h.now().UTC().Truncate(24 * time.Hour)
	if raw := q.Get("from"); raw != "" {
		ts, err := parseTime(raw)
		if err != nil {
			errs = append(errs, usecase.ValidationError{Field: "from", Message: err.Error()})
		}
		from = ts
	}

	to := from.Add(defaultCalendarSpan)
	if raw := q.Get("to"); raw != "" {
		ts, err := parseTime(raw)
		if err != nil {
			errs = append(errs, usecase.ValidationError{Field: "to", Message: err.Error()})
		}
		if len(raw) == len(time.DateOnly) {
			ts = ts.Add(24*time.Hour - time.Nanosecond)
		}
		to = ts
	}

	if len(errs) > 0 {
		writeError(w, r, h.log, errs)
		return
	}

	days, err := h.calendar.Execute(r.Context(), from, to)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}
