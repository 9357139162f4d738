package handlers

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/firm-backoffice/internal/entity"
	"github.com/xavierca1/firm-backoffice/internal/usecase"
)

func TestDecodeFilter(t *testing.T) {
	t.Run("absent params leave fields empty", func(t *testing.T) {
		f, err := decodeFilter[entity.LeadFilter](url.Values{})
		require.NoError(t, err)
		assert.Equal(t, entity.LeadFilter{}, f)
		assert.Empty(t, f.Predicates())
	})

	t.Run("typed fields", func(t *testing.T) {
		q := url.Values{"status": {"won"}, "from": {"2025-01-01"}, "to": {"2025-02-01T10:00:00Z"}}
		f, err := decodeFilter[entity.LeadFilter](q)
		require.NoError(t, err)
		assert.Equal(t, entity.LeadWon, f.Status)
		require.NotNil(t, f.From)
		assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *f.From)
		assert.Equal(t, time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC), *f.To)
	})

	t.Run("bool pointer", func(t *testing.T) {
		f, err := decodeFilter[entity.EmployeeFilter](url.Values{"active": {"false"}})
		require.NoError(t, err)
		require.NotNil(t, f.Active)
		assert.False(t, *f.Active)
	})

	t.Run("errors are collected per field", func(t *testing.T) {
		q := url.Values{"active": {"maybe"}, "shoe_size": {"42"}, "group_by": {"department"}}
		_, err := decodeFilter[entity.EmployeeFilter](q, "group_by")

		var verrs usecase.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Equal(t, usecase.ValidationErrors{
			{Field: "active", Message: "must be true or false"},
			{Field: "shoe_size", Message: "is not a known filter"},
		}, verrs)
	})
}
