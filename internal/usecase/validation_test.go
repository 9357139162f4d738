package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/firm-backoffice/internal/entity"
)

func fieldsOf(err error) map[string]string {
	out := map[string]string{}
	if verrs, ok := err.(ValidationErrors); ok {
		for _, v := range verrs {
			out[v.Field] = v.Message
		}
	}
	return out
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(&entity.Candidate{FullName: "Pau Serra", Email: "pau@example.com", Position: "Tax advisor"}))

	err := Validate(&entity.Candidate{FullName: "Pau Serra", Email: "pau@example.com", Status: "ghosted"})
	fields := fieldsOf(err)
	assert.Equal(t, "is required", fields["position"])
	assert.Equal(t, "must be one of: new screening interview offer hired rejected", fields["status"])

	err = Validate(&entity.PayrollEntry{EmployeeID: "e1", Period: "2025-13", Gross: -1})
	fields = fieldsOf(err)
	assert.Contains(t, fields, "period")
	assert.Equal(t, "must be at least 0", fields["gross"])
}

func TestValidatePatch(t *testing.T) {
	t.Run("only present columns are checked", func(t *testing.T) {
		rec, err := ValidatePatch[entity.Lead](map[string]any{"status": "qualified", "notes": "call back friday"})
		require.NoError(t, err)
		assert.Equal(t, "qualified", rec["status"])
	})

	t.Run("bad enum", func(t *testing.T) {
		_, err := ValidatePatch[entity.Lead](map[string]any{"priority": "whenever"})
		assert.Contains(t, fieldsOf(err), "priority")
	})

	t.Run("unknown and immutable columns", func(t *testing.T) {
		_, err := ValidatePatch[entity.Lead](map[string]any{"id": "x", "favourite_colour": "blue"})
		fields := fieldsOf(err)
		assert.Equal(t, "cannot be changed", fields["id"])
		assert.Equal(t, "is not a known field", fields["favourite_colour"])
	})

	t.Run("caller-declared immutable columns", func(t *testing.T) {
		_, err := ValidatePatch[entity.Lead](map[string]any{"status": "won", "notes": "signed"}, "status", "resolved_at")
		fields := fieldsOf(err)
		assert.Equal(t, "cannot be changed", fields["status"])
		assert.NotContains(t, fields, "notes")
	})

	t.Run("wrong type", func(t *testing.T) {
		_, err := ValidatePatch[entity.Employee](map[string]any{"salary": "a lot"})
		assert.Equal(t, "has the wrong type", fieldsOf(err)["salary"])
	})

	t.Run("empty patch", func(t *testing.T) {
		_, err := ValidatePatch[entity.Employee](map[string]any{})
		assert.Contains(t, fieldsOf(err), "body")
	})

	t.Run("settings numbers", func(t *testing.T) {
		_, err := ValidatePatch[entity.AutomationSettings](map[string]any{"items_per_run": 0})
		assert.Equal(t, "must be at least 1", fieldsOf(err)["items_per_run"])
	})
}
