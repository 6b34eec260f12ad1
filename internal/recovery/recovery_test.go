package recovery

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/project-onboarding/internal/model"
	"github.com/capitalize-ai/project-onboarding/pkg/logger"
)

func TestRecover_MissingData(t *testing.T) {
	h := NewHandler(logger.NewNop())

	out := h.Recover(Failure{Input: "hmm not sure"})

	assert.Equal(t, CategoryMissingData, out.Category)
	assert.Empty(t, out.Recovered)
	assert.Equal(t, model.FieldEmail, out.NextField)
	assert.Contains(t, out.Message, "Still needed")
	assert.Contains(t, out.Message, "Email: jane@yourcompany.com")
	assert.Contains(t, out.Message, "saved and will be merged")
}

func TestRecover_FormatError(t *testing.T) {
	h := NewHandler(logger.NewNop())

	out := h.Recover(Failure{Input: "Email: user@gmial.com"})

	assert.Equal(t, CategoryFormatError, out.Category)
	assert.Equal(t, "user@gmial.com", out.Salvaged.Email)
	assert.Equal(t, model.FieldEmail, out.NextField)
	assert.Contains(t, out.Message, "Did you mean user@gmail.com?")
}

func TestRecover_PartialSuccess(t *testing.T) {
	h := NewHandler(logger.NewNop())

	out := h.Recover(Failure{Input: "jane@acme.com, weekly reports please"})

	require.Equal(t, CategoryPartialSuccess, out.Category)
	assert.ElementsMatch(t, []model.Field{model.FieldEmail, model.FieldCadence}, out.Recovered)
	assert.Contains(t, out.Message, "Contact email: jane@acme.com")
	assert.Contains(t, out.Message, "Report frequency: weekly")
	assert.Equal(t, model.FieldProjectName, out.NextField)
}

func TestRecover_KeepsEarlierAnswers(t *testing.T) {
	h := NewHandler(logger.NewNop())
	collected := model.RequirementsRecord{Email: "jane@acme.com", Cadence: "weekly"}

	out := h.Recover(Failure{Input: "???", Collected: collected})

	assert.Equal(t, CategoryMissingData, out.Category)
	assert.NotContains(t, out.Message, "- Contact email, for example")
	assert.Contains(t, out.Message, "- Project name, for example")
}

func TestRecover_ValidationError(t *testing.T) {
	h := NewHandler(logger.NewNop())
	collected := model.RequirementsRecord{Email: "jane@acme.com", Cadence: "fortnightly"}

	out := h.Recover(Failure{Input: "", Collected: collected})

	assert.Equal(t, CategoryValidationError, out.Category)
	assert.Equal(t, model.FieldCadence, out.NextField)
}

func TestRecover_InternalError(t *testing.T) {
	h := NewHandler(logger.NewNop())

	out := h.Recover(Failure{Input: "jane@acme.com", Err: errors.New("extractor crashed")})

	assert.Equal(t, CategoryGeneralError, out.Category)
	assert.NotEmpty(t, out.Message)
}

func TestCategorize(t *testing.T) {
	missingOnly := model.ValidationOutcome{Errors: []model.Issue{{Field: model.FieldIndustry, Type: model.IssueMissing}}}
	badFormat := model.ValidationOutcome{Errors: []model.Issue{{Field: model.FieldProductURL, Type: model.IssueLoopbackHost}}}
	badValue := model.ValidationOutcome{Errors: []model.Issue{{Field: model.FieldProjectName, Type: model.IssueTooShort}}}

	tests := []struct {
		name      string
		err       error
		recovered int
		v         model.ValidationOutcome
		want      Category
	}{
		{"internal error wins", errors.New("x"), 3, badFormat, CategoryGeneralError},
		{"format", nil, 1, badFormat, CategoryFormatError},
		{"validation", nil, 1, badValue, CategoryValidationError},
		{"nothing recovered", nil, 0, missingOnly, CategoryMissingData},
		{"some recovered", nil, 2, missingOnly, CategoryPartialSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.err, tt.recovered, tt.v))
		})
	}
}
