package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/project-onboarding/internal/model"
)

func completeRecord() model.RequirementsRecord {
	return model.RequirementsRecord{
		Email:               "jane@acme.com",
		Cadence:             "weekly",
		ProjectName:         "Acme Competitive Watch",
		ProductName:         "Acme Analytics",
		ProductURL:          "https://www.acmeanalytics.com",
		Industry:            "SaaS",
		Positioning:         "the fastest analytics platform for small teams",
		CustomerDescription: "small and medium e-commerce businesses that need quick insights",
		ProblemStatement:    "small teams spend hours building dashboards manually",
	}
}

func TestValidate_CompleteRecord(t *testing.T) {
	out := Validate(completeRecord())

	assert.True(t, out.IsValid)
	assert.True(t, out.Ready())
	assert.Empty(t, out.Errors)
	assert.Empty(t, out.Warnings)
	assert.Equal(t, 100, out.Completeness)
}

func TestValidate_PartialRecord(t *testing.T) {
	out := Validate(model.RequirementsRecord{Email: "user@company.com", Cadence: "weekly"})

	assert.False(t, out.IsValid)
	assert.Len(t, out.MissingFields(), 7)
	assert.Equal(t, 22, out.Completeness)
	assert.Contains(t, out.Suggestions, "You can share the remaining 7 details in a single message.")
	for _, f := range out.MissingFields() {
		assert.NotEqual(t, model.FieldEmail, f)
		assert.NotEqual(t, model.FieldCadence, f)
	}
}

func TestValidate_TooShortCountsAsUnfilled(t *testing.T) {
	rec := completeRecord()
	rec.Industry = "AI"

	out := Validate(rec)

	assert.False(t, out.IsValid)
	assert.True(t, out.HasErrorType(model.IssueTooShort))
	assert.Equal(t, 89, out.Completeness)
}

func TestValidate_UnknownCadence(t *testing.T) {
	rec := completeRecord()
	rec.Cadence = "fortnightly"

	out := Validate(rec)

	require.Len(t, out.Errors, 1)
	assert.Equal(t, model.FieldCadence, out.Errors[0].Field)
	assert.Equal(t, model.IssueInvalidValue, out.Errors[0].Type)
}

func TestCheckEmail(t *testing.T) {
	tests := []struct {
		email string
		want  model.IssueType
	}{
		{"user@company.com", ""},
		{"first.last+tag@sub.example.co.uk", ""},
		{"user@@bad..com", model.IssueInvalidFormat},
		{"user@bad..com", model.IssueInvalidFormat},
		{"user@localhost", model.IssueInvalidFormat},
		{"user@-acme.com", model.IssueInvalidFormat},
		{".user@acme.com", model.IssueInvalidFormat},
		{"user@acme.c0m", model.IssueInvalidFormat},
		{"user@gmial.com", model.IssueTypoDomain},
		{"user@Hotmial.com", model.IssueTypoDomain},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			issue := CheckEmail(tt.email)
			if tt.want == "" {
				assert.Nil(t, issue)
				return
			}
			require.NotNil(t, issue)
			assert.Equal(t, tt.want, issue.Type)
		})
	}
}

func TestCheckEmail_LongLabel(t *testing.T) {
	issue := CheckEmail("user@" + strings.Repeat("a", 64) + ".com")
	require.NotNil(t, issue)
	assert.Equal(t, model.IssueInvalidFormat, issue.Type)
}

func TestCheckEmail_TypoSuggestion(t *testing.T) {
	issue := CheckEmail("jane@gmial.com")

	require.NotNil(t, issue)
	assert.Equal(t, "Did you mean jane@gmail.com?", issue.Suggestion)
}

func TestCheckURL(t *testing.T) {
	errIssue, warning := CheckURL("http://localhost:3000")
	require.NotNil(t, errIssue)
	assert.Equal(t, model.IssueLoopbackHost, errIssue.Type)
	assert.Nil(t, warning)

	errIssue, _ = CheckURL("not a url")
	require.NotNil(t, errIssue)
	assert.Equal(t, model.IssueInvalidFormat, errIssue.Type)

	errIssue, warning = CheckURL("http://acme.com")
	assert.Nil(t, errIssue)
	require.NotNil(t, warning)
	assert.Equal(t, model.IssueInsecureURL, warning.Type)

	errIssue, warning = CheckURL("acme.com")
	assert.Nil(t, errIssue)
	assert.Nil(t, warning)
}

func TestValidate_BusinessWarnings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.RequirementsRecord)
		want   model.IssueType
	}{
		{"long project name", func(r *model.RequirementsRecord) { r.ProjectName = strings.Repeat("x", 101) }, model.IssueLongValue},
		{"generic industry", func(r *model.RequirementsRecord) { r.Industry = "stuff" }, model.IssueGenericIndustry},
		{"name not in url", func(r *model.RequirementsRecord) { r.ProductURL = "https://zenith.io" }, model.IssueNameURLMismatch},
		{"brief customers", func(r *model.RequirementsRecord) { r.CustomerDescription = "startups" }, model.IssueBriefDescription},
		{"unrelated statements", func(r *model.RequirementsRecord) {
			r.Positioning = "premium concierge travel booking"
			r.ProblemStatement = "warehouse inventory gets miscounted"
		}, model.IssueUnrelatedStatements},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := completeRecord()
			tt.mutate(&rec)

			out := Validate(rec)

			assert.True(t, out.IsValid, "warnings never block")
			require.Len(t, out.Warnings, 1)
			assert.Equal(t, tt.want, out.Warnings[0].Type)
		})
	}
}

func TestValidate_Deterministic(t *testing.T) {
	rec := completeRecord()
	rec.Email = "user@gmial.com"
	rec.ProductURL = "http://acmeanalytics.com"

	assert.Equal(t, Validate(rec), Validate(rec))
}

func TestExample_EveryRequiredField(t *testing.T) {
	for _, f := range model.RequiredFields {
		assert.NotEmpty(t, Example(f), "field %s", f)
	}
}
