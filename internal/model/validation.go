package model

// IssueType classifies a validation error or warning.
type IssueType string

const (
	IssueMissing             IssueType = "missing"
	IssueTooShort            IssueType = "too_short"
	IssueInvalidFormat       IssueType = "invalid_format"
	IssueTypoDomain          IssueType = "typo_domain"
	IssueInvalidValue        IssueType = "invalid_value"
	IssueLoopbackHost        IssueType = "loopback_host"
	IssueInsecureURL         IssueType = "insecure_url"
	IssueLongValue           IssueType = "long_value"
	IssueGenericIndustry     IssueType = "generic_industry"
	IssueNameURLMismatch     IssueType = "name_url_mismatch"
	IssueBriefDescription    IssueType = "brief_description"
	IssueUnrelatedStatements IssueType = "unrelated_statements"
)

// Issue is one validation finding.
type Issue struct {
	Field      Field     `json:"field"`
	Type       IssueType `json:"type"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
}

// ValidationOutcome is the result of validating a RequirementsRecord.
// Errors block project creation; warnings are only surfaced.
type ValidationOutcome struct {
	IsValid      bool     `json:"is_valid"`
	Errors       []Issue  `json:"errors,omitempty"`
	Warnings     []Issue  `json:"warnings,omitempty"`
	Suggestions  []string `json:"suggestions,omitempty"`
	Completeness int      `json:"completeness"`
}

// Ready reports whether the record can be confirmed.
func (v ValidationOutcome) Ready() bool {
	return v.IsValid && v.Completeness == 100
}

// MissingFields returns the fields reported missing, in required order.
func (v ValidationOutcome) MissingFields() []Field {
	var out []Field
	for _, e := range v.Errors {
		if e.Type == IssueMissing {
			out = append(out, e.Field)
		}
	}
	return out
}

// InvalidIssues returns the errors other than missing fields.
func (v ValidationOutcome) InvalidIssues() []Issue {
	var out []Issue
	for _, e := range v.Errors {
		if e.Type != IssueMissing {
			out = append(out, e)
		}
	}
	return out
}

// HasErrorType reports whether any error has one of the given types.
func (v ValidationOutcome) HasErrorType(types ...IssueType) bool {
	for _, e := range v.Errors {
		for _, t := range types {
			if e.Type == t {
				return true
			}
		}
	}
	return false
}
