package model

import (
	"strings"
	"time"
)

// Field names one entry of a RequirementsRecord.
type Field string

const (
	FieldEmail               Field = "email"
	FieldCadence             Field = "cadence"
	FieldProjectName         Field = "project_name"
	FieldProductName         Field = "product_name"
	FieldProductURL          Field = "product_url"
	FieldIndustry            Field = "industry"
	FieldPositioning         Field = "positioning"
	FieldCustomerDescription Field = "customer_description"
	FieldProblemStatement    Field = "problem_statement"

	FieldCompetitorHints Field = "competitor_hints"
	FieldFocusAreas      Field = "focus_areas"
	FieldReportTemplate  Field = "report_template"
)

// RequiredFields lists the nine fields a project needs, in prompt order.
var RequiredFields = []Field{
	FieldEmail,
	FieldCadence,
	FieldProjectName,
	FieldProductName,
	FieldProductURL,
	FieldIndustry,
	FieldPositioning,
	FieldCustomerDescription,
	FieldProblemStatement,
}

var fieldLabels = map[Field]string{
	FieldEmail:               "Contact email",
	FieldCadence:             "Report frequency",
	FieldProjectName:         "Project name",
	FieldProductName:         "Product name",
	FieldProductURL:          "Product website",
	FieldIndustry:            "Industry",
	FieldPositioning:         "Positioning",
	FieldCustomerDescription: "Target customers",
	FieldProblemStatement:    "Problem solved",
	FieldCompetitorHints:     "Known competitors",
	FieldFocusAreas:          "Focus areas",
	FieldReportTemplate:      "Report template",
}

// Label returns a human readable name for the field.
func (f Field) Label() string {
	if l, ok := fieldLabels[f]; ok {
		return l
	}
	return string(f)
}

// RequirementsRecord holds everything collected for a new project.
type RequirementsRecord struct {
	Email               string `json:"email,omitempty" yaml:"email,omitempty"`
	Cadence             string `json:"cadence,omitempty" yaml:"cadence,omitempty"`
	ProjectName         string `json:"project_name,omitempty" yaml:"project_name,omitempty"`
	ProductName         string `json:"product_name,omitempty" yaml:"product_name,omitempty"`
	ProductURL          string `json:"product_url,omitempty" yaml:"product_url,omitempty"`
	Industry            string `json:"industry,omitempty" yaml:"industry,omitempty"`
	Positioning         string `json:"positioning,omitempty" yaml:"positioning,omitempty"`
	CustomerDescription string `json:"customer_description,omitempty" yaml:"customer_description,omitempty"`
	ProblemStatement    string `json:"problem_statement,omitempty" yaml:"problem_statement,omitempty"`

	CompetitorHints []string `json:"competitor_hints,omitempty" yaml:"competitor_hints,omitempty"`
	FocusAreas      []string `json:"focus_areas,omitempty" yaml:"focus_areas,omitempty"`
	ReportTemplate  string   `json:"report_template,omitempty" yaml:"report_template,omitempty"`
}

// Get returns the string value of a field. List fields are joined with ", ".
func (r RequirementsRecord) Get(f Field) string {
	switch f {
	case FieldEmail:
		return r.Email
	case FieldCadence:
		return r.Cadence
	case FieldProjectName:
		return r.ProjectName
	case FieldProductName:
		return r.ProductName
	case FieldProductURL:
		return r.ProductURL
	case FieldIndustry:
		return r.Industry
	case FieldPositioning:
		return r.Positioning
	case FieldCustomerDescription:
		return r.CustomerDescription
	case FieldProblemStatement:
		return r.ProblemStatement
	case FieldCompetitorHints:
		return strings.Join(r.CompetitorHints, ", ")
	case FieldFocusAreas:
		return strings.Join(r.FocusAreas, ", ")
	case FieldReportTemplate:
		return r.ReportTemplate
	}
	return ""
}

// Set assigns a field. List fields are split on commas.
func (r *RequirementsRecord) Set(f Field, v string) {
	v = strings.TrimSpace(v)
	switch f {
	case FieldEmail:
		r.Email = v
	case FieldCadence:
		r.Cadence = v
	case FieldProjectName:
		r.ProjectName = v
	case FieldProductName:
		r.ProductName = v
	case FieldProductURL:
		r.ProductURL = v
	case FieldIndustry:
		r.Industry = v
	case FieldPositioning:
		r.Positioning = v
	case FieldCustomerDescription:
		r.CustomerDescription = v
	case FieldProblemStatement:
		r.ProblemStatement = v
	case FieldCompetitorHints:
		r.CompetitorHints = SplitList(v)
	case FieldFocusAreas:
		r.FocusAreas = SplitList(v)
	case FieldReportTemplate:
		r.ReportTemplate = v
	}
}

// Merge returns r with every non-empty field of other written over it.
// Empty fields in other never clear r, so merging is associative and idempotent.
func (r RequirementsRecord) Merge(other RequirementsRecord) RequirementsRecord {
	out := r.Clone()
	for _, f := range AllFields() {
		if v := other.Get(f); v != "" {
			switch f {
			case FieldCompetitorHints:
				out.CompetitorHints = append([]string(nil), other.CompetitorHints...)
			case FieldFocusAreas:
				out.FocusAreas = append([]string(nil), other.FocusAreas...)
			default:
				out.Set(f, v)
			}
		}
	}
	return out
}

// Clone returns a copy that shares no slices with r.
func (r RequirementsRecord) Clone() RequirementsRecord {
	out := r
	out.CompetitorHints = append([]string(nil), r.CompetitorHints...)
	out.FocusAreas = append([]string(nil), r.FocusAreas...)
	return out
}

// FilledFields lists the fields with a non-empty value.
func (r RequirementsRecord) FilledFields() []Field {
	var out []Field
	for _, f := range AllFields() {
		if r.Get(f) != "" {
			out = append(out, f)
		}
	}
	return out
}

// IsEmpty reports whether no field is set.
func (r RequirementsRecord) IsEmpty() bool {
	return len(r.FilledFields()) == 0
}

// AllFields lists the required fields followed by the optional ones.
func AllFields() []Field {
	out := make([]Field, 0, len(RequiredFields)+3)
	out = append(out, RequiredFields...)
	return append(out, FieldCompetitorHints, FieldFocusAreas, FieldReportTemplate)
}

// SplitList splits a comma, semicolon or "and" separated list.
func SplitList(v string) []string {
	v = strings.ReplaceAll(v, ";", ",")
	v = strings.ReplaceAll(v, " and ", ",")
	var out []string
	for _, p := range strings.Split(v, ",") {
		p = strings.Trim(strings.TrimSpace(p), ".")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FieldConfidence maps a field to a 0-100 extraction confidence. It is a hint
// for prompts and metrics; it never decides whether data is accepted.
type FieldConfidence map[Field]int

// Merge overwrites confidences for the fields rec actually carries.
func (c FieldConfidence) Merge(rec RequirementsRecord, other FieldConfidence) FieldConfidence {
	out := make(FieldConfidence, len(c)+len(other))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range other {
		if rec.Get(k) != "" {
			out[k] = v
		}
	}
	return out
}

// Cadence is the recurrence of generated reports.
type Cadence string

const (
	CadenceDaily     Cadence = "daily"
	CadenceWeekly    Cadence = "weekly"
	CadenceBiweekly  Cadence = "biweekly"
	CadenceMonthly   Cadence = "monthly"
	CadenceQuarterly Cadence = "quarterly"
	CadenceAnnually  Cadence = "annually"
)

// Cadences is the fixed cadence vocabulary.
var Cadences = []Cadence{
	CadenceDaily,
	CadenceWeekly,
	CadenceBiweekly,
	CadenceMonthly,
	CadenceQuarterly,
	CadenceAnnually,
}

// ParseCadence matches a value against the cadence vocabulary, case-insensitively.
func ParseCadence(v string) (Cadence, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, c := range Cadences {
		if v == string(c) {
			return c, true
		}
	}
	return "", false
}

// NextRun returns the next run time after from.
func (c Cadence) NextRun(from time.Time) time.Time {
	switch c {
	case CadenceDaily:
		return from.AddDate(0, 0, 1)
	case CadenceWeekly:
		return from.AddDate(0, 0, 7)
	case CadenceBiweekly:
		return from.AddDate(0, 0, 14)
	case CadenceMonthly:
		return from.AddDate(0, 1, 0)
	case CadenceQuarterly:
		return from.AddDate(0, 3, 0)
	case CadenceAnnually:
		return from.AddDate(1, 0, 0)
	}
	return from
}
