// Package recovery turns failed or partial collecting turns into a guided
// next prompt. It salvages what it can from the input and never returns an
// error to the caller.
package recovery

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/project-onboarding/internal/extract"
	"github.com/capitalize-ai/project-onboarding/internal/model"
	"github.com/capitalize-ai/project-onboarding/internal/validate"
	"github.com/capitalize-ai/project-onboarding/pkg/logger"
	"github.com/capitalize-ai/project-onboarding/pkg/metrics"
)

// Category classifies why a turn did not complete the record.
type Category string

const (
	CategoryFormatError     Category = "format_error"
	CategoryMissingData     Category = "missing_data"
	CategoryValidationError Category = "validation_error"
	CategoryPartialSuccess  Category = "partial_success"
	CategoryGeneralError    Category = "general_error"
)

var headlines = map[Category]string{
	CategoryFormatError:     "Some details aren't in a format I can use yet.",
	CategoryMissingData:     "I couldn't find any project details in that message.",
	CategoryValidationError: "A few details need another look.",
	CategoryPartialSuccess:  "Thanks, I've got part of what I need.",
	CategoryGeneralError:    "Something went wrong while I was reading your message.",
}

var formatIssues = []model.IssueType{
	model.IssueInvalidFormat,
	model.IssueTypoDomain,
	model.IssueLoopbackHost,
}

// Failure describes a collecting turn that did not produce a ready record.
type Failure struct {
	Input string
	// Collected is the current accumulator, including any Captured fields.
	Collected model.RequirementsRecord
	// Captured lists fields already taken from this turn by an earlier pass.
	Captured []model.Field
	// Validation is the outcome for the merged record, when already computed.
	Validation *model.ValidationOutcome
	// Err is set when extraction or validation failed internally.
	Err error
}

// Outcome is the guided response for a Failure.
type Outcome struct {
	Category   Category
	Salvaged   model.RequirementsRecord
	Confidence model.FieldConfidence
	Recovered  []model.Field
	NextField  model.Field
	Message    string
}

// Handler builds recovery prompts.
type Handler struct {
	log *logger.Logger
}

// NewHandler creates a recovery handler.
func NewHandler(log *logger.Logger) *Handler {
	return &Handler{log: log}
}

// Recover categorizes f, runs the high-confidence salvage pass over the input
// and composes the next prompt. A panic anywhere inside degrades to a general
// error prompt.
func (h *Handler) Recover(f Failure) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("recovery handler panicked", zap.Any("panic", r))
			out = Outcome{
				Category: CategoryGeneralError,
				Message:  fallbackMessage(),
			}
			metrics.RecoveriesTotal.WithLabelValues(string(out.Category)).Inc()
		}
	}()

	salvage := extract.ExtractHighConfidence(f.Input)
	merged := f.Collected.Merge(salvage.Record)

	v := f.Validation
	if v == nil || !salvage.Record.IsEmpty() {
		outcome := validate.Validate(merged)
		v = &outcome
	}

	recovered := dedupe(append(append([]model.Field(nil), f.Captured...), salvage.Fields()...))
	category := Categorize(f.Err, len(recovered), *v)

	out = Outcome{
		Category:   category,
		Salvaged:   salvage.Record,
		Confidence: salvage.Confidence,
		Recovered:  recovered,
		NextField:  NextField(*v),
		Message:    Compose(category, merged, recovered, *v),
	}

	metrics.RecoveriesTotal.WithLabelValues(string(category)).Inc()
	h.log.Debug("recovery prompt composed",
		zap.String("category", string(category)),
		zap.Int("recovered", len(recovered)),
		zap.Int("completeness", v.Completeness),
	)
	return out
}

// Categorize maps a turn's result to a failure category.
func Categorize(err error, recovered int, v model.ValidationOutcome) Category {
	switch {
	case err != nil:
		return CategoryGeneralError
	case v.HasErrorType(formatIssues...):
		return CategoryFormatError
	case len(v.InvalidIssues()) > 0:
		return CategoryValidationError
	case recovered == 0:
		return CategoryMissingData
	default:
		return CategoryPartialSuccess
	}
}

// Compose renders the guidance message: the category headline, the fields
// recovered from this turn, one example per missing or invalid field, and a
// note that earlier answers are kept.
func Compose(category Category, rec model.RequirementsRecord, recovered []model.Field, v model.ValidationOutcome) string {
	var b strings.Builder
	b.WriteString(headlines[category])

	if len(recovered) > 0 {
		b.WriteString("\n\nHere's what I picked up:\n")
		for _, f := range recovered {
			fmt.Fprintf(&b, "- %s: %s\n", f.Label(), rec.Get(f))
		}
	}

	if invalid := v.InvalidIssues(); len(invalid) > 0 {
		b.WriteString("\nPlease fix:\n")
		seen := make(map[model.Field]bool)
		for _, issue := range invalid {
			if seen[issue.Field] {
				continue
			}
			seen[issue.Field] = true
			fmt.Fprintf(&b, "- %s", issue.Message)
			if issue.Suggestion != "" {
				fmt.Fprintf(&b, " (%s)", issue.Suggestion)
			}
			b.WriteString("\n")
		}
	}

	if missing := v.MissingFields(); len(missing) > 0 {
		b.WriteString("\nStill needed:\n")
		for _, f := range missing {
			fmt.Fprintf(&b, "- %s, for example \"%s\"\n", f.Label(), validate.Example(f))
		}
	}

	b.WriteString("\nEverything you've shared so far is saved and will be merged with your next message.")
	return strings.TrimSpace(b.String())
}

// fallbackMessage is used when composing the regular message failed.
func fallbackMessage() string {
	return headlines[CategoryGeneralError] +
		" Your earlier answers are saved. Please send the remaining details again, one per line."
}

// NextField picks the field to ask about next: the first invalid field,
// otherwise the first missing one.
func NextField(v model.ValidationOutcome) model.Field {
	if invalid := v.InvalidIssues(); len(invalid) > 0 {
		return invalid[0].Field
	}
	if missing := v.MissingFields(); len(missing) > 0 {
		return missing[0]
	}
	return ""
}

func dedupe(fields []model.Field) []model.Field {
	seen := make(map[model.Field]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
