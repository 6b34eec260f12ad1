package conversation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/project-onboarding/internal/extract"
	"github.com/capitalize-ai/project-onboarding/internal/model"
	"github.com/capitalize-ai/project-onboarding/internal/recovery"
	"github.com/capitalize-ai/project-onboarding/internal/validate"
	"github.com/capitalize-ai/project-onboarding/pkg/metrics"
)

type outcomeKind int

const (
	outcomeFailure outcomeKind = iota
	outcomePartial
	outcomeSuccess
)

// outcome is the typed result of one collecting strategy. Strategies never
// mutate the session; the caller merges record on success or partial.
type outcome struct {
	kind       outcomeKind
	record     model.RequirementsRecord
	confidence model.FieldConfidence
	validation model.ValidationOutcome
	nextField  model.Field
	message    string
	err        error
}

type strategy struct {
	name string
	run  func(ctx context.Context, s *model.Session, text string) outcome
}

func (e *Engine) strategies() []strategy {
	return []strategy{
		{name: "full_extraction", run: e.fullExtraction},
		{name: "awaited_field", run: e.awaitedField},
		{name: "guided_recovery", run: e.guidedRecovery},
	}
}

// collect runs the strategies in order and returns the first outcome that
// handled the turn. When all fail, a static message keeps the conversation
// going.
func (e *Engine) collect(ctx context.Context, s *model.Session, text string) outcome {
	var lastErr error
	for _, st := range e.strategies() {
		if ctx.Err() != nil {
			break
		}
		out := e.runStrategy(ctx, st, s, text, lastErr)
		if out.kind != outcomeFailure {
			return out
		}
		if out.err != nil {
			lastErr = out.err
		}
	}
	return outcome{kind: outcomeFailure, message: completeFailureMessage}
}

func (e *Engine) runStrategy(ctx context.Context, st strategy, s *model.Session, text string, lastErr error) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("collecting strategy panicked",
				zap.String("strategy", st.name),
				zap.String("session_id", s.ID),
				zap.Any("panic", r),
			)
			out = outcome{kind: outcomeFailure, err: fmt.Errorf("%s: %v", st.name, r)}
		}
	}()

	if st.name == "guided_recovery" && lastErr != nil {
		return e.recoverWithError(s, text, lastErr)
	}
	return st.run(ctx, s, text)
}

// fullExtraction merges a regular extraction of the whole text. When the
// last prompt asked for one field and the text carries a single other
// field, the text is left to awaitedField only if it reads as an answer to
// the awaited field at least as confidently.
func (e *Engine) fullExtraction(ctx context.Context, s *model.Session, text string) outcome {
	res := e.extract(text)
	if !res.Success {
		return outcome{kind: outcomeFailure}
	}
	if f := s.AwaitingField; f != "" && res.Record.Get(f) == "" {
		if fields := res.Fields(); len(fields) == 1 {
			if _, c, ok := extract.ExtractField(f, text); ok && c >= res.Confidence[fields[0]] {
				return outcome{kind: outcomeFailure}
			}
		}
	}

	observeConfidence(res.Confidence)
	return e.evaluate(s, res.Record, res.Confidence)
}

// awaitedField reads the text as a direct answer to the last single-field prompt.
func (e *Engine) awaitedField(ctx context.Context, s *model.Session, text string) outcome {
	f := s.AwaitingField
	if f == "" {
		return outcome{kind: outcomeFailure}
	}
	v, confidence, ok := extract.ExtractField(f, text)
	if !ok {
		return outcome{kind: outcomeFailure}
	}

	var rec model.RequirementsRecord
	rec.Set(f, v)
	conf := model.FieldConfidence{f: confidence}
	observeConfidence(conf)
	return e.evaluate(s, rec, conf)
}

// guidedRecovery salvages high-confidence fields and explains what is missing.
func (e *Engine) guidedRecovery(ctx context.Context, s *model.Session, text string) outcome {
	return e.recoverWithError(s, text, nil)
}

func (e *Engine) recoverWithError(s *model.Session, text string, err error) outcome {
	rec := e.recovery.Recover(recovery.Failure{
		Input:     text,
		Collected: s.CollectedData.Record,
		Err:       err,
	})
	if rec.Message == "" {
		return outcome{kind: outcomeFailure}
	}

	merged := s.CollectedData.Record.Merge(rec.Salvaged)
	v := validate.Validate(merged)
	if v.Ready() {
		return outcome{kind: outcomeSuccess, record: rec.Salvaged, confidence: rec.Confidence, validation: v}
	}
	return outcome{
		kind:       outcomePartial,
		record:     rec.Salvaged,
		confidence: rec.Confidence,
		validation: v,
		nextField:  rec.NextField,
		message:    rec.Message,
	}
}

// evaluate validates the accumulator with rec merged in.
func (e *Engine) evaluate(s *model.Session, rec model.RequirementsRecord, conf model.FieldConfidence) outcome {
	merged := s.CollectedData.Record.Merge(rec)
	v := validate.Validate(merged)
	if v.Ready() {
		return outcome{kind: outcomeSuccess, record: rec, confidence: conf, validation: v}
	}

	captured := rec.FilledFields()
	category := recovery.Categorize(nil, len(captured), v)
	return outcome{
		kind:       outcomePartial,
		record:     rec,
		confidence: conf,
		validation: v,
		nextField:  recovery.NextField(v),
		message:    recovery.Compose(category, merged, captured, v),
	}
}

func observeConfidence(conf model.FieldConfidence) {
	for f, c := range conf {
		metrics.ExtractionConfidence.WithLabelValues(string(f)).Observe(float64(c))
	}
}

const completeFailureMessage = "I wasn't able to read that message. Your earlier answers are saved.\n\n" +
	"Try sending one detail per line, for example:\n" +
	"Email: jane@yourcompany.com\n" +
	"Report frequency: weekly\n" +
	"Project name: Acme Competitive Watch"
