package conversation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/capitalize-ai/project-onboarding/internal/model"
	"github.com/capitalize-ai/project-onboarding/internal/recovery"
	"github.com/capitalize-ai/project-onboarding/internal/validate"
)

// comprehensiveFlow collects the whole record in as many or as few turns as
// the user needs, then asks for explicit confirmation.
type comprehensiveFlow struct {
	e *Engine
}

func (c *comprehensiveFlow) handle(ctx context.Context, s *model.Session, text string) reply {
	s.FlowMode = model.FlowComprehensive

	switch s.CurrentStep() {
	case model.StepUninitialized:
		if text == "" {
			return reply{text: welcomePrompt}
		}
		s.Step = model.StepCollecting
		return c.collecting(ctx, s, text)
	case model.StepCollecting:
		return c.collecting(ctx, s, text)
	case model.StepConfirming:
		return c.confirming(ctx, s, text)
	case model.StepResumeChoice:
		return c.resumeChoice(ctx, s, text)
	case model.StepComplete:
		return reply{text: completeMessage(s)}
	}
	return c.e.enterResume(s)
}

func (c *comprehensiveFlow) collecting(ctx context.Context, s *model.Session, text string) reply {
	out := c.e.collect(ctx, s, text)
	if out.kind == outcomeFailure {
		return reply{text: out.message}
	}

	s.CollectedData.Merge(out.record, out.confidence)
	if out.kind == outcomeSuccess {
		s.Step = model.StepConfirming
		s.AwaitingField = ""
		return reply{text: c.e.renderSummary(ctx, s, out.validation, "")}
	}

	s.AwaitingField = out.nextField
	return reply{text: out.message}
}

func (c *comprehensiveFlow) confirming(ctx context.Context, s *model.Session, text string) reply {
	ch := parseChoice(text)
	if ch != choiceNone && shortReply(text) {
		return c.applyConfirmation(ctx, s, ch)
	}

	res := c.e.extract(text)
	if res.Success {
		s.CollectedData.Merge(res.Record, res.Confidence)
		v := validate.Validate(s.CollectedData.Record)
		if v.Ready() {
			return reply{text: c.e.renderSummary(ctx, s, v, "Updated. ")}
		}
		s.Step = model.StepCollecting
		s.AwaitingField = recovery.NextField(v)
		captured := res.Record.FilledFields()
		return reply{text: recovery.Compose(recovery.Categorize(nil, len(captured), v), s.CollectedData.Record, captured, v)}
	}

	if ch != choiceNone {
		return c.applyConfirmation(ctx, s, ch)
	}
	return reply{text: confirmHelpMessage}
}

func (c *comprehensiveFlow) applyConfirmation(ctx context.Context, s *model.Session, ch choice) reply {
	switch ch {
	case choiceYes:
		v := validate.Validate(s.CollectedData.Record)
		if !v.Ready() {
			s.Step = model.StepCollecting
			s.AwaitingField = recovery.NextField(v)
			return reply{text: recovery.Compose(recovery.CategoryValidationError, s.CollectedData.Record, nil, v)}
		}
		s.Step = model.StepComplete
		correlationID := uuid.Must(uuid.NewV7()).String()
		return reply{
			text:      fmt.Sprintf("Great, creating your project now. (Reference: %s)", correlationID),
			transient: true,
			effects: []SideEffect{{
				Kind:          SideEffectProvision,
				Record:        s.CollectedData.Record.Clone(),
				CorrelationID: correlationID,
			}},
		}
	case choiceEdit, choiceNo:
		s.Step = model.StepCollecting
		s.AwaitingField = ""
		return reply{text: editPrompt(s.CollectedData.Record)}
	case choiceCancel:
		resetSession(s)
		return reply{text: "No problem, I've discarded those details.\n\n" + welcomePrompt}
	}
	return reply{text: confirmHelpMessage}
}

// resetSession clears everything collected and returns to the start.
func resetSession(s *model.Session) {
	s.Step = model.StepUninitialized
	s.FlowMode = model.FlowComprehensive
	s.CollectedData = model.CollectedData{}
	s.AwaitingField = ""
	s.ProvisionFailures = 0
}

// enterResume handles a session whose step is not part of either flow. The
// collected data is kept and the user chooses how to continue.
func (e *Engine) enterResume(s *model.Session) reply {
	e.log.Warn("session step not recognized, offering resume")
	s.Step = model.StepResumeChoice
	s.FlowMode = model.FlowComprehensive
	s.AwaitingField = ""
	return reply{text: resumePrompt(s.CollectedData.Record)}
}

func (c *comprehensiveFlow) resumeChoice(ctx context.Context, s *model.Session, text string) reply {
	switch parseChoice(text) {
	case choiceContinue, choiceYes:
		return c.e.continueCollecting(ctx, s)
	case choiceEdit:
		s.Step = model.StepCollecting
		return reply{text: editPrompt(s.CollectedData.Record)}
	case choiceRestart, choiceCancel:
		resetSession(s)
		return reply{text: welcomePrompt}
	}
	return reply{text: resumePrompt(s.CollectedData.Record)}
}

// continueCollecting moves a session into the comprehensive flow with its
// data intact: straight to confirming when the record is ready.
func (e *Engine) continueCollecting(ctx context.Context, s *model.Session) reply {
	s.FlowMode = model.FlowComprehensive
	v := validate.Validate(s.CollectedData.Record)
	if v.Ready() {
		s.Step = model.StepConfirming
		s.AwaitingField = ""
		return reply{text: e.renderSummary(ctx, s, v, "")}
	}
	s.Step = model.StepCollecting
	s.AwaitingField = recovery.NextField(v)
	filled := s.CollectedData.Record.FilledFields()
	return reply{text: recovery.Compose(recovery.Categorize(nil, len(filled), v), s.CollectedData.Record, filled, v)}
}
