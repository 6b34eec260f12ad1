// Package conversation implements the onboarding state machine. Each user
// turn moves a session between named steps, merging whatever the extractor
// finds into the session's accumulator until the record is ready to confirm.
//
// Two flows share the engine: the comprehensive flow collects every field in
// as few turns as the user likes, and the legacy linear flow asks for one
// field group per turn. Sessions are classified by their persisted shape and
// are never forced to migrate.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/project-onboarding/internal/extract"
	"github.com/capitalize-ai/project-onboarding/internal/model"
	"github.com/capitalize-ai/project-onboarding/internal/recovery"
	"github.com/capitalize-ai/project-onboarding/pkg/logger"
	"github.com/capitalize-ai/project-onboarding/pkg/metrics"
)

// DefaultTurnTimeout bounds the processing of one turn.
const DefaultTurnTimeout = 5 * time.Second

// SideEffectKind names work the caller must perform after a turn.
type SideEffectKind string

// SideEffectProvision asks the caller to run project provisioning.
const SideEffectProvision SideEffectKind = "provision"

// SideEffect is work requested by a turn.
type SideEffect struct {
	Kind          SideEffectKind
	Record        model.RequirementsRecord
	CorrelationID string
}

// TurnResult is the outcome of one turn.
type TurnResult struct {
	Session       *model.Session
	Reply         string
	SideEffects   []SideEffect
	ExpectedInput model.InputKind
	TimedOut      bool
}

// Previewer reports which competitors a record would be assigned.
type Previewer interface {
	PreviewAssignment(ctx context.Context, rec model.RequirementsRecord) (model.AssignmentPreview, error)
}

// Config holds engine settings.
type Config struct {
	TurnTimeout time.Duration
}

// Engine processes conversation turns. It holds no per-session state.
type Engine struct {
	cfg      Config
	recovery *recovery.Handler
	preview  Previewer
	log      *logger.Logger

	extract func(text string) extract.Result
	now     func() time.Time

	comprehensive *comprehensiveFlow
	legacy        *legacyFlow
}

// New creates an engine. preview may be nil.
func New(cfg Config, preview Previewer, log *logger.Logger) *Engine {
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = DefaultTurnTimeout
	}
	e := &Engine{
		cfg:      cfg,
		recovery: recovery.NewHandler(log),
		preview:  preview,
		log:      log,
		extract:  extract.Extract,
		now:      time.Now,
	}
	e.comprehensive = &comprehensiveFlow{e: e}
	e.legacy = &legacyFlow{e: e}
	return e
}

// reply is what a flow hands back to the engine. Transient replies are
// returned to the caller without being added to the message log.
type reply struct {
	text      string
	effects   []SideEffect
	transient bool
}

// flow is one of the two state machines.
type flow interface {
	handle(ctx context.Context, s *model.Session, text string) reply
}

// ProcessTurn applies one user turn to a copy of s. If the turn does not
// finish within the turn timeout, the original session is returned unchanged
// together with a simplified prompt.
func (e *Engine) ProcessTurn(ctx context.Context, s *model.Session, text string) TurnResult {
	start := e.now()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.TurnTimeout)
	defer cancel()

	work := s.Clone()
	done := make(chan TurnResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.log.Error("turn panicked",
					zap.String("session_id", s.ID),
					zap.Any("panic", r),
				)
				done <- TurnResult{
					Session:       s,
					Reply:         "Sorry, something went wrong on my side. Nothing you've shared was lost, so please send that again.",
					ExpectedInput: ExpectedInput(s),
				}
			}
		}()
		done <- e.turn(ctx, work, text)
	}()

	select {
	case res := <-done:
		metrics.RecordTurn(string(flowMode(res.Session)), string(res.Session.CurrentStep()), e.now().Sub(start).Seconds())
		return res
	case <-ctx.Done():
		metrics.TurnTimeouts.Inc()
		e.log.Warn("turn timed out",
			zap.String("session_id", s.ID),
			zap.String("step", string(s.CurrentStep())),
			zap.Duration("timeout", e.cfg.TurnTimeout),
		)
		return TurnResult{
			Session:       s,
			Reply:         simplifiedPrompt(s),
			ExpectedInput: ExpectedInput(s),
			TimedOut:      true,
		}
	}
}

func (e *Engine) turn(ctx context.Context, s *model.Session, text string) TurnResult {
	text = strings.TrimSpace(text)
	if text != "" {
		s.AppendMessage(model.RoleUser, text, e.now())
	}

	var r reply
	switch {
	case !s.CurrentStep().Known():
		r = e.enterResume(s)
	case flowMode(s) == model.FlowLegacy:
		r = e.legacy.handle(ctx, s, text)
	default:
		r = e.comprehensive.handle(ctx, s, text)
	}

	if r.text != "" && !r.transient {
		s.AppendMessage(model.RoleAssistant, r.text, e.now())
	}
	return TurnResult{
		Session:       s,
		Reply:         r.text,
		SideEffects:   r.effects,
		ExpectedInput: ExpectedInput(s),
	}
}

// ApplyProvisioning records the outcome of a provisioning side effect on s
// and composes the reply. A failed run returns the session to confirming so
// the user can retry.
func (e *Engine) ApplyProvisioning(s *model.Session, correlationID string, res *model.ProvisioningResult, err error) TurnResult {
	var text string
	if err != nil {
		s.Step = model.StepConfirming
		s.ProvisionFailures++
		text = provisioningFailedMessage(correlationID, s.ProvisionFailures)
		e.log.Error("provisioning failed",
			zap.String("session_id", s.ID),
			zap.String("correlation_id", correlationID),
			zap.Int("failures", s.ProvisionFailures),
			zap.Error(err),
		)
	} else {
		s.Step = model.StepComplete
		s.ProjectID = res.Project.ID
		s.ProvisionFailures = 0
		text = renderResult(res)
	}

	s.AppendMessage(model.RoleAssistant, text, e.now())
	return TurnResult{
		Session:       s,
		Reply:         text,
		ExpectedInput: ExpectedInput(s),
	}
}

// Welcome returns the opening prompt for a new session.
func (e *Engine) Welcome(s *model.Session) string {
	if flowMode(s) == model.FlowLegacy {
		return legacyProductPrompt
	}
	return welcomePrompt
}

// flowMode classifies a session by its state shape: a legacy step, an
// explicit legacy flag on an unstarted session, or legacy-only data.
func flowMode(s *model.Session) model.FlowMode {
	step := s.CurrentStep()
	switch {
	case step.IsLegacy():
		return model.FlowLegacy
	case step != model.StepUninitialized:
		return model.FlowComprehensive
	case s.FlowMode == model.FlowLegacy, s.CollectedData.HasLegacyFields():
		return model.FlowLegacy
	}
	return model.FlowComprehensive
}

// ExpectedInput reports the kind of reply the session is waiting for.
func ExpectedInput(s *model.Session) model.InputKind {
	switch s.CurrentStep() {
	case model.StepConfirming, model.StepLegacyProductConfirm, model.StepLegacyAnalysisConfirm:
		return model.InputConfirmation
	case model.StepResumeChoice, model.StepLegacyDeliveryChoice:
		return model.InputChoice
	case model.StepComplete:
		return model.InputNone
	}
	return model.InputFreeText
}

func simplifiedPrompt(s *model.Session) string {
	const prefix = "That took longer than expected, so I haven't changed anything yet."
	switch ExpectedInput(s) {
	case model.InputConfirmation:
		return prefix + ` Please reply "yes", "edit" or "cancel".`
	case model.InputChoice:
		return prefix + " Please reply with one of the options above."
	case model.InputNone:
		return prefix
	}
	return prefix + " Could you send your details again, a few at a time?"
}

func provisioningFailedMessage(correlationID string, failures int) string {
	msg := fmt.Sprintf("I couldn't create your project just now. Nothing was saved and all your answers are still here.\n\n"+
		`Reply "yes" to try again, "edit" to change something, or "cancel" to start over. (Reference: %s)`, correlationID)
	if failures >= 3 {
		msg += "\n\nThis has failed several times. If it keeps happening, contact support and mention the reference above."
	}
	return msg
}
