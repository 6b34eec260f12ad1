package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/project-onboarding/internal/conversation"
	"github.com/capitalize-ai/project-onboarding/internal/model"
	"github.com/capitalize-ai/project-onboarding/internal/provision"
	"github.com/capitalize-ai/project-onboarding/pkg/metrics"
)

// SubmitMessage processes one user turn. Turns of a session run one at a
// time; an unknown session id starts a new session under that id.
func (s *SessionService) SubmitMessage(ctx context.Context, tenantID, userID, sessionID, text string) (*model.SubmitMessageResponse, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	created := false
	switch {
	case sess == nil:
		sess = s.newSession(sessionID, tenantID, userID)
		created = true
		metrics.SessionsTotal.WithLabelValues(tenantID).Inc()
	case sess.TenantID != tenantID:
		return nil, ErrSessionNotFound
	}

	metrics.MessagesTotal.WithLabelValues(tenantID, string(model.RoleUser)).Inc()
	res := s.engine.ProcessTurn(ctx, sess, text)

	if res.TimedOut {
		s.publish(ctx, sess, "", model.EventTurnTimeout, "turn exceeded timeout", map[string]any{
			"step": string(sess.CurrentStep()),
		})
		if created {
			if err := s.store.SaveSession(ctx, sess); err != nil {
				return nil, fmt.Errorf("failed to save session: %w", err)
			}
		}
		return s.response(res.Session, res.Reply, res.ExpectedInput, nil), nil
	}

	reply := res.Reply
	expected := res.ExpectedInput
	var provisioning *model.ProvisioningResult
	for _, effect := range res.SideEffects {
		if effect.Kind != conversation.SideEffectProvision {
			continue
		}
		applied, result := s.provision(ctx, res.Session, effect)
		reply += "\n\n" + applied.Reply
		expected = applied.ExpectedInput
		provisioning = result
	}

	if err := s.store.SaveSession(ctx, res.Session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	metrics.MessagesTotal.WithLabelValues(tenantID, string(model.RoleAssistant)).Inc()

	s.publish(ctx, res.Session, "", model.EventTurnProcessed, "turn processed", map[string]any{
		"step":           string(res.Session.CurrentStep()),
		"flow":           string(res.Session.FlowMode),
		"awaiting_field": string(res.Session.AwaitingField),
	})

	return s.response(res.Session, reply, expected, provisioning), nil
}

// provision runs a provisioning side effect under the pipeline timeout and
// records its outcome on sess. The run is not cancelled when the caller
// goes away so the snapshot always reflects what was committed.
func (s *SessionService) provision(ctx context.Context, sess *model.Session, effect conversation.SideEffect) (conversation.TurnResult, *model.ProvisioningResult) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PipelineTimeout)
	defer cancel()

	s.logger.Info("provisioning requested",
		zap.String("session_id", sess.ID),
		zap.String("correlation_id", effect.CorrelationID),
	)
	result, err := s.provisioner.Provision(pctx, provision.Request{
		SessionID:     sess.ID,
		TenantID:      sess.TenantID,
		CorrelationID: effect.CorrelationID,
		Record:        effect.Record,
	})
	if err != nil {
		result = nil
	}
	return s.engine.ApplyProvisioning(sess, effect.CorrelationID, result, err), result
}

func (s *SessionService) response(sess *model.Session, reply string, expected model.InputKind, result *model.ProvisioningResult) *model.SubmitMessageResponse {
	return &model.SubmitMessageResponse{
		AssistantText:     reply,
		NextStep:          sess.CurrentStep(),
		ExpectedInputKind: expected,
		ProjectID:         sess.ProjectID,
		Provisioning:      result,
	}
}
