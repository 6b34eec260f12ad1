package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/capitalize-ai/project-onboarding/internal/extract"
	"github.com/capitalize-ai/project-onboarding/internal/model"
	"github.com/capitalize-ai/project-onboarding/internal/recovery"
	"github.com/capitalize-ai/project-onboarding/internal/validate"
)

// legacyFlow is the original linear flow: product, product confirmation,
// customers, analysis confirmation, remaining details, delivery.
type legacyFlow struct {
	e *Engine
}

func (l *legacyFlow) handle(ctx context.Context, s *model.Session, text string) reply {
	s.FlowMode = model.FlowLegacy
	if parseChoice(text) == choiceMigrate && shortReply(text) {
		r := l.e.continueCollecting(ctx, s)
		r.text = "Done, you're on the new single-message setup and everything you told me is kept.\n\n" + r.text
		return r
	}

	var r reply
	switch s.CurrentStep() {
	case model.StepUninitialized:
		if text == "" {
			return reply{text: legacyProductPrompt}
		}
		s.Step = model.StepLegacyProductInfo
		r = l.productInfo(s, text)
	case model.StepLegacyProductInfo:
		r = l.productInfo(s, text)
	case model.StepLegacyProductConfirm:
		r = l.productConfirm(s, text)
	case model.StepLegacyCustomerDescription:
		r = l.customerDescription(s, text)
	case model.StepLegacyAnalysisConfirm:
		r = l.analysisConfirm(s, text)
	case model.StepLegacyReportGeneration:
		r = l.reportGeneration(ctx, s, text)
	case model.StepLegacyDeliveryChoice:
		return l.deliveryChoice(s, text)
	}

	if !s.MigrationOffered && s.CurrentStep().IsLegacy() {
		s.MigrationOffered = true
		r.text += "\n\n" + migrationTip
	}
	return r
}

func (l *legacyFlow) productInfo(s *model.Session, text string) reply {
	res := l.e.extract(text)
	rec, conf := res.Record, res.Confidence
	if rec.ProductName == "" {
		if name, c, ok := productNameFromReply(text); ok {
			rec.ProductName = name
			if conf == nil {
				conf = model.FieldConfidence{}
			}
			conf[model.FieldProductName] = c
		}
	}
	s.CollectedData.Merge(rec, conf)

	cur := s.CollectedData.Record
	switch {
	case cur.ProductName != "" && cur.ProductURL != "":
		s.Step = model.StepLegacyProductConfirm
		s.AwaitingField = ""
		return reply{text: fmt.Sprintf("Just to confirm: your product is %s at %s. Is that right? (yes/no)", cur.ProductName, cur.ProductURL)}
	case cur.ProductName != "":
		s.AwaitingField = model.FieldProductURL
		return reply{text: fmt.Sprintf("Thanks! What's the website for %s?", cur.ProductName)}
	case cur.ProductURL != "":
		s.AwaitingField = model.FieldProductName
		return reply{text: fmt.Sprintf("Got %s. What's the product called?", cur.ProductURL)}
	}
	return reply{text: "I didn't catch a product name or website there.\n\n" + legacyProductPrompt}
}

// productNameFromReply takes the first short, non-URL part of a reply such
// as "Acme Analytics, acme.io" as the product name.
func productNameFromReply(text string) (string, int, bool) {
	replacer := strings.NewReplacer("\n", ",", " - ", ",", " at ", ",", " (", ",", ";", ",")
	for _, part := range strings.Split(replacer.Replace(text), ",") {
		part = strings.Trim(strings.TrimSpace(part), "()")
		if part == "" {
			continue
		}
		if _, err := extract.NormalizeURL(part); err == nil {
			continue
		}
		if v, c, ok := extract.ExtractField(model.FieldProductName, part); ok && len(strings.Fields(v)) <= 6 {
			return v, c, true
		}
	}
	return "", 0, false
}

func (l *legacyFlow) productConfirm(s *model.Session, text string) reply {
	switch parseChoice(text) {
	case choiceYes:
		confirmed := true
		s.CollectedData.ProductConfirmed = &confirmed
		if s.CollectedData.Record.CustomerDescription != "" {
			s.Step = model.StepLegacyAnalysisConfirm
			return reply{text: analysisQuestion(s.CollectedData.Record)}
		}
		s.Step = model.StepLegacyCustomerDescription
		s.AwaitingField = model.FieldCustomerDescription
		return reply{text: legacyCustomerPrompt}
	case choiceNo, choiceEdit:
		confirmed := false
		s.CollectedData.ProductConfirmed = &confirmed
		s.CollectedData.Record.ProductName = ""
		s.CollectedData.Record.ProductURL = ""
		s.Step = model.StepLegacyProductInfo
		return reply{text: "No problem. What are the correct product name and website?"}
	}

	if res := l.e.extract(text); res.Record.ProductName != "" || res.Record.ProductURL != "" {
		return l.productInfo(s, text)
	}
	return reply{text: `Please reply "yes" if the product details are right, or "no" to change them.`}
}

func (l *legacyFlow) customerDescription(s *model.Session, text string) reply {
	v, c, ok := extract.ExtractField(model.FieldCustomerDescription, text)
	if !ok {
		return reply{text: legacyCustomerPrompt}
	}
	s.CollectedData.Merge(model.RequirementsRecord{CustomerDescription: v}, model.FieldConfidence{model.FieldCustomerDescription: c})
	s.Step = model.StepLegacyAnalysisConfirm
	s.AwaitingField = ""
	return reply{text: analysisQuestion(s.CollectedData.Record)}
}

func (l *legacyFlow) analysisConfirm(s *model.Session, text string) reply {
	switch parseChoice(text) {
	case choiceYes:
		confirmed := true
		s.CollectedData.AnalysisConfirmed = &confirmed
		s.Step = model.StepLegacyReportGeneration
		return l.promptRemaining(s)
	case choiceNo, choiceEdit:
		confirmed := false
		s.CollectedData.AnalysisConfirmed = &confirmed
		s.Step = model.StepLegacyCustomerDescription
		s.AwaitingField = model.FieldCustomerDescription
		return reply{text: "Okay. Tell me more about who your customers are, so I can aim the analysis better."}
	}
	return reply{text: `Please reply "yes" to go ahead with the analysis, or "no" to adjust the customer description.`}
}

// promptRemaining asks for whatever the record still lacks, or moves on to
// delivery when nothing is missing.
func (l *legacyFlow) promptRemaining(s *model.Session) reply {
	v := validate.Validate(s.CollectedData.Record)
	if v.Ready() {
		s.Step = model.StepLegacyDeliveryChoice
		s.AwaitingField = ""
		return reply{text: deliveryPrompt}
	}
	s.AwaitingField = recovery.NextField(v)
	filled := s.CollectedData.Record.FilledFields()
	return reply{text: recovery.Compose(recovery.Categorize(nil, len(filled), v), s.CollectedData.Record, nil, v)}
}

func (l *legacyFlow) reportGeneration(ctx context.Context, s *model.Session, text string) reply {
	out := l.e.collect(ctx, s, text)
	if out.kind == outcomeFailure {
		return reply{text: out.message}
	}
	s.CollectedData.Merge(out.record, out.confidence)
	if out.kind == outcomeSuccess {
		s.Step = model.StepLegacyDeliveryChoice
		s.AwaitingField = ""
		return reply{text: deliveryPrompt}
	}
	s.AwaitingField = out.nextField
	return reply{text: out.message}
}

func (l *legacyFlow) deliveryChoice(s *model.Session, text string) reply {
	var delivery string
	switch parseChoice(text) {
	case choiceEmail:
		delivery = "email"
	case choiceDashboard:
		delivery = "dashboard"
	default:
		return reply{text: deliveryPrompt}
	}
	s.CollectedData.DeliveryChoice = delivery

	if v := validate.Validate(s.CollectedData.Record); !v.Ready() {
		s.Step = model.StepLegacyReportGeneration
		return l.promptRemaining(s)
	}

	s.Step = model.StepComplete
	correlationID := uuid.Must(uuid.NewV7()).String()
	return reply{
		text:      fmt.Sprintf("Great, creating your project now. Reports will be delivered to your %s. (Reference: %s)", delivery, correlationID),
		transient: true,
		effects: []SideEffect{{
			Kind:          SideEffectProvision,
			Record:        s.CollectedData.Record.Clone(),
			CorrelationID: correlationID,
		}},
	}
}

func analysisQuestion(rec model.RequirementsRecord) string {
	return fmt.Sprintf("Thanks. Shall I set up a competitive analysis of %s aimed at %s? (yes/no)", rec.ProductName, rec.CustomerDescription)
}
