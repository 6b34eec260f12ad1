package conversation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/project-onboarding/internal/model"
)

const welcomePrompt = "Hi! Let's set up your competitive analysis project. Tell me about it in one message, or a bit at a time. I need:\n\n" +
	"1. Your email address\n" +
	"2. How often you want reports (daily, weekly, biweekly, monthly, quarterly or annually)\n" +
	"3. A name for the project\n" +
	"4. Your product's name\n" +
	"5. Your product's website\n" +
	"6. Your industry\n" +
	"7. How you position the product\n" +
	"8. Who your customers are\n" +
	"9. The problem your product solves\n\n" +
	"You can also mention competitors you already know about."

const legacyProductPrompt = "Hi! Let's start with your product. What's it called, and what's its website?"

const legacyCustomerPrompt = "Great. Now tell me about your target customers: who buys or uses the product?"

const deliveryPrompt = `Almost done. How would you like to receive your reports: "email" or "dashboard"?`

const migrationTip = `Tip: you can reply "migrate" at any point to switch to the faster single-message setup. Nothing you've told me will be lost.`

const confirmHelpMessage = `Please reply "yes" to create the project, "edit" to change something, or "cancel" to discard these details.`

func completeMessage(s *model.Session) string {
	if s.ProjectID == "" {
		return "Your project is being created. I'll confirm here as soon as it's ready."
	}
	return fmt.Sprintf("Your project has already been created (ID: %s). Start a new session to set up another one.", s.ProjectID)
}

func editPrompt(rec model.RequirementsRecord) string {
	var b strings.Builder
	b.WriteString("Sure. Send the details you want to change, for example \"Industry: fintech\". Here's what I have now:\n\n")
	writeFields(&b, rec)
	return b.String()
}

func resumePrompt(rec model.RequirementsRecord) string {
	var b strings.Builder
	b.WriteString("Welcome back! I couldn't pick up exactly where we left off")
	if rec.IsEmpty() {
		b.WriteString(".\n\n")
	} else {
		b.WriteString(", but I kept what you told me:\n\n")
		writeFields(&b, rec)
		b.WriteString("\n")
	}
	b.WriteString(`Reply "continue" to carry on, "edit" to change something, or "restart" to start over.`)
	return b.String()
}

func writeFields(b *strings.Builder, rec model.RequirementsRecord) {
	for _, f := range model.AllFields() {
		if v := rec.Get(f); v != "" {
			fmt.Fprintf(b, "- %s: %s\n", f.Label(), v)
		}
	}
}

// renderSummary renders the confirmation summary: every required field,
// any optional fields, a data-quality score and the competitor preview.
func (e *Engine) renderSummary(ctx context.Context, s *model.Session, v model.ValidationOutcome, prefix string) string {
	rec := s.CollectedData.Record

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString("Here's your project summary:\n\n")
	for _, f := range model.RequiredFields {
		fmt.Fprintf(&b, "- %s: %s\n", f.Label(), rec.Get(f))
	}
	for _, f := range []model.Field{model.FieldCompetitorHints, model.FieldFocusAreas, model.FieldReportTemplate} {
		if val := rec.Get(f); val != "" {
			fmt.Fprintf(&b, "- %s: %s\n", f.Label(), val)
		}
	}

	fmt.Fprintf(&b, "\nData quality: %d/100\n", qualityScore(s.CollectedData.Confidence, v))
	for _, w := range v.Warnings {
		fmt.Fprintf(&b, "Heads-up: %s\n", w.Message)
	}

	b.WriteString("\n")
	b.WriteString(e.previewLine(ctx, rec))
	b.WriteString("\n\n")
	b.WriteString(`Reply "yes" to create the project, "edit" to change something, or "cancel" to discard it.`)
	return b.String()
}

func (e *Engine) previewLine(ctx context.Context, rec model.RequirementsRecord) string {
	const generic = "Competitors will be assigned automatically from our catalog."
	if e.preview == nil {
		return generic
	}
	p, err := e.preview.PreviewAssignment(ctx, rec)
	if err != nil {
		e.log.Warn("assignment preview failed", zap.Error(err))
		return generic
	}
	if p.Total == 0 {
		return "No competitors are available in our catalog yet, so creating the project may fail."
	}

	line := fmt.Sprintf("%d competitors will be tracked", p.Total)
	if len(p.Names) > 0 {
		line += ": " + strings.Join(p.Names, ", ")
	}
	line += "."
	if len(rec.CompetitorHints) > 0 && !p.MatchedHints {
		line += " None of the competitors you named are in our catalog yet, so I picked from the full list."
	}
	return line
}

// qualityScore averages extraction confidence over the required fields and
// takes five points off per warning.
func qualityScore(conf model.FieldConfidence, v model.ValidationOutcome) int {
	total := 0
	for _, f := range model.RequiredFields {
		c, ok := conf[f]
		if !ok {
			c = 50
		}
		total += c
	}
	score := total/len(model.RequiredFields) - 5*len(v.Warnings)
	return min(max(score, 0), 100)
}

// renderResult describes a committed provisioning run.
func renderResult(res *model.ProvisioningResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your project %q is ready (ID: %s).\n", res.Project.Name, res.Project.ID)
	if n := len(res.Project.CompetitorIDs); n > 0 {
		fmt.Fprintf(&b, "Tracking %d competitors.\n", n)
	}

	switch {
	case res.Product.Created:
		b.WriteString("Your product was added to the project.\n")
	case res.Product.Attempted:
		b.WriteString("I couldn't add your product record; you can add it later from the project page.\n")
	}

	switch {
	case res.Report.Generated && res.Report.Attempts > 1:
		fmt.Fprintf(&b, "Your first report is ready (it took %d attempts).\n", res.Report.Attempts)
	case res.Report.Generated:
		b.WriteString("Your first report is ready.\n")
	case res.Report.Attempted:
		fmt.Fprintf(&b, "The first report couldn't be generated after %d attempts. It will be produced on the next scheduled run.\n", res.Report.Attempts)
	}

	switch {
	case res.Schedule.Scheduled && res.Schedule.NextRunAt != nil:
		fmt.Fprintf(&b, "Recurring reports are scheduled; the next one runs on %s.\n", res.Schedule.NextRunAt.Format("Mon, 02 Jan 2006"))
	case res.Schedule.Scheduled:
		b.WriteString("Recurring reports are scheduled.\n")
	case res.Schedule.Attempted:
		b.WriteString("I couldn't schedule recurring reports yet; you can set that up from the project page.\n")
	}

	if res.AINotice != "" {
		fmt.Fprintf(&b, "\nNote: %s\n", res.AINotice)
	}
	if res.DataQualityConcern {
		b.WriteString("\nSome of the competitors have incomplete profiles, so early reports may be thinner than usual.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
