package validate

import (
	"github.com/capitalize-ai/project-onboarding/internal/model"
)

var examples = map[model.Field]string{
	model.FieldEmail:               `Email: jane@yourcompany.com`,
	model.FieldCadence:             `Frequency: weekly (or daily, biweekly, monthly, quarterly, annually)`,
	model.FieldProjectName:         `Project: Acme Competitive Watch`,
	model.FieldProductName:         `Product: Acme Analytics`,
	model.FieldProductURL:          `Website: https://www.acmeanalytics.com`,
	model.FieldIndustry:            `Industry: SaaS`,
	model.FieldPositioning:         `Positioning: The fastest self-serve analytics platform for small teams`,
	model.FieldCustomerDescription: `Customers: Small e-commerce businesses with 5-50 employees`,
	model.FieldProblemStatement:    `Problem: Small teams spend hours building dashboards by hand`,
	model.FieldCompetitorHints:     `Competitors: Looker, Mixpanel`,
	model.FieldFocusAreas:          `Focus areas: pricing, feature launches`,
	model.FieldReportTemplate:      `Template: executive`,
}

// Example returns a concrete sample answer for a field.
func Example(f model.Field) string {
	return examples[f]
}
