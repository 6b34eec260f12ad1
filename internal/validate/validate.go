// Package validate checks a RequirementsRecord for format, completeness and
// business-rule problems. Validation is a pure function of the record.
package validate

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/capitalize-ai/project-onboarding/internal/extract"
	"github.com/capitalize-ai/project-onboarding/internal/model"
)

const (
	minFieldLength       = 3
	maxProjectNameLength = 100
	minCustomerLength    = 20
	maxEmailLength       = 254
	maxLocalPartLength   = 64
	maxDomainLength      = 253
	maxLabelLength       = 63
)

var (
	localPartRe = regexp.MustCompile(`^[A-Za-z0-9!#$%&'*+/=?^_{|}~\-]+(?:\.[A-Za-z0-9!#$%&'*+/=?^_{|}~\-]+)*$`)
	domainLabel = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?$`)
	tldRe       = regexp.MustCompile(`^[A-Za-z]{2,}$`)
)

// typoDomains maps common misspellings of mail providers to the intended domain.
var typoDomains = map[string]string{
	"gmial.com":   "gmail.com",
	"gmai.com":    "gmail.com",
	"gamil.com":   "gmail.com",
	"gnail.com":   "gmail.com",
	"gmail.co":    "gmail.com",
	"gmail.con":   "gmail.com",
	"yahooo.com":  "yahoo.com",
	"yaho.com":    "yahoo.com",
	"hotmial.com": "hotmail.com",
	"hotmal.com":  "hotmail.com",
	"outlok.com":  "outlook.com",
	"outloo.com":  "outlook.com",
	"iclod.com":   "icloud.com",
}

// Validate runs every check against rec.
func Validate(rec model.RequirementsRecord) model.ValidationOutcome {
	var out model.ValidationOutcome

	filled := 0
	for _, f := range model.RequiredFields {
		v := strings.TrimSpace(rec.Get(f))
		switch {
		case v == "":
			out.Errors = append(out.Errors, model.Issue{
				Field:      f,
				Type:       model.IssueMissing,
				Message:    fmt.Sprintf("%s is required", f.Label()),
				Suggestion: Example(f),
			})
		case len([]rune(v)) < minFieldLength:
			out.Errors = append(out.Errors, model.Issue{
				Field:      f,
				Type:       model.IssueTooShort,
				Message:    fmt.Sprintf("%s must be at least %d characters", f.Label(), minFieldLength),
				Suggestion: Example(f),
			})
		default:
			filled++
		}
	}

	if rec.Email != "" {
		if issue := CheckEmail(rec.Email); issue != nil {
			out.Errors = append(out.Errors, *issue)
		}
	}
	if rec.ProductURL != "" {
		errIssue, warning := CheckURL(rec.ProductURL)
		if errIssue != nil {
			out.Errors = append(out.Errors, *errIssue)
		}
		if warning != nil {
			out.Warnings = append(out.Warnings, *warning)
		}
	}
	if rec.Cadence != "" {
		if _, ok := model.ParseCadence(rec.Cadence); !ok {
			out.Errors = append(out.Errors, model.Issue{
				Field:      model.FieldCadence,
				Type:       model.IssueInvalidValue,
				Message:    fmt.Sprintf("%q is not a supported report frequency", rec.Cadence),
				Suggestion: "Choose one of: daily, weekly, biweekly, monthly, quarterly, annually",
			})
		}
	}

	out.Warnings = append(out.Warnings, businessRules(rec)...)

	out.Completeness = int(math.Round(float64(filled) / float64(len(model.RequiredFields)) * 100))
	out.IsValid = len(out.Errors) == 0

	for _, i := range append(append([]model.Issue(nil), out.Errors...), out.Warnings...) {
		if i.Type != model.IssueMissing && i.Suggestion != "" {
			out.Suggestions = append(out.Suggestions, i.Suggestion)
		}
	}
	if missing := len(out.MissingFields()); missing > 1 {
		out.Suggestions = append(out.Suggestions,
			fmt.Sprintf("You can share the remaining %d details in a single message.", missing))
	}

	return out
}

// CheckEmail validates an address strictly. It returns nil when the address is acceptable.
func CheckEmail(email string) *model.Issue {
	email = strings.TrimSpace(email)
	invalid := func(msg string) *model.Issue {
		return &model.Issue{
			Field:      model.FieldEmail,
			Type:       model.IssueInvalidFormat,
			Message:    msg,
			Suggestion: Example(model.FieldEmail),
		}
	}

	if len(email) > maxEmailLength {
		return invalid("Email address is too long")
	}
	if strings.Count(email, "@") != 1 {
		return invalid("Email address must contain exactly one @")
	}
	local, domain, _ := strings.Cut(email, "@")
	if local == "" || len(local) > maxLocalPartLength || !localPartRe.MatchString(local) {
		return invalid("Email address has an invalid name before the @")
	}
	if domain == "" || len(domain) > maxDomainLength {
		return invalid("Email address has an invalid domain")
	}
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return invalid("Email domain must include a top-level domain such as .com")
	}
	for _, l := range labels {
		if l == "" || len(l) > maxLabelLength || !domainLabel.MatchString(l) {
			return invalid("Email address has an invalid domain")
		}
	}
	if !tldRe.MatchString(labels[len(labels)-1]) {
		return invalid("Email domain must end in a valid top-level domain")
	}

	if fixed, ok := typoDomains[strings.ToLower(domain)]; ok {
		return &model.Issue{
			Field:      model.FieldEmail,
			Type:       model.IssueTypoDomain,
			Message:    fmt.Sprintf("%q looks like a typo", domain),
			Suggestion: fmt.Sprintf("Did you mean %s@%s?", local, fixed),
		}
	}
	return nil
}

// CheckURL validates a product URL syntactically. No network request is made.
// The first return value blocks, the second is a warning.
func CheckURL(raw string) (*model.Issue, *model.Issue) {
	normalized, err := extract.NormalizeURL(raw)
	if errors.Is(err, extract.ErrLoopbackHost) {
		return &model.Issue{
			Field:      model.FieldProductURL,
			Type:       model.IssueLoopbackHost,
			Message:    "Product website cannot point at a local address",
			Suggestion: "Use the public address of your product, e.g. https://www.example.com",
		}, nil
	}
	if err != nil {
		return &model.Issue{
			Field:      model.FieldProductURL,
			Type:       model.IssueInvalidFormat,
			Message:    "Product website is not a valid web address",
			Suggestion: Example(model.FieldProductURL),
		}, nil
	}
	if strings.HasPrefix(normalized, "http://") {
		return nil, &model.Issue{
			Field:      model.FieldProductURL,
			Type:       model.IssueInsecureURL,
			Message:    "Product website does not use HTTPS",
			Suggestion: "Use the https:// address if your site supports it",
		}
	}
	return nil, nil
}

func businessRules(rec model.RequirementsRecord) []model.Issue {
	var warnings []model.Issue

	if len([]rune(rec.ProjectName)) > maxProjectNameLength {
		warnings = append(warnings, model.Issue{
			Field:      model.FieldProjectName,
			Type:       model.IssueLongValue,
			Message:    fmt.Sprintf("Project name is longer than %d characters", maxProjectNameLength),
			Suggestion: "A shorter project name is easier to find in reports",
		})
	}

	if ind := strings.TrimSpace(rec.Industry); ind != "" {
		if _, ok := extract.MatchIndustry(ind); !ok && len([]rune(ind)) < 6 {
			warnings = append(warnings, model.Issue{
				Field:      model.FieldIndustry,
				Type:       model.IssueGenericIndustry,
				Message:    fmt.Sprintf("Industry %q is not one we recognize", ind),
				Suggestion: "A specific industry such as \"fintech\" or \"healthcare\" improves competitor matching",
			})
		}
	}

	if rec.ProductName != "" && rec.ProductURL != "" {
		if normalized, err := extract.NormalizeURL(rec.ProductURL); err == nil && !nameInHost(rec.ProductName, extract.Hostname(normalized)) {
			warnings = append(warnings, model.Issue{
				Field:      model.FieldProductName,
				Type:       model.IssueNameURLMismatch,
				Message:    fmt.Sprintf("Product name %q does not appear in %s", rec.ProductName, normalized),
				Suggestion: "Double-check that the website belongs to this product",
			})
		}
	}

	if c := strings.TrimSpace(rec.CustomerDescription); c != "" && len([]rune(c)) < minCustomerLength {
		warnings = append(warnings, model.Issue{
			Field:      model.FieldCustomerDescription,
			Type:       model.IssueBriefDescription,
			Message:    "Customer description is quite brief",
			Suggestion: "Describe who buys your product, e.g. company size, role or market",
		})
	}

	if rec.Positioning != "" && rec.ProblemStatement != "" && !sharesVocabulary(rec.Positioning, rec.ProblemStatement) {
		warnings = append(warnings, model.Issue{
			Field:      model.FieldPositioning,
			Type:       model.IssueUnrelatedStatements,
			Message:    "Positioning and problem statement do not seem related",
			Suggestion: "Make sure your positioning addresses the problem you solve",
		})
	}

	return warnings
}

func nameInHost(name, host string) bool {
	if host == "" {
		return true
	}
	compactHost := compact(host)
	if c := compact(name); c != "" && strings.Contains(compactHost, c) {
		return true
	}
	for _, w := range strings.Fields(strings.ToLower(name)) {
		if w = compact(w); len(w) >= 3 && strings.Contains(compactHost, w) {
			return true
		}
	}
	return false
}

func compact(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sharesVocabulary(a, b string) bool {
	wa := extract.SignificantWords(a)
	for w := range extract.SignificantWords(b) {
		if wa[w] {
			return true
		}
	}
	return false
}
