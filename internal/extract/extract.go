// Package extract turns free text into a partial RequirementsRecord with
// per-field confidence scores.
//
// Two tiers run in order. The structured tier recognizes the ordered list
// protocol (email, cadence, project name on the first three lines). The
// unstructured tier applies field-specific pattern families to the whole
// text. Neither tier panics on arbitrary input; unparseable text yields an
// empty, unsuccessful Result.
package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/capitalize-ai/project-onboarding/internal/model"
)

// Tier identifies which extraction tier produced a Result.
type Tier string

const (
	TierNone         Tier = "none"
	TierStructured   Tier = "structured"
	TierUnstructured Tier = "unstructured"
)

// HighConfidence is the threshold used by the reduced salvage pass.
const HighConfidence = 80

// Result is the output of an extraction.
type Result struct {
	Record     model.RequirementsRecord
	Confidence model.FieldConfidence
	Success    bool
	Tier       Tier
}

// Fields returns the fields the extraction filled.
func (r Result) Fields() []model.Field {
	return r.Record.FilledFields()
}

type builder struct {
	rec  model.RequirementsRecord
	conf model.FieldConfidence
}

func newBuilder() *builder {
	return &builder{conf: make(model.FieldConfidence)}
}

func (b *builder) has(f model.Field) bool {
	return b.rec.Get(f) != ""
}

func (b *builder) set(f model.Field, v string, confidence int) {
	v = strings.TrimSpace(v)
	if v == "" {
		return
	}
	b.rec.Set(f, v)
	b.conf[f] = clamp(confidence)
}

func (b *builder) result(tier Tier) Result {
	ok := !b.rec.IsEmpty()
	if !ok {
		tier = TierNone
	}
	return Result{Record: b.rec, Confidence: b.conf, Success: ok, Tier: tier}
}

// Extract parses text into a partial record.
func Extract(text string) Result {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return Result{Confidence: model.FieldConfidence{}, Tier: TierNone}
	}

	b := newBuilder()
	if rest, ok := structuredTier(b, text); ok {
		unstructuredTier(b, rest)
		return b.result(TierStructured)
	}

	unstructuredTier(b, text)
	return b.result(TierUnstructured)
}

// ExtractHighConfidence runs a full extraction and keeps only the fields
// whose confidence reaches HighConfidence.
func ExtractHighConfidence(text string) Result {
	full := Extract(text)
	b := newBuilder()
	for _, f := range full.Fields() {
		if c := full.Confidence[f]; c >= HighConfidence {
			switch f {
			case model.FieldCompetitorHints:
				b.rec.CompetitorHints = full.Record.CompetitorHints
				b.conf[f] = c
			case model.FieldFocusAreas:
				b.rec.FocusAreas = full.Record.FocusAreas
				b.conf[f] = c
			default:
				b.set(f, full.Record.Get(f), c)
			}
		}
	}
	return b.result(full.Tier)
}

// structuredTier handles the ordered list protocol. It returns the lines
// left for the unstructured tier.
func structuredTier(b *builder, text string) (string, bool) {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) < 3 {
		return "", false
	}

	for i, want := range []model.Field{model.FieldEmail, model.FieldCadence, model.FieldProjectName} {
		if f, _, ok := splitLabel(lines[i]); ok && f != want {
			return "", false
		}
	}

	email := listValue(lines[0])
	cadence, okCadence := canonicalCadence(listValue(lines[1]))
	name := listValue(lines[2])
	if !emailLineRe.MatchString(email) || !okCadence || name == "" {
		return "", false
	}

	b.set(model.FieldEmail, email, 95)
	b.set(model.FieldCadence, cadence, 90)
	b.set(model.FieldProjectName, name, nameConfidence(name, 85))

	rest := lines[3:]
	if len(rest) == 6 && noneLabeled(rest) {
		b.set(model.FieldProductName, stripListMarker(rest[0]), nameConfidence(stripListMarker(rest[0]), 80))
		if u, err := NormalizeURL(stripListMarker(rest[1])); err == nil {
			b.set(model.FieldProductURL, u, urlTierOf(stripListMarker(rest[1])).Confidence())
		}
		b.set(model.FieldIndustry, stripListMarker(rest[2]), 80)
		b.set(model.FieldPositioning, stripListMarker(rest[3]), 80)
		b.set(model.FieldCustomerDescription, stripListMarker(rest[4]), 80)
		b.set(model.FieldProblemStatement, stripListMarker(rest[5]), 80)
		return "", true
	}
	return strings.Join(rest, "\n"), true
}

// listValue strips a list marker and, when present, a known label.
func listValue(line string) string {
	if _, v, ok := splitLabel(line); ok {
		return v
	}
	return stripListMarker(line)
}

func noneLabeled(lines []string) bool {
	for _, l := range lines {
		if _, _, ok := splitLabel(l); ok {
			return false
		}
	}
	return true
}

// unstructuredTier fills every field not already set from text.
func unstructuredTier(b *builder, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	labeledFields(b, text)

	if !b.has(model.FieldEmail) {
		if m := emailRe.FindString(text); m != "" {
			b.set(model.FieldEmail, strings.TrimRight(m, "."), 95)
		}
	}
	if !b.has(model.FieldCadence) {
		extractCadence(b, text)
	}
	if !b.has(model.FieldProductURL) {
		extractURL(b, text)
	}
	if !b.has(model.FieldProductName) {
		extractName(b, model.FieldProductName, productNamePatterns, text)
	}
	if !b.has(model.FieldProjectName) {
		extractName(b, model.FieldProjectName, projectNamePatterns, text)
	}
	if !b.has(model.FieldIndustry) {
		extractIndustry(b, text)
	}
	if !b.has(model.FieldPositioning) {
		extractPhrase(b, model.FieldPositioning, positioningPatterns, text)
	}
	if !b.has(model.FieldCustomerDescription) {
		extractPhrase(b, model.FieldCustomerDescription, customerPatterns, text)
	}
	if !b.has(model.FieldProblemStatement) {
		extractPhrase(b, model.FieldProblemStatement, problemPatterns, text)
	}
	extractOptional(b, text)
}

// labeledFields handles "Label: value" lines. Explicit labels are trusted as
// user intent, so malformed values are kept with low confidence and left for
// validation to report.
func labeledFields(b *builder, text string) {
	for _, line := range strings.Split(text, "\n") {
		f, v, ok := splitLabel(line)
		if !ok || v == "" || b.has(f) {
			continue
		}
		switch f {
		case model.FieldEmail:
			if emailLineRe.MatchString(v) {
				b.set(f, v, 95)
			} else {
				b.set(f, v, 40)
			}
		case model.FieldCadence:
			if c, ok := canonicalCadence(v); ok {
				b.set(f, c, 95)
			} else if m := cadenceWordRe.FindString(v); m != "" {
				c, _ := canonicalCadence(m)
				b.set(f, c, 85)
			} else {
				b.set(f, strings.ToLower(v), 40)
			}
		case model.FieldProductURL:
			if u, err := NormalizeURL(v); err == nil {
				b.set(f, u, urlTierOf(v).Confidence())
			} else {
				b.set(f, v, 30)
			}
		case model.FieldProductName, model.FieldProjectName:
			b.set(f, v, nameConfidence(v, 90))
		case model.FieldIndustry:
			if _, ok := MatchIndustry(v); ok {
				b.set(f, v, 90)
			} else {
				b.set(f, v, 75)
			}
		case model.FieldCompetitorHints:
			b.rec.CompetitorHints = model.SplitList(v)
			b.conf[f] = 90
		case model.FieldFocusAreas:
			b.rec.FocusAreas = model.SplitList(v)
			b.conf[f] = 90
		case model.FieldReportTemplate:
			b.set(f, strings.ToLower(v), 90)
		default:
			b.set(f, v, 85)
		}
	}
}

func extractCadence(b *builder, text string) {
	for _, p := range []struct {
		re         *regexp.Regexp
		confidence int
	}{{cadencePhraseRe, 90}, {cadenceVerbRe, 85}} {
		if m := p.re.FindStringSubmatch(text); m != nil {
			if c, ok := canonicalCadence(m[1]); ok {
				b.set(model.FieldCadence, c, p.confidence)
				return
			}
		}
	}
	if m := cadenceEveryRe.FindStringSubmatch(text); m != nil {
		key := strings.Join(strings.Fields(strings.ToLower(m[1])), " ")
		if c, ok := everyToCadence[key]; ok {
			b.set(model.FieldCadence, c, 80)
			return
		}
	}
	if m := cadenceWordRe.FindString(text); m != "" {
		c, _ := canonicalCadence(m)
		b.set(model.FieldCadence, c, 70)
	}
}

// extractURL tries the three URL patterns from strictest to loosest. Email
// addresses are masked first so their domains are not taken for websites.
func extractURL(b *builder, text string) {
	masked := emailRe.ReplaceAllStringFunc(text, func(s string) string {
		return strings.Repeat(" ", len(s))
	})
	for _, p := range []struct {
		re   *regexp.Regexp
		tier URLTier
	}{
		{fullSchemeURLRe, URLTierFullScheme},
		{wwwURLRe, URLTierWWW},
		{bareDomainRe, URLTierBareDomain},
	} {
		for _, m := range p.re.FindAllString(masked, -1) {
			u, err := NormalizeURL(m)
			if err != nil {
				continue
			}
			b.set(model.FieldProductURL, u, p.tier.Confidence())
			return
		}
	}
}

func urlTierOf(raw string) URLTier {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return URLTierFullScheme
	case strings.HasPrefix(raw, "www."):
		return URLTierWWW
	default:
		return URLTierBareDomain
	}
}

func extractName(b *builder, f model.Field, patterns []namePattern, text string) {
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		name := cutAtConjunction(firstSentence(m[1]))
		if name == "" {
			continue
		}
		b.set(f, name, nameConfidence(name, p.confidence))
		return
	}
}

// nameConfidence adjusts a base score with heuristics: very short names or
// truncated names ("...") lose confidence, title-case multi-word names gain.
func nameConfidence(name string, base int) int {
	c := base
	if len([]rune(strings.TrimSpace(name))) < 3 {
		c -= 25
	}
	if strings.Contains(name, "...") || strings.Contains(name, "…") {
		c -= 20
	}
	if isTitleCaseMultiWord(name) {
		c += 5
	}
	return clamp(c)
}

func isTitleCaseMultiWord(s string) bool {
	words := strings.Fields(s)
	if len(words) < 2 {
		return false
	}
	for _, w := range words {
		r := []rune(w)
		if !unicode.IsUpper(r[0]) && !unicode.IsDigit(r[0]) {
			return false
		}
	}
	return true
}

func extractIndustry(b *builder, text string) {
	if m := industryPhraseRe.FindStringSubmatch(text); m != nil {
		v := strings.TrimSpace(m[1])
		if _, ok := MatchIndustry(v); ok {
			b.set(model.FieldIndustry, v, 85)
		} else {
			b.set(model.FieldIndustry, v, 65)
		}
		return
	}
	if m := industryIsRe.FindStringSubmatch(text); m != nil {
		if ind, ok := MatchIndustry(m[1]); ok {
			b.set(model.FieldIndustry, ind, 70)
		}
	}
}

func extractPhrase(b *builder, f model.Field, patterns []phrasePattern, text string) {
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v := strings.Trim(firstSentence(m[1]), `"“”' `)
		if len([]rune(v)) < 3 {
			continue
		}
		b.set(f, v, p.confidence)
		return
	}
}

func extractOptional(b *builder, text string) {
	if len(b.rec.CompetitorHints) == 0 {
		if m := competitorsRe.FindStringSubmatch(text); m != nil {
			if hints := model.SplitList(firstSentence(m[1])); len(hints) > 0 {
				b.rec.CompetitorHints = hints
				b.conf[model.FieldCompetitorHints] = 70
			}
		}
	}
	if len(b.rec.FocusAreas) == 0 {
		if m := focusRe.FindStringSubmatch(text); m != nil {
			if areas := model.SplitList(firstSentence(m[1])); len(areas) > 0 {
				b.rec.FocusAreas = areas
				b.conf[model.FieldFocusAreas] = 70
			}
		}
	}
	if !b.has(model.FieldReportTemplate) {
		if m := templateRe.FindStringSubmatch(text); m != nil {
			b.set(model.FieldReportTemplate, strings.ToLower(m[1]), 75)
		}
	}
}

func clamp(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
