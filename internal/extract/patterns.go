package extract

import (
	"regexp"
	"strings"

	"github.com/capitalize-ai/project-onboarding/internal/model"
)

var (
	emailRe     = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	emailLineRe = regexp.MustCompile(`(?i)^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

	cadenceWordRe    = regexp.MustCompile(`(?i)\b(daily|weekly|bi-weekly|biweekly|monthly|quarterly|annually|yearly)\b`)
	cadencePhraseRe  = regexp.MustCompile(`(?i)\b(daily|weekly|bi-weekly|biweekly|monthly|quarterly|annually|yearly)\s+(?:reports?|updates?|digests?|summaries|analysis|briefings?|cadence|basis)\b`)
	cadenceVerbRe    = regexp.MustCompile(`(?i)\b(?:send|deliver|receive|get|want|like)\b[^.\n]{0,40}?\b(daily|weekly|bi-weekly|biweekly|monthly|quarterly|annually|yearly)\b`)
	cadenceEveryRe   = regexp.MustCompile(`(?i)\bevery\s+(day|week|two\s+weeks|month|quarter|year)\b`)
	everyToCadence   = map[string]string{"day": "daily", "week": "weekly", "two weeks": "biweekly", "month": "monthly", "quarter": "quarterly", "year": "annually"}

	fullSchemeURLRe = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"']+`)
	wwwURLRe        = regexp.MustCompile(`(?i)\bwww\.[a-z0-9\-]+(?:\.[a-z0-9\-]+)+\b(?::\d+)?(?:/[^\s<>"']*)?`)
	bareDomainRe    = regexp.MustCompile(`(?i)\b[a-z0-9][a-z0-9\-]*(?:\.[a-z0-9\-]+)*\.(?:com|io|ai|co|net|org|app|dev|tech|so|xyz|cloud|us|uk|de|biz|info)\b(?::\d+)?(?:/[^\s<>"']*)?`)

	labelLineRe = regexp.MustCompile(`^\s*(?:[-*•]\s*|\d+[.)]\s*)?([A-Za-z][A-Za-z /\-]{0,40}?)\s*[:=]\s*(.+?)\s*$`)
	listMarkRe  = regexp.MustCompile(`^\s*(?:[-*•]\s*|\d+[.)]\s+)`)

	industryPhraseRe = regexp.MustCompile(`(?i)\b(?:in|within)\s+the\s+([a-z][a-z0-9 &/\-]{0,40}?)\s+(?:industry|sector|space|market|vertical)\b`)
	industryIsRe     = regexp.MustCompile(`(?i)\b(?:we\s+are|we're|we\s+operate\s+as)\s+an?\s+([a-z][a-z0-9 &/\-]{0,30}?)\s+(?:company|startup|business|platform|provider)\b`)
)

// capitalized word sequence, up to five words, e.g. "Acme Analytics" or "Acme.io".
const capName = `([A-Z0-9][\w&'\-]*(?:\.[A-Za-z]{2,})?(?:\s+(?:[A-Z0-9][\w&'\-]*|of|for|and|&)(?:\.[A-Za-z]{2,})?){0,4})`

type namePattern struct {
	re         *regexp.Regexp
	confidence int
}

var productNamePatterns = []namePattern{
	{regexp.MustCompile(`\b(?:[Oo]ur|[Mm]y)\s+(?:product|app|tool|platform|service)\s+(?:is\s+)?(?:called|named)\s+["“']?` + capName), 85},
	{regexp.MustCompile(`\b(?:[Pp]roduct|[Cc]ompany|[Ss]tartup)\s+(?:is\s+)?(?:called|named)\s+["“']?` + capName), 80},
	{regexp.MustCompile(`\b(?:[Oo]ur|[Mm]y)\s+(?:product|company|startup)\s+is\s+["“']?` + capName), 70},
	{regexp.MustCompile(`\b(?:[Ww]e\s+(?:are|build|make|run)|[Ww]e're|I\s+(?:build|run))\s+["“']?` + capName + `,?\s+(?:a|an|the)\s`), 60},
	{regexp.MustCompile(`(?i)\bproduct\s+(?:is\s+)?(?:called|named)\s+["“']?([a-z0-9][\w&'\-.]*(?:\s+[a-z0-9][\w&'\-.]*){0,2})`), 55},
}

var projectNamePatterns = []namePattern{
	{regexp.MustCompile(`(?i)\bproject\s+(?:is\s+|should\s+be\s+)?(?:called|named|titled)\s+["“']?([^"”'\n,;]+)`), 85},
	{regexp.MustCompile(`(?i)\bname\s+(?:the|this|my|our)\s+project\s+["“']?([^"”'\n,;]+)`), 80},
	{regexp.MustCompile(`(?i)\bcall\s+(?:the|this|my|our|it)(?:\s+project)?\s+["“']?([^"”'\n,;]+)`), 75},
	{regexp.MustCompile(`(?i)\bproject\s+name\s+(?:is\s+|should\s+be\s+)["“']?([^"”'\n,;]+)`), 85},
}

type phrasePattern struct {
	re         *regexp.Regexp
	confidence int
}

var positioningPatterns = []phrasePattern{
	{regexp.MustCompile(`(?i)\bwe\s+position\s+(?:ourselves|ourself|it|the\s+product|our\s+product)\s+as\s+([^\n]+)`), 80},
	{regexp.MustCompile(`(?i)\b(?:our\s+)?positioning\s+(?:statement\s+)?is(?:\s+that)?\s*:?\s+([^\n]+)`), 80},
	{regexp.MustCompile(`(?i)\b(?:is\s+)?positioned\s+as\s+([^\n]+)`), 75},
	{regexp.MustCompile(`(?i)\b(?:our\s+)?value\s+proposition\s+is(?:\s+that)?\s*:?\s+([^\n]+)`), 75},
	{regexp.MustCompile(`(?i)\bwe\s+(?:differentiate|stand\s+out)\s+(?:ourselves\s+)?by\s+([^\n]+)`), 65},
}

var customerPatterns = []phrasePattern{
	{regexp.MustCompile(`(?i)\b(?:our\s+)?(?:target|ideal)\s+(?:customers?|audience|users?|clients?|market)\s+(?:are|is|include|includes)\s*:?\s+([^\n]+)`), 80},
	{regexp.MustCompile(`(?i)\bour\s+(?:customers|users|clients|audience)\s+(?:are|is|include)\s+([^\n]+)`), 75},
	{regexp.MustCompile(`(?i)\bwe\s+(?:sell\s+to|serve|cater\s+to|target)\s+([^\n]+)`), 70},
	{regexp.MustCompile(`(?i)\b(?:built|designed|made)\s+for\s+([^\n]+)`), 60},
}

var problemPatterns = []phrasePattern{
	{regexp.MustCompile(`(?i)\b(?:the\s+)?problem\s+(?:we(?:'re|\s+are)?\s+solv(?:e|ing)|we\s+address)\s+is(?:\s+that)?\s*:?\s+([^\n]+)`), 80},
	{regexp.MustCompile(`(?i)\b(?:the\s+)?(?:main\s+|core\s+)?problem\s+is(?:\s+that)?\s*:?\s+([^\n]+)`), 75},
	{regexp.MustCompile(`(?i)\bpain\s+points?\s+(?:is|are)\s*:?\s+([^\n]+)`), 70},
	{regexp.MustCompile(`(?i)\bwe\s+(?:solve|fix|address|eliminate)\s+(?:the\s+problem\s+of\s+)?([^\n]+)`), 65},
	{regexp.MustCompile(`(?i)\b(?:helps?|help\s+them)\s+(?:teams|companies|businesses|people|users|customers)?\s*(?:to\s+)?(?:stop|avoid|reduce)\s+([^\n]+)`), 55},
}

var (
	competitorsRe = regexp.MustCompile(`(?i)\b(?:our\s+)?(?:main\s+)?(?:competitors?|rivals?|competing\s+with|compete\s+with)\s+(?:are|is|include|includes|like|such\s+as)?\s*:?\s*([^\n]+)`)
	focusRe       = regexp.MustCompile(`(?i)\bfocus\s+(?:on|areas?\s+(?:are|is|include))\s*:?\s+([^\n]+)`)
	templateRe    = regexp.MustCompile(`(?i)\b(comprehensive|executive|detailed|summary|technical)\s+(?:report\s+)?(?:template|format)\b`)
)

var labelAliases = map[string]model.Field{
	"email":                  model.FieldEmail,
	"e-mail":                 model.FieldEmail,
	"email address":          model.FieldEmail,
	"contact email":          model.FieldEmail,
	"frequency":              model.FieldCadence,
	"report frequency":       model.FieldCadence,
	"cadence":                model.FieldCadence,
	"report cadence":         model.FieldCadence,
	"reports":                model.FieldCadence,
	"schedule":               model.FieldCadence,
	"project":                model.FieldProjectName,
	"project name":           model.FieldProjectName,
	"project title":          model.FieldProjectName,
	"product":                model.FieldProductName,
	"product name":           model.FieldProductName,
	"company":                model.FieldProductName,
	"company name":           model.FieldProductName,
	"url":                    model.FieldProductURL,
	"website":                model.FieldProductURL,
	"site":                   model.FieldProductURL,
	"web site":               model.FieldProductURL,
	"homepage":               model.FieldProductURL,
	"product url":            model.FieldProductURL,
	"product website":        model.FieldProductURL,
	"link":                   model.FieldProductURL,
	"industry":               model.FieldIndustry,
	"sector":                 model.FieldIndustry,
	"vertical":               model.FieldIndustry,
	"positioning":            model.FieldPositioning,
	"positioning statement":  model.FieldPositioning,
	"value proposition":      model.FieldPositioning,
	"customers":              model.FieldCustomerDescription,
	"customer":               model.FieldCustomerDescription,
	"target customers":       model.FieldCustomerDescription,
	"target customer":        model.FieldCustomerDescription,
	"customer description":   model.FieldCustomerDescription,
	"ideal customer":         model.FieldCustomerDescription,
	"audience":               model.FieldCustomerDescription,
	"target audience":        model.FieldCustomerDescription,
	"problem":                model.FieldProblemStatement,
	"problem statement":      model.FieldProblemStatement,
	"problem solved":         model.FieldProblemStatement,
	"pain point":             model.FieldProblemStatement,
	"pain points":            model.FieldProblemStatement,
	"competitors":            model.FieldCompetitorHints,
	"known competitors":      model.FieldCompetitorHints,
	"competition":            model.FieldCompetitorHints,
	"focus":                  model.FieldFocusAreas,
	"focus areas":            model.FieldFocusAreas,
	"focus area":             model.FieldFocusAreas,
	"template":               model.FieldReportTemplate,
	"report template":        model.FieldReportTemplate,
}

// splitLabel splits a "Label: value" line. ok is false when the label is not a known alias.
func splitLabel(line string) (model.Field, string, bool) {
	m := labelLineRe.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	f, ok := labelAliases[strings.ToLower(strings.TrimSpace(m[1]))]
	if !ok {
		return "", "", false
	}
	return f, strings.TrimSpace(m[2]), true
}

// stripListMarker removes a leading bullet or "1." marker.
func stripListMarker(line string) string {
	return strings.TrimSpace(listMarkRe.ReplaceAllString(line, ""))
}

// firstSentence cuts s at the first sentence terminator that is followed by
// whitespace, so "Acme.io" survives but "fast. Next" does not.
func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '!', '?':
			if i == len(s)-1 || s[i+1] == ' ' || s[i+1] == '\t' {
				return strings.TrimSpace(s[:i])
			}
		}
	}
	return s
}

// cutAtConjunction trims a trailing clause introduced by " and our " style joins.
func cutAtConjunction(s string) string {
	lower := strings.ToLower(s)
	for _, sep := range []string{" and our ", " and my ", " and the ", " and we ", ", and ", " which is ", " at http", " at www"} {
		if i := strings.Index(lower, sep); i > 0 {
			s = s[:i]
			lower = lower[:i]
		}
	}
	s = strings.TrimSpace(strings.Trim(s, `"“”' `))
	for {
		i := strings.LastIndexByte(s, ' ')
		if i < 0 {
			return s
		}
		switch strings.ToLower(s[i+1:]) {
		case "and", "of", "for", "&", "the", "is":
			s = strings.TrimSpace(s[:i])
		default:
			return s
		}
	}
}

// canonicalCadence maps a cadence spelling onto the vocabulary.
func canonicalCadence(v string) (string, bool) {
	c, ok := cadenceAliases[strings.ToLower(strings.TrimSpace(v))]
	return c, ok
}
