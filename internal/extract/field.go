package extract

import (
	"strings"

	"github.com/capitalize-ai/project-onboarding/internal/model"
)

// maxNameWords bounds a bare reply taken as a name or industry.
const maxNameWords = 8

// ExtractField reads text as a direct answer to a prompt that asked for f
// alone. A regular extraction is tried first; otherwise the whole reply is
// taken as the value when its shape fits the field. Malformed values for
// strictly formatted fields are returned with low confidence so validation
// can explain what is wrong with them.
func ExtractField(f model.Field, text string) (string, int, bool) {
	full := Extract(text)
	if v := full.Record.Get(f); v != "" {
		return v, full.Confidence[f], true
	}

	reply := strings.TrimSpace(text)
	if _, v, ok := splitLabel(reply); ok {
		reply = v
	}
	reply = strings.Trim(stripListMarker(reply), `"“”' `)
	if reply == "" || strings.Contains(reply, "\n") {
		return "", 0, false
	}
	words := len(strings.Fields(reply))

	switch f {
	case model.FieldEmail:
		if strings.Contains(reply, "@") && words == 1 {
			return reply, 40, true
		}
	case model.FieldCadence:
		if m := cadenceEveryRe.FindStringSubmatch(reply); m != nil {
			key := strings.Join(strings.Fields(strings.ToLower(m[1])), " ")
			if c, ok := everyToCadence[key]; ok {
				return c, 80, true
			}
		}
		if c, ok := canonicalCadence(reply); ok {
			return c, 75, true
		}
	case model.FieldProductURL:
		if u, err := NormalizeURL(reply); err == nil {
			return u, urlTierOf(reply).Confidence(), true
		}
		if words == 1 {
			return reply, 30, true
		}
	case model.FieldProductName, model.FieldProjectName:
		if v := firstSentence(reply); v != "" && words <= maxNameWords {
			return v, nameConfidence(v, 75), true
		}
	case model.FieldIndustry:
		if _, ok := MatchIndustry(reply); ok {
			return reply, 90, true
		}
		if words <= maxNameWords {
			return reply, 65, true
		}
	case model.FieldPositioning, model.FieldCustomerDescription, model.FieldProblemStatement:
		if len([]rune(reply)) >= 3 {
			return reply, 75, true
		}
	case model.FieldCompetitorHints, model.FieldFocusAreas:
		if list := model.SplitList(reply); len(list) > 0 {
			return strings.Join(list, ", "), 75, true
		}
	case model.FieldReportTemplate:
		if words == 1 {
			return strings.ToLower(reply), 75, true
		}
	}
	return "", 0, false
}
