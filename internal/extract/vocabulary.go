package extract

import (
	"strings"
)

// Industries is the sector vocabulary recognized in free text.
var Industries = []string{
	"saas", "software", "fintech", "financial services", "banking", "insurance", "insurtech",
	"healthcare", "healthtech", "biotech", "pharmaceuticals", "edtech", "education",
	"e-commerce", "ecommerce", "retail", "marketing", "martech", "adtech", "advertising",
	"cybersecurity", "security", "artificial intelligence", "ai", "machine learning",
	"analytics", "data", "developer tools", "devtools", "crm", "productivity",
	"communication", "logistics", "transportation", "automotive", "manufacturing",
	"real estate", "proptech", "legal", "legaltech", "hr", "human resources", "hrtech",
	"gaming", "media", "entertainment", "travel", "hospitality", "energy", "cleantech",
	"telecommunications", "agriculture", "agtech", "construction", "nonprofit",
	"government", "consulting", "food and beverage", "fitness", "wellness", "hardware",
	"consumer goods", "b2b", "b2c", "marketplace",
}

// MatchIndustry returns the vocabulary entry contained in v, preferring the longest.
func MatchIndustry(v string) (string, bool) {
	v = " " + strings.ToLower(strings.TrimSpace(v)) + " "
	best := ""
	for _, ind := range Industries {
		if strings.Contains(v, " "+ind+" ") || strings.Contains(v, " "+ind+",") || strings.Contains(v, " "+ind+".") {
			if len(ind) > len(best) {
				best = ind
			}
		}
	}
	return best, best != ""
}

// Templates is the report template vocabulary.
var Templates = []string{"comprehensive", "executive", "detailed", "summary", "technical"}

// cadenceAliases maps accepted spellings onto the cadence vocabulary.
var cadenceAliases = map[string]string{
	"daily":     "daily",
	"weekly":    "weekly",
	"biweekly":  "biweekly",
	"bi-weekly": "biweekly",
	"monthly":   "monthly",
	"quarterly": "quarterly",
	"annually":  "annually",
	"yearly":    "annually",
}

// stopwords are ignored when comparing statements for shared vocabulary.
var stopwords = map[string]bool{
	"that": true, "this": true, "with": true, "from": true, "have": true, "they": true,
	"their": true, "them": true, "your": true, "about": true, "into": true, "when": true,
	"what": true, "which": true, "while": true, "where": true, "would": true, "could": true,
	"should": true, "there": true, "than": true, "then": true, "were": true, "been": true,
	"being": true, "more": true, "most": true, "some": true, "such": true, "very": true,
	"also": true, "just": true, "only": true, "other": true, "over": true, "each": true,
	"because": true, "without": true, "through": true, "ourselves": true,
}

// SignificantWords returns the lowercase words of at least four letters that
// are not stopwords.
func SignificantWords(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	}) {
		if len(w) >= 4 && !stopwords[w] {
			out[strings.TrimSuffix(w, "s")] = true
		}
	}
	return out
}
