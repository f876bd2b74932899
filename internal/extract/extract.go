// Package extract provides deterministic fact extraction from user messages.
//
// Extraction is a pipeline of named, independently testable per-field
// extractors over keyword and pattern matching. No extractor ever raises:
// an unmatched field leaves the existing value untouched, and previously
// known values are only replaced by an explicit superseding match.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/BrightDesk/LeadPipe/internal/models"
)

// IndustryVocabulary is the fixed set of recognized industries, in
// deterministic scan order.
var IndustryVocabulary = []string{
	"healthcare",
	"finance",
	"fintech",
	"education",
	"retail",
	"ecommerce",
	"manufacturing",
	"logistics",
	"saas",
	"tech",
	"insurance",
	"hospitality",
}

// TechStackVocabulary is the fixed set of recognized technologies, in
// deterministic scan order.
var TechStackVocabulary = []string{
	"python",
	"javascript",
	"typescript",
	"react",
	"angular",
	"vue",
	"node",
	"golang",
	"java",
	"ruby",
	"php",
	"aws",
	"azure",
	"gcp",
	"sql",
	"postgres",
	"mysql",
	"mongodb",
	"redis",
	"docker",
	"kubernetes",
	"terraform",
}

// greetingPrefixes are stripped before the bare-name heuristic runs.
var greetingPrefixes = []string{
	"hi,", "hi", "hello,", "hello", "hey,", "hey",
	"good morning", "good afternoon", "good evening", "greetings",
}

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	myNameIsRe = regexp.MustCompile(`(?i)\bmy name(?:'s| is)\s+([a-zA-Z][a-zA-Z'\-]*(?:\s+[a-zA-Z][a-zA-Z'\-]*){0,2})`)
	iAmNameRe  = regexp.MustCompile(`^(?i:i'm|i am|this is)\s+([A-Z][A-Za-z'\-]*(?:\s+[A-Z][A-Za-z'\-]*){0,2})\b`)

	workAtRe    = regexp.MustCompile(`(?i)\bwork(?:ing)?\s+(?:at|for)\s+([A-Za-z0-9][A-Za-z0-9&._\-]*(?:\s+[A-Z][A-Za-z0-9&._\-]*)*)`)
	companyIsRe = regexp.MustCompile(`(?i)\b(?:company(?:'s name)? is(?: called)?|company called)\s+([A-Za-z0-9][A-Za-z0-9&._\-]*(?:\s+[A-Z][A-Za-z0-9&._\-]*)*)`)
	fromCoRe    = regexp.MustCompile(`(?i)\b(?:i'm|i am|we're|we are)\s+from\s+([A-Z][A-Za-z0-9&._\-]*(?:\s+[A-Z][A-Za-z0-9&._\-]*)*)`)

	currencyAmountRe = regexp.MustCompile(`(?i)[$€£]\s*([0-9][0-9,]*(?:\.[0-9]+)?)\s*([km])?`)
	amountSuffixRe   = regexp.MustCompile(`(?i)\b([0-9][0-9,]*(?:\.[0-9]+)?)\s*([km])\b`)

	durationRe = regexp.MustCompile(`(?i)\b([0-9]+)\s*(weeks?|months?)\b`)

	wordRes = map[string]*regexp.Regexp{}
)

func init() {
	for _, term := range IndustryVocabulary {
		wordRes[term] = wordRe(term)
	}
	for _, term := range TechStackVocabulary {
		wordRes[term] = wordRe(term)
	}
}

func wordRe(term string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
}

// decisionPositive and decisionNegative are the phrase sets for the
// tri-state decision-maker signal. Absence of both leaves the prior value
// unchanged.
var decisionPositive = []string{
	"i decide",
	"i'm the decision maker",
	"i am the decision maker",
	"i'm the decision-maker",
	"i am the decision-maker",
	"i make the decision",
	"i make the decisions",
	"it's my call",
	"it is my call",
	"i have the final say",
	"i sign off",
}

var decisionNegative = []string{
	"not the decision maker",
	"not the decision-maker",
	"need approval",
	"needs approval",
	"need sign-off",
	"need to check with",
	"have to ask",
	"have to check with",
	"my boss decides",
	"my manager decides",
}

// successKeywords trigger verbatim capture of success criteria.
var successKeywords = []string{"success", "goal", "objective", "kpi"}

// challengeKeywords trigger capture of a message as a business challenge.
var challengeKeywords = []string{
	"challenge", "problem", "struggle", "struggling", "issue",
	"pain point", "need help", "need ai", "looking for", "we need",
	"i need", "improve", "automate",
}

// budgetAliases map explicit band keywords to budget bands.
var budgetAliases = []struct {
	phrase string
	band   models.BudgetRange
}{
	{"small budget", models.BudgetUnder25K},
	{"limited budget", models.BudgetUnder25K},
	{"tight budget", models.BudgetUnder25K},
	{"medium budget", models.Budget25KTo100K},
	{"moderate budget", models.Budget25KTo100K},
	{"mid-size budget", models.Budget25KTo100K},
	{"large budget", models.BudgetOver100K},
	{"big budget", models.BudgetOver100K},
	{"substantial budget", models.BudgetOver100K},
}

// Budget band boundaries in whole currency units.
const (
	budgetLowerBound = 25_000
	budgetUpperBound = 100_000
)

// Timeline band boundaries in months.
const (
	timelineImmediateMonths = 1
	timelineShortMonths     = 3
	timelineMediumMonths    = 6
)

// FieldExtractor is one named step of the extraction pipeline. Each
// extractor receives the raw message and its lowercased form and returns
// the updated fact record.
type FieldExtractor struct {
	Field string
	Apply func(facts models.Facts, raw, lower string) models.Facts
}

// Pipeline lists the per-field extractors in their fixed execution order.
var Pipeline = []FieldExtractor{
	{Field: "email", Apply: extractEmail},
	{Field: "name", Apply: extractName},
	{Field: "company", Apply: extractCompany},
	{Field: "industry", Apply: extractIndustry},
	{Field: "tech_stack", Apply: extractTechStack},
	{Field: "budget_range", Apply: extractBudget},
	{Field: "timeline", Apply: extractTimeline},
	{Field: "is_decision_maker", Apply: extractDecisionMaker},
	{Field: "success_criteria", Apply: extractSuccessCriteria},
	{Field: "challenges", Apply: extractChallenges},
}

// Apply runs the full extraction pipeline over one user message and
// returns the updated fact record. Pure and side-effect-free.
func Apply(facts models.Facts, message string) models.Facts {
	raw := strings.TrimSpace(message)
	lower := strings.ToLower(raw)
	for _, ex := range Pipeline {
		facts = ex.Apply(facts, raw, lower)
	}
	return facts
}

func extractEmail(facts models.Facts, raw, lower string) models.Facts {
	match := emailRe.FindString(raw)
	if match == "" {
		return facts
	}
	facts.Client.Email = strings.ToLower(match)
	return facts
}

func extractName(facts models.Facts, raw, lower string) models.Facts {
	// Explicit introduction patterns supersede a previously captured name.
	if m := myNameIsRe.FindStringSubmatch(raw); m != nil {
		facts.Client.Name = cleanName(m[1])
		return facts
	}
	if m := iAmNameRe.FindStringSubmatch(raw); m != nil {
		facts.Client.Name = cleanName(m[1])
		return facts
	}

	// Bare-name heuristic: only fills an empty name, never overwrites.
	if facts.Client.Name != "" {
		return facts
	}
	candidate := stripGreeting(raw)
	if candidate == "" || strings.ContainsAny(candidate, "?@0123456789") {
		return facts
	}
	words := strings.Fields(candidate)
	if len(words) == 0 || len(words) > 4 {
		return facts
	}
	for _, w := range words {
		if !isAlphaWord(w) {
			return facts
		}
	}
	facts.Client.Name = cleanName(candidate)
	return facts
}

func extractCompany(facts models.Facts, raw, lower string) models.Facts {
	for _, re := range []*regexp.Regexp{workAtRe, companyIsRe, fromCoRe} {
		if m := re.FindStringSubmatch(raw); m != nil {
			facts.Client.Company = strings.TrimRight(strings.TrimSpace(m[1]), ".,!")
			return facts
		}
	}
	return facts
}

func extractIndustry(facts models.Facts, raw, lower string) models.Facts {
	for _, term := range IndustryVocabulary {
		if wordRes[term].MatchString(lower) {
			facts.Business.Industry = term
			return facts
		}
	}
	return facts
}

func extractTechStack(facts models.Facts, raw, lower string) models.Facts {
	for _, term := range TechStackVocabulary {
		if wordRes[term].MatchString(lower) {
			facts.Business.TechStack = appendUnique(facts.Business.TechStack, term)
		}
	}
	return facts
}

func extractBudget(facts models.Facts, raw, lower string) models.Facts {
	if amount, ok := parseAmount(raw); ok {
		facts.Qualification.BudgetRange = bucketBudget(amount)
		return facts
	}
	for _, alias := range budgetAliases {
		if strings.Contains(lower, alias.phrase) {
			facts.Qualification.BudgetRange = alias.band
			return facts
		}
	}
	return facts
}

func extractTimeline(facts models.Facts, raw, lower string) models.Facts {
	if m := durationRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		months := n
		if strings.HasPrefix(m[2], "week") {
			// Round weeks up to whole months.
			months = (n + 3) / 4
		}
		facts.Qualification.Timeline = bucketTimeline(months)
		return facts
	}
	if strings.Contains(lower, "asap") || strings.Contains(lower, "urgent") || strings.Contains(lower, "immediately") {
		facts.Qualification.Timeline = models.TimelineImmediate
	}
	return facts
}

func extractDecisionMaker(facts models.Facts, raw, lower string) models.Facts {
	for _, phrase := range decisionNegative {
		if strings.Contains(lower, phrase) {
			facts.Qualification.IsDecisionMaker = models.DecisionNo
			return facts
		}
	}
	for _, phrase := range decisionPositive {
		if strings.Contains(lower, phrase) {
			facts.Qualification.IsDecisionMaker = models.DecisionYes
			return facts
		}
	}
	return facts
}

func extractSuccessCriteria(facts models.Facts, raw, lower string) models.Facts {
	for _, kw := range successKeywords {
		if strings.Contains(lower, kw) {
			facts.Qualification.SuccessCriteria = appendUnique(facts.Qualification.SuccessCriteria, raw)
			return facts
		}
	}
	return facts
}

func extractChallenges(facts models.Facts, raw, lower string) models.Facts {
	for _, kw := range challengeKeywords {
		if strings.Contains(lower, kw) {
			facts.Business.Challenges = appendUnique(facts.Business.Challenges, raw)
			return facts
		}
	}
	return facts
}

// parseAmount finds a currency amount like "$75k", "€1.5m", or "50k" and
// returns it in whole currency units.
func parseAmount(raw string) (float64, bool) {
	m := currencyAmountRe.FindStringSubmatch(raw)
	if m == nil {
		m = amountSuffixRe.FindStringSubmatch(raw)
	}
	if m == nil {
		return 0, false
	}
	digits := strings.ReplaceAll(m[1], ",", "")
	value, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "k":
		value *= 1_000
	case "m":
		value *= 1_000_000
	}
	if value <= 0 {
		return 0, false
	}
	return value, true
}

func bucketBudget(amount float64) models.BudgetRange {
	switch {
	case amount < budgetLowerBound:
		return models.BudgetUnder25K
	case amount <= budgetUpperBound:
		return models.Budget25KTo100K
	default:
		return models.BudgetOver100K
	}
}

func bucketTimeline(months int) models.Timeline {
	switch {
	case months <= timelineImmediateMonths:
		return models.TimelineImmediate
	case months <= timelineShortMonths:
		return models.TimelineShort
	case months <= timelineMediumMonths:
		return models.TimelineMedium
	default:
		return models.TimelineLong
	}
}

func stripGreeting(raw string) string {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	for _, prefix := range greetingPrefixes {
		if strings.HasPrefix(lower, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			s = strings.TrimLeft(s, ",.! ")
			break
		}
	}
	return s
}

func cleanName(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), ".,!")
}

func isAlphaWord(w string) bool {
	for _, r := range w {
		if !(r == '\'' || r == '-' || r == '.' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return true
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if strings.EqualFold(existing, value) {
			return list
		}
	}
	return append(list, value)
}

