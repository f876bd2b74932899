// Package score computes a 0-100 lead score from a fact record.
//
// Scoring is a pure, deterministic weighted rule set: re-scoring the same
// facts always yields the same number, which is what makes session state
// reproducible by replaying the message log.
package score

import "github.com/BrightDesk/LeadPipe/internal/models"

// Scoring weights. Centralized so individual rules can be tuned without
// touching the rule logic.
const (
	// WeightDecisionMakerYes is added when the visitor has decision authority.
	WeightDecisionMakerYes = 15
	// PenaltyDecisionMakerNo is subtracted when the visitor explicitly lacks it.
	PenaltyDecisionMakerNo = 10

	// Budget band contributions, increasing with band size.
	WeightBudgetUnder25K  = 10
	WeightBudget25KTo100K = 20
	WeightBudgetOver100K  = 30

	// Timeline urgency contributions, decreasing with horizon.
	WeightTimelineImmediate = 15
	WeightTimelineShort     = 10
	WeightTimelineMedium    = 5
	WeightTimelineLong      = 2

	// WeightSuccessCriteria is a flat bonus for explicit success criteria.
	WeightSuccessCriteria = 10

	// Completeness bonuses for supporting business context.
	WeightIndustryKnown  = 5
	WeightTechStackKnown = 5
	WeightChallengeKnown = 10

	// Contact completeness bonuses.
	WeightNameKnown  = 5
	WeightEmailKnown = 10
)

// Lead score bounds.
const (
	MinScore = 0
	MaxScore = 100
)

// Compute maps a fact record to a lead score in [MinScore, MaxScore].
// The score is recomputed from facts every turn and may decrease when an
// earlier signal is revised (e.g. decision authority corrected to no).
func Compute(facts models.Facts) int {
	raw := 0

	switch facts.Qualification.IsDecisionMaker {
	case models.DecisionYes:
		raw += WeightDecisionMakerYes
	case models.DecisionNo:
		raw -= PenaltyDecisionMakerNo
	}

	switch facts.Qualification.BudgetRange {
	case models.BudgetUnder25K:
		raw += WeightBudgetUnder25K
	case models.Budget25KTo100K:
		raw += WeightBudget25KTo100K
	case models.BudgetOver100K:
		raw += WeightBudgetOver100K
	}

	switch facts.Qualification.Timeline {
	case models.TimelineImmediate:
		raw += WeightTimelineImmediate
	case models.TimelineShort:
		raw += WeightTimelineShort
	case models.TimelineMedium:
		raw += WeightTimelineMedium
	case models.TimelineLong:
		raw += WeightTimelineLong
	}

	if len(facts.Qualification.SuccessCriteria) > 0 {
		raw += WeightSuccessCriteria
	}
	if facts.Business.Industry != "" {
		raw += WeightIndustryKnown
	}
	if len(facts.Business.TechStack) > 0 {
		raw += WeightTechStackKnown
	}
	if len(facts.Business.Challenges) > 0 {
		raw += WeightChallengeKnown
	}
	if facts.Client.Name != "" {
		raw += WeightNameKnown
	}
	if facts.Client.Email != "" {
		raw += WeightEmailKnown
	}

	return clamp(raw)
}

func clamp(raw int) int {
	if raw < MinScore {
		return MinScore
	}
	if raw > MaxScore {
		return MaxScore
	}
	return raw
}
