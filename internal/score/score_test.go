package score

import (
	"testing"

	"github.com/BrightDesk/LeadPipe/internal/models"
)

func TestComputeEmptyFacts(t *testing.T) {
	if got := Compute(models.Facts{}); got != 0 {
		t.Errorf("empty facts scored %d, want 0", got)
	}
}

func TestComputeAdditiveWeights(t *testing.T) {
	facts := models.Facts{
		Client: models.ClientInfo{Name: "Ada", Email: "ada@example.com"},
		Business: models.BusinessContext{
			Industry:   "finance",
			Challenges: []string{"manual reconciliation"},
			TechStack:  []string{"python"},
		},
		Qualification: models.Qualification{
			BudgetRange:     models.Budget25KTo100K,
			Timeline:        models.TimelineShort,
			IsDecisionMaker: models.DecisionYes,
			SuccessCriteria: []string{"halve close time"},
		},
	}
	want := WeightNameKnown + WeightEmailKnown +
		WeightIndustryKnown + WeightChallengeKnown + WeightTechStackKnown +
		WeightBudget25KTo100K + WeightTimelineShort +
		WeightDecisionMakerYes + WeightSuccessCriteria
	if got := Compute(facts); got != want {
		t.Errorf("Compute = %d, want %d", got, want)
	}
}

func TestComputeDecisionMakerPenalty(t *testing.T) {
	facts := models.Facts{
		Qualification: models.Qualification{IsDecisionMaker: models.DecisionNo},
	}
	// A lone penalty clamps at the floor.
	if got := Compute(facts); got != MinScore {
		t.Errorf("expected clamp to %d, got %d", MinScore, got)
	}

	facts.Qualification.BudgetRange = models.BudgetOver100K
	want := WeightBudgetOver100K - PenaltyDecisionMakerNo
	if got := Compute(facts); got != want {
		t.Errorf("Compute = %d, want %d", got, want)
	}
}

func TestComputeClampUpper(t *testing.T) {
	facts := models.Facts{
		Client: models.ClientInfo{Name: "Ada", Email: "ada@example.com"},
		Business: models.BusinessContext{
			Industry:   "finance",
			Challenges: []string{"a"},
			TechStack:  []string{"python"},
		},
		Qualification: models.Qualification{
			BudgetRange:     models.BudgetOver100K,
			Timeline:        models.TimelineImmediate,
			IsDecisionMaker: models.DecisionYes,
			SuccessCriteria: []string{"b"},
		},
	}
	got := Compute(facts)
	if got > MaxScore {
		t.Errorf("score %d exceeds max", got)
	}
	if got != MaxScore {
		t.Errorf("best-case facts should hit %d, got %d", MaxScore, got)
	}
}

func TestComputeScoreCanDecrease(t *testing.T) {
	facts := models.Facts{
		Qualification: models.Qualification{IsDecisionMaker: models.DecisionYes},
	}
	before := Compute(facts)

	// The visitor corrects an earlier signal.
	facts.Qualification.IsDecisionMaker = models.DecisionNo
	after := Compute(facts)
	if after >= before {
		t.Errorf("expected score to drop after correction: before=%d after=%d", before, after)
	}
}

func TestComputeDeterministic(t *testing.T) {
	facts := models.Facts{
		Client:        models.ClientInfo{Email: "a@b.co"},
		Qualification: models.Qualification{BudgetRange: models.BudgetUnder25K},
	}
	first := Compute(facts)
	for i := 0; i < 10; i++ {
		if got := Compute(facts); got != first {
			t.Fatalf("non-deterministic score: %d vs %d", got, first)
		}
	}
}
