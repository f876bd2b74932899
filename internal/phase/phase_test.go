package phase

import (
	"strings"
	"testing"

	"github.com/BrightDesk/LeadPipe/internal/models"
)

func fullFacts() models.Facts {
	return models.Facts{
		Client: models.ClientInfo{
			Name:    "John Doe",
			Email:   "john@example.com",
			Company: "TechCorp",
		},
		Business: models.BusinessContext{
			Industry:   "healthcare",
			Challenges: []string{"need ai help with patient intake"},
		},
		Qualification: models.Qualification{
			BudgetRange: models.Budget25KTo100K,
			Timeline:    models.TimelineShort,
		},
	}
}

func TestEvaluateGreetingAdvancesToDiscovery(t *testing.T) {
	m := NewMachine(0)

	res := m.Evaluate(models.PhaseGreeting, 0, models.Facts{})
	if res.Phase != models.PhaseDiscovery {
		t.Errorf("expected discovery, got %s", res.Phase)
	}
	if !res.Advanced {
		t.Error("expected advancement from greeting")
	}
	if res.StallCount != 0 {
		t.Errorf("expected stall count reset, got %d", res.StallCount)
	}
}

func TestEvaluateSkipsMultiplePhases(t *testing.T) {
	m := NewMachine(0)

	// Everything volunteered up front: greeting through qualification are
	// satisfied, summary_review is crossed automatically.
	res := m.Evaluate(models.PhaseGreeting, 0, fullFacts())
	if res.Phase != models.PhaseReadyForPRD {
		t.Errorf("expected ready_for_prd, got %s", res.Phase)
	}
	if !res.Advanced {
		t.Error("expected advancement")
	}
}

func TestEvaluateGatesOnCurrentPhaseOnly(t *testing.T) {
	m := NewMachine(0)

	// Qualification facts present but discovery incomplete: no email.
	facts := fullFacts()
	facts.Client.Email = ""

	res := m.Evaluate(models.PhaseGreeting, 0, facts)
	if res.Phase != models.PhaseDiscovery {
		t.Errorf("expected discovery (gated on email), got %s", res.Phase)
	}
	if len(res.MissingFields) != 1 || res.MissingFields[0] != "email" {
		t.Errorf("expected missing [email], got %v", res.MissingFields)
	}
	if !strings.Contains(res.Prompt, "email") {
		t.Errorf("expected email prompt, got %q", res.Prompt)
	}
}

func TestEvaluateStallCounting(t *testing.T) {
	m := NewMachine(3)
	facts := models.Facts{Client: models.ClientInfo{Name: "Ada"}}

	res := m.Evaluate(models.PhaseDiscovery, 0, facts)
	if res.Advanced {
		t.Fatal("expected no advancement without email")
	}
	if res.StallCount != 1 {
		t.Errorf("expected stall count 1, got %d", res.StallCount)
	}

	// Third stalled turn hits the threshold and asks explicitly.
	res = m.Evaluate(models.PhaseDiscovery, 2, facts)
	if res.StallCount != 3 {
		t.Errorf("expected stall count 3, got %d", res.StallCount)
	}
	if res.Prompt != explicitFieldPrompts["email"] {
		t.Errorf("expected explicit email request, got %q", res.Prompt)
	}
}

func TestEvaluateStallResetsOnAdvance(t *testing.T) {
	m := NewMachine(3)

	facts := models.Facts{Client: models.ClientInfo{Name: "Ada", Email: "ada@example.com"}}
	res := m.Evaluate(models.PhaseDiscovery, 2, facts)
	if res.Phase != models.PhaseBusinessContext {
		t.Fatalf("expected business_context, got %s", res.Phase)
	}
	if res.StallCount != 0 {
		t.Errorf("expected stall reset on advancement, got %d", res.StallCount)
	}
}

func TestEvaluateReadyForPRDIsSticky(t *testing.T) {
	m := NewMachine(0)

	res := m.Evaluate(models.PhaseReadyForPRD, 0, fullFacts())
	if res.Phase != models.PhaseReadyForPRD {
		t.Errorf("expected ready_for_prd to hold, got %s", res.Phase)
	}
	if res.Advanced {
		t.Error("ready_for_prd must not auto-advance to completed")
	}
	if res.StallCount != 0 {
		t.Errorf("terminal phases never stall, got %d", res.StallCount)
	}
}

func TestEvaluateCompletedIsTerminal(t *testing.T) {
	m := NewMachine(0)

	res := m.Evaluate(models.PhaseCompleted, 5, fullFacts())
	if res.Phase != models.PhaseCompleted {
		t.Errorf("expected completed to hold, got %s", res.Phase)
	}
}

func TestEvaluateInvalidPhaseFallsBackToGreeting(t *testing.T) {
	m := NewMachine(0)

	res := m.Evaluate(models.Phase("bogus"), 0, models.Facts{})
	if res.Phase != models.PhaseDiscovery {
		t.Errorf("expected fallback to greeting then advance to discovery, got %s", res.Phase)
	}
}

func TestMissingFieldsOrder(t *testing.T) {
	missing := MissingFields(models.PhaseBusinessContext, models.Facts{})
	want := []string{"company", "industry", "challenges"}
	if len(missing) != len(want) {
		t.Fatalf("expected %v, got %v", want, missing)
	}
	for i := range want {
		if missing[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], missing[i])
		}
	}
}

func TestQualificationQuickReplies(t *testing.T) {
	m := NewMachine(0)

	facts := fullFacts()
	facts.Qualification.BudgetRange = models.BudgetUnknown
	facts.Qualification.Timeline = models.TimelineUnknown

	res := m.Evaluate(models.PhaseBusinessContext, 0, facts)
	if res.Phase != models.PhaseQualification {
		t.Fatalf("expected qualification, got %s", res.Phase)
	}
	if len(res.QuickReplies) == 0 {
		t.Error("expected budget quick replies")
	}
}
