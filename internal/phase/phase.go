// Package phase implements the conversation phase state machine.
//
// Phases are ordered and advancement is gated strictly on the current
// phase's required-fact checklist: facts volunteered for a later phase are
// retained by the extractor but never unlock advancement early. Multiple
// phases can be crossed in one turn when their checklists are already
// satisfied.
package phase

import (
	"fmt"

	"github.com/BrightDesk/LeadPipe/internal/models"
)

// DefaultStallThreshold is the number of consecutive turns without
// checklist progress after which the machine asks for the missing field
// explicitly instead of repeating the phase's generic question.
const DefaultStallThreshold = 3

// Machine owns phase transition and next-utterance decisions. Stateless
// between calls; per-session stall counts travel on the session.
type Machine struct {
	stallThreshold int
}

// NewMachine creates a phase machine. A non-positive threshold falls back
// to DefaultStallThreshold.
func NewMachine(stallThreshold int) *Machine {
	if stallThreshold <= 0 {
		stallThreshold = DefaultStallThreshold
	}
	return &Machine{stallThreshold: stallThreshold}
}

// Result describes the outcome of evaluating one turn.
type Result struct {
	// Phase is the resulting phase after any advancement.
	Phase models.Phase
	// Advanced reports whether at least one transition happened this turn.
	Advanced bool
	// StallCount is the updated consecutive-no-progress counter.
	StallCount int
	// MissingFields lists the resulting phase's unmet checklist entries.
	MissingFields []string
	// Prompt is the next bot utterance, selected for the resulting phase.
	Prompt string
	// QuickReplies are optional canned answers for the prompt.
	QuickReplies []string
}

// Required checklist fields per phase.
var phaseChecklist = map[models.Phase][]string{
	models.PhaseGreeting:        {},
	models.PhaseDiscovery:       {"name", "email"},
	models.PhaseBusinessContext: {"company", "industry", "challenges"},
	models.PhaseQualification:   {"budget_range", "timeline"},
	models.PhaseSummaryReview:   {},
	models.PhaseReadyForPRD:     {},
	models.PhaseCompleted:       {},
}

// MissingFields returns the unmet checklist entries for a phase given the
// current facts, in checklist order.
func MissingFields(p models.Phase, facts models.Facts) []string {
	var missing []string
	for _, field := range phaseChecklist[p] {
		if !fieldPopulated(field, facts) {
			missing = append(missing, field)
		}
	}
	return missing
}

func fieldPopulated(field string, facts models.Facts) bool {
	switch field {
	case "name":
		return facts.Client.Name != ""
	case "email":
		return facts.Client.Email != ""
	case "company":
		return facts.Client.Company != ""
	case "industry":
		return facts.Business.Industry != ""
	case "challenges":
		return len(facts.Business.Challenges) > 0
	case "budget_range":
		return facts.Qualification.BudgetRange != models.BudgetUnknown
	case "timeline":
		return facts.Qualification.Timeline != models.TimelineUnknown
	default:
		return false
	}
}

// Evaluate advances the phase as far as the checklists allow and selects
// the next bot utterance for the resulting phase. stallCount is the
// session's counter entering this turn.
func (m *Machine) Evaluate(current models.Phase, stallCount int, facts models.Facts) Result {
	if !models.IsValidPhase(current) {
		current = models.PhaseGreeting
	}

	phase := current
	advanced := false
	for phase != models.PhaseReadyForPRD && phase != models.PhaseCompleted {
		if len(MissingFields(phase, facts)) > 0 {
			break
		}
		phase = nextPhase(phase)
		advanced = true
	}

	newStall := 0
	if !advanced && phase != models.PhaseReadyForPRD && phase != models.PhaseCompleted {
		newStall = stallCount + 1
	}

	missing := MissingFields(phase, facts)
	prompt, quick := m.selectPrompt(phase, missing, newStall, facts)

	return Result{
		Phase:         phase,
		Advanced:      advanced,
		StallCount:    newStall,
		MissingFields: missing,
		Prompt:        prompt,
		QuickReplies:  quick,
	}
}

func nextPhase(p models.Phase) models.Phase {
	for i, known := range models.PhaseOrder {
		if known == p && i+1 < len(models.PhaseOrder) {
			return models.PhaseOrder[i+1]
		}
	}
	return p
}

// explicitFieldPrompts are the single-field requests used once a phase has
// stalled past the threshold.
var explicitFieldPrompts = map[string]string{
	"name":         "I still need your name to continue. What should I call you?",
	"email":        "Could you share your email address? I need it to keep your details together.",
	"company":      "Which company are you with? Just the name is fine.",
	"industry":     "What industry is your business in? For example healthcare, finance, retail, or tech.",
	"challenges":   "What's the main challenge or problem you're hoping to solve?",
	"budget_range": "Do you have a budget range in mind for this project? A rough figure like $50k works.",
	"timeline":     "When would you like this delivered? For example 3 months, or ASAP.",
}

func (m *Machine) selectPrompt(phase models.Phase, missing []string, stallCount int, facts models.Facts) (string, []string) {
	// Explicit single-field request once the phase has stalled.
	if stallCount >= m.stallThreshold && len(missing) > 0 {
		if prompt, ok := explicitFieldPrompts[missing[0]]; ok {
			return prompt, nil
		}
	}

	switch phase {
	case models.PhaseDiscovery:
		if contains(missing, "name") {
			return "Great to meet you! May I have your name?", nil
		}
		return fmt.Sprintf("Thanks, %s! What's the best email address to reach you at?", facts.Client.Name), nil

	case models.PhaseBusinessContext:
		switch {
		case contains(missing, "company"):
			return "Which company do you work at?", nil
		case contains(missing, "industry"):
			return "What industry are you in?",
				[]string{"Healthcare", "Finance", "Retail", "Manufacturing", "Tech", "Other"}
		default:
			return "Tell me a bit about the challenges you're looking to solve.", nil
		}

	case models.PhaseQualification:
		switch {
		case contains(missing, "budget_range"):
			return "Do you have a budget range in mind?",
				[]string{"Under $25k", "$25k-$100k", "Over $100k", "Not sure yet"}
		case contains(missing, "timeline"):
			return "What timeline are you working with?",
				[]string{"ASAP", "1-3 months", "3-6 months", "Flexible"}
		default:
			return "Are you the decision maker for this project, and what would success look like?", nil
		}

	case models.PhaseReadyForPRD:
		return "I have everything I need. Shall I put together a project requirements document for you to review?",
			[]string{"Yes, generate it", "Not yet"}

	case models.PhaseCompleted:
		return "Thanks for your time! We'll be in touch shortly.", nil

	default:
		// Greeting and summary_review are crossed automatically; if we land
		// here the checklist machinery above has nothing to ask for.
		return "Hi! I'm here to learn about your project and match you with the right expert. What brings you here today?", nil
	}
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
