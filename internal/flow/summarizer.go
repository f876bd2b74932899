package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/BrightDesk/LeadPipe/internal/genai"
	"github.com/BrightDesk/LeadPipe/internal/models"
	"github.com/BrightDesk/LeadPipe/internal/store"
)

// Summarization thresholds.
const (
	// DefaultSummaryThreshold is the raw message count at which a working
	// summary is first generated.
	DefaultSummaryThreshold = 20
	// RecentMessageWindow is how many raw messages stay in the drafting
	// context alongside the summary.
	RecentMessageWindow = 6
)

const summarySystemPrompt = "You summarize sales qualification conversations. " +
	"Write a short third-person narrative of what the visitor wants, their business situation, " +
	"and how the conversation has progressed. Keep it under 150 words. Do not invent details."

// Summarizer maintains the per-session working summary. The raw message
// log is never modified; the summary only changes what gets loaded into
// the drafting context.
type Summarizer struct {
	store     store.Store
	ai        genai.ClientInterface
	threshold int
}

// NewSummarizer creates a summarizer. A non-positive threshold falls back
// to DefaultSummaryThreshold. ai may be nil; narrative generation then
// degrades to the deterministic fact sheet.
func NewSummarizer(st store.Store, ai genai.ClientInterface, threshold int) *Summarizer {
	if threshold <= 0 {
		threshold = DefaultSummaryThreshold
	}
	return &Summarizer{store: st, ai: ai, threshold: threshold}
}

// MaybeSummarize regenerates the session's summary if the message log has
// grown enough since the last one. msgs is the full log including any
// in-flight turn; the session is mutated in place and the caller persists
// it. Returns true when a new summary was produced.
//
// A summary exists once the log reaches the threshold, and is refreshed
// every threshold/2 messages after that so it never lags far behind.
func (s *Summarizer) MaybeSummarize(ctx context.Context, session *models.Session, msgs []models.Message) bool {
	if len(msgs) < s.threshold {
		return false
	}
	if session.Summary != nil && len(msgs)-session.Summary.CoveredMessages < s.threshold/2 {
		return false
	}
	s.regenerate(ctx, session, msgs)
	return true
}

// RegenerateSummary rebuilds the summary unconditionally from the full log.
func (s *Summarizer) RegenerateSummary(ctx context.Context, session *models.Session) error {
	msgs, err := s.store.GetMessages(session.ID)
	if err != nil {
		return fmt.Errorf("Summarizer.RegenerateSummary: load messages: %w", err)
	}
	s.regenerate(ctx, session, msgs)
	return nil
}

func (s *Summarizer) regenerate(ctx context.Context, session *models.Session, msgs []models.Message) {
	narrative := s.narrative(ctx, session, msgs)
	session.Summary = &models.ConversationSummary{
		Facts:           session.Facts(),
		Narrative:       narrative,
		CoveredMessages: len(msgs),
		GeneratedAt:     time.Now().UTC(),
	}
	slog.Debug("Summarizer: summary regenerated", "sessionID", session.ID, "coveredMessages", len(msgs))
}

// narrative drafts a prose summary, falling back to the deterministic fact
// sheet when no drafting client is available or the call fails.
func (s *Summarizer) narrative(ctx context.Context, session *models.Session, msgs []models.Message) string {
	if s.ai == nil {
		return FactSheet(session.Facts())
	}

	var transcript strings.Builder
	if session.Summary != nil && session.Summary.Narrative != "" {
		transcript.WriteString("Earlier summary: ")
		transcript.WriteString(session.Summary.Narrative)
		transcript.WriteString("\n\n")
	}
	start := 0
	if session.Summary != nil {
		start = session.Summary.CoveredMessages
	}
	if start > len(msgs) {
		start = 0
	}
	for _, msg := range msgs[start:] {
		transcript.WriteString(string(msg.Role))
		transcript.WriteString(": ")
		transcript.WriteString(msg.Content)
		transcript.WriteString("\n")
	}

	narrative, err := s.ai.GeneratePrompt(ctx, summarySystemPrompt, transcript.String())
	if err != nil {
		slog.Warn("Summarizer: drafting failed, using fact sheet", "sessionID", session.ID, "error", err)
		return FactSheet(session.Facts())
	}
	return narrative
}

// FactSheet renders the fact record as a plain-text summary. Used as the
// degraded-mode narrative and as grounding context for drafting calls.
func FactSheet(facts models.Facts) string {
	var b strings.Builder
	writeLine := func(label, value string) {
		if value != "" {
			b.WriteString(label)
			b.WriteString(": ")
			b.WriteString(value)
			b.WriteString("\n")
		}
	}
	writeLine("Name", facts.Client.Name)
	writeLine("Email", facts.Client.Email)
	writeLine("Company", facts.Client.Company)
	writeLine("Industry", facts.Business.Industry)
	writeLine("Challenges", strings.Join(facts.Business.Challenges, "; "))
	writeLine("Tech stack", strings.Join(facts.Business.TechStack, ", "))
	writeLine("Budget", string(facts.Qualification.BudgetRange))
	writeLine("Timeline", string(facts.Qualification.Timeline))
	if facts.Qualification.IsDecisionMaker != models.DecisionUnknown && facts.Qualification.IsDecisionMaker != "" {
		writeLine("Decision maker", string(facts.Qualification.IsDecisionMaker))
	}
	writeLine("Success criteria", strings.Join(facts.Qualification.SuccessCriteria, "; "))
	if b.Len() == 0 {
		return "No qualification facts collected yet."
	}
	return strings.TrimRight(b.String(), "\n")
}

// ContextWindow builds the drafting message context: the summary narrative
// (when present) plus the most recent raw messages. Without a summary the
// full log is used.
func ContextWindow(session *models.Session, msgs []models.Message) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion

	recent := msgs
	if session.Summary != nil {
		out = append(out, openai.SystemMessage("Conversation so far: "+session.Summary.Narrative))
		if len(msgs) > RecentMessageWindow {
			recent = msgs[len(msgs)-RecentMessageWindow:]
		}
	}
	for _, msg := range recent {
		switch msg.Role {
		case models.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		case models.RoleUser:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
