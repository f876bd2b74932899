// Package flow implements the conversational qualification engine: the
// session manager that owns session state, the per-session turn lock, and
// the conversation summarizer.
//
// Every turn runs the same deterministic pipeline over the session's fact
// record: extract facts from the new message, recompute the lead score,
// re-rank services and experts, then let the phase machine pick the next
// question. The drafting service only rephrases the chosen question; when
// it is unavailable the engine answers with the deterministic prompt.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"

	"github.com/BrightDesk/LeadPipe/internal/extract"
	"github.com/BrightDesk/LeadPipe/internal/genai"
	"github.com/BrightDesk/LeadPipe/internal/match"
	"github.com/BrightDesk/LeadPipe/internal/models"
	"github.com/BrightDesk/LeadPipe/internal/phase"
	"github.com/BrightDesk/LeadPipe/internal/score"
	"github.com/BrightDesk/LeadPipe/internal/store"
)

const replySystemPrompt = "You are a friendly pre-sales assistant for a software consultancy. " +
	"Briefly acknowledge the visitor's last message, then ask exactly the question you are given. " +
	"Do not invent offers, prices, availability, or commitments. Keep the reply under 60 words."

// Manager owns the session lifecycle. All session mutation goes through
// CreateSession and ApplyTurn; reads are lock-free.
type Manager struct {
	store      store.Store
	matcher    *match.Matcher
	machine    *phase.Machine
	ai         genai.ClientInterface
	summarizer *Summarizer
	locker     *sessionLocker
}

// NewManager wires the engine together. ai may be nil; the engine then
// runs fully deterministic (configuration-degraded mode).
func NewManager(st store.Store, matcher *match.Matcher, machine *phase.Machine, ai genai.ClientInterface, summaryThreshold int) *Manager {
	return &Manager{
		store:      st,
		matcher:    matcher,
		machine:    machine,
		ai:         ai,
		summarizer: NewSummarizer(st, ai, summaryThreshold),
		locker:     newSessionLocker(),
	}
}

// Summarizer exposes the manager's summarizer for admin operations.
func (m *Manager) Summarizer() *Summarizer {
	return m.summarizer
}

// Lock takes the per-session turn lock. Exposed for operations outside the
// manager that need a consistent session snapshot, such as PRD generation.
func (m *Manager) Lock(sessionID string) {
	m.locker.Lock(sessionID)
}

// Unlock releases the per-session turn lock.
func (m *Manager) Unlock(sessionID string) {
	m.locker.Unlock(sessionID)
}

// CreateSession creates a new active session in the greeting phase and
// inserts the welcome message selected for the visitor's industry hint.
func (m *Manager) CreateSession(ctx context.Context, req models.CreateSessionRequest) (*models.Session, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidArgument, err)
	}

	now := time.Now().UTC()
	session := &models.Session{
		ID:           uuid.NewString(),
		VisitorID:    req.VisitorID,
		SourceURL:    req.SourceURL,
		UserAgent:    req.UserAgent,
		IndustryHint: req.IndustryHint,
		CurrentPhase: models.PhaseGreeting,
		Qualification: models.Qualification{
			IsDecisionMaker: models.DecisionUnknown,
		},
		Status:    models.SessionStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tmpl, err := m.store.FindWelcomeTemplate(req.IndustryHint)
	if err != nil {
		return nil, fmt.Errorf("Manager.CreateSession: template lookup: %w", err)
	}
	welcomeContent := store.DefaultWelcomeTemplateContent
	templateID := ""
	if tmpl != nil {
		welcomeContent = tmpl.Content
		templateID = tmpl.ID
	} else {
		slog.Warn("Manager.CreateSession: no active template, using built-in welcome", "sessionID", session.ID)
	}

	if err := m.store.SaveSession(session); err != nil {
		return nil, fmt.Errorf("Manager.CreateSession: save session: %w", err)
	}

	welcome := models.Message{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Role:      models.RoleAssistant,
		Content:   welcomeContent,
		CreatedAt: now,
	}
	if templateID != "" {
		welcome.Metadata = map[string]string{"template_id": templateID}
	}
	if err := m.store.AddMessage(welcome); err != nil {
		return nil, fmt.Errorf("Manager.CreateSession: save welcome message: %w", err)
	}
	if templateID != "" {
		if err := m.store.IncrementTemplateUseCount(templateID); err != nil {
			slog.Warn("Manager.CreateSession: use count increment failed", "templateID", templateID, "error", err)
		}
	}

	session.Messages = []models.Message{welcome}
	slog.Info("Manager.CreateSession: session created", "sessionID", session.ID, "visitorID", req.VisitorID, "templateID", templateID)
	return session, nil
}

// ApplyTurn processes one visitor message: update the fact record,
// recompute score and recommendations, advance the phase, and reply.
// Serialized per session; concurrent turns on the same session queue
// rather than interleave. The turn commits atomically: both messages and
// the updated session are persisted together, or nothing is.
func (m *Manager) ApplyTurn(ctx context.Context, sessionID string, req models.TurnRequest) (*models.TurnResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidArgument, err)
	}

	m.locker.Lock(sessionID)
	defer m.locker.Unlock(sessionID)

	session, err := m.store.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("Manager.ApplyTurn: load session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}
	if session.Status != models.SessionStatusActive {
		return nil, fmt.Errorf("session %s has status %s: %w", sessionID, session.Status, models.ErrConflict)
	}

	now := time.Now().UTC()
	userMsg := models.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   req.Content,
		CreatedAt: now,
	}
	msgs, err := m.store.GetMessages(sessionID)
	if err != nil {
		return nil, fmt.Errorf("Manager.ApplyTurn: load messages: %w", err)
	}
	msgs = append(msgs, userMsg)

	// Deterministic pipeline: extract, score, match, advance.
	facts := extract.Apply(session.Facts(), req.Content)
	session.SetFacts(facts)
	session.LeadScore = score.Compute(facts)
	_, _, recommended := m.matcher.Match(facts)
	session.RecommendedService = recommended

	result := m.machine.Evaluate(session.CurrentPhase, session.StallCount, facts)
	session.CurrentPhase = result.Phase
	session.StallCount = result.StallCount
	session.UpdatedAt = now

	m.summarizer.MaybeSummarize(ctx, session, msgs)

	aiContent := m.draftReply(ctx, session, msgs, result)
	aiMsg := models.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   aiContent,
		CreatedAt: time.Now().UTC(),
		Metadata:  map[string]string{"phase": string(result.Phase)},
	}
	if len(result.QuickReplies) > 0 {
		aiMsg.Metadata["quick_replies"] = strings.Join(result.QuickReplies, "|")
	}
	if err := m.store.CommitTurn(session, userMsg, aiMsg); err != nil {
		return nil, fmt.Errorf("Manager.ApplyTurn: commit turn: %w", err)
	}

	slog.Info("Manager.ApplyTurn: turn applied", "sessionID", sessionID,
		"phase", session.CurrentPhase, "leadScore", session.LeadScore,
		"advanced", result.Advanced, "stallCount", session.StallCount)

	return &models.TurnResult{
		UserMessage: userMsg,
		AIMessage:   aiMsg,
		Session:     session,
	}, nil
}

// draftReply rephrases the phase machine's prompt conversationally. Any
// drafting failure falls back to the deterministic prompt; a turn never
// fails because the drafting service did.
func (m *Manager) draftReply(ctx context.Context, session *models.Session, msgs []models.Message, result phase.Result) string {
	if m.ai == nil {
		return result.Prompt
	}

	chat := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(replySystemPrompt),
		openai.SystemMessage("Known facts:\n" + FactSheet(session.Facts())),
	}
	chat = append(chat, ContextWindow(session, msgs)...)
	chat = append(chat, openai.SystemMessage("Question to ask next: "+result.Prompt))

	reply, err := m.ai.GenerateWithMessages(ctx, chat)
	if err != nil || reply == "" {
		slog.Warn("Manager.draftReply: drafting failed, using deterministic prompt", "sessionID", session.ID, "error", err)
		return result.Prompt
	}
	return reply
}

// Resume rehydrates a session for a returning visitor. Idempotent: only
// the updated-at timestamp changes, no matter how often it is called.
func (m *Manager) Resume(ctx context.Context, sessionID string) (*models.Session, error) {
	m.locker.Lock(sessionID)
	defer m.locker.Unlock(sessionID)

	session, err := m.store.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("Manager.Resume: load session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}

	session.UpdatedAt = time.Now().UTC()
	if err := m.store.SaveSession(session); err != nil {
		return nil, fmt.Errorf("Manager.Resume: save session: %w", err)
	}

	msgs, err := m.store.GetMessages(sessionID)
	if err != nil {
		return nil, fmt.Errorf("Manager.Resume: load messages: %w", err)
	}
	session.Messages = recentWindow(session, msgs)
	slog.Info("Manager.Resume: session resumed", "sessionID", sessionID, "phase", session.CurrentPhase, "messages", len(session.Messages))
	return session, nil
}

// GetSession returns full session state including the complete message log.
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := m.store.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("Manager.GetSession: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}
	msgs, err := m.store.GetMessages(sessionID)
	if err != nil {
		return nil, fmt.Errorf("Manager.GetSession: load messages: %w", err)
	}
	session.Messages = msgs
	return session, nil
}

// ListSessions returns all sessions without message logs.
func (m *Manager) ListSessions(ctx context.Context) ([]*models.Session, error) {
	sessions, err := m.store.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("Manager.ListSessions: %w", err)
	}
	return sessions, nil
}

// Recommendations is the current service and expert ranking for a session.
type Recommendations struct {
	Services           []match.ServiceMatch `json:"services"`
	Experts            []match.ExpertMatch  `json:"experts"`
	RecommendedService string               `json:"recommended_service,omitempty"`
}

// GetRecommendations recomputes the ranking from the stored fact record.
// Read-only; the session is not mutated.
func (m *Manager) GetRecommendations(ctx context.Context, sessionID string) (*Recommendations, error) {
	session, err := m.store.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("Manager.GetRecommendations: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}
	services, experts, recommended := m.matcher.Match(session.Facts())
	return &Recommendations{
		Services:           services,
		Experts:            experts,
		RecommendedService: recommended,
	}, nil
}

// recentWindow applies the summary read-path rule: with a summary present
// only the trailing raw messages are returned, otherwise the full log.
func recentWindow(session *models.Session, msgs []models.Message) []models.Message {
	if session.Summary != nil && len(msgs) > RecentMessageWindow {
		return msgs[len(msgs)-RecentMessageWindow:]
	}
	return msgs
}
