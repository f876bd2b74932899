// Package models defines the core data structures for LeadPipe.
//
// It includes session, message, PRD document, and welcome template types,
// which are shared across modules.
package models

import (
	"strings"
	"time"
)

// Phase identifies a stage of the qualification conversation. Phases are
// ordered and generally forward-only; advancement is gated on the current
// phase's required facts.
type Phase string

const (
	// PhaseGreeting is the initial phase before any facts are collected.
	PhaseGreeting Phase = "greeting"
	// PhaseDiscovery collects the visitor's name and email.
	PhaseDiscovery Phase = "discovery"
	// PhaseBusinessContext collects company, industry, and challenges.
	PhaseBusinessContext Phase = "business_context"
	// PhaseQualification collects budget, timeline, decision-maker signal,
	// and success criteria.
	PhaseQualification Phase = "qualification"
	// PhaseSummaryReview presents a generated summary for approval.
	PhaseSummaryReview Phase = "summary_review"
	// PhaseReadyForPRD indicates qualification data is complete enough to
	// generate a PRD.
	PhaseReadyForPRD Phase = "ready_for_prd"
	// PhaseCompleted is terminal.
	PhaseCompleted Phase = "completed"
)

// PhaseOrder lists phases in conversation order. Used by the phase machine
// for advancement and by tests for replay checks.
var PhaseOrder = []Phase{
	PhaseGreeting,
	PhaseDiscovery,
	PhaseBusinessContext,
	PhaseQualification,
	PhaseSummaryReview,
	PhaseReadyForPRD,
	PhaseCompleted,
}

// IsValidPhase checks if the given phase is supported.
func IsValidPhase(p Phase) bool {
	for _, known := range PhaseOrder {
		if p == known {
			return true
		}
	}
	return false
}

// SessionStatus represents the lifecycle status of a session.
type SessionStatus string

const (
	// SessionStatusActive indicates the session accepts new turns.
	SessionStatusActive SessionStatus = "active"
	// SessionStatusCompleted indicates the conversation finished normally.
	SessionStatusCompleted SessionStatus = "completed"
	// SessionStatusAbandoned is set externally on inactivity.
	SessionStatusAbandoned SessionStatus = "abandoned"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// BudgetRange is a banded budget classification.
type BudgetRange string

const (
	BudgetUnknown   BudgetRange = ""
	BudgetUnder25K  BudgetRange = "under_25k"
	Budget25KTo100K BudgetRange = "25k_100k"
	BudgetOver100K  BudgetRange = "100k_plus"
)

// Timeline is a banded project timeline classification.
type Timeline string

const (
	TimelineUnknown   Timeline = ""
	TimelineImmediate Timeline = "immediate"  // within one month
	TimelineShort     Timeline = "short_term" // one to three months
	TimelineMedium    Timeline = "mid_term"   // three to six months
	TimelineLong      Timeline = "long_term"  // beyond six months
)

// DecisionMaker is a tri-state decision-authority signal.
type DecisionMaker string

const (
	DecisionUnknown DecisionMaker = "unknown"
	DecisionYes     DecisionMaker = "yes"
	DecisionNo      DecisionMaker = "no"
)

// ClientInfo holds identifying facts about the visitor.
type ClientInfo struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Company string `json:"company,omitempty"`
}

// BusinessContext holds facts about the visitor's business situation.
// TechStack and Challenges accumulate across turns and never shrink.
type BusinessContext struct {
	Industry   string   `json:"industry,omitempty"`
	Challenges []string `json:"challenges,omitempty"`
	TechStack  []string `json:"tech_stack,omitempty"`
}

// Qualification holds sales-readiness facts.
type Qualification struct {
	BudgetRange     BudgetRange   `json:"budget_range,omitempty"`
	Timeline        Timeline      `json:"timeline,omitempty"`
	IsDecisionMaker DecisionMaker `json:"is_decision_maker,omitempty"`
	SuccessCriteria []string      `json:"success_criteria,omitempty"`
}

// Facts is the full fact record flowing through the extractor, scorer,
// matcher, and phase machine each turn.
type Facts struct {
	Client        ClientInfo      `json:"client"`
	Business      BusinessContext `json:"business"`
	Qualification Qualification   `json:"qualification"`
}

// ConversationSummary is the working summary produced once the message
// history crosses the summarization threshold. It is a read-path
// optimization; the underlying message log is never modified.
type ConversationSummary struct {
	Facts           Facts     `json:"facts"`
	Narrative       string    `json:"narrative"`
	CoveredMessages int       `json:"covered_messages"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// Session is the root aggregate of one qualification conversation. It is
// owned exclusively by the session manager and mutated only through the
// apply-turn operation.
type Session struct {
	ID                 string               `json:"id"`
	VisitorID          string               `json:"visitor_id"`
	SourceURL          string               `json:"source_url,omitempty"`
	UserAgent          string               `json:"user_agent,omitempty"`
	IndustryHint       string               `json:"industry_hint,omitempty"`
	CurrentPhase       Phase                `json:"current_phase"`
	ClientInfo         ClientInfo           `json:"client_info"`
	BusinessContext    BusinessContext      `json:"business_context"`
	Qualification      Qualification        `json:"qualification"`
	LeadScore          int                  `json:"lead_score"`
	RecommendedService string               `json:"recommended_service,omitempty"`
	Status             SessionStatus        `json:"status"`
	StallCount         int                  `json:"stall_count"`
	Summary            *ConversationSummary `json:"summary,omitempty"`
	Messages           []Message            `json:"messages,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// Facts returns the session's fact record as a value.
func (s *Session) Facts() Facts {
	return Facts{
		Client:        s.ClientInfo,
		Business:      s.BusinessContext,
		Qualification: s.Qualification,
	}
}

// SetFacts writes a fact record back onto the session.
func (s *Session) SetFacts(f Facts) {
	s.ClientInfo = f.Client
	s.BusinessContext = f.Business
	s.Qualification = f.Qualification
}

// Message is a single utterance in a session. Immutable once created;
// insertion order defines conversation replay order.
type Message struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// PRDDocument is one immutable version in a session's PRD lineage.
// Regeneration creates a new row with version = previous max + 1; existing
// rows are never altered or deleted.
type PRDDocument struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"session_id"`
	Version         int       `json:"version"`
	ContentMarkdown string    `json:"content_markdown"`
	ClientName      string    `json:"client_name"`
	ClientCompany   string    `json:"client_company"`
	CreatedAt       time.Time `json:"created_at"`
}

// WelcomeTemplate is the first assistant message sent for a new session.
// Exactly one active default must exist at all times.
type WelcomeTemplate struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	TargetIndustry string    `json:"target_industry,omitempty"` // empty means general
	IsDefault      bool      `json:"is_default"`
	IsActive       bool      `json:"is_active"`
	UseCount       int       `json:"use_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Expert is a human specialist surfaced to qualified leads. Read-only from
// the qualification engine's perspective.
type Expert struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Role         string   `json:"role"`
	Bio          string   `json:"bio,omitempty"`
	Specialties  []string `json:"specialties"`
	Services     []string `json:"services"`
	Availability string   `json:"availability,omitempty"`
}

// Service is an offered consulting service with its matching keyword set.
type Service struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords"`
}

// Validation constants for input validation
const (
	// MaxMessageLength defines the maximum allowed length for a turn message
	MaxMessageLength = 4096
	// MaxFeedbackLength defines the maximum allowed length for PRD regeneration feedback
	MaxFeedbackLength = 2000
	// MaxTemplateLength defines the maximum allowed length for welcome template content
	MaxTemplateLength = 2000
)

// CreateSessionRequest represents the payload for creating a session.
type CreateSessionRequest struct {
	VisitorID    string `json:"visitor_id"`
	SourceURL    string `json:"source_url,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`
	IndustryHint string `json:"industry_hint,omitempty"`
}

// Validate checks the session creation payload.
func (r *CreateSessionRequest) Validate() error {
	if strings.TrimSpace(r.VisitorID) == "" {
		return ErrEmptyVisitorID
	}
	return nil
}

// TurnRequest represents the payload for one conversation turn.
type TurnRequest struct {
	Content string `json:"content"`
}

// Validate checks the turn payload.
func (r *TurnRequest) Validate() error {
	if strings.TrimSpace(r.Content) == "" {
		return ErrEmptyMessage
	}
	if len(r.Content) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// ResumeRequest represents the payload for POST /sessions/resume.
type ResumeRequest struct {
	SessionID string `json:"session_id"`
}

// GeneratePRDRequest represents the payload for POST /prd/generate.
type GeneratePRDRequest struct {
	SessionID string `json:"session_id"`
}

// RegeneratePRDRequest represents the payload for POST /prd/{id}/regenerate.
type RegeneratePRDRequest struct {
	Feedback string `json:"feedback,omitempty"`
}

// Validate checks the regeneration payload.
func (r *RegeneratePRDRequest) Validate() error {
	if len(r.Feedback) > MaxFeedbackLength {
		return ErrFeedbackTooLong
	}
	return nil
}

// WelcomeTemplateRequest represents the payload for creating or updating a
// welcome template.
type WelcomeTemplateRequest struct {
	Content        string `json:"content"`
	TargetIndustry string `json:"target_industry,omitempty"`
	IsActive       *bool  `json:"is_active,omitempty"`
}

// Validate checks the template payload.
func (r *WelcomeTemplateRequest) Validate() error {
	if strings.TrimSpace(r.Content) == "" {
		return ErrEmptyTemplateContent
	}
	if len(r.Content) > MaxTemplateLength {
		return ErrTemplateTooLong
	}
	return nil
}

// PRDPreview is the response body for GET /prd/{id}/preview.
type PRDPreview struct {
	ID            string `json:"id"`
	Version       int    `json:"version"`
	ClientName    string `json:"client_name"`
	ClientCompany string `json:"client_company"`
	PreviewText   string `json:"preview_text"`
	Filename      string `json:"filename"`
}

// TurnResult is the response body for a completed turn.
type TurnResult struct {
	UserMessage Message  `json:"user_message"`
	AIMessage   Message  `json:"ai_message"`
	Session     *Session `json:"session"`
}
