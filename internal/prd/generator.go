// Package prd assembles Project Requirements Documents from qualified
// sessions and tracks their immutable version chain.
//
// Documents are append-only: generation writes version 1, regeneration
// writes max(version)+1, and no existing row is ever altered. Drafting
// failures are all-or-nothing; nothing is persisted unless the full
// document was produced.
package prd

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BrightDesk/LeadPipe/internal/genai"
	"github.com/BrightDesk/LeadPipe/internal/models"
	"github.com/BrightDesk/LeadPipe/internal/store"
)

// The fixed section template. Every generated document contains these six
// sections in this order.
const (
	SectionExecutiveSummary      = "Executive Summary"
	SectionBusinessObjectives    = "Business Objectives"
	SectionTechnicalRequirements = "Technical Requirements"
	SectionScope                 = "Scope"
	SectionTimeline              = "Timeline"
	SectionSuccessCriteria       = "Success Criteria"
)

// Sections lists the template sections in document order.
var Sections = []string{
	SectionExecutiveSummary,
	SectionBusinessObjectives,
	SectionTechnicalRequirements,
	SectionScope,
	SectionTimeline,
	SectionSuccessCriteria,
}

// PreviewLength is the preview size in runes.
const PreviewLength = 500

const draftSystemPrompt = "You are a technical writer producing a Project Requirements Document in markdown. " +
	"Use exactly these level-2 sections in order: Executive Summary, Business Objectives, " +
	"Technical Requirements, Scope, Timeline, Success Criteria. " +
	"Base every statement on the brief; do not invent facts, prices, or commitments."

// filenameSafeRe matches characters allowed in the download filename's
// company segment.
var filenameUnsafeRe = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SessionLocker serializes PRD writes with turns on the same session.
type SessionLocker interface {
	Lock(sessionID string)
	Unlock(sessionID string)
}

// Generator produces and versions PRD documents.
type Generator struct {
	store  store.Store
	ai     genai.ClientInterface
	locker SessionLocker
}

// NewGenerator creates a PRD generator. ai may be nil; generation then
// fails with an upstream-failure error until a drafting client is
// configured.
func NewGenerator(st store.Store, ai genai.ClientInterface, locker SessionLocker) *Generator {
	return &Generator{store: st, ai: ai, locker: locker}
}

// Brief is the structured input handed to the drafting service.
type Brief struct {
	ClientName         string                 `json:"client_name"`
	ClientCompany      string                 `json:"client_company"`
	Business           models.BusinessContext `json:"business_context"`
	Qualification      models.Qualification   `json:"qualification"`
	RecommendedService string                 `json:"recommended_service,omitempty"`
	Feedback           string                 `json:"feedback,omitempty"`
}

// Generate produces the next PRD version for a session. The first call on
// a session writes version 1. Fails with ErrIncompleteData until client
// name, company, and at least one challenge are known.
func (g *Generator) Generate(ctx context.Context, sessionID string) (*models.PRDDocument, error) {
	g.locker.Lock(sessionID)
	defer g.locker.Unlock(sessionID)

	session, err := g.store.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("Generator.Generate: load session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}
	if missing := missingPreconditions(session); len(missing) > 0 {
		return nil, fmt.Errorf("missing %s: %w", strings.Join(missing, ", "), models.ErrIncompleteData)
	}

	return g.draftAndAppend(ctx, session, "")
}

// Regenerate produces version max+1 in the lineage of an existing PRD,
// optionally steering the draft with feedback. The referenced document and
// all earlier versions are left untouched.
func (g *Generator) Regenerate(ctx context.Context, prdID string, feedback string) (*models.PRDDocument, error) {
	prev, err := g.store.GetPRDDocument(prdID)
	if err != nil {
		return nil, fmt.Errorf("Generator.Regenerate: load PRD: %w", err)
	}
	if prev == nil {
		return nil, fmt.Errorf("prd %s: %w", prdID, models.ErrNotFound)
	}

	g.locker.Lock(prev.SessionID)
	defer g.locker.Unlock(prev.SessionID)

	session, err := g.store.GetSession(prev.SessionID)
	if err != nil {
		return nil, fmt.Errorf("Generator.Regenerate: load session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session %s: %w", prev.SessionID, models.ErrNotFound)
	}

	return g.draftAndAppend(ctx, session, feedback)
}

// draftAndAppend runs the drafting call and persists the next version.
// Caller holds the session lock.
func (g *Generator) draftAndAppend(ctx context.Context, session *models.Session, feedback string) (*models.PRDDocument, error) {
	brief := buildBrief(session, feedback)

	content, err := g.draft(ctx, brief)
	if err != nil {
		return nil, err
	}
	content = ensureSections(content, brief)

	maxVersion, err := g.store.MaxPRDVersion(session.ID)
	if err != nil {
		return nil, fmt.Errorf("Generator: max version: %w", err)
	}

	doc := models.PRDDocument{
		ID:              uuid.NewString(),
		SessionID:       session.ID,
		Version:         maxVersion + 1,
		ContentMarkdown: content,
		ClientName:      session.ClientInfo.Name,
		ClientCompany:   session.ClientInfo.Company,
		CreatedAt:       time.Now().UTC(),
	}
	if err := g.store.AddPRDDocument(doc); err != nil {
		return nil, fmt.Errorf("Generator: persist version %d: %w", doc.Version, err)
	}
	slog.Info("Generator: PRD generated", "sessionID", session.ID, "prdID", doc.ID, "version", doc.Version)
	return &doc, nil
}

func (g *Generator) draft(ctx context.Context, brief Brief) (string, error) {
	if g.ai == nil {
		return "", fmt.Errorf("drafting service not configured: %w", models.ErrUpstreamFailure)
	}
	content, err := g.ai.GeneratePrompt(ctx, draftSystemPrompt, renderBrief(brief))
	if err != nil {
		return "", fmt.Errorf("Generator: drafting call: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("drafting service returned empty document: %w", models.ErrUpstreamFailure)
	}
	return content, nil
}

// missingPreconditions returns the unmet generation preconditions by
// field category.
func missingPreconditions(session *models.Session) []string {
	var missing []string
	if session.ClientInfo.Name == "" {
		missing = append(missing, "client name")
	}
	if session.ClientInfo.Company == "" {
		missing = append(missing, "client company")
	}
	if len(session.BusinessContext.Challenges) == 0 {
		missing = append(missing, "business challenges")
	}
	return missing
}

func buildBrief(session *models.Session, feedback string) Brief {
	return Brief{
		ClientName:         session.ClientInfo.Name,
		ClientCompany:      session.ClientInfo.Company,
		Business:           session.BusinessContext,
		Qualification:      session.Qualification,
		RecommendedService: session.RecommendedService,
		Feedback:           feedback,
	}
}

// renderBrief flattens the brief into the drafting prompt.
func renderBrief(brief Brief) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Client: %s at %s\n", brief.ClientName, brief.ClientCompany)
	if brief.Business.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", brief.Business.Industry)
	}
	if len(brief.Business.Challenges) > 0 {
		fmt.Fprintf(&b, "Challenges: %s\n", strings.Join(brief.Business.Challenges, "; "))
	}
	if len(brief.Business.TechStack) > 0 {
		fmt.Fprintf(&b, "Current tech stack: %s\n", strings.Join(brief.Business.TechStack, ", "))
	}
	if brief.Qualification.BudgetRange != models.BudgetUnknown {
		fmt.Fprintf(&b, "Budget band: %s\n", brief.Qualification.BudgetRange)
	}
	if brief.Qualification.Timeline != models.TimelineUnknown {
		fmt.Fprintf(&b, "Timeline band: %s\n", brief.Qualification.Timeline)
	}
	if len(brief.Qualification.SuccessCriteria) > 0 {
		fmt.Fprintf(&b, "Success criteria: %s\n", strings.Join(brief.Qualification.SuccessCriteria, "; "))
	}
	if brief.RecommendedService != "" {
		fmt.Fprintf(&b, "Recommended service: %s\n", brief.RecommendedService)
	}
	if brief.Feedback != "" {
		fmt.Fprintf(&b, "\nRevision feedback to incorporate: %s\n", brief.Feedback)
	}
	return b.String()
}

// ensureSections guarantees the six-section template: any section heading
// the draft omitted is appended with deterministic content from the brief,
// and a title is prepended when absent.
func ensureSections(content string, brief Brief) string {
	var b strings.Builder
	if !strings.HasPrefix(strings.TrimSpace(content), "#") {
		fmt.Fprintf(&b, "# Project Requirements Document: %s\n\n", brief.ClientCompany)
	}
	b.WriteString(strings.TrimSpace(content))
	b.WriteString("\n")

	for _, section := range Sections {
		if strings.Contains(content, section) {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", section, fallbackSection(section, brief))
	}
	return b.String()
}

func fallbackSection(section string, brief Brief) string {
	switch section {
	case SectionExecutiveSummary:
		return fmt.Sprintf("%s (%s) is seeking a partner to address: %s.",
			brief.ClientCompany, orUnspecified(brief.Business.Industry),
			strings.Join(brief.Business.Challenges, "; "))
	case SectionBusinessObjectives:
		return "Address the challenges identified during qualification: " +
			strings.Join(brief.Business.Challenges, "; ") + "."
	case SectionTechnicalRequirements:
		if len(brief.Business.TechStack) > 0 {
			return "Integrate with the existing stack: " + strings.Join(brief.Business.TechStack, ", ") + "."
		}
		return "To be refined with the client's technical team."
	case SectionScope:
		if brief.RecommendedService != "" {
			return "Initial engagement scoped to the recommended service: " + brief.RecommendedService + "."
		}
		return "To be defined in the discovery workshop."
	case SectionTimeline:
		if brief.Qualification.Timeline != models.TimelineUnknown {
			return "Target delivery window: " + string(brief.Qualification.Timeline) + "."
		}
		return "Timeline to be agreed."
	case SectionSuccessCriteria:
		if len(brief.Qualification.SuccessCriteria) > 0 {
			return strings.Join(brief.Qualification.SuccessCriteria, "; ")
		}
		return "Success criteria to be agreed with the client."
	}
	return ""
}

func orUnspecified(s string) string {
	if s == "" {
		return "industry unspecified"
	}
	return s
}

// Lineage returns a session's full version chain ordered by version.
func (g *Generator) Lineage(sessionID string) ([]models.PRDDocument, error) {
	lineage, err := g.store.GetPRDLineage(sessionID)
	if err != nil {
		return nil, fmt.Errorf("Generator.Lineage: %w", err)
	}
	return lineage, nil
}

// Preview returns the document's preview projection.
func (g *Generator) Preview(prdID string) (*models.PRDPreview, error) {
	doc, err := g.store.GetPRDDocument(prdID)
	if err != nil {
		return nil, fmt.Errorf("Generator.Preview: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("prd %s: %w", prdID, models.ErrNotFound)
	}
	return &models.PRDPreview{
		ID:            doc.ID,
		Version:       doc.Version,
		ClientName:    doc.ClientName,
		ClientCompany: doc.ClientCompany,
		PreviewText:   previewText(doc.ContentMarkdown),
		Filename:      Filename(doc),
	}, nil
}

// Document returns a full PRD row for download.
func (g *Generator) Document(prdID string) (*models.PRDDocument, error) {
	doc, err := g.store.GetPRDDocument(prdID)
	if err != nil {
		return nil, fmt.Errorf("Generator.Document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("prd %s: %w", prdID, models.ErrNotFound)
	}
	return doc, nil
}

func previewText(content string) string {
	runes := []rune(content)
	if len(runes) <= PreviewLength {
		return content
	}
	return string(runes[:PreviewLength]) + "..."
}

// Filename renders the download filename:
// PRD_{company}_{YYYY-MM-DD}_v{version}.md with the company reduced to
// filename-safe characters.
func Filename(doc *models.PRDDocument) string {
	company := filenameUnsafeRe.ReplaceAllString(strings.ReplaceAll(doc.ClientCompany, " ", "_"), "")
	if company == "" {
		company = "Client"
	}
	return fmt.Sprintf("PRD_%s_%s_v%d.md", company, doc.CreatedAt.Format("2006-01-02"), doc.Version)
}
