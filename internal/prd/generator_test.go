package prd

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go"

	"github.com/BrightDesk/LeadPipe/internal/models"
	"github.com/BrightDesk/LeadPipe/internal/store"
)

// stubDrafter implements genai.ClientInterface for tests.
type stubDrafter struct {
	reply string
	err   error
	// lastUser captures the user prompt of the most recent call.
	lastUser string
}

func (s *stubDrafter) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.lastUser = userPrompt
	return s.reply, s.err
}

func (s *stubDrafter) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	return s.reply, s.err
}

// noopLocker satisfies SessionLocker for single-threaded tests.
type noopLocker struct{}

func (noopLocker) Lock(string)   {}
func (noopLocker) Unlock(string) {}

const draftedDoc = `# Project Requirements Document: TechCorp

## Executive Summary
TechCorp needs AI help.

## Business Objectives
Automate intake.

## Technical Requirements
Python, AWS.

## Scope
Phase one only.

## Timeline
Three months.

## Success Criteria
Halve processing time.
`

func qualifiedSession(t *testing.T, st store.Store) *models.Session {
	t.Helper()
	now := time.Now().UTC()
	session := &models.Session{
		ID:           "sess-1",
		VisitorID:    "v",
		CurrentPhase: models.PhaseReadyForPRD,
		ClientInfo: models.ClientInfo{
			Name:    "John Doe",
			Email:   "john@example.com",
			Company: "TechCorp",
		},
		BusinessContext: models.BusinessContext{
			Industry:   "healthcare",
			Challenges: []string{"need ai help with patient intake"},
		},
		Qualification: models.Qualification{
			BudgetRange: models.Budget25KTo100K,
			Timeline:    models.TimelineShort,
		},
		RecommendedService: "AI & Machine Learning",
		Status:             models.SessionStatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := st.SaveSession(session); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	return session
}

func TestGenerateFirstVersion(t *testing.T) {
	st := store.NewInMemoryStore()
	session := qualifiedSession(t, st)
	drafter := &stubDrafter{reply: draftedDoc}
	g := NewGenerator(st, drafter, noopLocker{})

	doc, err := g.Generate(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if doc.Version != 1 {
		t.Errorf("expected version 1, got %d", doc.Version)
	}
	if doc.ClientName != "John Doe" || doc.ClientCompany != "TechCorp" {
		t.Errorf("snapshot fields wrong: %+v", doc)
	}
	for _, section := range Sections {
		if !strings.Contains(doc.ContentMarkdown, section) {
			t.Errorf("document missing section %q", section)
		}
	}
	if !strings.Contains(drafter.lastUser, "TechCorp") {
		t.Error("brief did not reach the drafting service")
	}
}

func TestGenerateBackfillsMissingSections(t *testing.T) {
	st := store.NewInMemoryStore()
	session := qualifiedSession(t, st)
	// Draft omits everything after the first section.
	drafter := &stubDrafter{reply: "## Executive Summary\nShort.\n"}
	g := NewGenerator(st, drafter, noopLocker{})

	doc, err := g.Generate(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	for _, section := range Sections {
		if !strings.Contains(doc.ContentMarkdown, "## "+section) {
			t.Errorf("missing backfilled section %q", section)
		}
	}
}

func TestGenerateIncompleteData(t *testing.T) {
	st := store.NewInMemoryStore()
	now := time.Now().UTC()
	session := &models.Session{
		ID: "sess-1", VisitorID: "v",
		CurrentPhase: models.PhaseDiscovery,
		ClientInfo:   models.ClientInfo{Name: "John Doe"},
		Status:       models.SessionStatusActive,
		CreatedAt:    now, UpdatedAt: now,
	}
	st.SaveSession(session)
	g := NewGenerator(st, &stubDrafter{reply: draftedDoc}, noopLocker{})

	_, err := g.Generate(context.Background(), session.ID)
	if !errors.Is(err, models.ErrIncompleteData) {
		t.Fatalf("expected incomplete data, got %v", err)
	}
	// The error names the missing field categories.
	if !strings.Contains(err.Error(), "company") || !strings.Contains(err.Error(), "challenges") {
		t.Errorf("error does not name missing fields: %v", err)
	}
	// Nothing persisted on failure.
	if max, _ := st.MaxPRDVersion(session.ID); max != 0 {
		t.Error("document persisted despite precondition failure")
	}
}

func TestGenerateUnknownSession(t *testing.T) {
	g := NewGenerator(store.NewInMemoryStore(), &stubDrafter{reply: draftedDoc}, noopLocker{})
	_, err := g.Generate(context.Background(), "nope")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestGenerateUpstreamFailureIsAtomic(t *testing.T) {
	st := store.NewInMemoryStore()
	session := qualifiedSession(t, st)
	drafter := &stubDrafter{err: models.ErrUpstreamFailure}
	g := NewGenerator(st, drafter, noopLocker{})

	_, err := g.Generate(context.Background(), session.ID)
	if !errors.Is(err, models.ErrUpstreamFailure) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
	if max, _ := st.MaxPRDVersion(session.ID); max != 0 {
		t.Error("partial document persisted on drafting failure")
	}
}

func TestGenerateWithoutDraftingClient(t *testing.T) {
	st := store.NewInMemoryStore()
	session := qualifiedSession(t, st)
	g := NewGenerator(st, nil, noopLocker{})

	_, err := g.Generate(context.Background(), session.ID)
	if !errors.Is(err, models.ErrUpstreamFailure) {
		t.Errorf("expected upstream failure in degraded mode, got %v", err)
	}
}

func TestRegenerateAppendsVersion(t *testing.T) {
	st := store.NewInMemoryStore()
	session := qualifiedSession(t, st)
	drafter := &stubDrafter{reply: draftedDoc}
	g := NewGenerator(st, drafter, noopLocker{})
	ctx := context.Background()

	v1, err := g.Generate(ctx, session.ID)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	drafter.reply = strings.Replace(draftedDoc, "Automate intake.", "Automate intake end to end.", 1)
	v2, err := g.Regenerate(ctx, v1.ID, "expand the objectives")
	if err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}

	if v2.Version != 2 {
		t.Errorf("expected version 2, got %d", v2.Version)
	}
	if v2.ID == v1.ID {
		t.Error("regeneration reused the document id")
	}
	if !strings.Contains(drafter.lastUser, "expand the objectives") {
		t.Error("feedback did not reach the drafting service")
	}

	// Version 1 is untouched.
	stored, _ := st.GetPRDDocument(v1.ID)
	if stored.ContentMarkdown != v1.ContentMarkdown {
		t.Error("regeneration mutated version 1")
	}

	// Lineage is contiguous from 1.
	lineage, _ := g.Lineage(session.ID)
	if len(lineage) != 2 {
		t.Fatalf("expected lineage of 2, got %d", len(lineage))
	}
	for i, doc := range lineage {
		if doc.Version != i+1 {
			t.Errorf("lineage gap: position %d has version %d", i, doc.Version)
		}
	}
}

func TestRegenerateUnknownPRD(t *testing.T) {
	g := NewGenerator(store.NewInMemoryStore(), &stubDrafter{reply: draftedDoc}, noopLocker{})
	_, err := g.Regenerate(context.Background(), "nope", "")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestPreviewAndFilename(t *testing.T) {
	st := store.NewInMemoryStore()
	session := qualifiedSession(t, st)
	long := strings.Repeat("word ", 200)
	g := NewGenerator(st, &stubDrafter{reply: "## Executive Summary\n" + long}, noopLocker{})

	doc, err := g.Generate(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	preview, err := g.Preview(doc.ID)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if len([]rune(preview.PreviewText)) > PreviewLength+3 {
		t.Errorf("preview too long: %d runes", len([]rune(preview.PreviewText)))
	}
	if preview.Version != 1 || preview.ClientCompany != "TechCorp" {
		t.Errorf("unexpected preview: %+v", preview)
	}

	wantPrefix := "PRD_TechCorp_"
	if !strings.HasPrefix(preview.Filename, wantPrefix) || !strings.HasSuffix(preview.Filename, "_v1.md") {
		t.Errorf("unexpected filename %q", preview.Filename)
	}

	if _, err := g.Preview("nope"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestFilenameSanitization(t *testing.T) {
	doc := &models.PRDDocument{
		ClientCompany: "Müller & Sons, GmbH",
		Version:       3,
		CreatedAt:     time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
	}
	got := Filename(doc)
	want := "PRD_Mller__Sons_GmbH_2026-08-31_v3.md"
	if got != want {
		t.Errorf("Filename = %q, want %q", got, want)
	}

	doc.ClientCompany = "株式会社"
	if got := Filename(doc); !strings.HasPrefix(got, "PRD_Client_") {
		t.Errorf("expected Client fallback, got %q", got)
	}
}
