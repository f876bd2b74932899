package flow

import (
	"context"
	"errors"
	"fmt"
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
	calls int
}

func (s *stubDrafter) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.calls++
	return s.reply, s.err
}

func (s *stubDrafter) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	s.calls++
	return s.reply, s.err
}

func seedSession(t *testing.T, st store.Store, msgCount int) *models.Session {
	t.Helper()
	now := time.Now().UTC()
	session := &models.Session{
		ID:           "sess-1",
		VisitorID:    "v",
		CurrentPhase: models.PhaseQualification,
		ClientInfo:   models.ClientInfo{Name: "Jane Smith", Email: "jane@acme.io"},
		Status:       models.SessionStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := st.SaveSession(session); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	for i := 0; i < msgCount; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		msg := models.Message{
			ID:        fmt.Sprintf("msg-%d", i),
			SessionID: session.ID,
			Role:      role,
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: now,
		}
		if err := st.AddMessage(msg); err != nil {
			t.Fatalf("AddMessage failed: %v", err)
		}
	}
	return session
}

func TestMaybeSummarizeBelowThreshold(t *testing.T) {
	st := store.NewInMemoryStore()
	session := seedSession(t, st, 5)
	s := NewSummarizer(st, nil, 20)

	msgs, _ := st.GetMessages(session.ID)
	if s.MaybeSummarize(context.Background(), session, msgs) || session.Summary != nil {
		t.Error("summary generated below threshold")
	}
}

func TestMaybeSummarizeAtThreshold(t *testing.T) {
	st := store.NewInMemoryStore()
	session := seedSession(t, st, 20)
	drafter := &stubDrafter{reply: "The visitor wants analytics help."}
	s := NewSummarizer(st, drafter, 20)

	msgs, _ := st.GetMessages(session.ID)
	if !s.MaybeSummarize(context.Background(), session, msgs) || session.Summary == nil {
		t.Fatal("expected summary at threshold")
	}
	if session.Summary.Narrative != "The visitor wants analytics help." {
		t.Errorf("unexpected narrative: %q", session.Summary.Narrative)
	}
	if session.Summary.CoveredMessages != 20 {
		t.Errorf("expected 20 covered messages, got %d", session.Summary.CoveredMessages)
	}
	if session.Summary.Facts.Client.Name != "Jane Smith" {
		t.Error("summary missing fact snapshot")
	}

	// A fresh summary is not rebuilt every turn.
	if s.MaybeSummarize(context.Background(), session, msgs) {
		t.Error("summary rebuilt without enough new messages")
	}
}

func TestMaybeSummarizeDegradedMode(t *testing.T) {
	st := store.NewInMemoryStore()
	session := seedSession(t, st, 20)
	drafter := &stubDrafter{err: errors.New("timeout")}
	s := NewSummarizer(st, drafter, 20)

	msgs, _ := st.GetMessages(session.ID)
	if !s.MaybeSummarize(context.Background(), session, msgs) || session.Summary == nil {
		t.Fatal("expected degraded summary")
	}
	// Fact sheet fallback carries the known facts.
	if !strings.Contains(session.Summary.Narrative, "Jane Smith") {
		t.Errorf("fact sheet missing name: %q", session.Summary.Narrative)
	}
}

func TestRegenerateSummaryUnconditional(t *testing.T) {
	st := store.NewInMemoryStore()
	session := seedSession(t, st, 4)
	drafter := &stubDrafter{reply: "Short recap."}
	s := NewSummarizer(st, drafter, 20)

	if err := s.RegenerateSummary(context.Background(), session); err != nil {
		t.Fatalf("RegenerateSummary failed: %v", err)
	}
	if session.Summary == nil || session.Summary.Narrative != "Short recap." {
		t.Fatalf("unexpected summary: %+v", session.Summary)
	}
	if session.Summary.CoveredMessages != 4 {
		t.Errorf("expected 4 covered messages, got %d", session.Summary.CoveredMessages)
	}
}

func TestFactSheet(t *testing.T) {
	facts := models.Facts{
		Client: models.ClientInfo{Name: "Jane Smith", Company: "Acme"},
		Qualification: models.Qualification{
			BudgetRange: models.Budget25KTo100K,
			Timeline:    models.TimelineShort,
		},
	}
	sheet := FactSheet(facts)
	for _, want := range []string{"Jane Smith", "Acme", "25k_100k", "short_term"} {
		if !strings.Contains(sheet, want) {
			t.Errorf("fact sheet missing %q:\n%s", want, sheet)
		}
	}

	if FactSheet(models.Facts{}) != "No qualification facts collected yet." {
		t.Error("expected empty-facts placeholder")
	}
}

func TestContextWindow(t *testing.T) {
	st := store.NewInMemoryStore()
	session := seedSession(t, st, 10)
	msgs, _ := st.GetMessages(session.ID)

	// Without a summary the full log is used.
	if got := ContextWindow(session, msgs); len(got) != 10 {
		t.Errorf("expected 10 context messages, got %d", len(got))
	}

	// With a summary: one system narrative plus the recent window.
	session.Summary = &models.ConversationSummary{
		Narrative:       "recap",
		CoveredMessages: 10,
		GeneratedAt:     time.Now().UTC(),
	}
	got := ContextWindow(session, msgs)
	if len(got) != RecentMessageWindow+1 {
		t.Errorf("expected %d context messages, got %d", RecentMessageWindow+1, len(got))
	}
}
