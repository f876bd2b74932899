// Package store provides storage backends for LeadPipe.
//
// It includes an in-memory store for tests and development, plus
// SQLite and PostgreSQL backed stores selected by DSN.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BrightDesk/LeadPipe/internal/models"
)

// Store is the persistence interface shared by all backends.
//
// Lookup methods return (nil, nil) when the row does not exist; callers
// translate absence into their own not-found errors.
type Store interface {
	// Sessions.
	SaveSession(session *models.Session) error
	GetSession(id string) (*models.Session, error)
	ListSessions() ([]*models.Session, error)

	// Messages. The log is append-only; insertion order is replay order.
	AddMessage(msg models.Message) error
	GetMessages(sessionID string) ([]models.Message, error)

	// CommitTurn atomically persists one conversation turn: the user
	// message, the assistant reply, and the updated session land together
	// or not at all.
	CommitTurn(session *models.Session, userMsg, aiMsg models.Message) error

	// PRD documents. Rows are immutable; regeneration appends a new version.
	AddPRDDocument(doc models.PRDDocument) error
	GetPRDDocument(id string) (*models.PRDDocument, error)
	GetPRDLineage(sessionID string) ([]models.PRDDocument, error)
	MaxPRDVersion(sessionID string) (int, error)

	// Welcome templates.
	SaveWelcomeTemplate(tmpl *models.WelcomeTemplate) error
	GetWelcomeTemplate(id string) (*models.WelcomeTemplate, error)
	ListWelcomeTemplates() ([]models.WelcomeTemplate, error)
	FindWelcomeTemplate(industryHint string) (*models.WelcomeTemplate, error)
	IncrementTemplateUseCount(id string) error
	SetDefaultWelcomeTemplate(id string) error

	Close() error
}

// Opts holds configuration options for store creation.
type Opts struct {
	DSN string
}

// Option defines a functional option for store configuration.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite3". Anything that
// does not look like a PostgreSQL URL or key=value connection string is
// treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// InMemoryStore keeps all state in process memory. Used by tests and by
// deployments without a configured database.
type InMemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]*models.Session
	messages  map[string][]models.Message
	prds      map[string]models.PRDDocument
	templates map[string]models.WelcomeTemplate
	// templateOrder preserves creation order for listing.
	templateOrder []string
}

// NewInMemoryStore creates an empty in-memory store seeded with the
// built-in default welcome template.
func NewInMemoryStore() *InMemoryStore {
	s := &InMemoryStore{
		sessions:  make(map[string]*models.Session),
		messages:  make(map[string][]models.Message),
		prds:      make(map[string]models.PRDDocument),
		templates: make(map[string]models.WelcomeTemplate),
	}
	seed := DefaultWelcomeTemplate()
	s.templates[seed.ID] = seed
	s.templateOrder = append(s.templateOrder, seed.ID)
	return s
}

// DefaultTemplateID identifies the seeded general-purpose welcome template.
const DefaultTemplateID = "00000000-0000-0000-0000-000000000001"

// DefaultWelcomeTemplateContent is the seeded welcome message.
const DefaultWelcomeTemplateContent = "Hi! I'm here to learn about your project and match you with the right expert. What brings you here today?"

// DefaultWelcomeTemplate returns the built-in active default template.
func DefaultWelcomeTemplate() models.WelcomeTemplate {
	now := time.Now().UTC()
	return models.WelcomeTemplate{
		ID:        DefaultTemplateID,
		Content:   DefaultWelcomeTemplateContent,
		IsDefault: true,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *InMemoryStore) SaveSession(session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	cp.Messages = nil
	s.sessions[session.ID] = &cp
	return nil
}

func (s *InMemoryStore) GetSession(id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *session
	return &cp, nil
}

func (s *InMemoryStore) ListSessions() ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := make([]*models.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		cp := *session
		sessions = append(sessions, &cp)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (s *InMemoryStore) AddMessage(msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], msg)
	return nil
}

func (s *InMemoryStore) CommitTurn(session *models.Session, userMsg, aiMsg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[session.ID] = append(s.messages[session.ID], userMsg, aiMsg)
	cp := *session
	cp.Messages = nil
	s.sessions[session.ID] = &cp
	return nil
}

func (s *InMemoryStore) GetMessages(sessionID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[sessionID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *InMemoryStore) AddPRDDocument(doc models.PRDDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prds[doc.ID] = doc
	return nil
}

func (s *InMemoryStore) GetPRDDocument(id string) (*models.PRDDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.prds[id]
	if !ok {
		return nil, nil
	}
	cp := doc
	return &cp, nil
}

func (s *InMemoryStore) GetPRDLineage(sessionID string) ([]models.PRDDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var lineage []models.PRDDocument
	for _, doc := range s.prds {
		if doc.SessionID == sessionID {
			lineage = append(lineage, doc)
		}
	}
	sort.Slice(lineage, func(i, j int) bool {
		return lineage[i].Version < lineage[j].Version
	})
	return lineage, nil
}

func (s *InMemoryStore) MaxPRDVersion(sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := 0
	for _, doc := range s.prds {
		if doc.SessionID == sessionID && doc.Version > max {
			max = doc.Version
		}
	}
	return max, nil
}

func (s *InMemoryStore) SaveWelcomeTemplate(tmpl *models.WelcomeTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.templates[tmpl.ID]; !exists {
		s.templateOrder = append(s.templateOrder, tmpl.ID)
	}
	if tmpl.IsDefault {
		for id, other := range s.templates {
			if id != tmpl.ID && other.IsDefault {
				other.IsDefault = false
				s.templates[id] = other
			}
		}
	}
	s.templates[tmpl.ID] = *tmpl
	return nil
}

func (s *InMemoryStore) GetWelcomeTemplate(id string) (*models.WelcomeTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tmpl, ok := s.templates[id]
	if !ok {
		return nil, nil
	}
	cp := tmpl
	return &cp, nil
}

func (s *InMemoryStore) ListWelcomeTemplates() ([]models.WelcomeTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.WelcomeTemplate, 0, len(s.templates))
	for _, id := range s.templateOrder {
		if tmpl, ok := s.templates[id]; ok {
			out = append(out, tmpl)
		}
	}
	return out, nil
}

func (s *InMemoryStore) FindWelcomeTemplate(industryHint string) (*models.WelcomeTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if industryHint != "" {
		for _, id := range s.templateOrder {
			tmpl := s.templates[id]
			if tmpl.IsActive && strings.EqualFold(tmpl.TargetIndustry, industryHint) {
				cp := tmpl
				return &cp, nil
			}
		}
	}
	for _, id := range s.templateOrder {
		tmpl := s.templates[id]
		if tmpl.IsActive && tmpl.IsDefault {
			cp := tmpl
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) IncrementTemplateUseCount(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tmpl, ok := s.templates[id]
	if !ok {
		return nil
	}
	tmpl.UseCount++
	tmpl.UpdatedAt = time.Now().UTC()
	s.templates[id] = tmpl
	return nil
}

func (s *InMemoryStore) SetDefaultWelcomeTemplate(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tmpl, ok := s.templates[id]
	if !ok {
		return models.ErrNotFound
	}
	if !tmpl.IsActive {
		return models.ErrConflict
	}
	for otherID, other := range s.templates {
		if other.IsDefault && otherID != id {
			other.IsDefault = false
			other.UpdatedAt = time.Now().UTC()
			s.templates[otherID] = other
		}
	}
	tmpl.IsDefault = true
	tmpl.UpdatedAt = time.Now().UTC()
	s.templates[id] = tmpl
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
