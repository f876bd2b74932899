// Package store provides storage backends for LeadPipe.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BrightDesk/LeadPipe/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// postgresSessionUpsert writes a session row, replacing the mutable columns
// on conflict.
var postgresSessionUpsert = `INSERT INTO sessions (` + sessionColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (id) DO UPDATE SET
		visitor_id = EXCLUDED.visitor_id,
		source_url = EXCLUDED.source_url,
		user_agent = EXCLUDED.user_agent,
		industry_hint = EXCLUDED.industry_hint,
		current_phase = EXCLUDED.current_phase,
		client_info = EXCLUDED.client_info,
		business_context = EXCLUDED.business_context,
		qualification = EXCLUDED.qualification,
		lead_score = EXCLUDED.lead_score,
		recommended_service = EXCLUDED.recommended_service,
		status = EXCLUDED.status,
		stall_count = EXCLUDED.stall_count,
		summary = EXCLUDED.summary,
		updated_at = EXCLUDED.updated_at`

func (s *PostgresStore) SaveSession(session *models.Session) error {
	values, err := sessionColumnValues(session)
	if err != nil {
		slog.Error("PostgresStore SaveSession marshal failed", "error", err, "sessionID", session.ID)
		return err
	}
	if _, err := s.db.Exec(postgresSessionUpsert, values...); err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "sessionID", session.ID)
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}
	slog.Debug("PostgresStore SaveSession succeeded", "sessionID", session.ID, "phase", session.CurrentPhase)
	return nil
}

func (s *PostgresStore) GetSession(id string) (*models.Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetSession not found", "sessionID", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "sessionID", id)
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return session, nil
}

func (s *PostgresStore) ListSessions() ([]*models.Session, error) {
	rows, err := s.db.Query(`SELECT ` + sessionColumns + ` FROM sessions ORDER BY created_at`)
	if err != nil {
		slog.Error("PostgresStore ListSessions query failed", "error", err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			slog.Error("PostgresStore ListSessions scan failed", "error", err)
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	slog.Debug("PostgresStore ListSessions succeeded", "count", len(sessions))
	return sessions, nil
}

// insertMessage runs the message INSERT against a connection or transaction.
func (s *PostgresStore) insertMessage(ex execer, msg models.Message) error {
	metadataValue, err := messageMetadataValue(msg)
	if err != nil {
		slog.Error("PostgresStore insertMessage metadata marshal failed", "error", err, "messageID", msg.ID)
		return err
	}
	_, err = ex.Exec(`INSERT INTO messages (id, session_id, role, content, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, metadataValue, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message for session %s: %w", msg.SessionID, err)
	}
	return nil
}

func (s *PostgresStore) AddMessage(msg models.Message) error {
	if err := s.insertMessage(s.db, msg); err != nil {
		slog.Error("PostgresStore AddMessage failed", "error", err, "sessionID", msg.SessionID)
		return err
	}
	return nil
}

func (s *PostgresStore) CommitTurn(session *models.Session, userMsg, aiMsg models.Message) error {
	values, err := sessionColumnValues(session)
	if err != nil {
		slog.Error("PostgresStore CommitTurn marshal failed", "error", err, "sessionID", session.ID)
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin turn transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertMessage(tx, userMsg); err != nil {
		slog.Error("PostgresStore CommitTurn user message failed", "error", err, "sessionID", session.ID)
		return err
	}
	if err := s.insertMessage(tx, aiMsg); err != nil {
		slog.Error("PostgresStore CommitTurn assistant message failed", "error", err, "sessionID", session.ID)
		return err
	}
	if _, err := tx.Exec(postgresSessionUpsert, values...); err != nil {
		slog.Error("PostgresStore CommitTurn session save failed", "error", err, "sessionID", session.ID)
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit turn for session %s: %w", session.ID, err)
	}
	slog.Debug("PostgresStore CommitTurn succeeded", "sessionID", session.ID, "phase", session.CurrentPhase)
	return nil
}

func (s *PostgresStore) GetMessages(sessionID string) ([]models.Message, error) {
	rows, err := s.db.Query(`SELECT id, session_id, role, content, metadata, created_at
		FROM messages WHERE session_id = $1 ORDER BY seq`, sessionID)
	if err != nil {
		slog.Error("PostgresStore GetMessages query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query messages for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			slog.Error("PostgresStore GetMessages scan failed", "error", err, "sessionID", sessionID)
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return msgs, nil
}

func (s *PostgresStore) AddPRDDocument(doc models.PRDDocument) error {
	_, err := s.db.Exec(`INSERT INTO prd_documents (id, session_id, version, content_markdown, client_name, client_company, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, doc.SessionID, doc.Version, doc.ContentMarkdown, doc.ClientName, doc.ClientCompany, doc.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddPRDDocument failed", "error", err, "sessionID", doc.SessionID, "version", doc.Version)
		return fmt.Errorf("failed to insert PRD version %d for session %s: %w", doc.Version, doc.SessionID, err)
	}
	slog.Debug("PostgresStore AddPRDDocument succeeded", "sessionID", doc.SessionID, "version", doc.Version)
	return nil
}

func (s *PostgresStore) GetPRDDocument(id string) (*models.PRDDocument, error) {
	row := s.db.QueryRow(`SELECT id, session_id, version, content_markdown, client_name, client_company, created_at
		FROM prd_documents WHERE id = $1`, id)
	doc, err := scanPRDDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetPRDDocument failed", "error", err, "prdID", id)
		return nil, fmt.Errorf("failed to get PRD %s: %w", id, err)
	}
	return &doc, nil
}

func (s *PostgresStore) GetPRDLineage(sessionID string) ([]models.PRDDocument, error) {
	rows, err := s.db.Query(`SELECT id, session_id, version, content_markdown, client_name, client_company, created_at
		FROM prd_documents WHERE session_id = $1 ORDER BY version`, sessionID)
	if err != nil {
		slog.Error("PostgresStore GetPRDLineage query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query PRD lineage for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var lineage []models.PRDDocument
	for rows.Next() {
		doc, err := scanPRDDocument(rows)
		if err != nil {
			slog.Error("PostgresStore GetPRDLineage scan failed", "error", err, "sessionID", sessionID)
			return nil, err
		}
		lineage = append(lineage, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate PRD rows: %w", err)
	}
	return lineage, nil
}

func (s *PostgresStore) MaxPRDVersion(sessionID string) (int, error) {
	var max int
	err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM prd_documents WHERE session_id = $1`, sessionID).Scan(&max)
	if err != nil {
		slog.Error("PostgresStore MaxPRDVersion failed", "error", err, "sessionID", sessionID)
		return 0, fmt.Errorf("failed to get max PRD version for session %s: %w", sessionID, err)
	}
	return max, nil
}

func (s *PostgresStore) SaveWelcomeTemplate(tmpl *models.WelcomeTemplate) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin template transaction: %w", err)
	}
	defer tx.Rollback()

	if tmpl.IsDefault {
		if _, err := tx.Exec(`UPDATE welcome_templates SET is_default = FALSE WHERE is_default = TRUE AND id != $1`, tmpl.ID); err != nil {
			slog.Error("PostgresStore SaveWelcomeTemplate default clear failed", "error", err, "templateID", tmpl.ID)
			return fmt.Errorf("failed to clear previous default template: %w", err)
		}
	}
	_, err = tx.Exec(`INSERT INTO welcome_templates (id, content, target_industry, is_default, is_active, use_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			target_industry = EXCLUDED.target_industry,
			is_default = EXCLUDED.is_default,
			is_active = EXCLUDED.is_active,
			use_count = EXCLUDED.use_count,
			updated_at = EXCLUDED.updated_at`,
		tmpl.ID, tmpl.Content, nilIfEmpty(tmpl.TargetIndustry), tmpl.IsDefault, tmpl.IsActive,
		tmpl.UseCount, tmpl.CreatedAt, tmpl.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveWelcomeTemplate failed", "error", err, "templateID", tmpl.ID)
		return fmt.Errorf("failed to save welcome template %s: %w", tmpl.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit template transaction: %w", err)
	}
	slog.Debug("PostgresStore SaveWelcomeTemplate succeeded", "templateID", tmpl.ID, "isDefault", tmpl.IsDefault)
	return nil
}

func (s *PostgresStore) GetWelcomeTemplate(id string) (*models.WelcomeTemplate, error) {
	row := s.db.QueryRow(`SELECT id, content, target_industry, is_default, is_active, use_count, created_at, updated_at
		FROM welcome_templates WHERE id = $1`, id)
	tmpl, err := scanWelcomeTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetWelcomeTemplate failed", "error", err, "templateID", id)
		return nil, fmt.Errorf("failed to get welcome template %s: %w", id, err)
	}
	return &tmpl, nil
}

func (s *PostgresStore) ListWelcomeTemplates() ([]models.WelcomeTemplate, error) {
	rows, err := s.db.Query(`SELECT id, content, target_industry, is_default, is_active, use_count, created_at, updated_at
		FROM welcome_templates ORDER BY created_at`)
	if err != nil {
		slog.Error("PostgresStore ListWelcomeTemplates query failed", "error", err)
		return nil, fmt.Errorf("failed to query welcome templates: %w", err)
	}
	defer rows.Close()

	var templates []models.WelcomeTemplate
	for rows.Next() {
		tmpl, err := scanWelcomeTemplate(rows)
		if err != nil {
			slog.Error("PostgresStore ListWelcomeTemplates scan failed", "error", err)
			return nil, err
		}
		templates = append(templates, tmpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate template rows: %w", err)
	}
	return templates, nil
}

func (s *PostgresStore) FindWelcomeTemplate(industryHint string) (*models.WelcomeTemplate, error) {
	if industryHint != "" {
		row := s.db.QueryRow(`SELECT id, content, target_industry, is_default, is_active, use_count, created_at, updated_at
			FROM welcome_templates
			WHERE is_active = TRUE AND LOWER(target_industry) = LOWER($1)
			ORDER BY created_at LIMIT 1`, industryHint)
		tmpl, err := scanWelcomeTemplate(row)
		if err == nil {
			return &tmpl, nil
		}
		if err != sql.ErrNoRows {
			slog.Error("PostgresStore FindWelcomeTemplate industry lookup failed", "error", err, "industry", industryHint)
			return nil, fmt.Errorf("failed to find welcome template for industry %s: %w", industryHint, err)
		}
	}
	row := s.db.QueryRow(`SELECT id, content, target_industry, is_default, is_active, use_count, created_at, updated_at
		FROM welcome_templates WHERE is_active = TRUE AND is_default = TRUE LIMIT 1`)
	tmpl, err := scanWelcomeTemplate(row)
	if err == sql.ErrNoRows {
		slog.Warn("PostgresStore FindWelcomeTemplate no active default template")
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore FindWelcomeTemplate default lookup failed", "error", err)
		return nil, fmt.Errorf("failed to find default welcome template: %w", err)
	}
	return &tmpl, nil
}

func (s *PostgresStore) IncrementTemplateUseCount(id string) error {
	_, err := s.db.Exec(`UPDATE welcome_templates SET use_count = use_count + 1, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		slog.Error("PostgresStore IncrementTemplateUseCount failed", "error", err, "templateID", id)
		return fmt.Errorf("failed to increment use count for template %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) SetDefaultWelcomeTemplate(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin default swap transaction: %w", err)
	}
	defer tx.Rollback()

	var isActive bool
	err = tx.QueryRow(`SELECT is_active FROM welcome_templates WHERE id = $1`, id).Scan(&isActive)
	if err == sql.ErrNoRows {
		return models.ErrNotFound
	}
	if err != nil {
		slog.Error("PostgresStore SetDefaultWelcomeTemplate lookup failed", "error", err, "templateID", id)
		return fmt.Errorf("failed to look up template %s: %w", id, err)
	}
	if !isActive {
		return models.ErrConflict
	}

	if _, err := tx.Exec(`UPDATE welcome_templates SET is_default = FALSE, updated_at = NOW() WHERE is_default = TRUE AND id != $1`, id); err != nil {
		return fmt.Errorf("failed to clear previous default template: %w", err)
	}
	if _, err := tx.Exec(`UPDATE welcome_templates SET is_default = TRUE, updated_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to set default template %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit default swap: %w", err)
	}
	slog.Debug("PostgresStore SetDefaultWelcomeTemplate succeeded", "templateID", id)
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
