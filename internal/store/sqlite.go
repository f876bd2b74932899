// Package store provides storage backends for LeadPipe.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/BrightDesk/LeadPipe/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveSession(session *models.Session) error {
	values, err := sessionColumnValues(session)
	if err != nil {
		slog.Error("SQLiteStore SaveSession marshal failed", "error", err, "sessionID", session.ID)
		return err
	}
	query := `INSERT OR REPLACE INTO sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.Exec(query, values...); err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "sessionID", session.ID)
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "sessionID", session.ID, "phase", session.CurrentPhase)
	return nil
}

func (s *SQLiteStore) GetSession(id string) (*models.Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetSession not found", "sessionID", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "sessionID", id)
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return session, nil
}

func (s *SQLiteStore) ListSessions() ([]*models.Session, error) {
	rows, err := s.db.Query(`SELECT ` + sessionColumns + ` FROM sessions ORDER BY created_at`)
	if err != nil {
		slog.Error("SQLiteStore ListSessions query failed", "error", err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			slog.Error("SQLiteStore ListSessions scan failed", "error", err)
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListSessions rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	slog.Debug("SQLiteStore ListSessions succeeded", "count", len(sessions))
	return sessions, nil
}

// insertMessage runs the message INSERT against a connection or transaction.
func (s *SQLiteStore) insertMessage(ex execer, msg models.Message) error {
	metadataValue, err := messageMetadataValue(msg)
	if err != nil {
		slog.Error("SQLiteStore insertMessage metadata marshal failed", "error", err, "messageID", msg.ID)
		return err
	}
	_, err = ex.Exec(`INSERT INTO messages (id, session_id, role, content, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, metadataValue, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message for session %s: %w", msg.SessionID, err)
	}
	return nil
}

func (s *SQLiteStore) AddMessage(msg models.Message) error {
	if err := s.insertMessage(s.db, msg); err != nil {
		slog.Error("SQLiteStore AddMessage failed", "error", err, "sessionID", msg.SessionID)
		return err
	}
	return nil
}

func (s *SQLiteStore) CommitTurn(session *models.Session, userMsg, aiMsg models.Message) error {
	values, err := sessionColumnValues(session)
	if err != nil {
		slog.Error("SQLiteStore CommitTurn marshal failed", "error", err, "sessionID", session.ID)
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin turn transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertMessage(tx, userMsg); err != nil {
		slog.Error("SQLiteStore CommitTurn user message failed", "error", err, "sessionID", session.ID)
		return err
	}
	if err := s.insertMessage(tx, aiMsg); err != nil {
		slog.Error("SQLiteStore CommitTurn assistant message failed", "error", err, "sessionID", session.ID)
		return err
	}
	query := `INSERT OR REPLACE INTO sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.Exec(query, values...); err != nil {
		slog.Error("SQLiteStore CommitTurn session save failed", "error", err, "sessionID", session.ID)
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit turn for session %s: %w", session.ID, err)
	}
	slog.Debug("SQLiteStore CommitTurn succeeded", "sessionID", session.ID, "phase", session.CurrentPhase)
	return nil
}

func (s *SQLiteStore) GetMessages(sessionID string) ([]models.Message, error) {
	rows, err := s.db.Query(`SELECT id, session_id, role, content, metadata, created_at
		FROM messages WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore GetMessages query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query messages for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			slog.Error("SQLiteStore GetMessages scan failed", "error", err, "sessionID", sessionID)
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return msgs, nil
}

func (s *SQLiteStore) AddPRDDocument(doc models.PRDDocument) error {
	_, err := s.db.Exec(`INSERT INTO prd_documents (id, session_id, version, content_markdown, client_name, client_company, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.SessionID, doc.Version, doc.ContentMarkdown, doc.ClientName, doc.ClientCompany, doc.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddPRDDocument failed", "error", err, "sessionID", doc.SessionID, "version", doc.Version)
		return fmt.Errorf("failed to insert PRD version %d for session %s: %w", doc.Version, doc.SessionID, err)
	}
	slog.Debug("SQLiteStore AddPRDDocument succeeded", "sessionID", doc.SessionID, "version", doc.Version)
	return nil
}

func (s *SQLiteStore) GetPRDDocument(id string) (*models.PRDDocument, error) {
	row := s.db.QueryRow(`SELECT id, session_id, version, content_markdown, client_name, client_company, created_at
		FROM prd_documents WHERE id = ?`, id)
	doc, err := scanPRDDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetPRDDocument failed", "error", err, "prdID", id)
		return nil, fmt.Errorf("failed to get PRD %s: %w", id, err)
	}
	return &doc, nil
}

func (s *SQLiteStore) GetPRDLineage(sessionID string) ([]models.PRDDocument, error) {
	rows, err := s.db.Query(`SELECT id, session_id, version, content_markdown, client_name, client_company, created_at
		FROM prd_documents WHERE session_id = ? ORDER BY version`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore GetPRDLineage query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query PRD lineage for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var lineage []models.PRDDocument
	for rows.Next() {
		doc, err := scanPRDDocument(rows)
		if err != nil {
			slog.Error("SQLiteStore GetPRDLineage scan failed", "error", err, "sessionID", sessionID)
			return nil, err
		}
		lineage = append(lineage, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate PRD rows: %w", err)
	}
	return lineage, nil
}

func (s *SQLiteStore) MaxPRDVersion(sessionID string) (int, error) {
	var max int
	err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM prd_documents WHERE session_id = ?`, sessionID).Scan(&max)
	if err != nil {
		slog.Error("SQLiteStore MaxPRDVersion failed", "error", err, "sessionID", sessionID)
		return 0, fmt.Errorf("failed to get max PRD version for session %s: %w", sessionID, err)
	}
	return max, nil
}

func (s *SQLiteStore) SaveWelcomeTemplate(tmpl *models.WelcomeTemplate) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin template transaction: %w", err)
	}
	defer tx.Rollback()

	if tmpl.IsDefault {
		if _, err := tx.Exec(`UPDATE welcome_templates SET is_default = 0 WHERE is_default = 1 AND id != ?`, tmpl.ID); err != nil {
			slog.Error("SQLiteStore SaveWelcomeTemplate default clear failed", "error", err, "templateID", tmpl.ID)
			return fmt.Errorf("failed to clear previous default template: %w", err)
		}
	}
	_, err = tx.Exec(`INSERT OR REPLACE INTO welcome_templates (id, content, target_industry, is_default, is_active, use_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tmpl.ID, tmpl.Content, nilIfEmpty(tmpl.TargetIndustry), tmpl.IsDefault, tmpl.IsActive,
		tmpl.UseCount, tmpl.CreatedAt, tmpl.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveWelcomeTemplate failed", "error", err, "templateID", tmpl.ID)
		return fmt.Errorf("failed to save welcome template %s: %w", tmpl.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit template transaction: %w", err)
	}
	slog.Debug("SQLiteStore SaveWelcomeTemplate succeeded", "templateID", tmpl.ID, "isDefault", tmpl.IsDefault)
	return nil
}

func (s *SQLiteStore) GetWelcomeTemplate(id string) (*models.WelcomeTemplate, error) {
	row := s.db.QueryRow(`SELECT id, content, target_industry, is_default, is_active, use_count, created_at, updated_at
		FROM welcome_templates WHERE id = ?`, id)
	tmpl, err := scanWelcomeTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetWelcomeTemplate failed", "error", err, "templateID", id)
		return nil, fmt.Errorf("failed to get welcome template %s: %w", id, err)
	}
	return &tmpl, nil
}

func (s *SQLiteStore) ListWelcomeTemplates() ([]models.WelcomeTemplate, error) {
	rows, err := s.db.Query(`SELECT id, content, target_industry, is_default, is_active, use_count, created_at, updated_at
		FROM welcome_templates ORDER BY created_at`)
	if err != nil {
		slog.Error("SQLiteStore ListWelcomeTemplates query failed", "error", err)
		return nil, fmt.Errorf("failed to query welcome templates: %w", err)
	}
	defer rows.Close()

	var templates []models.WelcomeTemplate
	for rows.Next() {
		tmpl, err := scanWelcomeTemplate(rows)
		if err != nil {
			slog.Error("SQLiteStore ListWelcomeTemplates scan failed", "error", err)
			return nil, err
		}
		templates = append(templates, tmpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate template rows: %w", err)
	}
	return templates, nil
}

func (s *SQLiteStore) FindWelcomeTemplate(industryHint string) (*models.WelcomeTemplate, error) {
	if industryHint != "" {
		row := s.db.QueryRow(`SELECT id, content, target_industry, is_default, is_active, use_count, created_at, updated_at
			FROM welcome_templates
			WHERE is_active = 1 AND LOWER(target_industry) = LOWER(?)
			ORDER BY created_at LIMIT 1`, industryHint)
		tmpl, err := scanWelcomeTemplate(row)
		if err == nil {
			return &tmpl, nil
		}
		if err != sql.ErrNoRows {
			slog.Error("SQLiteStore FindWelcomeTemplate industry lookup failed", "error", err, "industry", industryHint)
			return nil, fmt.Errorf("failed to find welcome template for industry %s: %w", industryHint, err)
		}
	}
	row := s.db.QueryRow(`SELECT id, content, target_industry, is_default, is_active, use_count, created_at, updated_at
		FROM welcome_templates WHERE is_active = 1 AND is_default = 1 LIMIT 1`)
	tmpl, err := scanWelcomeTemplate(row)
	if err == sql.ErrNoRows {
		slog.Warn("SQLiteStore FindWelcomeTemplate no active default template")
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore FindWelcomeTemplate default lookup failed", "error", err)
		return nil, fmt.Errorf("failed to find default welcome template: %w", err)
	}
	return &tmpl, nil
}

func (s *SQLiteStore) IncrementTemplateUseCount(id string) error {
	_, err := s.db.Exec(`UPDATE welcome_templates SET use_count = use_count + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		slog.Error("SQLiteStore IncrementTemplateUseCount failed", "error", err, "templateID", id)
		return fmt.Errorf("failed to increment use count for template %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) SetDefaultWelcomeTemplate(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin default swap transaction: %w", err)
	}
	defer tx.Rollback()

	var isActive bool
	err = tx.QueryRow(`SELECT is_active FROM welcome_templates WHERE id = ?`, id).Scan(&isActive)
	if err == sql.ErrNoRows {
		return models.ErrNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore SetDefaultWelcomeTemplate lookup failed", "error", err, "templateID", id)
		return fmt.Errorf("failed to look up template %s: %w", id, err)
	}
	if !isActive {
		return models.ErrConflict
	}

	if _, err := tx.Exec(`UPDATE welcome_templates SET is_default = 0, updated_at = CURRENT_TIMESTAMP WHERE is_default = 1 AND id != ?`, id); err != nil {
		return fmt.Errorf("failed to clear previous default template: %w", err)
	}
	if _, err := tx.Exec(`UPDATE welcome_templates SET is_default = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to set default template %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit default swap: %w", err)
	}
	slog.Debug("SQLiteStore SetDefaultWelcomeTemplate succeeded", "templateID", id)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
