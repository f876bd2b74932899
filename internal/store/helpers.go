package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/BrightDesk/LeadPipe/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// execer is satisfied by both *sql.DB and *sql.Tx, so statement helpers can
// run standalone or inside a transaction.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// messageMetadataValue renders message metadata as a nullable JSON column.
func messageMetadataValue(msg models.Message) (interface{}, error) {
	if len(msg.Metadata) == 0 {
		return nil, nil
	}
	metadataJSON, err := marshalJSON(msg.Metadata)
	if err != nil {
		return nil, err
	}
	return metadataJSON, nil
}

// marshalJSON renders v as a JSON column value.
func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal column value: %w", err)
	}
	return string(data), nil
}

// sessionColumns is the shared SELECT column list for session rows.
const sessionColumns = `id, visitor_id, source_url, user_agent, industry_hint, current_phase,
	client_info, business_context, qualification, lead_score, recommended_service,
	status, stall_count, summary, created_at, updated_at`

// scanSession scans one session row in sessionColumns order.
func scanSession(rs rowScanner) (*models.Session, error) {
	var s models.Session
	var sourceURL, userAgent, industryHint, recommended, summaryJSON sql.NullString
	var clientJSON, businessJSON, qualificationJSON string

	err := rs.Scan(
		&s.ID, &s.VisitorID, &sourceURL, &userAgent, &industryHint, &s.CurrentPhase,
		&clientJSON, &businessJSON, &qualificationJSON, &s.LeadScore, &recommended,
		&s.Status, &s.StallCount, &summaryJSON, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.SourceURL = sourceURL.String
	s.UserAgent = userAgent.String
	s.IndustryHint = industryHint.String
	s.RecommendedService = recommended.String

	if err := json.Unmarshal([]byte(clientJSON), &s.ClientInfo); err != nil {
		return nil, fmt.Errorf("unmarshal client_info for session %s: %w", s.ID, err)
	}
	if err := json.Unmarshal([]byte(businessJSON), &s.BusinessContext); err != nil {
		return nil, fmt.Errorf("unmarshal business_context for session %s: %w", s.ID, err)
	}
	if err := json.Unmarshal([]byte(qualificationJSON), &s.Qualification); err != nil {
		return nil, fmt.Errorf("unmarshal qualification for session %s: %w", s.ID, err)
	}
	if summaryJSON.Valid && summaryJSON.String != "" {
		var summary models.ConversationSummary
		if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err != nil {
			return nil, fmt.Errorf("unmarshal summary for session %s: %w", s.ID, err)
		}
		s.Summary = &summary
	}
	return &s, nil
}

// sessionColumnValues renders a session into the sessionColumns order for
// INSERT/UPDATE statements.
func sessionColumnValues(s *models.Session) ([]interface{}, error) {
	clientJSON, err := marshalJSON(s.ClientInfo)
	if err != nil {
		return nil, err
	}
	businessJSON, err := marshalJSON(s.BusinessContext)
	if err != nil {
		return nil, err
	}
	qualificationJSON, err := marshalJSON(s.Qualification)
	if err != nil {
		return nil, err
	}
	var summaryValue interface{}
	if s.Summary != nil {
		summaryJSON, err := marshalJSON(s.Summary)
		if err != nil {
			return nil, err
		}
		summaryValue = summaryJSON
	}
	return []interface{}{
		s.ID, s.VisitorID, nilIfEmpty(s.SourceURL), nilIfEmpty(s.UserAgent),
		nilIfEmpty(s.IndustryHint), s.CurrentPhase,
		clientJSON, businessJSON, qualificationJSON, s.LeadScore,
		nilIfEmpty(s.RecommendedService), s.Status, s.StallCount, summaryValue,
		s.CreatedAt, s.UpdatedAt,
	}, nil
}

// scanMessage scans one message row: id, session_id, role, content,
// metadata, created_at.
func scanMessage(rs rowScanner) (models.Message, error) {
	var m models.Message
	var metadataJSON sql.NullString
	err := rs.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &metadataJSON, &m.CreatedAt)
	if err != nil {
		return m, fmt.Errorf("scan message row: %w", err)
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		m.Metadata = make(map[string]string)
		if err := json.Unmarshal([]byte(metadataJSON.String), &m.Metadata); err != nil {
			// Continue with empty metadata rather than failing the read path.
			m.Metadata = nil
		}
	}
	return m, nil
}

// scanPRDDocument scans one PRD row: id, session_id, version,
// content_markdown, client_name, client_company, created_at.
func scanPRDDocument(rs rowScanner) (models.PRDDocument, error) {
	var d models.PRDDocument
	err := rs.Scan(&d.ID, &d.SessionID, &d.Version, &d.ContentMarkdown,
		&d.ClientName, &d.ClientCompany, &d.CreatedAt)
	if err != nil {
		return d, err
	}
	return d, nil
}

// scanWelcomeTemplate scans one template row: id, content, target_industry,
// is_default, is_active, use_count, created_at, updated_at.
func scanWelcomeTemplate(rs rowScanner) (models.WelcomeTemplate, error) {
	var t models.WelcomeTemplate
	var targetIndustry sql.NullString
	err := rs.Scan(&t.ID, &t.Content, &targetIndustry, &t.IsDefault, &t.IsActive,
		&t.UseCount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	t.TargetIndustry = targetIndustry.String
	return t, nil
}
