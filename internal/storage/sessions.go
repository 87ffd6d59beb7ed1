package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Nit2312/NyaySarthi/internal/domain"
	"github.com/Nit2312/NyaySarthi/internal/messages"
)

var _ messages.Store = (*Store)(nil)

// --- Chat logs ---

func (s *Store) Create(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("creating log: %w", domain.ErrInvalidSession)
	}
	_, err := s.db.Exec(`INSERT INTO chat_sessions (id, created_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		sessionID, s.now().UTC().Format(time.RFC3339Nano))
	return err
}

func (s *Store) Append(sessionID string, msg domain.Message) (string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning append transaction: %w", err)
	}
	defer tx.Rollback()

	if err := sessionExists(tx, sessionID); err != nil {
		return "", fmt.Errorf("appending to %q: %w", sessionID, err)
	}

	var seq int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM messages WHERE session_id = ?`, sessionID).Scan(&seq); err != nil {
		return "", fmt.Errorf("counting messages: %w", err)
	}

	msg = messages.Stamp(msg, sessionID, seq, s.now)
	sources, err := json.Marshal(nonNil(msg.Sources))
	if err != nil {
		return "", fmt.Errorf("encoding sources: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO messages (id, session_id, seq, role, content, sources_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, sessionID, msg.Seq, string(msg.Role), msg.Content, string(sources),
		msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return "", fmt.Errorf("inserting message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing append: %w", err)
	}
	return msg.ID, nil
}

func (s *Store) List(sessionID string) ([]domain.Message, error) {
	if err := sessionExists(s.db, sessionID); err != nil {
		return nil, fmt.Errorf("listing %q: %w", sessionID, err)
	}

	rows, err := s.db.Query(`
		SELECT id, seq, role, content, sources_json, created_at
		FROM messages WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []domain.Message{}
	for rows.Next() {
		m := domain.Message{SessionID: sessionID}
		var role, sources, createdAt string
		if err := rows.Scan(&m.ID, &m.Seq, &role, &m.Content, &sources, &createdAt); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		if err := json.Unmarshal([]byte(sources), &m.Sources); err != nil {
			return nil, fmt.Errorf("decoding sources of %s: %w", m.ID, err)
		}
		if len(m.Sources) == 0 {
			m.Sources = nil
		}
		if m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

// RecentSessions returns stored chat logs, newest first.
func (s *Store) RecentSessions(limit int) ([]SessionRecord, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.created_at, COUNT(m.id)
		FROM chat_sessions c LEFT JOIN messages m ON m.session_id = c.id
		GROUP BY c.id ORDER BY c.created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SessionRecord
	for rows.Next() {
		var r SessionRecord
		var createdAt string
		if err := rows.Scan(&r.ID, &createdAt, &r.MessageCount); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

func sessionExists(q queryRower, sessionID string) error {
	var one int
	err := q.QueryRow(`SELECT 1 FROM chat_sessions WHERE id = ?`, sessionID).Scan(&one)
	if err == sql.ErrNoRows {
		return domain.ErrInvalidSession
	}
	return err
}

func nonNil(c []domain.Citation) []domain.Citation {
	if c == nil {
		return []domain.Citation{}
	}
	return c
}
