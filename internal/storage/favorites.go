package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Nit2312/NyaySarthi/internal/domain"
)

// --- Favorites ---

// SaveFavorite records p as a favorite, replacing any earlier snapshot.
func (s *Store) SaveFavorite(p domain.Precedent) error {
	p.IsFavorite = true
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding precedent %s: %w", p.ID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO favorites (precedent_id, precedent_json, created_at) VALUES (?, ?, ?)
		ON CONFLICT(precedent_id) DO UPDATE SET precedent_json = excluded.precedent_json`,
		p.ID, string(body), s.now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// DeleteFavorite removes a favorite. Removing an absent id is a no-op.
func (s *Store) DeleteFavorite(id string) error {
	_, err := s.db.Exec(`DELETE FROM favorites WHERE precedent_id = ?`, id)
	return err
}

// ListFavorites returns favorite precedents, most recently marked first.
func (s *Store) ListFavorites() ([]domain.Precedent, error) {
	rows, err := s.db.Query(`SELECT precedent_json FROM favorites ORDER BY created_at DESC, precedent_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Precedent
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var p domain.Precedent
		if err := json.Unmarshal([]byte(body), &p); err != nil {
			return nil, fmt.Errorf("decoding favorite: %w", err)
		}
		results = append(results, p)
	}
	return results, rows.Err()
}
