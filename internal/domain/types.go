package domain

import (
	"math"
	"time"
)

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one immutable chat turn. Seq is the append position inside its
// session and is the only ordering key.
type Message struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id"`
	Seq       int        `json:"seq"`
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	Sources   []Citation `json:"sources,omitempty"`
}

// Citation is a source reference attached to an assistant reply.
type Citation struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Excerpt string  `json:"excerpt"`
	URL     string  `json:"url,omitempty"`
	Score   float64 `json:"score"`
}

// Precedent is a case-law record returned by search or detail lookup.
// IsFavorite is the only field a client may change.
type Precedent struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Court        string            `json:"court"`
	Date         string            `json:"date"`
	CitationText string            `json:"citation"`
	Summary      string            `json:"summary"`
	KeyPoints    []string          `json:"key_points"`
	Similarity   float64           `json:"similarity"`
	Tags         []string          `json:"tags"`
	IsFavorite   bool              `json:"is_favorite"`
	Relevance    string            `json:"relevance"`
	HowItHelps   string            `json:"how_it_helps"`
	URL          string            `json:"url,omitempty"`
	FullText     string            `json:"full_text,omitempty"`
	Judges       []string          `json:"judges,omitempty"`
	Parties      map[string]string `json:"parties,omitempty"`
	Citations    []string          `json:"citations,omitempty"`
}

// SearchFilters narrows a precedent search. Zero values mean "unset".
type SearchFilters struct {
	Court    string `json:"court,omitempty"`
	YearFrom int    `json:"year_from,omitempty" validate:"omitempty,gte=1800,lte=2100"`
	YearTo   int    `json:"year_to,omitempty" validate:"omitempty,gte=1800,lte=2100"`
}

// Court describes a court the backend can search.
type Court struct {
	Name         string `json:"name"`
	Type         string `json:"type,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	Location     string `json:"location,omitempty"`
}

// User is the profile of the authenticated account.
type User struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
}

// Clamp01 forces a score into [0,1]. NaN becomes 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Normalize returns p with Similarity clamped into [0,1].
func (p Precedent) Normalize() Precedent {
	p.Similarity = Clamp01(p.Similarity)
	return p
}
