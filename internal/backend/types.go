package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/Nit2312/NyaySarthi/internal/analysis"
	"github.com/Nit2312/NyaySarthi/internal/composer"
	"github.com/Nit2312/NyaySarthi/internal/domain"
)

type searchRequest struct {
	Query    string `json:"query"`
	Court    string `json:"court,omitempty"`
	YearFrom int    `json:"year_from,omitempty"`
	YearTo   int    `json:"year_to,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type wirePrecedent struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Court      string            `json:"court"`
	Date       string            `json:"date"`
	Citation   string            `json:"citation"`
	Summary    string            `json:"summary"`
	KeyPoints  []string          `json:"key_points"`
	FullText   string            `json:"full_text"`
	Tags       []string          `json:"tags"`
	Similarity float64           `json:"similarity"`
	Relevance  string            `json:"relevance"`
	HowItHelps string            `json:"how_it_helps"`
	Judges     []string          `json:"judges"`
	Parties    map[string]string `json:"parties"`
	Citations  []string          `json:"citations"`
	URL        string            `json:"url"`
}

// UnmarshalJSON accepts the id as either a string or a number.
func (w *wirePrecedent) UnmarshalJSON(b []byte) error {
	type plain wirePrecedent
	var aux struct {
		plain
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*w = wirePrecedent(aux.plain)
	id, err := flexibleID(aux.ID)
	if err != nil {
		return err
	}
	w.ID = id
	return nil
}

func flexibleID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("id is neither string nor number: %s", raw)
	}
	return n.String(), nil
}

func (w wirePrecedent) toDomain() domain.Precedent {
	p := domain.Precedent{
		ID:           w.ID,
		Title:        stripHTML(w.Title),
		Court:        w.Court,
		Date:         w.Date,
		CitationText: w.Citation,
		Summary:      stripHTML(w.Summary),
		KeyPoints:    w.KeyPoints,
		Similarity:   w.Similarity,
		Tags:         w.Tags,
		Relevance:    stripHTML(w.Relevance),
		HowItHelps:   stripHTML(w.HowItHelps),
		URL:          w.URL,
		FullText:     w.FullText,
		Judges:       w.Judges,
		Parties:      w.Parties,
		Citations:    w.Citations,
	}
	if len(p.Tags) == 0 {
		p.Tags = analysis.KeyTerms(p.Summary)
	}
	return p.Normalize()
}

// courtList accepts court objects or bare court names.
type courtList []domain.Court

func (l *courtList) UnmarshalJSON(b []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	out := make(courtList, 0, len(items))
	for _, item := range items {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			out = append(out, domain.Court{Name: name})
			continue
		}
		var c domain.Court
		if err := json.Unmarshal(item, &c); err != nil {
			return fmt.Errorf("decoding court: %w", err)
		}
		out = append(out, c)
	}
	*l = out
	return nil
}

// courtsResponse accepts {"courts": [...]} or a bare list.
type courtsResponse struct {
	Courts courtList
}

func (r *courtsResponse) UnmarshalJSON(b []byte) error {
	if t := bytes.TrimSpace(b); len(t) > 0 && t[0] == '[' {
		return json.Unmarshal(b, &r.Courts)
	}
	var env struct {
		Courts courtList `json:"courts"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	r.Courts = env.Courts
	return nil
}

// casesResponse accepts {"cases": [...]} or a bare list.
type casesResponse struct {
	Cases []wirePrecedent
}

func (r *casesResponse) UnmarshalJSON(b []byte) error {
	if t := bytes.TrimSpace(b); len(t) > 0 && t[0] == '[' {
		return json.Unmarshal(b, &r.Cases)
	}
	var env struct {
		Cases []wirePrecedent `json:"cases"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	r.Cases = env.Cases
	return nil
}

type chatRequest struct {
	Content   string            `json:"content"`
	Context   *composer.Context `json:"context,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

type chatResponse struct {
	Message string     `json:"message"`
	Content string     `json:"content"`
	Sources sourceList `json:"sources"`
}

func (r chatResponse) text() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Content
}

// sourceList accepts citation objects or plain strings. A plain string
// becomes a citation titled by that string with score 0.
type sourceList []domain.Citation

func (l *sourceList) UnmarshalJSON(b []byte) error {
	if string(bytes.TrimSpace(b)) == "null" {
		*l = nil
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	out := make(sourceList, 0, len(items))
	for i, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, domain.Citation{ID: fmt.Sprintf("source-%d", i+1), Title: stripHTML(s)})
			continue
		}
		var w struct {
			ID      json.RawMessage `json:"id"`
			Title   string          `json:"title"`
			Excerpt string          `json:"excerpt"`
			URL     string          `json:"url"`
			Score   float64         `json:"score"`
		}
		if err := json.Unmarshal(item, &w); err != nil {
			return fmt.Errorf("decoding source: %w", err)
		}
		id, err := flexibleID(w.ID)
		if err != nil {
			return err
		}
		if id == "" {
			id = fmt.Sprintf("source-%d", i+1)
		}
		out = append(out, domain.Citation{
			ID:      id,
			Title:   stripHTML(w.Title),
			Excerpt: stripHTML(w.Excerpt),
			URL:     w.URL,
			Score:   w.Score,
		})
	}
	*l = out
	return nil
}

func (l sourceList) citations() []domain.Citation {
	if len(l) == 0 {
		return nil
	}
	return []domain.Citation(l)
}

type analysisResponse struct {
	Summary         string                   `json:"summary"`
	KeyPoints       []string                 `json:"key_points"`
	LegalIssues     []string                 `json:"legal_issues"`
	Citations       []string                 `json:"citations"`
	ConfidenceScore float64                  `json:"confidence_score"`
	ProcessingTime  float64                  `json:"processing_time"`
	KeyTerms        []string                 `json:"key_terms"`
	Metadata        *domain.DocumentMetadata `json:"metadata"`
}

// toDomain fills key terms and court metadata from the returned text when
// the backend does not supply them.
func (r analysisResponse) toDomain() domain.DocumentAnalysis {
	out := domain.DocumentAnalysis{
		Summary:     stripHTML(r.Summary),
		KeyTerms:    r.KeyTerms,
		KeyPoints:   r.KeyPoints,
		LegalIssues: r.LegalIssues,
		Citations:   r.Citations,
		Confidence:  domain.Clamp01(r.ConfidenceScore),
	}
	corpus := strings.Join(append(append([]string{out.Summary}, r.KeyPoints...), r.LegalIssues...), ". ")
	if len(out.KeyTerms) == 0 {
		out.KeyTerms = analysis.KeyTerms(corpus)
	}
	if r.Metadata != nil {
		out.Metadata = *r.Metadata
	} else if court, ok := analysis.DetectCourt(corpus); ok {
		out.Metadata.Court = court.Name
		out.Metadata.Jurisdiction = court.Jurisdiction
	}
	return out
}

// stripHTML removes markup (search highlights, line breaks) and decodes
// entities. Plain text passes through unchanged apart from whitespace
// folding.
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var sb strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.TextToken:
			sb.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "br" || string(name) == "p" {
				sb.WriteByte(' ')
			}
		}
	}
}
