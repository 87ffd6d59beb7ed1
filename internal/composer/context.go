// Package composer assembles the completion context sent alongside a chat
// turn: a window of prior turns and, for scoped sessions, a digest of the
// bound precedent.
package composer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Nit2312/NyaySarthi/internal/domain"
)

const (
	defaultMaxContextTokens = 2000
	defaultHistoryWindow    = 10
)

// Turn is one prior chat message as the backend sees it.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Context is serialized as the "context" object of a chat request.
type Context struct {
	Precedent string `json:"precedent,omitempty"`
	History   []Turn `json:"history,omitempty"`
}

// Empty reports whether there is nothing worth sending.
func (c Context) Empty() bool {
	return c.Precedent == "" && len(c.History) == 0
}

// Composer builds Contexts within a token budget.
type Composer struct {
	MaxContextTokens int
	HistoryWindow    int
}

// New creates a Composer. Non-positive arguments select the defaults
// (2000 tokens, 10 turns).
func New(maxContextTokens, historyWindow int) *Composer {
	if maxContextTokens <= 0 {
		maxContextTokens = defaultMaxContextTokens
	}
	if historyWindow <= 0 {
		historyWindow = defaultHistoryWindow
	}
	return &Composer{MaxContextTokens: maxContextTokens, HistoryWindow: historyWindow}
}

// Compose builds the context for the next turn. The precedent digest is
// budgeted first; the remaining budget goes to the most recent turns, and
// older turns are dropped before newer ones.
func (c *Composer) Compose(history []domain.Message, p *domain.Precedent) Context {
	var out Context
	remaining := c.MaxContextTokens

	if p != nil {
		out.Precedent = c.digest(*p, remaining)
		remaining -= EstimateTokens(out.Precedent)
	}

	start := len(history) - c.HistoryWindow
	if start < 0 {
		start = 0
	}
	window := history[start:]

	// Walk newest to oldest so the budget favours recent turns.
	kept := 0
	for i := len(window) - 1; i >= 0; i-- {
		tokens := EstimateTokens(window[i].Content)
		if tokens > remaining {
			break
		}
		remaining -= tokens
		kept++
	}

	if kept > 0 {
		out.History = make([]Turn, 0, kept)
		for _, m := range window[len(window)-kept:] {
			out.History = append(out.History, Turn{Role: string(m.Role), Content: m.Content})
		}
	}
	return out
}

// digest renders a precedent as plain text, truncating the body to fit
// budget tokens.
func (c *Composer) digest(p domain.Precedent, budget int) string {
	var sb strings.Builder
	sb.WriteString(p.Title)
	if p.Court != "" || p.Date != "" {
		fmt.Fprintf(&sb, " (%s", p.Court)
		if p.Date != "" {
			if p.Court != "" {
				sb.WriteString(", ")
			}
			sb.WriteString(p.Date)
		}
		sb.WriteString(")")
	}
	if p.CitationText != "" {
		fmt.Fprintf(&sb, " %s", p.CitationText)
	}
	if p.Summary != "" {
		sb.WriteString("\nSummary: ")
		sb.WriteString(p.Summary)
	}
	if len(p.KeyPoints) > 0 {
		sb.WriteString("\nKey points:")
		for _, kp := range p.KeyPoints {
			sb.WriteString("\n- ")
			sb.WriteString(kp)
		}
	}
	return truncateTokens(sb.String(), budget)
}

func truncateTokens(s string, budget int) string {
	if budget <= 0 {
		return ""
	}
	limit := budget * 4
	if limit >= len(s) {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
