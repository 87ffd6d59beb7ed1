// Package navigation opens chat sessions scoped to a single precedent.
package navigation

import (
	"context"
	"fmt"

	"github.com/Nit2312/NyaySarthi/internal/chat"
	"github.com/Nit2312/NyaySarthi/internal/domain"
)

// Resolver looks up precedents. *precedent.Repository satisfies it.
type Resolver interface {
	Get(ctx context.Context, id string) (domain.Precedent, error)
	Remember(p domain.Precedent)
}

// Opener creates chat sessions. *chat.Manager satisfies it.
type Opener interface {
	Open(opts chat.OpenOptions) (chat.Session, error)
}

// Scoped is a chat session bound to one precedent.
type Scoped struct {
	Session   chat.Session     `json:"session"`
	Precedent domain.Precedent `json:"precedent"`
}

// Navigator bridges a selected precedent into its own chat session.
type Navigator struct {
	resolver Resolver
	opener   Opener
}

// New returns a Navigator.
func New(resolver Resolver, opener Opener) *Navigator {
	return &Navigator{resolver: resolver, opener: opener}
}

// Open creates a session scoped to precedentID. A payload whose id matches
// seeds the session without a lookup; otherwise the precedent is fetched.
func (n *Navigator) Open(ctx context.Context, precedentID string, payload *domain.Precedent) (Scoped, error) {
	if precedentID == "" && payload != nil {
		precedentID = payload.ID
	}
	if precedentID == "" {
		return Scoped{}, fmt.Errorf("open: no precedent id: %w", domain.ErrNotFound)
	}

	var p domain.Precedent
	if payload != nil && payload.ID == precedentID {
		p = payload.Normalize()
		n.resolver.Remember(p)
	} else {
		var err error
		p, err = n.resolver.Get(ctx, precedentID)
		if err != nil {
			return Scoped{}, fmt.Errorf("open %s: %w", precedentID, err)
		}
	}

	s, err := n.opener.Open(chat.OpenOptions{Precedent: &p, Greeting: Greeting(p)})
	if err != nil {
		return Scoped{}, fmt.Errorf("opening scoped session: %w", err)
	}
	return Scoped{Session: s, Precedent: p}, nil
}

// Greeting is the first assistant message of a scoped session.
func Greeting(p domain.Precedent) string {
	return fmt.Sprintf("Hello! I'm here to help you understand the case \"%s\". "+
		"You can ask me questions about the legal principles, how this case applies to your situation, "+
		"or any other legal queries.", p.Title)
}
