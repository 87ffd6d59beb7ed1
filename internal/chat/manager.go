// Package chat orchestrates turn-taking between a user and the assistant.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Nit2312/NyaySarthi/internal/composer"
	"github.com/Nit2312/NyaySarthi/internal/domain"
	"github.com/Nit2312/NyaySarthi/internal/messages"
)

const defaultTimeout = 60 * time.Second

// Request is what the Completer receives for one exchange.
type Request struct {
	SessionID string
	Content   string
	// Context is the composed completion context (history window and, for
	// scoped sessions, the bound precedent).
	Context composer.Context
	// Precedent is set for sessions scoped to a precedent.
	Precedent *domain.Precedent
}

// Reply is the assistant's answer to one Request.
type Reply struct {
	Content string
	Sources []domain.Citation
}

// Completer produces an assistant reply. Implementations must honour ctx.
type Completer interface {
	Complete(ctx context.Context, req Request) (Reply, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (Reply, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (Reply, error) {
	return f(ctx, req)
}

// Observer is told about every finished exchange.
type Observer interface {
	ObserveExchange(outcome string, d time.Duration)
}

// Options configures a Manager. Zero values select defaults.
type Options struct {
	Timeout  time.Duration
	Composer *composer.Composer
	Logger   *zap.Logger
	Observer Observer
}

// Session is a point-in-time view of a chat session.
type Session struct {
	ID          string    `json:"id"`
	PrecedentID string    `json:"precedent_id,omitempty"`
	Pending     bool      `json:"pending"`
	CreatedAt   time.Time `json:"created_at"`
}

// OpenOptions describes a new session.
type OpenOptions struct {
	// ID resumes a log that already exists in the store. Empty means a
	// fresh id.
	ID string
	// Precedent scopes the session to one precedent.
	Precedent *domain.Precedent
	// Greeting, when non-empty and the log is empty, is appended as the
	// first assistant message.
	Greeting string
}

type session struct {
	id        string
	precedent *domain.Precedent
	pending   *Exchange
	createdAt time.Time
}

// Manager owns every live session. At most one exchange is outstanding per
// session; sessions do not affect each other.
type Manager struct {
	store     messages.Store
	completer Completer
	composer  *composer.Composer
	timeout   time.Duration
	logger    *zap.Logger
	observer  Observer

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*session
}

// NewManager creates a Manager that records turns in store and asks
// completer for replies.
func NewManager(store messages.Store, completer Completer, opts Options) *Manager {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Composer == nil {
		opts.Composer = composer.New(0, 0)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:     store,
		completer: completer,
		composer:  opts.Composer,
		timeout:   opts.Timeout,
		logger:    opts.Logger.Named("chat"),
		observer:  opts.Observer,
		base:      base,
		cancel:    cancel,
		sessions:  make(map[string]*session),
	}
}

// Open creates a session and returns its view.
func (m *Manager) Open(opts OpenOptions) (Session, error) {
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; ok {
		return Session{}, fmt.Errorf("session %s already open: %w", id, domain.ErrSessionBusy)
	}
	if err := m.store.Create(id); err != nil {
		return Session{}, fmt.Errorf("creating session log: %w", err)
	}

	s := &session{id: id, createdAt: time.Now().UTC()}
	if opts.Precedent != nil {
		p := *opts.Precedent
		s.precedent = &p
	}

	if opts.Greeting != "" {
		existing, err := m.store.List(id)
		if err != nil {
			return Session{}, fmt.Errorf("reading session log: %w", err)
		}
		if len(existing) == 0 {
			greeting := domain.Message{Role: domain.RoleAssistant, Content: opts.Greeting}
			if _, err := m.store.Append(id, greeting); err != nil {
				return Session{}, fmt.Errorf("appending greeting: %w", err)
			}
		}
	}

	m.sessions[id] = s
	m.logger.Debug("session opened", zap.String("session_id", id), zap.Bool("scoped", s.precedent != nil))
	return s.view(), nil
}

// Close destroys a live session. An outstanding exchange is abandoned: its
// reply, if any, is discarded.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("closing %s: %w", id, domain.ErrInvalidSession)
	}
	delete(m.sessions, id)
	return nil
}

// Session returns the current view of a live session.
func (m *Manager) Session(id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("session %s: %w", id, domain.ErrInvalidSession)
	}
	return s.view(), nil
}

// Sessions lists every live session.
func (m *Manager) Sessions() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.view())
	}
	return out
}

// Messages returns the session's log in append order.
func (m *Manager) Messages(id string) ([]domain.Message, error) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrInvalidSession)
	}
	return m.store.List(id)
}

// Send records the user's text and starts one asynchronous exchange.
//
// The user message is appended before Send returns, so the log reflects what
// was sent even if the reply later fails. Send is not idempotent: calling it
// again after a failure records a second user message.
func (m *Manager) Send(sessionID, text string) (*Exchange, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("send: %w", domain.ErrEmptyInput)
	}

	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("send to %s: %w", sessionID, domain.ErrInvalidSession)
	}
	if s.pending != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("send to %s: %w", sessionID, domain.ErrSessionBusy)
	}
	ex := newExchange(sessionID, domain.Message{Role: domain.RoleUser, Content: text})
	s.pending = ex
	precedent := s.precedent
	m.mu.Unlock()

	// The reservation keeps other sends to this session out while the log
	// is read and written; other sessions are not blocked.
	history, err := m.store.List(sessionID)
	if err != nil {
		m.release(s, ex)
		return nil, fmt.Errorf("reading history: %w", err)
	}
	id, err := m.store.Append(sessionID, ex.Request)
	if err != nil {
		m.release(s, ex)
		return nil, fmt.Errorf("appending user message: %w", err)
	}
	ex.Request.ID = id
	ex.Request.SessionID = sessionID
	ex.Request.Seq = len(history)

	req := Request{
		SessionID: sessionID,
		Content:   text,
		Context:   m.composer.Compose(history, precedent),
		Precedent: precedent,
	}
	m.wg.Add(1)
	go m.run(s, ex, req)
	return ex, nil
}

// Shutdown abandons outstanding exchanges and waits for their goroutines.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) run(s *session, ex *Exchange, req Request) {
	defer m.wg.Done()
	start := time.Now()

	ctx, cancel := context.WithTimeout(m.base, m.timeout)
	reply, err := m.complete(ctx, req)
	// A reply that raced the deadline is discarded: the exchange either lands
	// completely or not at all.
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	cancel()

	if err != nil {
		err = classify(err)
		m.release(s, ex)
		m.logger.Warn("exchange failed",
			zap.String("session_id", ex.SessionID),
			zap.String("kind", string(domain.KindOf(err))),
			zap.Error(err),
		)
		m.observe("error", start)
		ex.finish(domain.Message{}, err)
		return
	}

	assistant := domain.Message{
		Role:    domain.RoleAssistant,
		Content: reply.Content,
		Sources: OrderCitations(reply.Sources),
	}

	m.mu.Lock()
	if cur, ok := m.sessions[ex.SessionID]; !ok || cur != s || s.pending != ex {
		m.mu.Unlock()
		m.observe("abandoned", start)
		ex.finish(domain.Message{}, fmt.Errorf("session %s closed during exchange: %w", ex.SessionID, domain.ErrInvalidSession))
		return
	}
	id, err := m.store.Append(ex.SessionID, assistant)
	s.pending = nil
	m.mu.Unlock()

	if err != nil {
		m.observe("error", start)
		ex.finish(domain.Message{}, fmt.Errorf("appending reply: %w", err))
		return
	}

	assistant.ID = id
	assistant.SessionID = ex.SessionID
	assistant.Seq = ex.Request.Seq + 1
	m.observe("ok", start)
	ex.finish(assistant, nil)
}

// complete asks the Completer for a reply and stops waiting when ctx ends,
// whether or not the Completer honours it.
func (m *Manager) complete(ctx context.Context, req Request) (Reply, error) {
	type result struct {
		reply Reply
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		reply, err := m.completer.Complete(ctx, req)
		ch <- result{reply, err}
	}()
	select {
	case r := <-ch:
		return r.reply, r.err
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

func (m *Manager) release(s *session, ex *Exchange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.pending == ex {
		s.pending = nil
	}
}

func (m *Manager) observe(outcome string, start time.Time) {
	if m.observer != nil {
		m.observer.ObserveExchange(outcome, time.Since(start))
	}
}

// classify makes sure deadline and cancellation surface as retryable
// transport failures.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("reply timed out: %w: %w", domain.ErrTransport, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("exchange cancelled: %w: %w", domain.ErrTransport, err)
	}
	return err
}

func (s *session) view() Session {
	v := Session{ID: s.id, Pending: s.pending != nil, CreatedAt: s.createdAt}
	if s.precedent != nil {
		v.PrecedentID = s.precedent.ID
	}
	return v
}
