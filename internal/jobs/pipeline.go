// Package jobs tracks uploaded documents through their analysis lifecycle:
// Uploading, Processing, then Completed or Error.
package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Nit2312/NyaySarthi/internal/domain"
)

// ErrJobFinished is returned by Advance on a Completed or Error job.
var ErrJobFinished = errors.New("job already finished")

const (
	defaultMaxFileSize       = 10 << 20
	defaultTransitionTimeout = 2 * time.Minute
	defaultAnalysisType      = "summary"
)

// DefaultAcceptedTypes are the document types the analyzer understands.
var DefaultAcceptedTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"text/plain",
}

var extensionTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
}

// Document is what an Analyzer receives.
type Document struct {
	Filename     string
	MimeType     string
	AnalysisType string
	Content      []byte
}

// Analyzer turns document content into a DocumentAnalysis. Implementations
// must honour ctx.
type Analyzer interface {
	Analyze(ctx context.Context, doc Document) (domain.DocumentAnalysis, error)
}

// Source opens the content of an uploaded file.
type Source func() (io.ReadCloser, error)

// FromBytes returns a Source over b.
func FromBytes(b []byte) Source {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(b)), nil
	}
}

// Event reports one job transition or removal.
type Event struct {
	JobID   string           `json:"job_id"`
	From    domain.JobStatus `json:"from,omitempty"`
	To      domain.JobStatus `json:"to,omitempty"`
	Removed bool             `json:"removed,omitempty"`
	Job     domain.UploadJob `json:"job"`
	At      time.Time        `json:"at"`
}

// Stats is derived from the current job set on every call.
type Stats struct {
	Total          int   `json:"total"`
	Completed      int   `json:"completed"`
	Failed         int   `json:"failed"`
	InFlight       int   `json:"in_flight"`
	TotalBytes     int64 `json:"total_bytes"`
	ProcessedBytes int64 `json:"processed_bytes"`
}

// Options configures a Pipeline. Zero values select defaults.
type Options struct {
	MaxFileSize       int64
	AcceptedTypes     []string
	TransitionTimeout time.Duration
	AnalysisType      string
	Logger            *zap.Logger
}

type job struct {
	// step serializes Advance calls on this job.
	step sync.Mutex

	rec     domain.UploadJob
	open    Source
	content []byte
	claimed bool
}

// Pipeline owns the job set. Each job advances independently; transitions of
// a single job are strictly sequential.
type Pipeline struct {
	analyzer     Analyzer
	validate     *validator.Validate
	maxSize      int64
	accepted     map[string]bool
	timeout      time.Duration
	analysisType string
	logger       *zap.Logger
	now          func() time.Time

	mu       sync.RWMutex
	jobs     map[string]*job
	order    []string
	byRef    map[string]string
	selected string

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int

	wake chan struct{}
}

// NewPipeline creates an empty Pipeline that analyzes documents with analyzer.
func NewPipeline(analyzer Analyzer, opts Options) *Pipeline {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = defaultMaxFileSize
	}
	if len(opts.AcceptedTypes) == 0 {
		opts.AcceptedTypes = DefaultAcceptedTypes
	}
	if opts.TransitionTimeout <= 0 {
		opts.TransitionTimeout = defaultTransitionTimeout
	}
	if opts.AnalysisType == "" {
		opts.AnalysisType = defaultAnalysisType
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	accepted := make(map[string]bool, len(opts.AcceptedTypes))
	for _, t := range opts.AcceptedTypes {
		accepted[normalizeType(t)] = true
	}

	return &Pipeline{
		analyzer:     analyzer,
		validate:     validator.New(),
		maxSize:      opts.MaxFileSize,
		accepted:     accepted,
		timeout:      opts.TransitionTimeout,
		analysisType: opts.AnalysisType,
		logger:       opts.Logger.Named("jobs"),
		now:          time.Now,
		jobs:         make(map[string]*job),
		byRef:        make(map[string]string),
		subs:         make(map[int]chan Event),
		wake:         make(chan struct{}, 1),
	}
}

// MaxFileSize is the largest accepted upload in bytes.
func (p *Pipeline) MaxFileSize() int64 { return p.maxSize }

// Submit validates meta and creates a job in state Uploading. Nothing is
// created when validation fails. A non-empty ClientRef that matches a live
// job returns that job instead of creating another.
func (p *Pipeline) Submit(meta domain.FileMeta, open Source) (domain.UploadJob, error) {
	meta.MimeType = resolveType(meta.MimeType, meta.Filename)
	if err := p.validate.Struct(meta); err != nil {
		return domain.UploadJob{}, fmt.Errorf("submit %q: %v: %w", meta.Filename, err, domain.ErrUnsupportedType)
	}
	if meta.SizeBytes > p.maxSize {
		return domain.UploadJob{}, fmt.Errorf("submit %q: %d bytes exceeds %d: %w", meta.Filename, meta.SizeBytes, p.maxSize, domain.ErrFileTooLarge)
	}
	if !p.accepted[meta.MimeType] {
		return domain.UploadJob{}, fmt.Errorf("submit %q: type %s: %w", meta.Filename, meta.MimeType, domain.ErrUnsupportedType)
	}

	p.mu.Lock()
	if meta.ClientRef != "" {
		if id, ok := p.byRef[meta.ClientRef]; ok {
			if j, ok := p.jobs[id]; ok {
				rec := j.rec
				p.mu.Unlock()
				return rec, nil
			}
		}
	}

	now := p.now().UTC()
	j := &job{
		rec: domain.UploadJob{
			ID:        uuid.New().String(),
			Filename:  meta.Filename,
			SizeBytes: meta.SizeBytes,
			MimeType:  meta.MimeType,
			ClientRef: meta.ClientRef,
			Status:    domain.JobUploading,
			CreatedAt: now,
			UpdatedAt: now,
		},
		open: open,
	}
	p.jobs[j.rec.ID] = j
	p.order = append(p.order, j.rec.ID)
	if meta.ClientRef != "" {
		p.byRef[meta.ClientRef] = j.rec.ID
	}
	rec := j.rec
	p.mu.Unlock()

	p.logger.Info("job submitted",
		zap.String("job_id", rec.ID),
		zap.String("filename", rec.Filename),
		zap.Int64("size_bytes", rec.SizeBytes),
	)
	p.publish(Event{JobID: rec.ID, To: rec.Status, Job: rec, At: now})
	p.signal()
	return rec, nil
}

// Advance performs the next transition of a job: Uploading to Processing
// once the content is received, or Processing to Completed/Error once the
// analyzer answers. A transition that outlives the configured timeout moves
// the job to Error. Advance on a terminal job returns ErrJobFinished.
func (p *Pipeline) Advance(ctx context.Context, id string) (domain.UploadJob, error) {
	j, err := p.lookup(id)
	if err != nil {
		return domain.UploadJob{}, err
	}

	j.step.Lock()
	defer j.step.Unlock()

	cur := p.snapshot(j)
	if cur.Status.Terminal() {
		return cur, fmt.Errorf("advance %s (%s): %w", id, cur.Status, ErrJobFinished)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	switch cur.Status {
	case domain.JobUploading:
		content, err := within(ctx, func(context.Context) ([]byte, error) { return p.receive(j) })
		if err != nil {
			return p.fail(j, cur.Status, err)
		}
		j.content = content
		return p.transition(j, domain.JobProcessing, func(rec *domain.UploadJob) {
			rec.SizeBytes = int64(len(content))
		})

	case domain.JobProcessing:
		doc := Document{
			Filename:     cur.Filename,
			MimeType:     cur.MimeType,
			AnalysisType: p.analysisType,
			Content:      j.content,
		}
		analysis, err := within(ctx, func(ctx context.Context) (domain.DocumentAnalysis, error) {
			return p.analyzer.Analyze(ctx, doc)
		})
		if err != nil {
			return p.fail(j, cur.Status, err)
		}
		j.content = nil
		return p.transition(j, domain.JobCompleted, func(rec *domain.UploadJob) {
			a := analysis
			rec.Result = &a
		})
	}
	return cur, fmt.Errorf("advance %s: unexpected status %q", id, cur.Status)
}

// Process advances a job until it is terminal.
func (p *Pipeline) Process(ctx context.Context, id string) (domain.UploadJob, error) {
	for {
		rec, err := p.Advance(ctx, id)
		if err != nil {
			if errors.Is(err, ErrJobFinished) {
				return rec, nil
			}
			return rec, err
		}
		if rec.Status.Terminal() {
			return rec, nil
		}
	}
}

// Get returns a snapshot of one job.
func (p *Pipeline) Get(id string) (domain.UploadJob, error) {
	j, err := p.lookup(id)
	if err != nil {
		return domain.UploadJob{}, err
	}
	return p.snapshot(j), nil
}

// List returns every job in submission order.
func (p *Pipeline) List() []domain.UploadJob {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.UploadJob, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.jobs[id].rec)
	}
	return out
}

// Remove deletes a job in any state and clears the selection if it pointed
// at it. A transition still running for the job is discarded.
func (p *Pipeline) Remove(id string) error {
	p.mu.Lock()
	j, ok := p.jobs[id]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("remove %s: %w", id, domain.ErrNotFound)
	}
	delete(p.jobs, id)
	for i, oid := range p.order {
		if oid == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	if j.rec.ClientRef != "" && p.byRef[j.rec.ClientRef] == id {
		delete(p.byRef, j.rec.ClientRef)
	}
	if p.selected == id {
		p.selected = ""
	}
	rec := j.rec
	p.mu.Unlock()

	p.logger.Info("job removed", zap.String("job_id", id), zap.String("status", string(rec.Status)))
	p.publish(Event{JobID: id, Removed: true, Job: rec, At: p.now().UTC()})
	return nil
}

// Select marks a job as the one being inspected.
func (p *Pipeline) Select(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.jobs[id]; !ok {
		return fmt.Errorf("select %s: %w", id, domain.ErrNotFound)
	}
	p.selected = id
	return nil
}

// Selected returns the inspected job, if any.
func (p *Pipeline) Selected() (domain.UploadJob, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	j, ok := p.jobs[p.selected]
	if !ok {
		return domain.UploadJob{}, false
	}
	return j.rec, true
}

// Stats aggregates the current job set.
func (p *Pipeline) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var s Stats
	for _, j := range p.jobs {
		s.Total++
		s.TotalBytes += j.rec.SizeBytes
		switch j.rec.Status {
		case domain.JobCompleted:
			s.Completed++
			s.ProcessedBytes += j.rec.SizeBytes
		case domain.JobError:
			s.Failed++
		default:
			s.InFlight++
		}
	}
	return s
}

// Subscribe returns a channel of job events and a function that ends the
// subscription. Events are dropped for subscribers that fall behind.
func (p *Pipeline) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	p.subMu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	p.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.subMu.Lock()
			delete(p.subs, id)
			p.subMu.Unlock()
			close(ch)
		})
	}
}

func (p *Pipeline) publish(ev Event) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (p *Pipeline) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// claimNext hands the oldest unclaimed, non-terminal job to a worker.
func (p *Pipeline) claimNext() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range p.order {
		j := p.jobs[id]
		if !j.claimed && !j.rec.Status.Terminal() {
			j.claimed = true
			return id, true
		}
	}
	return "", false
}

func (p *Pipeline) release(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if j, ok := p.jobs[id]; ok {
		j.claimed = false
	}
}

func (p *Pipeline) lookup(id string) (*job, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	j, ok := p.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	return j, nil
}

func (p *Pipeline) snapshot(j *job) domain.UploadJob {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return j.rec
}

func (p *Pipeline) receive(j *job) ([]byte, error) {
	if j.open == nil {
		return nil, errors.New("no content attached")
	}
	rc, err := j.open()
	if err != nil {
		return nil, fmt.Errorf("opening content: %w", err)
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, p.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(content)) > p.maxSize {
		return nil, fmt.Errorf("content exceeds %d bytes: %w", p.maxSize, domain.ErrFileTooLarge)
	}
	return content, nil
}

func (p *Pipeline) fail(j *job, from domain.JobStatus, cause error) (domain.UploadJob, error) {
	j.content = nil
	p.logger.Warn("job failed",
		zap.String("job_id", j.rec.ID),
		zap.String("from", string(from)),
		zap.String("kind", string(domain.KindOf(cause))),
		zap.Error(cause),
	)
	return p.transition(j, domain.JobError, func(rec *domain.UploadJob) {
		rec.LastError = cause.Error()
	})
}

// transition applies one state change. The write is discarded when the job
// was removed while the step was running.
func (p *Pipeline) transition(j *job, to domain.JobStatus, apply func(*domain.UploadJob)) (domain.UploadJob, error) {
	p.mu.Lock()
	if cur, ok := p.jobs[j.rec.ID]; !ok || cur != j {
		rec := j.rec
		p.mu.Unlock()
		return rec, fmt.Errorf("job %s removed during %s: %w", rec.ID, rec.Status, domain.ErrNotFound)
	}
	from := j.rec.Status
	if !from.CanTransition(to) {
		rec := j.rec
		p.mu.Unlock()
		return rec, fmt.Errorf("job %s: illegal transition %s -> %s", rec.ID, from, to)
	}
	now := p.now().UTC()
	j.rec.Status = to
	j.rec.UpdatedAt = now
	if apply != nil {
		apply(&j.rec)
	}
	rec := j.rec
	p.mu.Unlock()

	p.logger.Info("job transition",
		zap.String("job_id", rec.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	p.publish(Event{JobID: rec.ID, From: from, To: to, Job: rec, At: now})
	return rec, nil
}

// within runs fn and gives up when ctx ends, even if fn ignores ctx.
func within[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("transition timed out: %w: %w", domain.ErrTransport, ctx.Err())
	}
}

func normalizeType(t string) string {
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return strings.ToLower(mt)
	}
	return strings.ToLower(strings.TrimSpace(t))
}

// resolveType normalizes a declared type, falling back to the filename
// extension when the declared type is missing or generic.
func resolveType(declared, filename string) string {
	t := normalizeType(declared)
	if t == "" || t == "application/octet-stream" {
		if byExt, ok := extensionTypes[strings.ToLower(filepath.Ext(filename))]; ok {
			return byExt
		}
	}
	return t
}
