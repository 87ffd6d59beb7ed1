// Package precedent resolves search queries and id lookups to precedent
// records, and owns the favorite flag for each record.
package precedent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Nit2312/NyaySarthi/internal/domain"
)

const (
	defaultLimit    = 10
	maxLimit        = 50
	defaultCacheTTL = 10 * time.Minute
)

// Query is a validated search request as sent to the Backend.
type Query struct {
	Text    string
	Filters domain.SearchFilters
	Limit   int
}

// Backend is the remote source of precedent records.
type Backend interface {
	SearchPrecedents(ctx context.Context, q Query) ([]domain.Precedent, error)
	GetPrecedent(ctx context.Context, id string) (domain.Precedent, error)
	Courts(ctx context.Context) ([]domain.Court, error)
	RecentCases(ctx context.Context, limit int) ([]domain.Precedent, error)
}

// FavoriteStore persists favorite flags across restarts.
type FavoriteStore interface {
	SaveFavorite(p domain.Precedent) error
	DeleteFavorite(id string) error
	ListFavorites() ([]domain.Precedent, error)
}

// Options configures a Repository. Zero values select defaults.
type Options struct {
	CacheTTL     time.Duration
	DefaultLimit int
	Favorites    FavoriteStore
	Logger       *zap.Logger
}

type entry struct {
	p        domain.Precedent
	detailed bool
}

// Repository caches records by id and overlays favorite state on every
// record it returns. Favorite state is addressed by id only, so toggling one
// record never disturbs the ordering of a result list.
type Repository struct {
	backend      Backend
	records      *cache.Cache
	group        singleflight.Group
	validate     *validator.Validate
	defaultLimit int
	logger       *zap.Logger

	favMu     sync.Mutex
	favorites map[string]domain.Precedent
	store     FavoriteStore
}

// New creates a Repository and loads persisted favorites.
func New(backend Backend, opts Options) (*Repository, error) {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.DefaultLimit <= 0 || opts.DefaultLimit > maxLimit {
		opts.DefaultLimit = defaultLimit
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := &Repository{
		backend:      backend,
		records:      cache.New(opts.CacheTTL, 2*opts.CacheTTL),
		validate:     validator.New(),
		defaultLimit: opts.DefaultLimit,
		logger:       opts.Logger.Named("precedent"),
		favorites:    make(map[string]domain.Precedent),
		store:        opts.Favorites,
	}

	if r.store != nil {
		favs, err := r.store.ListFavorites()
		if err != nil {
			return nil, fmt.Errorf("loading favorites: %w", err)
		}
		for _, p := range favs {
			r.favorites[p.ID] = p
		}
	}
	return r, nil
}

// Search returns at most limit records ordered by descending similarity.
// A non-positive limit selects the default.
func (r *Repository) Search(ctx context.Context, text string, filters domain.SearchFilters, limit int) ([]domain.Precedent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("search: empty query: %w", domain.ErrInvalidQuery)
	}
	if err := r.validate.Struct(filters); err != nil {
		return nil, fmt.Errorf("search: %v: %w", err, domain.ErrInvalidQuery)
	}
	if filters.YearFrom != 0 && filters.YearTo != 0 && filters.YearFrom > filters.YearTo {
		return nil, fmt.Errorf("search: year_from %d after year_to %d: %w", filters.YearFrom, filters.YearTo, domain.ErrInvalidQuery)
	}
	if limit <= 0 {
		limit = r.defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	results, err := r.backend.SearchPrecedents(ctx, Query{Text: text, Filters: filters, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("searching precedents: %w", err)
	}

	out := rank(results)
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		r.remember(out[i], false)
		out[i] = r.overlay(out[i])
	}
	r.logger.Debug("search", zap.String("query", text), zap.Int("results", len(out)))
	return out, nil
}

// Get returns the full record for id. Concurrent lookups of one id share a
// single backend call.
func (r *Repository) Get(ctx context.Context, id string) (domain.Precedent, error) {
	if id == "" {
		return domain.Precedent{}, fmt.Errorf("get: empty id: %w", domain.ErrNotFound)
	}
	if e, ok := r.cached(id); ok && e.detailed {
		return r.overlay(e.p), nil
	}

	v, err, _ := r.group.Do(id, func() (any, error) {
		detail, err := r.backend.GetPrecedent(ctx, id)
		prior, known := r.cached(id)
		if err != nil {
			// A record surfaced by search stays resolvable even when the
			// detail endpoint does not know it.
			if errors.Is(err, domain.ErrNotFound) && known {
				return prior.p, nil
			}
			return domain.Precedent{}, fmt.Errorf("getting precedent %s: %w", id, err)
		}
		detail = merge(prior.p, detail).Normalize()
		if detail.ID == "" {
			detail.ID = id
		}
		r.remember(detail, true)
		return detail, nil
	})
	if err != nil {
		return domain.Precedent{}, err
	}
	return r.overlay(v.(domain.Precedent)), nil
}

// Remember caches a record supplied by a caller (for example one carried
// over from an earlier search) without a backend round trip.
func (r *Repository) Remember(p domain.Precedent) {
	if p.ID == "" {
		return
	}
	r.remember(p.Normalize(), false)
}

// Known reports whether id can be resolved without a backend call.
func (r *Repository) Known(id string) bool {
	if _, ok := r.cached(id); ok {
		return true
	}
	r.favMu.Lock()
	defer r.favMu.Unlock()
	_, ok := r.favorites[id]
	return ok
}

// ToggleFavorite flips the favorite flag of a known record and returns the
// updated record. Calls apply in call order; the last one wins.
func (r *Repository) ToggleFavorite(id string) (domain.Precedent, error) {
	r.favMu.Lock()
	defer r.favMu.Unlock()

	if fav, ok := r.favorites[id]; ok {
		if r.store != nil {
			if err := r.store.DeleteFavorite(id); err != nil {
				return domain.Precedent{}, fmt.Errorf("removing favorite %s: %w", id, err)
			}
		}
		delete(r.favorites, id)
		if e, ok := r.cached(id); ok {
			fav = e.p
		}
		fav.IsFavorite = false
		return fav, nil
	}

	e, ok := r.cached(id)
	if !ok {
		return domain.Precedent{}, fmt.Errorf("toggling favorite %s: %w", id, domain.ErrNotFound)
	}
	p := e.p
	p.IsFavorite = true
	if r.store != nil {
		if err := r.store.SaveFavorite(p); err != nil {
			return domain.Precedent{}, fmt.Errorf("saving favorite %s: %w", id, err)
		}
	}
	r.favorites[id] = p
	return p, nil
}

// Favorites lists favorite records ordered by title.
func (r *Repository) Favorites() []domain.Precedent {
	r.favMu.Lock()
	out := make([]domain.Precedent, 0, len(r.favorites))
	for _, p := range r.favorites {
		p.IsFavorite = true
		out = append(out, p)
	}
	r.favMu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Courts lists the courts the backend can search.
func (r *Repository) Courts(ctx context.Context) ([]domain.Court, error) {
	courts, err := r.backend.Courts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing courts: %w", err)
	}
	return courts, nil
}

// Recent returns recently added cases in backend order.
func (r *Repository) Recent(ctx context.Context, limit int) ([]domain.Precedent, error) {
	if limit <= 0 {
		limit = r.defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	cases, err := r.backend.RecentCases(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent cases: %w", err)
	}
	if len(cases) > limit {
		cases = cases[:limit]
	}
	out := make([]domain.Precedent, len(cases))
	for i, p := range cases {
		p = p.Normalize()
		r.remember(p, false)
		out[i] = r.overlay(p)
	}
	return out, nil
}

func (r *Repository) cached(id string) (entry, bool) {
	if x, found := r.records.Get(id); found {
		return x.(entry), true
	}
	return entry{}, false
}

func (r *Repository) remember(p domain.Precedent, detailed bool) {
	if p.ID == "" {
		return
	}
	if !detailed {
		if e, ok := r.cached(p.ID); ok && e.detailed {
			// Keep the full record but show the latest search's context.
			p, detailed = withSearchContext(e.p, p), true
		}
	}
	p.IsFavorite = false
	r.records.Set(p.ID, entry{p: p, detailed: detailed}, cache.DefaultExpiration)
}

func (r *Repository) overlay(p domain.Precedent) domain.Precedent {
	r.favMu.Lock()
	_, fav := r.favorites[p.ID]
	r.favMu.Unlock()
	p.IsFavorite = fav
	return p
}

// rank clamps similarity and orders by it, highest first. Ties keep backend
// order.
func rank(in []domain.Precedent) []domain.Precedent {
	out := make([]domain.Precedent, len(in))
	for i, p := range in {
		out[i] = p.Normalize()
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out
}

// merge lays a detail response over a search result. The search context
// (similarity, relevance, how it helps) always wins: the detail endpoint
// reports a fixed similarity that says nothing about the query.
func merge(search, detail domain.Precedent) domain.Precedent {
	if search.ID == "" {
		return detail
	}
	detail = withSearchContext(detail, search)
	if detail.Title == "" {
		detail.Title = search.Title
	}
	if len(detail.Tags) == 0 {
		detail.Tags = search.Tags
	}
	return detail
}

func withSearchContext(p, search domain.Precedent) domain.Precedent {
	p.Similarity = search.Similarity
	if search.Relevance != "" {
		p.Relevance = search.Relevance
	}
	if search.HowItHelps != "" {
		p.HowItHelps = search.HowItHelps
	}
	return p
}
