package precedent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nit2312/NyaySarthi/internal/domain"
)

type fakeBackend struct {
	results  []domain.Precedent
	details  map[string]domain.Precedent
	getErr   error
	getCalls atomic.Int32
	gate     chan struct{}

	mu      sync.Mutex
	queries []Query
}

func (f *fakeBackend) SearchPrecedents(_ context.Context, q Query) ([]domain.Precedent, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	return f.results, nil
}

func (f *fakeBackend) GetPrecedent(_ context.Context, id string) (domain.Precedent, error) {
	f.getCalls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.getErr != nil {
		return domain.Precedent{}, f.getErr
	}
	p, ok := f.details[id]
	if !ok {
		return domain.Precedent{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeBackend) Courts(context.Context) ([]domain.Court, error) {
	return []domain.Court{{Name: "Supreme Court of India", Type: "Supreme Court", Jurisdiction: "India"}}, nil
}

func (f *fakeBackend) RecentCases(_ context.Context, limit int) ([]domain.Precedent, error) {
	return f.results, nil
}

type memFavorites struct {
	mu    sync.Mutex
	saved map[string]domain.Precedent
	fail  bool
}

func (m *memFavorites) SaveFavorite(p domain.Precedent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("disk full")
	}
	m.saved[p.ID] = p
	return nil
}

func (m *memFavorites) DeleteFavorite(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, id)
	return nil
}

func (m *memFavorites) ListFavorites() ([]domain.Precedent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Precedent
	for _, p := range m.saved {
		out = append(out, p)
	}
	return out, nil
}

func contractCases() []domain.Precedent {
	return []domain.Precedent{
		{ID: "1", Title: "Satyabrata Ghose v. Mugneeram Bangur", Similarity: 0.72},
		{ID: "2", Title: "Hadley v. Baxendale", Similarity: 0.91},
		{ID: "3", Title: "Mohori Bibee v. Dharmodas Ghose", Similarity: 1.4},
		{ID: "4", Title: "Carlill v. Carbolic Smoke Ball", Similarity: 0.72},
		{ID: "5", Title: "Balfour v. Balfour", Similarity: 0.3},
	}
}

func newRepo(t *testing.T, b Backend, opts Options) *Repository {
	t.Helper()
	r, err := New(b, opts)
	require.NoError(t, err)
	return r
}

func TestSearch_OrdersAndLimits(t *testing.T) {
	b := &fakeBackend{results: contractCases()}
	r := newRepo(t, b, Options{})

	got, err := r.Search(context.Background(), "breach of contract", domain.SearchFilters{}, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "3", got[0].ID)
	assert.Equal(t, 1.0, got[0].Similarity, "similarity must be clamped")
	assert.Equal(t, "2", got[1].ID)
	assert.Equal(t, "1", got[2].ID, "ties keep backend order")
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Similarity, got[i].Similarity)
	}

	require.Len(t, b.queries, 1)
	assert.Equal(t, 3, b.queries[0].Limit)
}

func TestSearch_ThenGet(t *testing.T) {
	b := &fakeBackend{
		results: contractCases(),
		details: map[string]domain.Precedent{
			"1": {ID: "1", Title: "Satyabrata Ghose v. Mugneeram Bangur", Similarity: 0.95, Relevance: "Detailed view"},
			"3": {ID: "3", Title: "Mohori Bibee v. Dharmodas Ghose", Similarity: 0.95, FullText: "A minor's agreement is void.", Judges: []string{"Lord Macnaghten"}},
		},
	}
	r := newRepo(t, b, Options{})

	results, err := r.Search(context.Background(), "breach of contract", domain.SearchFilters{}, 5)
	require.NoError(t, err)

	for _, want := range []domain.Precedent{results[0], results[2]} {
		got, err := r.Get(context.Background(), want.ID)
		require.NoError(t, err)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Title, got.Title)
		assert.Equal(t, want.Similarity, got.Similarity, "detail must keep the search similarity of %s", want.ID)
	}

	got, err := r.Get(context.Background(), "3")
	require.NoError(t, err)
	assert.Equal(t, "A minor's agreement is void.", got.FullText)
	assert.Equal(t, int32(2), b.getCalls.Load(), "detailed records should be served from cache")
}

func TestGet_ThenSearchAdoptsSearchSimilarity(t *testing.T) {
	b := &fakeBackend{
		results: contractCases(),
		details: map[string]domain.Precedent{
			"1": {ID: "1", Title: "Satyabrata Ghose v. Mugneeram Bangur", Similarity: 0.95, FullText: "Frustration of contract."},
		},
	}
	r := newRepo(t, b, Options{})

	got, err := r.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, 0.95, got.Similarity)

	_, err = r.Search(context.Background(), "frustration", domain.SearchFilters{}, 5)
	require.NoError(t, err)

	got, err = r.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, 0.72, got.Similarity)
	assert.Equal(t, "Frustration of contract.", got.FullText, "full record survives a later search")
	assert.Equal(t, int32(1), b.getCalls.Load())
}

func TestSearch_InvalidQuery(t *testing.T) {
	r := newRepo(t, &fakeBackend{}, Options{})

	_, err := r.Search(context.Background(), "   ", domain.SearchFilters{}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)

	_, err = r.Search(context.Background(), "bail", domain.SearchFilters{YearFrom: 2020, YearTo: 2010}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)

	_, err = r.Search(context.Background(), "bail", domain.SearchFilters{YearFrom: 1200}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)
}

func TestSearch_DefaultAndMaxLimit(t *testing.T) {
	b := &fakeBackend{}
	r := newRepo(t, b, Options{DefaultLimit: 7})

	_, err := r.Search(context.Background(), "bail", domain.SearchFilters{}, 0)
	require.NoError(t, err)
	_, err = r.Search(context.Background(), "bail", domain.SearchFilters{}, 1000)
	require.NoError(t, err)

	require.Len(t, b.queries, 2)
	assert.Equal(t, 7, b.queries[0].Limit)
	assert.Equal(t, maxLimit, b.queries[1].Limit)
}

func TestGet_NotFound(t *testing.T) {
	r := newRepo(t, &fakeBackend{}, Options{})
	_, err := r.Get(context.Background(), "404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGet_TransportErrorSurfaces(t *testing.T) {
	r := newRepo(t, &fakeBackend{getErr: domain.ErrTransport}, Options{})
	_, err := r.Get(context.Background(), "1")
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestGet_SharesConcurrentLookups(t *testing.T) {
	b := &fakeBackend{
		details: map[string]domain.Precedent{"9": {ID: "9", Title: "Puttaswamy"}},
		gate:    make(chan struct{}),
	}
	r := newRepo(t, b, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := r.Get(context.Background(), "9")
			assert.NoError(t, err)
			assert.Equal(t, "Puttaswamy", p.Title)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(b.gate)
	wg.Wait()

	assert.LessOrEqual(t, b.getCalls.Load(), int32(5))
	assert.GreaterOrEqual(t, b.getCalls.Load(), int32(1))
}

func TestToggleFavorite_Idempotence(t *testing.T) {
	store := &memFavorites{saved: map[string]domain.Precedent{}}
	r := newRepo(t, &fakeBackend{results: contractCases()}, Options{Favorites: store})

	before, err := r.Search(context.Background(), "contract", domain.SearchFilters{}, 0)
	require.NoError(t, err)

	p, err := r.ToggleFavorite("2")
	require.NoError(t, err)
	assert.True(t, p.IsFavorite)
	assert.Contains(t, store.saved, "2")

	p, err = r.ToggleFavorite("2")
	require.NoError(t, err)
	assert.False(t, p.IsFavorite)
	assert.NotContains(t, store.saved, "2")

	_, err = r.ToggleFavorite("2")
	require.NoError(t, err)

	after, err := r.Search(context.Background(), "contract", domain.SearchFilters{}, 0)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID, "favorites must not change ordering")
		assert.Equal(t, before[i].Similarity, after[i].Similarity)
		assert.Equal(t, after[i].ID == "2", after[i].IsFavorite)
	}
}

func TestToggleFavorite_UnknownID(t *testing.T) {
	r := newRepo(t, &fakeBackend{}, Options{})
	_, err := r.ToggleFavorite("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestToggleFavorite_StoreFailureKeepsState(t *testing.T) {
	store := &memFavorites{saved: map[string]domain.Precedent{}, fail: true}
	r := newRepo(t, &fakeBackend{}, Options{Favorites: store})
	r.Remember(domain.Precedent{ID: "7", Title: "Maneka Gandhi"})

	_, err := r.ToggleFavorite("7")
	require.Error(t, err)
	assert.Empty(t, r.Favorites())
}

func TestFavoritesLoadedFromStore(t *testing.T) {
	store := &memFavorites{saved: map[string]domain.Precedent{
		"7": {ID: "7", Title: "Maneka Gandhi v. Union of India"},
	}}
	r := newRepo(t, &fakeBackend{}, Options{Favorites: store})

	assert.True(t, r.Known("7"))
	favs := r.Favorites()
	require.Len(t, favs, 1)
	assert.True(t, favs[0].IsFavorite)

	p, err := r.ToggleFavorite("7")
	require.NoError(t, err)
	assert.False(t, p.IsFavorite)
	assert.Empty(t, r.Favorites())
}

func TestRememberAndRecent(t *testing.T) {
	b := &fakeBackend{results: contractCases()}
	r := newRepo(t, b, Options{})

	r.Remember(domain.Precedent{ID: "x", Title: "Payload", Similarity: 2})
	assert.True(t, r.Known("x"))
	got, err := r.Get(context.Background(), "x")
	require.NoError(t, err, "a remembered record stays resolvable when the backend lacks it")
	assert.Equal(t, 1.0, got.Similarity)

	recent, err := r.Recent(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	courts, err := r.Courts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Supreme Court of India", courts[0].Name)
}
