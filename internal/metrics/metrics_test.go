package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nit2312/NyaySarthi/internal/domain"
	"github.com/Nit2312/NyaySarthi/internal/jobs"
)

type okAnalyzer struct{}

func (okAnalyzer) Analyze(context.Context, jobs.Document) (domain.DocumentAnalysis, error) {
	return domain.DocumentAnalysis{Summary: "done"}, nil
}

func TestObserveExchange(t *testing.T) {
	m := New()
	m.ObserveExchange("ok", 200*time.Millisecond)
	m.ObserveExchange("ok", time.Second)
	m.ObserveExchange("error", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.exchanges.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exchanges.WithLabelValues("error")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.exchangeDuration))
}

func TestPipelineGaugesAndTransitions(t *testing.T) {
	m := New()
	p := jobs.NewPipeline(okAnalyzer{}, jobs.Options{})
	m.RegisterPipeline(p)

	ctx, cancel := context.WithCancel(context.Background())
	done := m.WatchPipeline(ctx, p)

	job, err := p.Submit(domain.FileMeta{Filename: "a.txt", SizeBytes: 5, MimeType: "text/plain"}, jobs.FromBytes([]byte("hello")))
	require.NoError(t, err)
	_, err = p.Process(context.Background(), job.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.transitions.WithLabelValues("completed")) == 1
	}, time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("processing")))

	body := scrape(t, m.Handler())
	assert.Contains(t, body, "nyay_jobs_total 1")
	assert.Contains(t, body, "nyay_jobs_completed 1")
	assert.Contains(t, body, "nyay_jobs_in_flight 0")
	assert.Contains(t, body, "nyay_jobs_bytes_processed 5")
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/precedents/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/precedents/"+id, nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/precedents/{id}", "404")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.httpRequests), "ids must not become labels")
}

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	srv := httptest.NewServer(h)
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return strings.TrimSpace(string(b))
}
