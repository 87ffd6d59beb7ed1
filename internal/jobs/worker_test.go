package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nit2312/NyaySarthi/internal/domain"
)

func TestWorker_RunOnce(t *testing.T) {
	p := NewPipeline(okAnalyzer(), Options{})
	w := NewWorker(p, 1, 0, nil)

	didWork, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, didWork, "no jobs yet")

	job, err := p.Submit(pdfMeta("a.pdf", 1), FromBytes([]byte("x")))
	require.NoError(t, err)

	didWork, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, didWork)

	got, err := p.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, got.Status)

	didWork, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, didWork, "terminal jobs are not claimed again")
}

func TestWorker_RunDrainsSubmittedJobs(t *testing.T) {
	p := NewPipeline(okAnalyzer(), Options{})
	w := NewWorker(p, 2, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := 0; i < 5; i++ {
		_, err := p.Submit(pdfMeta("a.pdf", 1), FromBytes([]byte("x")))
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return p.Stats().Completed == 5
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}
