package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, ""},
		{ErrSessionBusy, KindSessionBusy},
		{fmt.Errorf("send: %w", ErrEmptyInput), KindEmptyInput},
		{fmt.Errorf("get 42: %w", ErrNotFound), KindNotFound},
		{context.DeadlineExceeded, KindTransport},
		{fmt.Errorf("wrapped: %w", context.Canceled), KindTransport},
		{errors.New("boom"), KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), "KindOf(%v)", tt.err)
	}
}

func TestRetryableAndValidation(t *testing.T) {
	assert.True(t, Retryable(fmt.Errorf("chat: %w", ErrTransport)))
	assert.False(t, Retryable(ErrUnauthenticated))

	assert.True(t, IsValidation(ErrFileTooLarge))
	assert.True(t, IsValidation(ErrInvalidQuery))
	assert.False(t, IsValidation(ErrNotFound))
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.2))
	assert.Equal(t, 1.0, Clamp01(1.7))
	assert.Equal(t, 0.42, Clamp01(0.42))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))

	p := Precedent{ID: "1", Similarity: 3}.Normalize()
	assert.Equal(t, 1.0, p.Similarity)
}

func TestJobStatusTransitions(t *testing.T) {
	assert.True(t, JobUploading.CanTransition(JobProcessing))
	assert.True(t, JobUploading.CanTransition(JobError))
	assert.False(t, JobUploading.CanTransition(JobCompleted), "must not skip processing")
	assert.True(t, JobProcessing.CanTransition(JobCompleted))
	assert.True(t, JobProcessing.CanTransition(JobError))
	assert.False(t, JobProcessing.CanTransition(JobUploading))

	for _, s := range []JobStatus{JobCompleted, JobError} {
		assert.True(t, s.Terminal())
		for _, next := range []JobStatus{JobUploading, JobProcessing, JobCompleted, JobError} {
			assert.False(t, s.CanTransition(next), "%s -> %s", s, next)
		}
	}
}
