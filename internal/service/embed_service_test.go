package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/notedex/notedex/internal/service"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	dim   int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if strings.Contains(text, "fail") {
		return nil, errors.New("provider unavailable")
	}
	out := make([]float32, f.dim)
	for i := range out {
		out[i] = float32(len(text))
	}
	return out, nil
}

func TestGenerateEmbeddingsParallelOutput(t *testing.T) {
	embedder := &fakeEmbedder{dim: 4}
	svc := service.NewEmbedService(embedder, 4, 2)

	texts := []string{"one", "two", "three", "four", "five"}
	results, failed := svc.GenerateEmbeddings(context.Background(), texts, nil)

	require.Len(t, results, len(texts))
	require.Equal(t, 0, failed)
	for _, emb := range results {
		require.Len(t, emb, 4)
	}
}

func TestGenerateEmbeddingsZeroVectorOnFailure(t *testing.T) {
	embedder := &fakeEmbedder{dim: 3}
	svc := service.NewEmbedService(embedder, 3, 2)

	texts := []string{"ok one", "this will fail", "ok two"}
	results, failed := svc.GenerateEmbeddings(context.Background(), texts, nil)

	require.Len(t, results, 3)
	require.Equal(t, 1, failed)
	require.Equal(t, []float32{0, 0, 0}, results[1])
	require.NotEqual(t, []float32{0, 0, 0}, results[0])
	require.NotEqual(t, []float32{0, 0, 0}, results[2])
}

func TestGenerateEmbeddingsProgressReachesTotal(t *testing.T) {
	embedder := &fakeEmbedder{dim: 2}
	svc := service.NewEmbedService(embedder, 2, 2)

	var lastCompleted, lastTotal int
	texts := []string{"a", "b", "c", "d", "e"}
	_, _ = svc.GenerateEmbeddings(context.Background(), texts, func(completed, total int) {
		lastCompleted = completed
		lastTotal = total
	})
	require.Equal(t, len(texts), lastCompleted)
	require.Equal(t, len(texts), lastTotal)
}

func TestEmbedQueryCachesRepeats(t *testing.T) {
	embedder := &fakeEmbedder{dim: 2}
	svc := service.NewEmbedService(embedder, 2, 2)

	first, err := svc.EmbedQuery(context.Background(), "what is the capital of France")
	require.NoError(t, err)
	second, err := svc.EmbedQuery(context.Background(), "what is the capital of France")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, embedder.calls)
}

func TestEmbedQueryErrorNotCached(t *testing.T) {
	embedder := &fakeEmbedder{dim: 2}
	svc := service.NewEmbedService(embedder, 2, 2)

	_, err := svc.EmbedQuery(context.Background(), "this will fail")
	require.Error(t, err)
	_, err = svc.EmbedQuery(context.Background(), "this will fail")
	require.Error(t, err)
	require.Equal(t, 2, embedder.calls)
}
