package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const (
	taskTypeDocument = "RETRIEVAL_DOCUMENT"
	taskTypeQuery    = "RETRIEVAL_QUERY"
)

type embedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
}

// EmbedService turns chunk text into vectors. Bulk embedding degrades rather
// than fails: a chunk whose call errors gets a zero-vector slot, which keeps
// the output parallel to the input and excludes the chunk from retrieval
// without aborting the build.
type EmbedService struct {
	embedder  embedder
	dim       int
	batchSize int
	cache     *expirable.LRU[string, []float32]
}

func NewEmbedService(embedder embedder, dim, batchSize int) *EmbedService {
	if dim <= 0 {
		dim = 768
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	cache := expirable.NewLRU[string, []float32](10000, nil, 2*time.Hour)
	return &EmbedService{
		embedder:  embedder,
		dim:       dim,
		batchSize: batchSize,
		cache:     cache,
	}
}

func (s *EmbedService) Dim() int {
	return s.dim
}

// EmbedQuery embeds one query string, with a short-lived cache so repeated
// questions don't burn API calls.
func (s *EmbedService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := s.cacheKey(text)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}
	emb, err := s.embedder.Embed(ctx, text, taskTypeQuery)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, emb)
	return emb, nil
}

// ProgressFunc receives {completed, total} checkpoints during bulk embedding.
type ProgressFunc func(completed, total int)

// GenerateEmbeddings embeds texts in fixed-size batches with the calls inside
// a batch issued concurrently. The returned slice always has the same length
// and order as the input; failed slots hold zero-vectors of the configured
// dimension. The second return value is the number of failed slots.
func (s *EmbedService) GenerateEmbeddings(ctx context.Context, texts []string, progress ProgressFunc) ([][]float32, int) {
	logger := logutil.GetLogger(ctx)
	results := make([][]float32, len(texts))
	failed := 0
	batchNum := 0

	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		var wg sync.WaitGroup
		errs := make([]error, end-start)
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				emb, err := s.embedder.Embed(ctx, texts[i], taskTypeDocument)
				if err != nil {
					errs[i-start] = err
					return
				}
				results[i] = emb
			}(i)
		}
		wg.Wait()
		for i := start; i < end; i++ {
			if errs[i-start] != nil || len(results[i]) == 0 {
				if errs[i-start] != nil {
					logger.Warn("embedding failed, substituting zero vector",
						zap.Int("index", i), zap.Error(errs[i-start]))
					failed++
				}
				results[i] = make([]float32, s.dim)
			}
		}
		batchNum++
		if progress != nil && (batchNum%2 == 0 || end == len(texts)) {
			progress(end, len(texts))
		}
	}
	logger.Info("embeddings generated",
		zap.Int("total", len(texts)), zap.Int("failed", failed), zap.Int("dim", s.dim))
	return results, failed
}

func (s *EmbedService) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}
