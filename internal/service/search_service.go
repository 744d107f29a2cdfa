package service

import (
	"context"
	"math"
	"sort"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/notedex/notedex/internal/model"
)

type chunkIndex interface {
	ListByUser(ctx context.Context, userID string) ([]model.StoredChunk, error)
	Adjacent(ctx context.Context, chunkID int64) (prevText, nextText string, err error)
	RelatedPagesByTopic(ctx context.Context, userID, topicID, excludePageID string, limit int) ([]string, error)
}

type queryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

const relatedPageLimit = 3

// SearchService ranks a user's chunks against a query by cosine similarity
// and enriches the winners with neighbouring and related-page context.
type SearchService struct {
	index     chunkIndex
	embed     queryEmbedder
	topK      int
	threshold float32
}

func NewSearchService(index chunkIndex, embed queryEmbedder, topK int, threshold float32) *SearchService {
	if topK <= 0 {
		topK = 5
	}
	return &SearchService{
		index:     index,
		embed:     embed,
		topK:      topK,
		threshold: threshold,
	}
}

// Search returns up to topK matches for the query, best first. A user with no
// indexed chunks gets an empty result, not an error.
func (s *SearchService) Search(ctx context.Context, userID, query string, topK int) ([]model.SearchMatch, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))
	if topK <= 0 {
		topK = s.topK
	}
	queryEmb, err := s.embed.EmbedQuery(ctx, query)
	if err != nil {
		logger.Error("failed to embed search query", zap.Error(err))
		return nil, err
	}
	chunks, err := s.index.ListByUser(ctx, userID)
	if err != nil {
		logger.Error("failed to list chunks", zap.Error(err))
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	matches := make([]model.SearchMatch, 0, len(chunks))
	for _, chunk := range chunks {
		score := cosineSimilarity(queryEmb, chunk.Embedding)
		if score == 0 {
			// zero-norm vectors (failed embeddings) never match
			continue
		}
		if score < s.threshold {
			continue
		}
		matches = append(matches, model.SearchMatch{Chunk: chunk, Score: score})
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if topK < len(matches) {
		matches = matches[:topK]
	}
	for i := range matches {
		s.enrich(ctx, userID, &matches[i])
	}
	logger.Debug("search completed", zap.Int("candidates", len(chunks)), zap.Int("matches", len(matches)))
	return matches, nil
}

// enrich attaches adjacent chunk text and related page names. Enrichment is
// best effort and never fails the search.
func (s *SearchService) enrich(ctx context.Context, userID string, match *model.SearchMatch) {
	logger := logutil.GetLogger(ctx)
	prev, next, err := s.index.Adjacent(ctx, match.Chunk.ID)
	if err != nil {
		logger.Warn("adjacent lookup failed", zap.Int64("chunk_id", match.Chunk.ID), zap.Error(err))
	} else {
		match.PrevText = prev
		match.NextText = next
	}
	related, err := s.index.RelatedPagesByTopic(ctx, userID, match.Chunk.TopicID, match.Chunk.PageID, relatedPageLimit)
	if err != nil {
		logger.Warn("related pages lookup failed", zap.String("topic_id", match.Chunk.TopicID), zap.Error(err))
		return
	}
	match.RelatedPages = related
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
