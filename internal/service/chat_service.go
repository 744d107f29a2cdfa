package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/notedex/notedex/internal/model"
)

type searcher interface {
	Search(ctx context.Context, userID, query string, topK int) ([]model.SearchMatch, error)
}

type generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const (
	refusalPhrase    = "I couldn't find that information in your notes."
	previewLimit     = 200
	fallbackApology  = "Sorry, there was an error processing your question."
	emptyAnswerStub  = "Sorry, I couldn't generate a response."
	noContentMessage = "No relevant content found in your knowledge base."
)

// notFoundPhrases are scanned case-insensitively in model output. Any hit
// downgrades the response to NOT_FOUND no matter what else the model said.
var notFoundPhrases = []string{
	"couldn't find that information",
	"could not find that information",
	"not mentioned in your notes",
	"no relevant information",
}

// ChatService answers questions grounded strictly in the user's indexed
// notes. Errors during search or generation never escape; they degrade into
// an apology-shaped result.
type ChatService struct {
	search searcher
	gen    generator
	topK   int
}

func NewChatService(search searcher, gen generator, topK int) *ChatService {
	if topK <= 0 {
		topK = 5
	}
	return &ChatService{search: search, gen: gen, topK: topK}
}

func (s *ChatService) Answer(ctx context.Context, userID, question string) model.ChatResult {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))

	matches, err := s.search.Search(ctx, userID, question, s.topK)
	if err != nil {
		logger.Error("search failed", zap.Error(err))
		return errorResult(err)
	}
	if len(matches) == 0 {
		return model.ChatResult{
			Answer:  model.NotFoundAnswer,
			Matches: []model.ChatMatch{},
			Message: noContentMessage,
		}
	}

	prompt := buildPrompt(question, matches)
	answer, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		logger.Error("generation failed", zap.Error(err))
		return errorResult(err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = emptyAnswerStub
	}

	if containsNotFound(answer) {
		logger.Debug("model reported missing context, downgrading to not found")
		return model.ChatResult{
			Answer:  model.NotFoundAnswer,
			Matches: []model.ChatMatch{},
			Message: noContentMessage,
		}
	}

	chatMatches := make([]model.ChatMatch, 0, len(matches))
	for _, match := range matches {
		chatMatches = append(chatMatches, model.ChatMatch{
			PageName:    match.Chunk.PageName,
			ChunkIndex:  match.Chunk.ChunkIndex,
			Score:       match.Score,
			TextPreview: preview(match.Chunk.Text),
		})
	}
	return model.ChatResult{
		Answer:      answer,
		Matches:     chatMatches,
		ContextUsed: len(matches),
	}
}

func buildPrompt(question string, matches []model.SearchMatch) string {
	blocks := make([]string, 0, len(matches))
	for i, match := range matches {
		block := fmt.Sprintf("[%d] PAGE: %s | chunk: %d | score: %.4f\n%s",
			i+1, match.Chunk.PageName, match.Chunk.ChunkIndex, match.Score, match.Chunk.Text)
		if match.PrevText != "" {
			block += "\n(previous context: " + preview(match.PrevText) + ")"
		}
		if match.NextText != "" {
			block += "\n(following context: " + preview(match.NextText) + ")"
		}
		if len(match.RelatedPages) > 0 {
			block += "\n(related pages: " + strings.Join(match.RelatedPages, ", ") + ")"
		}
		blocks = append(blocks, block)
	}
	context := strings.Join(blocks, "\n\n")

	return "You are a helpful assistant that answers questions based on the user's personal knowledge base. " +
		"Use ONLY the provided context from their notes to answer the question. " +
		"If the answer is not in the context, say '" + refusalPhrase + "' " +
		"Cite the relevant sections using [1], [2], etc.\n\n" +
		"QUESTION: " + question + "\n\n" +
		"CONTEXT FROM YOUR NOTES:\n" + context + "\n\n" +
		"ANSWER:"
}

func containsNotFound(answer string) bool {
	lowered := strings.ToLower(answer)
	for _, phrase := range notFoundPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

func preview(text string) string {
	if len(text) <= previewLimit {
		return text
	}
	return text[:previewLimit] + "..."
}

func errorResult(err error) model.ChatResult {
	return model.ChatResult{
		Answer:  fallbackApology,
		Matches: []model.ChatMatch{},
		Error:   err.Error(),
	}
}
