package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/notedex/notedex/internal/model"
	"github.com/notedex/notedex/internal/service"
)

type fakeSearcher struct {
	matches []model.SearchMatch
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, userID, query string, topK int) ([]model.SearchMatch, error) {
	return f.matches, f.err
}

type fakeGenerator struct {
	answer string
	err    error
	calls  int
	prompt string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	return f.answer, f.err
}

func searchMatch(pageName, text string, score float32) model.SearchMatch {
	return model.SearchMatch{
		Chunk: model.StoredChunk{
			Chunk: model.Chunk{
				Text:       text,
				PageID:     "p1",
				PageName:   pageName,
				ChunkIndex: 0,
			},
		},
		Score: score,
	}
}

func TestAnswerNoMatchesSkipsGeneration(t *testing.T) {
	gen := &fakeGenerator{answer: "should never be used"}
	svc := service.NewChatService(&fakeSearcher{}, gen, 5)

	result := svc.Answer(context.Background(), "u1", "anything?")
	require.True(t, result.NotFound())
	require.Equal(t, model.NotFoundAnswer, result.Answer)
	require.NotNil(t, result.Matches)
	require.Empty(t, result.Matches)
	require.NotEmpty(t, result.Message)
	require.Equal(t, 0, gen.calls)
}

func TestAnswerHappyPath(t *testing.T) {
	search := &fakeSearcher{matches: []model.SearchMatch{
		searchMatch("France", "Paris is the capital of France.", 0.92),
	}}
	gen := &fakeGenerator{answer: "The capital of France is Paris [1]."}
	svc := service.NewChatService(search, gen, 5)

	result := svc.Answer(context.Background(), "u1", "What is the capital of France?")
	require.False(t, result.NotFound())
	require.Contains(t, result.Answer, "Paris")
	require.Equal(t, 1, result.ContextUsed)
	require.Len(t, result.Matches, 1)
	require.Equal(t, "France", result.Matches[0].PageName)
	require.InDelta(t, 0.92, float64(result.Matches[0].Score), 1e-6)
	require.Empty(t, result.Error)
}

func TestAnswerPromptContainsContext(t *testing.T) {
	search := &fakeSearcher{matches: []model.SearchMatch{
		searchMatch("France", "Paris is the capital of France.", 0.92),
	}}
	gen := &fakeGenerator{answer: "Paris [1]."}
	svc := service.NewChatService(search, gen, 5)

	svc.Answer(context.Background(), "u1", "What is the capital of France?")
	require.Contains(t, gen.prompt, "What is the capital of France?")
	require.Contains(t, gen.prompt, "[1] PAGE: France")
	require.Contains(t, gen.prompt, "Paris is the capital of France.")
	require.Contains(t, gen.prompt, "ANSWER:")
}

func TestAnswerRefusalDowngradesToNotFound(t *testing.T) {
	search := &fakeSearcher{matches: []model.SearchMatch{
		searchMatch("France", "Paris is the capital of France.", 0.92),
	}}
	gen := &fakeGenerator{answer: "I couldn't find that information in your notes."}
	svc := service.NewChatService(search, gen, 5)

	result := svc.Answer(context.Background(), "u1", "Who won the 1950 world cup?")
	require.True(t, result.NotFound())
	require.Empty(t, result.Matches)
	require.Equal(t, 0, result.ContextUsed)
}

func TestAnswerRefusalDetectionIsCaseInsensitive(t *testing.T) {
	search := &fakeSearcher{matches: []model.SearchMatch{
		searchMatch("France", "some text", 0.9),
	}}
	gen := &fakeGenerator{answer: "Sorry, that is NOT MENTIONED IN YOUR NOTES anywhere."}
	svc := service.NewChatService(search, gen, 5)

	result := svc.Answer(context.Background(), "u1", "question")
	require.True(t, result.NotFound())
}

func TestAnswerSearchErrorAbsorbed(t *testing.T) {
	svc := service.NewChatService(&fakeSearcher{err: errors.New("db down")}, &fakeGenerator{}, 5)

	result := svc.Answer(context.Background(), "u1", "question")
	require.False(t, result.NotFound())
	require.Equal(t, "Sorry, there was an error processing your question.", result.Answer)
	require.Equal(t, "db down", result.Error)
	require.Empty(t, result.Matches)
}

func TestAnswerGenerationErrorAbsorbed(t *testing.T) {
	search := &fakeSearcher{matches: []model.SearchMatch{
		searchMatch("France", "some text", 0.9),
	}}
	svc := service.NewChatService(search, &fakeGenerator{err: errors.New("model timeout")}, 5)

	result := svc.Answer(context.Background(), "u1", "question")
	require.Equal(t, "Sorry, there was an error processing your question.", result.Answer)
	require.Equal(t, "model timeout", result.Error)
}

func TestAnswerTruncatesPreviews(t *testing.T) {
	longText := strings.Repeat("x", 500)
	search := &fakeSearcher{matches: []model.SearchMatch{
		searchMatch("France", longText, 0.9),
	}}
	gen := &fakeGenerator{answer: "fine [1]."}
	svc := service.NewChatService(search, gen, 5)

	result := svc.Answer(context.Background(), "u1", "question")
	require.Len(t, result.Matches, 1)
	require.True(t, len(result.Matches[0].TextPreview) <= 203)
	require.True(t, strings.HasSuffix(result.Matches[0].TextPreview, "..."))
}
