package extract

import (
	"context"

	"github.com/tmc/langchaingo/textsplitter"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/notedex/notedex/internal/model"
)

// Chunker splits extracted page text into overlapping retrieval units. The
// recursive splitter prefers paragraph breaks, then line breaks, then word
// boundaries before cutting mid-word.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
		),
	}
}

// ChunkPage extracts plain text from one page and splits it. A page that is
// empty after markup stripping yields zero chunks.
func (c *Chunker) ChunkPage(ctx context.Context, page model.Page) ([]model.Chunk, int, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("page_id", page.ID))
	textContent := PlainText(page.Content)
	if textContent == "" {
		logger.Debug("page empty after extraction, skipping")
		return nil, 0, nil
	}
	parts, err := c.splitter.SplitText(textContent)
	if err != nil {
		return nil, 0, err
	}
	chunks := make([]model.Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, model.Chunk{
			Text:       part,
			PageID:     page.ID,
			PageName:   page.Name,
			ChunkIndex: i,
			NotebookID: page.NotebookID,
			SectionID:  page.SectionID,
			TopicID:    page.TopicID,
		})
	}
	logger.Debug("page chunked", zap.Int("chunks", len(chunks)), zap.Int("chars", len(textContent)))
	return chunks, len(textContent), nil
}

// ChunkPages runs ChunkPage over a page set, keeping chunk order stable within
// each page. Returns all chunks plus the total extracted character count.
func (c *Chunker) ChunkPages(ctx context.Context, pages []model.Page) ([]model.Chunk, int, error) {
	logger := logutil.GetLogger(ctx)
	var all []model.Chunk
	totalChars := 0
	for _, page := range pages {
		chunks, chars, err := c.ChunkPage(ctx, page)
		if err != nil {
			return nil, 0, err
		}
		all = append(all, chunks...)
		totalChars += chars
	}
	logger.Info("chunking completed", zap.Int("pages", len(pages)), zap.Int("total_chunks", len(all)), zap.Int("total_chars", totalChars))
	return all, totalChars, nil
}
