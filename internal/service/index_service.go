package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/notedex/notedex/internal/extract"
	"github.com/notedex/notedex/internal/model"
	appErr "github.com/notedex/notedex/internal/pkg/errors"
)

type pageSource interface {
	PageIndex(ctx context.Context, userID string) (map[string]model.PageMeta, error)
	GetPagesByIDs(ctx context.Context, userID string, ids []string) ([]model.Page, error)
}

type chunkStore interface {
	Clear(ctx context.Context, userID string) error
	UpsertPage(ctx context.Context, userID, pageID string, meta model.PageMeta) error
	InsertChunks(ctx context.Context, userID string, chunks []model.Chunk, embeddings [][]float32) error
	LinkSequentialChunks(ctx context.Context, userID, pageID string) error
}

type statusStore interface {
	Get(ctx context.Context, userID string) (model.IndexStatus, error)
	Set(ctx context.Context, userID string, status model.IndexStatus) error
	SetStep(ctx context.Context, userID, step string, details map[string]string) error
	AcquireBuildLock(ctx context.Context, userID string) (bool, error)
	ReleaseBuildLock(ctx context.Context, userID string) error
}

type bulkEmbedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string, progress ProgressFunc) ([][]float32, int)
}

// IndexService drives the full build pipeline: load pages, chunk, embed,
// clear-then-store. Rebuild is always full-replace; there is no incremental
// path.
type IndexService struct {
	pages   pageSource
	chunker *extract.Chunker
	embed   bulkEmbedder
	store   chunkStore
	status  statusStore
}

func NewIndexService(pages pageSource, chunker *extract.Chunker, embed bulkEmbedder, store chunkStore, status statusStore) *IndexService {
	return &IndexService{
		pages:   pages,
		chunker: chunker,
		embed:   embed,
		store:   store,
		status:  status,
	}
}

// BuildIndex rebuilds the user's index from scratch. A concurrent build for
// the same user is rejected with ErrConflict; the clear-store sequence under
// the lock is what keeps the stored index consistent.
func (s *IndexService) BuildIndex(ctx context.Context, userID string) error {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))

	acquired, err := s.status.AcquireBuildLock(ctx, userID)
	if err != nil {
		return fmt.Errorf("acquire build lock: %w", err)
	}
	if !acquired {
		logger.Warn("build already in progress")
		return appErr.ErrConflict
	}
	defer func() {
		if err := s.status.ReleaseBuildLock(ctx, userID); err != nil {
			logger.Warn("release build lock failed", zap.Error(err))
		}
	}()

	now := time.Now()
	status := model.NewBuildingStatus(now)
	if err := s.status.Set(ctx, userID, status); err != nil {
		return fmt.Errorf("set building status: %w", err)
	}

	if err := s.runBuild(ctx, userID, status); err != nil {
		if statusErr := s.status.Set(ctx, userID, status.MarkError(time.Now(), err.Error())); statusErr != nil {
			logger.Error("set error status failed", zap.Error(statusErr))
		}
		logger.Error("index build failed", zap.Error(err))
		return err
	}
	return nil
}

func (s *IndexService) runBuild(ctx context.Context, userID string, status model.IndexStatus) error {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))

	s.step(ctx, userID, "loading_pages", nil)
	pages, orphans, err := s.loadUserPages(ctx, userID)
	if err != nil {
		return fmt.Errorf("load pages: %w", err)
	}
	s.step(ctx, userID, "pages_loaded", map[string]string{
		"with_content": strconv.Itoa(len(pages)),
		"missing":      strconv.Itoa(orphans),
	})
	if len(pages) == 0 {
		return appErr.ErrNoPages
	}

	chunks, totalChars, err := s.chunker.ChunkPages(ctx, pages)
	if err != nil {
		return fmt.Errorf("chunk pages: %w", err)
	}
	s.step(ctx, userID, "chunks_created", map[string]string{
		"total_chunks":     strconv.Itoa(len(chunks)),
		"total_characters": strconv.Itoa(totalChars),
	})
	if len(chunks) == 0 {
		return appErr.ErrNoChunks
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	embeddings, failed := s.embed.GenerateEmbeddings(ctx, texts, func(completed, total int) {
		s.step(ctx, userID, "embedding_progress", map[string]string{
			"completed": strconv.Itoa(completed),
			"total":     strconv.Itoa(total),
		})
	})
	s.step(ctx, userID, "embeddings_generated", map[string]string{
		"total":  strconv.Itoa(len(embeddings)),
		"failed": strconv.Itoa(failed),
	})

	s.step(ctx, userID, "storing_vectors", nil)
	if err := s.storeAll(ctx, userID, pages, chunks, embeddings); err != nil {
		return fmt.Errorf("store vectors: %w", err)
	}

	ready := status.MarkReady(time.Now(), len(chunks), len(pages), failed)
	if err := s.status.Set(ctx, userID, ready); err != nil {
		return fmt.Errorf("set ready status: %w", err)
	}
	s.step(ctx, userID, "completed", map[string]string{
		"total_chunks": strconv.Itoa(len(chunks)),
		"total_pages":  strconv.Itoa(len(pages)),
	})
	logger.Info("index build completed",
		zap.Int("pages", len(pages)), zap.Int("chunks", len(chunks)), zap.Int("failed_embeddings", failed))
	return nil
}

// loadUserPages joins the page index with the page store. Index entries whose
// page row no longer exists are dropped and counted, never surfaced as an
// error; pages whose content is empty are dropped too.
func (s *IndexService) loadUserPages(ctx context.Context, userID string) ([]model.Page, int, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))
	index, err := s.pages.PageIndex(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if len(index) == 0 {
		return nil, 0, nil
	}
	ids := make([]string, 0, len(index))
	for id := range index {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fetched, err := s.pages.GetPagesByIDs(ctx, userID, ids)
	if err != nil {
		return nil, 0, err
	}
	byID := make(map[string]model.Page, len(fetched))
	for _, page := range fetched {
		byID[page.ID] = page
	}

	var pages []model.Page
	orphans := 0
	for _, id := range ids {
		page, ok := byID[id]
		if !ok {
			// stale index entry, page was deleted; flag for cleanup
			orphans++
			continue
		}
		if page.Content == "" {
			continue
		}
		meta := index[id]
		if page.Name == "" {
			page.Name = meta.Name
		}
		page.NotebookID = meta.NotebookID
		page.SectionID = meta.SectionID
		page.TopicID = meta.TopicID
		pages = append(pages, page)
	}
	if orphans > 0 {
		logger.Warn("page index references deleted pages", zap.Int("orphans", orphans))
	}
	return pages, orphans, nil
}

// storeAll swaps the stored index wholesale: clear, then per page upsert
// metadata, insert chunk batches and link the sequential chain.
func (s *IndexService) storeAll(ctx context.Context, userID string, pages []model.Page, chunks []model.Chunk, embeddings [][]float32) error {
	if err := s.store.Clear(ctx, userID); err != nil {
		return err
	}

	metaByPage := make(map[string]model.PageMeta, len(pages))
	for _, page := range pages {
		metaByPage[page.ID] = model.PageMeta{
			Name:       page.Name,
			NotebookID: page.NotebookID,
			SectionID:  page.SectionID,
			TopicID:    page.TopicID,
		}
	}

	var pageOrder []string
	chunksByPage := make(map[string][]int)
	for i, chunk := range chunks {
		if _, ok := chunksByPage[chunk.PageID]; !ok {
			pageOrder = append(pageOrder, chunk.PageID)
		}
		chunksByPage[chunk.PageID] = append(chunksByPage[chunk.PageID], i)
	}

	for _, pageID := range pageOrder {
		if err := s.store.UpsertPage(ctx, userID, pageID, metaByPage[pageID]); err != nil {
			return err
		}
		indices := chunksByPage[pageID]
		pageChunks := make([]model.Chunk, 0, len(indices))
		pageEmbeddings := make([][]float32, 0, len(indices))
		for _, i := range indices {
			pageChunks = append(pageChunks, chunks[i])
			pageEmbeddings = append(pageEmbeddings, embeddings[i])
		}
		if err := s.store.InsertChunks(ctx, userID, pageChunks, pageEmbeddings); err != nil {
			return err
		}
		if err := s.store.LinkSequentialChunks(ctx, userID, pageID); err != nil {
			return err
		}
	}
	return nil
}

func (s *IndexService) step(ctx context.Context, userID, step string, details map[string]string) {
	if err := s.status.SetStep(ctx, userID, step, details); err != nil {
		logutil.GetLogger(ctx).Warn("report step failed", zap.String("step", step), zap.Error(err))
	}
}

// Status exposes the user's current index status record.
func (s *IndexService) Status(ctx context.Context, userID string) (model.IndexStatus, error) {
	return s.status.Get(ctx, userID)
}
