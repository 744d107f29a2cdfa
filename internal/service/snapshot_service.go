package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/notedex/notedex/internal/filestore"
	"github.com/notedex/notedex/internal/model"
)

type chunkLister interface {
	ListByUser(ctx context.Context, userID string) ([]model.StoredChunk, error)
}

// SnapshotService dumps a user's indexed chunks (without vectors) to the
// configured file store, for backup and offline inspection.
type SnapshotService struct {
	index chunkLister
	store filestore.Store
}

func NewSnapshotService(index chunkLister, store filestore.Store) *SnapshotService {
	return &SnapshotService{index: index, store: store}
}

type snapshotEntry struct {
	PageID     string `json:"page_id"`
	PageName   string `json:"page_name"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
	NotebookID string `json:"notebook_id,omitempty"`
	SectionID  string `json:"section_id,omitempty"`
	TopicID    string `json:"topic_id,omitempty"`
}

type snapshotFile struct {
	UserID      string          `json:"user_id"`
	TotalChunks int             `json:"total_chunks"`
	CreatedAt   time.Time       `json:"created_at"`
	Chunks      []snapshotEntry `json:"chunks"`
}

// Export writes the snapshot and returns its storage key.
func (s *SnapshotService) Export(ctx context.Context, userID string) (string, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))
	chunks, err := s.index.ListByUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("list chunks: %w", err)
	}
	entries := make([]snapshotEntry, 0, len(chunks))
	for _, chunk := range chunks {
		entries = append(entries, snapshotEntry{
			PageID:     chunk.PageID,
			PageName:   chunk.PageName,
			ChunkIndex: chunk.ChunkIndex,
			Text:       chunk.Text,
			NotebookID: chunk.NotebookID,
			SectionID:  chunk.SectionID,
			TopicID:    chunk.TopicID,
		})
	}
	now := time.Now()
	data, err := json.Marshal(snapshotFile{
		UserID:      userID,
		TotalChunks: len(entries),
		CreatedAt:   now,
		Chunks:      entries,
	})
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("rag_snapshot_%s_%s.json", userID, now.Format("20060102_150405"))
	if err := s.store.Save(ctx, key, nopSeekCloser{bytes.NewReader(data)}, int64(len(data))); err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	logger.Info("snapshot exported", zap.String("key", key), zap.Int("chunks", len(entries)))
	return key, nil
}

type nopSeekCloser struct {
	*bytes.Reader
}

func (nopSeekCloser) Close() error {
	return nil
}
