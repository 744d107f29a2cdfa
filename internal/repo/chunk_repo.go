package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/notedex/notedex/internal/model"
	"github.com/notedex/notedex/internal/pkg/dbutil"
)

// ChunkRepo is the persistent vector index. Chunks are partitioned by user;
// a rebuild is always Clear followed by a full re-store.
type ChunkRepo struct {
	db        *sql.DB
	batchSize int
}

func NewChunkRepo(db *sql.DB, batchSize int) *ChunkRepo {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &ChunkRepo{db: db, batchSize: batchSize}
}

// Clear drops everything stored for a user. Clearing an empty index is a
// no-op, not an error.
func (r *ChunkRepo) Clear(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM rag_chunks WHERE user_id = $1`, userID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM rag_pages WHERE user_id = $1`, userID)
	return err
}

func (r *ChunkRepo) UpsertPage(ctx context.Context, userID, pageID string, meta model.PageMeta) error {
	const query = `
		INSERT INTO rag_pages (user_id, page_id, name, notebook_id, section_id, topic_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, page_id) DO UPDATE SET
			name = EXCLUDED.name,
			notebook_id = EXCLUDED.notebook_id,
			section_id = EXCLUDED.section_id,
			topic_id = EXCLUDED.topic_id
	`
	_, err := r.db.ExecContext(ctx, query, userID, pageID, meta.Name, meta.NotebookID, meta.SectionID, meta.TopicID)
	return err
}

// InsertChunks persists one page's chunk/embedding pairs, flushing in bounded
// batches. chunks and embeddings must be parallel slices.
func (r *ChunkRepo) InsertChunks(ctx context.Context, userID string, chunks []model.Chunk, embeddings [][]float32) error {
	for start := 0; start < len(chunks); start += r.batchSize {
		end := start + r.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		rows := make([]map[string]interface{}, 0, end-start)
		for i := start; i < end; i++ {
			rows = append(rows, map[string]interface{}{
				"user_id":     userID,
				"page_id":     chunks[i].PageID,
				"chunk_index": chunks[i].ChunkIndex,
				"content":     chunks[i].Text,
				"embedding":   pgvector.NewVector(embeddings[i]),
			})
		}
		sqlStr, args, err := builder.BuildInsert("rag_chunks", rows)
		if err != nil {
			return err
		}
		sqlStr, args = dbutil.Finalize(sqlStr, args)
		if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
			return err
		}
	}
	return nil
}

// LinkSequentialChunks connects each of a page's chunks to its successor so
// search can pull neighbouring context.
func (r *ChunkRepo) LinkSequentialChunks(ctx context.Context, userID, pageID string) error {
	const query = `
		UPDATE rag_chunks c
		SET next_chunk_id = n.id
		FROM rag_chunks n
		WHERE c.user_id = $1 AND c.page_id = $2
		  AND n.user_id = c.user_id AND n.page_id = c.page_id
		  AND n.chunk_index = c.chunk_index + 1
	`
	_, err := r.db.ExecContext(ctx, query, userID, pageID)
	return err
}

// ListByUser returns every stored chunk with its vector and lineage metadata.
func (r *ChunkRepo) ListByUser(ctx context.Context, userID string) ([]model.StoredChunk, error) {
	const query = `
		SELECT c.id, c.page_id, c.chunk_index, c.content, c.embedding,
		       p.name, p.notebook_id, p.section_id, p.topic_id
		FROM rag_chunks c
		JOIN rag_pages p ON p.user_id = c.user_id AND p.page_id = c.page_id
		WHERE c.user_id = $1
		ORDER BY c.page_id, c.chunk_index
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chunks []model.StoredChunk
	for rows.Next() {
		var item model.StoredChunk
		var embedding pgvector.Vector
		if err := rows.Scan(&item.ID, &item.PageID, &item.ChunkIndex, &item.Text, &embedding,
			&item.PageName, &item.NotebookID, &item.SectionID, &item.TopicID); err != nil {
			return nil, err
		}
		item.Embedding = embedding.Slice()
		chunks = append(chunks, item)
	}
	return chunks, rows.Err()
}

// CountByUser reports stored chunk and page totals.
func (r *ChunkRepo) CountByUser(ctx context.Context, userID string) (chunks int, pages int, err error) {
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT page_id) FROM rag_chunks WHERE user_id = $1`, userID)
	if err := row.Scan(&chunks, &pages); err != nil {
		return 0, 0, err
	}
	return chunks, pages, nil
}

// Adjacent returns the text of the chunks immediately before and after the
// given chunk within its page. Either side may be empty at page boundaries.
func (r *ChunkRepo) Adjacent(ctx context.Context, chunkID int64) (prevText, nextText string, err error) {
	row := r.db.QueryRowContext(ctx, `SELECT content FROM rag_chunks WHERE next_chunk_id = $1`, chunkID)
	if err := row.Scan(&prevText); err != nil && err != sql.ErrNoRows {
		return "", "", err
	}
	const nextQuery = `
		SELECT n.content
		FROM rag_chunks c
		JOIN rag_chunks n ON n.id = c.next_chunk_id
		WHERE c.id = $1
	`
	row = r.db.QueryRowContext(ctx, nextQuery, chunkID)
	if err := row.Scan(&nextText); err != nil && err != sql.ErrNoRows {
		return "", "", err
	}
	return prevText, nextText, nil
}

// RelatedPagesByTopic lists names of other indexed pages under the same topic.
func (r *ChunkRepo) RelatedPagesByTopic(ctx context.Context, userID, topicID, excludePageID string, limit int) ([]string, error) {
	if topicID == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 3
	}
	const query = `
		SELECT name FROM rag_pages
		WHERE user_id = $1 AND topic_id = $2 AND page_id <> $3
		ORDER BY name
		LIMIT $4
	`
	rows, err := r.db.QueryContext(ctx, query, userID, topicID, excludePageID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
