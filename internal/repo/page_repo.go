package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/notedex/notedex/internal/model"
	"github.com/notedex/notedex/internal/pkg/dbutil"
)

// PageRepo reads the page inventory owned by the editing subsystem. The RAG
// pipeline never writes through it.
type PageRepo struct {
	db        *sql.DB
	batchSize int
}

func NewPageRepo(db *sql.DB, batchSize int) *PageRepo {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &PageRepo{db: db, batchSize: batchSize}
}

// PageIndex returns the structural index of all page ids a user owns, with
// notebook/section/topic lineage. Pages listed here may no longer exist in the
// pages table.
func (r *PageRepo) PageIndex(ctx context.Context, userID string) (map[string]model.PageMeta, error) {
	where := map[string]interface{}{
		"user_id": userID,
	}
	sqlStr, args, err := builder.BuildSelect("page_index", where, []string{"page_id", "name", "notebook_id", "section_id", "topic_id"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	index := make(map[string]model.PageMeta)
	for rows.Next() {
		var pageID string
		var meta model.PageMeta
		if err := rows.Scan(&pageID, &meta.Name, &meta.NotebookID, &meta.SectionID, &meta.TopicID); err != nil {
			return nil, err
		}
		index[pageID] = meta
	}
	return index, rows.Err()
}

// GetPagesByIDs fetches page rows in bounded batches. Ids with no backing row
// are simply absent from the result.
func (r *PageRepo) GetPagesByIDs(ctx context.Context, userID string, ids []string) ([]model.Page, error) {
	var pages []model.Page
	for start := 0; start < len(ids); start += r.batchSize {
		end := start + r.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch, err := r.getPageBatch(ctx, userID, ids[start:end])
		if err != nil {
			return nil, err
		}
		pages = append(pages, batch...)
	}
	return pages, nil
}

func (r *PageRepo) getPageBatch(ctx context.Context, userID string, ids []string) ([]model.Page, error) {
	idArgs := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		idArgs = append(idArgs, id)
	}
	where := map[string]interface{}{
		"owner": userID,
		"id in": idArgs,
	}
	sqlStr, args, err := builder.BuildSelect("pages", where, []string{"id", "owner", "name", "content"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pages []model.Page
	for rows.Next() {
		var page model.Page
		if err := rows.Scan(&page.ID, &page.Owner, &page.Name, &page.Content); err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}
