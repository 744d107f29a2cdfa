package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/notedex/notedex/internal/pkg/errcode"
	appErr "github.com/notedex/notedex/internal/pkg/errors"
	"github.com/notedex/notedex/internal/pkg/response"
	"github.com/notedex/notedex/internal/service"
)

type RAGHandler struct {
	index    *service.IndexService
	search   *service.SearchService
	chat     *service.ChatService
	snapshot *service.SnapshotService
}

func NewRAGHandler(index *service.IndexService, search *service.SearchService, chat *service.ChatService, snapshot *service.SnapshotService) *RAGHandler {
	return &RAGHandler{index: index, search: search, chat: chat, snapshot: snapshot}
}

type ragSearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type ragChatRequest struct {
	Question string `json:"question"`
}

// Build kicks off a full index rebuild. The build itself outlives the
// request; callers poll Status for progress.
func (h *RAGHandler) Build(c *gin.Context) {
	userID := getUserID(c)
	go func() {
		ctx := context.Background()
		if err := h.index.BuildIndex(ctx, userID); err != nil && !errors.Is(err, appErr.ErrConflict) {
			logutil.GetLogger(ctx).Error("index build failed",
				zap.String("user_id", userID), zap.Error(err))
		}
	}()
	response.Success(c, gin.H{"status": "building"})
}

func (h *RAGHandler) Status(c *gin.Context) {
	status, err := h.index.Status(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, status)
}

func (h *RAGHandler) Search(c *gin.Context) {
	var req ragSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Query == "" {
		response.Error(c, errcode.ErrInvalid, "query is required")
		return
	}
	matches, err := h.search.Search(c.Request.Context(), getUserID(c), req.Query, req.TopK)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"matches": matches})
}

// Chat never surfaces a raw error: the service converts failures into an
// error-shaped answer.
func (h *RAGHandler) Chat(c *gin.Context) {
	var req ragChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Question == "" {
		response.Error(c, errcode.ErrInvalid, "question is required")
		return
	}
	result := h.chat.Answer(c.Request.Context(), getUserID(c), req.Question)
	response.Success(c, result)
}

func (h *RAGHandler) Export(c *gin.Context) {
	key, err := h.snapshot.Export(c.Request.Context(), getUserID(c))
	if err != nil {
		response.Error(c, errcode.ErrExportFailed, "export failed")
		return
	}
	response.Success(c, gin.H{"key": key})
}
