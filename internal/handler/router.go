package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/notedex/notedex/internal/middleware"
)

type RouterDeps struct {
	RAG       *RAGHandler
	JWTSecret []byte
}

func RegisterRoutes(group *gin.RouterGroup, deps RouterDeps) {
	rag := group.Group("/rag")
	rag.Use(middleware.JWTAuth(deps.JWTSecret))
	{
		rag.POST("/build", deps.RAG.Build)
		rag.GET("/status", deps.RAG.Status)
		rag.POST("/search", deps.RAG.Search)
		rag.POST("/chat", deps.RAG.Chat)
		rag.GET("/export", deps.RAG.Export)
	}
}
