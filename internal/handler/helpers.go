package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/notedex/notedex/internal/middleware"
	"github.com/notedex/notedex/internal/pkg/errcode"
	appErr "github.com/notedex/notedex/internal/pkg/errors"
	"github.com/notedex/notedex/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextUserIDKey)
	userID, _ := value.(string)
	return userID
}

func handleError(c *gin.Context, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrBuildInProgress, "build already in progress")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
