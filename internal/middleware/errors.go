package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/volforecast/internal/domain/dto"
)

// AbortWithError stops the chain, records err on the context and writes a
// dto.ErrorResponse with status.
func AbortWithError(c *gin.Context, status int, message string, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(message, err))
}

// ErrorHandler renders errors that handlers attached with c.Error but did not
// answer. An attached dto.ErrorResponse is sent as is; anything else becomes a
// generic 500.
func ErrorHandler(c *gin.Context) {
	c.Next()

	if len(c.Errors) == 0 || c.Writer.Written() {
		return
	}

	last := c.Errors.Last().Err
	status := c.Writer.Status()
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}

	var resp dto.ErrorResponse
	if errors.As(last, &resp) {
		c.JSON(status, resp)
		return
	}
	c.JSON(status, dto.NewErrorResponse("Internal server error", last))
}
