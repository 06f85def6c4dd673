package handler

import (
	"net/http"
	"sparkchat/backend/internal/apperr"

	"github.com/gin-gonic/gin"
)

// ResponseData is the envelope of every JSON response.
type ResponseData struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func Success(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, ResponseData{
		Status:  http.StatusOK,
		Message: message,
		Data:    data,
	})
}

func Error(c *gin.Context, statusCode int, errorMessage string) {
	c.JSON(statusCode, ResponseData{
		Status:  statusCode,
		Message: "An error occurred",
		Error:   errorMessage,
	})
}

// Fail answers with the status the error maps to.
func Fail(c *gin.Context, err error) {
	Error(c, apperr.HTTPStatus(err), apperr.Public(err))
}
