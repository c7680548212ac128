package resputil

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Response[T any] struct {
	Code ErrorCode `json:"code"`
	Data T         `json:"data"`
	Msg  string    `json:"msg"`
}

func wrapResponse(c *gin.Context, msg string, data any, code ErrorCode) {
	httpCode := http.StatusOK
	switch code {
	case OK:
	case InvalidRequest:
		httpCode = http.StatusBadRequest
	case ReportNotFound:
		httpCode = http.StatusNotFound
	case ReportNotReady:
		httpCode = http.StatusServiceUnavailable
	default:
		httpCode = http.StatusInternalServerError
	}
	c.JSON(httpCode, gin.H{
		"code": code,
		"data": data,
		"msg":  msg,
	})
}

func Success(c *gin.Context, data any) {
	wrapResponse(c, "", data, OK)
}

func Error(c *gin.Context, msg string, errorCode ErrorCode) {
	wrapResponse(c, msg, nil, errorCode)
}
