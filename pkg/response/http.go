// response/http.go - HTTP响应封装
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeOK = "ok"

	MessageOk = "ok"
)

// Envelope 统一响应结构
// Code 成功时固定为ok，失败时携带机器可读的错误类别
type Envelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
}

// Ok 返回不带数据的成功响应
func Ok(c *gin.Context) {
	OkJson(c, nil)
}

// OkJson 返回带数据的成功响应
func OkJson(c *gin.Context, v any) {
	c.JSON(http.StatusOK, Envelope{
		Code:    CodeOK,
		Message: MessageOk,
		Success: true,
		Data:    v,
	})
}

// Error 返回错误响应，code为错误类别
func Error(c *gin.Context, httpStatusCode int, code string, err error) {
	c.JSON(httpStatusCode, Envelope{
		Code:    code,
		Message: err.Error(),
	})
}
