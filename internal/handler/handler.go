// internal/handler/handler.go - HTTP处理器公共辅助
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workspace-orchestrator/internal/errs"
	"workspace-orchestrator/pkg/response"
)

// httpStatusOf 按错误类别映射HTTP状态码
func httpStatusOf(err error) int {
	switch errs.KindOf(err) {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindInvalidInput:
		return http.StatusBadRequest
	case errs.KindPermissionDenied:
		return http.StatusForbidden
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindRemoteSync:
		return http.StatusBadGateway
	case errs.KindMissingConfig:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

// fail 按错误类别返回对应状态码的错误响应
func fail(c *gin.Context, err error) {
	response.Error(c, httpStatusOf(err), string(errs.KindOf(err)), err)
}
