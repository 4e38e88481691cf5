package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 错误码定义
const (
	CodeSuccess          = 0
	CodeParamError       = 1000
	CodeAuthFailed       = 1001
	CodePermissionDenied = 1002
	CodeResourceNotFound = 1003
	CodeQuotaExceeded    = 1004
	CodeDuplicateAction  = 1005
	CodeRateLimited      = 1006

	CodePromoInvalid      = 2001
	CodePromoNotYetActive = 2002
	CodePromoExpired      = 2003
	CodePromoLimitReached = 2004
	CodePromoUnknownType  = 2005

	CodeServerError        = 5000
	CodeServiceUnavailable = 5003
)

// 错误码对应的默认消息
var codeMessages = map[int]string{
	CodeSuccess:            "success",
	CodeParamError:         "参数错误",
	CodeAuthFailed:         "认证失败",
	CodePermissionDenied:   "权限不足",
	CodeResourceNotFound:   "资源不存在",
	CodeQuotaExceeded:      "配额不足",
	CodeDuplicateAction:    "重复操作",
	CodeRateLimited:        "请求过于频繁",
	CodePromoInvalid:       "兑换码无效",
	CodePromoNotYetActive:  "兑换码尚未生效",
	CodePromoExpired:       "兑换码已过期",
	CodePromoLimitReached:  "兑换码已达使用上限",
	CodePromoUnknownType:   "不支持的兑换码类型",
	CodeServerError:        "服务器内部错误",
	CodeServiceUnavailable: "服务暂不可用",
}

// 错误码对应的 HTTP 状态
var codeStatus = map[int]int{
	CodeParamError:         http.StatusBadRequest,
	CodeAuthFailed:         http.StatusUnauthorized,
	CodePermissionDenied:   http.StatusForbidden,
	CodeResourceNotFound:   http.StatusNotFound,
	CodeQuotaExceeded:      http.StatusTooManyRequests,
	CodeDuplicateAction:    http.StatusConflict,
	CodeRateLimited:        http.StatusTooManyRequests,
	CodePromoInvalid:       http.StatusBadRequest,
	CodePromoNotYetActive:  http.StatusBadRequest,
	CodePromoExpired:       http.StatusBadRequest,
	CodePromoLimitReached:  http.StatusBadRequest,
	CodePromoUnknownType:   http.StatusBadRequest,
	CodeServerError:        http.StatusInternalServerError,
	CodeServiceUnavailable: http.StatusServiceUnavailable,
}

// Response 统一响应结构
type Response struct {
	Success bool        `json:"success"`
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// PageData 分页数据结构
type PageData struct {
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Items    interface{} `json:"items"`
}

// StatusFor 返回错误码对应的 HTTP 状态
func StatusFor(code int) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	if code == CodeSuccess {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	SuccessWithMessage(c, "success", data)
}

// SuccessWithMessage 带自定义消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// SuccessPage 分页成功响应
func SuccessPage(c *gin.Context, total int64, page, pageSize int, items interface{}) {
	Success(c, PageData{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Items:    items,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	if message == "" {
		message = codeMessages[code]
	}
	c.JSON(StatusFor(code), Response{
		Success: false,
		Code:    code,
		Error:   message,
	})
}

// ErrorWithData 带附加数据的错误响应
func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	if message == "" {
		message = codeMessages[code]
	}
	c.JSON(StatusFor(code), Response{
		Success: false,
		Code:    code,
		Error:   message,
		Data:    data,
	})
}

// ParamError 参数错误
func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

// AuthError 认证失败
func AuthError(c *gin.Context, message string) {
	Error(c, CodeAuthFailed, message)
}

// PermissionError 权限不足
func PermissionError(c *gin.Context, message string) {
	Error(c, CodePermissionDenied, message)
}

// NotFoundError 资源不存在
func NotFoundError(c *gin.Context, message string) {
	Error(c, CodeResourceNotFound, message)
}

// QuotaError 配额不足
func QuotaError(c *gin.Context, message string) {
	Error(c, CodeQuotaExceeded, message)
}

// DuplicateError 重复操作
func DuplicateError(c *gin.Context, message string) {
	Error(c, CodeDuplicateAction, message)
}

// RateLimitError 请求过于频繁
func RateLimitError(c *gin.Context, message string) {
	Error(c, CodeRateLimited, message)
}

// ServerError 服务器错误
func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

// UnavailableError 服务不可用
func UnavailableError(c *gin.Context, message string) {
	Error(c, CodeServiceUnavailable, message)
}
