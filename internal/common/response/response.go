// Package response 提供统一的 API 响应格式
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response API 统一响应结构
//
// 业务错误同样返回 HTTP 200，通过 Code 区分；鉴权、参数和服务器错误使用对应的 HTTP 状态码。
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageData 分页数据结构
type PageData struct {
	List     interface{} `json:"list"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// SuccessPage 分页成功响应
func SuccessPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data: PageData{
			List:     list,
			Total:    total,
			Page:     page,
			PageSize: pageSize,
		},
	})
}

// Error 业务错误响应
func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func status(c *gin.Context, httpStatus int, message, fallback string) {
	if message == "" {
		message = fallback
	}
	c.JSON(httpStatus, Response{
		Code:    httpStatus,
		Message: message,
	})
}

// BadRequest 请求参数错误
func BadRequest(c *gin.Context, message string) {
	status(c, http.StatusBadRequest, message, "bad request")
}

// Unauthorized 未授权
func Unauthorized(c *gin.Context, message string) {
	status(c, http.StatusUnauthorized, message, "unauthorized")
}

// Forbidden 禁止访问
func Forbidden(c *gin.Context, message string) {
	status(c, http.StatusForbidden, message, "forbidden")
}

// NotFound 资源不存在
func NotFound(c *gin.Context, message string) {
	status(c, http.StatusNotFound, message, "not found")
}

// InternalError 服务器内部错误
func InternalError(c *gin.Context, message string) {
	status(c, http.StatusInternalServerError, message, "internal server error")
}

// ServiceUnavailable 依赖不可用
func ServiceUnavailable(c *gin.Context, message string) {
	status(c, http.StatusServiceUnavailable, message, "service unavailable")
}

// TooManyRequests 请求过于频繁
func TooManyRequests(c *gin.Context, message string) {
	status(c, http.StatusTooManyRequests, message, "too many requests")
}
