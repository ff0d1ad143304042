// Package handler 提供 API Handler 的通用辅助函数
// 统一错误处理、认证检查、参数解析等操作
package handler

import (
	stderrors "errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/camp-station-backend/internal/common/errors"
	"github.com/dumeirei/camp-station-backend/internal/common/logger"
	"github.com/dumeirei/camp-station-backend/internal/common/response"
	"github.com/dumeirei/camp-station-backend/internal/common/utils"
	"github.com/dumeirei/camp-station-backend/internal/middleware"
)

// HandleError 处理错误并发送适当的响应
// 如果 err 为 nil，返回 false（表示无错误需要处理）
// 如果 err 不为 nil，发送错误响应并返回 true（调用方应该 return）
//
// AppError 按业务错误码返回；其他错误只记录日志，不向调用方暴露细节。
//
// 使用示例:
//
//	result, err := service.DoSomething()
//	if HandleError(c, err) {
//	    return
//	}
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		if appErr.Err != nil {
			logger.Warn("请求处理失败",
				logger.RequestID(middleware.GetRequestID(c)),
				logger.Path(c.Request.URL.Path),
				logger.Err(err),
			)
		}
		response.Error(c, appErr.Code, appErr.Message)
		return true
	}
	logger.Error("请求处理出现未知错误",
		logger.RequestID(middleware.GetRequestID(c)),
		logger.Path(c.Request.URL.Path),
		logger.Err(err),
	)
	response.InternalError(c, "服务器内部错误")
	return true
}

// MustSucceed 如果有错误则返回错误响应，否则返回成功响应
//
// 使用示例:
//
//	result, err := service.GetData()
//	MustSucceed(c, err, result)
//	return  // 注意：调用 MustSucceed 后必须 return
func MustSucceed(c *gin.Context, err error, data interface{}) {
	if HandleError(c, err) {
		return
	}
	response.Success(c, data)
}

// MustSucceedPage 分页响应版本
func MustSucceedPage(c *gin.Context, err error, list interface{}, p *utils.Pagination) {
	if HandleError(c, err) {
		return
	}
	response.SuccessPage(c, list, p.Total, p.Page, p.PageSize)
}

// RequireUserID 获取当前用户ID，如果未登录则返回401响应
// 返回 (userID, true) 表示已登录
// 返回 (0, false) 表示未登录（已发送响应，调用方应该 return）
func RequireUserID(c *gin.Context) (int64, bool) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return 0, false
	}
	return userID, true
}

// ParseID 解析路径参数 "id" 为 int64
// 返回 (0, false) 表示解析失败（已发送400响应，调用方应该 return）
func ParseID(c *gin.Context, resourceName string) (int64, bool) {
	return ParseParamID(c, "id", resourceName)
}

// ParseParamID 解析指定路径参数为 int64
// paramName: 路径参数名称（如 "id", "site_id"）
// resourceName: 资源名称，用于错误消息（如 "营位", "预订"）
func ParseParamID(c *gin.Context, paramName, resourceName string) (int64, bool) {
	idStr := c.Param(paramName)
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "无效的"+resourceName+"ID")
		return 0, false
	}
	return id, true
}

// BindJSON 绑定请求体，失败时返回400响应
func BindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return false
	}
	return true
}

// BindPagination 从查询参数绑定并规范化分页参数
// 默认 page=1, pageSize=10, 最大 pageSize=100
func BindPagination(c *gin.Context) *utils.Pagination {
	var p utils.Pagination
	p.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	p.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "10"))
	p.Normalize()
	return &p
}

