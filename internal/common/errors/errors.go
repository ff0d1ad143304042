// Package errors 定义业务错误码和错误处理
package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError 应用错误
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码匹配，WithMessage/WithError 派生的错误与原哨兵错误相等
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New 创建新的应用错误
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装错误
func Wrap(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithMessage 修改错误消息
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: message,
		Err:     e.Err,
	}
}

// WithMessagef 格式化修改错误消息
func (e *AppError) WithMessagef(format string, args ...interface{}) *AppError {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// WithError 添加原始错误
func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// 通用错误码 (1000-1999)
var (
	ErrUnknown         = New(1000, "未知错误")
	ErrInvalidParams   = New(1001, "参数错误")
	ErrNotFound        = New(1002, "资源不存在")
	ErrAlreadyExists   = New(1003, "资源已存在")
	ErrDatabaseError   = New(1004, "数据库错误")
	ErrCacheError      = New(1005, "缓存错误")
	ErrInternalError   = New(1006, "内部错误")
	ErrExternalService = New(1007, "外部服务错误")
	ErrRateLimitExceed = New(1008, "请求过于频繁")
	ErrLockTimeout     = New(1009, "获取锁超时")
)

// 认证错误码 (2000-2999)
var (
	ErrUnauthorized     = New(2000, "未登录")
	ErrTokenExpired     = New(2001, "登录已过期")
	ErrTokenInvalid     = New(2002, "无效的令牌")
	ErrPermissionDenied = New(2004, "权限不足")
)

// 营地与定价错误码 (4000-4999)
var (
	ErrSiteNotFound          = New(4010, "营位不存在")
	ErrSiteNotAvailable      = New(4011, "营位不可预订")
	ErrPricingRuleNotFound   = New(4012, "定价规则不存在")
	ErrPricingRuleInvalid    = New(4013, "定价规则无效")
	ErrPricingRuleNameExists = New(4014, "定价规则名称已存在")
	ErrCampgroundNotActive   = New(4015, "营地未开放")
	ErrCampgroundNotFound    = New(4016, "营地不存在")
)

// 支付错误码 (6000-6999)
var (
	ErrPaymentNotFound = New(6000, "支付记录不存在")
)

// 预订错误码 (8000-8999)
var (
	ErrReservationNotFound     = New(8000, "预订不存在")
	ErrSlotConflict            = New(8002, "该营位在所选日期已被预订")
	ErrReservationExpired      = New(8003, "预订已过支付期限")
	ErrInvalidStay             = New(8101, "无效的入住日期或人数")
	ErrGuestCountExceeded      = New(8102, "入住人数超过营位上限")
	ErrInvalidStatusTransition = New(8103, "预订状态不允许此操作")
	ErrRuleResolutionAmbiguous = New(8104, "多条定价规则优先级相同")
	ErrNoApplicablePricing     = New(8105, "所选日期没有可用的定价")
	ErrReservationCannotCancel = New(8106, "预订无法取消")
	ErrReservationNotConfirmed = New(8107, "预订尚未确认")
)

// IsAppError 判断是否为应用错误
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError 获取应用错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrUnknown.WithError(err)
}
