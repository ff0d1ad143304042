// Package payment 提供支付服务回调的 HTTP Handler
package payment

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/camp-station-backend/internal/common/handler"
	reservationService "github.com/dumeirei/camp-station-backend/internal/service/reservation"
)

// Handler 支付回调处理器，路由需挂在内部令牌认证之后
type Handler struct {
	booking *reservationService.BookingService
}

// NewHandler 创建支付回调处理器
func NewHandler(booking *reservationService.BookingService) *Handler {
	return &Handler{booking: booking}
}

// FailedRequest 支付失败回调
type FailedRequest struct {
	Reason string `json:"reason" binding:"max=200"`
}

// ConfirmationRequest 银行转账到账确认申请
type ConfirmationRequest struct {
	DepositorName string `json:"depositor_name" binding:"required,max=50"`
}

// Confirmed 支付成功回调
// @Router /api/v1/payments/reservations/{id}/confirmed [post]
func (h *Handler) Confirmed(c *gin.Context) {
	id, ok := handler.ParseID(c, "预订")
	if !ok {
		return
	}

	info, err := h.booking.OnPaymentConfirmed(c.Request.Context(), id)
	handler.MustSucceed(c, err, info)
}

// Failed 支付失败或支付单过期回调
// @Router /api/v1/payments/reservations/{id}/failed [post]
func (h *Handler) Failed(c *gin.Context) {
	id, ok := handler.ParseID(c, "预订")
	if !ok {
		return
	}

	var req FailedRequest
	if c.Request.ContentLength > 0 && !handler.BindJSON(c, &req) {
		return
	}

	info, err := h.booking.OnPaymentFailedOrExpired(c.Request.Context(), id, req.Reason)
	handler.MustSucceed(c, err, info)
}

// ConfirmationRequested 用户提交转账凭证，等待人工确认
// @Router /api/v1/payments/reservations/{id}/confirmation-requested [post]
func (h *Handler) ConfirmationRequested(c *gin.Context) {
	id, ok := handler.ParseID(c, "预订")
	if !ok {
		return
	}

	var req ConfirmationRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	info, err := h.booking.RequestManualConfirmation(c.Request.Context(), id, req.DepositorName)
	handler.MustSucceed(c, err, info)
}
