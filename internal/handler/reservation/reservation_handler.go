// Package reservation 提供营位预订相关的 HTTP Handler
package reservation

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/camp-station-backend/internal/common/handler"
	"github.com/dumeirei/camp-station-backend/internal/common/qrcode"
	"github.com/dumeirei/camp-station-backend/internal/common/response"
	"github.com/dumeirei/camp-station-backend/internal/middleware"
	reservationService "github.com/dumeirei/camp-station-backend/internal/service/reservation"
)

// Handler 预订处理器
type Handler struct {
	booking *reservationService.BookingService
	qr      *qrcode.Generator
}

// NewHandler 创建预订处理器
func NewHandler(booking *reservationService.BookingService, qr *qrcode.Generator) *Handler {
	if qr == nil {
		qr = qrcode.NewGenerator()
	}
	return &Handler{booking: booking, qr: qr}
}

// CurrentActor 根据登录状态构造操作者，未登录视为访客
func CurrentActor(c *gin.Context) reservationService.Actor {
	if !middleware.IsLoggedIn(c) {
		return reservationService.Actor{Role: reservationService.RoleGuest}
	}
	role := reservationService.ParseRole(middleware.GetRole(c))
	// 系统角色只能由内部调用产生
	if role == reservationService.RoleSystem || role == reservationService.RoleGuest {
		role = reservationService.RoleUser
	}
	return reservationService.Actor{Role: role, UserID: middleware.GetUserID(c)}
}

// CancelRequest 取消预订请求
type CancelRequest struct {
	Reason string `json:"reason" binding:"max=200"`
}

// GuestCancelRequest 访客取消预订请求
type GuestCancelRequest struct {
	ReservationNo string `json:"reservation_no" binding:"required"`
	Phone         string `json:"phone" binding:"required"`
	Reason        string `json:"reason" binding:"max=200"`
}

// CreateReservation 创建预订
// @Summary 创建预订
// @Tags 预订
// @Accept json
// @Produce json
// @Param request body reservationService.CreateReservationRequest true "请求参数"
// @Success 200 {object} response.Response{data=reservationService.ReservationInfo}
// @Router /api/v1/reservations [post]
func (h *Handler) CreateReservation(c *gin.Context) {
	var req reservationService.CreateReservationRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	info, err := h.booking.CreateReservation(c.Request.Context(), CurrentActor(c), &req)
	handler.MustSucceed(c, err, info)
}

// GetReservation 预订详情
// @Router /api/v1/reservations/{id} [get]
func (h *Handler) GetReservation(c *gin.Context) {
	id, ok := handler.ParseID(c, "预订")
	if !ok {
		return
	}

	info, err := h.booking.GetReservation(c.Request.Context(), CurrentActor(c), id)
	handler.MustSucceed(c, err, info)
}

// UpdateReservation 修改待支付预订
// @Summary 修改预订
// @Tags 预订
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "预订ID"
// @Param request body reservationService.UpdateReservationRequest true "请求参数"
// @Success 200 {object} response.Response{data=reservationService.ReservationInfo}
// @Router /api/v1/reservations/{id} [put]
func (h *Handler) UpdateReservation(c *gin.Context) {
	id, ok := handler.ParseID(c, "预订")
	if !ok {
		return
	}

	var req reservationService.UpdateReservationRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	info, err := h.booking.UpdateReservation(c.Request.Context(), CurrentActor(c), id, &req)
	handler.MustSucceed(c, err, info)
}

// ListMyReservations 我的预订
// @Summary 我的预订列表
// @Tags 预订
// @Security BearerAuth
// @Param status query string false "状态，逗号分隔"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Router /api/v1/reservations/my [get]
func (h *Handler) ListMyReservations(c *gin.Context) {
	page := handler.BindPagination(c)
	list, err := h.booking.ListMyReservations(c.Request.Context(), CurrentActor(c), parseStatuses(c), page)
	handler.MustSucceedPage(c, err, list, page)
}

// CancelReservation 取消预订
// @Router /api/v1/reservations/{id}/cancel [post]
func (h *Handler) CancelReservation(c *gin.Context) {
	id, ok := handler.ParseID(c, "预订")
	if !ok {
		return
	}

	var req CancelRequest
	if c.Request.ContentLength > 0 && !handler.BindJSON(c, &req) {
		return
	}

	info, err := h.booking.CancelReservation(c.Request.Context(), CurrentActor(c), id, req.Reason)
	handler.MustSucceed(c, err, info)
}

// CompleteReservation 标记预订完成
// @Summary 完成预订
// @Tags 预订
// @Security BearerAuth
// @Param id path int true "预订ID"
// @Router /api/v1/reservations/{id}/complete [post]
func (h *Handler) CompleteReservation(c *gin.Context) {
	id, ok := handler.ParseID(c, "预订")
	if !ok {
		return
	}

	info, err := h.booking.CompleteReservation(c.Request.Context(), CurrentActor(c), id)
	handler.MustSucceed(c, err, info)
}

// GetVoucher 入营凭证二维码，format=png 时直接返回图片
// @Summary 入营凭证
// @Tags 预订
// @Produce json,png
// @Param id path int true "预订ID"
// @Param format query string false "png 返回图片"
// @Router /api/v1/reservations/{id}/voucher [get]
func (h *Handler) GetVoucher(c *gin.Context) {
	id, ok := handler.ParseID(c, "预订")
	if !ok {
		return
	}

	voucher, err := h.booking.CheckInVoucher(c.Request.Context(), CurrentActor(c), id)
	if err != nil {
		handler.HandleError(c, err)
		return
	}

	if c.Query("format") == "png" {
		data, err := h.qr.PNG(voucher.Content)
		if err != nil {
			handler.HandleError(c, err)
			return
		}
		c.Data(http.StatusOK, "image/png", data)
		return
	}

	url, err := h.qr.DataURL(voucher.Content)
	handler.MustSucceed(c, err, gin.H{"voucher": voucher, "qrcode": url})
}

// GetGuestReservation 访客凭预订号和手机号查询
// @Router /api/v1/guest/reservations [get]
func (h *Handler) GetGuestReservation(c *gin.Context) {
	no, phone := c.Query("reservation_no"), c.Query("phone")
	if no == "" || phone == "" {
		response.BadRequest(c, "请提供预订号和手机号")
		return
	}

	info, err := h.booking.GetGuestReservation(c.Request.Context(), no, phone)
	handler.MustSucceed(c, err, info)
}

// CancelGuestReservation 访客凭预订号和手机号取消
// @Router /api/v1/guest/reservations/cancel [post]
func (h *Handler) CancelGuestReservation(c *gin.Context) {
	var req GuestCancelRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	info, err := h.booking.CancelGuestReservation(c.Request.Context(), req.ReservationNo, req.Phone, req.Reason)
	handler.MustSucceed(c, err, info)
}

// CheckAvailability 查询营位在指定日期是否可订
// @Router /api/v1/sites/{id}/availability [get]
func (h *Handler) CheckAvailability(c *gin.Context) {
	siteID, ok := handler.ParseID(c, "营位")
	if !ok {
		return
	}

	checkIn, checkOut := c.Query("check_in"), c.Query("check_out")
	if checkIn == "" || checkOut == "" {
		response.BadRequest(c, "请指定入住和退房日期")
		return
	}

	info, err := h.booking.CheckAvailability(c.Request.Context(), siteID, checkIn, checkOut)
	handler.MustSucceed(c, err, info)
}

// ListSiteReservations 营位的预订列表，status 可用逗号分隔多个
// @Router /api/v1/sites/{id}/reservations [get]
func (h *Handler) ListSiteReservations(c *gin.Context) {
	siteID, ok := handler.ParseID(c, "营位")
	if !ok {
		return
	}

	page := handler.BindPagination(c)
	list, err := h.booking.ListSiteReservations(c.Request.Context(), CurrentActor(c), siteID, parseStatuses(c), page)
	handler.MustSucceedPage(c, err, list, page)
}

// SiteReservedDates 营位已被占用的日期区间
// @Summary 营位占用日期
// @Tags 营位
// @Param id path int true "营位ID"
// @Router /api/v1/sites/{id}/reserved-dates [get]
func (h *Handler) SiteReservedDates(c *gin.Context) {
	siteID, ok := handler.ParseID(c, "营位")
	if !ok {
		return
	}

	ranges, err := h.booking.ReservedDatesForSite(c.Request.Context(), siteID)
	handler.MustSucceed(c, err, ranges)
}

// CampgroundReservedDates 营地各营位已被占用的日期区间
// @Summary 营地占用日期
// @Tags 营位
// @Param id path int true "营地ID"
// @Router /api/v1/campgrounds/{id}/reserved-dates [get]
func (h *Handler) CampgroundReservedDates(c *gin.Context) {
	campgroundID, ok := handler.ParseID(c, "营地")
	if !ok {
		return
	}

	sites, err := h.booking.ReservedDatesForCampground(c.Request.Context(), campgroundID)
	handler.MustSucceed(c, err, sites)
}

// parseStatuses 解析 status 查询参数，多个状态用逗号分隔
func parseStatuses(c *gin.Context) []string {
	var statuses []string
	if s := c.Query("status"); s != "" {
		for _, status := range strings.Split(s, ",") {
			if status = strings.TrimSpace(status); status != "" {
				statuses = append(statuses, strings.ToUpper(status))
			}
		}
	}
	return statuses
}
