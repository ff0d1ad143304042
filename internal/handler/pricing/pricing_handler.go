// Package pricing 提供报价和定价规则管理的 HTTP Handler
package pricing

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/camp-station-backend/internal/common/clock"
	"github.com/dumeirei/camp-station-backend/internal/common/errors"
	"github.com/dumeirei/camp-station-backend/internal/common/handler"
	"github.com/dumeirei/camp-station-backend/internal/common/jwt"
	"github.com/dumeirei/camp-station-backend/internal/common/response"
	"github.com/dumeirei/camp-station-backend/internal/middleware"
	"github.com/dumeirei/camp-station-backend/internal/models"
	pricingService "github.com/dumeirei/camp-station-backend/internal/service/pricing"
)

// Handler 定价处理器
type Handler struct {
	rules      *pricingService.RuleService
	calculator *pricingService.Calculator
}

// NewHandler 创建定价处理器
func NewHandler(rules *pricingService.RuleService, calculator *pricingService.Calculator) *Handler {
	return &Handler{
		rules:      rules,
		calculator: calculator,
	}
}

// QuoteRequest 报价请求
type QuoteRequest struct {
	CheckInDate    string `json:"check_in_date" binding:"required"`
	CheckOutDate   string `json:"check_out_date" binding:"required"`
	NumberOfGuests int    `json:"number_of_guests" binding:"required,min=1"`
}

// Quote 计算营位报价
// @Summary 营位报价
// @Tags 定价
// @Accept json
// @Produce json
// @Param id path int true "营位ID"
// @Param request body QuoteRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.PriceBreakdown}
// @Router /api/v1/sites/{id}/price-quote [post]
func (h *Handler) Quote(c *gin.Context) {
	siteID, ok := handler.ParseID(c, "营位")
	if !ok {
		return
	}

	var req QuoteRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	checkIn, err := clock.ParseDate(req.CheckInDate)
	if err != nil {
		response.BadRequest(c, "入住日期格式应为 YYYY-MM-DD")
		return
	}
	checkOut, err := clock.ParseDate(req.CheckOutDate)
	if err != nil {
		response.BadRequest(c, "退房日期格式应为 YYYY-MM-DD")
		return
	}

	breakdown, err := h.calculator.Quote(c.Request.Context(), siteID, checkIn, checkOut, req.NumberOfGuests)
	handler.MustSucceed(c, err, breakdown)
}

// ListRules 营位的定价规则列表
// @Router /api/v1/sites/{id}/pricing-rules [get]
func (h *Handler) ListRules(c *gin.Context) {
	siteID, ok := handler.ParseID(c, "营位")
	if !ok {
		return
	}
	if handler.HandleError(c, h.authorizeSite(c, siteID)) {
		return
	}

	rules, err := h.rules.ListRules(c.Request.Context(), siteID)
	handler.MustSucceed(c, err, rules)
}

// CreateRule 创建定价规则
// @Router /api/v1/sites/{id}/pricing-rules [post]
func (h *Handler) CreateRule(c *gin.Context) {
	siteID, ok := handler.ParseID(c, "营位")
	if !ok {
		return
	}

	var req pricingService.RuleRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	if handler.HandleError(c, h.authorizeSite(c, siteID)) {
		return
	}

	rule, err := h.rules.CreateRule(c.Request.Context(), siteID, &req)
	handler.MustSucceed(c, err, rule)
}

// GetRule 定价规则详情
// @Router /api/v1/pricing-rules/{id} [get]
func (h *Handler) GetRule(c *gin.Context) {
	rule, ok := h.loadAuthorizedRule(c)
	if !ok {
		return
	}
	response.Success(c, rule)
}

// UpdateRule 整体更新定价规则
// @Router /api/v1/pricing-rules/{id} [put]
func (h *Handler) UpdateRule(c *gin.Context) {
	var req pricingService.RuleRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	rule, ok := h.loadAuthorizedRule(c)
	if !ok {
		return
	}

	updated, err := h.rules.UpdateRule(c.Request.Context(), rule.ID, &req)
	handler.MustSucceed(c, err, updated)
}

// DeleteRule 删除定价规则
// @Router /api/v1/pricing-rules/{id} [delete]
func (h *Handler) DeleteRule(c *gin.Context) {
	rule, ok := h.loadAuthorizedRule(c)
	if !ok {
		return
	}

	err := h.rules.DeleteRule(c.Request.Context(), rule.ID)
	handler.MustSucceed(c, err, nil)
}

func (h *Handler) loadAuthorizedRule(c *gin.Context) (*models.PricingRule, bool) {
	ruleID, ok := handler.ParseID(c, "定价规则")
	if !ok {
		return nil, false
	}

	rule, err := h.rules.GetRule(c.Request.Context(), ruleID)
	if handler.HandleError(c, err) {
		return nil, false
	}
	if handler.HandleError(c, h.authorizeSite(c, rule.SiteID)) {
		return nil, false
	}
	return rule, true
}

// authorizeSite 管理员可管理全部营位，经营者只能管理自己营地的营位
func (h *Handler) authorizeSite(c *gin.Context, siteID int64) error {
	return authorize(c.Request.Context(), h.rules, middleware.GetRole(c), middleware.GetUserID(c), siteID)
}

type siteOwnerLookup interface {
	SiteOwnerID(ctx context.Context, siteID int64) (int64, error)
}

func authorize(ctx context.Context, owners siteOwnerLookup, role string, userID, siteID int64) error {
	switch role {
	case jwt.RoleAdmin:
		_, err := owners.SiteOwnerID(ctx, siteID)
		return err
	case jwt.RoleOwner:
		ownerID, err := owners.SiteOwnerID(ctx, siteID)
		if err != nil {
			return err
		}
		if ownerID != userID {
			return errors.ErrPermissionDenied
		}
		return nil
	}
	return errors.ErrPermissionDenied
}
