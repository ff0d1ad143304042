package pricing

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/camp-station-backend/internal/common/clock"
	"github.com/dumeirei/camp-station-backend/internal/common/errors"
	"github.com/dumeirei/camp-station-backend/internal/common/logger"
	"github.com/dumeirei/camp-station-backend/internal/common/metrics"
	"github.com/dumeirei/camp-station-backend/internal/common/tracing"
	"github.com/dumeirei/camp-station-backend/internal/models"
)

const dateLayout = "2006-01-02"

const (
	// DefaultMaxNights 单笔预订默认最多入住晚数
	DefaultMaxNights = 30
	// MaxNightsCeiling 无论如何配置，单次计价最多展开的晚数
	MaxNightsCeiling = 366
)

var hundred = decimal.NewFromInt(100)

// RuleSource 提供营位的定价规则
type RuleSource interface {
	RulesForSite(ctx context.Context, siteID int64) ([]models.PricingRule, error)
}

// SiteGetter 按 ID 读取营位
type SiteGetter interface {
	GetByID(ctx context.Context, id int64) (*models.Site, error)
}

// Calculator 价格计算器
type Calculator struct {
	rules   RuleSource
	sites   SiteGetter
	clock   clock.Clock
	metrics *metrics.Metrics

	maxNights int
}

// Option 计算器选项
type Option func(*Calculator)

// WithMaxNights 单笔预订最多入住晚数，不在 (0, MaxNightsCeiling] 内时保持默认值
func WithMaxNights(n int) Option {
	return func(c *Calculator) {
		if n > 0 && n <= MaxNightsCeiling {
			c.maxNights = n
		}
	}
}

// NewCalculator 创建价格计算器，m 可以为 nil
func NewCalculator(rules RuleSource, sites SiteGetter, clk clock.Clock, m *metrics.Metrics, opts ...Option) *Calculator {
	if clk == nil {
		clk = clock.Real{}
	}
	c := &Calculator{rules: rules, sites: sites, clock: clk, metrics: m, maxNights: DefaultMaxNights}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxNights 单笔预订最多入住晚数
func (c *Calculator) MaxNights() int {
	return c.maxNights
}

// Calculate 计算在 site 入住 [checkIn, checkOut) 的价格明细
func (c *Calculator) Calculate(ctx context.Context, site *models.Site, checkIn, checkOut time.Time, guests int, now time.Time) (_ *models.PriceBreakdown, err error) {
	ctx, span := tracing.Start(ctx, "pricing.Calculate",
		tracing.WithSiteID(site.ID),
		tracing.AttrGuests.Int(guests),
	)
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	defer func() { c.metrics.ObservePriceCalculation(time.Since(start)) }()

	if nights := clock.DaysBetween(checkIn, checkOut); nights > c.maxNights {
		return nil, errors.ErrInvalidStay.WithMessagef("单笔预订最多 %d 晚", c.maxNights)
	}

	rules, err := c.rules.RulesForSite(ctx, site.ID)
	if err != nil {
		return nil, err
	}

	breakdown, err := ComputeBreakdown(site, rules, checkIn, checkOut, guests, now)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracing.AttrNights.Int(breakdown.Nights))

	if len(breakdown.AmbiguousDates) > 0 {
		logger.Warn("同优先级定价规则竞争",
			logger.Module("pricing"),
			logger.SiteID(site.ID),
			zap.Int("code", errors.ErrRuleResolutionAmbiguous.Code),
			zap.Strings("dates", breakdown.AmbiguousDates),
		)
	}
	return breakdown, nil
}

// Quote 按营位 ID 报价，使用当前时钟判断早鸟折扣
func (c *Calculator) Quote(ctx context.Context, siteID int64, checkIn, checkOut time.Time, guests int) (*models.PriceBreakdown, error) {
	site, err := c.sites.GetByID(ctx, siteID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrSiteNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return c.Calculate(ctx, site, checkIn, checkOut, guests, c.clock.Now())
}

// ComputeBreakdown 根据规则计算价格明细，不访问任何外部资源
//
// 每晚单独解析规则；加人费和折扣只取入住当晚的规则。
func ComputeBreakdown(site *models.Site, rules []models.PricingRule, checkIn, checkOut time.Time, guests int, now time.Time) (*models.PriceBreakdown, error) {
	checkIn, checkOut = clock.Date(checkIn), clock.Date(checkOut)
	if !checkOut.After(checkIn) {
		return nil, errors.ErrInvalidStay.WithMessage("退房日期必须晚于入住日期")
	}
	if clock.DaysBetween(checkIn, checkOut) > MaxNightsCeiling {
		return nil, errors.ErrInvalidStay.WithMessagef("单笔预订最多 %d 晚", MaxNightsCeiling)
	}
	if guests < 1 {
		return nil, errors.ErrInvalidStay.WithMessage("入住人数至少为 1")
	}

	b := &models.PriceBreakdown{
		SiteID:          site.ID,
		CheckIn:         checkIn.Format(dateLayout),
		CheckOut:        checkOut.Format(dateLayout),
		Guests:          guests,
		Nightly:         []models.NightlyRate{},
		Discounts:       []models.DiscountItem{},
		AmbiguousDates:  []string{},
		NightlySubtotal: decimal.Zero,
	}

	var policy *models.PricingRule
	for d := checkIn; d.Before(checkOut); d = d.AddDate(0, 0, 1) {
		res := ResolveDetailed(rules, d)
		rule := res.Rule
		if rule == nil {
			rule = siteDefaultRule(site, guests)
			if rule == nil {
				return nil, errors.ErrNoApplicablePricing.WithMessagef("%s 没有可用的定价", d.Format(dateLayout))
			}
		}
		if res.Ambiguous {
			b.AmbiguousDates = append(b.AmbiguousDates, d.Format(dateLayout))
		}
		if guests > rule.MaxGuests {
			return nil, errors.ErrGuestCountExceeded.WithMessagef("%s 最多入住 %d 人", d.Format(dateLayout), rule.MaxGuests)
		}
		if policy == nil {
			policy = rule
		}

		rate, source := nightlyRate(rule, d.Weekday())
		if res.Rule == nil {
			source = models.RateSourceSiteDefault
		}
		b.Nightly = append(b.Nightly, models.NightlyRate{
			Date:       d.Format(dateLayout),
			Weekday:    models.WeekdayName(d.Weekday()),
			RuleID:     ruleIDPtr(rule),
			RuleName:   rule.Name,
			RuleType:   rule.RuleType,
			RateSource: source,
			Rate:       rate,
		})
		b.NightlySubtotal = b.NightlySubtotal.Add(rate)
	}
	b.Nights = len(b.Nightly)

	// 加人费
	b.GuestPolicyRuleID = ruleIDPtr(policy)
	b.ExtraGuestFee = decimal.Zero
	if guests > policy.BaseGuests {
		b.ExtraGuests = guests - policy.BaseGuests
	}
	if policy.ExtraGuestFee.Valid {
		b.ExtraGuestFee = policy.ExtraGuestFee.Decimal
	}
	b.ExtraGuestTotal = round2(b.ExtraGuestFee.Mul(decimal.NewFromInt(int64(b.ExtraGuests))))
	b.Subtotal = b.NightlySubtotal.Add(b.ExtraGuestTotal)

	// 折扣逐项取整后相加，累计不超过小计
	b.Discounts = discountsFor(policy, b.Nights, clock.DaysBetween(now, checkIn), b.Subtotal)
	b.DiscountPercent = decimal.Zero
	b.TotalDiscount = decimal.Zero
	remaining := b.Subtotal
	for i := range b.Discounts {
		item := &b.Discounts[i]
		if item.Amount.GreaterThan(remaining) {
			item.Amount = remaining
		}
		remaining = remaining.Sub(item.Amount)
		b.DiscountPercent = b.DiscountPercent.Add(item.Percent)
		b.TotalDiscount = b.TotalDiscount.Add(item.Amount)
	}
	b.Total = b.Subtotal.Sub(b.TotalDiscount)
	return b, nil
}

// nightlyRate 当晚价格：星期倍率优先，其次周五周六的周末价，最后基础价
func nightlyRate(rule *models.PricingRule, weekday time.Weekday) (decimal.Decimal, models.RateSource) {
	if m, ok := rule.DayMultipliers[weekday]; ok {
		return round2(rule.BasePrice.Mul(m)), models.RateSourceMultiplier
	}
	if rule.WeekendPrice.Valid && (weekday == time.Friday || weekday == time.Saturday) {
		return round2(rule.WeekendPrice.Decimal), models.RateSourceWeekend
	}
	return round2(rule.BasePrice), models.RateSourceBase
}

func discountsFor(rule *models.PricingRule, nights, daysAhead int, subtotal decimal.Decimal) []models.DiscountItem {
	items := []models.DiscountItem{}
	add := func(t models.DiscountType, name string, pct decimal.Decimal) {
		items = append(items, models.DiscountItem{
			Type:    t,
			Name:    name,
			RuleID:  ruleIDPtr(rule),
			Percent: pct,
			Amount:  round2(subtotal.Mul(pct).Div(hundred)),
		})
	}

	switch {
	case positive(rule.ExtendedStayDiscountRate) && nights >= rule.ExtendedStayThreshold():
		add(models.DiscountExtendedStay, "连住优惠", rule.ExtendedStayDiscountRate.Decimal)
	case positive(rule.LongStayDiscountRate) && nights >= rule.LongStayThreshold():
		add(models.DiscountLongStay, "长住优惠", rule.LongStayDiscountRate.Decimal)
	}
	if positive(rule.EarlyBirdDiscountRate) && daysAhead >= rule.EarlyBirdThreshold() {
		add(models.DiscountEarlyBird, "早鸟优惠", rule.EarlyBirdDiscountRate.Decimal)
	}
	return items
}

// siteDefaultRule 没有规则命中时用营位默认价构造的临时规则
func siteDefaultRule(site *models.Site, guests int) *models.PricingRule {
	if site == nil || !site.DefaultPrice.Valid {
		return nil
	}
	capacity := guests
	if site.Capacity != nil {
		capacity = *site.Capacity
	}
	return &models.PricingRule{
		SiteID:     site.ID,
		Name:       strings.TrimSpace("营位默认价 " + site.SiteNumber),
		RuleType:   models.RuleTypeBase,
		BasePrice:  site.DefaultPrice.Decimal,
		BaseGuests: capacity,
		MaxGuests:  capacity,
		IsActive:   true,
	}
}

func ruleIDPtr(rule *models.PricingRule) *int64 {
	if rule == nil || rule.ID == 0 {
		return nil
	}
	id := rule.ID
	return &id
}

func positive(d decimal.NullDecimal) bool {
	return d.Valid && d.Decimal.IsPositive()
}

// round2 保留两位小数，四舍五入
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
