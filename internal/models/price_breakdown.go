package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// RateSource 当晚价格来源
type RateSource string

// 价格来源
const (
	RateSourceMultiplier  RateSource = "DAY_MULTIPLIER"
	RateSourceWeekend     RateSource = "WEEKEND_PRICE"
	RateSourceBase        RateSource = "BASE_PRICE"
	RateSourceSiteDefault RateSource = "SITE_DEFAULT"
)

// DiscountType 折扣类型
type DiscountType string

// 折扣类型
const (
	DiscountLongStay     DiscountType = "LONG_STAY"
	DiscountExtendedStay DiscountType = "EXTENDED_STAY"
	DiscountEarlyBird    DiscountType = "EARLY_BIRD"
)

// PriceBreakdown 价格明细，预订时作为快照保存
type PriceBreakdown struct {
	SiteID   int64  `json:"site_id"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Nights   int    `json:"nights"`
	Guests   int    `json:"guests"`

	Nightly         []NightlyRate   `json:"nightly"`
	NightlySubtotal decimal.Decimal `json:"nightly_subtotal"`

	ExtraGuests       int             `json:"extra_guests"`
	ExtraGuestFee     decimal.Decimal `json:"extra_guest_fee"`
	ExtraGuestTotal   decimal.Decimal `json:"extra_guest_total"`
	GuestPolicyRuleID *int64          `json:"guest_policy_rule_id"`

	Subtotal        decimal.Decimal `json:"subtotal"`
	Discounts       []DiscountItem  `json:"discounts"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TotalDiscount   decimal.Decimal `json:"total_discount"`
	Total           decimal.Decimal `json:"total"`

	// AmbiguousDates 存在同优先级规则竞争的日期
	AmbiguousDates []string `json:"ambiguous_dates"`
}

// NightlyRate 单晚价格
type NightlyRate struct {
	Date       string          `json:"date"`
	Weekday    string          `json:"weekday"`
	RuleID     *int64          `json:"rule_id"`
	RuleName   string          `json:"rule_name"`
	RuleType   RuleType        `json:"rule_type"`
	RateSource RateSource      `json:"rate_source"`
	Rate       decimal.Decimal `json:"rate"`
}

// DiscountItem 折扣项
type DiscountItem struct {
	Type    DiscountType    `json:"type"`
	Name    string          `json:"name"`
	RuleID  *int64          `json:"rule_id"`
	Percent decimal.Decimal `json:"percent"`
	Amount  decimal.Decimal `json:"amount"`
}

// Scan 实现 sql.Scanner 接口
func (p *PriceBreakdown) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported price breakdown type %T", value)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, p)
}

// Value 实现 driver.Valuer 接口
func (p *PriceBreakdown) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
