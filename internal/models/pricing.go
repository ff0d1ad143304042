package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RuleType 定价规则类型
type RuleType string

// 定价规则类型
const (
	RuleTypeBase         RuleType = "BASE"
	RuleTypeSeasonal     RuleType = "SEASONAL"
	RuleTypeDateRange    RuleType = "DATE_RANGE"
	RuleTypeSpecialEvent RuleType = "SPECIAL_EVENT"
)

// Valid 是否为已知类型
func (t RuleType) Valid() bool {
	switch t {
	case RuleTypeBase, RuleTypeSeasonal, RuleTypeDateRange, RuleTypeSpecialEvent:
		return true
	}
	return false
}

// DefaultPriority 未显式指定优先级时使用的默认值
func (t RuleType) DefaultPriority() int {
	switch t {
	case RuleTypeSeasonal:
		return 10
	case RuleTypeDateRange:
		return 20
	case RuleTypeSpecialEvent:
		return 30
	default:
		return 0
	}
}

// SeasonType 季节
type SeasonType string

// 季节
const (
	SeasonPeak   SeasonType = "PEAK"
	SeasonHigh   SeasonType = "HIGH"
	SeasonNormal SeasonType = "NORMAL"
	SeasonLow    SeasonType = "LOW"
)

// Valid 是否为已知季节
func (s SeasonType) Valid() bool {
	switch s {
	case SeasonPeak, SeasonHigh, SeasonNormal, SeasonLow:
		return true
	}
	return false
}

// ContainsMonth 季节是否覆盖该月份，NORMAL 覆盖全年
func (s SeasonType) ContainsMonth(m time.Month) bool {
	switch s {
	case SeasonPeak:
		return m == time.July || m == time.August
	case SeasonHigh:
		return m == time.April || m == time.May || m == time.September || m == time.October
	case SeasonLow:
		return m == time.December || m == time.January || m == time.February
	case SeasonNormal:
		return true
	}
	return false
}

// PricingRule 营位定价规则
type PricingRule struct {
	ID          int64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SiteID      int64    `gorm:"index;not null;uniqueIndex:uk_site_rule_name,priority:1" json:"site_id"`
	Name        string   `gorm:"type:varchar(100);not null;uniqueIndex:uk_site_rule_name,priority:2" json:"name"`
	Description *string  `gorm:"type:text" json:"description,omitempty"`
	RuleType    RuleType `gorm:"type:varchar(20);not null" json:"rule_type"`
	Priority    int      `gorm:"not null" json:"priority"`

	BasePrice      decimal.Decimal     `gorm:"type:decimal(10,2);not null" json:"base_price"`
	WeekendPrice   decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"weekend_price"`
	DayMultipliers WeekdayMultipliers  `gorm:"type:text" json:"day_multipliers,omitempty"`

	BaseGuests    int                 `gorm:"not null" json:"base_guests"`
	MaxGuests     int                 `gorm:"not null" json:"max_guests"`
	ExtraGuestFee decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"extra_guest_fee"`

	SeasonType *SeasonType `gorm:"type:varchar(10)" json:"season_type,omitempty"`
	StartMonth *int        `json:"start_month,omitempty"`
	StartDay   *int        `json:"start_day,omitempty"`
	EndMonth   *int        `json:"end_month,omitempty"`
	EndDay     *int        `json:"end_day,omitempty"`

	LongStayDiscountRate     decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"long_stay_discount_rate"`
	LongStayMinNights        *int                `json:"long_stay_min_nights,omitempty"`
	ExtendedStayDiscountRate decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"extended_stay_discount_rate"`
	ExtendedStayMinNights    *int                `json:"extended_stay_min_nights,omitempty"`
	EarlyBirdDiscountRate    decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"early_bird_discount_rate"`
	EarlyBirdMinDays         *int                `json:"early_bird_min_days,omitempty"`

	IsActive  bool      `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (PricingRule) TableName() string {
	return "site_pricing_rules"
}

// 折扣门槛默认值
const (
	DefaultLongStayMinNights     = 3
	DefaultExtendedStayMinNights = 7
	DefaultEarlyBirdMinDays      = 30
)

// HasDateRange 是否配置了月日区间
func (r *PricingRule) HasDateRange() bool {
	return r.StartMonth != nil && r.StartDay != nil && r.EndMonth != nil && r.EndDay != nil
}

// LongStayThreshold 长住折扣最少晚数
func (r *PricingRule) LongStayThreshold() int {
	return intOr(r.LongStayMinNights, DefaultLongStayMinNights)
}

// ExtendedStayThreshold 超长住折扣最少晚数
func (r *PricingRule) ExtendedStayThreshold() int {
	return intOr(r.ExtendedStayMinNights, DefaultExtendedStayMinNights)
}

// EarlyBirdThreshold 早鸟折扣最少提前天数
func (r *PricingRule) EarlyBirdThreshold() int {
	return intOr(r.EarlyBirdMinDays, DefaultEarlyBirdMinDays)
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// weekdayNames 星期的存储键
var weekdayNames = map[time.Weekday]string{
	time.Monday:    "MONDAY",
	time.Tuesday:   "TUESDAY",
	time.Wednesday: "WEDNESDAY",
	time.Thursday:  "THURSDAY",
	time.Friday:    "FRIDAY",
	time.Saturday:  "SATURDAY",
	time.Sunday:    "SUNDAY",
}

// WeekdayName 星期的大写英文名
func WeekdayName(d time.Weekday) string {
	return weekdayNames[d]
}

// ParseWeekday 解析大写英文星期名
func ParseWeekday(s string) (time.Weekday, bool) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for d, name := range weekdayNames {
		if name == upper {
			return d, true
		}
	}
	return 0, false
}

// WeekdayMultipliers 按星期的价格倍率，以 {"MONDAY":"1.2"} 形式存储
type WeekdayMultipliers map[time.Weekday]decimal.Decimal

// MarshalJSON 键按星期顺序输出
func (w WeekdayMultipliers) MarshalJSON() ([]byte, error) {
	if w == nil {
		return []byte("null"), nil
	}
	days := make([]int, 0, len(w))
	for d := range w {
		days = append(days, int(d))
	}
	sort.Ints(days)

	var b strings.Builder
	b.WriteByte('{')
	for i, d := range days {
		if i > 0 {
			b.WriteByte(',')
		}
		name, ok := weekdayNames[time.Weekday(d)]
		if !ok {
			return nil, fmt.Errorf("invalid weekday %d", d)
		}
		v, _ := json.Marshal(w[time.Weekday(d)])
		fmt.Fprintf(&b, "%q:%s", name, v)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// UnmarshalJSON 解析星期名为键的对象
func (w *WeekdayMultipliers) UnmarshalJSON(data []byte) error {
	var raw map[string]decimal.Decimal
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*w = nil
		return nil
	}
	out := make(WeekdayMultipliers, len(raw))
	for k, v := range raw {
		d, ok := ParseWeekday(k)
		if !ok {
			return fmt.Errorf("unknown weekday %q", k)
		}
		out[d] = v
	}
	*w = out
	return nil
}

// Scan 实现 sql.Scanner 接口
func (w *WeekdayMultipliers) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*w = nil
		return nil
	case []byte:
		if len(v) == 0 {
			*w = nil
			return nil
		}
		return w.UnmarshalJSON(v)
	case string:
		if v == "" {
			*w = nil
			return nil
		}
		return w.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("unsupported day multipliers type %T", value)
	}
}

// Value 实现 driver.Valuer 接口
func (w WeekdayMultipliers) Value() (driver.Value, error) {
	if len(w) == 0 {
		return nil, nil
	}
	b, err := w.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
