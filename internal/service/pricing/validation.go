package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dumeirei/camp-station-backend/internal/common/errors"
	"github.com/dumeirei/camp-station-backend/internal/models"
)

// ValidateRule 校验规则字段，创建和更新共用
func ValidateRule(r *models.PricingRule) error {
	invalid := errors.ErrPricingRuleInvalid.WithMessagef

	if r.Name == "" {
		return invalid("规则名称不能为空")
	}
	if !r.RuleType.Valid() {
		return invalid("未知的规则类型 %q", r.RuleType)
	}
	if r.BaseGuests < 1 {
		return invalid("基础人数至少为 1")
	}
	if r.MaxGuests < r.BaseGuests {
		return invalid("最大人数不能小于基础人数")
	}

	if r.BasePrice.IsNegative() {
		return invalid("基础价不能为负")
	}
	if r.WeekendPrice.Valid && r.WeekendPrice.Decimal.IsNegative() {
		return invalid("周末价不能为负")
	}
	if r.ExtraGuestFee.Valid && r.ExtraGuestFee.Decimal.IsNegative() {
		return invalid("加人费不能为负")
	}
	for day, m := range r.DayMultipliers {
		if _, ok := models.ParseWeekday(models.WeekdayName(day)); !ok {
			return invalid("无效的星期 %d", day)
		}
		if m.IsNegative() {
			return invalid("%s 倍率不能为负", models.WeekdayName(day))
		}
	}

	for _, rate := range []struct {
		name string
		v    decimal.NullDecimal
	}{
		{"长住折扣", r.LongStayDiscountRate},
		{"连住折扣", r.ExtendedStayDiscountRate},
		{"早鸟折扣", r.EarlyBirdDiscountRate},
	} {
		if rate.v.Valid && (rate.v.Decimal.IsNegative() || rate.v.Decimal.GreaterThan(hundred)) {
			return invalid("%s比例必须在 0 到 100 之间", rate.name)
		}
	}
	for _, floor := range []struct {
		name string
		v    *int
	}{
		{"长住最少晚数", r.LongStayMinNights},
		{"连住最少晚数", r.ExtendedStayMinNights},
		{"早鸟最少提前天数", r.EarlyBirdMinDays},
	} {
		if floor.v != nil && *floor.v < 1 {
			return invalid("%s至少为 1", floor.name)
		}
	}

	if err := validateDateRange(r); err != nil {
		return err
	}

	switch r.RuleType {
	case models.RuleTypeDateRange, models.RuleTypeSpecialEvent:
		if !r.HasDateRange() {
			return invalid("%s 规则必须配置起止月日", r.RuleType)
		}
		if r.SeasonType != nil {
			return invalid("%s 规则不能配置季节", r.RuleType)
		}
	case models.RuleTypeSeasonal:
		if r.SeasonType == nil || !r.SeasonType.Valid() {
			return invalid("季节规则必须配置有效的季节")
		}
	case models.RuleTypeBase:
		if r.SeasonType != nil || r.HasDateRange() {
			return invalid("基础规则不能配置季节或日期区间")
		}
	}
	return nil
}

// validateDateRange 月日四个字段要么全部配置要么全部为空
func validateDateRange(r *models.PricingRule) error {
	fields := []*int{r.StartMonth, r.StartDay, r.EndMonth, r.EndDay}
	set := 0
	for _, f := range fields {
		if f != nil {
			set++
		}
	}
	if set == 0 {
		return nil
	}
	if set != len(fields) {
		return errors.ErrPricingRuleInvalid.WithMessage("起止月日必须同时配置")
	}
	if !validMonthDay(*r.StartMonth, *r.StartDay) {
		return errors.ErrPricingRuleInvalid.WithMessagef("无效的开始日期 %d-%d", *r.StartMonth, *r.StartDay)
	}
	if !validMonthDay(*r.EndMonth, *r.EndDay) {
		return errors.ErrPricingRuleInvalid.WithMessagef("无效的结束日期 %d-%d", *r.EndMonth, *r.EndDay)
	}
	return nil
}

// validMonthDay 月日是否存在，允许 2 月 29 日
func validMonthDay(month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	// 2024 为闰年
	last := time.Date(2024, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	return day <= last
}
