// Package pricing 提供营位定价规则管理、按晚规则解析与价格计算
package pricing

import (
	"sort"
	"time"

	"github.com/dumeirei/camp-station-backend/internal/models"
)

// Resolution 某一天的规则解析结果
type Resolution struct {
	Rule *models.PricingRule
	// Ambiguous 命中规则中有多条与胜出规则同优先级
	Ambiguous bool
	// TiedRuleIDs 与胜出规则同优先级的全部命中规则 ID，按决胜顺序排列
	TiedRuleIDs []int64
}

// Resolve 返回 date 当晚生效的规则，没有命中时返回 nil
func Resolve(rules []models.PricingRule, date time.Time) *models.PricingRule {
	return ResolveDetailed(rules, date).Rule
}

// ResolveDetailed 解析 date 当晚生效的规则并报告同优先级竞争
//
// 只考虑启用的规则；优先级高者胜出，同优先级时适用范围更具体者胜出，
// 仍相同时 ID 小者胜出。不修改 rules。
func ResolveDetailed(rules []models.PricingRule, date time.Time) Resolution {
	var (
		best *models.PricingRule
		tied []*models.PricingRule
	)
	for i := range rules {
		r := &rules[i]
		if !r.IsActive || !applies(r, date) {
			continue
		}
		switch {
		case best == nil || r.Priority > best.Priority:
			best = r
			tied = []*models.PricingRule{r}
		case r.Priority == best.Priority:
			tied = append(tied, r)
			if outranks(r, best) {
				best = r
			}
		}
	}

	if best == nil {
		return Resolution{}
	}

	res := Resolution{Rule: best, Ambiguous: len(tied) > 1}
	if res.Ambiguous {
		sort.Slice(tied, func(i, j int) bool { return outranks(tied[i], tied[j]) })
		res.TiedRuleIDs = make([]int64, len(tied))
		for i, r := range tied {
			res.TiedRuleIDs[i] = r.ID
		}
	}
	return res
}

// applies 规则是否覆盖该日期
func applies(r *models.PricingRule, date time.Time) bool {
	switch r.RuleType {
	case models.RuleTypeBase:
		return true
	case models.RuleTypeSeasonal:
		if r.HasDateRange() {
			return inMonthDayRange(r, date)
		}
		return r.SeasonType != nil && r.SeasonType.ContainsMonth(date.Month())
	case models.RuleTypeDateRange, models.RuleTypeSpecialEvent:
		return r.HasDateRange() && inMonthDayRange(r, date)
	}
	return false
}

// inMonthDayRange 按 month*100+day 比较，start > end 时跨年
func inMonthDayRange(r *models.PricingRule, date time.Time) bool {
	md := int(date.Month())*100 + date.Day()
	start := *r.StartMonth*100 + *r.StartDay
	end := *r.EndMonth*100 + *r.EndDay
	if start <= end {
		return md >= start && md <= end
	}
	return md >= start || md <= end
}

// specificity 同优先级时的适用范围排序，数值越大越具体
func specificity(r *models.PricingRule) int {
	switch r.RuleType {
	case models.RuleTypeDateRange, models.RuleTypeSpecialEvent:
		return 3
	case models.RuleTypeSeasonal:
		if r.HasDateRange() {
			return 2
		}
		if r.SeasonType != nil && *r.SeasonType == models.SeasonNormal {
			return 1
		}
		return 2
	}
	return 0
}

// outranks a 是否在同优先级下排在 b 之前
func outranks(a, b *models.PricingRule) bool {
	sa, sb := specificity(a), specificity(b)
	if sa != sb {
		return sa > sb
	}
	return a.ID < b.ID
}
