package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/camp-station-backend/internal/models"
)

func intp(i int) *int { return &i }

func seasonp(s models.SeasonType) *models.SeasonType { return &s }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func baseRule(id int64) models.PricingRule {
	return models.PricingRule{
		ID:         id,
		SiteID:     1,
		Name:       "基础价",
		RuleType:   models.RuleTypeBase,
		Priority:   0,
		BasePrice:  decimal.NewFromInt(100),
		BaseGuests: 2,
		MaxGuests:  6,
		IsActive:   true,
	}
}

func rangeRule(id int64, ruleType models.RuleType, priority, sm, sd, em, ed int) models.PricingRule {
	r := baseRule(id)
	r.Name = "区间"
	r.RuleType = ruleType
	r.Priority = priority
	r.StartMonth, r.StartDay, r.EndMonth, r.EndDay = intp(sm), intp(sd), intp(em), intp(ed)
	return r
}

func seasonalRule(id int64, season models.SeasonType, priority int) models.PricingRule {
	r := baseRule(id)
	r.Name = string(season)
	r.RuleType = models.RuleTypeSeasonal
	r.Priority = priority
	r.SeasonType = seasonp(season)
	return r
}

func TestResolve_DateRangeWraparound(t *testing.T) {
	rules := []models.PricingRule{
		baseRule(1),
		rangeRule(2, models.RuleTypeDateRange, 20, 12, 20, 1, 10),
	}

	tests := []struct {
		name string
		date time.Time
		want int64
	}{
		{"开始日当天", date(2024, 12, 20), 2},
		{"年末", date(2024, 12, 31), 2},
		{"跨年后", date(2025, 1, 5), 2},
		{"结束日当天", date(2025, 1, 10), 2},
		{"结束日之后", date(2025, 1, 11), 1},
		{"开始日之前", date(2024, 12, 19), 1},
		{"年中", date(2024, 6, 15), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(rules, tt.date)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}

func TestResolve_SeasonBands(t *testing.T) {
	rules := []models.PricingRule{
		seasonalRule(1, models.SeasonPeak, 10),
		seasonalRule(2, models.SeasonHigh, 10),
		seasonalRule(3, models.SeasonLow, 10),
		seasonalRule(4, models.SeasonNormal, 10),
	}

	tests := []struct {
		month time.Month
		want  int64
	}{
		{time.July, 1},
		{time.August, 1},
		{time.April, 2},
		{time.October, 2},
		{time.December, 3},
		{time.February, 3},
		{time.March, 4},
		{time.June, 4},
		{time.November, 4},
	}
	for _, tt := range tests {
		t.Run(tt.month.String(), func(t *testing.T) {
			got := ResolveDetailed(rules, date(2024, tt.month, 10))
			require.NotNil(t, got.Rule)
			assert.Equal(t, tt.want, got.Rule.ID)
		})
	}
}

func TestResolve_SeasonalExplicitRangeOverridesBand(t *testing.T) {
	r := seasonalRule(5, models.SeasonPeak, 10)
	r.StartMonth, r.StartDay, r.EndMonth, r.EndDay = intp(6), intp(15), intp(6), intp(30)
	rules := []models.PricingRule{baseRule(1), r}

	assert.Equal(t, int64(5), Resolve(rules, date(2024, 6, 20)).ID)
	assert.Equal(t, int64(1), Resolve(rules, date(2024, 7, 20)).ID, "配置了区间后不再按季节月份匹配")
}

func TestResolve_PriorityAndInactive(t *testing.T) {
	event := rangeRule(3, models.RuleTypeSpecialEvent, 30, 10, 1, 10, 7)
	inactive := rangeRule(4, models.RuleTypeSpecialEvent, 99, 10, 1, 10, 7)
	inactive.IsActive = false
	lowPriorityRange := rangeRule(5, models.RuleTypeDateRange, 5, 10, 1, 10, 7)

	rules := []models.PricingRule{baseRule(1), seasonalRule(2, models.SeasonHigh, 10), event, inactive, lowPriorityRange}

	got := ResolveDetailed(rules, date(2024, 10, 3))
	require.NotNil(t, got.Rule)
	assert.Equal(t, int64(3), got.Rule.ID)
	assert.False(t, got.Ambiguous)

	got = ResolveDetailed(rules, date(2024, 10, 20))
	require.NotNil(t, got.Rule)
	assert.Equal(t, int64(2), got.Rule.ID, "活动区间外回落到季节规则")
}

func TestResolve_TieBreak(t *testing.T) {
	t.Run("同优先级更具体者胜出", func(t *testing.T) {
		seasonal := seasonalRule(1, models.SeasonPeak, 20)
		normal := seasonalRule(2, models.SeasonNormal, 20)
		dr := rangeRule(9, models.RuleTypeDateRange, 20, 7, 1, 7, 31)
		base := baseRule(3)
		base.Priority = 20
		rules := []models.PricingRule{base, normal, seasonal, dr}

		got := ResolveDetailed(rules, date(2024, 7, 15))
		require.NotNil(t, got.Rule)
		assert.Equal(t, int64(9), got.Rule.ID)
		assert.True(t, got.Ambiguous)
		assert.Equal(t, []int64{9, 1, 2, 3}, got.TiedRuleIDs)
	})

	t.Run("完全相同时 ID 小者胜出", func(t *testing.T) {
		rules := []models.PricingRule{
			rangeRule(8, models.RuleTypeDateRange, 20, 5, 1, 5, 31),
			rangeRule(6, models.RuleTypeSpecialEvent, 20, 5, 10, 5, 20),
		}
		got := ResolveDetailed(rules, date(2024, 5, 15))
		require.NotNil(t, got.Rule)
		assert.Equal(t, int64(6), got.Rule.ID)
		assert.Equal(t, []int64{6, 8}, got.TiedRuleIDs)
	})

	t.Run("特定季节优于全年季节", func(t *testing.T) {
		rules := []models.PricingRule{
			seasonalRule(1, models.SeasonNormal, 10),
			seasonalRule(2, models.SeasonLow, 10),
		}
		assert.Equal(t, int64(2), Resolve(rules, date(2024, 1, 15)).ID)
	})
}

func TestResolve_NoMatch(t *testing.T) {
	rules := []models.PricingRule{rangeRule(1, models.RuleTypeDateRange, 20, 3, 1, 3, 5)}

	got := ResolveDetailed(rules, date(2024, 4, 1))
	assert.Nil(t, got.Rule)
	assert.False(t, got.Ambiguous)
	assert.Nil(t, Resolve(nil, date(2024, 4, 1)))
}

func TestResolve_Pure(t *testing.T) {
	rules := []models.PricingRule{
		baseRule(1),
		seasonalRule(2, models.SeasonPeak, 10),
		seasonalRule(3, models.SeasonNormal, 10),
	}
	snapshot := make([]models.PricingRule, len(rules))
	copy(snapshot, rules)

	first := ResolveDetailed(rules, date(2024, 7, 1))
	second := ResolveDetailed(rules, date(2024, 7, 1))

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, rules)
}
