package pricing

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/camp-station-backend/internal/common/cache"
	"github.com/dumeirei/camp-station-backend/internal/common/errors"
	"github.com/dumeirei/camp-station-backend/internal/common/logger"
	"github.com/dumeirei/camp-station-backend/internal/common/metrics"
	"github.com/dumeirei/camp-station-backend/internal/models"
	"github.com/dumeirei/camp-station-backend/internal/repository"
)

const rulesCacheName = "pricing_rules"

// RuleService 定价规则服务
type RuleService struct {
	ruleRepo *repository.PricingRuleRepository
	siteRepo *repository.SiteRepository
	cache    *cache.Cache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
}

// NewRuleService 创建定价规则服务，c 为 nil 或未配置 Redis 时不缓存
func NewRuleService(
	ruleRepo *repository.PricingRuleRepository,
	siteRepo *repository.SiteRepository,
	c *cache.Cache,
	cacheTTL time.Duration,
	m *metrics.Metrics,
) *RuleService {
	return &RuleService{
		ruleRepo: ruleRepo,
		siteRepo: siteRepo,
		cache:    c,
		cacheTTL: cacheTTL,
		metrics:  m,
	}
}

// RuleRequest 创建或整体更新规则的请求
type RuleRequest struct {
	Name           string                    `json:"name" binding:"required,max=100"`
	Description    *string                   `json:"description"`
	RuleType       models.RuleType           `json:"rule_type" binding:"required"`
	Priority       *int                      `json:"priority"`
	BasePrice      decimal.Decimal           `json:"base_price"`
	WeekendPrice   decimal.NullDecimal       `json:"weekend_price"`
	DayMultipliers models.WeekdayMultipliers `json:"day_multipliers"`
	BaseGuests     int                       `json:"base_guests"`
	MaxGuests      int                       `json:"max_guests"`
	ExtraGuestFee  decimal.NullDecimal       `json:"extra_guest_fee"`
	SeasonType     *models.SeasonType        `json:"season_type"`
	StartMonth     *int                      `json:"start_month"`
	StartDay       *int                      `json:"start_day"`
	EndMonth       *int                      `json:"end_month"`
	EndDay         *int                      `json:"end_day"`

	LongStayDiscountRate     decimal.NullDecimal `json:"long_stay_discount_rate"`
	LongStayMinNights        *int                `json:"long_stay_min_nights"`
	ExtendedStayDiscountRate decimal.NullDecimal `json:"extended_stay_discount_rate"`
	ExtendedStayMinNights    *int                `json:"extended_stay_min_nights"`
	EarlyBirdDiscountRate    decimal.NullDecimal `json:"early_bird_discount_rate"`
	EarlyBirdMinDays         *int                `json:"early_bird_min_days"`

	IsActive *bool `json:"is_active"`
}

// apply 将请求写入规则，未给出优先级时使用类型默认值
func (req *RuleRequest) apply(rule *models.PricingRule) {
	rule.Name = strings.TrimSpace(req.Name)
	rule.Description = req.Description
	rule.RuleType = req.RuleType
	if req.Priority != nil {
		rule.Priority = *req.Priority
	} else {
		rule.Priority = req.RuleType.DefaultPriority()
	}
	rule.BasePrice = req.BasePrice
	rule.WeekendPrice = req.WeekendPrice
	rule.DayMultipliers = req.DayMultipliers
	rule.BaseGuests = req.BaseGuests
	rule.MaxGuests = req.MaxGuests
	rule.ExtraGuestFee = req.ExtraGuestFee
	rule.SeasonType = req.SeasonType
	rule.StartMonth = req.StartMonth
	rule.StartDay = req.StartDay
	rule.EndMonth = req.EndMonth
	rule.EndDay = req.EndDay
	rule.LongStayDiscountRate = req.LongStayDiscountRate
	rule.LongStayMinNights = req.LongStayMinNights
	rule.ExtendedStayDiscountRate = req.ExtendedStayDiscountRate
	rule.ExtendedStayMinNights = req.ExtendedStayMinNights
	rule.EarlyBirdDiscountRate = req.EarlyBirdDiscountRate
	rule.EarlyBirdMinDays = req.EarlyBirdMinDays
	rule.IsActive = req.IsActive == nil || *req.IsActive
}

// RulesForSite 营位的全部规则，按优先级降序、ID 升序；优先读缓存
func (s *RuleService) RulesForSite(ctx context.Context, siteID int64) ([]models.PricingRule, error) {
	key := cache.PricingRulesKey(siteID)

	var cached []models.PricingRule
	hit, err := s.cache.Get(ctx, key, &cached)
	switch {
	case err != nil:
		logger.Warn("读取规则缓存失败", logger.SiteID(siteID), logger.Err(err))
	case hit:
		s.metrics.RecordCacheHit(rulesCacheName)
		return cached, nil
	default:
		s.metrics.RecordCacheMiss(rulesCacheName)
	}

	rules, err := s.ruleRepo.ListBySite(ctx, siteID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if err := s.cache.Set(ctx, key, rules, s.cacheTTL); err != nil {
		logger.Warn("写入规则缓存失败", logger.SiteID(siteID), logger.Err(err))
	}
	return rules, nil
}

// ListRules 营位的全部规则，直接读库
func (s *RuleService) ListRules(ctx context.Context, siteID int64) ([]models.PricingRule, error) {
	if _, err := s.getSite(ctx, siteID); err != nil {
		return nil, err
	}
	rules, err := s.ruleRepo.ListBySite(ctx, siteID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return rules, nil
}

// GetRule 获取规则
func (s *RuleService) GetRule(ctx context.Context, id int64) (*models.PricingRule, error) {
	rule, err := s.ruleRepo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrPricingRuleNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return rule, nil
}

// CreateRule 为营位创建规则
func (s *RuleService) CreateRule(ctx context.Context, siteID int64, req *RuleRequest) (*models.PricingRule, error) {
	if _, err := s.getSite(ctx, siteID); err != nil {
		return nil, err
	}

	rule := &models.PricingRule{SiteID: siteID}
	req.apply(rule)
	if err := ValidateRule(rule); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueName(ctx, rule); err != nil {
		return nil, err
	}

	if err := s.ruleRepo.Create(ctx, rule); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	s.invalidate(ctx, siteID)

	logger.Info("创建定价规则", logger.Module("pricing"), logger.SiteID(siteID), logger.RuleID(rule.ID))
	return rule, nil
}

// UpdateRule 整体更新规则，营位归属不可修改
func (s *RuleService) UpdateRule(ctx context.Context, id int64, req *RuleRequest) (*models.PricingRule, error) {
	rule, err := s.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}

	req.apply(rule)
	if err := ValidateRule(rule); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueName(ctx, rule); err != nil {
		return nil, err
	}

	if err := s.ruleRepo.Update(ctx, rule); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	s.invalidate(ctx, rule.SiteID)

	logger.Info("更新定价规则", logger.Module("pricing"), logger.SiteID(rule.SiteID), logger.RuleID(rule.ID))
	return rule, nil
}

// DeleteRule 删除规则
func (s *RuleService) DeleteRule(ctx context.Context, id int64) error {
	rule, err := s.GetRule(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.ruleRepo.Delete(ctx, id); err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	s.invalidate(ctx, rule.SiteID)

	logger.Info("删除定价规则", logger.Module("pricing"), logger.SiteID(rule.SiteID), logger.RuleID(id))
	return nil
}

// SiteOwnerID 营位所属营地的经营者 ID，用于规则管理的权限校验
func (s *RuleService) SiteOwnerID(ctx context.Context, siteID int64) (int64, error) {
	site, err := s.getSite(ctx, siteID)
	if err != nil {
		return 0, err
	}
	if site.Campground == nil {
		return 0, errors.ErrSiteNotFound
	}
	return site.Campground.OwnerID, nil
}

func (s *RuleService) getSite(ctx context.Context, siteID int64) (*models.Site, error) {
	site, err := s.siteRepo.GetByID(ctx, siteID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrSiteNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return site, nil
}

func (s *RuleService) ensureUniqueName(ctx context.Context, rule *models.PricingRule) error {
	exists, err := s.ruleRepo.ExistsByName(ctx, rule.SiteID, rule.Name, rule.ID)
	if err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	if exists {
		return errors.ErrPricingRuleNameExists
	}
	return nil
}

// invalidate 删除营位规则缓存，失败只记录日志，依赖 TTL 兜底
func (s *RuleService) invalidate(ctx context.Context, siteID int64) {
	if err := s.cache.Delete(ctx, cache.PricingRulesKey(siteID)); err != nil {
		logger.Warn("删除规则缓存失败", logger.SiteID(siteID), logger.Err(err))
	}
}
