package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/camp-station-backend/internal/models"
)

// PricingRuleRepository 定价规则仓储
type PricingRuleRepository struct {
	db *gorm.DB
}

// NewPricingRuleRepository 创建定价规则仓储
func NewPricingRuleRepository(db *gorm.DB) *PricingRuleRepository {
	return &PricingRuleRepository{db: db}
}

// Create 创建规则
func (r *PricingRuleRepository) Create(ctx context.Context, rule *models.PricingRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

// GetByID 根据 ID 获取规则
func (r *PricingRuleRepository) GetByID(ctx context.Context, id int64) (*models.PricingRule, error) {
	var rule models.PricingRule
	if err := r.db.WithContext(ctx).First(&rule, id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// Update 保存规则全部字段
func (r *PricingRuleRepository) Update(ctx context.Context, rule *models.PricingRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

// Delete 删除规则
func (r *PricingRuleRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&models.PricingRule{}, id)
	return result.RowsAffected > 0, result.Error
}

// ListBySite 营位的全部规则，按优先级降序、ID 升序
func (r *PricingRuleRepository) ListBySite(ctx context.Context, siteID int64) ([]models.PricingRule, error) {
	var rules []models.PricingRule
	err := r.db.WithContext(ctx).
		Where("site_id = ?", siteID).
		Order("priority DESC").
		Order("id ASC").
		Find(&rules).Error
	return rules, err
}

// ExistsByName 同一营位下是否存在同名规则，excludeID 为 0 时不排除
func (r *PricingRuleRepository) ExistsByName(ctx context.Context, siteID int64, name string, excludeID int64) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.PricingRule{}).
		Where("site_id = ? AND name = ?", siteID, name)
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	err := query.Count(&count).Error
	return count > 0, err
}
