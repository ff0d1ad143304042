// Package repository 提供数据访问层
package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dumeirei/camp-station-backend/internal/models"
)

// SiteRepository 营位仓储
type SiteRepository struct {
	db *gorm.DB
}

// NewSiteRepository 创建营位仓储
func NewSiteRepository(db *gorm.DB) *SiteRepository {
	return &SiteRepository{db: db}
}

// GetByID 根据 ID 获取营位（包含营地）
func (r *SiteRepository) GetByID(ctx context.Context, id int64) (*models.Site, error) {
	var site models.Site
	err := r.db.WithContext(ctx).
		Preload("Campground").
		First(&site, id).Error
	if err != nil {
		return nil, err
	}
	return &site, nil
}

// LockByID 锁定营位行直到事务结束，Postgres 下为 SELECT ... FOR UPDATE
func (r *SiteRepository) LockByID(ctx context.Context, id int64) (*models.Site, error) {
	var site models.Site
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&site, id).Error
	if err != nil {
		return nil, err
	}
	return &site, nil
}


// ListByCampground 营地下的全部营位，按营位号排序
func (r *SiteRepository) ListByCampground(ctx context.Context, campgroundID int64) ([]models.Site, error) {
	var sites []models.Site
	err := r.db.WithContext(ctx).
		Where("campground_id = ?", campgroundID).
		Order("site_number ASC").
		Order("id ASC").
		Find(&sites).Error
	return sites, err
}
