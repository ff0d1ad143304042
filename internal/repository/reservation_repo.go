package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/camp-station-backend/internal/models"
)

// ReservationRepository 营位预订仓储
type ReservationRepository struct {
	db *gorm.DB
}

// NewReservationRepository 创建预订仓储
func NewReservationRepository(db *gorm.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *ReservationRepository) WithTx(tx *gorm.DB) *ReservationRepository {
	return &ReservationRepository{db: tx}
}

// Create 创建预订
func (r *ReservationRepository) Create(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

// GetByID 根据 ID 获取预订
func (r *ReservationRepository) GetByID(ctx context.Context, id int64) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := r.db.WithContext(ctx).First(&reservation, id).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

// GetByIDWithDetails 根据 ID 获取预订（包含营位、预订人和支付记录）
func (r *ReservationRepository) GetByIDWithDetails(ctx context.Context, id int64) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Preload("Site.Campground").
		Preload("Guest").
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		First(&reservation, id).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// GetByReservationNo 根据预订号获取预订
func (r *ReservationRepository) GetByReservationNo(ctx context.Context, no string) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Where("reservation_no = ?", no).
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// FindOverlapping 与 [checkIn, checkOut) 相交且占用营位的预订
func (r *ReservationRepository) FindOverlapping(ctx context.Context, siteID int64, checkIn, checkOut time.Time) ([]models.Reservation, error) {
	return r.findOverlapping(ctx, siteID, checkIn, checkOut, 0)
}

func (r *ReservationRepository) findOverlapping(ctx context.Context, siteID int64, checkIn, checkOut time.Time, excludeID int64) ([]models.Reservation, error) {
	var reservations []models.Reservation
	query := r.db.WithContext(ctx).
		Where("site_id = ?", siteID).
		Where("status IN ?", models.ActiveReservationStatuses).
		Where("(check_in_date < ? AND check_out_date > ?)", checkOut, checkIn)
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	err := query.Order("check_in_date ASC").Find(&reservations).Error
	return reservations, err
}

// LockSiteAndFindOverlapping 锁定营位行后查询冲突预订，必须在事务中调用
func (r *ReservationRepository) LockSiteAndFindOverlapping(ctx context.Context, siteID int64, checkIn, checkOut time.Time) (*models.Site, []models.Reservation, error) {
	return r.LockSiteAndFindOverlappingExcept(ctx, siteID, checkIn, checkOut, 0)
}

// LockSiteAndFindOverlappingExcept 同 LockSiteAndFindOverlapping，但不把 excludeID 自身算作冲突
func (r *ReservationRepository) LockSiteAndFindOverlappingExcept(ctx context.Context, siteID int64, checkIn, checkOut time.Time, excludeID int64) (*models.Site, []models.Reservation, error) {
	site, err := NewSiteRepository(r.db).LockByID(ctx, siteID)
	if err != nil {
		return nil, nil, err
	}
	overlapping, err := r.findOverlapping(ctx, siteID, checkIn, checkOut, excludeID)
	if err != nil {
		return nil, nil, err
	}
	return site, overlapping, nil
}

// ListActiveBySite 营位上退房日晚于 from 的占用中预订
func (r *ReservationRepository) ListActiveBySite(ctx context.Context, siteID int64, from time.Time) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("site_id = ?", siteID).
		Where("status IN ?", models.ActiveReservationStatuses).
		Where("check_out_date > ?", from).
		Order("check_in_date ASC").
		Find(&reservations).Error
	return reservations, err
}

// ListActiveByCampground 营地所有营位上退房日晚于 from 的占用中预订
func (r *ReservationRepository) ListActiveByCampground(ctx context.Context, campgroundID int64, from time.Time) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("campground_id = ?", campgroundID).
		Where("status IN ?", models.ActiveReservationStatuses).
		Where("check_out_date > ?", from).
		Order("site_id ASC").
		Order("check_in_date ASC").
		Find(&reservations).Error
	return reservations, err
}

// TransitionStatus 条件更新状态，仅当当前状态为 from 时生效，返回是否更新成功
func (r *ReservationRepository) TransitionStatus(ctx context.Context, id int64, from, to string, fields map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	result := r.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// UpdateIfStatus 仅当状态为 status 时更新字段，返回是否更新成功
func (r *ReservationRepository) UpdateIfStatus(ctx context.Context, id int64, status string, fields map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("id = ? AND status = ?", id, status).
		Updates(fields)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// TouchIfStatus 在状态为 status 时锁定该行（更新 updated_at），返回是否命中
func (r *ReservationRepository) TouchIfStatus(ctx context.Context, id int64, status string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("id = ? AND status = ?", id, status).
		Update("updated_at", now)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListPendingCreatedBefore 创建早于 cutoff 的待支付预订，按 ID 游标分页
func (r *ReservationRepository) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time, afterID int64, limit int) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ?", models.ReservationStatusPending).
		Where("created_at < ?", cutoff).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&reservations).Error
	return reservations, err
}

// ListConfirmedCheckedOutBefore 退房日早于 date 的已确认预订，按 ID 游标分页
func (r *ReservationRepository) ListConfirmedCheckedOutBefore(ctx context.Context, date time.Time, afterID int64, limit int) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ?", models.ReservationStatusConfirmed).
		Where("check_out_date < ?", date).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&reservations).Error
	return reservations, err
}

// ReservationFilter 预订列表过滤条件
type ReservationFilter struct {
	SiteID   int64
	UserID   int64
	Statuses []string
	From     *time.Time
	To       *time.Time
	// WithSite 同时加载营位和营地
	WithSite bool
}

// List 获取预订列表
func (r *ReservationRepository) List(ctx context.Context, offset, limit int, filter ReservationFilter) ([]models.Reservation, int64, error) {
	var (
		reservations []models.Reservation
		total        int64
	)

	query := r.db.WithContext(ctx).Model(&models.Reservation{})
	if filter.SiteID > 0 {
		query = query.Where("site_id = ?", filter.SiteID)
	}
	if filter.UserID > 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.From != nil {
		query = query.Where("check_out_date > ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("check_in_date < ?", *filter.To)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.WithSite {
		query = query.Preload("Site.Campground")
	}
	err := query.
		Order("check_in_date ASC").
		Order("id ASC").
		Offset(offset).Limit(limit).
		Find(&reservations).Error
	if err != nil {
		return nil, 0, err
	}
	return reservations, total, nil
}
