package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/camp-station-backend/internal/models"
)

// PaymentRepository 支付记录仓储
type PaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付记录仓储
func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: tx}
}

// Create 创建支付记录
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// ListByReservation 预订的全部支付记录
func (r *PaymentRepository) ListByReservation(ctx context.Context, reservationID int64) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		Order("id ASC").
		Find(&payments).Error
	return payments, err
}

// ExistsWithStatus 预订是否存在指定状态的支付记录
func (r *PaymentRepository) ExistsWithStatus(ctx context.Context, reservationID int64, status string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("reservation_id = ? AND status = ?", reservationID, status).
		Count(&count).Error
	return count > 0, err
}

// TransitionByReservation 将预订下处于 from 状态的支付记录改为 to，返回更新行数
func (r *PaymentRepository) TransitionByReservation(ctx context.Context, reservationID int64, from []string, to string, fields map[string]interface{}) (int64, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	result := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("reservation_id = ?", reservationID).
		Where("status IN ?", from).
		Updates(updates)
	return result.RowsAffected, result.Error
}
