package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment 预订支付记录，网关交互由外部支付服务完成
type Payment struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentNo     string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"payment_no"`
	ReservationID int64           `gorm:"index;not null" json:"reservation_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Method        string          `gorm:"type:varchar(20);not null" json:"method"`
	Status        string          `gorm:"type:varchar(30);not null;index" json:"status"`
	DepositorName *string         `gorm:"type:varchar(50)" json:"depositor_name,omitempty"`
	FailureReason *string         `gorm:"type:varchar(255)" json:"failure_reason,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName 表名
func (Payment) TableName() string {
	return "payments"
}

// PaymentStatus 支付状态
const (
	PaymentStatusPending               = "PENDING"                // 待支付
	PaymentStatusConfirmationRequested = "CONFIRMATION_REQUESTED" // 已转账待人工确认
	PaymentStatusCompleted             = "COMPLETED"              // 已完成
	PaymentStatusFailed                = "FAILED"                 // 失败
	PaymentStatusCancelled             = "CANCELLED"              // 已取消
	PaymentStatusRefundRequested       = "REFUND_REQUESTED"       // 已申请退款
)

// PaymentMethod 支付方式
const (
	PaymentMethodCard         = "CARD"
	PaymentMethodBankTransfer = "BANK_TRANSFER"
)

// ValidPaymentMethod 是否为支持的支付方式
func ValidPaymentMethod(m string) bool {
	return m == PaymentMethodCard || m == PaymentMethodBankTransfer
}
