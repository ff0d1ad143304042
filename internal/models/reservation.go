package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reservation 营位预订，只做状态流转不做物理删除
type Reservation struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ReservationNo  string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"reservation_no"`
	SiteID         int64           `gorm:"not null;index:idx_reservation_site_status,priority:1" json:"site_id"`
	CampgroundID   int64           `gorm:"index;not null" json:"campground_id"`
	UserID         *int64          `gorm:"index" json:"user_id,omitempty"`
	GuestID        *int64          `gorm:"index" json:"guest_id,omitempty"`
	CheckInDate    time.Time       `gorm:"type:date;not null" json:"check_in_date"`
	CheckOutDate   time.Time       `gorm:"type:date;not null" json:"check_out_date"`
	NumberOfGuests int             `gorm:"not null" json:"number_of_guests"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	Status         string          `gorm:"type:varchar(20);not null;index:idx_reservation_site_status,priority:2;index" json:"status"`
	PriceBreakdown *PriceBreakdown `gorm:"type:text" json:"price_breakdown,omitempty"`

	SpecialRequests *string    `gorm:"type:text" json:"special_requests,omitempty"`
	CancelReason    *string    `gorm:"type:varchar(255)" json:"cancel_reason,omitempty"`
	CancelledBy     *string    `gorm:"type:varchar(20)" json:"cancelled_by,omitempty"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// 关联
	Site     *Site     `gorm:"foreignKey:SiteID" json:"site,omitempty"`
	Guest    *Guest    `gorm:"foreignKey:GuestID" json:"guest,omitempty"`
	Payments []Payment `gorm:"foreignKey:ReservationID" json:"payments,omitempty"`
}

// TableName 表名
func (Reservation) TableName() string {
	return "reservations"
}

// ReservationStatus 预订状态
const (
	ReservationStatusPending   = "PENDING"   // 待支付
	ReservationStatusConfirmed = "CONFIRMED" // 已确认
	ReservationStatusCancelled = "CANCELLED" // 已取消
	ReservationStatusCompleted = "COMPLETED" // 已完成
)

// ActiveReservationStatuses 占用营位的状态
var ActiveReservationStatuses = []string{
	ReservationStatusPending,
	ReservationStatusConfirmed,
}

// ReservationStatusNames 状态名称
var ReservationStatusNames = map[string]string{
	ReservationStatusPending:   "待支付",
	ReservationStatusConfirmed: "已确认",
	ReservationStatusCancelled: "已取消",
	ReservationStatusCompleted: "已完成",
}

// Nights 入住晚数
func (r *Reservation) Nights() int {
	return int(r.CheckOutDate.Sub(r.CheckInDate).Hours() / 24)
}

// IsActive 是否占用营位
func (r *Reservation) IsActive() bool {
	return r.Status == ReservationStatusPending || r.Status == ReservationStatusConfirmed
}

// Guest 未登录的预订人
type Guest struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(50);not null" json:"name"`
	Phone     string    `gorm:"type:varchar(20);not null;index" json:"phone"`
	Email     *string   `gorm:"type:varchar(100)" json:"email,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (Guest) TableName() string {
	return "guests"
}
