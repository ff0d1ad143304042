package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Campground 营地
type Campground struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID   int64     `gorm:"index;not null" json:"owner_id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	Status    string    `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Sites []Site `gorm:"foreignKey:CampgroundID" json:"sites,omitempty"`
}

// TableName 表名
func (Campground) TableName() string {
	return "campgrounds"
}

// CampgroundStatus 营地状态
const (
	CampgroundStatusActive   = "ACTIVE"
	CampgroundStatusInactive = "INACTIVE"
)

// Site 营位，预订的最小单位
type Site struct {
	ID           int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	CampgroundID int64               `gorm:"index;not null" json:"campground_id"`
	SiteNumber   string              `gorm:"type:varchar(20);not null" json:"site_number"`
	Status       string              `gorm:"type:varchar(20);not null" json:"status"`
	DefaultPrice decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"default_price"`
	Capacity     *int                `json:"capacity,omitempty"`
	CreatedAt    time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time           `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Campground *Campground `gorm:"foreignKey:CampgroundID" json:"campground,omitempty"`
}

// TableName 表名
func (Site) TableName() string {
	return "sites"
}

// SiteStatus 营位状态
const (
	SiteStatusAvailable   = "AVAILABLE"
	SiteStatusMaintenance = "MAINTENANCE"
	SiteStatusUnavailable = "UNAVAILABLE"
)

// IsBookable 营位及所属营地均可预订
func (s *Site) IsBookable() bool {
	if s.Status != SiteStatusAvailable {
		return false
	}
	return s.Campground == nil || s.Campground.Status == CampgroundStatusActive
}
