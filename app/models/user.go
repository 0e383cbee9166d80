package models

import "time"

const (
	ReferralTypeStandard = "standard"
	ReferralTypePartner  = "partner"
)

// User is the local copy of a subscription owner. Username doubles as the
// subscription identifier in the external management system; expire_at and
// autopay_allow are converged there by the task consumer.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"type:varchar(150);uniqueIndex;not null" json:"username"`
	TelegramID   *int64     `gorm:"index" json:"telegram_id,omitempty"`
	Email        string     `gorm:"type:varchar(200);default:null" json:"email,omitempty"`
	ExpireAt     time.Time  `gorm:"type:timestamp;not null" json:"expire_at"`
	AutopayAllow bool       `gorm:"not null" json:"autopay_allow"`
	ReferredByID *uint      `gorm:"index" json:"referred_by_id,omitempty"`
	ReferralType string     `gorm:"type:varchar(50);default:'standard'" json:"referral_type"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
