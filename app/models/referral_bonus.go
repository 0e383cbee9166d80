package models

import "time"

const (
	ReferralBonusTypePurchase = "purchase"
)

// ReferralBonus records a granted referral credit. The unique
// (referrer, referral, bonus_type) triple is the guard that keeps a bonus
// from being granted twice for the same purchase relationship.
type ReferralBonus struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ReferrerID uint      `gorm:"not null;index:ux_referral_bonuses_triple,unique,priority:1" json:"referrer_id"`
	ReferralID uint      `gorm:"not null;index:ux_referral_bonuses_triple,unique,priority:2" json:"referral_id"`
	BonusType  string    `gorm:"type:varchar(50);not null;index:ux_referral_bonuses_triple,unique,priority:3" json:"bonus_type"`
	DaysAdded  int       `gorm:"not null" json:"days_added"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
