package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// YkRecurrentPayment holds the saved payment-method token to charge on the
// next autopay cycle, at most one row per user. A new succeeded
// autopay-eligible payment overwrites the previous row (upsert on user_id).
type YkRecurrentPayment struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	UserID             uint            `gorm:"uniqueIndex;not null" json:"user_id"`
	RecurrentPaymentID string          `gorm:"type:varchar(64);not null" json:"recurrent_payment_id"`
	Amount             decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	Currency           string          `gorm:"type:varchar(3);not null" json:"currency"`
	CapturedAt         time.Time       `gorm:"type:timestamp;not null" json:"captured_at"`
	SubscriptionPeriod string          `gorm:"type:varchar(20);not null" json:"subscription_period"`
	IsTrialPromotion   bool            `gorm:"not null;default:false" json:"is_trial_promotion"`
	ScheduledPayment   bool            `gorm:"not null;default:false" json:"scheduled_payment"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
