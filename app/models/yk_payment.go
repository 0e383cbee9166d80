package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusCanceled  = "canceled"
	PaymentStatusRefunded  = "refunded"
)

// YkPayment stores one row per YooKassa payment id. The unique payment_id
// index is the idempotency key: replayed webhook events must not create a
// second row.
type YkPayment struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	PaymentID          string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"payment_id"`
	UserID             uint            `gorm:"index;not null" json:"user_id"`
	Amount             decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	Currency           string          `gorm:"type:varchar(3);not null" json:"currency"`
	Status             string          `gorm:"type:varchar(50);not null" json:"status"`
	CapturedAt         *time.Time      `gorm:"type:timestamp;default:null" json:"captured_at,omitempty"`
	CreatedAt          time.Time       `gorm:"type:timestamp;not null" json:"created_at"`
	SubscriptionPeriod string          `gorm:"type:varchar(20);not null" json:"subscription_period"`
	IsTrialPromotion   bool            `gorm:"not null;default:false" json:"is_trial_promotion"`
}
