package publisher

import (
	"github.com/shopspring/decimal"

	"github.com/monkey-island/yookassa-payments/internal/pkg/tariff"
)

// Notification variants delivered to the end-user bots.
const (
	NotificationPurchaseSuccessAutopay    = "purchase-success-autopay"
	NotificationPurchaseSuccessNonAutopay = "purchase-success-non-autopay"
	NotificationPurchaseFailureAutopay    = "purchase-failure-autopay"
	NotificationPurchaseFailureNonAutopay = "purchase-failure-non-autopay"
)

// UserNotification asks a bot to message a user. The type field is the
// discriminator consumed on the bot side.
type UserNotification struct {
	Type             string `json:"type"`
	NotificationType string `json:"notification_type"`
	TelegramID       int64  `json:"telegram_id"`
}

// NewUserNotification builds a bot notification message.
func NewUserNotification(notificationType string, telegramID int64) UserNotification {
	return UserNotification{
		Type:             "notificate-user",
		NotificationType: notificationType,
		TelegramID:       telegramID,
	}
}

// ReferralBonusApplied tells the referrer their referral's purchase earned
// them bonus days.
type ReferralBonusApplied struct {
	Type           string `json:"type"`
	TelegramID     int64  `json:"telegram_id"`
	ReferralTariff string `json:"referral_tariff"`
	BonusDaysCount int    `json:"bonus_days_count"`
}

// NewReferralBonusApplied builds the referrer notification message.
func NewReferralBonusApplied(telegramID int64, referralTariff string, bonusDays int) ReferralBonusApplied {
	return ReferralBonusApplied{
		Type:           "referral-purchase-bonus-applied",
		TelegramID:     telegramID,
		ReferralTariff: referralTariff,
		BonusDaysCount: bonusDays,
	}
}

// TariffInfo is the tariff snapshot embedded in analytics messages.
type TariffInfo struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
}

// Purchase is the analytics message sent to the stat channel for every
// completed purchase.
type Purchase struct {
	Service       string     `json:"service"`
	Type          string     `json:"type"`
	ClientID      string     `json:"client_id"`
	TransactionID string     `json:"transaction_id"`
	Tariff        TariffInfo `json:"tariff"`
}

// NewPurchase builds the purchase analytics message.
func NewPurchase(clientID, transactionID string, t tariff.Tariff) Purchase {
	return Purchase{
		Service:       "monkey-island-ym-stat",
		Type:          "send-purchase",
		ClientID:      clientID,
		TransactionID: transactionID,
		Tariff: TariffInfo{
			ID:          t.ID,
			Description: t.Description,
			Price:       t.Price,
		},
	}
}
