package publisher

import (
	"context"

	"github.com/monkey-island/yookassa-payments/internal/pkg/tariff"
)

// The bot senders fan one logical message out to both bot channels.

func SendSucceededAutopay(ctx context.Context, p Publisher, telegramID int64) {
	msg := NewUserNotification(NotificationPurchaseSuccessAutopay, telegramID)
	_ = p.PushToVPNBot(ctx, msg)
	_ = p.PushToVPSBot(ctx, msg)
}

func SendSucceededNonAutopay(ctx context.Context, p Publisher, telegramID int64) {
	msg := NewUserNotification(NotificationPurchaseSuccessNonAutopay, telegramID)
	_ = p.PushToVPNBot(ctx, msg)
	_ = p.PushToVPSBot(ctx, msg)
}

func SendFailedAutopay(ctx context.Context, p Publisher, telegramID int64) {
	msg := NewUserNotification(NotificationPurchaseFailureAutopay, telegramID)
	_ = p.PushToVPNBot(ctx, msg)
	_ = p.PushToVPSBot(ctx, msg)
}

func SendFailedNonAutopay(ctx context.Context, p Publisher, telegramID int64) {
	msg := NewUserNotification(NotificationPurchaseFailureNonAutopay, telegramID)
	_ = p.PushToVPNBot(ctx, msg)
	_ = p.PushToVPSBot(ctx, msg)
}

func SendReferralBonusApplied(ctx context.Context, p Publisher, telegramID int64, referralTariff string, bonusDays int) {
	msg := NewReferralBonusApplied(telegramID, referralTariff, bonusDays)
	_ = p.PushToVPNBot(ctx, msg)
	_ = p.PushToVPSBot(ctx, msg)
}

// SendPurchase reports a completed purchase to the analytics channel.
func SendPurchase(ctx context.Context, p Publisher, clientID, transactionID string, t tariff.Tariff) error {
	return p.PushToYMStat(ctx, NewPurchase(clientID, transactionID, t))
}
