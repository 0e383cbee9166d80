package payment

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/monkey-island/yookassa-payments/app/models"
	"github.com/monkey-island/yookassa-payments/internal/pkg/analytics"
	"github.com/monkey-island/yookassa-payments/internal/pkg/publisher"
	"github.com/monkey-island/yookassa-payments/internal/pkg/rwms"
	"github.com/monkey-island/yookassa-payments/internal/pkg/tariff"
	"github.com/monkey-island/yookassa-payments/internal/pkg/yookassa"
)

// addReferrerBonusIfNeeded credits the paying user's referrer with bonus
// days, at most once per (referrer, referral) pair. The bonus row and the
// local expiry extension are committed regardless of whether the external
// convergence call succeeded; the task consumer's retry machinery is not
// involved here, so a failed convergence is only logged.
func (e *Engine) addReferrerBonusIfNeeded(ctx context.Context, tx *gorm.DB, m *yookassa.Metadata) error {
	if !tariff.QualifiesForReferralBonus(m.SubscriptionPeriod) {
		log.Infof("[payment] subscription period %s is too short, skipping referral bonus", m.SubscriptionPeriod)
		return nil
	}

	var referral models.User
	err := tx.
		Where("username = ?", m.Username).
		Where("referral_type = ?", models.ReferralTypeStandard).
		Where("referred_by_id IS NOT NULL").
		First(&referral).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Infof("[payment] user %s has no referrer, skipping referral bonus", m.Username)
			return nil
		}
		return err
	}

	referrerID := *referral.ReferredByID

	var applied int64
	err = tx.Model(&models.ReferralBonus{}).
		Where("referrer_id = ? AND referral_id = ? AND bonus_type = ?",
			referrerID, referral.ID, models.ReferralBonusTypePurchase).
		Count(&applied).Error
	if err != nil {
		return err
	}
	if applied > 0 {
		log.Infof("[payment] referral bonus for referrer %d and referral %d already applied, skipping", referrerID, referral.ID)
		return nil
	}

	var referrer models.User
	if err := tx.First(&referrer, referrerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[payment] referrer info not found for referrer_id %d", referrerID)
			return nil
		}
		return err
	}

	bonusInterval := time.Duration(tariff.ReferralBonusDays) * 24 * time.Hour

	if err := extendUserExpiry(tx, referrer.Username, bonusInterval); err != nil {
		return err
	}

	if err := tx.Create(&models.ReferralBonus{
		ReferrerID: referrerID,
		ReferralID: referral.ID,
		BonusType:  models.ReferralBonusTypePurchase,
		DaysAdded:  tariff.ReferralBonusDays,
	}).Error; err != nil {
		return err
	}

	// Converge the referrer's record in the external system. The local
	// database already reflects the intended new expiry; a failure here is
	// logged and left to operator remediation.
	activated := e.convergeReferrer(ctx, referrer.Username, m.Username, bonusInterval)
	if activated {
		if err := analytics.SaveEventLog(tx, referrer.Username, analytics.SubscriptionActivated); err != nil {
			log.Errorf("[payment] saving subscription reactivated event log failed: %v", err)
		}
	}

	if referrer.TelegramID != nil {
		publisher.SendReferralBonusApplied(ctx, e.publisher, *referrer.TelegramID, m.SubscriptionPeriod, tariff.ReferralBonusDays)
	}

	return nil
}

func (e *Engine) convergeReferrer(ctx context.Context, referrerUsername, referralUsername string, bonusInterval time.Duration) (activated bool) {
	user, err := e.rwms.GetUserByUsername(ctx, referrerUsername)
	if err != nil || user == nil {
		log.Errorf("[payment] failed to load referrer %s from management system: %v", referrerUsername, err)
		return false
	}

	updated, activated, err := rwms.ExtendExpiry(ctx, e.rwms, e.squadUUID, user, bonusInterval)
	if err != nil || updated == nil {
		log.Errorf("[payment] failed to apply referral bonus for referrer %s and referral %s: %v", referrerUsername, referralUsername, err)
		return false
	}

	log.Infof("[payment] referral bonus for referrer %s and referral %s applied successfully", referrerUsername, referralUsername)
	return activated
}
