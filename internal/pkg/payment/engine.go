package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/monkey-island/yookassa-payments/app/models"
	"github.com/monkey-island/yookassa-payments/internal/pkg/analytics"
	"github.com/monkey-island/yookassa-payments/internal/pkg/publisher"
	"github.com/monkey-island/yookassa-payments/internal/pkg/rwms"
	"github.com/monkey-island/yookassa-payments/internal/pkg/tariff"
	"github.com/monkey-island/yookassa-payments/internal/pkg/yookassa"
)

// TaskScheduler enqueues subscription-convergence work for the task queue
// consumer. Implemented by rwmstask.Processor.
type TaskScheduler interface {
	ScheduleAddTimeInterval(paymentID, username string, t tariff.Tariff, telegramID *int64, email string) error
}

// Engine decides, per payment event, which rows to write, whether to enqueue
// a subscription task, whether to award a referral bonus, and which outbound
// notifications to request. Each handler runs inside one database
// transaction; a failure anywhere aborts the whole transaction and the caller
// leaves the queue item in processing for retry.
type Engine struct {
	db        *gorm.DB
	publisher publisher.Publisher
	tasks     TaskScheduler
	rwms      rwms.API
	squadUUID string
}

// NewEngine wires the engine's collaborators explicitly.
func NewEngine(db *gorm.DB, pub publisher.Publisher, tasks TaskScheduler, api rwms.API, squadUUID string) *Engine {
	return &Engine{
		db:        db,
		publisher: pub,
		tasks:     tasks,
		rwms:      api,
		squadUUID: squadUUID,
	}
}

// HandleSucceededPayment applies a captured payment: records it, grants the
// referral bonus when due, extends the local subscription, schedules external
// convergence and emits notifications and analytics. Replays of an already
// recorded payment id are a no-op.
func (e *Engine) HandleSucceededPayment(ctx context.Context, p *yookassa.PaymentObject, m *yookassa.Metadata) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, inserted, err := e.savePaymentIfNotExists(tx, p, m)
		if err != nil {
			return err
		}
		if !inserted {
			log.Infof("[payment] payment %s already recorded, skipping replay", p.ID)
			return nil
		}

		if err := e.addReferrerBonusIfNeeded(ctx, tx, m); err != nil {
			return err
		}

		// A payment was captured but the user opted out of auto-renewal in
		// the meantime: record the money, do not extend the subscription.
		if !user.AutopayAllow {
			log.Infof("[payment] user %s disabled autopay, payment %s recorded without extension", m.Username, p.ID)
			return nil
		}

		if !p.PaymentMethod.Saved {
			log.Infof("[payment] payment method of %s was not saved, no autopay bookkeeping for %s", p.ID, m.Username)
			return nil
		}

		purchased, err := tariff.FromPeriod(m.SubscriptionPeriod)
		if err != nil {
			return err
		}

		// Next autopay cycle bills the purchased tariff, except after a
		// trial-promotion purchase, which converts to a regular month.
		nextCycle := tariff.Tariff{
			ID:       m.SubscriptionPeriod,
			Price:    p.Amount.Value,
			Interval: purchased.Interval,
		}
		if bool(m.TrialPromotion) {
			oneMonth := tariff.OneMonth()
			nextCycle.ID = oneMonth.ID
			nextCycle.Price = oneMonth.Price
		}

		capturedAt := time.Now().UTC()
		if p.CapturedAt != nil {
			capturedAt = p.CapturedAt.UTC()
		}

		rec := models.YkRecurrentPayment{
			UserID:             user.ID,
			RecurrentPaymentID: p.PaymentMethod.ID,
			Amount:             nextCycle.Price,
			Currency:           p.Amount.Currency,
			CapturedAt:         capturedAt,
			SubscriptionPeriod: nextCycle.ID,
			IsTrialPromotion:   bool(m.TrialPromotion),
			ScheduledPayment:   false,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"recurrent_payment_id", "amount", "currency", "captured_at",
				"subscription_period", "is_trial_promotion", "scheduled_payment",
			}),
		}).Create(&rec).Error; err != nil {
			return fmt.Errorf("failed to upsert recurrent payment for %s: %w", m.Username, err)
		}

		if err := extendUserExpiry(tx, m.Username, purchased.Interval); err != nil {
			return err
		}

		if err := e.tasks.ScheduleAddTimeInterval(p.ID, m.Username, purchased, (*int64)(m.TelegramID), m.Email); err != nil {
			return fmt.Errorf("failed to schedule subscription task for payment %s: %w", p.ID, err)
		}

		if bool(m.Autopay) {
			publisher.SendSucceededAutopay(ctx, e.publisher, m.TelegramIDValue())
		} else {
			publisher.SendSucceededNonAutopay(ctx, e.publisher, m.TelegramIDValue())
		}

		if err := publisher.SendPurchase(ctx, e.publisher, m.Username, p.ID, purchased); err != nil {
			log.Errorf("[payment] failed to send purchase analytics for %s: %v", p.ID, err)
		}

		event := analytics.SucceededPaymentEvent(bool(m.Autopay), bool(m.TrialPromotion), bool(m.FromTrial))
		if err := analytics.SaveEventLog(tx, m.Username, event); err != nil {
			return err
		}

		log.Infof("[payment] succeeded payment %s for user %s successfully processed", p.ID, m.Username)
		return nil
	})
}

// HandleCanceledPayment records a failed payment and, for a failed autopay
// charge, stops future charge attempts against the failing payment method.
func (e *Engine) HandleCanceledPayment(ctx context.Context, p *yookassa.PaymentObject, m *yookassa.Metadata) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, inserted, err := e.savePaymentIfNotExists(tx, p, m)
		if err != nil {
			return err
		}
		if !inserted {
			log.Infof("[payment] payment %s already recorded, skipping replay", p.ID)
			return nil
		}

		event := analytics.CanceledPaymentEvent(bool(m.Autopay), bool(m.TrialPromotion), bool(m.FromTrial))
		if err := analytics.SaveEventLog(tx, m.Username, event); err != nil {
			return err
		}

		// Expected domain outcomes, not autopay failures requiring cleanup.
		if p.Status == yookassa.StatusExpiredOnConfirmation {
			log.Infof("[payment] payment for user %s expired on confirmation, do nothing", m.Username)
			return nil
		}
		if p.Status == yookassa.StatusGeneralDecline {
			log.Infof("[payment] payment declined by user %s, do nothing", m.Username)
			return nil
		}

		if !bool(m.Autopay) {
			publisher.SendFailedNonAutopay(ctx, e.publisher, m.TelegramIDValue())
			return nil
		}

		// An autopay charge failed: drop the stored payment method and stop
		// further charge attempts against it.
		subquery := tx.Model(&models.User{}).Select("id").Where("username = ?", m.Username)
		if err := tx.Where("user_id IN (?)", subquery).Delete(&models.YkRecurrentPayment{}).Error; err != nil {
			return fmt.Errorf("failed to delete recurrent payment for %s: %w", m.Username, err)
		}
		if err := tx.Model(&models.User{}).Where("username = ?", m.Username).Update("autopay_allow", false).Error; err != nil {
			return fmt.Errorf("failed to disable autopay for %s: %w", m.Username, err)
		}

		publisher.SendFailedAutopay(ctx, e.publisher, m.TelegramIDValue())
		return nil
	})
}

// HandleSucceededRefund marks the refunded payment row.
func (e *Engine) HandleSucceededRefund(ctx context.Context, r *yookassa.RefundObject) error {
	result := e.db.WithContext(ctx).
		Model(&models.YkPayment{}).
		Where("payment_id = ?", r.PaymentID).
		Update("status", models.PaymentStatusRefunded)
	if result.Error != nil {
		return fmt.Errorf("failed to mark payment %s refunded: %w", r.PaymentID, result.Error)
	}
	if result.RowsAffected == 0 {
		log.Warnf("[payment] refund %s references unknown payment %s", r.ID, r.PaymentID)
	}

	log.Infof("[payment] succeeded refund %s successfully processed", r.ID)
	return nil
}

// savePaymentIfNotExists inserts the payment row keyed by payment id. A
// payment for an unknown username is a critical invariant violation.
func (e *Engine) savePaymentIfNotExists(tx *gorm.DB, p *yookassa.PaymentObject, m *yookassa.Metadata) (*models.User, bool, error) {
	var user models.User
	if err := tx.Where("username = ?", m.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("[payment] not found user in database with username %q received by payment ID %q", m.Username, p.ID)
			return nil, false, fmt.Errorf("not found user with username %q received by payment ID %q", m.Username, p.ID)
		}
		return nil, false, err
	}

	var count int64
	if err := tx.Model(&models.YkPayment{}).Where("payment_id = ?", p.ID).Count(&count).Error; err != nil {
		return nil, false, err
	}
	if count > 0 {
		return &user, false, nil
	}

	var capturedAt *time.Time
	if p.CapturedAt != nil {
		t := p.CapturedAt.UTC()
		capturedAt = &t
	}

	row := models.YkPayment{
		PaymentID:          p.ID,
		UserID:             user.ID,
		Amount:             p.Amount.Value,
		Currency:           p.Amount.Currency,
		Status:             p.Status,
		CapturedAt:         capturedAt,
		CreatedAt:          p.CreatedAt.UTC(),
		SubscriptionPeriod: m.SubscriptionPeriod,
		IsTrialPromotion:   bool(m.TrialPromotion),
	}
	if err := tx.Create(&row).Error; err != nil {
		return nil, false, fmt.Errorf("failed to insert payment %s: %w", p.ID, err)
	}
	return &user, true, nil
}

// extendUserExpiry applies new_expiry = max(current_expiry, now) + interval:
// extending an already-expired subscription starts the interval from now.
func extendUserExpiry(tx *gorm.DB, username string, interval time.Duration) error {
	var user models.User
	if err := tx.Where("username = ?", username).First(&user).Error; err != nil {
		return fmt.Errorf("failed to load user %s for expiry extension: %w", username, err)
	}

	base := user.ExpireAt.UTC()
	now := time.Now().UTC()
	if base.Before(now) {
		base = now
	}

	return tx.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("expire_at", base.Add(interval)).Error
}
