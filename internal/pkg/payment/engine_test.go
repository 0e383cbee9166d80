package payment

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/monkey-island/yookassa-payments/app/models"
	"github.com/monkey-island/yookassa-payments/internal/pkg/analytics"
	"github.com/monkey-island/yookassa-payments/internal/pkg/rwms"
	"github.com/monkey-island/yookassa-payments/internal/pkg/tariff"
	"github.com/monkey-island/yookassa-payments/internal/pkg/yookassa"
)

type fakePublisher struct {
	vpn []any
	vps []any
	ym  []any
}

func (f *fakePublisher) PushToVPNBot(_ context.Context, msg any) error {
	f.vpn = append(f.vpn, msg)
	return nil
}

func (f *fakePublisher) PushToVPSBot(_ context.Context, msg any) error {
	f.vps = append(f.vps, msg)
	return nil
}

func (f *fakePublisher) PushToYMStat(_ context.Context, msg any) error {
	f.ym = append(f.ym, msg)
	return nil
}

type scheduledTask struct {
	paymentID string
	username  string
	tariff    tariff.Tariff
}

type fakeScheduler struct {
	tasks []scheduledTask
}

func (f *fakeScheduler) ScheduleAddTimeInterval(paymentID, username string, t tariff.Tariff, _ *int64, _ string) error {
	f.tasks = append(f.tasks, scheduledTask{paymentID: paymentID, username: username, tariff: t})
	return nil
}

type fakeRWMS struct {
	users   map[string]*rwms.User
	updates []rwms.UpdateUserRequest
	creates []rwms.CreateUserRequest
}

func (f *fakeRWMS) GetUserByUsername(_ context.Context, username string) (*rwms.User, error) {
	return f.users[username], nil
}

func (f *fakeRWMS) CreateUser(_ context.Context, req rwms.CreateUserRequest) (*rwms.User, error) {
	f.creates = append(f.creates, req)
	return &rwms.User{UUID: "new", Username: req.Username, Status: req.Status, ExpireAt: &req.ExpireAt}, nil
}

func (f *fakeRWMS) UpdateUser(_ context.Context, req rwms.UpdateUserRequest) (*rwms.User, error) {
	f.updates = append(f.updates, req)
	return &rwms.User{UUID: req.UUID, Status: req.Status, ExpireAt: &req.ExpireAt}, nil
}

type engineFixture struct {
	db    *gorm.DB
	pub   *fakePublisher
	tasks *fakeScheduler
	rwms  *fakeRWMS
	eng   *Engine
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "payments.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.YkPayment{},
		&models.YkRecurrentPayment{},
		&models.ReferralBonus{},
		&models.EventLog{},
	))

	f := &engineFixture{
		db:    db,
		pub:   &fakePublisher{},
		tasks: &fakeScheduler{},
		rwms:  &fakeRWMS{users: map[string]*rwms.User{}},
	}
	f.eng = NewEngine(db, f.pub, f.tasks, f.rwms, "squad-1")
	return f
}

func (f *engineFixture) createUser(t *testing.T, username string, mutate ...func(*models.User)) *models.User {
	t.Helper()
	tgID := int64(1000)
	u := &models.User{
		Username:     username,
		TelegramID:   &tgID,
		ExpireAt:     time.Now().UTC().Add(24 * time.Hour),
		AutopayAllow: true,
		ReferralType: models.ReferralTypeStandard,
	}
	for _, m := range mutate {
		m(u)
	}
	require.NoError(t, f.db.Create(u).Error)
	return u
}

func succeededPayment(id string) *yookassa.PaymentObject {
	captured := time.Now().UTC()
	return &yookassa.PaymentObject{
		ID:     id,
		Status: "succeeded",
		Amount: yookassa.Amount{
			Value:    decimal.RequireFromString("199.00"),
			Currency: "RUB",
		},
		PaymentMethod: yookassa.PaymentMethod{Type: "bank_card", ID: "pm-" + id, Saved: true},
		CapturedAt:    &captured,
		CreatedAt:     captured.Add(-5 * time.Second),
	}
}

func metadataFor(username string, mutate ...func(*yookassa.Metadata)) *yookassa.Metadata {
	m := &yookassa.Metadata{
		Username:           username,
		SubscriptionPeriod: tariff.PeriodMonth,
	}
	for _, fn := range mutate {
		fn(m)
	}
	return m
}

func (f *engineFixture) eventTypes(t *testing.T, userID uint) []string {
	t.Helper()
	var events []models.EventLog
	require.NoError(t, f.db.Where("user_id = ?", userID).Order("id").Find(&events).Error)
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.EventType
	}
	return out
}

// Scenario: succeeded month payment, manual, no trial, no referrer.
func TestSucceededManualMonthPayment(t *testing.T) {
	f := newEngineFixture(t)
	user := f.createUser(t, "island_user")
	before := user.ExpireAt

	p := succeededPayment("pay-1")
	m := metadataFor("island_user")

	require.NoError(t, f.eng.HandleSucceededPayment(context.Background(), p, m))

	var payments []models.YkPayment
	require.NoError(t, f.db.Find(&payments).Error)
	require.Len(t, payments, 1)
	assert.Equal(t, "pay-1", payments[0].PaymentID)
	assert.Equal(t, user.ID, payments[0].UserID)
	assert.Equal(t, tariff.PeriodMonth, payments[0].SubscriptionPeriod)

	// One month task enqueued.
	require.Len(t, f.tasks.tasks, 1)
	assert.Equal(t, "pay-1", f.tasks.tasks[0].paymentID)
	assert.Equal(t, tariff.PeriodMonth, f.tasks.tasks[0].tariff.ID)

	// One PaymentRegularManualSuccess analytics event.
	assert.Equal(t, []string{string(analytics.PaymentRegularManualSuccess)}, f.eventTypes(t, user.ID))

	// No referral bonus.
	var bonuses int64
	require.NoError(t, f.db.Model(&models.ReferralBonus{}).Count(&bonuses).Error)
	assert.Zero(t, bonuses)

	// Local expiry extended by the tariff interval.
	var after models.User
	require.NoError(t, f.db.First(&after, user.ID).Error)
	assert.WithinDuration(t, before.Add(30*24*time.Hour), after.ExpireAt, 2*time.Second)

	// Success notification fanned out to both bots, purchase to stat.
	assert.Len(t, f.pub.vpn, 1)
	assert.Len(t, f.pub.vps, 1)
	assert.Len(t, f.pub.ym, 1)
}

// Scenario: two webhook events with an identical payment id.
func TestSucceededPaymentReplayIsIdempotent(t *testing.T) {
	f := newEngineFixture(t)
	user := f.createUser(t, "island_user")

	p := succeededPayment("pay-dup")
	m := metadataFor("island_user")

	require.NoError(t, f.eng.HandleSucceededPayment(context.Background(), p, m))

	var afterFirst models.User
	require.NoError(t, f.db.First(&afterFirst, user.ID).Error)

	require.NoError(t, f.eng.HandleSucceededPayment(context.Background(), p, m))

	var payments int64
	require.NoError(t, f.db.Model(&models.YkPayment{}).Count(&payments).Error)
	assert.Equal(t, int64(1), payments)

	// No second extension, task, or analytics event.
	var afterSecond models.User
	require.NoError(t, f.db.First(&afterSecond, user.ID).Error)
	assert.True(t, afterFirst.ExpireAt.Equal(afterSecond.ExpireAt))
	assert.Len(t, f.tasks.tasks, 1)
	assert.Len(t, f.eventTypes(t, user.ID), 1)
}

func TestSucceededPaymentUnknownUserFails(t *testing.T) {
	f := newEngineFixture(t)

	err := f.eng.HandleSucceededPayment(context.Background(), succeededPayment("pay-x"), metadataFor("ghost"))
	require.Error(t, err)

	var payments int64
	require.NoError(t, f.db.Model(&models.YkPayment{}).Count(&payments).Error)
	assert.Zero(t, payments)
}

func TestSucceededPaymentAutopayDisabledShortCircuit(t *testing.T) {
	f := newEngineFixture(t)
	user := f.createUser(t, "island_user", func(u *models.User) { u.AutopayAllow = false })
	before := user.ExpireAt

	require.NoError(t, f.eng.HandleSucceededPayment(context.Background(), succeededPayment("pay-2"), metadataFor("island_user")))

	// Payment recorded, but no extension and no task.
	var payments int64
	require.NoError(t, f.db.Model(&models.YkPayment{}).Count(&payments).Error)
	assert.Equal(t, int64(1), payments)

	var after models.User
	require.NoError(t, f.db.First(&after, user.ID).Error)
	assert.True(t, before.Equal(after.ExpireAt))
	assert.Empty(t, f.tasks.tasks)

	var recurrent int64
	require.NoError(t, f.db.Model(&models.YkRecurrentPayment{}).Count(&recurrent).Error)
	assert.Zero(t, recurrent)
}

func TestSucceededPaymentUnsavedMethodShortCircuit(t *testing.T) {
	f := newEngineFixture(t)
	f.createUser(t, "island_user")

	p := succeededPayment("pay-3")
	p.PaymentMethod.Saved = false

	require.NoError(t, f.eng.HandleSucceededPayment(context.Background(), p, metadataFor("island_user")))

	var recurrent int64
	require.NoError(t, f.db.Model(&models.YkRecurrentPayment{}).Count(&recurrent).Error)
	assert.Zero(t, recurrent)
	assert.Empty(t, f.tasks.tasks)
}

func TestSucceededPaymentUpsertsRecurrentPayment(t *testing.T) {
	f := newEngineFixture(t)
	user := f.createUser(t, "island_user")

	require.NoError(t, f.eng.HandleSucceededPayment(context.Background(), succeededPayment("pay-4"), metadataFor("island_user")))

	p2 := succeededPayment("pay-5")
	p2.PaymentMethod.ID = "pm-next"
	require.NoError(t, f.eng.HandleSucceededPayment(context.Background(), p2, metadataFor("island_user")))

	// Overwrite on conflict: still one row, holding the latest token.
	var recs []models.YkRecurrentPayment
	require.NoError(t, f.db.Find(&recs).Error)
	require.Len(t, recs, 1)
	assert.Equal(t, user.ID, recs[0].UserID)
	assert.Equal(t, "pm-next", recs[0].RecurrentPaymentID)
	assert.False(t, recs[0].ScheduledPayment)
}

func TestSucceededTrialPromotionSubstitutesOneMonthTariff(t *testing.T) {
	f := newEngineFixture(t)
	f.createUser(t, "island_user")

	p := succeededPayment("pay-trial")
	p.Amount.Value = decimal.NewFromInt(10)
	m := metadataFor("island_user", func(m *yookassa.Metadata) {
		m.SubscriptionPeriod = tariff.PeriodThreeDays
		m.TrialPromotion = true
	})

	require.NoError(t, f.eng.HandleSucceededPayment(context.Background(), p, m))

	// Next cycle bills a regular month, not another trial.
	var rec models.YkRecurrentPayment
	require.NoError(t, f.db.First(&rec).Error)
	assert.Equal(t, tariff.PeriodMonth, rec.SubscriptionPeriod)
	assert.True(t, rec.Amount.Equal(tariff.OneMonth().Price))
	assert.True(t, rec.IsTrialPromotion)

	// The task extends by the purchased period, not the substituted one.
	require.Len(t, f.tasks.tasks, 1)
	assert.Equal(t, tariff.PeriodThreeDays, f.tasks.tasks[0].tariff.ID)
}

func TestReferralBonusGrantedOncePerPair(t *testing.T) {
	f := newEngineFixture(t)

	referrerTg := int64(42)
	referrer := f.createUser(t, "referrer", func(u *models.User) {
		u.TelegramID = &referrerTg
		u.ExpireAt = time.Now().UTC().Add(10 * 24 * time.Hour)
	})
	referrerExpireBefore := referrer.ExpireAt

	f.createUser(t, "referral_user", func(u *models.User) {
		u.ReferredByID = &referrer.ID
	})

	expire := time.Now().UTC().Add(10 * 24 * time.Hour)
	f.rwms.users["referrer"] = &rwms.User{UUID: "ru-1", Username: "referrer", ExpireAt: &expire}

	require.NoError(t, f.eng.HandleSucceededPayment(context.Background(), succeededPayment("pay-r1"), metadataFor("referral_user")))

	var bonuses []models.ReferralBonus
	require.NoError(t, f.db.Find(&bonuses).Error)
	require.Len(t, bonuses, 1)
	assert.Equal(t, referrer.ID, bonuses[0].ReferrerID)
	assert.Equal(t, tariff.ReferralBonusDays, bonuses[0].DaysAdded)

	// Referrer's local expiry extended by the bonus interval.
	var after models.User
	require.NoError(t, f.db.First(&after, referrer.ID).Error)
	assert.WithinDuration(t, referrerExpireBefore.Add(30*24*time.Hour), after.ExpireAt, 2*time.Second)

	// External convergence attempted for the referrer.
	require.Len(t, f.rwms.updates, 1)
	assert.Equal(t, "ru-1", f.rwms.updates[0].UUID)

	// A second qualifying purchase does not grant a second bonus.
	require.NoError(t, f.eng.HandleSucceededPayment(context.Background(), succeededPayment("pay-r2"), metadataFor("referral_user")))
	require.NoError(t, f.db.Find(&bonuses).Error)
	assert.Len(t, bonuses, 1)
}

func TestReferralBonusSkippedForShortPeriods(t *testing.T) {
	f := newEngineFixture(t)

	referrer := f.createUser(t, "referrer")
	f.createUser(t, "referral_user", func(u *models.User) {
		u.ReferredByID = &referrer.ID
	})

	m := metadataFor("referral_user", func(m *yookassa.Metadata) {
		m.SubscriptionPeriod = tariff.PeriodOneDay
	})
	require.NoError(t, f.eng.HandleSucceededPayment(context.Background(), succeededPayment("pay-s"), m))

	var bonuses int64
	require.NoError(t, f.db.Model(&models.ReferralBonus{}).Count(&bonuses).Error)
	assert.Zero(t, bonuses)
}

// Scenario: canceled payment with status general_decline.
func TestCanceledPaymentGeneralDecline(t *testing.T) {
	f := newEngineFixture(t)
	user := f.createUser(t, "island_user")

	p := succeededPayment("pay-c1")
	p.Status = yookassa.StatusGeneralDecline
	m := metadataFor("island_user")

	require.NoError(t, f.eng.HandleCanceledPayment(context.Background(), p, m))

	var payments int64
	require.NoError(t, f.db.Model(&models.YkPayment{}).Count(&payments).Error)
	assert.Equal(t, int64(1), payments)

	assert.Equal(t, []string{string(analytics.PaymentRegularManualFailure)}, f.eventTypes(t, user.ID))

	// No notification sent, no recurrent-payment row touched.
	assert.Empty(t, f.pub.vpn)
	assert.Empty(t, f.pub.vps)

	var recurrent int64
	require.NoError(t, f.db.Model(&models.YkRecurrentPayment{}).Count(&recurrent).Error)
	assert.Zero(t, recurrent)
}

func TestCanceledAutopayPaymentDisablesAutopay(t *testing.T) {
	f := newEngineFixture(t)
	user := f.createUser(t, "island_user")
	require.NoError(t, f.db.Create(&models.YkRecurrentPayment{
		UserID:             user.ID,
		RecurrentPaymentID: "pm-old",
		Amount:             decimal.NewFromInt(199),
		Currency:           "RUB",
		CapturedAt:         time.Now().UTC(),
		SubscriptionPeriod: tariff.PeriodMonth,
	}).Error)

	p := succeededPayment("pay-c2")
	p.Status = "insufficient_funds"
	m := metadataFor("island_user", func(m *yookassa.Metadata) { m.Autopay = true })

	require.NoError(t, f.eng.HandleCanceledPayment(context.Background(), p, m))

	var recurrent int64
	require.NoError(t, f.db.Model(&models.YkRecurrentPayment{}).Count(&recurrent).Error)
	assert.Zero(t, recurrent)

	var after models.User
	require.NoError(t, f.db.First(&after, user.ID).Error)
	assert.False(t, after.AutopayAllow)

	assert.Equal(t, []string{string(analytics.PaymentRegularAutopayFailure)}, f.eventTypes(t, user.ID))
	assert.Len(t, f.pub.vpn, 1)
}

func TestCanceledManualPaymentLeavesAutopayAllow(t *testing.T) {
	f := newEngineFixture(t)
	user := f.createUser(t, "island_user")

	p := succeededPayment("pay-c3")
	p.Status = "insufficient_funds"

	require.NoError(t, f.eng.HandleCanceledPayment(context.Background(), p, metadataFor("island_user")))

	var after models.User
	require.NoError(t, f.db.First(&after, user.ID).Error)
	assert.True(t, after.AutopayAllow)

	// Manual failure notification went out.
	assert.Len(t, f.pub.vpn, 1)
}

func TestSucceededRefundMarksPayment(t *testing.T) {
	f := newEngineFixture(t)
	f.createUser(t, "island_user")

	require.NoError(t, f.eng.HandleSucceededPayment(context.Background(), succeededPayment("pay-rf"), metadataFor("island_user")))

	require.NoError(t, f.eng.HandleSucceededRefund(context.Background(), &yookassa.RefundObject{
		ID:        "rf-1",
		PaymentID: "pay-rf",
		Status:    "succeeded",
	}))

	var payment models.YkPayment
	require.NoError(t, f.db.Where("payment_id = ?", "pay-rf").First(&payment).Error)
	assert.Equal(t, models.PaymentStatusRefunded, payment.Status)
}

func TestExtendUserExpiryMaxRule(t *testing.T) {
	f := newEngineFixture(t)
	interval := 30 * 24 * time.Hour

	// expiry > now: stacks.
	future := f.createUser(t, "future_user", func(u *models.User) {
		u.ExpireAt = time.Now().UTC().Add(72 * time.Hour)
	})
	require.NoError(t, extendUserExpiry(f.db, "future_user", interval))
	var got models.User
	require.NoError(t, f.db.First(&got, future.ID).Error)
	assert.WithinDuration(t, future.ExpireAt.Add(interval), got.ExpireAt, 2*time.Second)

	// expiry <= now: restarts from now.
	expired := f.createUser(t, "expired_user", func(u *models.User) {
		u.ExpireAt = time.Now().UTC().Add(-72 * time.Hour)
	})
	require.NoError(t, extendUserExpiry(f.db, "expired_user", interval))
	require.NoError(t, f.db.First(&got, expired.ID).Error)
	assert.WithinDuration(t, time.Now().UTC().Add(interval), got.ExpireAt, 5*time.Second)
}
