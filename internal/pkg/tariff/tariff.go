package tariff

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Known subscription period ids as they appear in webhook metadata and in the
// subscription_period database columns.
const (
	PeriodOneDay      = "oneday"
	PeriodThreeDays   = "threedays"
	PeriodMonth       = "month"
	PeriodThreeMonths = "threemonths"
	PeriodSixMonths   = "sixmonths"
	PeriodYear        = "year"
)

// ReferralBonusDays is the subscription credit granted to a referrer on a
// qualifying purchase by their referral.
const ReferralBonusDays = 30

// Tariff describes a purchasable subscription plan.
type Tariff struct {
	ID          string
	Description string
	Price       decimal.Decimal
	Interval    time.Duration
}

var tariffs = map[string]Tariff{
	PeriodOneDay:      {ID: PeriodOneDay, Description: "1 day", Price: decimal.NewFromInt(25), Interval: 24 * time.Hour},
	PeriodThreeDays:   {ID: PeriodThreeDays, Description: "3 days", Price: decimal.NewFromInt(60), Interval: 3 * 24 * time.Hour},
	PeriodMonth:       {ID: PeriodMonth, Description: "1 month", Price: decimal.NewFromInt(199), Interval: 30 * 24 * time.Hour},
	PeriodThreeMonths: {ID: PeriodThreeMonths, Description: "3 months", Price: decimal.NewFromInt(499), Interval: 90 * 24 * time.Hour},
	PeriodSixMonths:   {ID: PeriodSixMonths, Description: "6 months", Price: decimal.NewFromInt(899), Interval: 180 * 24 * time.Hour},
	PeriodYear:        {ID: PeriodYear, Description: "1 year", Price: decimal.NewFromInt(1599), Interval: 365 * 24 * time.Hour},
}

// FromPeriod resolves a subscription period id to its tariff.
func FromPeriod(period string) (Tariff, error) {
	t, ok := tariffs[period]
	if !ok {
		return Tariff{}, fmt.Errorf("unknown subscription period: %q", period)
	}
	return t, nil
}

// OneMonth is the tariff charged on the cycle after a trial-promotion
// purchase: the trial price applies once, the next autopay bills a regular
// month.
func OneMonth() Tariff {
	return tariffs[PeriodMonth]
}

// QualifiesForReferralBonus reports whether a purchased period is long enough
// to credit the referrer. Short promo periods are excluded.
func QualifiesForReferralBonus(period string) bool {
	return period != PeriodOneDay && period != PeriodThreeDays
}
