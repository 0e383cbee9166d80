package yookassa

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Metadata is the merchant-defined payload attached to every payment at
// checkout. Username identifies both the local user row and the subscription
// in the external management system; telegram_id is optional and only used
// for notifications and event logging.
type Metadata struct {
	Username           string     `json:"username" validate:"required"`
	Email              string     `json:"email" validate:"omitempty,email"`
	TelegramID         *FlexInt64 `json:"telegram_id"`
	SubscriptionPeriod string     `json:"subscription_period" validate:"required,oneof=oneday threedays month threemonths sixmonths year"`

	// Autopay marks a provider-initiated recurring charge.
	Autopay FlexBool `json:"autopay"`

	// TrialPromotion marks a purchase of the discounted trial tariff.
	TrialPromotion FlexBool `json:"trial_promotion"`

	// FromTrial marks a payment made as part of the trial-to-regular
	// transition, whether charged automatically or manually.
	FromTrial FlexBool `json:"from_trial"`
}

var validate = validator.New()

// ParseMetadata decodes and validates payment metadata. A non-nil error means
// the webhook carries a payload this service cannot act on.
func ParseMetadata(raw json.RawMessage) (*Metadata, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("payment has no metadata")
	}

	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode payment metadata: %w", err)
	}
	if err := validate.Struct(&m); err != nil {
		return nil, fmt.Errorf("invalid payment metadata: %w", err)
	}
	return &m, nil
}

// TelegramIDValue returns the telegram id or 0 when absent.
func (m *Metadata) TelegramIDValue() int64 {
	if m.TelegramID == nil {
		return 0
	}
	return int64(*m.TelegramID)
}
