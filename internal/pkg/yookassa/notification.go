package yookassa

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Webhook event kinds delivered by YooKassa.
const (
	EventPaymentSucceeded         = "payment.succeeded"
	EventPaymentWaitingForCapture = "payment.waiting_for_capture"
	EventPaymentCanceled          = "payment.canceled"
	EventRefundSucceeded          = "refund.succeeded"
	EventDealClosed               = "deal.closed"
	EventPayoutSucceeded          = "payout.succeeded"
	EventPayoutCanceled           = "payout.canceled"
)

// Cancellation reasons that are expected domain outcomes, not autopay
// failures requiring cleanup.
const (
	StatusExpiredOnConfirmation = "expired_on_confirmation"
	StatusGeneralDecline        = "general_decline"
)

// Notification is the envelope of every webhook body. Object is kept raw
// because its shape depends on the event kind.
type Notification struct {
	Type   string          `json:"type"`
	Event  string          `json:"event"`
	Object json.RawMessage `json:"object"`
}

// Amount is a provider money value, serialized as a decimal string.
type Amount struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
}

// PaymentMethod describes how a payment was charged and whether the method
// token was saved for future autopay charges.
type PaymentMethod struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Saved bool   `json:"saved"`
}

// PaymentObject is the object payload of payment.* events.
type PaymentObject struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	Amount        Amount          `json:"amount"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	CapturedAt    *time.Time      `json:"captured_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	Metadata      json.RawMessage `json:"metadata"`
}

// RefundObject is the object payload of refund.* events.
type RefundObject struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// ParseNotification decodes a raw webhook body into its envelope.
func ParseNotification(body []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("failed to decode webhook notification: %w", err)
	}
	if n.Event == "" {
		return nil, fmt.Errorf("webhook notification has no event kind")
	}
	return &n, nil
}

// Payment decodes the notification object as a payment.
func (n *Notification) Payment() (*PaymentObject, error) {
	var p PaymentObject
	if err := json.Unmarshal(n.Object, &p); err != nil {
		return nil, fmt.Errorf("failed to decode payment object: %w", err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("payment object has no id")
	}
	return &p, nil
}

// Refund decodes the notification object as a refund.
func (n *Notification) Refund() (*RefundObject, error) {
	var r RefundObject
	if err := json.Unmarshal(n.Object, &r); err != nil {
		return nil, fmt.Errorf("failed to decode refund object: %w", err)
	}
	if r.PaymentID == "" {
		return nil, fmt.Errorf("refund object has no payment_id")
	}
	return &r, nil
}

// ObjectID extracts the id of the notification object without committing to
// a concrete object shape. Used by the HTTP layer to key queue items.
func ObjectID(body []byte) (string, error) {
	var probe struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return "", fmt.Errorf("failed to decode webhook body: %w", err)
	}
	return probe.Object.ID, nil
}

// FlexBool accepts both JSON booleans and their string forms. YooKassa
// metadata values arrive as strings when set through some client SDKs.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*b = FlexBool(t)
		return nil
	case string:
		parsed, err := strconv.ParseBool(strings.ToLower(t))
		if err != nil {
			return fmt.Errorf("invalid boolean value %q", t)
		}
		*b = FlexBool(parsed)
		return nil
	default:
		return fmt.Errorf("invalid boolean value %v", v)
	}
}

// FlexInt64 accepts both JSON numbers and numeric strings.
type FlexInt64 int64

func (i *FlexInt64) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case float64:
		*i = FlexInt64(int64(t))
		return nil
	case string:
		parsed, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value %q", t)
		}
		*i = FlexInt64(parsed)
		return nil
	default:
		return fmt.Errorf("invalid integer value %v", v)
	}
}
