package analytics

// Event tags the service appends to the event log. Payment events classify
// {autopay vs manual} x {trial vs regular vs trial-to-regular}; the six
// success/failure combinations below are mutually exclusive per payment.
type Event string

const (
	SubscriptionActivated Event = "subscription-activated"

	PaymentTrialManualSuccess           Event = "payment-trial-manual-success"
	PaymentTrialManualFailure           Event = "payment-trial-manual-failure"
	PaymentRegularManualSuccess         Event = "payment-regular-manual-success"
	PaymentRegularManualFailure         Event = "payment-regular-manual-failure"
	PaymentRegularAutopaySuccess        Event = "payment-regular-autopay-success"
	PaymentRegularAutopayFailure        Event = "payment-regular-autopay-failure"
	PaymentTrialToRegularAutopaySuccess Event = "payment-trial-to-regular-autopay-success"
	PaymentTrialToRegularAutopayFailure Event = "payment-trial-to-regular-autopay-failure"
)

// SucceededPaymentEvent classifies a captured payment.
func SucceededPaymentEvent(autopay, trialPromotion, fromTrial bool) Event {
	if autopay {
		if fromTrial {
			return PaymentTrialToRegularAutopaySuccess
		}
		return PaymentRegularAutopaySuccess
	}
	if trialPromotion {
		return PaymentTrialManualSuccess
	}
	return PaymentRegularManualSuccess
}

// CanceledPaymentEvent classifies a failed payment.
func CanceledPaymentEvent(autopay, trialPromotion, fromTrial bool) Event {
	if autopay {
		if fromTrial {
			return PaymentTrialToRegularAutopayFailure
		}
		return PaymentRegularAutopayFailure
	}
	if trialPromotion {
		return PaymentTrialManualFailure
	}
	return PaymentRegularManualFailure
}
