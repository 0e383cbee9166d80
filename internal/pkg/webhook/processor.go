package webhook

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/monkey-island/yookassa-payments/internal/pkg/fsqueue"
	"github.com/monkey-island/yookassa-payments/internal/pkg/yookassa"
)

// DefaultPollInterval is the pause between full scans of the pending queue.
const DefaultPollInterval = 10 * time.Second

// Handler is the payment state-transition engine as seen from the webhook
// consumer.
type Handler interface {
	HandleSucceededPayment(ctx context.Context, p *yookassa.PaymentObject, m *yookassa.Metadata) error
	HandleCanceledPayment(ctx context.Context, p *yookassa.PaymentObject, m *yookassa.Metadata) error
	HandleSucceededRefund(ctx context.Context, r *yookassa.RefundObject) error
}

// Processor persists raw webhook bodies into a durable queue and consumes
// them sequentially. Items whose processing fails stay in the queue's
// processing directory until a later pass or operator intervention.
type Processor struct {
	queue        *fsqueue.Queue
	handler      Handler
	pollInterval time.Duration
}

// NewProcessor builds the webhook consumer over its queue and engine.
func NewProcessor(queue *fsqueue.Queue, handler Handler, pollInterval time.Duration) *Processor {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Processor{queue: queue, handler: handler, pollInterval: pollInterval}
}

// Schedule persists a raw webhook body for asynchronous processing. Called
// from the HTTP request path, which must not process synchronously.
func (p *Processor) Schedule(eventID string, body []byte) error {
	log.Infof("[webhook] writing webhook %s to disk", eventID)
	if err := p.queue.Submit(eventID, body); err != nil {
		return err
	}
	log.Infof("[webhook] webhook %s saved on disk", eventID)
	return nil
}

// Process consumes the queue until ctx is done. Within the loop items are
// handled strictly sequentially.
func (p *Processor) Process(ctx context.Context) {
	for {
		p.drain(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.pollInterval):
		}
	}
}

func (p *Processor) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		id, payload, ok, err := p.queue.ClaimNext()
		if err != nil {
			log.Errorf("[webhook] failed to claim next webhook: %v", err)
			return
		}
		if !ok {
			return
		}

		log.Infof("[webhook] took %s to handle", id)
		p.handleItem(ctx, id, payload)
	}
}

// handleItem dispatches one claimed webhook. Completion is deliberately
// skipped on every failure path so the item stays visible in processing.
func (p *Processor) handleItem(ctx context.Context, id string, payload []byte) {
	n, err := yookassa.ParseNotification(payload)
	if err != nil {
		log.Errorf("[webhook] error processing item %s: %v", id, err)
		return
	}

	switch n.Event {
	case yookassa.EventPaymentSucceeded:
		p.onPayment(ctx, id, n, p.handler.HandleSucceededPayment)

	case yookassa.EventPaymentWaitingForCapture:
		log.Infof("[webhook] %s is waiting for capture", id)
		p.complete(id)

	case yookassa.EventPaymentCanceled:
		p.onPayment(ctx, id, n, p.handler.HandleCanceledPayment)

	case yookassa.EventRefundSucceeded:
		refund, err := n.Refund()
		if err != nil {
			log.Errorf("[webhook] error processing item %s: %v", id, err)
			return
		}
		if err := p.handler.HandleSucceededRefund(ctx, refund); err != nil {
			log.Errorf("[webhook] handling succeeded refund error: %v", err)
			return
		}
		p.complete(id)

	case yookassa.EventDealClosed, yookassa.EventPayoutSucceeded, yookassa.EventPayoutCanceled:
		// Recognized but unhandled; reserved for future use.

	default:
		log.Debugf("[webhook] skipping uninteresting webhook %s (%s)", id, n.Event)
		p.complete(id)
	}
}

func (p *Processor) onPayment(ctx context.Context, id string, n *yookassa.Notification, handle func(context.Context, *yookassa.PaymentObject, *yookassa.Metadata) error) {
	payment, err := n.Payment()
	if err != nil {
		log.Errorf("[webhook] error processing item %s: %v", id, err)
		return
	}

	metadata, err := yookassa.ParseMetadata(payment.Metadata)
	if err != nil {
		// Malformed metadata is never going to parse on retry; the item is
		// left stranded in processing rather than crash-looping.
		log.Warnf("[webhook] invalid metadata in webhook %s: %v", id, err)
		return
	}

	if err := handle(ctx, payment, metadata); err != nil {
		log.Errorf("[webhook] handling payment event %s failed: %v", id, err)
		return
	}

	p.complete(id)
}

func (p *Processor) complete(id string) {
	if err := p.queue.Complete(id); err != nil {
		log.Errorf("[webhook] failed to remove %s: %v", id, err)
		return
	}
	log.Infof("[webhook] %s removed successfully", id)
}
