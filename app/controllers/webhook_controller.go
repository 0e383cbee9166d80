package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/monkey-island/yookassa-payments/internal/pkg/webhook"
	"github.com/monkey-island/yookassa-payments/internal/pkg/yookassa"
)

// WebhookController accepts provider webhooks and hands them to the durable
// queue. No synchronous processing happens in the request path.
type WebhookController struct {
	processor         *webhook.Processor
	trustForwardedFor bool
}

// NewWebhookController wires the controller to the webhook queue processor.
// trustForwardedFor enables the X-Forwarded-For fallback for deployments
// behind a trusted reverse proxy.
func NewWebhookController(processor *webhook.Processor, trustForwardedFor bool) *WebhookController {
	return &WebhookController{processor: processor, trustForwardedFor: trustForwardedFor}
}

// HandleYooKassaWebhook persists the raw body into the webhook queue and
// returns immediately. 200 means "durably accepted", not "processed".
func (wc *WebhookController) HandleYooKassaWebhook(c *fiber.Ctx) error {
	allowed := yookassa.IsTrustedIP(c.IP())

	if !allowed && wc.trustForwardedFor {
		forwarded := c.Get(fiber.HeaderXForwardedFor)
		if idx := strings.IndexByte(forwarded, ','); idx >= 0 {
			forwarded = forwarded[:idx]
		}
		allowed = yookassa.IsTrustedIP(strings.TrimSpace(forwarded))
	}

	if !allowed {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden: IP not allowed"})
	}

	body := c.Body()
	fiberlog.Infof("[webhook] received webhook payload: %s", string(body))

	eventID, err := yookassa.ObjectID(body)
	if err != nil {
		fiberlog.Errorf("[webhook] failed to decode JSON: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if eventID == "" {
		// Never drop an accepted event just because the payload is odd.
		eventID = uuid.New().String()
	}

	// c.Body() is only valid during the request; the queue needs its own copy.
	payload := make([]byte, len(body))
	copy(payload, body)

	if err := wc.processor.Schedule(eventID, payload); err != nil {
		fiberlog.Errorf("[webhook] error scheduling webhook %s: %v", eventID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal Server Error"})
	}

	fiberlog.Infof("[webhook] webhook %s scheduled", eventID)
	return c.JSON(fiber.Map{"status": "ok"})
}
