package rwmstask

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/monkey-island/yookassa-payments/internal/pkg/analytics"
	"github.com/monkey-island/yookassa-payments/internal/pkg/fsqueue"
	"github.com/monkey-island/yookassa-payments/internal/pkg/rwms"
	"github.com/monkey-island/yookassa-payments/internal/pkg/tariff"
)

// DefaultPollInterval is the pause between full scans of the pending queue.
const DefaultPollInterval = 10 * time.Second

// Processor consumes subscription-update commands and converges the external
// management system. Tasks whose convergence fails stay in processing and are
// the operator's to remediate; the producing payment has already committed.
type Processor struct {
	queue        *fsqueue.Queue
	db           *gorm.DB
	rwms         rwms.API
	squadUUID    string
	pollInterval time.Duration
}

// NewProcessor builds the task consumer.
func NewProcessor(queue *fsqueue.Queue, db *gorm.DB, api rwms.API, squadUUID string, pollInterval time.Duration) *Processor {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Processor{
		queue:        queue,
		db:           db,
		rwms:         api,
		squadUUID:    squadUUID,
		pollInterval: pollInterval,
	}
}

// ScheduleAddTimeInterval persists an extend-subscription command keyed by
// the payment id that produced it. Satisfies payment.TaskScheduler.
func (p *Processor) ScheduleAddTimeInterval(paymentID, username string, t tariff.Tariff, telegramID *int64, email string) error {
	log.Infof("[rwmstask] writing task %s to disk", paymentID)

	task := AddTimeIntervalTask{
		Type:       TaskTypeAddTimeInterval,
		Username:   username,
		Tariff:     t.ID,
		TelegramID: telegramID,
		Email:      email,
	}
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", paymentID, err)
	}
	if err := p.queue.Submit(paymentID, data); err != nil {
		return err
	}

	log.Infof("[rwmstask] task %s saved on disk", paymentID)
	return nil
}

// Process consumes the queue until ctx is done.
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
			log.Errorf("[rwmstask] failed to claim next task: %v", err)
			return
		}
		if !ok {
			return
		}

		if err := p.handleItem(ctx, id, payload); err != nil {
			log.Errorf("[rwmstask] executing task %s failed: %v", id, err)
		}
	}
}

func (p *Processor) handleItem(ctx context.Context, id string, payload []byte) error {
	kind, err := taskType(payload)
	if err != nil {
		return err
	}

	switch kind {
	case TaskTypeAddTimeInterval:
		var task AddTimeIntervalTask
		if err := json.Unmarshal(payload, &task); err != nil {
			return fmt.Errorf("failed to decode add-time-interval task: %w", err)
		}
		return p.addTimeInterval(ctx, id, task)

	case TaskTypeSubtractTimeInterval:
		// Defined in the schema, no consumer logic yet. Left in processing.
		log.Warnf("[rwmstask] task %s has unimplemented type %s", id, kind)
		return nil

	default:
		return fmt.Errorf("unknown task type: %s", kind)
	}
}

func (p *Processor) addTimeInterval(ctx context.Context, id string, task AddTimeIntervalTask) error {
	log.Infof("[rwmstask] processing add-time-interval task for subscription %s", task.Username)

	t, err := tariff.FromPeriod(task.Tariff)
	if err != nil {
		return err
	}

	user, err := p.rwms.GetUserByUsername(ctx, task.Username)
	if err != nil {
		return err
	}

	var response *rwms.User
	activated := false

	if user == nil {
		response, err = rwms.CreateFor(ctx, p.rwms, p.squadUUID, task.Username, task.TelegramID, task.Email, t.Interval)
		if err != nil {
			return err
		}
	} else {
		log.Infof("[rwmstask] updating expire time for %s", task.Username)
		response, activated, err = rwms.ExtendExpiry(ctx, p.rwms, p.squadUUID, user, t.Interval)
		if err != nil {
			return err
		}
	}

	if response == nil {
		return fmt.Errorf("management system returned empty response for %s", task.Username)
	}

	if err := p.queue.Complete(id); err != nil {
		return err
	}
	log.Infof("[rwmstask] successfully handled add-time-interval task for %s, tariff %s", task.Username, t.Description)

	if activated {
		p.saveSubscriptionReactivated(ctx, task.Username)
	}
	return nil
}

// saveSubscriptionReactivated appends the reactivation analytics event in its
// own transaction; a logging failure never fails the completed task.
func (p *Processor) saveSubscriptionReactivated(ctx context.Context, username string) {
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return analytics.SaveEventLog(tx, username, analytics.SubscriptionActivated)
	})
	if err != nil {
		log.Errorf("[rwmstask] saving subscription reactivated event log failed: %v", err)
	}
}
