package correlator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	relay "github.com/grupoevolution/perfect-webhook-system"
	"github.com/grupoevolution/perfect-webhook-system/cron"
	"github.com/grupoevolution/perfect-webhook-system/dispatcher"
	"github.com/grupoevolution/perfect-webhook-system/journal"
	"github.com/grupoevolution/perfect-webhook-system/logging"
	"github.com/grupoevolution/perfect-webhook-system/metrics"
	"github.com/grupoevolution/perfect-webhook-system/pending"
)

// Action is what the controller did with a notification.
type Action string

const (
	ActionDispatched  Action = "dispatched"
	ActionScheduled   Action = "scheduled"
	ActionRescheduled Action = "rescheduled"
	ActionIgnored     Action = "ignored"
	ActionRejected    Action = "rejected"
)

// Ack reports the handling of one notification. Outcome is set only when a
// dispatch happened inline.
type Ack struct {
	OrderID string              `json:"code,omitempty"`
	Intent  relay.Intent        `json:"-"`
	Action  Action              `json:"action"`
	Outcome *dispatcher.Outcome `json:"-"`
	Err     error               `json:"-"`
}

// Dispatcher forwards one event downstream and never fails the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, n relay.Notification, kind relay.EventKind) dispatcher.Outcome
}

// Scheduler arms one-shot escalation timers.
type Scheduler interface {
	ScheduleAfter(delay time.Duration, opts cron.JobOptions, handler any) (cron.Handle, error)
}

// Controller correlates pending and approved notifications per order.
type Controller struct {
	store      *pending.Store
	scheduler  Scheduler
	dispatcher Dispatcher
	delay      time.Duration

	logger  logging.Logger
	journal journal.Sink
	metrics metrics.Metrics
	now     func() time.Time

	stopped atomic.Bool
}

// escalation carries the handle id into the timer callback. handleID is
// written and read under the order's lock.
type escalation struct {
	handleID int64
}

// New wires a controller around d and s.
func New(d Dispatcher, s Scheduler, opts ...Option) *Controller {
	c := &Controller{
		store:      pending.NewStore(),
		scheduler:  s,
		dispatcher: d,
		delay:      DefaultDelay,
		logger:     logging.Discard(),
		journal:    journal.Discard(),
		metrics:    metrics.Noop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Handle classifies n and applies the order's state transition.
// Per-notification failures are reported in the Ack, never returned.
func (c *Controller) Handle(ctx context.Context, n relay.Notification) Ack {
	if ctx == nil {
		ctx = context.Background()
	}
	orderID := n.OrderID()
	status := n.Status()
	intent := relay.Classify(status)
	ack := Ack{OrderID: orderID, Intent: intent}

	c.metrics.NotificationReceived(intent.String())
	c.journal.Record(journal.CategoryWebhookReceived,
		fmt.Sprintf("Webhook recebido - Pedido: %s | Status: %s", orderID, status),
		map[string]any{"code": orderID, "status": status, "intent": intent.String()})
	log := c.logger.WithFields(map[string]any{"code": orderID, "status": status})
	log.Info("notification received for order %s with status %q", orderID, status)

	if c.stopped.Load() {
		ack.Action = ActionRejected
		ack.Err = relay.ErrRelayStopped
		log.Warn("notification for order %s rejected: relay stopped", orderID)
		return ack
	}

	switch intent {
	case relay.IntentApproved:
		return c.approve(ctx, log, n, ack)
	case relay.IntentAwaitingPayment:
		return c.await(log, n, ack)
	default:
		ack.Action = ActionIgnored
		log.Info("status %q for order %s ignored", status, orderID)
		return ack
	}
}

func (c *Controller) approve(ctx context.Context, log logging.Logger, n relay.Notification, ack Ack) Ack {
	if ack.OrderID == "" {
		log.Warn("approved notification without order id, forwarding without correlation")
	} else {
		unlock := c.store.Lock(ack.OrderID)
		rec, ok := c.store.Remove(ack.OrderID)
		canceled := ok && rec.Handle != nil && rec.Handle.Cancel()
		unlock()

		if canceled {
			c.metrics.Escalation(metrics.EscalationCanceled)
		}
		if ok {
			c.metrics.PendingOrders(c.store.Len())
			log.Info("order %s removed from pending list", ack.OrderID)
			c.journal.Record(journal.CategoryInfo,
				fmt.Sprintf("Removido da lista PIX pendente: %s", ack.OrderID),
				map[string]any{"code": ack.OrderID})
		}
	}

	c.journal.Record(journal.CategorySuccess,
		fmt.Sprintf("Venda aprovada - enviando imediatamente: %s", ack.OrderID),
		map[string]any{"code": ack.OrderID})

	out := c.dispatcher.Dispatch(context.WithoutCancel(ctx), n, relay.EventApproved)
	ack.Action = ActionDispatched
	ack.Outcome = &out
	return ack
}

func (c *Controller) await(log logging.Logger, n relay.Notification, ack Ack) Ack {
	if ack.OrderID == "" {
		ack.Action = ActionRejected
		ack.Err = relay.NewError(relay.ErrMissingOrderID, "", nil, map[string]any{"status": n.Status()})
		log.Warn("pending notification without order id rejected")
		c.journal.Record(journal.CategoryError, "Notificação pendente sem código de pedido", nil)
		return ack
	}

	orderID := ack.OrderID
	slot := &escalation{}

	unlock := c.store.Lock(orderID)
	prev, existed := c.store.Get(orderID)
	handle, err := c.scheduler.ScheduleAfter(c.delay, cron.JobOptions{
		Name: "escalation " + orderID,
	}, func(context.Context) error {
		c.escalate(orderID, slot)
		return nil
	})
	if err != nil {
		unlock()
		ack.Action = ActionRejected
		ack.Err = relay.NewError(relay.ErrRelayStopped, "escalation could not be scheduled", err,
			map[string]any{"code": orderID})
		log.Error("order %s: escalation not scheduled: %v", orderID, err)
		return ack
	}
	slot.handleID = handle.ID()

	canceled := existed && prev.Handle != nil && prev.Handle.Cancel()
	now := c.now()
	c.store.Upsert(orderID, &pending.Record{
		Payload:   n.Clone(),
		Handle:    handle,
		CreatedAt: now,
		ExpiresAt: now.Add(c.delay),
	})
	// Stop may have drained the store while this order was being scheduled.
	if c.stopped.Load() {
		c.store.RemoveIfCurrent(orderID, handle.ID())
		handle.Cancel()
		unlock()
		if canceled {
			c.metrics.Escalation(metrics.EscalationCanceled)
		}
		c.metrics.PendingOrders(c.store.Len())
		ack.Action = ActionRejected
		ack.Err = relay.ErrRelayStopped
		log.Warn("notification for order %s rejected: relay stopped while scheduling", orderID)
		return ack
	}
	unlock()

	if canceled {
		c.metrics.Escalation(metrics.EscalationCanceled)
	}
	c.metrics.PendingOrders(c.store.Len())

	ack.Action = ActionScheduled
	if existed {
		ack.Action = ActionRescheduled
	}
	log.Info("order %s awaiting payment, escalation in %s", orderID, c.delay)
	c.journal.Record(journal.CategoryInfo,
		fmt.Sprintf("PIX gerado - aguardando pagamento: %s (timeout em %s)", orderID, c.delay),
		map[string]any{"code": orderID, "rescheduled": existed})
	return ack
}

// escalate is the timer callback. It dispatches only if the record still
// belongs to this escalation.
func (c *Controller) escalate(orderID string, slot *escalation) {
	unlock := c.store.Lock(orderID)
	rec, ok := c.store.RemoveIfCurrent(orderID, slot.handleID)
	unlock()

	if !ok {
		c.metrics.Escalation(metrics.EscalationStale)
		c.logger.Debug("escalation for order %s superseded", orderID)
		return
	}

	c.metrics.Escalation(metrics.EscalationFired)
	c.metrics.PendingOrders(c.store.Len())
	c.logger.WithFields(map[string]any{"code": orderID}).
		Warn("payment timeout reached for order %s after %s", orderID, c.delay)
	c.journal.Record(journal.CategoryTimeout,
		fmt.Sprintf("Timeout de %s atingido para: %s", c.delay, orderID),
		map[string]any{"code": orderID})

	c.dispatcher.Dispatch(context.Background(), rec.Payload, relay.EventPixTimeout)
}

// Pending lists orders awaiting payment, oldest first.
func (c *Controller) Pending() []pending.Pending {
	return c.store.Snapshot(c.now())
}

// PendingCount reports how many orders await payment.
func (c *Controller) PendingCount() int {
	return c.store.Len()
}

// Delay is the grace period before a pending order escalates.
func (c *Controller) Delay() time.Duration {
	return c.delay
}

// Stop rejects further notifications and cancels every pending escalation.
// Pending orders are dropped; nothing is persisted.
func (c *Controller) Stop(_ context.Context) error {
	if !c.stopped.CompareAndSwap(false, true) {
		return nil
	}
	dropped := c.store.Drain()
	c.metrics.PendingOrders(0)
	if len(dropped) > 0 {
		c.logger.Warn("relay stopped with %d pending orders dropped", len(dropped))
	}
	return nil
}
