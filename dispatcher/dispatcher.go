package dispatcher

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	relay "github.com/grupoevolution/perfect-webhook-system"
	"github.com/grupoevolution/perfect-webhook-system/journal"
	"github.com/grupoevolution/perfect-webhook-system/logging"
	"github.com/grupoevolution/perfect-webhook-system/metrics"
	"github.com/grupoevolution/perfect-webhook-system/runner"
)

// HeaderDispatchID carries the per-dispatch uuid to the downstream.
const HeaderDispatchID = "X-Dispatch-Id"

const drainLimit = 64 << 10

// TargetSource yields the downstream URL at call time.
type TargetSource interface {
	URL() string
}

// Stats are running totals since the dispatcher was created.
type Stats struct {
	Sent     int64 `json:"sent"`
	Failed   int64 `json:"failed"`
	InFlight int64 `json:"in_flight"`
}

// Dispatcher forwards normalized events to the downstream automation endpoint.
// Every call makes at most one HTTP attempt and never returns an error.
type Dispatcher struct {
	target  TargetSource
	client  *http.Client
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker

	logger  logging.Logger
	journal journal.Sink
	metrics metrics.Metrics
	now     func() time.Time

	sent     atomic.Int64
	failed   atomic.Int64
	inFlight atomic.Int64
}

// NewDispatcher creates a dispatcher reading its URL from target.
func NewDispatcher(target TargetSource, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		target:  target,
		client:  http.DefaultClient,
		timeout: DefaultTimeout,
		logger:  logging.Discard(),
		journal: journal.Discard(),
		metrics: metrics.Noop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Dispatch sends n as kind and reports what happened.
func (d *Dispatcher) Dispatch(ctx context.Context, n relay.Notification, kind relay.EventKind) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	start := d.now()
	out := Outcome{
		EventKind:  kind,
		OrderID:    n.OrderID(),
		DispatchID: uuid.NewString(),
	}

	d.inFlight.Add(1)
	out.Err = d.send(ctx, n, &out, start)
	d.inFlight.Add(-1)

	out.Duration = d.now().Sub(start)
	out.Success = out.Err == nil
	d.account(out)
	return out
}

// Stats returns the running totals.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Sent:     d.sent.Load(),
		Failed:   d.failed.Load(),
		InFlight: d.inFlight.Load(),
	}
}

func (d *Dispatcher) send(ctx context.Context, n relay.Notification, out *Outcome, at time.Time) error {
	url := ""
	if d.target != nil {
		url = d.target.URL()
	}
	if url == "" {
		return newError(ErrUnconfigured, "", nil, out)
	}

	body, err := json.Marshal(n.Outbound(out.EventKind, at))
	if err != nil {
		return newError(ErrEncode, "", err, out)
	}

	if d.breaker == nil {
		return d.post(ctx, url, body, out)
	}

	_, err = d.breaker.Execute(func() (interface{}, error) {
		return nil, d.post(ctx, url, body, out)
	})
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return newError(ErrCircuitOpen, "", err, out)
	}
	return err
}

func (d *Dispatcher) post(ctx context.Context, url string, body []byte, out *Outcome) error {
	h := runner.NewHandler(
		runner.WithName("dispatch "+string(out.EventKind)),
		runner.WithTimeout(d.timeout),
		runner.WithErrorHandler(nil),
	)

	return h.Run(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return newError(ErrRequestFailed, "", err, out)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderDispatchID, out.DispatchID)

		out.Attempted = true
		resp, err := d.client.Do(req)
		if err != nil {
			if runner.IsTimeout(err) {
				return newError(ErrTimeout, fmt.Sprintf("downstream did not answer within %s", d.timeout), err, out)
			}
			return newError(ErrRequestFailed, "", err, out)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))

		out.StatusCode = resp.StatusCode
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return newError(ErrRejected, fmt.Sprintf("downstream answered %d", resp.StatusCode), nil, out)
		}
		return nil
	})
}

func (d *Dispatcher) account(out Outcome) {
	d.metrics.DispatchObserved(string(out.EventKind), out.Success, out.Duration)

	data := map[string]any{
		"code":        out.OrderID,
		"event_type":  string(out.EventKind),
		"dispatch_id": out.DispatchID,
		"status":      out.StatusCode,
	}
	log := d.logger.WithFields(data)

	if out.Success {
		d.sent.Add(1)
		log.Info("webhook sent to downstream: order %s type %s status %d", out.OrderID, out.EventKind, out.StatusCode)
		d.journal.Record(journal.CategoryWebhookSent,
			fmt.Sprintf("Webhook enviado: %s (%s)", out.OrderID, out.EventKind), data)
		return
	}

	d.failed.Add(1)
	data["error"] = out.Err.Error()
	data["error_code"] = relay.ErrorCode(out.Err)
	log.Error("webhook dispatch failed: order %s type %s: %v", out.OrderID, out.EventKind, out.Err)
	d.journal.Record(journal.CategoryError,
		fmt.Sprintf("Falha ao enviar webhook: %s (%s)", out.OrderID, out.EventKind), data)
}
