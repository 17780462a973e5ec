// Package sync runs the background refresh sweep: a sweeper that enqueues
// refresh jobs for connections nearing expiry, and a worker that drains the
// queue and refreshes each connection.
package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	gojob "github.com/goliatone/go-unify/adapters/gojob"
	"github.com/goliatone/go-unify/core"
)

const (
	defaultSweepLead      = 5 * time.Minute
	defaultSweepBatchSize = 50
	defaultRetryDelay     = 30 * time.Second
)

type ConnectionRefresher interface {
	Refresh(ctx context.Context, connectionID string) error
}

type ExpiringConnectionLister interface {
	ListExpiring(ctx context.Context, before time.Time, limit int) ([]core.Connection, error)
}

// RefreshSweeper finds connections whose tokens expire inside the lead window
// and enqueues one refresh job each. IdempotencyKey dedupes repeat sweeps of
// the same connection.
type RefreshSweeper struct {
	Lister    ExpiringConnectionLister
	Enqueuer  core.JobEnqueuer
	Lead      time.Duration
	BatchSize int
	Logger    glog.Logger
	Now       func() time.Time
}

func NewRefreshSweeper(lister ExpiringConnectionLister, enqueuer core.JobEnqueuer) (*RefreshSweeper, error) {
	if lister == nil {
		return nil, fmt.Errorf("sync: connection lister is required")
	}
	if enqueuer == nil {
		return nil, fmt.Errorf("sync: job enqueuer is required")
	}
	return &RefreshSweeper{
		Lister:    lister,
		Enqueuer:  enqueuer,
		Lead:      defaultSweepLead,
		BatchSize: defaultSweepBatchSize,
		Logger:    glog.Ensure(nil),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// SweepOnce enqueues refresh jobs for the current expiry window and returns
// how many were enqueued.
func (s *RefreshSweeper) SweepOnce(ctx context.Context) (int, error) {
	if s == nil || s.Lister == nil || s.Enqueuer == nil {
		return 0, fmt.Errorf("sync: sweeper is not configured")
	}
	cutoff := s.now().Add(s.lead())
	connections, err := s.Lister.ListExpiring(ctx, cutoff, s.batchSize())
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, connection := range connections {
		message := &core.JobExecutionMessage{
			JobID: gojob.JobIDRefreshSweep,
			Parameters: map[string]any{
				"connection_id": connection.ID,
				"provider_id":   connection.ProviderSlug,
			},
			IdempotencyKey: "refresh::" + connection.ID,
		}
		if err := s.Enqueuer.Enqueue(ctx, message); err != nil {
			s.logger().Error("sync: enqueue refresh failed",
				"connection_id", connection.ID,
				"error", err,
			)
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

// Run sweeps on the given interval until the context ends.
func (s *RefreshSweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger().Error("sync: refresh sweep failed", "error", err)
			}
		}
	}
}

func (s *RefreshSweeper) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *RefreshSweeper) lead() time.Duration {
	if s != nil && s.Lead > 0 {
		return s.Lead
	}
	return defaultSweepLead
}

func (s *RefreshSweeper) batchSize() int {
	if s != nil && s.BatchSize > 0 {
		return s.BatchSize
	}
	return defaultSweepBatchSize
}

func (s *RefreshSweeper) logger() glog.Logger {
	if s != nil && s.Logger != nil {
		return s.Logger
	}
	return glog.Ensure(nil)
}

// RefreshWorker drains refresh jobs from the queue. Failed refreshes are
// nacked with a delay so the queue's retry policy decides their fate.
type RefreshWorker struct {
	Dequeuer   core.JobDequeuer
	Refresher  ConnectionRefresher
	RetryDelay time.Duration
	Logger     glog.Logger
}

func NewRefreshWorker(dequeuer core.JobDequeuer, refresher ConnectionRefresher) (*RefreshWorker, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("sync: job dequeuer is required")
	}
	if refresher == nil {
		return nil, fmt.Errorf("sync: connection refresher is required")
	}
	return &RefreshWorker{
		Dequeuer:   dequeuer,
		Refresher:  refresher,
		RetryDelay: defaultRetryDelay,
		Logger:     glog.Ensure(nil),
	}, nil
}

// Run consumes deliveries until the context ends.
func (w *RefreshWorker) Run(ctx context.Context) error {
	if w == nil || w.Dequeuer == nil || w.Refresher == nil {
		return fmt.Errorf("sync: worker is not configured")
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delivery, err := w.Dequeuer.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger().Error("sync: dequeue failed", "error", err)
			continue
		}
		w.HandleDelivery(ctx, delivery)
	}
}

// HandleDelivery refreshes the connection named by one delivery and settles
// it. Malformed messages are dead-lettered instead of requeued.
func (w *RefreshWorker) HandleDelivery(ctx context.Context, delivery core.JobDelivery) {
	if delivery == nil {
		return
	}
	message := delivery.Message()
	connectionID := ""
	if message != nil && message.Parameters != nil {
		connectionID = strings.TrimSpace(fmt.Sprint(message.Parameters["connection_id"]))
		if connectionID == "<nil>" {
			connectionID = ""
		}
	}
	if connectionID == "" {
		_ = delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     "missing connection_id parameter",
		})
		return
	}

	if err := w.Refresher.Refresh(ctx, connectionID); err != nil {
		w.logger().Error("sync: refresh failed",
			"connection_id", connectionID,
			"error", err,
		)
		_ = delivery.Nack(ctx, core.JobNackOptions{
			Requeue: true,
			Delay:   w.retryDelay(),
			Reason:  err.Error(),
		})
		return
	}
	if err := delivery.Ack(ctx); err != nil {
		w.logger().Error("sync: ack failed", "connection_id", connectionID, "error", err)
	}
}

func (w *RefreshWorker) retryDelay() time.Duration {
	if w != nil && w.RetryDelay > 0 {
		return w.RetryDelay
	}
	return defaultRetryDelay
}

func (w *RefreshWorker) logger() glog.Logger {
	if w != nil && w.Logger != nil {
		return w.Logger
	}
	return glog.Ensure(nil)
}
