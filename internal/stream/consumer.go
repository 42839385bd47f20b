// Package stream runs the durable consumer loop over the notification
// log. Delivery is at-least-once per consumer group; the loop owns the
// group cursor and is the process's only long-lived background task.
package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/itamhq/teambot/internal/notify"
	"github.com/itamhq/teambot/pkg/config"
	pkgerrors "github.com/itamhq/teambot/pkg/errors"
	"github.com/itamhq/teambot/pkg/logger"
	"github.com/itamhq/teambot/pkg/metrics"
	"github.com/itamhq/teambot/pkg/redis"
)

// payloadField is the stream entry field carrying the notification JSON.
const payloadField = "data"

type streamClient interface {
	ReadGroup(ctx context.Context, stream, group, consumer string, count int64) ([]redis.Entry, error)
	CreateGroup(ctx context.Context, stream, group string) error
	Ack(ctx context.Context, stream, group string, ids ...string) error
}

type dispatcher interface {
	Dispatch(ctx context.Context, n *notify.Notification) error
}

type state int

const (
	stateReading state = iota
	stateRecovering
	stateBackoff
)

// Consumer reads the notification stream on behalf of its consumer
// group and hands each entry to the dispatcher. Entries are
// acknowledged after every processing attempt, success or not: the
// cursor always moves forward, poison entries are logged and dropped.
type Consumer struct {
	client  streamClient
	disp    dispatcher
	cfg     config.StreamConfig
	logg    *logger.Logger
	metrics *metrics.PipelineMetrics

	sleep func(ctx context.Context, d time.Duration)
}

// NewConsumer wires the consumer loop.
func NewConsumer(client streamClient, disp dispatcher, cfg config.StreamConfig, logg *logger.Logger, m *metrics.PipelineMetrics) (*Consumer, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stream client required")
	}
	if disp == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispatcher required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &Consumer{
		client:  client,
		disp:    disp,
		cfg:     cfg,
		logg:    logg,
		metrics: m,
		sleep:   sleepCtx,
	}, nil
}

// Run drives the loop until the context is canceled. Transient
// infrastructure failures are absorbed by the recovering and backoff
// states; nothing short of cancellation terminates the loop.
func (c *Consumer) Run(ctx context.Context) error {
	ctx = c.logg.WithFields(ctx, map[string]any{
		"stream":   c.cfg.Name,
		"group":    c.cfg.Group,
		"consumer": c.cfg.Consumer,
	})
	c.logg.Info(ctx, "stream consumer starting")

	// Bootstrap is best-effort: the stream may not exist until the
	// first producer write, in which case reads recover later.
	if err := c.client.CreateGroup(ctx, c.cfg.Name, c.cfg.Group); err != nil {
		c.logg.Info(ctx, "consumer group not created yet, will retry when stream exists")
	}

	current := stateReading
	for {
		if err := ctx.Err(); err != nil {
			c.logg.Info(ctx, "stream consumer stopping")
			return err
		}
		switch current {
		case stateReading:
			current = c.readOnce(ctx)
		case stateRecovering:
			current = c.recoverGroup(ctx)
		case stateBackoff:
			c.sleep(ctx, c.cfg.BackoffDelay)
			current = stateReading
		}
	}
}

func (c *Consumer) readOnce(ctx context.Context) state {
	entries, err := c.client.ReadGroup(ctx, c.cfg.Name, c.cfg.Group, c.cfg.Consumer, int64(c.cfg.BatchSize))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return stateReading
		}
		if errors.Is(err, redis.ErrNoGroup) {
			return stateRecovering
		}
		c.logg.Error(ctx, "stream read failed", err)
		return stateBackoff
	}

	for _, entry := range entries {
		c.handleEntry(ctx, entry)
		if err := c.client.Ack(ctx, c.cfg.Name, c.cfg.Group, entry.ID); err != nil {
			c.logg.Error(c.logg.WithEntryID(ctx, entry.ID), "ack failed", err)
		}
	}

	c.sleep(ctx, c.cfg.IdleDelay)
	return stateReading
}

func (c *Consumer) recoverGroup(ctx context.Context) state {
	if err := c.client.CreateGroup(ctx, c.cfg.Name, c.cfg.Group); err != nil {
		c.logg.Debug(ctx, "stream does not exist yet, waiting for first notification")
	} else {
		c.logg.Info(ctx, "consumer group ready")
	}
	c.sleep(ctx, c.cfg.RecoverDelay)
	return stateReading
}

// handleEntry processes one entry. It never lets a failure (or panic)
// escape: the entry will be acknowledged either way.
func (c *Consumer) handleEntry(ctx context.Context, entry redis.Entry) {
	ctx = c.logg.WithEntryID(ctx, entry.ID)
	defer func() {
		if r := recover(); r != nil {
			c.logg.Error(ctx, "entry handler panicked", fmt.Errorf("%v", r))
			c.metrics.IncProcessed("panic")
		}
	}()

	payload, ok := entry.Values[payloadField]
	if !ok {
		c.logg.Warn(ctx, "entry has no data field, dropping")
		c.metrics.IncDropped("no_payload")
		c.metrics.IncProcessed("dropped")
		return
	}

	notification, err := notify.Parse(payload)
	if err != nil {
		c.logg.Error(ctx, "unparseable notification payload, dropping", err)
		c.metrics.IncDropped("poison")
		c.metrics.IncProcessed("dropped")
		return
	}

	if err := c.disp.Dispatch(ctx, notification); err != nil {
		c.logg.Error(ctx, "dispatch failed, entry will still be acknowledged", err)
		c.metrics.IncProcessed("failed")
		return
	}
	c.metrics.IncProcessed("delivered")
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
