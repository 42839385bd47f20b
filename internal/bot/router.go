// Package bot runs the long-poll update loop and fans updates out to
// the command and callback handlers.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/itamhq/teambot/pkg/errors"
	"github.com/itamhq/teambot/pkg/logger"
	"github.com/itamhq/teambot/pkg/telegram"
)

const pollErrorDelay = 3 * time.Second

type updateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
}

type messageHandler interface {
	Handle(ctx context.Context, msg *telegram.Message) error
}

type callbackHandler interface {
	Resolve(ctx context.Context, q *telegram.CallbackQuery) error
}

// Router pulls updates from the Bot API and handles each on its own
// goroutine. Updates for different users are independent, so ordering
// across goroutines does not matter; Run does not return until every
// in-flight handler has finished.
type Router struct {
	source      updateSource
	messages    messageHandler
	callbacks   callbackHandler
	logg        *logger.Logger
	pollTimeout time.Duration

	// sleep is stubbed in tests.
	sleep func(ctx context.Context, d time.Duration)
}

// NewRouter wires the update loop.
func NewRouter(source updateSource, messages messageHandler, callbacks callbackHandler, pollTimeout time.Duration, logg *logger.Logger) (*Router, error) {
	if source == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "update source required")
	}
	if messages == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message handler required")
	}
	if callbacks == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback handler required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger required")
	}
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	return &Router{
		source:      source,
		messages:    messages,
		callbacks:   callbacks,
		logg:        logg,
		pollTimeout: pollTimeout,
		sleep:       sleepCtx,
	}, nil
}

// Run polls until ctx is cancelled.
func (r *Router) Run(ctx context.Context) {
	var wg sync.WaitGroup
	var offset int64

	for ctx.Err() == nil {
		updates, err := r.source.GetUpdates(ctx, offset, r.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			r.logg.Warn(ctx, fmt.Sprintf("polling updates failed: %v", err))
			r.sleep(ctx, pollErrorDelay)
			continue
		}

		for i := range updates {
			update := updates[i]
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				r.handle(ctx, update)
			}()
		}
	}

	wg.Wait()
}

func (r *Router) handle(ctx context.Context, update telegram.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logg.Error(ctx, "update handler panicked", fmt.Errorf("panic: %v", rec))
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		if err := r.callbacks.Resolve(ctx, update.CallbackQuery); err != nil {
			r.logg.Error(ctx, "resolving callback failed", err)
		}
	case update.Message != nil:
		if err := r.messages.Handle(ctx, update.Message); err != nil {
			r.logg.Error(ctx, "handling message failed", err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
