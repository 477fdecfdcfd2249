// Copyright 2023 The prunet Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package periodic runs a task at a fixed interval with a per-run timeout.
package periodic

import (
	"context"
	"time"

	"github.com/prunet/prunet/pkg/log"
)

// Ticker paces the task runs.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type defaultTicker struct {
	*time.Ticker
}

func (t *defaultTicker) Chan() <-chan time.Time {
	return t.C
}

// NewTicker returns a Ticker backed by time.Ticker.
func NewTicker(d time.Duration) Ticker {
	return &defaultTicker{Ticker: time.NewTicker(d)}
}

// Task is the unit of work that is run periodically.
type Task interface {
	// Run executes the task once. The context carries the per-run
	// deadline.
	Run(context.Context)
	// Name identifies the task in logs.
	Name() string
}

// Runner periodically executes a task. Use Start to create one.
type Runner struct {
	task         Task
	ticker       Ticker
	timeout      time.Duration
	stop         chan struct{}
	loopFinished chan struct{}
	ctx          context.Context
	cancelF      context.CancelFunc
	trigger      chan struct{}
}

// Start runs the task periodically, spaced by period, killing any run
// that exceeds timeout. The first run happens after the first tick.
func Start(task Task, period, timeout time.Duration) *Runner {
	return StartWithTicker(task, NewTicker(period), timeout)
}

// StartWithTicker is Start with a caller supplied Ticker.
func StartWithTicker(task Task, ticker Ticker, timeout time.Duration) *Runner {
	ctx, cancelF := context.WithCancel(context.Background())
	logger := log.Root().New("debug_id", task.Name())
	ctx = log.CtxWith(ctx, logger)
	r := &Runner{
		task:         task,
		ticker:       ticker,
		timeout:      timeout,
		stop:         make(chan struct{}),
		loopFinished: make(chan struct{}),
		ctx:          ctx,
		cancelF:      cancelF,
		trigger:      make(chan struct{}),
	}
	go func() {
		defer log.HandlePanic()
		r.runLoop()
	}()
	return r
}

// Stop stops any future runs and waits for the current run to finish.
func (r *Runner) Stop() {
	r.ticker.Stop()
	close(r.stop)
	<-r.loopFinished
}

// Kill is like Stop except it also cancels the current run.
func (r *Runner) Kill() {
	if r == nil {
		return
	}
	r.ticker.Stop()
	r.cancelF()
	close(r.stop)
	<-r.loopFinished
}

// TriggerRun runs the task now, unless the runner is stopped. It blocks
// until an in progress run finishes.
func (r *Runner) TriggerRun() {
	select {
	case <-r.stop:
	case r.trigger <- struct{}{}:
	}
}

func (r *Runner) runLoop() {
	defer close(r.loopFinished)
	for {
		select {
		case <-r.stop:
			return
		case <-r.ctx.Done():
			return
		case <-r.ticker.Chan():
			r.onTick()
		case <-r.trigger:
			r.onTick()
		}
	}
}

func (r *Runner) onTick() {
	select {
	case <-r.ctx.Done():
	default:
		ctx, cancelF := context.WithTimeout(r.ctx, r.timeout)
		defer cancelF()
		r.task.Run(ctx)
	}
}
