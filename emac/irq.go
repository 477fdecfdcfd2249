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

package emac

import "context"

// IRQController delivers the firmware's "host queues have work" signal.
// Implementations wrap whatever event source the platform provides.
type IRQController interface {
	// Wait blocks until the firmware raises the receive event or the
	// context is done. A spurious wakeup is allowed; the caller treats
	// empty queues as a no-op.
	Wait(ctx context.Context) error
}

// Kicker is a channel backed IRQController for in-process event sources.
// A Kick while a previous one is still pending coalesces with it.
type Kicker struct {
	ch chan struct{}
}

// NewKicker returns a ready Kicker.
func NewKicker() *Kicker {
	return &Kicker{ch: make(chan struct{}, 1)}
}

// Kick signals pending host work. Never blocks.
func (k *Kicker) Kick() {
	select {
	case k.ch <- struct{}{}:
	default:
	}
}

// Wait implements IRQController.
func (k *Kicker) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-k.ch:
		return nil
	}
}
