// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

package store

import (
	"bytes"
	"sync"

	"github.com/TomPlanche/PassGuard/internal/metrics"
	"github.com/TomPlanche/PassGuard/internal/model"
)

// subscriber holds one Watch channel. ch has room for a single snapshot;
// a newer snapshot replaces one the reader has not taken yet.
type subscriber struct {
	ch     chan []model.RuleProfile
	done   chan struct{}
	closed bool
}

// hub fans committed snapshots out to subscribers.
type hub struct {
	rec metrics.Recorder

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	last   []byte
	closed bool
}

func newHub(rec metrics.Recorder) *hub {
	return &hub{rec: rec, subs: make(map[*subscriber]struct{})}
}

// offer delivers profiles to sub, dropping any snapshot still waiting in the
// buffer. Callers hold h.mu, which makes h the only sender.
func offer(sub *subscriber, profiles []model.RuleProfile) {
	select {
	case <-sub.ch:
	default:
	}
	sub.ch <- model.CloneAll(profiles)
}

// subscribe registers a subscriber and hands it the current snapshot.
func (h *hub) subscribe(data []byte, profiles []model.RuleProfile) *subscriber {
	sub := &subscriber{
		ch:   make(chan []model.RuleProfile, 1),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.done)
		return sub
	}
	if data != nil {
		h.last = data
	}
	h.subs[sub] = struct{}{}
	h.rec.AddSubscribers(1)
	offer(sub, profiles)
	return sub
}

// unsubscribe removes sub and closes its channel.
func (h *hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		h.rec.AddSubscribers(-1)
	}
	close(sub.ch)
}

// publish sends the snapshot to every subscriber unless it encodes to the
// same bytes as the previous one. It reports whether anything was sent.
func (h *hub) publish(data []byte, profiles []model.RuleProfile) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || (h.last != nil && bytes.Equal(h.last, data)) {
		return false
	}
	h.last = data
	for sub := range h.subs {
		offer(sub, profiles)
	}
	return true
}

// close ends every subscription. Their Watch goroutines close the channels.
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		close(sub.done)
	}
}
