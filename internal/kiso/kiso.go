// Package kiso is the single-owner actor holding the node's live-updatable
// configuration subset (today: log level). It is grounded on
// original_source/core/src/kiso.rs's mpsc-inbox-plus-watch-channel shape,
// translated into a goroutine owning an inbox channel of request/response
// messages and a set of lossy, buffer-one subscriber channels standing in
// for Rust's tokio::sync::watch (spec.md §4.7: "subscriber reads the latest
// value and misses intermediate values if it lags").
package kiso

import (
	"context"
	"errors"
)

// ErrClosed is returned by Handle methods once the actor's Run loop has
// exited (its context was cancelled).
var ErrClosed = errors.New("kiso: actor closed")

// ConfigDTO is the live-updatable configuration subset exposed over the
// actor. Only LogLevel is dynamic today, matching the original's
// single-field ConfigurationDTO; new dynamic fields would be added here.
type ConfigDTO struct {
	LogLevel string
}

type getSnapshotMsg struct {
	reply chan ConfigDTO
}

type updateMsg struct {
	dto   ConfigDTO
	reply chan struct{}
}

type subscribeMsg struct {
	reply chan (<-chan string)
}

// Actor owns the configuration state and serializes every read/write/
// subscribe through its inbox; nothing outside Run ever touches state or
// subscribers directly.
type Actor struct {
	inbox       chan any
	state       ConfigDTO
	subscribers []chan string
	doneSignal  chan struct{}
}

// Handle is the client-facing front of an Actor: every method sends a
// request onto the actor's inbox and waits for its response, so callers
// never need their own synchronization.
type Handle struct {
	inbox chan<- any
	done  <-chan struct{}
}

// New spawns the actor's initial state and returns a Handle; callers must
// run actor.Run(ctx) on a goroutine before using the handle.
func New(initial ConfigDTO) (*Actor, *Handle) {
	done := make(chan struct{})
	a := &Actor{inbox: make(chan any, 32), state: initial, doneSignal: done}
	h := &Handle{inbox: a.inbox, done: done}
	return a, h
}

// GetSnapshot fetches the current ConfigDTO.
func (h *Handle) GetSnapshot(ctx context.Context) (ConfigDTO, error) {
	reply := make(chan ConfigDTO, 1)
	if err := h.send(ctx, getSnapshotMsg{reply: reply}); err != nil {
		return ConfigDTO{}, err
	}
	select {
	case dto := <-reply:
		return dto, nil
	case <-h.done:
		return ConfigDTO{}, ErrClosed
	case <-ctx.Done():
		return ConfigDTO{}, ctx.Err()
	}
}

// Update applies dto and notifies subscribers, fire-and-forget in the sense
// that the actor's own application of the update is what this call waits
// for, not any downstream effect (original_source's "completion of this
// task doesn't mean updates are applied" caveat doesn't apply here, since
// the Go actor applies the update synchronously within handle()).
func (h *Handle) Update(ctx context.Context, dto ConfigDTO) error {
	reply := make(chan struct{}, 1)
	if err := h.send(ctx, updateMsg{dto: dto, reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubscribeLogLevel returns a channel that receives the log level on every
// Update, with a buffer of one: a subscriber that is slow to read only ever
// sees the most recent value, never a backlog.
func (h *Handle) SubscribeLogLevel(ctx context.Context) (<-chan string, error) {
	reply := make(chan (<-chan string), 1)
	if err := h.send(ctx, subscribeMsg{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case ch := <-reply:
		return ch, nil
	case <-h.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Handle) send(ctx context.Context, msg any) error {
	select {
	case h.inbox <- msg:
		return nil
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes the inbox until ctx is cancelled, then closes every
// subscriber channel and signals Handle callers that the actor is gone.
func (a *Actor) Run(ctx context.Context) {
	defer func() {
		for _, ch := range a.subscribers {
			close(ch)
		}
		close(a.doneSignal)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-a.inbox:
			a.handle(msg)
		}
	}
}

func (a *Actor) handle(msg any) {
	switch m := msg.(type) {
	case getSnapshotMsg:
		m.reply <- a.state
	case updateMsg:
		a.state = m.dto
		a.notify(m.dto.LogLevel)
		m.reply <- struct{}{}
	case subscribeMsg:
		ch := make(chan string, 1)
		a.subscribers = append(a.subscribers, ch)
		m.reply <- ch
	}
}

// notify pushes level to every subscriber without blocking: a channel
// already holding an unread value has its stale value dropped first, so the
// subscriber's next read always returns the newest level, never a queue.
func (a *Actor) notify(level string) {
	for _, ch := range a.subscribers {
		select {
		case ch <- level:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- level:
			default:
			}
		}
	}
}
