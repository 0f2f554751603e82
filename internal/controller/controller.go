// Package controller owns the conversation state machine. It sequences user
// input into dispatcher calls, appends both sides of each exchange to the
// history store, and rejects submissions while an exchange is in flight.
package controller

import (
	"context"
	"strings"
	"sync"

	"github.com/qmuntal/stateless"

	"github.com/0DidUStudy/ragchat/internal/history"
	"github.com/0DidUStudy/ragchat/internal/identity"
	"github.com/0DidUStudy/ragchat/internal/logger"
)

// FSM States
type FSMState stateless.State

var (
	StateIdle    FSMState = "Idle"
	StateSending FSMState = "Sending"
)

// FSM Triggers
type FSMTrigger stateless.Trigger

var (
	TriggerSubmit    FSMTrigger = "Submit"
	TriggerCompleted FSMTrigger = "Completed"
	TriggerReset     FSMTrigger = "Reset"
)

// Dispatcher is the remote exchange the controller sequences. It must resolve
// every failure internally and always return a valid assistant message.
type Dispatcher interface {
	Send(ctx context.Context, question string, id identity.Identity) history.Message
}

// Controller drives the conversation. All state transitions happen under one
// mutex; the dispatcher call is the only point where the lock is released
// while work is outstanding, so at most one exchange is in flight at a time.
type Controller struct {
	mu    sync.Mutex
	fsm   *stateless.StateMachine
	msgs  []history.Message
	store *history.Store
	disp  Dispatcher
	id    identity.Identity
	epoch uint64
	draft string

	onChange func()
}

// New builds a controller seeded from the history store: persisted history
// when present, otherwise the canned greeting.
func New(store *history.Store, disp Dispatcher, id identity.Identity) *Controller {
	c := &Controller{
		store: store,
		disp:  disp,
		id:    id,
		msgs:  store.Load(),
	}

	fsm := stateless.NewStateMachine(StateIdle)
	fsm.Configure(StateIdle).
		Permit(TriggerSubmit, StateSending).
		PermitReentry(TriggerReset)
	fsm.Configure(StateSending).
		Permit(TriggerCompleted, StateIdle).
		PermitReentry(TriggerReset)
	c.fsm = fsm

	return c
}

// SetOnChange registers a hook invoked after every state change. The
// presentation layer re-renders from it.
func (c *Controller) SetOnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Submit runs one full exchange: append the user message, persist, perform
// the dispatch, append the assistant reply, persist. It blocks until the
// controller is Idle again and reports whether the submission was accepted.
// Empty or whitespace-only input, or a submission while another exchange is
// in flight, is a no-op returning false.
func (c *Controller) Submit(ctx context.Context, raw string) bool {
	text := strings.TrimSpace(raw)
	if text == "" {
		return false
	}

	c.mu.Lock()
	if c.fsm.MustState() != StateIdle {
		c.mu.Unlock()
		return false
	}
	c.msgs = append(c.msgs, history.NewUserMessage(text))
	c.store.Save(c.msgs)
	c.fire(TriggerSubmit)
	epoch := c.epoch
	id := c.id
	c.mu.Unlock()
	c.notify()

	reply := c.disp.Send(ctx, text, id)

	c.mu.Lock()
	if c.epoch == epoch {
		c.msgs = append(c.msgs, reply)
		c.store.Save(c.msgs)
	} else {
		logger.L.Info("reply arrived after reset; discarded")
	}
	c.fire(TriggerCompleted)
	c.mu.Unlock()
	c.notify()
	return true
}

// Reset restores the conversation to the canned greeting and clears the
// durable history. A dispatch still in flight is allowed to complete, but its
// reply is discarded rather than appended to the fresh conversation.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.epoch++
	c.msgs = []history.Message{history.Greeting()}
	c.store.Clear()
	c.fire(TriggerReset)
	c.mu.Unlock()
	c.notify()
}

// Pending reports whether an exchange is in flight.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fsm.MustState() == StateSending
}

// Messages returns a copy of the conversation in chronological order.
func (c *Controller) Messages() []history.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]history.Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// UseSuggested stages text as the pending input without submitting it.
func (c *Controller) UseSuggested(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

// TakeDraft returns and clears the staged input.
func (c *Controller) TakeDraft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.draft
	c.draft = ""
	return d
}

// UpdateIdentity replaces the identifiers attached to subsequent queries.
func (c *Controller) UpdateIdentity(id identity.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
}

func (c *Controller) fire(t FSMTrigger) {
	if err := c.fsm.Fire(t); err != nil {
		logger.L.Warn("fsm fire error", "trigger", t, "error", err)
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
