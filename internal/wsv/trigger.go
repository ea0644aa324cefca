package wsv

import (
	"time"

	"github.com/hyperledger/iroha-sub010/internal/core"
	"github.com/hyperledger/iroha-sub010/internal/ids"
)

// RepeatKind tags a Trigger's repeat-count policy (spec.md §4.9 /
// SPEC_FULL.md §10).
type RepeatKind uint8

const (
	RepeatIndefinitely RepeatKind = iota
	RepeatExactly
	RepeatExactlyUntil
)

// Repeats describes how many more times a trigger may fire.
type Repeats struct {
	Kind      RepeatKind
	Remaining uint32    // meaningful when Kind == RepeatExactly
	Until     time.Time // meaningful when Kind == RepeatExactlyUntil
}

// Exhausted reports whether the trigger has no fires left at instant now.
func (r Repeats) Exhausted(now time.Time) bool {
	switch r.Kind {
	case RepeatExactly:
		return r.Remaining == 0
	case RepeatExactlyUntil:
		return now.After(r.Until)
	default:
		return false
	}
}

// TriggerFilterKind selects which of the three trigger families (data, time,
// pipeline) a Trigger belongs to, determining when Sumeragi considers it for
// execution during Apply.
type TriggerFilterKind uint8

const (
	FilterData TriggerFilterKind = iota
	FilterTime
	FilterPipeline
)

// Trigger bundles a filter, an action (the instructions to run when it
// fires) and a repeat policy.
type Trigger struct {
	Id           string
	Filter       TriggerFilterKind
	Owner        ids.AccountId
	Action       []core.Instruction
	Repeats      Repeats
	EverySeconds uint64 // meaningful when Filter == FilterTime
	lastFired    time.Time
}

// RegisterTrigger adds a new trigger.
func (w *WSV) RegisterTrigger(t *Trigger) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.triggers[t.Id]; exists {
		return ErrAlreadyExists
	}
	w.triggers[t.Id] = t
	return nil
}

// Trigger looks up a trigger by id.
func (w *WSV) Trigger(id string) (*Trigger, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, ok := w.triggers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

// dueTimeTriggers returns, in trigger-id order, every time trigger whose
// interval has elapsed as of now and that has fires remaining.
func (w *WSV) dueTimeTriggers(now time.Time) []*Trigger {
	var due []*Trigger
	ids := make([]string, 0, len(w.triggers))
	for id := range w.triggers {
		ids = append(ids, id)
	}
	sortStrings(ids)
	for _, id := range ids {
		t := w.triggers[id]
		if t.Filter != FilterTime || t.Repeats.Exhausted(now) {
			continue
		}
		if t.lastFired.IsZero() || now.Sub(t.lastFired) >= time.Duration(t.EverySeconds)*time.Second {
			due = append(due, t)
		}
	}
	return due
}

func (w *WSV) pipelineTriggers(now time.Time) []*Trigger {
	var out []*Trigger
	ids := make([]string, 0, len(w.triggers))
	for id := range w.triggers {
		ids = append(ids, id)
	}
	sortStrings(ids)
	for _, id := range ids {
		t := w.triggers[id]
		if t.Filter == FilterPipeline && !t.Repeats.Exhausted(now) {
			out = append(out, t)
		}
	}
	return out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// fire applies a trigger's action instructions directly (bypassing the
// queue, per SPEC_FULL.md §11's Open Question decision) and decrements its
// repeat count only on success.
func (w *WSV) fire(t *Trigger, now time.Time) error {
	for _, ins := range t.Action {
		if err := w.applyInstructionInternal(t.Owner, ins, now); err != nil {
			w.emit(Event{Kind: EventTriggerFailed, Height: w.height, Detail: t.Id + ": " + err.Error()})
			return err
		}
	}
	if t.Repeats.Kind == RepeatExactly && t.Repeats.Remaining > 0 {
		t.Repeats.Remaining--
	}
	t.lastFired = now
	w.emit(Event{Kind: EventTriggerExecuted, Height: w.height, Detail: t.Id})
	return nil
}
