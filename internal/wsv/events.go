package wsv

// EventKind tags the shape of an Event's payload.
type EventKind uint8

const (
	EventPipelineTransaction EventKind = iota
	EventPipelineBlock
	EventDataDomain
	EventDataAccount
	EventDataAsset
	EventTriggerExecuted
	EventTriggerFailed
)

// PipelineStatus follows original_source/data_model/src/events/pipeline.rs's
// Validating -> Rejected/Committed progression; that file's Accepted status
// has no counterpart here.
type PipelineStatus uint8

const (
	StatusValidating PipelineStatus = iota
	StatusRejected
	StatusCommitted
)

// Event is a single notification fired by Apply or by trigger execution,
// consumed by internal/api's websocket feed.
type Event struct {
	Kind      EventKind
	Status    PipelineStatus
	Height    uint64
	Detail    string
}

func (w *WSV) emit(e Event) {
	w.events = append(w.events, e)
}

// DrainEvents returns and clears the events accumulated since the last
// DrainEvents call (or since WSV creation). Apply's caller is expected to
// drain after every call so the feed stays bounded.
func (w *WSV) DrainEvents() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.events
	w.events = nil
	return out
}
