package engine

import (
	"sync"
	"time"
)

// TranslationRecord is the outcome attached to one message within a scope.
// A record with Failed set is the automatic-mode failure sentinel: the
// message is not retried for the rest of the scope lifetime.
type TranslationRecord struct {
	ID             string    `json:"id"`
	MessageID      string    `json:"message_id"`
	OriginalText   string    `json:"original_text"`
	TranslatedText string    `json:"translated_text"`
	ProducedAt     time.Time `json:"produced_at"`
	Failed         bool      `json:"failed,omitempty"`
}

// scopeState is the dedup bookkeeping for one channel. It is created on
// first observation of a scope key, fully replaced on rotation, and never
// merged across scopes. The global translation cache is not part of it.
type scopeState struct {
	scopeID string
	states  map[string]MessageState
	records map[string]TranslationRecord
	// pending holds the extracted text of offered messages so a later
	// manual trigger does not depend on the (by then replaced) snapshot
	// tree.
	pending map[string]string
}

func newScopeState(scopeID string) *scopeState {
	return &scopeState{
		scopeID: scopeID,
		states:  make(map[string]MessageState),
		records: make(map[string]TranslationRecord),
		pending: make(map[string]string),
	}
}

// Tracker detects scope (channel) changes and owns the scope-local state.
// Rotation discards the previous scope's dedup state entirely; re-entering
// a channel re-offers affordances, while translation cost stays amortised
// by the global cache.
type Tracker struct {
	mu    sync.Mutex
	state *scopeState
}

// NewTracker creates a Tracker with no current scope.
func NewTracker() *Tracker {
	return &Tracker{}
}

// CurrentScopeID returns the current scope key, or "" before the first
// check.
func (t *Tracker) CurrentScopeID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == nil {
		return ""
	}
	return t.state.scopeID
}

// CheckAndRotate compares scopeID against the current scope. When it
// differs the old state is discarded and a fresh one is installed; the
// return value reports whether a rotation happened. The first observed
// scope installs state but does not count as a rotation.
func (t *Tracker) CheckAndRotate(scopeID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == nil {
		t.state = newScopeState(scopeID)
		return false
	}
	if t.state.scopeID == scopeID {
		return false
	}
	t.state = newScopeState(scopeID)
	return true
}

// messageState returns the lifecycle state of a message in the current
// scope. Unknown messages are Unseen.
func (t *Tracker) messageState(id string) MessageState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == nil {
		return StateUnseen
	}
	return t.state.states[id]
}

// setMessageState transitions a message, returning false when the
// transition is not legal from the current state (e.g. a second concurrent
// trigger). The scope must match the current one; a stale scope is
// rejected so a rotated-away pass cannot resurrect old state.
func (t *Tracker) setMessageState(scopeID, id string, from []MessageState, to MessageState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == nil || t.state.scopeID != scopeID {
		return false
	}
	cur := t.state.states[id]
	for _, f := range from {
		if cur == f {
			t.state.states[id] = to
			return true
		}
	}
	return false
}

func (t *Tracker) setPending(scopeID, id, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == nil || t.state.scopeID != scopeID {
		return
	}
	t.state.pending[id] = text
}

func (t *Tracker) pendingText(scopeID, id string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == nil || t.state.scopeID != scopeID {
		return "", false
	}
	text, ok := t.state.pending[id]
	return text, ok
}

func (t *Tracker) setRecord(scopeID string, rec TranslationRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == nil || t.state.scopeID != scopeID {
		return
	}
	t.state.records[rec.MessageID] = rec
}

// Record returns the translation record for a message in the current scope.
func (t *Tracker) Record(id string) (TranslationRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == nil {
		return TranslationRecord{}, false
	}
	rec, ok := t.state.records[id]
	return rec, ok
}

// counts returns (offered-or-beyond, records) sizes for stats.
func (t *Tracker) counts() (offered, records int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == nil {
		return 0, 0
	}
	for _, st := range t.state.states {
		if st != StateUnseen {
			offered++
		}
	}
	return offered, len(t.state.records)
}
