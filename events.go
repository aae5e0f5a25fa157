package courier

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/couriernet/courier/types"
)

// Event kinds, one per state transition.
const (
	EventProfileUpdated  = "profile-updated"
	EventMessageSent     = "message-sent"
	EventMessageDeleted  = "message-deleted"
	EventMessageReported = "message-reported"
	EventBlocked         = "blocked"
	EventUnblocked       = "unblocked"
	EventFollowed        = "followed"
	EventUnfollowed      = "unfollowed"
	EventFeesWithdrawn   = "fees-withdrawn"
)

// Event is one immutable entry in the audit log. It carries enough
// payload to rebuild the state transition it records, so a persisted
// log can be replayed into an empty core.
//
// IMPORTANT: Timestamp is in NANOSECONDS (time.Now().UnixNano()) for
// precise ordering. Profile and message timestamps elsewhere use
// seconds.
type Event struct {
	ID        string `json:"id"`
	Seq       uint64 `json:"seq"` // 1-based append position
	Timestamp int64  `json:"ts"`  // Unix timestamp in NANOSECONDS
	Kind      string `json:"kind"`

	Actor  types.Address `json:"actor,omitempty"`
	Target types.Address `json:"target,omitempty"`

	MessageID      types.MessageID      `json:"msg,omitempty"`
	ConversationID types.ConversationID `json:"conv,omitempty"`

	// Payloads - at most one is set based on Kind
	Message *MessagePayload `json:"message,omitempty"`
	Profile *ProfilePayload `json:"profile,omitempty"`
	Reason  string          `json:"reason,omitempty"`
	Amount  uint64          `json:"amount,omitempty"`

	// Signature is a base64 Ed25519 signature over ContentString,
	// set when the log has a signer.
	Signature string `json:"sig,omitempty"`
}

// MessagePayload is the message-sent event data.
type MessagePayload struct {
	Content     string `json:"content"`
	MessageType string `json:"type"`
	Fee         uint64 `json:"fee,omitempty"`
}

// ProfilePayload is the profile-updated event data.
type ProfilePayload struct {
	Username string `json:"username"`
	Bio      string `json:"bio"`
	Avatar   string `json:"avatar"`
}

// ContentString returns the canonical string for hashing and signing.
func (e *Event) ContentString() string {
	s := fmt.Sprintf("%d:%d:%s:%s:%s:%d:%d:%s:%d",
		e.Seq, e.Timestamp, e.Kind, e.Actor, e.Target, e.MessageID, e.ConversationID, e.Reason, e.Amount)
	if e.Message != nil {
		s += fmt.Sprintf(":%s:%s:%d", e.Message.Content, e.Message.MessageType, e.Message.Fee)
	}
	if e.Profile != nil {
		s += fmt.Sprintf(":%s:%s:%s", e.Profile.Username, e.Profile.Bio, e.Profile.Avatar)
	}
	return s
}

// ComputeID sets a deterministic content-derived ID.
func (e *Event) ComputeID() {
	hash := sha256.Sum256([]byte(e.ContentString()))
	e.ID = fmt.Sprintf("%x", hash[:16]) // 32 hex chars
}

// EventLog is the append-only audit trail of state transitions. Entries
// are ordered by sequence number (which matches timestamp order, since
// appends happen inside the critical section of the operation they
// record) and are never mutated or removed.
type EventLog struct {
	mu      sync.RWMutex
	events  []Event
	nextSeq uint64
	signer  *Signer
	subs    map[int]chan Event
	nextSub int
}

// NewEventLog creates an empty log. The signer may be nil, in which
// case events carry no signature.
func NewEventLog(signer *Signer) *EventLog {
	return &EventLog{
		nextSeq: 1,
		signer:  signer,
		subs:    make(map[int]chan Event),
	}
}

// Append stamps, seals and stores an event, then fans it out to live
// subscribers. Returns the sealed event.
func (l *EventLog) Append(e Event) Event {
	l.mu.Lock()
	e.Seq = l.nextSeq
	l.nextSeq++
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixNano()
	}
	e.ComputeID()
	if l.signer != nil {
		e.Signature = l.signer.Sign(e.ContentString())
	}
	l.events = append(l.events, e)
	l.fanOut(e)
	l.mu.Unlock()
	return e
}

// Restore appends an already-sealed event verbatim, preserving its
// sequence number, ID and signature. Used when replaying a persisted
// log on boot; future appends continue after the highest restored seq.
func (l *EventLog) Restore(e Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	if e.Seq >= l.nextSeq {
		l.nextSeq = e.Seq + 1
	}
	l.fanOut(e)
	l.mu.Unlock()
}

// fanOut delivers to subscribers without blocking; slow consumers drop
// events rather than stalling the critical section. Callers hold l.mu.
func (l *EventLog) fanOut(e Event) {
	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a channel of future events and a cancel function.
func (l *EventLog) Subscribe(buffer int) (<-chan Event, func()) {
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	ch := make(chan Event, buffer)
	l.subs[id] = ch
	l.mu.Unlock()

	cancel := func() {
		l.mu.Lock()
		if sub, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(sub)
		}
		l.mu.Unlock()
	}
	return ch, cancel
}

// Len returns the number of events in the log.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// List returns a page of events in append order, optionally filtered by
// kind (empty kind matches everything). Out-of-range offsets clamp to
// an empty page.
func (l *EventLog) List(offset, limit int, kind string) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	source := l.events
	if kind != "" {
		source = nil
		for _, e := range l.events {
			if e.Kind == kind {
				source = append(source, e)
			}
		}
	}

	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	if offset >= len(source) {
		return []Event{}
	}
	end := offset + limit
	if end > len(source) {
		end = len(source)
	}

	page := make([]Event, end-offset)
	copy(page, source[offset:end])
	return page
}

// CountsByKind returns how many events of each kind the log holds.
func (l *EventLog) CountsByKind() map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	counts := make(map[string]int)
	for _, e := range l.events {
		counts[e.Kind]++
	}
	return counts
}
