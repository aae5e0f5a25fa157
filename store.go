package courier

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/couriernet/courier/types"
)

// MaxContentLen is the message content limit in characters. Content is
// opaque to the store; encryption (if any) happens client-side before
// it gets here.
const MaxContentLen = 1000

// Message is one immutable-ish message record. Lifecycle is append plus
// one-way flags: Deleted and Reported can each be set exactly once and
// never cleared. Records are never physically removed.
type Message struct {
	ID          types.MessageID `json:"id"`
	Sender      types.Address   `json:"sender"`
	Recipient   types.Address   `json:"recipient"`
	Content     string          `json:"content"`
	Timestamp   int64           `json:"timestamp"` // Unix seconds
	MessageType string          `json:"message_type"`
	Deleted     bool            `json:"deleted"`
	Reported    bool            `json:"reported"`
}

// MessageStore owns message records and the conversation index. The
// two share one lock on purpose: allocating a message ID and touching
// the pair's conversation is the single critical section of the
// system, and readers must never see one without the other.
type MessageStore struct {
	mu        sync.RWMutex
	messages  []*Message // index i holds message ID i+1
	byUser    map[types.Address][]types.MessageID
	reporters map[types.MessageID][]types.Address
	convs     *conversationIndex

	profiles *ProfileRegistry
	blocks   *BlockGraph
	vault    *FeeVault
	events   *EventLog
	fee      uint64 // fixed per-message fee, checked only when feePaid > 0
}

// NewMessageStore wires the store to its collaborators. The profile
// registry, block graph, vault and event log keep their own locks;
// the store only ever acquires them while holding its own, never the
// other way around.
func NewMessageStore(profiles *ProfileRegistry, blocks *BlockGraph, vault *FeeVault, events *EventLog, fee uint64) *MessageStore {
	return &MessageStore{
		byUser:    make(map[types.Address][]types.MessageID),
		reporters: make(map[types.MessageID][]types.Address),
		convs:     newConversationIndex(),
		profiles:  profiles,
		blocks:    blocks,
		vault:     vault,
		events:    events,
		fee:       fee,
	}
}

// Send validates and records a message, returning its ID. Precondition
// order is part of the contract - callers depend on which error
// surfaces first:
//
//  1. sender has an active profile
//  2. content length in (0, MaxContentLen] characters
//  3. recipient is not the sender and not the zero address
//  4. recipient has an active profile
//  5. neither side blocks the other
//  6. feePaid, when positive, covers the configured fee
//
// On success the message record, both participants' ID lists, the
// conversation, the sender's lastSeen, the vault credit and the
// MessageSent event all land inside one critical section.
func (s *MessageStore) Send(sender, recipient types.Address, content, messageType string, feePaid uint64) (types.MessageID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.profiles.IsActive(sender) {
		return 0, fmt.Errorf("sender %s: %w", sender, ErrNotActive)
	}
	length := utf8.RuneCountInString(content)
	if length == 0 {
		return 0, fmt.Errorf("empty content: %w", ErrValidation)
	}
	if length > MaxContentLen {
		return 0, fmt.Errorf("content exceeds %d characters: %w", MaxContentLen, ErrValidation)
	}
	if recipient == sender {
		return 0, fmt.Errorf("cannot message yourself: %w", ErrValidation)
	}
	if recipient.IsZero() {
		return 0, fmt.Errorf("zero recipient: %w", ErrValidation)
	}
	if !s.profiles.IsActive(recipient) {
		return 0, fmt.Errorf("recipient %s: %w", recipient, ErrNotActive)
	}
	if s.blocks.IsBlockedEitherWay(sender, recipient) {
		return 0, fmt.Errorf("delivery blocked between %s and %s: %w", sender, recipient, ErrForbidden)
	}
	if feePaid > 0 && feePaid < s.fee {
		return 0, fmt.Errorf("fee %d below required %d: %w", feePaid, s.fee, ErrValidation)
	}

	now := time.Now().Unix()
	id := s.recordMessage(sender, recipient, content, messageType, now)
	convID := s.convs.touch(sender, recipient, id, now)
	s.profiles.TouchLastSeen(sender, now)
	if feePaid > 0 {
		s.vault.Credit(feePaid)
	}

	s.events.Append(Event{
		Kind:           EventMessageSent,
		Actor:          sender,
		Target:         recipient,
		MessageID:      id,
		ConversationID: convID,
		Message:        &MessagePayload{Content: content, MessageType: messageType, Fee: feePaid},
	})

	logrus.Debugf("📨 message %d: %s → %s (conversation %d)", id, sender, recipient, convID)
	return id, nil
}

// recordMessage allocates the next ID and stores the record. Callers
// hold s.mu.
func (s *MessageStore) recordMessage(sender, recipient types.Address, content, messageType string, ts int64) types.MessageID {
	id := types.MessageID(len(s.messages) + 1)
	s.messages = append(s.messages, &Message{
		ID:          id,
		Sender:      sender,
		Recipient:   recipient,
		Content:     content,
		Timestamp:   ts,
		MessageType: messageType,
	})
	s.byUser[sender] = append(s.byUser[sender], id)
	s.byUser[recipient] = append(s.byUser[recipient], id)
	return id
}

// lookupLocked resolves an ID to its record. Callers hold s.mu.
func (s *MessageStore) lookupLocked(id types.MessageID) (*Message, error) {
	if id < 1 || int(id) > len(s.messages) {
		return nil, fmt.Errorf("message %d: %w", id, ErrNotFound)
	}
	return s.messages[id-1], nil
}

// Delete marks a message deleted. Only the sender may delete, and only
// once; the record stays retrievable by ID afterwards.
func (s *MessageStore) Delete(id types.MessageID, requester types.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, err := s.lookupLocked(id)
	if err != nil {
		return err
	}
	if msg.Sender != requester {
		return fmt.Errorf("%s is not the sender of message %d: %w", requester, id, ErrForbidden)
	}
	if msg.Deleted {
		return fmt.Errorf("message %d: %w", id, ErrAlreadyDeleted)
	}
	msg.Deleted = true

	s.events.Append(Event{Kind: EventMessageDeleted, Actor: requester, MessageID: id})
	logrus.Debugf("🗑️ message %d deleted by %s", id, requester)
	return nil
}

// Report flags a message for moderation. Only a participant may
// report, and the flag is one-shot: once set, further reports fail
// even from the other participant.
func (s *MessageStore) Report(id types.MessageID, reporter types.Address, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, err := s.lookupLocked(id)
	if err != nil {
		return err
	}
	if reporter != msg.Sender && reporter != msg.Recipient {
		return fmt.Errorf("%s is not a participant of message %d: %w", reporter, id, ErrForbidden)
	}
	if msg.Reported {
		return fmt.Errorf("message %d: %w", id, ErrAlreadyReported)
	}
	msg.Reported = true
	s.reporters[id] = append(s.reporters[id], reporter)

	s.events.Append(Event{Kind: EventMessageReported, Actor: reporter, MessageID: id, Reason: reason})
	logrus.Debugf("🚩 message %d reported by %s: %s", id, reporter, reason)
	return nil
}

// Get returns the full record regardless of deleted/reported state; no
// redaction happens at this layer.
func (s *MessageStore) Get(id types.MessageID) (Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, err := s.lookupLocked(id)
	if err != nil {
		return Message{}, err
	}
	return *msg, nil
}

// ListForUser returns a page of the user's message IDs in insertion
// order. Out-of-range offsets and limits clamp; this never fails.
func (s *MessageStore) ListForUser(addr types.Address, offset, limit int) []types.MessageID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pageIDs(s.byUser[addr], offset, limit)
}

// ListConversation returns a page of message IDs exchanged between a
// and b, in insertion order. Symmetric in its arguments.
func (s *MessageStore) ListConversation(a, b types.Address, offset, limit int) []types.MessageID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []types.MessageID
	for _, id := range s.byUser[a] {
		msg := s.messages[id-1]
		if (msg.Sender == a && msg.Recipient == b) || (msg.Sender == b && msg.Recipient == a) {
			ids = append(ids, id)
		}
	}
	return pageIDs(ids, offset, limit)
}

// pageIDs clamps offset/limit to the slice and copies the window.
func pageIDs(ids []types.MessageID, offset, limit int) []types.MessageID {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	if offset >= len(ids) {
		return []types.MessageID{}
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	page := make([]types.MessageID, end-offset)
	copy(page, ids[offset:end])
	return page
}

// LookupConversation returns the stable conversation ID for the pair.
func (s *MessageStore) LookupConversation(a, b types.Address) (types.ConversationID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.convs.lookup(a, b)
}

// GetConversation returns the conversation record by ID.
func (s *MessageStore) GetConversation(id types.ConversationID) (Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.convs.get(id)
	if !exists {
		return Conversation{}, fmt.Errorf("conversation %d: %w", id, ErrNotFound)
	}
	return c, nil
}

// ConversationsForUser returns the user's conversation IDs in creation
// order.
func (s *MessageStore) ConversationsForUser(addr types.Address) []types.ConversationID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.convs.forUser(addr)
}

// RecentConversations returns up to n conversation records, newest
// first.
func (s *MessageStore) RecentConversations(n int) []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.convs.count()
	if n > total {
		n = total
	}
	recent := make([]Conversation, 0, n)
	for id := types.ConversationID(total); id >= 1 && len(recent) < n; id-- {
		if c, exists := s.convs.get(id); exists {
			recent = append(recent, c)
		}
	}
	return recent
}

// ReportersFor returns the addresses that reported a message. With the
// one-shot reported flag this holds at most one entry today; it stays
// a list so the ledger shape survives a future multi-reporter design.
func (s *MessageStore) ReportersFor(id types.MessageID) []types.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reporters := make([]types.Address, len(s.reporters[id]))
	copy(reporters, s.reporters[id])
	return reporters
}

// TotalCount returns the total number of messages ever recorded,
// deleted ones included.
func (s *MessageStore) TotalCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// CountForUser returns how many messages the user sent or received.
func (s *MessageStore) CountForUser(addr types.Address) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUser[addr])
}

// ConversationCount returns the number of conversations.
func (s *MessageStore) ConversationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.convs.count()
}

// ReportCount returns the number of reported messages.
func (s *MessageStore) ReportCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reporters)
}

// --- Event replay ---
//
// The replay helpers rebuild state from persisted events without
// validation and without emitting new events. They trust the log: it
// was written by a store that already enforced every precondition.

func (s *MessageStore) replaySent(sender, recipient types.Address, content, messageType string, feePaid uint64, ts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.recordMessage(sender, recipient, content, messageType, ts)
	s.convs.touch(sender, recipient, id, ts)
	s.profiles.TouchLastSeen(sender, ts)
	if feePaid > 0 {
		s.vault.Credit(feePaid)
	}
}

func (s *MessageStore) replayDeleted(id types.MessageID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg, err := s.lookupLocked(id); err == nil {
		msg.Deleted = true
	}
}

func (s *MessageStore) replayReported(id types.MessageID, reporter types.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg, err := s.lookupLocked(id); err == nil && !msg.Reported {
		msg.Reported = true
		s.reporters[id] = append(s.reporters[id], reporter)
	}
}
