package courier

import (
	"github.com/couriernet/courier/types"
)

// Conversation is the implicit thread between an unordered pair of
// participants. It carries only the latest-message pointer, not the
// full history; history is derived from the message store.
type Conversation struct {
	ID            types.ConversationID `json:"id"`
	ParticipantA  types.Address        `json:"participant_a"`
	ParticipantB  types.Address        `json:"participant_b"`
	LastMessageID types.MessageID      `json:"last_message_id"`
	CreatedAt     int64                `json:"created_at"` // Unix seconds
	Active        bool                 `json:"active"`
}

// pairKey returns the canonical key for an unordered participant pair,
// so lookup(a,b) and lookup(b,a) hit the same entry.
func pairKey(a, b types.Address) string {
	if b < a {
		a, b = b, a
	}
	return a.String() + "|" + b.String()
}

// conversationIndex caches a stable conversation ID per unordered
// participant pair. Methods are unexported and unsynchronized: the
// MessageStore serializes every access under its own lock so a message
// and its conversation update are always observed together.
type conversationIndex struct {
	nextID types.ConversationID
	byPair map[string]types.ConversationID
	byID   map[types.ConversationID]*Conversation
	byUser map[types.Address][]types.ConversationID
}

func newConversationIndex() *conversationIndex {
	return &conversationIndex{
		nextID: 1,
		byPair: make(map[string]types.ConversationID),
		byID:   make(map[types.ConversationID]*Conversation),
		byUser: make(map[types.Address][]types.ConversationID),
	}
}

// touch records that message msgID just passed between a and b. The
// first message of a pair allocates the conversation; every message
// moves LastMessageID forward. Returns the conversation ID.
func (ix *conversationIndex) touch(a, b types.Address, msgID types.MessageID, ts int64) types.ConversationID {
	key := pairKey(a, b)
	id, exists := ix.byPair[key]
	if !exists {
		id = ix.nextID
		ix.nextID++

		// Participants stored in canonical order, matching the key.
		pa, pb := a, b
		if pb < pa {
			pa, pb = pb, pa
		}
		ix.byPair[key] = id
		ix.byID[id] = &Conversation{
			ID:           id,
			ParticipantA: pa,
			ParticipantB: pb,
			CreatedAt:    ts,
			Active:       true,
		}
		ix.byUser[a] = append(ix.byUser[a], id)
		ix.byUser[b] = append(ix.byUser[b], id)
	}
	ix.byID[id].LastMessageID = msgID
	return id
}

// lookup returns the conversation ID for the pair, if one exists.
func (ix *conversationIndex) lookup(a, b types.Address) (types.ConversationID, bool) {
	id, exists := ix.byPair[pairKey(a, b)]
	return id, exists
}

// get returns a copy of the conversation record.
func (ix *conversationIndex) get(id types.ConversationID) (Conversation, bool) {
	c, exists := ix.byID[id]
	if !exists {
		return Conversation{}, false
	}
	return *c, true
}

// forUser returns the user's conversation IDs in creation order.
func (ix *conversationIndex) forUser(addr types.Address) []types.ConversationID {
	ids := make([]types.ConversationID, len(ix.byUser[addr]))
	copy(ids, ix.byUser[addr])
	return ids
}

func (ix *conversationIndex) count() int {
	return len(ix.byID)
}
