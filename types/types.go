package types

// Address is a type-safe wrapper for participant addresses
type Address string

// ZeroAddress is the empty address; never a valid participant.
const ZeroAddress Address = ""

// MessageID identifies a message. IDs are 1-based and strictly increasing.
type MessageID uint64

// ConversationID identifies the conversation between an unordered pair
// of participants. IDs are 1-based and strictly increasing.
type ConversationID uint64

// String converts Address to string
func (a Address) String() string {
	return string(a)
}

// IsZero reports whether the address is the zero address.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}
