// Package courier implements the on-chain-style state machine at the
// heart of a decentralized direct-messaging protocol: profile
// registration, message records with monotonic IDs, conversation
// indexing, mutual blocking, moderation reports, a fee vault and an
// append-only audit log of every state transition.
//
// The core assumes content arrives already encrypted (or deliberately
// plaintext) and is responsible only for its lifecycle, visibility
// rules and indexing - never for confidentiality.
package courier

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/couriernet/courier/types"
)

// Config carries the construction parameters of a core.
type Config struct {
	// Owner is the protocol owner, the only address allowed to
	// withdraw accumulated fees.
	Owner types.Address

	// MessageFee is the fixed per-message fee. A send paying a
	// positive amount below this fails; paying zero is always fine
	// (fees are optional).
	MessageFee uint64

	// Signer, when set, signs every event record.
	Signer *Signer
}

// Core ties the components together and exposes the public operation
// surface. Every mutating operation is fail-atomic: it either applies
// fully (and appends exactly one event) or fails leaving all state
// untouched.
type Core struct {
	owner    types.Address
	profiles *ProfileRegistry
	blocks   *BlockGraph
	follows  *FollowGraph
	store    *MessageStore
	vault    *FeeVault
	events   *EventLog
}

// New builds a core from the config.
func New(cfg Config) *Core {
	profiles := NewProfileRegistry()
	blocks := NewBlockGraph()
	vault := NewFeeVault()
	events := NewEventLog(cfg.Signer)

	return &Core{
		owner:    cfg.Owner,
		profiles: profiles,
		blocks:   blocks,
		follows:  NewFollowGraph(),
		store:    NewMessageStore(profiles, blocks, vault, events, cfg.MessageFee),
		vault:    vault,
		events:   events,
	}
}

// CreateProfile creates or updates the caller's profile. Idempotent;
// always leaves the profile active.
func (c *Core) CreateProfile(caller types.Address, username, bio, avatar string) (Profile, error) {
	p, err := c.profiles.Upsert(caller, username, bio, avatar)
	if err != nil {
		return Profile{}, err
	}
	c.events.Append(Event{
		Kind:    EventProfileUpdated,
		Actor:   caller,
		Profile: &ProfilePayload{Username: username, Bio: bio, Avatar: avatar},
	})
	logrus.Debugf("👤 profile upserted for %s (%s)", caller, username)
	return p, nil
}

// SendMessage records a message from caller to recipient and returns
// the new message ID. See MessageStore.Send for the precondition
// order.
func (c *Core) SendMessage(caller, recipient types.Address, content, messageType string, feePaid uint64) (types.MessageID, error) {
	return c.store.Send(caller, recipient, content, messageType, feePaid)
}

// DeleteMessage marks one of the caller's sent messages deleted.
func (c *Core) DeleteMessage(caller types.Address, id types.MessageID) error {
	return c.store.Delete(id, caller)
}

// ReportMessage flags a message the caller participated in.
func (c *Core) ReportMessage(caller types.Address, id types.MessageID, reason string) error {
	return c.store.Report(id, caller, reason)
}

// BlockUser sets caller→target in the block graph. While set (in
// either direction) no message passes between the pair.
func (c *Core) BlockUser(caller, target types.Address) error {
	if !c.profiles.IsActive(caller) {
		return fmt.Errorf("caller %s: %w", caller, ErrNotActive)
	}
	if err := c.blocks.Block(caller, target); err != nil {
		return err
	}
	c.events.Append(Event{Kind: EventBlocked, Actor: caller, Target: target})
	logrus.Debugf("🚫 %s blocked %s", caller, target)
	return nil
}

// UnblockUser clears caller→target.
func (c *Core) UnblockUser(caller, target types.Address) error {
	if !c.profiles.IsActive(caller) {
		return fmt.Errorf("caller %s: %w", caller, ErrNotActive)
	}
	if err := c.blocks.Unblock(caller, target); err != nil {
		return err
	}
	c.events.Append(Event{Kind: EventUnblocked, Actor: caller, Target: target})
	logrus.Debugf("✅ %s unblocked %s", caller, target)
	return nil
}

// FollowUser sets caller→target in the follow graph. Social metadata
// only; no effect on delivery.
func (c *Core) FollowUser(caller, target types.Address) error {
	if !c.profiles.IsActive(caller) {
		return fmt.Errorf("caller %s: %w", caller, ErrNotActive)
	}
	if !target.IsZero() && target != caller && !c.profiles.IsActive(target) {
		return fmt.Errorf("target %s: %w", target, ErrNotActive)
	}
	if err := c.follows.Follow(caller, target); err != nil {
		return err
	}
	c.events.Append(Event{Kind: EventFollowed, Actor: caller, Target: target})
	return nil
}

// UnfollowUser clears caller→target.
func (c *Core) UnfollowUser(caller, target types.Address) error {
	if !c.profiles.IsActive(caller) {
		return fmt.Errorf("caller %s: %w", caller, ErrNotActive)
	}
	if err := c.follows.Unfollow(caller, target); err != nil {
		return err
	}
	c.events.Append(Event{Kind: EventUnfollowed, Actor: caller, Target: target})
	return nil
}

// Withdraw empties the fee vault to the protocol owner. Owner-only;
// the balance transfer and the zeroing are indivisible.
func (c *Core) Withdraw(caller types.Address) (uint64, error) {
	if caller != c.owner {
		return 0, fmt.Errorf("%s is not the protocol owner: %w", caller, ErrForbidden)
	}
	amount, err := c.vault.Withdraw()
	if err != nil {
		return 0, err
	}
	c.events.Append(Event{Kind: EventFeesWithdrawn, Actor: caller, Amount: amount})
	logrus.Infof("💰 owner withdrew %d in fees", amount)
	return amount, nil
}

// --- Read surface ---

// GetUserProfile returns the profile for addr.
func (c *Core) GetUserProfile(addr types.Address) (Profile, error) {
	return c.profiles.Get(addr)
}

// GetMessage returns the full message record regardless of its
// deleted/reported flags.
func (c *Core) GetMessage(id types.MessageID) (Message, error) {
	return c.store.Get(id)
}

// GetUserMessages pages through the user's message IDs in insertion
// order. Clamps instead of failing.
func (c *Core) GetUserMessages(addr types.Address, offset, limit int) []types.MessageID {
	return c.store.ListForUser(addr, offset, limit)
}

// GetConversation pages through the message IDs exchanged between a
// and b. Symmetric in a and b.
func (c *Core) GetConversation(a, b types.Address, offset, limit int) []types.MessageID {
	return c.store.ListConversation(a, b, offset, limit)
}

// LookupConversation returns the stable conversation ID for the pair.
func (c *Core) LookupConversation(a, b types.Address) (types.ConversationID, bool) {
	return c.store.LookupConversation(a, b)
}

// IsUserBlocked reports whether a blocks b (directed).
func (c *Core) IsUserBlocked(a, b types.Address) bool {
	return c.blocks.IsBlocked(a, b)
}

// IsUserFollowing reports whether a follows b.
func (c *Core) IsUserFollowing(a, b types.Address) bool {
	return c.follows.IsFollowing(a, b)
}

// GetTotalMessageCount returns the total number of messages recorded.
func (c *Core) GetTotalMessageCount() int {
	return c.store.TotalCount()
}

// GetUserMessageCount returns how many messages addr sent or received.
func (c *Core) GetUserMessageCount(addr types.Address) int {
	return c.store.CountForUser(addr)
}

// ReportersFor returns the addresses that reported a message.
func (c *Core) ReportersFor(id types.MessageID) []types.Address {
	return c.store.ReportersFor(id)
}

// VaultBalance returns the accumulated fee balance.
func (c *Core) VaultBalance() uint64 {
	return c.vault.Balance()
}

// Owner returns the protocol owner address.
func (c *Core) Owner() types.Address {
	return c.owner
}

// Events exposes the audit log.
func (c *Core) Events() *EventLog {
	return c.events
}

// Store exposes the message store for read-side consumers.
func (c *Core) Store() *MessageStore {
	return c.store
}

// Stats is a snapshot of store-wide counters.
type Stats struct {
	Profiles      int    `json:"profiles"`
	Messages      int    `json:"messages"`
	Conversations int    `json:"conversations"`
	Blocks        int    `json:"blocks"`
	Follows       int    `json:"follows"`
	Reports       int    `json:"reports"`
	Events        int    `json:"events"`
	VaultBalance  uint64 `json:"vault_balance"`
}

// Snapshot gathers the counters. Each counter is consistent with
// itself; the snapshot as a whole is not a single atomic read.
func (c *Core) Snapshot() Stats {
	return Stats{
		Profiles:      c.profiles.Count(),
		Messages:      c.store.TotalCount(),
		Conversations: c.store.ConversationCount(),
		Blocks:        c.blocks.Count(),
		Follows:       c.follows.Count(),
		Reports:       c.store.ReportCount(),
		Events:        c.events.Len(),
		VaultBalance:  c.vault.Balance(),
	}
}

// --- Boot replay ---

// Replay rebuilds state from a persisted event log. Events must arrive
// in their original sequence order. Each event is restored into the
// log verbatim (so sequence numbers continue where they left off) and
// its state transition is re-applied without validation - the log was
// written by a core that already enforced every precondition.
func (c *Core) Replay(events []Event) int {
	applied := 0
	for i := range events {
		e := events[i]
		c.apply(e)
		c.events.Restore(e)
		applied++
	}
	if applied > 0 {
		logrus.Infof("📼 replayed %d events from archive", applied)
	}
	return applied
}

func (c *Core) apply(e Event) {
	ts := e.Timestamp / 1e9 // event nanos → record seconds
	switch e.Kind {
	case EventProfileUpdated:
		if e.Profile != nil {
			c.profiles.upsertAt(e.Actor, e.Profile.Username, e.Profile.Bio, e.Profile.Avatar, ts)
		}
	case EventMessageSent:
		if e.Message != nil {
			c.store.replaySent(e.Actor, e.Target, e.Message.Content, e.Message.MessageType, e.Message.Fee, ts)
		}
	case EventMessageDeleted:
		c.store.replayDeleted(e.MessageID)
	case EventMessageReported:
		c.store.replayReported(e.MessageID, e.Actor)
	case EventBlocked:
		if err := c.blocks.Block(e.Actor, e.Target); err != nil {
			logrus.Warnf("replay: blocked event %s: %v", e.ID, err)
		}
	case EventUnblocked:
		if err := c.blocks.Unblock(e.Actor, e.Target); err != nil {
			logrus.Warnf("replay: unblocked event %s: %v", e.ID, err)
		}
	case EventFollowed:
		if err := c.follows.Follow(e.Actor, e.Target); err != nil {
			logrus.Warnf("replay: followed event %s: %v", e.ID, err)
		}
	case EventUnfollowed:
		if err := c.follows.Unfollow(e.Actor, e.Target); err != nil {
			logrus.Warnf("replay: unfollowed event %s: %v", e.ID, err)
		}
	case EventFeesWithdrawn:
		if _, err := c.vault.Withdraw(); err != nil {
			logrus.Warnf("replay: fees-withdrawn event %s: %v", e.ID, err)
		}
	default:
		logrus.Warnf("replay: unknown event kind %q (seq %d)", e.Kind, e.Seq)
	}
}
