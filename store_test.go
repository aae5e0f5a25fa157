package courier

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/couriernet/courier/types"
)

// testStore builds a store with the given users registered and active,
// and a fixed per-message fee of 10.
func testStore(t *testing.T, users ...types.Address) *MessageStore {
	t.Helper()
	profiles := NewProfileRegistry()
	for _, u := range users {
		profiles.upsertAt(u, u.String(), "", "", 100)
	}
	return NewMessageStore(profiles, NewBlockGraph(), NewFeeVault(), NewEventLog(nil), 10)
}

func TestMessageStore_SendAssignsIncreasingIDs(t *testing.T) {
	store := testStore(t, "alice", "bob")

	for want := types.MessageID(1); want <= 3; want++ {
		id, err := store.Send("alice", "bob", "hello", "text", 0)
		if err != nil {
			t.Fatalf("send failed: %v", err)
		}
		if id != want {
			t.Errorf("expected id %d, got %d", want, id)
		}
	}
	if store.TotalCount() != 3 {
		t.Errorf("expected 3 messages, got %d", store.TotalCount())
	}
}

func TestMessageStore_SendPreconditions(t *testing.T) {
	cases := []struct {
		name      string
		sender    types.Address
		recipient types.Address
		content   string
		fee       uint64
		wantErr   error
	}{
		{"inactive sender", "ghost", "bob", "hi", 0, ErrNotActive},
		{"empty content", "alice", "bob", "", 0, ErrValidation},
		{"long content", "alice", "bob", strings.Repeat("x", MaxContentLen+1), 0, ErrValidation},
		{"self recipient", "alice", "alice", "hi", 0, ErrValidation},
		{"zero recipient", "alice", "", "hi", 0, ErrValidation},
		{"inactive recipient", "alice", "ghost", "hi", 0, ErrNotActive},
		{"low fee", "alice", "bob", "hi", 5, ErrValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := testStore(t, "alice", "bob")
			_, err := store.Send(tc.sender, tc.recipient, tc.content, "text", tc.fee)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
			if store.TotalCount() != 0 {
				t.Error("failed send must not record anything")
			}
		})
	}
}

func TestMessageStore_SendBlockedEitherWay(t *testing.T) {
	store := testStore(t, "alice", "bob")
	if err := store.blocks.Block("bob", "alice"); err != nil {
		t.Fatalf("block failed: %v", err)
	}

	// Blocked in the reverse direction still stops delivery both ways
	if _, err := store.Send("alice", "bob", "hi", "text", 0); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if _, err := store.Send("bob", "alice", "hi", "text", 0); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestMessageStore_SendExactLimitContent(t *testing.T) {
	store := testStore(t, "alice", "bob")

	if _, err := store.Send("alice", "bob", strings.Repeat("x", MaxContentLen), "text", 0); err != nil {
		t.Errorf("content at the limit should pass, got %v", err)
	}
}

func TestMessageStore_SendCreditsFee(t *testing.T) {
	store := testStore(t, "alice", "bob")

	if _, err := store.Send("alice", "bob", "hi", "text", 25); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if store.vault.Balance() != 25 {
		t.Errorf("expected vault balance 25, got %d", store.vault.Balance())
	}

	// Zero fee is fine and credits nothing
	if _, err := store.Send("alice", "bob", "hi again", "text", 0); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if store.vault.Balance() != 25 {
		t.Errorf("expected vault balance unchanged, got %d", store.vault.Balance())
	}
}

func TestMessageStore_SendUpdatesSenderLastSeen(t *testing.T) {
	store := testStore(t, "alice", "bob")

	before, _ := store.profiles.Get("alice")
	if _, err := store.Send("alice", "bob", "hi", "text", 0); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	after, _ := store.profiles.Get("alice")
	if after.LastSeen < before.LastSeen {
		t.Error("send should move the sender's lastSeen forward")
	}
}

func TestMessageStore_Delete(t *testing.T) {
	store := testStore(t, "alice", "bob")
	id, err := store.Send("alice", "bob", "hi", "text", 0)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if err := store.Delete(99, "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(id, "bob"); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-sender: expected ErrForbidden, got %v", err)
	}
	if err := store.Delete(id, "alice"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := store.Delete(id, "alice"); !errors.Is(err, ErrAlreadyDeleted) {
		t.Errorf("double delete: expected ErrAlreadyDeleted, got %v", err)
	}

	// Deleted message remains retrievable with the flag set
	msg, err := store.Get(id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !msg.Deleted {
		t.Error("message should be flagged deleted")
	}
	if msg.Content != "hi" {
		t.Error("no content redaction at this layer")
	}
}

func TestMessageStore_Report(t *testing.T) {
	store := testStore(t, "alice", "bob", "carol")
	id, err := store.Send("alice", "bob", "hi", "text", 0)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if err := store.Report(99, "bob", "spam"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: expected ErrNotFound, got %v", err)
	}
	if err := store.Report(id, "carol", "spam"); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-participant: expected ErrForbidden, got %v", err)
	}
	if err := store.Report(id, "bob", "spam"); err != nil {
		t.Fatalf("report failed: %v", err)
	}

	// One-shot: even the other participant cannot report again
	if err := store.Report(id, "alice", "abuse"); !errors.Is(err, ErrAlreadyReported) {
		t.Errorf("double report: expected ErrAlreadyReported, got %v", err)
	}

	reporters := store.ReportersFor(id)
	if len(reporters) != 1 || reporters[0] != "bob" {
		t.Errorf("expected reporters [bob], got %v", reporters)
	}

	msg, _ := store.Get(id)
	if !msg.Reported {
		t.Error("message should be flagged reported")
	}
}

func TestMessageStore_ListForUser(t *testing.T) {
	store := testStore(t, "alice", "bob", "carol")

	// alice sends 3, receives 1
	for i := 0; i < 3; i++ {
		if _, err := store.Send("alice", "bob", "hi", "text", 0); err != nil {
			t.Fatalf("send failed: %v", err)
		}
	}
	if _, err := store.Send("carol", "alice", "yo", "text", 0); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	all := store.ListForUser("alice", 0, 10)
	if len(all) != 4 {
		t.Fatalf("expected 4 ids, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i] <= all[i-1] {
			t.Error("ids should come back in insertion order")
		}
	}

	// Window
	window := store.ListForUser("alice", 1, 2)
	if len(window) != 2 || window[0] != all[1] || window[1] != all[2] {
		t.Errorf("expected window %v, got %v", all[1:3], window)
	}

	// Clamping
	if got := store.ListForUser("alice", 10, 5); len(got) != 0 {
		t.Errorf("offset past the end should be empty, got %v", got)
	}
	if got := store.ListForUser("alice", 2, 100); len(got) != 2 {
		t.Errorf("limit should clamp to the list end, got %v", got)
	}
	if got := store.ListForUser("ghost", 0, 10); len(got) != 0 {
		t.Errorf("unknown user should be empty, got %v", got)
	}
}

func TestMessageStore_ListConversation(t *testing.T) {
	store := testStore(t, "alice", "bob", "carol")

	id1, _ := store.Send("alice", "bob", "one", "text", 0)
	store.Send("alice", "carol", "noise", "text", 0)
	id3, _ := store.Send("bob", "alice", "two", "text", 0)

	forward := store.ListConversation("alice", "bob", 0, 10)
	backward := store.ListConversation("bob", "alice", 0, 10)

	if len(forward) != 2 || forward[0] != id1 || forward[1] != id3 {
		t.Errorf("expected [%d %d], got %v", id1, id3, forward)
	}
	if len(backward) != len(forward) {
		t.Error("conversation listing should be symmetric")
	}
	for i := range forward {
		if forward[i] != backward[i] {
			t.Error("conversation listing should be symmetric")
		}
	}
}

func TestMessageStore_ConversationIdentity(t *testing.T) {
	store := testStore(t, "alice", "bob")

	if _, exists := store.LookupConversation("alice", "bob"); exists {
		t.Error("no conversation before the first message")
	}

	store.Send("alice", "bob", "one", "text", 0)
	first, exists := store.LookupConversation("alice", "bob")
	if !exists {
		t.Fatal("conversation should exist after the first message")
	}

	reversed, exists := store.LookupConversation("bob", "alice")
	if !exists || reversed != first {
		t.Errorf("lookup must be symmetric: %d != %d", first, reversed)
	}

	// Stable across further traffic
	store.Send("bob", "alice", "two", "text", 0)
	store.Send("alice", "bob", "three", "text", 0)
	again, _ := store.LookupConversation("alice", "bob")
	if again != first {
		t.Errorf("conversation id changed: %d != %d", again, first)
	}

	conv, err := store.GetConversation(first)
	if err != nil {
		t.Fatalf("get conversation failed: %v", err)
	}
	if conv.LastMessageID != 3 {
		t.Errorf("expected lastMessageId 3, got %d", conv.LastMessageID)
	}
	if !conv.Active {
		t.Error("conversation should be active")
	}
}

func TestMessageStore_Counts(t *testing.T) {
	store := testStore(t, "alice", "bob", "carol")

	store.Send("alice", "bob", "one", "text", 0)
	store.Send("alice", "carol", "two", "text", 0)

	if store.TotalCount() != 2 {
		t.Errorf("expected total 2, got %d", store.TotalCount())
	}
	if store.CountForUser("alice") != 2 {
		t.Errorf("expected 2 for alice, got %d", store.CountForUser("alice"))
	}
	if store.CountForUser("bob") != 1 {
		t.Errorf("expected 1 for bob, got %d", store.CountForUser("bob"))
	}
	if store.ConversationCount() != 2 {
		t.Errorf("expected 2 conversations, got %d", store.ConversationCount())
	}
}

// Concurrent sends between the same pair must produce gapless message
// ids and exactly one conversation.
func TestMessageStore_ConcurrentSends(t *testing.T) {
	store := testStore(t, "alice", "bob")

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := store.Send("alice", "bob", "hi", "text", 0); err != nil {
					t.Errorf("send failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	total := workers * perWorker
	if store.TotalCount() != total {
		t.Fatalf("expected %d messages, got %d", total, store.TotalCount())
	}
	// Every id in [1, total] resolves
	for id := types.MessageID(1); id <= types.MessageID(total); id++ {
		if _, err := store.Get(id); err != nil {
			t.Fatalf("id %d missing: %v", id, err)
		}
	}
	if store.ConversationCount() != 1 {
		t.Errorf("expected a single conversation, got %d", store.ConversationCount())
	}
}
