package courier

import (
	"errors"
	"testing"
)

func TestFollowGraph_FollowAndUnfollow(t *testing.T) {
	graph := NewFollowGraph()

	if err := graph.Follow("alice", "bob"); err != nil {
		t.Fatalf("follow failed: %v", err)
	}
	if !graph.IsFollowing("alice", "bob") {
		t.Error("alice should follow bob")
	}
	if graph.IsFollowing("bob", "alice") {
		t.Error("follow is directed; bob should not follow alice")
	}

	if err := graph.Unfollow("alice", "bob"); err != nil {
		t.Fatalf("unfollow failed: %v", err)
	}
	if graph.IsFollowing("alice", "bob") {
		t.Error("relation should be cleared")
	}
}

func TestFollowGraph_InvalidTargets(t *testing.T) {
	graph := NewFollowGraph()

	if err := graph.Follow("alice", ""); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("zero address: expected ErrInvalidTarget, got %v", err)
	}
	if err := graph.Follow("alice", "alice"); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("self follow: expected ErrInvalidTarget, got %v", err)
	}

	if err := graph.Follow("alice", "bob"); err != nil {
		t.Fatalf("follow failed: %v", err)
	}
	if err := graph.Follow("alice", "bob"); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("duplicate follow: expected ErrInvalidTarget, got %v", err)
	}
}

func TestFollowGraph_UnfollowWithoutRelation(t *testing.T) {
	graph := NewFollowGraph()

	if err := graph.Unfollow("alice", "bob"); !errors.Is(err, ErrNotFollowing) {
		t.Errorf("expected ErrNotFollowing, got %v", err)
	}
}
