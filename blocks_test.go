package courier

import (
	"errors"
	"testing"
)

func TestBlockGraph_BlockAndUnblock(t *testing.T) {
	graph := NewBlockGraph()

	if err := graph.Block("alice", "bob"); err != nil {
		t.Fatalf("block failed: %v", err)
	}
	if !graph.IsBlocked("alice", "bob") {
		t.Error("alice should block bob")
	}
	if graph.IsBlocked("bob", "alice") {
		t.Error("block is directed; bob should not block alice")
	}

	if err := graph.Unblock("alice", "bob"); err != nil {
		t.Fatalf("unblock failed: %v", err)
	}
	if graph.IsBlocked("alice", "bob") {
		t.Error("relation should be cleared")
	}
}

func TestBlockGraph_EitherWay(t *testing.T) {
	graph := NewBlockGraph()

	if graph.IsBlockedEitherWay("alice", "bob") {
		t.Error("no relation yet")
	}

	if err := graph.Block("bob", "alice"); err != nil {
		t.Fatalf("block failed: %v", err)
	}
	if !graph.IsBlockedEitherWay("alice", "bob") {
		t.Error("either-way check should see bob→alice")
	}
	if !graph.IsBlockedEitherWay("bob", "alice") {
		t.Error("either-way check should be symmetric")
	}
}

func TestBlockGraph_InvalidTargets(t *testing.T) {
	graph := NewBlockGraph()

	if err := graph.Block("alice", ""); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("zero address: expected ErrInvalidTarget, got %v", err)
	}
	if err := graph.Block("alice", "alice"); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("self block: expected ErrInvalidTarget, got %v", err)
	}

	if err := graph.Block("alice", "bob"); err != nil {
		t.Fatalf("block failed: %v", err)
	}
	if err := graph.Block("alice", "bob"); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("duplicate block: expected ErrInvalidTarget, got %v", err)
	}
}

func TestBlockGraph_UnblockWithoutRelation(t *testing.T) {
	graph := NewBlockGraph()

	if err := graph.Unblock("alice", "bob"); !errors.Is(err, ErrNotBlocked) {
		t.Errorf("expected ErrNotBlocked, got %v", err)
	}
}

func TestBlockGraph_Count(t *testing.T) {
	graph := NewBlockGraph()
	graph.Block("alice", "bob")
	graph.Block("alice", "carol")
	graph.Block("bob", "alice")

	if graph.Count() != 3 {
		t.Errorf("expected 3 relations, got %d", graph.Count())
	}
}
