package courier

import (
	"fmt"
	"sync"

	"github.com/couriernet/courier/types"
)

// BlockGraph holds the directed blocker→blocked relation. Delivery is
// gated on the MUTUAL reading: a single direction set in either way
// between two addresses is enough to stop messages between them.
type BlockGraph struct {
	mu     sync.RWMutex
	blocks map[types.Address]map[types.Address]bool
}

// NewBlockGraph creates an empty graph.
func NewBlockGraph() *BlockGraph {
	return &BlockGraph{blocks: make(map[types.Address]map[types.Address]bool)}
}

// Block sets blocker→target. Rejects the zero address, self-blocks and
// duplicates so each successful call corresponds to exactly one
// Blocked event.
func (g *BlockGraph) Block(blocker, target types.Address) error {
	if target.IsZero() {
		return fmt.Errorf("cannot block the zero address: %w", ErrInvalidTarget)
	}
	if target == blocker {
		return fmt.Errorf("cannot block yourself: %w", ErrInvalidTarget)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.blocks[blocker][target] {
		return fmt.Errorf("%s already blocks %s: %w", blocker, target, ErrInvalidTarget)
	}
	if g.blocks[blocker] == nil {
		g.blocks[blocker] = make(map[types.Address]bool)
	}
	g.blocks[blocker][target] = true
	return nil
}

// Unblock clears blocker→target.
func (g *BlockGraph) Unblock(blocker, target types.Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.blocks[blocker][target] {
		return fmt.Errorf("%s does not block %s: %w", blocker, target, ErrNotBlocked)
	}
	delete(g.blocks[blocker], target)
	return nil
}

// IsBlocked reports whether blocker blocks target (directed).
func (g *BlockGraph) IsBlocked(blocker, target types.Address) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.blocks[blocker][target]
}

// IsBlockedEitherWay reports whether a blocks b or b blocks a.
func (g *BlockGraph) IsBlockedEitherWay(a, b types.Address) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.blocks[a][b] || g.blocks[b][a]
}

// Count returns the number of block relations currently set.
func (g *BlockGraph) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	total := 0
	for _, targets := range g.blocks {
		total += len(targets)
	}
	return total
}
