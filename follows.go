package courier

import (
	"fmt"
	"sync"

	"github.com/couriernet/courier/types"
)

// FollowGraph holds the directed follower→followed relation. Purely
// social-graph metadata: following has no effect on message delivery.
type FollowGraph struct {
	mu      sync.RWMutex
	follows map[types.Address]map[types.Address]bool
}

// NewFollowGraph creates an empty graph.
func NewFollowGraph() *FollowGraph {
	return &FollowGraph{follows: make(map[types.Address]map[types.Address]bool)}
}

// Follow sets follower→target. Rejects zero/self targets and
// duplicates.
func (g *FollowGraph) Follow(follower, target types.Address) error {
	if target.IsZero() {
		return fmt.Errorf("cannot follow the zero address: %w", ErrInvalidTarget)
	}
	if target == follower {
		return fmt.Errorf("cannot follow yourself: %w", ErrInvalidTarget)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.follows[follower][target] {
		return fmt.Errorf("%s already follows %s: %w", follower, target, ErrInvalidTarget)
	}
	if g.follows[follower] == nil {
		g.follows[follower] = make(map[types.Address]bool)
	}
	g.follows[follower][target] = true
	return nil
}

// Unfollow clears follower→target.
func (g *FollowGraph) Unfollow(follower, target types.Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.follows[follower][target] {
		return fmt.Errorf("%s does not follow %s: %w", follower, target, ErrNotFollowing)
	}
	delete(g.follows[follower], target)
	return nil
}

// IsFollowing reports whether follower follows target.
func (g *FollowGraph) IsFollowing(follower, target types.Address) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.follows[follower][target]
}

// Count returns the number of follow relations currently set.
func (g *FollowGraph) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	total := 0
	for _, targets := range g.follows {
		total += len(targets)
	}
	return total
}
