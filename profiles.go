package courier

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/couriernet/courier/types"
)

// Profile field limits, measured in characters.
const (
	MaxUsernameLen = 50
	MaxBioLen      = 200
)

// Profile is the per-address identity record. Profiles are never
// deleted; once created, Active only ever reads true (there is no
// deactivation operation).
type Profile struct {
	Address  types.Address `json:"address"`
	Username string        `json:"username"`
	Bio      string        `json:"bio"`
	Avatar   string        `json:"avatar"`
	Active   bool          `json:"active"`
	JoinedAt int64         `json:"joined_at"` // Unix seconds, fixed on first upsert
	LastSeen int64         `json:"last_seen"` // Unix seconds
}

// ProfileRegistry tracks per-address profile state. It is the gate for
// every other operation: anything not registered here is inactive.
type ProfileRegistry struct {
	mu       sync.RWMutex
	profiles map[types.Address]*Profile
}

// NewProfileRegistry creates an empty registry.
func NewProfileRegistry() *ProfileRegistry {
	return &ProfileRegistry{profiles: make(map[types.Address]*Profile)}
}

// Upsert creates or updates the profile for addr. The first call fixes
// JoinedAt; every call updates username/bio/avatar, bumps LastSeen and
// re-asserts Active. Idempotent: repeat calls with the same arguments
// only move LastSeen.
func (r *ProfileRegistry) Upsert(addr types.Address, username, bio, avatar string) (Profile, error) {
	if err := validateProfile(addr, username, bio); err != nil {
		return Profile{}, err
	}
	return r.upsertAt(addr, username, bio, avatar, time.Now().Unix()), nil
}

// upsertAt applies the upsert with an explicit timestamp. Used by
// Upsert and by event replay.
func (r *ProfileRegistry) upsertAt(addr types.Address, username, bio, avatar string, ts int64) Profile {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.profiles[addr]
	if !exists {
		p = &Profile{Address: addr, JoinedAt: ts}
		r.profiles[addr] = p
	}
	p.Username = username
	p.Bio = bio
	p.Avatar = avatar
	p.Active = true
	p.LastSeen = ts
	return *p
}

func validateProfile(addr types.Address, username, bio string) error {
	if addr.IsZero() {
		return fmt.Errorf("zero address: %w", ErrValidation)
	}
	if username == "" {
		return fmt.Errorf("username is required: %w", ErrValidation)
	}
	if utf8.RuneCountInString(username) > MaxUsernameLen {
		return fmt.Errorf("username exceeds %d characters: %w", MaxUsernameLen, ErrValidation)
	}
	if utf8.RuneCountInString(bio) > MaxBioLen {
		return fmt.Errorf("bio exceeds %d characters: %w", MaxBioLen, ErrValidation)
	}
	return nil
}

// Get returns the profile for addr.
func (r *ProfileRegistry) Get(addr types.Address) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.profiles[addr]
	if !exists {
		return Profile{}, fmt.Errorf("no profile for %s: %w", addr, ErrNotFound)
	}
	return *p, nil
}

// IsActive reports whether addr has an active profile. Unregistered
// addresses are inactive.
func (r *ProfileRegistry) IsActive(addr types.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.profiles[addr]
	return exists && p.Active
}

// TouchLastSeen bumps LastSeen for addr. No-op for unknown addresses.
func (r *ProfileRegistry) TouchLastSeen(addr types.Address, ts int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, exists := r.profiles[addr]; exists {
		p.LastSeen = ts
	}
}

// Count returns the number of registered profiles.
func (r *ProfileRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}
