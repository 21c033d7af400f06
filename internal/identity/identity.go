package identity

import (
	"context"
	"errors"
	"sync"
)

var ErrUnknownUser = errors.New("unknown user")

// Profile is what the identity boundary supplies for a connecting client.
// The core trusts it without re-verifying credentials.
type Profile struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Rating      int    `json:"rating"`
}

// Provider resolves a user id to a profile.
type Provider interface {
	Profile(ctx context.Context, userID string) (*Profile, error)
}

// StaticProvider serves profiles from memory; used in tests and local
// development when no identity service is configured.
type StaticProvider struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{profiles: make(map[string]Profile)}
}

func (p *StaticProvider) Put(profile Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[profile.UserID] = profile
}

func (p *StaticProvider) Profile(ctx context.Context, userID string) (*Profile, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	profile, ok := p.profiles[userID]
	if !ok {
		return nil, ErrUnknownUser
	}
	return &profile, nil
}
