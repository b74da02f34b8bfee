package runner

import (
	"context"
	"fmt"

	"placement-runner/internal/domain"
)

// Bootstrap starts or resumes a session for an identity. Every start is a new
// attempt on this device, so timer and replay records are wiped first.
type Bootstrap struct {
	backend SessionBackend
	store   AttemptStore
}

func NewBootstrap(backend SessionBackend, store AttemptStore) *Bootstrap {
	return &Bootstrap{backend: backend, store: store}
}

// Start validates the identity, resets the attempt records and asks the backend for a session.
func (b *Bootstrap) Start(ctx context.Context, identity domain.Identity) (*domain.Session, error) {
	identity = identity.Normalize()
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	if err := b.store.Clear(ctx); err != nil {
		return nil, fmt.Errorf("reset attempt state: %w", err)
	}
	session, err := b.backend.StartOrResume(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	return session, nil
}
