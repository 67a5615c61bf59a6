package moderation

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. Units of work hold a per-item lock and
// stage every write until Commit, so it honours the same atomicity contract
// as the SQL stores.
type MemoryStore struct {
	mu         sync.RWMutex
	items      map[uuid.UUID]*Reviewable
	actions    map[uuid.UUID][]Action
	containers map[uuid.UUID]Container
	rows       *LocalLocker
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:      make(map[uuid.UUID]*Reviewable),
		actions:    make(map[uuid.UUID][]Action),
		containers: make(map[uuid.UUID]Container),
		rows:       NewLocalLocker(),
	}
}

// PutContainer creates or replaces a container.
func (s *MemoryStore) PutContainer(c Container) {
	s.mu.Lock()
	s.containers[c.ID] = c
	s.mu.Unlock()
}

// Container returns the committed container.
func (s *MemoryStore) Container(id uuid.UUID) (Container, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.containers[id]
	return c, ok
}

// CreateReviewable stores a copy of item.
func (s *MemoryStore) CreateReviewable(_ context.Context, item *Reviewable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[item.ID]; exists {
		return fmt.Errorf("%w: %s", ErrReviewableExists, item.ID)
	}
	s.items[item.ID] = item.Clone()
	return nil
}

// Reviewable returns a copy of the committed item.
func (s *MemoryStore) Reviewable(_ context.Context, id uuid.UUID) (*Reviewable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrReviewableNotFound, id)
	}
	return item.Clone(), nil
}

// Actions returns the item's actions oldest first.
func (s *MemoryStore) Actions(_ context.Context, id uuid.UUID) ([]Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.items[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrReviewableNotFound, id)
	}
	out := make([]Action, len(s.actions[id]))
	copy(out, s.actions[id])
	return out, nil
}

// CountByState counts the provider's items in public containers.
func (s *MemoryStore) CountByState(_ context.Context, providerID uuid.UUID) (map[State]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[State]int, len(States()))
	for _, st := range States() {
		counts[st] = 0
	}
	for _, item := range s.items {
		if item.ProviderID != providerID {
			continue
		}
		if c, ok := s.containers[item.ContainerID]; ok && c.Public {
			counts[item.State]++
		}
	}
	return counts, nil
}

// Begin blocks until no other unit holds the item.
func (s *MemoryStore) Begin(ctx context.Context, id uuid.UUID) (UnitOfWork, error) {
	release, err := s.rows.Lock(ctx, id.String())
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	item, ok := s.items[id]
	if ok {
		item = item.Clone()
	}
	s.mu.RUnlock()

	if !ok {
		_ = release(ctx)
		return nil, fmt.Errorf("%w: %s", ErrReviewableNotFound, id)
	}

	return &memoryUnit{
		store:      s,
		item:       item,
		containers: make(map[uuid.UUID]Container),
		release:    release,
	}, nil
}

type memoryUnit struct {
	store      *MemoryStore
	item       *Reviewable
	saved      *Reviewable
	actions    []Action
	containers map[uuid.UUID]Container
	hooks      CommitHooks
	release    func(context.Context) error
	done       bool
}

func (u *memoryUnit) Reviewable() *Reviewable { return u.item }

func (u *memoryUnit) SaveReviewable(_ context.Context, item *Reviewable) error {
	if u.done {
		return ErrUnitOfWorkClosed
	}
	u.saved = item.Clone()
	return nil
}

func (u *memoryUnit) AppendAction(_ context.Context, action *Action) error {
	if u.done {
		return ErrUnitOfWorkClosed
	}
	u.actions = append(u.actions, *action)
	return nil
}

func (u *memoryUnit) AfterCommit(fn func(ctx context.Context)) {
	u.hooks.Add(fn)
}

func (u *memoryUnit) container(id uuid.UUID) (Container, bool) {
	if c, ok := u.containers[id]; ok {
		return c, true
	}
	return u.store.Container(id)
}

func (u *memoryUnit) HasValidPrimaryArtifact(_ context.Context, item *Reviewable) (bool, error) {
	c, ok := u.container(item.ContainerID)
	return ok && c.HasValidPrimaryArtifact(), nil
}

func (u *memoryUnit) ContainerIsPublic(_ context.Context, item *Reviewable) (bool, error) {
	c, ok := u.container(item.ContainerID)
	return ok && c.Public, nil
}

func (u *memoryUnit) SetContainerPublic(_ context.Context, item *Reviewable) error {
	return u.updateContainer(item.ContainerID, func(c *Container) { c.Public = true })
}

func (u *memoryUnit) MarkContainerActive(_ context.Context, item *Reviewable) error {
	return u.updateContainer(item.ContainerID, func(c *Container) { c.Abandoned = false })
}

func (u *memoryUnit) updateContainer(id uuid.UUID, fn func(*Container)) error {
	if u.done {
		return ErrUnitOfWorkClosed
	}
	c, ok := u.container(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrContainerNotFound, id)
	}
	fn(&c)
	u.containers[id] = c
	return nil
}

func (u *memoryUnit) Commit(ctx context.Context) error {
	if u.done {
		return ErrUnitOfWorkClosed
	}
	u.done = true

	s := u.store
	s.mu.Lock()
	if u.saved != nil {
		s.items[u.saved.ID] = u.saved
	}
	for id, c := range u.containers {
		s.containers[id] = c
	}
	if len(u.actions) > 0 {
		s.actions[u.item.ID] = append(s.actions[u.item.ID], u.actions...)
	}
	s.mu.Unlock()

	u.hooks.Run(ctx)
	return u.release(ctx)
}

func (u *memoryUnit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	u.hooks.Discard()
	return u.release(ctx)
}
