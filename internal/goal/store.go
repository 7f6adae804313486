package goal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/finsync/internal/kv"
	"github.com/MrJamesThe3rd/finsync/internal/watch"
)

const storageKey = "goals"

type Store struct {
	kv       kv.Store
	now      func() time.Time
	mu       sync.RWMutex
	goals    []Goal
	watchers watch.List[[]Goal]
}

// Open rehydrates the store from kv, migrating legacy icons on the way in.
func Open(ctx context.Context, store kv.Store) (*Store, error) {
	s := &Store{kv: store, now: time.Now}

	raw, err := store.Get(ctx, storageKey)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return s, nil
		}

		return nil, fmt.Errorf("loading goals: %w", err)
	}

	if err := json.Unmarshal(raw, &s.goals); err != nil {
		return nil, fmt.Errorf("decoding goals: %w", err)
	}

	for i := range s.goals {
		s.goals[i].Icon = MigrateIcon(s.goals[i].Icon)
	}

	return s, nil
}

func (s *Store) Goals() []Goal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.goals)
}

func (s *Store) Watch(fn func([]Goal)) (cancel func()) {
	return s.watchers.Add(fn)
}

// SetGoals replaces the whole collection.
func (s *Store) SetGoals(ctx context.Context, goals []Goal) error {
	return s.mutate(ctx, func(gs []Goal) ([]Goal, error) {
		return slices.Clone(goals), nil
	})
}

func (s *Store) Add(ctx context.Context, params CreateParams) (Goal, error) {
	if err := params.validate(); err != nil {
		return Goal{}, err
	}

	g := Goal{
		ID:            uuid.NewString(),
		Name:          params.Name,
		Description:   params.Description,
		TargetAmount:  params.TargetAmount,
		CurrentAmount: params.CurrentAmount,
		TargetDate:    params.TargetDate,
		Icon:          MigrateIcon(params.Icon),
		CreatedAt:     s.now().UTC(),
	}
	g.IsCompleted = g.reached()

	err := s.mutate(ctx, func(gs []Goal) ([]Goal, error) {
		return append(gs, g), nil
	})
	if err != nil {
		return Goal{}, fmt.Errorf("creating goal: %w", err)
	}

	return g, nil
}

func (s *Store) Get(id string) (Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := slices.IndexFunc(s.goals, func(g Goal) bool { return g.ID == id })
	if i < 0 {
		return Goal{}, ErrNotFound
	}

	return s.goals[i], nil
}

// Update replaces the goal with the same ID. CreatedAt is kept.
func (s *Store) Update(ctx context.Context, g Goal) error {
	g.Icon = MigrateIcon(g.Icon)

	return s.mutate(ctx, func(gs []Goal) ([]Goal, error) {
		i := slices.IndexFunc(gs, func(x Goal) bool { return x.ID == g.ID })
		if i < 0 {
			return nil, ErrNotFound
		}

		g.CreatedAt = gs[i].CreatedAt
		gs[i] = g

		return gs, nil
	})
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.mutate(ctx, func(gs []Goal) ([]Goal, error) {
		i := slices.IndexFunc(gs, func(g Goal) bool { return g.ID == id })
		if i < 0 {
			return nil, ErrNotFound
		}

		return slices.Delete(gs, i, i+1), nil
	})
}

// Contribute adds amount to the goal's current amount and marks it completed
// once the target is reached.
func (s *Store) Contribute(ctx context.Context, id string, amount decimal.Decimal) (Goal, error) {
	if !amount.IsPositive() {
		return Goal{}, fmt.Errorf("%w: contribution must be positive", ErrInvalid)
	}

	var updated Goal

	err := s.mutate(ctx, func(gs []Goal) ([]Goal, error) {
		i := slices.IndexFunc(gs, func(g Goal) bool { return g.ID == id })
		if i < 0 {
			return nil, ErrNotFound
		}

		gs[i].CurrentAmount = gs[i].CurrentAmount.Add(amount)
		if gs[i].reached() {
			gs[i].IsCompleted = true
		}

		updated = gs[i]

		return gs, nil
	})
	if err != nil {
		return Goal{}, err
	}

	return updated, nil
}

func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()

	if err := s.kv.Delete(ctx, storageKey); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("resetting goals: %w", err)
	}

	s.goals = nil
	s.mu.Unlock()

	s.watchers.Notify(nil)

	return nil
}

func (s *Store) mutate(ctx context.Context, fn func([]Goal) ([]Goal, error)) error {
	s.mu.Lock()

	next, err := fn(slices.Clone(s.goals))
	if err != nil {
		s.mu.Unlock()
		return err
	}

	raw, err := json.Marshal(next)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("encoding goals: %w", err)
	}

	if err := s.kv.Put(ctx, storageKey, raw); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("saving goals: %w", err)
	}

	s.goals = next
	snapshot := slices.Clone(next)
	s.mu.Unlock()

	s.watchers.Notify(snapshot)

	return nil
}
