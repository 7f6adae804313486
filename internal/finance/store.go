package finance

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/finsync/internal/kv"
	"github.com/MrJamesThe3rd/finsync/internal/watch"
)

const storageKey = "finance"

// State is a point-in-time copy of the store contents.
type State struct {
	Transactions []Transaction `json:"transactions"`
	Budgets      []Budget      `json:"budgets"`
}

func (s State) clone() State {
	return State{
		Transactions: slices.Clone(s.Transactions),
		Budgets:      slices.Clone(s.Budgets),
	}
}

// Store keeps transactions and budgets in memory and persists every change
// as a single JSON document.
type Store struct {
	kv       kv.Store
	now      func() time.Time
	mu       sync.RWMutex
	state    State
	watchers watch.List[State]
}

// Open rehydrates the store from kv.
func Open(ctx context.Context, store kv.Store) (*Store, error) {
	s := &Store{kv: store, now: time.Now}

	raw, err := store.Get(ctx, storageKey)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return s, nil
		}

		return nil, fmt.Errorf("loading finance state: %w", err)
	}

	if err := json.Unmarshal(raw, &s.state); err != nil {
		return nil, fmt.Errorf("decoding finance state: %w", err)
	}

	return s, nil
}

func (s *Store) Transactions() []Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.state.Transactions)
}

func (s *Store) Budgets() []Budget {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.state.Budgets)
}

// Watch registers fn to be called with the new state after every change.
func (s *Store) Watch(fn func(State)) (cancel func()) {
	return s.watchers.Add(fn)
}

// SetTransactions replaces the whole transaction collection.
func (s *Store) SetTransactions(ctx context.Context, txs []Transaction) error {
	return s.mutate(ctx, func(st *State) error {
		st.Transactions = slices.Clone(txs)
		return nil
	})
}

// SetBudgets replaces the whole budget collection.
func (s *Store) SetBudgets(ctx context.Context, budgets []Budget) error {
	return s.mutate(ctx, func(st *State) error {
		st.Budgets = slices.Clone(budgets)
		return nil
	})
}

func (s *Store) AddTransaction(ctx context.Context, params CreateParams) (Transaction, error) {
	if err := params.validate(); err != nil {
		return Transaction{}, err
	}

	tx := Transaction{
		ID:          uuid.NewString(),
		Amount:      params.Amount,
		Type:        params.Type,
		Category:    params.Category,
		Description: params.Description,
		Date:        params.Date.UTC(),
		CreatedAt:   s.now().UTC(),
	}

	err := s.mutate(ctx, func(st *State) error {
		st.Transactions = append([]Transaction{tx}, st.Transactions...)
		return nil
	})
	if err != nil {
		return Transaction{}, fmt.Errorf("creating transaction: %w", err)
	}

	return tx, nil
}

func (s *Store) GetTransaction(id string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := slices.IndexFunc(s.state.Transactions, func(t Transaction) bool { return t.ID == id })
	if i < 0 {
		return Transaction{}, ErrNotFound
	}

	return s.state.Transactions[i], nil
}

// UpdateTransaction replaces the transaction with the same ID. CreatedAt is kept.
func (s *Store) UpdateTransaction(ctx context.Context, tx Transaction) error {
	if !tx.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalid, tx.Type)
	}

	return s.mutate(ctx, func(st *State) error {
		i := slices.IndexFunc(st.Transactions, func(t Transaction) bool { return t.ID == tx.ID })
		if i < 0 {
			return ErrNotFound
		}

		tx.CreatedAt = st.Transactions[i].CreatedAt
		st.Transactions[i] = tx

		return nil
	})
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	return s.mutate(ctx, func(st *State) error {
		i := slices.IndexFunc(st.Transactions, func(t Transaction) bool { return t.ID == id })
		if i < 0 {
			return ErrNotFound
		}

		st.Transactions = slices.Delete(st.Transactions, i, i+1)

		return nil
	})
}

// ListTransactions returns the matching transactions, newest date first.
func (s *Store) ListTransactions(filter ListFilter) []Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Transaction

	for _, t := range s.state.Transactions {
		if filter.match(t) {
			out = append(out, t)
		}
	}

	slices.SortStableFunc(out, func(a, b Transaction) int {
		return cmp.Compare(b.Date.UnixNano(), a.Date.UnixNano())
	})

	return out
}

func (s *Store) AddBudget(ctx context.Context, params BudgetParams) (Budget, error) {
	if err := params.validate(); err != nil {
		return Budget{}, err
	}

	b := Budget{
		ID:          uuid.NewString(),
		Category:    params.Category,
		Limit:       params.Limit,
		LimitAmount: params.Limit,
		Period:      params.Period,
	}

	err := s.mutate(ctx, func(st *State) error {
		st.Budgets = append(st.Budgets, b)
		return nil
	})
	if err != nil {
		return Budget{}, fmt.Errorf("creating budget: %w", err)
	}

	return b, nil
}

func (s *Store) GetBudget(id string) (Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := slices.IndexFunc(s.state.Budgets, func(b Budget) bool { return b.ID == id })
	if i < 0 {
		return Budget{}, ErrNotFound
	}

	return s.state.Budgets[i], nil
}

func (s *Store) UpdateBudget(ctx context.Context, b Budget) error {
	if !b.Period.Valid() {
		return fmt.Errorf("%w: unknown period %q", ErrInvalid, b.Period)
	}

	b.Limit = b.EffectiveLimit()
	b.LimitAmount = b.Limit

	return s.mutate(ctx, func(st *State) error {
		i := slices.IndexFunc(st.Budgets, func(x Budget) bool { return x.ID == b.ID })
		if i < 0 {
			return ErrNotFound
		}

		st.Budgets[i] = b

		return nil
	})
}

func (s *Store) DeleteBudget(ctx context.Context, id string) error {
	return s.mutate(ctx, func(st *State) error {
		i := slices.IndexFunc(st.Budgets, func(b Budget) bool { return b.ID == id })
		if i < 0 {
			return ErrNotFound
		}

		st.Budgets = slices.Delete(st.Budgets, i, i+1)

		return nil
	})
}

// Reset clears both collections and their persisted copy.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()

	if err := s.kv.Delete(ctx, storageKey); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("resetting finance state: %w", err)
	}

	s.state = State{}
	snapshot := s.state.clone()
	s.mu.Unlock()

	s.watchers.Notify(snapshot)

	return nil
}

// mutate applies fn to a copy of the state, persists it and only then makes it
// current. Watchers are notified after the lock is released.
func (s *Store) mutate(ctx context.Context, fn func(*State) error) error {
	s.mu.Lock()

	next := s.state.clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return err
	}

	raw, err := json.Marshal(next)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("encoding finance state: %w", err)
	}

	if err := s.kv.Put(ctx, storageKey, raw); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("saving finance state: %w", err)
	}

	s.state = next
	snapshot := next.clone()
	s.mu.Unlock()

	s.watchers.Notify(snapshot)

	return nil
}
