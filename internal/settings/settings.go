package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrJamesThe3rd/finsync/internal/kv"
	"github.com/MrJamesThe3rd/finsync/internal/watch"
)

const (
	storageKey = "settings"

	DefaultNotificationTime = "20:00"
)

var ErrInvalidTime = errors.New("notification time must be HH:mm")

type Settings struct {
	Avatar               string `json:"avatar"`
	Nickname             string `json:"nickname"`
	NotificationTime     string `json:"notification_time"`
	DailyReminderEnabled bool   `json:"daily_reminder_enabled"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
}

func Defaults() Settings {
	return Settings{NotificationTime: DefaultNotificationTime}
}

// ValidTime reports whether s is a 24h "HH:mm" clock time.
func ValidTime(s string) bool {
	if len(s) != len("15:04") {
		return false
	}

	_, err := time.Parse("15:04", s)

	return err == nil
}

type Store struct {
	kv       kv.Store
	mu       sync.RWMutex
	current  Settings
	watchers watch.List[Settings]
}

func Open(ctx context.Context, store kv.Store) (*Store, error) {
	s := &Store{kv: store, current: Defaults()}

	raw, err := store.Get(ctx, storageKey)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return s, nil
		}

		return nil, fmt.Errorf("loading settings: %w", err)
	}

	if err := json.Unmarshal(raw, &s.current); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}

	if !ValidTime(s.current.NotificationTime) {
		s.current.NotificationTime = DefaultNotificationTime
	}

	return s, nil
}

func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current
}

func (s *Store) Watch(fn func(Settings)) (cancel func()) {
	return s.watchers.Add(fn)
}

func (s *Store) SetAvatar(ctx context.Context, avatar string) error {
	return s.update(ctx, func(st *Settings) { st.Avatar = avatar })
}

func (s *Store) SetNickname(ctx context.Context, nickname string) error {
	return s.update(ctx, func(st *Settings) { st.Nickname = nickname })
}

func (s *Store) SetNotificationTime(ctx context.Context, hhmm string) error {
	if !ValidTime(hhmm) {
		return fmt.Errorf("%w: %q", ErrInvalidTime, hhmm)
	}

	return s.update(ctx, func(st *Settings) { st.NotificationTime = hhmm })
}

func (s *Store) SetDailyReminderEnabled(ctx context.Context, enabled bool) error {
	return s.update(ctx, func(st *Settings) { st.DailyReminderEnabled = enabled })
}

func (s *Store) SetNotificationsEnabled(ctx context.Context, enabled bool) error {
	return s.update(ctx, func(st *Settings) { st.NotificationsEnabled = enabled })
}

// Reset restores the defaults and drops the persisted copy.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()

	if err := s.kv.Delete(ctx, storageKey); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("resetting settings: %w", err)
	}

	s.current = Defaults()
	snapshot := s.current
	s.mu.Unlock()

	s.watchers.Notify(snapshot)

	return nil
}

func (s *Store) update(ctx context.Context, fn func(*Settings)) error {
	s.mu.Lock()

	next := s.current
	fn(&next)

	if next == s.current {
		s.mu.Unlock()
		return nil
	}

	raw, err := json.Marshal(next)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("encoding settings: %w", err)
	}

	if err := s.kv.Put(ctx, storageKey, raw); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("saving settings: %w", err)
	}

	s.current = next
	s.mu.Unlock()

	s.watchers.Notify(next)

	return nil
}
