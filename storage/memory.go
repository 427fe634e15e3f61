package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/CreativeUnicorns/userrecords"
)

// MemoryStorage implements the Storage interface using in-memory slices.
// It enforces the same unique keys and cascading delete as the SQL backends.
// This is useful for testing or simple applications where persistence is not required.
type MemoryStorage struct {
	mu     sync.RWMutex
	users  []*userrecords.User // insertion order
	prefs  []*userrecords.UserPreference
	closed bool
}

// NewMemoryStorage creates a new instance of MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// CreateUser stores the user and its optional preference.
// It returns userrecords.ErrAlreadyExists when the email or the (age, name) pair is taken.
func (s *MemoryStorage) CreateUser(_ context.Context, in *userrecords.CreateUserInput) (*userrecords.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, userrecords.ErrStorageUnavailable
	}

	for _, u := range s.users {
		if u.Email == in.Email {
			return nil, fmt.Errorf("memory: email %q: %w", in.Email, userrecords.ErrAlreadyExists)
		}
		if u.Age == in.Age && u.Name == in.Name {
			return nil, fmt.Errorf("memory: age %d and name %q: %w", in.Age, in.Name, userrecords.ErrAlreadyExists)
		}
	}

	now := time.Now().UTC()
	user := &userrecords.User{
		ID:        newID(),
		Name:      in.Name,
		Age:       in.Age,
		Email:     in.Email,
		IsAdmin:   in.IsAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.users = append(s.users, user)

	// Return a copy so callers cannot modify stored records through the pointer
	out := *user
	if in.Preference != nil {
		pref := &userrecords.UserPreference{ID: newID(), EmailUpdates: in.Preference.EmailUpdates, UserID: user.ID}
		s.prefs = append(s.prefs, pref)
		prefCopy := *pref
		out.Preference = &prefCopy
	}
	return &out, nil
}

// FindUniqueUser returns the single user matching where, or userrecords.ErrNotFound.
func (s *MemoryStorage) FindUniqueUser(ctx context.Context, where userrecords.UserUniqueWhere, includePreference bool) (*userrecords.User, error) {
	users, err := s.FindManyUsers(ctx, &userrecords.UserQuery{Where: where.Where(), Take: 1, IncludePreference: includePreference})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("memory: user: %w", userrecords.ErrNotFound)
	}
	return users[0], nil
}

// FindManyUsers filters, orders and paginates copies of the stored users.
func (s *MemoryStorage) FindManyUsers(_ context.Context, q *userrecords.UserQuery) ([]*userrecords.User, error) {
	if q == nil {
		q = &userrecords.UserQuery{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, userrecords.ErrStorageUnavailable
	}

	out := make([]*userrecords.User, 0, len(s.users))
	for _, u := range s.users {
		if !q.Where.Matches(u) {
			continue
		}
		userCopy := *u
		if q.IncludePreference {
			userCopy.Preference = s.preferenceOf(u.ID)
		}
		out = append(out, &userCopy)
	}

	userrecords.SortUsers(out, q.OrderBy)
	out = userrecords.DistinctUsers(out, q.Distinct)
	return userrecords.Page(out, q.Skip, q.Take), nil
}

// preferenceOf must be called with the lock held.
func (s *MemoryStorage) preferenceOf(userID string) *userrecords.UserPreference {
	for _, p := range s.prefs {
		if p.UserID == userID {
			prefCopy := *p
			return &prefCopy
		}
	}
	return nil
}

// DeleteManyUsers removes the matching users together with their preferences.
func (s *MemoryStorage) DeleteManyUsers(_ context.Context, where *userrecords.UserWhere) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, userrecords.ErrStorageUnavailable
	}

	removed := make(map[string]struct{})
	kept := s.users[:0]
	for _, u := range s.users {
		if where.Matches(u) {
			removed[u.ID] = struct{}{}
			continue
		}
		kept = append(kept, u)
	}
	s.users = kept

	keptPrefs := s.prefs[:0]
	for _, p := range s.prefs {
		if _, ok := removed[p.UserID]; !ok {
			keptPrefs = append(keptPrefs, p)
		}
	}
	s.prefs = keptPrefs

	return int64(len(removed)), nil
}

// FindManyPreferences returns copies of the matching preferences in insertion order.
func (s *MemoryStorage) FindManyPreferences(_ context.Context, where *userrecords.PreferenceWhere) ([]*userrecords.UserPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, userrecords.ErrStorageUnavailable
	}

	out := make([]*userrecords.UserPreference, 0, len(s.prefs))
	for _, p := range s.prefs {
		if where.Matches(p) {
			prefCopy := *p
			out = append(out, &prefCopy)
		}
	}
	return out, nil
}

// DeleteManyPreferences removes the matching preferences. Users are left untouched.
func (s *MemoryStorage) DeleteManyPreferences(_ context.Context, where *userrecords.PreferenceWhere) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, userrecords.ErrStorageUnavailable
	}

	var n int64
	kept := s.prefs[:0]
	for _, p := range s.prefs {
		if where.Matches(p) {
			n++
			continue
		}
		kept = append(kept, p)
	}
	s.prefs = kept
	return n, nil
}

// Close marks the storage as closed. Subsequent calls return userrecords.ErrStorageUnavailable.
// Closing twice is a no-op.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
