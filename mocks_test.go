package userrecords

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MockStorage implements the Storage interface for testing
type MockStorage struct {
	mu        sync.Mutex
	users     []*User
	prefs     []*UserPreference
	nextID    int
	closed    bool
	forceErr  error // returned by every call when set
	findCalls int
}

func NewMockStorage() *MockStorage {
	return &MockStorage{}
}

func (m *MockStorage) id() string {
	m.nextID++
	return fmt.Sprintf("id-%d", m.nextID)
}

func (m *MockStorage) CreateUser(ctx context.Context, in *CreateUserInput) (*User, error) {
	_, _ = ctx.Deadline()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.forceErr != nil {
		return nil, m.forceErr
	}
	if m.closed {
		return nil, ErrStorageUnavailable
	}
	for _, u := range m.users {
		if u.Email == in.Email {
			return nil, fmt.Errorf("mockstorage: email %q: %w", in.Email, ErrAlreadyExists)
		}
	}

	u := &User{ID: m.id(), Name: in.Name, Age: in.Age, Email: in.Email, IsAdmin: in.IsAdmin, CreatedAt: time.Now()}
	m.users = append(m.users, u)
	out := *u
	if in.Preference != nil {
		p := &UserPreference{ID: m.id(), EmailUpdates: in.Preference.EmailUpdates, UserID: u.ID}
		m.prefs = append(m.prefs, p)
		pc := *p
		out.Preference = &pc
	}
	return &out, nil
}

func (m *MockStorage) FindUniqueUser(ctx context.Context, where UserUniqueWhere, includePreference bool) (*User, error) {
	users, err := m.FindManyUsers(ctx, &UserQuery{Where: where.Where(), IncludePreference: includePreference})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrNotFound
	}
	return users[0], nil
}

func (m *MockStorage) FindManyUsers(ctx context.Context, q *UserQuery) ([]*User, error) {
	_, _ = ctx.Deadline()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.findCalls++
	if m.forceErr != nil {
		return nil, m.forceErr
	}

	var out []*User
	for _, u := range m.users {
		if !q.Where.Matches(u) {
			continue
		}
		c := *u
		if q.IncludePreference {
			for _, p := range m.prefs {
				if p.UserID == u.ID {
					pc := *p
					c.Preference = &pc
				}
			}
		}
		out = append(out, &c)
	}
	SortUsers(out, q.OrderBy)
	out = DistinctUsers(out, q.Distinct)
	return Page(out, q.Skip, q.Take), nil
}

func (m *MockStorage) DeleteManyUsers(ctx context.Context, where *UserWhere) (int64, error) {
	_, _ = ctx.Deadline()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.forceErr != nil {
		return 0, m.forceErr
	}

	var kept []*User
	removed := make(map[string]bool)
	for _, u := range m.users {
		if where.Matches(u) {
			removed[u.ID] = true
			continue
		}
		kept = append(kept, u)
	}
	m.users = kept

	var keptPrefs []*UserPreference
	for _, p := range m.prefs {
		if !removed[p.UserID] {
			keptPrefs = append(keptPrefs, p)
		}
	}
	m.prefs = keptPrefs
	return int64(len(removed)), nil
}

func (m *MockStorage) FindManyPreferences(ctx context.Context, where *PreferenceWhere) ([]*UserPreference, error) {
	_, _ = ctx.Deadline()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.forceErr != nil {
		return nil, m.forceErr
	}
	var out []*UserPreference
	for _, p := range m.prefs {
		if where.Matches(p) {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *MockStorage) DeleteManyPreferences(ctx context.Context, where *PreferenceWhere) (int64, error) {
	_, _ = ctx.Deadline()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.forceErr != nil {
		return 0, m.forceErr
	}
	var kept []*UserPreference
	var n int64
	for _, p := range m.prefs {
		if where.Matches(p) {
			n++
			continue
		}
		kept = append(kept, p)
	}
	m.prefs = kept
	return n, nil
}

func (m *MockStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// MockCache implements the Cache interface for testing
type MockCache struct {
	mu       sync.Mutex
	data     map[string][]byte
	closed   bool
	forceErr error
}

func NewMockCache() *MockCache {
	return &MockCache{data: make(map[string][]byte)}
}

func (m *MockCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forceErr != nil {
		return nil, m.forceErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *MockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forceErr != nil {
		return m.forceErr
	}
	m.data[key] = value
	return nil
}

func (m *MockCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockCache) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forceErr != nil {
		return m.forceErr
	}
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	return nil
}

func (m *MockCache) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// MockLogger records log calls
type MockLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *MockLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+": "+msg)
}

func (l *MockLogger) Debug(msg string, _ ...any) { l.record("DEBUG", msg) }
func (l *MockLogger) Info(msg string, _ ...any) { l.record("INFO", msg) }
func (l *MockLogger) Warn(msg string, _ ...any) { l.record("WARN", msg) }
func (l *MockLogger) Error(msg string, _ ...any) { l.record("ERROR", msg) }

func (l *MockLogger) has(entry string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e == entry {
			return true
		}
	}
	return false
}
